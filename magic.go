package magic

import (
	"os"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/jmgilman/go/magic/sniff"
)

const (
	// DefaultDatabaseEnv names the environment variable consulted for the
	// default database path.
	DefaultDatabaseEnv = "MAGIC"

	// DefaultDatabaseFile is the compiled-in default database path, used
	// when the environment variable is not set and no override was given.
	DefaultDatabaseFile = "/usr/share/misc/magic.mgc"
)

// Magic identifies the type of file contents, the way the file(1) command
// does. A handle owns at most one engine session and moves through three
// states: closed, opened without a database, and valid (opened with a
// database loaded). Identification requires a valid handle.
//
// The zero value is a closed handle ready to be opened. A handle is not
// safe for concurrent use; share a progress.Tracker across goroutines
// instead.
type Magic struct {
	engine          Engine
	fsys            billy.Filesystem
	session         EngineSession
	flags           Flag
	databaseLoaded  bool
	defaultDatabase string
}

// New returns an open Magic handle. Unless options say otherwise, the
// handle is opened with FlagNone against the host filesystem and no
// database is loaded. When WithDatabase is given, the database is loaded
// before returning; on load failure the handle is closed again and the
// error returned.
func New(opts ...Option) (*Magic, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Magic{
		engine:          cfg.engine,
		fsys:            cfg.fsys,
		defaultDatabase: resolveDefaultDatabase(cfg.defaultDatabase),
	}
	m.init()

	if err := m.Open(cfg.flags); err != nil {
		return nil, err
	}

	if cfg.database != "" {
		if err := m.LoadDatabaseFile(cfg.database); err != nil {
			_ = m.Close()
			return nil, err
		}
	}

	return m, nil
}

// init fills in the collaborators a zero value handle is missing, so that
// the zero value and a moved-from handle behave like one built by New
// without options.
func (m *Magic) init() {
	if m.fsys == nil {
		m.fsys = osfs.New("/")
	}
	if m.engine == nil {
		m.engine = BundledEngine(sniff.WithFilesystem(m.fsys))
	}
	if m.defaultDatabase == "" {
		m.defaultDatabase = resolveDefaultDatabase("")
	}
}

// resolveDefaultDatabase resolves the default database path once, from the
// environment variable, an explicit override, and the compiled-in
// fallback, in that order.
func resolveDefaultDatabase(override string) string {
	if path := os.Getenv(DefaultDatabaseEnv); path != "" {
		return path
	}
	if override != "" {
		return override
	}
	return DefaultDatabaseFile
}

// Open opens a new engine session with the given flags, closing any
// session the handle already holds. The new session has no database
// loaded.
func (m *Magic) Open(flags Flag) error {
	m.init()

	if m.session != nil {
		if err := m.Close(); err != nil {
			return err
		}
	}

	session, err := m.engine.Open(flags)
	if err != nil {
		return &EngineError{Op: "open", Err: err}
	}

	m.session = session
	m.flags = flags
	return nil
}

// Close releases the engine session and returns the handle to the closed
// state. Closing a closed handle is a no-op.
func (m *Magic) Close() error {
	if m.session == nil {
		return nil
	}

	err := m.session.Close()
	m.session = nil
	m.flags = FlagNone
	m.databaseLoaded = false
	return err
}

// IsOpen reports whether the handle holds an open engine session.
func (m *Magic) IsOpen() bool {
	return m.session != nil
}

// IsDatabaseLoaded reports whether a database has been loaded into the
// current session.
func (m *Magic) IsDatabaseLoaded() bool {
	return m.session != nil && m.databaseLoaded
}

// IsValid reports whether the handle is open with a database loaded and is
// therefore ready to identify files.
func (m *Magic) IsValid() bool {
	return m.IsDatabaseLoaded()
}

// Move returns a handle that takes over the engine session and
// collaborators of m, leaving m equivalent to a fresh closed handle.
func (m *Magic) Move() *Magic {
	moved := &Magic{
		engine:          m.engine,
		fsys:            m.fsys,
		session:         m.session,
		flags:           m.flags,
		databaseLoaded:  m.databaseLoaded,
		defaultDatabase: m.defaultDatabase,
	}
	*m = Magic{}
	return moved
}

// LoadDatabaseFile loads the database file at path into the session,
// replacing any previously loaded rules. An empty path loads the default
// database resolved at construction. When the engine rejects the file, the
// handle stays open but reports IsValid()==false.
func (m *Magic) LoadDatabaseFile(path string) error {
	if !m.IsOpen() {
		return ErrClosed
	}

	if path == "" {
		path = m.defaultDatabase
	}
	if path == "" {
		return ErrEmptyPath
	}

	info, err := m.fsys.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PathError{Path: path, Err: ErrNotExist}
		}
		return &FilesystemError{Op: "stat", Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &PathError{Path: path, Err: ErrNotRegularFile}
	}

	if err := m.session.Load(path); err != nil {
		m.databaseLoaded = false
		return &EngineError{Op: "load", Path: path, Err: err}
	}

	m.databaseLoaded = true
	return nil
}

// Flags returns the flags the session was opened or last configured with.
func (m *Magic) Flags() (Flag, error) {
	if !m.IsOpen() {
		return FlagNone, ErrClosed
	}
	return m.flags, nil
}

// SetFlags replaces the session flags.
func (m *Magic) SetFlags(flags Flag) error {
	if !m.IsOpen() {
		return ErrClosed
	}

	if err := m.session.SetFlags(flags); err != nil {
		return &EngineError{Op: "set_flags", Err: err}
	}

	m.flags = flags
	return nil
}

// Parameter returns the current value of an engine parameter.
func (m *Magic) Parameter(parameter Parameter) (uint64, error) {
	if !m.IsOpen() {
		return 0, ErrClosed
	}

	value, err := m.session.Parameter(parameter)
	if err != nil {
		return 0, &EngineError{Op: "get_parameter", Err: err}
	}
	return value, nil
}

// Parameters returns the current value of every engine parameter.
func (m *Magic) Parameters() (map[Parameter]uint64, error) {
	if !m.IsOpen() {
		return nil, ErrClosed
	}

	parameters := make(map[Parameter]uint64, len(parameterNames))
	for ordinal := range parameterNames {
		parameter := Parameter(ordinal)
		value, err := m.session.Parameter(parameter)
		if err != nil {
			return nil, &EngineError{Op: "get_parameter", Err: err}
		}
		parameters[parameter] = value
	}
	return parameters, nil
}

// SetParameter sets an engine parameter for the current session.
func (m *Magic) SetParameter(parameter Parameter, value uint64) error {
	if !m.IsOpen() {
		return ErrClosed
	}

	if err := m.session.SetParameter(parameter, value); err != nil {
		return &ParameterError{Parameter: parameter, Value: value, Err: err}
	}
	return nil
}

// SetParameters sets the given engine parameters. They are applied in
// ordinal order, and the first rejected value stops the rest.
func (m *Magic) SetParameters(parameters map[Parameter]uint64) error {
	if !m.IsOpen() {
		return ErrClosed
	}

	ordered := make([]Parameter, 0, len(parameters))
	for parameter := range parameters {
		ordered = append(ordered, parameter)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	for _, parameter := range ordered {
		if err := m.SetParameter(parameter, parameters[parameter]); err != nil {
			return err
		}
	}
	return nil
}

// IdentifyFile identifies the type of the file at path, rendered according
// to the session flags.
func (m *Magic) IdentifyFile(path string) (string, error) {
	if !m.IsOpen() {
		return "", ErrClosed
	}
	if !m.IsDatabaseLoaded() {
		return "", ErrDatabaseNotLoaded
	}
	if path == "" {
		return "", ErrEmptyPath
	}

	if _, err := m.fsys.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return "", &PathError{Path: path, Err: ErrNotExist}
		}
		return "", &FilesystemError{Op: "lstat", Path: path, Err: err}
	}

	value, err := m.session.Identify(path)
	if err != nil {
		return "", &EngineError{Op: "identify", Path: path, Err: err}
	}
	return value, nil
}

// Version returns the version of the bundled engine.
func Version() string {
	return BundledEngine().Version()
}

// Check reports whether the given database files parse cleanly. With no
// paths it checks the default database.
func Check(paths ...string) bool {
	if len(paths) == 0 {
		paths = []string{resolveDefaultDatabase("")}
	}
	return BundledEngine().Check(paths...)
}

// Compile compiles the given database files into their binary form,
// writing a .mgc file into the working directory for each source. With no
// paths it compiles the default database.
func Compile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{resolveDefaultDatabase("")}
	}
	return BundledEngine().Compile(paths...)
}
