package sniff

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// EngineVersion is the version the engine reports.
const EngineVersion = "0.1.0"

// Flag configures a session. The values mirror the flags of the magic
// package bit for bit, so sessions can be driven through either type.
type Flag uint64

const (
	FlagNone            Flag = 0
	FlagDebug           Flag = 1 << 0
	FlagSymlink         Flag = 1 << 1
	FlagCompress        Flag = 1 << 2
	FlagDevices         Flag = 1 << 3
	FlagMimeType        Flag = 1 << 4
	FlagContinueSearch  Flag = 1 << 5
	FlagCheckDatabase   Flag = 1 << 6
	FlagPreserveAtime   Flag = 1 << 7
	FlagRaw             Flag = 1 << 8
	FlagError           Flag = 1 << 9
	FlagMimeEncoding    Flag = 1 << 10
	FlagMime            Flag = 1 << 11
	FlagApple           Flag = 1 << 12
	FlagExtension       Flag = 1 << 13
	FlagCompressTransp  Flag = 1 << 14
	FlagNoCompressFork  Flag = 1 << 15
	FlagNoDesc          Flag = 1 << 16
	FlagNoCheckCompress Flag = 1 << 17
	FlagNoCheckTar      Flag = 1 << 18
	FlagNoCheckSoft     Flag = 1 << 19
	FlagNoCheckAppType  Flag = 1 << 20
	FlagNoCheckElf      Flag = 1 << 21
	FlagNoCheckText     Flag = 1 << 22
	FlagNoCheckCdf      Flag = 1 << 23
	FlagNoCheckCsv      Flag = 1 << 24
	FlagNoCheckTokens   Flag = 1 << 25
	FlagNoCheckEncoding Flag = 1 << 26
	FlagNoCheckJSON     Flag = 1 << 27
	FlagNoCheckSimh     Flag = 1 << 28
	FlagNoCheckBuiltin  Flag = 1 << 29
)

// definedFlags is the mask of every flag the engine understands.
const definedFlags = Flag(1)<<30 - 1

// Parameter identifies a processing limit of the engine. The ordinals
// mirror the parameters of the magic package.
type Parameter int

const (
	ParameterIndirMax Parameter = iota
	ParameterNameMax
	ParameterElfPhnumMax
	ParameterElfShnumMax
	ParameterElfNotesMax
	ParameterRegexMax
	ParameterBytesMax
	ParameterEncodingMax
	ParameterElfShsizeMax
	ParameterMagWarnMax
)

// defaultParameters holds the built-in value of every parameter, indexed
// by ordinal.
var defaultParameters = [...]uint64{
	15,        // indir_max
	30,        // name_max
	128,       // elf_phnum_max
	32768,     // elf_shnum_max
	256,       // elf_notes_max
	8192,      // regex_max
	7340032,   // bytes_max
	1048576,   // encoding_max
	134217728, // elf_shsize_max
	64,        // mag_warn_max
}

// maxParameterValue caps parameter values at what a signed 64-bit limit
// can carry.
const maxParameterValue = uint64(1)<<63 - 1

// Errors reported by the engine.
var (
	// ErrClosedSession is returned by operations on a closed session.
	ErrClosedSession = errors.New("session is closed")

	// ErrNoDatabase is returned when an identification is attempted
	// before any database was loaded.
	ErrNoDatabase = errors.New("no database loaded")

	// ErrUnsupportedFlags is returned when a flag mask contains bits the
	// engine does not understand.
	ErrUnsupportedFlags = errors.New("unsupported flags")

	// ErrUnknownParameter is returned for parameters outside the defined
	// set.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrParameterOutOfRange is returned for parameter values the engine
	// cannot carry.
	ErrParameterOutOfRange = errors.New("parameter value out of range")
)

// Engine is a rule-based file identification engine. It reads rule
// databases in YAML or compiled binary form and identifies files by
// matching their leading bytes against the loaded rules.
//
// An Engine holds no mutable state; sessions do.
type Engine struct {
	fsys    billy.Filesystem
	workDir string
	logger  *slog.Logger
}

// Option is a function that configures an Engine.
type Option func(*Engine)

// WithFilesystem returns an Option that replaces the filesystem the engine
// reads files and databases from. The default is the host filesystem
// rooted at /.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(e *Engine) {
		e.fsys = fsys
	}
}

// WithWorkDir returns an Option that sets the directory Compile writes its
// output into. The default is the process working directory.
func WithWorkDir(dir string) Option {
	return func(e *Engine) {
		e.workDir = dir
	}
}

// WithLogger returns an Option that sets the logger sessions trace to under
// the debug flag. The default logger writes debug-level text to stderr.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New returns an Engine ready to open sessions.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.fsys == nil {
		e.fsys = osfs.New("/")
	}
	if e.workDir == "" {
		if dir, err := os.Getwd(); err == nil {
			e.workDir = dir
		} else {
			e.workDir = "/"
		}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return e
}

// Version returns the engine version.
func (e *Engine) Version() string {
	return EngineVersion
}

// Open starts a session with the given flags.
func (e *Engine) Open(flags Flag) (*Session, error) {
	if err := validateFlags(flags); err != nil {
		return nil, err
	}

	s := &Session{
		engine: e,
		flags:  normalizeFlags(flags),
	}
	s.parameters = defaultParameters
	return s, nil
}

// Session is one open identification session, holding the session flags,
// parameters and loaded rules. Sessions are not safe for concurrent use.
type Session struct {
	engine     *Engine
	flags      Flag
	parameters [len(defaultParameters)]uint64
	rules      []loadedRule
	loaded     bool
	closed     bool
}

// Close releases the session. Closing a closed session is a no-op.
func (s *Session) Close() error {
	s.closed = true
	s.rules = nil
	s.loaded = false
	return nil
}

// SetFlags replaces the session flags.
func (s *Session) SetFlags(flags Flag) error {
	if s.closed {
		return ErrClosedSession
	}
	if err := validateFlags(flags); err != nil {
		return err
	}

	s.flags = normalizeFlags(flags)
	return nil
}

// Parameter returns the current value of a parameter.
func (s *Session) Parameter(parameter Parameter) (uint64, error) {
	if s.closed {
		return 0, ErrClosedSession
	}
	if parameter < 0 || int(parameter) >= len(s.parameters) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownParameter, parameter)
	}
	return s.parameters[parameter], nil
}

// SetParameter sets a parameter for this session.
func (s *Session) SetParameter(parameter Parameter, value uint64) error {
	if s.closed {
		return ErrClosedSession
	}
	if parameter < 0 || int(parameter) >= len(s.parameters) {
		return fmt.Errorf("%w: %d", ErrUnknownParameter, parameter)
	}
	if value > maxParameterValue {
		return fmt.Errorf("%w: %d", ErrParameterOutOfRange, value)
	}

	s.parameters[parameter] = value
	return nil
}

// validateFlags rejects flag masks with bits outside the defined set.
func validateFlags(flags Flag) error {
	if unsupported := flags &^ definedFlags; unsupported != 0 {
		return fmt.Errorf("%w: %#x", ErrUnsupportedFlags, uint64(unsupported))
	}
	return nil
}

// normalizeFlags expands the shorthand flags into the flags they stand
// for.
func normalizeFlags(flags Flag) Flag {
	if flags&FlagNoDesc != 0 {
		flags |= FlagExtension | FlagMime | FlagApple
	}
	if flags&FlagMime != 0 {
		flags |= FlagMimeType | FlagMimeEncoding
	}
	if flags&FlagNoCheckBuiltin != 0 {
		flags |= FlagNoCheckCompress | FlagNoCheckTar | FlagNoCheckAppType |
			FlagNoCheckElf | FlagNoCheckText | FlagNoCheckCdf |
			FlagNoCheckCsv | FlagNoCheckTokens | FlagNoCheckEncoding |
			FlagNoCheckJSON | FlagNoCheckSimh
	}
	return flags
}
