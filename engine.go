package magic

import (
	"github.com/jmgilman/go/magic/sniff"
)

// Engine is a file identification engine. The bundled rule-based engine
// satisfies it, and callers can substitute their own through WithEngine,
// for example to wrap a cgo binding of a native library.
type Engine interface {
	// Open starts an identification session configured with the given
	// flags. It fails if the engine does not support a requested flag.
	Open(flags Flag) (EngineSession, error)

	// Check reports whether the given database files parse cleanly.
	Check(paths ...string) bool

	// Compile compiles the given database files into their binary form.
	Compile(paths ...string) error

	// Version returns the engine version.
	Version() string
}

// EngineSession is a single open identification session. Sessions are not
// safe for concurrent use.
type EngineSession interface {
	// Close releases the session. Operations on a closed session fail.
	Close() error

	// Load parses the given database files and replaces any previously
	// loaded rules. Each path may be a colon-separated list.
	Load(paths ...string) error

	// SetFlags replaces the session flags. It fails if the engine does
	// not support a requested flag.
	SetFlags(flags Flag) error

	// Parameter returns the current value of an engine parameter.
	Parameter(parameter Parameter) (uint64, error)

	// SetParameter sets an engine parameter. It fails if the engine
	// rejects the value.
	SetParameter(parameter Parameter, value uint64) error

	// Identify inspects the file at path and returns its description,
	// rendered according to the session flags.
	Identify(path string) (string, error)
}

var (
	_ Engine        = bundled{}
	_ EngineSession = bundledSession{}
)

// bundled adapts the sniff engine to the Engine interface, translating
// between the package-level flag and parameter types and their sniff
// counterparts.
type bundled struct {
	engine *sniff.Engine
}

func (b bundled) Open(flags Flag) (EngineSession, error) {
	session, err := b.engine.Open(sniff.Flag(flags))
	if err != nil {
		return nil, err
	}
	return bundledSession{session: session}, nil
}

func (b bundled) Check(paths ...string) bool {
	return b.engine.Check(paths...)
}

func (b bundled) Compile(paths ...string) error {
	return b.engine.Compile(paths...)
}

func (b bundled) Version() string {
	return b.engine.Version()
}

type bundledSession struct {
	session *sniff.Session
}

func (s bundledSession) Close() error {
	return s.session.Close()
}

func (s bundledSession) Load(paths ...string) error {
	return s.session.Load(paths...)
}

func (s bundledSession) SetFlags(flags Flag) error {
	return s.session.SetFlags(sniff.Flag(flags))
}

func (s bundledSession) Parameter(parameter Parameter) (uint64, error) {
	return s.session.Parameter(sniff.Parameter(parameter))
}

func (s bundledSession) SetParameter(parameter Parameter, value uint64) error {
	return s.session.SetParameter(sniff.Parameter(parameter), value)
}

func (s bundledSession) Identify(path string) (string, error) {
	return s.session.Identify(path)
}

// BundledEngine returns an Engine backed by the bundled rule-based
// identification engine. Options configure the underlying engine, such as
// the filesystem it reads files from.
func BundledEngine(opts ...sniff.Option) Engine {
	return bundled{engine: sniff.New(opts...)}
}
