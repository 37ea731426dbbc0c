package magic

import (
	"github.com/go-git/go-billy/v5"
)

// Option is a function that configures a Magic handle at construction.
type Option func(*config)

// config collects the construction options applied by New.
type config struct {
	flags           Flag
	database        string
	defaultDatabase string
	engine          Engine
	fsys            billy.Filesystem
}

// WithFlags returns an Option that sets the flags the handle is opened
// with. The default is FlagNone.
func WithFlags(flags Flag) Option {
	return func(c *config) {
		c.flags = flags
	}
}

// WithDatabase returns an Option that loads the database file at path
// right after opening. When loading fails, New closes the handle again and
// returns the error.
func WithDatabase(path string) Option {
	return func(c *config) {
		c.database = path
	}
}

// WithDefaultDatabase returns an Option that replaces the compiled-in
// default database path. The environment variable named by
// DefaultDatabaseEnv still takes precedence when set.
func WithDefaultDatabase(path string) Option {
	return func(c *config) {
		c.defaultDatabase = path
	}
}

// WithEngine returns an Option that replaces the bundled identification
// engine.
func WithEngine(engine Engine) Option {
	return func(c *config) {
		c.engine = engine
	}
}

// WithFilesystem returns an Option that replaces the filesystem the handle
// scans and the bundled engine reads files from. The default is the host
// filesystem rooted at /.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(c *config) {
		c.fsys = fsys
	}
}
