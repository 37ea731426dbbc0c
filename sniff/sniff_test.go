package sniff_test

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"

	"github.com/jmgilman/go/magic"
	"github.com/jmgilman/go/magic/enginetest"
	"github.com/jmgilman/go/magic/sniff"
)

func TestBundledEngine(t *testing.T) {
	enginetest.TestEngine(t, func(t *testing.T) (magic.Engine, billy.Filesystem) {
		fsys := memfs.New()
		return magic.BundledEngine(
			sniff.WithFilesystem(fsys),
			sniff.WithWorkDir("/"),
		), fsys
	})
}

func TestBundledEngine_RejectsUndefinedFlags(t *testing.T) {
	engine := magic.BundledEngine(sniff.WithFilesystem(memfs.New()), sniff.WithWorkDir("/"))

	if _, err := engine.Open(magic.Flag(1) << 40); err == nil {
		t.Error("Open(undefined flag) error = nil, want an error")
	}

	session, err := engine.Open(magic.FlagNone)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	if err := session.SetFlags(magic.Flag(1) << 30); err == nil {
		t.Error("SetFlags(undefined flag) error = nil, want an error")
	}
}

func TestEngineVersion(t *testing.T) {
	engine := sniff.New()
	if got := engine.Version(); got != sniff.EngineVersion {
		t.Errorf("Version() = %q, want %q", got, sniff.EngineVersion)
	}
}
