// Package enginetest provides a conformance test suite for validating
// identification engines against the magic.Engine contract.
//
// The suite exercises the whole engine surface: version reporting, session
// lifecycle, the defined flag and parameter enumerations, database loading,
// checking and compilation, and the identification results for the common
// content classes. Engine implementations import the suite and run it
// against a factory:
//
//	func TestBundledEngine(t *testing.T) {
//		enginetest.TestEngine(t, func(t *testing.T) (magic.Engine, billy.Filesystem) {
//			fsys := memfs.New()
//			return magic.BundledEngine(
//				sniff.WithFilesystem(fsys),
//				sniff.WithWorkDir("/"),
//			), fsys
//		})
//	}
package enginetest

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/jmgilman/go/magic"
)

// Factory builds the engine under test together with the filesystem it
// reads files from. It is called once per subtest, so every subtest works
// on a fresh engine.
type Factory func(t *testing.T) (magic.Engine, billy.Filesystem)

// databaseYAML is the rule database the suite loads for identification.
const databaseYAML = `rules:
  - description: PNG image data
    mime: image/png
    extensions: [png]
    tests:
      - offset: 0
        hex: 89504e470d0a1a0a
  - description: POSIX shell script text executable
    mime: text/x-shellscript
    extensions: [sh]
    text: true
    tests:
      - offset: 0
        string: "#!/bin/sh"
`

// brokenYAML parses as YAML but violates the rule schema.
const brokenYAML = `rules:
  - mime: application/x-test
    tests:
      - offset: 0
        hex: ff
`

// definedFlags lists every flag of the enumeration an engine must accept.
var definedFlags = []magic.Flag{
	magic.FlagDebug, magic.FlagSymlink, magic.FlagCompress, magic.FlagDevices,
	magic.FlagMimeType, magic.FlagContinueSearch, magic.FlagCheckDatabase,
	magic.FlagPreserveAtime, magic.FlagRaw, magic.FlagError,
	magic.FlagMimeEncoding, magic.FlagMime, magic.FlagApple,
	magic.FlagExtension, magic.FlagCompressTransp, magic.FlagNoCompressFork,
	magic.FlagNoDesc, magic.FlagNoCheckCompress, magic.FlagNoCheckTar,
	magic.FlagNoCheckSoft, magic.FlagNoCheckAppType, magic.FlagNoCheckElf,
	magic.FlagNoCheckText, magic.FlagNoCheckCdf, magic.FlagNoCheckCsv,
	magic.FlagNoCheckTokens, magic.FlagNoCheckEncoding, magic.FlagNoCheckJSON,
	magic.FlagNoCheckSimh, magic.FlagNoCheckBuiltin,
}

// definedParameters lists every parameter of the enumeration an engine
// must carry.
var definedParameters = []magic.Parameter{
	magic.ParameterIndirMax, magic.ParameterNameMax, magic.ParameterElfPhnumMax,
	magic.ParameterElfShnumMax, magic.ParameterElfNotesMax, magic.ParameterRegexMax,
	magic.ParameterBytesMax, magic.ParameterEncodingMax, magic.ParameterElfShsizeMax,
	magic.ParameterMagWarnMax,
}

// TestEngine runs the whole conformance suite against the engine built by
// factory.
func TestEngine(t *testing.T, factory Factory) {
	t.Run("Version", func(t *testing.T) {
		TestVersion(t, factory)
	})
	t.Run("SessionLifecycle", func(t *testing.T) {
		TestSessionLifecycle(t, factory)
	})
	t.Run("Flags", func(t *testing.T) {
		TestFlags(t, factory)
	})
	t.Run("Parameters", func(t *testing.T) {
		TestParameters(t, factory)
	})
	t.Run("Databases", func(t *testing.T) {
		TestDatabases(t, factory)
	})
	t.Run("Identification", func(t *testing.T) {
		TestIdentification(t, factory)
	})
}

// WriteDatabase writes the suite's rule database onto fsys and returns its
// path.
func WriteDatabase(t *testing.T, fsys billy.Filesystem) string {
	t.Helper()

	const path = "/enginetest/magic.yaml"
	if err := util.WriteFile(fsys, path, []byte(databaseYAML), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): setup failed: %v", path, err)
	}
	return path
}

// openValid opens a session with the given flags and loads the suite
// database into it.
func openValid(t *testing.T, factory Factory, flags magic.Flag) (magic.EngineSession, billy.Filesystem) {
	t.Helper()

	engine, fsys := factory(t)
	path := WriteDatabase(t, fsys)

	session, err := engine.Open(flags)
	if err != nil {
		t.Fatalf("Open(%v): got error %v, want nil", flags, err)
	}
	if err := session.Load(path); err != nil {
		t.Fatalf("Load(%q): got error %v, want nil", path, err)
	}
	return session, fsys
}

// TestVersion tests that the engine reports a non-empty version.
func TestVersion(t *testing.T, factory Factory) {
	engine, _ := factory(t)
	if engine.Version() == "" {
		t.Error("Version(): got empty string, want a version")
	}
}

// TestSessionLifecycle tests opening, closing, and operating on closed
// sessions.
func TestSessionLifecycle(t *testing.T, factory Factory) {
	engine, fsys := factory(t)
	path := WriteDatabase(t, fsys)

	session, err := engine.Open(magic.FlagNone)
	if err != nil {
		t.Fatalf("Open(FlagNone): got error %v, want nil", err)
	}

	// Identification before any database is loaded must fail.
	if _, err := session.Identify(path); err == nil {
		t.Error("Identify() before Load(): got nil error, want an error")
	}

	if err := session.Load(path); err != nil {
		t.Fatalf("Load(%q): got error %v, want nil", path, err)
	}
	if _, err := session.Identify(path); err != nil {
		t.Errorf("Identify(%q): got error %v, want nil", path, err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close(): got error %v, want nil", err)
	}

	if _, err := session.Identify(path); err == nil {
		t.Error("Identify() after Close(): got nil error, want an error")
	}
	if err := session.Load(path); err == nil {
		t.Error("Load() after Close(): got nil error, want an error")
	}
	if err := session.SetFlags(magic.FlagMime); err == nil {
		t.Error("SetFlags() after Close(): got nil error, want an error")
	}
}

// TestFlags tests that every flag of the enumeration is accepted at open
// time and by SetFlags.
func TestFlags(t *testing.T, factory Factory) {
	engine, _ := factory(t)

	var mask magic.Flag
	for _, flag := range definedFlags {
		mask |= flag
		session, err := engine.Open(flag)
		if err != nil {
			t.Errorf("Open(%v): got error %v, want nil", flag, err)
			continue
		}
		if err := session.Close(); err != nil {
			t.Errorf("Close(): got error %v", err)
		}
	}

	session, err := engine.Open(magic.FlagNone)
	if err != nil {
		t.Fatalf("Open(FlagNone): got error %v, want nil", err)
	}
	defer session.Close()

	if err := session.SetFlags(mask); err != nil {
		t.Errorf("SetFlags(%v): got error %v, want nil", mask, err)
	}
}

// TestParameters tests reading and writing every parameter of the
// enumeration, and that unknown parameters are rejected.
func TestParameters(t *testing.T, factory Factory) {
	engine, _ := factory(t)

	session, err := engine.Open(magic.FlagNone)
	if err != nil {
		t.Fatalf("Open(FlagNone): got error %v, want nil", err)
	}
	defer session.Close()

	for _, parameter := range definedParameters {
		if _, err := session.Parameter(parameter); err != nil {
			t.Errorf("Parameter(%v): got error %v, want nil", parameter, err)
			continue
		}
		if err := session.SetParameter(parameter, 42); err != nil {
			t.Errorf("SetParameter(%v, 42): got error %v, want nil", parameter, err)
			continue
		}
		value, err := session.Parameter(parameter)
		if err != nil {
			t.Errorf("Parameter(%v): got error %v, want nil", parameter, err)
			continue
		}
		if value != 42 {
			t.Errorf("Parameter(%v): got %d, want 42", parameter, value)
		}
	}

	unknown := magic.Parameter(len(definedParameters) + 7)
	if _, err := session.Parameter(unknown); err == nil {
		t.Errorf("Parameter(%v): got nil error, want an error", unknown)
	}
	if err := session.SetParameter(unknown, 1); err == nil {
		t.Errorf("SetParameter(%v, 1): got nil error, want an error", unknown)
	}
}

// TestDatabases tests loading, checking and compiling databases.
func TestDatabases(t *testing.T, factory Factory) {
	t.Run("LoadMissing", func(t *testing.T) {
		engine, _ := factory(t)
		session, err := engine.Open(magic.FlagNone)
		if err != nil {
			t.Fatalf("Open(FlagNone): got error %v, want nil", err)
		}
		defer session.Close()

		if err := session.Load("/enginetest/missing.yaml"); err == nil {
			t.Error("Load(missing): got nil error, want an error")
		}
	})

	t.Run("LoadBroken", func(t *testing.T) {
		engine, fsys := factory(t)
		const path = "/enginetest/broken.yaml"
		if err := util.WriteFile(fsys, path, []byte(brokenYAML), 0o644); err != nil {
			t.Fatalf("WriteFile(%q): setup failed: %v", path, err)
		}

		session, err := engine.Open(magic.FlagNone)
		if err != nil {
			t.Fatalf("Open(FlagNone): got error %v, want nil", err)
		}
		defer session.Close()

		if err := session.Load(path); err == nil {
			t.Error("Load(broken): got nil error, want an error")
		}
	})

	t.Run("Check", func(t *testing.T) {
		engine, fsys := factory(t)
		good := WriteDatabase(t, fsys)

		const bad = "/enginetest/broken.yaml"
		if err := util.WriteFile(fsys, bad, []byte(brokenYAML), 0o644); err != nil {
			t.Fatalf("WriteFile(%q): setup failed: %v", bad, err)
		}

		if !engine.Check(good) {
			t.Errorf("Check(%q): got false, want true", good)
		}
		if engine.Check(bad) {
			t.Errorf("Check(%q): got true, want false", bad)
		}
		if engine.Check("/enginetest/missing.yaml") {
			t.Error("Check(missing): got true, want false")
		}
	})

	t.Run("Compile", func(t *testing.T) {
		engine, fsys := factory(t)
		good := WriteDatabase(t, fsys)

		if err := engine.Compile(good); err != nil {
			t.Errorf("Compile(%q): got error %v, want nil", good, err)
		}
		if err := engine.Compile("/enginetest/missing.yaml"); err == nil {
			t.Error("Compile(missing): got nil error, want an error")
		}
	})
}

// TestIdentification tests the identification results for the common
// content classes, under the default rendering and under FlagMime.
func TestIdentification(t *testing.T, factory Factory) {
	fixtures := []struct {
		path    string
		content []byte
	}{
		{"/files/ascii.txt", []byte("text")},
		{"/files/data.bin", []byte{0x00, 0x01, 0x02, 0x03}},
		{"/files/empty", nil},
		{"/files/image.png", []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}},
		{"/files/script.sh", []byte("#!/bin/sh\necho hello\n")},
	}

	write := func(t *testing.T, fsys billy.Filesystem) {
		t.Helper()
		for _, fixture := range fixtures {
			if err := util.WriteFile(fsys, fixture.path, fixture.content, 0o644); err != nil {
				t.Fatalf("WriteFile(%q): setup failed: %v", fixture.path, err)
			}
		}
		if err := fsys.MkdirAll("/files/sub", 0o755); err != nil {
			t.Fatalf("MkdirAll(/files/sub): setup failed: %v", err)
		}
	}

	t.Run("Descriptions", func(t *testing.T) {
		session, fsys := openValid(t, factory, magic.FlagNone)
		defer session.Close()
		write(t, fsys)

		expected := map[string]string{
			"/files/ascii.txt": "ASCII text",
			"/files/data.bin":  "data",
			"/files/empty":     "empty",
			"/files/image.png": "PNG image data",
			"/files/script.sh": "POSIX shell script text executable",
			"/files/sub":       "directory",
		}
		for path, want := range expected {
			got, err := session.Identify(path)
			if err != nil {
				t.Errorf("Identify(%q): got error %v, want nil", path, err)
				continue
			}
			if got != want {
				t.Errorf("Identify(%q): got %q, want %q", path, got, want)
			}
		}
	})

	t.Run("Mime", func(t *testing.T) {
		session, fsys := openValid(t, factory, magic.FlagMime)
		defer session.Close()
		write(t, fsys)

		expected := map[string]string{
			"/files/ascii.txt": "text/plain; charset=us-ascii",
			"/files/data.bin":  "application/octet-stream; charset=binary",
			"/files/empty":     "application/x-empty; charset=binary",
			"/files/image.png": "image/png; charset=binary",
			"/files/script.sh": "text/x-shellscript; charset=us-ascii",
			"/files/sub":       "inode/directory; charset=binary",
		}
		for path, want := range expected {
			got, err := session.Identify(path)
			if err != nil {
				t.Errorf("Identify(%q): got error %v, want nil", path, err)
				continue
			}
			if got != want {
				t.Errorf("Identify(%q): got %q, want %q", path, got, want)
			}
		}
	})

	t.Run("RenderSwitch", func(t *testing.T) {
		session, fsys := openValid(t, factory, magic.FlagNone)
		defer session.Close()
		write(t, fsys)

		if err := session.SetFlags(magic.FlagMimeType); err != nil {
			t.Fatalf("SetFlags(FlagMimeType): got error %v, want nil", err)
		}
		got, err := session.Identify("/files/image.png")
		if err != nil {
			t.Fatalf("Identify(image.png): got error %v, want nil", err)
		}
		if got != "image/png" {
			t.Errorf("Identify(image.png): got %q, want %q", got, "image/png")
		}

		if err := session.SetFlags(magic.FlagMimeEncoding); err != nil {
			t.Fatalf("SetFlags(FlagMimeEncoding): got error %v, want nil", err)
		}
		got, err = session.Identify("/files/ascii.txt")
		if err != nil {
			t.Fatalf("Identify(ascii.txt): got error %v, want nil", err)
		}
		if got != "us-ascii" {
			t.Errorf("Identify(ascii.txt): got %q, want %q", got, "us-ascii")
		}

		if err := session.SetFlags(magic.FlagExtension); err != nil {
			t.Fatalf("SetFlags(FlagExtension): got error %v, want nil", err)
		}
		got, err = session.Identify("/files/image.png")
		if err != nil {
			t.Fatalf("Identify(image.png): got error %v, want nil", err)
		}
		if got != "png" {
			t.Errorf("Identify(image.png): got %q, want %q", got, "png")
		}
	})

	t.Run("NonexistentPath", func(t *testing.T) {
		session, _ := openValid(t, factory, magic.FlagNone)
		defer session.Close()

		if _, err := session.Identify("/files/missing.bin"); err == nil {
			t.Error("Identify(missing): got nil error, want an error")
		}
	})

	t.Run("ContinueSearch", func(t *testing.T) {
		session, fsys := openValid(t, factory, magic.FlagContinueSearch)
		defer session.Close()
		write(t, fsys)

		got, err := session.Identify("/files/image.png")
		if err != nil {
			t.Fatalf("Identify(image.png): got error %v, want nil", err)
		}
		if !strings.Contains(got, "PNG image data") {
			t.Errorf("Identify(image.png): got %q, want it to contain %q", got, "PNG image data")
		}
	})
}
