package sniff

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

const detectRules = `rules:
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

// newDetectSession opens a session over an in-memory filesystem seeded
// with the PNG and shell rules plus the given files.
func newDetectSession(t *testing.T, flags Flag, files map[string][]byte) (*Session, billy.Filesystem) {
	t.Helper()

	fsys := memfs.New()
	if err := util.WriteFile(fsys, "/db/magic.yaml", []byte(detectRules), 0o644); err != nil {
		t.Fatalf("WriteFile(database): setup failed: %v", err)
	}
	for path, content := range files {
		if err := util.WriteFile(fsys, path, content, 0o644); err != nil {
			t.Fatalf("WriteFile(%q): setup failed: %v", path, err)
		}
	}

	session, err := New(WithFilesystem(fsys), WithWorkDir("/")).Open(flags)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := session.Load("/db/magic.yaml"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session, fsys
}

var pngBytes = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

func TestIdentify_States(t *testing.T) {
	session, err := New(WithFilesystem(memfs.New()), WithWorkDir("/")).Open(FlagNone)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := session.Identify("/x"); !errors.Is(err, ErrNoDatabase) {
		t.Errorf("Identify() before Load(): error = %v, want ErrNoDatabase", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := session.Identify("/x"); !errors.Is(err, ErrClosedSession) {
		t.Errorf("Identify() after Close(): error = %v, want ErrClosedSession", err)
	}
}

func TestIdentify_RuleMatch(t *testing.T) {
	session, _ := newDetectSession(t, FlagNone, map[string][]byte{
		"/files/image.png": pngBytes,
		"/files/script.sh": []byte("#!/bin/sh\nexit 0\n"),
	})

	got, err := session.Identify("/files/image.png")
	if err != nil {
		t.Fatalf("Identify(image.png) error = %v", err)
	}
	if got != "PNG image data" {
		t.Errorf("Identify(image.png) = %q, want %q", got, "PNG image data")
	}

	got, err = session.Identify("/files/script.sh")
	if err != nil {
		t.Fatalf("Identify(script.sh) error = %v", err)
	}
	if got != "POSIX shell script text executable" {
		t.Errorf("Identify(script.sh) = %q, want %q", got, "POSIX shell script text executable")
	}
}

func TestIdentify_FirstMatchWins(t *testing.T) {
	const overlapping = `rules:
  - description: first match
    tests:
      - offset: 0
        string: AB
  - description: second match
    tests:
      - offset: 0
        string: A
`
	fsys := memfs.New()
	if err := util.WriteFile(fsys, "/db/magic.yaml", []byte(overlapping), 0o644); err != nil {
		t.Fatalf("WriteFile: setup failed: %v", err)
	}
	if err := util.WriteFile(fsys, "/files/ab", []byte("ABCD"), 0o644); err != nil {
		t.Fatalf("WriteFile: setup failed: %v", err)
	}

	session, err := New(WithFilesystem(fsys), WithWorkDir("/")).Open(FlagNone)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()
	if err := session.Load("/db/magic.yaml"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got, err := session.Identify("/files/ab")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got != "first match" {
		t.Errorf("Identify() = %q, want %q", got, "first match")
	}

	// Under continue-search every matching description is reported.
	if err := session.SetFlags(FlagContinueSearch); err != nil {
		t.Fatalf("SetFlags() error = %v", err)
	}
	got, err = session.Identify("/files/ab")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if want := "first match\n- second match"; got != want {
		t.Errorf("Identify() = %q, want %q", got, want)
	}
}

// fakeInfo fabricates the stat modes the in-memory filesystem cannot
// produce.
type fakeInfo struct {
	mode os.FileMode
}

func (f fakeInfo) Name() string       { return "fake" }
func (f fakeInfo) Size() int64        { return 0 }
func (f fakeInfo) Mode() os.FileMode  { return f.mode }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.mode.IsDir() }
func (f fakeInfo) Sys() any           { return nil }

func TestDetectFile_InodeTypes(t *testing.T) {
	session, _ := newDetectSession(t, FlagNone, nil)

	tests := []struct {
		name            string
		mode            os.FileMode
		wantDescription string
		wantMIME        string
	}{
		{"directory", os.ModeDir, "directory", "inode/directory"},
		{"fifo", os.ModeNamedPipe, "fifo (named pipe)", "inode/fifo"},
		{"socket", os.ModeSocket, "socket", "inode/socket"},
		{"character device", os.ModeDevice | os.ModeCharDevice, "character special", "inode/chardevice"},
		{"block device", os.ModeDevice, "block special", "inode/blockdevice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := session.detectFile("/dev/fake", fakeInfo{mode: tt.mode})
			if err != nil {
				t.Fatalf("detectFile() error = %v", err)
			}
			if d.description != tt.wantDescription {
				t.Errorf("description = %q, want %q", d.description, tt.wantDescription)
			}
			if d.mime != tt.wantMIME {
				t.Errorf("mime = %q, want %q", d.mime, tt.wantMIME)
			}
			if d.charset != charsetBinary {
				t.Errorf("charset = %q, want %q", d.charset, charsetBinary)
			}
		})
	}
}

func TestIdentify_Directory(t *testing.T) {
	session, fsys := newDetectSession(t, FlagNone, nil)
	if err := fsys.MkdirAll("/files/sub", 0o755); err != nil {
		t.Fatalf("MkdirAll: setup failed: %v", err)
	}

	got, err := session.Identify("/files/sub")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got != "directory" {
		t.Errorf("Identify() = %q, want %q", got, "directory")
	}

	if err := session.SetFlags(FlagMime); err != nil {
		t.Fatalf("SetFlags() error = %v", err)
	}
	got, err = session.Identify("/files/sub")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if want := "inode/directory; charset=binary"; got != want {
		t.Errorf("Identify() = %q, want %q", got, want)
	}
}

func TestIdentify_Empty(t *testing.T) {
	session, _ := newDetectSession(t, FlagNone, map[string][]byte{
		"/files/empty": nil,
	})

	got, err := session.Identify("/files/empty")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got != "empty" {
		t.Errorf("Identify() = %q, want %q", got, "empty")
	}

	if err := session.SetFlags(FlagMime); err != nil {
		t.Fatalf("SetFlags() error = %v", err)
	}
	got, err = session.Identify("/files/empty")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if want := "application/x-empty; charset=binary"; got != want {
		t.Errorf("Identify() = %q, want %q", got, want)
	}
}

func TestIdentify_Symlinks(t *testing.T) {
	session, fsys := newDetectSession(t, FlagNone, map[string][]byte{
		"/files/image.png": pngBytes,
	})
	if err := fsys.Symlink("/files/image.png", "/files/link.png"); err != nil {
		t.Fatalf("Symlink: setup failed: %v", err)
	}

	got, err := session.Identify("/files/link.png")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if want := "symbolic link to /files/image.png"; got != want {
		t.Errorf("Identify() = %q, want %q", got, want)
	}

	// Following the link identifies the target instead.
	if err := session.SetFlags(FlagSymlink); err != nil {
		t.Fatalf("SetFlags() error = %v", err)
	}
	got, err = session.Identify("/files/link.png")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got != "PNG image data" {
		t.Errorf("Identify() = %q, want %q", got, "PNG image data")
	}
}

func TestIdentify_TextClassification(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		want     string
		wantMime string
	}{
		{
			name:     "ascii",
			content:  []byte("hello world\n"),
			want:     "ASCII text",
			wantMime: "text/plain; charset=us-ascii",
		},
		{
			name:     "utf-8",
			content:  []byte("h\xc3\xa9llo\n"),
			want:     "UTF-8 Unicode text",
			wantMime: "text/plain; charset=utf-8",
		},
		{
			name:     "utf-8 with bom",
			content:  append([]byte{0xef, 0xbb, 0xbf}, "hello\n"...),
			want:     "UTF-8 Unicode (with BOM) text",
			wantMime: "text/plain; charset=utf-8",
		},
		{
			name:     "utf-16 little endian",
			content:  []byte{0xff, 0xfe, 'h', 0x00, 'i', 0x00},
			want:     "Little-endian UTF-16 Unicode text",
			wantMime: "text/plain; charset=utf-16le",
		},
		{
			name:     "utf-16 big endian",
			content:  []byte{0xfe, 0xff, 0x00, 'h', 0x00, 'i'},
			want:     "Big-endian UTF-16 Unicode text",
			wantMime: "text/plain; charset=utf-16be",
		},
		{
			name:     "latin1",
			content:  []byte("caf\xe9\n"),
			want:     "ISO-8859 text",
			wantMime: "text/plain; charset=iso-8859-1",
		},
		{
			name:     "extended ascii",
			content:  []byte("abc\x85def\n"),
			want:     "Non-ISO extended-ASCII text",
			wantMime: "text/plain; charset=unknown-8bit",
		},
		{
			name:     "binary",
			content:  []byte{0x00, 0x01, 0x02, 0x03},
			want:     "data",
			wantMime: "application/octet-stream; charset=binary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/files/" + tt.name
			session, _ := newDetectSession(t, FlagNone, map[string][]byte{path: tt.content})

			got, err := session.Identify(path)
			if err != nil {
				t.Fatalf("Identify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Identify() = %q, want %q", got, tt.want)
			}

			if err := session.SetFlags(FlagMime); err != nil {
				t.Fatalf("SetFlags() error = %v", err)
			}
			got, err = session.Identify(path)
			if err != nil {
				t.Fatalf("Identify() error = %v", err)
			}
			if got != tt.wantMime {
				t.Errorf("Identify() under FlagMime = %q, want %q", got, tt.wantMime)
			}
		})
	}
}

func TestIdentify_JSON(t *testing.T) {
	session, _ := newDetectSession(t, FlagNone, map[string][]byte{
		"/files/object.json":  []byte(`{"name": "value"}`),
		"/files/array.json":   []byte(`[1, 2, 3]`),
		"/files/partial.json": []byte(`{"name": `),
		"/files/plain.txt":    []byte(`name value`),
	})

	for _, path := range []string{"/files/object.json", "/files/array.json"} {
		got, err := session.Identify(path)
		if err != nil {
			t.Fatalf("Identify(%q) error = %v", path, err)
		}
		if got != "JSON text data" {
			t.Errorf("Identify(%q) = %q, want %q", path, got, "JSON text data")
		}
	}

	// Incomplete documents and non-JSON text stay plain text.
	for _, path := range []string{"/files/partial.json", "/files/plain.txt"} {
		got, err := session.Identify(path)
		if err != nil {
			t.Fatalf("Identify(%q) error = %v", path, err)
		}
		if got != "ASCII text" {
			t.Errorf("Identify(%q) = %q, want %q", path, got, "ASCII text")
		}
	}

	if err := session.SetFlags(FlagMime); err != nil {
		t.Fatalf("SetFlags() error = %v", err)
	}
	got, err := session.Identify("/files/object.json")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if want := "application/json; charset=us-ascii"; got != want {
		t.Errorf("Identify() = %q, want %q", got, want)
	}

	if err := session.SetFlags(FlagNoCheckJSON); err != nil {
		t.Fatalf("SetFlags() error = %v", err)
	}
	got, err = session.Identify("/files/object.json")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got != "ASCII text" {
		t.Errorf("Identify() under FlagNoCheckJSON = %q, want %q", got, "ASCII text")
	}
}

func TestIdentify_NoCheckFlags(t *testing.T) {
	files := map[string][]byte{
		"/files/image.png": pngBytes,
		"/files/note.txt":  []byte("plain text\n"),
	}

	t.Run("no check soft", func(t *testing.T) {
		session, _ := newDetectSession(t, FlagNoCheckSoft, files)

		got, err := session.Identify("/files/image.png")
		if err != nil {
			t.Fatalf("Identify() error = %v", err)
		}
		if got != "data" {
			t.Errorf("Identify() = %q, want %q", got, "data")
		}
	})

	t.Run("no check text", func(t *testing.T) {
		session, _ := newDetectSession(t, FlagNoCheckText, files)

		got, err := session.Identify("/files/note.txt")
		if err != nil {
			t.Fatalf("Identify() error = %v", err)
		}
		if got != "data" {
			t.Errorf("Identify() = %q, want %q", got, "data")
		}
	})

	t.Run("no check encoding", func(t *testing.T) {
		session, _ := newDetectSession(t, FlagNoCheckEncoding, files)

		got, err := session.Identify("/files/note.txt")
		if err != nil {
			t.Fatalf("Identify() error = %v", err)
		}
		if got != "data" {
			t.Errorf("Identify() = %q, want %q", got, "data")
		}
	})

	t.Run("no check builtin keeps rule matching", func(t *testing.T) {
		session, _ := newDetectSession(t, FlagNoCheckBuiltin, files)

		got, err := session.Identify("/files/image.png")
		if err != nil {
			t.Fatalf("Identify() error = %v", err)
		}
		if got != "PNG image data" {
			t.Errorf("Identify() = %q, want %q", got, "PNG image data")
		}

		got, err = session.Identify("/files/note.txt")
		if err != nil {
			t.Fatalf("Identify() error = %v", err)
		}
		if got != "data" {
			t.Errorf("Identify() = %q, want %q", got, "data")
		}
	})
}

func TestIdentify_DebugLogging(t *testing.T) {
	fsys := memfs.New()
	if err := util.WriteFile(fsys, "/db/magic.yaml", []byte(detectRules), 0o644); err != nil {
		t.Fatalf("WriteFile: setup failed: %v", err)
	}
	if err := util.WriteFile(fsys, "/files/image.png", pngBytes, 0o644); err != nil {
		t.Fatalf("WriteFile: setup failed: %v", err)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine := New(WithFilesystem(fsys), WithWorkDir("/"), WithLogger(logger))

	session, err := engine.Open(FlagDebug)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()
	if err := session.Load("/db/magic.yaml"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := session.Identify("/files/image.png"); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	logged := buf.String()
	if !strings.Contains(logged, "/files/image.png") || !strings.Contains(logged, "PNG image data") {
		t.Errorf("debug log = %q, want the path and description", logged)
	}

	// Without the debug flag nothing is traced.
	buf.Reset()
	if err := session.SetFlags(FlagNone); err != nil {
		t.Fatalf("SetFlags() error = %v", err)
	}
	if _, err := session.Identify("/files/image.png"); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("debug log = %q, want empty without the debug flag", buf.String())
	}
}

func TestIdentify_BytesMax(t *testing.T) {
	session, _ := newDetectSession(t, FlagNone, map[string][]byte{
		"/files/long.json": []byte(`{"name": "value"}`),
	})

	if err := session.SetParameter(ParameterBytesMax, 4); err != nil {
		t.Fatalf("SetParameter() error = %v", err)
	}

	// A truncated read never classifies as JSON.
	got, err := session.Identify("/files/long.json")
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if got != "ASCII text" {
		t.Errorf("Identify() = %q, want %q", got, "ASCII text")
	}
}

func TestIdentify_Render(t *testing.T) {
	d := detection{
		description: "PNG image data",
		mime:        "image/png",
		charset:     charsetBinary,
		extensions:  []string{"png"},
	}

	tests := []struct {
		name  string
		flags Flag
		want  string
	}{
		{"description", FlagNone, "PNG image data"},
		{"mime type", FlagMimeType, "image/png"},
		{"mime encoding", FlagMimeEncoding, "binary"},
		{"mime", FlagMime, "image/png; charset=binary"},
		{"extension", FlagExtension, "png"},
		{"apple", FlagApple, "UNKNUNKN"},
		{"extension beats apple", FlagExtension | FlagApple, "png"},
		{"extension beats mime", FlagExtension | FlagMime, "png"},
		{"apple beats mime", FlagApple | FlagMime, "UNKNUNKN"},
		{"no description shorthand", FlagNoDesc, "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{flags: normalizeFlags(tt.flags)}
			if got := s.render(d); got != tt.want {
				t.Errorf("render() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("extension fallback", func(t *testing.T) {
		s := &Session{flags: FlagExtension}
		if got := s.render(detection{description: "data"}); got != "???" {
			t.Errorf("render() = %q, want %q", got, "???")
		}
	})

	t.Run("multiple extensions", func(t *testing.T) {
		s := &Session{flags: FlagExtension}
		multi := detection{extensions: []string{"jpg", "jpeg"}}
		if got := s.render(multi); got != "jpg/jpeg" {
			t.Errorf("render() = %q, want %q", got, "jpg/jpeg")
		}
	})
}

func TestNormalizeFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags Flag
		want  Flag
	}{
		{
			name:  "mime expands to type and encoding",
			flags: FlagMime,
			want:  FlagMime | FlagMimeType | FlagMimeEncoding,
		},
		{
			name:  "no description expands through mime",
			flags: FlagNoDesc,
			want: FlagNoDesc | FlagExtension | FlagApple | FlagMime |
				FlagMimeType | FlagMimeEncoding,
		},
		{
			name:  "no check builtin leaves soft checks on",
			flags: FlagNoCheckBuiltin,
			want: FlagNoCheckBuiltin | FlagNoCheckCompress | FlagNoCheckTar |
				FlagNoCheckAppType | FlagNoCheckElf | FlagNoCheckText |
				FlagNoCheckCdf | FlagNoCheckCsv | FlagNoCheckTokens |
				FlagNoCheckEncoding | FlagNoCheckJSON | FlagNoCheckSimh,
		},
		{
			name:  "plain flags pass through",
			flags: FlagSymlink | FlagDevices,
			want:  FlagSymlink | FlagDevices,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeFlags(tt.flags); got != tt.want {
				t.Errorf("normalizeFlags(%#x) = %#x, want %#x", uint64(tt.flags), uint64(got), uint64(tt.want))
			}
		})
	}
}

func TestValidateFlags(t *testing.T) {
	if err := validateFlags(definedFlags); err != nil {
		t.Errorf("validateFlags(defined mask) error = %v, want nil", err)
	}
	if err := validateFlags(Flag(1) << 30); !errors.Is(err, ErrUnsupportedFlags) {
		t.Errorf("validateFlags(1<<30) error = %v, want ErrUnsupportedFlags", err)
	}
	if err := validateFlags(Flag(1) << 40); !errors.Is(err, ErrUnsupportedFlags) {
		t.Errorf("validateFlags(1<<40) error = %v, want ErrUnsupportedFlags", err)
	}
}

func TestSetParameter_Range(t *testing.T) {
	session, err := New(WithFilesystem(memfs.New()), WithWorkDir("/")).Open(FlagNone)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	if err := session.SetParameter(ParameterBytesMax, maxParameterValue); err != nil {
		t.Errorf("SetParameter(max) error = %v, want nil", err)
	}
	if err := session.SetParameter(ParameterBytesMax, maxParameterValue+1); !errors.Is(err, ErrParameterOutOfRange) {
		t.Errorf("SetParameter(max+1) error = %v, want ErrParameterOutOfRange", err)
	}
	if err := session.SetParameter(Parameter(99), 1); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("SetParameter(unknown) error = %v, want ErrUnknownParameter", err)
	}
	if _, err := session.Parameter(Parameter(99)); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("Parameter(unknown) error = %v, want ErrUnknownParameter", err)
	}

	// Sessions do not share parameter values.
	other, err := New(WithFilesystem(memfs.New()), WithWorkDir("/")).Open(FlagNone)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer other.Close()

	value, err := other.Parameter(ParameterBytesMax)
	if err != nil {
		t.Fatalf("Parameter() error = %v", err)
	}
	if value != defaultParameters[ParameterBytesMax] {
		t.Errorf("Parameter() = %d, want the default %d", value, defaultParameters[ParameterBytesMax])
	}
}
