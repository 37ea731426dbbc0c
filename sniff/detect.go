package sniff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Charsets the engine reports.
const (
	charsetASCII    = "us-ascii"
	charsetUTF8     = "utf-8"
	charsetUTF16LE  = "utf-16le"
	charsetUTF16BE  = "utf-16be"
	charsetISO8859  = "iso-8859-1"
	charsetExtended = "unknown-8bit"
	charsetBinary   = "binary"
)

// detection is the raw identification of one file before rendering.
type detection struct {
	description string
	mime        string
	charset     string
	extensions  []string
}

// textEncoding is the outcome of charset detection over a content prefix.
// A binary charset means the content does not look like text at all.
type textEncoding struct {
	charset     string
	description string
}

// Identify inspects the file at path and returns its identification,
// rendered according to the session flags.
func (s *Session) Identify(path string) (string, error) {
	if s.closed {
		return "", ErrClosedSession
	}
	if !s.loaded {
		return "", ErrNoDatabase
	}

	d, err := s.detect(path)
	if err != nil {
		if s.flags&FlagDebug != 0 {
			s.engine.logger.Debug("identify failed", "path", path, "error", err)
		}
		return "", err
	}
	if s.flags&FlagDebug != 0 {
		s.engine.logger.Debug("identify",
			"path", path,
			"description", d.description,
			"mime", d.mime,
			"charset", d.charset,
		)
	}
	return s.render(d), nil
}

// detect resolves what the path points at. Symlinks are identified as
// links unless FlagSymlink asks for their target.
func (s *Session) detect(path string) (detection, error) {
	fsys := s.engine.fsys

	if s.flags&FlagSymlink != 0 {
		info, err := fsys.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if target, rerr := fsys.Readlink(path); rerr == nil {
					return detection{
						description: "broken symbolic link to " + target,
						mime:        "inode/symlink",
						charset:     charsetBinary,
					}, nil
				}
			}
			return detection{}, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		return s.detectFile(path, info)
	}

	info, err := fsys.Lstat(path)
	if err != nil {
		return detection{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := fsys.Readlink(path)
		if err != nil {
			return detection{}, fmt.Errorf("failed to read link %s: %w", path, err)
		}
		return detection{
			description: "symbolic link to " + target,
			mime:        "inode/symlink",
			charset:     charsetBinary,
		}, nil
	}
	return s.detectFile(path, info)
}

// detectFile identifies a resolved filesystem entry, reading content only
// for regular files.
func (s *Session) detectFile(path string, info os.FileInfo) (detection, error) {
	mode := info.Mode()
	switch {
	case mode.IsDir():
		return detection{description: "directory", mime: "inode/directory", charset: charsetBinary}, nil
	case mode&os.ModeNamedPipe != 0:
		return detection{description: "fifo (named pipe)", mime: "inode/fifo", charset: charsetBinary}, nil
	case mode&os.ModeSocket != 0:
		return detection{description: "socket", mime: "inode/socket", charset: charsetBinary}, nil
	case mode&os.ModeCharDevice != 0:
		return detection{description: "character special", mime: "inode/chardevice", charset: charsetBinary}, nil
	case mode&os.ModeDevice != 0:
		return detection{description: "block special", mime: "inode/blockdevice", charset: charsetBinary}, nil
	}

	data, truncated, err := s.readContents(path)
	if err != nil {
		return detection{}, err
	}
	if len(data) == 0 {
		return detection{description: "empty", mime: "application/x-empty", charset: charsetBinary}, nil
	}

	if d, ok := s.matchRules(data); ok {
		return d, nil
	}
	if d, ok := s.classifyText(data, truncated); ok {
		return d, nil
	}
	return detection{description: "data", mime: "application/octet-stream", charset: charsetBinary}, nil
}

// readContents reads at most bytes_max bytes of the file, reporting
// whether the file was longer than that.
func (s *Session) readContents(path string) ([]byte, bool, error) {
	f, err := s.engine.fsys.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	limit := s.parameters[ParameterBytesMax]
	if limit > math.MaxInt64-1 {
		limit = math.MaxInt64 - 1
	}
	data, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if uint64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// matchRules finds the first loaded rule whose probes all match, or every
// matching rule under FlagContinueSearch.
func (s *Session) matchRules(data []byte) (detection, bool) {
	if s.flags&FlagNoCheckSoft != 0 {
		return detection{}, false
	}

	var matches []loadedRule
	for _, r := range s.rules {
		if !r.matches(data) {
			continue
		}
		matches = append(matches, r)
		if s.flags&FlagContinueSearch == 0 {
			break
		}
	}
	if len(matches) == 0 {
		return detection{}, false
	}

	first := matches[0]
	d := detection{
		description: first.Description,
		mime:        first.MIME,
		charset:     charsetBinary,
		extensions:  first.Extensions,
	}
	if first.Text {
		d.charset = detectCharset(s.limitEncodingScan(data)).charset
	}
	if d.mime == "" {
		if first.Text {
			d.mime = "text/plain"
		} else {
			d.mime = "application/octet-stream"
		}
	}

	if len(matches) > 1 {
		descriptions := make([]string, len(matches))
		for i, m := range matches {
			descriptions[i] = m.Description
		}
		d.description = strings.Join(descriptions, "\n- ")
	}
	return d, true
}

// matches reports whether every probe of the rule is present in data.
func (r loadedRule) matches(data []byte) bool {
	for _, p := range r.probes {
		end := p.offset + int64(len(p.data))
		if end > int64(len(data)) {
			return false
		}
		if !bytes.Equal(data[p.offset:end], p.data) {
			return false
		}
	}
	return len(r.probes) > 0
}

// classifyText classifies unmatched content as text when its bytes look
// like a known text encoding.
func (s *Session) classifyText(data []byte, truncated bool) (detection, bool) {
	if s.flags&FlagNoCheckText != 0 {
		return detection{}, false
	}

	enc := textEncoding{charset: charsetBinary}
	if s.flags&FlagNoCheckEncoding == 0 {
		enc = detectCharset(s.limitEncodingScan(data))
	}
	if enc.charset == charsetBinary {
		return detection{}, false
	}

	if s.flags&FlagNoCheckJSON == 0 && !truncated && looksJSON(data) {
		return detection{
			description: "JSON text data",
			mime:        "application/json",
			charset:     enc.charset,
			extensions:  []string{"json"},
		}, true
	}

	return detection{
		description: enc.description,
		mime:        "text/plain",
		charset:     enc.charset,
	}, true
}

// limitEncodingScan caps the bytes handed to charset detection at the
// encoding_max parameter.
func (s *Session) limitEncodingScan(data []byte) []byte {
	if limit := s.parameters[ParameterEncodingMax]; uint64(len(data)) > limit {
		return data[:limit]
	}
	return data
}

// looksJSON reports whether data is a complete JSON document with an
// object or array at the top level.
func looksJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid(data)
}

// detectCharset classifies a content prefix into one of the reported
// charsets, with the text description to go with it.
func detectCharset(data []byte) textEncoding {
	if bytes.HasPrefix(data, []byte{0xff, 0xfe}) {
		return detectUTF16(data, unicode.LittleEndian, charsetUTF16LE, "Little-endian")
	}
	if bytes.HasPrefix(data, []byte{0xfe, 0xff}) {
		return detectUTF16(data, unicode.BigEndian, charsetUTF16BE, "Big-endian")
	}

	ascii := true
	extended := false
	for _, b := range data {
		if b >= 0x80 {
			ascii = false
			if b < 0xa0 {
				extended = true
			}
			continue
		}
		if !isASCIIText(b) {
			return textEncoding{charset: charsetBinary}
		}
	}

	if ascii {
		return textEncoding{charset: charsetASCII, description: "ASCII text"}
	}
	if utf8.Valid(data) {
		description := "UTF-8 Unicode text"
		if bytes.HasPrefix(data, []byte{0xef, 0xbb, 0xbf}) {
			description = "UTF-8 Unicode (with BOM) text"
		}
		return textEncoding{charset: charsetUTF8, description: description}
	}
	if !extended {
		return textEncoding{charset: charsetISO8859, description: "ISO-8859 text"}
	}
	return textEncoding{charset: charsetExtended, description: "Non-ISO extended-ASCII text"}
}

// detectUTF16 decodes a BOM-prefixed UTF-16 stream and classifies it as
// text when its decoded form is.
func detectUTF16(data []byte, endian unicode.Endianness, charset, prefix string) textEncoding {
	decoder := unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder()
	decoded, err := decoder.Bytes(data)
	if err != nil {
		return textEncoding{charset: charsetBinary}
	}
	for _, b := range decoded {
		if b < 0x80 && !isASCIIText(b) {
			return textEncoding{charset: charsetBinary}
		}
	}
	return textEncoding{charset: charset, description: prefix + " UTF-16 Unicode text"}
}

// isASCIIText reports whether b can appear in plain ASCII text.
func isASCIIText(b byte) bool {
	if b >= 0x20 && b < 0x7f {
		return true
	}
	switch b {
	case '\a', '\b', '\t', '\n', '\v', '\f', '\r', 0x1b:
		return true
	}
	return false
}

// render turns a detection into the result string the session flags ask
// for.
func (s *Session) render(d detection) string {
	switch {
	case s.flags&FlagExtension != 0:
		if len(d.extensions) == 0 {
			return "???"
		}
		return strings.Join(d.extensions, "/")
	case s.flags&FlagApple != 0:
		return "UNKNUNKN"
	case s.flags&FlagMimeType != 0 && s.flags&FlagMimeEncoding != 0:
		return d.mime + "; charset=" + d.charset
	case s.flags&FlagMimeType != 0:
		return d.mime
	case s.flags&FlagMimeEncoding != 0:
		return d.charset
	default:
		return d.description
	}
}
