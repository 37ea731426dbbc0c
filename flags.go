package magic

import (
	"math/bits"
	"strings"
)

// Flag configures how the engine inspects files and renders results. Flags
// combine with the bitwise OR operator; combining a flag with itself is a
// no-op. Each constant is a distinct bit, including the shorthand flags
// whose expansion is the engine's business.
type Flag uint64

const (
	// FlagNone requests no special handling.
	FlagNone Flag = 0

	// FlagDebug prints debugging messages to stderr.
	FlagDebug Flag = 1 << 0

	// FlagSymlink follows symlinks to the files they point at.
	FlagSymlink Flag = 1 << 1

	// FlagCompress looks inside compressed files.
	FlagCompress Flag = 1 << 2

	// FlagDevices reads the contents of device files instead of reporting
	// their device type.
	FlagDevices Flag = 1 << 3

	// FlagMimeType reports the MIME type instead of a description.
	FlagMimeType Flag = 1 << 4

	// FlagContinueSearch keeps searching after the first match.
	FlagContinueSearch Flag = 1 << 5

	// FlagCheckDatabase prints warnings while parsing databases.
	FlagCheckDatabase Flag = 1 << 6

	// FlagPreserveAtime restores file access times after reading.
	FlagPreserveAtime Flag = 1 << 7

	// FlagRaw disables the translation of unprintable characters.
	FlagRaw Flag = 1 << 8

	// FlagError reports filesystem errors as errors instead of embedding
	// them in the result text.
	FlagError Flag = 1 << 9

	// FlagMimeEncoding reports the MIME encoding instead of a description.
	FlagMimeEncoding Flag = 1 << 10

	// FlagMime reports the MIME type and encoding together, shorthand for
	// the mime_type and mime_encoding behaviors.
	FlagMime Flag = 1 << 11

	// FlagApple reports the Apple creator and type.
	FlagApple Flag = 1 << 12

	// FlagExtension reports a slash-separated list of extensions.
	FlagExtension Flag = 1 << 13

	// FlagCompressTransp decompresses transparently without reporting the
	// compression.
	FlagCompressTransp Flag = 1 << 14

	// FlagNoCompressFork avoids forking helper processes to decompress.
	FlagNoCompressFork Flag = 1 << 15

	// FlagNoDesc suppresses the description output, shorthand for the
	// extension, mime and apple behaviors.
	FlagNoDesc Flag = 1 << 16

	// FlagNoCheckCompress skips checks inside compressed files.
	FlagNoCheckCompress Flag = 1 << 17

	// FlagNoCheckTar skips tar archive checks.
	FlagNoCheckTar Flag = 1 << 18

	// FlagNoCheckSoft skips consulting the loaded database rules.
	FlagNoCheckSoft Flag = 1 << 19

	// FlagNoCheckAppType skips EMX application type checks.
	FlagNoCheckAppType Flag = 1 << 20

	// FlagNoCheckElf skips ELF detail checks.
	FlagNoCheckElf Flag = 1 << 21

	// FlagNoCheckText skips text file checks.
	FlagNoCheckText Flag = 1 << 22

	// FlagNoCheckCdf skips compound document checks.
	FlagNoCheckCdf Flag = 1 << 23

	// FlagNoCheckCsv skips CSV checks.
	FlagNoCheckCsv Flag = 1 << 24

	// FlagNoCheckTokens skips token searches inside text.
	FlagNoCheckTokens Flag = 1 << 25

	// FlagNoCheckEncoding skips text encoding detection.
	FlagNoCheckEncoding Flag = 1 << 26

	// FlagNoCheckJSON skips JSON checks.
	FlagNoCheckJSON Flag = 1 << 27

	// FlagNoCheckSimh skips SIMH tape data checks.
	FlagNoCheckSimh Flag = 1 << 28

	// FlagNoCheckBuiltin skips all built-in checks, shorthand for the
	// no_check behaviors above except no_check_soft.
	FlagNoCheckBuiltin Flag = 1 << 29
)

// flagNames holds engine-level flag names indexed by bit position.
var flagNames = [...]string{
	"debug",
	"symlink",
	"compress",
	"devices",
	"mime_type",
	"continue_search",
	"check_database",
	"preserve_atime",
	"raw",
	"error",
	"mime_encoding",
	"mime",
	"apple",
	"extension",
	"compress_transp",
	"no_compress_fork",
	"nodesc",
	"no_check_compress",
	"no_check_tar",
	"no_check_soft",
	"no_check_apptype",
	"no_check_elf",
	"no_check_text",
	"no_check_cdf",
	"no_check_csv",
	"no_check_tokens",
	"no_check_encoding",
	"no_check_json",
	"no_check_simh",
	"no_check_builtin",
}

// Split returns the individual flags set in f in ascending bit order,
// deduplicated. FlagNone splits into itself.
func (f Flag) Split() []Flag {
	if f == FlagNone {
		return []Flag{FlagNone}
	}
	flags := make([]Flag, 0, bits.OnesCount64(uint64(f)))
	for bit := 0; bit < len(flagNames); bit++ {
		if flag := Flag(1) << bit; f&flag != 0 {
			flags = append(flags, flag)
		}
	}
	return flags
}

// Has reports whether every bit of flag is set in f.
func (f Flag) Has(flag Flag) bool {
	return f&flag == flag
}

// String returns the comma-joined engine-level names of the flags set in f,
// or "none" for the zero mask.
func (f Flag) String() string {
	if f == FlagNone {
		return "none"
	}
	names := make([]string, 0, bits.OnesCount64(uint64(f)))
	for bit := 0; bit < len(flagNames); bit++ {
		if f&(Flag(1)<<bit) != 0 {
			names = append(names, flagNames[bit])
		}
	}
	if len(names) == 0 {
		return "unknown"
	}
	return strings.Join(names, ",")
}
