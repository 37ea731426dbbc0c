package magic

// Parameter identifies an engine processing limit. Parameters hold
// non-negative values and are read and written individually; the engine
// validates values and rejects those outside its supported range.
type Parameter int

const (
	// ParameterIndirMax caps recursion for indirect magic.
	ParameterIndirMax Parameter = iota

	// ParameterNameMax caps name/use rule calls.
	ParameterNameMax

	// ParameterElfPhnumMax caps ELF program headers to read.
	ParameterElfPhnumMax

	// ParameterElfShnumMax caps ELF sections to read.
	ParameterElfShnumMax

	// ParameterElfNotesMax caps ELF notes to read.
	ParameterElfNotesMax

	// ParameterRegexMax caps regex search length.
	ParameterRegexMax

	// ParameterBytesMax caps bytes read from a file.
	ParameterBytesMax

	// ParameterEncodingMax caps bytes scanned for encoding detection.
	ParameterEncodingMax

	// ParameterElfShsizeMax caps ELF section size to read.
	ParameterElfShsizeMax

	// ParameterMagWarnMax caps warnings printed while parsing databases.
	ParameterMagWarnMax
)

// parameterNames holds engine-level parameter names indexed by ordinal.
var parameterNames = [...]string{
	"indir_max",
	"name_max",
	"elf_phnum_max",
	"elf_shnum_max",
	"elf_notes_max",
	"regex_max",
	"bytes_max",
	"encoding_max",
	"elf_shsize_max",
	"mag_warn_max",
}

// String returns the engine-level name of the parameter, or "unknown" for
// values outside the defined set.
func (p Parameter) String() string {
	if p < 0 || int(p) >= len(parameterNames) {
		return "unknown"
	}
	return parameterNames[p]
}
