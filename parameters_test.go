package magic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParameterString tests the engine-level names of the parameters.
func TestParameterString(t *testing.T) {
	tests := []struct {
		parameter Parameter
		want      string
	}{
		{ParameterIndirMax, "indir_max"},
		{ParameterNameMax, "name_max"},
		{ParameterElfPhnumMax, "elf_phnum_max"},
		{ParameterElfShnumMax, "elf_shnum_max"},
		{ParameterElfNotesMax, "elf_notes_max"},
		{ParameterRegexMax, "regex_max"},
		{ParameterBytesMax, "bytes_max"},
		{ParameterEncodingMax, "encoding_max"},
		{ParameterElfShsizeMax, "elf_shsize_max"},
		{ParameterMagWarnMax, "mag_warn_max"},
		{Parameter(-1), "unknown"},
		{Parameter(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.parameter.String())
	}
}

// TestParameterOrdinals tests that the parameters keep their engine-level
// ordinals.
func TestParameterOrdinals(t *testing.T) {
	assert.Equal(t, Parameter(0), ParameterIndirMax)
	assert.Equal(t, Parameter(5), ParameterRegexMax)
	assert.Equal(t, Parameter(6), ParameterBytesMax)
	assert.Equal(t, Parameter(9), ParameterMagWarnMax)
}
