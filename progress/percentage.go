package progress

import "strconv"

// Percentage is a completion ratio clamped to [0, 100].
type Percentage uint8

// NewPercentage returns value clamped to [0, 100].
func NewPercentage(value int) Percentage {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	}
	return Percentage(value)
}

// PercentageOf returns the share of total that completed represents,
// clamped to [0, 100]. A zero total yields 0 rather than dividing by zero.
func PercentageOf(completed, total uint64) Percentage {
	if total == 0 {
		return 0
	}
	value := completed * 100 / total
	if value > 100 {
		value = 100
	}
	return Percentage(value)
}

// String renders the percentage as "<value>%".
func (p Percentage) String() string {
	return strconv.FormatUint(uint64(p), 10) + "%"
}
