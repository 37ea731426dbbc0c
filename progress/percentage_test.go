package progress

import "testing"

func TestNewPercentageClamps(t *testing.T) {
	tests := []struct {
		name  string
		value int
		want  Percentage
	}{
		{"negative", -5, 0},
		{"zero", 0, 0},
		{"in range", 42, 42},
		{"upper bound", 100, 100},
		{"above range", 101, 100},
		{"far above range", 12345, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewPercentage(tt.value); got != tt.want {
				t.Errorf("NewPercentage(%d) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestPercentageOf(t *testing.T) {
	tests := []struct {
		name             string
		completed, total uint64
		want             Percentage
	}{
		{"zero total", 5, 0, 0},
		{"zero of zero", 0, 0, 0},
		{"none completed", 0, 7, 0},
		{"half", 1, 2, 50},
		{"two thirds truncates", 2, 3, 66},
		{"all completed", 7, 7, 100},
		{"over completed clamps", 5, 4, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PercentageOf(tt.completed, tt.total); got != tt.want {
				t.Errorf("PercentageOf(%d, %d) = %v, want %v", tt.completed, tt.total, got, tt.want)
			}
		})
	}
}

func TestPercentageString(t *testing.T) {
	if got := NewPercentage(42).String(); got != "42%" {
		t.Errorf("String() = %q, want %q", got, "42%")
	}
	if got := NewPercentage(0).String(); got != "0%" {
		t.Errorf("String() = %q, want %q", got, "0%")
	}
}
