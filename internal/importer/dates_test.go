package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pinYear(t *testing.T, year int) {
	t.Helper()
	prev := currentYear
	currentYear = func() int { return year }
	t.Cleanup(func() { currentYear = prev })
}

func TestExpandYear(t *testing.T) {
	pinYear(t, 2024)

	tests := []struct {
		in   string
		want int
	}{
		{"12", 2012},
		{"24", 2024},
		{"25", 1925},
		{"49", 1949},
		{"99", 1999},
		{"00", 2000},
		{"2049", 2049},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandYear(tt.in), tt.in)
	}
}

func TestCanonicalDate_TwoDigitYear(t *testing.T) {
	pinYear(t, 2024)

	assert.Equal(t, "1949-05-01", CanonicalDate("01/05/49", DateOrderDMY))
	assert.Equal(t, "2012-01-05", CanonicalDate("05/01/12", DateOrderDMY))
	assert.Equal(t, "2012-05-01", CanonicalDate("05/01/12", DateOrderMDY))
}
