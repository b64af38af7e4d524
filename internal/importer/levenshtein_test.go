package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"surname", "surname", 0},
		{"surnme", "surname", 1},
		{"kitten", "sitting", 3},
		{"órla", "orla", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("", ""))
	assert.Equal(t, 1.0, similarity("dob", "dob"))
	assert.InDelta(t, 0.857, similarity("surnme", "surname"), 0.001)
	assert.Equal(t, 0.0, similarity("abc", "xyz"))
}

func TestNormalizeColumn(t *testing.T) {
	assert.Equal(t, "dob", NormalizeColumn("D.O.B"))
	assert.Equal(t, "dateofbirth", NormalizeColumn(" Date of Birth "))
	assert.Equal(t, "prenom", NormalizeColumn("Prénom"))
	assert.Equal(t, "addressstreet1", NormalizeColumn("address.street1"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "siobhan obrien", NormalizeName("  Siobhán  O'Brien "))
	assert.Equal(t, "mary jane", NormalizeName("Mary-Jane"))
	assert.Equal(t, "O'Brien", titleCase("o'brien"))
	assert.Equal(t, "Mary-Jane Smith", titleCase("MARY-JANE SMITH"))
}
