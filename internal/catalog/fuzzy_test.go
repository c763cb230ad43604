package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Volkswagen  ", "volkswagen"},
		{"Citroën", "citroën"},
		{"Camión   Grande", "camion grande"},
		{"SEDÁN", "sedan"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.in))
	}
}

func TestNormalizeBrand(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"VW", "volkswagen"},
		{"Mercedes-Benz", "mercedes benz"},
		{"mercedes", "mercedes benz"},
		{"Chev", "chevrolet"},
		{"chevrolte", "chevrolet"}, // typo within threshold
		{"LandRover", "land rover"},
		{"Toyota", "toyota"}, // unknown brands pass through normalized
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeBrand(tt.in), "input %q", tt.in)
	}
}

func TestFindSimilar(t *testing.T) {
	models := []string{"Corolla", "Civic", "Sentra", "Jetta"}

	assert.Equal(t, "Corolla", FindSimilar("corolla", models, 70))
	assert.Equal(t, "Corolla", FindSimilar("corola", models, 70))
	assert.Equal(t, "Jetta", FindSimilar("jeta", models, 70))
	assert.Empty(t, FindSimilar("mustang", models, 70))
	assert.Empty(t, FindSimilar("", models, 70))
	assert.Empty(t, FindSimilar("civic", nil, 70))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 100, similarity("civic", "civic"))
	assert.Zero(t, similarity("", "civic"))
	assert.Greater(t, similarity("corola", "corolla"), 80)
	assert.Less(t, similarity("mustang", "civic"), 40)
}
