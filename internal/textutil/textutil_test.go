package textutil_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"lexa/internal/textutil"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "stopwords removed", in: "The offer and the acceptance", want: []string{"offer", "acceptance"}},
		{name: "apostrophes kept", in: "Buyer's remedy", want: []string{"buyer's", "remedy"}},
		{name: "numbers kept", in: "Section 3 of the Act", want: []string{"section", "3", "act"}},
		{name: "empty", in: "  ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textutil.Tokens(tt.in))
		})
	}
}

func TestTokenSet(t *testing.T) {
	got := textutil.TokenSet("The lease and the LEASE term")
	assert.Equal(t, map[string]struct{}{"lease": {}, "term": {}}, got)
}

func TestSentences(t *testing.T) {
	got := textutil.Sentences("An offer is made. It is accepted! Is there consideration? Trailing clause")
	assert.Equal(t, []string{
		"An offer is made.",
		"It is accepted!",
		"Is there consideration?",
		"Trailing clause",
	}, got)

	assert.Empty(t, textutil.Sentences("   "))
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0, 0}, b: []float32{2, 0, 0}, want: 0},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 1},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: 2},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 1},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, textutil.CosineDistance(tt.a, tt.b), 1e-9)
		})
	}
}

func TestL2Distance(t *testing.T) {
	assert.InDelta(t, 5.0, textutil.L2Distance([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.True(t, math.IsInf(textutil.L2Distance([]float32{1}, []float32{1, 2}), 1))
}

func TestHashString(t *testing.T) {
	assert.Len(t, textutil.HashString("contract_law_dataset.json#0"), 16)
	assert.Equal(t, textutil.HashString("x"), textutil.HashString("x"))
	assert.NotEqual(t, textutil.HashString("x"), textutil.HashString("y"))
}
