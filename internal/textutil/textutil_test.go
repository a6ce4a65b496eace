package textutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Paris,  France! ":      "paris france",
		"  London  ":              "london",
		"O'Neill (the elder)":     "oneill the elder",
		"Semi;colon: \"quoted\"?": "semicolon quoted",
		"ÉCOLE":                   "école",
		"well - spaced":           "well spaced",
		"":                        "",
	}
	for in, want := range cases {
		require.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestSimilarity(t *testing.T) {
	require.Equal(t, 1.0, Similarity("", ""))
	require.Equal(t, 1.0, Similarity("abc", "abc"))
	require.Equal(t, 0.0, Similarity("abc", "xyz"))
	require.InDelta(t, 0.75, Similarity("abcd", "bcde"), 1e-9)
	require.InDelta(t, 6.0/7.0, Similarity("abcd", "bcd"), 1e-9)
}

func TestSimilarityRecursesAroundLongestBlock(t *testing.T) {
	// "ab" + "xyz" + "cd" against "ab" + "cd": both sides of the middle gap match.
	require.InDelta(t, 2*4.0/11.0, Similarity("abxyzcd", "abcd"), 1e-9)
}

func TestCosine(t *testing.T) {
	require.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	require.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	require.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1}))
	require.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	require.InDelta(t, 2.0, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	require.False(t, math.IsNaN(CosineDistance(nil, nil)))
}

func TestContainsFold(t *testing.T) {
	list := []string{"World History", "sports"}
	require.True(t, ContainsFold(list, "world history"))
	require.True(t, ContainsFold(list, " Sports "))
	require.False(t, ContainsFold(list, "science"))
}
