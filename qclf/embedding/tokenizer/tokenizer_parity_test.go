package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTokenizerParity checks that the radix WordPiece and the sugarme
// WordPiece split words identically over the same vocabulary.
func TestTokenizerParity(t *testing.T) {
	path := writeVocab(t, testTokens)
	vocab, err := LoadVocab(path)
	require.NoError(t, err)

	swp, err := NewSugarWordPiece(path, vocab, false)
	require.NoError(t, err)
	wp := NewWordPiece(vocab, false, 0)

	assert.Same(t, vocab, swp.Vocab())

	words := []string{"Hello", "world", "unaffable", "playing", "Hello,", "[PAD]"}
	for _, w := range words {
		want, err := wp.Tokenize(w)
		require.NoError(t, err)
		got, err := swp.Tokenize(w)
		require.NoError(t, err, "word %q", w)
		assert.Equal(t, want, got, "word %q", w)
	}
}
