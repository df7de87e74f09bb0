package tokenizer

import (
	"unicode/utf8"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"
	"github.com/ZanzyTHEbar/question-classifier/qclf/text"
)

const continuationPrefix = "##"

// WordPiece is a BERT-style tokenizer: basic pre-tokenization followed by
// greedy longest-match-first splitting against the vocabulary radix tree.
type WordPiece struct {
	vocab         *Vocab
	lowerCase     bool
	maxInputChars int
}

// NewWordPiece builds a WordPiece tokenizer over vocab. maxInputChars <= 0
// uses the BERT default of 100; longer pieces become [UNK].
func NewWordPiece(vocab *Vocab, lowerCase bool, maxInputChars int) *WordPiece {
	if maxInputChars <= 0 {
		maxInputChars = internal.DefaultMaxWordPieceIn
	}
	return &WordPiece{vocab: vocab, lowerCase: lowerCase, maxInputChars: maxInputChars}
}

func (w *WordPiece) Vocab() *Vocab { return w.vocab }

// Tokenize splits one word. Reserved tokens pass through untouched. A word
// that is only whitespace yields no pieces.
func (w *WordPiece) Tokenize(word string) ([]string, error) {
	if IsSpecial(word) {
		return []string{word}, nil
	}
	var out []string
	for _, tok := range text.BasicTokenize(word, w.lowerCase) {
		out = append(out, w.split(tok)...)
	}
	return out, nil
}

func (w *WordPiece) split(tok string) []string {
	if utf8.RuneCountInString(tok) > w.maxInputChars {
		return []string{internal.UnkToken}
	}
	var pieces []string
	for start := 0; start < len(tok); {
		prefix := ""
		if start > 0 {
			prefix = continuationPrefix
		}
		piece := w.vocab.longestPiece(prefix+tok[start:], len(prefix))
		if piece == "" {
			return []string{internal.UnkToken}
		}
		pieces = append(pieces, piece)
		start += len(piece) - len(prefix)
	}
	return pieces
}
