package tokenizer

import (
	"fmt"
	"strings"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"
)

// SubwordTokenizer splits a single word into subword units and exposes the
// vocabulary those units are looked up in.
type SubwordTokenizer interface {
	Tokenize(word string) ([]string, error)
	Vocab() *Vocab
}

// Config holds basic tokenizer settings
type Config struct {
	Backend              string
	VocabPath            string
	LowerCase            bool
	MaxInputCharsPerWord int
}

// ErrUnsupported indicates the tokenizer could not be initialized
var ErrUnsupported = fmt.Errorf("unsupported tokenizer configuration")

// New selects a tokenizer backend by name ("wordpiece" or "sugarme").
func New(cfg Config) (SubwordTokenizer, error) {
	vocab, err := LoadVocab(cfg.VocabPath)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "wordpiece", "":
		return NewWordPiece(vocab, cfg.LowerCase, cfg.MaxInputCharsPerWord), nil
	case "sugarme":
		return NewSugarWordPiece(cfg.VocabPath, vocab, cfg.LowerCase)
	default:
		return nil, fmt.Errorf("%w: backend %q", ErrUnsupported, cfg.Backend)
	}
}

// specialTokens are never split by any backend.
var specialTokens = map[string]struct{}{
	internal.ClsToken:  {},
	internal.SepToken:  {},
	internal.PadToken:  {},
	internal.UnkToken:  {},
	internal.MaskToken: {},
}

// IsSpecial reports whether tok is one of the reserved BERT tokens.
func IsSpecial(tok string) bool {
	_, ok := specialTokens[tok]
	return ok
}
