package tokenizer

import (
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"
)

// SugarWordPiece wraps sugarme/tokenizer WordPiece (BERT-style). Special
// tokens are not added here; the aligner brackets sequences itself.
type SugarWordPiece struct {
	t     *tk.Tokenizer
	vocab *Vocab
}

// NewSugarWordPiece loads vocab.txt and builds a BERT WordPiece tokenizer.
// vocab must be the same file already parsed, so ids agree with the splitter.
func NewSugarWordPiece(vocabPath string, vocab *Vocab, lowerCase bool) (*SugarWordPiece, error) {
	file, err := resolveVocabFile(vocabPath)
	if err != nil {
		return nil, err
	}
	wp, err := wordpiece.NewWordPieceFromFile(file, internal.UnkToken)
	if err != nil {
		return nil, fmt.Errorf("%w: load wordpiece %s: %v", ErrUnsupported, file, err)
	}

	t := tk.NewTokenizer(wp)
	// clean text, CJK spacing; accents and case follow lowerCase like BERT's do_lower_case
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, lowerCase, lowerCase))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	return &SugarWordPiece{t: t, vocab: vocab}, nil
}

func (s *SugarWordPiece) Vocab() *Vocab { return s.vocab }

func (s *SugarWordPiece) Tokenize(word string) ([]string, error) {
	if IsSpecial(word) {
		return []string{word}, nil
	}
	enc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(word)), false)
	if err != nil {
		return nil, fmt.Errorf("sugarme encode %q: %w", word, err)
	}
	return enc.GetTokens(), nil
}
