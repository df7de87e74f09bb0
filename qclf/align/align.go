// Package align maps word sequences to BERT subword sequences and records
// where each word starts, so encoder outputs can be gathered back per word.
package align

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"
	"github.com/ZanzyTHEbar/question-classifier/qclf/embedding/tokenizer"
	"github.com/ZanzyTHEbar/question-classifier/qclf/metrics"
	"github.com/ZanzyTHEbar/question-classifier/qclf/text"
)

// UnknownPolicy decides what happens to a subword missing from the vocabulary.
type UnknownPolicy int

const (
	// UnknownAsUnk substitutes the [UNK] id.
	UnknownAsUnk UnknownPolicy = iota
	// UnknownAsError fails the example with ErrUnknownToken.
	UnknownAsError
)

// ParseUnknownPolicy accepts "unk" or "error".
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch s {
	case "unk", "":
		return UnknownAsUnk, nil
	case "error":
		return UnknownAsError, nil
	}
	return 0, fmt.Errorf("unknown policy %q: want unk or error", s)
}

// Aligner converts word sequences to subword ids plus a word-boundary mask.
// It holds no per-call state and may be shared between goroutines.
type Aligner struct {
	tok     tokenizer.SubwordTokenizer
	policy  UnknownPolicy
	workers int
	logger  zerolog.Logger
	metrics *metrics.Metrics

	unkID  int64
	hasUnk bool
}

// Option configures an Aligner.
type Option func(*Aligner)

// WithUnknownPolicy chooses between [UNK] substitution and failing on
// subwords missing from the vocabulary.
func WithUnknownPolicy(p UnknownPolicy) Option { return func(a *Aligner) { a.policy = p } }

// WithWorkers bounds the goroutines EncodeBatch uses; n <= 1 encodes serially.
func WithWorkers(n int) Option { return func(a *Aligner) { a.workers = n } }

// WithLogger sets the logger for unknown-subword warnings and batch summaries.
func WithLogger(l zerolog.Logger) Option { return func(a *Aligner) { a.logger = l } }

// WithMetrics counts dropped and unknown input on m along with batch shapes.
func WithMetrics(m *metrics.Metrics) Option { return func(a *Aligner) { a.metrics = m } }

// New builds an Aligner. The vocabulary must contain [CLS], [SEP] and [PAD].
func New(tok tokenizer.SubwordTokenizer, opts ...Option) (*Aligner, error) {
	if tok == nil || tok.Vocab() == nil {
		return nil, fmt.Errorf("%w: tokenizer with vocabulary is required", tokenizer.ErrUnsupported)
	}
	if err := tok.Vocab().RequireTokens(internal.ClsToken, internal.SepToken, internal.PadToken); err != nil {
		return nil, err
	}
	a := &Aligner{
		tok:     tok,
		workers: 1,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.unkID, a.hasUnk = tok.Vocab().UnkID()
	return a, nil
}

// Vocab returns the vocabulary ids are drawn from.
func (a *Aligner) Vocab() *tokenizer.Vocab { return a.tok.Vocab() }

// Example is one encoded word sequence. All slices have the same length.
type Example struct {
	Subwords      []string
	IDs           []int64
	AttentionMask []int64
	BoundaryMask  []int64
	// Starts holds the positions set in BoundaryMask: the start marker and
	// the first subword of every word.
	Starts   *roaring.Bitmap
	NumWords int
}

// SubwordTokenize splits each word, brackets the result with [CLS] and [SEP],
// and returns the position where each unit (start marker first, then every
// word) begins. A word the tokenizer splits into nothing becomes one [PAD].
func (a *Aligner) SubwordTokenize(words []string) ([]string, []int, error) {
	pieces := make([][]string, len(words))
	for i, w := range words {
		p, err := a.split(w)
		if err != nil {
			return nil, nil, err
		}
		pieces[i] = p
	}

	counts := make([]int, 0, len(words)+2)
	counts = append(counts, 1)
	for _, p := range pieces {
		counts = append(counts, len(p))
	}
	counts = append(counts, 1)

	subwords := make([]string, 0, sum(counts))
	subwords = append(subwords, internal.ClsToken)
	subwords = append(subwords, Flatten(pieces)...)
	subwords = append(subwords, internal.SepToken)

	// exclusive prefix sum over every count but the end marker's
	starts := make([]int, len(counts)-1)
	offset := 0
	for i := range starts {
		starts[i] = offset
		offset += counts[i]
	}
	return subwords, starts, nil
}

func (a *Aligner) split(word string) ([]string, error) {
	if word == internal.PadToken {
		return []string{internal.PadToken}, nil
	}
	p, err := a.tok.Tokenize(word)
	if err != nil {
		return nil, fmt.Errorf("tokenize %q: %w", word, err)
	}
	if len(p) == 0 {
		return []string{internal.PadToken}, nil
	}
	return p, nil
}

// Tokenize returns only the bracketed subword sequence.
func (a *Aligner) Tokenize(words []string) ([]string, error) {
	subwords, _, err := a.SubwordTokenize(words)
	return subwords, err
}

// SubwordTokenizeToIDs replaces ignorable words with [PAD], splits, and
// converts to ids. The attention mask is all ones; the boundary mask has
// exactly len(words)+1 ones.
func (a *Aligner) SubwordTokenizeToIDs(words []string) (*Example, error) {
	cleaned := make([]string, len(words))
	ignored := 0
	for i, w := range words {
		if text.ShouldIgnore(w) {
			cleaned[i] = internal.PadToken
			ignored++
			continue
		}
		cleaned[i] = w
	}
	a.metrics.AddIgnoredWords(ignored)

	subwords, starts, err := a.SubwordTokenize(cleaned)
	if err != nil {
		return nil, err
	}
	ids, err := a.lookupIDs(subwords)
	if err != nil {
		return nil, err
	}

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	bm := roaring.New()
	boundary := make([]int64, len(ids))
	for _, s := range starts {
		boundary[s] = 1
		bm.Add(uint32(s))
	}

	return &Example{
		Subwords:      subwords,
		IDs:           ids,
		AttentionMask: mask,
		BoundaryMask:  boundary,
		Starts:        bm,
		NumWords:      len(words),
	}, nil
}

func (a *Aligner) lookupIDs(subwords []string) ([]int64, error) {
	vocab := a.tok.Vocab()
	ids := make([]int64, len(subwords))
	unknown := 0
	for i, sw := range subwords {
		id, ok := vocab.ID(sw)
		if !ok {
			if a.policy == UnknownAsError || !a.hasUnk {
				return nil, fmt.Errorf("%w: %q", ErrUnknownToken, sw)
			}
			a.logger.Warn().Str("subword", sw).Msg("subword not in vocabulary, using [UNK]")
			id = a.unkID
			unknown++
		}
		ids[i] = id
	}
	a.metrics.AddUnknownSubwords(unknown)
	return ids, nil
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
