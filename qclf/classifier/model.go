// Package classifier combines the subword aligner, a transformer encoder, an
// LSTM and a linear head into a question classifier with two scoring modes:
// one label per word, or one label per sequence.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"
	"github.com/ZanzyTHEbar/question-classifier/qclf/align"
	"github.com/ZanzyTHEbar/question-classifier/qclf/embedding"
	"github.com/ZanzyTHEbar/question-classifier/qclf/metrics"
	"github.com/ZanzyTHEbar/question-classifier/qclf/pipeline"
	"github.com/ZanzyTHEbar/question-classifier/qclf/rnn"
)

// ErrShape is returned when labels, syntax ids or layer indices do not fit
// the batch.
var ErrShape = errors.New("classifier shape mismatch")

// Pooling reduces LSTM outputs to one vector per example in sequence mode.
type Pooling string

const (
	// PoolLast concatenates the final forward and backward hidden states of
	// the top layer.
	PoolLast Pooling = "last"
	// PoolMax takes the element-wise max over valid time steps.
	PoolMax Pooling = "max"
)

// Config sizes the recurrent layer and head.
type Config struct {
	HiddenDim     int
	LSTMLayers    int
	Bidirectional bool
	NumLabels     int
	Pooling       Pooling
	UseSyntax     bool
	SyntaxVocab   int
	SyntaxDim     int
	Seed          int64
	// AverageLoss divides the loss by the number of scored words.
	AverageLoss bool
}

// Model is immutable after NewModel and safe for concurrent calls.
type Model struct {
	cfg     Config
	aligner *align.Aligner
	encoder embedding.Encoder
	lstm    *rnn.LSTM
	head    *Linear
	syntax  *Embedding

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger for pass summaries.
func WithLogger(l zerolog.Logger) Option { return func(m *Model) { m.logger = l } }

// WithMetrics records pass latency and errors on mt.
func WithMetrics(mt *metrics.Metrics) Option { return func(m *Model) { m.metrics = mt } }

// NewModel builds the LSTM, head and optional syntax embedding on top of
// the given aligner and encoder, seeding all weights from cfg.Seed.
func NewModel(cfg Config, aligner *align.Aligner, encoder embedding.Encoder, opts ...Option) (*Model, error) {
	if aligner == nil || encoder == nil {
		return nil, fmt.Errorf("aligner and encoder are required")
	}
	if cfg.NumLabels <= 0 || cfg.HiddenDim <= 0 || cfg.LSTMLayers <= 0 {
		return nil, fmt.Errorf("%w: invalid model config %+v", ErrShape, cfg)
	}
	switch cfg.Pooling {
	case "":
		cfg.Pooling = PoolLast
	case PoolLast, PoolMax:
	default:
		return nil, fmt.Errorf("unknown pooling %q", cfg.Pooling)
	}

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)^0x9e3779b97f4a7c15))
	m := &Model{
		cfg:     cfg,
		aligner: aligner,
		encoder: encoder,
		logger:  zerolog.Nop(),
	}
	in := encoder.HiddenSize()
	if cfg.UseSyntax {
		if cfg.SyntaxVocab <= 0 || cfg.SyntaxDim <= 0 {
			return nil, fmt.Errorf("%w: syntax embedding needs positive vocab and dim", ErrShape)
		}
		m.syntax = NewEmbedding(cfg.SyntaxVocab, cfg.SyntaxDim, rng)
		in += cfg.SyntaxDim
	}
	lstm, err := rnn.NewLSTM(rnn.Config{
		InputSize:     in,
		HiddenSize:    cfg.HiddenDim,
		NumLayers:     cfg.LSTMLayers,
		Bidirectional: cfg.Bidirectional,
	}, rng)
	if err != nil {
		return nil, err
	}
	m.lstm = lstm
	m.head = NewLinear(lstm.OutputSize(), cfg.NumLabels, rng)
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ParsePooling accepts "last" or "max", case-insensitively.
func ParsePooling(s string) (Pooling, error) {
	switch p := Pooling(strings.ToLower(strings.TrimSpace(s))); p {
	case PoolLast, PoolMax:
		return p, nil
	case "":
		return PoolLast, nil
	}
	return "", fmt.Errorf("unknown pooling %q: want last or max", s)
}

func (m *Model) Config() Config { return m.cfg }
func (m *Model) Encoder() embedding.Encoder { return m.encoder }
func (m *Model) LSTM() *rnn.LSTM { return m.lstm }
func (m *Model) Head() *Linear { return m.head }
func (m *Model) Aligner() *align.Aligner { return m.aligner }

// EncodeBatch turns word sequences into a padded batch.
func (m *Model) EncodeBatch(ctx context.Context, words [][]string) (*align.Batch, error) {
	return m.aligner.EncodeBatch(ctx, words)
}

// inputs encodes the batch and appends syntax features when enabled. Each
// returned matrix has one row per padded position.
func (m *Model) inputs(ctx context.Context, batch *align.Batch, syntaxIDs [][]int64) ([]*mat.Dense, error) {
	if syntaxIDs != nil {
		if m.syntax == nil {
			return nil, fmt.Errorf("%w: syntax ids given but the model has no syntax embedding", ErrShape)
		}
		if len(syntaxIDs) != batch.Size() {
			return nil, fmt.Errorf("%w: %d syntax rows for %d examples", ErrShape, len(syntaxIDs), batch.Size())
		}
	}
	out, err := m.encoder.Encode(ctx, batch.IDs, batch.AttentionMask, false)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if len(out.Hidden) != batch.Size() {
		return nil, fmt.Errorf("%w: encoder returned %d rows for %d examples", ErrShape, len(out.Hidden), batch.Size())
	}
	if m.syntax == nil {
		return out.Hidden, nil
	}

	features := make([]*mat.Dense, batch.Size())
	for i, h := range out.Hidden {
		rows, hidden := h.Dims()
		var ids []int64
		if syntaxIDs != nil {
			ids = syntaxIDs[i]
		}
		syn, err := m.syntax.Lookup(ids, rows)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		f := mat.NewDense(rows, hidden+m.syntax.Dim(), nil)
		f.Slice(0, rows, 0, hidden).(*mat.Dense).Copy(h)
		f.Slice(0, rows, hidden, hidden+m.syntax.Dim()).(*mat.Dense).Copy(syn)
		features[i] = f
	}
	return features, nil
}

// Forward scores every example in sequence mode and returns an
// N x NumLabels matrix. syntaxIDs may be nil; otherwise row i must match the
// padded length of example i.
func (m *Model) Forward(ctx context.Context, batch *align.Batch, syntaxIDs [][]int64) (scores *mat.Dense, err error) {
	defer func(start time.Time) { m.metrics.ObservePass("forward", start, err) }(time.Now())
	if err = batch.Validate(); err != nil {
		return nil, err
	}
	features, err := m.inputs(ctx, batch, syntaxIDs)
	if err != nil {
		return nil, err
	}
	lengths := pipeline.Lengths(batch.AttentionMask)
	res, err := pipeline.Contextualize(ctx, m.lstm, features, lengths)
	if err != nil {
		return nil, err
	}

	pooled := mat.NewDense(batch.Size(), m.lstm.OutputSize(), nil)
	for i := range res.Outputs {
		pooled.SetRow(i, m.pool(res, i))
	}
	pooled.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, pooled)
	scores, err = m.head.Forward(pooled)
	if err != nil {
		return nil, err
	}
	m.logger.Debug().
		Str("batch_id", batch.ID).
		Int("examples", batch.Size()).
		Int("max_len", res.MaxLen).
		Str("pooling", string(m.cfg.Pooling)).
		Msg("forward")
	return scores, nil
}

func (m *Model) pool(res *pipeline.Result, i int) []float64 {
	hidden := m.cfg.HiddenDim
	out := make([]float64, m.lstm.OutputSize())
	switch m.cfg.Pooling {
	case PoolMax:
		for j := range out {
			out[j] = math.Inf(-1)
		}
		for t := 0; t < res.Lengths[i]; t++ {
			for j, v := range res.Outputs[i].RawRowView(t) {
				out[j] = math.Max(out[j], v)
			}
		}
	default:
		dirs := m.lstm.OutputSize() / hidden
		top := (m.cfg.LSTMLayers - 1) * dirs
		for d := 0; d < dirs; d++ {
			copy(out[d*hidden:(d+1)*hidden], res.Final.H[top+d].RawRowView(i))
		}
	}
	return out
}

// wordRows gathers the rows of src at the example's boundary positions: the
// start marker first, then the first subword of every word.
func wordRows(src *mat.Dense, starts []uint32) *mat.Dense {
	_, c := src.Dims()
	out := mat.NewDense(len(starts), c, nil)
	for k, p := range starts {
		out.SetRow(k, src.RawRowView(int(p)))
	}
	return out
}

// ScoreWords scores every word in per-word mode. Entry i is a
// NumWords[i] x NumLabels matrix, or nil for an example with no words. The
// start marker is run through the LSTM as context but not scored.
func (m *Model) ScoreWords(ctx context.Context, batch *align.Batch) ([]*mat.Dense, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	features, err := m.inputs(ctx, batch, nil)
	if err != nil {
		return nil, err
	}
	wordStarts := batch.WordStarts()
	selected := make([]*mat.Dense, batch.Size())
	lengths := make([]int, batch.Size())
	for i, f := range features {
		starts := wordStarts[i]
		selected[i] = wordRows(f, starts)
		lengths[i] = len(starts)
	}
	res, err := pipeline.Contextualize(ctx, m.lstm, selected, lengths)
	if err != nil {
		return nil, err
	}

	scores := make([]*mat.Dense, batch.Size())
	for i, out := range res.Outputs {
		words := lengths[i] - 1
		if words == 0 {
			continue
		}
		_, c := out.Dims()
		scores[i], err = m.head.Forward(out.Slice(1, lengths[i], 0, c))
		if err != nil {
			return nil, err
		}
	}
	return scores, nil
}

// LossResult is the per-word loss over a batch.
type LossResult struct {
	Loss float64
	// Count is the number of words whose label is not the pad label.
	Count int
	// Predictions is batch x max words, padded with the pad label.
	Predictions [][]int64
	Scores      []*mat.Dense
}

// Loss scores the batch per word and computes NLL against labels. labels[i]
// must cover NumWords[i] words; any entries past that must be the pad label.
func (m *Model) Loss(ctx context.Context, batch *align.Batch, labels [][]int64) (res *LossResult, err error) {
	defer func(start time.Time) { m.metrics.ObservePass("loss", start, err) }(time.Now())
	if batch != nil && len(labels) != batch.Size() {
		return nil, fmt.Errorf("%w: %d label rows for %d examples", ErrShape, len(labels), batch.Size())
	}
	scores, err := m.ScoreWords(ctx, batch)
	if err != nil {
		return nil, err
	}

	counts := batch.WordCounts()
	maxWords := 0
	for _, n := range counts {
		maxWords = max(maxWords, n)
	}
	res = &LossResult{Scores: scores, Predictions: make([][]int64, batch.Size())}
	for i, s := range scores {
		n := counts[i]
		if len(labels[i]) < n {
			return nil, fmt.Errorf("%w: example %d has %d words but %d labels", ErrShape, i, n, len(labels[i]))
		}
		for _, y := range labels[i][n:] {
			if y != internal.PadLabel {
				return nil, fmt.Errorf("%w: example %d has a non-pad label past its last word", ErrShape, i)
			}
		}
		res.Predictions[i] = make([]int64, maxWords)
		if s == nil {
			continue
		}
		l, c, err := NLLLoss(s, labels[i][:n], internal.PadLabel, false)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		res.Loss += l
		res.Count += c
		copy(res.Predictions[i], Argmax(s))
	}
	if m.cfg.AverageLoss {
		if res.Count == 0 {
			res.Loss = 0
		} else {
			res.Loss /= float64(res.Count)
		}
	}
	m.logger.Debug().
		Str("batch_id", batch.ID).
		Int("examples", batch.Size()).
		Int("scored_words", res.Count).
		Float64("loss", res.Loss).
		Msg("loss")
	return res, nil
}

// Predict returns per-word argmax labels, batch x max words, padded with the
// pad label.
func (m *Model) Predict(ctx context.Context, batch *align.Batch) ([][]int64, error) {
	scores, err := m.ScoreWords(ctx, batch)
	if err != nil {
		return nil, err
	}
	maxWords := 0
	for _, n := range batch.WordCounts() {
		maxWords = max(maxWords, n)
	}
	preds := make([][]int64, len(scores))
	for i, s := range scores {
		preds[i] = make([]int64, maxWords)
		if s != nil {
			copy(preds[i], Argmax(s))
		}
	}
	return preds, nil
}

// ExtractFeatures returns, for every example, one len(layers) x hidden
// matrix per word holding the encoder state of the word's first subword at
// each requested layer. Negative layer indices count from the top.
func (m *Model) ExtractFeatures(ctx context.Context, batch *align.Batch, layers []int) (features [][]*mat.Dense, err error) {
	defer func(start time.Time) { m.metrics.ObservePass("features", start, err) }(time.Now())
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers requested", ErrShape)
	}
	if err = batch.Validate(); err != nil {
		return nil, err
	}
	out, err := m.encoder.Encode(ctx, batch.IDs, batch.AttentionMask, true)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	picked := make([][]*mat.Dense, len(layers))
	for k, l := range layers {
		if picked[k], err = out.Layer(l); err != nil {
			return nil, err
		}
	}

	hidden := m.encoder.HiddenSize()
	wordStarts := batch.WordStarts()
	features = make([][]*mat.Dense, batch.Size())
	for i := range features {
		starts := wordStarts[i]
		words := make([]*mat.Dense, 0, len(starts)-1)
		for _, p := range starts[1:] {
			f := mat.NewDense(len(layers), hidden, nil)
			for k := range layers {
				f.SetRow(k, picked[k][i].RawRowView(int(p)))
			}
			words = append(words, f)
		}
		features[i] = words
	}
	m.logger.Debug().
		Str("batch_id", batch.ID).
		Ints("layers", layers).
		Msg("extracted features")
	return features, nil
}
