package align

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	internal "github.com/ZanzyTHEbar/question-classifier/qclf"
)

// Batch is a set of examples right-padded to a common length. Row i of every
// field belongs to example i.
type Batch struct {
	ID            string
	IDs           [][]int64
	AttentionMask [][]int64
	BoundaryMask  [][]int64
	Starts        []*roaring.Bitmap
	NumWords      []int
	MaxLen        int
}

// Size returns the number of examples.
func (b *Batch) Size() int { return len(b.IDs) }

// NewBatch pads examples to the longest one with PadID and mask value 0.
// Mask lengths are checked before anything is copied.
func NewBatch(examples []*Example) (*Batch, error) {
	if len(examples) == 0 {
		return nil, ErrEmptyBatch
	}
	maxLen := 0
	for i, ex := range examples {
		if ex == nil {
			return nil, fmt.Errorf("example %d is nil", i)
		}
		if len(ex.AttentionMask) != len(ex.IDs) || len(ex.BoundaryMask) != len(ex.IDs) {
			return nil, fmt.Errorf("%w: example %d has %d ids, attention %d, boundary %d",
				ErrLengthMismatch, i, len(ex.IDs), len(ex.AttentionMask), len(ex.BoundaryMask))
		}
		if len(ex.IDs) > maxLen {
			maxLen = len(ex.IDs)
		}
	}

	b := &Batch{
		ID:            uuid.NewString(),
		IDs:           make([][]int64, len(examples)),
		AttentionMask: make([][]int64, len(examples)),
		BoundaryMask:  make([][]int64, len(examples)),
		Starts:        make([]*roaring.Bitmap, len(examples)),
		NumWords:      make([]int, len(examples)),
		MaxLen:        maxLen,
	}
	for i, ex := range examples {
		b.IDs[i] = padRow(ex.IDs, maxLen, internal.PadID)
		b.AttentionMask[i] = padRow(ex.AttentionMask, maxLen, 0)
		b.BoundaryMask[i] = padRow(ex.BoundaryMask, maxLen, 0)
		b.Starts[i] = startsOf(ex)
		b.NumWords[i] = ex.NumWords
	}
	return b, nil
}

func startsOf(ex *Example) *roaring.Bitmap {
	if ex.Starts != nil {
		return ex.Starts.Clone()
	}
	return maskBitmap(ex.BoundaryMask)
}

func padRow(row []int64, n int, pad int64) []int64 {
	out := make([]int64, n)
	copy(out, row)
	for i := len(row); i < n; i++ {
		out[i] = pad
	}
	return out
}

// Validate checks that every row has the same length as the ids, that every
// boundary mask marks position 0, and that the boundary bitmaps and word
// counts, when set, agree with the boundary mask. Batches assembled by a caller
// should pass through here before boundary selection.
func (b *Batch) Validate() error {
	if b == nil || len(b.IDs) == 0 {
		return ErrEmptyBatch
	}
	n := len(b.IDs)
	if len(b.AttentionMask) != n || len(b.BoundaryMask) != n {
		return fmt.Errorf("%w: %d id rows, %d attention rows, %d boundary rows",
			ErrLengthMismatch, n, len(b.AttentionMask), len(b.BoundaryMask))
	}
	for i := range b.IDs {
		if len(b.AttentionMask[i]) != len(b.IDs[i]) || len(b.BoundaryMask[i]) != len(b.IDs[i]) {
			return fmt.Errorf("%w: row %d has %d ids, attention %d, boundary %d",
				ErrLengthMismatch, i, len(b.IDs[i]), len(b.AttentionMask[i]), len(b.BoundaryMask[i]))
		}
	}
	for i, row := range b.BoundaryMask {
		if len(row) == 0 || row[0] == 0 {
			return fmt.Errorf("%w: row %d boundary mask does not mark the start position", ErrLengthMismatch, i)
		}
	}
	if b.Starts != nil {
		if len(b.Starts) != n {
			return fmt.Errorf("%w: %d boundary bitmaps for %d rows", ErrLengthMismatch, len(b.Starts), n)
		}
		for i, bm := range b.Starts {
			if bm == nil {
				return fmt.Errorf("%w: row %d has no boundary bitmap", ErrLengthMismatch, i)
			}
			if !bm.Equals(maskBitmap(b.BoundaryMask[i])) {
				return fmt.Errorf("%w: row %d boundary bitmap disagrees with mask", ErrLengthMismatch, i)
			}
		}
	}
	if b.NumWords != nil {
		if len(b.NumWords) != n {
			return fmt.Errorf("%w: %d word counts for %d rows", ErrLengthMismatch, len(b.NumWords), n)
		}
		for i, words := range b.NumWords {
			if words != countOnes(b.BoundaryMask[i])-1 {
				return fmt.Errorf("%w: row %d has %d words but %d word starts",
					ErrLengthMismatch, i, words, countOnes(b.BoundaryMask[i])-1)
			}
		}
	}
	return nil
}

// WordStarts returns the boundary positions of every row, start marker
// first. It reads Starts when present and the boundary mask otherwise, and
// never modifies the batch.
func (b *Batch) WordStarts() [][]uint32 {
	out := make([][]uint32, len(b.BoundaryMask))
	for i, row := range b.BoundaryMask {
		if b.Starts != nil && b.Starts[i] != nil {
			out[i] = b.Starts[i].ToArray()
			continue
		}
		out[i] = maskBitmap(row).ToArray()
	}
	return out
}

// WordCounts returns the number of words per row, derived from the boundary
// mask when NumWords was not set.
func (b *Batch) WordCounts() []int {
	if b.NumWords != nil {
		return b.NumWords
	}
	out := make([]int, len(b.BoundaryMask))
	for i, row := range b.BoundaryMask {
		out[i] = max(countOnes(row)-1, 0)
	}
	return out
}

// EnsureStarts fills Starts and NumWords from BoundaryMask when the batch
// was built by hand. It mutates b; model passes use WordStarts instead.
func (b *Batch) EnsureStarts() {
	if b.Starts == nil {
		b.Starts = make([]*roaring.Bitmap, len(b.BoundaryMask))
		for i, row := range b.BoundaryMask {
			b.Starts[i] = maskBitmap(row)
		}
	}
	if b.NumWords == nil {
		b.NumWords = b.WordCounts()
	}
}

func maskBitmap(row []int64) *roaring.Bitmap {
	bm := roaring.New()
	for i, v := range row {
		if v != 0 {
			bm.Add(uint32(i))
		}
	}
	return bm
}

func countOnes(row []int64) int {
	n := 0
	for _, v := range row {
		if v != 0 {
			n++
		}
	}
	return n
}

// EncodeBatch encodes every word sequence and pads the results into one
// Batch. Any failing example fails the batch.
func (a *Aligner) EncodeBatch(ctx context.Context, sequences [][]string) (*Batch, error) {
	if len(sequences) == 0 {
		return nil, ErrEmptyBatch
	}
	examples := make([]*Example, len(sequences))

	if a.workers <= 1 {
		for i, words := range sequences {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ex, err := a.SubwordTokenizeToIDs(words)
			if err != nil {
				return nil, fmt.Errorf("example %d: %w", i, err)
			}
			examples[i] = ex
		}
	} else {
		p := pool.New().WithMaxGoroutines(a.workers).WithContext(ctx).WithCancelOnError()
		for i, words := range sequences {
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				ex, err := a.SubwordTokenizeToIDs(words)
				if err != nil {
					return fmt.Errorf("example %d: %w", i, err)
				}
				examples[i] = ex
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return nil, err
		}
	}

	b, err := NewBatch(examples)
	if err != nil {
		return nil, err
	}
	a.metrics.ObserveBatch(b.Size(), b.MaxLen)
	a.logger.Debug().
		Str("batch_id", b.ID).
		Int("examples", b.Size()).
		Int("max_len", b.MaxLen).
		Msg("encoded batch")
	return b, nil
}
