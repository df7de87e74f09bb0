// Package rnn implements packed variable-length sequences and a multi-layer,
// optionally bidirectional LSTM that consumes them.
package rnn

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape is returned when matrix dimensions do not line up.
	ErrShape = errors.New("shape mismatch")
	// ErrEmptySequence is returned for a sequence of length zero, which
	// cannot be packed.
	ErrEmptySequence = errors.New("sequence has zero length")
	// ErrNotSorted is returned when Pack receives lengths that are not in
	// descending order.
	ErrNotSorted = errors.New("lengths must be sorted in descending order")
)

// PackedSequence stores a batch of sequences time-major without padding.
// Rows of Data are grouped by time step; step t holds BatchSizes[t] rows,
// one per sequence still running at t, in batch order.
type PackedSequence struct {
	Data       *mat.Dense
	BatchSizes []int
}

// Steps returns the number of time steps (the longest sequence length).
func (p *PackedSequence) Steps() int { return len(p.BatchSizes) }

// Batch returns the number of sequences.
func (p *PackedSequence) Batch() int {
	if len(p.BatchSizes) == 0 {
		return 0
	}
	return p.BatchSizes[0]
}

// Offsets returns the first Data row of every time step.
func (p *PackedSequence) Offsets() []int {
	offsets := make([]int, len(p.BatchSizes))
	total := 0
	for t, bs := range p.BatchSizes {
		offsets[t] = total
		total += bs
	}
	return offsets
}

// Lengths recovers per-sequence lengths from BatchSizes.
func (p *PackedSequence) Lengths() []int {
	lengths := make([]int, p.Batch())
	for _, bs := range p.BatchSizes {
		for b := 0; b < bs; b++ {
			lengths[b]++
		}
	}
	return lengths
}

// Pack builds a PackedSequence from padded inputs. inputs[i] must have at
// least lengths[i] rows, and lengths must be non-increasing and positive.
func Pack(inputs []*mat.Dense, lengths []int) (*PackedSequence, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no sequences to pack", ErrShape)
	}
	if len(inputs) != len(lengths) {
		return nil, fmt.Errorf("%w: %d inputs for %d lengths", ErrShape, len(inputs), len(lengths))
	}
	_, features := inputs[0].Dims()
	total := 0
	for i, m := range inputs {
		r, c := m.Dims()
		if c != features {
			return nil, fmt.Errorf("%w: input %d has %d features, want %d", ErrShape, i, c, features)
		}
		if lengths[i] <= 0 {
			return nil, fmt.Errorf("%w: input %d", ErrEmptySequence, i)
		}
		if lengths[i] > r {
			return nil, fmt.Errorf("%w: input %d has %d rows, length %d", ErrShape, i, r, lengths[i])
		}
		if i > 0 && lengths[i] > lengths[i-1] {
			return nil, ErrNotSorted
		}
		total += lengths[i]
	}

	steps := lengths[0]
	batchSizes := make([]int, steps)
	data := mat.NewDense(total, features, nil)
	row := 0
	for t := 0; t < steps; t++ {
		for b := range inputs {
			if lengths[b] <= t {
				break
			}
			data.SetRow(row, inputs[b].RawRowView(t))
			batchSizes[t]++
			row++
		}
	}
	return &PackedSequence{Data: data, BatchSizes: batchSizes}, nil
}

// Unpack scatters a PackedSequence back to one padded matrix per sequence.
// Every matrix has Steps() rows; rows past a sequence's length are zero.
func Unpack(p *PackedSequence) ([]*mat.Dense, []int) {
	_, features := p.Data.Dims()
	steps := p.Steps()
	out := make([]*mat.Dense, p.Batch())
	for b := range out {
		out[b] = mat.NewDense(steps, features, nil)
	}
	row := 0
	for t, bs := range p.BatchSizes {
		for b := 0; b < bs; b++ {
			out[b].SetRow(t, p.Data.RawRowView(row))
			row++
		}
	}
	return out, p.Lengths()
}
