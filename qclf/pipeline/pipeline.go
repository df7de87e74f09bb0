// Package pipeline runs a recurrent layer over a batch of variable-length
// sequences. Rows are sorted by length, packed, run, unpacked and put back in
// their original order, so callers never see the reordering.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ZanzyTHEbar/question-classifier/qclf/align"
	"github.com/ZanzyTHEbar/question-classifier/qclf/rnn"
)

var (
	ErrEmptyBatch     = align.ErrEmptyBatch
	ErrLengthMismatch = align.ErrLengthMismatch
)

// Lengths counts the non-zero entries of every mask row.
func Lengths(mask [][]int64) []int {
	out := make([]int, len(mask))
	for i, row := range mask {
		for _, v := range row {
			if v != 0 {
				out[i]++
			}
		}
	}
	return out
}

// Permutation orders a batch by descending length. Sorted[i] is the original
// index of the i-th longest row and Reverse undoes it: Reverse[Sorted[i]] == i.
type Permutation struct {
	Sorted  []int
	Reverse []int
}

// SortByLength sorts indices by descending length. Equal lengths keep their
// original relative order.
func SortByLength(lengths []int) Permutation {
	sorted := make([]int, len(lengths))
	for i := range sorted {
		sorted[i] = i
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return lengths[sorted[a]] > lengths[sorted[b]]
	})
	reverse := make([]int, len(sorted))
	for i, idx := range sorted {
		reverse[idx] = i
	}
	return Permutation{Sorted: sorted, Reverse: reverse}
}

// Gather returns rows reordered so that out[i] = rows[idx[i]].
func Gather[T any](rows []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}

// Result is the recurrent output in original batch order.
type Result struct {
	// Outputs has one MaxLen x OutputSize matrix per example. Rows at or past
	// Lengths[i] are zero.
	Outputs []*mat.Dense
	Lengths []int
	MaxLen  int
	// Final holds final states with row i belonging to example i.
	Final *rnn.State
}

// Contextualize runs layer over inputs, where example i has lengths[i] valid
// rows. Output row i is what running the layer on example i alone would give.
func Contextualize(ctx context.Context, layer rnn.Layer, inputs []*mat.Dense, lengths []int) (*Result, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(inputs) != len(lengths) {
		return nil, fmt.Errorf("%w: %d inputs for %d lengths", ErrLengthMismatch, len(inputs), len(lengths))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	perm := SortByLength(lengths)
	packed, err := rnn.Pack(Gather(inputs, perm.Sorted), Gather(lengths, perm.Sorted))
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	out, state, err := layer.Forward(packed)
	if err != nil {
		return nil, fmt.Errorf("recurrent layer: %w", err)
	}
	padded, sortedLengths := rnn.Unpack(out)

	return &Result{
		Outputs: Gather(padded, perm.Reverse),
		Lengths: Gather(sortedLengths, perm.Reverse),
		MaxLen:  out.Steps(),
		Final:   restoreState(state, perm.Reverse),
	}, nil
}

func restoreState(s *rnn.State, reverse []int) *rnn.State {
	if s == nil {
		return nil
	}
	return &rnn.State{H: restoreRows(s.H, reverse), C: restoreRows(s.C, reverse)}
}

func restoreRows(ms []*mat.Dense, reverse []int) []*mat.Dense {
	out := make([]*mat.Dense, len(ms))
	for k, m := range ms {
		_, c := m.Dims()
		r := mat.NewDense(len(reverse), c, nil)
		for i, j := range reverse {
			r.SetRow(i, m.RawRowView(j))
		}
		out[k] = r
	}
	return out
}
