package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogSoftmax normalizes every row of scores in log space.
func LogSoftmax(scores mat.Matrix) *mat.Dense {
	r, c := scores.Dims()
	out := mat.NewDense(r, c, nil)
	out.Copy(scores)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		floats.AddConst(-floats.LogSumExp(row), row)
	}
	return out
}

// NLLLoss is the negative log-likelihood of labels under log-softmax(scores).
// Rows labelled ignoreIndex are left out of the sum and of count. With
// average set the sum is divided by count; a zero count gives zero loss.
func NLLLoss(scores mat.Matrix, labels []int64, ignoreIndex int64, average bool) (loss float64, count int, err error) {
	r, c := scores.Dims()
	if r != len(labels) {
		return 0, 0, fmt.Errorf("%w: %d score rows for %d labels", ErrShape, r, len(labels))
	}
	if r == 0 {
		return 0, 0, nil
	}
	logp := LogSoftmax(scores)
	for i, y := range labels {
		if y == ignoreIndex {
			continue
		}
		if y < 0 || int(y) >= c {
			return 0, 0, fmt.Errorf("%w: label %d out of range [0,%d)", ErrShape, y, c)
		}
		loss -= logp.At(i, int(y))
		count++
	}
	if average {
		if count == 0 {
			return 0, 0, nil
		}
		loss /= float64(count)
	}
	return loss, count, nil
}

// Argmax returns the index of the largest score in every row. Ties go to
// the lowest index.
func Argmax(scores mat.Matrix) []int64 {
	r, c := scores.Dims()
	out := make([]int64, r)
	for i := 0; i < r; i++ {
		best, bestJ := math.Inf(-1), 0
		for j := 0; j < c; j++ {
			if v := scores.At(i, j); v > best {
				best, bestJ = v, j
			}
		}
		out[i] = int64(bestJ)
	}
	return out
}
