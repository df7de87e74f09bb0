package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Linear computes y = x*Wᵀ + b row by row.
type Linear struct {
	W *mat.Dense    // out x in
	B *mat.VecDense // out
}

// NewLinear draws weights and bias from U(-1/sqrt(in), 1/sqrt(in)).
func NewLinear(in, out int, rng *rand.Rand) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	w := make([]float64, out*in)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * bound
	}
	b := make([]float64, out)
	for i := range b {
		b[i] = (rng.Float64()*2 - 1) * bound
	}
	return &Linear{W: mat.NewDense(out, in, w), B: mat.NewVecDense(out, b)}
}

func (l *Linear) In() int  { _, c := l.W.Dims(); return c }
func (l *Linear) Out() int { r, _ := l.W.Dims(); return r }

// Forward projects every row of x.
func (l *Linear) Forward(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if c != l.In() {
		return nil, fmt.Errorf("%w: linear expects %d inputs, got %d", ErrShape, l.In(), c)
	}
	var y mat.Dense
	y.Mul(x, l.W.T())
	for i := 0; i < r; i++ {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += l.B.AtVec(j)
		}
	}
	return &y, nil
}

// Embedding maps syntax ids to dense vectors. Row 0 is the padding vector and
// stays zero.
type Embedding struct {
	W *mat.Dense // vocab x dim
}

func NewEmbedding(vocab, dim int, rng *rand.Rand) *Embedding {
	w := mat.NewDense(vocab, dim, nil)
	for i := 1; i < vocab; i++ {
		row := w.RawRowView(i)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
	}
	return &Embedding{W: w}
}

func (e *Embedding) Dim() int { _, c := e.W.Dims(); return c }

// Lookup returns one row per id. A nil ids slice of length n yields n
// padding rows.
func (e *Embedding) Lookup(ids []int64, n int) (*mat.Dense, error) {
	out := mat.NewDense(n, e.Dim(), nil)
	if ids == nil {
		return out, nil
	}
	if len(ids) != n {
		return nil, fmt.Errorf("%w: %d syntax ids for %d positions", ErrShape, len(ids), n)
	}
	vocab, _ := e.W.Dims()
	for i, id := range ids {
		if id < 0 || int(id) >= vocab {
			return nil, fmt.Errorf("%w: syntax id %d out of range [0,%d)", ErrShape, id, vocab)
		}
		out.SetRow(i, e.W.RawRowView(int(id)))
	}
	return out, nil
}
