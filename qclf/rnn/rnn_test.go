package rnn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func seq(rows, cols int, start float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = start + float64(i)
	}
	return mat.NewDense(rows, cols, data)
}

func TestPackUnpack(t *testing.T) {
	inputs := []*mat.Dense{seq(4, 2, 0), seq(4, 2, 100), seq(4, 2, 200)}
	lengths := []int{4, 2, 1}

	p, err := Pack(inputs, lengths)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 2, 1, 1}, p.BatchSizes)
	assert.Equal(t, []int{0, 3, 5, 6}, p.Offsets())
	assert.Equal(t, lengths, p.Lengths())
	assert.Equal(t, 4, p.Steps())
	assert.Equal(t, 3, p.Batch())
	r, _ := p.Data.Dims()
	assert.Equal(t, 7, r)
	assert.Equal(t, []float64{0, 1}, p.Data.RawRowView(0))
	assert.Equal(t, []float64{100, 101}, p.Data.RawRowView(1))
	assert.Equal(t, []float64{200, 201}, p.Data.RawRowView(2))
	assert.Equal(t, []float64{2, 3}, p.Data.RawRowView(3))

	out, gotLengths := Unpack(p)
	assert.Equal(t, lengths, gotLengths)
	require.Len(t, out, 3)
	for i, m := range out {
		rows, cols := m.Dims()
		assert.Equal(t, 4, rows)
		assert.Equal(t, 2, cols)
		for r := 0; r < rows; r++ {
			if r < lengths[i] {
				assert.Equal(t, inputs[i].RawRowView(r), m.RawRowView(r))
			} else {
				assert.Equal(t, []float64{0, 0}, m.RawRowView(r))
			}
		}
	}
}

func TestPackErrors(t *testing.T) {
	_, err := Pack(nil, nil)
	assert.ErrorIs(t, err, ErrShape)

	_, err = Pack([]*mat.Dense{seq(2, 2, 0), seq(3, 2, 0)}, []int{2, 3})
	assert.ErrorIs(t, err, ErrNotSorted)

	_, err = Pack([]*mat.Dense{seq(2, 2, 0)}, []int{0})
	assert.ErrorIs(t, err, ErrEmptySequence)

	_, err = Pack([]*mat.Dense{seq(2, 2, 0)}, []int{3})
	assert.ErrorIs(t, err, ErrShape)

	_, err = Pack([]*mat.Dense{seq(2, 2, 0), seq(2, 3, 0)}, []int{2, 2})
	assert.ErrorIs(t, err, ErrShape)

	_, err = Pack([]*mat.Dense{seq(2, 2, 0)}, []int{2, 1})
	assert.ErrorIs(t, err, ErrShape)
}

func TestLSTMSingleStepMatchesClosedForm(t *testing.T) {
	l, err := NewLSTM(Config{InputSize: 1, HiddenSize: 1, NumLayers: 1}, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	cell := l.Cell(0, 0)
	// gates = w*x with every bias zero
	cell.Wih = mat.NewDense(4, 1, []float64{0.5, -0.25, 1.0, 2.0})
	cell.Whh = mat.NewDense(4, 1, []float64{0, 0, 0, 0})
	cell.Bih = mat.NewVecDense(4, nil)
	cell.Bhh = mat.NewVecDense(4, nil)

	p, err := Pack([]*mat.Dense{mat.NewDense(1, 1, []float64{2})}, []int{1})
	require.NoError(t, err)
	out, state, err := l.Forward(p)
	require.NoError(t, err)

	i := sigmoid(1.0)
	g := math.Tanh(2.0)
	o := sigmoid(4.0)
	wantC := i * g
	wantH := o * math.Tanh(wantC)
	assert.InDelta(t, wantH, out.Data.At(0, 0), 1e-12)
	assert.InDelta(t, wantH, state.H[0].At(0, 0), 1e-12)
	assert.InDelta(t, wantC, state.C[0].At(0, 0), 1e-12)
}

func TestLSTMBatchMatchesSoloRuns(t *testing.T) {
	for _, bidirectional := range []bool{false, true} {
		l, err := NewLSTM(Config{InputSize: 3, HiddenSize: 4, NumLayers: 2, Bidirectional: bidirectional},
			rand.New(rand.NewPCG(7, 11)))
		require.NoError(t, err)

		rng := rand.New(rand.NewPCG(3, 5))
		lengths := []int{5, 3, 3, 1}
		inputs := make([]*mat.Dense, len(lengths))
		for i := range inputs {
			data := make([]float64, 5*3)
			for j := range data {
				data[j] = rng.NormFloat64()
			}
			inputs[i] = mat.NewDense(5, 3, data)
		}

		p, err := Pack(inputs, lengths)
		require.NoError(t, err)
		packedOut, state, err := l.Forward(p)
		require.NoError(t, err)
		batchOut, _ := Unpack(packedOut)

		for i := range inputs {
			solo := inputs[i].Slice(0, lengths[i], 0, 3).(*mat.Dense)
			sp, err := Pack([]*mat.Dense{solo}, []int{lengths[i]})
			require.NoError(t, err)
			soloOut, soloState, err := l.Forward(sp)
			require.NoError(t, err)

			for r := 0; r < lengths[i]; r++ {
				assert.InDeltaSlice(t, soloOut.Data.RawRowView(r), batchOut[i].RawRowView(r), 1e-12,
					"bidirectional=%v seq=%d step=%d", bidirectional, i, r)
			}
			for k := range state.H {
				assert.InDeltaSlice(t, soloState.H[k].RawRowView(0), state.H[k].RawRowView(i), 1e-12)
				assert.InDeltaSlice(t, soloState.C[k].RawRowView(0), state.C[k].RawRowView(i), 1e-12)
			}
		}
		assert.Len(t, state.H, 2*l.directions())
		assert.Equal(t, 4*l.directions(), l.OutputSize())
	}
}

func TestLSTMRejectsBadInput(t *testing.T) {
	_, err := NewLSTM(Config{InputSize: 0, HiddenSize: 1, NumLayers: 1}, rand.New(rand.NewPCG(1, 1)))
	assert.ErrorIs(t, err, ErrShape)

	l, err := NewLSTM(Config{InputSize: 2, HiddenSize: 2, NumLayers: 1}, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	p, err := Pack([]*mat.Dense{seq(2, 3, 0)}, []int{2})
	require.NoError(t, err)
	_, _, err = l.Forward(p)
	assert.ErrorIs(t, err, ErrShape)
}
