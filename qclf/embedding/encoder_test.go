package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEncoder(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"Shapes", testHashEncoderShapes},
		{"Deterministic", testHashEncoderDeterministic},
		{"MaskedRowsAreZero", testHashEncoderMaskedRowsAreZero},
		{"AllLayers", testHashEncoderAllLayers},
		{"RejectsMismatchedInput", testHashEncoderRejectsMismatchedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testHashEncoderShapes(t *testing.T) {
	enc := NewHashEncoder(40, 3)
	out, err := enc.Encode(context.Background(), [][]int64{{2, 5, 3}, {2, 3, 0}}, [][]int64{{1, 1, 1}, {1, 1, 0}}, false)
	require.NoError(t, err)
	require.Len(t, out.Hidden, 2)
	assert.Nil(t, out.Layers)
	r, c := out.Hidden[0].Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 40, c)
	for _, v := range out.Hidden[0].RawRowView(1) {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.Less(t, v, 1.0)
	}
}

func testHashEncoderDeterministic(t *testing.T) {
	enc := NewHashEncoder(8, 2)
	a, err := enc.Encode(context.Background(), [][]int64{{2, 5, 3}}, [][]int64{{1, 1, 1}}, false)
	require.NoError(t, err)
	b, err := enc.Encode(context.Background(), [][]int64{{2, 5, 3, 0, 0}}, [][]int64{{1, 1, 1, 0, 0}}, false)
	require.NoError(t, err)
	for p := 0; p < 3; p++ {
		assert.Equal(t, a.Hidden[0].RawRowView(p), b.Hidden[0].RawRowView(p))
	}
	// same id at another position differs
	assert.NotEqual(t, a.Hidden[0].RawRowView(0), a.Hidden[0].RawRowView(1))
}

func testHashEncoderMaskedRowsAreZero(t *testing.T) {
	enc := NewHashEncoder(4, 1)
	out, err := enc.Encode(context.Background(), [][]int64{{2, 3, 0}}, [][]int64{{1, 1, 0}}, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, out.Hidden[0].RawRowView(2))
}

func testHashEncoderAllLayers(t *testing.T) {
	enc := NewHashEncoder(4, 3)
	out, err := enc.Encode(context.Background(), [][]int64{{2, 3}}, [][]int64{{1, 1}}, true)
	require.NoError(t, err)
	require.Len(t, out.Layers, 3)
	assert.Same(t, out.Hidden[0], out.Layers[2][0])
	assert.NotEqual(t, out.Layers[0][0].RawRowView(0), out.Layers[1][0].RawRowView(0))

	last, err := out.Layer(-1)
	require.NoError(t, err)
	assert.Same(t, out.Layers[2][0], last[0])
	_, err = out.Layer(3)
	assert.ErrorIs(t, err, ErrInput)
	_, err = (&Output{}).Layer(0)
	assert.ErrorIs(t, err, ErrLayersUnsupported)
}

func testHashEncoderRejectsMismatchedInput(t *testing.T) {
	enc := NewHashEncoder(4, 1)
	_, err := enc.Encode(context.Background(), [][]int64{{2, 3}}, [][]int64{{1}}, false)
	assert.ErrorIs(t, err, ErrInput)
	_, err = enc.Encode(context.Background(), [][]int64{{2, 3}}, nil, false)
	assert.ErrorIs(t, err, ErrInput)
}

func TestNew(t *testing.T) {
	enc, err := New(Options{Provider: "hash", HiddenSize: 16, NumLayers: 2})
	require.NoError(t, err)
	assert.Equal(t, 16, enc.HiddenSize())
	assert.Equal(t, 2, enc.NumLayers())

	_, err = New(Options{Provider: "hash"})
	assert.ErrorIs(t, err, ErrInput)

	_, err = New(Options{Provider: "bogus", HiddenSize: 4})
	assert.Error(t, err)

	_, err = New(Options{Provider: "onnx", HiddenSize: 4})
	assert.Error(t, err)
}

func TestNormalizeExecutionProvider(t *testing.T) {
	ep, err := NormalizeExecutionProvider(" CUDA ")
	require.NoError(t, err)
	assert.Equal(t, "cuda", ep)
	ep, err = NormalizeExecutionProvider("")
	require.NoError(t, err)
	assert.Equal(t, "cpu", ep)
	_, err = NormalizeExecutionProvider("tpu")
	assert.Error(t, err)
}

func TestAdjustToDims(t *testing.T) {
	assert.Equal(t, []float64{1, 2}, AdjustToDims([]float64{1, 2, 3}, 2))
	assert.Equal(t, []float64{1, 2, 0, 0}, AdjustToDims([]float64{1, 2}, 4))
	assert.Equal(t, []float64{1}, AdjustToDims([]float64{1}, 0))
}
