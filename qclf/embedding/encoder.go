// Package embedding provides the transformer encoder collaborators: a
// deterministic hash encoder for development and tests, and an ONNX Runtime
// encoder when built with the onnx tag.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrLayersUnsupported is returned when intermediate layers are requested
	// from an encoder that cannot expose them.
	ErrLayersUnsupported = errors.New("encoder does not expose intermediate layers")
	// ErrInput is returned for malformed id or mask batches.
	ErrInput = errors.New("invalid encoder input")
)

// Encoder maps padded subword ids to per-position hidden vectors.
type Encoder interface {
	HiddenSize() int
	NumLayers() int
	// Encode returns one len(ids[i]) x HiddenSize matrix per example. With
	// allLayers set, Output.Layers is filled as well.
	Encode(ctx context.Context, ids, mask [][]int64, allLayers bool) (*Output, error)
}

// Output holds encoder results. Layers[l][i] is layer l for example i; the
// last layer equals Hidden.
type Output struct {
	Hidden []*mat.Dense
	Layers [][]*mat.Dense
}

// Layer resolves a possibly negative layer index (-1 is the last layer).
func (o *Output) Layer(index int) ([]*mat.Dense, error) {
	n := len(o.Layers)
	if n == 0 {
		return nil, ErrLayersUnsupported
	}
	if index < 0 {
		index += n
	}
	if index < 0 || index >= n {
		return nil, fmt.Errorf("%w: layer %d out of range [0,%d)", ErrInput, index, n)
	}
	return o.Layers[index], nil
}

// Options selects and sizes an encoder.
type Options struct {
	Provider          string // hash | onnx
	ModelPath         string
	HiddenSize        int
	NumLayers         int
	ExecutionProvider string // cpu | cuda | tensorrt | coreml | dml
	DeviceID          int
	BatchSize         int
}

// New returns the encoder named by opts.Provider.
func New(opts Options) (Encoder, error) {
	if opts.HiddenSize <= 0 {
		return nil, fmt.Errorf("%w: hidden size must be positive", ErrInput)
	}
	if opts.NumLayers <= 0 {
		opts.NumLayers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "hash", "", "dev":
		return NewHashEncoder(opts.HiddenSize, opts.NumLayers), nil
	case "onnx":
		return newONNXEncoder(opts)
	}
	return nil, fmt.Errorf("unknown encoder provider %q", opts.Provider)
}

func checkInput(ids, mask [][]int64) error {
	if len(ids) != len(mask) {
		return fmt.Errorf("%w: %d id rows, %d mask rows", ErrInput, len(ids), len(mask))
	}
	for i := range ids {
		if len(ids[i]) != len(mask[i]) {
			return fmt.Errorf("%w: row %d has %d ids, %d mask entries", ErrInput, i, len(ids[i]), len(mask[i]))
		}
	}
	return nil
}
