package rnn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// State is the final hidden and cell state of every layer and direction,
// indexed layer*directions+direction (forward 0, backward 1). Each matrix has
// one row per sequence, in the order the sequences were packed.
type State struct {
	H []*mat.Dense
	C []*mat.Dense
}

// Layer is a recurrent transform over packed sequences.
type Layer interface {
	Forward(p *PackedSequence) (*PackedSequence, *State, error)
	InputSize() int
	OutputSize() int
}

// Cell holds the weights of one LSTM direction in one layer. Gate rows are
// ordered input, forget, cell, output.
type Cell struct {
	Wih *mat.Dense    // 4H x in
	Whh *mat.Dense    // 4H x H
	Bih *mat.VecDense // 4H
	Bhh *mat.VecDense // 4H
}

// Config sizes an LSTM.
type Config struct {
	InputSize     int
	HiddenSize    int
	NumLayers     int
	Bidirectional bool
}

// LSTM is a stacked LSTM. Weights are read-only during Forward.
type LSTM struct {
	cfg   Config
	cells [][]*Cell // [layer][direction]
}

// NewLSTM allocates an LSTM with weights drawn from U(-1/sqrt(H), 1/sqrt(H)).
func NewLSTM(cfg Config, rng *rand.Rand) (*LSTM, error) {
	if cfg.InputSize <= 0 || cfg.HiddenSize <= 0 || cfg.NumLayers <= 0 {
		return nil, fmt.Errorf("%w: lstm sizes must be positive: %+v", ErrShape, cfg)
	}
	bound := 1 / math.Sqrt(float64(cfg.HiddenSize))
	l := &LSTM{cfg: cfg, cells: make([][]*Cell, cfg.NumLayers)}
	for layer := range l.cells {
		in := cfg.InputSize
		if layer > 0 {
			in = cfg.HiddenSize * l.directions()
		}
		l.cells[layer] = make([]*Cell, l.directions())
		for d := range l.cells[layer] {
			l.cells[layer][d] = newCell(in, cfg.HiddenSize, bound, rng)
		}
	}
	return l, nil
}

func newCell(in, hidden int, bound float64, rng *rand.Rand) *Cell {
	uniform := func(n int) []float64 {
		v := make([]float64, n)
		for i := range v {
			v[i] = (rng.Float64()*2 - 1) * bound
		}
		return v
	}
	g := 4 * hidden
	return &Cell{
		Wih: mat.NewDense(g, in, uniform(g*in)),
		Whh: mat.NewDense(g, hidden, uniform(g*hidden)),
		Bih: mat.NewVecDense(g, uniform(g)),
		Bhh: mat.NewVecDense(g, uniform(g)),
	}
}

func (l *LSTM) directions() int {
	if l.cfg.Bidirectional {
		return 2
	}
	return 1
}

func (l *LSTM) Config() Config  { return l.cfg }
func (l *LSTM) InputSize() int  { return l.cfg.InputSize }
func (l *LSTM) OutputSize() int { return l.cfg.HiddenSize * l.directions() }

// Cell returns the weights for layer and direction (0 forward, 1 backward).
func (l *LSTM) Cell(layer, direction int) *Cell { return l.cells[layer][direction] }

// Forward runs every layer over p. A sequence's state stops changing once
// its length is reached, so padding never leaks into the final state.
func (l *LSTM) Forward(p *PackedSequence) (*PackedSequence, *State, error) {
	if _, c := p.Data.Dims(); c != l.cfg.InputSize {
		return nil, nil, fmt.Errorf("%w: packed input has %d features, lstm expects %d", ErrShape, c, l.cfg.InputSize)
	}
	state := &State{}
	input := p.Data
	for layer := range l.cells {
		total, _ := input.Dims()
		out := mat.NewDense(total, l.OutputSize(), nil)
		for d, cell := range l.cells[layer] {
			h, c := runDirection(cell, input, p.BatchSizes, d == 1, out, d*l.cfg.HiddenSize)
			state.H = append(state.H, h)
			state.C = append(state.C, c)
		}
		input = out
	}
	return &PackedSequence{Data: input, BatchSizes: p.BatchSizes}, state, nil
}

// runDirection steps one cell through the packed input, writing hidden
// outputs into columns [col, col+H) of out.
func runDirection(cell *Cell, input *mat.Dense, batchSizes []int, reverse bool, out *mat.Dense, col int) (*mat.Dense, *mat.Dense) {
	hidden, _ := cell.Whh.Dims()
	hidden /= 4
	batch := batchSizes[0]
	h := mat.NewDense(batch, hidden, nil)
	c := mat.NewDense(batch, hidden, nil)

	offsets := (&PackedSequence{BatchSizes: batchSizes}).Offsets()
	gates := mat.NewVecDense(4*hidden, nil)
	rec := mat.NewVecDense(4*hidden, nil)

	steps := len(batchSizes)
	for s := 0; s < steps; s++ {
		t := s
		if reverse {
			t = steps - 1 - s
		}
		for b := 0; b < batchSizes[t]; b++ {
			row := offsets[t] + b
			gates.MulVec(cell.Wih, input.RowView(row))
			rec.MulVec(cell.Whh, h.RowView(b))
			gates.AddVec(gates, rec)
			gates.AddVec(gates, cell.Bih)
			gates.AddVec(gates, cell.Bhh)

			hRow := h.RawRowView(b)
			cRow := c.RawRowView(b)
			for j := 0; j < hidden; j++ {
				i := sigmoid(gates.AtVec(j))
				f := sigmoid(gates.AtVec(hidden + j))
				g := math.Tanh(gates.AtVec(2*hidden + j))
				o := sigmoid(gates.AtVec(3*hidden + j))
				cRow[j] = f*cRow[j] + i*g
				hRow[j] = o * math.Tanh(cRow[j])
			}
			copy(out.RawRowView(row)[col:col+hidden], hRow)
		}
	}
	return h, c
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
