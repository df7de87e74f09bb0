package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"gonum.org/v1/gonum/mat"
)

// HashEncoder derives every hidden vector from sha256 of (id, position,
// layer). Positions with mask 0 are zero. It has no weights and is only
// useful for wiring and tests.
type HashEncoder struct {
	hidden int
	layers int
}

func NewHashEncoder(hidden, layers int) *HashEncoder {
	if hidden <= 0 {
		hidden = 768
	}
	if layers <= 0 {
		layers = 1
	}
	return &HashEncoder{hidden: hidden, layers: layers}
}

func (h *HashEncoder) HiddenSize() int { return h.hidden }
func (h *HashEncoder) NumLayers() int  { return h.layers }

func (h *HashEncoder) Encode(ctx context.Context, ids, mask [][]int64, allLayers bool) (*Output, error) {
	if err := checkInput(ids, mask); err != nil {
		return nil, err
	}
	out := &Output{}
	first := h.layers - 1
	if allLayers {
		first = 0
		out.Layers = make([][]*mat.Dense, h.layers)
	}
	for l := first; l < h.layers; l++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		states := make([]*mat.Dense, len(ids))
		for i := range ids {
			states[i] = h.encodeRow(ids[i], mask[i], l)
		}
		if allLayers {
			out.Layers[l] = states
		}
		if l == h.layers-1 {
			out.Hidden = states
		}
	}
	return out, nil
}

func (h *HashEncoder) encodeRow(ids, mask []int64, layer int) *mat.Dense {
	if len(ids) == 0 {
		return nil
	}
	m := mat.NewDense(len(ids), h.hidden, nil)
	var key [32]byte
	for pos, id := range ids {
		if mask[pos] == 0 {
			continue
		}
		binary.LittleEndian.PutUint64(key[0:], uint64(id))
		binary.LittleEndian.PutUint64(key[8:], uint64(pos))
		binary.LittleEndian.PutUint64(key[16:], uint64(layer))
		row := m.RawRowView(pos)
		var sum [32]byte
		for j := range row {
			// fresh digest every 32 dims
			if j%len(sum) == 0 {
				binary.LittleEndian.PutUint64(key[24:], uint64(j/len(sum)))
				sum = sha256.Sum256(key[:])
			}
			row[j] = (float64(sum[j%len(sum)]) - 128.0) / 128.0
		}
	}
	return m
}
