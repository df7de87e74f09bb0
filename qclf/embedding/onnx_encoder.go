//go:build onnx
// +build onnx

package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gonum.org/v1/gonum/mat"
)

// onnxEncoder runs a BERT-style ONNX export. The first rank-3 float output is
// the last hidden state; any further rank-3 float outputs whose names contain
// "hidden_states" are treated as intermediate layers in declaration order.
type onnxEncoder struct {
	opts Options

	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
	layerNames  int
}

func newONNXEncoder(opts Options) (Encoder, error) {
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("onnx model path is required")
	}
	ep, err := NormalizeExecutionProvider(opts.ExecutionProvider)
	if err != nil {
		return nil, err
	}
	opts.ExecutionProvider = ep
	return &onnxEncoder{opts: opts}, nil
}

func (e *onnxEncoder) HiddenSize() int { return e.opts.HiddenSize }
func (e *onnxEncoder) NumLayers() int  { return e.opts.NumLayers }

func (e *onnxEncoder) ensureSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return nil
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	ins, outs, err := ort.GetInputOutputInfo(e.opts.ModelPath)
	if err != nil {
		return fmt.Errorf("get IO info: %w", err)
	}

	var inputNames []string
	for _, ii := range ins {
		n := strings.ToLower(ii.Name)
		if strings.Contains(n, "input_ids") || strings.Contains(n, "attention_mask") || strings.Contains(n, "token_type") {
			inputNames = append(inputNames, ii.Name)
		}
	}
	if len(inputNames) == 0 {
		return fmt.Errorf("could not determine ONNX input names")
	}

	var last string
	var layers []string
	for _, oi := range outs {
		if oi.DataType != ort.TensorElementDataTypeFloat || len(oi.Dimensions) != 3 {
			continue
		}
		switch {
		case last == "":
			last = oi.Name
		case strings.Contains(strings.ToLower(oi.Name), "hidden_states"):
			layers = append(layers, oi.Name)
		}
	}
	if last == "" {
		return fmt.Errorf("could not determine ONNX hidden state output")
	}

	opts, err := e.sessionOptions()
	if err != nil {
		return err
	}
	if opts != nil {
		defer opts.Destroy()
	}
	outputNames := append([]string{last}, layers...)
	s, err := ort.NewDynamicAdvancedSession(e.opts.ModelPath, inputNames, outputNames, opts)
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}
	e.session = s
	e.inputNames = inputNames
	e.outputNames = outputNames
	e.layerNames = len(layers)
	return nil
}

// sessionOptions appends the configured execution provider. A nil result
// means default CPU options.
func (e *onnxEncoder) sessionOptions() (*ort.SessionOptions, error) {
	if e.opts.ExecutionProvider == "cpu" {
		return nil, nil
	}
	o, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	_ = o.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)
	switch e.opts.ExecutionProvider {
	case "cuda":
		if cu, err := ort.NewCUDAProviderOptions(); err == nil {
			_ = o.AppendExecutionProviderCUDA(cu)
			_ = cu.Destroy()
		}
	case "tensorrt":
		if trt, err := ort.NewTensorRTProviderOptions(); err == nil {
			_ = o.AppendExecutionProviderTensorRT(trt)
			_ = trt.Destroy()
		}
	case "coreml":
		_ = o.AppendExecutionProviderCoreMLV2(map[string]string{})
	case "dml":
		_ = o.AppendExecutionProviderDirectML(e.opts.DeviceID)
	}
	return o, nil
}

func (e *onnxEncoder) Encode(ctx context.Context, ids, mask [][]int64, allLayers bool) (*Output, error) {
	if err := checkInput(ids, mask); err != nil {
		return nil, err
	}
	if err := e.ensureSession(); err != nil {
		return nil, err
	}
	if allLayers && e.layerNames == 0 {
		return nil, ErrLayersUnsupported
	}

	out := &Output{Hidden: make([]*mat.Dense, 0, len(ids))}
	if allLayers {
		out.Layers = make([][]*mat.Dense, e.layerNames+1)
	}
	for i := 0; i < len(ids); i += e.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(i+e.opts.BatchSize, len(ids))
		chunk, err := e.encodeChunk(ids[i:end], mask[i:end], allLayers)
		if err != nil {
			return nil, err
		}
		out.Hidden = append(out.Hidden, chunk[0]...)
		if allLayers {
			for l := 0; l < e.layerNames; l++ {
				out.Layers[l] = append(out.Layers[l], chunk[l+1]...)
			}
			out.Layers[e.layerNames] = append(out.Layers[e.layerNames], chunk[0]...)
		}
	}
	return out, nil
}

// encodeChunk returns [output][example] matrices for one sub-batch. Every
// row in a chunk is padded to the chunk's longest row.
func (e *onnxEncoder) encodeChunk(ids, mask [][]int64, allLayers bool) ([][]*mat.Dense, error) {
	batch := len(ids)
	seq := 0
	for _, row := range ids {
		seq = max(seq, len(row))
	}
	flatIDs := make([]int64, batch*seq)
	flatMask := make([]int64, batch*seq)
	for i := range ids {
		copy(flatIDs[i*seq:], ids[i])
		copy(flatMask[i*seq:], mask[i])
	}
	shape := ort.NewShape(int64(batch), int64(seq))
	idsTensor, err := ort.NewTensor(shape, flatIDs)
	if err != nil {
		return nil, fmt.Errorf("ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, flatMask)
	if err != nil {
		return nil, fmt.Errorf("mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, make([]int64, batch*seq))
	if err != nil {
		return nil, fmt.Errorf("token type tensor: %w", err)
	}
	defer typeTensor.Destroy()

	inVals := make([]ort.Value, len(e.inputNames))
	for i, name := range e.inputNames {
		switch n := strings.ToLower(name); {
		case strings.Contains(n, "input_ids"):
			inVals[i] = idsTensor
		case strings.Contains(n, "attention_mask"):
			inVals[i] = maskTensor
		default:
			inVals[i] = typeTensor
		}
	}
	outs := make([]ort.Value, len(e.outputNames))
	if err := e.session.Run(inVals, outs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	wanted := 1
	if allLayers {
		wanted = len(outs)
	}
	result := make([][]*mat.Dense, wanted)
	for k := 0; k < wanted; k++ {
		t, ok := outs[k].(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("unexpected output type for %s", e.outputNames[k])
		}
		result[k], err = e.split(t, ids)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.outputNames[k], err)
		}
	}
	return result, nil
}

// split turns a [batch, seq, width] tensor into one matrix per example,
// trimmed to the example's own length and fitted to HiddenSize columns.
func (e *onnxEncoder) split(t *ort.Tensor[float32], ids [][]int64) ([]*mat.Dense, error) {
	shape := t.GetShape()
	if len(shape) != 3 || int(shape[0]) != len(ids) {
		return nil, fmt.Errorf("%w: unexpected output shape %v", ErrInput, shape)
	}
	seq, width := int(shape[1]), int(shape[2])
	data := t.GetData()
	states := make([]*mat.Dense, len(ids))
	row := make([]float64, width)
	for i := range ids {
		m := mat.NewDense(len(ids[i]), e.opts.HiddenSize, nil)
		for p := range ids[i] {
			base := (i*seq + p) * width
			for j := range row {
				row[j] = float64(data[base+j])
			}
			m.SetRow(p, AdjustToDims(row, e.opts.HiddenSize))
		}
		states[i] = m
	}
	return states, nil
}
