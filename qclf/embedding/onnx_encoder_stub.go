//go:build !onnx
// +build !onnx

package embedding

import "fmt"

func newONNXEncoder(opts Options) (Encoder, error) {
	return nil, fmt.Errorf("onnx encoder not available: build with -tags onnx and provide a supported model")
}
