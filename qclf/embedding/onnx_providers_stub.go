//go:build !onnx
// +build !onnx

package embedding

import "errors"

// ErrONNXNotBuilt is returned by ONNX helpers in builds without the onnx tag.
var ErrONNXNotBuilt = errors.New("onnx support not built in; rebuild with -tags=onnx to enable")

func ListONNXProviders() ([]string, error) { return nil, ErrONNXNotBuilt }
