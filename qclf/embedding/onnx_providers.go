//go:build onnx
// +build onnx

package embedding

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// ListONNXProviders initializes ONNX Runtime and reports the execution
// providers this build can request. Availability of a GPU provider is only
// known once a session is created with it.
func ListONNXProviders() ([]string, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	return append([]string(nil), ExecutionProviders...), nil
}
