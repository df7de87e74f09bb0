package embedding

import (
	"fmt"
	"strings"
)

// ExecutionProviders lists the ONNX Runtime execution providers an Options
// value may name.
var ExecutionProviders = []string{"cpu", "cuda", "tensorrt", "coreml", "dml"}

// NormalizeExecutionProvider lowercases ep and checks it is known. An empty
// value means cpu.
func NormalizeExecutionProvider(ep string) (string, error) {
	ep = strings.ToLower(strings.TrimSpace(ep))
	if ep == "" {
		return "cpu", nil
	}
	for _, known := range ExecutionProviders {
		if ep == known {
			return ep, nil
		}
	}
	return "", fmt.Errorf("unknown execution provider %q", ep)
}
