package embedding

// AdjustToDims truncates or zero-pads a vector to the target width.
// If target <= 0, returns the original slice.
func AdjustToDims(vec []float64, target int) []float64 {
	if target <= 0 || len(vec) == target {
		return vec
	}
	if len(vec) > target {
		return vec[:target]
	}
	out := make([]float64, target)
	copy(out, vec)
	return out
}
