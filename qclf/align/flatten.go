package align

// Flatten concatenates nested slices in order.
func Flatten[T any](nested [][]T) []T {
	n := 0
	for _, inner := range nested {
		n += len(inner)
	}
	out := make([]T, 0, n)
	for _, inner := range nested {
		out = append(out, inner...)
	}
	return out
}
