package core

// EnsureLen returns buf resized to length n, reallocating only when the
// capacity is insufficient. Intended for prepare-time sizing; realtime code
// must size buffers up front so this never allocates in a process call.
func EnsureLen(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}

	return buf[:n]
}

// Zero clears buf in place.
func Zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}
