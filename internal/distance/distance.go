// Package distance implements the float32 distance kernels the vector index
// runs on every candidate comparison: dot product, Euclidean (L2), cosine,
// and in-place L2 normalization.
//
// Each kernel picks a vectorized path at process startup based on detected
// CPU features (AVX-512, then AVX2), falling back to a portable scalar loop
// on anything else. None of the kernels allocate, and none read past the
// shorter of the two input lengths.
package distance

import "golang.org/x/sys/cpu"

// Width reports the SIMD lane width (in float32 elements) the package
// selected for the vectorized path on this CPU. 1 means the scalar
// fallback is active.
var Width = scalarWidth

const (
	lanesAVX2   = 8
	lanesAVX512 = 16
	scalarWidth = 1
)

var useSIMD bool

func init() {
	switch {
	case cpu.X86.HasAVX512F:
		useSIMD = true
		Width = lanesAVX512
	case cpu.X86.HasAVX2:
		useSIMD = true
		Width = lanesAVX2
	default:
		useSIMD = false
		Width = scalarWidth
	}
}

// Dot returns the dot product of a and b over their shared length
// (min(len(a), len(b))).
func Dot(a, b []float32) float32 {
	n := minLen(a, b)
	if useSIMD {
		return simdDot(a[:n], b[:n])
	}
	return scalarDot(a[:n], b[:n])
}

// L2 returns the Euclidean distance between a and b (not squared).
func L2(a, b []float32) float32 {
	n := minLen(a, b)
	if useSIMD {
		return simdL2(a[:n], b[:n])
	}
	return scalarL2(a[:n], b[:n])
}

// Cosine returns 1 - cos(theta) between a and b, so lower means closer.
// Returns 1 (the distance of two orthogonal vectors) if either vector has
// zero magnitude; the full range is [0, 2].
func Cosine(a, b []float32) float32 {
	n := minLen(a, b)
	if useSIMD {
		return simdCosine(a[:n], b[:n])
	}
	return scalarCosine(a[:n], b[:n])
}

// Normalize L2-normalizes v in place. A zero vector is left untouched.
func Normalize(v []float32) {
	if useSIMD {
		simdNormalize(v)
		return
	}
	scalarNormalize(v)
}

func minLen(a, b []float32) int {
	if len(a) < len(b) {
		return len(a)
	}
	return len(b)
}
