package distance

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// simdDot delegates straight to vek32's assembly-backed dot product, which
// internally processes AVX2/AVX512-width lanes and falls back on its own
// scalar tail for the remainder when len(a) isn't a multiple of the lane
// width.
func simdDot(a, b []float32) float32 {
	return vek32.Dot(a, b)
}

// simdL2 avoids a materialized element-wise difference by expanding
// ||a-b||^2 = dot(a,a) - 2*dot(a,b) + dot(b,b), so the whole computation
// stays on the vectorized dot-product path.
func simdL2(a, b []float32) float32 {
	sq := vek32.Dot(a, a) - 2*vek32.Dot(a, b) + vek32.Dot(b, b)
	if sq < 0 {
		// Guard against floating point cancellation producing a tiny
		// negative value for near-identical vectors.
		sq = 0
	}
	return float32(math.Sqrt(float64(sq)))
}

func simdCosine(a, b []float32) float32 {
	dot := vek32.Dot(a, b)
	normA := float32(math.Sqrt(float64(vek32.Dot(a, a))))
	normB := float32(math.Sqrt(float64(vek32.Dot(b, b))))
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - clampSimilarity(dot/(normA*normB))
}

// simdNormalize computes the norm on the vectorized dot-product path, then
// applies the division in lane-width chunks matching the detected register
// width (16 lanes under AVX-512, 8 under AVX2), with a scalar tail for the
// remainder.
func simdNormalize(v []float32) {
	sumSq := vek32.Dot(v, v)
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(float64(sumSq)))
	inv := 1 / norm

	lanes := Width
	n := len(v)
	i := 0
	for ; i+lanes <= n; i += lanes {
		chunk := v[i : i+lanes : i+lanes]
		for j := range chunk {
			chunk[j] *= inv
		}
	}
	for ; i < n; i++ {
		v[i] *= inv
	}
}
