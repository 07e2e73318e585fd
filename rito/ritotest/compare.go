package ritotest

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxDiff returns the largest absolute difference between matching
// components of a and b, or +Inf when their lengths differ.
func MaxDiff(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var d float64
	for i := range a {
		d = math.Max(d, math.Abs(float64(a[i])-float64(b[i])))
	}
	return d
}

func MatDiff(a, b mgl32.Mat4) float64 { return MaxDiff(a[:], b[:]) }

// QuatDiff treats q and -q as the same rotation.
func QuatDiff(a, b mgl32.Quat) float64 {
	av := []float32{a.W, a.V[0], a.V[1], a.V[2]}
	d := MaxDiff(av, []float32{b.W, b.V[0], b.V[1], b.V[2]})
	return math.Min(d, MaxDiff(av, []float32{-b.W, -b.V[0], -b.V[1], -b.V[2]}))
}
