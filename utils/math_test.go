package utils

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/ritofmt/rito/ritotest"
)

func TestDecompressQuatUnitNorm(t *testing.T) {
	check := func(v [3]uint16) {
		q := DecompressQuat(v)
		if l := float64(q.Len()); math.Abs(l-1) > 1e-3 {
			t.Fatalf("DecompressQuat(%v) norm %f", v, l)
		}
	}

	for _, v := range [][3]uint16{
		{0, 0, 0},
		{0xFFFF, 0xFFFF, 0xFFFF},
		{0x3FFF, 0x3FFF << 1, 0x3FFF << 2},
		{0x7FFF, 0x7FFF, 0x7FFF},
		{0x4000, 0x2000, 0x1000},
	} {
		check(v)
	}

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 100000; i++ {
		check([3]uint16{uint16(rnd.Uint32()), uint16(rnd.Uint32()), uint16(rnd.Uint32())})
	}
}

func TestDecompressQuatDroppedComponent(t *testing.T) {
	// a = b = c = 16384 dequantizes to almost zero, so the dropped
	// component must come back as ~1 in the slot named by the index
	mid := uint64(16384)
	for idx := uint64(0); idx < 4; idx++ {
		bits := idx<<45 | mid<<30 | mid<<15 | mid
		q := DecompressQuat([3]uint16{uint16(bits), uint16(bits >> 16), uint16(bits >> 32)})
		comps := [4]float32{q.V[0], q.V[1], q.V[2], q.W}
		if comps[idx] < 0.999 {
			t.Errorf("index %d: got %v", idx, comps)
		}
	}
}

func TestComposeDecompose(t *testing.T) {
	in := Transform{
		Translation: mgl32.Vec3{1, -2, 3},
		Scale:       mgl32.Vec3{2, 0.5, 1.5},
		Rotation:    mgl32.QuatRotate(0.7, mgl32.Vec3{1, 2, 3}.Normalize()),
	}
	out := Decompose(Compose(in))
	if ritotest.MaxDiff(out.Translation[:], in.Translation[:]) > 1e-4 {
		t.Errorf("translation %v != %v", out.Translation, in.Translation)
	}
	if ritotest.MaxDiff(out.Scale[:], in.Scale[:]) > 1e-4 {
		t.Errorf("scale %v != %v", out.Scale, in.Scale)
	}
	if math.Abs(float64(out.Rotation.Dot(in.Rotation))) < 1-1e-4 {
		t.Errorf("rotation %v != %v", out.Rotation, in.Rotation)
	}
	if ritotest.MatDiff(Compose(out), Compose(in)) > 1e-4 {
		t.Errorf("recomposed %v != %v", Compose(out), Compose(in))
	}
}

func TestPlacement3x4(t *testing.T) {
	m := Placement3x4([12]float32{
		1, 0, 0, 5,
		0, 1, 0, 6,
		0, 0, 1, 7,
	})
	if got := m.Mul4x1(mgl32.Vec4{0, 0, 0, 1}); got != (mgl32.Vec4{5, 6, 7, 1}) {
		t.Errorf("origin maps to %v", got)
	}
}

func TestNormalizeQuatZero(t *testing.T) {
	if q := NormalizeQuat(mgl32.Quat{}); q != mgl32.QuatIdent() {
		t.Errorf("got %v", q)
	}
}
