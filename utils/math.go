package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a decomposed affine placement: translate * rotate * scale.
type Transform struct {
	Translation mgl32.Vec3
	Scale       mgl32.Vec3
	Rotation    mgl32.Quat
}

func IdentTransform() Transform {
	return Transform{
		Scale:    mgl32.Vec3{1, 1, 1},
		Rotation: mgl32.QuatIdent(),
	}
}

// Compose builds the matrix T*R*S (column vector convention).
func Compose(t Transform) mgl32.Mat4 {
	r := NormalizeQuat(t.Rotation).Mat4()
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(r).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// Decompose splits an affine matrix without shear back into T, R and S.
// A negative determinant is folded into the x scale.
func Decompose(m mgl32.Mat4) Transform {
	t := Transform{
		Translation: mgl32.Vec3{m[12], m[13], m[14]},
	}

	var rot mgl32.Mat4 = mgl32.Ident4()
	for c := 0; c < 3; c++ {
		col := mgl32.Vec3{m[c*4], m[c*4+1], m[c*4+2]}
		s := col.Len()
		if c == 0 && m.Mat3().Det() < 0 {
			s = -s
		}
		t.Scale[c] = s
		if s != 0 {
			col = col.Mul(1 / s)
		}
		rot[c*4], rot[c*4+1], rot[c*4+2] = col[0], col[1], col[2]
	}
	t.Rotation = NormalizeQuat(mgl32.Mat4ToQuat(rot))
	return t
}

// NormalizeQuat returns q scaled to unit length. A zero quaternion becomes
// the identity instead of NaNs.
func NormalizeQuat(q mgl32.Quat) mgl32.Quat {
	l := q.Len()
	if l == 0 || math.IsNaN(float64(l)) {
		return mgl32.QuatIdent()
	}
	if l == 1 {
		return q
	}
	return mgl32.Quat{W: q.W / l, V: q.V.Mul(1 / l)}
}

// Placement3x4 builds a matrix from three stored rows of [R | t].
func Placement3x4(rows [12]float32) mgl32.Mat4 {
	return mgl32.Mat4FromRows(
		mgl32.Vec4{rows[0], rows[1], rows[2], rows[3]},
		mgl32.Vec4{rows[4], rows[5], rows[6], rows[7]},
		mgl32.Vec4{rows[8], rows[9], rows[10], rows[11]},
		mgl32.Vec4{0, 0, 0, 1},
	)
}

const (
	quantizedScale = 32767.0
	sqrt2          = math.Sqrt2
	invSqrt2       = 1 / math.Sqrt2
)

// DecompressQuat expands a 48 bit quantized quaternion: a 2 bit index of
// the dropped (largest) component above three 15 bit components in
// [-1/sqrt2, 1/sqrt2]. The dropped component is rebuilt with a plain sqrt
// and the result is normalised.
func DecompressQuat(v [3]uint16) mgl32.Quat {
	bits := uint64(v[0]) | uint64(v[1])<<16 | uint64(v[2])<<32
	maxIndex := (bits >> 45) & 0x3

	dequant := func(x uint64) float64 {
		return float64(x&0x7FFF)/quantizedScale*sqrt2 - invSqrt2
	}
	a := dequant(bits >> 30)
	b := dequant(bits >> 15)
	c := dequant(bits)
	d := math.Sqrt(math.Max(0, 1-(a*a+b*b+c*c)))

	var x, y, z, w float64
	switch maxIndex {
	case 0:
		x, y, z, w = d, a, b, c
	case 1:
		x, y, z, w = a, d, b, c
	case 2:
		x, y, z, w = a, b, d, c
	default:
		x, y, z, w = a, b, c, d
	}
	return NormalizeQuat(mgl32.Quat{W: float32(w), V: mgl32.Vec3{float32(x), float32(y), float32(z)}})
}
