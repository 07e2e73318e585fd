// Package ritotest builds little endian asset images for decoder tests.
package ritotest

import (
	"encoding/binary"
	"math"
)

// Builder appends little endian fields and allows patching earlier ones,
// which is how tests fill offsets once the target position is known.
type Builder struct {
	buf []byte
}

func New() *Builder { return &Builder{} }

func (b *Builder) Len() int { return len(b.buf) }

func (b *Builder) Data() []byte { return b.buf }

func (b *Builder) U8(v uint8) *Builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *Builder) U16(v uint16) *Builder {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return b.Raw(tmp[:])
}

func (b *Builder) I16(v int16) *Builder { return b.U16(uint16(v)) }

func (b *Builder) U32(v uint32) *Builder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return b.Raw(tmp[:])
}

func (b *Builder) I32(v int32) *Builder { return b.U32(uint32(v)) }

func (b *Builder) F32(vs ...float32) *Builder {
	for _, v := range vs {
		b.U32(math.Float32bits(v))
	}
	return b
}

func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Name writes s zero padded to n bytes.
func (b *Builder) Name(s string, n int) *Builder {
	p := make([]byte, n)
	copy(p, s)
	return b.Raw(p)
}

// CString writes s followed by a terminator.
func (b *Builder) CString(s string) *Builder {
	return b.Raw(append([]byte(s), 0))
}

func (b *Builder) Pad(n int) *Builder {
	return b.Raw(make([]byte, n))
}

// PadTo pads with zeroes until the image is pos bytes long.
func (b *Builder) PadTo(pos int) *Builder {
	if pos > len(b.buf) {
		b.Pad(pos - len(b.buf))
	}
	return b
}

func (b *Builder) SetU16(pos int, v uint16) *Builder {
	binary.LittleEndian.PutUint16(b.buf[pos:], v)
	return b
}

func (b *Builder) SetU32(pos int, v uint32) *Builder {
	binary.LittleEndian.PutUint32(b.buf[pos:], v)
	return b
}

// SetRel stores at fieldPos the offset of target counted from fieldPos.
func (b *Builder) SetRel(fieldPos, target int) *Builder {
	return b.SetU32(fieldPos, uint32(int32(target-fieldPos)))
}

// SetAbs stores at fieldPos the offset of target counted from base.
func (b *Builder) SetAbs(fieldPos, base, target int) *Builder {
	return b.SetU32(fieldPos, uint32(target-base))
}
