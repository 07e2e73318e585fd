// Package cursor reads fixed layout records out of an untrusted in-memory
// asset. Every position handed out by a Buffer has been checked against the
// buffer length first.
package cursor

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

// Buffer is an immutable asset image. Positions are byte indices into it.
type Buffer struct {
	data []byte
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) Len() int { return len(b.data) }

// Check fails with OutOfBounds unless [pos, pos+size) lies inside the buffer.
func (b *Buffer) Check(field string, pos, size int) error {
	if pos < 0 || size < 0 || pos > len(b.data) || size > len(b.data)-pos {
		return rito.OutOfBounds(field, int64(pos), "0x%x bytes, buffer length 0x%x", size, len(b.data))
	}
	return nil
}

// CheckArray is Check for count elements of elemSize bytes, guarding the
// multiplication against overflow.
func (b *Buffer) CheckArray(field string, pos, count, elemSize int) error {
	if count < 0 || elemSize < 0 || (elemSize != 0 && count > len(b.data)/elemSize) {
		return rito.OutOfBounds(field, int64(pos), "%d elements of 0x%x bytes, buffer length 0x%x", count, elemSize, len(b.data))
	}
	return b.Check(field, pos, count*elemSize)
}

// Bytes returns a copy of size bytes at pos.
func (b *Buffer) Bytes(field string, pos, size int) ([]byte, error) {
	if err := b.Check(field, pos, size); err != nil {
		return nil, err
	}
	return append([]byte(nil), b.data[pos:pos+size]...), nil
}

func (b *Buffer) U16(field string, pos int) (uint16, error) {
	if err := b.Check(field, pos, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b.data[pos:]), nil
}

func (b *Buffer) U32(field string, pos int) (uint32, error) {
	if err := b.Check(field, pos, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b.data[pos:]), nil
}

// CStringBytes returns the zero terminated byte run starting at pos, without
// the terminator. A run that reaches the end of the buffer is OutOfBounds.
func (b *Buffer) CStringBytes(field string, pos int) ([]byte, error) {
	if err := b.Check(field, pos, 1); err != nil {
		return nil, err
	}
	n := utils.BytesStringLength(b.data[pos:])
	if pos+n == len(b.data) {
		return nil, rito.OutOfBounds(field, int64(pos), "unterminated string")
	}
	return append([]byte(nil), b.data[pos:pos+n]...), nil
}

func (b *Buffer) CString(field string, pos int) (string, error) {
	raw, err := b.CStringBytes(field, pos)
	if err != nil {
		return "", err
	}
	return utils.BytesToString(raw), nil
}

// At returns a cursor positioned at pos.
func (b *Buffer) At(pos int) *Cursor {
	return &Cursor{buf: b, pos: pos}
}

// Cursor reads sequential little endian fields out of a Buffer. The first
// failed read is remembered; later reads return zero values and Err keeps
// reporting the first failure, so a record can be read in one go and
// checked once.
type Cursor struct {
	buf   *Buffer
	pos   int
	err   error
	field string
}

func (c *Cursor) Err() error { return c.err }

func (c *Cursor) Pos() int { return c.pos }

func (c *Cursor) Buffer() *Buffer { return c.buf }

// Remaining is the number of bytes between the cursor and the buffer end.
func (c *Cursor) Remaining() int {
	if c.pos > len(c.buf.data) {
		return 0
	}
	return len(c.buf.data) - c.pos
}

// Field labels the following reads in error messages.
func (c *Cursor) Field(name string) *Cursor {
	c.field = name
	return c
}

func (c *Cursor) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Seek moves to an absolute position.
func (c *Cursor) Seek(pos int) *Cursor {
	if c.err != nil {
		return c
	}
	if err := c.buf.Check(c.field, pos, 0); err != nil {
		c.fail(err)
		return c
	}
	c.pos = pos
	return c
}

// Skip moves relative to the current position.
func (c *Cursor) Skip(n int) *Cursor {
	return c.Seek(c.pos + n)
}

// Need fails the cursor unless count elements of size bytes can still be
// read. Used before allocating anything sized by a stored count.
func (c *Cursor) Need(count, size int) bool {
	if c.err != nil {
		return false
	}
	if err := c.buf.CheckArray(c.field, c.pos, count, size); err != nil {
		c.fail(err)
		return false
	}
	return true
}

func (c *Cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if err := c.buf.Check(c.field, c.pos, n); err != nil {
		c.fail(err)
		return nil
	}
	p := c.buf.data[c.pos : c.pos+n]
	c.pos += n
	return p
}

func (c *Cursor) U8() uint8 {
	if p := c.take(1); p != nil {
		return p[0]
	}
	return 0
}

func (c *Cursor) Bool() bool { return c.U8() != 0 }

func (c *Cursor) U16() uint16 {
	if p := c.take(2); p != nil {
		return binary.LittleEndian.Uint16(p)
	}
	return 0
}

func (c *Cursor) I16() int16 { return int16(c.U16()) }

func (c *Cursor) U32() uint32 {
	if p := c.take(4); p != nil {
		return binary.LittleEndian.Uint32(p)
	}
	return 0
}

func (c *Cursor) I32() int32 { return int32(c.U32()) }

func (c *Cursor) F32() float32 { return math.Float32frombits(c.U32()) }

// Offset reads a raw 32 bit offset field.
func (c *Cursor) Offset() Offset { return Offset(c.U32()) }

func (c *Cursor) Vec2() mgl32.Vec2 {
	return mgl32.Vec2{c.F32(), c.F32()}
}

func (c *Cursor) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{c.F32(), c.F32(), c.F32()}
}

func (c *Cursor) Vec4() mgl32.Vec4 {
	return mgl32.Vec4{c.F32(), c.F32(), c.F32(), c.F32()}
}

// Quat reads x, y, z, w.
func (c *Cursor) Quat() mgl32.Quat {
	x, y, z, w := c.F32(), c.F32(), c.F32(), c.F32()
	return mgl32.Quat{W: w, V: mgl32.Vec3{x, y, z}}
}

// Transform reads translation, scale and rotation as stored in resource
// records.
func (c *Cursor) Transform() utils.Transform {
	var t utils.Transform
	t.Translation = c.Vec3()
	t.Scale = c.Vec3()
	t.Rotation = c.Quat()
	return t
}

// Mat4 reads 16 floats in column major order.
func (c *Cursor) Mat4() mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = c.F32()
	}
	return m
}

// Bytes returns a copy of the next n bytes.
func (c *Cursor) Bytes(n int) []byte {
	if p := c.take(n); p != nil {
		return append([]byte(nil), p...)
	}
	return nil
}

// FixedName reads an n byte, zero padded name field and returns its raw
// bytes up to the terminator.
func (c *Cursor) FixedName(n int) []byte {
	if p := c.take(n); p != nil {
		return utils.FixedName(p)
	}
	return nil
}
