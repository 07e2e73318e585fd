package mapgeo

import (
	"bytes"

	"github.com/anaminus/parse"

	"github.com/mogaika/ritofmt/rito"
)

// reader wraps parse.BinaryReader with the decode error kinds. The first
// failure sticks and later reads do nothing.
type reader struct {
	fr   *parse.BinaryReader
	size int64
	err  error
}

func newReader(data []byte) *reader {
	return &reader{
		fr:   parse.NewBinaryReader(bytes.NewReader(data)),
		size: int64(len(data)),
	}
}

func (r *reader) pos() int64 { return r.fr.N() }

func (r *reader) remaining() int64 { return r.size - r.fr.N() }

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// number reads one primitive value. v must be a pointer accepted by
// parse.NumberSize.
func (r *reader) number(field string, v interface{}) bool {
	if r.err != nil {
		return false
	}
	if size := parse.NumberSize(v); int64(size) > r.remaining() {
		r.fail(rito.OutOfBounds(field, r.pos(), "0x%x bytes, 0x%x left", size, r.remaining()))
		return false
	}
	if r.fr.Number(v) {
		r.fail(rito.OutOfBounds(field, r.pos(), "%v", r.fr.Err()))
		return false
	}
	return true
}

// numbers fills p with consecutive values.
func numbers[T uint8 | uint16 | uint32 | float32](r *reader, field string, p []T) bool {
	if r.err != nil {
		return false
	}
	var zero T
	if size := int64(len(p)) * int64(parse.NumberSize(zero)); size > r.remaining() {
		r.fail(rito.OutOfBounds(field, r.pos(), "%d values, 0x%x bytes left", len(p), r.remaining()))
		return false
	}
	for i := range p {
		if !r.number(field, &p[i]) {
			return false
		}
	}
	return true
}

func (r *reader) bytes(field string, p []byte) bool {
	if r.err != nil {
		return false
	}
	if int64(len(p)) > r.remaining() {
		r.fail(rito.OutOfBounds(field, r.pos(), "0x%x bytes, 0x%x left", len(p), r.remaining()))
		return false
	}
	if r.fr.Bytes(p) {
		r.fail(rito.OutOfBounds(field, r.pos(), "%v", r.fr.Err()))
		return false
	}
	return true
}

func (r *reader) skip(field string, n int) {
	r.bytes(field, make([]byte, n))
}

// count reads a signed 32 bit element count and checks that count elements
// of at least elemSize bytes can still follow.
func (r *reader) count(field string, elemSize int) int {
	pos := r.pos()
	var n int32
	if !r.number(field, &n) {
		return 0
	}
	if n < 0 {
		r.fail(rito.Unsupported(field, pos, "negative count %d", n))
		return 0
	}
	if int64(n)*int64(elemSize) > r.remaining() {
		r.fail(rito.OutOfBounds(field, pos, "%d elements of 0x%x bytes, 0x%x left", n, elemSize, r.remaining()))
		return 0
	}
	return int(n)
}

// blob reads a byte run prefixed with its length.
func (r *reader) blob(field string) []byte {
	n := r.count(field, 1)
	if r.err != nil {
		return nil
	}
	p := make([]byte, n)
	r.bytes(field, p)
	return p
}
