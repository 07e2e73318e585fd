package cursor

import (
	"github.com/mogaika/ritofmt/rito"
)

// Offset is a raw 32 bit displacement stored inside an asset.
type Offset uint32

const (
	OFFSET_NULL     Offset = 0
	OFFSET_NULL_ALT Offset = 0xFFFFFFFF
	// elements of indirect arrays are 32 bit offsets themselves
	INDIRECT_STRIDE = 4
)

// IsNull reports whether o is one of the two absent markers.
func (o Offset) IsNull() bool {
	return o == OFFSET_NULL || o == OFFSET_NULL_ALT
}

// Abs resolves an offset counted from base, typically the start of the
// resource or of the record holding the field. ok is false for a null offset.
// The target range [target, target+size) must lie inside the buffer.
func (b *Buffer) Abs(field string, base int, o Offset, size int) (target int, ok bool, err error) {
	if o.IsNull() {
		return 0, false, nil
	}
	target = base + int(o)
	if err := b.Check(field, target, size); err != nil {
		return 0, false, err
	}
	return target, true, nil
}

// Rel resolves a signed offset counted from fieldPos, the address the offset
// itself was read from.
func (b *Buffer) Rel(field string, fieldPos int, o Offset, size int) (target int, ok bool, err error) {
	if o.IsNull() {
		return 0, false, nil
	}
	target = fieldPos + int(int32(o))
	if err := b.Check(field, target, size); err != nil {
		return 0, false, err
	}
	return target, true, nil
}

// AbsAt reads the offset stored at fieldPos and resolves it with Abs.
func (b *Buffer) AbsAt(field string, base, fieldPos, size int) (int, bool, error) {
	raw, err := b.U32(field, fieldPos)
	if err != nil {
		return 0, false, err
	}
	return b.Abs(field, base, Offset(raw), size)
}

// RelAt reads the offset stored at fieldPos and resolves it with Rel.
func (b *Buffer) RelAt(field string, fieldPos, size int) (int, bool, error) {
	raw, err := b.U32(field, fieldPos)
	if err != nil {
		return 0, false, err
	}
	return b.Rel(field, fieldPos, Offset(raw), size)
}

// AbsArr resolves element i of an indirect array whose base and elements are
// both counted from base. The array base is checked for count elements
// before anything is read from it. A null array base means the whole
// collection is absent; a null element is reported the same way.
func (b *Buffer) AbsArr(field string, base int, o Offset, i, count, size int) (target int, ok bool, err error) {
	if o.IsNull() {
		return 0, false, nil
	}
	arr := base + int(o)
	if err := b.CheckArray(field, arr, count, INDIRECT_STRIDE); err != nil {
		return 0, false, err
	}
	if i < 0 || i >= count {
		return 0, false, rito.OutOfBounds(field, int64(arr), "index %d of %d", i, count)
	}
	elem, err := b.U32(field, arr+i*INDIRECT_STRIDE)
	if err != nil {
		return 0, false, err
	}
	return b.Abs(field, base, Offset(elem), size)
}

// RelArr is AbsArr for arrays of field relative offsets: the array base is
// counted from fieldPos and each element from its own address.
func (b *Buffer) RelArr(field string, fieldPos int, o Offset, i, count, size int) (target int, ok bool, err error) {
	if o.IsNull() {
		return 0, false, nil
	}
	arr := fieldPos + int(int32(o))
	if err := b.CheckArray(field, arr, count, INDIRECT_STRIDE); err != nil {
		return 0, false, err
	}
	if i < 0 || i >= count {
		return 0, false, rito.OutOfBounds(field, int64(arr), "index %d of %d", i, count)
	}
	elemPos := arr + i*INDIRECT_STRIDE
	elem, err := b.U32(field, elemPos)
	if err != nil {
		return 0, false, err
	}
	return b.Rel(field, elemPos, Offset(elem), size)
}

// SliceFrom resolves an absolute offset and copies size bytes out of the
// target. A null offset yields a nil slice.
func (b *Buffer) SliceFrom(field string, base int, o Offset, size int) ([]byte, error) {
	pos, ok, err := b.Abs(field, base, o, size)
	if err != nil || !ok {
		return nil, err
	}
	return b.Bytes(field, pos, size)
}

// AbsString follows an absolute offset to a zero terminated string. A null
// offset yields an empty string.
func (b *Buffer) AbsString(field string, base int, o Offset) (string, error) {
	pos, ok, err := b.Abs(field, base, o, 1)
	if err != nil || !ok {
		return "", err
	}
	return b.CString(field, pos)
}

// RelString is AbsString for a field relative offset stored at fieldPos.
func (b *Buffer) RelString(field string, fieldPos int) (string, error) {
	pos, ok, err := b.RelAt(field, fieldPos, 1)
	if err != nil || !ok {
		return "", err
	}
	return b.CString(field, pos)
}
