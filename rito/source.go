package rito

import (
	"io"

	"github.com/pkg/errors"
)

// ByteSource is the minimum a decoder needs from the I/O layer: sequential
// reads plus absolute, relative and end-relative seeking. The size of the
// source is derived by seeking to its end. *os.File, *bytes.Reader and
// *io.SectionReader all satisfy it.
type ByteSource interface {
	io.Reader
	io.Seeker
}

// MAX_ASSET_SIZE caps how much of a source is pulled into memory for a
// single decode call.
const MAX_ASSET_SIZE = 1 << 30

// Size reports the total size of src without moving its position.
func Size(src ByteSource) (int64, error) {
	pos, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.Wrap(err, "tell")
	}
	end, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "seek end")
	}
	if _, err := src.Seek(pos, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "seek back")
	}
	return end, nil
}

// DecodeFunc decodes one asset from an in-memory buffer and reports how many
// bytes of it belong to the asset.
type DecodeFunc func(data []byte) (consumed int, err error)

// DecodeFrom loads everything between the current position of src and its
// end, runs decode over that buffer and leaves src positioned right after
// the consumed bytes. On failure src is rewound to where it was.
func DecodeFrom(src ByteSource, decode DecodeFunc) error {
	start, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "tell")
	}
	end, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return errors.Wrap(err, "seek end")
	}
	if _, err := src.Seek(start, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek start")
	}
	if end-start > MAX_ASSET_SIZE {
		return Unsupported("asset", start, "size 0x%x exceeds limit 0x%x", end-start, MAX_ASSET_SIZE)
	}

	data := make([]byte, end-start)
	if _, err := io.ReadFull(src, data); err != nil {
		return rewind(src, start, errors.Wrap(err, "read asset"))
	}

	consumed, err := decode(data)
	if err != nil {
		return rewind(src, start, err)
	}
	if _, err := src.Seek(start+int64(consumed), io.SeekStart); err != nil {
		return errors.Wrap(err, "seek past asset")
	}
	return nil
}

// rewind moves src back to start after cause. A failed rewind is reported
// on top of cause, which stays matchable with errors.Is.
func rewind(src ByteSource, start int64, cause error) error {
	if _, err := src.Seek(start, io.SeekStart); err != nil {
		return errors.Wrapf(cause, "rewind to 0x%x: %v", start, err)
	}
	return cause
}
