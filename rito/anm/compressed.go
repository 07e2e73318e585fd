package anm

import (
	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
)

const (
	COMPRESSED_HEADER_SIZE = 0x74
	COMPRESSED_FRAME_SIZE  = 0xa
)

type compressedHeader struct {
	resourceSize   uint32
	formatToken    uint32
	flags          uint32
	jointCount     int32
	frameCount     int32
	jumpCacheCount int32
	duration       float32
	fps            float32
	// rotation, translation and scale error margins and discontinuity
	// thresholds
	errorMargins   [6]float32
	translationMin [3]float32
	translationMax [3]float32
	scaleMin       [3]float32
	scaleMax       [3]float32
	frames         cursor.Offset
	jumpCaches     cursor.Offset
	jointHashes    cursor.Offset
}

// decodeCompressed validates the r3d2canm header and its tables. Decoding
// the curve data itself is not supported, so a well formed asset still
// fails with ErrNotImplemented.
func decodeCompressed(b *cursor.Buffer) error {
	if b.Len() < RESOURCE_BASE+COMPRESSED_HEADER_SIZE {
		return rito.Truncated("header", 0, "need 0x%x bytes, have 0x%x", RESOURCE_BASE+COMPRESSED_HEADER_SIZE, b.Len())
	}
	c := b.At(RESOURCE_BASE).Field("header")
	var h compressedHeader
	h.resourceSize = c.U32()
	h.formatToken = c.U32()
	h.flags = c.U32()
	h.jointCount = c.I32()
	h.frameCount = c.I32()
	h.jumpCacheCount = c.I32()
	h.duration = c.F32()
	h.fps = c.F32()
	for i := range h.errorMargins {
		h.errorMargins[i] = c.F32()
	}
	for _, v := range []*[3]float32{&h.translationMin, &h.translationMax, &h.scaleMin, &h.scaleMax} {
		v[0], v[1], v[2] = c.F32(), c.F32(), c.F32()
	}
	h.frames = c.Offset()
	h.jumpCaches = c.Offset()
	h.jointHashes = c.Offset()
	if err := c.Err(); err != nil {
		return err
	}

	if h.jointCount < 0 || h.frameCount < 0 || h.jumpCacheCount < 0 {
		return rito.Unsupported("header", RESOURCE_BASE+0xc, "negative counts %d joints %d frames %d jump caches",
			h.jointCount, h.frameCount, h.jumpCacheCount)
	}
	if pos, ok, err := b.Abs("frames", RESOURCE_BASE, h.frames, 0); err != nil {
		return err
	} else if ok {
		if err := b.CheckArray("frames", pos, int(h.frameCount), COMPRESSED_FRAME_SIZE); err != nil {
			return err
		}
	}
	if _, _, err := b.Abs("jumpCaches", RESOURCE_BASE, h.jumpCaches, 0); err != nil {
		return err
	}
	if pos, ok, err := b.Abs("jointHashes", RESOURCE_BASE, h.jointHashes, 0); err != nil {
		return err
	} else if ok {
		if err := b.CheckArray("jointHashes", pos, int(h.jointCount), JOINT_HASH_SIZE); err != nil {
			return err
		}
	}

	return rito.NotImplemented("frames", RESOURCE_BASE+int64(h.frames),
		"compressed animation with %d joints and %d frames", h.jointCount, h.frameCount)
}
