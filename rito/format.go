package rito

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

const (
	SKELETON_LEGACY_MAGIC    = "r3d2sklt"
	SKELETON_RESOURCE_TOKEN  = 0x22FD4FC3
	ANIMATION_MAGIC          = "r3d2anmd"
	ANIMATION_COMPRESSED_TAG = "r3d2canm"
	SIMPLESKIN_MAGIC         = 0x00112233
	SIMPLESKIN_VERSION_MIN   = 0x10000
	SIMPLESKIN_VERSION_MAX   = 0x10004
	BLEND_MAGIC              = "r3d2blnd"
	MAPGEO_MAGIC             = "OEGM"
)

// HEADER_SIZE is the number of bytes the sniffer looks at: an 8 byte tag
// followed by a 4 byte version.
const HEADER_SIZE = 12

// Kind groups format generations that decode into the same result type.
type Kind int

const (
	KindUnknown Kind = iota
	KindSkeleton
	KindAnimation
	KindSimpleSkin
	KindBlend
	KindMapGeo
)

func (k Kind) String() string {
	switch k {
	case KindSkeleton:
		return "skeleton"
	case KindAnimation:
		return "animation"
	case KindSimpleSkin:
		return "simpleskin"
	case KindBlend:
		return "blend"
	case KindMapGeo:
		return "mapgeo"
	}
	return "unknown"
}

// Layout identifies one concrete on-disk generation.
type Layout int

const (
	LayoutUnknown Layout = iota
	LayoutSkeletonLegacy
	LayoutSkeletonResource
	LayoutAnimationLegacy
	LayoutAnimationV4
	LayoutAnimationV5
	LayoutAnimationCompressed
	LayoutSimpleSkin
	LayoutBlend
	LayoutMapGeo
)

var layoutNames = map[Layout]string{
	LayoutSkeletonLegacy:      "skeleton-legacy",
	LayoutSkeletonResource:    "skeleton-resource",
	LayoutAnimationLegacy:     "animation-legacy",
	LayoutAnimationV4:         "animation-v4",
	LayoutAnimationV5:         "animation-v5",
	LayoutAnimationCompressed: "animation-compressed",
	LayoutSimpleSkin:          "simpleskin",
	LayoutBlend:               "blend",
	LayoutMapGeo:              "mapgeo",
}

func (l Layout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return "unknown"
}

func (l Layout) Kind() Kind {
	switch l {
	case LayoutSkeletonLegacy, LayoutSkeletonResource:
		return KindSkeleton
	case LayoutAnimationLegacy, LayoutAnimationV4, LayoutAnimationV5, LayoutAnimationCompressed:
		return KindAnimation
	case LayoutSimpleSkin:
		return KindSimpleSkin
	case LayoutBlend:
		return KindBlend
	case LayoutMapGeo:
		return KindMapGeo
	}
	return KindUnknown
}

// Format is the result of sniffing an asset header.
type Format struct {
	Layout  Layout
	Version uint32
}

func (f Format) Kind() Kind { return f.Layout.Kind() }

func (f Format) String() string {
	return fmt.Sprintf("%s v%d", f.Layout, f.Version)
}

// Identify matches the leading bytes of an asset against the known magic and
// version table. At least 8 bytes are required; formats with a 4 byte tag
// (MapGeo, SimpleSkin) need no more than that.
func Identify(header []byte) (Format, error) {
	if len(header) < 8 {
		return Format{}, Truncated("header", 0, "need at least 8 bytes, have %d", len(header))
	}

	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(header[off : off+4]) }

	if string(header[:4]) == MAPGEO_MAGIC {
		if v := u32(4); v == 6 {
			return Format{LayoutMapGeo, v}, nil
		} else {
			return Format{}, Unsupported("header.version", 4, "mapgeo version %d", v)
		}
	}
	if u32(0) == SIMPLESKIN_MAGIC {
		if v := u32(4); v >= SIMPLESKIN_VERSION_MIN && v <= SIMPLESKIN_VERSION_MAX {
			return Format{LayoutSimpleSkin, v}, nil
		} else {
			return Format{}, Unsupported("header.version", 4, "simpleskin version 0x%x", v)
		}
	}
	// resource skeletons reuse the legacy tag slot: the token sits where the
	// second half of the tag would be
	if u32(4) == SKELETON_RESOURCE_TOKEN {
		var v uint32
		if len(header) >= HEADER_SIZE {
			v = u32(8)
		}
		return Format{LayoutSkeletonResource, v}, nil
	}

	if len(header) < HEADER_SIZE {
		return Format{}, Truncated("header", 0, "need %d bytes, have %d", HEADER_SIZE, len(header))
	}
	tag, v := string(header[:8]), u32(8)
	switch tag {
	case SKELETON_LEGACY_MAGIC:
		if v == 1 || v == 2 {
			return Format{LayoutSkeletonLegacy, v}, nil
		}
	case ANIMATION_MAGIC:
		switch v {
		case 3:
			return Format{LayoutAnimationLegacy, v}, nil
		case 4:
			return Format{LayoutAnimationV4, v}, nil
		case 5:
			return Format{LayoutAnimationV5, v}, nil
		}
	case ANIMATION_COMPRESSED_TAG:
		if v == 1 {
			return Format{LayoutAnimationCompressed, v}, nil
		}
	case BLEND_MAGIC:
		if v == 1 {
			return Format{LayoutBlend, v}, nil
		}
	default:
		return Format{}, Unsupported("header.magic", 0, "unknown tag %q", header[:8])
	}
	return Format{}, Unsupported("header.version", 8, "%q version %d", tag, v)
}

// Sniff peeks at the header of the asset at the current position of src and
// rewinds, so the decoder selected afterwards sees the untouched stream.
func Sniff(src ByteSource) (Format, error) {
	start, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return Format{}, errors.Wrap(err, "tell")
	}
	var header [HEADER_SIZE]byte
	n, err := io.ReadFull(src, header[:])
	if _, serr := src.Seek(start, io.SeekStart); serr != nil {
		return Format{}, errors.Wrap(serr, "rewind")
	}
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Format{}, errors.Wrap(err, "read header")
	}
	return Identify(header[:n])
}
