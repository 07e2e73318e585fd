package anm

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

const (
	LEGACY_HEADER_SIZE       = rito.HEADER_SIZE + 0x10
	LEGACY_TRACK_HEADER_SIZE = 0x24
	LEGACY_FRAME_SIZE        = 0x1c
)

// decodeLegacy reads r3d2anmd v3: per track a fixed name and flags followed
// by one (rotation, position) pair per frame.
func decodeLegacy(b *cursor.Buffer, f rito.Format) (*Animation, int, error) {
	if b.Len() < LEGACY_HEADER_SIZE {
		return nil, 0, rito.Truncated("header", 0, "need 0x%x bytes, have 0x%x", LEGACY_HEADER_SIZE, b.Len())
	}
	c := b.At(rito.HEADER_SIZE).Field("header")
	a := &Animation{Format: f}
	a.SkeletonID = c.U32()
	numTracks := int(c.I32())
	numFrames := int(c.I32())
	frameRate := c.I32()
	if numTracks < 0 || numFrames < 0 {
		return nil, 0, rito.Unsupported("header", 0x10, "negative counts %d tracks %d frames", numTracks, numFrames)
	}
	if frameRate <= 0 {
		return nil, 0, rito.Unsupported("header.frameRate", 0x18, "frame rate %d", frameRate)
	}
	a.TickDuration = 1 / float32(frameRate)
	a.FrameCount = numFrames

	c.Field("tracks")
	if err := b.CheckArray("tracks", c.Pos(), numFrames, LEGACY_FRAME_SIZE); err != nil {
		return nil, 0, err
	}
	if !c.Need(numTracks, LEGACY_TRACK_HEADER_SIZE+numFrames*LEGACY_FRAME_SIZE) {
		return nil, 0, c.Err()
	}

	a.Tracks = make([]Track, numTracks)
	for i := range a.Tracks {
		t := newTrack(numFrames)
		name := c.FixedName(0x20)
		t.Name = utils.BytesToString(name)
		t.JointHash = utils.ElfHash(name)
		t.Flags = c.U32()
		for fr := 0; fr < numFrames; fr++ {
			t.Rotations = append(t.Rotations, c.Quat())
			t.Positions = append(t.Positions, c.Vec3())
			t.Scales = append(t.Scales, mgl32.Vec3{1, 1, 1})
		}
		a.Tracks[i] = t
	}
	if err := c.Err(); err != nil {
		return nil, 0, err
	}
	return a, c.Pos(), nil
}
