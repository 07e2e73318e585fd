package anm

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

// Track is the time series of one joint. Positions, Scales and Rotations
// always hold one sample per frame.
type Track struct {
	Name      string
	Flags     uint32
	JointHash uint32
	Positions []mgl32.Vec3
	Scales    []mgl32.Vec3
	Rotations []mgl32.Quat
}

// Transform returns the sample of frame f.
func (t *Track) Transform(f int) utils.Transform {
	return utils.Transform{
		Translation: t.Positions[f],
		Scale:       t.Scales[f],
		Rotation:    t.Rotations[f],
	}
}

type Animation struct {
	Format       rito.Format
	SkeletonID   uint32
	Flags        uint32
	AssetName    string
	TickDuration float32
	FrameCount   int
	Tracks       []Track
}

func (a *Animation) Duration() float32 {
	return a.TickDuration * float32(a.FrameCount)
}

func (a *Animation) TrackByHash(hash uint32) (*Track, bool) {
	for i := range a.Tracks {
		if a.Tracks[i].JointHash == hash {
			return &a.Tracks[i], true
		}
	}
	return nil, false
}

// Pose returns every track's transform at frame f, keyed by joint hash.
func (a *Animation) Pose(f int) map[uint32]utils.Transform {
	pose := make(map[uint32]utils.Transform, len(a.Tracks))
	for i := range a.Tracks {
		pose[a.Tracks[i].JointHash] = a.Tracks[i].Transform(f)
	}
	return pose
}

func newTrack(frames int) Track {
	return Track{
		Positions: make([]mgl32.Vec3, 0, frames),
		Scales:    make([]mgl32.Vec3, 0, frames),
		Rotations: make([]mgl32.Quat, 0, frames),
	}
}

func decode(data []byte, f rito.Format) (*Animation, int, error) {
	b := cursor.NewBuffer(data)
	switch f.Layout {
	case rito.LayoutAnimationLegacy:
		return decodeLegacy(b, f)
	case rito.LayoutAnimationV4, rito.LayoutAnimationV5:
		return decodeResource(b, f)
	case rito.LayoutAnimationCompressed:
		return nil, 0, decodeCompressed(b)
	}
	return nil, 0, rito.Unsupported("header", 0, "%v is not an animation", f)
}

func NewFromData(data []byte) (*Animation, int, error) {
	f, err := rito.Expect(data, rito.KindAnimation)
	if err != nil {
		return nil, 0, err
	}
	return decode(data, f)
}

// Decode reads one animation from the current position of src.
func Decode(src rito.ByteSource) (*Animation, error) {
	var a *Animation
	err := rito.DecodeFrom(src, func(data []byte) (int, error) {
		var consumed int
		var err error
		a, consumed, err = NewFromData(data)
		return consumed, err
	})
	return a, err
}

func init() {
	rito.SetHandler(rito.KindAnimation, func(data []byte, f rito.Format) (interface{}, int, error) {
		return decode(data, f)
	})
}
