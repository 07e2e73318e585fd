package anm

import (
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

const (
	// resource offsets are counted from the end of the tag and version
	RESOURCE_BASE        = rito.HEADER_SIZE
	RESOURCE_HEADER_SIZE = 0x40

	V4_FRAME_SIZE   = 0xc
	V5_FRAME_SIZE   = 6
	VECTOR_SIZE     = 0xc
	V4_QUAT_SIZE    = 0x10
	V5_QUAT_SIZE    = 6
	JOINT_HASH_SIZE = 4
)

type resourceHeader struct {
	resourceSize uint32
	formatToken  uint32
	version      uint32
	flags        uint32
	numTracks    int
	numFrames    int
	tickDuration float32
	// track table in v4, joint hash table in v5
	tracks    cursor.Offset
	assetName cursor.Offset
	time      cursor.Offset
	vectors   cursor.Offset
	quats     cursor.Offset
	frames    cursor.Offset
}

// palette is a run of fixed size values whose length is not stored. It ends
// where the next section of the resource starts.
type palette struct {
	name  string
	pos   int
	count int
	size  int
}

func (p *palette) at(index int) (int, error) {
	if index >= p.count {
		return 0, rito.OutOfBounds(p.name, int64(p.pos), "index %d of %d", index, p.count)
	}
	return p.pos + index*p.size, nil
}

func sectionEnd(b *cursor.Buffer, start int, h *resourceHeader) int {
	end := b.Len()
	for _, o := range []cursor.Offset{h.tracks, h.assetName, h.time, h.vectors, h.quats, h.frames} {
		if o.IsNull() {
			continue
		}
		if pos := RESOURCE_BASE + int(o); pos > start && pos < end {
			end = pos
		}
	}
	return end
}

func resolvePalette(b *cursor.Buffer, h *resourceHeader, name string, o cursor.Offset, size int) (*palette, error) {
	pos, ok, err := b.Abs(name, RESOURCE_BASE, o, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &palette{name: name}, nil
	}
	return &palette{
		name:  name,
		pos:   pos,
		count: (sectionEnd(b, pos, h) - pos) / size,
		size:  size,
	}, nil
}

// decodeResource reads r3d2anmd v4 and v5. Both share the header; they
// differ in frame record shape, rotation storage and where joint hashes
// live.
func decodeResource(b *cursor.Buffer, f rito.Format) (*Animation, int, error) {
	if b.Len() < RESOURCE_BASE+RESOURCE_HEADER_SIZE {
		return nil, 0, rito.Truncated("header", 0, "need 0x%x bytes, have 0x%x", RESOURCE_BASE+RESOURCE_HEADER_SIZE, b.Len())
	}
	c := b.At(RESOURCE_BASE).Field("header")
	var h resourceHeader
	h.resourceSize = c.U32()
	h.formatToken = c.U32()
	h.version = c.U32()
	h.flags = c.U32()
	h.numTracks = int(c.I32())
	h.numFrames = int(c.I32())
	h.tickDuration = c.F32()
	h.tracks = c.Offset()
	h.assetName = c.Offset()
	h.time = c.Offset()
	h.vectors = c.Offset()
	h.quats = c.Offset()
	h.frames = c.Offset()

	if h.numTracks < 0 || h.numFrames < 0 {
		return nil, 0, rito.Unsupported("header", RESOURCE_BASE+0x10, "negative counts %d tracks %d frames", h.numTracks, h.numFrames)
	}
	if h.numTracks > 0 && h.numFrames > 0 && h.numTracks > b.Len()/h.numFrames {
		return nil, 0, rito.OutOfBounds("frames", -1, "%d tracks of %d frames", h.numTracks, h.numFrames)
	}

	a := &Animation{
		Format:       f,
		Flags:        h.flags,
		TickDuration: h.tickDuration,
		FrameCount:   h.numFrames,
	}

	var err error
	if a.AssetName, err = b.AbsString("assetName", RESOURCE_BASE, h.assetName); err != nil {
		return nil, 0, err
	}

	v5 := f.Layout == rito.LayoutAnimationV5
	frameSize, quatSize := V4_FRAME_SIZE, V4_QUAT_SIZE
	if v5 {
		frameSize, quatSize = V5_FRAME_SIZE, V5_QUAT_SIZE
	}

	total := h.numTracks * h.numFrames
	framesPos, ok, err := b.Abs("frames", RESOURCE_BASE, h.frames, 0)
	if err != nil {
		return nil, 0, err
	}
	if !ok && total > 0 {
		return nil, 0, rito.Unsupported("header.frames", RESOURCE_BASE+0x30, "%d frames without a frame table", total)
	}
	if err := b.CheckArray("frames", framesPos, total, frameSize); err != nil {
		return nil, 0, err
	}

	vectors, err := resolvePalette(b, &h, "vectors", h.vectors, VECTOR_SIZE)
	if err != nil {
		return nil, 0, err
	}
	quats, err := resolvePalette(b, &h, "quats", h.quats, quatSize)
	if err != nil {
		return nil, 0, err
	}

	var hashes []uint32
	if v5 {
		if hashes, err = readJointHashes(b, &h); err != nil {
			return nil, 0, err
		}
	}

	a.Tracks = make([]Track, h.numTracks)
	for t := range a.Tracks {
		track := newTrack(h.numFrames)
		if v5 {
			track.JointHash = hashes[t]
		}
		for fr := 0; fr < h.numFrames; fr++ {
			idx := fr*h.numTracks + t
			fc := b.At(framesPos + idx*frameSize).Field(fmt.Sprintf("frames[%d]", idx))
			if !v5 {
				hash := fc.U32()
				if fr == 0 {
					track.JointHash = hash
				} else if hash != track.JointHash {
					log.Printf("[anm] track %d frame %d hash %.8x differs from %.8x", t, fr, hash, track.JointHash)
				}
			}
			posIdx, scaleIdx, quatIdx := int(fc.U16()), int(fc.U16()), int(fc.U16())
			if err := fc.Err(); err != nil {
				return nil, 0, err
			}

			pos, err := readVector(b, vectors, posIdx)
			if err != nil {
				return nil, 0, err
			}
			scale, err := readVector(b, vectors, scaleIdx)
			if err != nil {
				return nil, 0, err
			}
			rot, err := readQuat(b, quats, quatIdx, v5)
			if err != nil {
				return nil, 0, err
			}
			track.Positions = append(track.Positions, pos)
			track.Scales = append(track.Scales, scale)
			track.Rotations = append(track.Rotations, rot)
		}
		a.Tracks[t] = track
	}

	consumed := RESOURCE_BASE + int(h.resourceSize)
	if h.resourceSize > uint32(b.Len()) || consumed > b.Len() {
		consumed = b.Len()
	}
	return a, consumed, nil
}

func readJointHashes(b *cursor.Buffer, h *resourceHeader) ([]uint32, error) {
	pos, ok, err := b.Abs("jointHashes", RESOURCE_BASE, h.tracks, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		if h.numTracks > 0 {
			return nil, rito.Unsupported("header.jointHashes", RESOURCE_BASE+0x1c, "%d tracks without joint hashes", h.numTracks)
		}
		return nil, nil
	}
	c := b.At(pos).Field("jointHashes")
	if !c.Need(h.numTracks, JOINT_HASH_SIZE) {
		return nil, c.Err()
	}
	hashes := make([]uint32, h.numTracks)
	for i := range hashes {
		hashes[i] = c.U32()
	}
	return hashes, c.Err()
}

func readVector(b *cursor.Buffer, p *palette, index int) (mgl32.Vec3, error) {
	pos, err := p.at(index)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	c := b.At(pos).Field(p.name)
	v := c.Vec3()
	return v, c.Err()
}

func readQuat(b *cursor.Buffer, p *palette, index int, quantized bool) (mgl32.Quat, error) {
	pos, err := p.at(index)
	if err != nil {
		return mgl32.Quat{}, err
	}
	c := b.At(pos).Field(p.name)
	var q mgl32.Quat
	if quantized {
		q = utils.DecompressQuat([3]uint16{c.U16(), c.U16(), c.U16()})
	} else {
		q = utils.NormalizeQuat(c.Quat())
	}
	return q, c.Err()
}
