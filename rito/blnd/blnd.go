// Package blnd decodes r3d2blnd animation graphs. A graph is a flat list of
// clips that refer to each other by unique id, plus the masks, event lists
// and tracks those clips point at.
package blnd

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

const (
	// resource offsets are counted from the end of the tag and version
	RESOURCE_BASE        = rito.HEADER_SIZE
	RESOURCE_HEADER_SIZE = 0x60
	RESOURCE_VERSION     = 0

	// header fields holding field relative offsets
	HEADER_BLEND_DATA       = 0x30
	HEADER_TRANSITION_CLIPS = 0x34
	HEADER_TRACKS           = 0x38
	HEADER_CLIPS            = 0x3c
	HEADER_MASKS            = 0x40
	HEADER_EVENTS           = 0x44
	HEADER_ANIMS_DATA       = 0x48
	HEADER_ANIM_NAMES       = 0x50
	HEADER_SKELETON         = 0x54

	BLEND_PAIR_SIZE      = 0x10
	TRANSITION_CLIP_SIZE = 0xc
	TRANSITION_SIZE      = 8
	TRACK_SIZE           = 0x30
	TRACK_NAME_SIZE      = 0x20
	PATH_SIZE            = 8
)

type BlendPair struct {
	FromAnimID uint32
	ToAnimID   uint32
	Flags      uint32
	BlendTime  float32
}

type Transition struct {
	ToAnimID         uint32
	TransitionAnimID uint32
}

type TransitionClip struct {
	FromAnimID  uint32
	Transitions []Transition
}

// Track is a blend weight slot clips play on.
type Track struct {
	BlendWeight float32
	BlendMode   uint32
	Index       uint32
	Name        string
}

type Path struct {
	Hash uint32
	Path string
}

type Blend struct {
	Format            rito.Format
	UseCascadeBlend   bool
	CascadeBlendValue float32
	Skeleton          Path
	AnimationNames    []Path

	BlendPairs      []BlendPair
	TransitionClips []TransitionClip
	Tracks          []Track
	Masks           []Mask
	EventLists      []EventList
	Clips           []Clip
}

// ClipsByID builds the lookup table used to follow child clip ids.
func (bl *Blend) ClipsByID() map[uint32]*Clip {
	m := make(map[uint32]*Clip, len(bl.Clips))
	for i := range bl.Clips {
		m[bl.Clips[i].UniqueID] = &bl.Clips[i]
	}
	return m
}

func (bl *Blend) MaskByID(id uint32) (*Mask, bool) {
	for i := range bl.Masks {
		if bl.Masks[i].UniqueID == id {
			return &bl.Masks[i], true
		}
	}
	return nil, false
}

func (bl *Blend) EventListByID(id uint32) (*EventList, bool) {
	for i := range bl.EventLists {
		if bl.EventLists[i].UniqueID == id {
			return &bl.EventLists[i], true
		}
	}
	return nil, false
}

// MissingChildren lists child ids that no clip of the graph carries.
func (bl *Blend) MissingChildren() []uint32 {
	clips := bl.ClipsByID()
	var missing []uint32
	for _, clip := range bl.Clips {
		for _, id := range clip.Data.ChildIDs() {
			if _, ok := clips[id]; !ok {
				missing = append(missing, id)
			}
		}
	}
	return missing
}

type header struct {
	resourceSize       uint32
	formatToken        uint32
	version            uint32
	numClips           int
	numBlends          int
	numTransitionClips int
	numTracks          int
	numAnimData        int
	numMasks           int
	numEvents          int
	useCascadeBlend    bool
	cascadeBlendValue  float32
	clips              cursor.Offset
	masks              cursor.Offset
	events             cursor.Offset
	animsData          cursor.Offset
	animNameCount      int
}

// checkTable validates a resolved table of count records. A missing table is
// only accepted when there is nothing to read from it.
func checkTable(b *cursor.Buffer, field string, pos int, ok bool, err error, count, size int) (int, error) {
	if err != nil {
		return 0, err
	}
	if !ok {
		if count > 0 {
			return 0, rito.Unsupported(field, -1, "%d entries without a table", count)
		}
		return 0, nil
	}
	return pos, b.CheckArray(field, pos, count, size)
}

func relTable(b *cursor.Buffer, field string, fieldPos, count, size int) (int, error) {
	pos, ok, err := b.RelAt(field, fieldPos, 0)
	return checkTable(b, field, pos, ok, err, count, size)
}

func absTable(b *cursor.Buffer, field string, base int, o cursor.Offset, count, size int) (int, error) {
	pos, ok, err := b.Abs(field, base, o, 0)
	return checkTable(b, field, pos, ok, err, count, size)
}

func readHeader(b *cursor.Buffer) (*header, error) {
	if b.Len() < RESOURCE_BASE+RESOURCE_HEADER_SIZE {
		return nil, rito.Truncated("header", 0, "need 0x%x bytes, have 0x%x", RESOURCE_BASE+RESOURCE_HEADER_SIZE, b.Len())
	}
	c := b.At(RESOURCE_BASE).Field("header")
	var h header
	h.resourceSize = c.U32()
	h.formatToken = c.U32()
	h.version = c.U32()
	h.numClips = int(c.U32())
	h.numBlends = int(c.U32())
	h.numTransitionClips = int(c.U32())
	h.numTracks = int(c.U32())
	h.numAnimData = int(c.U32())
	h.numMasks = int(c.U32())
	h.numEvents = int(c.U32())
	h.useCascadeBlend = c.Bool()
	c.Skip(3)
	h.cascadeBlendValue = c.F32()
	c.Seek(RESOURCE_BASE + HEADER_CLIPS)
	h.clips = c.Offset()
	h.masks = c.Offset()
	h.events = c.Offset()
	h.animsData = c.Offset()
	h.animNameCount = int(c.U32())
	if err := c.Err(); err != nil {
		return nil, err
	}
	if h.version != RESOURCE_VERSION {
		return nil, rito.Unsupported("header.version", RESOURCE_BASE+8, "resource version %d", h.version)
	}
	return &h, nil
}

func readBlendPairs(b *cursor.Buffer, h *header) ([]BlendPair, error) {
	pos, err := relTable(b, "blendData", RESOURCE_BASE+HEADER_BLEND_DATA, h.numBlends, BLEND_PAIR_SIZE)
	if err != nil {
		return nil, err
	}
	c := b.At(pos).Field("blendData")
	pairs := make([]BlendPair, h.numBlends)
	for i := range pairs {
		p := &pairs[i]
		p.FromAnimID = c.U32()
		p.ToAnimID = c.U32()
		p.Flags = c.U32()
		p.BlendTime = c.F32()
	}
	return pairs, c.Err()
}

func readTransitionClips(b *cursor.Buffer, h *header) ([]TransitionClip, error) {
	pos, err := relTable(b, "transitionClips", RESOURCE_BASE+HEADER_TRANSITION_CLIPS, h.numTransitionClips, TRANSITION_CLIP_SIZE)
	if err != nil {
		return nil, err
	}
	clips := make([]TransitionClip, h.numTransitionClips)
	for i := range clips {
		field := fmt.Sprintf("transitionClips[%d]", i)
		rec := pos + i*TRANSITION_CLIP_SIZE
		c := b.At(rec).Field(field)
		clips[i].FromAnimID = c.U32()
		count := int(c.U32())
		if err := c.Err(); err != nil {
			return nil, err
		}
		tpos, err := relTable(b, field+".transitions", rec+8, count, TRANSITION_SIZE)
		if err != nil {
			return nil, err
		}
		tc := b.At(tpos).Field(field + ".transitions")
		clips[i].Transitions = make([]Transition, count)
		for j := range clips[i].Transitions {
			clips[i].Transitions[j] = Transition{ToAnimID: tc.U32(), TransitionAnimID: tc.U32()}
		}
		if err := tc.Err(); err != nil {
			return nil, err
		}
	}
	return clips, nil
}

func readTracks(b *cursor.Buffer, h *header) ([]Track, error) {
	pos, err := relTable(b, "blendTracks", RESOURCE_BASE+HEADER_TRACKS, h.numTracks, TRACK_SIZE)
	if err != nil {
		return nil, err
	}
	c := b.At(pos).Field("blendTracks")
	tracks := make([]Track, h.numTracks)
	for i := range tracks {
		t := &tracks[i]
		c.Skip(4)
		t.BlendWeight = c.F32()
		t.BlendMode = c.U32()
		t.Index = c.U32()
		t.Name = utils.BytesToString(c.FixedName(TRACK_NAME_SIZE))
	}
	return tracks, c.Err()
}

func readPath(b *cursor.Buffer, field string, pos int) (Path, error) {
	hash, err := b.U32(field, pos)
	if err != nil {
		return Path{}, err
	}
	path, err := b.RelString(field+".path", pos+4)
	return Path{Hash: hash, Path: path}, err
}

func readAnimationNames(b *cursor.Buffer, h *header) ([]Path, error) {
	pos, err := relTable(b, "animNames", RESOURCE_BASE+HEADER_ANIM_NAMES, h.animNameCount, PATH_SIZE)
	if err != nil {
		return nil, err
	}
	names := make([]Path, h.animNameCount)
	for i := range names {
		if names[i], err = readPath(b, fmt.Sprintf("animNames[%d]", i), pos+i*PATH_SIZE); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// record resolves element i of one of the header's indirect arrays. Every
// element has to be present.
func record(b *cursor.Buffer, field string, headerField int, o cursor.Offset, i, count, size int) (int, error) {
	pos, ok, err := b.RelArr(field, RESOURCE_BASE+headerField, o, i, count, size)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, rito.Unsupported(field, RESOURCE_BASE+int64(headerField), "null entry %d of %d", i, count)
	}
	return pos, nil
}

func decode(data []byte, f rito.Format) (*Blend, int, error) {
	b := cursor.NewBuffer(data)
	h, err := readHeader(b)
	if err != nil {
		return nil, 0, err
	}
	if h.numAnimData > 0 && !h.animsData.IsNull() {
		return nil, 0, rito.NotImplemented("header.animsData", RESOURCE_BASE+HEADER_ANIMS_DATA,
			"%d animation data entries", h.numAnimData)
	}

	bl := &Blend{
		Format:            f,
		UseCascadeBlend:   h.useCascadeBlend,
		CascadeBlendValue: h.cascadeBlendValue,
	}
	if bl.Skeleton, err = readPath(b, "skeleton", RESOURCE_BASE+HEADER_SKELETON); err != nil {
		return nil, 0, err
	}
	if bl.AnimationNames, err = readAnimationNames(b, h); err != nil {
		return nil, 0, err
	}
	if bl.BlendPairs, err = readBlendPairs(b, h); err != nil {
		return nil, 0, err
	}
	if bl.TransitionClips, err = readTransitionClips(b, h); err != nil {
		return nil, 0, err
	}
	if bl.Tracks, err = readTracks(b, h); err != nil {
		return nil, 0, err
	}

	for i := 0; i < h.numMasks; i++ {
		field := fmt.Sprintf("masks[%d]", i)
		pos, err := record(b, field, HEADER_MASKS, h.masks, i, h.numMasks, MASK_SIZE)
		if err != nil {
			return nil, 0, err
		}
		m, err := readMask(b, field, pos)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "mask %d", i)
		}
		bl.Masks = append(bl.Masks, *m)
	}

	for i := 0; i < h.numEvents; i++ {
		field := fmt.Sprintf("events[%d]", i)
		pos, err := record(b, field, HEADER_EVENTS, h.events, i, h.numEvents, EVENT_LIST_SIZE)
		if err != nil {
			return nil, 0, err
		}
		el, err := readEventList(b, field, pos)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "event list %d", i)
		}
		bl.EventLists = append(bl.EventLists, *el)
	}

	for i := 0; i < h.numClips; i++ {
		field := fmt.Sprintf("clips[%d]", i)
		pos, err := record(b, field, HEADER_CLIPS, h.clips, i, h.numClips, CLIP_SIZE)
		if err != nil {
			return nil, 0, err
		}
		clip, err := readClip(b, field, pos)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "clip %d", i)
		}
		bl.Clips = append(bl.Clips, *clip)
	}

	consumed := RESOURCE_BASE + int(h.resourceSize)
	if h.resourceSize > uint32(b.Len()) || consumed > b.Len() {
		consumed = b.Len()
	}
	return bl, consumed, nil
}

func NewFromData(data []byte) (*Blend, int, error) {
	f, err := rito.Expect(data, rito.KindBlend)
	if err != nil {
		return nil, 0, err
	}
	return decode(data, f)
}

// Decode reads one animation graph from the current position of src.
func Decode(src rito.ByteSource) (*Blend, error) {
	var bl *Blend
	err := rito.DecodeFrom(src, func(data []byte) (int, error) {
		var consumed int
		var err error
		bl, consumed, err = NewFromData(data)
		return consumed, err
	})
	return bl, err
}

func init() {
	rito.SetHandler(rito.KindBlend, func(data []byte, f rito.Format) (interface{}, int, error) {
		return decode(data, f)
	})
}
