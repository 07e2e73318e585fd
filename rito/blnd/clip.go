package blnd

import (
	"fmt"
	"log"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
)

const (
	CLIP_SIZE       = 0x14
	CLIP_TYPE_SIZE  = 4
	ATOMIC_SIZE     = 0x2c
	ANIM_INDEX_NONE = 0x7FFFFFFF

	UPDATER_LIST_SIZE = 0x10
	UPDATER_SIZE      = 0x10
	PROCESSOR_SIZE    = 0x10
	PROCESSOR_LINEAR  = 0

	// position of the id inside records clips point at
	MASK_UNIQUE_ID_FIELD   = 0x10
	EVENTS_UNIQUE_ID_FIELD = 0x10
	TRACK_INDEX_FIELD      = 0xc
)

type ClipType uint32

const (
	CLIP_INVALID ClipType = iota
	CLIP_ATOMIC
	CLIP_SELECTOR
	CLIP_SEQUENCER
	CLIP_PARALLEL
	CLIP_MULTI_CHILD
	CLIP_PARAMETRIC
	CLIP_CONDITION_BOOL
	CLIP_CONDITION_FLOAT
)

var clipTypeNames = []string{
	"invalid", "atomic", "selector", "sequencer", "parallel",
	"multichild", "parametric", "condition-bool", "condition-float",
}

func (t ClipType) String() string {
	if int(t) < len(clipTypeNames) {
		return clipTypeNames[t]
	}
	return fmt.Sprintf("ClipType(%d)", uint32(t))
}

// ClipData is the type specific part of a clip.
type ClipData interface {
	Type() ClipType
	// ChildIDs lists the unique ids of the clips this one composes
	ChildIDs() []uint32
}

type Clip struct {
	Flags    uint16
	UniqueID uint32
	Name     string
	Data     ClipData
}

func (c *Clip) Type() ClipType { return c.Data.Type() }

// Processor is one stage of an updater. Stage kinds this package does not
// know are kept as UnknownProcessor.
type Processor interface {
	ProcessorType() uint16
}

type LinearProcessor struct {
	Multiplier float32
	Increment  float32
}

func (LinearProcessor) ProcessorType() uint16 { return PROCESSOR_LINEAR }

// Apply runs the stage on an input value.
func (p LinearProcessor) Apply(v float32) float32 { return v*p.Multiplier + p.Increment }

type UnknownProcessor struct {
	Type uint16
	Raw  []byte
}

func (p UnknownProcessor) ProcessorType() uint16 { return p.Type }

type Updater struct {
	InputType  uint16
	OutputType uint16
	Processors []Processor
}

// AtomicClip plays one animation. Pointers are nil when the reference is
// absent.
type AtomicClip struct {
	StartTick     uint32
	EndTick       uint32
	TickDuration  float32
	AnimIndex     *uint32
	EventListID   *uint32
	MaskID        *uint32
	TrackIndex    *uint32
	SyncGroupName string
	SyncGroup     uint32
	Updaters      []Updater
}

type SelectorEntry struct {
	ClipID      uint32
	Probability float32
}

type SelectorClip struct {
	TrackIndex uint32
	Entries    []SelectorEntry
}

type SequencerClip struct {
	TrackIndex uint32
	ClipIDs    []uint32
}

type ParallelClip struct {
	// per child flags, empty when the clip carries none
	ClipFlags []uint32
	ClipIDs   []uint32
}

// MultiChildClip has no payload of its own.
type MultiChildClip struct{}

type ParametricEntry struct {
	ClipID uint32
	Value  float32
}

type ParametricClip struct {
	UpdaterType uint32
	MaskID      *uint32
	TrackIndex  *uint32
	Entries     []ParametricEntry
}

type ConditionBoolEntry struct {
	ClipID uint32
	Value  bool
}

type ConditionBoolClip struct {
	UpdaterType            uint32
	ChangeAnimationMidPlay bool
	Entries                []ConditionBoolEntry
}

type ConditionFloatEntry struct {
	ClipID                uint32
	Value                 float32
	HoldAnimationToHigher float32
	HoldAnimationToLower  float32
}

type ConditionFloatClip struct {
	UpdaterType            uint32
	ChangeAnimationMidPlay bool
	Entries                []ConditionFloatEntry
}

func (*AtomicClip) Type() ClipType         { return CLIP_ATOMIC }
func (*SelectorClip) Type() ClipType       { return CLIP_SELECTOR }
func (*SequencerClip) Type() ClipType      { return CLIP_SEQUENCER }
func (*ParallelClip) Type() ClipType       { return CLIP_PARALLEL }
func (*MultiChildClip) Type() ClipType     { return CLIP_MULTI_CHILD }
func (*ParametricClip) Type() ClipType     { return CLIP_PARAMETRIC }
func (*ConditionBoolClip) Type() ClipType  { return CLIP_CONDITION_BOOL }
func (*ConditionFloatClip) Type() ClipType { return CLIP_CONDITION_FLOAT }

func (*AtomicClip) ChildIDs() []uint32      { return nil }
func (*MultiChildClip) ChildIDs() []uint32  { return nil }
func (c *SequencerClip) ChildIDs() []uint32 { return c.ClipIDs }
func (c *ParallelClip) ChildIDs() []uint32  { return c.ClipIDs }

func (c *SelectorClip) ChildIDs() []uint32 {
	ids := make([]uint32, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.ClipID
	}
	return ids
}

func (c *ParametricClip) ChildIDs() []uint32 {
	ids := make([]uint32, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.ClipID
	}
	return ids
}

func (c *ConditionBoolClip) ChildIDs() []uint32 {
	ids := make([]uint32, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.ClipID
	}
	return ids
}

func (c *ConditionFloatClip) ChildIDs() []uint32 {
	ids := make([]uint32, len(c.Entries))
	for i, e := range c.Entries {
		ids[i] = e.ClipID
	}
	return ids
}

// refID follows the field relative pointer stored at fieldPos to another
// record and returns the u32 at idField inside it.
func refID(b *cursor.Buffer, field string, fieldPos, idField int) (*uint32, error) {
	pos, ok, err := b.RelAt(field, fieldPos, idField+4)
	if err != nil || !ok {
		return nil, err
	}
	id, err := b.U32(field, pos+idField)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func readClip(b *cursor.Buffer, field string, pos int) (*Clip, error) {
	c := b.At(pos + 4).Field(field)
	clip := &Clip{}
	clip.Flags = c.U16()
	c.Skip(2)
	clip.UniqueID = c.U32()
	name := c.Offset()
	data := c.Offset()
	if err := c.Err(); err != nil {
		return nil, err
	}

	var err error
	if clip.Name, err = b.AbsString(field+".name", pos, name); err != nil {
		return nil, err
	}
	dataPos, ok, err := b.Abs(field+".data", pos, data, CLIP_TYPE_SIZE)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rito.Unsupported(field+".data", int64(pos+0x10), "clip %d without data", clip.UniqueID)
	}
	raw, err := b.U32(field+".type", dataPos)
	if err != nil {
		return nil, err
	}
	typ := ClipType(raw)

	switch typ {
	case CLIP_ATOMIC:
		clip.Data, err = readAtomic(b, field, dataPos)
	case CLIP_SELECTOR:
		clip.Data, err = readSelector(b, field, dataPos)
	case CLIP_SEQUENCER:
		clip.Data, err = readSequencer(b, field, dataPos)
	case CLIP_PARALLEL:
		clip.Data, err = readParallel(b, field, dataPos)
	case CLIP_MULTI_CHILD:
		clip.Data = &MultiChildClip{}
	case CLIP_PARAMETRIC:
		clip.Data, err = readParametric(b, field, dataPos)
	case CLIP_CONDITION_BOOL:
		clip.Data, err = readConditionBool(b, field, dataPos)
	case CLIP_CONDITION_FLOAT:
		clip.Data, err = readConditionFloat(b, field, dataPos)
	default:
		return nil, rito.Unsupported(field+".type", int64(dataPos), "clip type %v", typ)
	}
	if err != nil {
		return nil, err
	}
	return clip, nil
}

func readAtomic(b *cursor.Buffer, field string, dataPos int) (*AtomicClip, error) {
	if err := b.Check(field, dataPos, ATOMIC_SIZE); err != nil {
		return nil, err
	}
	c := b.At(dataPos + 4).Field(field)
	a := &AtomicClip{}
	a.StartTick = c.U32()
	a.EndTick = c.U32()
	a.TickDuration = c.F32()
	animIndex := c.U32()
	c.Skip(12)
	updater := c.Offset()
	c.Skip(4)
	a.SyncGroup = c.U32()
	if err := c.Err(); err != nil {
		return nil, err
	}
	if animIndex != ANIM_INDEX_NONE {
		a.AnimIndex = &animIndex
	}

	var err error
	if a.EventListID, err = refID(b, field+".event", dataPos+0x14, EVENTS_UNIQUE_ID_FIELD); err != nil {
		return nil, err
	}
	if a.MaskID, err = refID(b, field+".mask", dataPos+0x18, MASK_UNIQUE_ID_FIELD); err != nil {
		return nil, err
	}
	if a.TrackIndex, err = refID(b, field+".track", dataPos+0x1c, TRACK_INDEX_FIELD); err != nil {
		return nil, err
	}
	if a.SyncGroupName, err = b.RelString(field+".syncGroupName", dataPos+0x24); err != nil {
		return nil, err
	}
	if a.Updaters, err = readUpdaters(b, field+".updater", dataPos, updater); err != nil {
		return nil, err
	}
	return a, nil
}

// readUpdaters reads the updater list of an atomic clip. Its offset and the
// offsets inside the list are counted from the record that holds them.
func readUpdaters(b *cursor.Buffer, field string, dataPos int, o cursor.Offset) ([]Updater, error) {
	listPos, ok, err := b.Abs(field, dataPos, o, UPDATER_LIST_SIZE)
	if err != nil || !ok {
		return nil, err
	}
	c := b.At(listPos + 8).Field(field)
	count := int(c.U16())
	c.Skip(2)
	arr := c.Offset()
	if err := c.Err(); err != nil {
		return nil, err
	}

	var updaters []Updater
	for j := 0; j < count; j++ {
		name := fmt.Sprintf("%s.updaters[%d]", field, j)
		pos, ok, err := b.AbsArr(name, listPos, arr, j, count, UPDATER_SIZE)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, rito.Unsupported(name, int64(listPos+0xc), "null updater %d of %d", j, count)
		}
		uc := b.At(pos + 4).Field(name)
		u := Updater{}
		u.InputType = uc.U16()
		u.OutputType = uc.U16()
		numTransforms := int(uc.U8())
		uc.Skip(3)
		proc := uc.Offset()
		if err := uc.Err(); err != nil {
			return nil, err
		}
		ppos, err := absTable(b, name+".processor", pos, proc, numTransforms, PROCESSOR_SIZE)
		if err != nil {
			return nil, err
		}
		for k := 0; k < numTransforms; k++ {
			p, err := readProcessor(b, fmt.Sprintf("%s.processor[%d]", name, k), ppos+k*PROCESSOR_SIZE)
			if err != nil {
				return nil, err
			}
			u.Processors = append(u.Processors, p)
		}
		updaters = append(updaters, u)
	}
	return updaters, nil
}

func readProcessor(b *cursor.Buffer, field string, pos int) (Processor, error) {
	c := b.At(pos + 4).Field(field)
	typ := c.U16()
	c.Skip(2)
	if typ == PROCESSOR_LINEAR {
		p := LinearProcessor{}
		p.Multiplier = c.F32()
		p.Increment = c.F32()
		return p, c.Err()
	}
	p := UnknownProcessor{Type: typ, Raw: c.Bytes(8)}
	if err := c.Err(); err != nil {
		return nil, err
	}
	log.Printf("[blnd] %s: keeping processor of unknown type %d", field, typ)
	return p, nil
}

func readSelector(b *cursor.Buffer, field string, dataPos int) (*SelectorClip, error) {
	c := b.At(dataPos + 4).Field(field)
	s := &SelectorClip{TrackIndex: c.U32()}
	count := int(c.U32())
	if !c.Need(count, 8) {
		return nil, c.Err()
	}
	s.Entries = make([]SelectorEntry, count)
	for i := range s.Entries {
		s.Entries[i].ClipID = c.U32()
		s.Entries[i].Probability = c.F32()
	}
	return s, c.Err()
}

func readSequencer(b *cursor.Buffer, field string, dataPos int) (*SequencerClip, error) {
	c := b.At(dataPos + 4).Field(field)
	s := &SequencerClip{TrackIndex: c.U32()}
	count := int(c.U32())
	if !c.Need(count, 4) {
		return nil, c.Err()
	}
	s.ClipIDs = make([]uint32, count)
	for i := range s.ClipIDs {
		s.ClipIDs[i] = c.U32()
	}
	return s, c.Err()
}

func readParallel(b *cursor.Buffer, field string, dataPos int) (*ParallelClip, error) {
	c := b.At(dataPos + 4).Field(field)
	flags := c.Offset()
	count := int(c.U32())
	if !c.Need(count, 4) {
		return nil, c.Err()
	}
	p := &ParallelClip{ClipIDs: make([]uint32, count)}
	for i := range p.ClipIDs {
		p.ClipIDs[i] = c.U32()
	}
	if err := c.Err(); err != nil {
		return nil, err
	}

	if flags.IsNull() {
		return p, nil
	}
	pos, err := absTable(b, field+".clipFlags", dataPos, flags, count, 4)
	if err != nil {
		return nil, err
	}
	fc := b.At(pos).Field(field + ".clipFlags")
	p.ClipFlags = make([]uint32, count)
	for i := range p.ClipFlags {
		p.ClipFlags[i] = fc.U32()
	}
	return p, fc.Err()
}

func readParametric(b *cursor.Buffer, field string, dataPos int) (*ParametricClip, error) {
	c := b.At(dataPos + 4).Field(field)
	count := int(c.U32())
	p := &ParametricClip{UpdaterType: c.U32()}
	c.Skip(8)
	if !c.Need(count, 8) {
		return nil, c.Err()
	}
	p.Entries = make([]ParametricEntry, count)
	for i := range p.Entries {
		p.Entries[i].ClipID = c.U32()
		p.Entries[i].Value = c.F32()
	}
	if err := c.Err(); err != nil {
		return nil, err
	}

	var err error
	if p.MaskID, err = refID(b, field+".mask", dataPos+0xc, MASK_UNIQUE_ID_FIELD); err != nil {
		return nil, err
	}
	if p.TrackIndex, err = refID(b, field+".track", dataPos+0x10, TRACK_INDEX_FIELD); err != nil {
		return nil, err
	}
	return p, nil
}

func readConditionBool(b *cursor.Buffer, field string, dataPos int) (*ConditionBoolClip, error) {
	c := b.At(dataPos + 4).Field(field)
	count := int(c.U32())
	cb := &ConditionBoolClip{UpdaterType: c.U32()}
	cb.ChangeAnimationMidPlay = c.Bool()
	c.Skip(3)
	if !c.Need(count, 8) {
		return nil, c.Err()
	}
	cb.Entries = make([]ConditionBoolEntry, count)
	for i := range cb.Entries {
		cb.Entries[i].ClipID = c.U32()
		cb.Entries[i].Value = c.Bool()
		c.Skip(3)
	}
	return cb, c.Err()
}

func readConditionFloat(b *cursor.Buffer, field string, dataPos int) (*ConditionFloatClip, error) {
	c := b.At(dataPos + 4).Field(field)
	count := int(c.U32())
	cf := &ConditionFloatClip{UpdaterType: c.U32()}
	cf.ChangeAnimationMidPlay = c.Bool()
	c.Skip(3)
	if !c.Need(count, 16) {
		return nil, c.Err()
	}
	cf.Entries = make([]ConditionFloatEntry, count)
	for i := range cf.Entries {
		e := &cf.Entries[i]
		e.ClipID = c.U32()
		e.Value = c.F32()
		e.HoldAnimationToHigher = c.F32()
		e.HoldAnimationToLower = c.F32()
	}
	return cf, c.Err()
}
