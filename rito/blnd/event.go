package blnd

import (
	"fmt"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
)

const (
	MASK_SIZE        = 0x28
	MASK_WEIGHT_SIZE = 4
	MASK_HASH_SIZE   = 8

	EVENT_LIST_SIZE = 0x30
	// common part plus the largest payload
	EVENT_DATA_SIZE = 0x24
)

type MaskJoint struct {
	Hash   uint32
	Weight float32
}

// Mask scopes a clip to a weighted subset of the skeleton.
type Mask struct {
	Flags    uint16
	UniqueID uint32
	Joints   []MaskJoint
}

// Weight returns the weight of the joint with the given name hash.
func (m *Mask) Weight(hash uint32) (float32, bool) {
	for _, j := range m.Joints {
		if j.Hash == hash {
			return j.Weight, true
		}
	}
	return 0, false
}

type EventType uint32

const (
	EVENT_PARTICLE EventType = iota
	EVENT_SOUND
	EVENT_SUBMESH_VISIBILITY
	EVENT_FADE
	EVENT_JOINT_SNAP
	EVENT_ENABLE_LOOK_AT
)

func (t EventType) String() string {
	switch t {
	case EVENT_PARTICLE:
		return "particle"
	case EVENT_SOUND:
		return "sound"
	case EVENT_SUBMESH_VISIBILITY:
		return "submesh-visibility"
	case EVENT_FADE:
		return "fade"
	case EVENT_JOINT_SNAP:
		return "joint-snap"
	case EVENT_ENABLE_LOOK_AT:
		return "enable-look-at"
	}
	return fmt.Sprintf("EventType(%d)", uint32(t))
}

// EventPayload is implemented only by the payload types of this package.
type EventPayload interface {
	EventType() EventType
	isEventPayload()
}

type ParticleEvent struct {
	EffectName     string
	BoneName       string
	TargetBoneName string
	EndFrame       float32
}

type SoundEvent struct {
	SoundName string
}

type SubmeshVisibilityEvent struct {
	EndFrame        float32
	ShowSubmeshHash uint32
	HideSubmeshHash uint32
}

type FadeEvent struct {
	TimeToFade  float32
	TargetAlpha float32
	EndFrame    float32
}

type JointSnapEvent struct {
	EndFrame             float32
	JointToOverrideIndex uint16
	JointToSnapToIndex   uint16
}

type EnableLookAtEvent struct {
	EndFrame          float32
	EnableLookAt      uint32
	LockCurrentValues uint32
}

func (ParticleEvent) EventType() EventType          { return EVENT_PARTICLE }
func (SoundEvent) EventType() EventType             { return EVENT_SOUND }
func (SubmeshVisibilityEvent) EventType() EventType { return EVENT_SUBMESH_VISIBILITY }
func (FadeEvent) EventType() EventType              { return EVENT_FADE }
func (JointSnapEvent) EventType() EventType         { return EVENT_JOINT_SNAP }
func (EnableLookAtEvent) EventType() EventType      { return EVENT_ENABLE_LOOK_AT }

func (ParticleEvent) isEventPayload()          {}
func (SoundEvent) isEventPayload()             {}
func (SubmeshVisibilityEvent) isEventPayload() {}
func (FadeEvent) isEventPayload()              {}
func (JointSnapEvent) isEventPayload()         {}
func (EnableLookAtEvent) isEventPayload()      {}

type Event struct {
	Flags   uint32
	Frame   float32
	Name    string
	Payload EventPayload
}

type EventList struct {
	Flags    uint16
	UniqueID uint32
	Name     string
	Events   []Event
}

// readMask reads a mask record. Its table offsets are counted from the
// record itself and both tables are indexed by joint.
func readMask(b *cursor.Buffer, field string, pos int) (*Mask, error) {
	c := b.At(pos + 12).Field(field)
	m := &Mask{}
	m.Flags = c.U16()
	count := int(c.U16())
	m.UniqueID = c.U32()
	weights := c.Offset()
	hashes := c.Offset()
	if err := c.Err(); err != nil {
		return nil, err
	}

	wpos, err := absTable(b, field+".weights", pos, weights, count, MASK_WEIGHT_SIZE)
	if err != nil {
		return nil, err
	}
	hpos, err := absTable(b, field+".jointHashes", pos, hashes, count, MASK_HASH_SIZE)
	if err != nil {
		return nil, err
	}
	wc := b.At(wpos).Field(field + ".weights")
	hc := b.At(hpos).Field(field + ".jointHashes")
	m.Joints = make([]MaskJoint, count)
	for j := range m.Joints {
		hc.Skip(4)
		m.Joints[j] = MaskJoint{Hash: hc.U32(), Weight: wc.F32()}
	}
	if err := wc.Err(); err != nil {
		return nil, err
	}
	return m, hc.Err()
}

func readEventList(b *cursor.Buffer, field string, pos int) (*EventList, error) {
	c := b.At(pos + 12).Field(field)
	el := &EventList{}
	el.Flags = c.U16()
	count := int(c.U16())
	el.UniqueID = c.U32()
	events := c.Offset()
	c.Skip(12)
	name := c.Offset()
	if err := c.Err(); err != nil {
		return nil, err
	}

	var err error
	if el.Name, err = b.AbsString(field+".name", pos, name); err != nil {
		return nil, err
	}
	for j := 0; j < count; j++ {
		efield := fmt.Sprintf("%s.eventsData[%d]", field, j)
		epos, ok, err := b.AbsArr(efield, pos, events, j, count, EVENT_DATA_SIZE)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, rito.Unsupported(efield, int64(pos+0x14), "null event %d of %d", j, count)
		}
		ev, err := readEvent(b, efield, epos)
		if err != nil {
			return nil, err
		}
		el.Events = append(el.Events, *ev)
	}
	return el, nil
}

// readEvent decodes one event record. Strings in it are counted from the
// record start.
func readEvent(b *cursor.Buffer, field string, pos int) (*Event, error) {
	c := b.At(pos + 4).Field(field)
	typ := EventType(c.U32())
	ev := &Event{}
	ev.Flags = c.U32()
	ev.Frame = c.F32()
	name := c.Offset()
	if err := c.Err(); err != nil {
		return nil, err
	}
	var err error
	if ev.Name, err = b.AbsString(field+".name", pos, name); err != nil {
		return nil, err
	}

	switch typ {
	case EVENT_PARTICLE:
		effect, bone, target := c.Offset(), c.Offset(), c.Offset()
		p := ParticleEvent{EndFrame: c.F32()}
		if p.EffectName, err = b.AbsString(field+".effectName", pos, effect); err != nil {
			return nil, err
		}
		if p.BoneName, err = b.AbsString(field+".boneName", pos, bone); err != nil {
			return nil, err
		}
		if p.TargetBoneName, err = b.AbsString(field+".targetBoneName", pos, target); err != nil {
			return nil, err
		}
		ev.Payload = p
	case EVENT_SOUND:
		p := SoundEvent{}
		if p.SoundName, err = b.AbsString(field+".soundName", pos, c.Offset()); err != nil {
			return nil, err
		}
		ev.Payload = p
	case EVENT_SUBMESH_VISIBILITY:
		p := SubmeshVisibilityEvent{}
		p.EndFrame = c.F32()
		p.ShowSubmeshHash = c.U32()
		p.HideSubmeshHash = c.U32()
		ev.Payload = p
	case EVENT_FADE:
		p := FadeEvent{}
		p.TimeToFade = c.F32()
		p.TargetAlpha = c.F32()
		p.EndFrame = c.F32()
		ev.Payload = p
	case EVENT_JOINT_SNAP:
		p := JointSnapEvent{}
		p.EndFrame = c.F32()
		p.JointToOverrideIndex = c.U16()
		p.JointToSnapToIndex = c.U16()
		ev.Payload = p
	case EVENT_ENABLE_LOOK_AT:
		p := EnableLookAtEvent{}
		p.EndFrame = c.F32()
		p.EnableLookAt = c.U32()
		p.LockCurrentValues = c.U32()
		ev.Payload = p
	default:
		return nil, rito.Unsupported(field+".type", int64(pos+4), "event type %v", typ)
	}
	return ev, c.Err()
}
