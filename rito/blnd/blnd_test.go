package blnd_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"testing"

	"github.com/pkg/errors"

	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/rito/blnd"
	"github.com/mogaika/ritofmt/rito/ritotest"
	"github.com/mogaika/ritofmt/utils"
)

const hdr = 12

// refs are the positions of the records clips may point at.
type refs struct {
	mask, events, track int
}

type clipWriter func(bld *ritotest.Builder, r refs)

type eventWriter func(bld *ritotest.Builder)

type graph struct {
	clips    []clipWriter
	events   []eventWriter
	animData bool
}

// build lays out a complete graph: header, tables, one mask, one event list
// and the clips, each clip getting unique id 100+i.
func (g graph) build() []byte {
	bld := ritotest.New().Name("r3d2blnd", 8).U32(1)
	bld.U32(0).U32(0x5d8c1cad).U32(0)
	bld.U32(uint32(len(g.clips))).U32(1).U32(1).U32(1).U32(0).U32(1).U32(1)
	bld.U8(1).Pad(3).F32(0.5)
	bld.PadTo(hdr + 0x60)
	bld.SetU32(hdr+0x4c, 1).SetU32(hdr+0x54, 0xABCD1234)
	if g.animData {
		bld.SetU32(hdr+0x1c, 2).SetU32(hdr+0x48, 0x60)
	}

	bld.SetRel(hdr+0x30, bld.Len())
	bld.U32(1).U32(2).U32(3).F32(0.25)

	tc := bld.Len()
	bld.SetRel(hdr+0x34, tc)
	bld.U32(7).U32(2).U32(0)
	bld.SetRel(tc+8, bld.Len())
	bld.U32(8).U32(9).U32(10).U32(11)

	var r refs
	r.track = bld.Len()
	bld.SetRel(hdr+0x38, r.track)
	bld.U32(48).F32(1).U32(2).U32(3).Name("upper", 32)

	names := bld.Len()
	bld.SetRel(hdr+0x50, names)
	bld.U32(0x1111).U32(0)
	bld.SetRel(names+4, bld.Len()).CString("ASSETS/run.anm")
	bld.SetRel(hdr+0x58, bld.Len()).CString("ASSETS/hero.skl")

	arr := bld.Len()
	bld.SetRel(hdr+0x40, arr).U32(0)
	r.mask = bld.Len()
	bld.SetRel(arr, r.mask)
	bld.U32(40).U32(0).U32(0).U16(5).U16(2).U32(0x77).Pad(20)
	bld.SetAbs(r.mask+20, r.mask, bld.Len()).F32(1, 0.5)
	bld.SetAbs(r.mask+24, r.mask, bld.Len()).I32(0).U32(0x79664).I32(1).U32(0x7a7045)

	arr = bld.Len()
	bld.SetRel(hdr+0x44, arr).U32(0)
	r.events = bld.Len()
	bld.SetRel(arr, r.events)
	bld.U32(48).U32(0).U32(0).U16(3).U16(uint16(len(g.events))).U32(0x88).Pad(28)
	bld.SetAbs(r.events+36, r.events, bld.Len()).CString("footsteps")
	if len(g.events) > 0 {
		earr := bld.Len()
		bld.SetAbs(r.events+20, r.events, earr).Pad(4 * len(g.events))
		for j, w := range g.events {
			bld.SetAbs(earr+4*j, r.events, bld.Len())
			w(bld)
		}
	}

	arr = bld.Len()
	bld.SetRel(hdr+0x3c, arr).Pad(4 * len(g.clips))
	for i, w := range g.clips {
		c := bld.Len()
		bld.SetRel(arr+4*i, c)
		bld.U32(20).U16(uint16(i)).U16(0).U32(uint32(100 + i)).U32(0).U32(0)
		bld.SetAbs(c+12, c, bld.Len()).CString(fmt.Sprintf("clip%d", i))
		bld.SetAbs(c+16, c, bld.Len())
		w(bld, r)
	}
	bld.SetU32(hdr, uint32(bld.Len()-hdr))
	return bld.Data()
}

func particleEvent(bld *ritotest.Builder) {
	rec := bld.Len()
	bld.U32(36).U32(0).U32(1).F32(2).U32(0).U32(0).U32(0).U32(0).F32(12)
	for i, s := range []string{"hit", "fx_spark", "r_hand", "l_hand"} {
		bld.SetAbs(rec+16+4*i, rec, bld.Len()).CString(s)
	}
}

func soundEvent(bld *ritotest.Builder) {
	rec := bld.Len()
	bld.U32(36).U32(1).U32(0).F32(3).U32(0).U32(0).Pad(12)
	bld.SetAbs(rec+20, rec, bld.Len()).CString("step")
}

func rawEvent(typ uint32, frame float32, payload func(*ritotest.Builder)) eventWriter {
	return func(bld *ritotest.Builder) {
		rec := bld.Len()
		bld.U32(36).U32(typ).U32(0).F32(frame).U32(0)
		payload(bld)
		bld.PadTo(rec + 36)
	}
}

var allEvents = []eventWriter{
	particleEvent,
	soundEvent,
	rawEvent(2, 4, func(bld *ritotest.Builder) { bld.F32(8).U32(0x11).U32(0x22) }),
	rawEvent(3, 5, func(bld *ritotest.Builder) { bld.F32(0.5, 0.25, 9) }),
	rawEvent(4, 6, func(bld *ritotest.Builder) { bld.F32(10).U16(3).U16(4) }),
	rawEvent(5, 7, func(bld *ritotest.Builder) { bld.F32(11).U32(1).U32(0) }),
}

func atomicClip(bld *ritotest.Builder, r refs) {
	d := bld.Len()
	bld.U32(1).U32(0).U32(30).F32(0.5).U32(4)
	bld.U32(0).U32(0).U32(0).U32(0).U32(0).U32(9).Pad(8)
	bld.SetRel(d+0x14, r.events).SetRel(d+0x18, r.mask).SetRel(d+0x1c, r.track)
	bld.SetRel(d+0x24, bld.Len()).CString("locomotion")

	u := bld.Len()
	bld.SetAbs(d+0x20, d, u)
	bld.U32(16).U32(1).U16(2).U16(0).U32(0)
	ua := bld.Len()
	bld.SetAbs(u+12, u, ua).U32(0).U32(0)

	ud := bld.Len()
	bld.SetAbs(ua, u, ud)
	bld.U32(16).U16(1).U16(2).U8(2).U8(0).U16(0).U32(0)
	bld.SetAbs(ud+12, ud, bld.Len())
	bld.U32(16).U16(0).U16(0).F32(2, 1)
	bld.U32(16).U16(9).U16(0).U32(0xAABBCCDD).U32(1)

	ud = bld.Len()
	bld.SetAbs(ua+4, u, ud)
	bld.U32(16).U16(3).U16(4).U8(0).U8(0).U16(0).U32(0)
}

func selectorClip(bld *ritotest.Builder, r refs) {
	bld.U32(2).U32(1).U32(2).U32(100).F32(0.75).U32(101).F32(0.25)
}

func sequencerClip(bld *ritotest.Builder, r refs) {
	bld.U32(3).U32(0).U32(2).U32(100).U32(101)
}

func parallelClip(bld *ritotest.Builder, r refs) {
	d := bld.Len()
	bld.U32(4).U32(0).U32(2).U32(100).U32(101)
	bld.SetAbs(d+4, d, bld.Len()).U32(1).U32(0)
}

func multiChildClip(bld *ritotest.Builder, r refs) {
	bld.U32(5)
}

func parametricClip(bld *ritotest.Builder, r refs) {
	d := bld.Len()
	bld.U32(6).U32(1).U32(3).U32(0).U32(0).U32(100).F32(0.5)
	bld.SetRel(d+12, r.mask)
}

func conditionBoolClip(bld *ritotest.Builder, r refs) {
	bld.U32(7).U32(2).U32(1).U8(1).Pad(3)
	bld.U32(100).U8(1).Pad(3).U32(101).U8(0).Pad(3)
}

func conditionFloatClip(bld *ritotest.Builder, r refs) {
	bld.U32(8).U32(1).U32(0).U8(0).Pad(3).U32(100).F32(1, 2, 3)
}

func rawClip(typ uint32) clipWriter {
	return func(bld *ritotest.Builder, r refs) { bld.U32(typ).Pad(12) }
}

var fullGraph = graph{
	clips: []clipWriter{
		atomicClip, selectorClip, sequencerClip, parallelClip,
		multiChildClip, parametricClip, conditionBoolClip, conditionFloatClip,
	},
	events: allEvents,
}

// follow resolves the field relative offset stored at fieldPos.
func follow(data []byte, fieldPos int) int {
	return fieldPos + int(int32(binary.LittleEndian.Uint32(data[fieldPos:])))
}

func TestDecodeGraph(t *testing.T) {
	data := fullGraph.build()
	src := bytes.NewReader(append(append([]byte(nil), data...), 1, 2, 3))
	bl, err := blnd.Decode(src)
	if err != nil {
		t.Fatal(err)
	}
	if pos, _ := src.Seek(0, io.SeekCurrent); pos != int64(len(data)) {
		t.Errorf("source left at %d, expected %d", pos, len(data))
	}

	if !bl.UseCascadeBlend || bl.CascadeBlendValue != 0.5 {
		t.Errorf("cascade %v %v", bl.UseCascadeBlend, bl.CascadeBlendValue)
	}
	if bl.Skeleton != (blnd.Path{Hash: 0xABCD1234, Path: "ASSETS/hero.skl"}) {
		t.Errorf("skeleton %+v", bl.Skeleton)
	}
	if len(bl.AnimationNames) != 1 || bl.AnimationNames[0] != (blnd.Path{Hash: 0x1111, Path: "ASSETS/run.anm"}) {
		t.Errorf("animation names %+v", bl.AnimationNames)
	}
	if len(bl.BlendPairs) != 1 || bl.BlendPairs[0] != (blnd.BlendPair{FromAnimID: 1, ToAnimID: 2, Flags: 3, BlendTime: 0.25}) {
		t.Errorf("blend pairs %+v", bl.BlendPairs)
	}
	if len(bl.TransitionClips) != 1 || bl.TransitionClips[0].FromAnimID != 7 || len(bl.TransitionClips[0].Transitions) != 2 ||
		bl.TransitionClips[0].Transitions[1] != (blnd.Transition{ToAnimID: 10, TransitionAnimID: 11}) {
		t.Errorf("transition clips %+v", bl.TransitionClips)
	}
	if len(bl.Tracks) != 1 || bl.Tracks[0] != (blnd.Track{BlendWeight: 1, BlendMode: 2, Index: 3, Name: "upper"}) {
		t.Errorf("tracks %+v", bl.Tracks)
	}

	mask, ok := bl.MaskByID(0x77)
	if !ok || mask.Flags != 5 || len(mask.Joints) != 2 {
		t.Fatalf("mask %+v", bl.Masks)
	}
	if w, ok := mask.Weight(0x7a7045); !ok || w != 0.5 {
		t.Errorf("spine weight %v %v", w, ok)
	}

	list, ok := bl.EventListByID(0x88)
	if !ok || list.Name != "footsteps" || list.Flags != 3 || len(list.Events) != 6 {
		t.Fatalf("event list %s", utils.SDump(bl.EventLists))
	}
	for i, want := range []blnd.EventPayload{
		blnd.ParticleEvent{EffectName: "fx_spark", BoneName: "r_hand", TargetBoneName: "l_hand", EndFrame: 12},
		blnd.SoundEvent{SoundName: "step"},
		blnd.SubmeshVisibilityEvent{EndFrame: 8, ShowSubmeshHash: 0x11, HideSubmeshHash: 0x22},
		blnd.FadeEvent{TimeToFade: 0.5, TargetAlpha: 0.25, EndFrame: 9},
		blnd.JointSnapEvent{EndFrame: 10, JointToOverrideIndex: 3, JointToSnapToIndex: 4},
		blnd.EnableLookAtEvent{EndFrame: 11, EnableLookAt: 1},
	} {
		if ev := list.Events[i]; ev.Payload != want || ev.Payload.EventType() != blnd.EventType(i) {
			t.Errorf("event %d = %+v, expected %+v", i, ev.Payload, want)
		}
	}
	if ev := list.Events[0]; ev.Name != "hit" || ev.Flags != 1 || ev.Frame != 2 {
		t.Errorf("particle event %+v", ev)
	}

	if len(bl.Clips) != 8 {
		t.Fatalf("clips %s", utils.SDump(bl.Clips))
	}
	for i, clip := range bl.Clips {
		if clip.UniqueID != uint32(100+i) || clip.Name != fmt.Sprintf("clip%d", i) || clip.Type() != blnd.ClipType(i+1) {
			t.Errorf("clip %d = %d %q %v", i, clip.UniqueID, clip.Name, clip.Type())
		}
	}
	if missing := bl.MissingChildren(); len(missing) != 0 {
		t.Errorf("missing children %v", missing)
	}
}

func TestAtomicClip(t *testing.T) {
	bl, _, err := blnd.NewFromData(graph{clips: []clipWriter{atomicClip}}.build())
	if err != nil {
		t.Fatal(err)
	}
	a, ok := bl.Clips[0].Data.(*blnd.AtomicClip)
	if !ok {
		t.Fatalf("clip data %T", bl.Clips[0].Data)
	}
	if a.StartTick != 0 || a.EndTick != 30 || a.TickDuration != 0.5 || a.SyncGroup != 9 || a.SyncGroupName != "locomotion" {
		t.Errorf("atomic %s", utils.SDump(a))
	}
	if a.AnimIndex == nil || *a.AnimIndex != 4 {
		t.Errorf("anim index %v", a.AnimIndex)
	}
	if a.EventListID == nil || *a.EventListID != 0x88 || a.MaskID == nil || *a.MaskID != 0x77 || a.TrackIndex == nil || *a.TrackIndex != 3 {
		t.Errorf("references %s", utils.SDump(a.EventListID, a.MaskID, a.TrackIndex))
	}

	if len(a.Updaters) != 2 {
		t.Fatalf("updaters %s", utils.SDump(a.Updaters))
	}
	u := a.Updaters[0]
	if u.InputType != 1 || u.OutputType != 2 || len(u.Processors) != 2 {
		t.Fatalf("updater %s", utils.SDump(u))
	}
	lin, ok := u.Processors[0].(blnd.LinearProcessor)
	if !ok || lin.Multiplier != 2 || lin.Increment != 1 || lin.Apply(3) != 7 {
		t.Errorf("linear processor %+v", u.Processors[0])
	}
	unk, ok := u.Processors[1].(blnd.UnknownProcessor)
	if !ok || unk.ProcessorType() != 9 || !bytes.Equal(unk.Raw, []byte{0xDD, 0xCC, 0xBB, 0xAA, 1, 0, 0, 0}) {
		t.Errorf("unknown processor %+v", u.Processors[1])
	}
	if u := a.Updaters[1]; u.InputType != 3 || u.OutputType != 4 || len(u.Processors) != 0 {
		t.Errorf("empty updater %+v", u)
	}
}

func TestCompositeClips(t *testing.T) {
	bl, _, err := blnd.NewFromData(fullGraph.build())
	if err != nil {
		t.Fatal(err)
	}
	clips := bl.ClipsByID()

	sel := clips[101].Data.(*blnd.SelectorClip)
	if sel.TrackIndex != 1 || len(sel.Entries) != 2 || sel.Entries[1] != (blnd.SelectorEntry{ClipID: 101, Probability: 0.25}) {
		t.Errorf("selector %+v", sel)
	}
	seq := clips[102].Data.(*blnd.SequencerClip)
	if len(seq.ClipIDs) != 2 || seq.ClipIDs[0] != 100 || seq.ClipIDs[1] != 101 {
		t.Errorf("sequencer %+v", seq)
	}
	par := clips[103].Data.(*blnd.ParallelClip)
	if len(par.ClipIDs) != 2 || len(par.ClipFlags) != 2 || par.ClipFlags[0] != 1 || par.ClipFlags[1] != 0 {
		t.Errorf("parallel %+v", par)
	}
	if _, ok := clips[104].Data.(*blnd.MultiChildClip); !ok {
		t.Errorf("multichild %T", clips[104].Data)
	}
	pm := clips[105].Data.(*blnd.ParametricClip)
	if pm.UpdaterType != 3 || pm.MaskID == nil || *pm.MaskID != 0x77 || pm.TrackIndex != nil ||
		len(pm.Entries) != 1 || pm.Entries[0] != (blnd.ParametricEntry{ClipID: 100, Value: 0.5}) {
		t.Errorf("parametric %s", utils.SDump(pm))
	}
	cb := clips[106].Data.(*blnd.ConditionBoolClip)
	if cb.UpdaterType != 1 || !cb.ChangeAnimationMidPlay || len(cb.Entries) != 2 || !cb.Entries[0].Value || cb.Entries[1].Value {
		t.Errorf("condition bool %+v", cb)
	}
	cf := clips[107].Data.(*blnd.ConditionFloatClip)
	want := blnd.ConditionFloatEntry{ClipID: 100, Value: 1, HoldAnimationToHigher: 2, HoldAnimationToLower: 3}
	if cf.ChangeAnimationMidPlay || len(cf.Entries) != 1 || cf.Entries[0] != want {
		t.Errorf("condition float %+v", cf)
	}
	if ids := cb.ChildIDs(); len(ids) != 2 || ids[1] != 101 {
		t.Errorf("condition bool children %v", ids)
	}
}

func TestMissingChildren(t *testing.T) {
	// the selector refers to 100 and 101, only 100 exists
	bl, _, err := blnd.NewFromData(graph{clips: []clipWriter{selectorClip}}.build())
	if err != nil {
		t.Fatal(err)
	}
	if missing := bl.MissingChildren(); len(missing) != 1 || missing[0] != 101 {
		t.Errorf("missing children %v", missing)
	}
}

func TestClipTypes(t *testing.T) {
	for _, test := range []struct {
		name string
		g    graph
		kind error
	}{
		{"multichild only", graph{clips: []clipWriter{multiChildClip}}, nil},
		{"invalid type", graph{clips: []clipWriter{rawClip(0)}}, rito.ErrUnsupportedFormat},
		{"unknown type", graph{clips: []clipWriter{rawClip(9)}}, rito.ErrUnsupportedFormat},
		{"unknown event", graph{events: []eventWriter{rawEvent(6, 0, func(*ritotest.Builder) {})}}, rito.ErrUnsupportedFormat},
		{"animation data", graph{animData: true}, rito.ErrNotImplemented},
	} {
		_, _, err := blnd.NewFromData(test.g.build())
		if test.kind == nil && err != nil {
			t.Errorf("%s: %v", test.name, err)
		} else if test.kind != nil && !errors.Is(err, test.kind) {
			t.Errorf("%s: err = %v, expected %v", test.name, err, test.kind)
		}
	}
}

func TestMalformed(t *testing.T) {
	for _, test := range []struct {
		name    string
		corrupt func(data []byte) []byte
		kind    error
	}{
		{"resource version", func(data []byte) []byte {
			data[hdr+8] = 1
			return data
		}, rito.ErrUnsupportedFormat},
		{"short header", func(data []byte) []byte {
			return data[:hdr+0x40]
		}, rito.ErrTruncated},
		{"clip table past end", func(data []byte) []byte {
			binary.LittleEndian.PutUint32(data[hdr+0x3c:], 0x7FFF0000)
			return data
		}, rito.ErrOutOfBounds},
		{"null clip entry", func(data []byte) []byte {
			binary.LittleEndian.PutUint32(data[follow(data, hdr+0x3c):], 0)
			return data
		}, rito.ErrUnsupportedFormat},
		{"clip entry past end", func(data []byte) []byte {
			binary.LittleEndian.PutUint32(data[follow(data, hdr+0x3c)+4:], 0x00FFFFF0)
			return data
		}, rito.ErrOutOfBounds},
		{"clip type past end", func(data []byte) []byte {
			clip := follow(data, follow(data, hdr+0x3c))
			binary.LittleEndian.PutUint32(data[clip+16:], uint32(len(data)-2-clip))
			return data
		}, rito.ErrOutOfBounds},
		{"mask weights past end", func(data []byte) []byte {
			mask := follow(data, follow(data, hdr+0x40))
			binary.LittleEndian.PutUint32(data[mask+20:], uint32(len(data)))
			return data
		}, rito.ErrOutOfBounds},
		{"mask without weights", func(data []byte) []byte {
			mask := follow(data, follow(data, hdr+0x40))
			binary.LittleEndian.PutUint32(data[mask+20:], 0xFFFFFFFF)
			return data
		}, rito.ErrUnsupportedFormat},
		{"track table past end", func(data []byte) []byte {
			binary.LittleEndian.PutUint32(data[hdr+0x38:], uint32(len(data)-hdr-0x38-8))
			return data
		}, rito.ErrOutOfBounds},
	} {
		data := test.corrupt(fullGraph.build())
		if _, _, err := blnd.NewFromData(data); !errors.Is(err, test.kind) {
			t.Errorf("%s: err = %v, expected %v", test.name, err, test.kind)
		}
	}
}

func TestTruncated(t *testing.T) {
	data := fullGraph.build()
	for cut := hdr + 0x60; cut < len(data); cut++ {
		if _, _, err := blnd.NewFromData(data[:cut]); !errors.Is(err, rito.ErrOutOfBounds) {
			t.Fatalf("cut at %d: err = %v", cut, err)
		}
	}
}
