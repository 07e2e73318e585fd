package anm_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/rito/anm"
	"github.com/mogaika/ritofmt/rito/ritotest"
	"github.com/mogaika/ritofmt/utils"
)

const base = 12

// resourceHeader writes the tag and a v4/v5 header with the given section
// offsets, counted from the end of the tag.
func resourceHeader(version uint32, tracks, frames int32, hashes, asset, vectors, quats, frameTable uint32) *ritotest.Builder {
	bld := ritotest.New().Name("r3d2anmd", 8).U32(version)
	bld.U32(0).U32(0xBE0794D3).U32(0).U32(0).I32(tracks).I32(frames).F32(1.0 / 30)
	bld.U32(hashes).U32(asset).U32(0).U32(vectors).U32(quats).U32(frameTable)
	return bld.Pad(12)
}

func setSize(bld *ritotest.Builder) []byte {
	return bld.SetU32(base, uint32(bld.Len()-base)).Data()
}

func buildV4() []byte {
	bld := resourceHeader(4, 1, 2, 0, 0, 0x40, 0x4c, 0x5c)
	bld.F32(1, 2, 3)
	bld.F32(0, 0, 0, 1)
	for i := 0; i < 2; i++ {
		bld.U32(0x79664).U16(0).U16(0).U16(0).U16(0)
	}
	return setSize(bld)
}

func TestV4SinglePaletteEntry(t *testing.T) {
	data := buildV4()
	a, consumed, err := anm.NewFromData(data)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(data) {
		t.Errorf("consumed %d of %d", consumed, len(data))
	}
	if len(a.Tracks) != 1 || a.FrameCount != 2 {
		t.Fatalf("decoded %s", utils.SDump(a))
	}
	track := a.Tracks[0]
	if track.JointHash != 0x79664 {
		t.Errorf("joint hash %.8x", track.JointHash)
	}
	if len(track.Positions) != 2 || len(track.Scales) != 2 || len(track.Rotations) != 2 {
		t.Fatalf("sample counts %d %d %d", len(track.Positions), len(track.Scales), len(track.Rotations))
	}
	for f := 0; f < 2; f++ {
		tr := track.Transform(f)
		if tr.Translation != (mgl32.Vec3{1, 2, 3}) || tr.Scale != (mgl32.Vec3{1, 2, 3}) || tr.Rotation != mgl32.QuatIdent() {
			t.Errorf("frame %d = %+v", f, tr)
		}
	}
	if d := a.Duration(); math.Abs(float64(d)-2.0/30) > 1e-6 {
		t.Errorf("duration %v", d)
	}
}

func TestV4Truncated(t *testing.T) {
	data := buildV4()
	for cut := base + 0x40; cut < len(data); cut++ {
		_, _, err := anm.NewFromData(data[:cut])
		if !errors.Is(err, rito.ErrOutOfBounds) {
			t.Errorf("cut at %d: err = %v", cut, err)
		}
	}
	if _, _, err := anm.NewFromData(data[:base+0x20]); !errors.Is(err, rito.ErrTruncated) {
		t.Errorf("cut inside header: err = %v", err)
	}
}

func TestV4BadIndex(t *testing.T) {
	for _, field := range []int{4, 6, 8} {
		data := buildV4()
		// second frame record, one of its palette indices
		data[base+0x5c+12+field] = 1
		if _, _, err := anm.NewFromData(data); !errors.Is(err, rito.ErrOutOfBounds) {
			t.Errorf("index field %d: err = %v", field, err)
		}
	}
}

func TestV4AssetName(t *testing.T) {
	bld := resourceHeader(4, 1, 1, 0, 0x68, 0x40, 0x4c, 0x5c)
	bld.F32(4, 5, 6)
	bld.F32(0, 0, 0, 2)
	bld.U32(0x79664).U16(0).U16(0).U16(0).U16(0)
	bld.CString("ASSETS/Test/idle.anm")
	data := setSize(bld)

	a, _, err := anm.NewFromData(data)
	if err != nil {
		t.Fatal(err)
	}
	if a.AssetName != "ASSETS/Test/idle.anm" {
		t.Errorf("asset name %q", a.AssetName)
	}
	if q := a.Tracks[0].Rotations[0]; q != mgl32.QuatIdent() {
		t.Errorf("rotation not normalised: %v", q)
	}
}

func TestV5(t *testing.T) {
	bld := resourceHeader(5, 2, 1, 0x40, 0, 0x48, 0x60, 0x66)
	bld.U32(0x79664).U32(0x7a7045)
	bld.F32(1, 2, 3).F32(1, 1, 1)
	bld.U16(0x4000).U16(0x2000).U16(0x7000)
	bld.U16(0).U16(1).U16(0)
	bld.U16(1).U16(0).U16(0)
	data := setSize(bld)

	src := bytes.NewReader(data)
	a, err := anm.Decode(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Tracks) != 2 {
		t.Fatalf("decoded %s", utils.SDump(a))
	}
	if a.Tracks[0].JointHash != 0x79664 || a.Tracks[1].JointHash != 0x7a7045 {
		t.Errorf("hashes %.8x %.8x", a.Tracks[0].JointHash, a.Tracks[1].JointHash)
	}
	if a.Tracks[0].Scales[0] != (mgl32.Vec3{1, 1, 1}) || a.Tracks[1].Positions[0] != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("samples %+v", a.Tracks)
	}
	q := a.Tracks[1].Rotations[0]
	if ritotest.QuatDiff(q, mgl32.QuatIdent()) > 1e-3 {
		t.Errorf("rotation %v", q)
	}
	if tr, ok := a.TrackByHash(0x7a7045); !ok || tr != &a.Tracks[1] {
		t.Errorf("TrackByHash = %v, %v", tr, ok)
	}
}

func TestLegacy(t *testing.T) {
	bld := ritotest.New().Name("r3d2anmd", 8).U32(3)
	bld.U32(0x1234).I32(2).I32(2).I32(30)
	for i, name := range []string{"root", "spine"} {
		bld.Name(name, 32).U32(uint32(i))
		for f := 0; f < 2; f++ {
			bld.F32(0, 0, 0, 1).F32(float32(i), float32(f), 0)
		}
	}
	data := bld.Data()

	a, consumed, err := anm.NewFromData(data)
	if err != nil {
		t.Fatal(err)
	}
	if consumed != len(data) {
		t.Errorf("consumed %d of %d", consumed, len(data))
	}
	if a.SkeletonID != 0x1234 || math.Abs(float64(a.TickDuration)-1.0/30) > 1e-7 {
		t.Errorf("header %+v", a)
	}
	spine, ok := a.TrackByHash(0x7a7045)
	if !ok || spine.Name != "spine" || spine.Flags != 1 {
		t.Fatalf("spine track %+v", spine)
	}
	if spine.Positions[1] != (mgl32.Vec3{1, 1, 0}) || spine.Scales[1] != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("spine frame 1 %+v", spine.Transform(1))
	}

	if _, _, err := anm.NewFromData(data[:len(data)-1]); !errors.Is(err, rito.ErrOutOfBounds) {
		t.Errorf("truncated: err = %v", err)
	}
	zeroRate := append([]byte(nil), data...)
	zeroRate[24] = 0
	if _, _, err := anm.NewFromData(zeroRate); !errors.Is(err, rito.ErrUnsupportedFormat) {
		t.Errorf("zero frame rate: err = %v", err)
	}
}

func compressed(frames, jumpCaches, hashes uint32) []byte {
	bld := ritotest.New().Name("r3d2canm", 8).U32(1)
	bld.U32(0).U32(0).U32(0).I32(2).I32(4).I32(0).F32(1, 30)
	bld.Pad(6*4 + 12*4)
	bld.U32(frames).U32(jumpCaches).U32(hashes)
	bld.Pad(4 * 10)
	bld.U32(0x79664).U32(0x7a7045)
	return bld.Data()
}

func TestCompressed(t *testing.T) {
	for _, test := range []struct {
		name string
		data []byte
		kind error
	}{
		{"valid", compressed(0x74, 0, 0x74+40), rito.ErrNotImplemented},
		{"no tables", compressed(0, 0, 0), rito.ErrNotImplemented},
		{"frames past end", compressed(0x74+20, 0, 0), rito.ErrOutOfBounds},
		{"hashes past end", compressed(0, 0, 0x74+40+4), rito.ErrOutOfBounds},
		{"jump caches past end", compressed(0, 0x1000, 0), rito.ErrOutOfBounds},
		{"short header", compressed(0, 0, 0)[:0x40], rito.ErrTruncated},
	} {
		if _, _, err := anm.NewFromData(test.data); !errors.Is(err, test.kind) {
			t.Errorf("%s: err = %v, expected %v", test.name, err, test.kind)
		}
	}
}
