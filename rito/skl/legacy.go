package skl

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

const (
	LEGACY_HEADER_SIZE = 0x14
	LEGACY_JOINT_SIZE  = 0x58
	LEGACY_NAME_SIZE   = 0x20
)

type legacyJoint struct {
	name      []byte
	parent    int32
	length    float32
	placement [12]float32
}

// decodeLegacy reads r3d2sklt v1/v2. Joints carry only their absolute bind
// placement; local transforms are derived from it.
func decodeLegacy(b *cursor.Buffer, f rito.Format) (*Skeleton, int, error) {
	if b.Len() < LEGACY_HEADER_SIZE {
		return nil, 0, rito.Truncated("header", 0, "need 0x%x bytes, have 0x%x", LEGACY_HEADER_SIZE, b.Len())
	}
	c := b.At(8).Field("header")
	skl := &Skeleton{Format: f}
	version := c.U32()
	skl.SkeletonID = c.U32()
	numJoints := c.I32()
	if numJoints < 0 {
		return nil, 0, rito.Unsupported("header.numJoints", 0x10, "negative count %d", numJoints)
	}

	c.Field("joints")
	if !c.Need(int(numJoints), LEGACY_JOINT_SIZE) {
		return nil, 0, c.Err()
	}
	raw := make([]legacyJoint, numJoints)
	for i := range raw {
		r := &raw[i]
		r.name = c.FixedName(LEGACY_NAME_SIZE)
		r.parent = c.I32()
		r.length = c.F32()
		for k := range r.placement {
			r.placement[k] = c.F32()
		}
	}

	if version == 2 {
		c.Field("shaderJoints")
		count := c.I32()
		if count < 0 {
			return nil, 0, rito.Unsupported("shaderJoints", int64(c.Pos()-4), "negative count %d", count)
		}
		if c.Need(int(count), 4) {
			skl.ShaderJoints = make([]int32, count)
			for i := range skl.ShaderJoints {
				skl.ShaderJoints[i] = c.I32()
			}
		}
	}
	if err := c.Err(); err != nil {
		return nil, 0, err
	}

	skl.Joints = make([]Joint, len(raw))
	for i, r := range raw {
		skl.Joints[i] = Joint{
			Index:    i,
			Parent:   int(r.parent),
			Name:     utils.BytesToString(r.name),
			NameHash: utils.ElfHash(r.name),
			Radius:   r.length,
		}
	}
	if err := validateHierarchy(skl.Joints); err != nil {
		return nil, 0, err
	}

	abs := make([]mgl32.Mat4, len(raw))
	for i, r := range raw {
		abs[i] = utils.Placement3x4(r.placement)
		if abs[i].Det() == 0 {
			return nil, 0, rito.Unsupported(fmt.Sprintf("joints[%d].placement", i),
				int64(LEGACY_HEADER_SIZE+i*LEGACY_JOINT_SIZE+0x28), "singular placement")
		}
	}
	for i := range skl.Joints {
		j := &skl.Joints[i]
		local := abs[i]
		if j.Parent != JOINT_PARENT_NONE {
			local = abs[j.Parent].Inv().Mul4(abs[i])
		}
		j.Local = local
		j.InverseBind = abs[i].Inv()
	}
	return skl, c.Pos(), nil
}
