package skl

import (
	"fmt"
	"log"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

const (
	RESOURCE_HEADER_SIZE      = 0x40
	RESOURCE_JOINT_SIZE       = 0x64
	RESOURCE_JOINT_NAME_FIELD = 0x60
	RESOURCE_INDEX_SIZE       = 8
)

// decodeResource reads the offset based layout. Offsets in the header are
// counted from the start of the resource; joint names are relative to their
// own field.
func decodeResource(b *cursor.Buffer, f rito.Format) (*Skeleton, int, error) {
	if b.Len() < RESOURCE_HEADER_SIZE {
		return nil, 0, rito.Truncated("header", 0, "need 0x%x bytes, have 0x%x", RESOURCE_HEADER_SIZE, b.Len())
	}
	c := b.At(0).Field("header")
	resourceSize := c.U32()
	token := c.U32()
	version := c.U32()
	skl := &Skeleton{Format: f}
	skl.Flags = c.U16()
	numJoints := int(c.I16())
	numShaderJoints := int(c.I32())
	jointsOff := c.Offset()
	indicesOff := c.Offset()
	shaderOff := c.Offset()
	nameOff := c.Offset()
	assetNameOff := c.Offset()

	if token != rito.SKELETON_RESOURCE_TOKEN {
		return nil, 0, rito.Unsupported("header.formatToken", 4, "token 0x%x", token)
	}
	if version != 0 {
		return nil, 0, rito.Unsupported("header.version", 8, "version %d", version)
	}
	if numJoints < 0 {
		return nil, 0, rito.Unsupported("header.numJoints", 0xe, "negative count %d", numJoints)
	}

	if numJoints > 0 {
		if jointsOff.IsNull() {
			return nil, 0, rito.Unsupported("header.joints", 0x14, "%d joints without a joint table", numJoints)
		}
		if err := b.CheckArray("joints", int(jointsOff), numJoints, RESOURCE_JOINT_SIZE); err != nil {
			return nil, 0, err
		}
	}
	skl.Joints = make([]Joint, numJoints)
	for i := range skl.Joints {
		pos := int(jointsOff) + i*RESOURCE_JOINT_SIZE
		if err := readResourceJoint(b, pos, &skl.Joints[i]); err != nil {
			return nil, 0, err
		}
	}
	if err := validateHierarchy(skl.Joints); err != nil {
		return nil, 0, err
	}

	if pos, ok, err := b.Abs("jointIndices", 0, indicesOff, 0); err != nil {
		return nil, 0, err
	} else if ok {
		ic := b.At(pos).Field("jointIndices")
		if !ic.Need(numJoints, RESOURCE_INDEX_SIZE) {
			return nil, 0, ic.Err()
		}
		skl.JointIndices = make([]JointIndex, numJoints)
		for i := range skl.JointIndices {
			skl.JointIndices[i].Index = ic.I16()
			ic.Skip(2)
			skl.JointIndices[i].Hash = ic.U32()
		}
	}

	if numShaderJoints > 0 {
		pos, ok, err := b.Abs("shaderJoints", 0, shaderOff, 0)
		if err != nil {
			return nil, 0, err
		}
		if ok {
			sc := b.At(pos).Field("shaderJoints")
			if !sc.Need(numShaderJoints, 2) {
				return nil, 0, sc.Err()
			}
			skl.ShaderJoints = make([]int32, numShaderJoints)
			for i := range skl.ShaderJoints {
				skl.ShaderJoints[i] = int32(sc.I16())
			}
		}
	}

	var err error
	if skl.Name, err = b.AbsString("name", 0, nameOff); err != nil {
		return nil, 0, err
	}
	if skl.AssetName, err = b.AbsString("assetName", 0, assetNameOff); err != nil {
		return nil, 0, err
	}

	consumed := int(resourceSize)
	if consumed > b.Len() || consumed < RESOURCE_HEADER_SIZE {
		consumed = b.Len()
	}
	return skl, consumed, nil
}

func readResourceJoint(b *cursor.Buffer, pos int, j *Joint) error {
	c := b.At(pos).Field("joint")
	j.Flags = c.U16()
	j.Index = int(c.I16())
	j.Parent = int(c.I16())
	c.Skip(2)
	j.NameHash = c.U32()
	j.Radius = c.F32()
	j.Local = utils.Compose(c.Transform())
	j.InverseBind = utils.Compose(c.Transform())
	if err := c.Err(); err != nil {
		return err
	}

	raw, err := resolveJointName(b, pos+RESOURCE_JOINT_NAME_FIELD)
	if err != nil {
		return err
	}
	j.Name = utils.BytesToString(raw)
	if len(raw) != 0 {
		if h := utils.ElfHash(raw); h != j.NameHash {
			log.Printf("[skl] joint %q stored hash %.8x, computed %.8x", j.Name, j.NameHash, h)
		}
	}
	return nil
}

func resolveJointName(b *cursor.Buffer, fieldPos int) ([]byte, error) {
	pos, ok, err := b.RelAt(fmt.Sprintf("joint@0x%x.name", fieldPos), fieldPos, 1)
	if err != nil || !ok {
		return nil, err
	}
	return b.CStringBytes("joint.name", pos)
}
