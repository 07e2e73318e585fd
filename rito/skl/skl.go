package skl

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

const JOINT_PARENT_NONE = -1

type Joint struct {
	Flags    uint16
	Index    int
	Parent   int
	Name     string
	NameHash uint32
	Radius   float32

	// Local places the joint relative to its parent, InverseBind maps model
	// space into joint space at bind pose. Both are full matrices: a local
	// under a non uniformly scaled parent may carry shear.
	Local       mgl32.Mat4
	InverseBind mgl32.Mat4
}

func (j *Joint) LocalMatrix() mgl32.Mat4 { return j.Local }

func (j *Joint) InverseBindMatrix() mgl32.Mat4 { return j.InverseBind }

// LocalTransform is Local split into translation, rotation and scale. Any
// shear is dropped.
func (j *Joint) LocalTransform() utils.Transform { return utils.Decompose(j.Local) }

func (j *Joint) InverseBindTransform() utils.Transform { return utils.Decompose(j.InverseBind) }

// JointIndex is an entry of the resource hash lookup table.
type JointIndex struct {
	Index int16
	Hash  uint32
}

type Skeleton struct {
	Format     rito.Format
	SkeletonID uint32
	Flags      uint16
	Name       string
	AssetName  string

	Joints       []Joint
	ShaderJoints []int32
	JointIndices []JointIndex
}

// JointByHash finds a joint by the hash animations and blends bind with.
func (s *Skeleton) JointByHash(hash uint32) (*Joint, bool) {
	for i := range s.Joints {
		if s.Joints[i].NameHash == hash {
			return &s.Joints[i], true
		}
	}
	return nil, false
}

func (s *Skeleton) JointByName(name string) (*Joint, bool) {
	return s.JointByHash(utils.ElfHashString(name))
}

// HashNames maps every joint hash to its name.
func (s *Skeleton) HashNames() map[uint32]string {
	names := make(map[uint32]string, len(s.Joints))
	for _, j := range s.Joints {
		names[j.NameHash] = j.Name
	}
	return names
}

// AbsoluteMatrices accumulates local transforms from the roots down.
// Joints may be stored in any order as long as the hierarchy is acyclic,
// which decoding guarantees.
func (s *Skeleton) AbsoluteMatrices() []mgl32.Mat4 {
	abs := make([]mgl32.Mat4, len(s.Joints))
	done := make([]bool, len(s.Joints))
	var resolve func(i int) mgl32.Mat4
	resolve = func(i int) mgl32.Mat4 {
		if done[i] {
			return abs[i]
		}
		j := &s.Joints[i]
		m := j.LocalMatrix()
		if j.Parent != JOINT_PARENT_NONE {
			m = resolve(j.Parent).Mul4(m)
		}
		abs[i], done[i] = m, true
		return m
	}
	for i := range s.Joints {
		resolve(i)
	}
	return abs
}

// StringTree prints the hierarchy one joint per line, children indented
// under their parent.
func (s *Skeleton) StringTree() string {
	children := make(map[int][]int)
	for i, j := range s.Joints {
		children[j.Parent] = append(children[j.Parent], i)
	}
	var buffer bytes.Buffer
	var walk func(parent, depth int)
	walk = func(parent, depth int) {
		for _, i := range children[parent] {
			j := &s.Joints[i]
			fmt.Fprintf(&buffer, "%s[%.3d] %s %.8x\n", strings.Repeat("  ", depth), i, j.Name, j.NameHash)
			walk(i, depth+1)
		}
	}
	walk(JOINT_PARENT_NONE, 0)
	return buffer.String()
}

// validateHierarchy checks parent links: each must be the root marker or
// an existing joint, and following them from anywhere must reach a root.
func validateHierarchy(joints []Joint) error {
	const (
		unvisited = iota
		visiting
		finished
	)
	for i, j := range joints {
		if j.Parent != JOINT_PARENT_NONE && (j.Parent < 0 || j.Parent >= len(joints)) {
			return rito.Unsupported(fmt.Sprintf("joints[%d].parent", i), -1, "parent %d of %d joints", j.Parent, len(joints))
		}
	}
	state := make([]uint8, len(joints))
	for i := range joints {
		var path []int
		cur := i
		for cur != JOINT_PARENT_NONE && state[cur] == unvisited {
			state[cur] = visiting
			path = append(path, cur)
			cur = joints[cur].Parent
		}
		if cur != JOINT_PARENT_NONE && state[cur] == visiting {
			return rito.Unsupported(fmt.Sprintf("joints[%d].parent", cur), -1, "parent chain loops")
		}
		for _, p := range path {
			state[p] = finished
		}
	}
	return nil
}

func decode(data []byte, f rito.Format) (*Skeleton, int, error) {
	b := cursor.NewBuffer(data)
	switch f.Layout {
	case rito.LayoutSkeletonLegacy:
		return decodeLegacy(b, f)
	case rito.LayoutSkeletonResource:
		return decodeResource(b, f)
	}
	return nil, 0, rito.Unsupported("header", 0, "%v is not a skeleton", f)
}

// NewFromData decodes a skeleton held in memory and reports how many bytes
// of data it spans.
func NewFromData(data []byte) (*Skeleton, int, error) {
	f, err := rito.Expect(data, rito.KindSkeleton)
	if err != nil {
		return nil, 0, err
	}
	return decode(data, f)
}

// Decode reads one skeleton from the current position of src.
func Decode(src rito.ByteSource) (*Skeleton, error) {
	var skl *Skeleton
	err := rito.DecodeFrom(src, func(data []byte) (int, error) {
		var consumed int
		var err error
		skl, consumed, err = NewFromData(data)
		return consumed, err
	})
	return skl, err
}

func init() {
	rito.SetHandler(rito.KindSkeleton, func(data []byte, f rito.Format) (interface{}, int, error) {
		return decode(data, f)
	})
}
