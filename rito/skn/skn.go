package skn

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/ritofmt/cursor"
	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

const (
	SUBMESH_SIZE      = 0x50
	SUBMESH_NAME_SIZE = 0x40
	// first/count fields at or above this value mean the range is unused
	RANGE_UNUSED = 0x7FFFFFFF

	VERTEX_TYPE_BASIC   = 0
	VERTEX_TYPE_COLORED = 1
	VERTEX_SIZE_BASIC   = 0x34
	VERTEX_SIZE_COLORED = 0x38

	// versions above these carry the extra sections
	VERSION_SUBMESHES = 0x10000
	VERSION_PIVOT     = 0x10001
	VERSION_GEOMETRY  = 0x10003
)

type Vertex struct {
	Position     mgl32.Vec3
	BlendIndices [4]uint8
	BlendWeights [4]float32
	Normal       mgl32.Vec3
	UV           mgl32.Vec2
	Color        [4]uint8
}

type SubMesh struct {
	Name        string
	FirstVertex int
	VertexCount int
	FirstIndex  int
	IndexCount  int
}

type Box struct {
	Origin mgl32.Vec3
	Size   mgl32.Vec3
}

type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

type SimpleSkin struct {
	Format           rito.Format
	Flags            uint32
	VertexType       uint32
	VertexColorCount int
	BoundingBox      Box
	BoundingSphere   Sphere
	PivotPoint       mgl32.Vec3

	SubMeshes []SubMesh
	Indices   []uint32
	Vertices  []Vertex
}

// SubMeshIndices returns the slice of the index pool used by submesh i.
func (s *SimpleSkin) SubMeshIndices(i int) []uint32 {
	sm := &s.SubMeshes[i]
	return s.Indices[sm.FirstIndex : sm.FirstIndex+sm.IndexCount]
}

func (s *SimpleSkin) SubMeshVertices(i int) []Vertex {
	sm := &s.SubMeshes[i]
	return s.Vertices[sm.FirstVertex : sm.FirstVertex+sm.VertexCount]
}

func vertexSizeOf(vertexType uint32) (int, bool) {
	switch vertexType {
	case VERTEX_TYPE_BASIC:
		return VERTEX_SIZE_BASIC, true
	case VERTEX_TYPE_COLORED:
		return VERTEX_SIZE_COLORED, true
	}
	return 0, false
}

func readSubMeshes(c *cursor.Cursor) ([]SubMesh, error) {
	c.Field("submeshes")
	count := c.I32()
	if c.Err() == nil && count < 0 {
		return nil, rito.Unsupported("submeshes", int64(c.Pos()-4), "negative count %d", count)
	}
	if !c.Need(int(count), SUBMESH_SIZE) {
		return nil, c.Err()
	}
	subs := make([]SubMesh, count)
	for i := range subs {
		sm := &subs[i]
		sm.Name = utils.BytesToString(c.FixedName(SUBMESH_NAME_SIZE))
		firstVertex, vertexCount := c.U32(), c.U32()
		firstIndex, indexCount := c.U32(), c.U32()
		sm.FirstVertex, sm.VertexCount = subRange(firstVertex, vertexCount)
		sm.FirstIndex, sm.IndexCount = subRange(firstIndex, indexCount)
	}
	return subs, c.Err()
}

// subRange maps unused and empty ranges to 0+0 so only real ranges are
// checked against the pools.
func subRange(first, count uint32) (int, int) {
	if count == 0 || first >= RANGE_UNUSED || count >= RANGE_UNUSED {
		return 0, 0
	}
	return int(first), int(count)
}

func checkRange(field string, first, count, pool int) error {
	if first > pool || count > pool-first {
		return rito.OutOfBounds(field, -1, "range %d+%d of %d", first, count, pool)
	}
	return nil
}

func decode(data []byte, f rito.Format) (*SimpleSkin, int, error) {
	b := cursor.NewBuffer(data)
	c := b.At(8)
	version := f.Version
	skn := &SimpleSkin{Format: f}

	if version > VERSION_SUBMESHES {
		var err error
		if skn.SubMeshes, err = readSubMeshes(c); err != nil {
			return nil, 0, err
		}
	}

	c.Field("geometry")
	var numIndices, numVertices int32
	vertexSize := uint32(VERTEX_SIZE_BASIC)
	if version > VERSION_GEOMETRY {
		skn.Flags = c.U32()
		numIndices, numVertices = c.I32(), c.I32()
		vertexSize = c.U32()
		skn.VertexType = c.U32()
		skn.BoundingBox.Origin = c.Vec3()
		skn.BoundingBox.Size = c.Vec3()
		skn.BoundingSphere.Center = c.Vec3()
		skn.BoundingSphere.Radius = c.F32()
	} else {
		numIndices, numVertices = c.I32(), c.I32()
	}
	if err := c.Err(); err != nil {
		return nil, 0, err
	}
	if numIndices < 0 || numVertices < 0 {
		return nil, 0, rito.Unsupported("geometry", int64(c.Pos()), "negative counts %d indices %d vertices", numIndices, numVertices)
	}
	expected, ok := vertexSizeOf(skn.VertexType)
	if !ok {
		return nil, 0, rito.Unsupported("geometry.vertexType", -1, "vertex type %d", skn.VertexType)
	}
	if int(vertexSize) != expected {
		return nil, 0, rito.Unsupported("geometry.vertexSize", -1, "vertex size %d for vertex type %d, expected %d",
			vertexSize, skn.VertexType, expected)
	}
	if skn.VertexType == VERTEX_TYPE_COLORED {
		skn.VertexColorCount = 1
	}

	c.Field("indices")
	if !c.Need(int(numIndices), 2) {
		return nil, 0, c.Err()
	}
	skn.Indices = make([]uint32, numIndices)
	for i := range skn.Indices {
		skn.Indices[i] = uint32(c.U16())
	}

	c.Field("vertices")
	if !c.Need(int(numVertices), expected) {
		return nil, 0, c.Err()
	}
	skn.Vertices = make([]Vertex, numVertices)
	for i := range skn.Vertices {
		v := &skn.Vertices[i]
		v.Position = c.Vec3()
		copy(v.BlendIndices[:], c.Bytes(4))
		for k := range v.BlendWeights {
			v.BlendWeights[k] = c.F32()
		}
		v.Normal = c.Vec3()
		v.UV = c.Vec2()
		if skn.VertexType == VERTEX_TYPE_COLORED {
			copy(v.Color[:], c.Bytes(4))
		}
	}

	if version > VERSION_PIVOT {
		skn.PivotPoint = c.Field("pivot").Vec3()
	}
	if err := c.Err(); err != nil {
		return nil, 0, err
	}

	for i, sm := range skn.SubMeshes {
		if err := checkRange(fmt.Sprintf("submeshes[%d].vertices", i), sm.FirstVertex, sm.VertexCount, len(skn.Vertices)); err != nil {
			return nil, 0, err
		}
		if err := checkRange(fmt.Sprintf("submeshes[%d].indices", i), sm.FirstIndex, sm.IndexCount, len(skn.Indices)); err != nil {
			return nil, 0, err
		}
	}
	return skn, c.Pos(), nil
}

func NewFromData(data []byte) (*SimpleSkin, int, error) {
	f, err := rito.Expect(data, rito.KindSimpleSkin)
	if err != nil {
		return nil, 0, err
	}
	return decode(data, f)
}

// Decode reads one skinned mesh from the current position of src.
func Decode(src rito.ByteSource) (*SimpleSkin, error) {
	var skn *SimpleSkin
	err := rito.DecodeFrom(src, func(data []byte) (int, error) {
		var consumed int
		var err error
		skn, consumed, err = NewFromData(data)
		return consumed, err
	})
	return skn, err
}

func init() {
	rito.SetHandler(rito.KindSimpleSkin, func(data []byte, f rito.Format) (interface{}, int, error) {
		return decode(data, f)
	})
}
