// Package mapgeo decodes OEGM map geometry. Unlike the r3d2 resources it is
// a plain stream of length prefixed sections: vertex layouts, raw vertex and
// index buffer pools, then meshes that slice those pools.
package mapgeo

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/ritofmt/rito"
	"github.com/mogaika/ritofmt/utils"
)

const (
	HEADER_SIZE        = 8
	ELEM_GROUP_SLOTS   = 15
	UNKNOWN_BLOCK_SIZE = 108
)

type Usage uint32

const (
	USAGE_STATIC Usage = iota
	USAGE_DYNAMIC
	USAGE_STREAM
)

type ElemName uint32

const (
	ELEM_POSITION ElemName = iota
	ELEM_NORMAL
	ELEM_FOG_COORD
	ELEM_PRIMARY_COLOR
	ELEM_SECONDARY_COLOR
	ELEM_TEXCOORD0
	ELEM_TEXCOORD1
	ELEM_TEXCOORD2
	ELEM_TEXCOORD3
	ELEM_TEXCOORD4
	ELEM_TEXCOORD5
	ELEM_TEXCOORD6
	ELEM_TEXCOORD7
)

type ElemFormat uint32

const (
	FORMAT_X_FLOAT32 ElemFormat = iota
	FORMAT_XY_FLOAT32
	FORMAT_XYZ_FLOAT32
	FORMAT_XYZW_FLOAT32
	FORMAT_BGRA_PACKED8888
	FORMAT_RGBA_PACKED8888
)

var formatSizes = map[ElemFormat]int{
	FORMAT_X_FLOAT32:       4,
	FORMAT_XY_FLOAT32:      8,
	FORMAT_XYZ_FLOAT32:     12,
	FORMAT_XYZW_FLOAT32:    16,
	FORMAT_BGRA_PACKED8888: 4,
	FORMAT_RGBA_PACKED8888: 4,
}

// Size returns the number of bytes one attribute of format f takes.
func (f ElemFormat) Size() (int, bool) {
	s, ok := formatSizes[f]
	return s, ok
}

type Elem struct {
	Name   ElemName
	Format ElemFormat
}

// ElemGroup describes the layout of one vertex in a vertex buffer.
type ElemGroup struct {
	Usage Usage
	Elems []Elem
}

func (g *ElemGroup) VertexSize() int {
	size := 0
	for _, e := range g.Elems {
		s, _ := e.Format.Size()
		size += s
	}
	return size
}

// ElemOffset returns the byte offset of the attribute called name inside a
// vertex.
func (g *ElemGroup) ElemOffset(name ElemName) (int, Elem, bool) {
	off := 0
	for _, e := range g.Elems {
		if e.Name == name {
			return off, e, true
		}
		s, _ := e.Format.Size()
		off += s
	}
	return 0, Elem{}, false
}

type SubMesh struct {
	Unknown0     uint32
	MaterialName string
	FirstIndex   uint32
	IndexCount   uint32
	Unknown1     uint32
	Unknown2     uint32
}

type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

type Mesh struct {
	Name          string
	VertexCount   uint32
	ElemGroup     uint32
	VertexBuffers []uint32
	IndexCount    uint32
	IndexBuffer   uint32
	SubMeshes     []SubMesh

	Flag0       uint8
	BoundingBox Box
	Transform   mgl32.Mat4
	Flag1       uint8
	// present only when the file carries mesh vectors
	Vector  mgl32.Vec3
	Unknown [UNKNOWN_BLOCK_SIZE]byte
	Tag     string
	Color   mgl32.Vec4
}

type MapGeo struct {
	Format rito.Format
	// file wide switch for the per mesh vector
	HasMeshVector bool
	ElemGroups    []ElemGroup
	VertexBuffers [][]byte
	IndexBuffers  [][]uint16
	Meshes        []Mesh
}

// Positions reinterprets the first vertex buffer of mesh i through the
// mesh's element group and returns the vertex positions.
func (m *MapGeo) Positions(i int) ([]mgl32.Vec3, error) {
	mesh := &m.Meshes[i]
	field := fmt.Sprintf("meshes[%d].positions", i)
	if len(mesh.VertexBuffers) == 0 {
		return nil, nil
	}
	group := &m.ElemGroups[mesh.ElemGroup]
	off, elem, ok := group.ElemOffset(ELEM_POSITION)
	if !ok {
		return nil, rito.Unsupported(field, -1, "element group %d has no positions", mesh.ElemGroup)
	}
	if elem.Format != FORMAT_XYZ_FLOAT32 {
		return nil, rito.Unsupported(field, -1, "position format %d", elem.Format)
	}
	stride := group.VertexSize()
	vb := m.VertexBuffers[mesh.VertexBuffers[0]]
	if uint64(mesh.VertexCount)*uint64(stride) > uint64(len(vb)) {
		return nil, rito.OutOfBounds(field, -1, "%d vertices of 0x%x bytes in a 0x%x byte buffer", mesh.VertexCount, stride, len(vb))
	}

	r := newReader(vb)
	positions := make([]mgl32.Vec3, mesh.VertexCount)
	for v := range positions {
		r.skip(field, off)
		numbers(r, field, positions[v][:])
		r.skip(field, stride-off-12)
	}
	if r.err != nil {
		return nil, r.err
	}
	return positions, nil
}

// SubMeshIndices returns the index range of submesh j of mesh i.
func (m *MapGeo) SubMeshIndices(i, j int) []uint16 {
	mesh := &m.Meshes[i]
	sm := &mesh.SubMeshes[j]
	return m.IndexBuffers[mesh.IndexBuffer][sm.FirstIndex : sm.FirstIndex+sm.IndexCount]
}

func readElemGroups(r *reader) []ElemGroup {
	count := r.count("vertexElemGroups", 8+ELEM_GROUP_SLOTS*8)
	groups := make([]ElemGroup, count)
	for i := range groups {
		field := fmt.Sprintf("vertexElemGroups[%d]", i)
		pos := r.pos()
		var usage, elemCount uint32
		var slots [ELEM_GROUP_SLOTS * 2]uint32
		r.number(field+".usage", &usage)
		r.number(field+".elemCount", &elemCount)
		if !numbers(r, field+".elems", slots[:]) {
			return nil
		}
		if elemCount > ELEM_GROUP_SLOTS {
			r.fail(rito.Unsupported(field+".elemCount", pos+4, "%d elements", elemCount))
			return nil
		}
		groups[i].Usage = Usage(usage)
		groups[i].Elems = make([]Elem, elemCount)
		for k := range groups[i].Elems {
			e := Elem{Name: ElemName(slots[2*k]), Format: ElemFormat(slots[2*k+1])}
			if _, ok := e.Format.Size(); !ok {
				r.fail(rito.Unsupported(fmt.Sprintf("%s.elems[%d]", field, k), pos+8+int64(k)*8+4, "element format %d", e.Format))
				return nil
			}
			groups[i].Elems[k] = e
		}
	}
	return groups
}

func readMesh(r *reader, field string, hasVector bool) *Mesh {
	m := &Mesh{}
	m.Name = utils.BytesToString(r.blob(field + ".name"))
	r.number(field+".vertexCount", &m.VertexCount)
	vbCount := r.count(field+".vertexBuffers", 4)
	r.number(field+".vertexElemGroup", &m.ElemGroup)
	m.VertexBuffers = make([]uint32, vbCount)
	numbers(r, field+".vertexBuffers", m.VertexBuffers)
	r.number(field+".indexCount", &m.IndexCount)
	r.number(field+".indexBuffer", &m.IndexBuffer)

	subCount := r.count(field+".subMeshes", 4*6)
	m.SubMeshes = make([]SubMesh, subCount)
	for j := range m.SubMeshes {
		sfield := fmt.Sprintf("%s.subMeshes[%d]", field, j)
		sm := &m.SubMeshes[j]
		r.number(sfield, &sm.Unknown0)
		sm.MaterialName = utils.BytesToString(r.blob(sfield + ".materialName"))
		var ranges [4]uint32
		numbers(r, sfield, ranges[:])
		sm.FirstIndex, sm.IndexCount, sm.Unknown1, sm.Unknown2 = ranges[0], ranges[1], ranges[2], ranges[3]
	}

	var box [6]float32
	r.number(field+".flag0", &m.Flag0)
	numbers(r, field+".boundingBox", box[:])
	numbers(r, field+".transform", m.Transform[:])
	r.number(field+".flag1", &m.Flag1)
	m.BoundingBox = Box{
		Min: mgl32.Vec3{box[0], box[1], box[2]},
		Max: mgl32.Vec3{box[3], box[4], box[5]},
	}
	if hasVector {
		numbers(r, field+".vector", m.Vector[:])
	}
	r.bytes(field+".unknown", m.Unknown[:])
	m.Tag = utils.BytesToString(r.blob(field + ".tag"))
	numbers(r, field+".color", m.Color[:])
	return m
}

func checkRefs(geo *MapGeo) error {
	for i := range geo.Meshes {
		m := &geo.Meshes[i]
		field := fmt.Sprintf("meshes[%d]", i)
		if int(m.ElemGroup) >= len(geo.ElemGroups) {
			return rito.OutOfBounds(field+".vertexElemGroup", -1, "group %d of %d", m.ElemGroup, len(geo.ElemGroups))
		}
		for k, vb := range m.VertexBuffers {
			if int(vb) >= len(geo.VertexBuffers) {
				return rito.OutOfBounds(fmt.Sprintf("%s.vertexBuffers[%d]", field, k), -1, "buffer %d of %d", vb, len(geo.VertexBuffers))
			}
		}
		if int(m.IndexBuffer) >= len(geo.IndexBuffers) {
			return rito.OutOfBounds(field+".indexBuffer", -1, "buffer %d of %d", m.IndexBuffer, len(geo.IndexBuffers))
		}
		indices := uint64(len(geo.IndexBuffers[m.IndexBuffer]))
		for j, sm := range m.SubMeshes {
			if uint64(sm.FirstIndex)+uint64(sm.IndexCount) > indices {
				return rito.OutOfBounds(fmt.Sprintf("%s.subMeshes[%d]", field, j), -1,
					"range %d+%d of %d indices", sm.FirstIndex, sm.IndexCount, indices)
			}
		}
	}
	return nil
}

func decode(data []byte, f rito.Format) (*MapGeo, int, error) {
	r := newReader(data)
	r.skip("header", HEADER_SIZE)
	geo := &MapGeo{Format: f}

	var flag uint8
	r.number("meshVectorFlag", &flag)
	geo.HasMeshVector = flag != 0
	geo.ElemGroups = readElemGroups(r)

	vbCount := r.count("vertexBuffers", 4)
	for i := 0; i < vbCount && r.err == nil; i++ {
		geo.VertexBuffers = append(geo.VertexBuffers, r.blob(fmt.Sprintf("vertexBuffers[%d]", i)))
	}

	ibCount := r.count("indexBuffers", 4)
	for i := 0; i < ibCount && r.err == nil; i++ {
		field := fmt.Sprintf("indexBuffers[%d]", i)
		pos := r.pos()
		size := r.count(field, 1)
		if size%2 != 0 {
			r.fail(rito.Unsupported(field, pos, "odd index buffer size %d", size))
			break
		}
		ib := make([]uint16, size/2)
		numbers(r, field, ib)
		geo.IndexBuffers = append(geo.IndexBuffers, ib)
	}

	meshCount := r.count("meshes", 4)
	for i := 0; i < meshCount && r.err == nil; i++ {
		m := readMesh(r, fmt.Sprintf("meshes[%d]", i), geo.HasMeshVector)
		geo.Meshes = append(geo.Meshes, *m)
	}

	if r.err != nil {
		return nil, 0, r.err
	}
	if err := checkRefs(geo); err != nil {
		return nil, 0, err
	}
	return geo, int(r.pos()), nil
}

func NewFromData(data []byte) (*MapGeo, int, error) {
	f, err := rito.Expect(data, rito.KindMapGeo)
	if err != nil {
		return nil, 0, err
	}
	return decode(data, f)
}

// Decode reads one map geometry file from the current position of src.
func Decode(src rito.ByteSource) (*MapGeo, error) {
	var geo *MapGeo
	err := rito.DecodeFrom(src, func(data []byte) (int, error) {
		var consumed int
		var err error
		geo, consumed, err = NewFromData(data)
		return consumed, err
	})
	return geo, err
}

func init() {
	rito.SetHandler(rito.KindMapGeo, func(data []byte, f rito.Format) (interface{}, int, error) {
		return decode(data, f)
	})
}
