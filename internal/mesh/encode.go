package mesh

import (
	"encoding/binary"
	"math"

	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/node"
)

// MaxVertices is the largest vertex count a 16-bit index can address.
const MaxVertices = 1 << 16

// maxPrimVerts is the largest triangle-list run a primitive header can count.
const maxPrimVerts = 0xFFFF

// Encoded is a polygon in the writer's vertex format: float positions,
// normals and texture coordinates, RGBA8 colors, all 16-bit indexed.
type Encoded struct {
	// Polygon is the input with vertices renumbered by first use and unused
	// vertices dropped.
	Polygon Polygon
	// Attrs carry their buffer in Data; IndexDirect attributes have none.
	Attrs       []node.VertexAttr
	DisplayList []byte
}

// Encode builds the attribute buffers and a triangle display list for p.
func Encode(p Polygon) (Encoded, error) {
	p = compact(p)
	if len(p.Vertices) > MaxVertices {
		return Encoded{}, hsd.Errorf(hsd.UnsupportedVariant, -1, "polygon has %d vertices", len(p.Vertices))
	}

	var attrs []node.VertexAttr
	if len(p.Envelopes) > 0 {
		if 3*(len(p.Envelopes)-1) > 0xFF {
			return Encoded{}, hsd.Errorf(hsd.UnsupportedVariant, -1, "polygon has %d envelopes", len(p.Envelopes))
		}
		attrs = append(attrs, node.VertexAttr{Attr: node.AttrPosMtxIdx, IndexType: node.IndexDirect})
	}
	attrs = append(attrs, floatAttr(node.AttrPos, node.PosXYZ, 3, p.Vertices, func(v Vertex) []float32 { return v.Position[:] }))
	if p.HasNormal {
		attrs = append(attrs, floatAttr(node.AttrNrm, node.NrmXYZ, 3, p.Vertices, func(v Vertex) []float32 { return v.Normal[:] }))
	}
	if p.HasColor {
		buf := make([]byte, 0, 4*len(p.Vertices))
		for _, v := range p.Vertices {
			buf = append(buf, v.Color[:]...)
		}
		attrs = append(attrs, node.VertexAttr{
			Attr: node.AttrClr0, IndexType: node.IndexIndex16,
			CompCount: node.ClrRGBA, CompType: node.ColorRGBA8,
			Stride: 4, Data: buf, HasData: true,
		})
	}
	if p.HasUV {
		attrs = append(attrs, floatAttr(node.AttrTex0, node.TexST, 2, p.Vertices, func(v Vertex) []float32 { return v.UV[:] }))
	}

	var dl []byte
	idx := make([]int32, 0, 3*len(p.Triangles))
	for _, t := range p.Triangles {
		idx = append(idx, t[:]...)
	}
	for len(idx) > 0 {
		n := min(len(idx), maxPrimVerts)
		dl = append(dl, node.PrimTriangles, byte(n>>8), byte(n))
		for _, vi := range idx[:n] {
			for _, a := range attrs {
				if a.Attr == node.AttrPosMtxIdx {
					env := max(p.Vertices[vi].Envelope, 0)
					dl = append(dl, byte(3*env))
					continue
				}
				dl = binary.BigEndian.AppendUint16(dl, uint16(vi))
			}
		}
		idx = idx[n:]
	}
	dl = append(dl, 0)
	for len(dl)%node.DisplayListBlock != 0 {
		dl = append(dl, 0)
	}

	return Encoded{Polygon: p, Attrs: attrs, DisplayList: dl}, nil
}

func floatAttr(attr, count uint32, n int, verts []Vertex, get func(Vertex) []float32) node.VertexAttr {
	buf := make([]byte, 0, 4*n*len(verts))
	for _, v := range verts {
		for _, c := range get(v)[:n] {
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(c))
		}
	}
	return node.VertexAttr{
		Attr: attr, IndexType: node.IndexIndex16,
		CompCount: count, CompType: node.CompF32,
		Stride: uint16(4 * n), Data: buf, HasData: true,
	}
}

// compact renumbers vertices in the order the triangle list first uses them.
func compact(p Polygon) Polygon {
	remap := make([]int32, len(p.Vertices))
	for i := range remap {
		remap[i] = -1
	}
	out := p
	out.Vertices = nil
	out.Triangles = make([][3]int32, len(p.Triangles))
	for ti, t := range p.Triangles {
		for k, vi := range t {
			if remap[vi] < 0 {
				remap[vi] = int32(len(out.Vertices))
				out.Vertices = append(out.Vertices, p.Vertices[vi])
			}
			out.Triangles[ti][k] = remap[vi]
		}
	}
	return out
}
