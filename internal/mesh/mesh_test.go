package mesh

import (
	"encoding/binary"
	"errors"
	"math"
	"reflect"
	"testing"

	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/node"
)

// posBuffer holds n float positions (i, 0, 0).
func posAttr(n int) node.VertexAttr {
	var buf []byte
	for i := 0; i < n; i++ {
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(i)))
		buf = binary.BigEndian.AppendUint32(buf, 0)
		buf = binary.BigEndian.AppendUint32(buf, 0)
	}
	return node.VertexAttr{
		Attr: node.AttrPos, IndexType: node.IndexIndex8,
		CompCount: node.PosXYZ, CompType: node.CompF32,
		Stride: 12, Data: buf, HasData: true,
	}
}

func primitive(op uint8, idx ...byte) []byte {
	out := []byte{op, 0, byte(len(idx))}
	return append(out, idx...)
}

func polygon(n int, dl ...[]byte) *node.Polygon {
	p := &node.Polygon{Attrs: []node.VertexAttr{posAttr(n)}, SkinJoint: node.NilRef}
	for _, d := range dl {
		p.DisplayList = append(p.DisplayList, d...)
	}
	p.DisplayList = append(p.DisplayList, 0, 0, 0)
	return p
}

func positions(p Polygon) [][3]float32 {
	var out [][3]float32
	for _, t := range p.Triangles {
		out = append(out, [3]float32{
			p.Vertices[t[0]].Position[0],
			p.Vertices[t[1]].Position[0],
			p.Vertices[t[2]].Position[0],
		})
	}
	return out
}

func TestPrimitiveTriangulation(t *testing.T) {
	tests := []struct {
		name string
		dl   []byte
		want [][3]float32
	}{
		{"triangles", primitive(node.PrimTriangles, 0, 1, 2, 2, 1, 3), [][3]float32{{0, 1, 2}, {2, 1, 3}}},
		{"quads", primitive(node.PrimQuads, 0, 1, 2, 3), [][3]float32{{0, 1, 2}, {0, 2, 3}}},
		{"strip", primitive(node.PrimTriangleStrip, 0, 1, 2, 3, 4), [][3]float32{{0, 1, 2}, {2, 1, 3}, {2, 3, 4}}},
		{"fan", primitive(node.PrimTriangleFan, 0, 1, 2, 3, 4), [][3]float32{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}}},
		{"lines skipped", primitive(node.PrimLines, 0, 1), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ExtractPolygon(polygon(5, tt.dl), nil)
			if err != nil {
				t.Fatal(err)
			}
			if got := positions(p); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("triangles = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVertexDedup(t *testing.T) {
	p, err := ExtractPolygon(polygon(4,
		primitive(node.PrimTriangles, 0, 1, 2),
		primitive(node.PrimTriangleStrip, 2, 1, 3)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Vertices) != 4 {
		t.Fatalf("got %d vertices, want 4", len(p.Vertices))
	}
	want := [][3]int32{{0, 1, 2}, {2, 1, 3}}
	if !reflect.DeepEqual(p.Triangles, want) {
		t.Errorf("triangles = %v, want %v", p.Triangles, want)
	}
}

func TestExtractErrors(t *testing.T) {
	p := polygon(3, primitive(node.PrimTriangles, 0, 1, 7))
	if _, err := ExtractPolygon(p, nil); !errors.Is(err, hsd.ErrTruncatedData) {
		t.Errorf("index past buffer: got %v", err)
	}

	p = polygon(3, primitive(0xC8, 0, 1, 2))
	if _, err := ExtractPolygon(p, nil); !errors.Is(err, hsd.ErrCorruptFormat) {
		t.Errorf("bad opcode: got %v", err)
	}

	p = polygon(3)
	p.DisplayList = []byte{node.PrimTriangles, 0, 3, 0, 1}
	if _, err := ExtractPolygon(p, nil); !errors.Is(err, hsd.ErrTruncatedData) {
		t.Errorf("short record: got %v", err)
	}
}

func TestQuantizedAttributes(t *testing.T) {
	pos := node.VertexAttr{
		Attr: node.AttrPos, IndexType: node.IndexDirect,
		CompCount: node.PosXYZ, CompType: node.CompS16, Scale: 8,
	}
	clr := node.VertexAttr{
		Attr: node.AttrClr0, IndexType: node.IndexDirect,
		CompCount: node.ClrRGBA, CompType: node.ColorRGBA4,
	}
	p := &node.Polygon{Attrs: []node.VertexAttr{pos, clr}, SkinJoint: node.NilRef}
	rec := []byte{0x01, 0x80, 0xFF, 0x00, 0x00, 0x40, 0xF0, 0x8F}
	p.DisplayList = append([]byte{node.PrimTriangles, 0, 3}, append(append(append([]byte{}, rec...), rec...), rec...)...)

	got, err := ExtractPolygon(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Vertices) != 1 {
		t.Fatalf("got %d vertices, want 1", len(got.Vertices))
	}
	v := got.Vertices[0]
	if v.Position != [3]float32{1.5, -1, 0.25} {
		t.Errorf("position = %v", v.Position)
	}
	if v.Color != [4]uint8{0xFF, 0x00, 0x88, 0xFF} {
		t.Errorf("color = %v", v.Color)
	}
}

func TestEncodeFixedPoint(t *testing.T) {
	src := Polygon{
		HasNormal: true,
		HasColor:  true,
		HasUV:     true,
		Envelopes: [][]Weight{{{Bone: 1, Weight: 1}}, {{Bone: 2, Weight: 0.5}, {Bone: 3, Weight: 0.5}}},
		SkinBone:  -1,
	}
	for i := 0; i < 5; i++ {
		f := float32(i)
		src.Vertices = append(src.Vertices, Vertex{
			Position: [3]float32{f, f * 2, -f},
			Normal:   [3]float32{0, 1, 0},
			Color:    [4]uint8{uint8(i), 2, 3, 255},
			UV:       [2]float32{f / 4, 1 - f/4},
			Envelope: i % 2,
		})
	}
	// Vertex 4 is unused and vertex 3 is referenced first.
	src.Triangles = [][3]int32{{3, 0, 1}, {1, 2, 3}}

	enc, err := Encode(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc.DisplayList)%node.DisplayListBlock != 0 {
		t.Errorf("display list length %d", len(enc.DisplayList))
	}
	if len(enc.Polygon.Vertices) != 4 || enc.Polygon.Vertices[0].Position[0] != 3 {
		t.Fatalf("compacted vertices = %+v", enc.Polygon.Vertices)
	}

	back, err := ExtractPolygon(&node.Polygon{
		Attrs:       enc.Attrs,
		DisplayList: enc.DisplayList,
		Envelopes: [][]node.EnvelopeWeight{
			{{Joint: 1, Weight: 1}},
			{{Joint: 2, Weight: 0.5}, {Joint: 3, Weight: 0.5}},
		},
		SkinJoint: node.NilRef,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Vertices, enc.Polygon.Vertices) {
		t.Errorf("vertices:\n got %+v\nwant %+v", back.Vertices, enc.Polygon.Vertices)
	}
	if !reflect.DeepEqual(back.Envelopes, src.Envelopes) {
		t.Errorf("envelopes = %v, want %v", back.Envelopes, src.Envelopes)
	}
	if !reflect.DeepEqual(back.Triangles, enc.Polygon.Triangles) {
		t.Errorf("triangles = %v, want %v", back.Triangles, enc.Polygon.Triangles)
	}

	again, err := Encode(back)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(again.DisplayList, enc.DisplayList) || !reflect.DeepEqual(again.Attrs, enc.Attrs) {
		t.Error("second encode differs from first")
	}
}

func TestFlatten(t *testing.T) {
	p, err := ExtractPolygon(polygon(4, primitive(node.PrimQuads, 0, 1, 2, 3)), nil)
	if err != nil {
		t.Fatal(err)
	}
	tris := Flatten([]Polygon{p, p})
	if len(tris) != 4 {
		t.Fatalf("got %d triangles, want 4", len(tris))
	}
	if tris[1][2].Position[0] != 3 {
		t.Errorf("second triangle = %+v", tris[1])
	}
}
