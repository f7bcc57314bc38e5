package mesh

import (
	"math"

	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/node"
)

// Extract decodes every polygon in the display object's chain. Lines and
// points are read but produce no triangles. Joint references are mapped
// through bone; a nil resolver keeps the raw Ref values.
func Extract(g *node.Graph, dobj node.Ref, bone BoneResolver) ([]Polygon, error) {
	o := g.DisplayObject(dobj)
	if o == nil {
		return nil, nil
	}
	var out []Polygon
	for _, pr := range g.Chain(o.Polygon) {
		p, err := ExtractPolygon(g.Polygon(pr), bone)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ExtractPolygon decodes one primitive list.
func ExtractPolygon(p *node.Polygon, bone BoneResolver) (Polygon, error) {
	if bone == nil {
		bone = func(r node.Ref) int { return int(r) }
	}
	out := Polygon{Flags: p.Flags, SkinBone: -1}
	if p.SkinJoint.Valid() {
		out.SkinBone = bone(p.SkinJoint)
	}
	for _, env := range p.Envelopes {
		ws := make([]Weight, len(env))
		for i, w := range env {
			ws[i] = Weight{Bone: bone(w.Joint), Weight: w.Weight}
		}
		out.Envelopes = append(out.Envelopes, ws)
	}
	for _, a := range p.Attrs {
		switch a.Attr {
		case node.AttrNrm:
			out.HasNormal = true
		case node.AttrClr0:
			out.HasColor = true
		case node.AttrTex0:
			out.HasUV = true
		}
	}

	d := &dlReader{p: p, seen: make(map[string]int32)}
	dl := p.DisplayList
	for pos := 0; pos < len(dl); {
		op := dl[pos]
		if op == 0 {
			break
		}
		if pos+3 > len(dl) {
			return Polygon{}, hsd.Errorf(hsd.TruncatedData, int64(p.Offset()), "primitive header past end of display list")
		}
		prim := op & node.PrimMask
		count := int(dl[pos+1])<<8 | int(dl[pos+2])
		pos += 3

		idx := make([]int32, count)
		for i := range idx {
			v, n, err := d.vertex(dl[pos:])
			if err != nil {
				return Polygon{}, err
			}
			idx[i] = v
			pos += n
		}

		switch prim {
		case node.PrimTriangles:
			for i := 0; i+2 < count; i += 3 {
				out.Triangles = append(out.Triangles, [3]int32{idx[i], idx[i+1], idx[i+2]})
			}
		case node.PrimTriangleStrip:
			for i := 0; i+2 < count; i++ {
				if i%2 == 0 {
					out.Triangles = append(out.Triangles, [3]int32{idx[i], idx[i+1], idx[i+2]})
				} else {
					out.Triangles = append(out.Triangles, [3]int32{idx[i+1], idx[i], idx[i+2]})
				}
			}
		case node.PrimTriangleFan:
			for i := 1; i+1 < count; i++ {
				out.Triangles = append(out.Triangles, [3]int32{idx[0], idx[i], idx[i+1]})
			}
		case node.PrimQuads:
			for i := 0; i+3 < count; i += 4 {
				out.Triangles = append(out.Triangles,
					[3]int32{idx[i], idx[i+1], idx[i+2]},
					[3]int32{idx[i], idx[i+2], idx[i+3]})
			}
		case node.PrimLines, node.PrimLineStrip, node.PrimPoints:
		default:
			return Polygon{}, hsd.Errorf(hsd.CorruptFormat, int64(p.Offset()), "display list opcode 0x%02x", op)
		}
	}
	out.Vertices = d.verts
	return out, nil
}

type dlReader struct {
	p     *node.Polygon
	seen  map[string]int32
	verts []Vertex
}

// vertex reads one vertex record and returns its de-duplicated index and the
// record length.
func (d *dlReader) vertex(b []byte) (int32, int, error) {
	n := 0
	for _, a := range d.p.Attrs {
		w := recordWidth(a)
		if w < 0 {
			return 0, 0, hsd.Errorf(hsd.CorruptFormat, int64(d.p.Offset()), "attribute %d component type %d", a.Attr, a.CompType)
		}
		n += w
	}
	if n > len(b) {
		return 0, 0, hsd.Errorf(hsd.TruncatedData, int64(d.p.Offset()), "vertex record past end of display list")
	}
	key := string(b[:n])
	if v, ok := d.seen[key]; ok {
		return v, n, nil
	}

	v := Vertex{Envelope: -1}
	pos := 0
	for _, a := range d.p.Attrs {
		w := recordWidth(a)
		rec := b[pos : pos+w]
		pos += w

		if a.Attr <= node.AttrTex7MtxIdx {
			if a.Attr == node.AttrPosMtxIdx && len(d.p.Envelopes) > 0 {
				v.Envelope = int(rec[0]) / 3
				if v.Envelope >= len(d.p.Envelopes) {
					return 0, 0, hsd.Errorf(hsd.CorruptFormat, int64(d.p.Offset()), "matrix index %d with %d envelopes", rec[0], len(d.p.Envelopes))
				}
			}
			continue
		}

		elem, err := element(a, rec)
		if err != nil {
			return 0, 0, hsd.Wrap(hsd.KindOf(err), int64(d.p.Offset()), err, "attribute %d", a.Attr)
		}
		switch a.Attr {
		case node.AttrPos:
			v.Position = readVec3(a, elem)
		case node.AttrNrm:
			v.Normal = readVec3(a, elem)
		case node.AttrClr0:
			v.Color = readColor(a.CompType, elem)
		case node.AttrTex0:
			uv := readComps(a, elem, 2)
			v.UV = [2]float32{uv[0], uv[1]}
		}
	}

	id := int32(len(d.verts))
	d.verts = append(d.verts, v)
	d.seen[key] = id
	return id, n, nil
}

// recordWidth is the number of display-list bytes an attribute takes.
func recordWidth(a node.VertexAttr) int {
	switch a.IndexType {
	case node.IndexNone:
		return 0
	case node.IndexIndex8:
		return 1
	case node.IndexIndex16:
		return 2
	}
	if a.Attr <= node.AttrTex7MtxIdx {
		return 1
	}
	return elemSize(a)
}

// element returns the bytes of the attribute value, either inline or from the
// attribute buffer.
func element(a node.VertexAttr, rec []byte) ([]byte, error) {
	size := elemSize(a)
	var i int
	switch a.IndexType {
	case node.IndexDirect:
		return rec, nil
	case node.IndexIndex8:
		i = int(rec[0])
	case node.IndexIndex16:
		i = int(rec[0])<<8 | int(rec[1])
	default:
		return nil, hsd.Errorf(hsd.CorruptFormat, -1, "index type %d", a.IndexType)
	}
	if !a.HasData {
		return nil, hsd.Errorf(hsd.CorruptFormat, -1, "indexed attribute without buffer")
	}
	stride := int(a.Stride)
	if stride == 0 {
		stride = size
	}
	start := i * stride
	if start+size > len(a.Data) {
		return nil, hsd.Errorf(hsd.TruncatedData, int64(a.DataOffset)+int64(start), "index %d past end of buffer", i)
	}
	return a.Data[start : start+size], nil
}

func compCount(a node.VertexAttr) int {
	switch a.Attr {
	case node.AttrPos:
		if a.CompCount == node.PosXY {
			return 2
		}
		return 3
	case node.AttrNrm:
		if a.CompCount == node.NrmNBT {
			return 9
		}
		return 3
	}
	if a.Attr >= node.AttrTex0 && a.Attr <= node.AttrTex7 {
		if a.CompCount == node.TexS {
			return 1
		}
		return 2
	}
	return 0
}

func compSize(t uint32) int {
	switch t {
	case node.CompU8, node.CompS8:
		return 1
	case node.CompU16, node.CompS16:
		return 2
	case node.CompF32:
		return 4
	}
	return -1
}

func elemSize(a node.VertexAttr) int {
	if a.Attr == node.AttrClr0 || a.Attr == node.AttrClr1 {
		switch a.CompType {
		case node.ColorRGB565, node.ColorRGBA4:
			return 2
		case node.ColorRGB8, node.ColorRGBA6:
			return 3
		case node.ColorRGBX8, node.ColorRGBA8:
			return 4
		}
		return -1
	}
	s := compSize(a.CompType)
	if s < 0 {
		return -1
	}
	return s * compCount(a)
}

func readComps(a node.VertexAttr, b []byte, n int) []float32 {
	out := make([]float32, max(n, compCount(a)))
	scale := float32(1) / float32(uint32(1)<<a.Scale)
	size := compSize(a.CompType)
	for i := 0; i < compCount(a); i++ {
		c := b[i*size:]
		switch a.CompType {
		case node.CompU8:
			out[i] = float32(c[0]) * scale
		case node.CompS8:
			out[i] = float32(int8(c[0])) * scale
		case node.CompU16:
			out[i] = float32(uint16(c[0])<<8|uint16(c[1])) * scale
		case node.CompS16:
			out[i] = float32(int16(uint16(c[0])<<8|uint16(c[1]))) * scale
		case node.CompF32:
			out[i] = math.Float32frombits(uint32(c[0])<<24 | uint32(c[1])<<16 | uint32(c[2])<<8 | uint32(c[3]))
		}
	}
	return out
}

func readVec3(a node.VertexAttr, b []byte) [3]float32 {
	c := readComps(a, b, 3)
	return [3]float32{c[0], c[1], c[2]}
}

func readColor(t uint32, b []byte) [4]uint8 {
	switch t {
	case node.ColorRGB565:
		v := uint16(b[0])<<8 | uint16(b[1])
		r, g, bl := uint8(v>>11)&0x1F, uint8(v>>5)&0x3F, uint8(v)&0x1F
		return [4]uint8{r<<3 | r>>2, g<<2 | g>>4, bl<<3 | bl>>2, 0xFF}
	case node.ColorRGB8, node.ColorRGBX8:
		return [4]uint8{b[0], b[1], b[2], 0xFF}
	case node.ColorRGBA4:
		return [4]uint8{(b[0] >> 4) * 0x11, (b[0] & 0xF) * 0x11, (b[1] >> 4) * 0x11, (b[1] & 0xF) * 0x11}
	case node.ColorRGBA6:
		v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
		ex := func(x uint32) uint8 { x &= 0x3F; return uint8(x<<2 | x>>4) }
		return [4]uint8{ex(v >> 18), ex(v >> 12), ex(v >> 6), ex(v)}
	default:
		return [4]uint8{b[0], b[1], b[2], b[3]}
	}
}
