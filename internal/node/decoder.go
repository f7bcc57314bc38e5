package node

import (
	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/texture"
)

// Graph is the decoded node arena. Nodes reached from several parents occupy a
// single slot, so sharing shows up as equal Refs.
type Graph struct {
	Archive  *hsd.Archive
	Nodes    []Node
	ByOffset map[uint32]Ref
	Root     Ref
	// Unsupported lists sub-trees that were skipped.
	Unsupported []*hsd.Error
	// Animation lists animation joint trees dropped because they did not
	// decode. Every entry has kind AnimationDecodeWarning.
	Animation []*hsd.Error
}

// Node returns the node for r, or nil for NilRef.
func (g *Graph) Node(r Ref) Node {
	if !r.Valid() || int(r) >= len(g.Nodes) {
		return nil
	}
	return g.Nodes[r]
}

func (g *Graph) Joint(r Ref) *Joint {
	n, _ := g.Node(r).(*Joint)
	return n
}

func (g *Graph) DisplayObject(r Ref) *DisplayObject {
	n, _ := g.Node(r).(*DisplayObject)
	return n
}

func (g *Graph) Polygon(r Ref) *Polygon {
	n, _ := g.Node(r).(*Polygon)
	return n
}

func (g *Graph) Material(r Ref) *Material {
	n, _ := g.Node(r).(*Material)
	return n
}

func (g *Graph) TextureImage(r Ref) *TextureImage {
	n, _ := g.Node(r).(*TextureImage)
	return n
}

func (g *Graph) AnimJoint(r Ref) *AnimJoint {
	n, _ := g.Node(r).(*AnimJoint)
	return n
}

func (g *Graph) AnimKey(r Ref) *AnimKey {
	n, _ := g.Node(r).(*AnimKey)
	return n
}

func (g *Graph) Symbol(r Ref) *Symbol {
	n, _ := g.Node(r).(*Symbol)
	return n
}

// Decoder decodes nodes on demand, memoized by offset. A Decoder belongs to a
// single import call.
type Decoder struct {
	a        *hsd.Archive
	g        *Graph
	active   map[uint32]Kind
	failed   map[uint32]error
	// deferred resolves joint references that are not tree edges.
	deferred []func() error
}

// NewDecoder starts an empty graph over a.
func NewDecoder(a *hsd.Archive) *Decoder {
	return &Decoder{
		a: a,
		g: &Graph{
			Archive:  a,
			ByOffset: make(map[uint32]Ref),
			Root:     NilRef,
		},
		active: make(map[uint32]Kind),
		failed: make(map[uint32]error),
	}
}

// Graph returns the graph decoded so far.
func (d *Decoder) Graph() *Graph { return d.g }

// Decode returns the node at off, decoding it as kind on first use. A node on
// the current decode path is an ancestor of itself, which the format forbids.
func (d *Decoder) Decode(off uint32, kind Kind) (Ref, error) {
	if r, ok := d.g.ByOffset[off]; ok {
		if got := d.g.Nodes[r].Kind(); got != kind {
			return NilRef, hsd.Errorf(hsd.CorruptFormat, int64(off), "%s referenced as %s", got, kind)
		}
		return r, nil
	}
	if k, ok := d.active[off]; ok {
		if k != kind {
			return NilRef, hsd.Errorf(hsd.CorruptFormat, int64(off), "%s referenced as %s", k, kind)
		}
		return NilRef, hsd.Errorf(hsd.CorruptFormat, int64(off), "%s is its own ancestor", kind)
	}
	if err, ok := d.failed[off]; ok {
		return NilRef, err
	}
	if off >= uint32(len(d.a.Data)) {
		return NilRef, hsd.Errorf(hsd.CorruptFormat, int64(off), "%s outside data section", kind)
	}

	d.active[off] = kind
	n, err := d.decode(off, kind)
	delete(d.active, off)
	if err != nil {
		if hsd.KindOf(err) == hsd.UnsupportedVariant {
			d.failed[off] = err
		}
		return NilRef, err
	}

	r := Ref(len(d.g.Nodes))
	d.g.Nodes = append(d.g.Nodes, n)
	d.g.ByOffset[off] = r
	return r, nil
}

func (d *Decoder) decode(off uint32, kind Kind) (Node, error) {
	switch kind {
	case KindJoint:
		return d.joint(off)
	case KindDisplayObject:
		return d.displayObject(off)
	case KindPolygon:
		return d.polygon(off)
	case KindMaterial:
		return d.material(off)
	case KindTextureImage:
		return d.textureImage(off)
	case KindAnimJoint:
		return d.animJoint(off)
	case KindAnimKey:
		return d.animKey(off)
	case KindSymbol:
		return d.sceneSymbol(off)
	}
	return nil, hsd.Errorf(hsd.CorruptFormat, int64(off), "unknown node kind %d", kind)
}

// Finish resolves deferred references until none remain.
func (d *Decoder) Finish() error {
	for len(d.deferred) > 0 {
		fn := d.deferred[0]
		d.deferred = d.deferred[1:]
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// weakJoint queues the joint pointer at field for Finish. Envelope and skin
// bindings may name an ancestor of the polygon being decoded, so they cannot
// be decoded in place.
func (d *Decoder) weakJoint(field uint32, set func(Ref)) error {
	target, ok, err := d.a.Pointer(field)
	if err != nil || !ok {
		return err
	}
	d.deferred = append(d.deferred, func() error {
		r, err := d.Decode(target, KindJoint)
		if err != nil {
			if he, isHSD := err.(*hsd.Error); isHSD && he.Kind == hsd.UnsupportedVariant {
				d.g.Unsupported = append(d.g.Unsupported, he)
				return nil
			}
			return err
		}
		set(r)
		return nil
	})
	return nil
}

// child decodes the pointer stored at field. Unsupported sub-trees are recorded
// and come back as NilRef; everything else propagates.
func (d *Decoder) child(field uint32, kind Kind) (Ref, error) {
	target, ok, err := d.a.Pointer(field)
	if err != nil || !ok {
		return NilRef, err
	}
	r, err := d.Decode(target, kind)
	if err != nil {
		if he, isHSD := err.(*hsd.Error); isHSD && he.Kind == hsd.UnsupportedVariant {
			d.g.Unsupported = append(d.g.Unsupported, he)
			return NilRef, nil
		}
		return NilRef, err
	}
	return r, nil
}

func (d *Decoder) name(field uint32) (string, error) {
	target, ok, err := d.a.Pointer(field)
	if err != nil || !ok {
		return "", err
	}
	return d.a.CString(target)
}

func (d *Decoder) matrix(field uint32) (*[12]float32, error) {
	target, ok, err := d.a.Pointer(field)
	if err != nil || !ok {
		return nil, err
	}
	c := d.a.At(target)
	var m [12]float32
	for i := range m {
		m[i] = c.F32()
	}
	if c.Err() != nil {
		return nil, c.Err()
	}
	return &m, nil
}

// pointerArray reads a NULL-terminated array of pointers.
func (d *Decoder) pointerArray(field uint32) ([]uint32, error) {
	start, ok, err := d.a.Pointer(field)
	if err != nil || !ok {
		return nil, err
	}
	var out []uint32
	for f := start; ; f += 4 {
		t, ok, err := d.a.Pointer(f)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, t)
	}
}

func (d *Decoder) joint(off uint32) (*Joint, error) {
	c := d.a.At(off)
	c.Skip(JointSize)
	if c.Err() != nil {
		return nil, c.Err()
	}
	c.Seek(off + JointFlags)
	j := &Joint{base: base{off}, Child: NilRef, Next: NilRef, Object: NilRef}
	j.Flags = c.U32()
	c.Seek(off + JointRotation)
	j.Rotation = c.Vec3()
	j.Scale = c.Vec3()
	j.Translation = c.Vec3()

	var err error
	if j.Name, err = d.name(off + JointName); err != nil {
		return nil, err
	}
	if j.Matrix, err = d.matrix(off + JointMatrix); err != nil {
		return nil, err
	}
	if j.Child, err = d.child(off+JointChild, KindJoint); err != nil {
		return nil, err
	}
	if j.Next, err = d.child(off+JointNext, KindJoint); err != nil {
		return nil, err
	}

	if _, attached, _ := d.a.Pointer(off + JointObject); attached {
		switch {
		case j.Flags&JointSpline != 0:
			d.g.Unsupported = append(d.g.Unsupported, hsd.Errorf(hsd.UnsupportedVariant, int64(off), "spline attached to joint"))
		case j.Flags&JointParticle != 0:
			d.g.Unsupported = append(d.g.Unsupported, hsd.Errorf(hsd.UnsupportedVariant, int64(off), "particle attached to joint"))
		default:
			if j.Object, err = d.child(off+JointObject, KindDisplayObject); err != nil {
				return nil, err
			}
		}
	}
	return j, nil
}

func (d *Decoder) displayObject(off uint32) (*DisplayObject, error) {
	if _, err := d.a.Bytes(off, DObjSize); err != nil {
		return nil, err
	}
	o := &DisplayObject{base: base{off}}
	var err error
	if o.Name, err = d.name(off + DObjName); err != nil {
		return nil, err
	}
	if o.Next, err = d.child(off+DObjNext, KindDisplayObject); err != nil {
		return nil, err
	}
	if o.Material, err = d.child(off+DObjMaterial, KindMaterial); err != nil {
		return nil, err
	}
	if o.Polygon, err = d.child(off+DObjPolygon, KindPolygon); err != nil {
		return nil, err
	}
	return o, nil
}

func (d *Decoder) polygon(off uint32) (*Polygon, error) {
	c := d.a.At(off + PObjFlags)
	flags := c.U16()
	blocks := c.U16()
	if err := c.Err(); err != nil {
		return nil, err
	}
	if _, err := d.a.Bytes(off, PObjSize); err != nil {
		return nil, err
	}
	p := &Polygon{base: base{off}, Flags: flags, SkinJoint: NilRef}
	if p.Type() == PolygonShapeAnim {
		return nil, hsd.Errorf(hsd.UnsupportedVariant, int64(off), "shape-animated polygon")
	}

	var err error
	if p.Name, err = d.name(off + PObjName); err != nil {
		return nil, err
	}

	if descs, ok, err := d.a.Pointer(off + PObjVtxDesc); err != nil {
		return nil, err
	} else if ok {
		if p.Attrs, err = d.vertexAttrs(descs); err != nil {
			return nil, err
		}
	}

	if dl, ok, err := d.a.Pointer(off + PObjDL); err != nil {
		return nil, err
	} else if ok {
		if p.DisplayList, err = d.a.Bytes(dl, int(blocks)*DisplayListBlock); err != nil {
			return nil, err
		}
	}

	switch p.Type() {
	case PolygonEnvelope:
		if err := d.envelopes(off+PObjEnvelope, p); err != nil {
			return nil, err
		}
	case PolygonSkin:
		if err := d.weakJoint(off+PObjEnvelope, func(r Ref) { p.SkinJoint = r }); err != nil {
			return nil, err
		}
	}

	if p.Next, err = d.child(off+PObjNext, KindPolygon); err != nil {
		return nil, err
	}
	return p, nil
}

func (d *Decoder) vertexAttrs(off uint32) ([]VertexAttr, error) {
	var attrs []VertexAttr
	for {
		c := d.a.At(off)
		a := VertexAttr{
			Attr:      c.U32(),
			IndexType: c.U32(),
			CompCount: c.U32(),
			CompType:  c.U32(),
			Scale:     c.U8(),
		}
		c.Skip(1)
		a.Stride = c.U16()
		if err := c.Err(); err != nil {
			return nil, err
		}
		if a.Attr == AttrNull {
			return attrs, nil
		}
		if a.Attr > AttrTex7 {
			return nil, hsd.Errorf(hsd.CorruptFormat, int64(off), "vertex attribute %d", a.Attr)
		}
		data, ok, err := d.a.Pointer(off + VtxDescData)
		if err != nil {
			return nil, err
		}
		if ok {
			a.HasData = true
			a.DataOffset = data
			a.Data = d.a.Data[data:]
		}
		attrs = append(attrs, a)
		off += VtxDescSize
	}
}

func (d *Decoder) envelopes(field uint32, p *Polygon) error {
	lists, err := d.pointerArray(field)
	if err != nil {
		return err
	}
	p.Envelopes = make([][]EnvelopeWeight, len(lists))
	for li, l := range lists {
		for e := l; ; e += EnvelopeEntrySize {
			if _, err := d.a.Bytes(e, EnvelopeEntrySize); err != nil {
				return err
			}
			if _, ok, _ := d.a.Pointer(e); !ok {
				break
			}
			ei := len(p.Envelopes[li])
			p.Envelopes[li] = append(p.Envelopes[li], EnvelopeWeight{Joint: NilRef, Weight: d.a.At(e + 4).F32()})
			if err := d.weakJoint(e, func(r Ref) { p.Envelopes[li][ei].Joint = r }); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Decoder) material(off uint32) (*Material, error) {
	c := d.a.At(off + MObjRenderFlags)
	m := &Material{base: base{off}, RenderFlags: c.U32()}
	if _, err := d.a.Bytes(off, MObjSize); err != nil {
		return nil, err
	}
	var err error
	if m.Name, err = d.name(off + MObjClass); err != nil {
		return nil, err
	}
	if colors, ok, err := d.a.Pointer(off + MObjColors); err != nil {
		return nil, err
	} else if ok {
		c := d.a.At(colors)
		copy(m.Ambient[:], c.Bytes(4))
		copy(m.Diffuse[:], c.Bytes(4))
		copy(m.Specular[:], c.Bytes(4))
		m.Alpha = c.F32()
		m.Shininess = c.F32()
		if err := c.Err(); err != nil {
			return nil, err
		}
		m.HasColors = true
	}
	if pe, ok, err := d.a.Pointer(off + MObjPEDesc); err != nil {
		return nil, err
	} else if ok {
		if m.PEDesc, err = d.a.Bytes(pe, PEDescSize); err != nil {
			return nil, err
		}
	}
	if m.Texture, err = d.child(off+MObjTexture, KindTextureImage); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Decoder) textureImage(off uint32) (*TextureImage, error) {
	c := d.a.At(off + TObjMapID)
	t := &TextureImage{base: base{off}}
	t.MapID = c.U32()
	t.Source = c.U32()
	t.Rotation = c.Vec3()
	t.Scale = c.Vec3()
	t.Translation = c.Vec3()
	t.WrapS = c.U32()
	t.WrapT = c.U32()
	t.RepeatS = c.U8()
	t.RepeatT = c.U8()
	c.Skip(2)
	t.Flags = c.U32()
	t.Blending = c.F32()
	t.MagFilter = c.U32()
	if err := c.Err(); err != nil {
		return nil, err
	}
	if _, err := d.a.Bytes(off, TObjSize); err != nil {
		return nil, err
	}

	var err error
	if t.Name, err = d.name(off + TObjName); err != nil {
		return nil, err
	}

	if img, ok, err := d.a.Pointer(off + TObjImage); err != nil {
		return nil, err
	} else if ok {
		if t.Image, err = d.image(img); err != nil {
			return nil, err
		}
	}
	if pal, ok, err := d.a.Pointer(off + TObjPalette); err != nil {
		return nil, err
	} else if ok {
		if t.Palette, err = d.palette(pal); err != nil {
			return nil, err
		}
	}
	if t.Image != nil && texture.IsIndexed(t.Image.Format) && t.Palette == nil {
		return nil, hsd.Errorf(hsd.UnsupportedVariant, int64(off), "indexed texture format %d without palette", t.Image.Format)
	}

	if t.Next, err = d.child(off+TObjNext, KindTextureImage); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *Decoder) image(off uint32) (*Image, error) {
	c := d.a.At(off + ImageWidth)
	img := &Image{
		Width:  c.U16(),
		Height: c.U16(),
		Format: c.U32(),
		MipMap: c.U32(),
		MinLOD: c.F32(),
		MaxLOD: c.F32(),
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	if !texture.KnownFormat(img.Format) {
		return nil, hsd.Errorf(hsd.CorruptFormat, int64(off), "texture format %d", img.Format)
	}
	data, ok, err := d.a.Pointer(off + ImageData)
	if err != nil {
		return nil, err
	}
	if ok {
		n := texture.MipDataSize(img.Format, int(img.Width), int(img.Height), img.Levels())
		if img.Data, err = d.a.Bytes(data, n); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// Levels returns the number of stored mip levels, at most
// texture.MaxMipLevels.
func (img *Image) Levels() int {
	if img.MipMap == 0 || !(img.MaxLOD >= 1) {
		return 1
	}
	if img.MaxLOD >= texture.MaxMipLevels-1 {
		return texture.MaxMipLevels
	}
	return int(img.MaxLOD) + 1
}

func (d *Decoder) palette(off uint32) (*Palette, error) {
	c := d.a.At(off + PaletteFormat)
	p := &Palette{Format: c.U32(), Name: c.U32(), Entries: c.U16()}
	if err := c.Err(); err != nil {
		return nil, err
	}
	data, ok, err := d.a.Pointer(off + PaletteData)
	if err != nil {
		return nil, err
	}
	if ok {
		if p.Data, err = d.a.Bytes(data, 2*int(p.Entries)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (d *Decoder) animJoint(off uint32) (*AnimJoint, error) {
	c := d.a.At(off + AnimJointFlags)
	aj := &AnimJoint{base: base{off}, Flags: c.U32(), Keys: NilRef}
	if err := c.Err(); err != nil {
		return nil, err
	}

	if aobj, ok, err := d.a.Pointer(off + AnimJointAObj); err != nil {
		return nil, err
	} else if ok {
		c := d.a.At(aobj)
		aj.HasAnim = true
		aj.AnimFlags = c.U32()
		aj.EndFrame = c.F32()
		c.Skip(4)
		aj.ObjID = c.U32()
		if err := c.Err(); err != nil {
			return nil, err
		}
		if aj.Keys, err = d.child(aobj+AObjFObj, KindAnimKey); err != nil {
			return nil, err
		}
	}

	var err error
	if aj.Child, err = d.child(off+AnimJointChild, KindAnimJoint); err != nil {
		return nil, err
	}
	if aj.Next, err = d.child(off+AnimJointNext, KindAnimJoint); err != nil {
		return nil, err
	}
	return aj, nil
}

func (d *Decoder) animKey(off uint32) (*AnimKey, error) {
	c := d.a.At(off + FObjLength)
	n := c.U32()
	k := &AnimKey{base: base{off}, Next: NilRef}
	k.StartFrame = c.F32()
	k.Type = c.U8()
	k.ValueFmt = c.U8()
	k.SlopeFmt = c.U8()
	if err := c.Err(); err != nil {
		return nil, err
	}
	data, ok, err := d.a.Pointer(off + FObjData)
	if err != nil {
		return nil, err
	}
	if ok {
		if k.Data, err = d.a.Bytes(data, int(n)); err != nil {
			k.Data = nil
			k.Err = hsd.Wrap(hsd.AnimationDecodeWarning, int64(off), err, "key data")
		}
	} else if n != 0 {
		k.Err = hsd.Errorf(hsd.AnimationDecodeWarning, int64(off), "%d key bytes without data pointer", n)
	}
	if k.Next, err = d.child(off+FObjNext, KindAnimKey); err != nil {
		return nil, err
	}
	return k, nil
}

// sceneSymbol decodes a scene descriptor. Bare-joint symbols are assembled by
// Build since they share their offset with the root joint.
func (d *Decoder) sceneSymbol(off uint32) (*Symbol, error) {
	s := &Symbol{base: base{off}, DataKind: DataScene, Joint: NilRef}
	if _, err := d.a.Bytes(off, SceneDescSize); err != nil {
		return nil, err
	}
	sets, err := d.pointerArray(off + SceneDescJointSets)
	if err != nil {
		return nil, err
	}
	for _, set := range sets {
		if _, err := d.a.Bytes(set, JointSetSize); err != nil {
			return nil, err
		}
		js := JointSet{}
		if js.Joint, err = d.child(set+JointSetJoint, KindJoint); err != nil {
			return nil, err
		}
		anims, err := d.pointerArray(set + JointSetAnimJoints)
		if err != nil {
			return nil, err
		}
		for _, a := range anims {
			r, err := d.Decode(a, KindAnimJoint)
			if err != nil {
				if hsd.KindOf(err) == hsd.UnsupportedVariant {
					d.g.Unsupported = append(d.g.Unsupported, hsd.Wrap(hsd.UnsupportedVariant, int64(a), err, "animation joint tree"))
				} else {
					d.g.Animation = append(d.g.Animation, hsd.Wrap(hsd.AnimationDecodeWarning, int64(a), err, "animation joint tree"))
				}
				continue
			}
			js.AnimJoints = append(js.AnimJoints, r)
		}
		mats, err := d.pointerArray(set + JointSetMatAnims)
		if err != nil {
			return nil, err
		}
		shapes, err := d.pointerArray(set + JointSetShapeAnims)
		if err != nil {
			return nil, err
		}
		js.MatAnims, js.ShapeAnims = len(mats), len(shapes)
		s.Sets = append(s.Sets, js)
	}
	return s, nil
}
