package scene

import (
	"hsd-scene-io/internal/anim"
	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/mesh"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/skeleton"
)

// Import decodes the archive in data starting at offset and lowers the graph
// under symbol into a Scene. Structural problems abort with an *hsd.Error;
// animation problems and skipped sub-trees are returned in Scene.Warnings.
func Import(data []byte, symbol string, offset int, kind node.DataKind, opts ImportOptions) (*Scene, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	conv, err := opts.Conversion()
	if err != nil {
		return nil, err
	}

	a, err := hsd.Open(data, offset)
	if err != nil {
		return nil, err
	}
	g, err := node.Build(a, symbol, kind)
	if err != nil {
		return nil, err
	}

	sc := &Scene{Symbol: symbol, Kind: kind, Conversion: conv}
	for _, u := range g.Unsupported {
		sc.Warnings = append(sc.Warnings, u)
	}
	if opts.ImportAnimation {
		for _, w := range g.Animation {
			sc.Warnings = append(sc.Warnings, w)
		}
	}
	l := &lowering{
		g:         g,
		sc:        sc,
		meshes:    make(map[node.Ref]int),
		materials: make(map[node.Ref]int),
		textures:  make(map[node.Ref]int),
	}

	sym := g.Symbol(g.Root)
	sets := sym.Sets
	if sym.DataKind == node.DataBone {
		sets = []node.JointSet{{Joint: sym.Joint}}
	}
	for i, set := range sets {
		m, err := l.model(set, opts, conv)
		if err != nil {
			return nil, err
		}
		if set.MatAnims > 0 || set.ShapeAnims > 0 {
			sc.Warnings = append(sc.Warnings, hsd.Errorf(hsd.UnsupportedVariant, int64(sym.Offset()),
				"joint set %d: skipped %d material and %d shape animations", i, set.MatAnims, set.ShapeAnims))
		}
		sc.Models = append(sc.Models, m)
	}
	return sc, nil
}

// lowering converts graph nodes to scene entries, one entry per node so that
// shared nodes keep a single index.
type lowering struct {
	g         *node.Graph
	sc        *Scene
	meshes    map[node.Ref]int
	materials map[node.Ref]int
	textures  map[node.Ref]int
}

func (l *lowering) model(set node.JointSet, opts ImportOptions, conv skeleton.Conversion) (Model, error) {
	sk, err := skeleton.Materialize(l.g, set.Joint, conv)
	if err != nil {
		return Model{}, err
	}

	boneOf := make(map[node.Ref]int)
	for i, b := range sk.Bones {
		if _, ok := boneOf[b.Joint]; !ok {
			boneOf[b.Joint] = i
		}
	}
	resolve := func(r node.Ref) int {
		if i, ok := boneOf[r]; ok {
			return i
		}
		return -1
	}
	for i := range sk.Bones {
		b := &sk.Bones[i]
		for _, obj := range b.Objects {
			mi, err := l.mesh(obj, resolve)
			if err != nil {
				return Model{}, err
			}
			b.Meshes = append(b.Meshes, mi)
		}
	}
	if opts.IKHack {
		sk = skeleton.IKHack(sk, skeleton.IKThreshold)
	}

	m := Model{Skeleton: sk, Selected: true}
	if !opts.ImportAnimation {
		return m, nil
	}
	for _, aj := range set.AnimJoints {
		an, warns := anim.Decode(l.g, aj, anim.Options{MaxFrame: opts.MaxFrame, UseMaxFrame: opts.UseMaxFrame})
		l.sc.Warnings = append(l.sc.Warnings, warns...)
		if len(an.Bones) != len(sk.Bones) {
			l.sc.Warnings = append(l.sc.Warnings, hsd.Errorf(hsd.AnimationDecodeWarning, int64(l.g.Node(aj).Offset()),
				"animation has %d joints, skeleton has %d bones", len(an.Bones), len(sk.Bones)))
		}
		m.Animations = append(m.Animations, an)
	}
	return m, nil
}

func (l *lowering) mesh(r node.Ref, bone mesh.BoneResolver) (int, error) {
	if i, ok := l.meshes[r]; ok {
		return i, nil
	}
	o := l.g.DisplayObject(r)
	polys, err := mesh.Extract(l.g, r, bone)
	if err != nil {
		return 0, err
	}
	m := Mesh{Name: o.Name, Material: -1, Polygons: polys}
	if o.Material.Valid() {
		if m.Material, err = l.material(o.Material); err != nil {
			return 0, err
		}
	}
	i := len(l.sc.Meshes)
	l.sc.Meshes = append(l.sc.Meshes, m)
	l.meshes[r] = i
	return i, nil
}

func (l *lowering) material(r node.Ref) (int, error) {
	if i, ok := l.materials[r]; ok {
		return i, nil
	}
	src := l.g.Material(r)
	m := Material{
		Name:        src.Name,
		RenderFlags: src.RenderFlags,
		HasColors:   src.HasColors,
		Ambient:     src.Ambient,
		Diffuse:     src.Diffuse,
		Specular:    src.Specular,
		Alpha:       src.Alpha,
		Shininess:   src.Shininess,
		PEDesc:      src.PEDesc,
	}
	for _, tr := range l.g.Chain(src.Texture) {
		m.Textures = append(m.Textures, l.texture(tr))
	}
	i := len(l.sc.Materials)
	l.sc.Materials = append(l.sc.Materials, m)
	l.materials[r] = i
	return i, nil
}

func (l *lowering) texture(r node.Ref) int {
	if i, ok := l.textures[r]; ok {
		return i
	}
	src := l.g.TextureImage(r)
	t := Texture{
		Name:        src.Name,
		MapID:       src.MapID,
		Source:      src.Source,
		Rotation:    src.Rotation,
		Scale:       src.Scale,
		Translation: src.Translation,
		WrapS:       src.WrapS,
		WrapT:       src.WrapT,
		RepeatS:     src.RepeatS,
		RepeatT:     src.RepeatT,
		Flags:       src.Flags,
		Blending:    src.Blending,
		MagFilter:   src.MagFilter,
	}
	if img := src.Image; img != nil {
		t.HasImage = true
		t.Width, t.Height = int(img.Width), int(img.Height)
		t.Format, t.MipMap = img.Format, img.MipMap
		t.MinLOD, t.MaxLOD = img.MinLOD, img.MaxLOD
		t.Data = img.Data
	}
	if p := src.Palette; p != nil {
		t.HasPalette = true
		t.PaletteFormat, t.PaletteName, t.PaletteEntries = p.Format, p.Name, p.Entries
		t.PaletteData = p.Data
	}
	i := len(l.sc.Textures)
	l.sc.Textures = append(l.sc.Textures, t)
	l.textures[r] = i
	return i
}
