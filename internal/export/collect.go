package export

import (
	"fmt"

	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/mesh"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/skeleton"
)

// Handle identifies a host mesh to the evaluator.
type Handle any

// Face is one host triangle in its object's local space.
type Face struct {
	Positions  [3]mathutil.Vec3
	Normals    [3]mathutil.Vec3
	UVs        [3][2]float64
	Colors     [3][4]uint8
	HasNormals bool
	HasUVs     bool
	HasColors  bool
	Material   string
	// Texture is resolved through Options.Textures; empty for none.
	Texture string
}

// MeshEvaluator turns a host mesh into triangles, optionally with the host's
// modifier stack applied.
type MeshEvaluator interface {
	Evaluate(h Handle, applyModifiers bool) ([]Face, error)
}

// Object is one host object. Transforms are local to the parent in the
// caller's space; Rotation is Euler XYZ in radians.
type Object struct {
	Name        string
	Parent      int // index into the object list, -1 for none
	Selected    bool
	Translation mathutil.Vec3
	Rotation    mathutil.Vec3
	Scale       mathutil.Vec3
	Mesh        Handle
}

// Collect builds a single-model Scene from host objects. Objects become bones
// in depth-first order; root transforms are mapped back to source space with
// the inverse of the options' conversion. Faces are grouped by material into
// one mesh per material per object.
func Collect(objects []Object, ev MeshEvaluator, opts Options) (*scene.Scene, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	conv, err := opts.conversion()
	if err != nil {
		return nil, err
	}

	children := make([][]int, len(objects))
	var roots []int
	for i, o := range objects {
		switch {
		case o.Parent < 0:
			roots = append(roots, i)
		case o.Parent >= len(objects) || o.Parent == i:
			return nil, fmt.Errorf("export: object %q has bad parent %d", o.Name, o.Parent)
		default:
			children[o.Parent] = append(children[o.Parent], i)
		}
	}

	keep := make([]bool, len(objects))
	reached := 0
	var mark func(i int) bool
	mark = func(i int) bool {
		reached++
		k := !opts.UseSelection || objects[i].Selected
		for _, c := range children[i] {
			if mark(c) {
				k = true
			}
		}
		keep[i] = k
		return k
	}
	for _, r := range roots {
		mark(r)
	}
	if reached != len(objects) {
		return nil, fmt.Errorf("export: object parents form a cycle")
	}

	c := &collector{
		sc:        &scene.Scene{Symbol: RootSymbol, Kind: node.DataScene, Conversion: conv},
		ev:        ev,
		opts:      opts,
		materials: make(map[string]int),
		textures:  make(map[string]int),
	}
	sk := &skeleton.Skeleton{Conversion: conv}
	toSource := conv.Matrix().InverseAffine()

	var walk func(i, parent int) error
	walk = func(i, parent int) error {
		o := objects[i]
		b := skeleton.Bone{
			Name:        o.Name,
			Parent:      parent,
			Translation: o.Translation,
			Rotation:    o.Rotation,
			Scale:       o.Scale,
			Joint:       node.NilRef,
			Alias:       -1,
		}
		if parent < 0 {
			m := mathutil.Mat4Mul(toSource, mathutil.FromTRS(o.Translation, o.Rotation, o.Scale))
			b.Translation, b.Rotation, b.Scale = m.Decompose()
		}
		if o.Mesh != nil {
			meshes, err := c.meshes(o)
			if err != nil {
				return err
			}
			b.Meshes = meshes
		}
		idx := len(sk.Bones)
		sk.Bones = append(sk.Bones, b)
		for _, ch := range children[i] {
			if keep[ch] {
				if err := walk(ch, idx); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, r := range roots {
		if keep[r] {
			if err := walk(r, -1); err != nil {
				return nil, err
			}
		}
	}
	if len(sk.Bones) == 0 {
		return nil, ErrNothingSelected
	}
	sk.Update()
	c.sc.Models = []scene.Model{{Skeleton: sk, Selected: true}}
	return c.sc, nil
}

type collector struct {
	sc        *scene.Scene
	ev        MeshEvaluator
	opts      Options
	materials map[string]int
	textures  map[string]int
}

type vertexKey struct {
	pos, nrm mathutil.Vec3
	uv       [2]float64
	clr      [4]uint8
}

func (c *collector) meshes(o Object) ([]int, error) {
	faces, err := c.ev.Evaluate(o.Mesh, c.opts.ApplyModifiers)
	if err != nil {
		return nil, fmt.Errorf("export: evaluate %q: %w", o.Name, err)
	}

	type group struct {
		material, texture string
		poly              mesh.Polygon
		seen              map[vertexKey]int32
	}
	var order []string
	groups := make(map[string]*group)
	for _, f := range faces {
		key := f.Material + "\x00" + f.Texture
		g, ok := groups[key]
		if !ok {
			g = &group{
				material: f.Material,
				texture:  f.Texture,
				poly:     mesh.Polygon{SkinBone: -1},
				seen:     make(map[vertexKey]int32),
			}
			groups[key] = g
			order = append(order, key)
		}
		g.poly.HasNormal = g.poly.HasNormal || f.HasNormals
		g.poly.HasUV = g.poly.HasUV || f.HasUVs
		g.poly.HasColor = g.poly.HasColor || f.HasColors

		var tri [3]int32
		for k := 0; k < 3; k++ {
			vk := vertexKey{pos: f.Positions[k]}
			if f.HasNormals {
				vk.nrm = f.Normals[k]
			}
			if f.HasUVs {
				vk.uv = f.UVs[k]
			}
			if f.HasColors {
				vk.clr = f.Colors[k]
			}
			vi, ok := g.seen[vk]
			if !ok {
				vi = int32(len(g.poly.Vertices))
				g.seen[vk] = vi
				g.poly.Vertices = append(g.poly.Vertices, mesh.Vertex{
					Position: vk.pos.To32(),
					Normal:   vk.nrm.To32(),
					Color:    vk.clr,
					UV:       [2]float32{float32(vk.uv[0]), float32(vk.uv[1])},
					Envelope: -1,
				})
			}
			tri[k] = vi
		}
		g.poly.Triangles = append(g.poly.Triangles, tri)
	}

	var out []int
	for _, key := range order {
		g := groups[key]
		if len(g.poly.Vertices) > mesh.MaxVertices {
			return nil, hsd.Errorf(hsd.UnsupportedVariant, -1, "object %q: %d vertices in one material group", o.Name, len(g.poly.Vertices))
		}
		mat := c.material(g.material, g.texture)
		out = append(out, len(c.sc.Meshes))
		c.sc.Meshes = append(c.sc.Meshes, scene.Mesh{
			Name:     o.Name,
			Material: mat,
			Polygons: []mesh.Polygon{g.poly},
		})
	}
	return out, nil
}

func (c *collector) material(name, tex string) int {
	key := name + "\x00" + tex
	if i, ok := c.materials[key]; ok {
		return i
	}
	m := scene.Material{
		Name:      name,
		HasColors: true,
		Ambient:   [4]uint8{0x80, 0x80, 0x80, 0xFF},
		Diffuse:   [4]uint8{0xFF, 0xFF, 0xFF, 0xFF},
		Specular:  [4]uint8{0xFF, 0xFF, 0xFF, 0xFF},
		Alpha:     1,
		Shininess: 50,
	}
	if ti, ok := c.texture(tex); ok {
		m.Textures = []int{ti}
	}
	i := len(c.sc.Materials)
	c.sc.Materials = append(c.sc.Materials, m)
	c.materials[key] = i
	return i
}

func (c *collector) texture(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	if i, ok := c.textures[name]; ok {
		return i, i >= 0
	}
	c.textures[name] = -1
	if c.opts.Textures == nil {
		c.sc.Warnings = append(c.sc.Warnings, fmt.Errorf("export: texture %q: no resolver", name))
		return 0, false
	}
	img := c.opts.Textures.Resolve(name)
	if img == nil {
		c.sc.Warnings = append(c.sc.Warnings, fmt.Errorf("export: texture %q not found", name))
		return 0, false
	}
	t, err := encodeTexture(name, img)
	if err != nil {
		c.sc.Warnings = append(c.sc.Warnings, fmt.Errorf("export: texture %q: %w", name, err))
		return 0, false
	}
	i := len(c.sc.Textures)
	c.sc.Textures = append(c.sc.Textures, t)
	c.textures[name] = i
	return i, true
}
