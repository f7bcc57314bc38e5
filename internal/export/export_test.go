package export

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hsd-scene-io/internal/anim"
	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/mesh"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/skeleton"
	"hsd-scene-io/internal/texture"
)

type faceMap map[string][]Face

func (m faceMap) Evaluate(h Handle, applyModifiers bool) ([]Face, error) {
	if !applyModifiers {
		return nil, errors.New("modifiers not applied")
	}
	return m[h.(string)], nil
}

type imageMap map[string]*image.NRGBA

func (m imageMap) Resolve(name string) *image.NRGBA { return m[name] }

func quad(material, tex string, z float64) []Face {
	p := [4]mathutil.Vec3{{0, 0, z}, {1, 0, z}, {1, 1, z}, {0, 1, z}}
	uv := [4][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	n := mathutil.Vec3{0, 0, 1}
	face := func(a, b, c int) Face {
		return Face{
			Positions:  [3]mathutil.Vec3{p[a], p[b], p[c]},
			Normals:    [3]mathutil.Vec3{n, n, n},
			UVs:        [3][2]float64{uv[a], uv[b], uv[c]},
			HasNormals: true,
			HasUVs:     true,
			Material:   material,
			Texture:    tex,
		}
	}
	return []Face{face(0, 1, 2), face(0, 2, 3)}
}

func solid(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 100, 50, 255})
		}
	}
	return img
}

func collected(t *testing.T, opts Options) *scene.Scene {
	t.Helper()
	objects := []Object{
		{Name: "body", Parent: -1, Selected: true, Translation: mathutil.Vec3{0, 0, 1}, Scale: mathutil.Vec3{1, 1, 1}, Mesh: "body"},
		{Name: "arm", Parent: 0, Translation: mathutil.Vec3{1, 0, 0}, Rotation: mathutil.Vec3{0, 0, 0.5}, Scale: mathutil.Vec3{1, 1, 1}, Mesh: "arm"},
		{Name: "JOBJ_2", Parent: 1, Scale: mathutil.Vec3{1, 1, 1}},
	}
	faces := faceMap{
		"body": append(quad("skin", "skin.tga", 0), quad("cloth", "", 1)...),
		"arm":  quad("skin", "skin.tga", 0),
	}
	opts.Textures = imageMap{"skin.tga": solid(3, 5)}
	sc, err := Collect(objects, faces, opts)
	if err != nil {
		t.Fatal(err)
	}

	key := func(f, v float64) anim.Key { return anim.Key{Frame: f, Value: v, Interp: anim.InterpLinear} }
	sc.Models[0].Animations = []*anim.Animation{{Bones: []anim.BoneAnimation{
		{Parent: -1, HasAnim: true, EndFrame: 20, Tracks: []anim.Track{{
			Channel:  anim.RotateY,
			ValueFmt: anim.FmtS16 | 12,
			SlopeFmt: anim.FmtS16 | 12,
			Keys:     []anim.Key{key(0, 0), key(10, 1.5), {Frame: 20, Value: 0.25, InSlope: 0.5, OutSlope: 0.5, Interp: anim.InterpSpline}},
		}}},
		{Parent: 0},
		{Parent: 1, HasAnim: true, EndFrame: 20},
	}}}
	return sc
}

func TestRoundTripFixedPoint(t *testing.T) {
	opts := DefaultOptions()
	first, err := Export(collected(t, opts), opts)
	if err != nil {
		t.Fatal(err)
	}

	data := first
	for i := 0; i < 2; i++ {
		sc, err := scene.Import(data, RootSymbol, 0, node.DataScene, scene.DefaultImportOptions())
		if err != nil {
			t.Fatalf("import %d: %v", i, err)
		}
		if len(sc.Warnings) != 0 {
			t.Fatalf("import %d warnings: %v", i, sc.Warnings)
		}
		data, err = Export(sc, opts)
		if err != nil {
			t.Fatalf("export %d: %v", i, err)
		}
		if !bytes.Equal(data, first) {
			t.Fatalf("export %d differs from the first export (%d vs %d bytes)", i, len(data), len(first))
		}
	}
}

func TestForeignArchiveReachesFixedPoint(t *testing.T) {
	b := hsd.NewBuilder()
	joint := b.Alloc(node.JointSize, 4)
	b.PutVec3(joint+node.JointScale, [3]float32{1, 1, 1})
	b.PutVec3(joint+node.JointTranslation, [3]float32{0, 3, 0})
	set := b.Alloc(node.JointSetSize, 4)
	b.PutPtr(set+node.JointSetJoint, joint)
	sets := b.Alloc(8, 4)
	b.PutPtr(sets, set)
	desc := b.Alloc(node.SceneDescSize, 4)
	b.PutPtr(desc+node.SceneDescJointSets, sets)
	b.AddRoot(RootSymbol, desc)
	// a camera block the scene model does not carry
	cam := b.Alloc(0x40, 4)
	b.PutF32(cam+0x20, 45)
	b.AddRoot("scene_camera", cam)
	foreign, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	importOpts := scene.DefaultImportOptions()
	importOpts.IKHack = false
	reexport := func(data []byte) []byte {
		t.Helper()
		sc, err := scene.Import(data, RootSymbol, 0, node.DataScene, importOpts)
		if err != nil {
			t.Fatal(err)
		}
		out, err := Export(sc, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	first := reexport(foreign)
	if bytes.Equal(first, foreign) {
		t.Fatal("camera root survived the round trip")
	}
	if !bytes.Equal(reexport(first), first) {
		t.Error("written archive is not a fixed point")
	}
}

func TestExportIsDeterministic(t *testing.T) {
	opts := DefaultOptions()
	sc := collected(t, opts)
	a, err := Export(sc, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Export(sc, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("exports of the same scene differ")
	}
}

// sharedScene has bones root, a, s, b, s' where s' aliases s, a mesh
// attached to both a and b, and an envelope polygon bound to three bones.
func sharedScene() *scene.Scene {
	sk := &skeleton.Skeleton{Conversion: skeleton.Identity(), Bones: []skeleton.Bone{
		{Name: "root", Parent: -1, Alias: -1},
		{Name: "a", Parent: 0, Alias: -1, Meshes: []int{0}},
		{Name: "s", Parent: 1, Alias: -1, Meshes: []int{1}},
		{Name: "b", Parent: 0, Alias: -1, Meshes: []int{0}},
		{Name: "s", Parent: 3, Alias: 2, Meshes: []int{1}},
	}}
	for i := range sk.Bones {
		sk.Bones[i].Scale = mathutil.Vec3{1, 1, 1}
		sk.Bones[i].Translation = mathutil.Vec3{float64(i), 0, 0}
	}
	sk.Update()

	tri := mesh.Polygon{
		SkinBone: -1,
		Vertices: []mesh.Vertex{
			{Position: [3]float32{0, 0, 0}, Envelope: -1},
			{Position: [3]float32{1, 0, 0}, Envelope: -1},
			{Position: [3]float32{0, 1, 0}, Envelope: -1},
		},
		Triangles: [][3]int32{{0, 1, 2}},
	}
	env := tri
	env.Flags = node.PolygonEnvelope
	env.Envelopes = [][]mesh.Weight{{{Bone: 0, Weight: 1}}, {{Bone: 1, Weight: 0.25}, {Bone: 2, Weight: 0.75}}}
	env.Vertices = []mesh.Vertex{
		{Position: [3]float32{0, 0, 0}, Envelope: 0},
		{Position: [3]float32{1, 0, 0}, Envelope: 1},
		{Position: [3]float32{0, 1, 0}, Envelope: 1},
	}

	return &scene.Scene{
		Symbol:     RootSymbol,
		Conversion: skeleton.Identity(),
		Models:     []scene.Model{{Skeleton: sk, Selected: true}},
		Meshes: []scene.Mesh{
			{Material: -1, Polygons: []mesh.Polygon{tri}},
			{Material: -1, Polygons: []mesh.Polygon{env}},
		},
	}
}

func TestSharingSurvivesExport(t *testing.T) {
	opts := DefaultOptions()
	data, err := Export(sharedScene(), opts)
	if err != nil {
		t.Fatal(err)
	}
	sc, err := scene.Import(data, RootSymbol, 0, node.DataScene, scene.DefaultImportOptions())
	if err != nil {
		t.Fatal(err)
	}
	bones := sc.Models[0].Skeleton.Bones
	if len(bones) != 5 || bones[4].Alias != 2 || bones[4].Joint != bones[2].Joint {
		t.Fatalf("bones = %+v", bones)
	}
	if len(sc.Meshes) != 2 || bones[1].Meshes[0] != bones[3].Meshes[0] {
		t.Errorf("meshes %d, bone meshes %v / %v", len(sc.Meshes), bones[1].Meshes, bones[3].Meshes)
	}
	env := sc.Meshes[1].Polygons[0]
	want := [][]mesh.Weight{{{Bone: 0, Weight: 1}}, {{Bone: 1, Weight: 0.25}, {Bone: 2, Weight: 0.75}}}
	if len(env.Envelopes) != 2 || env.Envelopes[1][1] != want[1][1] || env.Envelopes[0][0] != want[0][0] {
		t.Errorf("envelopes = %v", env.Envelopes)
	}

	// World transforms in the scene's identity space survive the axis change.
	src := sharedScene().Models[0].Skeleton.Bones
	for i := range bones {
		got := bones[i].World.Translation()
		if !got.ApproxEqual(src[i].World.Translation(), 1e-5) {
			t.Errorf("bone %d world %v, want %v", i, got, src[i].World.Translation())
		}
	}

	again, err := Export(sc, opts)
	if err != nil {
		t.Fatal(err)
	}
	sc2, err := scene.Import(again, RootSymbol, 0, node.DataScene, scene.DefaultImportOptions())
	if err != nil {
		t.Fatal(err)
	}
	third, err := Export(sc2, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, third) {
		t.Error("re-export of an imported scene is not stable")
	}
}

func TestUseSelection(t *testing.T) {
	sc := sharedScene()
	sc.Models[0].Selected = false
	opts := DefaultOptions()
	opts.UseSelection = true
	if _, err := Export(sc, opts); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("got %v, want ErrNothingSelected", err)
	}
	opts.UseSelection = false
	if _, err := Export(sc, opts); err != nil {
		t.Error(err)
	}
}

func TestASCII(t *testing.T) {
	opts := DefaultOptions()
	opts.ASCII = true
	out, err := Export(sharedScene(), opts)
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	if !strings.HasPrefix(text, "# hsd archive\n") {
		t.Errorf("listing starts with %q", text[:min(len(text), 20)])
	}
	if !strings.Contains(text, "# root ") || !strings.Contains(text, RootSymbol) {
		t.Error("root symbol not listed")
	}
	if !strings.Contains(text, "* ") || !strings.Contains(text, "->") {
		t.Error("no relocation markers")
	}
}

func TestOptionsValidation(t *testing.T) {
	opts := DefaultOptions()
	opts.GlobalScale = 0.001
	if _, err := Export(sharedScene(), opts); err == nil {
		t.Error("expected scale error")
	}
	opts = DefaultOptions()
	opts.AxisUp = mathutil.AxisNegY
	if _, err := Export(sharedScene(), opts); err == nil {
		t.Error("expected axis error")
	}
}

func TestCollect(t *testing.T) {
	opts := DefaultOptions()
	sc := collected(t, opts)

	bones := sc.Models[0].Skeleton.Bones
	if len(bones) != 3 || bones[1].Parent != 0 || bones[2].Parent != 1 {
		t.Fatalf("bones = %+v", bones)
	}
	// Host +Z is source +Y under forward Y / up Z.
	if got := bones[0].Translation; !got.ApproxEqual(mathutil.Vec3{0, 1, 0}, 1e-9) {
		t.Errorf("root translation in source space = %v", got)
	}
	if got := bones[0].World.Translation(); !got.ApproxEqual(mathutil.Vec3{0, 0, 1}, 1e-9) {
		t.Errorf("root world = %v", got)
	}
	if bones[1].Translation != (mathutil.Vec3{1, 0, 0}) {
		t.Errorf("child translation changed: %v", bones[1].Translation)
	}

	if len(sc.Meshes) != 3 || len(sc.Materials) != 2 || len(sc.Textures) != 1 {
		t.Fatalf("%d meshes, %d materials, %d textures", len(sc.Meshes), len(sc.Materials), len(sc.Textures))
	}
	if got := len(sc.Meshes[0].Polygons[0].Vertices); got != 4 {
		t.Errorf("quad has %d vertices, want 4", got)
	}
	if sc.Meshes[0].Material != sc.Meshes[2].Material {
		t.Error("material not shared between objects")
	}
	tex := sc.Textures[0]
	if tex.Width != 4 || tex.Height != 4 || len(tex.Data) != 64 {
		t.Errorf("texture %dx%d with %d bytes", tex.Width, tex.Height, len(tex.Data))
	}
	if _, err := tex.Image(); err != nil {
		t.Error(err)
	}
}

func TestCollectSelectionAndErrors(t *testing.T) {
	objects := []Object{
		{Name: "root", Parent: -1, Scale: mathutil.Vec3{1, 1, 1}},
		{Name: "picked", Parent: 0, Selected: true, Scale: mathutil.Vec3{1, 1, 1}},
		{Name: "other", Parent: -1, Scale: mathutil.Vec3{1, 1, 1}},
	}
	opts := DefaultOptions()
	opts.UseSelection = true
	sc, err := Collect(objects, faceMap{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	bones := sc.Models[0].Skeleton.Bones
	if len(bones) != 2 || bones[0].Name != "root" || bones[1].Name != "picked" {
		t.Errorf("bones = %+v", bones)
	}

	objects[1].Selected = false
	if _, err := Collect(objects, faceMap{}, opts); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("got %v, want ErrNothingSelected", err)
	}

	cyclic := []Object{{Name: "a", Parent: 1}, {Name: "b", Parent: 0}}
	if _, err := Collect(cyclic, faceMap{}, DefaultOptions()); err == nil {
		t.Error("expected cycle error")
	}

	missing := []Object{{Name: "m", Parent: -1, Scale: mathutil.Vec3{1, 1, 1}, Mesh: "m"}}
	sc, err = Collect(missing, faceMap{"m": quad("x", "nope.tga", 0)}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.Warnings) != 1 || len(sc.Materials[0].Textures) != 0 {
		t.Errorf("warnings %v, textures %v", sc.Warnings, sc.Materials[0].Textures)
	}
}

func TestReplaceTextures(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "tex_001.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, solid(8, 8)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	sc := &scene.Scene{Textures: []scene.Texture{
		{Name: "named", HasImage: true, Width: 4, Height: 4, Format: texture.FormatI8, Data: make([]byte, 32)},
		{WrapS: 2, HasImage: true, Width: 8, Height: 8, Format: texture.FormatCI4, Data: make([]byte, 32),
			HasPalette: true, PaletteFormat: 1, PaletteEntries: 16, PaletteData: make([]byte, 32)},
	}}
	orig := sc.Textures

	n, err := ReplaceTextures(sc, texture.NewCache(texture.BuildIndex(dir)))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("replaced %d textures, want 1", n)
	}
	got := sc.Textures[1]
	if got.Format != texture.FormatRGBA8 || got.HasPalette || got.WrapS != 2 || len(got.Data) != 8*8*4 {
		t.Errorf("replaced texture = %+v", got)
	}
	if orig[1].Format != texture.FormatCI4 {
		t.Error("input textures were edited in place")
	}
	img, err := got.Image()
	if err != nil {
		t.Fatal(err)
	}
	if c := img.NRGBAAt(3, 3); c != (color.NRGBA{200, 100, 50, 255}) {
		t.Errorf("pixel = %v", c)
	}
}
