package cache

import (
	"errors"
	"path/filepath"
	"testing"

	"hsd-scene-io/internal/anim"
	"hsd-scene-io/internal/export"
	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/mesh"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/skeleton"
)

func archive(t *testing.T, anims ...*anim.Animation) []byte {
	t.Helper()
	sk := &skeleton.Skeleton{Conversion: skeleton.Identity(), Bones: []skeleton.Bone{
		{Name: "root", Parent: -1, Alias: -1, Scale: mathutil.Vec3{1, 1, 1}, Meshes: []int{0}},
		{Name: "leaf", Parent: 0, Alias: -1, Translation: mathutil.Vec3{0, 0, 3}, Scale: mathutil.Vec3{1, 1, 1}},
	}}
	sk.Update()
	sc := &scene.Scene{
		Conversion: skeleton.Identity(),
		Models:     []scene.Model{{Skeleton: sk, Animations: anims, Selected: true}},
		Meshes: []scene.Mesh{{Material: -1, Polygons: []mesh.Polygon{{
			SkinBone: -1,
			Vertices: []mesh.Vertex{
				{Position: [3]float32{0, 0, 0}, Envelope: -1},
				{Position: [3]float32{1, 0, 0}, Envelope: -1},
				{Position: [3]float32{0, 1, 0}, Envelope: -1},
			},
			Triangles: [][3]int32{{0, 1, 2}},
		}}}},
	}
	data, err := export.Export(sc, export.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestImportCaches(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	data := archive(t)
	opts := scene.DefaultImportOptions()
	first, hit, err := c.Import("a.dat", data, export.RootSymbol, 0, node.DataScene, opts)
	if err != nil || hit {
		t.Fatalf("first import: hit=%v err=%v", hit, err)
	}
	second, hit, err := c.Import("a.dat", data, export.RootSymbol, 0, node.DataScene, opts)
	if err != nil || !hit {
		t.Fatalf("second import: hit=%v err=%v", hit, err)
	}

	a, b := first.Models[0].Skeleton.Bones, second.Models[0].Skeleton.Bones
	if len(a) != len(b) {
		t.Fatalf("%d bones vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].World != b[i].World {
			t.Errorf("bone %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
	if len(second.Meshes) != 1 || len(second.Meshes[0].Polygons[0].Triangles) != 1 {
		t.Errorf("cached meshes = %+v", second.Meshes)
	}

	opts.GlobalScale = 2
	if _, hit, err := c.Import("a.dat", data, export.RootSymbol, 0, node.DataScene, opts); err != nil || hit {
		t.Errorf("changed options: hit=%v err=%v", hit, err)
	}
	if n, err := c.Len(); err != nil || n != 2 {
		t.Errorf("Len = %d, %v", n, err)
	}
}

func TestCachedWarningsKeepKind(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// one animation joint for a two-bone skeleton
	data := archive(t, &anim.Animation{Bones: []anim.BoneAnimation{{Parent: -1}}})
	opts := scene.DefaultImportOptions()
	first, _, err := c.Import("a.dat", data, export.RootSymbol, 0, node.DataScene, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, hit, err := c.Import("a.dat", data, export.RootSymbol, 0, node.DataScene, opts)
	if err != nil || !hit {
		t.Fatalf("second import: hit=%v err=%v", hit, err)
	}
	if len(first.Warnings) != 1 || len(second.Warnings) != 1 {
		t.Fatalf("warnings = %v / %v", first.Warnings, second.Warnings)
	}
	w := second.Warnings[0]
	if !errors.Is(w, hsd.ErrAnimationDecode) || hsd.KindOf(w) != hsd.AnimationDecodeWarning {
		t.Errorf("cached warning lost its kind: %v", w)
	}
	if w.Error() != first.Warnings[0].Error() {
		t.Errorf("cached warning %q, want %q", w, first.Warnings[0])
	}
}

func TestFailedImportIsNotCached(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	data := archive(t)
	if _, _, err := c.Import("a.dat", data, "missing", 0, node.DataScene, scene.DefaultImportOptions()); err == nil {
		t.Fatal("expected symbol error")
	}
	if n, _ := c.Len(); n != 0 {
		t.Errorf("Len = %d after failed import", n)
	}
}

func TestKey(t *testing.T) {
	data := []byte{1, 2, 3}
	opts := scene.DefaultImportOptions()
	k := Key(data, "scene_data", 0, node.DataScene, opts)
	if k != Key(data, "scene_data", 0, node.DataScene, opts) {
		t.Error("key is not stable")
	}

	units := opts
	units.GlobalScale, units.Units = 0.5, scene.Units(2)
	if Key(data, "scene_data", 0, node.DataScene, units) != k {
		t.Error("equal net scales should share a key")
	}

	variants := []func(o *scene.ImportOptions){
		func(o *scene.ImportOptions) { o.IKHack = false },
		func(o *scene.ImportOptions) { o.MaxFrame = 10 },
		func(o *scene.ImportOptions) { o.AxisUp = mathutil.AxisY; o.AxisForward = mathutil.AxisZ },
	}
	for i, v := range variants {
		o := opts
		v(&o)
		if Key(data, "scene_data", 0, node.DataScene, o) == k {
			t.Errorf("variant %d shares the default key", i)
		}
	}
	if Key(data, "scene_data", 0x20, node.DataScene, opts) == k || Key(data, "scene_data", 0, node.DataBone, opts) == k {
		t.Error("offset or kind not in key")
	}
}
