package skeleton

import (
	"math"
	"testing"

	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/node"
)

func joint(name string, child, next node.Ref) *node.Joint {
	return &node.Joint{
		Name:        name,
		Scale:       [3]float32{1, 1, 1},
		Translation: [3]float32{1, 0, 0},
		Child:       child,
		Next:        next,
		Object:      node.NilRef,
	}
}

// sharedGraph is root -> (a, b), where a and b both have child s.
func sharedGraph() *node.Graph {
	return &node.Graph{Nodes: []node.Node{
		0: joint("", 1, node.NilRef),
		1: joint("a", 3, 2),
		2: joint("b", 3, node.NilRef),
		3: joint("s", node.NilRef, node.NilRef),
	}}
}

func TestMaterializePreOrder(t *testing.T) {
	sk, err := Materialize(sharedGraph(), 0, Identity())
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		name   string
		parent int
		joint  node.Ref
	}{
		{"JOBJ_0", -1, 0},
		{"a", 0, 1},
		{"s", 1, 3},
		{"b", 0, 2},
		{"s", 3, 3},
	}
	if len(sk.Bones) != len(want) {
		t.Fatalf("got %d bones, want %d", len(sk.Bones), len(want))
	}
	for i, w := range want {
		b := sk.Bones[i]
		if b.Name != w.name || b.Parent != w.parent || b.Joint != w.joint {
			t.Errorf("bone %d = {%s %d %d}, want %+v", i, b.Name, b.Parent, b.Joint, w)
		}
	}
	if sk.Bones[4].Alias != 2 || sk.Bones[2].Alias != -1 {
		t.Errorf("aliases = %d, %d", sk.Bones[2].Alias, sk.Bones[4].Alias)
	}
	if got := sk.Children(0); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("children of root = %v", got)
	}
}

func TestWorldIsParentTimesLocal(t *testing.T) {
	axes, err := mathutil.AxisConversion(mathutil.SourceForward, mathutil.SourceUp, mathutil.AxisY, mathutil.AxisZ)
	if err != nil {
		t.Fatal(err)
	}
	g := sharedGraph()
	g.Joint(1).Rotation = [3]float32{0, 0, math.Pi / 2}
	sk, err := Materialize(g, 0, Conversion{Axes: axes, Scale: 2})
	if err != nil {
		t.Fatal(err)
	}

	root := sk.Bones[0]
	want := mathutil.Mat4Mul(sk.Conversion.Matrix(), root.Local)
	if !root.World.ApproxEqual(want, 1e-12) {
		t.Errorf("root world = %v, want %v", root.World, want)
	}
	for i, b := range sk.Bones[1:] {
		want := mathutil.Mat4Mul(sk.Bones[b.Parent].World, b.Local)
		if !b.World.ApproxEqual(want, 1e-12) {
			t.Errorf("bone %d world mismatch", i+1)
		}
	}

	// Source +X of the root translation lands on destination -X, doubled.
	origin := root.World.MulPoint(mathutil.Vec3{})
	if !origin.ApproxEqual(mathutil.Vec3{-2, 0, 0}, 1e-9) {
		t.Errorf("root origin = %v", origin)
	}
}

func TestUserMatrix(t *testing.T) {
	g := sharedGraph()
	m := [12]float32{1, 0, 0, 5, 0, 1, 0, 6, 0, 0, 1, 7}
	j := g.Joint(3)
	j.Matrix = &m
	j.Flags = node.JointUserMatrix

	ib := [12]float32{1, 0, 0, -1, 0, 1, 0, 0, 0, 0, 1, 0}
	g.Joint(1).Matrix = &ib

	sk, err := Materialize(g, 0, Identity())
	if err != nil {
		t.Fatal(err)
	}
	if sk.Bones[1].Matrix != nil || sk.Bones[1].InverseBind == nil {
		t.Error("bone a: inverse bind matrix not recorded as such")
	}
	s := sk.Bones[2]
	if s.Matrix == nil {
		t.Fatal("bone s: user matrix dropped")
	}
	if got := s.Local.Translation(); got != (mathutil.Vec3{5, 6, 7}) {
		t.Errorf("bone s local translation = %v", got)
	}
}

func TestIKHack(t *testing.T) {
	g := sharedGraph()
	g.Joint(1).Scale = [3]float32{0, -1e-5, 2}
	sk, err := Materialize(g, 0, Identity())
	if err != nil {
		t.Fatal(err)
	}

	out := IKHack(sk, IKThreshold)
	if got := out.Bones[1].Scale; got != (mathutil.Vec3{1e-3, -1e-3, 2}) {
		t.Errorf("clamped scale = %v", got)
	}
	if got := sk.Bones[1].Scale; got[0] != 0 {
		t.Errorf("input skeleton modified: %v", got)
	}
	if out.Bones[2].World == sk.Bones[2].World {
		t.Error("descendant world not recomputed")
	}
	if out.Bones[3].World != sk.Bones[3].World {
		t.Error("unrelated bone changed")
	}
}

func TestIKHackUsesDestinationUnits(t *testing.T) {
	g := sharedGraph()
	g.Joint(1).Scale = [3]float32{0.05, 1, 0.2}
	sk, err := Materialize(g, 0, Conversion{Axes: mathutil.Mat3Identity(), Scale: 0.01})
	if err != nil {
		t.Fatal(err)
	}

	out := IKHack(sk, IKThreshold)
	got := out.Bones[1].Scale
	if math.Abs(got[0]-0.1) > 1e-12 || got[1] != 1 || math.Abs(got[2]-0.2) > 1e-7 {
		t.Errorf("clamped scale = %v", got)
	}
	// 0.05 source units at scale 0.01 is below the threshold; 0.2 is not
	if x := out.Bones[1].Scale[0] * out.Conversion.Scale; x < IKThreshold-1e-12 {
		t.Errorf("destination scale %g below %g", x, IKThreshold)
	}
}

func TestMaterializeRejectsNonJoint(t *testing.T) {
	g := &node.Graph{Nodes: []node.Node{&node.DisplayObject{}}}
	if _, err := Materialize(g, 0, Identity()); err == nil {
		t.Error("expected error")
	}
	sk, err := Materialize(g, node.NilRef, Identity())
	if err != nil || len(sk.Bones) != 0 {
		t.Errorf("nil root: %v, %d bones", err, len(sk.Bones))
	}
}
