package skeleton

import (
	"fmt"
	"math"

	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/node"
)

// IKThreshold is the smallest scale magnitude IKHack leaves in place.
const IKThreshold = 1e-3

// Conversion maps source model space into the caller's space. It is applied
// once, above every root bone.
type Conversion struct {
	Axes  mathutil.Mat3
	Scale float64
}

// Identity leaves source space unchanged.
func Identity() Conversion {
	return Conversion{Axes: mathutil.Mat3Identity(), Scale: 1}
}

// Matrix returns axes × uniform scale as an affine matrix.
func (c Conversion) Matrix() mathutil.Mat4 {
	return mathutil.Mat4Mul(
		mathutil.FromMat3Translation(c.Axes, mathutil.Vec3{}),
		mathutil.Mat4Scale(c.Scale),
	)
}

// Bone is one materialized joint. TRS and matrices are in source space except
// World, which includes the root conversion.
type Bone struct {
	Name   string `msgpack:"name" json:"name"`
	Parent int    `msgpack:"parent" json:"parent"`
	Flags  uint32 `msgpack:"flags" json:"flags"`

	Translation mathutil.Vec3 `msgpack:"t" json:"translation"`
	Rotation    mathutil.Vec3 `msgpack:"r" json:"rotation"`
	Scale       mathutil.Vec3 `msgpack:"s" json:"scale"`
	// Matrix replaces TRS when the joint carries a user matrix.
	Matrix *[12]float32 `msgpack:"m,omitempty" json:"matrix,omitempty"`
	// InverseBind is the stored inverse bind matrix, if any.
	InverseBind *[12]float32 `msgpack:"ib,omitempty" json:"inverse_bind,omitempty"`

	Local mathutil.Mat4 `msgpack:"local" json:"local"`
	World mathutil.Mat4 `msgpack:"world" json:"world"`

	// Meshes indexes Scene.Meshes; filled by the scene layer from Objects.
	Meshes  []int      `msgpack:"meshes,omitempty" json:"meshes,omitempty"`
	Objects []node.Ref `msgpack:"-" json:"-"`
	// Joint is the decoded joint; shared sub-trees repeat it.
	Joint node.Ref `msgpack:"-" json:"-"`
	// Alias is the index of an earlier bone materialized from the same joint,
	// or -1. A bone with an alias heads a repeated sub-tree.
	Alias int `msgpack:"alias" json:"alias"`
}

// Skeleton is a pre-ordered bone list; parents precede children.
type Skeleton struct {
	Bones      []Bone     `msgpack:"bones" json:"bones"`
	Conversion Conversion `msgpack:"conversion" json:"conversion"`
}

// DefaultName is the name given to bone i when its joint has none.
func DefaultName(i int) string { return fmt.Sprintf("JOBJ_%d", i) }

// LocalMatrix computes T·Rz·Ry·Rx·S, or the user matrix when one is set.
func (b *Bone) LocalMatrix() mathutil.Mat4 {
	if b.Matrix != nil {
		return mathutil.FromRows3x4(*b.Matrix)
	}
	return mathutil.FromTRS(b.Translation, b.Rotation, b.Scale)
}

// Materialize walks the joint tree under root depth-first, emitting bones in
// pre-order. A joint reachable along several paths yields one bone per path.
func Materialize(g *node.Graph, root node.Ref, conv Conversion) (*Skeleton, error) {
	sk := &Skeleton{Conversion: conv}
	first := make(map[node.Ref]int)
	if !root.Valid() {
		return sk, nil
	}
	if g.Joint(root) == nil {
		return nil, fmt.Errorf("skeleton: node %d is not a joint", root)
	}

	var walk func(r node.Ref, parent int)
	walk = func(r node.Ref, parent int) {
		for _, jr := range g.Chain(r) {
			j := g.Joint(jr)
			idx := len(sk.Bones)
			b := Bone{
				Name:        j.Name,
				Parent:      parent,
				Flags:       j.Flags,
				Translation: mathutil.Vec3From32(j.Translation),
				Rotation:    mathutil.Vec3From32(j.Rotation),
				Scale:       mathutil.Vec3From32(j.Scale),
				Objects:     g.Objects(jr),
				Joint:       jr,
				Alias:       -1,
			}
			if prev, ok := first[jr]; ok {
				b.Alias = prev
			} else {
				first[jr] = idx
			}
			if b.Name == "" {
				b.Name = DefaultName(idx)
			}
			if j.Matrix != nil {
				m := *j.Matrix
				if j.UsesMatrix() {
					b.Matrix = &m
				} else {
					b.InverseBind = &m
				}
			}
			sk.Bones = append(sk.Bones, b)
			walk(j.Child, idx)
		}
	}
	walk(root, -1)

	sk.Update()
	return sk, nil
}

// Update recomputes Local and World for every bone.
func (sk *Skeleton) Update() {
	rootM := sk.Conversion.Matrix()
	for i := range sk.Bones {
		b := &sk.Bones[i]
		b.Local = b.LocalMatrix()
		if b.Parent >= 0 {
			b.World = mathutil.Mat4Mul(sk.Bones[b.Parent].World, b.Local)
		} else {
			b.World = mathutil.Mat4Mul(rootM, b.Local)
		}
	}
}

// IKHack returns a copy of sk in which every per-axis scale whose magnitude
// falls below threshold is raised to it, keeping its sign. threshold is in
// destination units: a source scale s counts as s × Conversion.Scale. Bones
// driven by a user matrix are copied unchanged.
func IKHack(sk *Skeleton, threshold float64) *Skeleton {
	out := &Skeleton{
		Bones:      make([]Bone, len(sk.Bones)),
		Conversion: sk.Conversion,
	}
	copy(out.Bones, sk.Bones)
	if c := math.Abs(sk.Conversion.Scale); c > 0 {
		threshold /= c
	}
	for i := range out.Bones {
		b := &out.Bones[i]
		b.Meshes = append([]int(nil), b.Meshes...)
		if b.Matrix != nil {
			continue
		}
		for k, s := range b.Scale {
			if math.Abs(s) < threshold {
				b.Scale[k] = math.Copysign(threshold, s)
			}
		}
	}
	out.Update()
	return out
}

// Roots returns the indices of bones without a parent.
func (sk *Skeleton) Roots() []int {
	var out []int
	for i, b := range sk.Bones {
		if b.Parent < 0 {
			out = append(out, i)
		}
	}
	return out
}

// Children returns the direct children of bone i in order.
func (sk *Skeleton) Children(i int) []int {
	var out []int
	for j := i + 1; j < len(sk.Bones); j++ {
		if sk.Bones[j].Parent == i {
			out = append(out, j)
		}
	}
	return out
}
