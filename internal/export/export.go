package export

import (
	"errors"
	"fmt"

	"hsd-scene-io/internal/anim"
	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/mesh"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/skeleton"
)

// ErrNothingSelected is returned when UseSelection leaves no model to write.
var ErrNothingSelected = errors.New("export: nothing selected")

// Export writes sc as an HSD archive. When the options' axes or scale differ
// from sc.Conversion, root bones, inverse binds and envelope geometry are
// re-expressed so that world transforms in the caller's space are kept.
func Export(sc *scene.Scene, opts Options) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	conv, err := opts.conversion()
	if err != nil {
		return nil, err
	}

	out := *sc
	if opts.UseSelection {
		out.Models = nil
		for _, m := range sc.Models {
			if m.Selected {
				out.Models = append(out.Models, m)
			}
		}
		if len(out.Models) == 0 {
			return nil, ErrNothingSelected
		}
	}

	corr := mathutil.Mat4Mul(conv.Matrix().InverseAffine(), sc.Conversion.Matrix())
	if !corr.IsIdentity() {
		reexpress(&out, corr)
	}
	out.Conversion = conv

	data, err := Write(&out)
	if err != nil {
		return nil, err
	}
	if opts.ASCII {
		return Dump(data)
	}
	return data, nil
}

// reexpress applies corr above every root bone. Envelope vertices live in
// model space and move with it. Models, skeletons and meshes are copied
// before they change.
func reexpress(sc *scene.Scene, corr mathutil.Mat4) {
	inv := corr.InverseAffine()
	ratio := corr.ScaleFactors()[0]

	models := make([]scene.Model, len(sc.Models))
	for mi, m := range sc.Models {
		if m.Skeleton == nil {
			models[mi] = m
			continue
		}
		sk := &skeleton.Skeleton{
			Bones:      append([]skeleton.Bone(nil), m.Skeleton.Bones...),
			Conversion: m.Skeleton.Conversion,
		}
		for i := range sk.Bones {
			b := &sk.Bones[i]
			if b.InverseBind != nil {
				ib := mathutil.Mat4Mul(mathutil.FromRows3x4(*b.InverseBind), inv).Rows3x4()
				b.InverseBind = &ib
			}
			if b.Parent >= 0 {
				continue
			}
			local := mathutil.Mat4Mul(corr, b.LocalMatrix())
			if b.Matrix != nil {
				rows := local.Rows3x4()
				b.Matrix = &rows
			} else {
				b.Translation, b.Rotation, b.Scale = local.Decompose()
			}
		}
		sk.Update()
		m.Skeleton = sk
		m.Animations = scaleRootTracks(m, ratio)
		models[mi] = m
	}
	sc.Models = models

	meshes := append([]scene.Mesh(nil), sc.Meshes...)
	for mi := range meshes {
		polys := append([]mesh.Polygon(nil), meshes[mi].Polygons...)
		for pi, p := range polys {
			if p.Flags&node.PolygonTypeMask != node.PolygonEnvelope {
				continue
			}
			verts := append([]mesh.Vertex(nil), p.Vertices...)
			for vi := range verts {
				v := &verts[vi]
				v.Position = corr.MulPoint(mathutil.Vec3From32(v.Position)).To32()
				v.Normal = corr.MulDir(mathutil.Vec3From32(v.Normal)).Normalize().To32()
			}
			polys[pi].Vertices = verts
		}
		meshes[mi].Polygons = polys
	}
	sc.Meshes = meshes
}

// scaleRootTracks scales root translation keys by the uniform scale ratio.
// Root rotation tracks stay in source axes.
func scaleRootTracks(m scene.Model, ratio float64) []*anim.Animation {
	if ratio == 1 || len(m.Animations) == 0 {
		return m.Animations
	}
	out := make([]*anim.Animation, len(m.Animations))
	for ai, a := range m.Animations {
		cp := *a
		cp.Bones = append([]anim.BoneAnimation(nil), a.Bones...)
		for bi := range cp.Bones {
			b := &cp.Bones[bi]
			if b.Parent >= 0 {
				continue
			}
			tracks := append([]anim.Track(nil), b.Tracks...)
			for ti := range tracks {
				t := &tracks[ti]
				if t.Channel > anim.TranslateZ {
					continue
				}
				keys := append([]anim.Key(nil), t.Keys...)
				for ki := range keys {
					keys[ki].Value *= ratio
					keys[ki].InSlope *= ratio
					keys[ki].OutSlope *= ratio
				}
				t.Keys = keys
			}
			b.Tracks = tracks
		}
		cp.Resample(anim.Options{})
		out[ai] = &cp
	}
	return out
}

// Describe summarizes an Export result for logs.
func Describe(sc *scene.Scene) string {
	bones, anims := 0, 0
	for _, m := range sc.Models {
		if m.Skeleton != nil {
			bones += len(m.Skeleton.Bones)
		}
		anims += len(m.Animations)
	}
	return fmt.Sprintf("%d models, %d bones, %d meshes, %d materials, %d textures, %d animations",
		len(sc.Models), bones, len(sc.Meshes), len(sc.Materials), len(sc.Textures), anims)
}
