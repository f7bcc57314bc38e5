package export

import (
	"fmt"
	"strconv"
	"strings"

	"hsd-scene-io/internal/anim"
	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/mesh"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/skeleton"
)

// RootSymbol names the scene descriptor in written archives.
const RootSymbol = "scene_data"

// Write serializes every model of sc as a scene descriptor under RootSymbol.
// Structs are laid out in traversal order; equal scenes give equal bytes.
//
// Only what Scene models is written. Cameras, lights, fog, render objects,
// texture LOD and TEV blocks, material render descriptors and any other
// root symbols are not carried through Import, so an archive from another
// tool is not reproduced byte for byte. Archives written here are:
// Write(Import(Write(s))) equals Write(s).
func Write(sc *scene.Scene) ([]byte, error) {
	w := &writer{
		b:         hsd.NewBuilder(),
		sc:        sc,
		names:     make(map[string]uint32),
		dobjs:     make(map[string]uint32),
		materials: make(map[int]uint32),
		tobjs:     make(map[string]uint32),
	}

	sets := make([]uint32, len(sc.Models))
	for i, m := range sc.Models {
		off, err := w.jointSet(m)
		if err != nil {
			return nil, fmt.Errorf("export: model %d: %w", i, err)
		}
		sets[i] = off
	}

	desc := w.b.Alloc(node.SceneDescSize, 4)
	if len(sets) > 0 {
		w.b.PutPtr(desc+node.SceneDescJointSets, w.pointerArray(sets))
	}
	w.b.AddRoot(RootSymbol, desc)
	return w.b.Bytes()
}

type writer struct {
	b         *hsd.Builder
	sc        *scene.Scene
	names     map[string]uint32
	dobjs     map[string]uint32
	materials map[int]uint32
	tobjs     map[string]uint32
	// joints maps bone index to joint offset for the model being written.
	joints []uint32
}

func (w *writer) name(field uint32, s string) {
	if s == "" {
		return
	}
	off, ok := w.names[s]
	if !ok {
		off = w.b.CString(s)
		w.names[s] = off
	}
	w.b.PutPtr(field, off)
}

// pointerArray writes a NULL-terminated array of pointers.
func (w *writer) pointerArray(targets []uint32) uint32 {
	arr := w.b.Alloc(4*(len(targets)+1), 4)
	for i, t := range targets {
		w.b.PutPtr(arr+uint32(4*i), t)
	}
	return arr
}

// chainKey identifies a suffix of an index chain; equal suffixes share structs
// because the Next link belongs to the struct.
func chainKey(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (w *writer) jointSet(m scene.Model) (uint32, error) {
	set := w.b.Alloc(node.JointSetSize, 4)
	if m.Skeleton != nil && len(m.Skeleton.Bones) > 0 {
		root, err := w.skeleton(m.Skeleton)
		if err != nil {
			return 0, err
		}
		w.b.PutPtr(set+node.JointSetJoint, root)
	}
	if len(m.Animations) > 0 {
		roots := make([]uint32, 0, len(m.Animations))
		for i, a := range m.Animations {
			off, err := w.animation(a)
			if err != nil {
				return 0, fmt.Errorf("animation %d: %w", i, err)
			}
			roots = append(roots, off)
		}
		w.b.PutPtr(set+node.JointSetAnimJoints, w.pointerArray(roots))
	}
	return set, nil
}

func (w *writer) skeleton(sk *skeleton.Skeleton) (uint32, error) {
	bones := sk.Bones
	w.joints = make([]uint32, len(bones))
	dup := make([]bool, len(bones))
	for i, b := range bones {
		dup[i] = b.Alias >= 0 || (b.Parent >= 0 && dup[b.Parent])
		switch {
		case b.Alias >= 0:
			w.joints[i] = w.joints[b.Alias]
		case !dup[i]:
			w.joints[i] = w.b.Alloc(node.JointSize, 4)
		}
	}

	// siblings lists children in order; an aliased sibling ends the chain
	// since the rest of it belongs to the aliased joint.
	siblings := func(list []int) []int {
		for k, c := range list {
			if bones[c].Alias >= 0 {
				return list[:k+1]
			}
		}
		return list
	}
	link := func(list []int) {
		list = siblings(list)
		for k := 0; k+1 < len(list); k++ {
			if !dup[list[k]] {
				w.b.PutPtr(w.joints[list[k]]+node.JointNext, w.joints[list[k+1]])
			}
		}
	}
	link(sk.Roots())

	for i, b := range bones {
		if dup[i] {
			continue
		}
		off := w.joints[i]
		if b.Name != skeleton.DefaultName(i) {
			w.name(off+node.JointName, b.Name)
		}
		w.b.PutU32(off+node.JointFlags, b.Flags)
		w.b.PutVec3(off+node.JointRotation, b.Rotation.To32())
		w.b.PutVec3(off+node.JointScale, b.Scale.To32())
		w.b.PutVec3(off+node.JointTranslation, b.Translation.To32())
		if m := b.Matrix; m != nil {
			w.matrix(off+node.JointMatrix, m)
		} else if ib := b.InverseBind; ib != nil {
			w.matrix(off+node.JointMatrix, ib)
		}
		if kids := sk.Children(i); len(kids) > 0 {
			w.b.PutPtr(off+node.JointChild, w.joints[kids[0]])
			link(kids)
		}
	}

	for i, b := range bones {
		if dup[i] || len(b.Meshes) == 0 {
			continue
		}
		obj, err := w.dobjChain(b.Meshes)
		if err != nil {
			return 0, fmt.Errorf("bone %d: %w", i, err)
		}
		w.b.PutPtr(w.joints[i]+node.JointObject, obj)
	}
	return w.joints[sk.Roots()[0]], nil
}

func (w *writer) matrix(field uint32, m *[12]float32) {
	off := w.b.Alloc(node.MatrixSize, 4)
	for i, v := range m {
		w.b.PutF32(off+uint32(4*i), v)
	}
	w.b.PutPtr(field, off)
}

func (w *writer) dobjChain(meshes []int) (uint32, error) {
	key := chainKey(meshes)
	if off, ok := w.dobjs[key]; ok {
		return off, nil
	}
	mi := meshes[0]
	if mi < 0 || mi >= len(w.sc.Meshes) {
		return 0, fmt.Errorf("mesh index %d out of range", mi)
	}
	m := w.sc.Meshes[mi]
	off := w.b.Alloc(node.DObjSize, 4)
	w.dobjs[key] = off
	w.name(off+node.DObjName, m.Name)

	if m.Material >= 0 {
		mat, err := w.material(m.Material)
		if err != nil {
			return 0, err
		}
		w.b.PutPtr(off+node.DObjMaterial, mat)
	}

	var prev uint32
	for pi, p := range m.Polygons {
		pobj, err := w.polygon(p)
		if err != nil {
			return 0, fmt.Errorf("mesh %d polygon %d: %w", mi, pi, err)
		}
		if pi == 0 {
			w.b.PutPtr(off+node.DObjPolygon, pobj)
		} else {
			w.b.PutPtr(prev+node.PObjNext, pobj)
		}
		prev = pobj
	}

	if len(meshes) > 1 {
		next, err := w.dobjChain(meshes[1:])
		if err != nil {
			return 0, err
		}
		w.b.PutPtr(off+node.DObjNext, next)
	}
	return off, nil
}

func (w *writer) polygon(p mesh.Polygon) (uint32, error) {
	enc, err := mesh.Encode(p)
	if err != nil {
		return 0, err
	}
	off := w.b.Alloc(node.PObjSize, 4)
	w.b.PutU16(off+node.PObjFlags, p.Flags)

	desc := w.b.Alloc(node.VtxDescSize*(len(enc.Attrs)+1), 4)
	for i, a := range enc.Attrs {
		d := desc + uint32(i*node.VtxDescSize)
		w.b.PutU32(d+node.VtxDescAttr, a.Attr)
		w.b.PutU32(d+node.VtxDescIndexType, a.IndexType)
		w.b.PutU32(d+node.VtxDescCompCount, a.CompCount)
		w.b.PutU32(d+node.VtxDescCompType, a.CompType)
		w.b.PutU8(d+node.VtxDescScale, a.Scale)
		w.b.PutU16(d+node.VtxDescStride, a.Stride)
		if a.HasData {
			w.b.PutPtr(d+node.VtxDescData, w.b.Append(a.Data, 32))
		}
	}
	w.b.PutU32(desc+uint32(len(enc.Attrs)*node.VtxDescSize)+node.VtxDescAttr, node.AttrNull)
	w.b.PutPtr(off+node.PObjVtxDesc, desc)

	w.b.PutU16(off+node.PObjDLBlocks, uint16(len(enc.DisplayList)/node.DisplayListBlock))
	w.b.PutPtr(off+node.PObjDL, w.b.Append(enc.DisplayList, 32))

	joint := func(bone int) (uint32, error) {
		if bone < 0 || bone >= len(w.joints) {
			return 0, fmt.Errorf("bone index %d out of range", bone)
		}
		return w.joints[bone], nil
	}
	switch p.Flags & node.PolygonTypeMask {
	case node.PolygonEnvelope:
		lists := make([]uint32, len(p.Envelopes))
		for i, env := range p.Envelopes {
			entries := w.b.Alloc(node.EnvelopeEntrySize*(len(env)+1), 4)
			for k, wt := range env {
				j, err := joint(wt.Bone)
				if err != nil {
					return 0, err
				}
				e := entries + uint32(k*node.EnvelopeEntrySize)
				w.b.PutPtr(e, j)
				w.b.PutF32(e+4, wt.Weight)
			}
			lists[i] = entries
		}
		w.b.PutPtr(off+node.PObjEnvelope, w.pointerArray(lists))
	case node.PolygonSkin:
		if p.SkinBone >= 0 {
			j, err := joint(p.SkinBone)
			if err != nil {
				return 0, err
			}
			w.b.PutPtr(off+node.PObjEnvelope, j)
		}
	}
	return off, nil
}

func (w *writer) material(i int) (uint32, error) {
	if off, ok := w.materials[i]; ok {
		return off, nil
	}
	if i >= len(w.sc.Materials) {
		return 0, fmt.Errorf("material index %d out of range", i)
	}
	m := w.sc.Materials[i]
	off := w.b.Alloc(node.MObjSize, 4)
	w.materials[i] = off
	w.name(off+node.MObjClass, m.Name)
	w.b.PutU32(off+node.MObjRenderFlags, m.RenderFlags)

	if len(m.Textures) > 0 {
		t, err := w.tobjChain(m.Textures)
		if err != nil {
			return 0, err
		}
		w.b.PutPtr(off+node.MObjTexture, t)
	}
	if m.HasColors {
		c := w.b.Alloc(node.ColorsSize, 4)
		w.b.PutBytes(c+node.ColorsAmbient, m.Ambient[:])
		w.b.PutBytes(c+node.ColorsDiffuse, m.Diffuse[:])
		w.b.PutBytes(c+node.ColorsSpecular, m.Specular[:])
		w.b.PutF32(c+node.ColorsAlpha, m.Alpha)
		w.b.PutF32(c+node.ColorsShininess, m.Shininess)
		w.b.PutPtr(off+node.MObjColors, c)
	}
	if len(m.PEDesc) == node.PEDescSize {
		w.b.PutPtr(off+node.MObjPEDesc, w.b.Append(m.PEDesc, 4))
	}
	return off, nil
}

func (w *writer) tobjChain(textures []int) (uint32, error) {
	key := chainKey(textures)
	if off, ok := w.tobjs[key]; ok {
		return off, nil
	}
	ti := textures[0]
	if ti < 0 || ti >= len(w.sc.Textures) {
		return 0, fmt.Errorf("texture index %d out of range", ti)
	}
	t := w.sc.Textures[ti]
	off := w.b.Alloc(node.TObjSize, 4)
	w.tobjs[key] = off

	w.name(off+node.TObjName, t.Name)
	w.b.PutU32(off+node.TObjMapID, t.MapID)
	w.b.PutU32(off+node.TObjSource, t.Source)
	w.b.PutVec3(off+node.TObjRotation, t.Rotation)
	w.b.PutVec3(off+node.TObjScale, t.Scale)
	w.b.PutVec3(off+node.TObjTranslation, t.Translation)
	w.b.PutU32(off+node.TObjWrapS, t.WrapS)
	w.b.PutU32(off+node.TObjWrapT, t.WrapT)
	w.b.PutU8(off+node.TObjRepeatS, t.RepeatS)
	w.b.PutU8(off+node.TObjRepeatT, t.RepeatT)
	w.b.PutU32(off+node.TObjFlags, t.Flags)
	w.b.PutF32(off+node.TObjBlending, t.Blending)
	w.b.PutU32(off+node.TObjMagFilter, t.MagFilter)

	if t.HasImage {
		img := w.b.Alloc(node.ImageSize, 4)
		w.b.PutU16(img+node.ImageWidth, uint16(t.Width))
		w.b.PutU16(img+node.ImageHeight, uint16(t.Height))
		w.b.PutU32(img+node.ImageFormat, t.Format)
		w.b.PutU32(img+node.ImageMipMap, t.MipMap)
		w.b.PutF32(img+node.ImageMinLOD, t.MinLOD)
		w.b.PutF32(img+node.ImageMaxLOD, t.MaxLOD)
		if len(t.Data) > 0 {
			w.b.PutPtr(img+node.ImageData, w.b.Append(t.Data, 32))
		}
		w.b.PutPtr(off+node.TObjImage, img)
	}
	if t.HasPalette {
		pal := w.b.Alloc(node.PaletteSize, 4)
		w.b.PutU32(pal+node.PaletteFormat, t.PaletteFormat)
		w.b.PutU32(pal+node.PaletteName, t.PaletteName)
		w.b.PutU16(pal+node.PaletteEntries, t.PaletteEntries)
		if len(t.PaletteData) > 0 {
			w.b.PutPtr(pal+node.PaletteData, w.b.Append(t.PaletteData, 32))
		}
		w.b.PutPtr(off+node.TObjPalette, pal)
	}

	if len(textures) > 1 {
		next, err := w.tobjChain(textures[1:])
		if err != nil {
			return 0, err
		}
		w.b.PutPtr(off+node.TObjNext, next)
	}
	return off, nil
}

func (w *writer) animation(a *anim.Animation) (uint32, error) {
	n := len(a.Bones)
	if n == 0 {
		return w.b.Alloc(node.AnimJointSize, 4), nil
	}
	offs := make([]uint32, n)
	for i := range offs {
		offs[i] = w.b.Alloc(node.AnimJointSize, 4)
	}

	children := make([][]int, n)
	var roots []int
	for i, b := range a.Bones {
		if b.Parent >= 0 && b.Parent < i {
			children[b.Parent] = append(children[b.Parent], i)
		} else {
			roots = append(roots, i)
		}
	}
	link := func(list []int) {
		for k := 0; k+1 < len(list); k++ {
			w.b.PutPtr(offs[list[k]]+node.AnimJointNext, offs[list[k+1]])
		}
	}
	link(roots)

	for i, b := range a.Bones {
		off := offs[i]
		w.b.PutU32(off+node.AnimJointFlags, b.Flags)
		if kids := children[i]; len(kids) > 0 {
			w.b.PutPtr(off+node.AnimJointChild, offs[kids[0]])
			link(kids)
		}
		if !b.HasAnim && len(b.Tracks) == 0 {
			continue
		}
		aobj := w.b.Alloc(node.AObjSize, 4)
		w.b.PutU32(aobj+node.AObjFlags, b.AnimFlags)
		w.b.PutF32(aobj+node.AObjEndFrame, b.EndFrame)
		w.b.PutU32(aobj+node.AObjObjID, b.ObjID)
		w.b.PutPtr(off+node.AnimJointAObj, aobj)

		var prev uint32
		for ti, t := range b.Tracks {
			data, err := anim.EncodeKeys(t.Keys, t.ValueFmt, t.SlopeFmt)
			if err != nil {
				return 0, fmt.Errorf("bone %d %s track: %w", i, t.Channel, err)
			}
			fobj := w.b.Alloc(node.FObjSize, 4)
			w.b.PutU32(fobj+node.FObjLength, uint32(len(data)))
			w.b.PutF32(fobj+node.FObjStartFrame, t.StartFrame)
			w.b.PutU8(fobj+node.FObjType, t.Channel.TrackType())
			w.b.PutU8(fobj+node.FObjValueFmt, t.ValueFmt)
			w.b.PutU8(fobj+node.FObjSlopeFmt, t.SlopeFmt)
			if len(data) > 0 {
				w.b.PutPtr(fobj+node.FObjData, w.b.Append(data, 4))
			}
			if ti == 0 {
				w.b.PutPtr(aobj+node.AObjFObj, fobj)
			} else {
				w.b.PutPtr(prev+node.FObjNext, fobj)
			}
			prev = fobj
		}
	}
	return offs[roots[0]], nil
}
