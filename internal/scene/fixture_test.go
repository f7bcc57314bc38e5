package scene

import (
	"encoding/binary"
	"math"
	"testing"

	"hsd-scene-io/internal/anim"
	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/node"
)

// fixture writes HSD structs with the archive builder.
type fixture struct {
	t *testing.T
	b *hsd.Builder
}

func newFixture(t *testing.T) *fixture {
	return &fixture{t: t, b: hsd.NewBuilder()}
}

func (f *fixture) joint(name string, translation [3]float32) uint32 {
	off := f.b.Alloc(node.JointSize, 4)
	if name != "" {
		f.b.PutPtr(off+node.JointName, f.b.CString(name))
	}
	f.b.PutVec3(off+node.JointScale, [3]float32{1, 1, 1})
	f.b.PutVec3(off+node.JointTranslation, translation)
	return off
}

func (f *fixture) link(field, target uint32) { f.b.PutPtr(field, target) }

// triangle writes a display object with one indexed float triangle.
func (f *fixture) triangle(flags uint16) uint32 {
	var pos []byte
	for _, v := range [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}} {
		for _, c := range v {
			pos = binary.BigEndian.AppendUint32(pos, math.Float32bits(c))
		}
	}
	buf := f.b.Append(pos, 32)

	desc := f.b.Alloc(2*node.VtxDescSize, 4)
	f.b.PutU32(desc+node.VtxDescAttr, node.AttrPos)
	f.b.PutU32(desc+node.VtxDescIndexType, node.IndexIndex8)
	f.b.PutU32(desc+node.VtxDescCompCount, node.PosXYZ)
	f.b.PutU32(desc+node.VtxDescCompType, node.CompF32)
	f.b.PutU16(desc+node.VtxDescStride, 12)
	f.b.PutPtr(desc+node.VtxDescData, buf)
	f.b.PutU32(desc+node.VtxDescSize+node.VtxDescAttr, node.AttrNull)

	dl := make([]byte, node.DisplayListBlock)
	copy(dl, []byte{node.PrimTriangles, 0, 3, 0, 1, 2})
	dlOff := f.b.Append(dl, 32)

	pobj := f.b.Alloc(node.PObjSize, 4)
	f.b.PutPtr(pobj+node.PObjVtxDesc, desc)
	f.b.PutU16(pobj+node.PObjFlags, flags)
	f.b.PutU16(pobj+node.PObjDLBlocks, 1)
	f.b.PutPtr(pobj+node.PObjDL, dlOff)

	colors := f.b.Alloc(node.ColorsSize, 4)
	f.b.PutBytes(colors+node.ColorsDiffuse, []byte{10, 20, 30, 255})
	f.b.PutF32(colors+node.ColorsAlpha, 1)
	mobj := f.b.Alloc(node.MObjSize, 4)
	f.b.PutU32(mobj+node.MObjRenderFlags, 0x10)
	f.b.PutPtr(mobj+node.MObjColors, colors)

	dobj := f.b.Alloc(node.DObjSize, 4)
	f.b.PutPtr(dobj+node.DObjMaterial, mobj)
	f.b.PutPtr(dobj+node.DObjPolygon, pobj)
	return dobj
}

// animJoint writes an anim joint whose key chain holds one translate X track.
func (f *fixture) animJoint(keys []byte) uint32 {
	aj, _ := f.animTrack(keys)
	return aj
}

// animTrack is animJoint that also returns the FObj offset, 0 without keys.
func (f *fixture) animTrack(keys []byte) (aj, fobj uint32) {
	aj = f.b.Alloc(node.AnimJointSize, 4)
	if keys == nil {
		return aj, 0
	}
	data := f.b.Append(keys, 4)
	fobj = f.b.Alloc(node.FObjSize, 4)
	f.b.PutU32(fobj+node.FObjLength, uint32(len(keys)))
	f.b.PutU8(fobj+node.FObjType, anim.TrackTranslateX)
	f.b.PutPtr(fobj+node.FObjData, data)
	aobj := f.b.Alloc(node.AObjSize, 4)
	f.b.PutF32(aobj+node.AObjEndFrame, 10)
	f.b.PutPtr(aobj+node.AObjFObj, fobj)
	f.b.PutPtr(aj+node.AnimJointAObj, aobj)
	return aj, fobj
}

// scene writes a scene descriptor with one joint set under scene_data.
func (f *fixture) scene(joint uint32, animJoints ...uint32) {
	set := f.b.Alloc(node.JointSetSize, 4)
	f.b.PutPtr(set+node.JointSetJoint, joint)
	if len(animJoints) > 0 {
		arr := f.b.Alloc(4*(len(animJoints)+1), 4)
		for i, aj := range animJoints {
			f.b.PutPtr(arr+uint32(4*i), aj)
		}
		f.b.PutPtr(set+node.JointSetAnimJoints, arr)
	}
	sets := f.b.Alloc(8, 4)
	f.b.PutPtr(sets, set)
	desc := f.b.Alloc(node.SceneDescSize, 4)
	f.b.PutPtr(desc+node.SceneDescJointSets, sets)
	f.b.AddRoot(DefaultSection, desc)
}

func (f *fixture) bytes() []byte {
	f.t.Helper()
	data, err := f.b.Bytes()
	if err != nil {
		f.t.Fatal(err)
	}
	return data
}

func linearKeys(t *testing.T, frames ...float64) []byte {
	t.Helper()
	var keys []anim.Key
	for _, fr := range frames {
		keys = append(keys, anim.Key{Frame: fr, Value: fr, Interp: anim.InterpLinear})
	}
	data, err := anim.EncodeKeys(keys, anim.FmtFloat, anim.FmtFloat)
	if err != nil {
		t.Fatal(err)
	}
	return data
}
