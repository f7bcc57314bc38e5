package node

import (
	"fmt"
	"strings"

	"hsd-scene-io/internal/hsd"
)

// Kind is the closed set of node variants. The file does not tag most
// structs, so the kind is chosen by the field that references the node.
type Kind uint8

const (
	KindJoint Kind = iota + 1
	KindDisplayObject
	KindPolygon
	KindMaterial
	KindTextureImage
	KindAnimJoint
	KindAnimKey
	KindSymbol
)

func (k Kind) String() string {
	switch k {
	case KindJoint:
		return "joint"
	case KindDisplayObject:
		return "display object"
	case KindPolygon:
		return "polygon"
	case KindMaterial:
		return "material"
	case KindTextureImage:
		return "texture image"
	case KindAnimJoint:
		return "anim joint"
	case KindAnimKey:
		return "anim key"
	case KindSymbol:
		return "symbol"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// DataKind is the declared content of a root symbol.
type DataKind uint8

const (
	// DataScene: the symbol points at a scene descriptor.
	DataScene DataKind = iota
	// DataBone: the symbol points directly at a root joint.
	DataBone
)

func (k DataKind) String() string {
	if k == DataBone {
		return "BONE"
	}
	return "SCENE"
}

// ParseDataKind accepts "scene" or "bone" in any case.
func ParseDataKind(s string) (DataKind, error) {
	switch strings.ToUpper(s) {
	case "SCENE", "":
		return DataScene, nil
	case "BONE":
		return DataBone, nil
	}
	return 0, fmt.Errorf("node: unknown data kind %q", s)
}

// Ref indexes Graph.Nodes. Two equal Refs are the same node.
type Ref int32

// NilRef is the null reference.
const NilRef Ref = -1

// Valid reports whether r refers to a node.
func (r Ref) Valid() bool { return r >= 0 }

// Node is implemented by exactly the variant types in this package.
type Node interface {
	Kind() Kind
	// Offset is the data-relative offset the node was decoded from.
	Offset() uint32
	sealed()
}

type base struct {
	off uint32
}

func (b base) Offset() uint32 { return b.off }
func (base) sealed()          {}

// Joint is a JOBJ.
type Joint struct {
	base
	Name        string
	Flags       uint32
	Rotation    [3]float32 // Euler XYZ, radians
	Scale       [3]float32
	Translation [3]float32
	// Matrix is the stored 3×4 matrix. It is the inverse bind matrix unless
	// JointUserMatrix is set, in which case it replaces the TRS fields.
	Matrix *[12]float32
	Child  Ref
	Next   Ref
	// Object is the first display object of the attached chain.
	Object Ref
}

func (*Joint) Kind() Kind { return KindJoint }

// UsesMatrix reports whether the local transform comes from Matrix.
func (j *Joint) UsesMatrix() bool {
	return j.Flags&JointUserMatrix != 0 && j.Matrix != nil
}

// DisplayObject is a DOBJ: one material applied to a chain of polygons.
type DisplayObject struct {
	base
	Name     string
	Next     Ref
	Material Ref
	Polygon  Ref
}

func (*DisplayObject) Kind() Kind { return KindDisplayObject }

// VertexAttr is one GX vertex descriptor entry.
type VertexAttr struct {
	Attr      uint32
	IndexType uint32
	CompCount uint32
	CompType  uint32
	Scale     uint8
	Stride    uint16
	// Data is the attribute buffer from its start to the end of the data
	// section; the buffer length is implied by the largest index used.
	Data       []byte
	DataOffset uint32
	HasData    bool
}

// EnvelopeWeight binds a polygon vertex to a joint.
type EnvelopeWeight struct {
	Joint  Ref
	Weight float32
}

// Polygon is a POBJ: a vertex format plus a GX display list.
type Polygon struct {
	base
	Name        string
	Next        Ref
	Attrs       []VertexAttr
	Flags       uint16
	DisplayList []byte
	// Envelopes is set for envelope polygons; a vertex's PNMTXIDX / 3
	// selects the envelope.
	Envelopes [][]EnvelopeWeight
	// SkinJoint is the single bound joint of a skin polygon, if any.
	SkinJoint Ref
}

func (*Polygon) Kind() Kind { return KindPolygon }

// Type returns the polygon type bits.
func (p *Polygon) Type() uint16 { return p.Flags & PolygonTypeMask }

// Material is a MOBJ together with its color block.
type Material struct {
	base
	Name        string
	RenderFlags uint32
	Texture     Ref
	HasColors   bool
	Ambient     [4]uint8
	Diffuse     [4]uint8
	Specular    [4]uint8
	Alpha       float32
	Shininess   float32
	PEDesc      []byte
}

func (*Material) Kind() Kind { return KindMaterial }

// Image is the texel payload of a texture.
type Image struct {
	Width, Height uint16
	Format        uint32
	MipMap        uint32
	MinLOD        float32
	MaxLOD        float32
	Data          []byte
}

// Palette is a TLUT for color-indexed formats.
type Palette struct {
	Format  uint32
	Name    uint32
	Entries uint16
	Data    []byte
}

// TextureImage is a TOBJ with its image and optional palette.
type TextureImage struct {
	base
	Name        string
	Next        Ref
	MapID       uint32
	Source      uint32
	Rotation    [3]float32
	Scale       [3]float32
	Translation [3]float32
	WrapS       uint32
	WrapT       uint32
	RepeatS     uint8
	RepeatT     uint8
	Flags       uint32
	Blending    float32
	MagFilter   uint32
	Image       *Image
	Palette     *Palette
}

func (*TextureImage) Kind() Kind { return KindTextureImage }

// AnimJoint mirrors the joint tree and carries the per-joint tracks.
type AnimJoint struct {
	base
	Child Ref
	Next  Ref
	Flags uint32
	// HasAnim is false when the AOBJ pointer is null.
	HasAnim   bool
	AnimFlags uint32
	EndFrame  float32
	ObjID     uint32
	// Keys is the first FOBJ of the track chain.
	Keys Ref
}

func (*AnimJoint) Kind() Kind { return KindAnimJoint }

// AnimKey is one FOBJ: the encoded keys of a single channel.
type AnimKey struct {
	base
	Next       Ref
	Type       uint8
	ValueFmt   uint8
	SlopeFmt   uint8
	StartFrame float32
	Data       []byte
	// Err is set when the key bytes could not be read. The track is dropped
	// and the rest of the chain still decodes.
	Err *hsd.Error
}

func (*AnimKey) Kind() Kind { return KindAnimKey }

// JointSet pairs a model root with its animations.
type JointSet struct {
	Joint      Ref
	AnimJoints []Ref
	// MatAnims and ShapeAnims count the entries the decoder skipped.
	MatAnims   int
	ShapeAnims int
}

// Symbol is a named root: either a scene descriptor or a bare joint.
type Symbol struct {
	base
	Name     string
	DataKind DataKind
	// Joint is the root joint for DataBone symbols.
	Joint Ref
	// Sets holds the scene descriptor's joint sets for DataScene symbols.
	Sets []JointSet
}

func (*Symbol) Kind() Kind { return KindSymbol }
