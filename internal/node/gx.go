package node

// GX vertex attribute ids.
const (
	AttrPosMtxIdx  uint32 = 0
	AttrTex0MtxIdx uint32 = 1
	AttrTex7MtxIdx uint32 = 8
	AttrPos        uint32 = 9
	AttrNrm        uint32 = 10
	AttrClr0       uint32 = 11
	AttrClr1       uint32 = 12
	AttrTex0       uint32 = 13
	AttrTex7       uint32 = 20
	AttrNull       uint32 = 0xFF
)

// How an attribute appears in the display list.
const (
	IndexNone    uint32 = 0
	IndexDirect  uint32 = 1
	IndexIndex8  uint32 = 2
	IndexIndex16 uint32 = 3
)

// Component types for position, normal and texture coordinates.
const (
	CompU8  uint32 = 0
	CompS8  uint32 = 1
	CompU16 uint32 = 2
	CompS16 uint32 = 3
	CompF32 uint32 = 4
)

// Component types for colors.
const (
	ColorRGB565 uint32 = 0
	ColorRGB8   uint32 = 1
	ColorRGBX8  uint32 = 2
	ColorRGBA4  uint32 = 3
	ColorRGBA6  uint32 = 4
	ColorRGBA8  uint32 = 5
)

// Component counts.
const (
	PosXY   uint32 = 0
	PosXYZ  uint32 = 1
	NrmXYZ  uint32 = 0
	NrmNBT  uint32 = 1
	ClrRGB  uint32 = 0
	ClrRGBA uint32 = 1
	TexS    uint32 = 0
	TexST   uint32 = 1
)

// Display list primitive opcodes; the low three bits select the vertex format.
const (
	PrimQuads         uint8 = 0x80
	PrimTriangles     uint8 = 0x90
	PrimTriangleStrip uint8 = 0x98
	PrimTriangleFan   uint8 = 0xA0
	PrimLines         uint8 = 0xA8
	PrimLineStrip     uint8 = 0xB0
	PrimPoints        uint8 = 0xB8
	PrimMask          uint8 = 0xF8
)
