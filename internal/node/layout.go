package node

// On-disk struct sizes and field offsets. Shared by the decoder and the
// export writer so both sides agree on the layout.
const (
	JointSize        = 0x40
	JointName        = 0x00
	JointFlags       = 0x04
	JointChild       = 0x08
	JointNext        = 0x0C
	JointObject      = 0x10
	JointRotation    = 0x14
	JointScale       = 0x20
	JointTranslation = 0x2C
	JointMatrix      = 0x38
	JointRObj        = 0x3C

	MatrixSize = 0x30 // 3×4 float32, row-major

	DObjSize     = 0x10
	DObjName     = 0x00
	DObjNext     = 0x04
	DObjMaterial = 0x08
	DObjPolygon  = 0x0C

	MObjSize        = 0x18
	MObjClass       = 0x00
	MObjRenderFlags = 0x04
	MObjTexture     = 0x08
	MObjColors      = 0x0C
	MObjRenderDesc  = 0x10
	MObjPEDesc      = 0x14

	ColorsSize      = 0x14
	ColorsAmbient   = 0x00
	ColorsDiffuse   = 0x04
	ColorsSpecular  = 0x08
	ColorsAlpha     = 0x0C
	ColorsShininess = 0x10

	PEDescSize = 0x0C

	TObjSize        = 0x5C
	TObjName        = 0x00
	TObjNext        = 0x04
	TObjMapID       = 0x08
	TObjSource      = 0x0C
	TObjRotation    = 0x10
	TObjScale       = 0x1C
	TObjTranslation = 0x28
	TObjWrapS       = 0x34
	TObjWrapT       = 0x38
	TObjRepeatS     = 0x3C
	TObjRepeatT     = 0x3D
	TObjFlags       = 0x40
	TObjBlending    = 0x44
	TObjMagFilter   = 0x48
	TObjImage       = 0x4C
	TObjPalette     = 0x50
	TObjLOD         = 0x54
	TObjTEV         = 0x58

	ImageSize   = 0x18
	ImageData   = 0x00
	ImageWidth  = 0x04
	ImageHeight = 0x06
	ImageFormat = 0x08
	ImageMipMap = 0x0C
	ImageMinLOD = 0x10
	ImageMaxLOD = 0x14

	PaletteSize    = 0x10
	PaletteData    = 0x00
	PaletteFormat  = 0x04
	PaletteName    = 0x08
	PaletteEntries = 0x0C

	PObjSize     = 0x18
	PObjName     = 0x00
	PObjNext     = 0x04
	PObjVtxDesc  = 0x08
	PObjFlags    = 0x0C
	PObjDLBlocks = 0x0E
	PObjDL       = 0x10
	PObjEnvelope = 0x14

	VtxDescSize      = 0x18
	VtxDescAttr      = 0x00
	VtxDescIndexType = 0x04
	VtxDescCompCount = 0x08
	VtxDescCompType  = 0x0C
	VtxDescScale     = 0x10
	VtxDescStride    = 0x12
	VtxDescData      = 0x14

	EnvelopeEntrySize = 0x08

	AnimJointSize     = 0x14
	AnimJointChild    = 0x00
	AnimJointNext     = 0x04
	AnimJointAObj     = 0x08
	AnimJointRObjAnim = 0x0C
	AnimJointFlags    = 0x10

	AObjSize     = 0x10
	AObjFlags    = 0x00
	AObjEndFrame = 0x04
	AObjFObj     = 0x08
	AObjObjID    = 0x0C

	FObjSize       = 0x14
	FObjNext       = 0x00
	FObjLength     = 0x04
	FObjStartFrame = 0x08
	FObjType       = 0x0C
	FObjValueFmt   = 0x0D
	FObjSlopeFmt   = 0x0E
	FObjData       = 0x10

	SceneDescSize      = 0x10
	SceneDescJointSets = 0x00
	SceneDescCameras   = 0x04
	SceneDescLights    = 0x08
	SceneDescFog       = 0x0C

	JointSetSize       = 0x10
	JointSetJoint      = 0x00
	JointSetAnimJoints = 0x04
	JointSetMatAnims   = 0x08
	JointSetShapeAnims = 0x0C

	// DisplayListBlock is the unit of PObjDLBlocks.
	DisplayListBlock = 0x20
)

// Joint flags.
const (
	JointSkeleton     uint32 = 1 << 0
	JointSkeletonRoot uint32 = 1 << 1
	JointEnvelope     uint32 = 1 << 2
	JointClassicScale uint32 = 1 << 3
	JointHidden       uint32 = 1 << 4
	JointParticle     uint32 = 1 << 5
	JointLighting     uint32 = 1 << 7
	JointTexGen       uint32 = 1 << 8
	JointInstance     uint32 = 1 << 12
	JointSpline       uint32 = 1 << 14
	JointQuaternion   uint32 = 1 << 17
	JointOpaque       uint32 = 1 << 18
	JointTranslucent  uint32 = 1 << 19
	JointUserMatrix   uint32 = 1 << 23
	JointRootOpaque   uint32 = 1 << 28
	JointRootXLU      uint32 = 1 << 29
)

// Polygon flags. The polygon type lives in bits 12-13.
const (
	PolygonTypeMask  uint16 = 3 << 12
	PolygonSkin      uint16 = 0 << 12
	PolygonShapeAnim uint16 = 1 << 12
	PolygonEnvelope  uint16 = 2 << 12
	PolygonCullFront uint16 = 1 << 14
	PolygonCullBack  uint16 = 1 << 15
)
