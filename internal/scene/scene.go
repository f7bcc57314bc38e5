package scene

import (
	"fmt"
	"image"

	"hsd-scene-io/internal/anim"
	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/mesh"
	"hsd-scene-io/internal/node"
	"hsd-scene-io/internal/skeleton"
	"hsd-scene-io/internal/texture"
)

// Scene is the importer's result and the exporter's input. Geometry, local
// transforms and key data stay in HSD source space; Conversion maps that
// space to the caller's and is reflected in every bone's World matrix.
type Scene struct {
	Symbol     string              `msgpack:"symbol" json:"symbol"`
	Kind       node.DataKind       `msgpack:"kind" json:"kind"`
	Conversion skeleton.Conversion `msgpack:"conversion" json:"conversion"`
	Models     []Model             `msgpack:"models" json:"models"`
	Meshes     []Mesh              `msgpack:"meshes" json:"meshes"`
	Materials  []Material          `msgpack:"materials" json:"materials"`
	Textures   []Texture           `msgpack:"textures" json:"textures"`
	// Warnings holds animation decode problems and skipped sub-trees.
	Warnings []error `msgpack:"-" json:"-"`
}

// Model is one joint tree with the animations that drive it.
type Model struct {
	Skeleton   *skeleton.Skeleton `msgpack:"skeleton" json:"skeleton"`
	Animations []*anim.Animation  `msgpack:"animations,omitempty" json:"animations,omitempty"`
	// Selected marks models written when export runs with UseSelection.
	Selected bool `msgpack:"selected" json:"selected"`
}

// Mesh is the geometry of one display object.
type Mesh struct {
	Name     string         `msgpack:"name,omitempty" json:"name,omitempty"`
	Material int            `msgpack:"material" json:"material"`
	Polygons []mesh.Polygon `msgpack:"polygons" json:"polygons"`
}

// Material is the subset of MOBJ state the exporter reproduces.
type Material struct {
	Name        string   `msgpack:"name,omitempty" json:"name,omitempty"`
	RenderFlags uint32   `msgpack:"render_flags" json:"render_flags"`
	HasColors   bool     `msgpack:"has_colors" json:"has_colors"`
	Ambient     [4]uint8 `msgpack:"ambient" json:"ambient"`
	Diffuse     [4]uint8 `msgpack:"diffuse" json:"diffuse"`
	Specular    [4]uint8 `msgpack:"specular" json:"specular"`
	Alpha       float32  `msgpack:"alpha" json:"alpha"`
	Shininess   float32  `msgpack:"shininess" json:"shininess"`
	PEDesc      []byte   `msgpack:"pe,omitempty" json:"pe,omitempty"`
	// Textures indexes Scene.Textures in chain order.
	Textures []int `msgpack:"textures,omitempty" json:"textures,omitempty"`
}

// Texture is a texture object with its encoded image.
type Texture struct {
	Name        string     `msgpack:"name,omitempty" json:"name,omitempty"`
	MapID       uint32     `msgpack:"map_id" json:"map_id"`
	Source      uint32     `msgpack:"source" json:"source"`
	Rotation    [3]float32 `msgpack:"r" json:"rotation"`
	Scale       [3]float32 `msgpack:"s" json:"scale"`
	Translation [3]float32 `msgpack:"t" json:"translation"`
	WrapS       uint32     `msgpack:"wrap_s" json:"wrap_s"`
	WrapT       uint32     `msgpack:"wrap_t" json:"wrap_t"`
	RepeatS     uint8      `msgpack:"repeat_s" json:"repeat_s"`
	RepeatT     uint8      `msgpack:"repeat_t" json:"repeat_t"`
	Flags       uint32     `msgpack:"flags" json:"flags"`
	Blending    float32    `msgpack:"blending" json:"blending"`
	MagFilter   uint32     `msgpack:"mag_filter" json:"mag_filter"`

	HasImage bool    `msgpack:"has_image" json:"has_image"`
	Width    int     `msgpack:"width" json:"width"`
	Height   int     `msgpack:"height" json:"height"`
	Format   uint32  `msgpack:"format" json:"format"`
	MipMap   uint32  `msgpack:"mipmap" json:"mipmap"`
	MinLOD   float32 `msgpack:"min_lod" json:"min_lod"`
	MaxLOD   float32 `msgpack:"max_lod" json:"max_lod"`
	Data     []byte  `msgpack:"data,omitempty" json:"data,omitempty"`

	HasPalette     bool   `msgpack:"has_palette" json:"has_palette"`
	PaletteFormat  uint32 `msgpack:"pal_format" json:"pal_format"`
	PaletteName    uint32 `msgpack:"pal_name" json:"pal_name"`
	PaletteEntries uint16 `msgpack:"pal_entries" json:"pal_entries"`
	PaletteData    []byte `msgpack:"pal_data,omitempty" json:"pal_data,omitempty"`
}

// Image decodes the first mip level.
func (t *Texture) Image() (*image.NRGBA, error) {
	return texture.Decode(t.Format, t.Width, t.Height, t.Data, t.PaletteFormat, t.PaletteData)
}

// TextureName is the texture's own name, or tex_NNN by index when the
// texture object carries none.
func (s *Scene) TextureName(i int) string {
	if n := s.Textures[i].Name; n != "" {
		return n
	}
	return fmt.Sprintf("tex_%03d", i)
}

// Pose returns the world matrix of every bone of model m at frame f of
// animation a. Bones without a track hold their bind channels; bones driven
// by a user matrix keep it.
func (s *Scene) Pose(m, a, f int) []mathutil.Mat4 {
	model := s.Models[m]
	sk := model.Skeleton
	var an *anim.Animation
	if a >= 0 && a < len(model.Animations) && model.Animations[a].FrameCount > 0 {
		an = model.Animations[a]
		f = min(max(f, 0), an.FrameCount-1)
	}

	world := make([]mathutil.Mat4, len(sk.Bones))
	root := sk.Conversion.Matrix()
	for i, b := range sk.Bones {
		l := b.Local
		if an != nil && b.Matrix == nil {
			c := an.Channels(i, f, anim.BindChannels(b.Translation, b.Rotation, b.Scale))
			l = mathutil.FromTRS(
				mathutil.Vec3{c[anim.TranslateX], c[anim.TranslateY], c[anim.TranslateZ]},
				mathutil.Vec3{c[anim.RotateX], c[anim.RotateY], c[anim.RotateZ]},
				mathutil.Vec3{c[anim.ScaleX], c[anim.ScaleY], c[anim.ScaleZ]},
			)
		}
		if b.Parent >= 0 {
			world[i] = mathutil.Mat4Mul(world[b.Parent], l)
		} else {
			world[i] = mathutil.Mat4Mul(root, l)
		}
	}
	return world
}
