package mesh

import "hsd-scene-io/internal/node"

// Vertex is one unique vertex of a polygon.
type Vertex struct {
	Position [3]float32 `msgpack:"p" json:"position"`
	Normal   [3]float32 `msgpack:"n,omitempty" json:"normal,omitempty"`
	Color    [4]uint8   `msgpack:"c,omitempty" json:"color,omitempty"`
	UV       [2]float32 `msgpack:"uv,omitempty" json:"uv,omitempty"`
	// Envelope indexes Polygon.Envelopes, -1 when the vertex has none.
	Envelope int `msgpack:"e" json:"envelope"`
}

// Polygon is one decoded primitive list with its own vertex format.
type Polygon struct {
	Flags     uint16     `msgpack:"flags" json:"flags"`
	HasNormal bool       `msgpack:"has_normal" json:"has_normal"`
	HasColor  bool       `msgpack:"has_color" json:"has_color"`
	HasUV     bool       `msgpack:"has_uv" json:"has_uv"`
	Vertices  []Vertex   `msgpack:"vertices" json:"vertices"`
	Triangles [][3]int32 `msgpack:"triangles" json:"triangles"`
	Envelopes [][]Weight `msgpack:"envelopes,omitempty" json:"envelopes,omitempty"`
	// SkinBone is the single bone a skin polygon is bound to, -1 for none.
	SkinBone int `msgpack:"skin_bone" json:"skin_bone"`
}

// Weight binds an envelope to a bone.
type Weight struct {
	Bone   int     `msgpack:"bone" json:"bone"`
	Weight float32 `msgpack:"weight" json:"weight"`
}

// BoneResolver maps a joint reference to a bone index, -1 when unknown.
type BoneResolver func(node.Ref) int

// Triangle is a flattened triangle with resolved attributes.
type Triangle [3]Vertex

// Flatten expands polygons into independent triangles.
func Flatten(polys []Polygon) []Triangle {
	var out []Triangle
	for _, p := range polys {
		for _, t := range p.Triangles {
			out = append(out, Triangle{p.Vertices[t[0]], p.Vertices[t[1]], p.Vertices[t[2]]})
		}
	}
	return out
}
