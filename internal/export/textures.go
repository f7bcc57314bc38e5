package export

import (
	"image"

	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/texture"
)

// GX wrap mode for repeating textures.
const wrapRepeat = 1

// encodeTexture fits img to GX sizes and encodes it as RGBA8 with default
// repeat-wrapped sampling state.
func encodeTexture(name string, img *image.NRGBA) (scene.Texture, error) {
	img = texture.Fit(img)
	data, err := texture.Encode(texture.FormatRGBA8, img)
	if err != nil {
		return scene.Texture{}, err
	}
	return scene.Texture{
		Name:     name,
		Scale:    [3]float32{1, 1, 1},
		WrapS:    wrapRepeat,
		WrapT:    wrapRepeat,
		RepeatS:  1,
		RepeatT:  1,
		Blending: 1,
		HasImage: true,
		Width:    img.Rect.Dx(),
		Height:   img.Rect.Dy(),
		Format:   texture.FormatRGBA8,
		Data:     data,
	}, nil
}

// ReplaceTextures swaps in images from r for every texture whose
// scene.TextureName resolves. A replaced texture keeps its sampling state
// but becomes RGBA8 with no palette. sc.Textures is copied, not edited in
// place. It returns the number of textures replaced.
func ReplaceTextures(sc *scene.Scene, r texture.Resolver) (int, error) {
	textures := append([]scene.Texture(nil), sc.Textures...)
	n := 0
	for i := range textures {
		name := sc.TextureName(i)
		img := r.Resolve(name)
		if img == nil {
			continue
		}
		enc, err := encodeTexture(name, img)
		if err != nil {
			return n, err
		}
		t := &textures[i]
		t.HasImage = true
		t.Width, t.Height = enc.Width, enc.Height
		t.Format, t.Data = enc.Format, enc.Data
		t.MipMap, t.MinLOD, t.MaxLOD = 0, 0, 0
		t.HasPalette = false
		t.PaletteFormat, t.PaletteName, t.PaletteEntries, t.PaletteData = 0, 0, 0, nil
		n++
	}
	sc.Textures = textures
	return n, nil
}
