package texture

import (
	"fmt"
	"image"
)

// GX texture formats.
const (
	FormatI4     uint32 = 0
	FormatI8     uint32 = 1
	FormatIA4    uint32 = 2
	FormatIA8    uint32 = 3
	FormatRGB565 uint32 = 4
	FormatRGB5A3 uint32 = 5
	FormatRGBA8  uint32 = 6
	FormatCI4    uint32 = 8
	FormatCI8    uint32 = 9
	FormatCI14X2 uint32 = 10
	FormatCMPR   uint32 = 14
)

// Palette entry formats.
const (
	PaletteIA8    uint32 = 0
	PaletteRGB565 uint32 = 1
	PaletteRGB5A3 uint32 = 2
)

type blockInfo struct {
	w, h  int
	bytes int
}

var blocks = map[uint32]blockInfo{
	FormatI4:     {8, 8, 32},
	FormatI8:     {8, 4, 32},
	FormatIA4:    {8, 4, 32},
	FormatIA8:    {4, 4, 32},
	FormatRGB565: {4, 4, 32},
	FormatRGB5A3: {4, 4, 32},
	FormatRGBA8:  {4, 4, 64},
	FormatCI4:    {8, 8, 32},
	FormatCI8:    {8, 4, 32},
	FormatCI14X2: {4, 4, 32},
	FormatCMPR:   {8, 8, 32},
}

// KnownFormat reports whether f is a GX texture format.
func KnownFormat(f uint32) bool {
	_, ok := blocks[f]
	return ok
}

// IsIndexed reports whether f needs a palette.
func IsIndexed(f uint32) bool {
	return f == FormatCI4 || f == FormatCI8 || f == FormatCI14X2
}

// DataSize returns the byte size of one w×h level.
func DataSize(f uint32, w, h int) int {
	b, ok := blocks[f]
	if !ok || w <= 0 || h <= 0 {
		return 0
	}
	return ((w + b.w - 1) / b.w) * ((h + b.h - 1) / b.h) * b.bytes
}

// MaxMipLevels is the deepest mip chain GX samples (1024 down to 1).
const MaxMipLevels = 11

// MipDataSize returns the byte size of levels mip levels starting at w×h.
// levels is clamped to [1, MaxMipLevels].
func MipDataSize(f uint32, w, h, levels int) int {
	levels = min(max(levels, 1), MaxMipLevels)
	n := 0
	for l := 0; l < levels; l++ {
		n += DataSize(f, max(w>>l, 1), max(h>>l, 1))
	}
	return n
}

// Decode converts the first level of GX texel data to NRGBA. pal holds the
// raw palette entries for indexed formats.
func Decode(f uint32, w, h int, data []byte, palFmt uint32, pal []byte) (*image.NRGBA, error) {
	b, ok := blocks[f]
	if !ok {
		return nil, fmt.Errorf("texture: unknown format %d", f)
	}
	if need := DataSize(f, w, h); len(data) < need {
		return nil, fmt.Errorf("texture: format %d %dx%d needs %d bytes, have %d", f, w, h, need, len(data))
	}
	if IsIndexed(f) && len(pal) == 0 {
		return nil, fmt.Errorf("texture: format %d needs a palette", f)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	set := func(x, y int, c [4]uint8) {
		if x >= w || y >= h {
			return
		}
		i := img.PixOffset(x, y)
		copy(img.Pix[i:i+4], c[:])
	}
	lookup := func(idx int) [4]uint8 {
		if 2*idx+1 >= len(pal) {
			return [4]uint8{}
		}
		return paletteColor(palFmt, uint16(pal[2*idx])<<8|uint16(pal[2*idx+1]))
	}

	off := 0
	for by := 0; by < h; by += b.h {
		for bx := 0; bx < w; bx += b.w {
			blk := data[off : off+b.bytes]
			off += b.bytes
			switch f {
			case FormatCMPR:
				decodeCMPR(blk, bx, by, set)
				continue
			case FormatRGBA8:
				for i := 0; i < 16; i++ {
					a, r := blk[2*i], blk[2*i+1]
					g, bl := blk[32+2*i], blk[32+2*i+1]
					set(bx+i%4, by+i/4, [4]uint8{r, g, bl, a})
				}
				continue
			}
			for i := 0; i < b.w*b.h; i++ {
				x, y := bx+i%b.w, by+i/b.w
				switch f {
				case FormatI4:
					v := nibble(blk, i) * 0x11
					set(x, y, [4]uint8{v, v, v, 0xFF})
				case FormatI8:
					v := blk[i]
					set(x, y, [4]uint8{v, v, v, 0xFF})
				case FormatIA4:
					a, v := (blk[i]>>4)*0x11, (blk[i]&0xF)*0x11
					set(x, y, [4]uint8{v, v, v, a})
				case FormatIA8:
					a, v := blk[2*i], blk[2*i+1]
					set(x, y, [4]uint8{v, v, v, a})
				case FormatRGB565:
					set(x, y, rgb565(u16(blk, i)))
				case FormatRGB5A3:
					set(x, y, rgb5a3(u16(blk, i)))
				case FormatCI4:
					set(x, y, lookup(int(nibble(blk, i))))
				case FormatCI8:
					set(x, y, lookup(int(blk[i])))
				case FormatCI14X2:
					set(x, y, lookup(int(u16(blk, i)&0x3FFF)))
				}
			}
		}
	}
	return img, nil
}

func nibble(b []byte, i int) uint8 {
	if i%2 == 0 {
		return b[i/2] >> 4
	}
	return b[i/2] & 0xF
}

func u16(b []byte, i int) uint16 {
	return uint16(b[2*i])<<8 | uint16(b[2*i+1])
}

func rgb565(v uint16) [4]uint8 {
	r := uint8(v>>11) & 0x1F
	g := uint8(v>>5) & 0x3F
	b := uint8(v) & 0x1F
	return [4]uint8{r<<3 | r>>2, g<<2 | g>>4, b<<3 | b>>2, 0xFF}
}

func rgb5a3(v uint16) [4]uint8 {
	if v&0x8000 != 0 {
		r := uint8(v>>10) & 0x1F
		g := uint8(v>>5) & 0x1F
		b := uint8(v) & 0x1F
		return [4]uint8{r<<3 | r>>2, g<<3 | g>>2, b<<3 | b>>2, 0xFF}
	}
	a := uint8(v>>12) & 0x7
	r := uint8(v>>8) & 0xF
	g := uint8(v>>4) & 0xF
	b := uint8(v) & 0xF
	return [4]uint8{r * 0x11, g * 0x11, b * 0x11, a<<5 | a<<2 | a>>1}
}

func paletteColor(f uint32, v uint16) [4]uint8 {
	switch f {
	case PaletteIA8:
		a, i := uint8(v>>8), uint8(v)
		return [4]uint8{i, i, i, a}
	case PaletteRGB565:
		return rgb565(v)
	default:
		return rgb5a3(v)
	}
}

// decodeCMPR expands an 8×8 block made of four DXT1 sub-blocks.
func decodeCMPR(blk []byte, bx, by int, set func(x, y int, c [4]uint8)) {
	for sb := 0; sb < 4; sb++ {
		s := blk[sb*8 : sb*8+8]
		c0, c1 := uint16(s[0])<<8|uint16(s[1]), uint16(s[2])<<8|uint16(s[3])
		var pal [4][4]uint8
		pal[0], pal[1] = rgb565(c0), rgb565(c1)
		for k := 0; k < 3; k++ {
			if c0 > c1 {
				pal[2][k] = uint8((2*int(pal[0][k]) + int(pal[1][k])) / 3)
				pal[3][k] = uint8((int(pal[0][k]) + 2*int(pal[1][k])) / 3)
			} else {
				pal[2][k] = uint8((int(pal[0][k]) + int(pal[1][k])) / 2)
			}
		}
		pal[2][3] = 0xFF
		if c0 > c1 {
			pal[3][3] = 0xFF
		}
		ox, oy := bx+(sb%2)*4, by+(sb/2)*4
		for row := 0; row < 4; row++ {
			bits := s[4+row]
			for col := 0; col < 4; col++ {
				idx := (bits >> (6 - 2*col)) & 3
				set(ox+col, oy+row, pal[idx])
			}
		}
	}
}
