package texture

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// MaxSize is the largest edge GX textures support.
const MaxSize = 1024

// Encode converts img to GX texel data in format f. Only the direct-color
// formats used on export are supported.
func Encode(f uint32, img *image.NRGBA) ([]byte, error) {
	b, ok := blocks[f]
	if !ok {
		return nil, fmt.Errorf("texture: unknown format %d", f)
	}
	if f != FormatRGBA8 && f != FormatRGB5A3 && f != FormatI8 {
		return nil, fmt.Errorf("texture: encoding format %d not supported", f)
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]byte, 0, DataSize(f, w, h))
	at := func(x, y int) [4]uint8 {
		if x >= w || y >= h {
			return [4]uint8{}
		}
		i := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
		return [4]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3]}
	}

	for by := 0; by < h; by += b.h {
		for bx := 0; bx < w; bx += b.w {
			switch f {
			case FormatRGBA8:
				var ar, gb [32]byte
				for i := 0; i < 16; i++ {
					c := at(bx+i%4, by+i/4)
					ar[2*i], ar[2*i+1] = c[3], c[0]
					gb[2*i], gb[2*i+1] = c[1], c[2]
				}
				out = append(out, ar[:]...)
				out = append(out, gb[:]...)
			case FormatRGB5A3:
				for i := 0; i < 16; i++ {
					v := toRGB5A3(at(bx+i%4, by+i/4))
					out = append(out, byte(v>>8), byte(v))
				}
			case FormatI8:
				for i := 0; i < 32; i++ {
					c := at(bx+i%8, by+i/8)
					out = append(out, uint8((299*int(c[0])+587*int(c[1])+114*int(c[2]))/1000))
				}
			}
		}
	}
	return out, nil
}

func toRGB5A3(c [4]uint8) uint16 {
	if c[3] >= 0xE0 {
		return 0x8000 | uint16(c[0]>>3)<<10 | uint16(c[1]>>3)<<5 | uint16(c[2]>>3)
	}
	return uint16(c[3]>>5)<<12 | uint16(c[0]>>4)<<8 | uint16(c[1]>>4)<<4 | uint16(c[2]>>4)
}

// Fit rescales img so both edges are powers of two no larger than MaxSize.
// Images that already fit are returned unchanged.
func Fit(img *image.NRGBA) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	tw, th := pow2(w), pow2(h)
	if tw == w && th == h {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Rect, img, img.Rect, draw.Src, nil)
	return dst
}

func pow2(n int) int {
	p := 1
	for p < n && p < MaxSize {
		p <<= 1
	}
	if p > n && p > 1 && p-n > n-p/2 {
		p >>= 1
	}
	return p
}
