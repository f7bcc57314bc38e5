package anim

import (
	"fmt"
	"math"

	"hsd-scene-io/internal/hsd"
)

// Interp is the interpolation opcode of a key.
type Interp uint8

const (
	InterpNone     Interp = 0
	InterpConstant Interp = 1
	InterpLinear   Interp = 2
	InterpSpline0  Interp = 3 // spline with zero slope
	InterpSpline   Interp = 4
	InterpSlope    Interp = 5 // slope change only, no key
	InterpKey      Interp = 6
)

func (i Interp) String() string {
	switch i {
	case InterpNone:
		return "none"
	case InterpConstant:
		return "con"
	case InterpLinear:
		return "lin"
	case InterpSpline0:
		return "spl0"
	case InterpSpline:
		return "spl"
	case InterpSlope:
		return "slp"
	case InterpKey:
		return "key"
	}
	return fmt.Sprintf("interp(%d)", uint8(i))
}

// Key is one decoded keyframe. OutSlope differs from InSlope only when the
// stream carried a slope op after the key.
type Key struct {
	Frame    float64 `msgpack:"f" json:"frame"`
	Value    float64 `msgpack:"v" json:"value"`
	InSlope  float64 `msgpack:"si" json:"in_slope"`
	OutSlope float64 `msgpack:"so" json:"out_slope"`
	Interp   Interp  `msgpack:"i" json:"interp"`
}

// Value encodings: the top three bits of a format byte select the type, the
// low five bits the fixed-point fraction.
const (
	FmtFloat uint8 = 0 << 5
	FmtS16   uint8 = 1 << 5
	FmtU16   uint8 = 2 << 5
	FmtS8    uint8 = 3 << 5
	FmtU8    uint8 = 4 << 5
	fmtMask  uint8 = 7 << 5
	fracMask uint8 = 0x1F
)

type keyReader struct {
	data []byte
	pos  int
	err  error
}

func (r *keyReader) byte() uint8 {
	if r.pos >= len(r.data) {
		if r.err == nil {
			r.err = hsd.Errorf(hsd.AnimationDecodeWarning, int64(r.pos), "key stream ends mid-key")
		}
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *keyReader) value(f uint8) float64 {
	scale := 1 / float64(uint32(1)<<(f&fracMask))
	switch f & fmtMask {
	case FmtFloat:
		v := uint32(r.byte())<<24 | uint32(r.byte())<<16 | uint32(r.byte())<<8 | uint32(r.byte())
		return float64(math.Float32frombits(v))
	case FmtS16:
		return float64(int16(uint16(r.byte())<<8|uint16(r.byte()))) * scale
	case FmtU16:
		return float64(uint16(r.byte())<<8|uint16(r.byte())) * scale
	case FmtS8:
		return float64(int8(r.byte())) * scale
	case FmtU8:
		return float64(r.byte()) * scale
	}
	if r.err == nil {
		r.err = hsd.Errorf(hsd.AnimationDecodeWarning, int64(r.pos), "value format 0x%02x", f)
	}
	return 0
}

func (r *keyReader) varint() uint32 {
	var v uint32
	for shift := 0; shift < 35; shift += 7 {
		b := r.byte()
		v |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return v
		}
	}
	if r.err == nil {
		r.err = hsd.Errorf(hsd.AnimationDecodeWarning, int64(r.pos), "frame wait overflows")
	}
	return v
}

// MaxKeyFrame bounds key frames in both directions. Streams that place a key
// further out are malformed.
const MaxKeyFrame = 1 << 20

func validFrame(f float64) bool {
	return !math.IsNaN(f) && f >= -MaxKeyFrame && f <= MaxKeyFrame
}

// DecodeKeys parses an encoded key stream. The first key sits at startFrame.
// Key ops carry a value and no wait, so the following key shares their frame.
func DecodeKeys(data []byte, valueFmt, slopeFmt uint8, startFrame float64) ([]Key, error) {
	if !validFrame(startFrame) {
		return nil, hsd.Errorf(hsd.AnimationDecodeWarning, 0, "start frame %g", startFrame)
	}
	r := &keyReader{data: data}
	var keys []Key
	frame := startFrame
	for r.pos < len(data) && r.err == nil {
		op := r.byte()
		interp := Interp(op & 0x0F)
		count := uint32(op>>4) & 7
		for shift := 3; op&0x80 != 0 && r.err == nil; shift += 7 {
			op = r.byte()
			count |= uint32(op&0x7F) << shift
		}
		count++

		if interp == InterpNone {
			if op == 0 {
				break // zero padding
			}
			return keys, hsd.Errorf(hsd.AnimationDecodeWarning, int64(r.pos-1), "key op with no interpolation")
		}
		if interp > InterpKey {
			return keys, hsd.Errorf(hsd.AnimationDecodeWarning, int64(r.pos-1), "interpolation %d", interp)
		}

		for i := uint32(0); i < count && r.err == nil; i++ {
			if interp == InterpSlope {
				s := r.value(slopeFmt)
				if len(keys) > 0 {
					keys[len(keys)-1].OutSlope = s
				}
				continue
			}
			k := Key{Frame: frame, Interp: interp}
			k.Value = r.value(valueFmt)
			if interp == InterpSpline {
				k.InSlope = r.value(slopeFmt)
				k.OutSlope = k.InSlope
			}
			if interp != InterpKey {
				frame += float64(r.varint())
			}
			if !validFrame(frame) {
				return keys, hsd.Errorf(hsd.AnimationDecodeWarning, int64(r.pos), "key frame %g", frame)
			}
			keys = append(keys, k)
		}
	}
	if r.err != nil {
		return keys, r.err
	}
	return keys, nil
}

type keyWriter struct {
	out []byte
}

func (w *keyWriter) value(f uint8, v float64) {
	scale := float64(uint32(1) << (f & fracMask))
	switch f & fmtMask {
	case FmtFloat:
		b := math.Float32bits(float32(v))
		w.out = append(w.out, byte(b>>24), byte(b>>16), byte(b>>8), byte(b))
	case FmtS16:
		q := int16(clampRound(v*scale, math.MinInt16, math.MaxInt16))
		w.out = append(w.out, byte(uint16(q)>>8), byte(q))
	case FmtU16:
		q := uint16(clampRound(v*scale, 0, math.MaxUint16))
		w.out = append(w.out, byte(q>>8), byte(q))
	case FmtS8:
		w.out = append(w.out, byte(int8(clampRound(v*scale, math.MinInt8, math.MaxInt8))))
	case FmtU8:
		w.out = append(w.out, byte(clampRound(v*scale, 0, math.MaxUint8)))
	}
}

func (w *keyWriter) varint(v uint32) {
	for v >= 0x80 {
		w.out = append(w.out, byte(v)|0x80)
		v >>= 7
	}
	w.out = append(w.out, byte(v))
}

func (w *keyWriter) op(interp Interp, count int) {
	c := uint32(count - 1)
	b := byte(interp) | byte(c&7)<<4
	c >>= 3
	if c != 0 {
		b |= 0x80
	}
	w.out = append(w.out, b)
	for c != 0 {
		b = byte(c & 0x7F)
		c >>= 7
		if c != 0 {
			b |= 0x80
		}
		w.out = append(w.out, b)
	}
}

func clampRound(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, math.Round(v)))
}

// EncodeKeys is the inverse of DecodeKeys. Consecutive keys with the same
// interpolation share one op; a key whose OutSlope differs from its InSlope
// ends its run and is followed by a slope op.
func EncodeKeys(keys []Key, valueFmt, slopeFmt uint8) ([]byte, error) {
	w := &keyWriter{}
	for i := 0; i < len(keys); {
		k := keys[i]
		if k.Interp == InterpNone || k.Interp == InterpSlope || k.Interp > InterpKey {
			return nil, fmt.Errorf("anim: key %d has interpolation %s", i, k.Interp)
		}
		j := i + 1
		for j < len(keys) && keys[j].Interp == k.Interp && keys[j-1].OutSlope == keys[j-1].InSlope {
			j++
		}
		w.op(k.Interp, j-i)
		for n := i; n < j; n++ {
			w.value(valueFmt, keys[n].Value)
			if k.Interp == InterpSpline {
				w.value(slopeFmt, keys[n].InSlope)
			}
			wait := 0.0
			if n+1 < len(keys) {
				wait = keys[n+1].Frame - keys[n].Frame
			}
			if wait < 0 {
				return nil, fmt.Errorf("anim: key %d at frame %g precedes key %d", n+1, keys[n+1].Frame, n)
			}
			if k.Interp == InterpKey {
				if wait != 0 {
					return nil, fmt.Errorf("anim: key op %d at frame %g is followed by frame %g", n, keys[n].Frame, keys[n+1].Frame)
				}
				continue
			}
			w.varint(uint32(math.Round(wait)))
		}
		if last := keys[j-1]; last.OutSlope != last.InSlope {
			w.op(InterpSlope, 1)
			w.value(slopeFmt, last.OutSlope)
		}
		i = j
	}
	return w.out, nil
}
