package anim

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"hsd-scene-io/internal/hsd"
)

func TestSampleCutoff(t *testing.T) {
	tr := Track{Channel: TranslateY, Keys: []Key{
		{Frame: 0, Value: 0, Interp: InterpLinear},
		{Frame: 5, Value: 10, Interp: InterpLinear},
		{Frame: 20, Value: 40, Interp: InterpLinear},
	}}

	got := tr.Sample(Options{MaxFrame: 10, UseMaxFrame: true})
	if len(got) != 11 {
		t.Fatalf("sampled %d frames, want 11", len(got))
	}
	want := map[int]float64{0: 0, 1: 2, 5: 10, 10: 20}
	for f, v := range want {
		if math.Abs(got[f]-v) > 1e-9 {
			t.Errorf("frame %d = %g, want %g", f, got[f], v)
		}
	}

	full := tr.Sample(Options{MaxFrame: 10})
	if len(full) != 21 {
		t.Errorf("without cutoff sampled %d frames, want 21", len(full))
	}
}

func TestEvalInterpolation(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		tr := Track{Keys: []Key{{Frame: 0, Value: 1, Interp: InterpConstant}, {Frame: 4, Value: 3, Interp: InterpConstant}}}
		if v := tr.Eval(3.9); v != 1 {
			t.Errorf("got %g", v)
		}
		if v := tr.Eval(4); v != 3 {
			t.Errorf("got %g", v)
		}
		if v := tr.Eval(100); v != 3 {
			t.Errorf("hold after last key: %g", v)
		}
	})
	t.Run("SplineEndpoints", func(t *testing.T) {
		tr := Track{Keys: []Key{
			{Frame: 0, Value: 2, InSlope: 1, OutSlope: 1, Interp: InterpSpline},
			{Frame: 10, Value: 5, InSlope: -1, OutSlope: -1, Interp: InterpSpline},
		}}
		if v := tr.Eval(0); v != 2 {
			t.Errorf("start = %g", v)
		}
		if v := tr.Eval(10); v != 5 {
			t.Errorf("end = %g", v)
		}
		// a flat spline is a smoothstep between the values
		flat := Track{Keys: []Key{{Frame: 0, Value: 0, Interp: InterpSpline0}, {Frame: 2, Value: 4, Interp: InterpSpline0}}}
		if v := flat.Eval(1); math.Abs(v-2) > 1e-12 {
			t.Errorf("midpoint = %g", v)
		}
	})
}

func TestKeyCodecRoundTrip(t *testing.T) {
	var keys []Key
	for i := 0; i < 12; i++ {
		keys = append(keys, Key{Frame: float64(i * 3), Value: float64(i) * 0.25, Interp: InterpLinear})
	}
	keys = append(keys,
		Key{Frame: 36, Value: 1.5, InSlope: 0.5, OutSlope: 0.5, Interp: InterpSpline},
		Key{Frame: 40, Value: -2, InSlope: 0.25, OutSlope: -0.75, Interp: InterpSpline},
		Key{Frame: 300, Value: 3, Interp: InterpConstant},
	)

	for _, f := range []struct {
		name         string
		value, slope uint8
	}{
		{"Float", FmtFloat, FmtFloat},
		{"S16", FmtS16 | 8, FmtS16 | 8},
	} {
		t.Run(f.name, func(t *testing.T) {
			data, err := EncodeKeys(keys, f.value, f.slope)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := DecodeKeys(data, f.value, f.slope, 0)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got) != len(keys) {
				t.Fatalf("decoded %d keys, want %d", len(got), len(keys))
			}
			for i := range keys {
				if got[i] != keys[i] {
					t.Errorf("key %d = %+v, want %+v", i, got[i], keys[i])
				}
			}
			again, err := EncodeKeys(got, f.value, f.slope)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(again, data) {
				t.Error("re-encoding decoded keys changed the bytes")
			}
		})
	}
}

func TestDecodeKeysMalformed(t *testing.T) {
	tests := map[string][]byte{
		"Truncated":  {byte(InterpLinear), 0x3F, 0x80},
		"BadInterp":  {0x09, 0, 0, 0, 0, 1},
		"NoInterp":   {0x10},
		"LongVarint": {byte(InterpConstant), 0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeKeys(data, FmtFloat, FmtFloat, 0)
			if !errors.Is(err, hsd.ErrAnimationDecode) {
				t.Errorf("got %v", err)
			}
		})
	}
}

func TestDecodeKeysRejectsFrames(t *testing.T) {
	one := []byte{byte(InterpConstant), 0x3F, 0x80, 0, 0, 0}
	for _, start := range []float64{math.Inf(1), math.Inf(-1), math.NaN(), 2 * MaxKeyFrame} {
		if _, err := DecodeKeys(one, FmtFloat, FmtFloat, start); !errors.Is(err, hsd.ErrAnimationDecode) {
			t.Errorf("start %g: got %v", start, err)
		}
	}

	// a wait of 1<<21 frames
	far := []byte{byte(InterpConstant), 0x3F, 0x80, 0, 0, 0x80, 0x80, 0x80, 0x01}
	if _, err := DecodeKeys(far, FmtFloat, FmtFloat, 0); !errors.Is(err, hsd.ErrAnimationDecode) {
		t.Errorf("far key: got %v", err)
	}
}

func TestKeyOpHasNoWait(t *testing.T) {
	// key 1.0, then a linear key 2.0 waiting 4 frames
	data := []byte{
		byte(InterpKey), 0x3F, 0x80, 0, 0,
		byte(InterpLinear), 0x40, 0, 0, 0, 4,
	}
	keys, err := DecodeKeys(data, FmtFloat, FmtFloat, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0].Frame != 3 || keys[1].Frame != 3 || keys[1].Value != 2 {
		t.Fatalf("keys = %+v", keys)
	}
	out, err := EncodeKeys(keys, FmtFloat, FmtFloat)
	if err != nil {
		t.Fatal(err)
	}
	// the final wait is written as zero
	want := append(append([]byte{}, data[:len(data)-1]...), 0)
	if !bytes.Equal(out, want) {
		t.Errorf("re-encoded % x", out)
	}

	bad := []Key{{Frame: 0, Value: 1, Interp: InterpKey}, {Frame: 2, Value: 1, Interp: InterpLinear}}
	if _, err := EncodeKeys(bad, FmtFloat, FmtFloat); err == nil {
		t.Error("key op followed by a later frame encoded without error")
	}
}

func TestSampleBoundsFrames(t *testing.T) {
	huge := Track{Keys: []Key{{Frame: 0, Interp: InterpConstant}, {Frame: 1e12, Interp: InterpConstant}}}
	if n := huge.frames(0, false); n != MaxKeyFrame+1 {
		t.Errorf("frames = %d", n)
	}
	nan := Track{Keys: []Key{{Frame: math.NaN(), Interp: InterpConstant}}}
	if got := nan.Sample(Options{MaxFrame: 10, UseMaxFrame: true}); len(got) != 0 {
		t.Errorf("NaN track sampled %d frames", len(got))
	}
}

func TestDecodeKeysPadding(t *testing.T) {
	data, err := EncodeKeys([]Key{{Frame: 0, Value: 1, Interp: InterpKey}}, FmtFloat, FmtFloat)
	if err != nil {
		t.Fatal(err)
	}
	keys, err := DecodeKeys(append(data, 0, 0, 0), FmtFloat, FmtFloat, 0)
	if err != nil || len(keys) != 1 {
		t.Errorf("keys = %v, err = %v", keys, err)
	}
}

func TestChannels(t *testing.T) {
	a := &Animation{Bones: []BoneAnimation{{
		Tracks: []Track{{Channel: RotateZ, Keys: []Key{{Frame: 0, Value: 1, Interp: InterpLinear}, {Frame: 2, Value: 3, Interp: InterpLinear}}}},
	}}}
	a.Resample(Options{})
	if a.FrameCount != 3 {
		t.Fatalf("frame count = %d", a.FrameCount)
	}
	if a.Bones[0].Samples[TranslateX] != nil {
		t.Error("unanimated channel was sampled")
	}

	bind := BindChannels([3]float64{4, 5, 6}, [3]float64{}, [3]float64{1, 1, 1})
	c := a.Channels(0, 1, bind)
	if c[RotateZ] != 2 || c[TranslateY] != 5 || c[ScaleX] != 1 {
		t.Errorf("channels = %v", c)
	}
	if c := a.Channels(0, 50, bind); c[RotateZ] != 3 {
		t.Errorf("past end = %g", c[RotateZ])
	}

	poses := a.Poses([][NumChannels]float64{bind})
	if len(poses) != 3 || poses[2].Local[0].Translation()[0] != 4 {
		t.Errorf("poses = %+v", poses)
	}
}

func TestChannelTrackTypes(t *testing.T) {
	for c := Channel(0); c < NumChannels; c++ {
		got, ok := ChannelOf(c.TrackType())
		if !ok || got != c {
			t.Errorf("channel %s round-trips to %s", c, got)
		}
	}
	if _, ok := ChannelOf(TrackPath); ok {
		t.Error("path track mapped to a channel")
	}
}
