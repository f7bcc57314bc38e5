package anim

import (
	"math"
	"sort"
)

// Channel is one of the nine joint transform channels.
type Channel uint8

const (
	TranslateX Channel = iota
	TranslateY
	TranslateZ
	RotateX
	RotateY
	RotateZ
	ScaleX
	ScaleY
	ScaleZ
	NumChannels
)

var channelNames = [NumChannels]string{"tx", "ty", "tz", "rx", "ry", "rz", "sx", "sy", "sz"}

func (c Channel) String() string {
	if c < NumChannels {
		return channelNames[c]
	}
	return "channel?"
}

// Joint track types as stored in the FOBJ type byte.
const (
	TrackRotateX    uint8 = 1
	TrackRotateY    uint8 = 2
	TrackRotateZ    uint8 = 3
	TrackPath       uint8 = 4
	TrackTranslateX uint8 = 5
	TrackTranslateY uint8 = 6
	TrackTranslateZ uint8 = 7
	TrackScaleX     uint8 = 8
	TrackScaleY     uint8 = 9
	TrackScaleZ     uint8 = 10
	TrackNode       uint8 = 11
	TrackBranch     uint8 = 12
)

// ChannelOf maps a track type to its channel. ok is false for track types
// that do not drive a transform channel.
func ChannelOf(trackType uint8) (Channel, bool) {
	switch trackType {
	case TrackTranslateX, TrackTranslateY, TrackTranslateZ:
		return TranslateX + Channel(trackType-TrackTranslateX), true
	case TrackRotateX, TrackRotateY, TrackRotateZ:
		return RotateX + Channel(trackType-TrackRotateX), true
	case TrackScaleX, TrackScaleY, TrackScaleZ:
		return ScaleX + Channel(trackType-TrackScaleX), true
	}
	return 0, false
}

// TrackType is the inverse of ChannelOf.
func (c Channel) TrackType() uint8 {
	switch {
	case c <= TranslateZ:
		return TrackTranslateX + uint8(c-TranslateX)
	case c <= RotateZ:
		return TrackRotateX + uint8(c-RotateX)
	default:
		return TrackScaleX + uint8(c-ScaleX)
	}
}

// Track is the decoded key list of one channel.
type Track struct {
	Channel    Channel `msgpack:"channel" json:"channel"`
	ValueFmt   uint8   `msgpack:"value_fmt" json:"value_fmt"`
	SlopeFmt   uint8   `msgpack:"slope_fmt" json:"slope_fmt"`
	StartFrame float32 `msgpack:"start_frame" json:"start_frame"`
	Keys       []Key   `msgpack:"keys" json:"keys"`
}

// LastFrame returns the frame of the final key, or -1 for an empty track.
func (t *Track) LastFrame() float64 {
	if len(t.Keys) == 0 {
		return -1
	}
	return t.Keys[len(t.Keys)-1].Frame
}

// Eval evaluates the track at frame. Before the first key the first value
// holds; after the last key the last value holds.
func (t *Track) Eval(frame float64) float64 {
	keys := t.Keys
	if len(keys) == 0 {
		return 0
	}
	if frame <= keys[0].Frame {
		return keys[0].Value
	}
	// index of the first key after frame
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Frame > frame })
	if i == len(keys) {
		return keys[len(keys)-1].Value
	}
	k0, k1 := keys[i-1], keys[i]
	d := k1.Frame - k0.Frame
	if d <= 0 {
		return k1.Value
	}
	u := (frame - k0.Frame) / d

	switch k0.Interp {
	case InterpLinear:
		return k0.Value + (k1.Value-k0.Value)*u
	case InterpSpline, InterpSpline0:
		return hermite(k0.Value, k1.Value, k0.OutSlope*d, k1.InSlope*d, u)
	default:
		return k0.Value
	}
}

// hermite evaluates the cubic Hermite basis at u in [0,1] with tangents
// already scaled to the segment length.
func hermite(p0, p1, m0, m1, u float64) float64 {
	u2 := u * u
	u3 := u2 * u
	return (2*u3-3*u2+1)*p0 + (u3-2*u2+u)*m0 + (-2*u3+3*u2)*p1 + (u3-u2)*m1
}

// frames returns the number of integer frames sampled for t.
func (t *Track) frames(maxFrame int, useMax bool) int {
	last := t.LastFrame()
	if !(last >= 0) {
		return 0
	}
	n := int(math.Floor(min(last, MaxKeyFrame)))
	if useMax && n > maxFrame {
		n = max(maxFrame, 0)
	}
	return n + 1
}
