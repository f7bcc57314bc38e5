package anim

import (
	"hsd-scene-io/internal/hsd"
	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/node"
)

// Options bounds the sampled range.
type Options struct {
	MaxFrame    int
	UseMaxFrame bool
}

// BoneAnimation holds the tracks of one joint and their per-frame samples.
type BoneAnimation struct {
	// Parent is the index of the parent animation joint, -1 for roots.
	Parent    int     `msgpack:"parent" json:"parent"`
	Flags     uint32  `msgpack:"flags" json:"flags"`
	HasAnim   bool    `msgpack:"has_anim" json:"has_anim"`
	AnimFlags uint32  `msgpack:"anim_flags" json:"anim_flags"`
	EndFrame  float32 `msgpack:"end_frame" json:"end_frame"`
	ObjID     uint32  `msgpack:"obj_id" json:"obj_id"`
	Tracks    []Track `msgpack:"tracks" json:"tracks"`
	// Samples[c] is nil when channel c has no track.
	Samples [NumChannels][]float64 `msgpack:"samples" json:"samples"`
}

// Animation is one animation joint tree lowered to sampled channels. Bones is
// index-aligned with the skeleton's pre-order bone list.
type Animation struct {
	Bones      []BoneAnimation `msgpack:"bones" json:"bones"`
	FrameCount int             `msgpack:"frame_count" json:"frame_count"`
}

// SampledPose is the local transform of every bone at one frame.
type SampledPose struct {
	Frame int
	Local []mathutil.Mat4
}

// Decode walks the animation joint tree rooted at root in pre-order, decodes
// every track and samples it. Malformed tracks are dropped and reported as
// AnimationDecodeWarning errors; the rest of the animation is still returned.
func Decode(g *node.Graph, root node.Ref, opts Options) (*Animation, []error) {
	a := &Animation{}
	var warnings []error

	var walk func(r node.Ref, parent int)
	walk = func(r node.Ref, parent int) {
		for _, ref := range g.Chain(r) {
			aj := g.AnimJoint(ref)
			if aj == nil {
				continue
			}
			bone := len(a.Bones)
			ba := BoneAnimation{
				Parent:    parent,
				Flags:     aj.Flags,
				HasAnim:   aj.HasAnim,
				AnimFlags: aj.AnimFlags,
				EndFrame:  aj.EndFrame,
				ObjID:     aj.ObjID,
			}
			var seen [NumChannels]bool
			for _, kr := range g.Chain(aj.Keys) {
				k := g.AnimKey(kr)
				ch, ok := ChannelOf(k.Type)
				if !ok {
					continue
				}
				if k.Err != nil {
					warnings = append(warnings, hsd.Wrap(hsd.AnimationDecodeWarning, int64(k.Offset()), k.Err, "bone %d %s track", bone, ch))
					continue
				}
				if seen[ch] {
					warnings = append(warnings, hsd.Errorf(hsd.AnimationDecodeWarning, int64(k.Offset()), "bone %d: duplicate %s track", bone, ch))
					continue
				}
				keys, err := DecodeKeys(k.Data, k.ValueFmt, k.SlopeFmt, float64(k.StartFrame))
				if err != nil {
					warnings = append(warnings, hsd.Wrap(hsd.AnimationDecodeWarning, int64(k.Offset()), err, "bone %d %s track", bone, ch))
					continue
				}
				seen[ch] = true
				ba.Tracks = append(ba.Tracks, Track{Channel: ch, ValueFmt: k.ValueFmt, SlopeFmt: k.SlopeFmt, StartFrame: k.StartFrame, Keys: keys})
			}
			a.Bones = append(a.Bones, ba)
			walk(aj.Child, bone)
		}
	}
	walk(root, -1)
	a.Resample(opts)
	return a, warnings
}

// Sample evaluates the track at every integer frame from 0 up to the last key,
// cut off at opts.MaxFrame when opts.UseMaxFrame is set.
func (t *Track) Sample(opts Options) []float64 {
	n := t.frames(opts.MaxFrame, opts.UseMaxFrame)
	out := make([]float64, n)
	for f := range out {
		out[f] = t.Eval(float64(f))
	}
	return out
}

// Resample recomputes every sample array and FrameCount from the tracks.
func (a *Animation) Resample(opts Options) {
	a.FrameCount = 0
	for i := range a.Bones {
		b := &a.Bones[i]
		b.Samples = [NumChannels][]float64{}
		for ti := range b.Tracks {
			s := b.Tracks[ti].Sample(opts)
			b.Samples[b.Tracks[ti].Channel] = s
			a.FrameCount = max(a.FrameCount, len(s))
		}
	}
}

// Channels returns the nine channel values of bone at frame. Channels the
// bone does not animate take the bind value; animated channels past their
// last sample hold the final sample.
func (a *Animation) Channels(bone, frame int, bind [NumChannels]float64) [NumChannels]float64 {
	out := bind
	if bone < 0 || bone >= len(a.Bones) {
		return out
	}
	for c, s := range a.Bones[bone].Samples {
		if len(s) == 0 {
			continue
		}
		out[c] = s[min(frame, len(s)-1)]
	}
	return out
}

// BindChannels packs a TRS bind pose into channel order.
func BindChannels(t, r, s mathutil.Vec3) [NumChannels]float64 {
	return [NumChannels]float64{t[0], t[1], t[2], r[0], r[1], r[2], s[0], s[1], s[2]}
}

// Poses builds the local transform of every bone for frames 0..FrameCount-1.
// binds is indexed like a.Bones.
func (a *Animation) Poses(binds [][NumChannels]float64) []SampledPose {
	poses := make([]SampledPose, a.FrameCount)
	for f := range poses {
		poses[f] = SampledPose{Frame: f, Local: make([]mathutil.Mat4, len(binds))}
		for b, bind := range binds {
			c := a.Channels(b, f, bind)
			poses[f].Local[b] = mathutil.FromTRS(
				mathutil.Vec3{c[TranslateX], c[TranslateY], c[TranslateZ]},
				mathutil.Vec3{c[RotateX], c[RotateY], c[RotateZ]},
				mathutil.Vec3{c[ScaleX], c[ScaleY], c[ScaleZ]},
			)
		}
	}
	return poses
}
