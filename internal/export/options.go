package export

import (
	"fmt"
	"math"

	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/scene"
	"hsd-scene-io/internal/skeleton"
	"hsd-scene-io/internal/texture"
)

// Export scale bounds.
const (
	MinGlobalScale = 0.01
	MaxGlobalScale = 1000
)

// Options controls Export and Collect.
type Options struct {
	// UseSelection limits output to selected models (Export) or selected
	// objects and their ancestors (Collect).
	UseSelection bool
	GlobalScale  float64
	// ASCII replaces the binary archive with an annotated hex listing.
	ASCII bool
	// ApplyModifiers is forwarded to the MeshEvaluator by Collect.
	ApplyModifiers bool
	AxisForward    mathutil.Axis
	AxisUp         mathutil.Axis
	Units          scene.UnitSettings
	// Textures resolves face texture names during Collect. Optional.
	Textures texture.Resolver
}

// DefaultOptions mirrors the exporter's stock settings.
func DefaultOptions() Options {
	return Options{
		GlobalScale:    1,
		ApplyModifiers: true,
		AxisForward:    mathutil.AxisY,
		AxisUp:         mathutil.AxisZ,
		Units:          scene.Units(1),
	}
}

func (o Options) validate() error {
	if math.IsNaN(o.GlobalScale) || o.GlobalScale < MinGlobalScale || o.GlobalScale > MaxGlobalScale {
		return fmt.Errorf("export: global scale %g outside [%g, %g]", o.GlobalScale, MinGlobalScale, float64(MaxGlobalScale))
	}
	if n := scene.NetScale(o.GlobalScale, o.Units); !(n > 0) || math.IsInf(n, 0) {
		return fmt.Errorf("export: unit scale gives net scale %g", n)
	}
	return nil
}

// conversion is the source-to-caller transform the options describe.
func (o Options) conversion() (skeleton.Conversion, error) {
	axes, err := mathutil.AxisConversion(mathutil.SourceForward, mathutil.SourceUp, o.AxisForward, o.AxisUp)
	if err != nil {
		return skeleton.Conversion{}, fmt.Errorf("export: %w", err)
	}
	return skeleton.Conversion{Axes: axes, Scale: scene.NetScale(o.GlobalScale, o.Units)}, nil
}
