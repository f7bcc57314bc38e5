package scene

import (
	"fmt"
	"math"

	"hsd-scene-io/internal/mathutil"
	"hsd-scene-io/internal/skeleton"
)

// Import defaults.
const (
	DefaultSection  = "scene_data"
	DefaultMaxFrame = 1000
	MinGlobalScale  = 1e-6
	MaxGlobalScale  = 1e6
)

// UnitSettings is the host's length unit. ScaleLength is the host length of
// one source unit.
type UnitSettings interface {
	ScaleLength() float64
}

// Units is a fixed UnitSettings. The zero value is 1.
type Units float64

func (u Units) ScaleLength() float64 {
	if u == 0 {
		return 1
	}
	return float64(u)
}

// ImportOptions controls Import.
type ImportOptions struct {
	GlobalScale     float64
	ImportAnimation bool
	// IKHack raises near-zero bone scales so IK solvers stay stable.
	IKHack      bool
	MaxFrame    int
	UseMaxFrame bool
	Units       UnitSettings
	AxisForward mathutil.Axis
	AxisUp      mathutil.Axis
}

// DefaultImportOptions mirrors the importer's stock settings.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		GlobalScale:     1,
		ImportAnimation: true,
		IKHack:          true,
		MaxFrame:        DefaultMaxFrame,
		UseMaxFrame:     true,
		Units:           Units(1),
		AxisForward:     mathutil.AxisY,
		AxisUp:          mathutil.AxisZ,
	}
}

// NetScale is GlobalScale × the unit scale length.
func NetScale(global float64, u UnitSettings) float64 {
	if u == nil {
		return global
	}
	return global * u.ScaleLength()
}

// Validate checks the ranges Import relies on.
func (o ImportOptions) Validate() error {
	if math.IsNaN(o.GlobalScale) || o.GlobalScale < MinGlobalScale || o.GlobalScale > MaxGlobalScale {
		return fmt.Errorf("scene: global scale %g outside [%g, %g]", o.GlobalScale, MinGlobalScale, MaxGlobalScale)
	}
	if o.MaxFrame < 0 {
		return fmt.Errorf("scene: max frame %d is negative", o.MaxFrame)
	}
	if n := NetScale(o.GlobalScale, o.Units); !(n > 0) || math.IsInf(n, 0) {
		return fmt.Errorf("scene: unit scale gives net scale %g", n)
	}
	return nil
}

// Conversion returns the root transform from source space to the caller's
// axes and units.
func (o ImportOptions) Conversion() (skeleton.Conversion, error) {
	axes, err := mathutil.AxisConversion(mathutil.SourceForward, mathutil.SourceUp, o.AxisForward, o.AxisUp)
	if err != nil {
		return skeleton.Conversion{}, fmt.Errorf("scene: %w", err)
	}
	return skeleton.Conversion{Axes: axes, Scale: NetScale(o.GlobalScale, o.Units)}, nil
}
