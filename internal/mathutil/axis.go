package mathutil

import (
	"fmt"
	"strings"
)

// Axis names a signed coordinate axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisNegX
	AxisNegY
	AxisNegZ
)

var axisNames = [...]string{"X", "Y", "Z", "-X", "-Y", "-Z"}

func (a Axis) String() string {
	if a < 0 || int(a) >= len(axisNames) {
		return fmt.Sprintf("Axis(%d)", int(a))
	}
	return axisNames[a]
}

// ParseAxis accepts "X", "-Y", "z" and so on.
func ParseAxis(s string) (Axis, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range axisNames {
		if n == s {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("mathutil: unknown axis %q", s)
}

// Vec returns the unit vector for the axis.
func (a Axis) Vec() Vec3 {
	var v Vec3
	v[int(a)%3] = 1
	if a >= AxisNegX {
		v = v.Scale(-1)
	}
	return v
}

// SourceForward and SourceUp describe HSD model space: Y-up, facing +Z,
// right-handed.
const (
	SourceForward = AxisZ
	SourceUp      = AxisY
)

func basis(forward, up Axis) (Mat3, error) {
	if int(forward)%3 == int(up)%3 {
		return Mat3{}, fmt.Errorf("mathutil: forward %s and up %s share an axis", forward, up)
	}
	f, u := forward.Vec(), up.Vec()
	return Mat3Cols(u.Cross(f), u, f), nil
}

// AxisConversion returns the rotation that maps a space whose forward/up are
// (fromForward, fromUp) onto one whose forward/up are (toForward, toUp).
func AxisConversion(fromForward, fromUp, toForward, toUp Axis) (Mat3, error) {
	src, err := basis(fromForward, fromUp)
	if err != nil {
		return Mat3{}, err
	}
	dst, err := basis(toForward, toUp)
	if err != nil {
		return Mat3{}, err
	}
	return Mat3Mul(dst, src.Transpose()), nil
}
