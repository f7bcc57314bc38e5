package mathutil

import "math"

// RotX returns a 3×3 rotation matrix around the X axis. Angle in radians.
func RotX(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

// RotY returns a 3×3 rotation matrix around the Y axis.
func RotY(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}
}

// RotZ returns a 3×3 rotation matrix around the Z axis.
func RotZ(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// EulerXYZ builds the joint rotation used by HSD: X is applied first, then Y,
// then Z (Rz × Ry × Rx).
func EulerXYZ(r Vec3) Mat3 {
	return Mat3Mul(Mat3Mul(RotZ(r[2]), RotY(r[1])), RotX(r[0]))
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}

// EulerFromMat3 inverts EulerXYZ for a pure rotation matrix. At gimbal lock
// the X angle is taken as zero.
func EulerFromMat3(m Mat3) Vec3 {
	sy := -m[6]
	if sy > 1 {
		sy = 1
	} else if sy < -1 {
		sy = -1
	}
	y := math.Asin(sy)
	if math.Abs(sy) > 1-1e-9 {
		return Vec3{0, y, math.Atan2(-m[1], m[4])}
	}
	return Vec3{math.Atan2(m[7], m[8]), y, math.Atan2(m[3], m[0])}
}

// Decompose splits an affine T·R·S matrix back into translation, Euler XYZ
// rotation and scale. A mirrored basis is reported as a negative X scale.
func (m Mat4) Decompose() (t, r, s Vec3) {
	t = m.Translation()
	s = m.ScaleFactors()
	if m.Mat3().Det() < 0 {
		s[0] = -s[0]
	}
	var rot Mat3
	for c := 0; c < 3; c++ {
		col := m.Mat3().Col(c)
		if s[c] != 0 {
			col = col.Scale(1 / s[c])
		}
		rot[c], rot[3+c], rot[6+c] = col[0], col[1], col[2]
	}
	return t, EulerFromMat3(rot), s
}
