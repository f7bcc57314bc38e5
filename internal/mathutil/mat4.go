package mathutil

import "math"

// Mat4 is a 4×4 matrix stored row-major. Used for bone world transforms.
type Mat4 [16]float64

func Mat4Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mat4Mul returns a × b.
func Mat4Mul(a, b Mat4) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m[r*4+c] = a[r*4+0]*b[0*4+c] + a[r*4+1]*b[1*4+c] +
				a[r*4+2]*b[2*4+c] + a[r*4+3]*b[3*4+c]
		}
	}
	return m
}

// MulPoint transforms a 3D point (w=1) by the 4×4 matrix.
func (m Mat4) MulPoint(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2] + m[3],
		m[4]*v[0] + m[5]*v[1] + m[6]*v[2] + m[7],
		m[8]*v[0] + m[9]*v[1] + m[10]*v[2] + m[11],
	}
}

// MulDir transforms a direction (w=0).
func (m Mat4) MulDir(v Vec3) Vec3 {
	return m.Mat3().MulVec3(v)
}

// FromMat3Translation builds a 4×4 affine matrix from a 3×3 rotation and translation.
func FromMat3Translation(r Mat3, t Vec3) Mat4 {
	return Mat4{
		r[0], r[1], r[2], t[0],
		r[3], r[4], r[5], t[1],
		r[6], r[7], r[8], t[2],
		0, 0, 0, 1,
	}
}

// FromTRS builds translation × rotation(Euler XYZ) × scale.
func FromTRS(t, r, s Vec3) Mat4 {
	rs := Mat3Mul(EulerXYZ(r), Mat3Diag(s[0], s[1], s[2]))
	return FromMat3Translation(rs, t)
}

// Mat4Scale returns a uniform scale matrix.
func Mat4Scale(s float64) Mat4 {
	return Mat4{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, s, 0,
		0, 0, 0, 1,
	}
}

// FromRows3x4 expands the 3×4 row-major matrices HSD stores on disk.
func FromRows3x4(r [12]float32) Mat4 {
	var m Mat4
	for i := 0; i < 12; i++ {
		m[i] = float64(r[i])
	}
	m[15] = 1
	return m
}

// Rows3x4 is the inverse of FromRows3x4; the projective row is dropped.
func (m Mat4) Rows3x4() [12]float32 {
	var r [12]float32
	for i := 0; i < 12; i++ {
		r[i] = float32(m[i])
	}
	return r
}

// Mat3 returns the upper-left 3×3 block.
func (m Mat4) Mat3() Mat3 {
	return Mat3{
		m[0], m[1], m[2],
		m[4], m[5], m[6],
		m[8], m[9], m[10],
	}
}

// Translation returns the translation column.
func (m Mat4) Translation() Vec3 {
	return Vec3{m[3], m[7], m[11]}
}

// ScaleFactors returns the length of each basis column.
func (m Mat4) ScaleFactors() Vec3 {
	r := m.Mat3()
	return Vec3{r.Col(0).Len(), r.Col(1).Len(), r.Col(2).Len()}
}

// InverseAffine inverts an affine matrix (bottom row 0,0,0,1).
func (m Mat4) InverseAffine() Mat4 {
	inv := m.Mat3().Inverse()
	t := inv.MulVec3(m.Translation()).Scale(-1)
	return FromMat3Translation(inv, t)
}

// IsIdentity checks if the matrix is approximately identity.
func (m Mat4) IsIdentity() bool {
	return m.ApproxEqual(Mat4Identity(), 1e-8)
}

// ApproxEqual reports whether every element differs by at most eps.
func (m Mat4) ApproxEqual(o Mat4, eps float64) bool {
	for i := 0; i < 16; i++ {
		if math.Abs(m[i]-o[i]) > eps {
			return false
		}
	}
	return true
}
