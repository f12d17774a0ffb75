package math

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Mat4 is a 4x4 matrix in column-major order (OpenGL compatible).
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
//
// The layout matches mgl32.Mat4, so conversions between the two are free.
type Mat4 [16]float32

// Vec4 is a 4-component vector.
type Vec4 [4]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4(mgl32.Ident4())
}

// Perspective returns a perspective projection matrix.
// fovY is in radians, aspect is width/height.
func Perspective(fovY, aspect, near, far float32) Mat4 {
	return Mat4(mgl32.Perspective(fovY, aspect, near, far))
}

// LookAt returns a right-handed view matrix looking from eye to center.
func LookAt(eye, center, up Vec3) Mat4 {
	return Mat4(mgl32.LookAtV(eye.mgl(), center.mgl(), up.mgl()))
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	return Mat4(mgl32.Translate3D(x, y, z))
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Mat4 {
	return Mat4(mgl32.Scale3D(x, y, z))
}

// RotateX returns a rotation matrix around the X axis (radians).
func RotateX(angle float32) Mat4 {
	return Mat4(mgl32.HomogRotate3DX(angle))
}

// RotateY returns a rotation matrix around the Y axis (radians).
func RotateY(angle float32) Mat4 {
	return Mat4(mgl32.HomogRotate3DY(angle))
}

// RotateZ returns a rotation matrix around the Z axis (radians).
func RotateZ(angle float32) Mat4 {
	return Mat4(mgl32.HomogRotate3DZ(angle))
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	return Mat4(mgl32.Mat4(m).Mul4(mgl32.Mat4(other)))
}

// At returns the element at the given row and column.
func (m Mat4) At(row, col int) float32 {
	return m[col*4+row]
}

// Transpose returns the transposed matrix.
func (m Mat4) Transpose() Mat4 {
	return Mat4(mgl32.Mat4(m).Transpose())
}

// Inverse returns the inverse of the matrix.
// Returns identity if the matrix is singular.
func (m Mat4) Inverse() Mat4 {
	g := mgl32.Mat4(m)
	if g.Det() == 0 {
		return Identity()
	}
	return Mat4(g.Inv())
}

// MulVec4 multiplies the matrix by a Vec4.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	return Vec4(mgl32.Mat4(m).Mul4x1(mgl32.Vec4(v)))
}

// TransformPoint transforms a 3D point by this matrix (w=1), dividing by the
// resulting w when it is not 0 or 1.
func (m Mat4) TransformPoint(p [3]float32) [3]float32 {
	r := m.MulVec4(Vec4{p[0], p[1], p[2], 1})
	if r[3] != 0 && r[3] != 1 {
		return [3]float32{r[0] / r[3], r[1] / r[3], r[2] / r[3]}
	}
	return [3]float32{r[0], r[1], r[2]}
}

// TransformVec3 transforms a Vec3 point by this matrix.
func (m Mat4) TransformVec3(v Vec3) Vec3 {
	return FromArray(m.TransformPoint(v.Array()))
}

// TransformDirection transforms a direction vector (ignores translation).
func (m Mat4) TransformDirection(d [3]float32) [3]float32 {
	r := m.MulVec4(Vec4{d[0], d[1], d[2], 0})
	return [3]float32{r[0], r[1], r[2]}
}

// Ptr returns a pointer to the first element (for OpenGL uniform calls).
func (m *Mat4) Ptr() *float32 {
	return &m[0]
}
