// Package frustum extracts the six clipping planes of a view frustum and
// tests points, spheres and cubes against them.
//
// Planes are taken from the combined clip matrix using Mark Morley's method.
package frustum

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/quick3d/pkg/math"
)

// Plane is the half-space A*x + B*y + C*z + D > 0.
type Plane struct {
	A, B, C, D float32
}

// Distance returns the signed distance of a point from the plane.
func (p Plane) Distance(x, y, z float32) float32 {
	return p.A*x + p.B*y + p.C*z + p.D
}

func (p Plane) normalLength() float32 {
	return math32.Sqrt(p.A*p.A + p.B*p.B + p.C*p.C)
}

func (p Plane) scaled(inv float32) Plane {
	return Plane{p.A * inv, p.B * inv, p.C * inv, p.D * inv}
}

// Plane indices, in extraction order.
const (
	Right = iota
	Left
	Bottom
	Top
	Far
	Near
	PlaneCount
)

// Option configures frustum construction and tests.
type Option func(*options)

type options struct {
	legacyNear   bool
	sphereOffset bool
}

// WithLegacyNearNormalization divides the near plane by the far plane's
// normal length, as an early renderer did. Only meant for comparing output
// against that renderer.
func WithLegacyNearNormalization() Option {
	return func(o *options) { o.legacyNear = true }
}

// WithSphereOffset includes the plane offset D in SphereIntersecting.
// By default the sphere test compares A*x + B*y + C*z against -r.
func WithSphereOffset() Option {
	return func(o *options) { o.sphereOffset = true }
}

// Frustum holds six normalized planes. Build a new one every frame.
type Frustum struct {
	planes [PlaneCount]Plane
	// active is false for planes whose normal had zero length.
	active       [PlaneCount]bool
	sphereOffset bool
}

// New builds the frustum for the given modelview and projection matrices.
//
// Planes with a zero-length normal (a degenerate clip matrix) are skipped by
// every test, so they never reject anything. Degenerate reports whether that
// happened.
func New(modelview, projection math.Mat4, opts ...Option) Frustum {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Flattened, clip[i*4+j] = sum_k modelview[i*4+k] * projection[k*4+j],
	// which for column-major storage is projection * modelview.
	clip := projection.Mul(modelview)

	// For row i of the flattened clip matrix, colK is clip[i*4+K].
	combine := func(k int, sign float32) Plane {
		return Plane{
			A: clip[3] + sign*clip[k],
			B: clip[7] + sign*clip[4+k],
			C: clip[11] + sign*clip[8+k],
			D: clip[15] + sign*clip[12+k],
		}
	}

	raw := [PlaneCount]Plane{
		Right:  combine(0, -1),
		Left:   combine(0, 1),
		Bottom: combine(1, 1),
		Top:    combine(1, -1),
		Far:    combine(2, -1),
		Near:   combine(2, 1),
	}

	f := Frustum{sphereOffset: o.sphereOffset}
	for i, p := range raw {
		l := p.normalLength()
		if i == Near && o.legacyNear {
			l = raw[Far].normalLength()
		}
		if l == 0 {
			continue
		}
		f.planes[i] = p.scaled(1 / l)
		f.active[i] = true
	}
	return f
}

// Planes returns the six planes in Right, Left, Bottom, Top, Far, Near
// order. Degenerate planes are zero.
func (f Frustum) Planes() [PlaneCount]Plane {
	return f.planes
}

// Degenerate reports whether any plane had a zero-length normal.
func (f Frustum) Degenerate() bool {
	for _, a := range f.active {
		if !a {
			return true
		}
	}
	return false
}

// PointIntersecting reports whether the point is strictly inside every plane.
// A point exactly on a plane is outside.
func (f Frustum) PointIntersecting(x, y, z float32) bool {
	for i, p := range f.planes {
		if f.active[i] && p.Distance(x, y, z) <= 0 {
			return false
		}
	}
	return true
}

// SphereIntersecting reports whether a sphere at (x, y, z) with radius r is
// on the inner side of every plane.
//
// Unless the frustum was built WithSphereOffset, the plane offset D is left
// out of the comparison: the test is A*x + B*y + C*z > -r.
func (f Frustum) SphereIntersecting(x, y, z, r float32) bool {
	for i, p := range f.planes {
		if !f.active[i] {
			continue
		}
		d := p.A*x + p.B*y + p.C*z
		if f.sphereOffset {
			d += p.D
		}
		if d <= -r {
			return false
		}
	}
	return true
}

// CubeIntersecting reports whether an axis-aligned cube centered at
// (x, y, z) with half extent size has, for every plane, at least one corner
// inside it.
func (f Frustum) CubeIntersecting(x, y, z, size float32) bool {
	for i, p := range f.planes {
		if !f.active[i] {
			continue
		}
		if !anyCornerInside(p, x, y, z, size) {
			return false
		}
	}
	return true
}

func anyCornerInside(p Plane, x, y, z, size float32) bool {
	for _, dx := range [2]float32{-size, size} {
		for _, dy := range [2]float32{-size, size} {
			for _, dz := range [2]float32{-size, size} {
				if p.Distance(x+dx, y+dy, z+dz) > 0 {
					return true
				}
			}
		}
	}
	return false
}
