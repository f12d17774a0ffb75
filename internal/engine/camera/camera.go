// Package camera provides the first-person viewer camera.
package camera

import (
	gomath "math"

	"github.com/Faultbox/quick3d/pkg/math"
)

// Projection defaults.
const (
	FieldOfView = gomath.Pi / 4 // 45 degrees
	NearPlane   = 0.1
	FarPlane    = 1000.0

	// AimSensitivity scales aim deltas (usually mouse pixels) into radians.
	AimSensitivity = 0.01
)

// DefaultPosition is where a new camera stands.
var DefaultPosition = math.Vec3{X: 0, Y: 1, Z: 0}

// Camera is a first-person camera driven by yaw/pitch angles.
//
// Aim and the Move methods change orientation and position only. The
// modelview matrix is rebuilt by Update, which must be called before the
// matrices are handed to the renderer.
type Camera struct {
	position  math.Vec3
	direction math.Vec3
	right     math.Vec3
	up        math.Vec3

	// Unbounded accumulators in radians.
	horizontal float64
	vertical   float64

	modelview  math.Mat4
	projection math.Mat4
}

// New creates a camera for a screen of the given size.
func New(width, height int) *Camera {
	c := &Camera{position: DefaultPosition}
	c.Resize(width, height)
	c.Aim(0, 0)
	c.Update()
	return c
}

// Resize rebuilds the projection for a new screen size.
func (c *Camera) Resize(width, height int) {
	aspect := float32(1)
	if width > 0 && height > 0 {
		aspect = float32(width) / float32(height)
	}
	c.projection = math.Perspective(FieldOfView, aspect, NearPlane, FarPlane)
}

// Aim rotates the camera by dx/dy, scaled by AimSensitivity.
func (c *Camera) Aim(dx, dy float64) {
	c.horizontal += dx * AimSensitivity
	c.vertical += dy * AimSensitivity

	h, v := c.horizontal, c.vertical
	c.direction = math.Vec3{
		X: float32(gomath.Cos(v) * gomath.Sin(h)),
		Y: float32(gomath.Sin(v)),
		Z: float32(gomath.Cos(v) * gomath.Cos(h)),
	}
	c.right = math.Vec3{
		X: float32(gomath.Sin(h - gomath.Pi/2)),
		Y: 0,
		Z: float32(gomath.Cos(h - gomath.Pi/2)),
	}
	c.up = c.right.Cross(c.direction)
}

// MoveForward moves along the view direction.
func (c *Camera) MoveForward(amount float32) {
	c.position = c.position.Add(c.direction.Scale(amount))
}

// MoveBackward moves against the view direction.
func (c *Camera) MoveBackward(amount float32) {
	c.MoveForward(-amount)
}

// MoveRight strafes along the right vector.
func (c *Camera) MoveRight(amount float32) {
	c.position = c.position.Add(c.right.Scale(amount))
}

// MoveLeft strafes against the right vector.
func (c *Camera) MoveLeft(amount float32) {
	c.MoveRight(-amount)
}

// Update recomputes the modelview matrix from the current position and
// orientation.
func (c *Camera) Update() {
	c.modelview = math.LookAt(c.position, c.position.Add(c.direction), c.up)
}

// SetPosition places the camera. Call Update afterwards.
func (c *Camera) SetPosition(p math.Vec3) {
	c.position = p
}

// Position returns the eye position.
func (c *Camera) Position() math.Vec3 { return c.position }

// Direction returns the unit view direction.
func (c *Camera) Direction() math.Vec3 { return c.direction }

// Right returns the horizontal right vector.
func (c *Camera) Right() math.Vec3 { return c.right }

// Up returns right x direction.
func (c *Camera) Up() math.Vec3 { return c.up }

// Target returns the point one unit in front of the eye.
func (c *Camera) Target() math.Vec3 { return c.position.Add(c.direction) }

// Angles returns the accumulated horizontal and vertical angles in radians.
func (c *Camera) Angles() (horizontal, vertical float64) {
	return c.horizontal, c.vertical
}

// ModelviewMatrix returns the view matrix computed by the last Update.
func (c *Camera) ModelviewMatrix() math.Mat4 { return c.modelview }

// ProjectionMatrix returns the perspective projection.
func (c *Camera) ProjectionMatrix() math.Mat4 { return c.projection }
