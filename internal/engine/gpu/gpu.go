// Package gpu defines what the renderer needs from a graphics backend.
//
// Handles are opaque: a backend only accepts handles it created itself.
package gpu

import (
	"errors"
	"image"

	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/scene"
	"github.com/Faultbox/quick3d/pkg/math"
)

// ErrForeignHandle is returned when a device is given a handle that another
// device created.
var ErrForeignHandle = errors.New("handle belongs to another device")

// Buffer is a vertex buffer holding one mesh.
type Buffer interface {
	Len() int // vertex count
	Release() error
}

// Texture is an RGBA texture.
type Texture interface {
	Size() (width, height int)
	Release() error
}

// Program is a compiled shader program.
type Program interface {
	Release() error
}

// Primitive selects how vertices are assembled.
type Primitive int

const (
	// TriangleList draws every three vertices as a triangle, without indices.
	TriangleList Primitive = iota
)

// DepthFunc is the depth comparison.
type DepthFunc int

const (
	DepthAlways DepthFunc = iota
	DepthLess
)

// DrawParams are the fixed-function settings of a draw call.
type DrawParams struct {
	Primitive  Primitive
	DepthTest  DepthFunc
	DepthWrite bool
}

// DefaultDrawParams returns a non-indexed triangle list with depth test
// less-than and depth writes on.
func DefaultDrawParams() DrawParams {
	return DrawParams{Primitive: TriangleList, DepthTest: DepthLess, DepthWrite: true}
}

// Uniforms is the named uniform bundle of the shader contract; see the
// shader.Uniform* constants for the names each field is bound to.
type Uniforms struct {
	Projection     math.Mat4
	Modelview      math.Mat4
	Model          math.Mat4
	LightPosition  [3]float32
	Diffuse        [3]float32
	DiffuseTexture Texture
}

// Device is a graphics backend bound to one context. It is not safe for
// concurrent use.
type Device interface {
	NewVertexBuffer(vertices []scene.Vertex) (Buffer, error)
	NewTexture(img *image.RGBA) (Texture, error)
	NewProgram(src shader.Source) (Program, error)

	// ShadingLanguageVersion reports the highest GLSL version the device
	// compiles, as 100*major + minor (e.g. 410).
	ShadingLanguageVersion() int

	// BeginFrame clears the color and depth buffers.
	BeginFrame(clear [4]float32) error
	Draw(buf Buffer, prog Program, u *Uniforms, p DrawParams) error
	// EndFrame presents the frame.
	EndFrame() error
}
