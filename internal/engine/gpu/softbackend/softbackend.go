// Package softbackend is a software gpu.Device backed by fauxgl. It needs no
// window or driver, so tools and tests can render scenes to images.
package softbackend

import (
	"errors"
	"fmt"
	"image"
	gomath "math"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"

	"github.com/Faultbox/quick3d/internal/engine/gpu"
	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/scene"
	"github.com/Faultbox/quick3d/pkg/math"
)

// ShadingLanguageVersion is what the device reports. Programs are not
// compiled; the built-in lighting model stands in for any source.
const ShadingLanguageVersion = 410

var (
	ErrNotInFrame = errors.New("softbackend: not inside a frame")
	ErrReleased   = errors.New("softbackend: handle already released")
)

// Option configures a Device.
type Option func(*Device)

// WithSupersampling renders at factor times the output size and downsamples
// when the frame ends.
func WithSupersampling(factor int) Option {
	return func(d *Device) {
		if factor > 1 {
			d.scale = factor
		}
	}
}

// Device renders into an in-memory color buffer.
type Device struct {
	ctx           *fauxgl.Context
	width, height int
	scale         int

	inFrame bool
	frame   image.Image
	draws   int
}

// New creates a device producing width x height frames.
func New(width, height int, opts ...Option) *Device {
	d := &Device{width: width, height: height, scale: 1}
	for _, opt := range opts {
		opt(d)
	}
	d.ctx = fauxgl.NewContext(width*d.scale, height*d.scale)
	d.ctx.Cull = fauxgl.CullNone
	return d
}

type buffer struct {
	dev       *Device
	triangles []*fauxgl.Triangle
	vertices  int
	released  bool
}

func (b *buffer) Len() int { return b.vertices }

func (b *buffer) Release() error {
	if b.released {
		return ErrReleased
	}
	b.released = true
	b.triangles = nil
	return nil
}

type softTexture struct {
	dev           *Device
	tex           fauxgl.Texture
	width, height int
	released      bool

	// solid is set for 1x1 images, which only tint the diffuse color.
	solid *fauxgl.Color
}

func (t *softTexture) Size() (int, int) { return t.width, t.height }

func (t *softTexture) Release() error {
	if t.released {
		return ErrReleased
	}
	t.released = true
	t.tex = nil
	t.solid = nil
	return nil
}

type program struct {
	dev      *Device
	name     string
	released bool
}

func (p *program) Release() error {
	if p.released {
		return ErrReleased
	}
	p.released = true
	return nil
}

func vec(v [3]float32) fauxgl.Vector {
	return fauxgl.Vector{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// NewVertexBuffer groups the vertices into triangles. A trailing partial
// triangle is ignored, as a GPU would.
func (d *Device) NewVertexBuffer(vertices []scene.Vertex) (gpu.Buffer, error) {
	b := &buffer{dev: d, vertices: len(vertices)}
	b.triangles = make([]*fauxgl.Triangle, 0, len(vertices)/3)
	for i := 0; i+2 < len(vertices); i += 3 {
		var tv [3]fauxgl.Vertex
		for j := range tv {
			v := vertices[i+j]
			tv[j] = fauxgl.Vertex{
				Position: vec(v.Position),
				Normal:   vec(v.Normal),
				Texture:  fauxgl.Vector{X: float64(v.TexCoord[0]), Y: float64(v.TexCoord[1])},
			}
		}
		b.triangles = append(b.triangles, fauxgl.NewTriangle(tv[0], tv[1], tv[2]))
	}
	return b, nil
}

func (d *Device) NewTexture(img *image.RGBA) (gpu.Texture, error) {
	if img == nil {
		return nil, errors.New("softbackend: nil image")
	}
	b := img.Bounds()
	t := &softTexture{
		dev:    d,
		width:  b.Dx(),
		height: b.Dy(),
	}
	if t.width == 1 && t.height == 1 {
		c := fauxgl.MakeColor(img.At(b.Min.X, b.Min.Y))
		t.solid = &c
	} else {
		t.tex = fauxgl.NewImageTexture(img)
	}
	return t, nil
}

func (d *Device) NewProgram(src shader.Source) (gpu.Program, error) {
	if src.Version > ShadingLanguageVersion {
		return nil, fmt.Errorf("%w: %s needs GLSL %d", shader.ErrNoCompatibleShader, src.Name, src.Version)
	}
	return &program{dev: d, name: src.Name}, nil
}

func (d *Device) ShadingLanguageVersion() int {
	return ShadingLanguageVersion
}

func (d *Device) BeginFrame(clear [4]float32) error {
	d.ctx.ClearColorBufferWith(fauxgl.Color{
		R: float64(clear[0]),
		G: float64(clear[1]),
		B: float64(clear[2]),
		A: float64(clear[3]),
	})
	d.ctx.ClearDepthBuffer()
	d.inFrame = true
	d.draws = 0
	return nil
}

func (d *Device) Draw(buf gpu.Buffer, prog gpu.Program, u *gpu.Uniforms, p gpu.DrawParams) error {
	if !d.inFrame {
		return ErrNotInFrame
	}
	b, ok := buf.(*buffer)
	if !ok || b.dev != d {
		return fmt.Errorf("buffer: %w", gpu.ErrForeignHandle)
	}
	pr, ok := prog.(*program)
	if !ok || pr.dev != d {
		return fmt.Errorf("program: %w", gpu.ErrForeignHandle)
	}
	if b.released || pr.released {
		return ErrReleased
	}

	sh := newLitShader(u)
	if u.DiffuseTexture != nil {
		t, ok := u.DiffuseTexture.(*softTexture)
		if !ok || t.dev != d {
			return fmt.Errorf("texture: %w", gpu.ErrForeignHandle)
		}
		if t.released {
			return ErrReleased
		}
		if t.solid != nil {
			c := *t.solid
			sh.diffuse = fauxgl.Color{R: sh.diffuse.R * c.R, G: sh.diffuse.G * c.G, B: sh.diffuse.B * c.B, A: 1}
		} else {
			sh.texture = t.tex
		}
	}

	d.ctx.Shader = sh
	d.ctx.ReadDepth = p.DepthTest == gpu.DepthLess
	d.ctx.WriteDepth = p.DepthWrite
	d.ctx.DrawTriangles(b.triangles)
	d.draws++
	return nil
}

// EndFrame keeps the finished frame, downsampled when supersampling.
func (d *Device) EndFrame() error {
	if !d.inFrame {
		return ErrNotInFrame
	}
	d.inFrame = false

	img := d.ctx.Image()
	if d.scale > 1 {
		img = resize.Resize(uint(d.width), uint(d.height), img, resize.Bilinear)
	}
	d.frame = img
	return nil
}

// Image returns the last finished frame, or nil before the first one.
func (d *Device) Image() image.Image {
	return d.frame
}

// Draws returns the number of draw calls in the current or last frame.
func (d *Device) Draws() int {
	return d.draws
}

// toMatrix converts a column-major Mat4 to fauxgl's row-major layout.
func toMatrix(m math.Mat4) fauxgl.Matrix {
	f := func(i int) float64 { return float64(m[i]) }
	return fauxgl.Matrix{
		X00: f(0), X01: f(4), X02: f(8), X03: f(12),
		X10: f(1), X11: f(5), X12: f(9), X13: f(13),
		X20: f(2), X21: f(6), X22: f(10), X23: f(14),
		X30: f(3), X31: f(7), X32: f(11), X33: f(15),
	}
}

const (
	lightPower   = 60.0
	ambientScale = 0.3
	specular     = 0.3
	shininess    = 5.0
)

// litShader lights fragments in eye space with one white point light, the
// same model as the built-in GLSL program.
type litShader struct {
	projection fauxgl.Matrix
	eye        fauxgl.Matrix // modelview * model
	light      fauxgl.Vector // eye space
	diffuse    fauxgl.Color
	texture    fauxgl.Texture
}

func newLitShader(u *gpu.Uniforms) *litShader {
	modelview := toMatrix(u.Modelview)
	return &litShader{
		projection: toMatrix(u.Projection),
		eye:        toMatrix(u.Modelview.Mul(u.Model)),
		light:      modelview.MulPosition(vec(u.LightPosition)),
		diffuse: fauxgl.Color{
			R: float64(u.Diffuse[0]),
			G: float64(u.Diffuse[1]),
			B: float64(u.Diffuse[2]),
			A: 1,
		},
	}
}

func (s *litShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	eye := s.eye.MulPosition(v.Position)
	v.Normal = s.eye.MulDirection(v.Normal)
	v.Position = eye
	v.Output = s.projection.MulPositionW(eye)
	return v
}

func (s *litShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	base := s.diffuse
	if s.texture != nil {
		t := s.texture.BilinearSample(v.Texture.X, v.Texture.Y)
		base = fauxgl.Color{R: base.R * t.R, G: base.G * t.G, B: base.B * t.B, A: 1}
	}

	n := v.Normal.Normalize()
	toLight := s.light.Sub(v.Position)
	dist2 := toLight.Dot(toLight)
	if dist2 == 0 {
		dist2 = 1
	}
	l := toLight.Normalize()
	cosTheta := clamp01(n.Dot(l))

	e := v.Position.MulScalar(-1).Normalize()
	r := l.MulScalar(-1).Sub(n.MulScalar(2 * n.Dot(l.MulScalar(-1))))
	cosAlpha := clamp01(e.Dot(r))

	spec := specular * lightPower * gomath.Pow(cosAlpha, shininess) / dist2
	lit := base.MulScalar(ambientScale).Add(base.MulScalar(lightPower * cosTheta / dist2))
	return fauxgl.Color{
		R: clamp01(lit.R + spec),
		G: clamp01(lit.G + spec),
		B: clamp01(lit.B + spec),
		A: 1,
	}
}

func clamp01(x float64) float64 {
	return gomath.Max(0, gomath.Min(1, x))
}
