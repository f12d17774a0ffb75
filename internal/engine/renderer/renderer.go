// Package renderer draws a scene each frame, skipping meshes whose bounding
// sphere lies outside the view frustum.
package renderer

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/quick3d/internal/engine/frustum"
	"github.com/Faultbox/quick3d/internal/engine/gpu"
	"github.com/Faultbox/quick3d/internal/engine/texture"
	"github.com/Faultbox/quick3d/internal/logger"
	"github.com/Faultbox/quick3d/internal/scene"
	"github.com/Faultbox/quick3d/pkg/math"
)

var (
	// ErrEmptyScene is returned by New for a scene without meshes.
	ErrEmptyScene = errors.New("scene has no meshes")
	// ErrClosed is returned by Render once Close has run.
	ErrClosed = errors.New("renderer is closed")
)

// DefaultLightPosition is the world-space light used unless overridden.
var DefaultLightPosition = [3]float32{2, 10, 1}

// View supplies the camera matrices for a frame.
type View interface {
	ModelviewMatrix() math.Mat4
	ProjectionMatrix() math.Mat4
}

// Decoder turns an encoded image into RGBA pixels.
type Decoder func(name string, data []byte) (*image.RGBA, error)

// Option configures a Renderer.
type Option func(*options)

type options struct {
	light      [3]float32
	clear      [4]float32
	culling    bool
	frustumOpt []frustum.Option
	decode     Decoder
}

// WithLightPosition sets the world-space light position.
func WithLightPosition(p [3]float32) Option {
	return func(o *options) { o.light = p }
}

// WithClearColor sets the color BeginFrame clears to.
func WithClearColor(c [4]float32) Option {
	return func(o *options) { o.clear = c }
}

// WithCulling turns frustum culling on or off. It is on by default.
func WithCulling(enabled bool) Option {
	return func(o *options) { o.culling = enabled }
}

// WithFrustumOptions passes options to every frustum the renderer builds.
func WithFrustumOptions(opts ...frustum.Option) Option {
	return func(o *options) { o.frustumOpt = append(o.frustumOpt, opts...) }
}

// WithDecoder replaces texture.Decode, e.g. with a caching decoder.
func WithDecoder(d Decoder) Option {
	return func(o *options) { o.decode = d }
}

// FrameStats describes the last rendered frame.
type FrameStats struct {
	Meshes   int
	Drawn    int
	Culled   int
	Vertices int // vertices submitted
}

// Renderer owns the GPU resources of one scene.
type Renderer struct {
	device gpu.Device
	scene  *scene.Scene
	opts   options

	buffers  []gpu.Buffer // parallel to scene.Meshes
	textures map[string]gpu.Texture
	blank    gpu.Texture
	ownBlank bool

	missing          map[string]bool
	warnedDegenerate bool
	stats            FrameStats
	closed           bool
}

// New uploads every mesh and image of the scene to the device.
//
// It fails with ErrEmptyScene when the scene has no meshes, and with the
// underlying error when validation, image decoding or any GPU allocation
// fails. Resources created before the failure are released.
func New(device gpu.Device, sc *scene.Scene, opts ...Option) (*Renderer, error) {
	if sc == nil || len(sc.Meshes) == 0 {
		return nil, ErrEmptyScene
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	o := options{
		light:   DefaultLightPosition,
		clear:   [4]float32{0, 0, 0, 1},
		culling: true,
		decode:  texture.Decode,
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		device:   device,
		scene:    sc,
		opts:     o,
		buffers:  make([]gpu.Buffer, 0, len(sc.Meshes)),
		textures: make(map[string]gpu.Texture, len(sc.Images)),
		missing:  make(map[string]bool),
	}

	if err := r.upload(); err != nil {
		if cerr := r.Close(); cerr != nil {
			logger.Warn("releasing partially built renderer", zap.Error(cerr))
		}
		return nil, err
	}

	logger.Info("renderer ready",
		zap.Int("meshes", len(sc.Meshes)),
		zap.Int("materials", len(sc.Materials)),
		zap.Int("textures", len(r.textures)),
		zap.Int("vertices", sc.VertexCount()))
	return r, nil
}

func (r *Renderer) upload() error {
	for _, m := range r.scene.Meshes {
		buf, err := r.device.NewVertexBuffer(m.Vertices)
		if err != nil {
			return fmt.Errorf("creating vertex buffer for mesh %q: %w", m.Name, err)
		}
		r.buffers = append(r.buffers, buf)
	}

	for _, img := range r.scene.Images {
		rgba, err := r.opts.decode(img.Name, img.Data)
		if err != nil {
			return fmt.Errorf("creating texture %q: %w", img.Name, err)
		}
		tex, err := r.device.NewTexture(rgba)
		if err != nil {
			return fmt.Errorf("creating texture %q: %w", img.Name, err)
		}
		if old, ok := r.textures[img.Name]; ok {
			logger.Warn("duplicate image name, keeping the last one", zap.String("texture", img.Name))
			if err := old.Release(); err != nil {
				logger.Warn("releasing replaced texture", zap.String("texture", img.Name), zap.Error(err))
			}
		}
		r.textures[img.Name] = tex
	}

	if tex, ok := r.textures[texture.DefaultBlankName]; ok {
		r.blank = tex
		return nil
	}
	tex, err := r.device.NewTexture(texture.Blank())
	if err != nil {
		return fmt.Errorf("creating blank texture: %w", err)
	}
	r.blank, r.ownBlank = tex, true
	return nil
}

// Render draws one frame as seen from view with the given program.
//
// The view's matrices must be current (for a camera, Update must have run
// after the last move). Each mesh's transform is read once. A draw failure
// aborts the frame and is returned; the frame is then not presented.
func (r *Renderer) Render(view View, program gpu.Program) error {
	if r.closed {
		return ErrClosed
	}
	modelview := view.ModelviewMatrix()
	projection := view.ProjectionMatrix()
	f := r.newFrustum(modelview, projection)

	if err := r.device.BeginFrame(r.opts.clear); err != nil {
		return fmt.Errorf("beginning frame: %w", err)
	}

	stats := FrameStats{Meshes: len(r.scene.Meshes)}
	params := gpu.DefaultDrawParams()

	for i, m := range r.scene.Meshes {
		model, visible := r.cull(f, m)
		if !visible {
			stats.Culled++
			continue
		}

		mat, err := r.scene.Material(m)
		if err != nil {
			r.stats = stats
			return err
		}

		u := gpu.Uniforms{
			Projection:     projection,
			Modelview:      modelview,
			Model:          model,
			LightPosition:  r.opts.light,
			Diffuse:        mat.Diffuse,
			DiffuseTexture: r.resolveTexture(mat),
		}
		if err := r.device.Draw(r.buffers[i], program, &u, params); err != nil {
			r.stats = stats
			return fmt.Errorf("drawing mesh %q: %w", m.Name, err)
		}
		stats.Drawn++
		stats.Vertices += len(m.Vertices)
	}
	r.stats = stats

	if err := r.device.EndFrame(); err != nil {
		return fmt.Errorf("ending frame: %w", err)
	}
	return nil
}

// Frustum builds the view frustum of view with the renderer's frustum
// options.
func (r *Renderer) Frustum(view View) frustum.Frustum {
	return r.newFrustum(view.ModelviewMatrix(), view.ProjectionMatrix())
}

func (r *Renderer) newFrustum(modelview, projection math.Mat4) frustum.Frustum {
	f := frustum.New(modelview, projection, r.opts.frustumOpt...)
	if f.Degenerate() && !r.warnedDegenerate {
		r.warnedDegenerate = true
		logger.Warn("degenerate view frustum, culling is partially disabled")
	}
	return f
}

// cull reads the mesh transform and tests the world-space bounding sphere.
// The radius is not scaled by the transform.
func (r *Renderer) cull(f frustum.Frustum, m *scene.Mesh) (math.Mat4, bool) {
	model := m.Transform()
	if !r.opts.culling {
		return model, true
	}
	c := model.TransformPoint(m.Center)
	return model, f.SphereIntersecting(c[0], c[1], c[2], m.Radius)
}

// resolveTexture returns the material's diffuse texture, or the blank
// texture when the material has none or names an image the scene lacks.
func (r *Renderer) resolveTexture(mat scene.Material) gpu.Texture {
	if mat.DiffuseTexture == "" {
		return r.blank
	}
	if tex, ok := r.textures[mat.DiffuseTexture]; ok {
		return tex
	}
	if !r.missing[mat.DiffuseTexture] {
		r.missing[mat.DiffuseTexture] = true
		logger.Warn("texture not found, using blank texture",
			zap.String("texture", mat.DiffuseTexture),
			zap.String("material", mat.Name))
	}
	return r.blank
}

// Visible returns the indices of the meshes that pass the culling test
// against f, in scene order. It returns nil after Close.
func (r *Renderer) Visible(f frustum.Frustum) []int {
	if r.closed {
		return nil
	}
	var visible []int
	for i, m := range r.scene.Meshes {
		if _, ok := r.cull(f, m); ok {
			visible = append(visible, i)
		}
	}
	return visible
}

// GetMesh returns the scene mesh with the given name, or an error wrapping
// scene.ErrMeshNotFound.
func (r *Renderer) GetMesh(name string) (*scene.Mesh, error) {
	return r.scene.GetMesh(name)
}

// Scene returns the rendered scene.
func (r *Renderer) Scene() *scene.Scene {
	return r.scene
}

// SetCulling turns frustum culling on or off.
func (r *Renderer) SetCulling(enabled bool) {
	r.opts.culling = enabled
}

// Culling reports whether frustum culling is on.
func (r *Renderer) Culling() bool {
	return r.opts.culling
}

// Stats returns the statistics of the last rendered frame.
func (r *Renderer) Stats() FrameStats {
	return r.stats
}

// Close releases every GPU resource. It is safe to call more than once.
func (r *Renderer) Close() error {
	r.closed = true
	var err error
	for _, buf := range r.buffers {
		err = multierr.Append(err, buf.Release())
	}
	r.buffers = nil

	for _, tex := range r.textures {
		err = multierr.Append(err, tex.Release())
	}
	r.textures = map[string]gpu.Texture{}

	if r.ownBlank && r.blank != nil {
		err = multierr.Append(err, r.blank.Release())
	}
	r.blank, r.ownBlank = nil, false
	return err
}
