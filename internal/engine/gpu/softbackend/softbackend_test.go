package softbackend

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/quick3d/internal/engine/camera"
	"github.com/Faultbox/quick3d/internal/engine/gpu"
	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/engine/texture"
	"github.com/Faultbox/quick3d/internal/scene"
	"github.com/Faultbox/quick3d/pkg/math"
)

// quad returns two triangles covering x in [-s, s], y in [1-s, 1+s] at depth
// z, facing the default camera.
func quad(z, s float32) []scene.Vertex {
	n := [3]float32{0, 0, -1}
	v := func(x, y float32) scene.Vertex {
		return scene.Vertex{Position: [3]float32{x, y, z}, Normal: n}
	}
	return []scene.Vertex{
		v(-s, 1-s), v(s, 1-s), v(s, 1+s),
		v(-s, 1-s), v(s, 1+s), v(-s, 1+s),
	}
}

type fixture struct {
	dev   *Device
	prog  gpu.Program
	blank gpu.Texture
	cam   *camera.Camera
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dev := New(64, 48, opts...)
	prog, err := dev.NewProgram(shader.Default()[0])
	require.NoError(t, err)
	blank, err := dev.NewTexture(texture.Blank())
	require.NoError(t, err)
	cam := camera.New(64, 48)
	cam.Update()
	return &fixture{dev: dev, prog: prog, blank: blank, cam: cam}
}

func (f *fixture) uniforms(diffuse [3]float32) *gpu.Uniforms {
	return &gpu.Uniforms{
		Projection:     f.cam.ProjectionMatrix(),
		Modelview:      f.cam.ModelviewMatrix(),
		Model:          math.Identity(),
		LightPosition:  [3]float32{0, 1, -50},
		Diffuse:        diffuse,
		DiffuseTexture: f.blank,
	}
}

func (f *fixture) draw(t *testing.T, vertices []scene.Vertex, diffuse [3]float32) {
	t.Helper()
	buf, err := f.dev.NewVertexBuffer(vertices)
	require.NoError(t, err)
	require.NoError(t, f.dev.Draw(buf, f.prog, f.uniforms(diffuse), gpu.DefaultDrawParams()))
}

func rgba(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestRenderQuad(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dev.BeginFrame([4]float32{0, 0, 0, 1}))
	f.draw(t, quad(3, 1), [3]float32{1, 0, 0})
	require.NoError(t, f.dev.EndFrame())

	img := f.dev.Image()
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	center := rgba(img, 32, 24)
	assert.Greater(t, center.R, center.G)
	assert.Greater(t, center.R, center.B)
	assert.GreaterOrEqual(t, int(center.R), 70)

	assert.Equal(t, color.RGBA{0, 0, 0, 255}, rgba(img, 0, 0))
	assert.Equal(t, 1, f.dev.Draws())
}

func TestSolidTextureTints(t *testing.T) {
	f := newFixture(t)
	green := image.NewRGBA(image.Rect(0, 0, 1, 1))
	green.SetRGBA(0, 0, color.RGBA{0, 255, 0, 255})
	tex, err := f.dev.NewTexture(green)
	require.NoError(t, err)

	buf, err := f.dev.NewVertexBuffer(quad(3, 1))
	require.NoError(t, err)
	u := f.uniforms([3]float32{1, 1, 1})
	u.DiffuseTexture = tex

	require.NoError(t, f.dev.BeginFrame([4]float32{0, 0, 0, 1}))
	require.NoError(t, f.dev.Draw(buf, f.prog, u, gpu.DefaultDrawParams()))
	require.NoError(t, f.dev.EndFrame())

	center := rgba(f.dev.Image(), 32, 24)
	assert.Greater(t, center.G, center.R)
	assert.Greater(t, center.G, center.B)
}

func TestDepthTest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.dev.BeginFrame([4]float32{0, 0, 0, 1}))
	f.draw(t, quad(2, 1), [3]float32{0, 1, 0})
	f.draw(t, quad(4, 2), [3]float32{1, 0, 0})
	require.NoError(t, f.dev.EndFrame())

	center := rgba(f.dev.Image(), 32, 24)
	assert.Greater(t, center.G, center.R, "the nearer green quad must win")
}

func TestSupersampling(t *testing.T) {
	f := newFixture(t, WithSupersampling(2))
	require.NoError(t, f.dev.BeginFrame([4]float32{0, 0, 1, 1}))
	require.NoError(t, f.dev.EndFrame())

	img := f.dev.Image()
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
	c := rgba(img, 10, 10)
	assert.InDelta(t, 255, int(c.B), 1)
	assert.LessOrEqual(t, int(c.R), 1)
}

func TestFrameOrdering(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, f.dev.Image())

	buf, err := f.dev.NewVertexBuffer(quad(3, 1))
	require.NoError(t, err)

	assert.ErrorIs(t, f.dev.Draw(buf, f.prog, f.uniforms([3]float32{1, 1, 1}), gpu.DefaultDrawParams()), ErrNotInFrame)
	assert.ErrorIs(t, f.dev.EndFrame(), ErrNotInFrame)
}

func TestForeignHandles(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)

	buf, err := f.dev.NewVertexBuffer(quad(3, 1))
	require.NoError(t, err)
	foreignBuf, err := other.dev.NewVertexBuffer(quad(3, 1))
	require.NoError(t, err)

	require.NoError(t, f.dev.BeginFrame([4]float32{}))
	u := f.uniforms([3]float32{1, 1, 1})

	assert.ErrorIs(t, f.dev.Draw(foreignBuf, f.prog, u, gpu.DefaultDrawParams()), gpu.ErrForeignHandle)
	assert.ErrorIs(t, f.dev.Draw(buf, other.prog, u, gpu.DefaultDrawParams()), gpu.ErrForeignHandle)

	u.DiffuseTexture = other.blank
	assert.ErrorIs(t, f.dev.Draw(buf, f.prog, u, gpu.DefaultDrawParams()), gpu.ErrForeignHandle)
}

func TestReleasedHandles(t *testing.T) {
	f := newFixture(t)
	buf, err := f.dev.NewVertexBuffer(quad(3, 1))
	require.NoError(t, err)

	require.NoError(t, buf.Release())
	assert.ErrorIs(t, buf.Release(), ErrReleased)

	require.NoError(t, f.dev.BeginFrame([4]float32{}))
	assert.ErrorIs(t, f.dev.Draw(buf, f.prog, f.uniforms([3]float32{1, 1, 1}), gpu.DefaultDrawParams()), ErrReleased)
}

func TestBufferAndTextureSizes(t *testing.T) {
	dev := New(8, 8)

	buf, err := dev.NewVertexBuffer(quad(3, 1)[:5])
	require.NoError(t, err)
	assert.Equal(t, 5, buf.Len())
	assert.Len(t, buf.(*buffer).triangles, 1)

	tex, err := dev.NewTexture(image.NewRGBA(image.Rect(0, 0, 4, 2)))
	require.NoError(t, err)
	assert.IsType(t, &softTexture{}, tex)
	w, h := tex.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)

	_, err = dev.NewTexture(nil)
	assert.Error(t, err)
}

func TestNewProgramVersion(t *testing.T) {
	dev := New(8, 8)
	assert.Equal(t, ShadingLanguageVersion, dev.ShadingLanguageVersion())

	for _, src := range shader.Default() {
		_, err := dev.NewProgram(src)
		assert.NoError(t, err, "version %d", src.Version)
	}

	_, err := dev.NewProgram(shader.Source{Name: "future", Version: 460})
	assert.ErrorIs(t, err, shader.ErrNoCompatibleShader)
}

func TestToMatrix(t *testing.T) {
	m := math.Translate(1, 2, 3)
	fm := toMatrix(m)

	p := fm.MulPosition(vec([3]float32{1, 1, 1}))
	assert.InDelta(t, 2, p.X, 1e-6)
	assert.InDelta(t, 3, p.Y, 1e-6)
	assert.InDelta(t, 4, p.Z, 1e-6)
}
