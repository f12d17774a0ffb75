package viewer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/quick3d/internal/config"
	"github.com/Faultbox/quick3d/internal/engine/gpu/gputest"
	"github.com/Faultbox/quick3d/internal/engine/input"
	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/scene"
	"github.com/Faultbox/quick3d/pkg/math"
)

func testScene() *scene.Scene {
	tri := []scene.Vertex{
		{Position: [3]float32{-1, 0, 0}, Normal: [3]float32{0, 0, -1}},
		{Position: [3]float32{1, 0, 0}, Normal: [3]float32{0, 0, -1}},
		{Position: [3]float32{0, 1, 0}, Normal: [3]float32{0, 0, -1}},
	}
	return &scene.Scene{
		Materials: []scene.Material{{Name: "plain", Diffuse: [3]float32{1, 1, 1}}},
		Meshes: []*scene.Mesh{
			scene.NewMeshWithBounds("Torus", 0, tri, [3]float32{0, 1, 1}, 2),
			scene.NewMeshWithBounds("far", 0, tri, [3]float32{0, 1, -2000}, 1),
		},
	}
}

type fixture struct {
	dev *gputest.Device
	s   *session
	out *bytes.Buffer
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	dev := gputest.New()
	out := &bytes.Buffer{}
	s, err := newSession(cfg, dev, testScene(), shader.Default(), 800, 600, out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.close() })
	return &fixture{dev: dev, s: s, out: out}
}

func frame(events ...input.Event) *input.State {
	st := input.NewState()
	for _, e := range events {
		st.Apply(e)
	}
	return st
}

func TestNewSession(t *testing.T) {
	f := newFixture(t, nil)

	require.Len(t, f.dev.Programs, 1)
	assert.Equal(t, 410, f.dev.Programs[0].Source.Version)
	assert.Len(t, f.dev.Buffers, 2)

	pos := f.s.cam.Position()
	assert.InDelta(t, -6, pos.Z, 1e-5, "camera starts behind the origin")
	require.NotNil(t, f.s.movable)
	assert.Equal(t, "Torus", f.s.movable.Name)
}

func TestNewSessionOldDevice(t *testing.T) {
	dev := gputest.New()
	dev.Version = 330
	s, err := newSession(config.Default(), dev, testScene(), shader.Default(), 800, 600, &bytes.Buffer{})
	require.NoError(t, err)
	defer s.close()

	assert.Equal(t, 330, dev.Programs[0].Source.Version)
}

func TestNewSessionNoShader(t *testing.T) {
	dev := gputest.New()
	dev.Version = 120
	_, err := newSession(config.Default(), dev, testScene(), shader.Default(), 800, 600, &bytes.Buffer{})
	assert.ErrorIs(t, err, shader.ErrNoCompatibleShader)
}

func TestNewSessionWithoutMovableMesh(t *testing.T) {
	cfg := config.Default()
	cfg.Viewer.MovableMesh = "Teapot"
	f := newFixture(t, cfg)

	assert.Nil(t, f.s.movable)
	f.s.update(frame(input.Event{Type: input.EventKeyDown, Key: sdl.SCANCODE_I}), 1)
}

func TestUpdateMovesCamera(t *testing.T) {
	f := newFixture(t, nil)
	start := f.s.cam.Position()

	f.s.update(frame(input.Event{Type: input.EventKeyDown, Key: sdl.SCANCODE_W}), 0.016)
	assert.InDelta(t, start.Z+0.1, f.s.cam.Position().Z, 1e-5)

	f.s.update(frame(input.Event{Type: input.EventKeyDown, Key: sdl.SCANCODE_D}), 0.016)
	assert.InDelta(t, start.X-0.5, f.s.cam.Position().X, 1e-5, "right is -X at the start orientation")
	assert.False(t, f.s.quit)
}

func TestUpdateAimsWhileDragging(t *testing.T) {
	f := newFixture(t, nil)

	f.s.update(frame(input.Event{Type: input.EventMouseMove, XRel: 10}), 0.016)
	h, _ := f.s.cam.Angles()
	assert.Zero(t, h, "no aim without the left button")

	f.s.update(frame(
		input.Event{Type: input.EventMouseDown, Button: sdl.BUTTON_LEFT},
		input.Event{Type: input.EventMouseMove, XRel: 10},
	), 0.016)
	h, _ = f.s.cam.Angles()
	assert.InDelta(t, -0.1, h, 1e-9)
}

func TestUpdateQuit(t *testing.T) {
	f := newFixture(t, nil)
	f.s.update(frame(input.Event{Type: input.EventKeyDown, Key: sdl.SCANCODE_ESCAPE}), 0.016)
	assert.True(t, f.s.quit)

	g := newFixture(t, nil)
	g.s.update(frame(input.Event{Type: input.EventQuit}), 0.016)
	assert.True(t, g.s.quit)
}

func TestUpdateMovesMesh(t *testing.T) {
	f := newFixture(t, nil)

	f.s.update(frame(
		input.Event{Type: input.EventKeyDown, Key: sdl.SCANCODE_I},
		input.Event{Type: input.EventKeyDown, Key: sdl.SCANCODE_L},
	), 2)
	assert.Equal(t, math.Translate(0.5, 0.5, 0), f.s.movable.Transform())
}

func TestExecute(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.s.render())

	require.NoError(t, f.s.execute("stats"))
	assert.Contains(t, f.out.String(), "drawn 1, culled 1")

	f.out.Reset()
	require.NoError(t, f.s.execute("visible"))
	assert.Equal(t, "Torus\n", f.out.String())

	require.NoError(t, f.s.execute("cull off"))
	assert.False(t, f.s.renderer.Culling())
	require.NoError(t, f.s.execute("  cull on "))
	assert.True(t, f.s.renderer.Culling())

	f.out.Reset()
	require.NoError(t, f.s.execute("pos"))
	assert.Contains(t, f.out.String(), "position (0.000, 1.000, -6.000)")

	assert.Error(t, f.s.execute("cull maybe"))
	assert.Error(t, f.s.execute("fly"))
	assert.NoError(t, f.s.execute(""))

	assert.False(t, f.s.quit)
	require.NoError(t, f.s.execute("quit"))
	assert.True(t, f.s.quit)
}

func TestCloseReleases(t *testing.T) {
	dev := gputest.New()
	s, err := newSession(config.Default(), dev, testScene(), shader.Default(), 800, 600, &bytes.Buffer{})
	require.NoError(t, err)

	require.NoError(t, s.close())
	assert.True(t, dev.Released())
	assert.True(t, dev.Programs[0].Released)
}
