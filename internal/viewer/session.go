package viewer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/quick3d/internal/assets"
	"github.com/Faultbox/quick3d/internal/config"
	"github.com/Faultbox/quick3d/internal/engine/camera"
	"github.com/Faultbox/quick3d/internal/engine/frustum"
	"github.com/Faultbox/quick3d/internal/engine/gpu"
	"github.com/Faultbox/quick3d/internal/engine/input"
	"github.com/Faultbox/quick3d/internal/engine/renderer"
	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/logger"
	"github.com/Faultbox/quick3d/internal/scene"
	"github.com/Faultbox/quick3d/pkg/math"
)

// session is the device-independent part of the viewer: camera, renderer,
// movable mesh and console commands. The Viewer feeds it input and drives
// frames.
type session struct {
	cfg      *config.Config
	cam      *camera.Camera
	renderer *renderer.Renderer
	program  gpu.Program
	cache    *assets.TextureCache
	out      io.Writer

	// movable is nil when the scene has no mesh named cfg.Viewer.MovableMesh.
	movable     *scene.Mesh
	movableBase math.Mat4
	movableX    float32
	movableY    float32

	quit bool
}

// newSession uploads sc to dev and compiles the best shader in sources for
// the device.
func newSession(cfg *config.Config, dev gpu.Device, sc *scene.Scene, sources []shader.Source, width, height int, out io.Writer) (*session, error) {
	src, err := shader.Select(sources, dev.ShadingLanguageVersion())
	if err != nil {
		return nil, err
	}
	logger.Info("using shader",
		zap.String("name", src.Name),
		zap.Int("version", src.Version),
		zap.Int("device_version", dev.ShadingLanguageVersion()))

	program, err := dev.NewProgram(src)
	if err != nil {
		return nil, fmt.Errorf("compiling shader %q: %w", src.Name, err)
	}

	cache := assets.NewTextureCache()
	r, err := renderer.New(dev, sc, rendererOptions(cfg, cache)...)
	if err != nil {
		_ = program.Release()
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		cam:      camera.New(width, height),
		renderer: r,
		program:  program,
		cache:    cache,
		out:      out,
	}
	s.cam.MoveBackward(cfg.Camera.StartDistance)
	s.cam.Update()

	if name := cfg.Viewer.MovableMesh; name != "" {
		m, err := r.GetMesh(name)
		if err != nil {
			logger.Info("movable mesh not in scene, I/J/K/L disabled", zap.String("mesh", name))
		} else {
			s.movable = m
			s.movableBase = m.Transform()
		}
	}
	return s, nil
}

func rendererOptions(cfg *config.Config, cache *assets.TextureCache) []renderer.Option {
	var fopts []frustum.Option
	if cfg.Render.SphereTest == config.SphereTestOffset {
		fopts = append(fopts, frustum.WithSphereOffset())
	}
	if cfg.Render.LegacyNear {
		fopts = append(fopts, frustum.WithLegacyNearNormalization())
	}
	return []renderer.Option{
		renderer.WithCulling(cfg.Render.Culling),
		renderer.WithLightPosition(cfg.Render.LightPosition),
		renderer.WithClearColor(cfg.Render.ClearColor),
		renderer.WithFrustumOptions(fopts...),
		renderer.WithDecoder(cache.Decode),
	}
}

// update applies one frame of input. dt is the frame time in seconds.
func (s *session) update(st *input.State, dt float64) {
	if st.Quit || st.Pressed(sdl.SCANCODE_ESCAPE) {
		s.quit = true
	}
	if st.Resized && st.Width > 0 && st.Height > 0 {
		s.cam.Resize(st.Width, st.Height)
	}

	camCfg := s.cfg.Camera
	if st.Held(sdl.SCANCODE_W) {
		s.cam.MoveForward(camCfg.ForwardSpeed)
	}
	if st.Held(sdl.SCANCODE_S) {
		s.cam.MoveBackward(camCfg.ForwardSpeed)
	}
	if st.Pressed(sdl.SCANCODE_A) {
		s.cam.MoveLeft(camCfg.Step)
	}
	if st.Pressed(sdl.SCANCODE_D) {
		s.cam.MoveRight(camCfg.Step)
	}
	if st.ButtonHeld(sdl.BUTTON_LEFT) && (st.MouseDX != 0 || st.MouseDY != 0) {
		// Dragging right turns right, which decreases the yaw.
		scale := camCfg.AimSensitivity / camera.AimSensitivity
		s.cam.Aim(-float64(st.MouseDX)*scale, -float64(st.MouseDY)*scale)
	}
	s.cam.Update()

	s.moveMesh(st, dt)
}

func (s *session) moveMesh(st *input.State, dt float64) {
	if s.movable == nil {
		return
	}
	step := s.cfg.Viewer.MoveStep * float32(dt)
	moved := false
	if st.Held(sdl.SCANCODE_I) {
		s.movableY += step
		moved = true
	}
	if st.Held(sdl.SCANCODE_K) {
		s.movableY -= step
		moved = true
	}
	if st.Held(sdl.SCANCODE_J) {
		s.movableX -= step
		moved = true
	}
	if st.Held(sdl.SCANCODE_L) {
		s.movableX += step
		moved = true
	}
	if moved {
		s.movable.SetTransform(math.Translate(s.movableX, s.movableY, 0).Mul(s.movableBase))
	}
}

func (s *session) render() error {
	return s.renderer.Render(s.cam, s.program)
}

// execute runs one console command and writes its reply to s.out.
func (s *session) execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "stats":
		st := s.renderer.Stats()
		hits, misses := s.cache.Stats()
		fmt.Fprintf(s.out, "meshes %d, drawn %d, culled %d, vertices %d, textures cached %d (%d hits, %d misses)\n",
			st.Meshes, st.Drawn, st.Culled, st.Vertices, s.cache.Len(), hits, misses)
	case "pos":
		p, d := s.cam.Position(), s.cam.Direction()
		fmt.Fprintf(s.out, "position (%.3f, %.3f, %.3f), direction (%.3f, %.3f, %.3f)\n",
			p.X, p.Y, p.Z, d.X, d.Y, d.Z)
	case "cull":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return errors.New("usage: cull on|off")
		}
		s.renderer.SetCulling(args[0] == "on")
		fmt.Fprintf(s.out, "culling %s\n", args[0])
	case "visible":
		f := s.renderer.Frustum(s.cam)
		sc := s.renderer.Scene()
		for _, i := range s.renderer.Visible(f) {
			fmt.Fprintln(s.out, sc.Meshes[i].Name)
		}
	case "quit", "exit":
		s.quit = true
	case "help":
		fmt.Fprintln(s.out, "commands: stats, pos, visible, cull on|off, quit")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (s *session) close() error {
	return multierr.Combine(
		s.renderer.Close(),
		s.program.Release(),
	)
}
