// Package viewer implements the interactive scene viewer: window, input,
// console commands and the frame loop.
package viewer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/quick3d/internal/assets"
	"github.com/Faultbox/quick3d/internal/config"
	"github.com/Faultbox/quick3d/internal/engine/gpu/glbackend"
	"github.com/Faultbox/quick3d/internal/engine/input"
	"github.com/Faultbox/quick3d/internal/engine/window"
	"github.com/Faultbox/quick3d/internal/logger"
)

// Viewer is the main viewer instance.
type Viewer struct {
	config  *config.Config
	running bool
	window  *window.Window
	device  *glbackend.Device
	input   *input.Poller
	console *input.ConsoleReader
	session *session
}

// New loads the scene and shaders named by cfg, opens the window and
// uploads the scene to the GPU.
func New(ctx context.Context, cfg *config.Config) (*Viewer, error) {
	logger.Info("initializing viewer",
		zap.String("scene", cfg.Scene.Path),
		zap.Int("width", cfg.Display.Width),
		zap.Int("height", cfg.Display.Height),
	)

	sc, err := assets.LoadScene(ctx, cfg.Scene.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}
	logger.Info("scene loaded",
		zap.Int("meshes", len(sc.Meshes)),
		zap.Int("materials", len(sc.Materials)),
		zap.Int("images", len(sc.Images)),
		zap.Int("vertices", sc.VertexCount()))

	shaderDB := cfg.Shader.Database
	if shaderDB == "" && assets.IsDatabase(cfg.Scene.Path) {
		shaderDB = cfg.Scene.Path
	}
	sources, err := assets.LoadShaderSources(ctx, shaderDB, cfg.Shader.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load shader: %w", err)
	}

	v := &Viewer{config: cfg}

	// Hidden until the first frame is drawn.
	v.window, err = window.New(window.Config{
		Title:      cfg.Display.Title,
		Width:      cfg.Display.Width,
		Height:     cfg.Display.Height,
		Fullscreen: cfg.Display.Fullscreen,
		VSync:      cfg.Display.VSync,
		Hidden:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The device needs the GL context the window just created.
	v.device, err = glbackend.New(v.window.SwapBuffers)
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create GL device: %w", err)
	}
	w, h := v.window.DrawableSize()
	v.device.Resize(w, h)

	v.session, err = newSession(cfg, v.device, sc, sources, w, h, os.Stdout)
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v.input = input.NewPoller()
	if cfg.Viewer.Console {
		v.console = input.NewConsoleReader(os.Stdin)
	}

	logger.Info("viewer initialized successfully")
	return v, nil
}

// Run starts the frame loop. It returns when the window is closed, Escape
// is pressed or the console sends quit.
func (v *Viewer) Run() error {
	v.running = true

	lastTime := time.Now()
	frameCount := 0
	statsTimer := time.Now()
	interval := time.Duration(v.config.Viewer.StatsInterval * float64(time.Second))
	shown := false

	logger.Info("starting frame loop")

	for v.running {
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		// 1. Input
		st := v.input.Poll()
		if st.Resized {
			w, h := v.window.DrawableSize()
			v.device.Resize(w, h)
		}
		if st.ButtonPressed(sdl.BUTTON_LEFT) {
			v.window.SetRelativeMouse(true)
		}
		if st.ButtonReleased(sdl.BUTTON_LEFT) {
			v.window.SetRelativeMouse(false)
		}
		v.session.update(st, dt)
		v.runConsole()

		if v.session.quit {
			v.running = false
			break
		}

		// 2. Render and present
		if err := v.session.render(); err != nil {
			return fmt.Errorf("render error: %w", err)
		}
		if !shown {
			v.window.Show()
			shown = true
		}

		frameCount++
		if interval > 0 && time.Since(statsTimer) >= interval {
			v.reportStats(frameCount, time.Since(statsTimer))
			frameCount = 0
			statsTimer = time.Now()
		}
	}

	return nil
}

func (v *Viewer) runConsole() {
	if v.console == nil {
		return
	}
	for _, line := range v.console.Lines() {
		if err := v.session.execute(line); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (v *Viewer) reportStats(frames int, elapsed time.Duration) {
	fps := float64(frames) / elapsed.Seconds()
	st := v.session.renderer.Stats()
	logger.Debug("frame stats",
		zap.Float64("fps", fps),
		zap.Int("meshes", st.Meshes),
		zap.Int("drawn", st.Drawn),
		zap.Int("culled", st.Culled),
		zap.Int("vertices", st.Vertices))

	if v.config.Viewer.ShowStats {
		v.window.SetTitle(fmt.Sprintf("%s - %.0f fps, %d/%d meshes",
			v.config.Display.Title, fps, st.Drawn, st.Meshes))
	}
}

// Close releases GPU resources and destroys the window.
func (v *Viewer) Close() {
	logger.Info("closing viewer")

	if v.console != nil {
		// Closing stdin may not unblock a terminal read; the goroutine
		// dies with the process.
		_ = v.console.Close()
	}
	if v.session != nil {
		if err := v.session.close(); err != nil {
			logger.Warn("failed to release GPU resources", zap.Error(err))
		}
	}
	if v.window != nil {
		v.window.Close()
	}
}
