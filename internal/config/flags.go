package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file (.yaml or .toml)")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagScene      = flag.String("scene", "", "Scene database or Q3D file")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagNoCull     = flag.Bool("no-cull", false, "Disable frustum culling")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Viewer.ShowStats = true
	}
	if *flagScene != "" {
		cfg.Scene.Path = *flagScene
	}
	if *flagWindowed {
		cfg.Display.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Display.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Display.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Display.Height = *flagHeight
	}
	if *flagNoCull {
		cfg.Render.Culling = false
	}
}
