// Package config handles viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Sphere test modes for RenderConfig.SphereTest.
const (
	SphereTestPlane  = "plane"  // signed distance without the plane offset
	SphereTestOffset = "offset" // full signed distance
)

// Config holds all viewer settings.
type Config struct {
	Display DisplayConfig `yaml:"display" toml:"display"`
	Scene   SceneConfig   `yaml:"scene" toml:"scene"`
	Shader  ShaderConfig  `yaml:"shader" toml:"shader"`
	Camera  CameraConfig  `yaml:"camera" toml:"camera"`
	Render  RenderConfig  `yaml:"render" toml:"render"`
	Viewer  ViewerConfig  `yaml:"viewer" toml:"viewer"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// DisplayConfig holds window settings.
type DisplayConfig struct {
	Title      string `yaml:"title" toml:"title"`
	Width      int    `yaml:"width" toml:"width"`
	Height     int    `yaml:"height" toml:"height"`
	Fullscreen bool   `yaml:"fullscreen" toml:"fullscreen"`
	VSync      bool   `yaml:"vsync" toml:"vsync"`
}

// SceneConfig selects the scene to show.
type SceneConfig struct {
	Path string `yaml:"path" toml:"path"` // .db/.sqlite database or Q3D file
}

// ShaderConfig selects the shader program. An empty database means the
// scene database when the scene is one.
type ShaderConfig struct {
	Name     string `yaml:"name" toml:"name"`
	Database string `yaml:"database" toml:"database"`
}

// CameraConfig holds camera placement and movement speeds.
type CameraConfig struct {
	StartDistance  float32 `yaml:"start_distance" toml:"start_distance"`
	ForwardSpeed   float32 `yaml:"forward_speed" toml:"forward_speed"` // per frame while held
	Step           float32 `yaml:"step" toml:"step"`                   // per strafe key press
	AimSensitivity float64 `yaml:"aim_sensitivity" toml:"aim_sensitivity"`
}

// RenderConfig holds renderer settings.
type RenderConfig struct {
	Culling       bool       `yaml:"culling" toml:"culling"`
	SphereTest    string     `yaml:"sphere_test" toml:"sphere_test"`
	LegacyNear    bool       `yaml:"legacy_near" toml:"legacy_near"`
	LightPosition [3]float32 `yaml:"light_position" toml:"light_position"`
	ClearColor    [4]float32 `yaml:"clear_color" toml:"clear_color"`
}

// ViewerConfig holds interactive viewer settings.
type ViewerConfig struct {
	MovableMesh   string  `yaml:"movable_mesh" toml:"movable_mesh"`
	MoveStep      float32 `yaml:"move_step" toml:"move_step"` // units per second while held
	Console       bool    `yaml:"console" toml:"console"`
	ShowStats     bool    `yaml:"show_stats" toml:"show_stats"`
	StatsInterval float64 `yaml:"stats_interval" toml:"stats_interval"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			Title:      "quick3d",
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Scene: SceneConfig{
			Path: "scene.db",
		},
		Shader: ShaderConfig{
			Name: "default",
		},
		Camera: CameraConfig{
			StartDistance:  6,
			ForwardSpeed:   0.1,
			Step:           0.5,
			AimSensitivity: 0.01,
		},
		// Offset sphere test: without the plane offset, meshes more than a
		// radius ahead of the world origin are culled.
		Render: RenderConfig{
			Culling:       true,
			SphereTest:    SphereTestOffset,
			LightPosition: [3]float32{2, 10, 1},
			ClearColor:    [4]float32{0.1, 0.1, 0.15, 1},
		},
		Viewer: ViewerConfig{
			MovableMesh:   "Torus",
			MoveStep:      0.25,
			Console:       true,
			StatsInterval: 1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values the viewer cannot run with.
func (c *Config) Validate() error {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("%w: display size %dx%d", ErrInvalidConfig, c.Display.Width, c.Display.Height)
	}
	if c.Scene.Path == "" {
		return fmt.Errorf("%w: no scene path", ErrInvalidConfig)
	}
	switch c.Render.SphereTest {
	case SphereTestPlane, SphereTestOffset:
	default:
		return fmt.Errorf("%w: render.sphere_test %q, want %q or %q",
			ErrInvalidConfig, c.Render.SphereTest, SphereTestPlane, SphereTestOffset)
	}
	return nil
}
