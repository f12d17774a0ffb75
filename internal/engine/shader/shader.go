// Package shader holds GLSL sources and picks the variant a device can
// compile.
package shader

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Uniform names the renderer sets on every draw.
const (
	UniformProjection     = "projection"
	UniformModelview      = "modelview"
	UniformModel          = "model"
	UniformLightPosition  = "light_position_worldspace"
	UniformDiffuse        = "diffuse"
	UniformDiffuseTexture = "diffuse_texture"
)

// Vertex attribute names and locations.
const (
	AttribPosition = "position"
	AttribNormal   = "normal"
	AttribTexCoord = "texcoord"

	LocationPosition = 0
	LocationNormal   = 1
	LocationTexCoord = 2
)

// DefaultName is the name of the built-in shader.
const DefaultName = "default"

var (
	ErrNoCompatibleShader = errors.New("no compatible shader version")
	ErrInvalidVersion     = errors.New("invalid GLSL version")
)

// Source is one GLSL version of a vertex/fragment pair.
type Source struct {
	Name     string
	Version  int // e.g. 140, 330, 410
	Vertex   string
	Fragment string
}

//go:embed glsl/*.vert glsl/*.frag
var glslFS embed.FS

var defaultVersions = []int{140, 330, 410}

// Default returns the built-in shader in every version it ships with.
func Default() []Source {
	sources := make([]Source, 0, len(defaultVersions))
	for _, v := range defaultVersions {
		vert, err := glslFS.ReadFile(fmt.Sprintf("glsl/default_%d.vert", v))
		if err != nil {
			panic(err)
		}
		frag, err := glslFS.ReadFile(fmt.Sprintf("glsl/default_%d.frag", v))
		if err != nil {
			panic(err)
		}
		sources = append(sources, Source{
			Name:     DefaultName,
			Version:  v,
			Vertex:   string(vert),
			Fragment: string(frag),
		})
	}
	return sources
}

// Select returns the source with the highest version not above supported.
func Select(sources []Source, supported int) (Source, error) {
	sorted := append([]Source(nil), sources...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version > sorted[j].Version })

	for _, s := range sorted {
		if s.Version <= supported {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("%w: device supports GLSL %d, have %s",
		ErrNoCompatibleShader, supported, versionList(sorted))
}

func versionList(sources []Source) string {
	if len(sources) == 0 {
		return "none"
	}
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = strconv.Itoa(s.Version)
	}
	return strings.Join(parts, ", ")
}

// ParseVersion turns a driver version string such as "4.10 NVIDIA 535.54"
// or "OpenGL ES GLSL ES 3.00" into a number like 410 or 300.
func ParseVersion(s string) (int, error) {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	field := s[start:]
	if end := strings.IndexFunc(field, func(r rune) bool { return r != '.' && !unicode.IsDigit(r) }); end >= 0 {
		field = field[:end]
	}

	majorStr, minorStr, _ := strings.Cut(field, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}

	minor := 0
	if minorStr != "" {
		// "4.1" and "4.10" are the same version; only two digits count.
		if len(minorStr) == 1 {
			minorStr += "0"
		}
		if minor, err = strconv.Atoi(minorStr[:2]); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
	}
	return major*100 + minor, nil
}
