package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	sources := Default()
	require.Len(t, sources, 3)

	for _, s := range sources {
		assert.Equal(t, DefaultName, s.Name)
		assert.True(t, strings.HasPrefix(s.Vertex, "#version "), "version %d vertex", s.Version)
		assert.True(t, strings.HasPrefix(s.Fragment, "#version "), "version %d fragment", s.Version)

		for _, u := range []string{UniformProjection, UniformModelview, UniformModel} {
			assert.Contains(t, s.Vertex, "uniform mat4 "+u+";", "version %d", s.Version)
		}
		assert.Contains(t, s.Vertex, "uniform vec3 "+UniformLightPosition+";")
		assert.Contains(t, s.Fragment, "uniform vec3 "+UniformDiffuse+";")
		assert.Contains(t, s.Fragment, "uniform sampler2D "+UniformDiffuseTexture+";")
	}
}

func TestSelect(t *testing.T) {
	sources := []Source{{Version: 330}, {Version: 140}, {Version: 410}}

	tests := []struct {
		supported int
		want      int
		wantErr   bool
	}{
		{460, 410, false},
		{410, 410, false},
		{400, 330, false},
		{330, 330, false},
		{150, 140, false},
		{130, 0, true},
	}

	for _, tt := range tests {
		got, err := Select(sources, tt.supported)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrNoCompatibleShader, "supported %d", tt.supported)
			continue
		}
		require.NoError(t, err, "supported %d", tt.supported)
		assert.Equal(t, tt.want, got.Version, "supported %d", tt.supported)
	}

	// Input order is left alone.
	assert.Equal(t, 330, sources[0].Version)
}

func TestSelectEmpty(t *testing.T) {
	_, err := Select(nil, 460)
	assert.ErrorIs(t, err, ErrNoCompatibleShader)
	assert.Contains(t, err.Error(), "none")
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"4.10", 410, false},
		{"4.10 NVIDIA via Cg compiler", 410, false},
		{"4.60 NVIDIA 535.54.03", 460, false},
		{"OpenGL ES GLSL ES 3.00", 300, false},
		{"1.40", 140, false},
		{"3.3", 330, false},
		{"4", 400, false},
		{"", 0, true},
		{"no digits here", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidVersion, "%q", tt.in)
			continue
		}
		require.NoError(t, err, "%q", tt.in)
		assert.Equal(t, tt.want, got, "%q", tt.in)
	}
}
