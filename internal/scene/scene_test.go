package scene

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/quick3d/pkg/math"
)

func quad(x float32) []Vertex {
	return []Vertex{
		{Position: [3]float32{x - 1, -1, 0}, Normal: [3]float32{0, 0, 1}},
		{Position: [3]float32{x + 1, -1, 0}, Normal: [3]float32{0, 0, 1}, TexCoord: [2]float32{1, 0}},
		{Position: [3]float32{x + 1, 1, 0}, Normal: [3]float32{0, 0, 1}, TexCoord: [2]float32{1, 1}},
		{Position: [3]float32{x - 1, 1, 0}, Normal: [3]float32{0, 0, 1}, TexCoord: [2]float32{0, 1}},
	}
}

func testScene() *Scene {
	return &Scene{
		Materials: []Material{
			{Name: "plain", Diffuse: [3]float32{0.8, 0.8, 0.8}},
			{Name: "bricks", Diffuse: [3]float32{1, 1, 1}, DiffuseTexture: "bricks.png"},
		},
		Meshes: []*Mesh{
			NewMesh("Plane", 0, quad(0)),
			NewMesh("Torus", 1, quad(5)),
		},
		Images: []ImageBlob{{Name: "bricks.png", Data: []byte{1, 2, 3}}},
	}
}

func TestComputeBoundingSphere(t *testing.T) {
	center, radius := ComputeBoundingSphere(quad(3))
	assert.Equal(t, [3]float32{3, 0, 0}, center)
	assert.InDelta(t, 1.41421356, radius, 1e-6)
}

func TestComputeBoundingSphereEmpty(t *testing.T) {
	center, radius := ComputeBoundingSphere(nil)
	assert.Equal(t, [3]float32{}, center)
	assert.Zero(t, radius)
}

func TestComputeBoundingSphereSinglePoint(t *testing.T) {
	center, radius := ComputeBoundingSphere([]Vertex{{Position: [3]float32{4, 5, 6}}})
	assert.Equal(t, [3]float32{4, 5, 6}, center)
	assert.Zero(t, radius)
}

func TestGetMesh(t *testing.T) {
	s := testScene()

	m, err := s.GetMesh("Torus")
	require.NoError(t, err)
	assert.Same(t, s.Meshes[1], m)

	m, err = s.GetMesh("Nonexistent")
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ErrMeshNotFound))
	assert.Contains(t, err.Error(), "Nonexistent")
}

func TestGetMeshEmptyScene(t *testing.T) {
	_, err := (&Scene{}).GetMesh("Torus")
	assert.ErrorIs(t, err, ErrMeshNotFound)
}

func TestImageLookup(t *testing.T) {
	s := testScene()

	img, err := s.Image("bricks.png")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, img.Data)

	_, err = s.Image("missing.png")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestMeshTransform(t *testing.T) {
	m := NewMesh("Torus", 0, quad(0))
	assert.Equal(t, math.Identity(), m.Transform())

	m.SetTransform(math.Translate(0, 0, -10))
	center, radius := m.WorldBounds()
	assert.Equal(t, [3]float32{0, 0, -10}, center)
	assert.Equal(t, m.Radius, radius)

	// Scaling leaves the radius alone.
	m.SetTransform(math.Scale(10, 10, 10))
	_, radius = m.WorldBounds()
	assert.Equal(t, m.Radius, radius)
}

func TestMeshTransformConcurrent(t *testing.T) {
	m := NewMesh("Torus", 0, quad(0))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m.SetTransform(math.Translate(float32(i), 0, 0))
		}(i)
		go func() {
			defer wg.Done()
			_ = m.Transform()
		}()
	}
	wg.Wait()

	tr := m.Transform()
	assert.Equal(t, float32(0), tr[13])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Scene)
		wantErr bool
	}{
		{"valid", func(s *Scene) {}, false},
		{"material out of range", func(s *Scene) { s.Meshes[0].MaterialIndex = 2 }, true},
		{"negative material", func(s *Scene) { s.Meshes[1].MaterialIndex = -1 }, true},
		{"unnamed mesh", func(s *Scene) { s.Meshes[0].Name = "" }, true},
		{"nil mesh", func(s *Scene) { s.Meshes[1] = nil }, true},
		{"negative radius", func(s *Scene) { s.Meshes[0].Radius = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScene()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidScene)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecomputeBounds(t *testing.T) {
	s := testScene()
	s.Meshes[1].SetBounds([3]float32{}, 100)

	s.RecomputeBounds()
	assert.Equal(t, [3]float32{5, 0, 0}, s.Meshes[1].Center)
	assert.InDelta(t, 1.41421356, s.Meshes[1].Radius, 1e-6)
}

func TestVertexCount(t *testing.T) {
	assert.Equal(t, 8, testScene().VertexCount())
}

func TestFileRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "scene.bin")
		want := testScene()
		want.Meshes[0].SetBounds([3]float32{0, 0.5, 0}, 3)

		require.NoError(t, want.SaveFile(path, compress))
		got, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, want.Materials, got.Materials)
		assert.Equal(t, want.Images, got.Images)
		require.Len(t, got.Meshes, 2)
		for i := range want.Meshes {
			assert.Equal(t, want.Meshes[i].Name, got.Meshes[i].Name)
			assert.Equal(t, want.Meshes[i].Vertices, got.Meshes[i].Vertices)
			assert.Equal(t, want.Meshes[i].MaterialIndex, got.Meshes[i].MaterialIndex)
			assert.Equal(t, want.Meshes[i].Center, got.Meshes[i].Center)
			assert.Equal(t, want.Meshes[i].Radius, got.Meshes[i].Radius)
			assert.Equal(t, math.Identity(), got.Meshes[i].Transform())
		}
	}
}

func TestLoadFileRejectsBadMaterial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	s := testScene()
	s.Meshes[0].MaterialIndex = 7
	require.NoError(t, s.SaveFile(path, false))

	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrInvalidScene)
}
