package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/scene"
	"github.com/Faultbox/quick3d/internal/scenedb"
)

func testScene() *scene.Scene {
	verts := []scene.Vertex{
		{Position: [3]float32{0, 0, 0}},
		{Position: [3]float32{1, 0, 0}},
		{Position: [3]float32{0, 1, 0}},
	}
	return &scene.Scene{
		Materials: []scene.Material{{Name: "white", Diffuse: [3]float32{1, 1, 1}}},
		Meshes:    []*scene.Mesh{scene.NewMesh("tri", 0, verts)},
	}
}

func TestIsDatabase(t *testing.T) {
	assert.True(t, IsDatabase("scene.db"))
	assert.True(t, IsDatabase("/tmp/Scene.SQLite"))
	assert.False(t, IsDatabase("scene.bin"))
	assert.False(t, IsDatabase("scene.bin.gz"))
	assert.False(t, IsDatabase("db"))
}

func TestSaveAndLoadScene(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, name := range []string{"scene.bin", "scene.bin.gz", "scene.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveScene(ctx, testScene(), path, false))

			sc, err := LoadScene(ctx, path)
			require.NoError(t, err)
			require.Len(t, sc.Meshes, 1)
			assert.Equal(t, "tri", sc.Meshes[0].Name)
			assert.Len(t, sc.Meshes[0].Vertices, 3)
			assert.Equal(t, "white", sc.Materials[0].Name)
		})
	}
}

func TestLoadSceneMissing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := LoadScene(ctx, filepath.Join(dir, "missing.db"))
	assert.ErrorIs(t, err, scenedb.ErrDatabaseNotFound)

	_, err = LoadScene(ctx, filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)
}

func TestLoadShaderSources(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shaders.db")

	db, err := scenedb.Create(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveShader(ctx, "toon", []shader.Source{{Version: 330, Vertex: "v", Fragment: "f"}}))
	require.NoError(t, db.Close())

	sources, err := LoadShaderSources(ctx, "", "toon")
	require.NoError(t, err)
	assert.Equal(t, shader.Default(), sources)

	sources, err = LoadShaderSources(ctx, path, "toon")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "toon", sources[0].Name)

	sources, err = LoadShaderSources(ctx, path, "unknown")
	require.NoError(t, err)
	assert.Equal(t, shader.Default(), sources)

	_, err = LoadShaderSources(ctx, filepath.Join(t.TempDir(), "none.db"), "toon")
	assert.ErrorIs(t, err, scenedb.ErrDatabaseNotFound)
}

func encodePNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTextureCache(t *testing.T) {
	c := NewTextureCache()
	red := encodePNG(t, color.RGBA{255, 0, 0, 255})
	blue := encodePNG(t, color.RGBA{0, 0, 255, 255})

	a, err := c.Decode("a.png", red)
	require.NoError(t, err)
	b, err := c.Decode("a.png", red)
	require.NoError(t, err)
	assert.Same(t, a, b)

	// Same name, different content.
	other, err := c.Decode("a.png", blue)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, other.RGBAAt(0, 0))

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
	assert.Equal(t, 2, c.Len())

	_, err = c.Decode("bad.png", []byte("nope"))
	assert.Error(t, err)
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
	hits, misses = c.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestTextureCacheConcurrent(t *testing.T) {
	c := NewTextureCache()
	data := encodePNG(t, color.RGBA{1, 2, 3, 255})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				img, err := c.Decode("shared.png", data)
				if assert.NoError(t, err) {
					assert.Equal(t, color.RGBA{1, 2, 3, 255}, img.RGBAAt(0, 0))
				}
			}
		}()
	}
	wg.Wait()

	hits, misses := c.Stats()
	assert.Equal(t, 160, hits+misses)
	assert.Equal(t, 1, c.Len())
}
