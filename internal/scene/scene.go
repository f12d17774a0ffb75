// Package scene holds the in-memory scene: materials, meshes and the encoded
// images their materials reference.
//
// A scene is built once by a loader and is immutable afterwards except for
// each mesh's transform, which game logic may change between frames.
package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/quick3d/internal/logger"
	"github.com/Faultbox/quick3d/pkg/math"
)

// Scene errors.
var (
	ErrMeshNotFound  = errors.New("mesh not found")
	ErrImageNotFound = errors.New("image not found")
	ErrInvalidScene  = errors.New("invalid scene")
)

// Vertex is an interleaved vertex as uploaded to the GPU.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// Material describes how a mesh is shaded. An empty DiffuseTexture selects
// the default blank texture.
type Material struct {
	Name           string
	Diffuse        [3]float32
	DiffuseTexture string
}

// ImageBlob is an encoded image (PNG, TGA, ...) referenced by material name.
type ImageBlob struct {
	Name string
	Data []byte
}

// Mesh is a named triangle list with a local-space bounding sphere and a
// local-to-world transform.
type Mesh struct {
	Name          string
	Vertices      []Vertex
	MaterialIndex int

	// Bounding sphere in local space.
	Center [3]float32
	Radius float32

	mu        sync.RWMutex
	transform math.Mat4
}

// NewMesh creates a mesh with an identity transform and a bounding sphere
// computed from its vertices.
func NewMesh(name string, materialIndex int, vertices []Vertex) *Mesh {
	center, radius := ComputeBoundingSphere(vertices)
	if radius == 0 {
		logger.Warn("mesh has a zero bounding radius",
			zap.String("mesh", name),
			zap.Int("vertices", len(vertices)))
	}
	return NewMeshWithBounds(name, materialIndex, vertices, center, radius)
}

// NewMeshWithBounds creates a mesh with an identity transform and a known
// bounding sphere.
func NewMeshWithBounds(name string, materialIndex int, vertices []Vertex, center [3]float32, radius float32) *Mesh {
	return &Mesh{
		Name:          name,
		Vertices:      vertices,
		MaterialIndex: materialIndex,
		Center:        center,
		Radius:        radius,
		transform:     math.Identity(),
	}
}

// SetBounds replaces the bounding sphere, e.g. with values stored in a
// scene file.
func (m *Mesh) SetBounds(center [3]float32, radius float32) {
	m.Center = center
	m.Radius = radius
}

// Transform returns the current local-to-world transform.
func (m *Mesh) Transform() math.Mat4 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transform
}

// SetTransform replaces the local-to-world transform. Safe to call while
// another goroutine renders; the renderer reads the transform once per frame.
func (m *Mesh) SetTransform(t math.Mat4) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transform = t
}

// WorldBounds returns the bounding sphere center transformed to world space
// together with the unscaled radius.
func (m *Mesh) WorldBounds() (center [3]float32, radius float32) {
	return m.Transform().TransformPoint(m.Center), m.Radius
}

// ComputeBoundingSphere returns the centroid of the vertex positions and the
// largest distance from it.
func ComputeBoundingSphere(vertices []Vertex) (center [3]float32, radius float32) {
	if len(vertices) == 0 {
		return center, 0
	}

	var sum [3]float64
	for _, v := range vertices {
		sum[0] += float64(v.Position[0])
		sum[1] += float64(v.Position[1])
		sum[2] += float64(v.Position[2])
	}
	n := float64(len(vertices))
	center = [3]float32{float32(sum[0] / n), float32(sum[1] / n), float32(sum[2] / n)}

	for _, v := range vertices {
		dx := v.Position[0] - center[0]
		dy := v.Position[1] - center[1]
		dz := v.Position[2] - center[2]
		if d := math32.Sqrt(dx*dx + dy*dy + dz*dz); d > radius {
			radius = d
		}
	}
	return center, radius
}

// Scene owns materials, meshes and images.
type Scene struct {
	Materials []Material
	Meshes    []*Mesh
	Images    []ImageBlob
}

// GetMesh returns the first mesh with the given name.
func (s *Scene) GetMesh(name string) (*Mesh, error) {
	for _, m := range s.Meshes {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrMeshNotFound, name)
}

// Image returns the encoded image with the given name.
func (s *Scene) Image(name string) (ImageBlob, error) {
	for _, img := range s.Images {
		if img.Name == name {
			return img, nil
		}
	}
	return ImageBlob{}, fmt.Errorf("%w: %q", ErrImageNotFound, name)
}

// Material returns the material of a mesh.
func (s *Scene) Material(m *Mesh) (Material, error) {
	if m.MaterialIndex < 0 || m.MaterialIndex >= len(s.Materials) {
		return Material{}, fmt.Errorf("%w: mesh %q uses material %d of %d",
			ErrInvalidScene, m.Name, m.MaterialIndex, len(s.Materials))
	}
	return s.Materials[m.MaterialIndex], nil
}

// Validate checks that every mesh references an existing material and has a
// name and a usable bounding radius.
func (s *Scene) Validate() error {
	for i, m := range s.Meshes {
		if m == nil {
			return fmt.Errorf("%w: mesh %d is nil", ErrInvalidScene, i)
		}
		if m.Name == "" {
			return fmt.Errorf("%w: mesh %d has no name", ErrInvalidScene, i)
		}
		if _, err := s.Material(m); err != nil {
			return err
		}
		if math32.IsNaN(m.Radius) || m.Radius < 0 {
			return fmt.Errorf("%w: mesh %q has radius %v", ErrInvalidScene, m.Name, m.Radius)
		}
	}
	return nil
}

// VertexCount returns the total number of vertices over all meshes.
func (s *Scene) VertexCount() int {
	n := 0
	for _, m := range s.Meshes {
		n += len(m.Vertices)
	}
	return n
}

// RecomputeBounds replaces every mesh's bounding sphere with one computed
// from its vertices.
func (s *Scene) RecomputeBounds() {
	for _, m := range s.Meshes {
		m.SetBounds(ComputeBoundingSphere(m.Vertices))
	}
}
