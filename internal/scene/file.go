package scene

import (
	"fmt"

	"github.com/Faultbox/quick3d/pkg/formats"
)

// FromQ3D converts a parsed scene file. Stored bounding spheres are kept;
// meshes stored with a zero radius get one computed from their vertices.
func FromQ3D(q *formats.Q3D) *Scene {
	s := &Scene{
		Materials: make([]Material, len(q.Materials)),
		Meshes:    make([]*Mesh, len(q.Meshes)),
		Images:    make([]ImageBlob, len(q.Images)),
	}

	for i, m := range q.Materials {
		s.Materials[i] = Material{Name: m.Name, Diffuse: m.Diffuse, DiffuseTexture: m.Texture}
	}

	for i, qm := range q.Meshes {
		vertices := make([]Vertex, len(qm.Vertices))
		for j, v := range qm.Vertices {
			vertices[j] = Vertex{
				Position: [3]float32{v[0], v[1], v[2]},
				Normal:   [3]float32{v[3], v[4], v[5]},
				TexCoord: [2]float32{v[6], v[7]},
			}
		}
		if qm.Radius > 0 {
			s.Meshes[i] = NewMeshWithBounds(qm.Name, int(qm.Material), vertices, qm.Center, qm.Radius)
		} else {
			s.Meshes[i] = NewMesh(qm.Name, int(qm.Material), vertices)
		}
	}

	for i, img := range q.Images {
		s.Images[i] = ImageBlob{Name: img.Name, Data: img.Data}
	}
	return s
}

// Q3D converts the scene to its file representation.
func (s *Scene) Q3D() *formats.Q3D {
	q := &formats.Q3D{
		Version:   formats.CurrentQ3DVersion,
		Materials: make([]formats.Q3DMaterial, len(s.Materials)),
		Meshes:    make([]formats.Q3DMesh, len(s.Meshes)),
		Images:    make([]formats.Q3DImage, len(s.Images)),
	}

	for i, m := range s.Materials {
		q.Materials[i] = formats.Q3DMaterial{Name: m.Name, Diffuse: m.Diffuse, Texture: m.DiffuseTexture}
	}

	for i, m := range s.Meshes {
		qm := formats.Q3DMesh{
			Name:     m.Name,
			Material: int32(m.MaterialIndex),
			Center:   m.Center,
			Radius:   m.Radius,
			Vertices: make([]formats.Q3DVertex, len(m.Vertices)),
		}
		for j, v := range m.Vertices {
			qm.Vertices[j] = formats.Q3DVertex{
				v.Position[0], v.Position[1], v.Position[2],
				v.Normal[0], v.Normal[1], v.Normal[2],
				v.TexCoord[0], v.TexCoord[1],
			}
		}
		q.Meshes[i] = qm
	}

	for i, img := range s.Images {
		q.Images[i] = formats.Q3DImage{Name: img.Name, Data: img.Data}
	}
	return q
}

// LoadFile reads a scene from a Q3D file, compressed or not.
func LoadFile(path string) (*Scene, error) {
	q, err := formats.ParseQ3DFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading scene %s: %w", path, err)
	}
	s := FromQ3D(q)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("loading scene %s: %w", path, err)
	}
	return s, nil
}

// SaveFile writes the scene to a Q3D file.
func (s *Scene) SaveFile(path string, compress bool) error {
	return formats.WriteQ3DFile(path, s.Q3D(), compress)
}
