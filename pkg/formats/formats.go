// Package formats provides readers and writers for quick3d file formats.
package formats

// Note: Q3D (binary scene, optionally zlib-compressed) is implemented in q3d.go
