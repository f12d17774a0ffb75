package formats

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Q3D format errors.
var (
	ErrInvalidQ3DMagic       = errors.New("invalid Q3D magic: expected 'Q3DS'")
	ErrUnsupportedQ3DVersion = errors.New("unsupported Q3D version")
	ErrTruncatedQ3DData      = errors.New("truncated Q3D data")
)

// Q3DMagic opens every uncompressed scene file.
const Q3DMagic = "Q3DS"

// Q3DVersion represents the Q3D file version.
type Q3DVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v Q3DVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CurrentQ3DVersion is written by Encode.
var CurrentQ3DVersion = Q3DVersion{Major: 1, Minor: 0}

// Q3DVertex is an interleaved vertex: position, normal, texcoord.
type Q3DVertex [8]float32

// Q3DMaterial is a material record.
type Q3DMaterial struct {
	Name    string
	Diffuse [3]float32
	Texture string
}

// Q3DMesh is a mesh record with its stored bounding sphere.
type Q3DMesh struct {
	Name     string
	Material int32
	Center   [3]float32
	Radius   float32
	Vertices []Q3DVertex
}

// Q3DImage is an encoded image (PNG, TGA, ...) stored by name.
type Q3DImage struct {
	Name string
	Data []byte
}

// Q3D represents a parsed scene file.
type Q3D struct {
	Version   Q3DVersion
	Materials []Q3DMaterial
	Meshes    []Q3DMesh
	Images    []Q3DImage
}

// Sizes of fixed records, used to reject counts the input cannot hold.
const (
	q3dMinMaterialSize = 4 + 12 + 4
	q3dMinMeshSize     = 4 + 4 + 12 + 4 + 4
	q3dMinImageSize    = 4 + 4
	q3dVertexSize      = 8 * 4
)

// ParseQ3D parses a scene from raw bytes. Zlib-compressed input is detected
// and inflated first.
func ParseQ3D(data []byte) (*Q3D, error) {
	if isZlib(data) {
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening zlib stream: %w", err)
		}
		defer zr.Close()

		inflated, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("decompressing: %w", err)
		}
		data = inflated
	}

	if len(data) < 6 {
		return nil, ErrTruncatedQ3DData
	}
	if string(data[0:4]) != Q3DMagic {
		return nil, ErrInvalidQ3DMagic
	}

	q := &Q3D{Version: Q3DVersion{Major: data[4], Minor: data[5]}}
	if q.Version.Major != CurrentQ3DVersion.Major {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedQ3DVersion, q.Version)
	}

	r := bytes.NewReader(data[6:])

	count, err := readCount(r, q3dMinMaterialSize)
	if err != nil {
		return nil, fmt.Errorf("reading material count: %w", err)
	}
	q.Materials = make([]Q3DMaterial, count)
	for i := range q.Materials {
		if err := q.Materials[i].read(r); err != nil {
			return nil, fmt.Errorf("reading material %d: %w", i, err)
		}
	}

	count, err = readCount(r, q3dMinMeshSize)
	if err != nil {
		return nil, fmt.Errorf("reading mesh count: %w", err)
	}
	q.Meshes = make([]Q3DMesh, count)
	for i := range q.Meshes {
		if err := q.Meshes[i].read(r); err != nil {
			return nil, fmt.Errorf("reading mesh %d: %w", i, err)
		}
	}

	count, err = readCount(r, q3dMinImageSize)
	if err != nil {
		return nil, fmt.Errorf("reading image count: %w", err)
	}
	q.Images = make([]Q3DImage, count)
	for i := range q.Images {
		if err := q.Images[i].read(r); err != nil {
			return nil, fmt.Errorf("reading image %d: %w", i, err)
		}
	}

	return q, nil
}

// ParseQ3DFile parses a scene from a file path.
func ParseQ3DFile(path string) (*Q3D, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading Q3D file: %w", err)
	}
	return ParseQ3D(data)
}

// Encode writes the uncompressed scene stream to w.
func (q *Q3D) Encode(w io.Writer) error {
	var buf bytes.Buffer

	buf.WriteString(Q3DMagic)
	buf.WriteByte(CurrentQ3DVersion.Major)
	buf.WriteByte(CurrentQ3DVersion.Minor)

	writeU32(&buf, uint32(len(q.Materials)))
	for _, m := range q.Materials {
		writeString(&buf, m.Name)
		_ = binary.Write(&buf, binary.LittleEndian, m.Diffuse)
		writeString(&buf, m.Texture)
	}

	writeU32(&buf, uint32(len(q.Meshes)))
	for _, m := range q.Meshes {
		writeString(&buf, m.Name)
		_ = binary.Write(&buf, binary.LittleEndian, m.Material)
		_ = binary.Write(&buf, binary.LittleEndian, m.Center)
		_ = binary.Write(&buf, binary.LittleEndian, m.Radius)
		writeU32(&buf, uint32(len(m.Vertices)))
		_ = binary.Write(&buf, binary.LittleEndian, m.Vertices)
	}

	writeU32(&buf, uint32(len(q.Images)))
	for _, img := range q.Images {
		writeString(&buf, img.Name)
		writeU32(&buf, uint32(len(img.Data)))
		buf.Write(img.Data)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeCompressed writes the scene stream wrapped in zlib.
func (q *Q3D) EncodeCompressed(w io.Writer) error {
	zw := zlib.NewWriter(w)
	if err := q.Encode(zw); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// WriteQ3DFile writes a scene to path, compressed or not.
func WriteQ3DFile(path string, q *Q3D, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating Q3D file: %w", err)
	}

	if compress {
		err = q.EncodeCompressed(f)
	} else {
		err = q.Encode(f)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("encoding Q3D file: %w", err)
	}
	return f.Close()
}

// isZlib checks for a zlib header: deflate method and a valid FCHECK.
func isZlib(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

func (m *Q3DMaterial) read(r *bytes.Reader) error {
	var err error
	if m.Name, err = readString(r); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &m.Diffuse); err != nil {
		return ErrTruncatedQ3DData
	}
	m.Texture, err = readString(r)
	return err
}

func (m *Q3DMesh) read(r *bytes.Reader) error {
	var err error
	if m.Name, err = readString(r); err != nil {
		return err
	}

	var header struct {
		Material int32
		Center   [3]float32
		Radius   float32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return ErrTruncatedQ3DData
	}
	if math.IsNaN(float64(header.Radius)) || header.Radius < 0 {
		return fmt.Errorf("invalid bounding radius %v", header.Radius)
	}
	m.Material, m.Center, m.Radius = header.Material, header.Center, header.Radius

	count, err := readCount(r, q3dVertexSize)
	if err != nil {
		return err
	}
	m.Vertices = make([]Q3DVertex, count)
	if err := binary.Read(r, binary.LittleEndian, m.Vertices); err != nil {
		return ErrTruncatedQ3DData
	}
	return nil
}

func (img *Q3DImage) read(r *bytes.Reader) error {
	var err error
	if img.Name, err = readString(r); err != nil {
		return err
	}
	size, err := readCount(r, 1)
	if err != nil {
		return err
	}
	img.Data = make([]byte, size)
	if _, err := io.ReadFull(r, img.Data); err != nil {
		return ErrTruncatedQ3DData
	}
	return nil
}

// readCount reads a u32 element count and checks that the rest of the input
// can hold that many elements of at least minSize bytes.
func readCount(r *bytes.Reader, minSize int) (int, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, ErrTruncatedQ3DData
	}
	if uint64(n)*uint64(minSize) > uint64(r.Len()) {
		return 0, fmt.Errorf("%w: %d elements declared, %d bytes left", ErrTruncatedQ3DData, n, r.Len())
	}
	return int(n), nil
}

// readString reads a u32 length-prefixed string.
func readString(r *bytes.Reader) (string, error) {
	n, err := readCount(r, 1)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", ErrTruncatedQ3DData
	}
	return string(buf), nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
