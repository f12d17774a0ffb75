// Package glbackend implements gpu.Device on OpenGL 4.1 core.
package glbackend

import (
	"errors"
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/quick3d/internal/engine/gpu"
	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/engine/texture"
	"github.com/Faultbox/quick3d/internal/logger"
	"github.com/Faultbox/quick3d/internal/scene"
)

var (
	ErrReleased = errors.New("glbackend: handle already released")
	ErrEmpty    = errors.New("glbackend: empty upload")
)

// Device issues GL calls on the context current on the calling thread.
// IMPORTANT: New must be called after the GL context is created.
type Device struct {
	swap        func()
	glslVersion int
}

// New initializes GL function pointers and default state. swap presents a
// finished frame, typically the window's SwapBuffers.
func New(swap func()) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	version := gl.GoStr(gl.GetString(gl.VERSION))
	glsl := gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION))
	logger.Info("OpenGL initialized",
		zap.String("version", version),
		zap.String("glsl", glsl),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	glslVersion, err := shader.ParseVersion(glsl)
	if err != nil {
		return nil, err
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)

	return &Device{swap: swap, glslVersion: glslVersion}, nil
}

// Resize sets the viewport to the drawable size.
func (d *Device) Resize(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("viewport resized", zap.Int("width", width), zap.Int("height", height))
}

func (d *Device) ShadingLanguageVersion() int {
	return d.glslVersion
}

type buffer struct {
	dev      *Device
	vao, vbo uint32
	count    int32
}

func (b *buffer) Len() int { return int(b.count) }

func (b *buffer) Release() error {
	if b.vao == 0 {
		return ErrReleased
	}
	gl.DeleteVertexArrays(1, &b.vao)
	gl.DeleteBuffers(1, &b.vbo)
	b.vao, b.vbo = 0, 0
	return nil
}

// NewVertexBuffer uploads interleaved vertices into a VBO described by a
// VAO: position, normal and texcoord at the shader's attribute locations.
func (d *Device) NewVertexBuffer(vertices []scene.Vertex) (gpu.Buffer, error) {
	if len(vertices) == 0 {
		return nil, ErrEmpty
	}
	b := &buffer{dev: d, count: int32(len(vertices))}
	stride := int32(unsafe.Sizeof(scene.Vertex{}))

	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)

	gl.GenBuffers(1, &b.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*int(stride), unsafe.Pointer(&vertices[0]), gl.STATIC_DRAW)

	gl.VertexAttribPointerWithOffset(shader.LocationPosition, 3, gl.FLOAT, false, stride, unsafe.Offsetof(scene.Vertex{}.Position))
	gl.EnableVertexAttribArray(shader.LocationPosition)
	gl.VertexAttribPointerWithOffset(shader.LocationNormal, 3, gl.FLOAT, false, stride, unsafe.Offsetof(scene.Vertex{}.Normal))
	gl.EnableVertexAttribArray(shader.LocationNormal)
	gl.VertexAttribPointerWithOffset(shader.LocationTexCoord, 2, gl.FLOAT, false, stride, unsafe.Offsetof(scene.Vertex{}.TexCoord))
	gl.EnableVertexAttribArray(shader.LocationTexCoord)

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	if err := glError("vertex buffer"); err != nil {
		_ = b.Release()
		return nil, err
	}
	return b, nil
}

type glTexture struct {
	dev           *Device
	id            uint32
	width, height int
}

func (t *glTexture) Size() (int, int) { return t.width, t.height }

func (t *glTexture) Release() error {
	if t.id == 0 {
		return ErrReleased
	}
	gl.DeleteTextures(1, &t.id)
	t.id = 0
	return nil
}

// NewTexture uploads an image with mipmaps. Rows are flipped so that
// texture coordinate (0, 0) is the bottom-left corner.
func (d *Device) NewTexture(img *image.RGBA) (gpu.Texture, error) {
	if img == nil || len(img.Pix) == 0 {
		return nil, ErrEmpty
	}
	flipped := texture.FlipVertical(img)
	w, h := flipped.Bounds().Dx(), flipped.Bounds().Dy()

	t := &glTexture{dev: d, width: w, height: h}
	gl.GenTextures(1, &t.id)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&flipped.Pix[0]))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if err := glError("texture"); err != nil {
		_ = t.Release()
		return nil, err
	}
	return t, nil
}

func (d *Device) NewProgram(src shader.Source) (gpu.Program, error) {
	id, err := compileProgram(src)
	if err != nil {
		return nil, fmt.Errorf("shader %s (GLSL %d): %w", src.Name, src.Version, err)
	}
	logger.Debug("shader program created",
		zap.String("name", src.Name),
		zap.Int("version", src.Version),
		zap.Uint32("program", id))
	return &program{dev: d, id: id, name: src.Name, uniforms: lookupUniforms(id)}, nil
}

func (d *Device) BeginFrame(clear [4]float32) error {
	gl.ClearColor(clear[0], clear[1], clear[2], clear[3])
	gl.DepthMask(true)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	return nil
}

func (d *Device) Draw(buf gpu.Buffer, prog gpu.Program, u *gpu.Uniforms, p gpu.DrawParams) error {
	b, ok := buf.(*buffer)
	if !ok || b.dev != d {
		return fmt.Errorf("buffer: %w", gpu.ErrForeignHandle)
	}
	pr, ok := prog.(*program)
	if !ok || pr.dev != d {
		return fmt.Errorf("program: %w", gpu.ErrForeignHandle)
	}
	if b.vao == 0 || pr.id == 0 {
		return ErrReleased
	}

	var texID uint32
	if u.DiffuseTexture != nil {
		t, ok := u.DiffuseTexture.(*glTexture)
		if !ok || t.dev != d {
			return fmt.Errorf("texture: %w", gpu.ErrForeignHandle)
		}
		texID = t.id
	}

	switch p.DepthTest {
	case gpu.DepthLess:
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LESS)
	default:
		gl.Disable(gl.DEPTH_TEST)
	}
	gl.DepthMask(p.DepthWrite)

	gl.UseProgram(pr.id)
	gl.UniformMatrix4fv(pr.location(shader.UniformProjection), 1, false, u.Projection.Ptr())
	gl.UniformMatrix4fv(pr.location(shader.UniformModelview), 1, false, u.Modelview.Ptr())
	gl.UniformMatrix4fv(pr.location(shader.UniformModel), 1, false, u.Model.Ptr())
	gl.Uniform3f(pr.location(shader.UniformLightPosition), u.LightPosition[0], u.LightPosition[1], u.LightPosition[2])
	gl.Uniform3f(pr.location(shader.UniformDiffuse), u.Diffuse[0], u.Diffuse[1], u.Diffuse[2])

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, texID)
	gl.Uniform1i(pr.location(shader.UniformDiffuseTexture), 0)

	gl.BindVertexArray(b.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, b.count)
	gl.BindVertexArray(0)

	return glError("draw")
}

func (d *Device) EndFrame() error {
	if err := glError("frame"); err != nil {
		return err
	}
	if d.swap != nil {
		d.swap()
	}
	return nil
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("glbackend: %s: GL error 0x%04x", op, code)
	}
	return nil
}
