// Package gputest provides a recording gpu.Device for tests.
package gputest

import (
	"errors"
	"fmt"
	"image"

	"github.com/Faultbox/quick3d/internal/engine/gpu"
	"github.com/Faultbox/quick3d/internal/engine/shader"
	"github.com/Faultbox/quick3d/internal/scene"
)

// ErrNotInFrame is returned by Draw and EndFrame outside BeginFrame/EndFrame.
var ErrNotInFrame = errors.New("not inside a frame")

// Buffer is a recorded vertex buffer.
type Buffer struct {
	Vertices []scene.Vertex
	Released bool
	dev      *Device
}

func (b *Buffer) Len() int { return len(b.Vertices) }

func (b *Buffer) Release() error {
	b.Released = true
	return nil
}

// Texture is a recorded texture.
type Texture struct {
	Image    *image.RGBA
	Released bool
	dev      *Device
}

func (t *Texture) Size() (int, int) {
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

func (t *Texture) Release() error {
	t.Released = true
	return nil
}

// Program is a recorded program.
type Program struct {
	Source   shader.Source
	Released bool
	dev      *Device
}

func (p *Program) Release() error {
	p.Released = true
	return nil
}

// Draw is one recorded draw call.
type Draw struct {
	Buffer   *Buffer
	Program  *Program
	Uniforms gpu.Uniforms
	Params   gpu.DrawParams
}

// Device records everything it is asked to do.
//
// The Fail* fields make the matching call fail with that error. FailDraw
// only kicks in after FailDrawAt draws of the frame have succeeded.
type Device struct {
	Version int

	Buffers  []*Buffer
	Textures []*Texture
	Programs []*Program

	Frames int    // frames ended
	Draws  []Draw // draws of the current or last frame
	Clear  [4]float32

	FailBuffer  error
	FailTexture error
	FailProgram error
	FailDraw    error
	FailDrawAt  int

	inFrame bool
}

// New returns a device that reports GLSL 4.10.
func New() *Device {
	return &Device{Version: 410}
}

func (d *Device) NewVertexBuffer(vertices []scene.Vertex) (gpu.Buffer, error) {
	if d.FailBuffer != nil {
		return nil, d.FailBuffer
	}
	b := &Buffer{Vertices: vertices, dev: d}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) NewTexture(img *image.RGBA) (gpu.Texture, error) {
	if d.FailTexture != nil {
		return nil, d.FailTexture
	}
	t := &Texture{Image: img, dev: d}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) NewProgram(src shader.Source) (gpu.Program, error) {
	if d.FailProgram != nil {
		return nil, d.FailProgram
	}
	p := &Program{Source: src, dev: d}
	d.Programs = append(d.Programs, p)
	return p, nil
}

func (d *Device) ShadingLanguageVersion() int {
	return d.Version
}

func (d *Device) BeginFrame(clear [4]float32) error {
	d.inFrame = true
	d.Clear = clear
	d.Draws = d.Draws[:0]
	return nil
}

func (d *Device) Draw(buf gpu.Buffer, prog gpu.Program, u *gpu.Uniforms, p gpu.DrawParams) error {
	if !d.inFrame {
		return ErrNotInFrame
	}
	b, ok := buf.(*Buffer)
	if !ok || b.dev != d {
		return fmt.Errorf("buffer: %w", gpu.ErrForeignHandle)
	}
	pr, ok := prog.(*Program)
	if !ok || pr.dev != d {
		return fmt.Errorf("program: %w", gpu.ErrForeignHandle)
	}
	if u.DiffuseTexture != nil {
		if t, ok := u.DiffuseTexture.(*Texture); !ok || t.dev != d {
			return fmt.Errorf("texture: %w", gpu.ErrForeignHandle)
		}
	}
	if d.FailDraw != nil && len(d.Draws) >= d.FailDrawAt {
		return d.FailDraw
	}
	d.Draws = append(d.Draws, Draw{Buffer: b, Program: pr, Uniforms: *u, Params: p})
	return nil
}

func (d *Device) EndFrame() error {
	if !d.inFrame {
		return ErrNotInFrame
	}
	d.inFrame = false
	d.Frames++
	return nil
}

// Released reports whether every resource the device created was released.
func (d *Device) Released() bool {
	for _, b := range d.Buffers {
		if !b.Released {
			return false
		}
	}
	for _, t := range d.Textures {
		if !t.Released {
			return false
		}
	}
	for _, p := range d.Programs {
		if !p.Released {
			return false
		}
	}
	return true
}
