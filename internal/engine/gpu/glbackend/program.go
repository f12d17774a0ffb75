package glbackend

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/quick3d/internal/engine/shader"
)

// program is a linked GL program with its uniform locations looked up once.
type program struct {
	dev      *Device
	id       uint32
	name     string
	uniforms map[string]int32
}

var uniformNames = []string{
	shader.UniformProjection,
	shader.UniformModelview,
	shader.UniformModel,
	shader.UniformLightPosition,
	shader.UniformDiffuse,
	shader.UniformDiffuseTexture,
}

func (p *program) Release() error {
	if p.id == 0 {
		return ErrReleased
	}
	gl.DeleteProgram(p.id)
	p.id = 0
	return nil
}

// location returns the cached location of a uniform, -1 when the program
// does not use it. GL ignores uploads to -1.
func (p *program) location(name string) int32 {
	if loc, ok := p.uniforms[name]; ok {
		return loc
	}
	return -1
}

// compileProgram compiles and links a vertex/fragment pair. Attribute
// locations are bound before linking so sources without layout qualifiers
// match the vertex buffer layout.
func compileProgram(src shader.Source) (uint32, error) {
	vert, err := compileShader(src.Vertex, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vert)

	frag, err := compileShader(src.Fragment, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(frag)

	id := gl.CreateProgram()
	gl.AttachShader(id, vert)
	gl.AttachShader(id, frag)
	gl.BindAttribLocation(id, shader.LocationPosition, gl.Str(shader.AttribPosition+"\x00"))
	gl.BindAttribLocation(id, shader.LocationNormal, gl.Str(shader.AttribNormal+"\x00"))
	gl.BindAttribLocation(id, shader.LocationTexCoord, gl.Str(shader.AttribTexCoord+"\x00"))
	gl.LinkProgram(id)

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(id, logLen, nil, &log[0])
		gl.DeleteProgram(id)
		return 0, fmt.Errorf("link: %s", gl.GoStr(&log[0]))
	}
	return id, nil
}

func compileShader(source string, shaderType uint32, stage string) (uint32, error) {
	id := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(id, 1, csource, nil)
	free()
	gl.CompileShader(id)

	var status int32
	gl.GetShaderiv(id, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(id, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(id, logLen, nil, &log[0])
		gl.DeleteShader(id)
		return 0, fmt.Errorf("%s shader: %s", stage, gl.GoStr(&log[0]))
	}
	return id, nil
}

func lookupUniforms(id uint32) map[string]int32 {
	locs := make(map[string]int32, len(uniformNames))
	for _, name := range uniformNames {
		if loc := gl.GetUniformLocation(id, gl.Str(name+"\x00")); loc >= 0 {
			locs[name] = loc
		}
	}
	return locs
}
