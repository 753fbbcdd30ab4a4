package opengl

import (
	_ "embed"
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"
)

//go:embed shaders/pathtrace.comp
var pathTraceSource string

//go:embed shaders/overlay.comp
var overlaySource string

// Kernel is a linked compute program.
type Kernel struct {
	name    string
	program uint32
	tile    [3]int32
}

// PathTracer compiles the built-in progressive path tracing kernel.
func (d *Device) PathTracer() (*Kernel, error) {
	return d.CompileKernel("pathtrace", pathTraceSource)
}

// CompileKernel compiles and links a compute shader and reads back its local
// work-group size.
func (d *Device) CompileKernel(name, src string) (*Kernel, error) {
	cs, err := compileShader(src, gl.COMPUTE_SHADER)
	if err != nil {
		return nil, fmt.Errorf("compile %s kernel: %w", name, err)
	}
	defer gl.DeleteShader(cs)

	k := &Kernel{name: name, program: gl.CreateProgram()}
	gl.AttachShader(k.program, cs)
	gl.LinkProgram(k.program)

	var status int32
	gl.GetProgramiv(k.program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(k.program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(k.program, logLen, nil, &log[0])
		gl.DeleteProgram(k.program)
		return nil, fmt.Errorf("link %s kernel: %s", name, string(log))
	}
	gl.GetProgramiv(k.program, gl.COMPUTE_WORK_GROUP_SIZE, &k.tile[0])
	d.log.Debug("kernel linked", "name", name, "tile", fmt.Sprintf("%dx%d", k.tile[0], k.tile[1]))
	return k, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(src + "\x00")
	defer free()
	gl.ShaderSource(shader, 1, csources, nil)
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("shader compile: %s", string(log))
	}
	return shader, nil
}

func (k *Kernel) TileSize() (uint32, uint32) { return uint32(k.tile[0]), uint32(k.tile[1]) }

func (k *Kernel) Release() {
	if k.program != 0 {
		gl.DeleteProgram(k.program)
		k.program = 0
	}
}
