package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/particle.wgsl
var particleShaderSource string

// compileShaderToSPIRV compiles WGSL source to SPIR-V words. Running the
// source through naga up front surfaces shader errors at pipeline
// creation instead of deep inside the driver.
func compileShaderToSPIRV(wgslSource string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// createParticleShader validates the particle shader with naga and
// creates the HAL module from the resulting SPIR-V.
func createParticleShader(device hal.Device) (hal.ShaderModule, error) {
	if particleShaderSource == "" {
		return nil, fmt.Errorf("particle shader source is empty")
	}
	spirv, err := compileShaderToSPIRV(particleShaderSource)
	if err != nil {
		return nil, err
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "particle_shader",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
}
