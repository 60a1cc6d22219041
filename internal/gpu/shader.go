package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/core"
)

// Embedded WGSL shader sources, compiled at first use.

//go:embed shaders/blit.wgsl
var blitWGSL string

//go:embed shaders/convert.wgsl
var convertWGSL string

//go:embed shaders/scale_separable.wgsl
var scaleSeparableWGSL string

//go:embed shaders/scale_polar.wgsl
var scalePolarWGSL string

//go:embed shaders/scale_polar_compute.wgsl
var scalePolarComputeWGSL string

//go:embed shaders/scale_fixed.wgsl
var scaleFixedWGSL string

//go:embed shaders/deband.wgsl
var debandWGSL string

//go:embed shaders/output.wgsl
var outputWGSL string

//go:embed shaders/peak_detect.wgsl
var peakDetectWGSL string

// ShaderKind names a built-in shader.
type ShaderKind uint8

const (
	// ShaderBlit copies and renormalizes a plane.
	ShaderBlit ShaderKind = iota

	// ShaderConvert runs plane fetch, the YUV matrix and
	// linearize/sigmoid.
	ShaderConvert

	// ShaderScaleSeparable is one axis of a separable convolution.
	ShaderScaleSeparable

	// ShaderScalePolar is the EWA fragment path.
	ShaderScalePolar

	// ShaderScalePolarCompute is the EWA compute fast path.
	ShaderScalePolarCompute

	// ShaderScaleFixed packs the bicubic and oversample fast paths.
	ShaderScaleFixed

	// ShaderDeband is the built-in debanding hook.
	ShaderDeband

	// ShaderOutput is tone mapping, dither and composite.
	ShaderOutput

	// ShaderPeakDetect is the HDR peak reduction.
	ShaderPeakDetect
)

// source returns the WGSL text for the kind.
func (k ShaderKind) source() string {
	switch k {
	case ShaderBlit:
		return blitWGSL
	case ShaderConvert:
		return convertWGSL
	case ShaderScaleSeparable:
		return scaleSeparableWGSL
	case ShaderScalePolar:
		return scalePolarWGSL
	case ShaderScalePolarCompute:
		return scalePolarComputeWGSL
	case ShaderScaleFixed:
		return scaleFixedWGSL
	case ShaderDeband:
		return debandWGSL
	case ShaderOutput:
		return outputWGSL
	case ShaderPeakDetect:
		return peakDetectWGSL
	default:
		return ""
	}
}

// compute reports whether the kind dispatches as a compute pass.
func (k ShaderKind) compute() bool {
	return k == ShaderScalePolarCompute || k == ShaderPeakDetect
}

// String returns the shader name.
func (k ShaderKind) String() string {
	switch k {
	case ShaderBlit:
		return "blit"
	case ShaderConvert:
		return "convert"
	case ShaderScaleSeparable:
		return "scale-separable"
	case ShaderScalePolar:
		return "scale-polar"
	case ShaderScalePolarCompute:
		return "scale-polar-compute"
	case ShaderScaleFixed:
		return "scale-fixed"
	case ShaderDeband:
		return "deband"
	case ShaderOutput:
		return "output"
	case ShaderPeakDetect:
		return "peak-detect"
	default:
		return "unknown"
	}
}

// compileWGSL compiles WGSL source to SPIR-V words.
func compileWGSL(src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("gpu: shader compilation failed: %w", err)
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}

// shaderCache memoizes compiled SPIR-V, wgpu modules and compute
// pipelines per shader kind. Module creation only happens when a real
// device is present; the software path never needs it.
type shaderCache struct {
	compiled  map[ShaderKind][]uint32
	modules   map[ShaderKind]core.ShaderModuleID
	pipelines map[ShaderKind]core.ComputePipelineID
}

func newShaderCache() *shaderCache {
	return &shaderCache{
		compiled:  make(map[ShaderKind][]uint32),
		modules:   make(map[ShaderKind]core.ShaderModuleID),
		pipelines: make(map[ShaderKind]core.ComputePipelineID),
	}
}

// get returns the compiled SPIR-V for the kind, compiling on first
// use.
func (c *shaderCache) get(k ShaderKind) ([]uint32, error) {
	if words, ok := c.compiled[k]; ok {
		return words, nil
	}
	src := k.source()
	if src == "" {
		return nil, fmt.Errorf("gpu: no source for shader %s", k)
	}
	words, err := compileWGSL(src)
	if err != nil {
		return nil, fmt.Errorf("gpu: %s: %w", k, err)
	}
	c.compiled[k] = words
	return words, nil
}

// shaderModule returns the wgpu module for a built-in shader, creating
// it on first use. Requires a ready device.
func (d *Device) shaderModule(k ShaderKind) (core.ShaderModuleID, error) {
	if id, ok := d.shaders.modules[k]; ok {
		return id, nil
	}
	words, err := d.shaders.get(k)
	if err != nil {
		return core.ShaderModuleID{}, err
	}
	id, err := d.CreateShaderModule(words, k.String())
	if err != nil {
		return core.ShaderModuleID{}, fmt.Errorf("gpu: %s module: %w", k, err)
	}
	d.shaders.modules[k] = id
	return id, nil
}

// computePipeline returns the compute pipeline for a compute-kind
// shader, creating it on first use.
func (d *Device) computePipeline(k ShaderKind) (core.ComputePipelineID, error) {
	if id, ok := d.shaders.pipelines[k]; ok {
		return id, nil
	}
	mod, err := d.shaderModule(k)
	if err != nil {
		return core.ComputePipelineID{}, err
	}
	id, err := core.DeviceCreateComputePipeline(d.deviceID, &core.ComputePipelineDescriptor{
		Label:   k.String(),
		Compute: core.ProgrammableStage{Module: mod, EntryPoint: "cs_main"},
	})
	if err != nil {
		return core.ComputePipelineID{}, fmt.Errorf("gpu: %s pipeline: %w", k, err)
	}
	d.shaders.pipelines[k] = id
	return id, nil
}
