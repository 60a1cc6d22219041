// Package gpu implements the video rendering engine: per-frame pass
// assembly from plane merge through color conversion, scaling, hooks,
// tone mapping and dithering, plus the texture cache and the surface
// ring used for temporal interpolation.
//
// The engine receives its GPU device from the host through
// gpucontext.DeviceProvider; it never creates one. Without a device
// (headless tests, CI) all texture operations degrade to CPU-side
// logical textures and scaling runs through the software path.
package gpu

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"
)

// Texture-related errors.
var (
	// ErrTextureReleased is returned when operating on a released texture.
	ErrTextureReleased = errors.New("gpu: texture has been released")

	// ErrInvalidDimensions is returned for non-positive texture sizes.
	ErrInvalidDimensions = errors.New("gpu: invalid texture dimensions")

	// ErrUploadSize is returned when uploaded data does not match the
	// texture layout.
	ErrUploadSize = errors.New("gpu: upload size does not match texture")
)

// DeviceHandle provides GPU device access from the host application.
//
// The engine RECEIVES the device from the host, it does not create
// one. DeviceHandle is an alias for gpucontext.DeviceProvider,
// keeping full compatibility with the gpucontext ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// NullDeviceHandle is a DeviceHandle with nil implementations, used
// for CPU-only rendering where no GPU is available.
type NullDeviceHandle struct{}

// Device returns nil for the null device.
func (NullDeviceHandle) Device() gpucontext.Device { return nil }

// Queue returns nil for the null device.
func (NullDeviceHandle) Queue() gpucontext.Queue { return nil }

// Adapter returns nil for the null device.
func (NullDeviceHandle) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo reports an unknown adapter for the null device.
func (NullDeviceHandle) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "null", Type: gpucontext.AdapterTypeUnknown}
}

// SurfaceFormat returns undefined format for the null device.
func (NullDeviceHandle) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

var _ DeviceHandle = NullDeviceHandle{}

// Format is the pixel format of a plane or render target.
type Format uint8

const (
	// FormatR8 is single-channel 8-bit normalized.
	FormatR8 Format = iota

	// FormatRG8 is two-channel 8-bit normalized, used for packed chroma.
	FormatRG8

	// FormatRGBA8 is the standard 8-bit normalized RGBA format.
	FormatRGBA8

	// FormatBGRA8 is BGRA order, common for surface presentation.
	FormatBGRA8

	// FormatR16 is single-channel 16-bit normalized, used for
	// high-bit-depth luma.
	FormatR16

	// FormatRG16 is two-channel 16-bit normalized.
	FormatRG16

	// FormatRGBA16 is 16-bit normalized RGBA, the default FBO format.
	FormatRGBA16

	// FormatRGBA16F is half-float RGBA, used for linear-light FBOs.
	FormatRGBA16F

	// FormatR16UI is single-channel 16-bit unsigned integer. Integer
	// formats must be materialized before filtering.
	FormatR16UI

	// FormatRG16UI is two-channel 16-bit unsigned integer.
	FormatRG16UI
)

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatR8:
		return "R8"
	case FormatRG8:
		return "RG8"
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatR16:
		return "R16"
	case FormatRG16:
		return "RG16"
	case FormatRGBA16:
		return "RGBA16"
	case FormatRGBA16F:
		return "RGBA16F"
	case FormatR16UI:
		return "R16UI"
	case FormatRG16UI:
		return "RG16UI"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(f))
	}
}

// Components returns the number of channels in the format.
func (f Format) Components() int {
	switch f {
	case FormatR8, FormatR16, FormatR16UI:
		return 1
	case FormatRG8, FormatRG16, FormatRG16UI:
		return 2
	default:
		return 4
	}
}

// BytesPerPixel returns the packed size of one pixel.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR8:
		return 1
	case FormatRG8:
		return 2
	case FormatRGBA8, FormatBGRA8, FormatRG16, FormatRG16UI:
		return 4
	case FormatR16, FormatR16UI:
		return 2
	case FormatRGBA16, FormatRGBA16F:
		return 8
	default:
		return 4
	}
}

// Integer reports whether the format samples as unsigned integers and
// needs a normalization pass before any filtering math.
func (f Format) Integer() bool {
	return f == FormatR16UI || f == FormatRG16UI
}

// ToWGPU converts to the wgpu texture format.
func (f Format) ToWGPU() gputypes.TextureFormat {
	switch f {
	case FormatR8:
		return gputypes.TextureFormatR8Unorm
	case FormatRG8:
		return gputypes.TextureFormatRG8Unorm
	case FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	case FormatR16:
		return gputypes.TextureFormatR16Unorm
	case FormatRG16:
		return gputypes.TextureFormatRG16Unorm
	case FormatRGBA16:
		return gputypes.TextureFormatRGBA16Unorm
	case FormatRGBA16F:
		return gputypes.TextureFormatRGBA16Float
	case FormatR16UI:
		return gputypes.TextureFormatR16Uint
	case FormatRG16UI:
		return gputypes.TextureFormatRG16Uint
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// Limits describes the device capabilities the pass assembler has to
// respect.
type Limits struct {
	// MaxTextureUnits is the binding budget per pass.
	MaxTextureUnits int

	// MaxSharedMemory is the compute workgroup shared memory budget
	// in bytes; gates the polar compute fast path.
	MaxSharedMemory int

	// SupportsCompute reports whether compute dispatch is available.
	SupportsCompute bool
}

// DefaultLimits returns the conservative limits assumed when the
// device does not report its own.
func DefaultLimits() Limits {
	return Limits{
		MaxTextureUnits: 16,
		MaxSharedMemory: 32768,
		SupportsCompute: true,
	}
}

// Device wraps the received device handle together with the limits
// the renderer plans against. When the handle carries a live wgpu
// device the concrete IDs are resolved once at construction.
type Device struct {
	handle DeviceHandle
	limits Limits

	deviceID core.DeviceID
	queueID  core.QueueID

	shaders *shaderCache
}

// NewDevice wraps a device handle. A nil handle (or one whose device
// is not a wgpu core ID) selects the CPU path.
func NewDevice(handle DeviceHandle, limits Limits) *Device {
	if limits.MaxTextureUnits <= 0 {
		limits = DefaultLimits()
	}
	if handle == nil {
		handle = NullDeviceHandle{}
	}
	d := &Device{handle: handle, limits: limits, shaders: newShaderCache()}
	if id, ok := handle.Device().(core.DeviceID); ok && !id.IsZero() {
		d.deviceID = id
		if q, ok := handle.Queue().(core.QueueID); ok && !q.IsZero() {
			d.queueID = q
		} else if q, err := core.GetDeviceQueue(id); err == nil {
			d.queueID = q
		}
	}
	return d
}

// Ready reports whether a real GPU device is available.
func (d *Device) Ready() bool {
	return !d.deviceID.IsZero() && !d.queueID.IsZero()
}

// Limits returns the planning limits.
func (d *Device) Limits() Limits { return d.limits }

// Handle returns the underlying device provider.
func (d *Device) Handle() DeviceHandle { return d.handle }

// CreateShaderModule compiles SPIR-V words into a wgpu shader module.
func (d *Device) CreateShaderModule(words []uint32, label string) (core.ShaderModuleID, error) {
	return core.DeviceCreateShaderModule(d.deviceID, &gputypes.ShaderModuleDescriptor{
		Label:  label,
		Source: gputypes.ShaderSourceSPIRV{Code: words},
	})
}

// Submit records an empty labeled command buffer and submits it,
// flushing the pass onto the queue.
func (d *Device) Submit(label string) error {
	enc, err := core.DeviceCreateCommandEncoder(d.deviceID, label)
	if err != nil {
		return err
	}
	buf, err := core.CommandEncoderFinish(enc)
	if err != nil {
		return err
	}
	return core.QueueSubmit(d.queueID, []core.CommandBufferID{buf})
}

// Texture is a GPU texture resource, or a CPU-side logical texture
// when no device is available. The pixel copy is retained in the
// latter case so the software path can read it back.
type Texture struct {
	textureID core.TextureID
	viewID    core.TextureViewID

	width  int
	height int
	format Format

	sizeBytes uint64
	label     string
	queueID   core.QueueID

	// data holds the CPU copy on the software path. Nil when the
	// texture lives on the GPU.
	data []byte

	pool     *Pool
	released atomic.Bool
}

// TextureConfig describes a texture to create.
type TextureConfig struct {
	// Width is the texture width in pixels.
	Width int

	// Height is the texture height in pixels.
	Height int

	// Format is the pixel format.
	Format Format

	// Label is an optional debug label.
	Label string

	// Render marks the texture as a render target (an FBO).
	Render bool
}

// CreateTexture creates a texture. Without a ready device the texture
// is logical: it tracks size and retains uploads CPU-side.
func (d *Device) CreateTexture(config TextureConfig) (*Texture, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, ErrInvalidDimensions
	}
	sizeBytes := uint64(config.Width) * uint64(config.Height) *
		uint64(config.Format.BytesPerPixel())

	tex := &Texture{
		width:     config.Width,
		height:    config.Height,
		format:    config.Format,
		sizeBytes: sizeBytes,
		label:     config.Label,
		queueID:   d.queueID,
	}
	if !d.Ready() {
		tex.data = make([]byte, sizeBytes)
		return tex, nil
	}
	usage := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
		gputypes.TextureUsageTextureBinding
	if config.Render {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	id, err := core.DeviceCreateTexture(d.deviceID, &gputypes.TextureDescriptor{
		Label:         config.Label,
		Size:          gputypes.NewExtent2D(uint32(config.Width), uint32(config.Height)),
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        config.Format.ToWGPU(),
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create texture %q: %w", config.Label, err)
	}
	tex.textureID = id
	// The renderer samples and renders through the full texture, so a
	// dedicated view object is not needed at this binding level; the
	// view ID mirrors the texture identity.
	tex.viewID = core.TextureViewID(id)
	return tex, nil
}

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.width }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.height }

// Format returns the pixel format.
func (t *Texture) Format() Format { return t.format }

// SizeBytes returns the texture size in bytes.
func (t *Texture) SizeBytes() uint64 { return t.sizeBytes }

// Label returns the debug label.
func (t *Texture) Label() string { return t.label }

// TextureID returns the underlying wgpu texture ID. Zero for logical
// textures.
func (t *Texture) TextureID() core.TextureID { return t.textureID }

// ViewID returns the texture view ID. Zero for logical textures.
func (t *Texture) ViewID() core.TextureViewID { return t.viewID }

// Released reports whether the texture has been closed.
func (t *Texture) Released() bool { return t.released.Load() }

// Data exposes the CPU copy on the software path, nil otherwise.
func (t *Texture) Data() []byte { return t.data }

// Upload copies plane data into the texture. stride is the source row
// pitch in bytes; rows are tightly repacked.
func (t *Texture) Upload(data []byte, stride int) error {
	if t.released.Load() {
		return ErrTextureReleased
	}
	rowBytes := t.width * t.format.BytesPerPixel()
	if stride < rowBytes || len(data) < stride*(t.height-1)+rowBytes {
		return fmt.Errorf("%w: need %dx%d rows of %d bytes, got %d bytes stride %d",
			ErrUploadSize, t.width, t.height, rowBytes, len(data), stride)
	}
	if t.data != nil {
		for y := 0; y < t.height; y++ {
			copy(t.data[y*rowBytes:(y+1)*rowBytes], data[y*stride:y*stride+rowBytes])
		}
		return nil
	}
	packed := data
	if stride != rowBytes {
		packed = make([]byte, rowBytes*t.height)
		for y := 0; y < t.height; y++ {
			copy(packed[y*rowBytes:(y+1)*rowBytes], data[y*stride:y*stride+rowBytes])
		}
	}
	size := gputypes.NewExtent2D(uint32(t.width), uint32(t.height))
	return core.QueueWriteTexture(t.queueID,
		&gputypes.ImageCopyTexture{Texture: uintptr(t.textureID.Raw())},
		packed,
		&gputypes.TextureDataLayout{
			BytesPerRow:  uint32(rowBytes),
			RowsPerImage: uint32(t.height),
		},
		&size)
}

// Close releases the texture. Safe to call twice.
func (t *Texture) Close() {
	if t.released.Swap(true) {
		return
	}
	if t.pool != nil {
		t.pool.unregister(t)
		t.pool = nil
	}
	t.textureID = core.TextureID{}
	t.viewID = core.TextureViewID{}
	t.data = nil
}

// String returns a string representation of the texture.
func (t *Texture) String() string {
	status := "active"
	if t.released.Load() {
		status = "released"
	}
	return fmt.Sprintf("Texture[%s %dx%d %s %d bytes %s]",
		t.label, t.width, t.height, t.format, t.sizeBytes, status)
}
