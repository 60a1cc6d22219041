package present

import (
	"errors"
	"fmt"

	"github.com/gogpu/present/internal/gpu"
)

// ErrFrameReleased is returned when a released frame is used.
var ErrFrameReleased = errors.New("present: frame already released")

// Primaries identifies the RGB color primaries of a stream. The
// renderer currently maps everything through the target primaries;
// the value is carried so sinks and logs can report it.
type Primaries uint8

const (
	PrimariesAuto Primaries = iota
	PrimariesBT709
	PrimariesBT601_525
	PrimariesBT601_625
	PrimariesBT2020
	PrimariesDCIP3
)

// String returns the primaries name.
func (p Primaries) String() string {
	switch p {
	case PrimariesAuto:
		return "auto"
	case PrimariesBT709:
		return "bt.709"
	case PrimariesBT601_525:
		return "bt.601-525"
	case PrimariesBT601_625:
		return "bt.601-625"
	case PrimariesBT2020:
		return "bt.2020"
	case PrimariesDCIP3:
		return "dci-p3"
	default:
		return "unknown"
	}
}

// StereoMode describes the packing of stereoscopic content.
type StereoMode uint8

const (
	StereoNone StereoMode = iota
	StereoSideBySide
	StereoTopBottom
)

// PixelFormat describes the memory layout of a decoded frame. Two
// frames with unequal formats cannot share an output chain; the
// presenter reconfigures when the format changes mid-stream.
type PixelFormat struct {
	// W, H is the image size in pixels.
	W, H int

	// Planes is the number of data planes (1 for packed RGB, 2 for
	// NV12-style packed chroma, 3 for planar YUV, 4 with alpha).
	Planes int

	// BitDepth is the significant bits per component.
	BitDepth int

	// SubX, SubY are the chroma subsampling shifts (1,1 for 4:2:0).
	SubX, SubY int

	// PackedChroma marks Cb and Cr interleaved in one plane.
	PackedChroma bool

	// Uint marks integer-sampled storage that the renderer must
	// materialize into a normalized texture before filtering.
	Uint bool
}

// Equal reports whether two formats describe the same layout.
func (f PixelFormat) Equal(o PixelFormat) bool { return f == o }

// String returns a compact format description.
func (f PixelFormat) String() string {
	return fmt.Sprintf("%dx%d %dbit %dp sub %d:%d", f.W, f.H, f.BitDepth, f.Planes, f.SubX, f.SubY)
}

// Valid reports whether the format is internally consistent.
func (f PixelFormat) Valid() bool {
	return f.W > 0 && f.H > 0 &&
		f.Planes >= 1 && f.Planes <= 4 &&
		f.BitDepth >= 1 && f.BitDepth <= 16 &&
		f.SubX >= 0 && f.SubX <= 2 && f.SubY >= 0 && f.SubY <= 2
}

// PlaneDims returns the pixel size of plane i.
func (f PixelFormat) PlaneDims(i int) (w, h int) {
	if i == 1 || (i == 2 && !f.PackedChroma) {
		w = (f.W + (1 << f.SubX) - 1) >> f.SubX
		h = (f.H + (1 << f.SubY) - 1) >> f.SubY
		return w, h
	}
	return f.W, f.H
}

// planeComponents returns the channel count of plane i.
func (f PixelFormat) planeComponents(i int) int {
	switch {
	case f.Planes == 1:
		return 4
	case i == 1 && f.PackedChroma:
		return 2
	default:
		return 1
	}
}

// planeFormat maps plane i to its texture format.
func (f PixelFormat) planeFormat(i int) gpu.Format {
	comps := f.planeComponents(i)
	wide := f.BitDepth > 8
	switch {
	case comps == 4 && wide:
		return gpu.FormatRGBA16
	case comps == 4:
		return gpu.FormatRGBA8
	case comps == 2 && f.Uint:
		return gpu.FormatRG16UI
	case comps == 2 && wide:
		return gpu.FormatRG16
	case comps == 2:
		return gpu.FormatRG8
	case f.Uint:
		return gpu.FormatR16UI
	case wide:
		return gpu.FormatR16
	default:
		return gpu.FormatR8
	}
}

// ColorMetadata carries the colorimetric description of a stream.
type ColorMetadata struct {
	Primaries Primaries
	Space     gpu.Colorspace
	Levels    gpu.Levels
	Transfer  gpu.Transfer
	ChromaLoc gpu.ChromaLoc

	// Rotation is the display rotation in degrees, clockwise.
	Rotation int

	// Stereo is the stereoscopic packing.
	Stereo StereoMode
}

// Frame is one uniquely-owned decoded image. Frames travel from the
// decoder through the presentation queue to the sink; whoever holds a
// frame last calls Release to return its buffers to the pool.
type Frame struct {
	// ID identifies the frame for renderer-side caching. Assigned by
	// the frame pool; never reused within a session.
	ID uint64

	// PTS is the presentation timestamp in seconds.
	PTS float64

	// DurationHint is the container-reported duration, or -1.
	DurationHint float64

	// Format is the memory layout.
	Format PixelFormat

	// Color is the colorimetric description.
	Color ColorMetadata

	// Data holds one byte slice per plane.
	Data [][]byte

	// Stride holds the per-plane row stride in bytes.
	Stride []int

	pool     *FramePool
	released bool
}

// Release returns the frame's buffers to its pool. Using the frame
// afterwards is a programming error.
func (f *Frame) Release() {
	if f == nil || f.released {
		return
	}
	f.released = true
	if f.pool != nil {
		f.pool.put(f)
	}
}

// Released reports whether Release was called.
func (f *Frame) Released() bool { return f.released }

// FramePool recycles frame buffers. Playback is single-threaded, so
// the pool is a plain free list without locking.
type FramePool struct {
	free   []*Frame
	nextID uint64
}

// NewFramePool creates an empty pool.
func NewFramePool() *FramePool { return &FramePool{} }

// Get returns a frame with buffers sized for the format, reusing a
// released frame of the same layout when one is available.
func (p *FramePool) Get(format PixelFormat) *Frame {
	p.nextID++
	for i, f := range p.free {
		if f.Format.Equal(format) {
			p.free = append(p.free[:i], p.free[i+1:]...)
			f.released = false
			f.ID = p.nextID
			f.PTS = 0
			f.DurationHint = -1
			return f
		}
	}
	f := &Frame{
		ID:           p.nextID,
		DurationHint: -1,
		Format:       format,
		Data:         make([][]byte, format.Planes),
		Stride:       make([]int, format.Planes),
		pool:         p,
	}
	bpc := 1
	if format.BitDepth > 8 {
		bpc = 2
	}
	for i := 0; i < format.Planes; i++ {
		w, h := format.PlaneDims(i)
		stride := w * format.planeComponents(i) * bpc
		f.Stride[i] = stride
		f.Data[i] = make([]byte, stride*h)
	}
	return f
}

func (p *FramePool) put(f *Frame) {
	p.free = append(p.free, f)
}
