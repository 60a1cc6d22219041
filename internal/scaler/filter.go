package scaler

import (
	"errors"
	"math"
)

var (
	// ErrUnknownKernel is returned when a scaler name has no table entry.
	ErrUnknownKernel = errors.New("scaler: unknown kernel")

	// ErrUnknownWindow is returned when a window name has no table entry.
	ErrUnknownWindow = errors.New("scaler: unknown window")
)

// maxPolarRadius caps the source-space radius of polar filters so the
// generated shader loop stays bounded.
const maxPolarRadius = 16.0

// Options tune a kernel beyond its table defaults.
type Options struct {
	// WindowName overrides the kernel's default window.
	WindowName string

	// Radius overrides the kernel radius. Ignored unless the kernel
	// is resizable. 0 keeps the default.
	Radius float64

	// Blur stretches or sharpens the kernel. 0 keeps the default.
	Blur float64

	// Taper flattens the kernel peak. Applied to both kernel and
	// window.
	Taper float64

	// Clamp cuts negative lobes.
	Clamp bool

	// Param overrides the kernel's tunable parameters where the
	// entry is not NaN.
	Param [2]float64
}

// Filter is the runtime state of a configured convolution filter: the
// kernel and resolved window plus the values Init derives from the
// scaling ratio.
type Filter struct {
	Kernel Kernel
	Window Window

	// Size is the number of taps per sample point. Polar filters
	// report 1; their footprint depends only on the radius.
	Size int

	// FilterScale widens the kernel in source space when
	// downscaling. Never below 1.
	FilterScale float64

	// RadiusCutoff is the largest radius with a non-negligible
	// weight, measured by the last ComputeLUT call. Polar only.
	RadiusCutoff float64

	insufficient bool
}

// New resolves the named kernel and window into a Filter. The filter
// still needs Init before its LUT can be computed.
func New(kernel string, opts Options) (*Filter, error) {
	k, ok := FindKernel(kernel)
	if !ok {
		return nil, ErrUnknownKernel
	}

	winName := k.WindowName
	if opts.WindowName != "" {
		winName = opts.WindowName
	}
	var win Window
	if winName != "" {
		win, ok = FindWindow(winName)
		if !ok {
			return nil, ErrUnknownWindow
		}
	}

	if opts.Radius > 0 && k.Fn.Resizable {
		k.Fn.Radius = opts.Radius
	}
	if opts.Blur > 0 {
		k.Fn.Blur = opts.Blur
	}
	k.Fn.Taper = opts.Taper
	k.Clamp = k.Clamp || opts.Clamp
	for i, p := range opts.Param {
		if !math.IsNaN(p) && p != 0 {
			k.Fn.Params[i] = p
		}
	}

	return &Filter{Kernel: k, Window: win, FilterScale: 1}, nil
}

// Radius is the kernel's support radius after blur.
func (f *Filter) Radius() float64 {
	blur := f.Kernel.Fn.Blur
	if blur <= 0 {
		blur = 1
	}
	return blur * f.Kernel.Fn.Radius
}

// Insufficient reports whether the last Init had to cut the filter
// short of its natural footprint.
func (f *Filter) Insufficient() bool { return f.insufficient }

// Init sizes the filter for the given scaling ratio. sizes is the
// ascending list of tap counts the shader can realize; scale is the
// source/destination ratio (>1 means downscaling). It returns false
// when the downscale exceeds what the largest available size (or the
// polar radius cap) can cover, in which case the filter is cut short
// rather than rejected.
func (f *Filter) Init(sizes []int, scale float64) bool {
	f.insufficient = false
	f.FilterScale = math.Max(1, scale)
	srcRadius := f.Radius() * f.FilterScale

	if f.Kernel.Polar {
		f.Size = 1
		if srcRadius > maxPolarRadius {
			f.FilterScale = maxPolarRadius / f.Radius()
			f.insufficient = true
			return false
		}
		return true
	}

	size := int(math.Ceil(2 * srcRadius))
	for _, s := range sizes {
		if s >= size {
			f.Size = s
			return true
		}
	}
	// Doesn't fit. Use the largest size available and shrink the
	// kernel to match; incorrect but better than refusing to scale.
	f.Size = sizes[len(sizes)-1]
	f.FilterScale = float64(f.Size) / 2 / f.Radius()
	f.insufficient = true
	return false
}

// sample evaluates the windowed kernel at the absolute position x.
func (f *Filter) sample(x float64) float64 {
	// The window is stretched to cover the entire kernel support.
	w := 1.0
	if f.Window.weight != nil {
		w = f.Window.Sample(x / f.Radius() * f.Window.Radius)
	}
	k := w * f.Kernel.Fn.Sample(x)
	if k < 0 && f.Kernel.Clamp {
		return 0
	}
	return k
}

// weights fills out with the Size normalized taps for the subpixel
// phase position phase in [0,1].
func (f *Filter) weights(phase float64, out []float32) {
	sum := 0.0
	for n := 0; n < f.Size; n++ {
		x := phase - float64(n-f.Size/2+1)
		w := f.sample(x / f.FilterScale)
		out[n] = float32(w)
		sum += w
	}
	// Normalize so the taps preserve energy.
	for n := range out[:f.Size] {
		out[n] = float32(float64(out[n]) / sum)
	}
}

// ComputeLUT computes the weight texture for count sample positions.
// Separable filters yield a count×Size grid indexed by subpixel
// phase; polar filters yield count radial samples over [0, Radius]
// and record the effective RadiusCutoff.
func (f *Filter) ComputeLUT(count int) []float32 {
	if f.Kernel.Polar {
		out := make([]float32, count)
		f.RadiusCutoff = 0
		for i := range out {
			r := float64(i) * f.Radius() / float64(count-1)
			out[i] = float32(f.sample(r))
			if math.Abs(float64(out[i])) > 1e-3 {
				f.RadiusCutoff = r
			}
		}
		return out
	}
	out := make([]float32, count*f.Size)
	for n := 0; n < count; n++ {
		f.weights(float64(n)/float64(count-1), out[n*f.Size:])
	}
	return out
}
