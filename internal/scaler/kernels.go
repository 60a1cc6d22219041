// Package scaler provides the filter kernel and window tables used by
// the convolution scalers, and computes the weight LUTs sampled by the
// shaders. Weights are evaluated on the CPU once per filter
// configuration; only the resulting LUT is uploaded.
package scaler

import "math"

// WeightFunc evaluates a window or kernel at |x|, with x already
// normalized so the function's support ends at the window's Radius.
type WeightFunc func(w *Window, x float64) float64

// Window describes a windowing function or a convolution kernel (the
// two share a representation; a kernel is a window applied to itself).
type Window struct {
	// Name is the lookup key.
	Name string

	// Radius is the preferred support radius. Only meaningful to
	// change when Resizable is set.
	Radius float64

	// Resizable filters accept any user-supplied radius.
	Resizable bool

	// Params are filter-specific tunables. NaN means unused.
	Params [2]float64

	// Blur stretches (>1) or sharpens (<1) the function. 0 means 1.
	Blur float64

	// Taper flattens the peak of the function: weights inside the
	// taper distance evaluate at x=0.
	Taper float64

	weight WeightFunc
}

// Sample evaluates the window at x, applying blur and taper. Outside
// the radius the result is 0. A window with no weight function is the
// identity.
func (w *Window) Sample(x float64) float64 {
	if w.weight == nil {
		return 1
	}
	x = math.Abs(x)
	if w.Blur > 0 {
		x /= w.Blur
	}
	if x <= w.Taper {
		x = 0
	} else {
		x = (x - w.Taper) / (1 - w.Taper/w.Radius)
	}
	if x < w.Radius {
		return w.weight(w, x)
	}
	return 0
}

// Kernel is a named convolution filter: the kernel function itself
// plus its default window and sampling traits.
type Kernel struct {
	// Fn is the kernel function.
	Fn Window

	// WindowName names the default window; empty means no window.
	WindowName string

	// Clamp cuts negative lobes, trading ringing for blur.
	Clamp bool

	// Polar filters sample in elliptical (EWA) coordinates.
	Polar bool
}

func boxWeight(w *Window, x float64) float64 { return 1 }

func triangleWeight(w *Window, x float64) float64 {
	return math.Max(0, 1-math.Abs(x/w.Radius))
}

func hanningWeight(w *Window, x float64) float64 {
	return 0.5 + 0.5*math.Cos(math.Pi*x)
}

func hammingWeight(w *Window, x float64) float64 {
	return 0.54 + 0.46*math.Cos(math.Pi*x)
}

func blackmanWeight(w *Window, x float64) float64 {
	a := w.Params[0]
	a0, a1, a2 := (1-a)/2, 0.5, a/2
	pix := math.Pi * x
	return a0 + a1*math.Cos(pix) + a2*math.Cos(2*pix)
}

func welchWeight(w *Window, x float64) float64 { return 1 - x*x }

// besselI0 is the zeroth-order modified Bessel function, by power
// series. Converges quickly for the argument range kaiser produces.
func besselI0(x float64) float64 {
	s := 1.0
	y := x * x / 4
	t := y
	for i := 2; t > 1e-12; i++ {
		s += t
		t *= y / float64(i*i)
	}
	return s
}

func kaiserWeight(w *Window, x float64) float64 {
	if x > 1 {
		return 0
	}
	beta := w.Params[0]
	return besselI0(beta*math.Sqrt(1-x*x)) / besselI0(beta)
}

func gaussianWeight(w *Window, x float64) float64 {
	return math.Exp(-2 * x * x / w.Params[0])
}

func sincWeight(w *Window, x float64) float64 {
	if math.Abs(x) < 1e-8 {
		return 1
	}
	x *= math.Pi
	return math.Sin(x) / x
}

func jincWeight(w *Window, x float64) float64 {
	if math.Abs(x) < 1e-8 {
		return 1
	}
	x *= math.Pi
	return 2 * math.J1(x) / x
}

func sphinxWeight(w *Window, x float64) float64 {
	if math.Abs(x) < 1e-8 {
		return 1
	}
	x *= math.Pi
	return 3 * (math.Sin(x) - x*math.Cos(x)) / (x * x * x)
}

// cubicBC is the Mitchell-Netravali family of cubic splines,
// parameterized by (B, C).
func cubicBC(w *Window, x float64) float64 {
	b, c := w.Params[0], w.Params[1]
	var (
		p0 = (6 - 2*b) / 6
		p2 = (-18 + 12*b + 6*c) / 6
		p3 = (12 - 9*b - 6*c) / 6
		q0 = (8*b + 24*c) / 6
		q1 = (-12*b - 48*c) / 6
		q2 = (6*b + 30*c) / 6
		q3 = (-b - 6*c) / 6
	)
	if x < 1 {
		return p0 + x*x*(p2+x*p3)
	} else if x < 2 {
		return q0 + x*(q1+x*(q2+x*q3))
	}
	return 0
}

func spline16Weight(w *Window, x float64) float64 {
	if x < 1 {
		return ((x-9.0/5)*x-1.0/5)*x + 1
	}
	x -= 1
	return ((-1.0/3*x+4.0/5)*x - 7.0/15) * x
}

func spline36Weight(w *Window, x float64) float64 {
	if x < 1 {
		return ((13.0/11*x-453.0/209)*x-3.0/209)*x + 1
	} else if x < 2 {
		x -= 1
		return ((-6.0/11*x+270.0/209)*x - 156.0/209) * x
	}
	x -= 2
	return ((1.0/11*x-45.0/209)*x + 26.0/209) * x
}

func spline64Weight(w *Window, x float64) float64 {
	if x < 1 {
		return ((49.0/41*x-6387.0/2911)*x-3.0/2911)*x + 1
	} else if x < 2 {
		x -= 1
		return ((-24.0/41*x+4032.0/2911)*x - 2328.0/2911) * x
	} else if x < 3 {
		x -= 2
		return ((6.0/41*x-1008.0/2911)*x + 582.0/2911) * x
	}
	x -= 3
	return ((-1.0/41*x+168.0/2911)*x - 97.0/2911) * x
}

// jincZero is the first zero of the jinc function; jinc-based polar
// filters use it as their natural lobe radius.
const jincZero = 1.2196698912665045

var nan = math.NaN()

// windows is the table of available windowing functions, in
// documentation order.
var windows = []Window{
	{Name: "box", Radius: 1, weight: boxWeight, Resizable: true},
	{Name: "triangle", Radius: 1, weight: triangleWeight, Resizable: true},
	{Name: "bartlett", Radius: 1, weight: triangleWeight},
	{Name: "hanning", Radius: 1, weight: hanningWeight},
	{Name: "hamming", Radius: 1, weight: hammingWeight},
	{Name: "blackman", Radius: 1, weight: blackmanWeight, Params: [2]float64{0.16, nan}},
	{Name: "welch", Radius: 1, weight: welchWeight},
	{Name: "kaiser", Radius: 1, weight: kaiserWeight, Params: [2]float64{6.33, nan}},
	{Name: "gaussian", Radius: 2, weight: gaussianWeight, Resizable: true, Params: [2]float64{1, nan}},
	{Name: "sinc", Radius: 1, weight: sincWeight, Resizable: true},
	{Name: "jinc", Radius: jincZero, weight: jincWeight, Resizable: true},
	{Name: "sphinx", Radius: 1.4302966531242027, weight: sphinxWeight, Resizable: true},
}

// kernels is the table of available scaler kernels. Oversample has no
// weight function: it is realized directly in the shader.
var kernels = []Kernel{
	{Fn: Window{Name: "bilinear", Radius: 1, weight: triangleWeight}},
	{Fn: Window{Name: "spline16", Radius: 2, weight: spline16Weight}},
	{Fn: Window{Name: "spline36", Radius: 3, weight: spline36Weight}},
	{Fn: Window{Name: "spline64", Radius: 4, weight: spline64Weight}},
	{Fn: Window{Name: "box", Radius: 1, weight: boxWeight, Resizable: true}},
	{Fn: Window{Name: "nearest", Radius: 0.5, weight: boxWeight}},
	{Fn: Window{Name: "sinc", Radius: 2, weight: sincWeight, Resizable: true}},
	{Fn: Window{Name: "lanczos", Radius: 3, weight: sincWeight, Resizable: true}, WindowName: "sinc"},
	{Fn: Window{Name: "ginseng", Radius: 3, weight: sincWeight, Resizable: true}, WindowName: "jinc"},
	{Fn: Window{Name: "jinc", Radius: 3, weight: jincWeight, Resizable: true}, Polar: true},
	{Fn: Window{Name: "ewa_lanczos", Radius: 3, weight: jincWeight, Resizable: true}, Polar: true, WindowName: "jinc"},
	{Fn: Window{Name: "ewa_hanning", Radius: 3, weight: jincWeight, Resizable: true}, Polar: true, WindowName: "hanning"},
	{Fn: Window{Name: "ewa_ginseng", Radius: 3, weight: sincWeight, Resizable: true}, Polar: true, WindowName: "jinc"},
	// Jinc windowed by jinc, blurred so the third zero crossing lands
	// exactly on the radius.
	{Fn: Window{Name: "ewa_lanczossharp", Radius: 3.2383154841662362, weight: jincWeight,
		Blur: 0.9812505644269356, Resizable: true}, Polar: true, WindowName: "jinc"},
	{Fn: Window{Name: "ewa_lanczossoft", Radius: 3.2383154841662362, weight: jincWeight,
		Blur: 1.015, Resizable: true}, Polar: true, WindowName: "jinc"},
	{Fn: Window{Name: "bicubic", Radius: 2, weight: cubicBC, Params: [2]float64{1, 0}}},
	{Fn: Window{Name: "hermite", Radius: 1, weight: cubicBC, Params: [2]float64{0, 0}}},
	{Fn: Window{Name: "catmull_rom", Radius: 2, weight: cubicBC, Params: [2]float64{0, 0.5}}},
	{Fn: Window{Name: "mitchell", Radius: 2, weight: cubicBC, Params: [2]float64{1.0 / 3, 1.0 / 3}}},
	{Fn: Window{Name: "robidoux", Radius: 2, weight: cubicBC, Params: [2]float64{0.3782, 0.3109}}},
	{Fn: Window{Name: "robidouxsharp", Radius: 2, weight: cubicBC, Params: [2]float64{0.2620, 0.3690}}},
	{Fn: Window{Name: "ewa_robidoux", Radius: 2, weight: cubicBC, Params: [2]float64{0.3782, 0.3109}}, Polar: true},
	{Fn: Window{Name: "ewa_robidouxsharp", Radius: 2, weight: cubicBC, Params: [2]float64{0.2620, 0.3690}}, Polar: true},
	{Fn: Window{Name: "oversample", Radius: 1, Resizable: true}},
}

// FindWindow returns a copy of the named window.
func FindWindow(name string) (Window, bool) {
	for _, w := range windows {
		if w.Name == name {
			return w, true
		}
	}
	return Window{}, false
}

// FindKernel returns a copy of the named kernel.
func FindKernel(name string) (Kernel, bool) {
	for _, k := range kernels {
		if k.Fn.Name == name {
			return k, true
		}
	}
	return Kernel{}, false
}

// WindowNames lists the available window names in table order.
func WindowNames() []string {
	names := make([]string, len(windows))
	for i, w := range windows {
		names[i] = w.Name
	}
	return names
}

// KernelNames lists the available kernel names in table order.
func KernelNames() []string {
	names := make([]string, len(kernels))
	for i, k := range kernels {
		names[i] = k.Fn.Name
	}
	return names
}
