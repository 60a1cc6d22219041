package gpu

import "math"

// Colorspace identifies the YUV-to-RGB matrix family of the source.
type Colorspace uint8

const (
	// CSAuto selects by frame size (SD gets BT.601, HD gets BT.709).
	CSAuto Colorspace = iota

	// CSBT601 is SD content.
	CSBT601

	// CSBT709 is HD content.
	CSBT709

	// CSBT2020NC is UHD non-constant-luminance.
	CSBT2020NC

	// CSBT2020CL is UHD constant-luminance; the conversion is partly
	// nonlinear and handled by a dedicated shader branch.
	CSBT2020CL

	// CSRGB is already RGB; no matrix is applied.
	CSRGB

	// CSXYZ is CIE XYZ (digital cinema).
	CSXYZ
)

// String returns the colorspace name.
func (c Colorspace) String() string {
	switch c {
	case CSAuto:
		return "auto"
	case CSBT601:
		return "bt.601"
	case CSBT709:
		return "bt.709"
	case CSBT2020NC:
		return "bt.2020-ncl"
	case CSBT2020CL:
		return "bt.2020-cl"
	case CSRGB:
		return "rgb"
	case CSXYZ:
		return "xyz"
	default:
		return "unknown"
	}
}

// IsYUV reports whether the space needs a matrix conversion.
func (c Colorspace) IsYUV() bool {
	switch c {
	case CSBT601, CSBT709, CSBT2020NC, CSBT2020CL:
		return true
	}
	return false
}

// lumaWeights returns the Kr/Kb luma coefficients.
func (c Colorspace) lumaWeights() (kr, kb float64) {
	switch c {
	case CSBT601:
		return 0.299, 0.114
	case CSBT709:
		return 0.2126, 0.0722
	case CSBT2020NC, CSBT2020CL:
		return 0.2627, 0.0593
	default:
		return 0.2126, 0.0722
	}
}

// Levels is the quantization range of the source.
type Levels uint8

const (
	// LevelsLimited is TV range (16-235 luma at 8 bits).
	LevelsLimited Levels = iota

	// LevelsFull is PC range (0-255 at 8 bits).
	LevelsFull
)

// Transfer is the opto-electronic transfer curve of the source.
type Transfer uint8

const (
	// TransferBT1886 is the standard video curve (gamma 2.4 display).
	TransferBT1886 Transfer = iota

	// TransferSRGB is the sRGB piecewise curve.
	TransferSRGB

	// TransferLinear is already linear light.
	TransferLinear

	// TransferGamma22 is a pure 2.2 power curve.
	TransferGamma22

	// TransferPQ is SMPTE ST 2084 (HDR10).
	TransferPQ

	// TransferHLG is hybrid log-gamma (ARIB STD-B67).
	TransferHLG
)

// IsHDR reports whether the curve encodes above-reference luminance.
func (t Transfer) IsHDR() bool { return t == TransferPQ || t == TransferHLG }

// refWhite is the display luminance, in cd/m², that linear value 1.0
// maps to when normalizing HDR curves.
const refWhite = 203.0

// Linearize converts a companded value in [0,1] to linear light,
// normalized so 1.0 is reference white.
func Linearize(t Transfer, x float64) float64 {
	x = math.Max(0, x)
	switch t {
	case TransferLinear:
		return x
	case TransferSRGB:
		if x <= 0.04045 {
			return x / 12.92
		}
		return math.Pow((x+0.055)/1.055, 2.4)
	case TransferGamma22:
		return math.Pow(x, 2.2)
	case TransferPQ:
		const (
			m1 = 2610.0 / 16384
			m2 = 2523.0 / 4096 * 128
			c1 = 3424.0 / 4096
			c2 = 2413.0 / 4096 * 32
			c3 = 2392.0 / 4096 * 32
		)
		p := math.Pow(x, 1/m2)
		lin := math.Pow(math.Max(p-c1, 0)/(c2-c3*p), 1/m1)
		return lin * 10000 / refWhite
	case TransferHLG:
		const (
			a = 0.17883277
			b = 0.28466892
			c = 0.55991073
		)
		var lin float64
		if x <= 0.5 {
			lin = x * x / 3
		} else {
			lin = (math.Exp((x-c)/a) + b) / 12
		}
		return lin * 1000 / refWhite
	default: // TransferBT1886
		return math.Pow(x, 2.4)
	}
}

// Delinearize is the inverse of Linearize.
func Delinearize(t Transfer, x float64) float64 {
	x = math.Max(0, x)
	switch t {
	case TransferLinear:
		return x
	case TransferSRGB:
		if x <= 0.0031308 {
			return x * 12.92
		}
		return 1.055*math.Pow(x, 1/2.4) - 0.055
	case TransferGamma22:
		return math.Pow(x, 1/2.2)
	case TransferPQ:
		const (
			m1 = 2610.0 / 16384
			m2 = 2523.0 / 4096 * 128
			c1 = 3424.0 / 4096
			c2 = 2413.0 / 4096 * 32
			c3 = 2392.0 / 4096 * 32
		)
		y := math.Pow(x*refWhite/10000, m1)
		return math.Pow((c1+c2*y)/(1+c3*y), m2)
	case TransferHLG:
		const (
			a = 0.17883277
			b = 0.28466892
			c = 0.55991073
		)
		y := x * refWhite / 1000
		if y <= 1.0/12 {
			return math.Sqrt(3 * y)
		}
		return a*math.Log(12*y-b) + c
	default:
		return math.Pow(x, 1/2.4)
	}
}

// CSPParams collects everything needed to build the input conversion.
type CSPParams struct {
	Space    Colorspace
	Levels   Levels
	Transfer Transfer
	BitDepth int
}

// YUVMatrix returns the 3x3 matrix plus offset converting normalized
// YCbCr texel values to RGB: rgb = M*yuv + offset. For CSRGB the
// identity is returned. Constant-luminance BT.2020 still uses its
// coefficient set here; the shader applies the nonlinear part.
func YUVMatrix(p CSPParams) (m [3][3]float64, offset [3]float64) {
	if !p.Space.IsYUV() {
		return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, [3]float64{}
	}
	kr, kb := p.Space.lumaWeights()
	kg := 1 - kr - kb

	// Base matrix for full-range input centered at 0.5.
	m = [3][3]float64{
		{1, 0, 2 * (1 - kr)},
		{1, -2 * kb * (1 - kb) / kg, -2 * kr * (1 - kr) / kg},
		{1, 2 * (1 - kb), 0},
	}

	depth := p.BitDepth
	if depth < 8 {
		depth = 8
	}
	maxv := float64(int(1)<<uint(depth)) - 1
	shift := float64(int(1) << uint(depth-8))

	// Chroma is centered on the code value 128 << (depth-8), not on
	// the texel midpoint 0.5; for 8-bit that is 128/255.
	cmid := 128 * shift / maxv

	ymul, cmul := 1.0, 1.0
	yoff := 0.0
	if p.Levels == LevelsLimited {
		ymul = maxv / (219 * shift)
		cmul = maxv / (224 * shift)
		yoff = 16 * shift / maxv
	}
	for i := 0; i < 3; i++ {
		m[i][0] *= ymul
		m[i][1] *= cmul
		m[i][2] *= cmul
		offset[i] = -yoff*m[i][0] - cmid*(m[i][1]+m[i][2])
	}
	return m, offset
}

// Sigmoid parameters shape the perceptual curve applied around
// upscaling to reduce ringing.
type Sigmoid struct {
	// Center of the sigmoid, in [0,1].
	Center float64

	// Slope steepness.
	Slope float64
}

// DefaultSigmoid returns the standard sigmoid shape.
func DefaultSigmoid() Sigmoid { return Sigmoid{Center: 0.75, Slope: 6.5} }

// scaleOffset returns the normalization making the curve hit 0 and 1
// exactly at the endpoints.
func (s Sigmoid) scaleOffset() (scale, off float64) {
	off = 1 / (1 + math.Exp(s.Slope*s.Center))
	scale = 1/(1+math.Exp(s.Slope*(s.Center-1))) - off
	return scale, off
}

// Forward maps linear light into sigmoid space.
func (s Sigmoid) Forward(x float64) float64 {
	scale, off := s.scaleOffset()
	x = math.Min(math.Max(x, 1e-6), 1-1e-6)
	return s.Center - math.Log(1/(x*scale+off)-1)/s.Slope
}

// Inverse maps sigmoid space back to linear light.
func (s Sigmoid) Inverse(x float64) float64 {
	scale, off := s.scaleOffset()
	return (1/(1+math.Exp(s.Slope*(s.Center-x))) - off) / scale
}

// ToneCurve selects the HDR-to-SDR compression function.
type ToneCurve uint8

const (
	// ToneClip hard-clips above 1.0.
	ToneClip ToneCurve = iota

	// ToneMobius preserves in-range colors, compressing the rest.
	ToneMobius

	// ToneReinhard is the classic rational curve.
	ToneReinhard

	// ToneHable is the filmic curve from Uncharted 2.
	ToneHable

	// ToneGamma is a pure power compression.
	ToneGamma

	// ToneLinear scales linearly to fit the peak.
	ToneLinear
)

// String returns the curve name.
func (c ToneCurve) String() string {
	switch c {
	case ToneClip:
		return "clip"
	case ToneMobius:
		return "mobius"
	case ToneReinhard:
		return "reinhard"
	case ToneHable:
		return "hable"
	case ToneGamma:
		return "gamma"
	case ToneLinear:
		return "linear"
	default:
		return "unknown"
	}
}

// defaultParam returns the curve's default tuning parameter.
func (c ToneCurve) defaultParam() float64 {
	switch c {
	case ToneMobius:
		return 0.3
	case ToneReinhard:
		return 0.5
	case ToneGamma:
		return 1.8
	case ToneLinear:
		return 1.0
	default:
		return 0
	}
}

func hable(x float64) float64 {
	const (
		a = 0.15
		b = 0.50
		c = 0.10
		d = 0.20
		e = 0.02
		f = 0.30
	)
	return (x*(a*x+c*b)+d*e)/(x*(a*x+b)+d*f) - e/f
}

// ToneMap compresses a linear signal with the given peak (in
// multiples of reference white) into [0,1]. param = 0 selects the
// curve default. This is the CPU reference for the shader constant
// generation and the software path.
func ToneMap(c ToneCurve, sig, peak, param float64) float64 {
	if peak <= 1 {
		return math.Min(sig, 1)
	}
	if param == 0 {
		param = c.defaultParam()
	}
	switch c {
	case ToneMobius:
		j := param
		if sig <= j {
			return sig
		}
		a := -j * j * (peak - 1) / (j*j - 2*j + peak)
		b := (j*j - 2*j*peak + peak) / math.Max(peak-1, 1e-6)
		return (b*b + 2*b*j + j*j) / (b - a) * (sig + a) / (sig + b)
	case ToneReinhard:
		offset := (1 - param) / param
		return sig / (sig + offset) * (peak + offset) / peak
	case ToneHable:
		return hable(sig) / hable(peak)
	case ToneGamma:
		return math.Pow(sig/peak, 1/param)
	case ToneLinear:
		return param * sig / peak
	default: // ToneClip
		return math.Min(sig, 1)
	}
}

// LUT3D is a 3D color lookup table applied after tone mapping.
type LUT3D struct {
	// Size is the edge length; Data holds Size³ RGB triples.
	Size int
	Data []float32
}

// Valid reports whether the table is well formed.
func (l *LUT3D) Valid() bool {
	return l != nil && l.Size >= 2 && len(l.Data) == l.Size*l.Size*l.Size*3
}

// at returns the RGB triple at integer grid position (r, g, b).
func (l *LUT3D) at(r, g, b int) [3]float64 {
	i := ((r*l.Size+g)*l.Size + b) * 3
	return [3]float64{float64(l.Data[i]), float64(l.Data[i+1]), float64(l.Data[i+2])}
}

// lookup trilinearly interpolates the table at the clamped position.
func (l *LUT3D) lookup(rgb [3]float64) [3]float64 {
	n := float64(l.Size - 1)
	var idx [3]int
	var frac [3]float64
	for i, v := range rgb {
		p := clamp01(v) * n
		idx[i] = int(p)
		if idx[i] >= l.Size-1 {
			idx[i] = l.Size - 2
		}
		frac[i] = p - float64(idx[i])
	}

	var out [3]float64
	for corner := 0; corner < 8; corner++ {
		w := 1.0
		var pos [3]int
		for axis := 0; axis < 3; axis++ {
			if corner>>uint(axis)&1 == 1 {
				pos[axis] = idx[axis] + 1
				w *= frac[axis]
			} else {
				pos[axis] = idx[axis]
				w *= 1 - frac[axis]
			}
		}
		c := l.at(pos[0], pos[1], pos[2])
		for i := 0; i < 3; i++ {
			out[i] += w * c[i]
		}
	}
	return out
}

// Peak detection smoothing constants.
const (
	// peakDecay is the per-frame blend toward the newly measured
	// frame peak.
	peakDecay = 0.04

	// peakFloor is the lowest detected peak, in multiples of
	// reference white.
	peakFloor = 1.0
)

// PeakDetector tracks the running scene peak across frames. On the
// GPU the maxima come from a compute reduction into a persistent
// storage buffer; the smoothing state lives here either way.
type PeakDetector struct {
	peak   float64
	primed bool
}

// Update folds one frame's measured maximum luminance (in multiples
// of reference white) into the running peak.
func (p *PeakDetector) Update(frameMax float64) {
	frameMax = math.Max(frameMax, peakFloor)
	if !p.primed {
		p.peak = frameMax
		p.primed = true
		return
	}
	p.peak += peakDecay * (frameMax - p.peak)
}

// Peak returns the smoothed peak, or the fallback when nothing has
// been measured yet.
func (p *PeakDetector) Peak(fallback float64) float64 {
	if !p.primed {
		return math.Max(fallback, peakFloor)
	}
	return p.peak
}

// Reset clears the detector, e.g. on seek.
func (p *PeakDetector) Reset() {
	p.peak = 0
	p.primed = false
}
