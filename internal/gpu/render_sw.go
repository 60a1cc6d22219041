package gpu

import "math"

// Software pass kernels. Each mirrors one of the WGSL shaders closely
// enough that the headless path produces the same pixels a device
// would: the pass graph decides WHAT runs, these decide the math.
// Kernels only run on textures with a CPU copy; a nil data slice
// degrades to reading opaque black.

// halfToFloat decodes an IEEE 754 binary16 value.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) & 1
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF

	var bits uint32
	switch {
	case exp == 0 && mant == 0:
		bits = sign << 31
	case exp == 0:
		// Subnormal: renormalize.
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3FF
		bits = sign<<31 | e<<23 | mant<<13
	case exp == 0x1F:
		bits = sign<<31 | 0xFF<<23 | mant<<13
	default:
		bits = sign<<31 | (exp+127-15)<<23 | mant<<13
	}
	return math.Float32frombits(bits)
}

// floatToHalf encodes an IEEE 754 binary16 value with round-to-nearest.
func floatToHalf(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xFF) - 127 + 15
	mant := bits & 0x7FFFFF

	switch {
	case exp >= 0x1F:
		// Overflow and infinities clamp to infinity; NaN keeps a
		// mantissa bit.
		if bits&0x7FFFFFFF > 0x7F800000 {
			return sign | 0x7C01
		}
		return sign | 0x7C00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		half := uint16(mant >> shift)
		if mant>>(shift-1)&1 != 0 {
			half++
		}
		return sign | half
	default:
		half := sign | uint16(exp)<<10 | uint16(mant>>13)
		if mant&0x1000 != 0 {
			half++
		}
		return half
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func u16le(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func putU16le(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// texelAt decodes the texel at (x, y), clamped to the edges. Missing
// channels read as zero with opaque alpha.
func texelAt(t *Texture, x, y int) [4]float32 {
	v := [4]float32{0, 0, 0, 1}
	if t == nil || t.data == nil || t.width <= 0 || t.height <= 0 {
		return v
	}
	if x < 0 {
		x = 0
	} else if x >= t.width {
		x = t.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= t.height {
		y = t.height - 1
	}
	bpp := t.format.BytesPerPixel()
	px := t.data[(y*t.width+x)*bpp:]

	switch t.format {
	case FormatR8:
		v[0] = float32(px[0]) / 255
	case FormatRG8:
		v[0] = float32(px[0]) / 255
		v[1] = float32(px[1]) / 255
	case FormatRGBA8:
		v[0] = float32(px[0]) / 255
		v[1] = float32(px[1]) / 255
		v[2] = float32(px[2]) / 255
		v[3] = float32(px[3]) / 255
	case FormatBGRA8:
		v[0] = float32(px[2]) / 255
		v[1] = float32(px[1]) / 255
		v[2] = float32(px[0]) / 255
		v[3] = float32(px[3]) / 255
	case FormatR16, FormatR16UI:
		v[0] = float32(u16le(px)) / 65535
	case FormatRG16, FormatRG16UI:
		v[0] = float32(u16le(px)) / 65535
		v[1] = float32(u16le(px[2:])) / 65535
	case FormatRGBA16:
		for c := 0; c < 4; c++ {
			v[c] = float32(u16le(px[2*c:])) / 65535
		}
	case FormatRGBA16F:
		for c := 0; c < 4; c++ {
			v[c] = halfToFloat(u16le(px[2*c:]))
		}
	}
	return v
}

// setTexelAt encodes the texel at (x, y). Unorm formats clamp; the
// float format keeps out-of-range values for linear-light passes.
func setTexelAt(t *Texture, x, y int, v [4]float32) {
	if t == nil || t.data == nil ||
		x < 0 || x >= t.width || y < 0 || y >= t.height {
		return
	}
	bpp := t.format.BytesPerPixel()
	px := t.data[(y*t.width+x)*bpp:]

	u8 := func(f float32) byte {
		return byte(clamp01(float64(f))*255 + 0.5)
	}
	u16 := func(f float32) uint16 {
		return uint16(clamp01(float64(f))*65535 + 0.5)
	}
	switch t.format {
	case FormatR8:
		px[0] = u8(v[0])
	case FormatRG8:
		px[0], px[1] = u8(v[0]), u8(v[1])
	case FormatRGBA8:
		px[0], px[1], px[2], px[3] = u8(v[0]), u8(v[1]), u8(v[2]), u8(v[3])
	case FormatBGRA8:
		px[0], px[1], px[2], px[3] = u8(v[2]), u8(v[1]), u8(v[0]), u8(v[3])
	case FormatR16, FormatR16UI:
		putU16le(px, u16(v[0]))
	case FormatRG16, FormatRG16UI:
		putU16le(px, u16(v[0]))
		putU16le(px[2:], u16(v[1]))
	case FormatRGBA16:
		for c := 0; c < 4; c++ {
			putU16le(px[2*c:], u16(v[c]))
		}
	case FormatRGBA16F:
		for c := 0; c < 4; c++ {
			putU16le(px[2*c:], floatToHalf(v[c]))
		}
	}
}

// sampleBilinear samples at (fx, fy) in texel-index space: 0 is the
// first texel's center. Edges clamp.
func sampleBilinear(t *Texture, fx, fy float64) [4]float32 {
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	ax := float32(fx - math.Floor(fx))
	ay := float32(fy - math.Floor(fy))

	v00 := texelAt(t, x0, y0)
	v10 := texelAt(t, x0+1, y0)
	v01 := texelAt(t, x0, y0+1)
	v11 := texelAt(t, x0+1, y0+1)

	var out [4]float32
	for c := 0; c < 4; c++ {
		top := v00[c] + (v10[c]-v00[c])*ax
		bot := v01[c] + (v11[c]-v01[c])*ax
		out[c] = top + (bot-top)*ay
	}
	return out
}

// catmullWeight is the Catmull-Rom kernel for the bicubic fast path.
func catmullWeight(x float64) float64 {
	x = math.Abs(x)
	switch {
	case x < 1:
		return 1.5*x*x*x - 2.5*x*x + 1
	case x < 2:
		return -0.5*x*x*x + 2.5*x*x - 4*x + 2
	default:
		return 0
	}
}

func sampleBicubic(t *Texture, fx, fy float64) [4]float32 {
	bx := math.Floor(fx)
	by := math.Floor(fy)
	var acc [4]float64
	var wsum float64
	for j := -1; j <= 2; j++ {
		wy := catmullWeight(fy - (by + float64(j)))
		for i := -1; i <= 2; i++ {
			w := catmullWeight(fx-(bx+float64(i))) * wy
			if w == 0 {
				continue
			}
			s := texelAt(t, int(bx)+i, int(by)+j)
			for c := 0; c < 4; c++ {
				acc[c] += w * float64(s[c])
			}
			wsum += w
		}
	}
	var out [4]float32
	if wsum != 0 {
		for c := 0; c < 4; c++ {
			out[c] = float32(acc[c] / wsum)
		}
	}
	return out
}

// planeGridPos maps output pixel (x, y) on a gw×gh grid into the
// plane's texel space: the logical-size ratio covers subsampling, the
// transform carries siting, crops and hook resizes.
func planeGridPos(p ImgTex, x, y, gw, gh int) (float64, float64) {
	fx := (float64(x) + 0.5) * float64(p.W) / float64(gw)
	fy := (float64(y) + 0.5) * float64(p.H) / float64(gh)
	fx, fy = p.Transform.Apply(fx, fy)
	return fx - 0.5, fy - 0.5
}

// applyMultiplier renormalizes the plane's meaningful channels, e.g.
// 10-bit content stored in 16-bit texels.
func applyMultiplier(p ImgTex, v [4]float32) [4]float32 {
	if p.Multiplier == 0 || p.Multiplier == 1 {
		return v
	}
	comps := p.Components
	if comps <= 0 || comps > 4 {
		comps = 4
	}
	for c := 0; c < comps; c++ {
		v[c] = float32(float64(v[c]) * p.Multiplier)
	}
	return v
}

// planeSample bilinearly samples a plane at output pixel (x, y) of a
// gw×gh grid, with the multiplier applied.
func planeSample(p ImgTex, x, y, gw, gh int) [4]float32 {
	fx, fy := planeGridPos(p, x, y, gw, gh)
	return applyMultiplier(p, sampleBilinear(p.Tex, fx, fy))
}

// swMerge packs two planes' channels into one texture, a's components
// first. The shared multiplier stays on the merged ImgTex.
func swMerge(dst *Texture, a, b ImgTex) {
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			va := texelAt(a.Tex, x, y)
			vb := texelAt(b.Tex, x, y)
			out := [4]float32{0, 0, 0, 1}
			n := 0
			for c := 0; c < a.Components && n < 4; c++ {
				out[n] = va[c]
				n++
			}
			for c := 0; c < b.Components && n < 4; c++ {
				out[n] = vb[c]
				n++
			}
			setTexelAt(dst, x, y, out)
		}
	}
}

// swNormalize rescales an integer plane into normalized float texels.
func swNormalize(dst *Texture, p ImgTex) {
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			setTexelAt(dst, x, y, applyMultiplier(p, texelAt(p.Tex, x, y)))
		}
	}
}

// swConvert gathers the component planes onto the reference grid and
// applies the colorspace matrix, producing the RGB main texture.
// Chroma siting offsets are already composed into the plane transforms.
func swConvert(dst *Texture, p CSPParams, planes []ImgTex, refW, refH int) {
	m, off := YUVMatrix(p)

	depth := p.BitDepth
	if depth < 8 {
		depth = 8
	}
	maxv := float64(int(1)<<uint(depth)) - 1
	shift := float64(int(1) << uint(depth-8))
	cmid := 128 * shift / maxv

	yuv := p.Space.IsYUV()
	expand := !yuv && p.Levels == LevelsLimited
	ymul := maxv / (219 * shift)
	ymin := 16 * shift / maxv

	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			// Missing chroma defaults to the neutral code value, so
			// gray content converts without a dedicated path.
			val := [3]float64{0, cmid, cmid}
			if !yuv {
				val = [3]float64{}
			}
			alpha := 1.0
			n := 0
			for _, pl := range planes {
				s := planeSample(pl, x, y, refW, refH)
				if pl.Role == RoleAlpha {
					alpha = float64(s[0])
					continue
				}
				for c := 0; c < pl.Components && n < 3; c++ {
					val[n] = float64(s[c])
					n++
				}
			}

			var rgb [3]float64
			switch {
			case yuv:
				for i := 0; i < 3; i++ {
					rgb[i] = m[i][0]*val[0] + m[i][1]*val[1] + m[i][2]*val[2] + off[i]
				}
			case expand:
				for i := range rgb {
					rgb[i] = (val[i] - ymin) * ymul
				}
			default:
				rgb = val
			}
			setTexelAt(dst, x, y, [4]float32{
				float32(rgb[0]), float32(rgb[1]), float32(rgb[2]), float32(alpha),
			})
		}
	}
}

// swTransfer applies a per-channel curve to the color channels,
// leaving alpha alone.
func swTransfer(dst *Texture, src ImgTex, fn func(float64) float64) {
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			v := texelAt(src.Tex, x, y)
			for c := 0; c < 3; c++ {
				v[c] = float32(fn(float64(v[c])))
			}
			setTexelAt(dst, x, y, v)
		}
	}
}

// swScaleAxis convolves one axis with the phase-indexed weight LUT:
// count rows of taps weights, row selected by the subpixel phase, tap
// n applied to source index base+n-taps/2+1.
func swScaleAxis(dst *Texture, src ImgTex, lut []float32, taps int, vertical bool) {
	if taps <= 0 || len(lut) < taps {
		return
	}
	count := len(lut) / taps

	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			fx := float64(x) + 0.5
			fy := float64(y) + 0.5
			if vertical {
				fy = fy * float64(src.H) / float64(dst.height)
			} else {
				fx = fx * float64(src.W) / float64(dst.width)
			}
			fx, fy = src.Transform.Apply(fx, fy)

			pos, other := fx-0.5, fy-0.5
			if vertical {
				pos, other = fy-0.5, fx-0.5
			}
			base := int(math.Floor(pos))
			phase := pos - math.Floor(pos)
			row := int(phase*float64(count-1) + 0.5)
			w := lut[row*taps : row*taps+taps]
			oi := int(math.Round(other))

			var acc [4]float64
			for n := 0; n < taps; n++ {
				si := base + n - taps/2 + 1
				var s [4]float32
				if vertical {
					s = texelAt(src.Tex, oi, si)
				} else {
					s = texelAt(src.Tex, si, oi)
				}
				for c := 0; c < 4; c++ {
					acc[c] += float64(w[n]) * float64(s[c])
				}
			}
			out := applyMultiplier(src, [4]float32{
				float32(acc[0]), float32(acc[1]), float32(acc[2]), float32(acc[3]),
			})
			setTexelAt(dst, x, y, out)
		}
	}
}

// swScalePolar runs the EWA convolution: every source texel within the
// cutoff radius contributes its radial LUT weight, normalized per
// output pixel.
func swScalePolar(dst *Texture, src ImgTex, radius, cutoff, filterScale float64, lut []float32) {
	if len(lut) < 2 || radius <= 0 {
		return
	}
	if cutoff <= 0 {
		cutoff = radius
	}
	if filterScale <= 0 {
		filterScale = 1
	}
	reach := cutoff * filterScale

	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			cx := (float64(x) + 0.5) * float64(src.W) / float64(dst.width)
			cy := (float64(y) + 0.5) * float64(src.H) / float64(dst.height)
			cx, cy = src.Transform.Apply(cx, cy)
			cx -= 0.5
			cy -= 0.5

			var acc [4]float64
			var wsum float64
			for sy := int(math.Ceil(cy - reach)); sy <= int(math.Floor(cy+reach)); sy++ {
				for sx := int(math.Ceil(cx - reach)); sx <= int(math.Floor(cx+reach)); sx++ {
					d := math.Hypot(float64(sx)-cx, float64(sy)-cy) / filterScale
					if d > cutoff {
						continue
					}
					pos := d / radius * float64(len(lut)-1)
					i0 := int(pos)
					fr := pos - float64(i0)
					if i0 >= len(lut)-1 {
						i0 = len(lut) - 2
						fr = 1
					}
					w := float64(lut[i0])*(1-fr) + float64(lut[i0+1])*fr
					s := texelAt(src.Tex, sx, sy)
					for c := 0; c < 4; c++ {
						acc[c] += w * float64(s[c])
					}
					wsum += w
				}
			}
			var out [4]float32
			if wsum != 0 {
				for c := 0; c < 4; c++ {
					out[c] = float32(acc[c] / wsum)
				}
			}
			setTexelAt(dst, x, y, applyMultiplier(src, out))
		}
	}
}

// resampleMode selects the fixed-function resampling kernel.
type resampleMode uint8

const (
	resampleBilinear resampleMode = iota
	resampleNearest
	resampleBicubic
)

// swResample rescales src onto dst with a fixed kernel.
func swResample(dst *Texture, src ImgTex, mode resampleMode) {
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			fx, fy := planeGridPos(src, x, y, dst.width, dst.height)
			var v [4]float32
			switch mode {
			case resampleNearest:
				v = texelAt(src.Tex, int(math.Round(fx)), int(math.Round(fy)))
			case resampleBicubic:
				v = sampleBicubic(src.Tex, fx, fy)
			default:
				v = sampleBilinear(src.Tex, fx, fy)
			}
			setTexelAt(dst, x, y, applyMultiplier(src, v))
		}
	}
}

// swBlend mixes two equally sized frames: out = (1-w)*a + w*b.
func swBlend(dst, a, b *Texture, w float64) {
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			va := texelAt(a, x, y)
			vb := texelAt(b, x, y)
			var out [4]float32
			for c := 0; c < 4; c++ {
				out[c] = float32((1-w)*float64(va[c]) + w*float64(vb[c]))
			}
			setTexelAt(dst, x, y, out)
		}
	}
}

// swFrameMax scans the frame's maximum channel value in linear light,
// feeding HDR peak detection on the software path.
func swFrameMax(main ImgTex, tr Transfer, linear bool) (float64, bool) {
	t := main.Tex
	if t == nil || t.data == nil {
		return 0, false
	}
	peak := 0.0
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			v := texelAt(t, x, y)
			for c := 0; c < 3; c++ {
				if f := float64(v[c]); f > peak {
					peak = f
				}
			}
		}
	}
	if !linear {
		// The transfer curves are monotonic, so linearizing the
		// maximum equals the maximum of the linearized values.
		peak = Linearize(tr, peak)
	}
	return peak, true
}

// colorManage carries the resolved parameters of the color management
// pass into its kernel.
type colorManage struct {
	linear      bool
	tone        bool
	curve       ToneCurve
	toneParam   float64
	srcPeak     float64
	targetPeak  float64
	lut         *LUT3D
	srcTransfer Transfer
	outTransfer Transfer
}

// swColorManage tone-maps, delinearizes and applies the 3D LUT.
func swColorManage(dst *Texture, src ImgTex, cm colorManage) {
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			v := texelAt(src.Tex, x, y)
			rgb := [3]float64{float64(v[0]), float64(v[1]), float64(v[2])}
			lin := cm.linear

			if cm.tone {
				if !lin {
					for i := range rgb {
						rgb[i] = Linearize(cm.srcTransfer, rgb[i])
					}
					lin = true
				}
				// Map on the per-pixel maximum so hue holds while
				// brightness compresses.
				sig := math.Max(rgb[0], math.Max(rgb[1], rgb[2]))
				if sig > 0 {
					mapped := ToneMap(cm.curve, sig, cm.srcPeak/cm.targetPeak, cm.toneParam)
					scale := mapped / sig
					for i := range rgb {
						rgb[i] *= scale
					}
				}
			}
			if lin {
				for i := range rgb {
					rgb[i] = Delinearize(cm.outTransfer, math.Max(rgb[i], 0))
				}
			}
			if cm.lut.Valid() {
				rgb = cm.lut.lookup(rgb)
			}
			setTexelAt(dst, x, y, [4]float32{
				float32(rgb[0]), float32(rgb[1]), float32(rgb[2]), v[3],
			})
		}
	}
}

// swOutput samples the main texture onto the target grid, dithers the
// color channels and encodes into the framebuffer format.
func swOutput(dst *Texture, main ImgTex, d *DitherMatrix, depth int, flipX, flipY, transpose bool) {
	if main.Tex == nil {
		return
	}
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			v := planeSample(main, x, y, dst.width, dst.height)
			if main.Components > 0 && main.Components < 4 {
				v[3] = 1
			}
			if d != nil && depth > 0 {
				tx, ty := x, y
				mask := d.Size - 1
				tx &= mask
				ty &= mask
				if transpose {
					tx, ty = ty, tx
				}
				if flipX {
					tx = mask - tx
				}
				if flipY {
					ty = mask - ty
				}
				th := float64(d.Data[ty*d.Size+tx])
				levels := float64(int(1)<<uint(depth)) - 1
				for c := 0; c < 3; c++ {
					v[c] = float32(math.Floor(clamp01(float64(v[c]))*levels+th) / levels)
				}
			}
			setTexelAt(dst, x, y, v)
		}
	}
}

// swDeband flattens banding: each iteration averages four taps on a
// pseudo-random ring around the pixel and keeps the average when it
// stays within the threshold, then adds grain back.
func swDeband(dst *Texture, src ImgTex, cfg DebandConfig) {
	thr := cfg.Threshold / 16384
	for y := 0; y < dst.height; y++ {
		for x := 0; x < dst.width; x++ {
			v := texelAt(src.Tex, x, y)
			for c := 0; c < 3; c++ {
				val := float64(v[c])
				for it := 1; it <= cfg.Iterations; it++ {
					h := debandHash(uint32(x), uint32(y), uint32(it))
					angle := float64(h&0xFFFF) / 65536 * 2 * math.Pi
					dist := float64(h>>16) / 65536 * cfg.Range * float64(it)
					var avg float64
					for k := 0; k < 4; k++ {
						a := angle + float64(k)*math.Pi/2
						sx := float64(x) + math.Cos(a)*dist
						sy := float64(y) + math.Sin(a)*dist
						avg += float64(sampleBilinear(src.Tex, sx, sy)[c])
					}
					avg /= 4
					if math.Abs(avg-val) < thr {
						val = avg
					}
				}
				if cfg.Grain > 0 {
					g := debandHash(uint32(x), uint32(y), 0x6789+uint32(c))
					val += (float64(g&0xFFFF)/65536 - 0.5) * cfg.Grain / 8192
				}
				v[c] = float32(val)
			}
			setTexelAt(dst, x, y, v)
		}
	}
}

// debandHash is a stateless pixel hash; deterministic so frames are
// reproducible.
func debandHash(a, b, c uint32) uint32 {
	h := a*73856093 ^ b*19349663 ^ c*83492791
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return h
}
