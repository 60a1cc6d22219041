package gpu

import (
	"fmt"
	"math"

	"github.com/gogpu/present/internal/scaler"
)

// lutTapSizes is the ascending list of tap counts the separable scale
// shader can realize.
var lutTapSizes = []int{2, 4, 6, 8, 12, 16}

// scalerLUTSize is the number of subpixel phases (separable) or radial
// samples (polar) stored in the weight LUT.
const scalerLUTSize = 64

// polarTileSize is the pixel tile one compute workgroup covers in the
// polar fast path.
const polarTileSize = 32

// defaultScaleEpsilon decides when a scale factor counts as 1:1. The
// threshold is configurable because exact float equality at the 1:1
// boundary is not portable across transform arithmetic.
const defaultScaleEpsilon = 1e-6

// scaleMethod is the scaler dispatch decision.
type scaleMethod uint8

const (
	scaleBilinear scaleMethod = iota
	scaleBicubicFast
	scaleOversample
	scaleSeparable
	scalePolar
)

func (m scaleMethod) String() string {
	switch m {
	case scaleBilinear:
		return "bilinear"
	case scaleBicubicFast:
		return "bicubic-fast"
	case scaleOversample:
		return "oversample"
	case scaleSeparable:
		return "separable"
	case scalePolar:
		return "polar"
	default:
		return "unknown"
	}
}

// RendererConfig selects the render pipeline's features.
type RendererConfig struct {
	// Scale names the main scaler kernel. Empty or "bilinear" is the
	// trivial passthrough; "bicubic_fast" and "oversample" select the
	// fixed fast paths.
	Scale string

	// ScaleOpts tunes the main scaler kernel.
	ScaleOpts scaler.Options

	// ScaleEpsilon is the 1:1 detection threshold: scale factors
	// within it of 1 skip the scaler entirely. 0 uses the default.
	ScaleEpsilon float64

	// LinearScale scales in linear light.
	LinearScale bool

	// SigmoidUpscale applies the sigmoid transform around upscaling
	// to reduce ringing. Implies linear light.
	SigmoidUpscale bool

	// Sigmoid overrides the default sigmoid curve when SigmoidUpscale
	// is set. Zero value uses DefaultSigmoid.
	Sigmoid Sigmoid

	// ToneCurve selects the HDR tone mapping curve.
	ToneCurve ToneCurve

	// ToneParam tunes the tone curve; 0 uses the curve default.
	ToneParam float64

	// TargetPeak is the display peak in units of reference white.
	// 0 means SDR (1.0).
	TargetPeak float64

	// PeakDetect measures the source brightness each frame and feeds
	// it back into tone mapping.
	PeakDetect bool

	// LUT is an optional 3D color lookup table applied after tone
	// mapping.
	LUT *LUT3D

	// Dither configures output dithering.
	Dither DitherConfig

	// Deband enables the built-in debanding hook.
	Deband *DebandConfig

	// Interpolate enables temporal frame blending through the surface
	// ring.
	Interpolate bool

	// CacheBudgetMB bounds the texture pool. 0 uses the default.
	CacheBudgetMB int
}

// DefaultRendererConfig returns the standard configuration: lanczos
// scaling, fruit dithering, no HDR features.
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		Scale:  "lanczos",
		Dither: DefaultDitherConfig(),
	}
}

// SourceFrame is one decoded video frame handed to the renderer.
type SourceFrame struct {
	// ID identifies the frame for surface-ring caching.
	ID uint64

	// PTS is the presentation timestamp in seconds.
	PTS float64

	// Planes are the source plane textures with their roles and
	// transforms.
	Planes []ImgTex

	// Params describe the frame's colorspace.
	Params CSPParams

	// ChromaLoc is the chroma siting; SubX/SubY the subsampling
	// shifts.
	ChromaLoc  ChromaLoc
	SubX, SubY int
}

// Target describes the output framebuffer.
type Target struct {
	W, H   int
	Format Format

	// Depth is the effective framebuffer bit depth for dithering.
	// 0 derives it from the format.
	Depth int
}

// FrameResult is one rendered output frame.
type FrameResult struct {
	// Tex is the rendered output; owned by the renderer's pool.
	Tex *Texture

	// Stats are the recorded passes.
	Stats []PassStat

	// Broken reports that assembly failed and Tex holds the
	// diagnostic fill.
	Broken bool
}

// Renderer assembles the per-frame pass graph: plane merge, hooks,
// color conversion, scaling, tone mapping and dithering.
type Renderer struct {
	dev    *Device
	pool   *Pool
	hooks  *HookRegistry
	ring   *SurfaceRing
	peak   PeakDetector
	dither *DitherMatrix

	cfg    RendererConfig
	method scaleMethod

	// filter is the configured convolution filter; nil for the
	// bilinear, bicubic and oversample paths.
	filter    *scaler.Filter
	filterLUT []float32

	frameCount uint64
}

// NewRenderer creates a renderer on the given device.
func NewRenderer(dev *Device, cfg RendererConfig) (*Renderer, error) {
	budget := cfg.CacheBudgetMB
	if budget <= 0 {
		budget = DefaultBudgetMB
	}
	pool := NewPool(dev, budget)

	r := &Renderer{
		dev:   dev,
		pool:  pool,
		hooks: NewHookRegistry(),
		cfg:   cfg,
	}
	r.ring = NewSurfaceRing(pool)

	if err := r.resolveScaler(); err != nil {
		pool.Close()
		return nil, err
	}

	if cfg.Dither.Mode != DitherNone {
		r.dither = NewDitherMatrix(cfg.Dither)
	}
	if cfg.Deband != nil {
		r.hooks.Register(&Deband{Cfg: *cfg.Deband})
	}

	slogger().Info("renderer created",
		"scale", r.method, "dither", cfg.Dither.Mode,
		"interpolate", cfg.Interpolate, "device", dev.Ready())
	return r, nil
}

func (r *Renderer) resolveScaler() error {
	switch r.cfg.Scale {
	case "", "bilinear":
		r.method = scaleBilinear
		return nil
	case "bicubic_fast":
		r.method = scaleBicubicFast
		return nil
	case "oversample":
		r.method = scaleOversample
		return nil
	}

	f, err := scaler.New(r.cfg.Scale, r.cfg.ScaleOpts)
	if err != nil {
		return fmt.Errorf("gpu: scaler %q: %w", r.cfg.Scale, err)
	}
	r.filter = f
	if f.Kernel.Polar {
		r.method = scalePolar
	} else {
		r.method = scaleSeparable
	}
	return nil
}

// Hooks exposes the hook registry for user shader registration.
func (r *Renderer) Hooks() *HookRegistry { return r.hooks }

// Pool exposes the texture pool, mainly for diagnostics.
func (r *Renderer) Pool() *Pool { return r.pool }

// Invalidate drops all cached state: the surface ring, pooled FBOs
// and the detected peak. Called on seek, still frames and format
// changes.
func (r *Renderer) Invalidate() {
	r.ring.Invalidate()
	r.pool.Invalidate()
	r.peak.Reset()
}

// Close releases the renderer's resources.
func (r *Renderer) Close() {
	r.ring.Invalidate()
	r.pool.Close()
}

func (r *Renderer) scaleEpsilon() float64 {
	if r.cfg.ScaleEpsilon > 0 {
		return r.cfg.ScaleEpsilon
	}
	return defaultScaleEpsilon
}

func (r *Renderer) sigmoid() Sigmoid {
	if r.cfg.Sigmoid != (Sigmoid{}) {
		return r.cfg.Sigmoid
	}
	return DefaultSigmoid()
}

// Draw renders one frame to the target and returns the result. Errors
// during assembly never propagate as Go errors; the frame comes back
// marked broken with a diagnostic fill instead.
func (r *Renderer) Draw(f *SourceFrame, t Target) *FrameResult {
	r.frameCount++
	pc := NewPassContext(r.dev, r.pool, r.hooks)
	r.hooks.ResetFrame()

	tex := r.drawMain(pc, f, t)
	out := r.outputPass(pc, tex, t)
	pc.ReleaseIntermediates(out)

	return &FrameResult{Tex: out, Stats: pc.Stats(), Broken: pc.Broken()}
}

// drawMain runs the pipeline up to (but not including) the output
// pass: everything that a cached interpolation surface stores.
func (r *Renderer) drawMain(pc *PassContext, f *SourceFrame, t Target) ImgTex {
	planes := append([]ImgTex(nil), f.Planes...)

	planes = r.mergePlanes(pc, planes)
	planes = r.materializeIntegers(pc, planes)
	planes = r.runPlaneHooks(pc, planes)

	main := r.convertPass(pc, f, planes)
	main = r.runHook(pc, HookMainPre, main)
	main = r.runHook(pc, HookMain, main)

	sx, sy := r.targetScale(main, t)
	needsScale := math.Abs(sx-1) > r.scaleEpsilon() ||
		math.Abs(sy-1) > r.scaleEpsilon()
	upscaling := sx > 1 || sy > 1

	linear := r.cfg.LinearScale && (needsScale || f.Params.Transfer.IsHDR())
	sigmoid := r.cfg.SigmoidUpscale && upscaling && !f.Params.Transfer.IsHDR()
	linear = linear || sigmoid

	if linear {
		tr := f.Params.Transfer
		main = r.transferPass(pc, main, "linearize", func(v float64) float64 {
			return Linearize(tr, v)
		})
		main = r.runHook(pc, HookLinear, main)
	}
	if sigmoid {
		main = r.transferPass(pc, main, "sigmoidize", r.sigmoid().Forward)
		main = r.runHook(pc, HookSigmoid, main)
	}

	main = r.runHook(pc, HookPreKernel, main)
	if needsScale {
		main = r.scalePass(pc, main, t)
	}
	main = r.runHook(pc, HookPostKernel, main)
	main = r.runHook(pc, HookScaled, main)

	if sigmoid {
		main = r.transferPass(pc, main, "desigmoidize", r.sigmoid().Inverse)
	}

	main = r.colorManagePass(pc, f, main, linear)
	return main
}

// targetScale derives the effective scale factors from the main
// texture's logical size, its transform and the target size.
func (r *Renderer) targetScale(main ImgTex, t Target) (sx, sy float64) {
	tx, ty := main.Transform.ScaleFactor()
	w := float64(main.W) * math.Abs(tx)
	h := float64(main.H) * math.Abs(ty)
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	return float64(t.W) / w, float64(t.H) / h
}

// mergePlanes fuses adjacent planes that can be fetched through one
// texture. One pass per merged pair.
func (r *Renderer) mergePlanes(pc *PassContext, planes []ImgTex) []ImgTex {
	out := planes[:0]
	for i := 0; i < len(planes); i++ {
		p := planes[i]
		if i+1 < len(planes) && CanMerge(p, planes[i+1]) {
			q := planes[i+1]
			merged := r.blitPair(pc, p, q)
			if merged.Tex == nil {
				// Allocation failed, keep the planes separate; the
				// frame is already marked broken.
				out = append(out, p, q)
				i++
				continue
			}
			out = append(out, merged)
			i++
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *Renderer) blitPair(pc *PassContext, a, b ImgTex) ImgTex {
	fbo := pc.GetFBO(a.W, a.H, FormatRGBA16)
	if fbo == nil {
		return ImgTex{}
	}
	pc.Dispatch(fmt.Sprintf("merge %s planes", a.Role), ShaderBlit, func() {
		swMerge(fbo, a, b)
	})
	return ImgTex{
		Role:       a.Role,
		Tex:        fbo,
		W:          a.W,
		H:          a.H,
		Components: a.Components + b.Components,
		Multiplier: a.Multiplier,
		Transform:  a.Transform,
	}
}

// materializeIntegers renders unsigned-integer planes through one blit
// so downstream math runs in normalized float.
func (r *Renderer) materializeIntegers(pc *PassContext, planes []ImgTex) []ImgTex {
	for i := range planes {
		p := &planes[i]
		if p.Tex == nil || !p.Tex.Format().Integer() {
			continue
		}
		fbo := pc.GetFBO(p.W, p.H, FormatRGBA16)
		if fbo == nil {
			continue
		}
		src := *p
		pc.Dispatch(fmt.Sprintf("normalize %s plane", p.Role), ShaderBlit, func() {
			swNormalize(fbo, src)
		})
		p.Tex = fbo
		p.Multiplier = 1
	}
	return planes
}

// runPlaneHooks runs the per-plane hook points before conversion.
func (r *Renderer) runPlaneHooks(pc *PassContext, planes []ImgTex) []ImgTex {
	for i := range planes {
		var point string
		switch planes[i].Role {
		case RoleLuma:
			point = HookLuma
		case RoleChroma:
			point = HookChroma
		case RoleRGB:
			point = HookRGB
		default:
			continue
		}
		planes[i] = r.runHook(pc, point, planes[i])
	}
	return planes
}

func (r *Renderer) runHook(pc *PassContext, point string, tex ImgTex) ImgTex {
	out := r.hooks.RunPoint(pc, point, &HookedTex{Name: point, Tex: tex})
	return out.Tex
}

// convertPass aligns the planes onto the reference rectangle, applies
// the YUV matrix and produces the single RGB main texture. The NATIVE
// hook runs on the pre-conversion reference plane.
func (r *Renderer) convertPass(pc *PassContext, f *SourceFrame, planes []ImgTex) ImgTex {
	if len(planes) == 0 {
		pc.MarkBroken()
		return ImgTex{}
	}

	// The reference plane defines the output rectangle; chroma planes
	// get their siting offset composed into their transform.
	ref := planes[0]
	for i := range planes {
		if planes[i].Role == RoleLuma || planes[i].Role == RoleRGB {
			ref = planes[i]
			break
		}
	}
	for i := range planes {
		if planes[i].Role != RoleChroma {
			continue
		}
		off := ChromaOffset(f.ChromaLoc, f.SubX, f.SubY)
		planes[i].Transform = planes[i].Transform.Compose(off)
	}

	ref = r.runHook(pc, HookNative, ref)

	// A packed RGB source with full range needs no conversion pass.
	if !f.Params.Space.IsYUV() && len(planes) == 1 &&
		f.Params.Levels == LevelsFull {
		return ref
	}

	fbo := pc.GetFBO(ref.W, ref.H, FormatRGBA16F)
	if fbo == nil {
		return ref
	}
	name := "convert colorspace"
	if f.Params.Space == CSBT2020CL {
		name = "convert colorspace (constant luminance)"
	}
	convPlanes := append([]ImgTex(nil), planes...)
	pc.Dispatch(name, ShaderConvert, func() {
		swConvert(fbo, f.Params, convPlanes, ref.W, ref.H)
	})

	// The conversion resolved every plane transform onto the reference
	// grid.
	return ImgTex{
		Role:       RoleRGB,
		Tex:        fbo,
		W:          ref.W,
		H:          ref.H,
		Components: 3,
		Multiplier: 1,
		Transform:  Identity(),
	}
}

// transferPass applies a per-pixel transfer curve (linearize, sigmoid
// and their inverses) into a fresh FBO.
func (r *Renderer) transferPass(pc *PassContext, main ImgTex, name string, fn func(float64) float64) ImgTex {
	fbo := pc.GetFBO(main.W, main.H, FormatRGBA16F)
	if fbo == nil {
		return main
	}
	src := main
	pc.Dispatch(name, ShaderConvert, func() {
		swTransfer(fbo, src, fn)
	})
	main.Tex = fbo
	return main
}

// scalePass runs the configured scaler. Separable kernels take two
// passes; polar kernels take one, on the compute path when the shared
// memory budget allows.
func (r *Renderer) scalePass(pc *PassContext, main ImgTex, t Target) ImgTex {
	sx, sy := r.targetScale(main, t)
	downscale := math.Max(1/sx, 1/sy)

	switch r.method {
	case scaleBilinear:
		// Sampled directly by the next pass; no dedicated pass. The
		// composed transform maps target pixels back into the source.
		main.Transform = main.Transform.Compose(Scale(1/sx, 1/sy))
		main.W, main.H = t.W, t.H
		return main

	case scaleBicubicFast:
		return r.fixedScalePass(pc, main, t, "main scale (bicubic fast)")

	case scaleOversample:
		return r.fixedScalePass(pc, main, t, "main scale (oversample)")

	case scaleSeparable:
		if !r.filter.Init(lutTapSizes, downscale) {
			slogger().Warn("scaler radius insufficient for downscale, cutting short",
				"kernel", r.filter.Kernel.Fn.Name, "downscale", downscale)
		}
		r.filterLUT = r.filter.ComputeLUT(scalerLUTSize)
		lut, taps := r.filterLUT, r.filter.Size

		// Horizontal into an intermediate at target width, then
		// vertical into the final size.
		mid := pc.GetFBO(t.W, main.H, FormatRGBA16F)
		if mid == nil {
			return main
		}
		src := main
		pc.Dispatch(fmt.Sprintf("main scale x (%s %d taps)",
			r.filter.Kernel.Fn.Name, taps), ShaderScaleSeparable, func() {
			swScaleAxis(mid, src, lut, taps, false)
		})
		fbo := pc.GetFBO(t.W, t.H, FormatRGBA16F)
		if fbo == nil {
			return main
		}
		midTex := ImgTex{
			Role:       main.Role,
			Tex:        mid,
			W:          t.W,
			H:          main.H,
			Components: main.Components,
			Multiplier: 1,
			Transform:  Identity(),
		}
		pc.Dispatch(fmt.Sprintf("main scale y (%s %d taps)",
			r.filter.Kernel.Fn.Name, taps), ShaderScaleSeparable, func() {
			swScaleAxis(fbo, midTex, lut, taps, true)
		})
		return r.scaled(main, fbo, t)

	case scalePolar:
		if !r.filter.Init(lutTapSizes, downscale) {
			slogger().Warn("polar radius cut to cap",
				"kernel", r.filter.Kernel.Fn.Name, "downscale", downscale)
		}
		r.filterLUT = r.filter.ComputeLUT(scalerLUTSize)

		fbo := pc.GetFBO(t.W, t.H, FormatRGBA16F)
		if fbo == nil {
			return main
		}
		name := fmt.Sprintf("main scale (%s)", r.filter.Kernel.Fn.Name)
		kind := ShaderScalePolar
		if r.polarComputeViable(r.filter.RadiusCutoff) {
			name = fmt.Sprintf("main scale (%s, compute)", r.filter.Kernel.Fn.Name)
			kind = ShaderScalePolarCompute
		}
		src := main
		radius, cutoff, fscale := r.filter.Radius(), r.filter.RadiusCutoff, r.filter.FilterScale
		lut := r.filterLUT
		pc.Dispatch(name, kind, func() {
			swScalePolar(fbo, src, radius, cutoff, fscale, lut)
		})
		return r.scaled(main, fbo, t)
	}
	return main
}

func (r *Renderer) fixedScalePass(pc *PassContext, main ImgTex, t Target, name string) ImgTex {
	// On the software path the scale actually runs on the CPU when
	// the source is readable.
	if !r.dev.Ready() && main.Tex != nil && main.Tex.Format() == FormatRGBA8 {
		if cpu, err := SoftwareScale(r.pool, main.Tex, t.W, t.H, r.cfg.Scale); err == nil {
			pc.Track(cpu)
			pc.RecordPass(name+" (software)", 0)
			return r.scaled(main, cpu, t)
		}
	}

	fbo := pc.GetFBO(t.W, t.H, FormatRGBA16F)
	if fbo == nil {
		return main
	}
	mode := resampleBicubic
	if r.method == scaleOversample {
		mode = resampleNearest
	}
	src := main
	pc.Dispatch(name, ShaderScaleFixed, func() {
		swResample(fbo, src, mode)
	})
	return r.scaled(main, fbo, t)
}

func (r *Renderer) scaled(main ImgTex, fbo *Texture, t Target) ImgTex {
	return ImgTex{
		Role:       main.Role,
		Tex:        fbo,
		W:          t.W,
		H:          t.H,
		Components: main.Components,
		Multiplier: 1,
		Transform:  Identity(),
	}
}

// polarComputeViable checks the shared-memory budget for the polar
// compute fast path: the workgroup tile plus the filter apron must fit
// as vec4<f32> texels.
func (r *Renderer) polarComputeViable(radiusCutoff float64) bool {
	if !r.dev.Limits().SupportsCompute {
		return false
	}
	apron := int(math.Ceil(radiusCutoff))
	tile := polarTileSize + 2*apron
	needed := tile * tile * 16
	return needed <= r.dev.Limits().MaxSharedMemory
}

// colorManagePass runs delinearization, tone mapping, peak detection
// and the optional 3D LUT.
func (r *Renderer) colorManagePass(pc *PassContext, f *SourceFrame, main ImgTex, linear bool) ImgTex {
	hdr := f.Params.Transfer.IsHDR()

	// Nominal peak of the transfer curve, in multiples of reference
	// white, used when peak detection is off or not yet primed.
	srcPeak := 1.0
	if f.Params.Transfer == TransferPQ {
		srcPeak = 10000 / refWhite
	} else if f.Params.Transfer == TransferHLG {
		srcPeak = 1000 / refWhite
	}

	if hdr && r.cfg.PeakDetect {
		// The GPU path reduces frame maxima into the persistent
		// storage buffer; headless the frame is scanned directly. The
		// smoothing state lives on the detector either way.
		measured := srcPeak
		src := main
		tr := f.Params.Transfer
		pc.Dispatch("peak detect", ShaderPeakDetect, func() {
			if m, ok := swFrameMax(src, tr, linear); ok {
				measured = m
			}
		})
		r.peak.Update(measured)
		srcPeak = r.peak.Peak(srcPeak)
	}

	targetPeak := r.cfg.TargetPeak
	if targetPeak <= 0 {
		targetPeak = 1
	}
	needTone := hdr && r.cfg.ToneCurve != ToneClip && srcPeak > targetPeak

	if needTone || r.cfg.LUT.Valid() || linear {
		fbo := pc.GetFBO(main.W, main.H, FormatRGBA16)
		if fbo == nil {
			return main
		}
		var name string
		switch {
		case needTone && r.cfg.LUT.Valid():
			name = fmt.Sprintf("tone map (%s, peak %.1f) + 3dlut",
				r.cfg.ToneCurve, srcPeak)
		case needTone:
			name = fmt.Sprintf("tone map (%s, peak %.1f)",
				r.cfg.ToneCurve, srcPeak)
		case r.cfg.LUT.Valid():
			name = "3dlut"
		default:
			name = "delinearize"
		}
		outTransfer := f.Params.Transfer
		if hdr {
			// HDR content lands on an SDR-composited framebuffer.
			outTransfer = TransferGamma22
		}
		cm := colorManage{
			linear:      linear,
			tone:        needTone,
			curve:       r.cfg.ToneCurve,
			toneParam:   r.cfg.ToneParam,
			srcPeak:     srcPeak,
			targetPeak:  targetPeak,
			lut:         r.cfg.LUT,
			srcTransfer: f.Params.Transfer,
			outTransfer: outTransfer,
		}
		src := main
		pc.Dispatch(name, ShaderOutput, func() {
			swColorManage(fbo, src, cm)
		})
		main.Tex = fbo
	}
	return main
}

// outputPass dithers and composites into the target framebuffer. A
// broken frame gets the diagnostic fill instead.
func (r *Renderer) outputPass(pc *PassContext, main ImgTex, t Target) *Texture {
	out := pc.GetFBO(t.W, t.H, t.Format)
	if out == nil {
		// Not even the final target could be allocated; surface the
		// broken state with no texture.
		return nil
	}

	if pc.Broken() {
		pc.RecordPass("diagnostic fill", 0)
		fillDiagnostic(out)
		return out
	}

	depth := t.Depth
	if depth == 0 {
		depth = 8 * t.Format.BytesPerPixel() / t.Format.Components()
	}
	var flipX, flipY, transpose bool
	if r.dither != nil {
		depth = EffectiveDepth(r.cfg.Dither, depth)
		// Advancing the rotation each frame decorrelates the matrix
		// over time; the output kernel applies the resulting swizzle.
		flipX, flipY, transpose = r.dither.Rotation(r.cfg.Dither.Temporal)
		rotated := flipX || flipY || transpose
		pc.RecordPass(fmt.Sprintf("dither (%s %d bit, rotated=%v)",
			r.cfg.Dither.Mode, depth, rotated), 0)
	}
	dither := r.dither
	pc.Dispatch("output", ShaderOutput, func() {
		swOutput(out, main, dither, depth, flipX, flipY, transpose)
	})
	return out
}

// diagnosticColor is the solid fill for broken frames: visible enough
// that a shader bug shows on screen instead of crashing the player.
var diagnosticColor = [4]byte{32, 80, 160, 255}

func fillDiagnostic(tex *Texture) {
	data := tex.Data()
	if data == nil || tex.Format().BytesPerPixel() != 4 {
		return
	}
	for i := 0; i+3 < len(data); i += 4 {
		data[i] = diagnosticColor[0]
		data[i+1] = diagnosticColor[1]
		data[i+2] = diagnosticColor[2]
		data[i+3] = diagnosticColor[3]
	}
}

// DrawInterpolated renders the current and next frames through the
// surface ring and blends them at the scheduler's vsync offset. With
// interpolation disabled, or at an endpoint weight, it falls back to a
// plain Draw of the dominant frame.
func (r *Renderer) DrawInterpolated(cur, next *SourceFrame, vsyncOffset, idealFrameDuration float64, t Target) *FrameResult {
	if !r.cfg.Interpolate || next == nil {
		return r.Draw(cur, t)
	}

	w := BlendWeight(vsyncOffset, idealFrameDuration)
	if w == 0 {
		return r.Draw(cur, t)
	}
	if w == 1 {
		return r.Draw(next, t)
	}

	pc := NewPassContext(r.dev, r.pool, r.hooks)

	a := r.cachedSurface(pc, cur, t)
	b := r.cachedSurface(pc, next, t)
	if a == nil || b == nil {
		pc.MarkBroken()
		out := r.outputPass(pc, ImgTex{}, t)
		pc.ReleaseIntermediates(out)
		return &FrameResult{Tex: out, Stats: pc.Stats(), Broken: true}
	}
	r.ring.Advance(cur.ID)

	mix := pc.GetFBO(t.W, t.H, FormatRGBA16F)
	if mix == nil {
		out := r.outputPass(pc, ImgTex{}, t)
		pc.ReleaseIntermediates(out, a.Tex, b.Tex)
		return &FrameResult{Tex: out, Stats: pc.Stats(), Broken: true}
	}
	aTex, bTex := a.Tex, b.Tex
	pc.Dispatch(fmt.Sprintf("interpolate (mix %.3f)", w), ShaderBlit, func() {
		swBlend(mix, aTex, bTex, w)
	})
	blended := ImgTex{
		Role:       RoleRGB,
		Tex:        mix,
		W:          t.W,
		H:          t.H,
		Components: 4,
		Multiplier: 1,
		Transform:  Identity(),
	}
	out := r.outputPass(pc, blended, t)
	// Cached surfaces stay alive in the ring across frames.
	pc.ReleaseIntermediates(out, a.Tex, b.Tex)
	return &FrameResult{Tex: out, Stats: pc.Stats(), Broken: pc.Broken()}
}

// cachedSurface returns the ring slot for the frame, rendering the
// full upscale pipeline into a fresh slot on a miss.
func (r *Renderer) cachedSurface(pc *PassContext, f *SourceFrame, t Target) *Surface {
	if s := r.ring.Lookup(f.ID); s != nil {
		return s
	}
	r.hooks.ResetFrame()
	main := r.drawMain(pc, f, t)
	if pc.Broken() || main.Tex == nil {
		return nil
	}
	// The ring needs its own texture: when conversion and scaling were
	// both skipped, main still aliases a caller-owned source plane.
	surf := pc.GetFBO(t.W, t.H, FormatRGBA16F)
	if surf == nil {
		return nil
	}
	src := main
	pc.Dispatch("cache surface", ShaderBlit, func() {
		swResample(surf, src, resampleBilinear)
	})
	// The surface takes ownership; it returns to the pool when the
	// slot recycles.
	return r.ring.Store(f.ID, f.PTS, surf)
}

// Release returns a finished frame's output texture to the pool. Call
// once the sink no longer reads it.
func (r *Renderer) Release(res *FrameResult) {
	if res != nil && res.Tex != nil {
		r.pool.PutFBO(res.Tex)
		res.Tex = nil
	}
}

// Flush asks the device to submit queued GPU work early so it overlaps
// the playback loop's sleep. Never blocks.
func (r *Renderer) Flush() {
	if !r.dev.Ready() {
		return
	}
	if err := r.dev.Submit("flush"); err != nil {
		slogger().Warn("early flush failed", "error", err)
	}
}
