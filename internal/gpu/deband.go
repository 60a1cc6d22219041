package gpu

import "fmt"

// DebandConfig tunes the built-in debanding hook.
type DebandConfig struct {
	// Iterations is the number of grid sampling steps per pixel.
	Iterations int

	// Threshold is the cutoff below which a gradient is flattened,
	// in 1/16384 units.
	Threshold float64

	// Range is the base sampling radius in pixels; the radius grows
	// with each iteration.
	Range float64

	// Grain is the amount of noise added back after flattening.
	Grain float64
}

// DefaultDebandConfig returns the conventional debanding strength.
func DefaultDebandConfig() DebandConfig {
	return DebandConfig{
		Iterations: 1,
		Threshold:  64,
		Range:      16,
		Grain:      48,
	}
}

// Deband is the built-in debanding hook. It runs on the raw planes
// before scaling, averaging a randomized sample grid around each
// pixel and keeping the average when it differs from the center by
// less than the threshold, then re-grains the output.
type Deband struct {
	Cfg DebandConfig
}

// Hook implements PassHook. Debanding hooks the raw component planes.
func (d *Deband) Hook() HookDesc {
	return HookDesc{
		Points: []string{HookLuma, HookChroma, HookRGB},
		Desc:   "debanding",
	}
}

// Apply implements PassHook.
func (d *Deband) Apply(pc *PassContext, tex *HookedTex) (*HookedTex, error) {
	fbo := pc.GetFBO(tex.Tex.W, tex.Tex.H, FormatRGBA16)
	if fbo == nil {
		return nil, ErrBudgetExceeded
	}
	if pc.Dev.Ready() {
		// A shader failure disables the hook rather than breaking the
		// frame.
		if _, err := pc.Dev.shaderModule(ShaderDeband); err != nil {
			return nil, err
		}
		if err := pc.Dev.Submit("deband"); err != nil {
			return nil, err
		}
	} else {
		swDeband(fbo, tex.Tex, d.Cfg)
	}
	pc.RecordPass(fmt.Sprintf("debanding (%s)", tex.Name), 0)
	out := *tex
	out.Tex.Tex = fbo
	return &out, nil
}

var _ PassHook = (*Deband)(nil)
