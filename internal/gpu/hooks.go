package gpu

import "errors"

// Hook errors.
var (
	// ErrHookBindMissing is returned when a hook binds a texture name
	// nothing has saved.
	ErrHookBindMissing = errors.New("gpu: hook binds unsaved texture")
)

// Hook points, in pipeline order. A hook registered on a point runs
// when the pass assembler reaches that stage.
const (
	HookLuma       = "LUMA"
	HookChroma     = "CHROMA"
	HookRGB        = "RGB"
	HookNative     = "NATIVE"
	HookMainPre    = "MAINPRE"
	HookMain       = "MAIN"
	HookLinear     = "LINEAR"
	HookSigmoid    = "SIGMOID"
	HookPreKernel  = "PREKERNEL"
	HookPostKernel = "POSTKERNEL"
	HookScaled     = "SCALED"
	HookOutput     = "OUTPUT"
)

// knownHookPoints lists every valid hook point.
var knownHookPoints = []string{
	HookLuma, HookChroma, HookRGB, HookNative, HookMainPre, HookMain,
	HookLinear, HookSigmoid, HookPreKernel, HookPostKernel,
	HookScaled, HookOutput,
}

// ValidHookPoint reports whether name is a known hook point.
func ValidHookPoint(name string) bool {
	for _, p := range knownHookPoints {
		if p == name {
			return true
		}
	}
	return false
}

// HookDesc declares where a hook runs and what it touches.
type HookDesc struct {
	// Points are the hook points the hook runs at.
	Points []string

	// Binds are additional saved textures the hook samples beyond
	// the hooked texture itself.
	Binds []string

	// Save stores the hook's output under this name instead of
	// replacing the hooked texture. Empty means replace.
	Save string

	// Desc is a human-readable description for logs and pass stats.
	Desc string
}

// HookedTex is the texture flowing through a hook point plus its
// output transform. Hooks that resize report the scale through the
// transform explicitly rather than by an implicit size change.
type HookedTex struct {
	// Name is the hook point the texture currently represents.
	Name string

	// Tex is the image state.
	Tex ImgTex
}

// PassHook transforms the hooked texture at its declared points.
type PassHook interface {
	// Hook declares the hook's points, bindings and output.
	Hook() HookDesc

	// Apply runs the hook. It may return a different texture and a
	// new transform; returning an error disables only this hook.
	Apply(pc *PassContext, tex *HookedTex) (*HookedTex, error)
}

// hookEntry tracks per-hook registry state.
type hookEntry struct {
	hook     PassHook
	disabled bool
}

// HookRegistry holds the registered hooks in execution order together
// with the pool of saved named textures.
type HookRegistry struct {
	hooks []*hookEntry
	saved map[string]ImgTex
}

// NewHookRegistry creates an empty registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{saved: make(map[string]ImgTex)}
}

// Register appends a hook. Hooks on the same point run in
// registration order.
func (r *HookRegistry) Register(h PassHook) {
	r.hooks = append(r.hooks, &hookEntry{hook: h})
}

// Len returns the number of registered hooks.
func (r *HookRegistry) Len() int { return len(r.hooks) }

// SaveTex stores a named texture for later binding.
func (r *HookRegistry) SaveTex(name string, tex ImgTex) {
	r.saved[name] = tex
}

// BindTex resolves a previously saved texture.
func (r *HookRegistry) BindTex(name string) (ImgTex, bool) {
	tex, ok := r.saved[name]
	return tex, ok
}

// ResetFrame clears per-frame saved textures. Call at the start of
// every frame; saved textures never outlive one pass graph.
func (r *HookRegistry) ResetFrame() {
	for k := range r.saved {
		delete(r.saved, k)
	}
}

// RunPoint runs all enabled hooks registered on the given point. The
// hooked texture is saved under the point name first, so hooks can
// re-bind the original. A hook that exceeds the binding budget or
// fails is disabled for the rest of the session and logged, never
// fatal.
func (r *HookRegistry) RunPoint(pc *PassContext, point string, tex *HookedTex) *HookedTex {
	tex.Name = point
	r.SaveTex(point, tex.Tex)

	for _, entry := range r.hooks {
		if entry.disabled {
			continue
		}
		desc := entry.hook.Hook()
		if !hooksPoint(desc, point) {
			continue
		}

		// The hooked texture plus every bind plus the render target
		// must fit the device binding budget.
		if 1+len(desc.Binds)+1 > pc.Limits.MaxTextureUnits {
			slogger().Warn("hook exceeds texture binding budget, disabling",
				"hook", desc.Desc, "binds", len(desc.Binds),
				"budget", pc.Limits.MaxTextureUnits)
			entry.disabled = true
			continue
		}
		if missing := r.missingBind(desc.Binds); missing != "" {
			slogger().Warn("hook binds unsaved texture, disabling",
				"hook", desc.Desc, "bind", missing)
			entry.disabled = true
			continue
		}

		out, err := entry.hook.Apply(pc, tex)
		if err != nil {
			slogger().Warn("hook failed, disabling",
				"hook", desc.Desc, "point", point, "error", err)
			entry.disabled = true
			continue
		}
		if desc.Save != "" {
			// Saved-only hooks leave the main chain untouched.
			r.SaveTex(desc.Save, out.Tex)
			continue
		}
		tex = out
		tex.Name = point
		r.SaveTex(point, tex.Tex)
	}
	return tex
}

func (r *HookRegistry) missingBind(binds []string) string {
	for _, b := range binds {
		if _, ok := r.saved[b]; !ok {
			return b
		}
	}
	return ""
}

func hooksPoint(d HookDesc, point string) bool {
	for _, p := range d.Points {
		if p == point {
			return true
		}
	}
	return false
}

// Disabled reports how many hooks are currently disabled, for
// diagnostics.
func (r *HookRegistry) Disabled() int {
	n := 0
	for _, e := range r.hooks {
		if e.disabled {
			n++
		}
	}
	return n
}
