package gpu

import "fmt"

// PassStat records one executed render pass for diagnostics. Stats
// are advisory and never feed back into scheduling.
type PassStat struct {
	// Name describes the pass.
	Name string

	// GPUTimeNs is the measured GPU time, 0 when timers are
	// unavailable.
	GPUTimeNs uint64
}

// String formats the stat for the stats overlay.
func (s PassStat) String() string {
	return fmt.Sprintf("%s: %.3fms", s.Name, float64(s.GPUTimeNs)/1e6)
}

// PassContext is the per-frame assembly state threaded through the
// render graph: device limits, the texture pool, the hook registry
// and the recorded pass list.
type PassContext struct {
	Dev    *Device
	Pool   *Pool
	Limits Limits
	Hooks  *HookRegistry

	stats  []PassStat
	broken bool

	// fbos are the intermediates drawn this frame. Held until the
	// frame completes because a later pass may re-read any earlier
	// texture.
	fbos []*Texture
}

// NewPassContext starts a frame's assembly.
func NewPassContext(dev *Device, pool *Pool, hooks *HookRegistry) *PassContext {
	return &PassContext{
		Dev:    dev,
		Pool:   pool,
		Limits: dev.Limits(),
		Hooks:  hooks,
	}
}

// RecordPass appends a pass record.
func (pc *PassContext) RecordPass(name string, gpuTimeNs uint64) {
	pc.stats = append(pc.stats, PassStat{Name: name, GPUTimeNs: gpuTimeNs})
}

// Dispatch executes one named pass. With a live device the pass shader
// is compiled into a wgpu module (plus a compute pipeline for compute
// kinds) and the pass is submitted to the queue; headless the CPU
// kernel runs instead. The pass is recorded either way.
func (pc *PassContext) Dispatch(name string, kind ShaderKind, cpu func()) {
	if pc.Dev.Ready() {
		if err := pc.submit(name, kind); err != nil {
			slogger().Error("pass submit failed",
				"pass", name, "shader", kind, "error", err)
			pc.MarkBroken()
		}
	} else if cpu != nil {
		cpu()
	}
	pc.RecordPass(name, 0)
}

func (pc *PassContext) submit(name string, kind ShaderKind) error {
	if _, err := pc.Dev.shaderModule(kind); err != nil {
		return err
	}
	if kind.compute() {
		if _, err := pc.Dev.computePipeline(kind); err != nil {
			return err
		}
	}
	return pc.Dev.Submit(name)
}

// Stats returns the passes recorded so far.
func (pc *PassContext) Stats() []PassStat { return pc.stats }

// MarkBroken flags the frame as failed; the compositor substitutes a
// diagnostic solid color instead of crashing.
func (pc *PassContext) MarkBroken() { pc.broken = true }

// Broken reports whether assembly failed.
func (pc *PassContext) Broken() bool { return pc.broken }

// GetFBO draws an intermediate render target from the pool. Failure
// marks the frame broken and returns nil; callers skip their pass.
func (pc *PassContext) GetFBO(w, h int, format Format) *Texture {
	tex, err := pc.Pool.GetFBO(w, h, format)
	if err != nil {
		slogger().Error("intermediate FBO allocation failed",
			"w", w, "h", h, "format", format, "error", err)
		pc.MarkBroken()
		return nil
	}
	pc.fbos = append(pc.fbos, tex)
	return tex
}

// Track registers an FBO obtained outside GetFBO so it participates
// in end-of-frame release.
func (pc *PassContext) Track(tex *Texture) {
	if tex != nil {
		pc.fbos = append(pc.fbos, tex)
	}
}

// ReleaseIntermediates returns this frame's FBOs to the pool, keeping
// any listed survivors (the final output, cached surfaces).
func (pc *PassContext) ReleaseIntermediates(keep ...*Texture) {
	for _, tex := range pc.fbos {
		kept := false
		for _, k := range keep {
			if tex == k {
				kept = true
				break
			}
		}
		if !kept {
			pc.Pool.PutFBO(tex)
		}
	}
	pc.fbos = nil
}
