package gpu

import (
	"errors"
	"testing"
)

// stubHook counts applications and can be tuned to fail or bind.
type stubHook struct {
	desc    HookDesc
	applied int
	fail    error
}

func (h *stubHook) Hook() HookDesc { return h.desc }

func (h *stubHook) Apply(pc *PassContext, tex *HookedTex) (*HookedTex, error) {
	h.applied++
	if h.fail != nil {
		return nil, h.fail
	}
	pc.RecordPass(h.desc.Desc, 0)
	return tex, nil
}

func hookFixture(t *testing.T, limits Limits) (*PassContext, *HookRegistry) {
	t.Helper()
	dev := NewDevice(NullDeviceHandle{}, limits)
	pool := NewPool(dev, DefaultBudgetMB)
	t.Cleanup(pool.Close)
	hooks := NewHookRegistry()
	return NewPassContext(dev, pool, hooks), hooks
}

func mainTex() *HookedTex {
	return &HookedTex{Tex: ImgTex{Role: RoleRGB, W: 64, H: 64, Components: 3, Multiplier: 1, Transform: Identity()}}
}

func TestRunPointRunsMatchingHooks(t *testing.T) {
	pc, hooks := hookFixture(t, DefaultLimits())

	onMain := &stubHook{desc: HookDesc{Points: []string{HookMain}, Desc: "on main"}}
	onLuma := &stubHook{desc: HookDesc{Points: []string{HookLuma}, Desc: "on luma"}}
	hooks.Register(onMain)
	hooks.Register(onLuma)

	hooks.RunPoint(pc, HookMain, mainTex())

	if onMain.applied != 1 {
		t.Errorf("MAIN hook applied %d times, want 1", onMain.applied)
	}
	if onLuma.applied != 0 {
		t.Errorf("LUMA hook applied %d times at MAIN, want 0", onLuma.applied)
	}
}

func TestHookBudgetDisablesNotCrashes(t *testing.T) {
	// Budget of 3 units: hooked texture + binds + render target.
	pc, hooks := hookFixture(t, Limits{MaxTextureUnits: 3})

	greedy := &stubHook{desc: HookDesc{
		Points: []string{HookMain},
		Binds:  []string{"A", "B"}, // 1 + 2 + 1 = 4 > 3
		Desc:   "greedy",
	}}
	hooks.Register(greedy)
	hooks.SaveTex("A", ImgTex{})
	hooks.SaveTex("B", ImgTex{})

	hooks.RunPoint(pc, HookMain, mainTex())

	if greedy.applied != 0 {
		t.Error("over-budget hook was applied")
	}
	if hooks.Disabled() != 1 {
		t.Errorf("Disabled = %d, want 1", hooks.Disabled())
	}
	if pc.Broken() {
		t.Error("over-budget hook broke the frame; must only disable")
	}

	// Stays disabled on later frames.
	hooks.RunPoint(pc, HookMain, mainTex())
	if greedy.applied != 0 {
		t.Error("disabled hook ran again")
	}
}

func TestHookMissingBindDisables(t *testing.T) {
	pc, hooks := hookFixture(t, DefaultLimits())

	h := &stubHook{desc: HookDesc{
		Points: []string{HookMain},
		Binds:  []string{"NEVER_SAVED"},
		Desc:   "dangling bind",
	}}
	hooks.Register(h)

	hooks.RunPoint(pc, HookMain, mainTex())

	if h.applied != 0 {
		t.Error("hook with missing bind was applied")
	}
	if hooks.Disabled() != 1 {
		t.Errorf("Disabled = %d, want 1", hooks.Disabled())
	}
}

func TestHookErrorDisables(t *testing.T) {
	pc, hooks := hookFixture(t, DefaultLimits())

	h := &stubHook{
		desc: HookDesc{Points: []string{HookMain}, Desc: "failing"},
		fail: errors.New("shader exploded"),
	}
	hooks.Register(h)

	out := hooks.RunPoint(pc, HookMain, mainTex())
	if out == nil {
		t.Fatal("RunPoint returned nil after hook failure")
	}
	if hooks.Disabled() != 1 {
		t.Errorf("Disabled = %d, want 1", hooks.Disabled())
	}

	hooks.RunPoint(pc, HookMain, mainTex())
	if h.applied != 1 {
		t.Errorf("failed hook applied %d times, want 1", h.applied)
	}
}

func TestHookSaveKeepsChain(t *testing.T) {
	pc, hooks := hookFixture(t, DefaultLimits())

	saver := &stubHook{desc: HookDesc{
		Points: []string{HookMain},
		Save:   "SIDE",
		Desc:   "saver",
	}}
	hooks.Register(saver)

	in := mainTex()
	out := hooks.RunPoint(pc, HookMain, in)

	if out.Tex != in.Tex {
		t.Error("SAVE hook replaced the main chain")
	}
	if _, ok := hooks.BindTex("SIDE"); !ok {
		t.Error("SAVE output not bindable")
	}
}

func TestRunPointSavesPointName(t *testing.T) {
	pc, hooks := hookFixture(t, DefaultLimits())

	hooks.RunPoint(pc, HookLuma, mainTex())
	if _, ok := hooks.BindTex(HookLuma); !ok {
		t.Error("hooked texture not saved under its point name")
	}

	hooks.ResetFrame()
	if _, ok := hooks.BindTex(HookLuma); ok {
		t.Error("saved texture survived ResetFrame")
	}
}

func TestValidHookPoint(t *testing.T) {
	for _, p := range []string{HookLuma, HookChroma, HookOutput, HookPreKernel} {
		if !ValidHookPoint(p) {
			t.Errorf("ValidHookPoint(%q) = false", p)
		}
	}
	for _, p := range []string{"", "MAINE", "luma"} {
		if ValidHookPoint(p) {
			t.Errorf("ValidHookPoint(%q) = true", p)
		}
	}
}
