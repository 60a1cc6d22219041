package gpu

import (
	"errors"
	"testing"
)

func TestPoolReusesFBO(t *testing.T) {
	p := NewPool(testDevice(), MinBudgetMB)
	defer p.Close()

	a, err := p.GetFBO(64, 64, FormatRGBA8)
	if err != nil {
		t.Fatalf("GetFBO: %v", err)
	}
	p.PutFBO(a)

	b, err := p.GetFBO(64, 64, FormatRGBA8)
	if err != nil {
		t.Fatalf("GetFBO: %v", err)
	}
	if a != b {
		t.Error("matching free FBO was not reused")
	}

	// A different size allocates fresh.
	c, err := p.GetFBO(32, 32, FormatRGBA8)
	if err != nil {
		t.Fatalf("GetFBO: %v", err)
	}
	if c == a {
		t.Error("mismatched FBO was reused")
	}
}

func TestPoolBudgetRejectsOversized(t *testing.T) {
	p := NewPool(testDevice(), MinBudgetMB) // 16 MB
	defer p.Close()

	// 4096x4096 RGBA8 needs 64 MB.
	_, err := p.GetFBO(4096, 4096, FormatRGBA8)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("oversized alloc err = %v, want ErrBudgetExceeded", err)
	}
}

func TestPoolEvictsFreeLRU(t *testing.T) {
	p := NewPool(testDevice(), MinBudgetMB) // 16 MB
	defer p.Close()

	// Three 4 MB targets fill 12 of 16 MB; all returned free.
	var texs []*Texture
	for i := 0; i < 3; i++ {
		tex, err := p.GetFBO(1024, 1024, FormatRGBA8)
		if err != nil {
			t.Fatalf("GetFBO %d: %v", i, err)
		}
		texs = append(texs, tex)
	}
	for _, tex := range texs {
		p.PutFBO(tex)
	}

	// An 8 MB request must evict the least recently returned FBO.
	if _, err := p.GetFBO(2048, 1024, FormatRGBA8); err != nil {
		t.Fatalf("alloc requiring eviction failed: %v", err)
	}
	stats := p.Stats()
	if stats.EvictionCount == 0 {
		t.Error("no eviction recorded")
	}
	if !texs[0].Released() {
		t.Error("oldest returned FBO was not the one evicted")
	}
}

func TestPoolNeverEvictsInUse(t *testing.T) {
	p := NewPool(testDevice(), MinBudgetMB)
	defer p.Close()

	// 12 MB held in use, nothing free.
	for i := 0; i < 3; i++ {
		if _, err := p.GetFBO(1024, 1024, FormatRGBA8); err != nil {
			t.Fatalf("GetFBO %d: %v", i, err)
		}
	}

	// 8 MB more cannot fit and has nothing to evict.
	_, err := p.GetFBO(2048, 1024, FormatRGBA8)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("err = %v, want ErrBudgetExceeded", err)
	}
	if got := p.Stats().EvictionCount; got != 0 {
		t.Errorf("EvictionCount = %d, in-use textures were evicted", got)
	}
}

func TestPoolInvalidate(t *testing.T) {
	p := NewPool(testDevice(), MinBudgetMB)
	defer p.Close()

	held, _ := p.GetFBO(64, 64, FormatRGBA8)
	freed, _ := p.GetFBO(128, 128, FormatRGBA8)
	p.PutFBO(freed)

	p.Invalidate()

	if held.Released() {
		t.Error("Invalidate released an in-use texture")
	}
	if !freed.Released() {
		t.Error("Invalidate kept a free FBO alive")
	}
	if got := p.Stats().FreeCount; got != 0 {
		t.Errorf("FreeCount after Invalidate = %d, want 0", got)
	}
}

func TestPoolTextureCloseUnregisters(t *testing.T) {
	p := NewPool(testDevice(), MinBudgetMB)
	defer p.Close()

	tex, _ := p.GetFBO(64, 64, FormatRGBA8)
	before := p.Stats().UsedBytes
	tex.Close()
	after := p.Stats().UsedBytes
	if after != before-tex.SizeBytes() {
		t.Errorf("UsedBytes = %d after close, want %d", after, before-tex.SizeBytes())
	}
	if p.Stats().TextureCount != 0 {
		t.Errorf("TextureCount = %d, want 0", p.Stats().TextureCount)
	}
}

func TestPoolClosed(t *testing.T) {
	p := NewPool(testDevice(), MinBudgetMB)
	tex, _ := p.GetFBO(64, 64, FormatRGBA8)
	p.Close()

	if !tex.Released() {
		t.Error("Close left a texture alive")
	}
	if _, err := p.GetFBO(64, 64, FormatRGBA8); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("GetFBO after close err = %v, want ErrPoolClosed", err)
	}
	// Close is idempotent.
	p.Close()
}
