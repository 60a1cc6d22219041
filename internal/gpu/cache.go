package gpu

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
)

// Pool errors.
var (
	// ErrBudgetExceeded is returned when allocation would exceed the
	// texture memory budget even after eviction.
	ErrBudgetExceeded = errors.New("gpu: texture memory budget exceeded")

	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = errors.New("gpu: texture pool closed")
)

// Default pool limits.
const (
	// DefaultBudgetMB is the default texture memory budget.
	DefaultBudgetMB = 256

	// MinBudgetMB is the smallest allowed budget.
	MinBudgetMB = 16
)

// PoolStats contains texture pool usage statistics.
type PoolStats struct {
	// TotalBytes is the memory budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently allocated memory in bytes.
	UsedBytes uint64

	// TextureCount is the number of live textures.
	TextureCount int

	// FreeCount is the number of cached FBOs awaiting reuse.
	FreeCount int

	// EvictionCount is the total number of evicted FBOs.
	EvictionCount uint64
}

// String returns a human-readable summary.
func (s PoolStats) String() string {
	return fmt.Sprintf("Pool[%d/%d MB, %d textures, %d free, %d evictions]",
		s.UsedBytes/(1024*1024), s.TotalBytes/(1024*1024),
		s.TextureCount, s.FreeCount, s.EvictionCount)
}

type fboKey struct {
	w, h   int
	format Format
}

type poolEntry struct {
	tex     *Texture
	key     fboKey
	free    bool
	element *list.Element // position in the free LRU, when free
}

// Pool owns the renderer's texture memory: per-plane source textures
// and the intermediate FBOs (merge, scale, indirect, blend). Released
// FBOs are kept for reuse keyed by size and format, and evicted least
// recently used when the budget is exceeded.
//
// Pool is safe for concurrent use, though the renderer drives it from
// the single playback thread.
type Pool struct {
	mu sync.Mutex

	dev *Device

	budgetBytes uint64
	usedBytes   uint64

	entries map[*Texture]*poolEntry
	free    map[fboKey][]*Texture
	freeLRU *list.List // front = most recently returned

	evictions uint64
	closed    bool
}

// NewPool creates a texture pool on the given device.
func NewPool(dev *Device, budgetMB int) *Pool {
	if budgetMB < MinBudgetMB {
		budgetMB = DefaultBudgetMB
	}
	return &Pool{
		dev:         dev,
		budgetBytes: uint64(budgetMB) * 1024 * 1024,
		entries:     make(map[*Texture]*poolEntry),
		free:        make(map[fboKey][]*Texture),
		freeLRU:     list.New(),
	}
}

// Alloc creates a tracked texture that is not subject to FBO reuse,
// e.g. a per-plane source texture or a LUT.
func (p *Pool) Alloc(config TextureConfig) (*Texture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	return p.allocLocked(config)
}

// GetFBO returns a render target of the given size, reusing a cached
// one when available.
func (p *Pool) GetFBO(w, h int, format Format) (*Texture, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	key := fboKey{w, h, format}
	if cached := p.free[key]; len(cached) > 0 {
		tex := cached[len(cached)-1]
		p.free[key] = cached[:len(cached)-1]
		entry := p.entries[tex]
		p.freeLRU.Remove(entry.element)
		entry.element = nil
		entry.free = false
		return tex, nil
	}

	return p.allocLocked(TextureConfig{
		Width: w, Height: h, Format: format,
		Label:  fmt.Sprintf("fbo-%dx%d-%s", w, h, format),
		Render: true,
	})
}

// PutFBO returns a render target to the pool for reuse.
func (p *Pool) PutFBO(tex *Texture) {
	if tex == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		tex.Close()
		return
	}
	entry, ok := p.entries[tex]
	if !ok || entry.free {
		return
	}
	entry.free = true
	entry.element = p.freeLRU.PushFront(entry)
	p.free[entry.key] = append(p.free[entry.key], tex)
}

// Free releases a texture immediately, returning its memory.
func (p *Pool) Free(tex *Texture) {
	if tex == nil {
		return
	}
	p.mu.Lock()
	entry, ok := p.entries[tex]
	if ok {
		p.removeLocked(entry)
	}
	p.mu.Unlock()
	tex.Close()
}

// Stats returns current usage statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		TotalBytes:    p.budgetBytes,
		UsedBytes:     p.usedBytes,
		TextureCount:  len(p.entries),
		FreeCount:     p.freeLRU.Len(),
		EvictionCount: p.evictions,
	}
}

// Invalidate drops all cached free FBOs, e.g. on seek or format
// change. Textures currently in use are unaffected.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	var victims []*Texture
	for e := p.freeLRU.Front(); e != nil; e = e.Next() {
		victims = append(victims, e.Value.(*poolEntry).tex)
	}
	for _, tex := range victims {
		if entry, ok := p.entries[tex]; ok {
			p.removeLocked(entry)
		}
	}
	p.mu.Unlock()
	for _, tex := range victims {
		tex.Close()
	}
}

// Close releases all textures and shuts the pool down.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	victims := make([]*Texture, 0, len(p.entries))
	for tex, entry := range p.entries {
		entry.tex.pool = nil
		victims = append(victims, tex)
	}
	p.entries = nil
	p.free = nil
	p.freeLRU = nil
	p.usedBytes = 0
	p.closed = true
	p.mu.Unlock()
	for _, tex := range victims {
		tex.Close()
	}
}

func (p *Pool) allocLocked(config TextureConfig) (*Texture, error) {
	required := uint64(config.Width) * uint64(config.Height) *
		uint64(config.Format.BytesPerPixel())
	if required > p.budgetBytes {
		return nil, fmt.Errorf("%w: texture needs %d MB of a %d MB budget",
			ErrBudgetExceeded, required/(1024*1024), p.budgetBytes/(1024*1024))
	}
	if err := p.evictLocked(required); err != nil {
		return nil, err
	}
	tex, err := p.dev.CreateTexture(config)
	if err != nil {
		return nil, err
	}
	entry := &poolEntry{
		tex: tex,
		key: fboKey{config.Width, config.Height, config.Format},
	}
	p.entries[tex] = entry
	p.usedBytes += tex.sizeBytes
	tex.pool = p
	return tex, nil
}

// evictLocked drops least recently returned free FBOs until the
// request fits. In-use textures are never evicted.
func (p *Pool) evictLocked(required uint64) error {
	for p.usedBytes+required > p.budgetBytes && p.freeLRU.Len() > 0 {
		elem := p.freeLRU.Back()
		entry := elem.Value.(*poolEntry)
		tex := entry.tex
		p.removeLocked(entry)
		tex.pool = nil
		tex.Close()
		p.evictions++
	}
	if p.usedBytes+required > p.budgetBytes {
		return fmt.Errorf("%w: need %d bytes, %d in use",
			ErrBudgetExceeded, required, p.usedBytes)
	}
	return nil
}

// removeLocked detaches an entry from all tracking structures.
func (p *Pool) removeLocked(entry *poolEntry) {
	if entry.element != nil {
		p.freeLRU.Remove(entry.element)
		entry.element = nil
	}
	if entry.free {
		cached := p.free[entry.key]
		for i, t := range cached {
			if t == entry.tex {
				p.free[entry.key] = append(cached[:i], cached[i+1:]...)
				break
			}
		}
		entry.free = false
	}
	delete(p.entries, entry.tex)
	p.usedBytes -= entry.tex.sizeBytes
	entry.tex.pool = nil
}

// unregister is called from Texture.Close for pool-tracked textures.
func (p *Pool) unregister(tex *Texture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if entry, ok := p.entries[tex]; ok {
		p.removeLocked(entry)
	}
}
