package gpu

import "math"

// NumSurfaces is the size of the interpolation surface ring.
const NumSurfaces = 10

// interpolationThreshold snaps the blend weight to an endpoint when
// the frame boundary lands almost exactly on a vsync, preventing
// oscillation between near-identical blends at exact-multiple rates.
const interpolationThreshold = 0.0001

// Surface is one cached upscaled frame in the interpolation ring.
type Surface struct {
	// ID is the frame identity the cached render belongs to.
	ID uint64

	// PTS is the frame's presentation timestamp.
	PTS float64

	// Tex is the cached full-pipeline upscale output.
	Tex *Texture

	// Valid marks the slot as holding a usable render.
	Valid bool
}

// SurfaceRing caches upscaled frames for temporal interpolation. Each
// frame is rendered through the full upscale pipeline once and then
// blended from cache; slots recycle oldest-first. Mutated only by the
// renderer and invalidated wholesale on seek, still frames and format
// changes.
type SurfaceRing struct {
	surfaces [NumSurfaces]Surface
	now      int // slot holding the frame currently on screen
	end      int // one past the newest rendered slot
	pool     *Pool
}

// NewSurfaceRing creates a ring drawing its FBOs from the pool.
func NewSurfaceRing(pool *Pool) *SurfaceRing {
	return &SurfaceRing{pool: pool}
}

// wrap maps an arbitrary index onto the ring.
func (r *SurfaceRing) wrap(i int) int {
	return ((i % NumSurfaces) + NumSurfaces) % NumSurfaces
}

// Lookup returns the slot caching the given frame id, or nil.
func (r *SurfaceRing) Lookup(id uint64) *Surface {
	for i := range r.surfaces {
		if r.surfaces[i].Valid && r.surfaces[i].ID == id {
			return &r.surfaces[i]
		}
	}
	return nil
}

// Now returns the slot for the frame currently on screen, or nil.
func (r *SurfaceRing) Now() *Surface {
	s := &r.surfaces[r.now]
	if !s.Valid {
		return nil
	}
	return s
}

// Advance moves the on-screen pointer to the slot caching id.
func (r *SurfaceRing) Advance(id uint64) {
	for i := range r.surfaces {
		if r.surfaces[i].Valid && r.surfaces[i].ID == id {
			r.now = i
			return
		}
	}
}

// NextSlot returns the slot the next render should go to, recycling
// its texture back to the pool first.
func (r *SurfaceRing) NextSlot() *Surface {
	s := &r.surfaces[r.wrap(r.end)]
	if s.Tex != nil {
		r.pool.PutFBO(s.Tex)
		s.Tex = nil
	}
	s.Valid = false
	return s
}

// Store records a finished render into the next slot.
func (r *SurfaceRing) Store(id uint64, pts float64, tex *Texture) *Surface {
	s := r.NextSlot()
	s.ID = id
	s.PTS = pts
	s.Tex = tex
	s.Valid = true
	r.end = r.wrap(r.end + 1)
	return s
}

// Invalidate drops every cached surface, returning textures to the
// pool. Called on seek, still-frame transitions and format changes.
func (r *SurfaceRing) Invalidate() {
	for i := range r.surfaces {
		s := &r.surfaces[i]
		if s.Tex != nil {
			r.pool.PutFBO(s.Tex)
		}
		r.surfaces[i] = Surface{}
	}
	r.now = 0
	r.end = 0
}

// BlendWeight derives the interpolation mix between the current and
// next surface from the scheduler's vsync offset. Values within the
// threshold of an endpoint snap to it.
func BlendWeight(vsyncOffset, idealFrameDuration float64) float64 {
	if idealFrameDuration <= 0 {
		return 0
	}
	mix := vsyncOffset / idealFrameDuration
	mix = math.Min(math.Max(mix, 0), 1)
	if mix < interpolationThreshold {
		return 0
	}
	if mix > 1-interpolationThreshold {
		return 1
	}
	return mix
}
