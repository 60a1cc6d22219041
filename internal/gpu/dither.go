package gpu

import "math"

// DitherMode selects the dithering matrix type.
type DitherMode uint8

const (
	// DitherNone disables dithering.
	DitherNone DitherMode = iota

	// DitherFruit uses a precomputed blue-noise matrix.
	DitherFruit

	// DitherOrdered uses a classic bayer matrix.
	DitherOrdered
)

// String returns the mode name.
func (m DitherMode) String() string {
	switch m {
	case DitherNone:
		return "no"
	case DitherFruit:
		return "fruit"
	case DitherOrdered:
		return "ordered"
	default:
		return "unknown"
	}
}

// DitherConfig tunes the dither pass.
type DitherConfig struct {
	// Mode selects the matrix type.
	Mode DitherMode

	// SizeBits is the log2 matrix edge length. Fruit uses 6 (64x64)
	// by default, ordered 4 (16x16).
	SizeBits int

	// Depth overrides the target bit depth; 0 derives it from the
	// framebuffer.
	Depth int

	// Temporal rotates the matrix coordinates every frame to spread
	// the pattern over time.
	Temporal bool
}

// DefaultDitherConfig returns fruit dithering at 64x64.
func DefaultDitherConfig() DitherConfig {
	return DitherConfig{Mode: DitherFruit, SizeBits: 6, Temporal: true}
}

// DitherMatrix is a normalized threshold matrix plus the state needed
// to rotate it over time.
type DitherMatrix struct {
	// Size is the edge length.
	Size int

	// Data holds Size*Size thresholds in [0,1).
	Data []float32

	counter int
}

// BayerMatrix builds an ordered dither matrix of edge length
// 1<<sizeBits, normalized to [0,1).
func BayerMatrix(sizeBits int) *DitherMatrix {
	size := 1 << uint(sizeBits)
	m := make([]int, size*size)
	for sz := 1; sz < size; sz *= 2 {
		offsets := [4]int{sz * size, sz, sz * (size + 1), 0}
		for i, off := range offsets {
			for y := 0; y < sz*size; y += size {
				for x := 0; x < sz; x++ {
					m[x+y+off] = m[x+y]*4 + (3 - i)
				}
			}
		}
	}
	data := make([]float32, size*size)
	for i, v := range m {
		data[i] = float32(v) / float32(size*size)
	}
	return &DitherMatrix{Size: size, Data: data}
}

// FruitMatrix builds a blue-noise threshold matrix of edge length
// 1<<sizeBits. Ranks are assigned greedily to the cell with the least
// accumulated gaussian energy from already-ranked cells, measured on
// the torus, which pushes neighboring ranks far apart.
func FruitMatrix(sizeBits int) *DitherMatrix {
	size := 1 << uint(sizeBits)
	n := size * size

	energy := make([]float64, n)
	rank := make([]int, n)
	for i := range rank {
		rank[i] = -1
	}

	// Splat radius and falloff tuned so the energy field stays
	// discriminating across the whole fill.
	radius := size / 4
	if radius < 2 {
		radius = 2
	}
	sigma := float64(radius) / 2

	splat := func(cx, cy int) {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				x := (cx + dx + size) & (size - 1)
				y := (cy + dy + size) & (size - 1)
				d2 := float64(dx*dx + dy*dy)
				energy[y*size+x] += math.Exp(-d2 / (2 * sigma * sigma))
			}
		}
	}

	// Seed deterministically off-center so symmetric ties do not
	// stack along the diagonal.
	seed := (size/3)*size + size/7
	for r := 0; r < n; r++ {
		best := -1
		bestE := math.Inf(1)
		for i := 0; i < n; i++ {
			if rank[i] >= 0 {
				continue
			}
			e := energy[i]
			if e < bestE {
				bestE = e
				best = i
			}
		}
		if r == 0 {
			best = seed
		}
		rank[best] = r
		splat(best%size, best/size)
	}

	data := make([]float32, n)
	for i, r := range rank {
		data[i] = float32(r) / float32(n)
	}
	return &DitherMatrix{Size: size, Data: data}
}

// NewDitherMatrix builds the matrix for the configuration, or nil
// when dithering is off.
func NewDitherMatrix(cfg DitherConfig) *DitherMatrix {
	bits := cfg.SizeBits
	switch cfg.Mode {
	case DitherFruit:
		if bits <= 0 {
			bits = 6
		}
		return FruitMatrix(bits)
	case DitherOrdered:
		if bits <= 0 {
			bits = 4
		}
		return BayerMatrix(bits)
	default:
		return nil
	}
}

// Threshold returns the matrix value at (x, y), wrapped.
func (d *DitherMatrix) Threshold(x, y int) float32 {
	mask := d.Size - 1
	return d.Data[(y&mask)*d.Size+(x&mask)]
}

// Rotation returns the coordinate swizzle for the current frame and
// advances the temporal counter. The four orientations cycle so the
// pattern decorrelates frame to frame without re-uploading the LUT.
func (d *DitherMatrix) Rotation(temporal bool) (flipX, flipY, transpose bool) {
	if !temporal {
		return false, false, false
	}
	c := d.counter
	d.counter = (d.counter + 1) & 3
	return c&1 != 0, c&2 != 0, c == 1 || c == 2
}

// EffectiveDepth picks the dither target depth: the configured
// override, else the framebuffer depth, floored at 8 when unknown.
func EffectiveDepth(cfg DitherConfig, fbDepth int) int {
	if cfg.Depth > 0 {
		return cfg.Depth
	}
	if fbDepth > 0 {
		return fbDepth
	}
	return 8
}

// Apply quantizes one normalized sample to the target depth using the
// matrix threshold at (x, y). CPU reference for the shader.
func (d *DitherMatrix) Apply(v float64, x, y, depth int) float64 {
	levels := float64(int(1)<<uint(depth)) - 1
	scaled := v*levels + float64(d.Threshold(x, y))
	return math.Floor(scaled) / levels
}
