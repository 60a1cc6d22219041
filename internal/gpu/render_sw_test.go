package gpu

import (
	"math"
	"testing"
)

func testPool(t *testing.T) *Pool {
	t.Helper()
	pool := NewPool(testDevice(), DefaultBudgetMB)
	t.Cleanup(pool.Close)
	return pool
}

func allocTex(t *testing.T, pool *Pool, w, h int, f Format) *Texture {
	t.Helper()
	tex, err := pool.Alloc(TextureConfig{Width: w, Height: h, Format: f})
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	return tex
}

func TestHalfRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 1, 0.5, 0.25, 120.0 / 255, -0.75, 2, 1000, 65504} {
		got := halfToFloat(floatToHalf(v))
		tol := math.Abs(float64(v)) * 1e-3
		if tol < 1e-7 {
			tol = 1e-7
		}
		if math.Abs(float64(got-v)) > tol {
			t.Errorf("half(%g) round-trips to %g", v, got)
		}
	}
	if got := halfToFloat(floatToHalf(1e6)); !math.IsInf(float64(got), 1) {
		t.Errorf("overflow encodes to %g, want +Inf", got)
	}
}

func TestSampleBilinearMidpoint(t *testing.T) {
	pool := testPool(t)
	tex := allocTex(t, pool, 2, 1, FormatR8)
	if err := tex.Upload([]byte{0, 200}, 2); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got := sampleBilinear(tex, 0.5, 0)
	want := float32(100.0 / 255)
	if math.Abs(float64(got[0]-want)) > 1e-6 {
		t.Errorf("midpoint sample = %g, want %g", got[0], want)
	}

	// Edges clamp instead of wrapping.
	if got := sampleBilinear(tex, -3, 0); got[0] != 0 {
		t.Errorf("left clamp = %g, want 0", got[0])
	}
	if got := sampleBilinear(tex, 5, 0); math.Abs(float64(got[0]-200.0/255)) > 1e-6 {
		t.Errorf("right clamp = %g, want %g", got[0], 200.0/255)
	}
}

func TestConvertLumaOnlyIsGray(t *testing.T) {
	pool := testPool(t)
	luma := allocTex(t, pool, 4, 4, FormatR8)
	data := make([]byte, 16)
	for i := range data {
		data[i] = 128
	}
	if err := luma.Upload(data, 4); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	dst := allocTex(t, pool, 4, 4, FormatRGBA16F)

	params := CSPParams{Space: CSBT709, Levels: LevelsLimited, BitDepth: 8}
	planes := []ImgTex{{
		Role: RoleLuma, Tex: luma, W: 4, H: 4,
		Components: 1, Multiplier: 1, Transform: Identity(),
	}}
	swConvert(dst, params, planes, 4, 4)

	// Missing chroma defaults to the neutral code value, so the output
	// is achromatic with the luma expanded to full range.
	v := texelAt(dst, 2, 2)
	want := (128.0 - 16) * 255 / 219 / 255
	for c := 0; c < 3; c++ {
		if math.Abs(float64(v[c])-want) > 1e-3 {
			t.Errorf("channel %d = %g, want %g", c, v[c], want)
		}
	}
	if math.Abs(float64(v[0]-v[1])) > 1e-4 || math.Abs(float64(v[1]-v[2])) > 1e-4 {
		t.Errorf("gray input converted to chromatic output %v", v)
	}
}

func TestColorManageToneMapsPeak(t *testing.T) {
	pool := testPool(t)
	src := allocTex(t, pool, 1, 1, FormatRGBA16F)
	setTexelAt(src, 0, 0, [4]float32{2, 1, 0.5, 1})
	dst := allocTex(t, pool, 1, 1, FormatRGBA16)

	cm := colorManage{
		linear:      true,
		tone:        true,
		curve:       ToneReinhard,
		srcPeak:     4,
		targetPeak:  1,
		srcTransfer: TransferPQ,
		outTransfer: TransferGamma22,
	}
	swColorManage(dst, ImgTex{Tex: src, W: 1, H: 1, Components: 3, Multiplier: 1, Transform: Identity()}, cm)

	// The scale derives from the per-pixel maximum, so hue ratios
	// survive while brightness compresses.
	scale := ToneMap(ToneReinhard, 2, 4, 0) / 2
	got := texelAt(dst, 0, 0)
	for c, lin := range []float64{2, 1, 0.5} {
		want := Delinearize(TransferGamma22, lin*scale)
		if math.Abs(float64(got[c])-want) > 2e-3 {
			t.Errorf("channel %d = %g, want %g", c, got[c], want)
		}
	}
}

func TestBlendWeights(t *testing.T) {
	pool := testPool(t)
	a := allocTex(t, pool, 1, 1, FormatRGBA16F)
	b := allocTex(t, pool, 1, 1, FormatRGBA16F)
	dst := allocTex(t, pool, 1, 1, FormatRGBA16F)
	setTexelAt(a, 0, 0, [4]float32{1, 0, 0.25, 1})
	setTexelAt(b, 0, 0, [4]float32{0, 1, 0.75, 1})

	swBlend(dst, a, b, 0.25)
	got := texelAt(dst, 0, 0)
	want := [4]float32{0.75, 0.25, 0.375, 1}
	for c := 0; c < 4; c++ {
		if math.Abs(float64(got[c]-want[c])) > 1e-3 {
			t.Errorf("channel %d = %g, want %g", c, got[c], want[c])
		}
	}
}
