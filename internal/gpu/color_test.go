package gpu

import (
	"math"
	"testing"
)

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestYUVMatrixBT601Limited(t *testing.T) {
	m, off := YUVMatrix(CSPParams{
		Space:    CSBT601,
		Levels:   LevelsLimited,
		BitDepth: 8,
	})

	// Known BT.601 limited-range coefficients.
	if !approx(m[0][0], 1.16438, 1e-4) {
		t.Errorf("luma multiplier = %v, want 1.16438", m[0][0])
	}
	if !approx(m[0][2], 1.59603, 1e-4) {
		t.Errorf("R/Cr = %v, want 1.59603", m[0][2])
	}
	if !approx(m[2][1], 2.01723, 1e-4) {
		t.Errorf("B/Cb = %v, want 2.01723", m[2][1])
	}
	// Offset centers chroma on code 128, i.e. 128/255 in texel units.
	if !approx(off[0], -0.87420, 1e-4) {
		t.Errorf("R offset = %v, want -0.87420", off[0])
	}

	// Limited-range black (16, 128, 128) maps to zero exactly.
	y, u, v := 16.0/255, 128.0/255, 128.0/255
	for i := 0; i < 3; i++ {
		rgb := m[i][0]*y + m[i][1]*u + m[i][2]*v + off[i]
		if !approx(rgb, 0, 1e-9) {
			t.Errorf("black channel %d = %v, want 0", i, rgb)
		}
	}
	// Limited-range white (235, 128, 128) hits one exactly.
	y = 235.0 / 255
	for i := 0; i < 3; i++ {
		rgb := m[i][0]*y + m[i][1]*u + m[i][2]*v + off[i]
		if !approx(rgb, 1, 1e-9) {
			t.Errorf("white channel %d = %v, want 1", i, rgb)
		}
	}
}

func TestYUVMatrixFullRange(t *testing.T) {
	m, off := YUVMatrix(CSPParams{
		Space:    CSBT709,
		Levels:   LevelsFull,
		BitDepth: 8,
	})
	if !approx(m[0][0], 1, 1e-9) {
		t.Errorf("full-range luma multiplier = %v, want 1", m[0][0])
	}
	if !approx(m[0][2], 2*(1-0.2126), 1e-9) {
		t.Errorf("R/Cr = %v, want %v", m[0][2], 2*(1-0.2126))
	}
	// Full range still centers chroma on code 128, not on 0.5.
	if !approx(off[0], -128.0/255*m[0][2], 1e-9) {
		t.Errorf("R offset = %v, want %v", off[0], -128.0/255*m[0][2])
	}
}

func TestYUVMatrixHighBitDepth(t *testing.T) {
	m8, _ := YUVMatrix(CSPParams{Space: CSBT709, Levels: LevelsLimited, BitDepth: 8})
	m10, _ := YUVMatrix(CSPParams{Space: CSBT709, Levels: LevelsLimited, BitDepth: 10})

	// 10-bit limited range uses 64-940, slightly different scaling
	// than 8-bit, but close.
	if !approx(m10[0][0], m8[0][0], 1e-2) {
		t.Errorf("10-bit luma multiplier = %v, far from 8-bit %v", m10[0][0], m8[0][0])
	}
	if m10[0][0] == m8[0][0] {
		t.Error("10-bit multiplier identical to 8-bit, bit depth ignored")
	}
}

func TestYUVMatrixRGBIdentity(t *testing.T) {
	m, off := YUVMatrix(CSPParams{Space: CSRGB, Levels: LevelsFull})
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if m[i][j] != want {
				t.Errorf("m[%d][%d] = %v, want %v", i, j, m[i][j], want)
			}
		}
		if off[i] != 0 {
			t.Errorf("offset[%d] = %v, want 0", i, off[i])
		}
	}
}

func TestLinearizeRoundTrip(t *testing.T) {
	transfers := []Transfer{
		TransferBT1886, TransferSRGB, TransferLinear,
		TransferGamma22, TransferPQ, TransferHLG,
	}
	for _, tr := range transfers {
		for _, x := range []float64{0.01, 0.18, 0.5, 0.9, 1.0} {
			lin := Linearize(tr, x)
			back := Delinearize(tr, lin)
			if !approx(back, x, 1e-6) {
				t.Errorf("%d: delinearize(linearize(%v)) = %v", tr, x, back)
			}
		}
	}
}

func TestLinearizeKnownValues(t *testing.T) {
	if got := Linearize(TransferSRGB, 0.5); !approx(got, 0.21404, 1e-4) {
		t.Errorf("sRGB 0.5 = %v, want 0.21404", got)
	}
	// PQ code value 1.0 is 10000 cd/m², i.e. 10000/203 reference whites.
	if got := Linearize(TransferPQ, 1.0); !approx(got, 10000/refWhite, 1e-3) {
		t.Errorf("PQ 1.0 = %v, want %v", got, 10000/refWhite)
	}
	// HLG code value 1.0 is the 1000 cd/m² nominal peak.
	if got := Linearize(TransferHLG, 1.0); !approx(got, 1000/refWhite, 1e-3) {
		t.Errorf("HLG 1.0 = %v, want %v", got, 1000/refWhite)
	}
}

func TestIsHDR(t *testing.T) {
	if !TransferPQ.IsHDR() || !TransferHLG.IsHDR() {
		t.Error("PQ and HLG must report HDR")
	}
	if TransferSRGB.IsHDR() || TransferBT1886.IsHDR() {
		t.Error("SDR transfers must not report HDR")
	}
}

func TestSigmoidRoundTrip(t *testing.T) {
	s := DefaultSigmoid()
	for _, x := range []float64{0.05, 0.25, 0.5, 0.75, 0.95} {
		y := s.Forward(x)
		back := s.Inverse(y)
		if !approx(back, x, 1e-9) {
			t.Errorf("inverse(forward(%v)) = %v", x, back)
		}
	}
	// The normalized curve pins the endpoints.
	if got := s.Inverse(0); !approx(got, 0, 1e-9) {
		t.Errorf("inverse(0) = %v, want 0", got)
	}
	if got := s.Inverse(1); !approx(got, 1, 1e-9) {
		t.Errorf("inverse(1) = %v, want 1", got)
	}
}

func TestToneMapSDRPassthrough(t *testing.T) {
	for _, c := range []ToneCurve{ToneClip, ToneMobius, ToneReinhard, ToneHable} {
		if got := ToneMap(c, 0.5, 1.0, 0); got != 0.5 {
			t.Errorf("%s: peak 1.0 must pass through, got %v", c, got)
		}
		if got := ToneMap(c, 1.5, 1.0, 0); got != 1.0 {
			t.Errorf("%s: peak 1.0 must clip at 1, got %v", c, got)
		}
	}
}

func TestToneMapCurves(t *testing.T) {
	const peak = 10.0

	// Every curve maps the peak to (at most) 1 and preserves order.
	for _, c := range []ToneCurve{ToneMobius, ToneReinhard, ToneHable, ToneGamma, ToneLinear} {
		atPeak := ToneMap(c, peak, peak, 0)
		if atPeak > 1+1e-6 {
			t.Errorf("%s: tone(peak) = %v > 1", c, atPeak)
		}
		lo := ToneMap(c, 0.2, peak, 0)
		hi := ToneMap(c, 5.0, peak, 0)
		if lo >= hi {
			t.Errorf("%s: not monotonic: tone(0.2)=%v >= tone(5)=%v", c, lo, hi)
		}
	}

	// Mobius preserves values below the knee exactly.
	if got := ToneMap(ToneMobius, 0.25, peak, 0.3); got != 0.25 {
		t.Errorf("mobius below knee = %v, want 0.25", got)
	}

	// Reinhard closed form.
	offset := (1 - 0.5) / 0.5
	want := 2.0 / (2.0 + offset) * (peak + offset) / peak
	if got := ToneMap(ToneReinhard, 2.0, peak, 0.5); !approx(got, want, 1e-12) {
		t.Errorf("reinhard(2) = %v, want %v", got, want)
	}

	// Linear is a pure division.
	if got := ToneMap(ToneLinear, 5.0, peak, 1.0); !approx(got, 0.5, 1e-12) {
		t.Errorf("linear(5) = %v, want 0.5", got)
	}
}

func TestPeakDetector(t *testing.T) {
	var p PeakDetector

	if got := p.Peak(4.9); got != 4.9 {
		t.Errorf("unprimed Peak = %v, want fallback 4.9", got)
	}

	p.Update(8)
	if got := p.Peak(1); got != 8 {
		t.Errorf("first update Peak = %v, want 8", got)
	}

	// Decays toward a lower measurement, but slowly.
	p.Update(2)
	got := p.Peak(1)
	if got >= 8 || got <= 2 {
		t.Errorf("decayed Peak = %v, want between 2 and 8", got)
	}
	want := 8 + peakDecay*(2-8)
	if !approx(got, want, 1e-12) {
		t.Errorf("decayed Peak = %v, want %v", got, want)
	}

	// Never drops below the floor.
	for i := 0; i < 1000; i++ {
		p.Update(0)
	}
	if got := p.Peak(1); got < peakFloor {
		t.Errorf("Peak = %v below floor %v", got, peakFloor)
	}

	p.Reset()
	if got := p.Peak(3); got != 3 {
		t.Errorf("Peak after Reset = %v, want fallback 3", got)
	}
}

func TestLUT3DValid(t *testing.T) {
	var nilLUT *LUT3D
	if nilLUT.Valid() {
		t.Error("nil LUT reported valid")
	}
	bad := &LUT3D{Size: 4, Data: make([]float32, 10)}
	if bad.Valid() {
		t.Error("undersized LUT reported valid")
	}
	good := &LUT3D{Size: 4, Data: make([]float32, 4*4*4*3)}
	if !good.Valid() {
		t.Error("well-formed LUT reported invalid")
	}
}
