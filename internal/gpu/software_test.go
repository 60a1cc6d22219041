package gpu

import (
	"errors"
	"testing"
)

func uploadRGBA(t *testing.T, p *Pool, w, h int, fill [4]byte) *Texture {
	t.Helper()
	tex, err := p.Alloc(TextureConfig{Width: w, Height: h, Format: FormatRGBA8, Label: "src"})
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	data := make([]byte, w*h*4)
	for i := 0; i < len(data); i += 4 {
		copy(data[i:], fill[:])
	}
	if err := tex.Upload(data, w*4); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	return tex
}

func TestSoftwareScale(t *testing.T) {
	p := NewPool(testDevice(), DefaultBudgetMB)
	defer p.Close()

	src := uploadRGBA(t, p, 8, 8, [4]byte{200, 100, 50, 255})

	dst, err := SoftwareScale(p, src, 16, 16, "bilinear")
	if err != nil {
		t.Fatalf("SoftwareScale: %v", err)
	}
	if dst.Width() != 16 || dst.Height() != 16 {
		t.Fatalf("dst = %dx%d, want 16x16", dst.Width(), dst.Height())
	}

	// A constant image stays constant under any interpolator.
	data := dst.Data()
	for i := 0; i < len(data); i += 4 {
		if data[i] != 200 || data[i+1] != 100 || data[i+2] != 50 || data[i+3] != 255 {
			t.Fatalf("pixel %d = %v, want [200 100 50 255]", i/4, data[i:i+4])
		}
	}
}

func TestSoftwareScaleRejectsBadInput(t *testing.T) {
	p := NewPool(testDevice(), DefaultBudgetMB)
	defer p.Close()

	r16, _ := p.Alloc(TextureConfig{Width: 4, Height: 4, Format: FormatR16})
	if _, err := SoftwareScale(p, r16, 8, 8, ""); !errors.Is(err, ErrSoftwareFormat) {
		t.Errorf("R16 err = %v, want ErrSoftwareFormat", err)
	}

	src := uploadRGBA(t, p, 4, 4, [4]byte{1, 2, 3, 4})
	if _, err := SoftwareScale(p, src, 0, 8, ""); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("zero width err = %v, want ErrInvalidDimensions", err)
	}

	src.Close()
	if _, err := SoftwareScale(p, src, 8, 8, ""); !errors.Is(err, ErrTextureReleased) {
		t.Errorf("released err = %v, want ErrTextureReleased", err)
	}
}

func TestSoftwareComposite(t *testing.T) {
	p := NewPool(testDevice(), DefaultBudgetMB)
	defer p.Close()

	dst := uploadRGBA(t, p, 8, 8, [4]byte{0, 0, 0, 255})
	src := uploadRGBA(t, p, 2, 2, [4]byte{255, 255, 255, 255})

	if err := SoftwareComposite(dst, src, 3, 3); err != nil {
		t.Fatalf("SoftwareComposite: %v", err)
	}

	at := func(x, y int) byte { return dst.Data()[(y*8+x)*4] }
	if at(3, 3) != 255 || at(4, 4) != 255 {
		t.Error("overlay pixels not written")
	}
	if at(0, 0) != 0 || at(5, 5) != 0 {
		t.Error("pixels outside the overlay were touched")
	}
}

func TestSoftwareCompositeClipsToBounds(t *testing.T) {
	p := NewPool(testDevice(), DefaultBudgetMB)
	defer p.Close()

	dst := uploadRGBA(t, p, 4, 4, [4]byte{0, 0, 0, 255})
	src := uploadRGBA(t, p, 4, 4, [4]byte{255, 0, 0, 255})

	// Half off-screen; must not panic and must fill the overlap.
	if err := SoftwareComposite(dst, src, 2, 2); err != nil {
		t.Fatalf("SoftwareComposite: %v", err)
	}
	if dst.Data()[(3*4+3)*4] != 255 {
		t.Error("overlap corner not written")
	}

	// Fully off-screen is a no-op.
	if err := SoftwareComposite(dst, src, 10, 10); err != nil {
		t.Fatalf("off-screen composite: %v", err)
	}
}
