package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func testDevice() *Device {
	return NewDevice(NullDeviceHandle{}, DefaultLimits())
}

func TestFormatProperties(t *testing.T) {
	tests := []struct {
		f          Format
		components int
		bpp        int
		integer    bool
	}{
		{FormatR8, 1, 1, false},
		{FormatRG8, 2, 2, false},
		{FormatRGBA8, 4, 4, false},
		{FormatBGRA8, 4, 4, false},
		{FormatR16, 1, 2, false},
		{FormatRGBA16, 4, 8, false},
		{FormatRGBA16F, 4, 8, false},
		{FormatR16UI, 1, 2, true},
		{FormatRG16UI, 2, 4, true},
	}
	for _, tt := range tests {
		if got := tt.f.Components(); got != tt.components {
			t.Errorf("%s: Components = %d, want %d", tt.f, got, tt.components)
		}
		if got := tt.f.BytesPerPixel(); got != tt.bpp {
			t.Errorf("%s: BytesPerPixel = %d, want %d", tt.f, got, tt.bpp)
		}
		if got := tt.f.Integer(); got != tt.integer {
			t.Errorf("%s: Integer = %v, want %v", tt.f, got, tt.integer)
		}
	}
}

func TestToWGPUFormats(t *testing.T) {
	formats := []Format{
		FormatR8, FormatRG8, FormatRGBA8, FormatBGRA8,
		FormatR16, FormatRG16, FormatRGBA16, FormatRGBA16F,
		FormatR16UI, FormatRG16UI,
	}
	seen := make(map[gputypes.TextureFormat]Format)
	for _, f := range formats {
		w := f.ToWGPU()
		if prev, dup := seen[w]; dup {
			t.Errorf("%s and %s map to the same wgpu format %v", prev, f, w)
		}
		seen[w] = f
	}
	if FormatR16UI.ToWGPU() != gputypes.TextureFormatR16Uint {
		t.Errorf("R16UI maps to %v, want R16Uint", FormatR16UI.ToWGPU())
	}
}

func TestNullHandleSatisfiesProvider(t *testing.T) {
	var h DeviceHandle = NullDeviceHandle{}
	if h.Device() != nil || h.Queue() != nil {
		t.Error("null handle exposes device objects")
	}
	if info := h.AdapterInfo(); info.Name != "null" {
		t.Errorf("AdapterInfo().Name = %q, want null", info.Name)
	}
}

func TestDeviceNotReadyWithoutProvider(t *testing.T) {
	dev := testDevice()
	if dev.Ready() {
		t.Error("null device handle reported ready")
	}
	if dev.Limits().MaxTextureUnits != 16 {
		t.Errorf("MaxTextureUnits = %d, want 16", dev.Limits().MaxTextureUnits)
	}
}

func TestNewDeviceNilHandle(t *testing.T) {
	dev := NewDevice(nil, Limits{})
	if dev.Ready() {
		t.Error("nil handle reported ready")
	}
	if dev.Limits() != DefaultLimits() {
		t.Errorf("zero limits not replaced with defaults: %+v", dev.Limits())
	}
}

func TestCreateTextureInvalidDimensions(t *testing.T) {
	dev := testDevice()
	for _, dim := range [][2]int{{0, 10}, {10, 0}, {-1, 4}} {
		_, err := dev.CreateTexture(TextureConfig{Width: dim[0], Height: dim[1], Format: FormatRGBA8})
		if !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("CreateTexture(%dx%d) err = %v, want ErrInvalidDimensions", dim[0], dim[1], err)
		}
	}
}

func TestTextureUploadRepacksStride(t *testing.T) {
	dev := testDevice()
	tex, err := dev.CreateTexture(TextureConfig{Width: 2, Height: 2, Format: FormatR8})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	// 2x2 plane with a 4-byte stride; padding bytes must not land in
	// the texture.
	src := []byte{1, 2, 0xEE, 0xEE, 3, 4, 0xEE, 0xEE}
	if err := tex.Upload(src, 4); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := []byte{1, 2, 3, 4}
	for i, w := range want {
		if tex.Data()[i] != w {
			t.Errorf("Data[%d] = %d, want %d", i, tex.Data()[i], w)
		}
	}
}

func TestTextureUploadSizeMismatch(t *testing.T) {
	dev := testDevice()
	tex, _ := dev.CreateTexture(TextureConfig{Width: 4, Height: 4, Format: FormatRGBA8})

	if err := tex.Upload(make([]byte, 10), 16); !errors.Is(err, ErrUploadSize) {
		t.Errorf("short upload err = %v, want ErrUploadSize", err)
	}
	if err := tex.Upload(make([]byte, 64), 8); !errors.Is(err, ErrUploadSize) {
		t.Errorf("narrow stride err = %v, want ErrUploadSize", err)
	}
}

func TestTextureCloseTwice(t *testing.T) {
	dev := testDevice()
	tex, _ := dev.CreateTexture(TextureConfig{Width: 2, Height: 2, Format: FormatRGBA8})

	tex.Close()
	tex.Close()
	if !tex.Released() {
		t.Error("texture not marked released")
	}
	if err := tex.Upload(make([]byte, 16), 8); !errors.Is(err, ErrTextureReleased) {
		t.Errorf("upload after close err = %v, want ErrTextureReleased", err)
	}
}
