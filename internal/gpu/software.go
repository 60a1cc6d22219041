package gpu

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

// ErrSoftwareFormat is returned when the software path cannot handle
// a texture format.
var ErrSoftwareFormat = errors.New("gpu: software path requires an 8-bit RGBA texture")

// softwareScaler maps a kernel name to an x/image/draw interpolator.
// The GPU path carries the full kernel table; the CPU fallback
// approximates with the closest interpolator the package offers.
func softwareScaler(kernel string) draw.Interpolator {
	switch kernel {
	case "nearest", "box", "oversample":
		return draw.NearestNeighbor
	case "bilinear", "triangle":
		return draw.BiLinear
	case "", "lanczos", "spline36":
		return draw.CatmullRom
	default:
		return draw.CatmullRom
	}
}

// SoftwareScale resamples src into a new texture of the given size on
// the CPU. It serves as the fallback when no GPU device is present;
// both textures live in host memory.
func SoftwareScale(pool *Pool, src *Texture, dstW, dstH int, kernel string) (*Texture, error) {
	if src == nil || src.Released() {
		return nil, ErrTextureReleased
	}
	if src.Format() != FormatRGBA8 && src.Format() != FormatBGRA8 || src.Data() == nil {
		return nil, ErrSoftwareFormat
	}
	if dstW <= 0 || dstH <= 0 {
		return nil, ErrInvalidDimensions
	}

	srcImg := &image.RGBA{
		Pix:    src.Data(),
		Stride: src.Width() * 4,
		Rect:   image.Rect(0, 0, src.Width(), src.Height()),
	}
	dstImg := image.NewRGBA(image.Rect(0, 0, dstW, dstH))

	softwareScaler(kernel).Scale(dstImg, dstImg.Rect, srcImg, srcImg.Rect, draw.Src, nil)

	dst, err := pool.GetFBO(dstW, dstH, src.Format())
	if err != nil {
		return nil, err
	}
	if err := dst.Upload(dstImg.Pix, dstImg.Stride); err != nil {
		pool.PutFBO(dst)
		return nil, err
	}
	return dst, nil
}

// SoftwareComposite draws src over dst at the given offset on the
// CPU. Used for OSD and subtitle overlays on the fallback path.
func SoftwareComposite(dst, src *Texture, x, y int) error {
	if dst == nil || dst.Released() || src == nil || src.Released() {
		return ErrTextureReleased
	}
	if dst.Format() != FormatRGBA8 || src.Format() != FormatRGBA8 ||
		dst.Data() == nil || src.Data() == nil {
		return ErrSoftwareFormat
	}

	dstImg := &image.RGBA{
		Pix:    dst.Data(),
		Stride: dst.Width() * 4,
		Rect:   image.Rect(0, 0, dst.Width(), dst.Height()),
	}
	srcImg := &image.RGBA{
		Pix:    src.Data(),
		Stride: src.Width() * 4,
		Rect:   image.Rect(0, 0, src.Width(), src.Height()),
	}

	r := srcImg.Rect.Add(image.Pt(x, y)).Intersect(dstImg.Rect)
	if r.Empty() {
		return nil
	}
	draw.Draw(dstImg, r, srcImg, image.Pt(r.Min.X-x, r.Min.Y-y), draw.Over)
	return nil
}
