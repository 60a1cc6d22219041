package gpu

// Role is the semantic meaning of a plane texture within a frame.
type Role uint8

const (
	// RoleNone marks an unused slot.
	RoleNone Role = iota

	// RoleRGB is a packed RGB(A) plane.
	RoleRGB

	// RoleLuma is the Y plane of a subsampled format.
	RoleLuma

	// RoleChroma is a Cb/Cr plane, possibly packed.
	RoleChroma

	// RoleAlpha is a separate alpha plane.
	RoleAlpha

	// RoleXYZ is a CIE XYZ plane (digital cinema sources).
	RoleXYZ
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleRGB:
		return "rgb"
	case RoleLuma:
		return "luma"
	case RoleChroma:
		return "chroma"
	case RoleAlpha:
		return "alpha"
	case RoleXYZ:
		return "xyz"
	default:
		return "unknown"
	}
}

// Transform is a 2D affine transform: a 2x2 matrix plus an offset,
// applied to texture coordinates as M*v + T. It carries chroma
// siting, rotation, cropping and hook-reported resizes through the
// pass graph explicitly instead of implying them from texture sizes.
type Transform struct {
	M [2][2]float64
	T [2]float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{M: [2][2]float64{{1, 0}, {0, 1}}}
}

// Scale returns a pure scaling transform.
func Scale(sx, sy float64) Transform {
	return Transform{M: [2][2]float64{{sx, 0}, {0, sy}}}
}

// Translate returns a pure translation transform.
func Translate(tx, ty float64) Transform {
	t := Identity()
	t.T = [2]float64{tx, ty}
	return t
}

// Apply maps a point through the transform.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return t.M[0][0]*x + t.M[0][1]*y + t.T[0],
		t.M[1][0]*x + t.M[1][1]*y + t.T[1]
}

// Compose returns the transform equivalent to applying u first, then t.
func (t Transform) Compose(u Transform) Transform {
	var r Transform
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			r.M[i][j] = t.M[i][0]*u.M[0][j] + t.M[i][1]*u.M[1][j]
		}
		r.T[i] = t.M[i][0]*u.T[0] + t.M[i][1]*u.T[1] + t.T[i]
	}
	return r
}

// ScaleFactor returns the diagonal scale components.
func (t Transform) ScaleFactor() (float64, float64) {
	return t.M[0][0], t.M[1][1]
}

// ImgTex binds a texture to its semantic plane role for the duration
// of one render pass. Never persisted across frames.
type ImgTex struct {
	// Role is the semantic plane type.
	Role Role

	// Tex is the bound texture.
	Tex *Texture

	// W, H is the logical size; may differ from the texture size for
	// cropped or padded planes.
	W, H int

	// Components is the number of meaningful channels.
	Components int

	// Multiplier rescales sampled values, e.g. to renormalize 10-bit
	// content stored in 16-bit textures.
	Multiplier float64

	// Transform adjusts sampling within the plane: chroma siting,
	// crops, rotation and hook-reported resizes. It applies after the
	// output grid is mapped onto the plane's logical size, so
	// subsampled planes keep an identity transform.
	Transform Transform
}

// CanMerge reports whether two plane textures can be fetched through
// one merged texture: same role, geometry and transform, and together
// at most four components.
func CanMerge(a, b ImgTex) bool {
	return a.Role == b.Role &&
		a.W == b.W && a.H == b.H &&
		a.Transform == b.Transform &&
		a.Multiplier == b.Multiplier &&
		a.Components+b.Components <= 4
}

// ChromaLoc is the chroma sample siting within a luma quad.
type ChromaLoc uint8

const (
	// ChromaLocCenter sites chroma between the four luma samples
	// (MPEG-1 style).
	ChromaLocCenter ChromaLoc = iota

	// ChromaLocLeft sites chroma on the left column (MPEG-2 style,
	// the common default).
	ChromaLocLeft

	// ChromaLocTopLeft sites chroma on the top-left sample.
	ChromaLocTopLeft
)

// ChromaOffset returns the sub-texel offset transform aligning a
// chroma plane subsampled by (subX, subY) onto the luma grid.
func ChromaOffset(loc ChromaLoc, subX, subY int) Transform {
	if subX == 0 && subY == 0 {
		return Identity()
	}
	// Offsets are in chroma texels relative to centered siting.
	var ox, oy float64
	switch loc {
	case ChromaLocLeft:
		ox = 0.5 - 0.5/float64(uint(1)<<uint(subX))
	case ChromaLocTopLeft:
		ox = 0.5 - 0.5/float64(uint(1)<<uint(subX))
		oy = 0.5 - 0.5/float64(uint(1)<<uint(subY))
	}
	return Translate(ox, oy)
}
