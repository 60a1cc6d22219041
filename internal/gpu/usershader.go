package gpu

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/wgpu/core"
)

// User shader errors.
var (
	// ErrShaderNoHook is returned when a shader block has no HOOK
	// directive.
	ErrShaderNoHook = errors.New("gpu: user shader block missing HOOK directive")

	// ErrShaderBadHook is returned for an unknown hook point name.
	ErrShaderBadHook = errors.New("gpu: user shader hooks unknown point")

	// ErrShaderEmptyBody is returned when a block has directives but
	// no WGSL body.
	ErrShaderEmptyBody = errors.New("gpu: user shader block has empty body")
)

// hookedBindName binds the hooked texture itself; it is always
// available and not counted against saved textures.
const hookedBindName = "HOOKED"

// UserShader is one parsed user shader block: directives plus the
// WGSL body.
//
// The directive syntax follows the established user shader format:
//
//	//!HOOK <point>        (repeatable)
//	//!BIND <name>         (repeatable; HOOKED binds the hooked texture)
//	//!SAVE <name>         (store output instead of replacing)
//	//!DESC <text>
//
// Everything after the directives up to the next //!HOOK is the WGSL
// source of the block.
type UserShader struct {
	Desc   string
	Points []string
	Binds  []string
	Save   string
	Source string

	spirv  []uint32
	module core.ShaderModuleID
}

// ParseUserShaders splits a user shader file into blocks and checks
// the directives. The WGSL bodies are validated separately with
// Validate.
func ParseUserShaders(src string) ([]*UserShader, error) {
	var shaders []*UserShader
	var cur *UserShader
	var body strings.Builder

	flush := func() error {
		if cur == nil {
			return nil
		}
		cur.Source = strings.TrimSpace(body.String())
		body.Reset()
		if len(cur.Points) == 0 {
			return ErrShaderNoHook
		}
		if cur.Source == "" {
			return fmt.Errorf("%w: %s", ErrShaderEmptyBody, cur.Desc)
		}
		shaders = append(shaders, cur)
		cur = nil
		return nil
	}

	sc := bufio.NewScanner(strings.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		directive, arg, isDirective := parseDirective(line)
		if !isDirective {
			if cur != nil {
				body.WriteString(line)
				body.WriteByte('\n')
			}
			continue
		}
		if directive == "HOOK" && (cur == nil || body.Len() > 0 && strings.TrimSpace(body.String()) != "") {
			// A HOOK after a body starts the next block.
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if cur == nil {
			cur = &UserShader{}
		}
		switch directive {
		case "HOOK":
			if !ValidHookPoint(arg) {
				return nil, fmt.Errorf("%w: %q", ErrShaderBadHook, arg)
			}
			cur.Points = append(cur.Points, arg)
		case "BIND":
			if arg != hookedBindName {
				cur.Binds = append(cur.Binds, arg)
			}
		case "SAVE":
			cur.Save = arg
		case "DESC":
			cur.Desc = arg
		default:
			slogger().Debug("ignoring unknown shader directive", "directive", directive)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return shaders, nil
}

// parseDirective recognizes "//!NAME arg" lines.
func parseDirective(line string) (name, arg string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//!") {
		return "", "", false
	}
	rest := trimmed[len("//!"):]
	name, arg, _ = strings.Cut(rest, " ")
	return name, strings.TrimSpace(arg), true
}

// Validate compiles the WGSL body through naga and keeps the SPIR-V
// for module creation. A shader that does not compile is rejected up
// front rather than disabled mid-playback.
func (s *UserShader) Validate() error {
	words, err := compileWGSL(s.Source)
	if err != nil {
		return fmt.Errorf("gpu: user shader %q: %w", s.Desc, err)
	}
	s.spirv = words
	return nil
}

// Hook implements PassHook.
func (s *UserShader) Hook() HookDesc {
	return HookDesc{
		Points: s.Points,
		Binds:  s.Binds,
		Save:   s.Save,
		Desc:   s.Desc,
	}
}

// Apply implements PassHook: render the shader into a fresh FBO of
// the hooked texture's size.
func (s *UserShader) Apply(pc *PassContext, tex *HookedTex) (*HookedTex, error) {
	fbo := pc.GetFBO(tex.Tex.W, tex.Tex.H, FormatRGBA16)
	if fbo == nil {
		return nil, ErrBudgetExceeded
	}
	name := s.Desc
	if name == "" {
		name = "user shader (" + tex.Name + ")"
	}
	if pc.Dev.Ready() {
		if s.module.IsZero() {
			if s.spirv == nil {
				if err := s.Validate(); err != nil {
					return nil, err
				}
			}
			mod, err := pc.Dev.CreateShaderModule(s.spirv, name)
			if err != nil {
				return nil, err
			}
			s.module = mod
		}
		if err := pc.Dev.Submit(name); err != nil {
			return nil, err
		}
	} else {
		// WGSL bodies cannot run without a device; the headless path
		// carries the hooked texture through unchanged.
		swResample(fbo, tex.Tex, resampleBilinear)
	}
	pc.RecordPass(name, 0)
	out := *tex
	out.Tex.Tex = fbo
	out.Tex.Components = 4
	return &out, nil
}

var _ PassHook = (*UserShader)(nil)
