package gpu

import (
	"errors"
	"strings"
	"testing"
)

const twoBlockShader = `//!HOOK LUMA
//!BIND HOOKED
//!DESC sharpen luma
fn hook() -> vec4<f32> { return vec4<f32>(1.0); }

//!HOOK MAIN
//!HOOK SCALED
//!BIND PREV
//!SAVE PREV
//!DESC feedback
fn hook() -> vec4<f32> { return vec4<f32>(0.5); }
`

func TestParseUserShaders(t *testing.T) {
	shaders, err := ParseUserShaders(twoBlockShader)
	if err != nil {
		t.Fatalf("ParseUserShaders: %v", err)
	}
	if len(shaders) != 2 {
		t.Fatalf("parsed %d blocks, want 2", len(shaders))
	}

	first := shaders[0]
	if first.Desc != "sharpen luma" {
		t.Errorf("Desc = %q, want %q", first.Desc, "sharpen luma")
	}
	if len(first.Points) != 1 || first.Points[0] != HookLuma {
		t.Errorf("Points = %v, want [LUMA]", first.Points)
	}
	// HOOKED is implicit and never a saved-texture bind.
	if len(first.Binds) != 0 {
		t.Errorf("Binds = %v, HOOKED must not be counted", first.Binds)
	}
	if !strings.Contains(first.Source, "fn hook()") {
		t.Errorf("Source missing body: %q", first.Source)
	}

	second := shaders[1]
	if len(second.Points) != 2 {
		t.Errorf("Points = %v, want two points", second.Points)
	}
	if second.Save != "PREV" {
		t.Errorf("Save = %q, want PREV", second.Save)
	}
	if len(second.Binds) != 1 || second.Binds[0] != "PREV" {
		t.Errorf("Binds = %v, want [PREV]", second.Binds)
	}
}

func TestParseUserShadersUnknownPoint(t *testing.T) {
	_, err := ParseUserShaders("//!HOOK NOWHERE\nfn hook() {}\n")
	if !errors.Is(err, ErrShaderBadHook) {
		t.Errorf("err = %v, want ErrShaderBadHook", err)
	}
}

func TestParseUserShadersEmptyBody(t *testing.T) {
	_, err := ParseUserShaders("//!HOOK LUMA\n//!DESC nothing\n")
	if !errors.Is(err, ErrShaderEmptyBody) {
		t.Errorf("err = %v, want ErrShaderEmptyBody", err)
	}
}

func TestParseUserShadersNoDirectives(t *testing.T) {
	shaders, err := ParseUserShaders("// just a comment\n\n")
	if err != nil {
		t.Fatalf("ParseUserShaders: %v", err)
	}
	if len(shaders) != 0 {
		t.Errorf("parsed %d blocks from plain text, want 0", len(shaders))
	}
}

func TestUserShaderHookDesc(t *testing.T) {
	shaders, err := ParseUserShaders(twoBlockShader)
	if err != nil {
		t.Fatalf("ParseUserShaders: %v", err)
	}
	desc := shaders[1].Hook()
	if desc.Save != "PREV" || desc.Desc != "feedback" {
		t.Errorf("Hook() = %+v, mismatched directives", desc)
	}
}
