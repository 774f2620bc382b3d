package ui

import (
	"strings"
	"testing"
)

func TestRenderToolBlockIncludesTitleAndBody(t *testing.T) {
	out := RenderToolBlock("fs__read_file", "contents here", false)
	if !strings.Contains(out, "fs__read_file") {
		t.Fatalf("expected title in output, got %q", out)
	}
	if !strings.Contains(out, "contents here") {
		t.Fatalf("expected body in output, got %q", out)
	}
}

func TestRenderToolBlockOmitsBodyWhenEmpty(t *testing.T) {
	out := RenderToolBlock("shell__exec", "", true)
	if !strings.Contains(out, "shell__exec") {
		t.Fatalf("expected title in output, got %q", out)
	}
}
