package tsload

import (
	"bytes"
	"strings"
	"testing"
)

func TestCreateCompile(t *testing.T) {
	h, err := Create(Config{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	out, err := h.Compile("export const n: number = 1;", "/p/m.ts")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if strings.Contains(out, ": number") {
		t.Fatalf("annotation survived: %q", out)
	}
	if !strings.Contains(out, "exports.n = n;") {
		t.Fatalf("missing export lowering: %q", out)
	}
}

func TestCreateCompileTypeError(t *testing.T) {
	h, err := Create(Config{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.Compile("const s: string = 1;", "/p/bad.ts"); err == nil {
		t.Fatalf("type error must fail the compile")
	}

	lax, err := Create(Config{IgnoreDiagnostics: []int{2322}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := lax.Compile("const s: string = 1;", "/p/bad.ts"); err != nil {
		t.Fatalf("ignored code still failed: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	if _, err := Create(Config{Scoped: true}); err == nil {
		t.Fatalf("scoped instance without a directory must be rejected")
	}
	if _, err := Create(Config{IgnoreDiagnostics: []int{-1}}); err == nil {
		t.Fatalf("negative code must be rejected")
	}
	if _, err := Create(Config{IgnoreDiagnostics: []int{70000}}); err == nil {
		t.Fatalf("out-of-range code must be rejected")
	}
}

func TestGetTypeInfo(t *testing.T) {
	h, err := Create(Config{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	src := "const a = 123;"
	info := h.GetTypeInfo(src, "/p/t.ts", strings.Index(src, "a"))
	if info.Name != "a" || info.Type != "123" {
		t.Fatalf("got %+v", info)
	}
	if info := h.GetTypeInfo(src, "/p/t.ts", -5); info.Name != "" {
		t.Fatalf("negative position must yield empty info, got %+v", info)
	}
}

func TestHandleIgnored(t *testing.T) {
	h, err := Create(Config{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !h.Ignored("/p/node_modules/dep/a.ts") {
		t.Fatalf("dependency directories are excluded by default")
	}
	if h.Ignored("/p/src/a.ts") {
		t.Fatalf("project files are not excluded")
	}
}

func TestHandleEnabled(t *testing.T) {
	h, err := Create(Config{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !h.IsEnabled() {
		t.Fatalf("instances start enabled")
	}
	if prev := h.Enabled(false); !prev {
		t.Fatalf("instances start enabled")
	}
	if h.IsEnabled() {
		t.Fatalf("query must see the disabled state")
	}
	if prev := h.Enabled(true); prev {
		t.Fatalf("previous value must round-trip")
	}
	if !h.IsEnabled() {
		t.Fatalf("query must see the re-enabled state")
	}
}

func TestCreateReplStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r, err := CreateRepl(Config{}, strings.NewReader("1 + 2\n.exit\n"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("create repl: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if !strings.Contains(stdout.String(), "3") {
		t.Fatalf("stdout %q", stdout.String())
	}
	if stderr.String() != "" {
		t.Fatalf("stderr %q", stderr.String())
	}
}
