package require

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tsload/internal/host"
	"tsload/internal/registry"
	"tsload/internal/service"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func newStack(t *testing.T, cfg registry.Config) (*host.Host, *registry.Registry, *bytes.Buffer) {
	t.Helper()
	maps := sourcemap.NewIndex()
	svc := service.New(source.NewFileSet(), maps, service.Options{
		TranspileOnly:     cfg.TranspileOnly,
		IgnoreDiagnostics: cfg.IgnoreDiagnostics,
	})
	reg := registry.NewRegistry()
	reg.Add(registry.NewInstance(cfg, svc))

	var stdout, stderr bytes.Buffer
	h := host.NewHost(&stdout, &stderr, maps)
	return h, reg, &stdout
}

func TestRequireTypedModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mod.ts", "export function twice(n: number): number { return n * 2; }")
	writeFile(t, dir, "main.ts", "import { twice } from \"./mod\";\nlog(twice(21));")

	h, reg, stdout := newStack(t, registry.Config{})
	hook := Install(h, reg)
	defer hook.Restore()

	if _, err := h.Require(filepath.Join(dir, "main.ts"), dir); err != nil {
		t.Fatalf("require: %v", err)
	}
	if stdout.String() != "42\n" {
		t.Fatalf("stdout %q", stdout.String())
	}
}

func TestRequireTypeErrorBlocksLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.ts", "function f(x: number): number { return x; }\nf(\"no\");")

	h, reg, _ := newStack(t, registry.Config{})
	hook := Install(h, reg)
	defer hook.Restore()

	_, err := h.Require(filepath.Join(dir, "bad.ts"), dir)
	if err == nil {
		t.Fatalf("type error must block the load")
	}
	if !strings.Contains(err.Error(), "TS2345") {
		t.Fatalf("error lacks the code: %v", err)
	}
}

func TestRequireRuntimeErrorRemapsStack(t *testing.T) {
	dir := t.TempDir()
	// Аннотация стирается, колонки сдвигаются; кадр должен указать на
	// исходную колонку throw.
	src := "function boom(tag: string): void { throw tag; }\nboom(\"kaput\");"
	writeFile(t, dir, "boom.ts", src)

	h, reg, _ := newStack(t, registry.Config{})
	hook := Install(h, reg)
	defer hook.Restore()

	_, err := h.Require(filepath.Join(dir, "boom.ts"), dir)
	re, ok := err.(*host.RuntimeError)
	if !ok {
		t.Fatalf("expected *host.RuntimeError, got %v", err)
	}
	if re.Value != "kaput" {
		t.Fatalf("thrown value %v", re.Value)
	}
	top := re.Frames[0]
	if top.Func != "boom" {
		t.Fatalf("top frame %q", top.Func)
	}
	wantCol := uint32(strings.Index(src, "throw")) + 1
	if top.Line != 1 || top.Col != wantCol {
		t.Fatalf("frame at %d:%d, want 1:%d", top.Line, top.Col, wantCol)
	}
}

func TestRequireUnownedFileFallsThrough(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plain.js", "exports.kind = \"plain\";")

	// Инстанс без allowJs не владеет .js, но установка хуков и не трогает
	// это расширение: грузит дефолтный обработчик.
	h, reg, _ := newStack(t, registry.Config{})
	hook := Install(h, reg)
	defer hook.Restore()

	exports, err := h.Require(filepath.Join(dir, "plain.js"), dir)
	if err != nil {
		t.Fatalf("require: %v", err)
	}
	if exports.Props["kind"] != "plain" {
		t.Fatalf("kind = %v", exports.Props["kind"])
	}
}

func TestRequireScopedInstanceDeclines(t *testing.T) {
	managed := t.TempDir()
	outside := t.TempDir()
	// Тип здесь заведомо неверен: внутри скоупа такой файл не загрузился бы.
	writeFile(t, outside, "free.ts", "const n: string = 1;\nlog(n);")

	h, reg, _ := newStack(t, registry.Config{ScopeDir: managed})
	compiles := 0
	reg.Instances()[0].Service().SetObserver(func(string, string) { compiles++ })
	hook := Install(h, reg)
	defer hook.Restore()

	if _, err := h.Require(filepath.Join(outside, "free.ts"), outside); err != nil {
		t.Fatalf("unmanaged file must fall through to the default loader: %v", err)
	}
	if compiles != 0 {
		t.Fatalf("out-of-scope file must not reach the compiler")
	}
}

func TestInstallRestore(t *testing.T) {
	h, reg, _ := newStack(t, registry.Config{AllowJS: true, JSX: true})

	hook := Install(h, reg)
	for _, ext := range []string{".ts", ".d.ts", ".tsx", ".js", ".jsx"} {
		if h.Extension(ext) == nil {
			t.Fatalf("extension %s not installed", ext)
		}
	}

	hook.Restore()
	if h.Extension(".ts") != nil {
		t.Fatalf(".ts must be removed on restore")
	}
	if h.Extension(".js") == nil {
		t.Fatalf(".js must fall back to its previous handler")
	}
	hook.Restore() // повторный вызов безопасен
}

func TestIgnoredDefaults(t *testing.T) {
	in := registry.NewInstance(registry.Config{}, service.New(source.NewFileSet(), sourcemap.NewIndex(), service.Options{}))
	cases := []struct {
		path string
		want bool
	}{
		{"/p/node_modules/dep/index.ts", true},
		{"/p/vendor/lib/a.ts", true},
		{"/p/src/app.ts", false},
		{"/p/node_modules_like/a.ts", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			if got := Ignored(in, tc.path); got != tc.want {
				t.Fatalf("Ignored(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestIgnoredCustomGlobs(t *testing.T) {
	in := registry.NewInstance(registry.Config{ExcludeGlobs: []string{"dist/*", "*.gen.ts"}},
		service.New(source.NewFileSet(), sourcemap.NewIndex(), service.Options{}))

	cases := []struct {
		path string
		want bool
	}{
		{"/p/dist/out.ts", true},
		{"/p/deep/dist/out.ts", true},
		{"/p/src/schema.gen.ts", true},
		{"/p/node_modules/dep/a.ts", false}, // кастомные глобы заменяют дефолт
		{"/p/src/app.ts", false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			if got := Ignored(in, tc.path); got != tc.want {
				t.Fatalf("Ignored(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestRequireIgnoredPathFallsThrough(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "node_modules", "dep")
	if err := os.MkdirAll(dep, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Внутри node_modules компиляции нет: файл с неверным типом грузится
	// через дефолтный обработчик без проверки типов.
	writeFile(t, dep, "index.ts", "const x: string = 1;\nexports.x = x;")

	h, reg, _ := newStack(t, registry.Config{})
	compiles := 0
	reg.Instances()[0].Service().SetObserver(func(string, string) { compiles++ })
	hook := Install(h, reg)
	defer hook.Restore()

	exports, err := h.Require(filepath.Join(dep, "index.ts"), dep)
	if err != nil {
		t.Fatalf("ignored path must load through the default handler: %v", err)
	}
	if exports.Props["x"] != float64(1) {
		t.Fatalf("x = %v", exports.Props["x"])
	}
	if compiles != 0 {
		t.Fatalf("ignored path must not reach the compiler")
	}
}
