package esm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tsload/internal/host"
	"tsload/internal/registry"
	"tsload/internal/require"
	"tsload/internal/service"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

func writeFile(t *testing.T, dir, name, text string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func newStack(t *testing.T, cfg registry.Config) (*host.Host, *bytes.Buffer) {
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
	rh := require.Install(h, reg)
	t.Cleanup(rh.Restore)
	Install(h, reg)
	return h, &stdout
}

func TestImportTypedESMModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.toml", "type = \"module\"\n")
	writeFile(t, dir, "math.ts", "export function add(a: number, b: number): number { return a + b; }")
	p := writeFile(t, dir, "main.ts", "import { add } from \"./math.ts\";\nexport const sum = add(40, 2);")

	h, _ := newStack(t, registry.Config{})
	ns, err := h.Import(context.Background(), host.FileURL(p), "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if ns.Props["sum"] != float64(42) {
		t.Fatalf("sum = %v", ns.Props["sum"])
	}
}

func TestResolveSubstitutesTypedExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.toml", "type = \"module\"\n")
	// Импорт написан с .js, на диске лежит только .ts.
	writeFile(t, dir, "dep.ts", "export const v: number = 7;")
	p := writeFile(t, dir, "main.ts", "import { v } from \"./dep.js\";\nexport const got = v;")

	h, _ := newStack(t, registry.Config{})
	ns, err := h.Import(context.Background(), host.FileURL(p), "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if ns.Props["got"] != float64(7) {
		t.Fatalf("got = %v", ns.Props["got"])
	}
}

func TestResolveExperimentalSpecifierResolution(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.toml", "type = \"module\"\n")
	writeFile(t, dir, "dep.ts", "export const v: number = 3;")
	p := writeFile(t, dir, "main.ts", "import { v } from \"./dep\";\nexport const got = v;")

	// Без флага расширение обязательно.
	hStrict, _ := newStack(t, registry.Config{})
	_, err := hStrict.Import(context.Background(), host.FileURL(p), "")
	var re *host.ResolutionError
	if !errors.As(err, &re) || re.Code != host.CodeModuleNotFound {
		t.Fatalf("strict mode must fail resolution, got %v", err)
	}

	hLoose, _ := newStack(t, registry.Config{ExperimentalSpecifierResolution: true})
	ns, err := hLoose.Import(context.Background(), host.FileURL(p), "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if ns.Props["got"] != float64(3) {
		t.Fatalf("got = %v", ns.Props["got"])
	}
}

func TestResolvePreservesForeignErrors(t *testing.T) {
	h, _ := newStack(t, registry.Config{})
	_, err := h.Import(context.Background(), "https://cdn.example/mod.js", "")
	var re *host.ResolutionError
	if !errors.As(err, &re) || re.Code != host.CodeUnsupportedScheme {
		t.Fatalf("non-not-found errors must pass through unmodified, got %v", err)
	}
}

func TestTypedFileOutsideModulePackageLoadsAsCommonJS(t *testing.T) {
	dir := t.TempDir()
	// Нет package.toml: типизированный файл идёт через require-протокол.
	p := writeFile(t, dir, "mod.ts", "export const n: number = 5;")

	h, _ := newStack(t, registry.Config{})
	ns, err := h.Import(context.Background(), host.FileURL(p), "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if ns.Props["n"] != float64(5) {
		t.Fatalf("n = %v", ns.Props["n"])
	}
}

func TestLoadTypeErrorBlocksImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.toml", "type = \"module\"\n")
	p := writeFile(t, dir, "bad.ts", "export const s: string = 1;")

	h, _ := newStack(t, registry.Config{})
	_, err := h.Import(context.Background(), host.FileURL(p), "")
	if err == nil {
		t.Fatalf("type error must block the import")
	}
	if !strings.Contains(err.Error(), "TS2322") {
		t.Fatalf("error lacks the code: %v", err)
	}
}

func TestImportQueryBustsTypedCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.toml", "type = \"module\"\n")
	p := writeFile(t, dir, "v.ts", "export const v: number = 1;")

	h, _ := newStack(t, registry.Config{})
	ctx := context.Background()

	first, err := h.Import(ctx, host.FileURL(p)+"?v=1", "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if first.Props["v"] != float64(1) {
		t.Fatalf("v = %v", first.Props["v"])
	}

	if err := os.WriteFile(p, []byte("export const v: number = 2;"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	fresh, err := h.Import(ctx, host.FileURL(p)+"?v=2", "")
	if err != nil {
		t.Fatalf("busted import: %v", err)
	}
	if fresh.Props["v"] != float64(2) {
		t.Fatalf("new query must recompile and re-run, got %v", fresh.Props["v"])
	}
}

func TestIgnoredPathSkipsCompilation(t *testing.T) {
	dir := t.TempDir()
	dep := filepath.Join(dir, "node_modules", "dep")
	writeFile(t, dep, "index.js", "exports.ok = true;")

	h, _ := newStack(t, registry.Config{AllowJS: true})
	ns, err := h.Import(context.Background(), host.FileURL(filepath.Join(dep, "index.js")), "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if ns.Props["ok"] != true {
		t.Fatalf("ok = %v", ns.Props["ok"])
	}
}
