package registry

import (
	"testing"

	"tsload/internal/service"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

func newSvc() *service.Service {
	return service.New(source.NewFileSet(), sourcemap.NewIndex(), service.Options{})
}

func TestExtensionPolicy(t *testing.T) {
	cases := []struct {
		name    string
		allowJS bool
		jsx     bool
		path    string
		want    bool
	}{
		{"ts always", false, false, "/p/a.ts", true},
		{"dts always", false, false, "/p/a.d.ts", true},
		{"tsx needs jsx", false, false, "/p/a.tsx", false},
		{"tsx with jsx", false, true, "/p/a.tsx", true},
		{"js needs allowJs", false, false, "/p/a.js", false},
		{"js with allowJs", true, false, "/p/a.js", true},
		{"jsx needs both", true, false, "/p/a.jsx", false},
		{"jsx with both", true, true, "/p/a.jsx", true},
		{"jsx with only jsx", false, true, "/p/a.jsx", false},
		{"unrelated", true, true, "/p/a.txt", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := NewInstance(Config{AllowJS: tc.allowJS, JSX: tc.jsx}, newSvc())
			if got := in.Handles(tc.path); got != tc.want {
				t.Fatalf("Handles(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestExtensionsLongestFirst(t *testing.T) {
	in := NewInstance(Config{AllowJS: true, JSX: true}, newSvc())
	exts := in.Extensions()
	if exts[0] != ".d.ts" {
		t.Fatalf("'.d.ts' must sort first, got %v", exts)
	}
	if len(exts) != 5 {
		t.Fatalf("want 5 extensions, got %v", exts)
	}
}

func TestResolveDeepestScopeWins(t *testing.T) {
	reg := NewRegistry()
	outer := NewInstance(Config{ScopeDir: "/work/app"}, newSvc())
	inner := NewInstance(Config{ScopeDir: "/work/app/pkg"}, newSvc())
	reg.Add(outer)
	reg.Add(inner)

	if got := reg.Resolve("/work/app/pkg/file.ts"); got != inner {
		t.Fatalf("deepest scope must win")
	}
	if got := reg.Resolve("/work/app/other.ts"); got != outer {
		t.Fatalf("outer scope must catch its own subtree")
	}
	if got := reg.Resolve("/elsewhere/file.ts"); got != nil {
		t.Fatalf("path outside every scope must be unmanaged, got %+v", got.Config())
	}
}

func TestResolveDisabledExcluded(t *testing.T) {
	reg := NewRegistry()
	outer := NewInstance(Config{ScopeDir: "/work/app"}, newSvc())
	inner := NewInstance(Config{ScopeDir: "/work/app/pkg"}, newSvc())
	reg.Add(outer)
	reg.Add(inner)

	if prev := inner.SetEnabled(false); !prev {
		t.Fatalf("instances start enabled")
	}
	if got := reg.Resolve("/work/app/pkg/file.ts"); got != outer {
		t.Fatalf("disabled instance must not win")
	}
	inner.SetEnabled(true)
	if got := reg.Resolve("/work/app/pkg/file.ts"); got != inner {
		t.Fatalf("re-enabled instance must win again")
	}
}

func TestResolveGlobalFallback(t *testing.T) {
	reg := NewRegistry()
	global := NewInstance(Config{}, newSvc())
	scoped := NewInstance(Config{ScopeDir: "/work/app"}, newSvc())
	reg.Add(global)
	reg.Add(scoped)

	if got := reg.Resolve("/anywhere/x.ts"); got != global {
		t.Fatalf("global instance must catch unscoped paths")
	}
	if got := reg.Resolve("/work/app/x.ts"); got != scoped {
		t.Fatalf("scoped instance must beat the global fallback")
	}
}

func TestResolveScopeBoundary(t *testing.T) {
	reg := NewRegistry()
	scoped := NewInstance(Config{ScopeDir: "/work/app"}, newSvc())
	reg.Add(scoped)

	// Префикс имени каталога не означает вложенность.
	if got := reg.Resolve("/work/application/x.ts"); got != nil {
		t.Fatalf("sibling directory with a shared prefix must not match")
	}
}
