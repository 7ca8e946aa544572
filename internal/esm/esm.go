// Package esm is the ESM-protocol hook: a resolve hook that teaches the
// host's import chain about typed files, and a load hook that compiles them.
// Both hooks delegate to the default steps for anything they do not own and
// let the default errors pass through untouched.
package esm

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"tsload/internal/emit"
	"tsload/internal/host"
	"tsload/internal/registry"
	"tsload/internal/require"
	"tsload/internal/source"
)

// Install registers the resolve and load hooks for every instance in the
// registry. Dispatch stays per file, so scoped instances coexist on one
// host.
func Install(h *host.Host, reg *registry.Registry) {
	hk := &hook{host: h, reg: reg}
	h.AddResolveHook(hk.resolve)
	h.AddLoadHook(hk.load)
}

type hook struct {
	host *host.Host
	reg  *registry.Registry
}

// resolve tries the default chain first and only steps in when it fails
// with module-not-found: then it probes typed-extension candidates. Errors
// other than not-found (unsupported schemes in particular) are re-thrown
// unmodified.
func (hk *hook) resolve(specifier string, rctx *host.ResolveContext, next host.NextResolve) (host.ResolveResult, error) {
	res, err := next(specifier, rctx)
	if err == nil {
		return res, nil
	}
	re, ok := err.(*host.ResolutionError)
	if !ok || re.Code != host.CodeModuleNotFound {
		return host.ResolveResult{}, err
	}

	base, query, ok := hk.candidateBase(specifier, rctx.ParentURL)
	if !ok {
		return host.ResolveResult{}, err
	}

	for _, cand := range hk.candidates(base) {
		if fileExists(cand) {
			return host.ResolveResult{URL: host.FileURL(cand) + query}, nil
		}
	}
	return host.ResolveResult{}, err
}

// candidateBase maps the specifier to an absolute path to probe around,
// splitting off any query string.
func (hk *hook) candidateBase(specifier, parentURL string) (basePath, query string, ok bool) {
	if i := strings.IndexByte(specifier, '?'); i >= 0 {
		query = specifier[i:]
		specifier = specifier[:i]
	}
	switch {
	case strings.HasPrefix(specifier, "/"):
		return source.NormalizePath(specifier), query, true
	case strings.HasPrefix(specifier, "./"), strings.HasPrefix(specifier, "../"):
		u, err := url.Parse(parentURL)
		if err != nil || u.Path == "" {
			return "", "", false
		}
		dir := path.Dir(source.NormalizePath(u.Path))
		return source.NormalizePath(path.Join(dir, specifier)), query, true
	}
	return "", "", false
}

// candidates lists the paths to probe for a failed specifier: the
// written-as-plain substitution first (import "./x.js" finding x.ts), then
// extension-less candidates when the owning instance opted into
// experimental specifier resolution.
func (hk *hook) candidates(base string) []string {
	in := hk.reg.Resolve(base)
	if in == nil {
		return nil
	}

	var out []string
	for _, plain := range []string{".js", ".jsx"} {
		if !strings.HasSuffix(base, plain) {
			continue
		}
		stem := strings.TrimSuffix(base, plain)
		for _, typed := range []string{".ts", ".tsx"} {
			if in.Handles(stem + typed) {
				out = append(out, stem+typed)
			}
		}
	}

	if in.Config().ExperimentalSpecifierResolution && path.Ext(base) == "" {
		for _, ext := range in.Extensions() {
			out = append(out, base+ext)
		}
		out = append(out, base+".js", base+".jsx")
	}
	return out
}

// load compiles files an instance owns. Typed files under a "module"
// package descriptor compile to ESM; everything else is declared CommonJS
// and routed through the require protocol, which owns that compilation.
func (hk *hook) load(moduleURL string, lctx *host.LoadContext, next host.NextLoad) (host.LoadResult, error) {
	p, ok := urlPath(moduleURL)
	if !ok {
		return next(moduleURL, lctx)
	}

	in := hk.reg.Resolve(p)
	if in == nil || !in.Handles(p) || require.Ignored(in, p) {
		return next(moduleURL, lctx)
	}

	if hk.host.PackageType(path.Dir(p)) != "module" {
		return host.LoadResult{Format: "commonjs"}, nil
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return host.LoadResult{}, fmt.Errorf("read %s: %w", p, err)
	}
	art, err := in.Service().Compile(string(data), p, emit.ESM)
	if err != nil {
		return host.LoadResult{}, err
	}
	return host.LoadResult{Format: "module", Source: art.OutputText}, nil
}

func urlPath(moduleURL string) (string, bool) {
	u, err := url.Parse(moduleURL)
	if err != nil || (u.Scheme != "" && u.Scheme != "file") {
		return "", false
	}
	return source.NormalizePath(u.Path), true
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
