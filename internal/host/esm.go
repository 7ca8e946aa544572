package host

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"tsload/internal/ast"
	"tsload/internal/source"
)

// ResolveContext carries the resolution inputs a hook may inspect.
type ResolveContext struct {
	ParentURL  string
	Conditions []string
}

// ResolveResult is the outcome of specifier resolution: a fully resolved
// URL (query string preserved) and an optional format short-cut.
type ResolveResult struct {
	URL          string
	Format       string
	ShortCircuit bool
}

// NextResolve invokes the rest of the resolve chain.
type NextResolve func(specifier string, rctx *ResolveContext) (ResolveResult, error)

// ResolveHook intercepts specifier resolution. A hook either answers
// directly or delegates to next; errors from next must propagate unmodified
// unless the hook can genuinely resolve the specifier itself.
type ResolveHook func(specifier string, rctx *ResolveContext, next NextResolve) (ResolveResult, error)

// LoadContext carries the format hint from resolution into loading.
type LoadContext struct {
	Format string
}

// LoadResult is executable source plus its final format.
type LoadResult struct {
	Format       string
	Source       string
	ShortCircuit bool
}

type NextLoad func(moduleURL string, lctx *LoadContext) (LoadResult, error)

// LoadHook intercepts module loading after resolution.
type LoadHook func(moduleURL string, lctx *LoadContext, next NextLoad) (LoadResult, error)

// AddResolveHook registers a resolve hook. Hooks run in registration order;
// the default resolver is always the innermost step.
func (h *Host) AddResolveHook(hook ResolveHook) {
	h.resolveHooks = append(h.resolveHooks, hook)
}

// AddLoadHook registers a load hook ahead of the default loader.
func (h *Host) AddLoadHook(hook LoadHook) {
	h.loadHooks = append(h.loadHooks, hook)
}

func (h *Host) resolveChain() NextResolve {
	next := h.defaultResolve
	for i := len(h.resolveHooks) - 1; i >= 0; i-- {
		hook := h.resolveHooks[i]
		inner := next
		next = func(specifier string, rctx *ResolveContext) (ResolveResult, error) {
			return hook(specifier, rctx, inner)
		}
	}
	return next
}

func (h *Host) loadChain() NextLoad {
	next := h.defaultLoad
	for i := len(h.loadHooks) - 1; i >= 0; i-- {
		hook := h.loadHooks[i]
		inner := next
		next = func(moduleURL string, lctx *LoadContext) (LoadResult, error) {
			return hook(moduleURL, lctx, inner)
		}
	}
	return next
}

// Import loads specifier through the ESM protocol and returns the module
// namespace. The instance cache is keyed by the full resolved URL including
// any query string, so ?v=N busts the cache on purpose.
func (h *Host) Import(ctx context.Context, specifier, parentURL string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := h.resolveChain()(specifier, &ResolveContext{ParentURL: parentURL})
	if err != nil {
		return nil, err
	}

	if m, ok := h.esmModules[res.URL]; ok {
		return m.Exports, nil
	}

	loaded, err := h.loadChain()(res.URL, &LoadContext{Format: res.Format})
	if err != nil {
		return nil, err
	}

	filePath, err := fileURLPath(res.URL)
	if err != nil {
		return nil, err
	}

	if loaded.Format == "commonjs" {
		exports, err := h.Require(filePath, path.Dir(filePath))
		if err != nil {
			return nil, err
		}
		m := &Module{Path: filePath, Exports: exports, loaded: true}
		h.esmModules[res.URL] = m
		return exports, nil
	}

	m := &Module{Path: filePath, Exports: NewObject()}
	h.esmModules[res.URL] = m
	if err := h.execESM(ctx, m, res.URL, loaded.Source); err != nil {
		delete(h.esmModules, res.URL)
		return nil, err
	}
	m.loaded = true
	return m.Exports, nil
}

// defaultResolve handles file URLs and paths only. Its errors are part of
// the protocol: hooks that delegate here must pass them through so that
// callers see the canonical codes.
func (h *Host) defaultResolve(specifier string, rctx *ResolveContext) (ResolveResult, error) {
	u, err := resolveURL(specifier, rctx.ParentURL)
	if err != nil {
		return ResolveResult{}, err
	}
	p, err := fileURLPath(u)
	if err != nil {
		return ResolveResult{}, err
	}
	if !fileExists(p) {
		return ResolveResult{}, &ResolutionError{
			Code:      CodeModuleNotFound,
			Specifier: specifier,
			Msg:       fmt.Sprintf("Cannot find module '%s' imported from %s", specifier, rctx.ParentURL),
		}
	}
	return ResolveResult{URL: u, Format: h.esmFormat(p)}, nil
}

// esmFormat is the format the default loader would assign: plain files
// follow the nearest package descriptor and default to CommonJS; anything
// else is left for hooks to claim.
func (h *Host) esmFormat(p string) string {
	switch extOf(p) {
	case ".js", ".jsx":
		if t := h.PackageType(path.Dir(p)); t != "" {
			return t
		}
		return "commonjs"
	}
	return ""
}

func (h *Host) defaultLoad(moduleURL string, lctx *LoadContext) (LoadResult, error) {
	p, err := fileURLPath(moduleURL)
	if err != nil {
		return LoadResult{}, err
	}
	switch extOf(p) {
	case ".js", ".jsx":
	default:
		return LoadResult{}, &ResolutionError{
			Code:      CodeUnknownExtension,
			Specifier: moduleURL,
			Msg:       fmt.Sprintf("Unknown file extension %q for %s", extOf(p), p),
		}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return LoadResult{}, &ResolutionError{
			Code:      CodeModuleNotFound,
			Specifier: moduleURL,
			Msg:       fmt.Sprintf("Cannot find module '%s'", p),
		}
	}
	format := lctx.Format
	if format == "" {
		format = h.esmFormat(p)
	}
	return LoadResult{Format: format, Source: string(data)}, nil
}

// execESM runs module source: imports bind first (loading their modules
// recursively), then the body executes, then exported names are copied into
// the namespace.
func (h *Host) execESM(ctx context.Context, m *Module, moduleURL, text string) error {
	file, stmts, err := h.parse(m.Path, text)
	if err != nil {
		return err
	}

	env := NewEnv(h.globals)
	body := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		imp, ok := s.(*ast.ImportDecl)
		if !ok {
			body = append(body, s)
			continue
		}
		ns, err := h.Import(ctx, imp.From.Value, moduleURL)
		if err != nil {
			return err
		}
		for _, name := range imp.Names {
			v, present := ns.Props[name.Name]
			if !present {
				v = Undefined
			}
			env.Define(name.Name, v, true)
		}
	}

	interp := newInterp(h, file, m.Path)
	if _, err := interp.Run(body, env); err != nil {
		if re, ok := err.(*RuntimeError); ok {
			re.Remap(h.maps)
		}
		return err
	}

	for _, s := range body {
		name, exported := ast.Exported(s)
		if !exported {
			continue
		}
		if v, ok := env.Lookup(name); ok {
			m.Exports.Props[name] = v
		}
	}
	return nil
}

// resolveURL turns a specifier plus parent URL into an absolute file URL
// string, keeping any query. Non-file schemes are rejected with the
// canonical unsupported-scheme error.
func resolveURL(specifier, parentURL string) (string, error) {
	if strings.HasPrefix(specifier, "/") {
		return "file://" + specifier, nil
	}
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		if parentURL == "" {
			return "", &ResolutionError{
				Code:      CodeModuleNotFound,
				Specifier: specifier,
				Msg:       fmt.Sprintf("Cannot find module '%s'", specifier),
			}
		}
		base, err := url.Parse(parentURL)
		if err != nil {
			return "", err
		}
		ref, err := url.Parse(specifier)
		if err != nil {
			return "", err
		}
		return base.ResolveReference(ref).String(), nil
	}
	u, err := url.Parse(specifier)
	if err == nil && u.Scheme != "" {
		if u.Scheme != "file" {
			return "", &ResolutionError{
				Code:      CodeUnsupportedScheme,
				Specifier: specifier,
				Msg: fmt.Sprintf("Only URLs with a scheme in: file are supported by the default ESM loader. Received protocol '%s:'",
					u.Scheme),
			}
		}
		return specifier, nil
	}
	return "", &ResolutionError{
		Code:      CodeModuleNotFound,
		Specifier: specifier,
		Msg:       fmt.Sprintf("Cannot find module '%s' imported from %s", specifier, parentURL),
	}
}

// fileURLPath extracts the normalized filesystem path from a file URL,
// dropping the query.
func fileURLPath(moduleURL string) (string, error) {
	u, err := url.Parse(moduleURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", &ResolutionError{
			Code:      CodeUnsupportedScheme,
			Specifier: moduleURL,
			Msg: fmt.Sprintf("Only URLs with a scheme in: file are supported by the default ESM loader. Received protocol '%s:'",
				u.Scheme),
		}
	}
	return source.NormalizePath(u.Path), nil
}

// FileURL converts a filesystem path into a file URL string for use as a
// parent URL.
func FileURL(p string) string {
	return "file://" + source.NormalizePath(p)
}
