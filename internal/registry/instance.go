// Package registry tracks every configured compiler instance in the process
// and decides which instance, if any, owns a given file. Multiple instances
// may coexist, each scoped to a directory subtree; resolution never mutates
// global dispatch state.
package registry

import (
	"path/filepath"
	"sort"
	"strings"

	"tsload/internal/service"
	"tsload/internal/source"
)

// Config is the resolved configuration of one compiler instance. It arrives
// fully merged from the configuration loader; nothing here reads project
// files or the environment.
type Config struct {
	// ScopeDir bounds the instance to a directory subtree. Empty means the
	// instance is global and acts as the fallback.
	ScopeDir string
	// TranspileOnly and IgnoreDiagnostics feed the compile pipeline.
	TranspileOnly     bool
	IgnoreDiagnostics []uint16
	// AllowJS and JSX widen the recognized-extension set.
	AllowJS bool
	JSX     bool
	// PreferTSExts makes extension-less resolution try typed extensions
	// before plain ones.
	PreferTSExts bool
	// ExcludeGlobs lists path patterns the hooks must never intercept.
	// Empty means the default dependency-directory exclusion.
	ExcludeGlobs []string
	// ExperimentalSpecifierResolution enables extension-less ESM
	// resolution after default resolution fails.
	ExperimentalSpecifierResolution bool
}

// Instance is one configured compiler. Identity is the configuration; the
// enabled flag is the only mutable part and gates load interception.
type Instance struct {
	cfg     Config
	enabled bool
	svc     *service.Service
	exts    map[string]struct{}
}

// NewInstance builds an enabled instance around a compilation service.
// The recognized-extension set is derived here and stays fixed for the
// instance lifetime, since the configuration is immutable.
func NewInstance(cfg Config, svc *service.Service) *Instance {
	cfg.ScopeDir = cleanScope(cfg.ScopeDir)
	return &Instance{
		cfg:     cfg,
		enabled: true,
		svc:     svc,
		exts:    extensionPolicy(cfg),
	}
}

func cleanScope(dir string) string {
	if dir == "" {
		return ""
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return source.NormalizePath(dir)
	}
	return source.NormalizePath(abs)
}

// extensionPolicy derives the fixed set of recognized extensions from the
// allowJs/jsx pair.
func extensionPolicy(cfg Config) map[string]struct{} {
	exts := map[string]struct{}{
		".ts":   {},
		".d.ts": {},
	}
	if cfg.JSX {
		exts[".tsx"] = struct{}{}
	}
	if cfg.AllowJS {
		exts[".js"] = struct{}{}
		if cfg.JSX {
			exts[".jsx"] = struct{}{}
		}
	}
	return exts
}

// Config returns the instance configuration.
func (in *Instance) Config() Config { return in.cfg }

// Service returns the instance's compilation service.
func (in *Instance) Service() *service.Service { return in.svc }

// Enabled reports whether the instance currently intercepts loads.
func (in *Instance) Enabled() bool { return in.enabled }

// SetEnabled toggles interception. Returns the previous value.
func (in *Instance) SetEnabled(v bool) bool {
	prev := in.enabled
	in.enabled = v
	return prev
}

// Global reports whether the instance is unscoped.
func (in *Instance) Global() bool { return in.cfg.ScopeDir == "" }

// Extensions returns the recognized extensions, sorted, longest first so
// that ".d.ts" shadows ".ts" during lookups.
func (in *Instance) Extensions() []string {
	out := make([]string, 0, len(in.exts))
	for ext := range in.exts {
		out = append(out, ext)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// Handles reports whether the path's extension is in the instance's
// recognized set.
func (in *Instance) Handles(path string) bool {
	if strings.HasSuffix(path, ".d.ts") {
		_, ok := in.exts[".d.ts"]
		return ok
	}
	_, ok := in.exts[filepath.Ext(path)]
	return ok
}
