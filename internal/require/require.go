// Package require is the require-protocol hook: it splices compilation into
// the host's CommonJS extension table. Installation is reversible and keeps
// the displaced handlers so that Restore puts the table back exactly as it
// was.
package require

import (
	"fmt"
	"os"
	"path"
	"strings"

	"tsload/internal/emit"
	"tsload/internal/host"
	"tsload/internal/registry"
	"tsload/internal/source"
)

// Hook is one installed require-protocol interception.
type Hook struct {
	host      *host.Host
	reg       *registry.Registry
	saved     map[string]host.Handler
	installed bool
}

// Install registers a compile handler for every extension any registered
// instance recognizes. Dispatch is per file: at load time the registry picks
// the owning instance, and files nobody owns fall through to the displaced
// handler.
func Install(h *host.Host, reg *registry.Registry) *Hook {
	hook := &Hook{
		host:  h,
		reg:   reg,
		saved: make(map[string]host.Handler),
	}

	exts := make(map[string]struct{})
	for _, in := range reg.Instances() {
		for _, ext := range in.Extensions() {
			exts[ext] = struct{}{}
		}
		if in.Config().PreferTSExts {
			h.SetPreferTypedExtensions(true)
		}
	}
	for ext := range exts {
		hook.saved[ext] = h.InstallExtension(ext, hook.handler())
	}
	hook.installed = true
	return hook
}

// Restore reinstates the displaced handlers. Safe to call twice.
func (hk *Hook) Restore() {
	if !hk.installed {
		return
	}
	for ext, prev := range hk.saved {
		hk.host.InstallExtension(ext, prev)
	}
	hk.installed = false
}

func (hk *Hook) handler() host.Handler {
	return func(h *host.Host, m *host.Module, filename string) error {
		in := hk.reg.Resolve(filename)
		if in == nil || !in.Handles(filename) || Ignored(in, filename) {
			return hk.fallthroughLoad(h, m, filename)
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("read %s: %w", filename, err)
		}

		art, err := in.Service().Compile(string(data), filename, emit.CommonJS)
		if err != nil {
			return err
		}
		return h.RunCJS(m, filename, art.OutputText)
	}
}

// fallthroughLoad hands an unowned file to whatever handled its extension
// before installation.
func (hk *Hook) fallthroughLoad(h *host.Host, m *host.Module, filename string) error {
	if prev := hk.saved[hostExt(filename)]; prev != nil {
		return prev(h, m, filename)
	}
	return host.DefaultCJS(h, m, filename)
}

func hostExt(p string) string {
	if strings.HasSuffix(p, ".d.ts") {
		return ".d.ts"
	}
	return path.Ext(p)
}

// Ignored reports whether the instance must leave the file alone. With no
// configured globs the default exclusion covers dependency directories.
func Ignored(in *registry.Instance, filePath string) bool {
	p := source.NormalizePath(filePath)
	globs := in.Config().ExcludeGlobs
	if len(globs) == 0 {
		return strings.Contains(p, "/node_modules/") || strings.Contains(p, "/vendor/")
	}
	for _, g := range globs {
		if matchGlob(g, p) {
			return true
		}
	}
	return false
}

// matchGlob matches pattern against the path or any of its suffix segments,
// so "dist/*" excludes dist anywhere in the tree.
func matchGlob(pattern, p string) bool {
	if ok, err := path.Match(pattern, p); err == nil && ok {
		return true
	}
	segs := strings.Split(p, "/")
	for i := range segs {
		sub := strings.Join(segs[i:], "/")
		if ok, err := path.Match(pattern, sub); err == nil && ok {
			return true
		}
	}
	return false
}
