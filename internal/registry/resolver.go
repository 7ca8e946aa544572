package registry

import (
	"path/filepath"
	"strings"

	"tsload/internal/source"
)

// Registry holds every registered instance in registration order.
type Registry struct {
	instances []*Instance
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers an instance. Instances live for the process lifetime;
// disabling, not removal, is the supported off switch.
func (r *Registry) Add(in *Instance) {
	r.instances = append(r.instances, in)
}

// Instances returns the registered instances in registration order.
func (r *Registry) Instances() []*Instance {
	return r.instances
}

// Resolve picks the instance responsible for the file, or nil when the file
// is unmanaged and belongs to the host's default loader.
//
// Among scoped instances whose scope directory is an ancestor of the path,
// the deepest scope wins. A global instance is the fallback. Disabled
// instances never win regardless of specificity.
func (r *Registry) Resolve(filePath string) *Instance {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		abs = filePath
	}
	path := source.NormalizePath(abs)

	var best *Instance
	bestDepth := -1
	var global *Instance
	for _, in := range r.instances {
		if !in.Enabled() {
			continue
		}
		if in.Global() {
			if global == nil {
				global = in
			}
			continue
		}
		scope := in.cfg.ScopeDir
		if !underDir(path, scope) {
			continue
		}
		depth := strings.Count(scope, "/")
		if depth > bestDepth {
			best = in
			bestDepth = depth
		}
	}
	if best != nil {
		return best
	}
	return global
}

// underDir reports whether path lies inside dir (both normalized).
func underDir(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	return strings.HasPrefix(path, dir)
}
