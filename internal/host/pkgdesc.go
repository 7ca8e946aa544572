package host

import (
	"os"
	"path"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"tsload/internal/source"
)

// packageDesc is the subset of package.toml the loader cares about.
type packageDesc struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// PackageType reports the module format governing plain files in dir:
// "module", "commonjs", or "" when no descriptor in dir or any ancestor
// declares one. Lookups are cached per directory; a malformed descriptor
// counts as no declaration.
func (h *Host) PackageType(dir string) string {
	dir = source.NormalizePath(dir)
	if t, ok := h.pkgTypes[dir]; ok {
		return t
	}

	t := ""
	for cur := dir; ; {
		desc := filepath.Join(filepath.FromSlash(cur), "package.toml")
		if data, err := os.ReadFile(desc); err == nil {
			var pd packageDesc
			if toml.Unmarshal(data, &pd) == nil {
				if pd.Type == "module" || pd.Type == "commonjs" {
					t = pd.Type
				}
			}
			break
		}
		parent := path.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}

	h.pkgTypes[dir] = t
	return t
}
