// Package tsload compiles typed-script files at load time and executes them
// on the embedded script host. Register wires a compiler instance into the
// host's module protocols; Create builds a standalone instance for tooling
// that drives compilation directly.
package tsload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"tsload/internal/emit"
	"tsload/internal/esm"
	"tsload/internal/host"
	"tsload/internal/registry"
	"tsload/internal/repl"
	"tsload/internal/require"
	"tsload/internal/service"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

// Config is a fully resolved instance configuration. Project-file discovery
// and environment overrides happen in cmd; nothing here reads the
// environment.
type Config struct {
	// Project records where the configuration came from, for reporting only.
	Project string
	// ScopeDir bounds interception to a subtree when Scoped is set.
	ScopeDir string
	Scoped   bool

	TranspileOnly     bool
	IgnoreDiagnostics []int
	PreferTSExts      bool
	AllowJS           bool
	JSX               bool

	ExperimentalSpecifierResolution bool

	// DiskCache enables the persistent artifact cache.
	DiskCache bool
}

// TypeInfo is the public quick-info shape.
type TypeInfo struct {
	Name string
	Type string
	Doc  string
}

// Handle exposes one registered or standalone instance.
type Handle struct {
	inst *registry.Instance
	host *host.Host
	hook *require.Hook
}

// Process-wide dispatch state: one registry and one host shared by every
// Register call, so scoped instances coexist.
var (
	sharedReg  *registry.Registry
	sharedHost *host.Host
	sharedHook *require.Hook
)

func sharedState() (*registry.Registry, *host.Host) {
	if sharedReg == nil {
		sharedReg = registry.NewRegistry()
		sharedHost = host.NewHost(os.Stdout, os.Stderr, sourcemap.NewIndex())
	}
	return sharedReg, sharedHost
}

// Register builds an instance from cfg, adds it to the process registry and
// installs the require and ESM hooks into the shared host.
func Register(cfg Config) (*Handle, error) {
	reg, h := sharedState()

	in, err := newInstance(cfg, h.Maps())
	if err != nil {
		return nil, err
	}
	reg.Add(in)

	// Хуки ставятся один раз; повторная установка замкнула бы таблицу
	// расширений на саму себя.
	if sharedHook != nil {
		sharedHook.Restore()
	}
	sharedHook = require.Install(h, reg)
	if len(reg.Instances()) == 1 {
		esm.Install(h, reg)
	}

	return &Handle{inst: in, host: h, hook: sharedHook}, nil
}

// Create builds a standalone instance with its own host and no hook
// installation. Useful for batch tooling and tests.
func Create(cfg Config) (*Handle, error) {
	maps := sourcemap.NewIndex()
	in, err := newInstance(cfg, maps)
	if err != nil {
		return nil, err
	}
	return &Handle{inst: in, host: host.NewHost(os.Stdout, os.Stderr, maps)}, nil
}

// CreateRepl builds the interactive loop over a fresh standalone instance.
// The streams are the loop's only I/O, so embedders and tests can drive it
// with buffers instead of the process streams.
func CreateRepl(cfg Config, stdin io.Reader, stdout, stderr io.Writer) (*repl.Repl, error) {
	handle, err := Create(cfg)
	if err != nil {
		return nil, err
	}
	r := repl.New(stdin, stdout, stderr)
	r.SetService(handle.inst)
	return r, nil
}

func newInstance(cfg Config, maps *sourcemap.Index) (*registry.Instance, error) {
	scope := ""
	if cfg.Scoped {
		if cfg.ScopeDir == "" {
			return nil, fmt.Errorf("tsload: scoped instance requires a scope directory")
		}
		scope = cfg.ScopeDir
	}

	ignore := make([]uint16, 0, len(cfg.IgnoreDiagnostics))
	for _, code := range cfg.IgnoreDiagnostics {
		if code < 0 || code > 0xFFFF {
			return nil, fmt.Errorf("tsload: diagnostic code %d out of range", code)
		}
		ignore = append(ignore, uint16(code))
	}

	svc := service.New(source.NewFileSet(), maps, service.Options{
		TranspileOnly:     cfg.TranspileOnly,
		IgnoreDiagnostics: ignore,
	})
	if cfg.DiskCache {
		if dc, err := service.OpenDiskCache("tsload"); err == nil {
			svc.SetDiskCache(dc)
		}
	}

	return registry.NewInstance(registry.Config{
		ScopeDir:                        scope,
		TranspileOnly:                   cfg.TranspileOnly,
		IgnoreDiagnostics:               ignore,
		AllowJS:                         cfg.AllowJS,
		JSX:                             cfg.JSX,
		PreferTSExts:                    cfg.PreferTSExts,
		ExperimentalSpecifierResolution: cfg.ExperimentalSpecifierResolution,
	}, svc), nil
}

// Enabled toggles load interception for the instance and returns the
// previous value. Disabling is pass-through, never an error.
func (h *Handle) Enabled(v bool) bool {
	return h.inst.SetEnabled(v)
}

// IsEnabled reports the current interception state without changing it.
func (h *Handle) IsEnabled() bool {
	return h.inst.Enabled()
}

// Compile compiles source text for fileName and returns the emitted plain
// script with its trailing inline source map.
func (h *Handle) Compile(code, fileName string) (string, error) {
	art, err := h.inst.Service().Compile(code, fileName, emit.CommonJS)
	if err != nil {
		return "", err
	}
	return art.OutputText, nil
}

// GetTypeInfo reports the symbol under the byte position in code.
func (h *Handle) GetTypeInfo(code, fileName string, position int) TypeInfo {
	if position < 0 {
		return TypeInfo{}
	}
	qi := h.inst.Service().GetTypeInfo(code, fileName, uint32(position))
	return TypeInfo{Name: qi.Name, Type: qi.Type, Doc: qi.Doc}
}

// Ignored reports whether the instance's exclusion rules leave the file to
// the default loader.
func (h *Handle) Ignored(filePath string) bool {
	return require.Ignored(h.inst, filePath)
}

// Instance exposes the underlying registry instance.
func (h *Handle) Instance() *registry.Instance { return h.inst }

// Host exposes the script host bound to the handle.
func (h *Handle) Host() *host.Host { return h.host }

// RunFile loads and executes path as the program entry point, picking the
// module protocol from the nearest package descriptor.
func (h *Handle) RunFile(ctx context.Context, filePath string) error {
	abs := source.NormalizePath(filePath)
	if h.host.PackageType(path.Dir(abs)) == "module" {
		_, err := h.host.Import(ctx, host.FileURL(abs), "")
		return err
	}
	_, err := h.host.Require(abs, path.Dir(abs))
	return err
}
