package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"tsload"
)

// Имя проектного файла; ищется вверх от стартового каталога.
const projectFileName = "tsload.toml"

// projectFile is the on-disk shape of tsload.toml.
type projectFile struct {
	TranspileOnly     bool   `toml:"transpile_only"`
	IgnoreDiagnostics []int  `toml:"ignore_diagnostics"`
	PreferTSExts      bool   `toml:"prefer_ts_exts"`
	AllowJS           bool   `toml:"allow_js"`
	JSX               bool   `toml:"jsx"`
	Scope             string `toml:"scope"`
	DiskCache         bool   `toml:"disk_cache"`

	ExperimentalSpecifierResolution bool `toml:"experimental_specifier_resolution"`
}

// discoverProject walks upward from start looking for tsload.toml.
func discoverProject(start string) (string, bool) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, projectFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// loadProjectConfig resolves the effective configuration: project file first,
// then TSLOAD_* environment overrides on top. Core code never sees any of
// this machinery, only the resolved Config.
func loadProjectConfig(startDir string) (tsload.Config, error) {
	var cfg tsload.Config

	projectPath := os.Getenv("TSLOAD_PROJECT")
	skip := envBool("TSLOAD_SKIP_PROJECT")
	if projectPath == "" && !skip {
		if found, ok := discoverProject(startDir); ok {
			projectPath = found
		}
	}

	if projectPath != "" && !skip {
		var pf projectFile
		if _, err := toml.DecodeFile(projectPath, &pf); err != nil {
			return cfg, fmt.Errorf("failed to read %q: %w", projectPath, err)
		}
		cfg = configFromFile(projectPath, pf)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func configFromFile(path string, pf projectFile) tsload.Config {
	cfg := tsload.Config{
		Project:           path,
		TranspileOnly:     pf.TranspileOnly,
		IgnoreDiagnostics: pf.IgnoreDiagnostics,
		PreferTSExts:      pf.PreferTSExts,
		AllowJS:           pf.AllowJS,
		JSX:               pf.JSX,
		DiskCache:         pf.DiskCache,

		ExperimentalSpecifierResolution: pf.ExperimentalSpecifierResolution,
	}
	if pf.Scope != "" {
		scope := pf.Scope
		if !filepath.IsAbs(scope) {
			scope = filepath.Join(filepath.Dir(path), scope)
		}
		cfg.Scoped = true
		cfg.ScopeDir = scope
	}
	return cfg
}

// applyEnvOverrides layers TSLOAD_* variables over the file config. The
// environment wins: it is the per-invocation escape hatch.
func applyEnvOverrides(cfg *tsload.Config) {
	if v, ok := os.LookupEnv("TSLOAD_TRANSPILE_ONLY"); ok {
		cfg.TranspileOnly = parseBool(v)
	}
	if v, ok := os.LookupEnv("TSLOAD_PREFER_TS_EXTS"); ok {
		cfg.PreferTSExts = parseBool(v)
	}
	if v, ok := os.LookupEnv("TSLOAD_IGNORE_DIAGNOSTICS"); ok {
		cfg.IgnoreDiagnostics = parseCodeList(v)
	}
	if v, ok := os.LookupEnv("TSLOAD_COMPILER_OPTIONS"); ok {
		// Инлайн-TOML с теми же ключами, что и в tsload.toml.
		var pf projectFile
		if _, err := toml.Decode(v, &pf); err == nil {
			cfg.AllowJS = cfg.AllowJS || pf.AllowJS
			cfg.JSX = cfg.JSX || pf.JSX
			if pf.TranspileOnly {
				cfg.TranspileOnly = true
			}
		}
	}
}

func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	return ok && parseBool(v)
}

func parseBool(v string) bool {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func parseCodeList(v string) []int {
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(part), "TS"))
		if part == "" {
			continue
		}
		if code, err := strconv.Atoi(part); err == nil {
			out = append(out, code)
		}
	}
	return out
}
