// Package host is the script host: a tree-walking evaluator for the plain
// dialect plus the CommonJS and ESM module loaders the compile hooks plug
// into. The host keeps its own file set for executed text so that emitted
// output never advances source versions on the compilation side.
package host

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"tsload/internal/ast"
	"tsload/internal/diag"
	"tsload/internal/parser"
	"tsload/internal/source"
	"tsload/internal/sourcemap"
)

// Module is one loaded CommonJS module. Exports is populated while the body
// runs, so cyclic requires observe a partial exports object.
type Module struct {
	Path    string
	Exports *Object
	loaded  bool
}

// Handler loads and executes one module file. The extension table maps file
// extensions to handlers; compile hooks install themselves here.
type Handler func(h *Host, m *Module, filename string) error

type Host struct {
	fs     *source.FileSet
	maps   *sourcemap.Index
	stdout io.Writer
	stderr io.Writer

	globals    *Env
	modules    map[string]*Module
	esmModules map[string]*Module
	extensions map[string]Handler

	resolveHooks []ResolveHook
	loadHooks    []LoadHook

	pkgTypes map[string]string

	preferTS bool
}

func NewHost(stdout, stderr io.Writer, maps *sourcemap.Index) *Host {
	if maps == nil {
		maps = sourcemap.NewIndex()
	}
	h := &Host{
		fs:         source.NewFileSet(),
		maps:       maps,
		stdout:     stdout,
		stderr:     stderr,
		modules:    make(map[string]*Module),
		esmModules: make(map[string]*Module),
		extensions: make(map[string]Handler),
		pkgTypes:   make(map[string]string),
	}
	h.globals = builtinEnv(h)
	h.extensions[".js"] = defaultCJSHandler
	h.extensions[".jsx"] = defaultCJSHandler
	return h
}

// Maps returns the source-map index used for stack rewriting.
func (h *Host) Maps() *sourcemap.Index { return h.maps }

// SetPreferTypedExtensions switches extension-less resolution to try typed
// extensions before plain ones.
func (h *Host) SetPreferTypedExtensions(v bool) { h.preferTS = v }

// Extension returns the installed handler for ext, nil when none.
func (h *Host) Extension(ext string) Handler { return h.extensions[ext] }

// InstallExtension installs a handler and returns the previous one so the
// caller can restore it later.
func (h *Host) InstallExtension(ext string, fn Handler) Handler {
	prev := h.extensions[ext]
	if fn == nil {
		delete(h.extensions, ext)
	} else {
		h.extensions[ext] = fn
	}
	return prev
}

// intern records text under path in the host's file set, reusing the latest
// version when the content matches.
func (h *Host) intern(p, text string) *source.File {
	norm := source.NormalizePath(p)
	if id, ok := h.fs.GetLatest(norm); ok {
		f := h.fs.Get(id)
		if f.Hash == sha256.Sum256([]byte(text)) {
			return f
		}
	}
	return h.fs.Get(h.fs.AddVirtual(norm, []byte(text)))
}

// parse parses text as the plain dialect. Syntax errors surface as a
// rendered report error.
func (h *Host) parse(p, text string) (*source.File, []ast.Stmt, error) {
	file := h.intern(p, text)
	bag := diag.NewBag(16)
	unit := parser.ParseUnit(file, diag.BagReporter{Bag: bag})
	if bag.HasErrors() {
		bag.Sort()
		return nil, nil, fmt.Errorf("%s", diag.FormatReport(bag.Items(), h.fs, diag.ReportOptions{}))
	}
	return file, unit.Stmts, nil
}

// Require loads specifier as CommonJS relative to fromDir and returns its
// exports. The module cache is keyed by resolved absolute path; a module is
// inserted before its body runs so that cycles terminate.
func (h *Host) Require(specifier, fromDir string) (*Object, error) {
	resolved, err := h.resolveRequire(specifier, fromDir)
	if err != nil {
		return nil, err
	}

	if format := h.fileFormat(resolved); format == "module" {
		return nil, &ResolutionError{
			Code:      CodeRequireESM,
			Specifier: specifier,
			Msg:       fmt.Sprintf("require() of ES Module %s is not supported.", resolved),
		}
	}

	if m, ok := h.modules[resolved]; ok {
		return m.Exports, nil
	}

	m := &Module{Path: resolved, Exports: NewObject()}
	h.modules[resolved] = m

	handler := h.extensions[extOf(resolved)]
	if handler == nil {
		handler = defaultCJSHandler
	}
	if err := handler(h, m, resolved); err != nil {
		delete(h.modules, resolved)
		return nil, err
	}
	m.loaded = true
	return m.Exports, nil
}

// fileFormat reports the package-descriptor format governing a plain file.
// Typed extensions always load as CommonJS through require, whatever the
// nearest descriptor says.
func (h *Host) fileFormat(resolved string) string {
	switch extOf(resolved) {
	case ".js", ".jsx":
		return h.PackageType(path.Dir(resolved))
	}
	return ""
}

func extOf(p string) string {
	if strings.HasSuffix(p, ".d.ts") {
		return ".d.ts"
	}
	return path.Ext(p)
}

// resolveRequire maps a specifier to an existing file. Bare specifiers are
// not supported by the host; only relative and absolute paths resolve.
func (h *Host) resolveRequire(specifier, fromDir string) (string, error) {
	if !strings.HasPrefix(specifier, "./") && !strings.HasPrefix(specifier, "../") && !filepath.IsAbs(specifier) {
		return "", &ResolutionError{
			Code:      CodeModuleNotFound,
			Specifier: specifier,
			Msg:       fmt.Sprintf("Cannot find module '%s'", specifier),
		}
	}
	base := specifier
	if !filepath.IsAbs(base) {
		base = filepath.Join(fromDir, specifier)
	}
	base = source.NormalizePath(base)

	if fileExists(base) {
		return base, nil
	}
	for _, ext := range h.candidateExts() {
		if fileExists(base + ext) {
			return base + ext, nil
		}
	}
	return "", &ResolutionError{
		Code:      CodeModuleNotFound,
		Specifier: specifier,
		Msg:       fmt.Sprintf("Cannot find module '%s'", specifier),
	}
}

// candidateExts is the extension probe order for extension-less specifiers.
func (h *Host) candidateExts() []string {
	if h.preferTS {
		return []string{".ts", ".tsx", ".d.ts", ".js", ".jsx"}
	}
	return []string{".js", ".jsx", ".ts", ".tsx", ".d.ts"}
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// RunCJS executes already-produced plain text as the module body. Compile
// hooks call this with emitted output; the default handler calls it with
// file contents verbatim.
func (h *Host) RunCJS(m *Module, filename, text string) error {
	file, stmts, err := h.parse(filename, text)
	if err != nil {
		return err
	}

	env := h.moduleEnv(m, filename)
	interp := newInterp(h, file, m.Path)
	if _, err := interp.Run(stmts, env); err != nil {
		if re, ok := err.(*RuntimeError); ok {
			re.Remap(h.maps)
		}
		return err
	}
	return nil
}

// moduleEnv builds the per-module environment: exports, module, require,
// __filename and __dirname over the shared builtin globals.
func (h *Host) moduleEnv(m *Module, filename string) *Env {
	env := NewEnv(h.globals)
	dir := path.Dir(source.NormalizePath(filename))

	moduleObj := NewObject()
	moduleObj.Props["exports"] = m.Exports
	moduleObj.Props["path"] = dir

	env.Define("exports", m.Exports, true)
	env.Define("module", moduleObj, true)
	env.Define("__filename", source.NormalizePath(filename), true)
	env.Define("__dirname", dir, true)
	env.Define("require", &Builtin{
		Name: "require",
		Fn: func(args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("require expects exactly one argument")
			}
			spec, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("require expects a string specifier")
			}
			exports, err := h.Require(spec, dir)
			if err != nil {
				return nil, err
			}
			return exports, nil
		},
	}, true)
	return env
}

// DefaultCJS is the stock plain-file handler. Compile hooks that decline a
// file delegate here.
var DefaultCJS Handler = defaultCJSHandler

func defaultCJSHandler(h *Host, m *Module, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return &ResolutionError{
			Code:      CodeModuleNotFound,
			Specifier: filename,
			Msg:       fmt.Sprintf("Cannot find module '%s'", filename),
		}
	}
	return h.RunCJS(m, filename, string(data))
}
