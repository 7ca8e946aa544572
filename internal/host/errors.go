package host

import (
	"fmt"
	"strings"

	"tsload/internal/sourcemap"
)

// Resolution error codes, mirroring the host loader's canonical names.
const (
	CodeModuleNotFound    = "ERR_MODULE_NOT_FOUND"
	CodeUnsupportedScheme = "ERR_UNSUPPORTED_ESM_URL_SCHEME"
	CodeRequireESM        = "ERR_REQUIRE_ESM"
	CodeUnknownExtension  = "ERR_UNKNOWN_FILE_EXTENSION"
)

// ResolutionError means a specifier could not be mapped to a loadable file,
// or was mapped to a file the requesting protocol must not execute.
type ResolutionError struct {
	Code      string
	Specifier string
	Msg       string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Frame is one stack entry. Positions start out in generated coordinates
// and are rewritten to original ones before the error escapes the host.
type Frame struct {
	Func string
	Path string
	Line uint32
	Col  uint32
}

func (f Frame) String() string {
	name := f.Func
	if name == "" {
		name = "<module>"
	}
	return fmt.Sprintf("    at %s (%s:%d:%d)", name, f.Path, f.Line, f.Col)
}

// RuntimeError is a thrown value plus the call stack at the throw site.
type RuntimeError struct {
	Value    Value
	Frames   []Frame
	remapped bool
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString(FormatValue(e.Value, false))
	for _, f := range e.Frames {
		sb.WriteByte('\n')
		sb.WriteString(f.String())
	}
	return sb.String()
}

func throwText(msg string, frames []Frame) *RuntimeError {
	return &RuntimeError{Value: msg, Frames: frames}
}

// Remap rewrites every frame's generated position into the original source
// position using the index. Frames without a registered map pass through
// unchanged. Remapping is idempotent.
func (e *RuntimeError) Remap(ix *sourcemap.Index) {
	if e.remapped || ix == nil {
		return
	}
	for i := range e.Frames {
		f := &e.Frames[i]
		src, line, col, ok := ix.Remap(f.Path, f.Line, f.Col)
		if ok {
			f.Path = src
			f.Line = line
			f.Col = col
		}
	}
	e.remapped = true
}
