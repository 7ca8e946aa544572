package service

import (
	"tsload/internal/diag"
	"tsload/internal/emit"
	"tsload/internal/sourcemap"
)

// Artifact is one successful compile of one file version. OutputText already
// carries the trailing inline source-map comment.
type Artifact struct {
	Path       string
	Version    uint64
	Hash       [32]byte
	Format     emit.Format
	OutputText string
	SourceMap  *sourcemap.Document
	// Diags holds surviving non-blocking diagnostics (warnings and
	// suggestions that made it past filtering).
	Diags []diag.Diagnostic
}

type cacheKey struct {
	path    string
	version uint64
	format  emit.Format
}
