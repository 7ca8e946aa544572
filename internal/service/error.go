package service

import (
	"tsload/internal/diag"
	"tsload/internal/source"
)

// CompileError carries the blocking diagnostics of a rejected compile.
// Error() renders the canonical multi-line report so the error is readable
// even when it escapes all the way to the host's top-level handler.
type CompileError struct {
	Diagnostics []diag.Diagnostic
	fs          *source.FileSet
}

func (e *CompileError) Error() string {
	return diag.FormatReport(e.Diagnostics, e.fs, diag.ReportOptions{})
}

// Report renders the error with explicit options (color, source context).
func (e *CompileError) Report(opts diag.ReportOptions) string {
	return diag.FormatReport(e.Diagnostics, e.fs, opts)
}
