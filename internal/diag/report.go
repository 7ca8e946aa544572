package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"tsload/internal/source"
)

// ReportMarker prefixes every compile-failure report so that callers (and
// humans reading a mixed stderr stream) can tell a rejected compile from a
// runtime exception.
const ReportMarker = "Unable to compile typed source:"

var (
	errorColor      = color.New(color.FgRed, color.Bold)
	warningColor    = color.New(color.FgYellow)
	suggestionColor = color.New(color.FgCyan)
	codeColor       = color.New(color.FgHiBlack)
)

// ReportOptions controls rendering of a diagnostic report.
type ReportOptions struct {
	// Color enables ANSI severity coloring.
	Color bool
	// Context renders the offending source line with a caret underline.
	Context bool
}

// FormatReport renders diagnostics into the canonical multi-line report:
// a marker line followed by one line per diagnostic
// (path:line:col - severity TSxxxx: message), optionally with source context.
func FormatReport(diags []Diagnostic, fs *source.FileSet, opts ReportOptions) string {
	var sb strings.Builder
	sb.WriteString(ReportMarker)
	sb.WriteByte('\n')
	for _, d := range diags {
		writeReportLine(&sb, d, fs, opts)
	}
	return sb.String()
}

func writeReportLine(sb *strings.Builder, d Diagnostic, fs *source.FileSet, opts ReportOptions) {
	file := fs.Get(d.Primary.File)
	start, _ := fs.Resolve(d.Primary)

	sev := d.Severity.String()
	code := d.Code.ID()
	if opts.Color {
		sev = severityColor(d.Severity).Sprint(sev)
		code = codeColor.Sprint(code)
	}
	fmt.Fprintf(sb, "%s:%d:%d - %s %s: %s\n", file.Path, start.Line, start.Col, sev, code, d.Message)

	if opts.Context {
		writeContext(sb, d, file, start)
	}
	for _, n := range d.Notes {
		nf := fs.Get(n.Span.File)
		ns, _ := fs.Resolve(n.Span)
		fmt.Fprintf(sb, "  note: %s:%d:%d - %s\n", nf.Path, ns.Line, ns.Col, n.Msg)
	}
}

func writeContext(sb *strings.Builder, d Diagnostic, file *source.File, start source.LineCol) {
	line := file.GetLine(start.Line)
	if line == "" {
		return
	}
	fmt.Fprintf(sb, "  %s\n", line)

	// Подчёркивание должно учитывать ширину рун до начала спана.
	prefix := line
	if int(start.Col)-1 <= len(line) {
		prefix = line[:start.Col-1]
	}
	pad := runewidth.StringWidth(prefix)
	width := int(d.Primary.Len())
	if width < 1 {
		width = 1
	}
	if rest := len(line) - len(prefix); width > rest && rest > 0 {
		width = rest
	}
	fmt.Fprintf(sb, "  %s%s\n", strings.Repeat(" ", pad), strings.Repeat("~", width))
}

func severityColor(s Severity) *color.Color {
	switch s {
	case SevError:
		return errorColor
	case SevWarning:
		return warningColor
	default:
		return suggestionColor
	}
}
