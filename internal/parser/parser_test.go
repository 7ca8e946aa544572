package parser

import (
	"testing"

	"tsload/internal/ast"
	"tsload/internal/diag"
	"tsload/internal/source"
)

func parse(t *testing.T, src string) (*ast.Unit, *source.File, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("test.ts", []byte(src)))
	bag := diag.NewBag(16)
	unit := ParseUnit(file, diag.BagReporter{Bag: bag})
	return unit, file, bag
}

func spanText(file *source.File, sp source.Span) string {
	return string(file.Content[sp.Start:sp.End])
}

func TestParseVarDeclWithAnnotation(t *testing.T) {
	unit, file, bag := parse(t, `let count: number = 42;`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if len(unit.Stmts) != 1 {
		t.Fatalf("got %d statements", len(unit.Stmts))
	}
	d, ok := unit.Stmts[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected VarDecl, got %T", unit.Stmts[0])
	}
	if d.Kind != ast.DeclLet || d.Name.Name != "count" {
		t.Fatalf("decl %v %q", d.Kind, d.Name.Name)
	}
	// Спан аннотации покрывает двоеточие и имя типа: стирание это и есть спан.
	if got := spanText(file, d.TypeSpan); got != ": number" {
		t.Fatalf("TypeSpan covers %q", got)
	}
	if _, ok := d.Init.(*ast.NumberLit); !ok {
		t.Fatalf("init %T", d.Init)
	}
}

func TestParseConstWithoutAnnotation(t *testing.T) {
	unit, _, bag := parse(t, `const name = "ada"`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	d := unit.Stmts[0].(*ast.VarDecl)
	if d.Kind != ast.DeclConst {
		t.Fatalf("kind %v", d.Kind)
	}
	if !d.TypeSpan.Empty() {
		t.Fatalf("unannotated decl must have an empty TypeSpan")
	}
}

func TestParseConstRequiresInitializer(t *testing.T) {
	_, _, bag := parse(t, `const x: number;`)
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.SynMissingInitializer {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", diag.SynMissingInitializer, bag.Items())
	}
}

func TestParseExportSpanIncludesTrailingSpace(t *testing.T) {
	unit, file, bag := parse(t, `export const limit = 10;`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	d := unit.Stmts[0].(*ast.VarDecl)
	if got := spanText(file, d.ExportSpan); got != "export " {
		t.Fatalf("ExportSpan covers %q", got)
	}
	name, exported := ast.Exported(d)
	if !exported || name != "limit" {
		t.Fatalf("Exported = %q, %v", name, exported)
	}
}

func TestParseFuncDeclSpans(t *testing.T) {
	src := `function add(a: number, b: number): number { return a + b; }`
	unit, file, bag := parse(t, src)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	fd := unit.Stmts[0].(*ast.FuncDecl)
	if len(fd.Params) != 2 {
		t.Fatalf("params %d", len(fd.Params))
	}
	if got := spanText(file, fd.Params[0].TypeSpan); got != ": number" {
		t.Fatalf("param TypeSpan %q", got)
	}
	if got := spanText(file, fd.RetSpan); got != ": number" {
		t.Fatalf("RetSpan %q", got)
	}
	if got := spanText(file, fd.DeclSpan); got != src {
		t.Fatalf("DeclSpan %q", got)
	}
}

func TestParseImport(t *testing.T) {
	unit, _, bag := parse(t, `import { add, mul } from "./math";`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	d := unit.Stmts[0].(*ast.ImportDecl)
	if len(d.Names) != 2 || d.Names[0].Name != "add" || d.Names[1].Name != "mul" {
		t.Fatalf("names %v", d.Names)
	}
	if d.From.Value != "./math" {
		t.Fatalf("from %q", d.From.Value)
	}
}

func TestParseOptionalSemicolons(t *testing.T) {
	unit, _, bag := parse(t, "let a = 1\nlet b = a + 1\nb")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	if len(unit.Stmts) != 3 {
		t.Fatalf("got %d statements", len(unit.Stmts))
	}
	if _, ok := unit.Stmts[2].(*ast.ExprStmt); !ok {
		t.Fatalf("last statement %T", unit.Stmts[2])
	}
}

func TestParsePrecedence(t *testing.T) {
	unit, _, bag := parse(t, `1 + 2 * 3;`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	b := unit.Stmts[0].(*ast.ExprStmt).X.(*ast.Binary)
	if b.Op != "+" {
		t.Fatalf("root op %q", b.Op)
	}
	inner, ok := b.Y.(*ast.Binary)
	if !ok || inner.Op != "*" {
		t.Fatalf("rhs %T", b.Y)
	}
}

func TestParseMemberCallChain(t *testing.T) {
	unit, _, bag := parse(t, `mod.helper(1)("x");`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	outer := unit.Stmts[0].(*ast.ExprStmt).X.(*ast.Call)
	inner := outer.Callee.(*ast.Call)
	if _, ok := inner.Callee.(*ast.Member); !ok {
		t.Fatalf("callee %T", inner.Callee)
	}
}

func TestParseRecoveryAfterError(t *testing.T) {
	unit, _, bag := parse(t, "let = 1;\nlet ok = 2;")
	if !bag.HasErrors() {
		t.Fatalf("expected diagnostics")
	}
	// Восстановление: второе объявление выживает.
	survived := false
	for _, s := range unit.Stmts {
		if d, ok := s.(*ast.VarDecl); ok && d.Name.Name == "ok" {
			survived = true
		}
	}
	if !survived {
		t.Fatalf("parser did not recover to the next statement")
	}
}

func TestParseMissingExpression(t *testing.T) {
	_, _, bag := parse(t, `let x = ;`)
	if !bag.HasErrors() {
		t.Fatalf("expected diagnostics")
	}
}

func TestParseLiteralTypeAnnotation(t *testing.T) {
	unit, _, bag := parse(t, `let kind: 123 = 123;`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	d := unit.Stmts[0].(*ast.VarDecl)
	lt, ok := d.Type.(*ast.LitType)
	if !ok || lt.Raw != "123" {
		t.Fatalf("type %T", d.Type)
	}
}
