// Package ast defines the syntax tree of the typed-script dialect. Nodes
// carry byte spans into the originating source.File; the emitter relies on
// annotation spans covering the colon through the end of the type so that
// erasing a type is a plain span deletion.
package ast

import (
	"tsload/internal/source"
)

// Unit is one parsed compilation unit (a file or the REPL's virtual unit).
type Unit struct {
	File  source.FileID
	Stmts []Stmt
}

type Stmt interface {
	Span() source.Span
	stmtNode()
}

type Expr interface {
	Span() source.Span
	exprNode()
}

// TypeExpr is a type annotation as written.
type TypeExpr interface {
	Span() source.Span
	typeNode()
}

// DeclKind distinguishes let and const bindings.
type DeclKind uint8

const (
	DeclLet DeclKind = iota
	DeclConst
)

func (k DeclKind) String() string {
	if k == DeclConst {
		return "const"
	}
	return "let"
}

// VarDecl is `let x: T = e;` / `const x = e;`, optionally exported.
// TypeSpan covers the colon through the end of the annotation, zero when no
// annotation was written.
type VarDecl struct {
	DeclSpan   source.Span // полный спан инструкции
	ExportSpan source.Span // спан `export ` или пустой
	Kind       DeclKind
	Name       *Ident
	Type       TypeExpr
	TypeSpan   source.Span
	Init       Expr
	Doc        string
}

// Param is one function parameter with an optional annotation.
type Param struct {
	Name     *Ident
	Type     TypeExpr
	TypeSpan source.Span
}

// FuncDecl is `function f(a: T): R { ... }`, optionally exported.
// RetSpan covers the colon through the return annotation.
type FuncDecl struct {
	DeclSpan   source.Span
	ExportSpan source.Span
	Name       *Ident
	Params     []Param
	Ret        TypeExpr
	RetSpan    source.Span
	Body       *Block
	Doc        string
}

// ImportDecl is `import { a, b } from "./mod";`.
type ImportDecl struct {
	DeclSpan source.Span
	Names    []*Ident
	From     *StringLit
}

type Block struct {
	LBrace source.Span
	Stmts  []Stmt
	RBrace source.Span
}

type IfStmt struct {
	StmtSpan source.Span
	Cond     Expr
	Then     *Block
	Else     Stmt // *Block или *IfStmt, nil когда else нет
}

type WhileStmt struct {
	StmtSpan source.Span
	Cond     Expr
	Body     *Block
}

type ReturnStmt struct {
	StmtSpan source.Span
	Value    Expr // nil для пустого return
}

type ThrowStmt struct {
	StmtSpan source.Span
	Value    Expr
}

type ExprStmt struct {
	StmtSpan source.Span
	X        Expr
}

func (d *VarDecl) Span() source.Span    { return d.DeclSpan }
func (d *FuncDecl) Span() source.Span   { return d.DeclSpan }
func (d *ImportDecl) Span() source.Span { return d.DeclSpan }
func (b *Block) Span() source.Span      { return b.LBrace.Cover(b.RBrace) }
func (s *IfStmt) Span() source.Span     { return s.StmtSpan }
func (s *WhileStmt) Span() source.Span  { return s.StmtSpan }
func (s *ReturnStmt) Span() source.Span { return s.StmtSpan }
func (s *ThrowStmt) Span() source.Span  { return s.StmtSpan }
func (s *ExprStmt) Span() source.Span   { return s.StmtSpan }

func (*VarDecl) stmtNode()    {}
func (*FuncDecl) stmtNode()   {}
func (*ImportDecl) stmtNode() {}
func (*Block) stmtNode()      {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode() {}
func (*ThrowStmt) stmtNode()  {}
func (*ExprStmt) stmtNode()   {}

// Ident is a name reference or a declared name.
type Ident struct {
	NameSpan source.Span
	Name     string
}

type NumberLit struct {
	LitSpan source.Span
	Value   float64
	Raw     string
}

type StringLit struct {
	LitSpan source.Span
	Value   string
}

type BoolLit struct {
	LitSpan source.Span
	Value   bool
}

type NullLit struct {
	LitSpan source.Span
}

// Binary covers arithmetic, comparison and logical operators.
type Binary struct {
	Op   string
	X, Y Expr
}

type Unary struct {
	OpSpan source.Span
	Op     string
	X      Expr
}

type Call struct {
	Callee   Expr
	Args     []Expr
	CallSpan source.Span
}

type Member struct {
	X    Expr
	Name *Ident
}

type Index struct {
	X        Expr
	I        Expr
	FullSpan source.Span
}

type Assign struct {
	Target Expr
	Value  Expr
}

type Paren struct {
	FullSpan source.Span
	X        Expr
}

func (e *Ident) Span() source.Span     { return e.NameSpan }
func (e *NumberLit) Span() source.Span { return e.LitSpan }
func (e *StringLit) Span() source.Span { return e.LitSpan }
func (e *BoolLit) Span() source.Span   { return e.LitSpan }
func (e *NullLit) Span() source.Span   { return e.LitSpan }
func (e *Binary) Span() source.Span    { return e.X.Span().Cover(e.Y.Span()) }
func (e *Unary) Span() source.Span     { return e.OpSpan.Cover(e.X.Span()) }
func (e *Call) Span() source.Span      { return e.CallSpan }
func (e *Member) Span() source.Span    { return e.X.Span().Cover(e.Name.NameSpan) }
func (e *Index) Span() source.Span     { return e.FullSpan }
func (e *Assign) Span() source.Span    { return e.Target.Span().Cover(e.Value.Span()) }
func (e *Paren) Span() source.Span     { return e.FullSpan }

func (*Ident) exprNode()     {}
func (*NumberLit) exprNode() {}
func (*StringLit) exprNode() {}
func (*BoolLit) exprNode()   {}
func (*NullLit) exprNode()   {}
func (*Binary) exprNode()    {}
func (*Unary) exprNode()     {}
func (*Call) exprNode()      {}
func (*Member) exprNode()    {}
func (*Index) exprNode()     {}
func (*Assign) exprNode()    {}
func (*Paren) exprNode()     {}

// TypeRef is a named type: number, string, boolean, any, void, null.
type TypeRef struct {
	NameSpan source.Span
	Name     string
}

// LitType is a literal type annotation: 123, "abc", true.
type LitType struct {
	LitSpan source.Span
	Raw     string
}

func (t *TypeRef) Span() source.Span { return t.NameSpan }
func (t *LitType) Span() source.Span { return t.LitSpan }

func (*TypeRef) typeNode() {}
func (*LitType) typeNode() {}

// Exported reports whether the statement is an exported declaration and, if
// so, returns its declared name.
func Exported(s Stmt) (string, bool) {
	switch d := s.(type) {
	case *VarDecl:
		if !d.ExportSpan.Empty() {
			return d.Name.Name, true
		}
	case *FuncDecl:
		if !d.ExportSpan.Empty() {
			return d.Name.Name, true
		}
	}
	return "", false
}
