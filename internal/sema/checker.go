// Package sema type-checks one compilation unit at a time. The checker keeps
// no state between units: callers that need accumulation (the REPL) grow the
// unit text instead, which keeps invalidation trivial.
package sema

import (
	"fmt"
	"strconv"

	"tsload/internal/ast"
	"tsload/internal/diag"
	"tsload/internal/source"
)

// Symbol is one named binding visible to the checker.
type Symbol struct {
	Name     string
	Type     *Type
	Const    bool
	Builtin  bool
	Doc      string
	DeclSpan source.Span
}

type ref struct {
	span source.Span
	sym  *Symbol
}

// Result carries everything later stages need: the symbol references for
// quick info and the exported bindings of the unit.
type Result struct {
	refs    []ref
	Exports map[string]*Symbol
}

type scope struct {
	parent *scope
	syms   map[string]*Symbol
}

func (s *scope) lookup(name string) *Symbol {
	for cur := s; cur != nil; cur = cur.parent {
		if sym, ok := cur.syms[name]; ok {
			return sym
		}
	}
	return nil
}

func (s *scope) declare(sym *Symbol) bool {
	if _, exists := s.syms[sym.Name]; exists {
		return false
	}
	s.syms[sym.Name] = sym
	return true
}

type checker struct {
	file     *source.File
	reporter diag.Reporter
	result   *Result
	ret      *Type // ожидаемый тип return в текущей функции, nil вне функций
}

// Builtins returns the ambient bindings every unit sees. The host provides
// matching runtime implementations.
func Builtins() map[string]*Symbol {
	mk := func(name, doc string, t *Type) *Symbol {
		return &Symbol{Name: name, Type: t, Const: true, Builtin: true, Doc: doc}
	}
	logType := &Type{Kind: KindFunc, Ret: VoidType, Variadic: true}
	lenType := &Type{Kind: KindFunc, Params: []*Type{StringType}, ParamNames: []string{"value"}, Ret: NumberType}
	normType := &Type{Kind: KindFunc, Params: []*Type{StringType}, ParamNames: []string{"value"}, Ret: StringType}
	reqType := &Type{Kind: KindFunc, Params: []*Type{StringType}, ParamNames: []string{"specifier"}, Ret: AnyType}
	return map[string]*Symbol{
		"log":       mk("log", "Writes its arguments to the host's standard output.", logType),
		"print":     mk("print", "Writes its arguments to the host's standard output without a trailing newline.", logType),
		"len":       mk("len", "Returns the length of a string in bytes.", lenType),
		"normalize": mk("normalize", "Returns the NFC-normalized form of a string.", normType),
		"require":   mk("require", "Loads a module through the host's synchronous loader.", reqType),
	}
}

// Check type-checks the unit and reports every finding to the reporter.
func Check(unit *ast.Unit, file *source.File, reporter diag.Reporter) *Result {
	c := &checker{
		file:     file,
		reporter: reporter,
		result:   &Result{Exports: make(map[string]*Symbol)},
	}

	global := &scope{syms: Builtins()}
	top := &scope{parent: global, syms: make(map[string]*Symbol)}

	// Функции верхнего уровня видны до своего объявления.
	for _, s := range unit.Stmts {
		if fd, ok := s.(*ast.FuncDecl); ok {
			c.declareFunc(top, fd)
		}
	}
	for _, s := range unit.Stmts {
		c.stmt(top, s)
	}
	for _, s := range unit.Stmts {
		if name, ok := ast.Exported(s); ok {
			if sym := top.lookup(name); sym != nil {
				c.result.Exports[name] = sym
			}
		}
	}
	return c.result
}

func (c *checker) report(code diag.Code, sp source.Span, format string, args ...any) {
	if c.reporter != nil {
		c.reporter.Report(code, diag.SevError, sp, fmt.Sprintf(format, args...), nil)
	}
}

func (c *checker) declareFunc(sc *scope, fd *ast.FuncDecl) {
	params := make([]*Type, len(fd.Params))
	names := make([]string, len(fd.Params))
	for i, p := range fd.Params {
		params[i] = c.typeExpr(p.Type)
		names[i] = p.Name.Name
	}
	ret := VoidType
	if fd.Ret != nil {
		ret = c.typeExpr(fd.Ret)
	}
	sym := &Symbol{
		Name:     fd.Name.Name,
		Type:     &Type{Kind: KindFunc, Params: params, ParamNames: names, Ret: ret},
		Const:    true,
		Doc:      fd.Doc,
		DeclSpan: fd.Name.NameSpan,
	}
	if !sc.declare(sym) {
		c.report(diag.SemaDuplicateDecl, fd.Name.NameSpan, "Cannot redeclare block-scoped variable '%s'.", fd.Name.Name)
		return
	}
	c.result.refs = append(c.result.refs, ref{span: fd.Name.NameSpan, sym: sym})
}

func (c *checker) stmt(sc *scope, s ast.Stmt) {
	switch st := s.(type) {
	case *ast.VarDecl:
		c.varDecl(sc, st)
	case *ast.FuncDecl:
		// Объявление уже сделано при hoisting на верхнем уровне; для
		// вложенных функций объявляем здесь.
		sym := sc.lookup(st.Name.Name)
		if sym == nil || sym.DeclSpan != st.Name.NameSpan {
			c.declareFunc(sc, st)
			sym = sc.lookup(st.Name.Name)
		}
		c.funcBody(sc, st, sym)
	case *ast.ImportDecl:
		for _, n := range st.Names {
			sym := &Symbol{Name: n.Name, Type: AnyType, Const: true, DeclSpan: n.NameSpan,
				Doc: "Imported from " + strconv.Quote(st.From.Value) + "."}
			if !sc.declare(sym) {
				c.report(diag.SemaDuplicateDecl, n.NameSpan, "Cannot redeclare block-scoped variable '%s'.", n.Name)
				continue
			}
			c.result.refs = append(c.result.refs, ref{span: n.NameSpan, sym: sym})
		}
	case *ast.Block:
		inner := &scope{parent: sc, syms: make(map[string]*Symbol)}
		for _, sub := range st.Stmts {
			c.stmt(inner, sub)
		}
	case *ast.IfStmt:
		c.expr(sc, st.Cond)
		c.stmt(sc, st.Then)
		if st.Else != nil {
			c.stmt(sc, st.Else)
		}
	case *ast.WhileStmt:
		c.expr(sc, st.Cond)
		c.stmt(sc, st.Body)
	case *ast.ReturnStmt:
		var got *Type = VoidType
		if st.Value != nil {
			got = c.expr(sc, st.Value)
		}
		if c.ret != nil && !Assignable(c.ret, got) {
			c.report(diag.SemaTypeNotAssignable, s.Span(), "Type '%s' is not assignable to type '%s'.", got, c.ret)
		}
	case *ast.ThrowStmt:
		c.expr(sc, st.Value)
	case *ast.ExprStmt:
		c.expr(sc, st.X)
	}
}

func (c *checker) varDecl(sc *scope, d *ast.VarDecl) {
	var declared *Type
	if d.Type != nil {
		declared = c.typeExpr(d.Type)
	}

	var init *Type
	if d.Init != nil {
		init = c.expr(sc, d.Init)
	}

	if declared != nil && init != nil && !Assignable(declared, init) {
		c.report(diag.SemaTypeNotAssignable, d.Init.Span(), "Type '%s' is not assignable to type '%s'.", init, declared)
	}

	t := declared
	if t == nil {
		switch {
		case init == nil:
			t = AnyType
		case d.Kind == ast.DeclConst:
			t = init // const сохраняет литеральное сужение
		default:
			t = init.Widen()
		}
	}

	sym := &Symbol{
		Name:     d.Name.Name,
		Type:     t,
		Const:    d.Kind == ast.DeclConst,
		Doc:      d.Doc,
		DeclSpan: d.Name.NameSpan,
	}
	if !sc.declare(sym) {
		c.report(diag.SemaDuplicateDecl, d.Name.NameSpan, "Cannot redeclare block-scoped variable '%s'.", d.Name.Name)
		return
	}
	c.result.refs = append(c.result.refs, ref{span: d.Name.NameSpan, sym: sym})
}

func (c *checker) funcBody(sc *scope, fd *ast.FuncDecl, sym *Symbol) {
	inner := &scope{parent: sc, syms: make(map[string]*Symbol)}
	var ft *Type
	if sym != nil {
		ft = sym.Type
	}
	for i, p := range fd.Params {
		var pt *Type = AnyType
		if ft != nil && i < len(ft.Params) {
			pt = ft.Params[i]
		}
		psym := &Symbol{Name: p.Name.Name, Type: pt, DeclSpan: p.Name.NameSpan}
		if !inner.declare(psym) {
			c.report(diag.SemaDuplicateDecl, p.Name.NameSpan, "Cannot redeclare block-scoped variable '%s'.", p.Name.Name)
		}
		c.result.refs = append(c.result.refs, ref{span: p.Name.NameSpan, sym: psym})
	}

	savedRet := c.ret
	if ft != nil {
		c.ret = ft.Ret
	} else {
		c.ret = nil
	}
	for _, s := range fd.Body.Stmts {
		c.stmt(inner, s)
	}
	c.ret = savedRet
}

func (c *checker) typeExpr(t ast.TypeExpr) *Type {
	if t == nil {
		return AnyType
	}
	switch tt := t.(type) {
	case *ast.TypeRef:
		switch tt.Name {
		case "number":
			return NumberType
		case "string":
			return StringType
		case "boolean":
			return BooleanType
		case "any":
			return AnyType
		case "void":
			return VoidType
		case "null":
			return NullType
		default:
			c.report(diag.SemaCannotFindName, tt.NameSpan, "Cannot find name '%s'.", tt.Name)
			return AnyType
		}
	case *ast.LitType:
		switch tt.Raw {
		case "true":
			return BoolLit(true)
		case "false":
			return BoolLit(false)
		case "null":
			return NullType
		}
		if len(tt.Raw) > 0 && tt.Raw[0] == '"' {
			if v, err := strconv.Unquote(tt.Raw); err == nil {
				return StrLit(v)
			}
			return StringType
		}
		if v, err := strconv.ParseFloat(tt.Raw, 64); err == nil {
			return NumLit(tt.Raw, v)
		}
		return AnyType
	}
	return AnyType
}

func (c *checker) expr(sc *scope, e ast.Expr) *Type {
	switch ex := e.(type) {
	case *ast.NumberLit:
		return NumLit(ex.Raw, ex.Value)
	case *ast.StringLit:
		return StrLit(ex.Value)
	case *ast.BoolLit:
		return BoolLit(ex.Value)
	case *ast.NullLit:
		return NullType
	case *ast.Ident:
		sym := sc.lookup(ex.Name)
		if sym == nil {
			c.report(diag.SemaCannotFindName, ex.NameSpan, "Cannot find name '%s'.", ex.Name)
			return AnyType
		}
		c.result.refs = append(c.result.refs, ref{span: ex.NameSpan, sym: sym})
		return sym.Type
	case *ast.Paren:
		return c.expr(sc, ex.X)
	case *ast.Unary:
		c.expr(sc, ex.X)
		if ex.Op == "!" {
			return BooleanType
		}
		return NumberType
	case *ast.Binary:
		return c.binary(sc, ex)
	case *ast.Call:
		return c.call(sc, ex)
	case *ast.Member:
		base := c.expr(sc, ex.X)
		if base.Kind == KindAny {
			return AnyType
		}
		c.report(diag.SemaPropertyMissing, ex.Name.NameSpan, "Property '%s' does not exist on type '%s'.", ex.Name.Name, base)
		return AnyType
	case *ast.Index:
		base := c.expr(sc, ex.X)
		c.expr(sc, ex.I)
		if base.Kind == KindAny {
			return AnyType
		}
		return AnyType
	case *ast.Assign:
		return c.assign(sc, ex)
	}
	return AnyType
}

func (c *checker) binary(sc *scope, b *ast.Binary) *Type {
	x := c.expr(sc, b.X)
	y := c.expr(sc, b.Y)
	switch b.Op {
	case "==", "!=", "===", "!==", "<", "<=", ">", ">=":
		return BooleanType
	case "&&", "||":
		if x.Widen() == y.Widen() {
			return x.Widen()
		}
		return AnyType
	case "+":
		if x.Widen().Kind == KindString || y.Widen().Kind == KindString {
			return StringType
		}
		return NumberType
	default:
		return NumberType
	}
}

func (c *checker) call(sc *scope, call *ast.Call) *Type {
	callee := c.expr(sc, call.Callee)
	if callee.Kind != KindFunc {
		if callee.Kind != KindAny {
			c.report(diag.SemaNotCallable, call.Callee.Span(),
				"This expression is not callable. Type '%s' has no call signatures.", callee)
		}
		for _, a := range call.Args {
			c.expr(sc, a)
		}
		return AnyType
	}

	if !callee.Variadic && len(call.Args) != len(callee.Params) {
		c.report(diag.SemaArityMismatch, call.CallSpan,
			"Expected %d arguments, but got %d.", len(callee.Params), len(call.Args))
	}
	for i, a := range call.Args {
		at := c.expr(sc, a)
		if callee.Variadic {
			continue
		}
		if i >= len(callee.Params) {
			continue
		}
		want := callee.Params[i]
		if !Assignable(want, at) {
			c.report(diag.SemaArgNotAssignable, a.Span(),
				"Argument of type '%s' is not assignable to parameter of type '%s'.", at.Widen(), want)
		}
	}
	if callee.Ret != nil {
		return callee.Ret
	}
	return VoidType
}

func (c *checker) assign(sc *scope, a *ast.Assign) *Type {
	vt := c.expr(sc, a.Value)
	switch target := a.Target.(type) {
	case *ast.Ident:
		sym := sc.lookup(target.Name)
		if sym == nil {
			c.report(diag.SemaCannotFindName, target.NameSpan, "Cannot find name '%s'.", target.Name)
			return vt
		}
		c.result.refs = append(c.result.refs, ref{span: target.NameSpan, sym: sym})
		if sym.Const {
			c.report(diag.SemaAssignToConst, target.NameSpan, "Cannot assign to '%s' because it is a constant.", target.Name)
		} else if !Assignable(sym.Type, vt) {
			c.report(diag.SemaTypeNotAssignable, a.Value.Span(), "Type '%s' is not assignable to type '%s'.", vt, sym.Type)
		}
	default:
		c.expr(sc, a.Target)
	}
	return vt
}
