package host

import (
	"fmt"

	"tsload/internal/ast"
	"tsload/internal/source"
)

const maxCallDepth = 1000

type ctrl uint8

const (
	ctrlNone ctrl = iota
	ctrlReturn
)

// Interp executes plain-script ASTs. One interpreter instance runs one
// module body or one REPL snippet; function values close over their
// defining file so cross-module calls keep correct positions.
type Interp struct {
	h     *Host
	file  *source.File
	path  string
	stack []Frame
}

func newInterp(h *Host, file *source.File, path string) *Interp {
	return &Interp{
		h:     h,
		file:  file,
		path:  path,
		stack: []Frame{{Path: path}},
	}
}

func (i *Interp) setPos(sp source.Span) {
	top := &i.stack[len(i.stack)-1]
	pos := i.file.Pos(sp.Start)
	top.Line = pos.Line
	top.Col = pos.Col
}

func (i *Interp) frames() []Frame {
	out := make([]Frame, len(i.stack))
	copy(out, i.stack)
	// Внешний вид стека: верхний кадр первым.
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func (i *Interp) throw(format string, args ...any) *RuntimeError {
	return throwText(fmt.Sprintf(format, args...), i.frames())
}

// Run executes the statements in env and returns the value of the last
// expression statement, Undefined when there is none.
func (i *Interp) Run(stmts []ast.Stmt, env *Env) (Value, error) {
	hoistFuncs(i, stmts, env)
	last := Undefined
	for _, s := range stmts {
		c, _, v, err := i.stmt(s, env)
		if err != nil {
			return Undefined, err
		}
		if c == ctrlReturn {
			break
		}
		if v != nil {
			last = v
		}
	}
	return last, nil
}

func hoistFuncs(i *Interp, stmts []ast.Stmt, env *Env) {
	for _, s := range stmts {
		if fd, ok := s.(*ast.FuncDecl); ok {
			env.Define(fd.Name.Name, i.makeFunc(fd, env), true)
		}
	}
}

func (i *Interp) makeFunc(fd *ast.FuncDecl, env *Env) *Function {
	params := make([]string, len(fd.Params))
	for n, p := range fd.Params {
		params[n] = p.Name.Name
	}
	return &Function{
		Name:   fd.Name.Name,
		Params: params,
		Body:   fd.Body,
		Env:    env,
		File:   i.file,
		Path:   i.path,
	}
}

// stmt executes one statement. The third return is the statement's
// expression value when it has one (for REPL result framing).
func (i *Interp) stmt(s ast.Stmt, env *Env) (ctrl, Value, Value, error) {
	i.setPos(s.Span())
	switch st := s.(type) {
	case *ast.VarDecl:
		v := Undefined
		if st.Init != nil {
			var err error
			if v, err = i.expr(st.Init, env); err != nil {
				return ctrlNone, nil, nil, err
			}
		}
		env.Define(st.Name.Name, v, st.Kind == ast.DeclConst)
		return ctrlNone, nil, nil, nil
	case *ast.FuncDecl:
		// Уже определена при hoisting в текущем блоке.
		if _, ok := env.Lookup(st.Name.Name); !ok {
			env.Define(st.Name.Name, i.makeFunc(st, env), true)
		}
		return ctrlNone, nil, nil, nil
	case *ast.ImportDecl:
		return ctrlNone, nil, nil, i.throw("Cannot use 'import' outside a module.")
	case *ast.Block:
		inner := NewEnv(env)
		hoistFuncs(i, st.Stmts, inner)
		for _, sub := range st.Stmts {
			c, rv, _, err := i.stmt(sub, inner)
			if err != nil || c == ctrlReturn {
				return c, rv, nil, err
			}
		}
		return ctrlNone, nil, nil, nil
	case *ast.IfStmt:
		cond, err := i.expr(st.Cond, env)
		if err != nil {
			return ctrlNone, nil, nil, err
		}
		if Truthy(cond) {
			return i.stmt(st.Then, env)
		}
		if st.Else != nil {
			return i.stmt(st.Else, env)
		}
		return ctrlNone, nil, nil, nil
	case *ast.WhileStmt:
		for {
			cond, err := i.expr(st.Cond, env)
			if err != nil {
				return ctrlNone, nil, nil, err
			}
			if !Truthy(cond) {
				return ctrlNone, nil, nil, nil
			}
			c, rv, _, err := i.stmt(st.Body, env)
			if err != nil || c == ctrlReturn {
				return c, rv, nil, err
			}
		}
	case *ast.ReturnStmt:
		v := Undefined
		if st.Value != nil {
			var err error
			if v, err = i.expr(st.Value, env); err != nil {
				return ctrlNone, nil, nil, err
			}
		}
		return ctrlReturn, v, nil, nil
	case *ast.ThrowStmt:
		v, err := i.expr(st.Value, env)
		if err != nil {
			return ctrlNone, nil, nil, err
		}
		i.setPos(st.Span())
		return ctrlNone, nil, nil, &RuntimeError{Value: v, Frames: i.frames()}
	case *ast.ExprStmt:
		v, err := i.expr(st.X, env)
		if err != nil {
			return ctrlNone, nil, nil, err
		}
		return ctrlNone, nil, v, nil
	}
	return ctrlNone, nil, nil, nil
}

func (i *Interp) expr(e ast.Expr, env *Env) (Value, error) {
	switch ex := e.(type) {
	case *ast.NumberLit:
		return ex.Value, nil
	case *ast.StringLit:
		return ex.Value, nil
	case *ast.BoolLit:
		return ex.Value, nil
	case *ast.NullLit:
		return nil, nil
	case *ast.Ident:
		if v, ok := env.Lookup(ex.Name); ok {
			return v, nil
		}
		i.setPos(ex.NameSpan)
		return nil, i.throw("%s is not defined", ex.Name)
	case *ast.Paren:
		return i.expr(ex.X, env)
	case *ast.Unary:
		v, err := i.expr(ex.X, env)
		if err != nil {
			return nil, err
		}
		if ex.Op == "!" {
			return !Truthy(v), nil
		}
		n, ok := v.(float64)
		if !ok {
			i.setPos(ex.Span())
			return nil, i.throw("Unary '-' applied to a non-number value")
		}
		return -n, nil
	case *ast.Binary:
		return i.binary(ex, env)
	case *ast.Call:
		return i.call(ex, env)
	case *ast.Member:
		v, err := i.expr(ex.X, env)
		if err != nil {
			return nil, err
		}
		return i.member(v, ex.Name.Name, ex.Name.NameSpan)
	case *ast.Index:
		return i.index(ex, env)
	case *ast.Assign:
		return i.assign(ex, env)
	}
	return Undefined, nil
}

func (i *Interp) member(v Value, name string, sp source.Span) (Value, error) {
	switch x := v.(type) {
	case *Object:
		if p, ok := x.Props[name]; ok {
			return p, nil
		}
		return Undefined, nil
	case string:
		if name == "length" {
			return float64(len(x)), nil
		}
		return Undefined, nil
	case nil, undefinedType:
		i.setPos(sp)
		return nil, i.throw("Cannot read properties of %s (reading '%s')", FormatValue(v, false), name)
	}
	return Undefined, nil
}

func (i *Interp) index(ex *ast.Index, env *Env) (Value, error) {
	base, err := i.expr(ex.X, env)
	if err != nil {
		return nil, err
	}
	idx, err := i.expr(ex.I, env)
	if err != nil {
		return nil, err
	}
	switch b := base.(type) {
	case *Object:
		key, ok := idx.(string)
		if !ok {
			key = FormatValue(idx, false)
		}
		if p, ok := b.Props[key]; ok {
			return p, nil
		}
		return Undefined, nil
	case string:
		n, ok := idx.(float64)
		if !ok || n < 0 || int(n) >= len(b) {
			return Undefined, nil
		}
		return string(b[int(n)]), nil
	}
	i.setPos(ex.FullSpan)
	return nil, i.throw("Cannot index value of this type")
}

func (i *Interp) binary(b *ast.Binary, env *Env) (Value, error) {
	x, err := i.expr(b.X, env)
	if err != nil {
		return nil, err
	}
	// Логические операторы ленивые.
	switch b.Op {
	case "&&":
		if !Truthy(x) {
			return x, nil
		}
		return i.expr(b.Y, env)
	case "||":
		if Truthy(x) {
			return x, nil
		}
		return i.expr(b.Y, env)
	}
	y, err := i.expr(b.Y, env)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case "==", "===":
		return looseEq(x, y), nil
	case "!=", "!==":
		return !looseEq(x, y), nil
	}
	if b.Op == "+" {
		if xs, ok := x.(string); ok {
			return xs + FormatValue(y, false), nil
		}
		if ys, ok := y.(string); ok {
			return FormatValue(x, false) + ys, nil
		}
	}
	xn, xok := x.(float64)
	yn, yok := y.(float64)
	if !xok || !yok {
		i.setPos(b.Span())
		return nil, i.throw("Operator '%s' applied to non-number values", b.Op)
	}
	switch b.Op {
	case "+":
		return xn + yn, nil
	case "-":
		return xn - yn, nil
	case "*":
		return xn * yn, nil
	case "/":
		return xn / yn, nil
	case "%":
		return float64(int64(xn) % int64(yn)), nil
	case "<":
		return xn < yn, nil
	case "<=":
		return xn <= yn, nil
	case ">":
		return xn > yn, nil
	case ">=":
		return xn >= yn, nil
	}
	return Undefined, nil
}

func looseEq(x, y Value) bool {
	if _, ok := x.(undefinedType); ok {
		if y == nil {
			return true
		}
	}
	if _, ok := y.(undefinedType); ok {
		if x == nil {
			return true
		}
	}
	return x == y
}

func (i *Interp) call(call *ast.Call, env *Env) (Value, error) {
	callee, err := i.expr(call.Callee, env)
	if err != nil {
		return nil, err
	}
	args := make([]Value, len(call.Args))
	for n, a := range call.Args {
		if args[n], err = i.expr(a, env); err != nil {
			return nil, err
		}
	}
	i.setPos(call.CallSpan)

	switch fn := callee.(type) {
	case *Builtin:
		v, err := fn.Fn(args)
		if err != nil {
			if _, ok := err.(*RuntimeError); ok {
				return nil, err
			}
			return nil, throwText(err.Error(), i.frames())
		}
		return v, nil
	case *Function:
		return i.invoke(fn, args)
	}
	return nil, i.throw("%s is not a function", calleeName(call.Callee))
}

func (i *Interp) invoke(fn *Function, args []Value) (Value, error) {
	if len(i.stack) >= maxCallDepth {
		return nil, i.throw("Maximum call stack size exceeded")
	}

	local := NewEnv(fn.Env)
	for n, p := range fn.Params {
		if n < len(args) {
			local.Define(p, args[n], false)
		} else {
			local.Define(p, Undefined, false)
		}
	}

	// Переключаем контекст файла: функция могла прийти из другого модуля.
	savedFile, savedPath := i.file, i.path
	i.file, i.path = fn.File, fn.Path
	i.stack = append(i.stack, Frame{Func: fn.Name, Path: fn.Path})

	hoistFuncs(i, fn.Body.Stmts, local)
	var result Value = Undefined
	var callErr error
	for _, s := range fn.Body.Stmts {
		c, rv, _, err := i.stmt(s, local)
		if err != nil {
			callErr = err
			break
		}
		if c == ctrlReturn {
			result = rv
			break
		}
	}

	i.stack = i.stack[:len(i.stack)-1]
	i.file, i.path = savedFile, savedPath
	if callErr != nil {
		return nil, callErr
	}
	return result, nil
}

func calleeName(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.Member:
		return calleeName(x.X) + "." + x.Name.Name
	}
	return "expression"
}

func (i *Interp) assign(a *ast.Assign, env *Env) (Value, error) {
	v, err := i.expr(a.Value, env)
	if err != nil {
		return nil, err
	}
	switch target := a.Target.(type) {
	case *ast.Ident:
		ok, constViolation := env.Set(target.Name, v)
		if constViolation {
			i.setPos(target.NameSpan)
			return nil, i.throw("Assignment to constant variable.")
		}
		if !ok {
			i.setPos(target.NameSpan)
			return nil, i.throw("%s is not defined", target.Name)
		}
		return v, nil
	case *ast.Member:
		base, err := i.expr(target.X, env)
		if err != nil {
			return nil, err
		}
		obj, ok := base.(*Object)
		if !ok {
			i.setPos(target.Span())
			return nil, i.throw("Cannot set properties of %s", FormatValue(base, false))
		}
		obj.Props[target.Name.Name] = v
		return v, nil
	case *ast.Index:
		base, err := i.expr(target.X, env)
		if err != nil {
			return nil, err
		}
		idx, err := i.expr(target.I, env)
		if err != nil {
			return nil, err
		}
		obj, ok := base.(*Object)
		if !ok {
			i.setPos(target.Span())
			return nil, i.throw("Cannot set properties of %s", FormatValue(base, false))
		}
		key, ok := idx.(string)
		if !ok {
			key = FormatValue(idx, false)
		}
		obj.Props[key] = v
		return v, nil
	}
	return v, nil
}
