// Package parser builds the typed-script AST. Recovery is statement-level:
// after an error the parser skips to the next plausible statement start so a
// single typo does not drown the report in follow-up noise.
package parser

import (
	"strconv"

	"tsload/internal/ast"
	"tsload/internal/diag"
	"tsload/internal/lexer"
	"tsload/internal/source"
	"tsload/internal/token"
)

type Parser struct {
	lx       *lexer.Lexer
	file     *source.File
	reporter diag.Reporter
	tok      token.Token
}

// ParseUnit parses a whole file. Syntax errors go to the reporter; the
// returned unit contains every statement that survived recovery.
func ParseUnit(file *source.File, reporter diag.Reporter) *ast.Unit {
	p := &Parser{
		lx:       lexer.New(file, reporter),
		file:     file,
		reporter: reporter,
	}
	p.next()

	unit := &ast.Unit{File: file.ID}
	for p.tok.Kind != token.EOF {
		before := p.tok.Span
		stmt := p.parseStmt()
		if stmt != nil {
			unit.Stmts = append(unit.Stmts, stmt)
		}
		// Защита от зависания: если ничего не потреблено, шагаем вперёд.
		if p.tok.Span == before && p.tok.Kind != token.EOF {
			p.next()
		}
	}
	return unit
}

func (p *Parser) next() { p.tok = p.lx.Next() }

func (p *Parser) at(k token.Kind) bool { return p.tok.Kind == k }

func (p *Parser) eat(k token.Kind) (token.Token, bool) {
	if p.tok.Kind != k {
		return p.tok, false
	}
	t := p.tok
	p.next()
	return t, true
}

func (p *Parser) expect(k token.Kind) (token.Token, bool) {
	if t, ok := p.eat(k); ok {
		return t, true
	}
	p.report(diag.SynExpectedToken, p.tok.Span, "'"+k.String()+"' expected.")
	return p.tok, false
}

func (p *Parser) report(code diag.Code, sp source.Span, msg string) {
	if p.reporter != nil {
		p.reporter.Report(code, diag.SevError, sp, msg, nil)
	}
}

// sync skips tokens until a statement boundary.
func (p *Parser) sync() {
	for {
		switch p.tok.Kind {
		case token.EOF, token.KwLet, token.KwConst, token.KwFunction, token.KwImport,
			token.KwExport, token.KwIf, token.KwWhile, token.KwReturn, token.KwThrow:
			return
		case token.Semi, token.RBrace:
			p.next()
			return
		}
		p.next()
	}
}

// optSemi съедает точку с запятой, если она есть. Диалект позволяет её
// опускать — REPL-строки почти всегда приходят без неё.
func (p *Parser) optSemi() {
	p.eat(token.Semi)
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.tok.Kind {
	case token.KwImport:
		return p.parseImport()
	case token.KwExport, token.KwLet, token.KwConst, token.KwFunction:
		return p.parseDecl()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwReturn:
		return p.parseReturn()
	case token.KwThrow:
		return p.parseThrow()
	case token.LBrace:
		return p.parseBlock()
	default:
		return p.parseExprStmt()
	}
}

// parseDecl parses let/const/function with an optional leading export.
func (p *Parser) parseDecl() ast.Stmt {
	var exportSpan source.Span
	doc := p.tok.Doc
	if exp, ok := p.eat(token.KwExport); ok {
		exportSpan = exp.Span
		// Захватываем пробел после export, чтобы стирание не склеивало слова.
		if int(exportSpan.End) < len(p.file.Content) && p.file.Content[exportSpan.End] == ' ' {
			exportSpan.End++
		}
		if doc == "" {
			doc = p.tok.Doc
		}
	}

	switch p.tok.Kind {
	case token.KwLet, token.KwConst:
		return p.parseVar(exportSpan, doc)
	case token.KwFunction:
		return p.parseFunc(exportSpan, doc)
	default:
		p.report(diag.SynDeclarationExpected, p.tok.Span, "Declaration expected.")
		p.sync()
		return nil
	}
}

func (p *Parser) parseVar(exportSpan source.Span, doc string) ast.Stmt {
	kw := p.tok
	kind := ast.DeclLet
	if kw.Kind == token.KwConst {
		kind = ast.DeclConst
	}
	if doc == "" {
		doc = kw.Doc
	}
	p.next()

	nameTok, ok := p.eat(token.Ident)
	if !ok {
		p.report(diag.SynIdentifierExpected, p.tok.Span, "Identifier expected.")
		p.sync()
		return nil
	}
	d := &ast.VarDecl{
		ExportSpan: exportSpan,
		Kind:       kind,
		Name:       &ast.Ident{NameSpan: nameTok.Span, Name: nameTok.Text},
		Doc:        doc,
	}

	if colon, ok := p.eat(token.Colon); ok {
		t := p.parseType()
		if t == nil {
			p.sync()
			return nil
		}
		d.Type = t
		d.TypeSpan = colon.Span.Cover(t.Span())
	}

	if _, ok := p.eat(token.Assign); ok {
		d.Init = p.parseExpr()
		if d.Init == nil {
			p.sync()
			return nil
		}
	} else if kind == ast.DeclConst {
		p.report(diag.SynMissingInitializer, nameTok.Span, "'const' declarations must be initialized.")
	}

	end := nameTok.Span
	if d.Init != nil {
		end = d.Init.Span()
	} else if d.Type != nil {
		end = d.Type.Span()
	}
	start := kw.Span
	if !exportSpan.Empty() {
		start = exportSpan
	}
	if semi, ok := p.eat(token.Semi); ok {
		end = semi.Span
	}
	d.DeclSpan = start.Cover(end)
	return d
}

func (p *Parser) parseFunc(exportSpan source.Span, doc string) ast.Stmt {
	kw := p.tok
	if doc == "" {
		doc = kw.Doc
	}
	p.next()

	nameTok, ok := p.eat(token.Ident)
	if !ok {
		p.report(diag.SynIdentifierExpected, p.tok.Span, "Identifier expected.")
		p.sync()
		return nil
	}
	d := &ast.FuncDecl{
		ExportSpan: exportSpan,
		Name:       &ast.Ident{NameSpan: nameTok.Span, Name: nameTok.Text},
		Doc:        doc,
	}

	if _, ok := p.expect(token.LParen); !ok {
		p.sync()
		return nil
	}
	for !p.at(token.RParen) && !p.at(token.EOF) {
		pn, ok := p.eat(token.Ident)
		if !ok {
			p.report(diag.SynIdentifierExpected, p.tok.Span, "Identifier expected.")
			p.sync()
			return nil
		}
		param := ast.Param{Name: &ast.Ident{NameSpan: pn.Span, Name: pn.Text}}
		if colon, ok := p.eat(token.Colon); ok {
			t := p.parseType()
			if t == nil {
				p.sync()
				return nil
			}
			param.Type = t
			param.TypeSpan = colon.Span.Cover(t.Span())
		}
		d.Params = append(d.Params, param)
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	if _, ok := p.expect(token.RParen); !ok {
		p.sync()
		return nil
	}

	if colon, ok := p.eat(token.Colon); ok {
		t := p.parseType()
		if t == nil {
			p.sync()
			return nil
		}
		d.Ret = t
		d.RetSpan = colon.Span.Cover(t.Span())
	}

	body := p.parseBlock()
	if body == nil {
		return nil
	}
	d.Body = body

	start := kw.Span
	if !exportSpan.Empty() {
		start = exportSpan
	}
	d.DeclSpan = start.Cover(body.RBrace)
	return d
}

func (p *Parser) parseImport() ast.Stmt {
	kw := p.tok
	p.next()

	d := &ast.ImportDecl{}
	if _, ok := p.expect(token.LBrace); !ok {
		p.sync()
		return nil
	}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		n, ok := p.eat(token.Ident)
		if !ok {
			p.report(diag.SynIdentifierExpected, p.tok.Span, "Identifier expected.")
			p.sync()
			return nil
		}
		d.Names = append(d.Names, &ast.Ident{NameSpan: n.Span, Name: n.Text})
		if _, ok := p.eat(token.Comma); !ok {
			break
		}
	}
	if _, ok := p.expect(token.RBrace); !ok {
		p.sync()
		return nil
	}
	if _, ok := p.expect(token.KwFrom); !ok {
		p.sync()
		return nil
	}
	from, ok := p.eat(token.String)
	if !ok {
		p.report(diag.SynExpectedToken, p.tok.Span, "String literal expected.")
		p.sync()
		return nil
	}
	d.From = &ast.StringLit{LitSpan: from.Span, Value: from.Text}
	end := from.Span
	if semi, ok := p.eat(token.Semi); ok {
		end = semi.Span
	}
	d.DeclSpan = kw.Span.Cover(end)
	return d
}

func (p *Parser) parseBlock() *ast.Block {
	lb, ok := p.expect(token.LBrace)
	if !ok {
		p.sync()
		return nil
	}
	b := &ast.Block{LBrace: lb.Span}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		before := p.tok.Span
		if s := p.parseStmt(); s != nil {
			b.Stmts = append(b.Stmts, s)
		}
		if p.tok.Span == before && !p.at(token.RBrace) && !p.at(token.EOF) {
			p.next()
		}
	}
	rb, ok := p.eat(token.RBrace)
	if !ok {
		p.report(diag.SynUnexpectedEOF, p.tok.Span, "'}' expected.")
		rb = p.tok
	}
	b.RBrace = rb.Span
	return b
}

func (p *Parser) parseIf() ast.Stmt {
	kw := p.tok
	p.next()
	if _, ok := p.expect(token.LParen); !ok {
		p.sync()
		return nil
	}
	cond := p.parseExpr()
	if cond == nil {
		p.sync()
		return nil
	}
	if _, ok := p.expect(token.RParen); !ok {
		p.sync()
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}
	s := &ast.IfStmt{Cond: cond, Then: then}
	end := then.RBrace
	if _, ok := p.eat(token.KwElse); ok {
		if p.at(token.KwIf) {
			s.Else = p.parseIf()
		} else {
			s.Else = p.parseBlock()
		}
		if s.Else != nil {
			end = s.Else.Span()
		}
	}
	s.StmtSpan = kw.Span.Cover(end)
	return s
}

func (p *Parser) parseWhile() ast.Stmt {
	kw := p.tok
	p.next()
	if _, ok := p.expect(token.LParen); !ok {
		p.sync()
		return nil
	}
	cond := p.parseExpr()
	if cond == nil {
		p.sync()
		return nil
	}
	if _, ok := p.expect(token.RParen); !ok {
		p.sync()
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.WhileStmt{StmtSpan: kw.Span.Cover(body.RBrace), Cond: cond, Body: body}
}

func (p *Parser) parseReturn() ast.Stmt {
	kw := p.tok
	p.next()
	s := &ast.ReturnStmt{StmtSpan: kw.Span}
	if !p.at(token.Semi) && !p.at(token.RBrace) && !p.at(token.EOF) {
		s.Value = p.parseExpr()
		if s.Value != nil {
			s.StmtSpan = kw.Span.Cover(s.Value.Span())
		}
	}
	p.optSemi()
	return s
}

func (p *Parser) parseThrow() ast.Stmt {
	kw := p.tok
	p.next()
	v := p.parseExpr()
	if v == nil {
		p.sync()
		return nil
	}
	p.optSemi()
	return &ast.ThrowStmt{StmtSpan: kw.Span.Cover(v.Span()), Value: v}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	x := p.parseExpr()
	if x == nil {
		p.report(diag.SynExpressionExpected, p.tok.Span, "Expression expected.")
		p.sync()
		return nil
	}
	p.optSemi()
	return &ast.ExprStmt{StmtSpan: x.Span(), X: x}
}

func (p *Parser) parseType() ast.TypeExpr {
	switch p.tok.Kind {
	case token.Ident:
		t := &ast.TypeRef{NameSpan: p.tok.Span, Name: p.tok.Text}
		p.next()
		return t
	case token.Number, token.String:
		t := &ast.LitType{LitSpan: p.tok.Span, Raw: rawLit(p.tok)}
		p.next()
		return t
	case token.KwTrue, token.KwFalse, token.KwNull:
		t := &ast.LitType{LitSpan: p.tok.Span, Raw: p.tok.Text}
		p.next()
		return t
	default:
		p.report(diag.SynExpectedToken, p.tok.Span, "Type expected.")
		return nil
	}
}

func rawLit(t token.Token) string {
	if t.Kind == token.String {
		return strconv.Quote(t.Text)
	}
	return t.Text
}

// --- expressions, precedence climbing ---

func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssign()
}

func (p *Parser) parseAssign() ast.Expr {
	x := p.parseOr()
	if x == nil {
		return nil
	}
	if _, ok := p.eat(token.Assign); ok {
		switch x.(type) {
		case *ast.Ident, *ast.Member, *ast.Index:
		default:
			p.report(diag.SynExpressionExpected, x.Span(), "Invalid assignment target.")
		}
		v := p.parseAssign()
		if v == nil {
			return nil
		}
		return &ast.Assign{Target: x, Value: v}
	}
	return x
}

func (p *Parser) parseOr() ast.Expr {
	x := p.parseAnd()
	for x != nil && p.at(token.OrOr) {
		p.next()
		y := p.parseAnd()
		if y == nil {
			return nil
		}
		x = &ast.Binary{Op: "||", X: x, Y: y}
	}
	return x
}

func (p *Parser) parseAnd() ast.Expr {
	x := p.parseEquality()
	for x != nil && p.at(token.AndAnd) {
		p.next()
		y := p.parseEquality()
		if y == nil {
			return nil
		}
		x = &ast.Binary{Op: "&&", X: x, Y: y}
	}
	return x
}

func (p *Parser) parseEquality() ast.Expr {
	x := p.parseRelational()
	for x != nil {
		var op string
		switch p.tok.Kind {
		case token.Eq:
			op = "=="
		case token.NotEq:
			op = "!="
		case token.StrictEq:
			op = "==="
		case token.StrictNE:
			op = "!=="
		default:
			return x
		}
		p.next()
		y := p.parseRelational()
		if y == nil {
			return nil
		}
		x = &ast.Binary{Op: op, X: x, Y: y}
	}
	return x
}

func (p *Parser) parseRelational() ast.Expr {
	x := p.parseAdditive()
	for x != nil {
		var op string
		switch p.tok.Kind {
		case token.Lt:
			op = "<"
		case token.Le:
			op = "<="
		case token.Gt:
			op = ">"
		case token.Ge:
			op = ">="
		default:
			return x
		}
		p.next()
		y := p.parseAdditive()
		if y == nil {
			return nil
		}
		x = &ast.Binary{Op: op, X: x, Y: y}
	}
	return x
}

func (p *Parser) parseAdditive() ast.Expr {
	x := p.parseMultiplicative()
	for x != nil {
		var op string
		switch p.tok.Kind {
		case token.Plus:
			op = "+"
		case token.Minus:
			op = "-"
		default:
			return x
		}
		p.next()
		y := p.parseMultiplicative()
		if y == nil {
			return nil
		}
		x = &ast.Binary{Op: op, X: x, Y: y}
	}
	return x
}

func (p *Parser) parseMultiplicative() ast.Expr {
	x := p.parseUnary()
	for x != nil {
		var op string
		switch p.tok.Kind {
		case token.Star:
			op = "*"
		case token.Slash:
			op = "/"
		case token.Percent:
			op = "%"
		default:
			return x
		}
		p.next()
		y := p.parseUnary()
		if y == nil {
			return nil
		}
		x = &ast.Binary{Op: op, X: x, Y: y}
	}
	return x
}

func (p *Parser) parseUnary() ast.Expr {
	switch p.tok.Kind {
	case token.Bang, token.Minus:
		opTok := p.tok
		p.next()
		x := p.parseUnary()
		if x == nil {
			return nil
		}
		return &ast.Unary{OpSpan: opTok.Span, Op: opTok.Text, X: x}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expr {
	x := p.parsePrimary()
	for x != nil {
		switch p.tok.Kind {
		case token.LParen:
			p.next()
			call := &ast.Call{Callee: x}
			for !p.at(token.RParen) && !p.at(token.EOF) {
				arg := p.parseExpr()
				if arg == nil {
					return nil
				}
				call.Args = append(call.Args, arg)
				if _, ok := p.eat(token.Comma); !ok {
					break
				}
			}
			rp, ok := p.expect(token.RParen)
			if !ok {
				return nil
			}
			call.CallSpan = x.Span().Cover(rp.Span)
			x = call
		case token.Dot:
			p.next()
			n, ok := p.eat(token.Ident)
			if !ok {
				p.report(diag.SynIdentifierExpected, p.tok.Span, "Identifier expected.")
				return nil
			}
			x = &ast.Member{X: x, Name: &ast.Ident{NameSpan: n.Span, Name: n.Text}}
		case token.LBracket:
			p.next()
			idx := p.parseExpr()
			if idx == nil {
				return nil
			}
			rb, ok := p.expect(token.RBracket)
			if !ok {
				return nil
			}
			x = &ast.Index{X: x, I: idx, FullSpan: x.Span().Cover(rb.Span)}
		default:
			return x
		}
	}
	return x
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.tok
	switch tok.Kind {
	case token.Number:
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			p.report(diag.LexBadNumber, tok.Span, "Malformed number literal.")
		}
		p.next()
		return &ast.NumberLit{LitSpan: tok.Span, Value: v, Raw: tok.Text}
	case token.String:
		p.next()
		return &ast.StringLit{LitSpan: tok.Span, Value: tok.Text}
	case token.KwTrue:
		p.next()
		return &ast.BoolLit{LitSpan: tok.Span, Value: true}
	case token.KwFalse:
		p.next()
		return &ast.BoolLit{LitSpan: tok.Span, Value: false}
	case token.KwNull:
		p.next()
		return &ast.NullLit{LitSpan: tok.Span}
	case token.Ident:
		p.next()
		return &ast.Ident{NameSpan: tok.Span, Name: tok.Text}
	case token.LParen:
		p.next()
		x := p.parseExpr()
		if x == nil {
			return nil
		}
		rp, ok := p.expect(token.RParen)
		if !ok {
			return nil
		}
		return &ast.Paren{FullSpan: tok.Span.Cover(rp.Span), X: x}
	default:
		return nil
	}
}
