// Package lexer turns typed-script source into tokens. It is deliberately
// byte-oriented: identifiers are ASCII plus $ and _, everything above 0x7F
// is only legal inside strings and comments.
package lexer

import (
	"strings"

	"tsload/internal/diag"
	"tsload/internal/source"
	"tsload/internal/token"
)

type Lexer struct {
	file     *source.File
	off      uint32
	reporter diag.Reporter
	look     *token.Token // 1-элементный буфер для Peek
	doc      strings.Builder
	docFresh bool // doc примыкает к следующему токену (нет пустой строки)
}

func New(file *source.File, reporter diag.Reporter) *Lexer {
	return &Lexer{file: file, reporter: reporter}
}

// Next возвращает следующий значимый токен. После EOF всегда возвращает EOF.
func (lx *Lexer) Next() token.Token {
	if lx.look != nil {
		tok := *lx.look
		lx.look = nil
		return tok
	}

	lx.skipTrivia()

	if lx.eof() {
		return token.Token{Kind: token.EOF, Span: lx.span(lx.off, lx.off)}
	}

	ch := lx.peek()
	var tok token.Token
	switch {
	case isIdentStart(ch):
		tok = lx.scanIdent()
	case isDigit(ch):
		tok = lx.scanNumber()
	case ch == '"' || ch == '\'':
		tok = lx.scanString()
	default:
		tok = lx.scanOperator()
	}

	if lx.docFresh && lx.doc.Len() > 0 {
		tok.Doc = strings.TrimSpace(lx.doc.String())
	}
	lx.doc.Reset()
	lx.docFresh = false
	return tok
}

// Peek возвращает следующий токен, не потребляя его.
func (lx *Lexer) Peek() token.Token {
	t := lx.Next()
	lx.look = &t
	return t
}

func (lx *Lexer) eof() bool  { return int(lx.off) >= len(lx.file.Content) }
func (lx *Lexer) peek() byte { return lx.file.Content[lx.off] }
func (lx *Lexer) advance()   { lx.off++ }

func (lx *Lexer) peekAt(n uint32) byte {
	if int(lx.off+n) >= len(lx.file.Content) {
		return 0
	}
	return lx.file.Content[lx.off+n]
}

func (lx *Lexer) span(start, end uint32) source.Span {
	return source.Span{File: lx.file.ID, Start: start, End: end}
}

func (lx *Lexer) text(sp source.Span) string {
	return string(lx.file.Content[sp.Start:sp.End])
}

// skipTrivia съедает пробелы и комментарии, накапливая текст комментариев
// как потенциальный doc для следующего токена. Пустая строка между
// комментарием и токеном сбрасывает привязку.
func (lx *Lexer) skipTrivia() {
	newlines := 0
	for !lx.eof() {
		ch := lx.peek()
		switch {
		case ch == '\n':
			newlines++
			if newlines > 1 {
				lx.doc.Reset()
			}
			lx.advance()
		case ch == ' ' || ch == '\t' || ch == '\r':
			lx.advance()
		case ch == '/' && lx.peekAt(1) == '/':
			start := lx.off
			for !lx.eof() && lx.peek() != '\n' {
				lx.advance()
			}
			line := strings.TrimPrefix(lx.text(lx.span(start, lx.off)), "//")
			lx.appendDoc(strings.TrimPrefix(line, "/")) // также снимаем '///'
			newlines = 0
		case ch == '/' && lx.peekAt(1) == '*':
			start := lx.off
			lx.advance()
			lx.advance()
			closed := false
			for !lx.eof() {
				if lx.peek() == '*' && lx.peekAt(1) == '/' {
					lx.advance()
					lx.advance()
					closed = true
					break
				}
				lx.advance()
			}
			if !closed {
				lx.report(diag.LexUnterminatedComment, lx.span(start, lx.off), "Unterminated block comment.")
			}
			lx.appendDoc(stripBlockComment(lx.text(lx.span(start, lx.off))))
			newlines = 0
		default:
			lx.docFresh = true
			return
		}
	}
}

func (lx *Lexer) appendDoc(line string) {
	if lx.doc.Len() > 0 {
		lx.doc.WriteByte('\n')
	}
	lx.doc.WriteString(strings.TrimSpace(line))
}

func stripBlockComment(text string) string {
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(strings.TrimSpace(l), "* ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (lx *Lexer) scanIdent() token.Token {
	start := lx.off
	for !lx.eof() && isIdentPart(lx.peek()) {
		lx.advance()
	}
	sp := lx.span(start, lx.off)
	text := lx.text(sp)
	return token.Token{Kind: token.LookupKeyword(text), Span: sp, Text: text}
}

func (lx *Lexer) scanNumber() token.Token {
	start := lx.off
	for !lx.eof() && isDigit(lx.peek()) {
		lx.advance()
	}
	if !lx.eof() && lx.peek() == '.' && isDigit(lx.peekAt(1)) {
		lx.advance()
		for !lx.eof() && isDigit(lx.peek()) {
			lx.advance()
		}
	}
	if !lx.eof() && (lx.peek() == 'e' || lx.peek() == 'E') {
		save := lx.off
		lx.advance()
		if !lx.eof() && (lx.peek() == '+' || lx.peek() == '-') {
			lx.advance()
		}
		if lx.eof() || !isDigit(lx.peek()) {
			lx.off = save
			lx.report(diag.LexBadNumber, lx.span(start, lx.off), "Malformed number literal.")
		} else {
			for !lx.eof() && isDigit(lx.peek()) {
				lx.advance()
			}
		}
	}
	// Идентификатор сразу после числа — ошибка ("123abc")
	if !lx.eof() && isIdentStart(lx.peek()) {
		for !lx.eof() && isIdentPart(lx.peek()) {
			lx.advance()
		}
		sp := lx.span(start, lx.off)
		lx.report(diag.LexBadNumber, sp, "An identifier cannot immediately follow a numeric literal.")
		return token.Token{Kind: token.Number, Span: sp, Text: lx.text(sp)}
	}
	sp := lx.span(start, lx.off)
	return token.Token{Kind: token.Number, Span: sp, Text: lx.text(sp)}
}

func (lx *Lexer) scanString() token.Token {
	quote := lx.peek()
	start := lx.off
	lx.advance()
	var sb strings.Builder
	for {
		if lx.eof() || lx.peek() == '\n' {
			sp := lx.span(start, lx.off)
			lx.report(diag.LexUnterminatedString, sp, "Unterminated string literal.")
			return token.Token{Kind: token.String, Span: sp, Text: sb.String()}
		}
		ch := lx.peek()
		if ch == quote {
			lx.advance()
			break
		}
		if ch == '\\' {
			lx.advance()
			if lx.eof() {
				continue
			}
			switch lx.peek() {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '\'':
				sb.WriteByte('\'')
			case '"':
				sb.WriteByte('"')
			default:
				sb.WriteByte(lx.peek())
			}
			lx.advance()
			continue
		}
		sb.WriteByte(ch)
		lx.advance()
	}
	return token.Token{Kind: token.String, Span: lx.span(start, lx.off), Text: sb.String()}
}

func (lx *Lexer) scanOperator() token.Token {
	start := lx.off
	ch := lx.peek()
	mk := func(kind token.Kind, n uint32) token.Token {
		lx.off += n
		sp := lx.span(start, lx.off)
		return token.Token{Kind: kind, Span: sp, Text: lx.text(sp)}
	}
	switch ch {
	case '(':
		return mk(token.LParen, 1)
	case ')':
		return mk(token.RParen, 1)
	case '{':
		return mk(token.LBrace, 1)
	case '}':
		return mk(token.RBrace, 1)
	case '[':
		return mk(token.LBracket, 1)
	case ']':
		return mk(token.RBracket, 1)
	case ',':
		return mk(token.Comma, 1)
	case ';':
		return mk(token.Semi, 1)
	case ':':
		return mk(token.Colon, 1)
	case '.':
		return mk(token.Dot, 1)
	case '+':
		return mk(token.Plus, 1)
	case '-':
		return mk(token.Minus, 1)
	case '*':
		return mk(token.Star, 1)
	case '/':
		return mk(token.Slash, 1)
	case '%':
		return mk(token.Percent, 1)
	case '=':
		if lx.peekAt(1) == '=' {
			if lx.peekAt(2) == '=' {
				return mk(token.StrictEq, 3)
			}
			return mk(token.Eq, 2)
		}
		return mk(token.Assign, 1)
	case '!':
		if lx.peekAt(1) == '=' {
			if lx.peekAt(2) == '=' {
				return mk(token.StrictNE, 3)
			}
			return mk(token.NotEq, 2)
		}
		return mk(token.Bang, 1)
	case '<':
		if lx.peekAt(1) == '=' {
			return mk(token.Le, 2)
		}
		return mk(token.Lt, 1)
	case '>':
		if lx.peekAt(1) == '=' {
			return mk(token.Ge, 2)
		}
		return mk(token.Gt, 1)
	case '&':
		if lx.peekAt(1) == '&' {
			return mk(token.AndAnd, 2)
		}
	case '|':
		if lx.peekAt(1) == '|' {
			return mk(token.OrOr, 2)
		}
	}
	sp := lx.span(start, start+1)
	lx.report(diag.LexUnexpectedChar, sp, "Invalid character.")
	lx.advance()
	return lx.Next()
}

func (lx *Lexer) report(code diag.Code, sp source.Span, msg string) {
	if lx.reporter != nil {
		lx.reporter.Report(code, diag.SevError, sp, msg, nil)
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '$' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }
