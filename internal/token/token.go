package token

import (
	"tsload/internal/source"
)

// Kind classifies a lexical token of the typed-script dialect.
type Kind uint8

const (
	EOF Kind = iota
	Ident
	Number
	String

	// Keywords
	KwLet
	KwConst
	KwFunction
	KwReturn
	KwIf
	KwElse
	KwWhile
	KwThrow
	KwTrue
	KwFalse
	KwNull
	KwImport
	KwExport
	KwFrom

	// Punctuation and operators
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Semi
	Colon
	Dot
	Assign
	Eq       // ==
	NotEq    // !=
	StrictEq // ===
	StrictNE // !==
	Lt
	Le
	Gt
	Ge
	Plus
	Minus
	Star
	Slash
	Percent
	Bang
	AndAnd
	OrOr
)

var keywords = map[string]Kind{
	"let":      KwLet,
	"const":    KwConst,
	"function": KwFunction,
	"return":   KwReturn,
	"if":       KwIf,
	"else":     KwElse,
	"while":    KwWhile,
	"throw":    KwThrow,
	"true":     KwTrue,
	"false":    KwFalse,
	"null":     KwNull,
	"import":   KwImport,
	"export":   KwExport,
	"from":     KwFrom,
}

// LookupKeyword returns the keyword kind for an identifier text, or Ident.
func LookupKeyword(text string) Kind {
	if k, ok := keywords[text]; ok {
		return k
	}
	return Ident
}

// Token is one significant token. Doc carries the text of the comment block
// immediately preceding the token, when one exists; declarations use it as
// their doc comment.
type Token struct {
	Kind Kind
	Span source.Span
	Text string
	Doc  string
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "?"
}

var kindNames = [...]string{
	EOF: "end of file",
	Ident: "identifier",
	Number: "number",
	String: "string",
	KwLet: "let",
	KwConst: "const",
	KwFunction: "function",
	KwReturn: "return",
	KwIf: "if",
	KwElse: "else",
	KwWhile: "while",
	KwThrow: "throw",
	KwTrue: "true",
	KwFalse: "false",
	KwNull: "null",
	KwImport: "import",
	KwExport: "export",
	KwFrom: "from",
	LParen: "(",
	RParen: ")",
	LBrace: "{",
	RBrace: "}",
	LBracket: "[",
	RBracket: "]",
	Comma: ",",
	Semi: ";",
	Colon: ":",
	Dot: ".",
	Assign: "=",
	Eq: "==",
	NotEq: "!=",
	StrictEq: "===",
	StrictNE: "!==",
	Lt: "<",
	Le: "<=",
	Gt: ">",
	Ge: ">=",
	Plus: "+",
	Minus: "-",
	Star: "*",
	Slash: "/",
	Percent: "%",
	Bang: "!",
	AndAnd: "&&",
	OrOr: "||",
}
