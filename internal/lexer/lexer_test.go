package lexer

import (
	"testing"

	"tsload/internal/diag"
	"tsload/internal/source"
	"tsload/internal/token"
)

func lexAll(t *testing.T, src string) ([]token.Token, *diag.Bag) {
	t.Helper()
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("test.ts", []byte(src)))
	bag := diag.NewBag(16)
	lx := New(file, diag.BagReporter{Bag: bag})

	var toks []token.Token
	for {
		tok := lx.Next()
		if tok.Kind == token.EOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks, bag
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestLexDeclaration(t *testing.T) {
	toks, bag := lexAll(t, `const greeting: string = "hi";`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Items())
	}
	want := []token.Kind{
		token.KwConst, token.Ident, token.Colon, token.Ident,
		token.Assign, token.String, token.Semi,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if toks[5].Text != "hi" {
		t.Fatalf("string text = %q, want %q", toks[5].Text, "hi")
	}
}

func TestLexOperators(t *testing.T) {
	cases := []struct {
		src  string
		want token.Kind
	}{
		{"==", token.Eq},
		{"===", token.StrictEq},
		{"!=", token.NotEq},
		{"!==", token.StrictNE},
		{"<=", token.Le},
		{">=", token.Ge},
		{"&&", token.AndAnd},
		{"||", token.OrOr},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			toks, bag := lexAll(t, tc.src)
			if bag.HasErrors() {
				t.Fatalf("unexpected diagnostics for %q", tc.src)
			}
			if len(toks) != 1 || toks[0].Kind != tc.want {
				t.Fatalf("got %v, want single %v", kinds(toks), tc.want)
			}
		})
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks, bag := lexAll(t, `"a\nb\t\"c\""`)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics")
	}
	if toks[0].Text != "a\nb\t\"c\"" {
		t.Fatalf("escaped text = %q", toks[0].Text)
	}
}

func TestLexUnterminatedString(t *testing.T) {
	_, bag := lexAll(t, `let s = "open`)
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.LexUnterminatedString {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", diag.LexUnterminatedString, bag.Items())
	}
}

func TestLexBadNumber(t *testing.T) {
	_, bag := lexAll(t, `let n = 123abc;`)
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.LexBadNumber {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", diag.LexBadNumber, bag.Items())
	}
}

func TestLexInvalidCharacterRecovers(t *testing.T) {
	toks, bag := lexAll(t, "let @x = 1;")
	if !bag.HasErrors() {
		t.Fatalf("expected a diagnostic for '@'")
	}
	// Скан продолжается после ошибки: x всё ещё токенизируется.
	sawIdent := false
	for _, tok := range toks {
		if tok.Kind == token.Ident && tok.Text == "x" {
			sawIdent = true
		}
	}
	if !sawIdent {
		t.Fatalf("lexer did not recover past the invalid character: %v", kinds(toks))
	}
}

func TestDocCommentAttachment(t *testing.T) {
	src := "// doubles the input\nfunction twice(n: number): number { return n * 2; }"
	toks, _ := lexAll(t, src)
	if toks[0].Kind != token.KwFunction {
		t.Fatalf("first token %v", toks[0].Kind)
	}
	if toks[0].Doc != "doubles the input" {
		t.Fatalf("doc = %q", toks[0].Doc)
	}
}

func TestDocCommentBlankLineDetaches(t *testing.T) {
	src := "// stale comment\n\nlet x = 1;"
	toks, _ := lexAll(t, src)
	if toks[0].Doc != "" {
		t.Fatalf("blank line should detach the comment, got doc %q", toks[0].Doc)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	fs := source.NewFileSet()
	file := fs.Get(fs.AddVirtual("p.ts", []byte("let x")))
	lx := New(file, diag.NopReporter{})
	if lx.Peek().Kind != token.KwLet {
		t.Fatalf("peek kind")
	}
	if lx.Next().Kind != token.KwLet {
		t.Fatalf("next after peek should return the same token")
	}
	if lx.Next().Kind != token.Ident {
		t.Fatalf("second token")
	}
}
