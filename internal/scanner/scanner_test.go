package scanner

import (
	"testing"

	"vela-lang/internal/token"
)

func collect(t *testing.T, source string) []token.Token {
	t.Helper()
	s := New(source)
	var toks []token.Token
	for {
		tok, ok := s.Next()
		if !ok {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestPunctuationAndOperators(t *testing.T) {
	toks := collect(t, "( ) { } , . - + ; / * | ! != = == => ? : ?: < <= > >=")
	want := []token.Type{
		token.LParen, token.RParen, token.LBrace, token.RBrace,
		token.Comma, token.Dot, token.Minus, token.Plus, token.Semi,
		token.Slash, token.Star, token.Bar, token.Bang, token.BangEqual,
		token.Equal, token.EqualEqual, token.FatArrow, token.Question,
		token.Colon, token.QuestionColon, token.Less, token.LessEqual,
		token.Greater, token.GreaterEqual,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, tt := range want {
		if toks[i].Type != tt {
			t.Errorf("token %d: got %v, want %v", i, toks[i].Type, tt)
		}
	}
}

func TestNumbers(t *testing.T) {
	toks := collect(t, "1 3.5 100")
	if len(toks) != 3 {
		t.Fatalf("got %d tokens", len(toks))
	}
	for i, want := range []string{"1", "3.5", "100"} {
		if toks[i].Type != token.Number || toks[i].Lexeme != want {
			t.Errorf("token %d: got %q/%v, want %q", i, toks[i].Lexeme, toks[i].Type, want)
		}
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := collect(t, "var val x and or if else while for match true false nil print")
	wantTypes := []token.Type{
		token.Var, token.Val, token.Ident, token.And, token.Or, token.If,
		token.Else, token.While, token.For, token.Match, token.True,
		token.False, token.Nil, token.Print,
	}
	if len(toks) != len(wantTypes) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(wantTypes))
	}
	for i, tt := range wantTypes {
		if toks[i].Type != tt {
			t.Errorf("token %d (%q): got %v, want %v", i, toks[i].Lexeme, toks[i].Type, tt)
		}
	}
}

func TestLineTracking(t *testing.T) {
	toks := collect(t, "var a = 1;\nvar b = 2;\n// comment\nvar c = 3;")
	lineOf := map[string]int{}
	for _, tok := range toks {
		if tok.Type == token.Ident {
			lineOf[tok.Lexeme] = tok.Line
		}
	}
	if lineOf["a"] != 1 || lineOf["b"] != 2 || lineOf["c"] != 4 {
		t.Errorf("unexpected line numbers: %+v", lineOf)
	}
}

func TestSimpleString(t *testing.T) {
	toks := collect(t, `"hello world"`)
	if len(toks) != 1 || toks[0].Type != token.Str || toks[0].Lexeme != "hello world" {
		t.Fatalf("got %+v", toks)
	}
}

func TestStringInterpolation(t *testing.T) {
	toks := collect(t, `"x=${1+2}y"`)
	wantTypes := []token.Type{token.StrInterp, token.Number, token.Plus, token.Number, token.RBrace, token.Str}
	if len(toks) != len(wantTypes) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(wantTypes), toks)
	}
	for i, tt := range wantTypes {
		if toks[i].Type != tt {
			t.Errorf("token %d: got %v, want %v (%+v)", i, toks[i].Type, tt, toks[i])
		}
	}
	if toks[0].Lexeme != "x=" {
		t.Errorf("first fragment: got %q, want %q", toks[0].Lexeme, "x=")
	}
	if toks[5].Lexeme != "y" {
		t.Errorf("last fragment: got %q, want %q", toks[5].Lexeme, "y")
	}
}

func TestUnterminatedStringIsErrorToken(t *testing.T) {
	toks := collect(t, `"never closed`)
	if len(toks) != 1 || toks[0].Type != token.Error {
		t.Fatalf("got %+v, want a single Error token", toks)
	}
}

func TestIllegalCharacterIsErrorToken(t *testing.T) {
	toks := collect(t, "@")
	if len(toks) != 1 || toks[0].Type != token.Error {
		t.Fatalf("got %+v, want a single Error token", toks)
	}
}
