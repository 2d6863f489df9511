package lexer

import (
	"loxvm/token"
	"testing"
)

func tokenTypes(toks []token.Token) []token.TokenType {
	types := make([]token.TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.TokenType
	}
	return types
}

func assertTypes(t *testing.T, got []token.TokenType, want []token.TokenType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestOperatorsSuccess(t *testing.T) {
	lex := New("==/=*+>-<!=<=>=!!")
	toks, err := lex.Scan()
	if err != nil {
		t.Fatalf("Scan() raised an error: %v", err)
	}

	want := []token.TokenType{
		token.EQUAL_EQUAL, token.DIV, token.ASSIGN, token.MULT, token.ADD,
		token.LARGER, token.SUB, token.LESS, token.NOT_EQUAL, token.LESS_EQUAL,
		token.LARGER_EQUAL, token.BANG, token.BANG, token.EOF,
	}
	assertTypes(t, tokenTypes(toks), want)
}

func TestScanPunctuation(t *testing.T) {
	lex := New("(){}**;+!=<=.,")
	toks, err := lex.Scan()
	if err != nil {
		t.Fatalf("Scan() raised an error: %v", err)
	}

	want := []token.TokenType{
		token.LPA, token.RPA, token.LCUR, token.RCUR, token.MULT, token.MULT,
		token.SEMICOLON, token.ADD, token.NOT_EQUAL, token.LESS_EQUAL,
		token.DOT, token.COMMA, token.EOF,
	}
	assertTypes(t, tokenTypes(toks), want)
}

func TestScanNumberLiteral(t *testing.T) {
	lex := New("12 3.5")
	toks, err := lex.Scan()
	if err != nil {
		t.Fatalf("Scan() raised an error: %v", err)
	}
	if toks[0].Literal != float64(12) {
		t.Errorf("toks[0].Literal = %v, want 12", toks[0].Literal)
	}
	if toks[1].Literal != float64(3.5) {
		t.Errorf("toks[1].Literal = %v, want 3.5", toks[1].Literal)
	}
}

func TestScanStringLiteral(t *testing.T) {
	lex := New(`"foo bar"`)
	toks, err := lex.Scan()
	if err != nil {
		t.Fatalf("Scan() raised an error: %v", err)
	}
	if toks[0].TokenType != token.STRING || toks[0].Literal != "foo bar" {
		t.Errorf("got %+v, want STRING 'foo bar'", toks[0])
	}
}

func TestScanUnterminatedString(t *testing.T) {
	lex := New(`"never closes`)
	_, err := lex.Scan()
	if err == nil {
		t.Fatal("expected an error for an unterminated string literal")
	}
}

func TestScanKeywordsAndIdentifiers(t *testing.T) {
	lex := New("var x fun add print and or while for if else true false nil return")
	toks, err := lex.Scan()
	if err != nil {
		t.Fatalf("Scan() raised an error: %v", err)
	}

	want := []token.TokenType{
		token.VAR, token.IDENTIFIER, token.FUNC, token.IDENTIFIER, token.PRINT,
		token.AND, token.OR, token.WHILE, token.FOR, token.IF, token.ELSE,
		token.TRUE, token.FALSE, token.NIL, token.RETURN, token.EOF,
	}
	assertTypes(t, tokenTypes(toks), want)
}

func TestScanUnexpectedCharacter(t *testing.T) {
	lex := New("@")
	_, err := lex.Scan()
	if err == nil {
		t.Fatal("expected an error for an unexpected character")
	}
}
