package compiler

import (
	"testing"
)

type tokSpec struct {
	typ TokenType
	lit string
}

func expectTokens(t *testing.T, input string, want []tokSpec) {
	t.Helper()
	l := NewLexer(input)
	for i, exp := range want {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("%q token[%d] type = %v, want %v", input, i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("%q token[%d] literal = %q, want %q", input, i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerPunctuation(t *testing.T) {
	want := []TokenType{
		TokenLParen, TokenRParen, TokenLBracket, TokenRBracket, TokenLBrace, TokenRBrace,
		TokenCaret, TokenPeriod, TokenSemicolon, TokenAssign, TokenColon, TokenBar, TokenHashLParen,
	}
	toks := Tokenize(`( ) [ ] { } ^ . ; := : | #(`)
	if len(toks) != len(want)+1 {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want)+1, toks)
	}
	for i, typ := range want {
		if toks[i].Type != typ || toks[i].Literal != typ.String() {
			t.Errorf("token[%d] = %v, want %v", i, toks[i], typ)
		}
	}
	if toks[len(want)].Type != TokenEOF {
		t.Errorf("last token = %v, want EOF", toks[len(want)])
	}
}

func TestLexerErrors(t *testing.T) {
	tests := map[string]string{
		"'open":       "unterminated string",
		"a ` b":       "unexpected character: `",
		"x := \u00a7": "unexpected character: \u00a7",
	}
	for src, want := range tests {
		var got Token
		for _, tok := range Tokenize(src) {
			if tok.Type == TokenError {
				got = tok
				break
			}
		}
		if got.Type != TokenError || got.Literal != want {
			t.Errorf("Tokenize(%q) error token = %v, want %q", src, got, want)
		}
	}
}

func TestOperandTypes(t *testing.T) {
	for _, typ := range []TokenType{TokenIdentifier, TokenRParen, TokenRBracket, TokenNil, TokenString} {
		if !typ.endsOperand() {
			t.Errorf("%v should end an operand", typ)
		}
	}
	for _, typ := range []TokenType{TokenKeyword, TokenBinarySelector, TokenLParen, TokenAssign, TokenType(999)} {
		if typ.endsOperand() {
			t.Errorf("%v should not end an operand", typ)
		}
	}
	if got := TokenType(999).String(); got != "Token(999)" {
		t.Errorf("String() of an unknown type = %q", got)
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"42", TokenInteger},
		{"-123", TokenInteger},
		{"16rFF", TokenInteger},
		{"3.14", TokenFloat},
		{"1e10", TokenFloat},
		{"-2.5", TokenFloat},
	}
	for _, tc := range tests {
		tok := NewLexer(tc.input).NextToken()
		if tok.Type != tc.typ || tok.Literal != tc.input {
			t.Errorf("Lexer(%q) = %v %q, want %v", tc.input, tok.Type, tok.Literal, tc.typ)
		}
	}
}

func TestLexerMinusAfterOperand(t *testing.T) {
	// After an operand a minus is a binary selector, not a sign.
	expectTokens(t, "3-2", []tokSpec{
		{TokenInteger, "3"},
		{TokenBinarySelector, "-"},
		{TokenInteger, "2"},
	})
	expectTokens(t, "x -1", []tokSpec{
		{TokenIdentifier, "x"},
		{TokenBinarySelector, "-"},
		{TokenInteger, "1"},
	})
	expectTokens(t, "(-1)", []tokSpec{
		{TokenLParen, "("},
		{TokenInteger, "-1"},
		{TokenRParen, ")"},
	})
}

func TestLexerPeriodAfterNumber(t *testing.T) {
	expectTokens(t, "x := 3.\ny", []tokSpec{
		{TokenIdentifier, "x"},
		{TokenAssign, ":="},
		{TokenInteger, "3"},
		{TokenPeriod, "."},
		{TokenIdentifier, "y"},
	})
}

func TestLexerStringsAndSymbols(t *testing.T) {
	expectTokens(t, `'it''s' #foo #at:put: #+ #'two words' $a`, []tokSpec{
		{TokenString, "it's"},
		{TokenSymbol, "foo"},
		{TokenSymbol, "at:put:"},
		{TokenSymbol, "+"},
		{TokenSymbol, "two words"},
		{TokenCharacter, "a"},
	})
}

func TestLexerIdentifiersAndKeywords(t *testing.T) {
	expectTokens(t, "self super nil true false foo at: Bar", []tokSpec{
		{TokenSelf, "self"},
		{TokenSuper, "super"},
		{TokenNil, "nil"},
		{TokenTrue, "true"},
		{TokenFalse, "false"},
		{TokenIdentifier, "foo"},
		{TokenKeyword, "at:"},
		{TokenIdentifier, "Bar"},
	})
}

func TestLexerQualifiedIdentifier(t *testing.T) {
	expectTokens(t, "pkg::sub::A data. x:=1", []tokSpec{
		{TokenIdentifier, "pkg::sub::A"},
		{TokenIdentifier, "data"},
		{TokenPeriod, "."},
		{TokenIdentifier, "x"},
		{TokenAssign, ":="},
		{TokenInteger, "1"},
	})
}

func TestLexerComments(t *testing.T) {
	expectTokens(t, "foo \"a comment\" bar\n# line comment\nbaz", []tokSpec{
		{TokenIdentifier, "foo"},
		{TokenIdentifier, "bar"},
		{TokenIdentifier, "baz"},
		{TokenEOF, ""},
	})
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("foo bar\n  baz")
	want := []Position{
		{Offset: 0, Line: 1, Column: 1},
		{Offset: 4, Line: 1, Column: 5},
		{Offset: 10, Line: 2, Column: 3},
	}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Pos != w {
			t.Errorf("token[%d] %q at %+v, want %+v", i, tok.Literal, tok.Pos, w)
		}
	}
}

func TestTokenizeEndsWithEOF(t *testing.T) {
	toks := Tokenize("a + b")
	if len(toks) == 0 || toks[len(toks)-1].Type != TokenEOF {
		t.Fatalf("Tokenize did not end with EOF: %v", toks)
	}
}
