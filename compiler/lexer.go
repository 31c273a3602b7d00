package compiler

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer splits unit source text into tokens. Positions are computed from
// byte offsets through a table of line starts.
type Lexer struct {
	src   string
	off   int   // offset of the next unread byte
	lines []int // offset of the first byte of each line
	last  TokenType
}

// NewLexer creates a lexer over src.
func NewLexer(src string) *Lexer {
	lines := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &Lexer{src: src, lines: lines, last: TokenError}
}

func (l *Lexer) atEnd() bool { return l.off >= len(l.src) }

// cur returns the rune at the read offset, or 0 at the end.
func (l *Lexer) cur() rune {
	if l.atEnd() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.off:])
	return r
}

// peek returns the rune after cur, or 0.
func (l *Lexer) peek() rune {
	if l.atEnd() {
		return 0
	}
	_, n := utf8.DecodeRuneInString(l.src[l.off:])
	if l.off+n >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.off+n:])
	return r
}

func (l *Lexer) advance() {
	if !l.atEnd() {
		_, n := utf8.DecodeRuneInString(l.src[l.off:])
		l.off += n
	}
}

// take consumes runes while ok holds and returns them.
func (l *Lexer) take(ok func(rune) bool) string {
	start := l.off
	for !l.atEnd() && ok(l.cur()) {
		l.advance()
	}
	return l.src[start:l.off]
}

func (l *Lexer) pos(off int) Position {
	line := sort.SearchInts(l.lines, off+1) - 1
	return Position{
		Offset: off,
		Line:   line + 1,
		Column: utf8.RuneCountInString(l.src[l.lines[line]:off]) + 1,
	}
}

// NextToken returns the next token. At the end it keeps returning EOF.
func (l *Lexer) NextToken() Token {
	tok := l.scan()
	l.last = tok.Type
	return tok
}

var punctuation = map[rune]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'{': TokenLBrace,
	'}': TokenRBrace,
	'^': TokenCaret,
	'.': TokenPeriod,
	';': TokenSemicolon,
	'|': TokenBar,
}

func (l *Lexer) scan() Token {
	l.skipTrivia()

	start := l.off
	at := l.pos(start)
	span := func(typ TokenType) Token {
		return Token{Type: typ, Literal: l.src[start:l.off], Pos: at}
	}
	if l.atEnd() {
		return Token{Type: TokenEOF, Pos: at}
	}

	c := l.cur()
	if typ, ok := punctuation[c]; ok {
		l.advance()
		return span(typ)
	}
	switch {
	case c == ':':
		l.advance()
		if l.cur() == '=' {
			l.advance()
			return span(TokenAssign)
		}
		return span(TokenColon)

	case c == '#':
		return l.scanHash(at)

	case c == '\'':
		text, closed := l.quoted()
		if !closed {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: at}
		}
		return Token{Type: TokenString, Literal: text, Pos: at}

	case c == '$':
		l.advance()
		if l.atEnd() {
			return Token{Type: TokenError, Literal: "unexpected EOF in character literal", Pos: at}
		}
		ch := l.cur()
		l.advance()
		return Token{Type: TokenCharacter, Literal: string(ch), Pos: at}

	case isDigit(c), c == '-' && isDigit(l.peek()) && !l.last.endsOperand():
		return l.scanNumber(start, at)

	case isNameStart(c):
		return l.scanName(start, at)

	case IsBinaryChar(c):
		l.take(IsBinaryChar)
		return span(TokenBinarySelector)
	}

	l.advance()
	return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", c), Pos: at}
}

// skipTrivia skips blanks, "double quoted" comments and # line comments.
// A # starts a line comment only when a blank or the end follows it.
func (l *Lexer) skipTrivia() {
	for !l.atEnd() {
		switch c := l.cur(); {
		case isBlank(c):
			l.advance()
		case c == '"':
			l.advance()
			l.take(func(r rune) bool { return r != '"' })
			l.advance()
		case c == '#' && (isBlank(l.peek()) || l.peek() == 0):
			l.take(func(r rune) bool { return r != '\n' })
		default:
			return
		}
	}
}

func (l *Lexer) scanHash(at Position) Token {
	l.advance() // #
	switch c := l.cur(); {
	case c == '(':
		l.advance()
		return Token{Type: TokenHashLParen, Literal: "#(", Pos: at}
	case c == '\'':
		text, _ := l.quoted()
		return Token{Type: TokenSymbol, Literal: text, Pos: at}
	case isNameStart(c):
		return Token{Type: TokenSymbol, Literal: l.selectorName(), Pos: at}
	case IsBinaryChar(c):
		return Token{Type: TokenSymbol, Literal: l.take(IsBinaryChar), Pos: at}
	}
	return Token{Type: TokenHash, Literal: "#", Pos: at}
}

// selectorName reads foo, foo: or at:put: after a #.
func (l *Lexer) selectorName() string {
	start := l.off
	for {
		l.take(isNameChar)
		if l.cur() != ':' {
			break
		}
		l.advance()
		if !isNameStart(l.cur()) {
			break
		}
	}
	return l.src[start:l.off]
}

// quoted reads a '...' literal where '' stands for one quote. It reports
// whether the closing quote was found.
func (l *Lexer) quoted() (string, bool) {
	l.advance() // opening '
	var sb strings.Builder
	for !l.atEnd() {
		c := l.cur()
		if c == '\'' {
			if l.peek() != '\'' {
				l.advance()
				return sb.String(), true
			}
			l.advance()
		}
		sb.WriteRune(c)
		l.advance()
	}
	return sb.String(), false
}

// scanNumber reads 42, -7, 16rFF, 3.14 or 1.5e10. A period is part of the
// number only when a digit follows it.
func (l *Lexer) scanNumber(start int, at Position) Token {
	if l.cur() == '-' {
		l.advance()
	}
	l.take(isDigit)
	if l.cur() == 'r' {
		l.advance()
		l.take(isHexDigit)
		return Token{Type: TokenInteger, Literal: l.src[start:l.off], Pos: at}
	}

	typ := TokenInteger
	if l.cur() == '.' && isDigit(l.peek()) {
		typ = TokenFloat
		l.advance()
		l.take(isDigit)
	}
	if c := l.cur(); c == 'e' || c == 'E' {
		typ = TokenFloat
		l.advance()
		if c := l.cur(); c == '+' || c == '-' {
			l.advance()
		}
		l.take(isDigit)
	}
	return Token{Type: typ, Literal: l.src[start:l.off], Pos: at}
}

// scanName reads an identifier, a qualified path such as pkg::sub::A, a
// keyword such as at: or a reserved word. Qualified paths are never
// keywords or reserved words.
func (l *Lexer) scanName(start int, at Position) Token {
	l.take(isNameChar)
	qualified := false
	for l.cur() == ':' && l.peek() == ':' {
		l.off += 2
		qualified = true
		if !isNameStart(l.cur()) {
			// Leave the dangling :: for the parser to report.
			break
		}
		l.take(isNameChar)
	}

	text := l.src[start:l.off]
	if qualified {
		return Token{Type: TokenIdentifier, Literal: text, Pos: at}
	}
	if l.cur() == ':' && l.peek() != '=' {
		l.advance()
		return Token{Type: TokenKeyword, Literal: text + ":", Pos: at}
	}
	if typ, ok := reservedWords[text]; ok {
		return Token{Type: typ, Literal: text, Pos: at}
	}
	return Token{Type: TokenIdentifier, Literal: text, Pos: at}
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isNameChar(r rune) bool {
	return isNameStart(r) || isDigit(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Tokenize returns every token of src up to and including EOF or the
// first error.
func Tokenize(src string) []Token {
	l := NewLexer(src)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}
