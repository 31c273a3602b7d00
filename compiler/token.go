package compiler

import (
	"fmt"
	"strings"
)

// TokenType is the lexical class of a token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	TokenInteger    // 42 16rFF
	TokenFloat      // 3.14 1.5e10
	TokenString     // 'it''s'
	TokenSymbol     // #foo #at:put: #'a b' #+
	TokenCharacter  // $a
	TokenIdentifier // foo Bar pkg::Bar
	TokenKeyword    // at:

	TokenBinarySelector

	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenLBrace
	TokenRBrace
	TokenHash
	TokenHashLParen
	TokenCaret
	TokenPeriod
	TokenSemicolon
	TokenAssign
	TokenColon
	TokenBar

	TokenSelf
	TokenSuper
	TokenNil
	TokenTrue
	TokenFalse

	numTokenTypes
)

// tokenKinds names each token type. operand marks types that can end an
// operand, after which '-' is a binary selector and not a sign.
var tokenKinds = [numTokenTypes]struct {
	name    string
	operand bool
}{
	TokenEOF:            {name: "EOF"},
	TokenError:          {name: "ERROR"},
	TokenInteger:        {"INTEGER", true},
	TokenFloat:          {"FLOAT", true},
	TokenString:         {"STRING", true},
	TokenSymbol:         {"SYMBOL", true},
	TokenCharacter:      {"CHARACTER", true},
	TokenIdentifier:     {"IDENTIFIER", true},
	TokenKeyword:        {name: "KEYWORD"},
	TokenBinarySelector: {name: "BINARY"},
	TokenLParen:         {name: "("},
	TokenRParen:         {")", true},
	TokenLBracket:       {name: "["},
	TokenRBracket:       {"]", true},
	TokenLBrace:         {name: "{"},
	TokenRBrace:         {"}", true},
	TokenHash:           {name: "#"},
	TokenHashLParen:     {name: "#("},
	TokenCaret:          {name: "^"},
	TokenPeriod:         {name: "."},
	TokenSemicolon:      {name: ";"},
	TokenAssign:         {name: ":="},
	TokenColon:          {name: ":"},
	TokenBar:            {name: "|"},
	TokenSelf:           {"self", true},
	TokenSuper:          {"super", true},
	TokenNil:            {"nil", true},
	TokenTrue:           {"true", true},
	TokenFalse:          {"false", true},
}

func (t TokenType) String() string {
	if t >= 0 && t < numTokenTypes {
		return tokenKinds[t].name
	}
	return fmt.Sprintf("Token(%d)", int(t))
}

func (t TokenType) endsOperand() bool {
	return t >= 0 && t < numTokenTypes && tokenKinds[t].operand
}

// reservedWords are the pseudo-variables, which lex as their own types.
var reservedWords = map[string]TokenType{
	"self":  TokenSelf,
	"super": TokenSuper,
	"nil":   TokenNil,
	"true":  TokenTrue,
	"false": TokenFalse,
}

// Token is one lexeme and where it starts.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "ERROR(" + t.Literal + ")"
	}
	lit := t.Literal
	if len(lit) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, lit[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, lit)
}

const binaryChars = `+-*/\~<>=@%|&?!,`

// IsBinaryChar reports whether r may appear in a binary selector.
func IsBinaryChar(r rune) bool {
	return strings.ContainsRune(binaryChars, r)
}
