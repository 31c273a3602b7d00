package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is a syntax error at a source position.
type ParseError struct {
	Pos Position
	Msg string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Parser is a recursive descent parser with one token of lookahead. It
// records errors and keeps going, so a unit with mistakes still yields
// every class it can.
type Parser struct {
	lx   *Lexer
	src  string
	prev Token
	tok  Token
	next Token
	errs []ParseError
}

// NewParser creates a parser over src.
func NewParser(src string) *Parser {
	p := &Parser{lx: NewLexer(src), src: src}
	p.advance()
	p.advance()
	return p
}

// ParseUnit parses a unit and returns it with any syntax errors.
func ParseUnit(src string) (*SourceFile, []ParseError) {
	p := NewParser(src)
	sf := p.ParseSourceFile()
	return sf, p.Errors()
}

// Errors returns the errors recorded so far.
func (p *Parser) Errors() []ParseError {
	return p.errs
}

// advance moves one token forward and returns the token it left.
func (p *Parser) advance() Token {
	p.prev, p.tok, p.next = p.tok, p.next, p.lx.NextToken()
	if p.next.Type == TokenError {
		p.errs = append(p.errs, ParseError{Pos: p.next.Pos, Msg: p.next.Literal})
	}
	return p.prev
}

func (p *Parser) at(t TokenType) bool { return p.tok.Type == t }

func (p *Parser) atLiteral(t TokenType, lit string) bool {
	return p.tok.Type == t && p.tok.Literal == lit
}

// atClassStart reports whether the parser sits on "Name subclass:".
func (p *Parser) atClassStart() bool {
	return p.at(TokenIdentifier) && p.next.Type == TokenKeyword && p.next.Literal == "subclass:"
}

func (p *Parser) done() bool { return p.at(TokenEOF) }

// want consumes a token of type t or records an error.
func (p *Parser) want(t TokenType) bool {
	if p.at(t) {
		p.advance()
		return true
	}
	p.fail("expected %s, got %s", t, p.tok.describe())
	return false
}

func (p *Parser) fail(format string, args ...any) {
	p.failAt(p.tok.Pos, format, args...)
}

func (p *Parser) failAt(pos Position, format string, args ...any) {
	p.errs = append(p.errs, ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// from spans start to the current token.
func (p *Parser) from(start Position) Span {
	return Span{Start: start, End: p.tok.Pos}
}

func (t Token) describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenKeyword, TokenBinarySelector:
		return strconv.Quote(t.Literal)
	}
	return t.Type.String()
}

// skipTo moves to the next closing token of type stop that is not nested
// inside brackets opened after the current position.
func (p *Parser) skipTo(stop TokenType) {
	depth := 0
	for ; !p.done(); p.advance() {
		switch p.tok.Type {
		case TokenLBracket, TokenLParen, TokenLBrace, TokenHashLParen:
			depth++
		case TokenRBracket, TokenRParen, TokenRBrace:
			if depth > 0 {
				depth--
			} else if p.at(stop) {
				return
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Statements and methods
// ---------------------------------------------------------------------------

// ParseExpression parses one expression.
func (p *Parser) ParseExpression() Expr {
	return p.expression()
}

// ParseStatement parses a return or an expression statement.
func (p *Parser) ParseStatement() Stmt {
	if p.at(TokenCaret) {
		start := p.advance().Pos
		value := p.expression()
		if value == nil {
			return nil
		}
		return spanned(&Return{Value: value}, Span{Start: start, End: value.Span().End})
	}
	e := p.expression()
	if e == nil {
		return nil
	}
	return spanned(&ExprStmt{Expr: e}, e.Span())
}

// ParseStatements parses period separated statements up to the end.
func (p *Parser) ParseStatements() []Stmt {
	return p.statements(TokenEOF)
}

// statements parses period separated statements until stop. A missing
// period is reported just past the statement that lacks it and the rest
// of the sequence is skipped.
func (p *Parser) statements(stop TokenType) []Stmt {
	var out []Stmt
	for !p.done() && !p.at(stop) {
		s := p.ParseStatement()
		if s == nil {
			p.skipTo(stop)
			return out
		}
		out = append(out, s)

		if p.at(TokenPeriod) {
			p.advance()
			continue
		}
		if !p.done() && !p.at(stop) {
			end := tokenSpan(p.prev).End
			p.failAt(end, "expected '.' after statement, got %s", p.tok.describe())
			p.skipTo(stop)
			return out
		}
	}
	return out
}

// ParseMethod parses a bare method: a signature followed by its body up
// to the end of input.
func (p *Parser) ParseMethod() *MethodDef {
	start := p.tok.Pos
	m := &MethodDef{}
	if !p.signature(m) {
		return nil
	}
	p.preamble(m)
	m.Statements = p.ParseStatements()
	return spanned(m, p.from(start))
}

// signature reads a unary, binary or keyword method pattern into m.
func (p *Parser) signature(m *MethodDef) bool {
	switch p.tok.Type {
	case TokenIdentifier:
		m.Selector = p.advance().Literal
		return true

	case TokenBinarySelector:
		m.Selector = p.advance().Literal
		if !p.at(TokenIdentifier) {
			p.fail("expected parameter name after binary selector")
			return false
		}
		m.Parameters = []string{p.advance().Literal}
		return true

	case TokenKeyword:
		var sel strings.Builder
		for p.at(TokenKeyword) {
			sel.WriteString(p.advance().Literal)
			if !p.at(TokenIdentifier) {
				p.fail("expected parameter name after keyword")
				return false
			}
			m.Parameters = append(m.Parameters, p.advance().Literal)
		}
		m.Selector = sel.String()
		return true
	}
	p.fail("expected method signature")
	return false
}

// preamble reads temporaries and pragmas, which may come in any order.
func (p *Parser) preamble(m *MethodDef) {
	for {
		switch {
		case p.at(TokenBar):
			m.Temps = append(m.Temps, p.temporaries()...)
		case p.atLiteral(TokenBinarySelector, "<") && p.next.Type == TokenKeyword:
			if pr := p.pragma(); pr != nil {
				m.Pragmas = append(m.Pragmas, pr)
			}
		default:
			return
		}
	}
}

// temporaries reads | a b c |.
func (p *Parser) temporaries() []string {
	p.advance()
	var names []string
	for p.at(TokenIdentifier) {
		names = append(names, p.advance().Literal)
	}
	if !p.want(TokenBar) {
		return nil
	}
	return names
}

// pragma reads <keyword: arg ...>.
func (p *Parser) pragma() *Pragma {
	start := p.advance().Pos
	pr := &Pragma{}
	for p.at(TokenKeyword) {
		kw := p.advance().Literal
		pr.Keywords = append(pr.Keywords, kw)
		switch p.tok.Type {
		case TokenIdentifier, TokenSymbol, TokenString, TokenInteger:
			pr.Arguments = append(pr.Arguments, p.advance().Literal)
		default:
			p.fail("expected pragma argument after %s, got %s", kw, p.tok.describe())
			p.skipPragma()
			return nil
		}
	}
	if !p.atLiteral(TokenBinarySelector, ">") {
		p.fail("expected '>' to close pragma, got %s", p.tok.describe())
		p.skipPragma()
		return nil
	}
	pr.Selector = strings.Join(pr.Keywords, "")
	spanned(pr, p.from(start))
	p.advance()
	return pr
}

func (p *Parser) skipPragma() {
	for !p.done() && !p.at(TokenRBracket) {
		if p.advance().Type == TokenBinarySelector && p.prev.Literal == ">" {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Expressions
//
// Unary sends bind tightest, then binary sends left to right, then one
// keyword send. A cascade continues the last send of an expression.
// ---------------------------------------------------------------------------

func (p *Parser) expression() Expr {
	e := p.binarySends()
	if e == nil {
		return nil
	}
	if p.at(TokenKeyword) {
		sel, kws, args, ok := p.keywordParts()
		if !ok {
			return nil
		}
		e = spanned(&KeywordMessage{Receiver: e, Selector: sel, Keywords: kws, Arguments: args}, p.from(e.Span().Start))
	}
	if p.at(TokenSemicolon) {
		return p.cascade(e)
	}
	return e
}

// keywordParts reads at: x put: y. Arguments are binary expressions and
// never start a cascade.
func (p *Parser) keywordParts() (string, []string, []Expr, bool) {
	var kws []string
	var args []Expr
	for p.at(TokenKeyword) {
		kws = append(kws, p.advance().Literal)
		arg := p.binarySends()
		if arg == nil {
			return "", nil, nil, false
		}
		args = append(args, arg)
	}
	return strings.Join(kws, ""), kws, args, true
}

// binarySends reads a chain of binary sends. A bar is a binary selector
// here.
func (p *Parser) binarySends() Expr {
	left := p.unarySends()
	for left != nil && (p.at(TokenBinarySelector) || p.at(TokenBar)) {
		sel := p.advance().Literal
		right := p.unarySends()
		if right == nil {
			return nil
		}
		left = spanned(&BinaryMessage{Receiver: left, Selector: sel, Argument: right},
			Span{Start: left.Span().Start, End: right.Span().End})
	}
	return left
}

// unarySends reads an operand followed by unary selectors. A name followed
// by := or : is not a selector.
func (p *Parser) unarySends() Expr {
	e := p.operand()
	for e != nil && p.at(TokenIdentifier) && p.next.Type != TokenAssign && p.next.Type != TokenColon {
		sel := p.advance().Literal
		e = spanned(&UnaryMessage{Receiver: e, Selector: sel}, p.from(e.Span().Start))
	}
	return e
}

// cascade turns first, which must be a send, into the head of a cascade
// and reads the ; parts that follow.
func (p *Parser) cascade(first Expr) Expr {
	var recv Expr
	var head CascadedMessage
	switch m := first.(type) {
	case *UnaryMessage:
		recv, head = m.Receiver, CascadedMessage{Type: UnaryMsg, Selector: m.Selector}
	case *BinaryMessage:
		recv, head = m.Receiver, CascadedMessage{Type: BinaryMsg, Selector: m.Selector, Arguments: []Expr{m.Argument}}
	case *KeywordMessage:
		recv, head = m.Receiver, CascadedMessage{Type: KeywordMsg, Selector: m.Selector, Keywords: m.Keywords, Arguments: m.Arguments}
	default:
		p.fail("cascade requires a message send")
		return first
	}

	c := &Cascade{Receiver: recv, Messages: []CascadedMessage{head}}
	for p.at(TokenSemicolon) {
		p.advance()
		if m, ok := p.cascadePart(); ok {
			c.Messages = append(c.Messages, m)
		}
	}
	return spanned(c, p.from(first.Span().Start))
}

func (p *Parser) cascadePart() (CascadedMessage, bool) {
	switch p.tok.Type {
	case TokenIdentifier:
		return CascadedMessage{Type: UnaryMsg, Selector: p.advance().Literal}, true

	case TokenBinarySelector:
		sel := p.advance().Literal
		arg := p.unarySends()
		if arg == nil {
			return CascadedMessage{}, false
		}
		return CascadedMessage{Type: BinaryMsg, Selector: sel, Arguments: []Expr{arg}}, true

	case TokenKeyword:
		sel, kws, args, ok := p.keywordParts()
		if !ok {
			return CascadedMessage{}, false
		}
		return CascadedMessage{Type: KeywordMsg, Selector: sel, Keywords: kws, Arguments: args}, true
	}
	p.fail("expected message in cascade")
	return CascadedMessage{}, false
}

// operand reads a literal, a name, an assignment, a block, a brace array
// or a parenthesized expression.
func (p *Parser) operand() Expr {
	if e, ok := p.literal(); ok {
		return e
	}
	switch p.tok.Type {
	case TokenIdentifier:
		return p.name()
	case TokenSelf:
		return spanned(&Self{}, tokenSpan(p.advance()))
	case TokenSuper:
		return spanned(&Super{}, tokenSpan(p.advance()))
	case TokenHashLParen:
		return p.literalArray()
	case TokenHash:
		start := p.advance().Pos
		if p.at(TokenLParen) {
			return p.literalArray()
		}
		p.fail("unexpected # token")
		return spanned(&SymbolLiteral{}, Span{Start: start, End: start})
	case TokenLParen:
		p.advance()
		e := p.expression()
		p.want(TokenRParen)
		return e
	case TokenLBracket:
		return p.block()
	case TokenLBrace:
		return p.braceArray()
	}
	p.fail("unexpected %s", p.tok.describe())
	return nil
}

// literal reads a token that stands for a constant. It reports false and
// consumes nothing for any other token.
func (p *Parser) literal() (Expr, bool) {
	tok := p.tok
	span := tokenSpan(tok)
	switch tok.Type {
	case TokenInteger:
		p.advance()
		n, err := parseInt(tok.Literal)
		if err != nil {
			p.failAt(tok.Pos, "invalid integer: %s", tok.Literal)
		}
		return spanned(&IntLiteral{Value: n}, span), true
	case TokenFloat:
		p.advance()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.failAt(tok.Pos, "invalid float: %s", tok.Literal)
		}
		return spanned(&FloatLiteral{Value: f}, span), true
	case TokenString:
		p.advance()
		return spanned(&StringLiteral{Value: tok.Literal}, span), true
	case TokenSymbol:
		p.advance()
		return spanned(&SymbolLiteral{Value: tok.Literal}, span), true
	case TokenCharacter:
		p.advance()
		r := []rune(tok.Literal)
		return spanned(&CharLiteral{Value: r[0]}, span), true
	case TokenNil:
		p.advance()
		return spanned(&NilLiteral{}, span), true
	case TokenTrue:
		p.advance()
		return spanned(&TrueLiteral{}, span), true
	case TokenFalse:
		p.advance()
		return spanned(&FalseLiteral{}, span), true
	}
	return nil, false
}

// parseInt accepts decimal and radix (16rFF) integers.
func parseInt(lit string) (int64, error) {
	if radix, digits, ok := strings.Cut(lit, "r"); ok && radix != "" {
		base, err := strconv.Atoi(radix)
		if err != nil || base < 2 || base > 36 {
			return 0, fmt.Errorf("bad radix %q", radix)
		}
		return strconv.ParseInt(digits, base, 64)
	}
	return strconv.ParseInt(lit, 10, 64)
}

// literalArray reads #( ... ). Inside, names are symbols and a bare
// parenthesis opens a nested array.
func (p *Parser) literalArray() *ArrayLiteral {
	start := p.advance().Pos
	arr := &ArrayLiteral{}
	for !p.at(TokenRParen) && !p.done() {
		if e, ok := p.literal(); ok {
			arr.Elements = append(arr.Elements, e)
			continue
		}
		switch p.tok.Type {
		case TokenIdentifier:
			tok := p.advance()
			arr.Elements = append(arr.Elements, spanned(&SymbolLiteral{Value: tok.Literal}, tokenSpan(tok)))
		case TokenHashLParen, TokenLParen:
			arr.Elements = append(arr.Elements, p.literalArray())
		default:
			p.fail("unexpected token in literal array: %s", p.tok.Type)
			p.advance()
		}
	}
	p.want(TokenRParen)
	return spanned(arr, p.from(start))
}

// braceArray reads { a. b. c }.
func (p *Parser) braceArray() *DynamicArray {
	start := p.advance().Pos
	arr := &DynamicArray{}
	for !p.at(TokenRBrace) && !p.done() {
		if e := p.expression(); e != nil {
			arr.Elements = append(arr.Elements, e)
		}
		if !p.at(TokenPeriod) {
			break
		}
		p.advance()
	}
	p.want(TokenRBrace)
	return spanned(arr, p.from(start))
}

// block reads [:a :b | | t | statements].
func (p *Parser) block() Expr {
	start := p.advance().Pos
	b := &Block{}
	for p.at(TokenColon) {
		p.advance()
		if !p.at(TokenIdentifier) {
			p.fail("expected parameter name after :")
			break
		}
		b.Parameters = append(b.Parameters, p.advance().Literal)
	}
	if len(b.Parameters) > 0 && !p.want(TokenBar) {
		return nil
	}
	if p.at(TokenBar) {
		b.Temps = p.temporaries()
	}
	b.Statements = p.statements(TokenRBracket)
	p.want(TokenRBracket)
	return spanned(b, p.from(start))
}

// name reads a variable reference or an assignment to it.
func (p *Parser) name() Expr {
	tok := p.advance()
	if !p.at(TokenAssign) {
		return spanned(&Variable{Name: tok.Literal}, tokenSpan(tok))
	}
	p.advance()
	value := p.expression()
	if value == nil {
		return nil
	}
	return spanned(&Assignment{Variable: tok.Literal, Value: value}, Span{Start: tok.Pos, End: value.Span().End})
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

// ParseSourceFile parses a unit: an optional namespace: and any number of
// import: lines, then class definitions.
//
//	namespace: geometry.shapes
//	import: geometry.Point
//
//	Circle subclass: Object
//	  instanceVars: center radius
//	  classVar: unit := 1
//	  method: area [ ^radius * radius * 3.14159 ]
//	  classMethod: new [ ^super new ]
func (p *Parser) ParseSourceFile() *SourceFile {
	start := p.tok.Pos
	sf := &SourceFile{}
	p.header(sf)

	for !p.done() {
		if !p.at(TokenIdentifier) {
			p.fail("expected a class definition, got %s", p.tok.describe())
			p.skipToClass()
			continue
		}
		nameTok := p.advance()
		if !p.atLiteral(TokenKeyword, "subclass:") {
			p.failAt(nameTok.Pos, "expected 'subclass:' after class name %s", nameTok.Literal)
			p.skipToClass()
			continue
		}
		if c := p.class(nameTok); c != nil {
			sf.Classes = append(sf.Classes, c)
		}
	}
	return spanned(sf, p.from(start))
}

func (p *Parser) header(sf *SourceFile) {
	for p.at(TokenKeyword) {
		switch p.tok.Literal {
		case "namespace:":
			start := p.tok.Pos
			name, ok := p.declPath()
			if !ok {
				continue
			}
			if sf.Namespace != nil {
				p.failAt(start, "duplicate namespace declaration")
			}
			sf.Namespace = spanned(&NamespaceDecl{Name: name}, p.from(start))
		case "import:":
			start := p.tok.Pos
			if path, ok := p.declPath(); ok {
				sf.Imports = append(sf.Imports, spanned(&ImportDecl{Path: path}, p.from(start)))
			}
		default:
			return
		}
	}
}

// declPath reads the name after namespace: or import:, quoted or bare,
// and returns it in dotted form.
func (p *Parser) declPath() (string, bool) {
	kw := p.advance().Literal
	if !p.at(TokenString) && !p.at(TokenIdentifier) {
		p.fail("expected string or identifier after '%s'", kw)
		return "", false
	}
	return normalizePath(p.advance().Literal), true
}

// normalizePath turns pkg::sub::A into pkg.sub.A.
func normalizePath(path string) string {
	return strings.ReplaceAll(path, "::", ".")
}

func (p *Parser) skipToClass() {
	for !p.done() {
		p.advance()
		if p.atClassStart() {
			return
		}
	}
}

// class reads the rest of a definition after its name: subclass: Super
// and the body elements up to the next class or the end.
func (p *Parser) class(nameTok Token) *ClassDef {
	p.advance()
	if !p.at(TokenIdentifier) {
		p.fail("expected superclass name after 'subclass:'")
		return nil
	}
	superTok := p.advance()
	c := &ClassDef{
		Name:       nameTok.Literal,
		NameSpan:   tokenSpan(nameTok),
		Superclass: superTok.Literal,
		SuperSpan:  tokenSpan(superTok),
	}

	for !p.done() && !p.atClassStart() {
		if !p.at(TokenKeyword) {
			p.fail("unexpected %s in body of class %s", p.tok.describe(), c.Name)
			p.advance()
			continue
		}
		p.classElement(c)
	}
	return spanned(c, p.from(nameTok.Pos))
}

func (p *Parser) classElement(c *ClassDef) {
	switch p.tok.Literal {
	case "instanceVars:", "instanceVariables:":
		c.InstanceVariables = append(c.InstanceVariables, p.nameList()...)
	case "classVars:":
		at := Span{Start: p.tok.Pos, End: p.tok.Pos}
		for _, name := range p.nameList() {
			c.ClassVariables = append(c.ClassVariables, spanned(&ClassVarDef{Name: name}, at))
		}
	case "classVar:":
		if cv := p.classVar(); cv != nil {
			c.ClassVariables = append(c.ClassVariables, cv)
		}
	case "method:":
		if m := p.bracketedMethod(); m != nil {
			c.Methods = append(c.Methods, m)
		}
	case "classMethod:":
		if m := p.bracketedMethod(); m != nil {
			c.ClassMethods = append(c.ClassMethods, m)
		}
	default:
		p.fail("unknown class body element %s", p.tok.Literal)
		p.advance()
	}
}

// nameList reads the names after instanceVars: or classVars:, either bare
// or as one quoted string.
func (p *Parser) nameList() []string {
	p.advance()
	if p.at(TokenString) {
		return strings.Fields(p.advance().Literal)
	}
	var names []string
	for p.at(TokenIdentifier) && !p.atClassStart() {
		names = append(names, p.advance().Literal)
	}
	return names
}

// classVar reads classVar: name or classVar: name := expr. The
// initializer stops before any keyword, so keyword sends need parentheses.
func (p *Parser) classVar() *ClassVarDef {
	start := p.advance().Pos
	if !p.at(TokenIdentifier) {
		p.fail("expected variable name after 'classVar:'")
		return nil
	}
	cv := &ClassVarDef{Name: p.advance().Literal}
	if p.at(TokenAssign) {
		p.advance()
		if cv.Initializer = p.binarySends(); cv.Initializer == nil {
			return nil
		}
	}
	return spanned(cv, p.from(start))
}

// bracketedMethod reads method: pattern [ body ] and keeps its text.
func (p *Parser) bracketedMethod() *MethodDef {
	start := p.advance().Pos
	m := &MethodDef{}
	if !p.signature(m) {
		p.skipMethodBody()
		return nil
	}
	if !p.at(TokenLBracket) {
		p.fail("expected '[' after method signature %s", m.Selector)
		return nil
	}
	p.advance()
	p.preamble(m)
	m.Statements = p.statements(TokenRBracket)
	if !p.want(TokenRBracket) {
		return nil
	}
	if end := p.prev.Pos.Offset + 1; end > start.Offset && end <= len(p.src) {
		m.SourceText = p.src[start.Offset:end]
	}
	return spanned(m, Span{Start: start, End: p.prev.Pos})
}

// skipMethodBody passes over the bracketed body after a bad signature.
func (p *Parser) skipMethodBody() {
	for !p.done() && !p.at(TokenLBracket) && !p.at(TokenKeyword) {
		p.advance()
	}
	if p.at(TokenLBracket) {
		p.advance()
		p.skipTo(TokenRBracket)
		p.want(TokenRBracket)
	}
}
