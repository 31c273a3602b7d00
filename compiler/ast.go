package compiler

import "unicode/utf8"

// Position is a location in unit source text.
type Position struct {
	Offset int // bytes from the start of the text
	Line   int // from 1
	Column int // runes from 1
}

// Span is the extent of a node or token.
type Span struct {
	Start Position
	End   Position
}

// tokenSpan covers the literal text of tok.
func tokenSpan(tok Token) Span {
	end := tok.Pos
	end.Offset += len(tok.Literal)
	end.Column += utf8.RuneCountInString(tok.Literal)
	return Span{Start: tok.Pos, End: end}
}

// Node is any syntax tree node.
type Node interface {
	Span() Span
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmt()
}

type node struct{ extent Span }

func (n *node) Span() Span        { return n.extent }
func (n *node) setSpan(span Span) { n.extent = span }

type exprNode struct{ node }

func (*exprNode) expr() {}

type stmtNode struct{ node }

func (*stmtNode) stmt() {}

// spanned records span on n and returns it.
func spanned[N interface{ setSpan(Span) }](n N, span Span) N {
	n.setSpan(span)
	return n
}

// Literals.
type (
	IntLiteral struct {
		exprNode
		Value int64
	}
	FloatLiteral struct {
		exprNode
		Value float64
	}
	StringLiteral struct {
		exprNode
		Value string
	}
	// SymbolLiteral is #foo, #at:put: or #+. Value has no hash.
	SymbolLiteral struct {
		exprNode
		Value string
	}
	// CharLiteral is $a.
	CharLiteral struct {
		exprNode
		Value rune
	}
	// ArrayLiteral is #(1 foo $a). Bare names inside are symbols.
	ArrayLiteral struct {
		exprNode
		Elements []Expr
	}
	// DynamicArray is {a. b + 1}; elements are evaluated.
	DynamicArray struct {
		exprNode
		Elements []Expr
	}
	NilLiteral   struct{ exprNode }
	TrueLiteral  struct{ exprNode }
	FalseLiteral struct{ exprNode }
)

// Names.
type (
	// Variable reads a name, which may be qualified (pkg::A).
	Variable struct {
		exprNode
		Name string
	}
	Assignment struct {
		exprNode
		Variable string
		Value    Expr
	}
	Self  struct{ exprNode }
	Super struct{ exprNode }
)

// Message sends.
type (
	UnaryMessage struct {
		exprNode
		Receiver Expr
		Selector string
	}
	BinaryMessage struct {
		exprNode
		Receiver Expr
		Selector string
		Argument Expr
	}
	// KeywordMessage is recv at: 1 put: 2, with Selector "at:put:" and
	// Keywords ["at:", "put:"].
	KeywordMessage struct {
		exprNode
		Receiver  Expr
		Selector  string
		Keywords  []string
		Arguments []Expr
	}
	// Cascade sends every message to the same receiver and yields the
	// result of the last one.
	Cascade struct {
		exprNode
		Receiver Expr
		Messages []CascadedMessage
	}
	Block struct {
		exprNode
		Parameters []string
		Temps      []string
		Statements []Stmt
	}
)

// MessageType is the syntactic form of a cascaded message.
type MessageType int

const (
	UnaryMsg MessageType = iota
	BinaryMsg
	KeywordMsg
)

// CascadedMessage is one receiverless part of a cascade.
type CascadedMessage struct {
	Type      MessageType
	Selector  string
	Keywords  []string
	Arguments []Expr
}

// Statements.
type (
	ExprStmt struct {
		stmtNode
		Expr Expr
	}
	Return struct {
		stmtNode
		Value Expr
	}
)

// MethodDef is a method. SourceText holds the definition as written when
// it was parsed from a unit.
type MethodDef struct {
	node
	Selector   string
	Parameters []string
	Temps      []string
	Pragmas    []*Pragma
	Statements []Stmt
	SourceText string
}

// Pragma is a <keyword: arg ...> annotation at the top of a method body.
// Arguments keep their literal text: names as written, symbols without the
// hash, strings without quotes.
type Pragma struct {
	node
	Selector  string
	Keywords  []string
	Arguments []string
}

// ClassVarDef is a class variable with an optional initializer.
type ClassVarDef struct {
	node
	Name        string
	Initializer Expr
}

type ClassDef struct {
	node
	NameSpan          Span
	Name              string
	Superclass        string
	SuperSpan         Span
	InstanceVariables []string
	ClassVariables    []*ClassVarDef
	Methods           []*MethodDef
	ClassMethods      []*MethodDef
}

// NamespaceDecl is namespace: geometry.shapes. Name is always dotted.
type NamespaceDecl struct {
	node
	Name string
}

// ImportDecl is import: geometry.Point or import: util. Path is always
// dotted.
type ImportDecl struct {
	node
	Path string
}

// SourceFile is one parsed unit.
type SourceFile struct {
	node
	Namespace *NamespaceDecl
	Imports   []*ImportDecl
	Classes   []*ClassDef
}
