package hash

// The fingerprint tree mirrors the compiler AST without positions. Locals
// are de Bruijn indices, so formatting, comments and renamed locals leave
// a fingerprint unchanged.

// HNode is a fingerprint tree node.
type HNode interface {
	// parts returns the node's tag followed by its fields in encoding
	// order. Child nodes appear as HNode or []HNode.
	parts() []any
}

type (
	HIntLiteral    struct{ Value int64 }
	HFloatLiteral  struct{ Value float64 }
	HStringLiteral struct{ Value string }
	HSymbolLiteral struct{ Value string }
	HCharLiteral   struct{ Value rune }
	HBoolLiteral   struct{ Value bool }
	HNilLiteral    struct{}
	HArrayLiteral  struct{ Elements []HNode }
	HDynamicArray  struct{ Elements []HNode }
)

func (n *HIntLiteral) parts() []any    { return []any{TagIntLiteral, n.Value} }
func (n *HFloatLiteral) parts() []any  { return []any{TagFloatLiteral, n.Value} }
func (n *HStringLiteral) parts() []any { return []any{TagStringLiteral, n.Value} }
func (n *HSymbolLiteral) parts() []any { return []any{TagSymbolLiteral, n.Value} }
func (n *HCharLiteral) parts() []any   { return []any{TagCharLiteral, n.Value} }
func (n *HBoolLiteral) parts() []any   { return []any{TagBoolLiteral, n.Value} }
func (*HNilLiteral) parts() []any      { return []any{TagNilLiteral} }
func (n *HArrayLiteral) parts() []any  { return []any{TagArrayLiteral, n.Elements} }
func (n *HDynamicArray) parts() []any  { return []any{TagDynamicArray, n.Elements} }

type (
	HSelfRef  struct{}
	HSuperRef struct{}

	// HLocalVarRef is a parameter or temporary. ScopeDepth 0 is the
	// innermost block or method, 1 the one around it.
	HLocalVarRef struct {
		ScopeDepth uint16
		SlotIndex  uint16
	}
	// HInstanceVarRef and HClassVarRef refer to declaration order.
	HInstanceVarRef struct{ Index uint16 }
	HClassVarRef    struct{ Index uint16 }
	// HGlobalRef is a class name in dotted form.
	HGlobalRef struct{ Name string }
)

func (*HSelfRef) parts() []any          { return []any{TagSelfRef} }
func (*HSuperRef) parts() []any         { return []any{TagSuperRef} }
func (n *HLocalVarRef) parts() []any    { return []any{TagLocalVarRef, n.ScopeDepth, n.SlotIndex} }
func (n *HInstanceVarRef) parts() []any { return []any{TagInstanceVarRef, n.Index} }
func (n *HClassVarRef) parts() []any    { return []any{TagClassVarRef, n.Index} }
func (n *HGlobalRef) parts() []any      { return []any{TagGlobalRef, n.Name} }

type (
	HUnaryMessage struct {
		Receiver HNode
		Selector string
	}
	HBinaryMessage struct {
		Receiver HNode
		Selector string
		Argument HNode
	}
	HKeywordMessage struct {
		Receiver  HNode
		Selector  string
		Arguments []HNode
	}
	HCascade struct {
		Receiver HNode
		Messages []HCascadedMessage
	}
	// HCascadedMessage is one part of a cascade. Type is one of the
	// TagCascade* tags.
	HCascadedMessage struct {
		Type      byte
		Selector  string
		Arguments []HNode
	}
)

func (n *HUnaryMessage) parts() []any { return []any{TagUnaryMessage, n.Selector, n.Receiver} }

func (n *HBinaryMessage) parts() []any {
	return []any{TagBinaryMessage, n.Selector, n.Receiver, n.Argument}
}

func (n *HKeywordMessage) parts() []any {
	return []any{TagKeywordMessage, n.Selector, n.Receiver, n.Arguments}
}

func (n *HCascade) parts() []any {
	msgs := make([]any, len(n.Messages))
	for i, m := range n.Messages {
		msgs[i] = []any{m.Type, m.Selector, m.Arguments}
	}
	return []any{TagCascade, n.Receiver, msgs}
}

type (
	HAssignment struct {
		Target HNode
		Value  HNode
	}
	HReturn   struct{ Value HNode }
	HExprStmt struct{ Expr HNode }
	// HBlock keeps the shape of a block but not its parameter names.
	HBlock struct {
		Arity      int
		NumTemps   int
		Statements []HNode
	}
)

func (n *HAssignment) parts() []any { return []any{TagAssignment, n.Target, n.Value} }
func (n *HReturn) parts() []any     { return []any{TagReturn, n.Value} }
func (n *HExprStmt) parts() []any   { return []any{TagExprStmt, n.Expr} }
func (n *HBlock) parts() []any      { return []any{TagBlock, n.Arity, n.NumTemps, n.Statements} }

// HPragma keeps a method annotation. An arg: naming a parameter is
// written as its slot, @0, @1 and so on.
type HPragma struct {
	Selector  string
	Arguments []string
}

type HMethodDef struct {
	Selector   string
	Arity      int
	NumTemps   int
	Pragmas    []*HPragma
	Statements []HNode
}

type HClassVarDef struct {
	Name        string
	Initializer HNode
}

// HClassDef keeps variable names since they are visible at runtime.
type HClassDef struct {
	Name         string
	Superclass   string
	InstVars     []string
	ClassVars    []*HClassVarDef
	Methods      []*HMethodDef
	ClassMethods []*HMethodDef
}

type HUnit struct {
	Namespace string
	Imports   []string
	Classes   []*HClassDef
}

func (n *HPragma) parts() []any { return []any{TagPragma, n.Selector, n.Arguments} }

func (n *HMethodDef) parts() []any {
	return []any{TagMethodDef, n.Selector, n.Arity, n.NumTemps, nodes(n.Pragmas), n.Statements}
}

func (n *HClassVarDef) parts() []any { return []any{TagClassVarDef, n.Name, n.Initializer} }

func (n *HClassDef) parts() []any {
	return []any{TagClassDef, n.Name, n.Superclass, n.InstVars,
		nodes(n.ClassVars), nodes(n.Methods), nodes(n.ClassMethods)}
}

func (n *HUnit) parts() []any {
	return []any{TagUnit, n.Namespace, n.Imports, nodes(n.Classes)}
}

func nodes[N HNode](ns []N) []HNode {
	out := make([]HNode, len(ns))
	for i, n := range ns {
		out[i] = n
	}
	return out
}
