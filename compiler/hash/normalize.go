package hash

import (
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/kiln/compiler"
)

// normalizer turns compiler AST into fingerprint nodes. Names resolve the
// way the code generator resolves them: locals from the innermost frame
// out, then instance variables, class variables and finally globals.
type normalizer struct {
	frames    []map[string]uint16
	instVars  map[string]int
	classVars map[string]int
	global    func(string) string
}

func newNormalizer(instVars, classVars map[string]int, global func(string) string) *normalizer {
	if global == nil {
		global = func(name string) string { return name }
	}
	return &normalizer{instVars: instVars, classVars: classVars, global: global}
}

// push opens a frame whose slots follow the order of names.
func (n *normalizer) push(names ...[]string) map[string]uint16 {
	frame := make(map[string]uint16)
	var slot uint16
	for _, group := range names {
		for _, name := range group {
			frame[name] = slot
			slot++
		}
	}
	n.frames = append(n.frames, frame)
	return frame
}

func (n *normalizer) pop() { n.frames = n.frames[:len(n.frames)-1] }

// NormalizeMethod builds the fingerprint tree of a method. instVars and
// classVars give declaration positions; global maps a class name as
// written to the name it stands for, and nil keeps it as written.
func NormalizeMethod(m *compiler.MethodDef, instVars, classVars map[string]int, global func(string) string) *HMethodDef {
	return newNormalizer(instVars, classVars, global).method(m)
}

func (n *normalizer) method(m *compiler.MethodDef) *HMethodDef {
	params := n.push(m.Parameters, m.Temps)
	defer n.pop()

	hm := &HMethodDef{
		Selector:   m.Selector,
		Arity:      len(m.Parameters),
		NumTemps:   len(m.Parameters) + len(m.Temps),
		Statements: n.stmts(m.Statements),
	}
	for _, pr := range m.Pragmas {
		hp := &HPragma{Selector: pr.Selector, Arguments: append([]string(nil), pr.Arguments...)}
		for i, arg := range pr.Arguments {
			if slot, ok := params[arg]; ok && pr.Keywords[i] == "arg:" {
				hp.Arguments[i] = "@" + strconv.Itoa(int(slot))
			}
		}
		hm.Pragmas = append(hm.Pragmas, hp)
	}
	return hm
}

// NormalizeClass builds the fingerprint tree of a class. Methods are
// sorted by selector, so their order in the source does not matter.
func NormalizeClass(def *compiler.ClassDef, global func(string) string) *HClassDef {
	instVars := positions(def.InstanceVariables)
	cvNames := make([]string, len(def.ClassVariables))
	for i, cv := range def.ClassVariables {
		cvNames[i] = cv.Name
	}
	n := newNormalizer(instVars, positions(cvNames), global)

	hc := &HClassDef{
		Name:         def.Name,
		Superclass:   n.global(def.Superclass),
		InstVars:     append([]string(nil), def.InstanceVariables...),
		Methods:      n.methods(def.Methods),
		ClassMethods: n.methods(def.ClassMethods),
	}
	for _, cv := range def.ClassVariables {
		hcv := &HClassVarDef{Name: cv.Name}
		if cv.Initializer != nil {
			n.push()
			hcv.Initializer = n.expr(cv.Initializer)
			n.pop()
		}
		hc.ClassVars = append(hc.ClassVars, hcv)
	}
	return hc
}

func positions(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, name := range names {
		m[name] = i
	}
	return m
}

func (n *normalizer) methods(defs []*compiler.MethodDef) []*HMethodDef {
	out := make([]*HMethodDef, len(defs))
	for i, m := range defs {
		out[i] = n.method(m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Selector < out[j].Selector })
	return out
}

// NormalizeUnit builds the fingerprint tree of a unit. Class names keep
// their spelling in dotted form; the namespace and imports that give them
// meaning are part of the tree.
func NormalizeUnit(sf *compiler.SourceFile) *HUnit {
	hu := &HUnit{}
	if sf.Namespace != nil {
		hu.Namespace = sf.Namespace.Name
	}
	for _, imp := range sf.Imports {
		hu.Imports = append(hu.Imports, imp.Path)
	}
	dotted := func(name string) string { return strings.ReplaceAll(name, "::", ".") }
	for _, def := range sf.Classes {
		hu.Classes = append(hu.Classes, NormalizeClass(def, dotted))
	}
	return hu
}

func (n *normalizer) stmts(ss []compiler.Stmt) []HNode {
	out := make([]HNode, len(ss))
	for i, s := range ss {
		switch s := s.(type) {
		case *compiler.ExprStmt:
			out[i] = &HExprStmt{Expr: n.expr(s.Expr)}
		case *compiler.Return:
			out[i] = &HReturn{Value: n.expr(s.Value)}
		default:
			out[i] = &HNilLiteral{}
		}
	}
	return out
}

func (n *normalizer) exprs(es []compiler.Expr) []HNode {
	out := make([]HNode, len(es))
	for i, e := range es {
		out[i] = n.expr(e)
	}
	return out
}

var cascadeTags = map[compiler.MessageType]byte{
	compiler.UnaryMsg:   TagCascadeUnary,
	compiler.BinaryMsg:  TagCascadeBinary,
	compiler.KeywordMsg: TagCascadeKeyword,
}

func (n *normalizer) expr(e compiler.Expr) HNode {
	switch e := e.(type) {
	case *compiler.IntLiteral:
		return &HIntLiteral{Value: e.Value}
	case *compiler.FloatLiteral:
		return &HFloatLiteral{Value: e.Value}
	case *compiler.StringLiteral:
		return &HStringLiteral{Value: e.Value}
	case *compiler.SymbolLiteral:
		return &HSymbolLiteral{Value: e.Value}
	case *compiler.CharLiteral:
		return &HCharLiteral{Value: e.Value}
	case *compiler.TrueLiteral:
		return &HBoolLiteral{Value: true}
	case *compiler.FalseLiteral:
		return &HBoolLiteral{Value: false}
	case *compiler.Self:
		return &HSelfRef{}
	case *compiler.Super:
		return &HSuperRef{}
	case *compiler.ArrayLiteral:
		return &HArrayLiteral{Elements: n.exprs(e.Elements)}
	case *compiler.DynamicArray:
		return &HDynamicArray{Elements: n.exprs(e.Elements)}
	case *compiler.Variable:
		return n.ref(e.Name)
	case *compiler.Assignment:
		return &HAssignment{Target: n.ref(e.Variable), Value: n.expr(e.Value)}
	case *compiler.UnaryMessage:
		return &HUnaryMessage{Receiver: n.expr(e.Receiver), Selector: e.Selector}
	case *compiler.BinaryMessage:
		return &HBinaryMessage{Receiver: n.expr(e.Receiver), Selector: e.Selector, Argument: n.expr(e.Argument)}
	case *compiler.KeywordMessage:
		return &HKeywordMessage{Receiver: n.expr(e.Receiver), Selector: e.Selector, Arguments: n.exprs(e.Arguments)}
	case *compiler.Cascade:
		hc := &HCascade{Receiver: n.expr(e.Receiver)}
		for _, m := range e.Messages {
			hc.Messages = append(hc.Messages, HCascadedMessage{
				Type:      cascadeTags[m.Type],
				Selector:  m.Selector,
				Arguments: n.exprs(m.Arguments),
			})
		}
		return hc
	case *compiler.Block:
		n.push(e.Parameters, e.Temps)
		defer n.pop()
		return &HBlock{
			Arity:      len(e.Parameters),
			NumTemps:   len(e.Parameters) + len(e.Temps),
			Statements: n.stmts(e.Statements),
		}
	}
	return &HNilLiteral{}
}

func (n *normalizer) ref(name string) HNode {
	for i := len(n.frames) - 1; i >= 0; i-- {
		if slot, ok := n.frames[i][name]; ok {
			return &HLocalVarRef{ScopeDepth: uint16(len(n.frames) - 1 - i), SlotIndex: slot}
		}
	}
	if idx, ok := n.instVars[name]; ok {
		return &HInstanceVarRef{Index: uint16(idx)}
	}
	if idx, ok := n.classVars[name]; ok {
		return &HClassVarRef{Index: uint16(idx)}
	}
	return &HGlobalRef{Name: n.global(name)}
}
