package compiler

import (
	"fmt"
	"slices"

	"github.com/chazu/kiln/vm"
)

// Problem is one error or warning found before code generation.
type Problem struct {
	Warning bool
	Pos     Position
	Msg     string
}

func (p Problem) String() string {
	prefix := ""
	if p.Warning {
		prefix = "warning: "
	}
	return fmt.Sprintf("%sline %d, column %d: %s", prefix, p.Pos.Line, p.Pos.Column, p.Msg)
}

// ClassContext describes the class a method is compiled into.
type ClassContext struct {
	// InstVars lists every instance variable, inherited ones first.
	InstVars []string
	// ClassVars lists the class variables declared by the class itself.
	ClassVars []string
	ClassSide bool
	// Resolve maps a global name as written to its qualified name. Without
	// it only builtin classes resolve.
	Resolve  func(name string) (string, bool)
	IsError  func(name string) bool
	Inherits func(sub, super string) bool
	// Incomplete is set when the inherited layout is unknown; unknown
	// names are then not reported.
	Incomplete bool
}

func (c *ClassContext) resolve(name string) (string, bool) {
	if c.Resolve != nil {
		return c.Resolve(name)
	}
	if _, ok := builtins().Resolve(name); ok {
		return name, true
	}
	return "", false
}

// ivarIndex finds the innermost declaration, so a subclass slot wins.
func (c *ClassContext) ivarIndex(name string) int {
	for i := len(c.InstVars) - 1; i >= 0; i-- {
		if c.InstVars[i] == name {
			return i
		}
	}
	return -1
}

func (c *ClassContext) classVarIndex(name string) int {
	return slices.Index(c.ClassVars, name)
}

// SemanticAnalyzer checks method bodies before code generation: names
// must be bound, assignments must target variables, pragmas must be
// well formed and signaled exceptions should be declared.
type SemanticAnalyzer struct {
	ctx      *ClassContext
	problems []Problem
	scopes   []scope // innermost last
	signals  []string
}

// scope is the locals of one method or block.
type scope struct {
	args, temps []string
}

func (sc scope) binds(name string) bool {
	return slices.Contains(sc.args, name) || slices.Contains(sc.temps, name)
}

func NewSemanticAnalyzer(ctx *ClassContext) *SemanticAnalyzer {
	if ctx == nil {
		ctx = &ClassContext{}
	}
	return &SemanticAnalyzer{ctx: ctx}
}

func (s *SemanticAnalyzer) Problems() []Problem { return s.problems }

// HasErrors reports whether any problem is not a warning.
func (s *SemanticAnalyzer) HasErrors() bool {
	return slices.ContainsFunc(s.problems, func(p Problem) bool { return !p.Warning })
}

func (s *SemanticAnalyzer) report(warning bool, n Node, format string, args ...any) {
	s.problems = append(s.problems, Problem{Warning: warning, Pos: n.Span().Start, Msg: fmt.Sprintf(format, args...)})
}

func (s *SemanticAnalyzer) errorAt(n Node, format string, args ...any) {
	s.report(false, n, format, args...)
}

func (s *SemanticAnalyzer) warnAt(n Node, format string, args ...any) {
	s.report(true, n, format, args...)
}

// AnalyzeMethod checks method and returns the signature its pragmas
// declare.
func (s *SemanticAnalyzer) AnalyzeMethod(method *MethodDef) vm.Signature {
	seen := make(map[string]bool, len(method.Parameters))
	for _, p := range method.Parameters {
		if seen[p] {
			s.errorAt(method, "duplicate parameter '%s' in %s", p, method.Selector)
		}
		seen[p] = true
	}
	for _, t := range method.Temps {
		if seen[t] {
			s.errorAt(method, "temporary '%s' shadows a parameter of %s", t, method.Selector)
		}
	}
	s.scopes = []scope{{args: method.Parameters, temps: method.Temps}}

	sig := s.signature(method)
	s.signals = sig.Signals
	s.body(method.Statements)
	return sig
}

// AnalyzeInitializer checks a class variable initializer.
func (s *SemanticAnalyzer) AnalyzeInitializer(expr Expr) {
	s.scopes = []scope{{}}
	s.signals = nil
	s.expr(expr)
}

// ---------------------------------------------------------------------------
// Pragmas
// ---------------------------------------------------------------------------

// sigState collects a signature while a method's pragmas are read.
type sigState struct {
	method   *MethodDef
	sig      vm.Signature
	returns  bool
	argTypes map[string]string
}

var pragmaHandlers = map[string]func(*SemanticAnalyzer, *sigState, *Pragma){
	"returns:":  (*SemanticAnalyzer).returnsPragma,
	"arg:type:": (*SemanticAnalyzer).argTypePragma,
	"signals:":  (*SemanticAnalyzer).signalsPragma,
}

func (s *SemanticAnalyzer) signature(method *MethodDef) vm.Signature {
	st := &sigState{method: method, argTypes: make(map[string]string)}
	for _, pr := range method.Pragmas {
		handle, ok := pragmaHandlers[pr.Selector]
		if !ok {
			s.warnAt(pr, "unknown pragma <%s>", pr.Selector)
			continue
		}
		handle(s, st, pr)
	}
	if len(st.argTypes) > 0 {
		st.sig.Args = make([]string, len(method.Parameters))
		for i, p := range method.Parameters {
			st.sig.Args[i] = st.argTypes[p]
		}
	}
	return st.sig
}

func (s *SemanticAnalyzer) returnsPragma(st *sigState, pr *Pragma) {
	if st.returns {
		s.errorAt(pr, "duplicate <returns:> pragma")
		return
	}
	st.returns = true
	if pr.Arguments[0] == vm.TypeVoid {
		st.sig.Returns = vm.TypeVoid
		return
	}
	st.sig.Returns = s.typeName(pr, pr.Arguments[0])
}

func (s *SemanticAnalyzer) argTypePragma(st *sigState, pr *Pragma) {
	name := pr.Arguments[0]
	if !slices.Contains(st.method.Parameters, name) {
		s.errorAt(pr, "<arg: %s> does not name a parameter of %s", name, st.method.Selector)
		return
	}
	if _, dup := st.argTypes[name]; dup {
		s.errorAt(pr, "duplicate type for parameter '%s'", name)
		return
	}
	st.argTypes[name] = s.typeName(pr, pr.Arguments[1])
}

func (s *SemanticAnalyzer) signalsPragma(st *sigState, pr *Pragma) {
	typ := s.typeName(pr, pr.Arguments[0])
	switch {
	case typ == "":
	case s.ctx.IsError != nil && !s.ctx.IsError(typ):
		s.errorAt(pr, "%s is not an exception class", typ)
	default:
		st.sig.Signals = append(st.sig.Signals, typ)
	}
}

// typeName resolves a type named in a pragma, or returns "".
func (s *SemanticAnalyzer) typeName(n Node, name string) string {
	q, ok := s.ctx.resolve(name)
	if !ok && !s.ctx.Incomplete {
		s.errorAt(n, "type %s is not defined", name)
	}
	return q
}

// ---------------------------------------------------------------------------
// Bodies
// ---------------------------------------------------------------------------

// body checks a statement list and warns once about anything after a
// return.
func (s *SemanticAnalyzer) body(stmts []Stmt) {
	for _, st := range stmts {
		switch st := st.(type) {
		case *ExprStmt:
			s.expr(st.Expr)
		case *Return:
			s.expr(st.Value)
		}
	}
	for i, st := range stmts[:max(len(stmts)-1, 0)] {
		if _, ok := st.(*Return); ok {
			s.warnAt(stmts[i+1], "unreachable code after return")
			break
		}
	}
}

func (s *SemanticAnalyzer) expr(e Expr) {
	switch e := e.(type) {
	case *Variable:
		s.reference(e)
	case *Assignment:
		s.expr(e.Value)
		s.assignment(e)
	case *UnaryMessage:
		s.expr(e.Receiver)
		if e.Selector == "signal" {
			s.signal(e, e.Receiver)
		}
	case *BinaryMessage:
		s.expr(e.Receiver)
		s.expr(e.Argument)
	case *KeywordMessage:
		s.expr(e.Receiver)
		s.exprs(e.Arguments)
		if e.Selector == "signal:" {
			s.signal(e, e.Receiver)
		}
	case *Cascade:
		s.expr(e.Receiver)
		for _, m := range e.Messages {
			s.exprs(m.Arguments)
		}
	case *DynamicArray:
		s.exprs(e.Elements)
	case *Block:
		s.scopes = append(s.scopes, scope{args: e.Parameters, temps: e.Temps})
		s.body(e.Statements)
		s.scopes = s.scopes[:len(s.scopes)-1]
	}
}

func (s *SemanticAnalyzer) exprs(es []Expr) {
	for _, e := range es {
		s.expr(e)
	}
}

func (s *SemanticAnalyzer) local(name string) bool {
	return slices.ContainsFunc(s.scopes, func(sc scope) bool { return sc.binds(name) })
}

// instanceSide reports whether name is an instance variable, flagging its
// use from a class method.
func (s *SemanticAnalyzer) instanceSide(n Node, name string) bool {
	if s.ctx.ivarIndex(name) < 0 {
		return false
	}
	if s.ctx.ClassSide {
		s.errorAt(n, "instance variable '%s' is not accessible from a class method", name)
	}
	return true
}

func (s *SemanticAnalyzer) reference(v *Variable) {
	switch name := v.Name; {
	case s.local(name), s.instanceSide(v, name), s.ctx.classVarIndex(name) >= 0:
	case s.global(name), s.ctx.Incomplete:
	default:
		s.errorAt(v, "undefined variable '%s'", name)
	}
}

func (s *SemanticAnalyzer) global(name string) bool {
	_, ok := s.ctx.resolve(name)
	return ok
}

func (s *SemanticAnalyzer) assignment(a *Assignment) {
	name := a.Variable
	switch {
	case name == "self" || name == "super" || name == "true" || name == "false" || name == "nil":
		s.errorAt(a, "cannot assign to reserved name '%s'", name)
	case slices.Contains(s.scopes[len(s.scopes)-1].args, name):
		s.errorAt(a, "cannot assign to argument '%s'", name)
	case s.local(name), s.ctx.classVarIndex(name) >= 0, s.instanceSide(a, name):
	case s.global(name):
		s.errorAt(a, "cannot assign to class '%s'", name)
	case !s.ctx.Incomplete:
		s.errorAt(a, "undefined variable '%s'", name)
	}
}

// signal warns when a method with <signals:> raises a class it did not
// declare, or a subclass of one.
func (s *SemanticAnalyzer) signal(send Expr, recv Expr) {
	v, ok := recv.(*Variable)
	if len(s.signals) == 0 || !ok || s.local(v.Name) {
		return
	}
	typ, ok := s.ctx.resolve(v.Name)
	if !ok {
		return
	}
	for _, declared := range s.signals {
		if typ == declared || (s.ctx.Inherits != nil && s.ctx.Inherits(typ, declared)) {
			return
		}
	}
	s.warnAt(send, "%s is signaled but not declared in <signals:>", typ)
}
