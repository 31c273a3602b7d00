package compiler

import (
	"fmt"
	"math"
	"slices"

	"github.com/chazu/kiln/vm"
)

// Compiler turns checked method ASTs of one class into method images. A
// Compiler may be reused; each method starts from empty tables.
type Compiler struct {
	ctx    *ClassContext
	code   *vm.BytecodeBuilder
	frames []frame // innermost last
	pool   *pool
	errors []string
}

// frame maps the locals of one method or block to their slots:
// arguments first, then temporaries.
type frame map[string]int

func newFrame(args, temps []string) frame {
	f := make(frame, len(args)+len(temps))
	for i, name := range slices.Concat(args, temps) {
		f[name] = i
	}
	return f
}

// pool holds the tables a method image shares with its blocks.
type pool struct {
	literals  []vm.Literal
	shared    map[litKey]int
	globals   names
	selectors names
	blocks    []vm.BlockImage
}

type litKey struct {
	kind vm.LiteralKind
	i    int64
	f    uint64
	s    string
}

// names is an interned list of strings.
type names struct {
	list  []string
	index map[string]int
}

func (n *names) intern(s string) int {
	if i, ok := n.index[s]; ok {
		return i
	}
	if n.index == nil {
		n.index = make(map[string]int)
	}
	n.index[s] = len(n.list)
	n.list = append(n.list, s)
	return n.index[s]
}

func NewCompiler(ctx *ClassContext) *Compiler {
	if ctx == nil {
		ctx = &ClassContext{}
	}
	return &Compiler{ctx: ctx}
}

// Errors returns what went wrong in every method compiled so far.
func (c *Compiler) Errors() []string { return c.errors }

func (c *Compiler) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

func (c *Compiler) begin(top frame) {
	c.code = vm.NewBytecodeBuilder()
	c.frames = []frame{top}
	c.pool = &pool{shared: make(map[litKey]int)}
}

func (c *Compiler) image(selector string, numArgs, numTemps int, sig vm.Signature, source string) *vm.MethodImage {
	return &vm.MethodImage{
		Selector:  selector,
		NumArgs:   numArgs,
		NumTemps:  numTemps,
		Code:      c.code.Bytes(),
		Literals:  c.pool.literals,
		Globals:   c.pool.globals.list,
		Selectors: c.pool.selectors.list,
		Blocks:    c.pool.blocks,
		Lines:     c.code.Lines(),
		Sig:       sig,
		Source:    source,
	}
}

// CompileMethod compiles method. A method that does not end in a return
// answers self.
func (c *Compiler) CompileMethod(method *MethodDef, sig vm.Signature) *vm.MethodImage {
	c.begin(newFrame(method.Parameters, method.Temps))
	c.statements(method.Statements, false)
	if !endsWithReturn(method.Statements) {
		c.returnSelf()
	}
	return c.image(method.Selector, len(method.Parameters), len(method.Temps), sig, method.SourceText)
}

// CompileInitializer compiles the class variable initializers of a class
// into one class-side method run when the class is defined. It returns nil
// when no class variable has an initializer.
func (c *Compiler) CompileInitializer(vars []*ClassVarDef) *vm.MethodImage {
	c.begin(frame{})
	emitted := false
	for _, cv := range vars {
		if cv.Initializer == nil {
			continue
		}
		emitted = true
		c.code.MarkLine(cv.Span().Start.Line)
		c.expr(cv.Initializer)
		c.access(slot{kind: slotClassVar, index: c.ctx.classVarIndex(cv.Name)}, true)
		c.code.Emit(vm.OpPOP)
	}
	if !emitted {
		return nil
	}
	c.returnSelf()
	return c.image("initializeClassVariables", 0, 0, vm.Signature{}, "")
}

func (c *Compiler) returnSelf() {
	c.code.Emit(vm.OpPushSelf)
	c.code.Emit(vm.OpReturnTop)
}

func endsWithReturn(stmts []Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	_, ok := stmts[len(stmts)-1].(*Return)
	return ok
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// statements compiles a body, dropping the value of every expression
// statement except, with keepLast, the final one.
func (c *Compiler) statements(stmts []Stmt, keepLast bool) {
	for i, st := range stmts {
		c.stmt(st)
		if _, ok := st.(*ExprStmt); ok && !(keepLast && i == len(stmts)-1) {
			c.code.Emit(vm.OpPOP)
		}
	}
}

func (c *Compiler) stmt(st Stmt) {
	c.code.MarkLine(st.Span().Start.Line)
	switch st := st.(type) {
	case *ExprStmt:
		c.expr(st.Expr)
	case *Return:
		c.expr(st.Value)
		if len(c.frames) > 1 {
			c.code.Emit(vm.OpNonLocalReturn)
		} else {
			c.code.Emit(vm.OpReturnTop)
		}
	default:
		c.errorf("unknown statement type: %T", st)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) expr(e Expr) {
	switch e := e.(type) {
	case *NilLiteral:
		c.code.Emit(vm.OpPushNil)
	case *TrueLiteral:
		c.code.Emit(vm.OpPushTrue)
	case *FalseLiteral:
		c.code.Emit(vm.OpPushFalse)
	case *IntLiteral:
		if e.Value >= math.MinInt8 && e.Value <= math.MaxInt8 {
			c.code.EmitInt8(vm.OpPushInt8, int8(e.Value))
		} else {
			c.pushLiteral(vm.Literal{Kind: vm.LitInt, Int: e.Value})
		}
	case *Self, *Super:
		c.code.Emit(vm.OpPushSelf)
	case *Variable:
		c.load(e.Name)
	case *Assignment:
		c.expr(e.Value)
		c.store(e.Variable)
	case *UnaryMessage:
		c.send(e.Receiver, e.Selector)
	case *BinaryMessage:
		c.send(e.Receiver, e.Selector, e.Argument)
	case *KeywordMessage:
		c.send(e.Receiver, e.Selector, e.Arguments...)
	case *Cascade:
		c.cascade(e)
	case *Block:
		c.block(e)
	case *DynamicArray:
		if len(e.Elements) > math.MaxUint8 {
			c.errorf("dynamic array has %d elements, at most 255 allowed", len(e.Elements))
		}
		c.exprs(e.Elements)
		c.code.EmitByte(vm.OpCreateArray, byte(len(e.Elements)))
	default:
		if lit, ok := c.constant(e); ok {
			c.pushLiteral(lit)
			return
		}
		c.errorf("unknown expression type: %T", e)
	}
}

func (c *Compiler) exprs(es []Expr) {
	for _, e := range es {
		c.expr(e)
	}
}

// constant returns the literal frame entry for a literal expression.
func (c *Compiler) constant(e Expr) (vm.Literal, bool) {
	switch e := e.(type) {
	case *IntLiteral:
		return vm.Literal{Kind: vm.LitInt, Int: e.Value}, true
	case *FloatLiteral:
		return vm.Literal{Kind: vm.LitFloat, Float: e.Value}, true
	case *StringLiteral:
		return vm.Literal{Kind: vm.LitString, Str: e.Value}, true
	case *SymbolLiteral:
		return vm.Literal{Kind: vm.LitSymbol, Str: e.Value}, true
	case *CharLiteral:
		return vm.Literal{Kind: vm.LitChar, Int: int64(e.Value)}, true
	case *NilLiteral:
		return vm.Literal{Kind: vm.LitNil}, true
	case *TrueLiteral:
		return vm.Literal{Kind: vm.LitTrue}, true
	case *FalseLiteral:
		return vm.Literal{Kind: vm.LitFalse}, true
	case *ArrayLiteral:
		arr := vm.Literal{Kind: vm.LitArray, Elems: make([]vm.Literal, 0, len(e.Elements))}
		for _, el := range e.Elements {
			lit, ok := c.constant(el)
			if !ok {
				c.errorf("%T cannot appear in a literal array", el)
				continue
			}
			arr.Elems = append(arr.Elems, lit)
		}
		return arr, true
	}
	return vm.Literal{}, false
}

// pushLiteral pushes lit from the literal frame. Scalars share a slot;
// every array gets its own.
func (c *Compiler) pushLiteral(lit vm.Literal) {
	p := c.pool
	key := litKey{kind: lit.Kind, i: lit.Int, f: math.Float64bits(lit.Float), s: lit.Str}
	idx, ok := p.shared[key]
	if !ok || lit.Kind == vm.LitArray {
		idx = len(p.literals)
		p.literals = append(p.literals, lit)
		if lit.Kind != vm.LitArray {
			p.shared[key] = idx
		}
	}
	c.code.EmitUint16(vm.OpPushLiteral, uint16(idx))
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

type slotKind int

const (
	slotTemp slotKind = iota
	slotIvar
	slotClassVar
)

// slot is where a variable lives. depth counts frames outward from the
// innermost.
type slot struct {
	kind         slotKind
	depth, index int
}

var slotOps = [...]struct{ load, store vm.Opcode }{
	slotTemp:     {vm.OpPushTemp, vm.OpStoreTemp},
	slotIvar:     {vm.OpPushIvar, vm.OpStoreIvar},
	slotClassVar: {vm.OpPushClassVar, vm.OpStoreClassVar},
}

// locate finds name among locals, innermost frame first, then instance and
// class variables. Instance variables are invisible to class methods.
func (c *Compiler) locate(name string) (slot, bool) {
	for depth := range len(c.frames) {
		if i, ok := c.frames[len(c.frames)-1-depth][name]; ok {
			return slot{kind: slotTemp, depth: depth, index: i}, true
		}
	}
	if i := c.ctx.ivarIndex(name); i >= 0 && !c.ctx.ClassSide {
		return slot{kind: slotIvar, index: i}, true
	}
	if i := c.ctx.classVarIndex(name); i >= 0 {
		return slot{kind: slotClassVar, index: i}, true
	}
	return slot{}, false
}

func (c *Compiler) access(s slot, store bool) {
	op := slotOps[s.kind].load
	if store {
		op = slotOps[s.kind].store
	}
	if s.kind == slotTemp {
		c.code.EmitTemp(op, uint8(s.depth), uint8(s.index))
		return
	}
	c.code.EmitByte(op, byte(s.index))
}

func (c *Compiler) load(name string) {
	if s, ok := c.locate(name); ok {
		c.access(s, false)
		return
	}
	q, ok := c.ctx.resolve(name)
	if !ok {
		c.errorf("undefined variable '%s'", name)
		c.code.Emit(vm.OpPushNil)
		return
	}
	c.code.EmitUint16(vm.OpPushGlobal, uint16(c.pool.globals.intern(q)))
}

// store assigns the value on the stack to name and leaves it there.
func (c *Compiler) store(name string) {
	s, ok := c.locate(name)
	if !ok {
		c.errorf("cannot assign to '%s'", name)
		return
	}
	c.access(s, true)
}

// ---------------------------------------------------------------------------
// Sends and blocks
// ---------------------------------------------------------------------------

func (c *Compiler) send(recv Expr, selector string, args ...Expr) {
	c.expr(recv)
	c.exprs(args)
	c.emitSend(recv, selector, len(args))
}

// emitSend sends selector, looking it up from the superclass when the
// receiver is super.
func (c *Compiler) emitSend(recv Expr, selector string, argc int) {
	op := vm.OpSend
	if _, ok := recv.(*Super); ok {
		op = vm.OpSendSuper
	}
	c.code.EmitSend(op, uint16(c.pool.selectors.intern(selector)), uint8(argc))
}

// cascade evaluates the receiver once and answers the last message's
// result.
func (c *Compiler) cascade(e *Cascade) {
	c.expr(e.Receiver)
	for i, m := range e.Messages {
		more := i < len(e.Messages)-1
		if more {
			c.code.Emit(vm.OpDUP)
		}
		c.exprs(m.Arguments)
		c.emitSend(e.Receiver, m.Selector, len(m.Arguments))
		if more {
			c.code.Emit(vm.OpPOP)
		}
	}
}

// block compiles b into its own code, sharing the method's pool, and
// pushes a closure over it.
func (c *Compiler) block(b *Block) {
	outer := c.code
	c.code = vm.NewBytecodeBuilder()
	c.frames = append(c.frames, newFrame(b.Parameters, b.Temps))

	c.statements(b.Statements, true)
	switch {
	case len(b.Statements) == 0:
		c.code.Emit(vm.OpPushNil)
		c.code.Emit(vm.OpBlockReturn)
	case !endsWithReturn(b.Statements):
		c.code.Emit(vm.OpBlockReturn)
	}
	img := vm.BlockImage{
		NumArgs:  len(b.Parameters),
		NumTemps: len(b.Temps),
		Code:     c.code.Bytes(),
		Lines:    c.code.Lines(),
	}

	c.frames = c.frames[:len(c.frames)-1]
	c.code = outer
	c.pool.blocks = append(c.pool.blocks, img)
	c.code.EmitUint16(vm.OpCreateBlock, uint16(len(c.pool.blocks)-1))
}

// CompileMethodSource parses, checks and compiles a single method given as
// "selector [temps] statements" text. ctx may be nil for methods that use
// only their own variables and builtin classes.
func CompileMethodSource(source string, ctx *ClassContext) (*vm.MethodImage, error) {
	p := NewParser(source)
	method := p.ParseMethod()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("parse errors: %v", errs)
	}
	if method == nil {
		return nil, fmt.Errorf("parse errors: no method")
	}
	method.SourceText = source

	a := NewSemanticAnalyzer(ctx)
	sig := a.AnalyzeMethod(method)
	if a.HasErrors() {
		return nil, fmt.Errorf("semantic errors: %v", a.Problems())
	}
	c := NewCompiler(ctx)
	img := c.CompileMethod(method, sig)
	if len(c.errors) > 0 {
		return nil, fmt.Errorf("compile errors: %v", c.errors)
	}
	return img, nil
}
