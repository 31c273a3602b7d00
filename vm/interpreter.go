package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// Interp executes methods for one logical thread of control. It is not safe
// for concurrent use; create one per goroutine with Runtime.NewInterp.
type Interp struct {
	rt    *Runtime
	depth int
}

// NewInterp creates an interpreter bound to rt.
func (rt *Runtime) NewInterp() *Interp {
	return &Interp{rt: rt}
}

// Runtime returns the runtime the interpreter runs against.
func (in *Interp) Runtime() *Runtime { return in.rt }

type frame struct {
	method   *Method
	code     []byte
	lines    []LineMark
	self     Value
	temps    []Value
	outer    *frame
	home     *frame
	stack    []Value
	pc       int
	returned bool
}

func (f *frame) push(v Value) { f.stack = append(f.stack, v) }

func (f *frame) pop() Value {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) top() Value { return f.stack[len(f.stack)-1] }

func (f *frame) popN(n int) []Value {
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

func (f *frame) u8() byte {
	b := f.code[f.pc]
	f.pc++
	return b
}

func (f *frame) u16() uint16 {
	v := uint16(f.code[f.pc]) | uint16(f.code[f.pc+1])<<8
	f.pc += 2
	return v
}

func (f *frame) scope(depth byte) *frame {
	s := f
	for i := byte(0); i < depth; i++ {
		s = s.outer
	}
	return s
}

// nonLocalReturn unwinds from a block's ^ to the frame of its home method.
type nonLocalReturn struct {
	home  *frame
	value Value
}

func (n *nonLocalReturn) Error() string { return "vm: non-local return escaped its home method" }

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// Call runs m with the given receiver and arguments. Declared argument and
// return types are enforced.
func (in *Interp) Call(m *Method, recv Value, args []Value) (Value, error) {
	if len(args) != m.NumArgs {
		return nil, in.Signalf(in.rt.Error, "%s expects %d arguments, got %d", m, m.NumArgs, len(args))
	}
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.rt.maxDepth {
		return nil, in.Signalf(in.rt.StackOverflow, "call depth exceeded %d in %s", in.rt.maxDepth, m)
	}
	if m.Prim != nil {
		return m.Prim(in, recv, args)
	}

	args, err := in.conformArgs(m, args)
	if err != nil {
		return nil, err
	}
	f := &frame{
		method: m,
		code:   m.Code,
		lines:  m.Lines,
		self:   recv,
		temps:  make([]Value, m.NumArgs+m.NumTemps),
	}
	f.home = f
	copy(f.temps, args)

	v, err := in.execute(f)
	f.returned = true
	if err != nil {
		var nlr *nonLocalReturn
		if !errors.As(err, &nlr) || nlr.home != f {
			in.trace(err, f)
			return nil, err
		}
		v = nlr.value
	}
	return in.conformReturn(m, v)
}

// CallBlock evaluates a block with the given arguments.
func (in *Interp) CallBlock(b *Block, args ...Value) (Value, error) {
	if len(args) != b.code.NumArgs {
		return nil, in.Signalf(in.rt.Error, "block expects %d arguments, got %d", b.code.NumArgs, len(args))
	}
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.rt.maxDepth {
		return nil, in.Signalf(in.rt.StackOverflow, "call depth exceeded %d in block of %s", in.rt.maxDepth, b.home.method)
	}
	f := &frame{
		method: b.home.method,
		code:   b.code.Code,
		lines:  b.code.Lines,
		self:   b.home.self,
		temps:  make([]Value, b.code.NumArgs+b.code.NumTemps),
		outer:  b.outer,
		home:   b.home,
	}
	copy(f.temps, args)
	v, err := in.execute(f)
	if err != nil {
		in.trace(err, f)
	}
	return v, err
}

// Send dispatches selector to recv.
func (in *Interp) Send(recv Value, selector string, args ...Value) (Value, error) {
	if cls, ok := recv.(*Class); ok {
		return in.sendToClass(cls, cls, selector, args)
	}
	m := in.rt.ClassOf(recv).Lookup(selector)
	if m == nil {
		return nil, in.notUnderstood(recv, selector)
	}
	return in.Call(m, recv, args)
}

// Responds reports whether recv understands selector.
func (in *Interp) Responds(recv Value, selector string) bool {
	if cls, ok := recv.(*Class); ok {
		for k := cls; k != nil; k = k.Superclass {
			if _, ok := k.ClassMethods[selector]; ok {
				return true
			}
			if !hasArgs(selector) && k.classVarIndex(selector) >= 0 {
				return true
			}
		}
		return in.rt.ClassClass.Lookup(selector) != nil
	}
	return in.rt.ClassOf(recv).Lookup(selector) != nil
}

func (in *Interp) sendToClass(start, recv *Class, selector string, args []Value) (Value, error) {
	for k := start; k != nil; k = k.Superclass {
		if m, ok := k.ClassMethods[selector]; ok {
			return in.Call(m, recv, args)
		}
		if len(args) == 0 {
			if idx := k.classVarIndex(selector); idx >= 0 {
				return k.classVarAt(idx), nil
			}
		}
	}
	if m := in.rt.ClassClass.Lookup(selector); m != nil {
		return in.Call(m, recv, args)
	}
	return nil, in.notUnderstood(recv, selector)
}

func (in *Interp) sendSuper(m *Method, recv Value, selector string, args []Value) (Value, error) {
	super := m.Class.Superclass
	if super == nil {
		return nil, in.notUnderstood(recv, selector)
	}
	if m.ClassSide {
		cls, _ := recv.(*Class)
		return in.sendToClass(super, cls, selector, args)
	}
	target := super.Lookup(selector)
	if target == nil {
		return nil, in.notUnderstood(recv, selector)
	}
	return in.Call(target, recv, args)
}

func (in *Interp) global(m *Method, name string) (*Class, error) {
	scope := m.Class.Scope
	if scope == nil {
		scope = in.rt.Resolve
	}
	if cls, ok := scope(name); ok {
		return cls, nil
	}
	return nil, in.Signalf(in.rt.Error, "class %s is not defined", name)
}

// ---------------------------------------------------------------------------
// Bytecode loop
// ---------------------------------------------------------------------------

func (in *Interp) execute(f *frame) (Value, error) {
	m := f.method
	for f.pc < len(f.code) {
		op := Opcode(f.u8())
		switch op {
		case OpNOP:

		case OpPOP:
			f.pop()

		case OpDUP:
			f.push(f.top())

		case OpPushNil:
			f.push(nil)

		case OpPushTrue:
			f.push(true)

		case OpPushFalse:
			f.push(false)

		case OpPushSelf:
			f.push(f.self)

		case OpPushInt8:
			f.push(int64(int8(f.u8())))

		case OpPushLiteral:
			f.push(m.Literals[f.u16()])

		case OpPushTemp:
			depth := f.u8()
			idx := f.u8()
			f.push(f.scope(depth).temps[idx])

		case OpStoreTemp:
			depth := f.u8()
			idx := f.u8()
			f.scope(depth).temps[idx] = f.top()

		case OpPushIvar:
			idx := int(f.u8())
			obj, ok := f.self.(*Object)
			if !ok || idx >= len(obj.fields) {
				return nil, in.Signalf(in.rt.Error, "%s has no instance variable %d", DisplayString(f.self), idx)
			}
			f.push(obj.fields[idx])

		case OpStoreIvar:
			idx := int(f.u8())
			obj, ok := f.self.(*Object)
			if !ok || idx >= len(obj.fields) {
				return nil, in.Signalf(in.rt.Error, "%s has no instance variable %d", DisplayString(f.self), idx)
			}
			obj.fields[idx] = f.top()

		case OpPushClassVar:
			f.push(m.Class.classVarAt(int(f.u8())))

		case OpStoreClassVar:
			m.Class.setClassVarAt(int(f.u8()), f.top())

		case OpPushGlobal:
			cls, err := in.global(m, m.Globals[f.u16()])
			if err != nil {
				return nil, err
			}
			f.push(cls)

		case OpSend, OpSendSuper:
			selector := m.Selectors[f.u16()]
			args := f.popN(int(f.u8()))
			recv := f.pop()
			var v Value
			var err error
			if op == OpSendSuper {
				v, err = in.sendSuper(m, recv, selector, args)
			} else {
				v, err = in.Send(recv, selector, args...)
			}
			if err != nil {
				return nil, err
			}
			f.push(v)

		case OpReturnTop, OpBlockReturn:
			return f.pop(), nil

		case OpNonLocalReturn:
			v := f.pop()
			if f.home.returned {
				return nil, in.Signalf(in.rt.BlockCannotReturn, "home method %s has already returned", f.home.method)
			}
			return nil, &nonLocalReturn{home: f.home, value: v}

		case OpCreateBlock:
			f.push(&Block{code: m.Blocks[f.u16()], outer: f, home: f.home})

		case OpCreateArray:
			f.push(&Array{Elems: f.popN(int(f.u8()))})

		default:
			return nil, fmt.Errorf("vm: bad opcode %s at %d in %s", op, f.pc-1, m)
		}
	}
	return nil, fmt.Errorf("vm: %s ran off the end of its bytecode", m)
}

func (in *Interp) trace(err error, f *frame) {
	var sig *Signal
	if errors.As(err, &sig) {
		sig.Trace = append(sig.Trace, TraceEntry{Method: f.method.String(), Line: lineAt(f.lines, f.pc-1)})
	}
}

func hasArgs(selector string) bool {
	return selectorArity(selector) > 0
}
