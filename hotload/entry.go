package hotload

import (
	"fmt"

	"github.com/chazu/kiln/vm"
)

// EntryPoint is a resolved class-side method that can be invoked any
// number of times without looking it up again.
type EntryPoint struct {
	rt     *vm.Runtime
	class  *vm.Class
	method *vm.Method
}

// NewEntryPoint looks up the class-side selector on cls.
func NewEntryPoint(rt *vm.Runtime, cls *vm.Class, selector string) (*EntryPoint, error) {
	m := cls.ClassMethod(selector)
	if m == nil {
		return nil, fmt.Errorf("hotload: %s has no class method #%s", cls.Name, selector)
	}
	return &EntryPoint{rt: rt, class: cls, method: m}, nil
}

// Class returns the class the entry point belongs to.
func (e *EntryPoint) Class() *vm.Class { return e.class }

// Selector returns the entry point's selector.
func (e *EntryPoint) Selector() string { return e.method.Selector }

// Signature returns the declared types of the entry point.
func (e *EntryPoint) Signature() vm.Signature { return e.method.Sig }

// NumArgs returns the number of arguments Invoke expects.
func (e *EntryPoint) NumArgs() int { return e.method.NumArgs }

func (e *EntryPoint) String() string { return e.method.String() }

// Invoke runs the entry point with args in declared parameter order. Go
// integers and floats are accepted for Integer and Float parameters.
// Anything the method signals comes back as an *InvocationFailure.
func (e *EntryPoint) Invoke(args ...any) (any, error) {
	vals := make([]vm.Value, len(args))
	for i, a := range args {
		v, err := vm.FromGo(a)
		if err != nil {
			return nil, fmt.Errorf("hotload: argument %d of %s: %w", i+1, e, err)
		}
		vals[i] = v
	}
	result, err := e.rt.Invoke(e.method, e.class, vals)
	if err != nil {
		return nil, &InvocationFailure{Entry: e.String(), Cause: err, Declared: e.declares(err)}
	}
	return vm.ToGo(result), nil
}

// declares reports whether err is a signal of one of the declared
// exception types or a subclass of one.
func (e *EntryPoint) declares(err error) bool {
	sig, ok := vm.AsSignal(err)
	if !ok {
		return false
	}
	scope := e.class.Scope
	if scope == nil {
		scope = e.rt.Resolve
	}
	for _, name := range e.method.Sig.Signals {
		if cls, ok := scope(name); ok && sig.Class().InheritsFrom(cls) {
			return true
		}
	}
	return false
}
