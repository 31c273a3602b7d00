package vm

import (
	"fmt"
)

// Invoke runs m on a fresh interpreter. Go panics raised while executing
// (a corrupt image, a primitive bug) come back as errors rather than
// unwinding into the caller.
func (rt *Runtime) Invoke(m *Method, recv Value, args []Value) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Errorf("panic in %s: %v", m, r)
			result, err = nil, fmt.Errorf("vm: internal error in %s: %v", m, r)
		}
	}()
	return rt.NewInterp().Call(m, recv, args)
}

// SendTo dispatches selector to recv on a fresh interpreter.
func (rt *Runtime) SendTo(recv Value, selector string, args ...Value) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Errorf("panic sending #%s: %v", selector, r)
			result, err = nil, fmt.Errorf("vm: internal error sending #%s: %v", selector, r)
		}
	}()
	return rt.NewInterp().Send(recv, selector, args...)
}

// ClassMethod finds the class-side method for selector on cls or its
// superclasses.
func (cls *Class) ClassMethod(selector string) *Method {
	for k := cls; k != nil; k = k.Superclass {
		if m, ok := k.ClassMethods[selector]; ok {
			return m
		}
	}
	return nil
}
