package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// DefaultMaxDepth bounds nested sends when no explicit limit is configured.
const DefaultMaxDepth = 1024

// Runtime is the host process's class world: the builtin classes, the
// primitive tables and the interpreter settings. It is safe for concurrent
// use once constructed; each invocation runs on its own Interp.
type Runtime struct {
	classes  map[string]*Class
	maxDepth int
	log      commonlog.Logger

	Object          *Class
	UndefinedObject *Class
	Boolean         *Class
	Number          *Class
	Integer         *Class
	Float           *Class
	String          *Class
	Symbol          *Class
	Character       *Class
	Array           *Class
	Block           *Class
	ClassClass      *Class

	Error                *Class
	ZeroDivide           *Class
	MessageNotUnderstood *Class
	AssertionFailure     *Class
	TypeMismatch         *Class
	StackOverflow        *Class
	BlockCannotReturn    *Class
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMaxDepth sets the maximum nesting of sends before StackOverflow.
func WithMaxDepth(depth int) Option {
	return func(rt *Runtime) {
		if depth > 0 {
			rt.maxDepth = depth
		}
	}
}

// NewRuntime builds a runtime with every builtin class installed.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		classes:  make(map[string]*Class),
		maxDepth: DefaultMaxDepth,
		log:      commonlog.GetLogger("kiln.vm"),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.bootstrap()
	return rt
}

func (rt *Runtime) builtinClass(name string, super *Class, ivars ...string) *Class {
	c := newClass(name, super, ivars)
	c.builtin = true
	c.Scope = rt.Resolve
	rt.classes[name] = c
	return c
}

func (rt *Runtime) bootstrap() {
	rt.Object = rt.builtinClass("Object", nil)
	rt.UndefinedObject = rt.builtinClass("UndefinedObject", rt.Object)
	rt.Boolean = rt.builtinClass("Boolean", rt.Object)
	rt.Number = rt.builtinClass("Number", rt.Object)
	rt.Integer = rt.builtinClass("Integer", rt.Number)
	rt.Float = rt.builtinClass("Float", rt.Number)
	rt.String = rt.builtinClass("String", rt.Object)
	rt.Symbol = rt.builtinClass("Symbol", rt.Object)
	rt.Character = rt.builtinClass("Character", rt.Object)
	rt.Array = rt.builtinClass("Array", rt.Object)
	rt.Block = rt.builtinClass("Block", rt.Object)
	rt.ClassClass = rt.builtinClass("Class", rt.Object)

	rt.Error = rt.builtinClass("Error", rt.Object, "messageText")
	rt.ZeroDivide = rt.builtinClass("ZeroDivide", rt.Error)
	rt.MessageNotUnderstood = rt.builtinClass("MessageNotUnderstood", rt.Error)
	rt.AssertionFailure = rt.builtinClass("AssertionFailure", rt.Error)
	rt.TypeMismatch = rt.builtinClass("TypeMismatch", rt.Error)
	rt.StackOverflow = rt.builtinClass("StackOverflow", rt.Error)
	rt.BlockCannotReturn = rt.builtinClass("BlockCannotReturn", rt.Error)

	rt.installObjectPrimitives()
	rt.installClassPrimitives()
	rt.installBooleanPrimitives()
	rt.installNumberPrimitives()
	rt.installStringPrimitives()
	rt.installCharacterPrimitives()
	rt.installArrayPrimitives()
	rt.installBlockPrimitives()
	rt.installErrorPrimitives()
}

// Resolve looks up a builtin class. It is the end of every loader's
// resolution chain.
func (rt *Runtime) Resolve(name string) (*Class, bool) {
	c, ok := rt.classes[name]
	return c, ok
}

// BuiltinNames lists the names the runtime resolves by itself.
func (rt *Runtime) BuiltinNames() []string {
	names := make([]string, 0, len(rt.classes))
	for name := range rt.classes {
		names = append(names, name)
	}
	return names
}

// ClassOf returns the class whose instance-side methods handle v.
func (rt *Runtime) ClassOf(v Value) *Class {
	switch x := v.(type) {
	case nil:
		return rt.UndefinedObject
	case bool:
		return rt.Boolean
	case int64:
		return rt.Integer
	case float64:
		return rt.Float
	case string:
		return rt.String
	case Symbol:
		return rt.Symbol
	case Character:
		return rt.Character
	case *Array:
		return rt.Array
	case *Block:
		return rt.Block
	case *Class:
		return rt.ClassClass
	case *Object:
		return x.class
	}
	return rt.Object
}

// ---------------------------------------------------------------------------
// Class definition
// ---------------------------------------------------------------------------

// Define turns a decoded class image into a live class. super must be the
// already resolved superclass named by the image; scope becomes the class's
// resolver for globals. The class initializer runs before Define returns;
// if it fails the class is not usable and the error is returned.
func (rt *Runtime) Define(img *ClassImage, super *Class, scope Resolver) (*Class, error) {
	if super == nil {
		return nil, fmt.Errorf("vm: class %s has no superclass", img.Name)
	}
	if _, taken := rt.classes[img.Name]; taken {
		return nil, fmt.Errorf("vm: class %s would shadow a builtin class", img.Name)
	}
	if super.builtin && super != rt.Object && !super.IsError() {
		return nil, fmt.Errorf("vm: class %s cannot subclass builtin %s", img.Name, super.Name)
	}

	c := newClass(img.Name, super, img.InstVars)
	c.Scope = scope
	c.classVarNames = append([]string(nil), img.ClassVars...)
	c.classVars = make([]Value, len(img.ClassVars))
	for i := range img.Methods {
		m := img.Methods[i].method(c, false)
		c.Methods[m.Selector] = m
	}
	for i := range img.ClassMethods {
		m := img.ClassMethods[i].method(c, true)
		c.ClassMethods[m.Selector] = m
	}

	if img.Initializer != nil {
		init := img.Initializer.method(c, true)
		if _, err := rt.Invoke(init, c, nil); err != nil {
			return nil, &InitializationError{Class: img.Name, Err: err}
		}
	}
	rt.log.Debugf("defined class %s (superclass %s)", c.Name, super.Name)
	return c, nil
}

// InitializationError reports a class whose class-variable initializers
// signaled an exception.
type InitializationError struct {
	Class string
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("vm: initializing %s: %v", e.Class, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }
