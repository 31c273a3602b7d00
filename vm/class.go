package vm

import (
	"sort"
	"strings"
	"sync"
)

// Resolver maps a qualified class name to a defined class. Loaders, the
// runtime's builtin table and anything else that can answer "which class is
// called X here" take this shape.
type Resolver func(name string) (*Class, bool)

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

// Class is a defined runtime type.
type Class struct {
	// Name is the qualified, dotted name ("pkg.Point").
	Name       string
	Superclass *Class
	// InstVars lists every instance variable, inherited ones first.
	InstVars []string

	Methods      map[string]*Method
	ClassMethods map[string]*Method

	// Scope resolves the globals referenced by this class's methods. It is
	// the defining loader for compiled classes.
	Scope Resolver

	builtin bool

	mu            sync.RWMutex
	classVarNames []string
	classVars     []Value
}

func newClass(name string, super *Class, ivars []string) *Class {
	c := &Class{
		Name:         name,
		Superclass:   super,
		Methods:      make(map[string]*Method),
		ClassMethods: make(map[string]*Method),
	}
	if super != nil {
		c.InstVars = append(c.InstVars, super.InstVars...)
	}
	c.InstVars = append(c.InstVars, ivars...)
	return c
}

// SimpleName returns the last dotted segment of the class name.
func (c *Class) SimpleName() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// Namespace returns everything before the simple name.
func (c *Class) Namespace() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[:i]
	}
	return ""
}

// IsBuiltin reports whether the class is provided by the runtime itself.
func (c *Class) IsBuiltin() bool { return c.builtin }

// InheritsFrom reports whether c is other or one of its subclasses.
func (c *Class) InheritsFrom(other *Class) bool {
	for k := c; k != nil; k = k.Superclass {
		if k == other {
			return true
		}
	}
	return false
}

// IsError reports whether instances of c can be signaled.
func (c *Class) IsError() bool {
	for k := c; k != nil; k = k.Superclass {
		if k.builtin && k.Name == "Error" {
			return true
		}
	}
	return false
}

// InstVarIndex returns the slot of the named instance variable, or -1.
func (c *Class) InstVarIndex(name string) int {
	for i := len(c.InstVars) - 1; i >= 0; i-- {
		if c.InstVars[i] == name {
			return i
		}
	}
	return -1
}

// Lookup finds an instance-side method, walking the superclass chain.
func (c *Class) Lookup(selector string) *Method {
	for k := c; k != nil; k = k.Superclass {
		if m, ok := k.Methods[selector]; ok {
			return m
		}
	}
	return nil
}

// Selectors returns the sorted instance-side selectors defined directly on c.
func (c *Class) Selectors() []string {
	out := make([]string, 0, len(c.Methods))
	for sel := range c.Methods {
		out = append(out, sel)
	}
	sort.Strings(out)
	return out
}

// ClassSelectors returns the sorted class-side selectors defined directly on c.
func (c *Class) ClassSelectors() []string {
	out := make([]string, 0, len(c.ClassMethods))
	for sel := range c.ClassMethods {
		out = append(out, sel)
	}
	sort.Strings(out)
	return out
}

// ---------------------------------------------------------------------------
// Class variables
// ---------------------------------------------------------------------------

// ClassVarNames returns the class variables declared directly on c.
func (c *Class) ClassVarNames() []string {
	return c.classVarNames
}

// ClassVar reads a class variable declared on c or one of its superclasses.
func (c *Class) ClassVar(name string) (Value, bool) {
	for k := c; k != nil; k = k.Superclass {
		if idx := k.classVarIndex(name); idx >= 0 {
			return k.classVarAt(idx), true
		}
	}
	return nil, false
}

func (c *Class) classVarIndex(name string) int {
	for i, n := range c.classVarNames {
		if n == name {
			return i
		}
	}
	return -1
}

func (c *Class) classVarAt(idx int) Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.classVars[idx]
}

func (c *Class) setClassVarAt(idx int, v Value) {
	c.mu.Lock()
	c.classVars[idx] = v
	c.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// PrimitiveFunc implements a builtin method in Go.
type PrimitiveFunc func(in *Interp, recv Value, args []Value) (Value, error)

// Method is a compiled or primitive method bound to its defining class.
type Method struct {
	Selector  string
	Class     *Class
	ClassSide bool
	NumArgs   int
	NumTemps  int
	Code      []byte
	Literals  []Value
	Globals   []string
	Selectors []string
	Blocks    []*BlockCode
	Lines     []LineMark
	Sig       Signature
	Source    string

	Prim PrimitiveFunc
}

// BlockCode is the compiled body of a block literal. Blocks share the
// literal, global and selector tables of their enclosing method.
type BlockCode struct {
	NumArgs  int
	NumTemps int
	Code     []byte
	Lines    []LineMark
}

// LineMark maps the instruction at PC (and everything after it, up to the
// next mark) to a source line.
type LineMark struct {
	PC   int `cbor:"1,keyasint"`
	Line int `cbor:"2,keyasint"`
}

// Signature is a method's declared static typing: argument types in order,
// return type and declared exception types. Empty type names are untyped.
type Signature struct {
	Returns string   `cbor:"1,keyasint,omitempty"`
	Args    []string `cbor:"2,keyasint,omitempty"`
	Signals []string `cbor:"3,keyasint,omitempty"`
}

// IsZero reports whether the method declares no typing at all.
func (s Signature) IsZero() bool {
	return s.Returns == "" && len(s.Args) == 0 && len(s.Signals) == 0
}

// String returns a readable "Class>>selector" or "Class class>>selector".
func (m *Method) String() string {
	owner := "?"
	if m.Class != nil {
		owner = m.Class.Name
	}
	if m.ClassSide {
		owner += " class"
	}
	return owner + ">>" + m.Selector
}

func lineAt(lines []LineMark, pc int) int {
	line := 0
	for _, mark := range lines {
		if mark.PC > pc {
			break
		}
		line = mark.Line
	}
	return line
}
