package vm

import (
	"strconv"
	"strings"
)

// Value is anything the interpreter can hold on its stack: nil, bool,
// int64, float64, string, Symbol, Character, *Array, *Block, *Object or
// *Class.
type Value = any

// Symbol is an interned-by-value selector-like name (#foo).
type Symbol string

// Character is a single Unicode code point ($a).
type Character rune

// Array is a mutable, fixed-size sequence of values.
type Array struct {
	Elems []Value
}

// NewArray wraps elems in an Array.
func NewArray(elems ...Value) *Array {
	return &Array{Elems: elems}
}

// Object is an instance of a non-builtin class (or of an Error class).
type Object struct {
	class  *Class
	fields []Value
}

// Class returns the object's class.
func (o *Object) Class() *Class { return o.class }

// Field returns the named instance variable.
func (o *Object) Field(name string) (Value, bool) {
	idx := o.class.InstVarIndex(name)
	if idx < 0 {
		return nil, false
	}
	return o.fields[idx], true
}

// SetField assigns the named instance variable.
func (o *Object) SetField(name string, v Value) bool {
	idx := o.class.InstVarIndex(name)
	if idx < 0 {
		return false
	}
	o.fields[idx] = v
	return true
}

// Block is a closure over the frame that created it.
type Block struct {
	code  *BlockCode
	outer *frame
	home  *frame
}

// NumArgs returns the number of parameters the block takes.
func (b *Block) NumArgs() int { return b.code.NumArgs }

// ---------------------------------------------------------------------------
// Printing
// ---------------------------------------------------------------------------

// PrintString renders v the way the printString message does: strings are
// quoted, symbols carry their hash.
func PrintString(v Value) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case Symbol:
		return "#" + string(x)
	case Character:
		return "$" + string(rune(x))
	case *Array:
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = PrintString(e)
		}
		return "#(" + strings.Join(parts, " ") + ")"
	}
	return DisplayString(v)
}

// DisplayString renders v for humans: strings and symbols are shown bare.
func DisplayString(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case string:
		return x
	case Symbol:
		return string(x)
	case Character:
		return string(rune(x))
	case *Array:
		return PrintString(x)
	case *Block:
		return "a Block"
	case *Class:
		return x.Name
	case *Object:
		if x.class.IsError() {
			if msg, ok := x.Field("messageText"); ok && msg != nil {
				return x.class.Name + ": " + DisplayString(msg)
			}
			return x.class.Name
		}
		return article(x.class.SimpleName()) + " " + x.class.SimpleName()
	}
	return "<unknown>"
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

func article(name string) string {
	if name != "" && strings.ContainsRune("AEIOUaeiou", rune(name[0])) {
		return "an"
	}
	return "a"
}
