package vm

import (
	"fmt"
)

// TypeVoid is the return type of methods whose value is discarded.
const TypeVoid = "Void"

// ---------------------------------------------------------------------------
// Declared types
// ---------------------------------------------------------------------------

// Conform checks v against the type called typeName, resolved through
// scope. Integers widen to Float. It returns the possibly converted value
// and whether v conforms.
func (rt *Runtime) Conform(scope Resolver, v Value, typeName string) (Value, bool) {
	if typeName == "" {
		return v, true
	}
	if scope == nil {
		scope = rt.Resolve
	}
	cls, ok := scope(typeName)
	if !ok {
		return v, false
	}
	switch cls {
	case rt.Object:
		return v, true
	case rt.Float:
		if i, ok := v.(int64); ok {
			return float64(i), true
		}
		_, ok := v.(float64)
		return v, ok
	case rt.Integer, rt.Number, rt.Boolean, rt.Character:
		return v, v != nil && rt.ClassOf(v).InheritsFrom(cls)
	}
	if v == nil {
		return nil, true
	}
	return v, rt.ClassOf(v).InheritsFrom(cls)
}

func (in *Interp) conformArgs(m *Method, args []Value) ([]Value, error) {
	if len(m.Sig.Args) == 0 {
		return args, nil
	}
	out := make([]Value, len(args))
	copy(out, args)
	for i, typeName := range m.Sig.Args {
		if i >= len(out) {
			break
		}
		v, ok := in.rt.Conform(m.Class.Scope, out[i], typeName)
		if !ok {
			return nil, in.Signalf(in.rt.TypeMismatch, "argument %d of %s: expected %s, got %s",
				i+1, m, typeName, describe(in.rt, out[i]))
		}
		out[i] = v
	}
	return out, nil
}

func (in *Interp) conformReturn(m *Method, v Value) (Value, error) {
	switch m.Sig.Returns {
	case "":
		return v, nil
	case TypeVoid:
		return nil, nil
	}
	out, ok := in.rt.Conform(m.Class.Scope, v, m.Sig.Returns)
	if !ok {
		return nil, in.Signalf(in.rt.TypeMismatch, "%s: expected to return %s, got %s",
			m, m.Sig.Returns, describe(in.rt, v))
	}
	return out, nil
}

func describe(rt *Runtime, v Value) string {
	return fmt.Sprintf("%s %s", rt.ClassOf(v).Name, PrintString(v))
}

// ---------------------------------------------------------------------------
// Go interop
// ---------------------------------------------------------------------------

// FromGo converts a Go value into a runtime value. Any integer kind becomes
// an Integer, any float kind a Float, and slices of any become Arrays.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil, bool, int64, float64, string, Symbol, Character, *Array, *Block, *Object, *Class:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			ev, err := FromGo(e)
			if err != nil {
				return nil, err
			}
			elems[i] = ev
		}
		return &Array{Elems: elems}, nil
	case []string:
		elems := make([]Value, len(x))
		for i, e := range x {
			elems[i] = e
		}
		return &Array{Elems: elems}, nil
	}
	return nil, fmt.Errorf("vm: cannot convert %T to a runtime value", v)
}

// ToGo converts a runtime value for Go callers: Arrays become []any and
// everything else is returned unchanged.
func ToGo(v Value) any {
	if arr, ok := v.(*Array); ok {
		out := make([]any, len(arr.Elems))
		for i, e := range arr.Elems {
			out[i] = ToGo(e)
		}
		return out
	}
	return v
}
