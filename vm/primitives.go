package vm

import (
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Primitive registration
// ---------------------------------------------------------------------------

func (c *Class) prim(selector string, fn PrimitiveFunc) {
	c.Methods[selector] = &Method{Selector: selector, Class: c, NumArgs: selectorArity(selector), Prim: fn}
}

func (c *Class) classPrim(selector string, fn PrimitiveFunc) {
	c.ClassMethods[selector] = &Method{Selector: selector, Class: c, ClassSide: true, NumArgs: selectorArity(selector), Prim: fn}
}

// selectorArity counts the arguments a selector takes.
func selectorArity(selector string) int {
	if selector == "" {
		return 0
	}
	r := rune(selector[0])
	if !unicode.IsLetter(r) && r != '_' {
		return 1
	}
	return strings.Count(selector, ":")
}

func (in *Interp) block(v Value, selector string) (*Block, error) {
	b, ok := v.(*Block)
	if !ok {
		return nil, in.Signalf(in.rt.TypeMismatch, "%s expects a block, got %s", selector, PrintString(v))
	}
	return b, nil
}

func (in *Interp) truth(v Value, selector string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, in.Signalf(in.rt.TypeMismatch, "%s expects a Boolean, got %s", selector, PrintString(v))
	}
	return b, nil
}

// valueOf evaluates v if it is a block, otherwise returns it unchanged.
func (in *Interp) valueOf(v Value) (Value, error) {
	if b, ok := v.(*Block); ok {
		return in.CallBlock(b)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Object
// ---------------------------------------------------------------------------

func (rt *Runtime) installObjectPrimitives() {
	o := rt.Object

	o.classPrim("new", func(in *Interp, recv Value, args []Value) (Value, error) {
		cls := recv.(*Class)
		obj, err := in.instantiate(cls)
		if err != nil {
			return nil, err
		}
		return in.Send(obj, "initialize")
	})
	o.classPrim("basicNew", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.instantiate(recv.(*Class))
	})

	o.prim("initialize", func(in *Interp, recv Value, args []Value) (Value, error) { return recv, nil })
	o.prim("yourself", func(in *Interp, recv Value, args []Value) (Value, error) { return recv, nil })
	o.prim("==", func(in *Interp, recv Value, args []Value) (Value, error) { return recv == args[0], nil })
	o.prim("~~", func(in *Interp, recv Value, args []Value) (Value, error) { return recv != args[0], nil })
	o.prim("=", func(in *Interp, recv Value, args []Value) (Value, error) { return recv == args[0], nil })
	o.prim("~=", func(in *Interp, recv Value, args []Value) (Value, error) {
		eq, err := in.Send(recv, "=", args[0])
		if err != nil {
			return nil, err
		}
		b, _ := eq.(bool)
		return !b, nil
	})
	o.prim("class", func(in *Interp, recv Value, args []Value) (Value, error) { return in.rt.ClassOf(recv), nil })
	o.prim("printString", func(in *Interp, recv Value, args []Value) (Value, error) { return PrintString(recv), nil })
	o.prim("displayString", func(in *Interp, recv Value, args []Value) (Value, error) {
		if _, ok := recv.(*Object); ok {
			return in.Send(recv, "printString")
		}
		return DisplayString(recv), nil
	})
	o.prim("isNil", func(in *Interp, recv Value, args []Value) (Value, error) { return recv == nil, nil })
	o.prim("notNil", func(in *Interp, recv Value, args []Value) (Value, error) { return recv != nil, nil })
	o.prim("ifNil:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if recv == nil {
			return in.valueOf(args[0])
		}
		return recv, nil
	})
	o.prim("ifNotNil:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if recv == nil {
			return nil, nil
		}
		return in.ifNotNil(recv, args[0])
	})
	o.prim("ifNil:ifNotNil:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if recv == nil {
			return in.valueOf(args[0])
		}
		return in.ifNotNil(recv, args[1])
	})
	o.prim("ifNotNil:ifNil:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if recv == nil {
			return in.valueOf(args[1])
		}
		return in.ifNotNil(recv, args[0])
	})
	o.prim("isString", func(in *Interp, recv Value, args []Value) (Value, error) {
		_, ok := recv.(string)
		return ok, nil
	})
	o.prim("isSymbol", func(in *Interp, recv Value, args []Value) (Value, error) {
		_, ok := recv.(Symbol)
		return ok, nil
	})
	o.prim("isNumber", func(in *Interp, recv Value, args []Value) (Value, error) {
		_, ok := toFloat(recv)
		return ok, nil
	})
	o.prim("isArray", func(in *Interp, recv Value, args []Value) (Value, error) {
		_, ok := recv.(*Array)
		return ok, nil
	})
	o.prim("respondsTo:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.Responds(recv, selectorName(args[0])), nil
	})
	o.prim("isKindOf:", func(in *Interp, recv Value, args []Value) (Value, error) {
		cls, ok := args[0].(*Class)
		return ok && in.rt.ClassOf(recv).InheritsFrom(cls), nil
	})
	o.prim("isMemberOf:", func(in *Interp, recv Value, args []Value) (Value, error) {
		cls, ok := args[0].(*Class)
		return ok && in.rt.ClassOf(recv) == cls, nil
	})
	o.prim("perform:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.Send(recv, selectorName(args[0]))
	})
	o.prim("perform:with:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.Send(recv, selectorName(args[0]), args[1])
	})
	o.prim("perform:with:with:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.Send(recv, selectorName(args[0]), args[1], args[2])
	})
	o.prim("copy", func(in *Interp, recv Value, args []Value) (Value, error) {
		switch x := recv.(type) {
		case *Object:
			return &Object{class: x.class, fields: append([]Value(nil), x.fields...)}, nil
		case *Array:
			return &Array{Elems: append([]Value(nil), x.Elems...)}, nil
		}
		return recv, nil
	})
	o.prim("assert:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return recv, in.assert(args[0], "Assertion failed")
	})
	o.prim("assert:description:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return recv, in.assert(args[0], DisplayString(args[1]))
	})
	o.prim("error:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return nil, &Signal{Exception: in.rt.NewException(in.rt.Error, DisplayString(args[0]))}
	})
	o.prim("halt", func(in *Interp, recv Value, args []Value) (Value, error) {
		return nil, in.Signalf(in.rt.Error, "halt")
	})
}

func (in *Interp) ifNotNil(recv, action Value) (Value, error) {
	if b, ok := action.(*Block); ok {
		if b.NumArgs() == 1 {
			return in.CallBlock(b, recv)
		}
		return in.CallBlock(b)
	}
	return action, nil
}

func (in *Interp) assert(cond Value, msg string) error {
	v, err := in.valueOf(cond)
	if err != nil {
		return err
	}
	ok, err := in.truth(v, "assert:")
	if err != nil {
		return err
	}
	if !ok {
		return &Signal{Exception: in.rt.NewException(in.rt.AssertionFailure, msg)}
	}
	return nil
}

func (in *Interp) instantiate(cls *Class) (*Object, error) {
	if cls.builtin && cls != in.rt.Object && !cls.IsError() {
		return nil, in.Signalf(in.rt.Error, "%s cannot be instantiated with new", cls.Name)
	}
	return &Object{class: cls, fields: make([]Value, len(cls.InstVars))}, nil
}

func selectorName(v Value) string {
	switch x := v.(type) {
	case Symbol:
		return string(x)
	case string:
		return x
	}
	return DisplayString(v)
}

// ---------------------------------------------------------------------------
// Class (messages understood by every class object)
// ---------------------------------------------------------------------------

func (rt *Runtime) installClassPrimitives() {
	c := rt.ClassClass

	c.prim("name", func(in *Interp, recv Value, args []Value) (Value, error) { return recv.(*Class).SimpleName(), nil })
	c.prim("qualifiedName", func(in *Interp, recv Value, args []Value) (Value, error) { return recv.(*Class).Name, nil })
	c.prim("namespace", func(in *Interp, recv Value, args []Value) (Value, error) { return recv.(*Class).Namespace(), nil })
	c.prim("superclass", func(in *Interp, recv Value, args []Value) (Value, error) {
		if s := recv.(*Class).Superclass; s != nil {
			return s, nil
		}
		return nil, nil
	})
	c.prim("inheritsFrom:", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, ok := args[0].(*Class)
		return ok && recv.(*Class) != other && recv.(*Class).InheritsFrom(other), nil
	})
	c.prim("includesSelector:", func(in *Interp, recv Value, args []Value) (Value, error) {
		_, ok := recv.(*Class).Methods[selectorName(args[0])]
		return ok, nil
	})
	c.prim("selectors", func(in *Interp, recv Value, args []Value) (Value, error) {
		sels := recv.(*Class).Selectors()
		elems := make([]Value, len(sels))
		for i, s := range sels {
			elems[i] = Symbol(s)
		}
		return &Array{Elems: elems}, nil
	})
	c.prim("instanceVariableNames", func(in *Interp, recv Value, args []Value) (Value, error) {
		ivars := recv.(*Class).InstVars
		elems := make([]Value, len(ivars))
		for i, s := range ivars {
			elems[i] = s
		}
		return &Array{Elems: elems}, nil
	})
	c.prim("class", func(in *Interp, recv Value, args []Value) (Value, error) { return in.rt.ClassClass, nil })
}

// ---------------------------------------------------------------------------
// Boolean
// ---------------------------------------------------------------------------

func (rt *Runtime) installBooleanPrimitives() {
	b := rt.Boolean

	b.prim("ifTrue:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if recv.(bool) {
			return in.valueOf(args[0])
		}
		return nil, nil
	})
	b.prim("ifFalse:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if !recv.(bool) {
			return in.valueOf(args[0])
		}
		return nil, nil
	})
	b.prim("ifTrue:ifFalse:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if recv.(bool) {
			return in.valueOf(args[0])
		}
		return in.valueOf(args[1])
	})
	b.prim("ifFalse:ifTrue:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if recv.(bool) {
			return in.valueOf(args[1])
		}
		return in.valueOf(args[0])
	})
	b.prim("and:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if !recv.(bool) {
			return false, nil
		}
		return in.valueOf(args[0])
	})
	b.prim("or:", func(in *Interp, recv Value, args []Value) (Value, error) {
		if recv.(bool) {
			return true, nil
		}
		return in.valueOf(args[0])
	})
	b.prim("&", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, err := in.truth(args[0], "&")
		return recv.(bool) && other, err
	})
	b.prim("|", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, err := in.truth(args[0], "|")
		return recv.(bool) || other, err
	})
	b.prim("xor:", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, err := in.truth(args[0], "xor:")
		return recv.(bool) != other, err
	})
	b.prim("not", func(in *Interp, recv Value, args []Value) (Value, error) { return !recv.(bool), nil })
}

// ---------------------------------------------------------------------------
// Block
// ---------------------------------------------------------------------------

func (rt *Runtime) installBlockPrimitives() {
	b := rt.Block

	b.prim("value", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.CallBlock(recv.(*Block))
	})
	b.prim("value:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.CallBlock(recv.(*Block), args...)
	})
	b.prim("value:value:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.CallBlock(recv.(*Block), args...)
	})
	b.prim("value:value:value:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.CallBlock(recv.(*Block), args...)
	})
	b.prim("value:value:value:value:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.CallBlock(recv.(*Block), args...)
	})
	b.prim("valueWithArguments:", func(in *Interp, recv Value, args []Value) (Value, error) {
		arr, ok := args[0].(*Array)
		if !ok {
			return nil, in.Signalf(in.rt.TypeMismatch, "valueWithArguments: expects an Array, got %s", PrintString(args[0]))
		}
		return in.CallBlock(recv.(*Block), arr.Elems...)
	})
	b.prim("numArgs", func(in *Interp, recv Value, args []Value) (Value, error) {
		return int64(recv.(*Block).NumArgs()), nil
	})
	b.prim("whileTrue:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return nil, in.loop(recv.(*Block), args[0], true)
	})
	b.prim("whileFalse:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return nil, in.loop(recv.(*Block), args[0], false)
	})
	b.prim("whileTrue", func(in *Interp, recv Value, args []Value) (Value, error) {
		return nil, in.loop(recv.(*Block), nil, true)
	})
	b.prim("whileFalse", func(in *Interp, recv Value, args []Value) (Value, error) {
		return nil, in.loop(recv.(*Block), nil, false)
	})
	b.prim("on:do:", onDo)
	b.prim("ensure:", ensure)
}

func (in *Interp) loop(cond *Block, body Value, want bool) error {
	for {
		v, err := in.CallBlock(cond)
		if err != nil {
			return err
		}
		ok, err := in.truth(v, "whileTrue:")
		if err != nil {
			return err
		}
		if ok != want {
			return nil
		}
		if body != nil {
			if _, err := in.valueOf(body); err != nil {
				return err
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Character
// ---------------------------------------------------------------------------

func (rt *Runtime) installCharacterPrimitives() {
	c := rt.Character

	c.classPrim("value:", func(in *Interp, recv Value, args []Value) (Value, error) {
		n, ok := args[0].(int64)
		if !ok {
			return nil, in.Signalf(in.rt.TypeMismatch, "Character value: expects an Integer")
		}
		return Character(rune(n)), nil
	})

	c.prim("value", func(in *Interp, recv Value, args []Value) (Value, error) { return int64(recv.(Character)), nil })
	c.prim("asString", func(in *Interp, recv Value, args []Value) (Value, error) { return string(rune(recv.(Character))), nil })
	c.prim("asUppercase", func(in *Interp, recv Value, args []Value) (Value, error) {
		return Character(unicode.ToUpper(rune(recv.(Character)))), nil
	})
	c.prim("asLowercase", func(in *Interp, recv Value, args []Value) (Value, error) {
		return Character(unicode.ToLower(rune(recv.(Character)))), nil
	})
	c.prim("isLetter", func(in *Interp, recv Value, args []Value) (Value, error) { return unicode.IsLetter(rune(recv.(Character))), nil })
	c.prim("isDigit", func(in *Interp, recv Value, args []Value) (Value, error) { return unicode.IsDigit(rune(recv.(Character))), nil })
	c.prim("isSeparator", func(in *Interp, recv Value, args []Value) (Value, error) { return unicode.IsSpace(rune(recv.(Character))), nil })
	c.prim("isUppercase", func(in *Interp, recv Value, args []Value) (Value, error) { return unicode.IsUpper(rune(recv.(Character))), nil })
	c.prim("isLowercase", func(in *Interp, recv Value, args []Value) (Value, error) { return unicode.IsLower(rune(recv.(Character))), nil })
	c.prim("isVowel", func(in *Interp, recv Value, args []Value) (Value, error) {
		return strings.ContainsRune("aeiouAEIOU", rune(recv.(Character))), nil
	})
	c.prim("<", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, ok := args[0].(Character)
		if !ok {
			return nil, in.Signalf(in.rt.TypeMismatch, "cannot compare a Character with %s", PrintString(args[0]))
		}
		return recv.(Character) < other, nil
	})
	c.prim(">", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, ok := args[0].(Character)
		if !ok {
			return nil, in.Signalf(in.rt.TypeMismatch, "cannot compare a Character with %s", PrintString(args[0]))
		}
		return recv.(Character) > other, nil
	})
}
