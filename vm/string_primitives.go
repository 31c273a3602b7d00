package vm

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// String and Symbol
// ---------------------------------------------------------------------------

func (in *Interp) str(v Value, selector string) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case Symbol:
		return string(x), nil
	}
	return "", in.Signalf(in.rt.TypeMismatch, "%s expects a String, got %s", selector, PrintString(v))
}

func (rt *Runtime) installStringPrimitives() {
	s := rt.String

	s.prim("size", func(in *Interp, recv Value, args []Value) (Value, error) {
		return int64(utf8.RuneCountInString(recv.(string))), nil
	})
	s.prim(",", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, err := in.str(args[0], ",")
		if err != nil {
			return nil, err
		}
		return recv.(string) + other, nil
	})
	s.prim("=", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, ok := args[0].(string)
		return ok && other == recv.(string), nil
	})
	for _, sel := range []string{"<", ">", "<=", ">="} {
		sel := sel
		s.prim(sel, func(in *Interp, recv Value, args []Value) (Value, error) {
			other, err := in.str(args[0], sel)
			if err != nil {
				return nil, err
			}
			c := strings.Compare(recv.(string), other)
			switch sel {
			case "<":
				return c < 0, nil
			case ">":
				return c > 0, nil
			case "<=":
				return c <= 0, nil
			}
			return c >= 0, nil
		})
	}
	s.prim("at:", func(in *Interp, recv Value, args []Value) (Value, error) {
		runes := []rune(recv.(string))
		idx, err := in.index(args[0], len(runes))
		if err != nil {
			return nil, err
		}
		return Character(runes[idx]), nil
	})
	s.prim("do:", func(in *Interp, recv Value, args []Value) (Value, error) {
		body, err := in.block(args[0], "do:")
		if err != nil {
			return nil, err
		}
		for _, r := range recv.(string) {
			if _, err := in.CallBlock(body, Character(r)); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	s.prim("copyFrom:to:", func(in *Interp, recv Value, args []Value) (Value, error) {
		runes := []rune(recv.(string))
		from, ok1 := args[0].(int64)
		to, ok2 := args[1].(int64)
		if !ok1 || !ok2 || from < 1 || to > int64(len(runes)) || from > to+1 {
			return nil, in.Signalf(in.rt.Error, "copyFrom: %s to: %s out of bounds for size %d", PrintString(args[0]), PrintString(args[1]), len(runes))
		}
		return string(runes[from-1 : to]), nil
	})
	s.prim("indexOf:", func(in *Interp, recv Value, args []Value) (Value, error) {
		c, ok := args[0].(Character)
		if !ok {
			return int64(0), nil
		}
		for i, r := range []rune(recv.(string)) {
			if r == rune(c) {
				return int64(i + 1), nil
			}
		}
		return int64(0), nil
	})
	s.prim("includesSubstring:", func(in *Interp, recv Value, args []Value) (Value, error) {
		sub, err := in.str(args[0], "includesSubstring:")
		return err == nil && strings.Contains(recv.(string), sub), err
	})
	s.prim("startsWith:", func(in *Interp, recv Value, args []Value) (Value, error) {
		p, err := in.str(args[0], "startsWith:")
		return err == nil && strings.HasPrefix(recv.(string), p), err
	})
	s.prim("endsWith:", func(in *Interp, recv Value, args []Value) (Value, error) {
		p, err := in.str(args[0], "endsWith:")
		return err == nil && strings.HasSuffix(recv.(string), p), err
	})
	s.prim("replaceAll:with:", func(in *Interp, recv Value, args []Value) (Value, error) {
		old, err := in.str(args[0], "replaceAll:with:")
		if err != nil {
			return nil, err
		}
		repl, err := in.str(args[1], "replaceAll:with:")
		if err != nil {
			return nil, err
		}
		return strings.ReplaceAll(recv.(string), old, repl), nil
	})
	s.prim("substrings", func(in *Interp, recv Value, args []Value) (Value, error) {
		fields := strings.Fields(recv.(string))
		elems := make([]Value, len(fields))
		for i, f := range fields {
			elems[i] = f
		}
		return &Array{Elems: elems}, nil
	})
	s.prim("trimSeparators", func(in *Interp, recv Value, args []Value) (Value, error) {
		return strings.TrimSpace(recv.(string)), nil
	})
	s.prim("isEmpty", func(in *Interp, recv Value, args []Value) (Value, error) { return recv.(string) == "", nil })
	s.prim("notEmpty", func(in *Interp, recv Value, args []Value) (Value, error) { return recv.(string) != "", nil })
	s.prim("asUppercase", func(in *Interp, recv Value, args []Value) (Value, error) { return strings.ToUpper(recv.(string)), nil })
	s.prim("asLowercase", func(in *Interp, recv Value, args []Value) (Value, error) { return strings.ToLower(recv.(string)), nil })
	s.prim("asString", func(in *Interp, recv Value, args []Value) (Value, error) { return recv, nil })
	s.prim("asSymbol", func(in *Interp, recv Value, args []Value) (Value, error) { return Symbol(recv.(string)), nil })
	s.prim("reversed", func(in *Interp, recv Value, args []Value) (Value, error) {
		runes := []rune(recv.(string))
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return string(runes), nil
	})
	s.prim("asInteger", func(in *Interp, recv Value, args []Value) (Value, error) {
		n, err := strconv.ParseInt(strings.TrimSpace(recv.(string)), 10, 64)
		if err != nil {
			return nil, nil
		}
		return n, nil
	})
	s.prim("asNumber", func(in *Interp, recv Value, args []Value) (Value, error) {
		text := strings.TrimSpace(recv.(string))
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f, nil
		}
		return nil, nil
	})

	sym := rt.Symbol
	sym.prim("size", func(in *Interp, recv Value, args []Value) (Value, error) {
		return int64(utf8.RuneCountInString(string(recv.(Symbol)))), nil
	})
	sym.prim("asString", func(in *Interp, recv Value, args []Value) (Value, error) { return string(recv.(Symbol)), nil })
	sym.prim("asSymbol", func(in *Interp, recv Value, args []Value) (Value, error) { return recv, nil })
	sym.prim("numArgs", func(in *Interp, recv Value, args []Value) (Value, error) {
		return int64(selectorArity(string(recv.(Symbol)))), nil
	})
}

// index converts a 1-based Smalltalk index into a 0-based Go index.
func (in *Interp) index(v Value, size int) (int, error) {
	i, ok := v.(int64)
	if !ok {
		return 0, in.Signalf(in.rt.TypeMismatch, "index must be an Integer, got %s", PrintString(v))
	}
	if i < 1 || i > int64(size) {
		return 0, in.Signalf(in.rt.Error, "index %d out of bounds for size %d", i, size)
	}
	return int(i - 1), nil
}

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// MaxArrayLen bounds the size of an array created with new:.
const MaxArrayLen = 1 << 24

func (rt *Runtime) installArrayPrimitives() {
	a := rt.Array

	a.classPrim("new", func(in *Interp, recv Value, args []Value) (Value, error) { return &Array{}, nil })
	a.classPrim("new:", func(in *Interp, recv Value, args []Value) (Value, error) {
		n, ok := args[0].(int64)
		if !ok || n < 0 {
			return nil, in.Signalf(in.rt.Error, "Array new: expects a non-negative Integer, got %s", PrintString(args[0]))
		}
		if n > MaxArrayLen {
			return nil, in.Signalf(in.rt.Error, "Array new: %d exceeds the maximum size %d", n, MaxArrayLen)
		}
		return &Array{Elems: make([]Value, n)}, nil
	})
	for _, sel := range []string{"with:", "with:with:", "with:with:with:", "with:with:with:with:"} {
		a.classPrim(sel, func(in *Interp, recv Value, args []Value) (Value, error) {
			return &Array{Elems: append([]Value(nil), args...)}, nil
		})
	}

	a.prim("size", func(in *Interp, recv Value, args []Value) (Value, error) { return int64(len(recv.(*Array).Elems)), nil })
	a.prim("at:", func(in *Interp, recv Value, args []Value) (Value, error) {
		arr := recv.(*Array)
		idx, err := in.index(args[0], len(arr.Elems))
		if err != nil {
			return nil, err
		}
		return arr.Elems[idx], nil
	})
	a.prim("at:put:", func(in *Interp, recv Value, args []Value) (Value, error) {
		arr := recv.(*Array)
		idx, err := in.index(args[0], len(arr.Elems))
		if err != nil {
			return nil, err
		}
		arr.Elems[idx] = args[1]
		return args[1], nil
	})
	a.prim("first", func(in *Interp, recv Value, args []Value) (Value, error) {
		arr := recv.(*Array)
		if len(arr.Elems) == 0 {
			return nil, in.Signalf(in.rt.Error, "first of an empty Array")
		}
		return arr.Elems[0], nil
	})
	a.prim("last", func(in *Interp, recv Value, args []Value) (Value, error) {
		arr := recv.(*Array)
		if len(arr.Elems) == 0 {
			return nil, in.Signalf(in.rt.Error, "last of an empty Array")
		}
		return arr.Elems[len(arr.Elems)-1], nil
	})
	a.prim("isEmpty", func(in *Interp, recv Value, args []Value) (Value, error) { return len(recv.(*Array).Elems) == 0, nil })
	a.prim("notEmpty", func(in *Interp, recv Value, args []Value) (Value, error) { return len(recv.(*Array).Elems) != 0, nil })
	a.prim(",", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, ok := args[0].(*Array)
		if !ok {
			return nil, in.Signalf(in.rt.TypeMismatch, ", expects an Array, got %s", PrintString(args[0]))
		}
		elems := append(append([]Value(nil), recv.(*Array).Elems...), other.Elems...)
		return &Array{Elems: elems}, nil
	})
	a.prim("=", func(in *Interp, recv Value, args []Value) (Value, error) {
		other, ok := args[0].(*Array)
		if !ok || len(other.Elems) != len(recv.(*Array).Elems) {
			return false, nil
		}
		for i, e := range recv.(*Array).Elems {
			eq, err := in.Send(e, "=", other.Elems[i])
			if err != nil {
				return nil, err
			}
			if b, _ := eq.(bool); !b {
				return false, nil
			}
		}
		return true, nil
	})
	a.prim("reversed", func(in *Interp, recv Value, args []Value) (Value, error) {
		src := recv.(*Array).Elems
		out := make([]Value, len(src))
		for i, e := range src {
			out[len(src)-1-i] = e
		}
		return &Array{Elems: out}, nil
	})
	a.prim("includes:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.arrayFind(recv.(*Array), func(v Value) (bool, error) {
			eq, err := in.Send(v, "=", args[0])
			b, _ := eq.(bool)
			return b, err
		})
	})
	a.prim("do:", func(in *Interp, recv Value, args []Value) (Value, error) {
		body, err := in.block(args[0], "do:")
		if err != nil {
			return nil, err
		}
		for _, e := range recv.(*Array).Elems {
			if _, err := in.CallBlock(body, e); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	a.prim("keysAndValuesDo:", func(in *Interp, recv Value, args []Value) (Value, error) {
		body, err := in.block(args[0], "keysAndValuesDo:")
		if err != nil {
			return nil, err
		}
		for i, e := range recv.(*Array).Elems {
			if _, err := in.CallBlock(body, int64(i+1), e); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	a.prim("collect:", func(in *Interp, recv Value, args []Value) (Value, error) {
		body, err := in.block(args[0], "collect:")
		if err != nil {
			return nil, err
		}
		src := recv.(*Array).Elems
		out := make([]Value, len(src))
		for i, e := range src {
			if out[i], err = in.CallBlock(body, e); err != nil {
				return nil, err
			}
		}
		return &Array{Elems: out}, nil
	})
	a.prim("select:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.filter(recv.(*Array), args[0], true)
	})
	a.prim("reject:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.filter(recv.(*Array), args[0], false)
	})
	a.prim("detect:ifNone:", func(in *Interp, recv Value, args []Value) (Value, error) {
		body, err := in.block(args[0], "detect:ifNone:")
		if err != nil {
			return nil, err
		}
		for _, e := range recv.(*Array).Elems {
			v, err := in.CallBlock(body, e)
			if err != nil {
				return nil, err
			}
			if b, _ := v.(bool); b {
				return e, nil
			}
		}
		return in.valueOf(args[1])
	})
	a.prim("anySatisfy:", func(in *Interp, recv Value, args []Value) (Value, error) {
		body, err := in.block(args[0], "anySatisfy:")
		if err != nil {
			return nil, err
		}
		return in.arrayFind(recv.(*Array), func(v Value) (bool, error) {
			r, err := in.CallBlock(body, v)
			b, _ := r.(bool)
			return b, err
		})
	})
	a.prim("inject:into:", func(in *Interp, recv Value, args []Value) (Value, error) {
		body, err := in.block(args[1], "inject:into:")
		if err != nil {
			return nil, err
		}
		acc := args[0]
		for _, e := range recv.(*Array).Elems {
			if acc, err = in.CallBlock(body, acc, e); err != nil {
				return nil, err
			}
		}
		return acc, nil
	})
}

func (in *Interp) filter(arr *Array, blk Value, keep bool) (Value, error) {
	body, err := in.block(blk, "select:")
	if err != nil {
		return nil, err
	}
	var out []Value
	for _, e := range arr.Elems {
		v, err := in.CallBlock(body, e)
		if err != nil {
			return nil, err
		}
		ok, err := in.truth(v, "select:")
		if err != nil {
			return nil, err
		}
		if ok == keep {
			out = append(out, e)
		}
	}
	return &Array{Elems: out}, nil
}

func (in *Interp) arrayFind(arr *Array, pred func(Value) (bool, error)) (Value, error) {
	for _, e := range arr.Elems {
		ok, err := pred(e)
		if err != nil {
			return nil, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
