package vm

import (
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Number, Integer, Float
// ---------------------------------------------------------------------------

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func (rt *Runtime) installNumberPrimitives() {
	n := rt.Number

	for _, sel := range []string{"+", "-", "*", "/", "//", "\\\\", "rem:", "quo:", "max:", "min:"} {
		sel := sel
		n.prim(sel, func(in *Interp, recv Value, args []Value) (Value, error) {
			return in.arith(sel, recv, args[0])
		})
	}
	for _, sel := range []string{"<", ">", "<=", ">="} {
		sel := sel
		n.prim(sel, func(in *Interp, recv Value, args []Value) (Value, error) {
			return in.compare(sel, recv, args[0])
		})
	}
	n.prim("=", func(in *Interp, recv Value, args []Value) (Value, error) {
		return numEqual(recv, args[0]), nil
	})
	n.prim("between:and:", func(in *Interp, recv Value, args []Value) (Value, error) {
		lo, err := in.compare(">=", recv, args[0])
		if err != nil {
			return nil, err
		}
		hi, err := in.compare("<=", recv, args[1])
		if err != nil {
			return nil, err
		}
		return lo.(bool) && hi.(bool), nil
	})
	n.prim("negated", func(in *Interp, recv Value, args []Value) (Value, error) {
		if i, ok := recv.(int64); ok {
			return -i, nil
		}
		return -recv.(float64), nil
	})
	n.prim("abs", func(in *Interp, recv Value, args []Value) (Value, error) {
		if i, ok := recv.(int64); ok {
			if i < 0 {
				return -i, nil
			}
			return i, nil
		}
		return math.Abs(recv.(float64)), nil
	})
	n.prim("squared", func(in *Interp, recv Value, args []Value) (Value, error) {
		return in.arith("*", recv, recv)
	})
	n.prim("sqrt", func(in *Interp, recv Value, args []Value) (Value, error) {
		f, _ := toFloat(recv)
		return math.Sqrt(f), nil
	})
	n.prim("sign", func(in *Interp, recv Value, args []Value) (Value, error) {
		f, _ := toFloat(recv)
		switch {
		case f > 0:
			return int64(1), nil
		case f < 0:
			return int64(-1), nil
		}
		return int64(0), nil
	})
	n.prim("isZero", func(in *Interp, recv Value, args []Value) (Value, error) {
		f, _ := toFloat(recv)
		return f == 0, nil
	})
	n.prim("asFloat", func(in *Interp, recv Value, args []Value) (Value, error) {
		f, _ := toFloat(recv)
		return f, nil
	})
	n.prim("asInteger", func(in *Interp, recv Value, args []Value) (Value, error) {
		if i, ok := recv.(int64); ok {
			return i, nil
		}
		return int64(recv.(float64)), nil
	})
	n.prim("truncated", func(in *Interp, recv Value, args []Value) (Value, error) {
		f, _ := toFloat(recv)
		return int64(math.Trunc(f)), nil
	})
	n.prim("rounded", func(in *Interp, recv Value, args []Value) (Value, error) {
		f, _ := toFloat(recv)
		return int64(math.Round(f)), nil
	})
	n.prim("floor", func(in *Interp, recv Value, args []Value) (Value, error) {
		f, _ := toFloat(recv)
		return int64(math.Floor(f)), nil
	})
	n.prim("ceiling", func(in *Interp, recv Value, args []Value) (Value, error) {
		f, _ := toFloat(recv)
		return int64(math.Ceil(f)), nil
	})
	n.prim("to:do:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return recv, in.toDo(recv, args[0], int64(1), args[1])
	})
	n.prim("to:by:do:", func(in *Interp, recv Value, args []Value) (Value, error) {
		return recv, in.toDo(recv, args[0], args[1], args[2])
	})

	i := rt.Integer
	i.prim("even", func(in *Interp, recv Value, args []Value) (Value, error) { return recv.(int64)%2 == 0, nil })
	i.prim("odd", func(in *Interp, recv Value, args []Value) (Value, error) { return recv.(int64)%2 != 0, nil })
	i.prim("factorial", func(in *Interp, recv Value, args []Value) (Value, error) {
		k := recv.(int64)
		if k < 0 {
			return nil, in.Signalf(in.rt.Error, "factorial of negative number %d", k)
		}
		acc := int64(1)
		for j := int64(2); j <= k; j++ {
			acc *= j
		}
		return acc, nil
	})
	i.prim("printString:", func(in *Interp, recv Value, args []Value) (Value, error) {
		base, ok := args[0].(int64)
		if !ok || base < 2 || base > 36 {
			return nil, in.Signalf(in.rt.Error, "invalid radix %s", PrintString(args[0]))
		}
		return strconv.FormatInt(recv.(int64), int(base)), nil
	})
	i.prim("timesRepeat:", func(in *Interp, recv Value, args []Value) (Value, error) {
		body, err := in.block(args[0], "timesRepeat:")
		if err != nil {
			return nil, err
		}
		for k := int64(0); k < recv.(int64); k++ {
			if _, err := in.CallBlock(body); err != nil {
				return nil, err
			}
		}
		return recv, nil
	})
	i.prim("asCharacter", func(in *Interp, recv Value, args []Value) (Value, error) {
		return Character(rune(recv.(int64))), nil
	})
	for _, sel := range []string{"bitAnd:", "bitOr:", "bitXor:"} {
		sel := sel
		i.prim(sel, func(in *Interp, recv Value, args []Value) (Value, error) {
			a := recv.(int64)
			b, ok := args[0].(int64)
			if !ok {
				return nil, in.Signalf(in.rt.TypeMismatch, "%s expects an Integer, got %s", sel, PrintString(args[0]))
			}
			switch sel {
			case "bitAnd:":
				return a & b, nil
			case "bitOr:":
				return a | b, nil
			}
			return a ^ b, nil
		})
	}
}

func numEqual(a, b Value) bool {
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			return x == y
		}
	}
	x, ok1 := toFloat(a)
	y, ok2 := toFloat(b)
	return ok1 && ok2 && x == y
}

func (in *Interp) arith(sel string, a, b Value) (Value, error) {
	x, xInt := a.(int64)
	y, yInt := b.(int64)
	if xInt && yInt {
		return in.intArith(sel, x, y)
	}
	fx, ok1 := toFloat(a)
	fy, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return nil, in.Signalf(in.rt.TypeMismatch, "%s %s %s: operands must be numbers", PrintString(a), sel, PrintString(b))
	}
	return in.floatArith(sel, fx, fy)
}

func (in *Interp) intArith(sel string, x, y int64) (Value, error) {
	switch sel {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "max:":
		return max(x, y), nil
	case "min:":
		return min(x, y), nil
	}
	if y == 0 {
		return nil, in.Signalf(in.rt.ZeroDivide, "division by zero")
	}
	switch sel {
	case "/":
		if x%y == 0 {
			return x / y, nil
		}
		return float64(x) / float64(y), nil
	case "//":
		q := x / y
		if (x%y != 0) && ((x < 0) != (y < 0)) {
			q--
		}
		return q, nil
	case "\\\\":
		r := x % y
		if r != 0 && ((r < 0) != (y < 0)) {
			r += y
		}
		return r, nil
	case "rem:":
		return x % y, nil
	case "quo:":
		return x / y, nil
	}
	return nil, in.Signalf(in.rt.MessageNotUnderstood, "Integer does not understand #%s", sel)
}

func (in *Interp) floatArith(sel string, x, y float64) (Value, error) {
	switch sel {
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "*":
		return x * y, nil
	case "max:":
		return math.Max(x, y), nil
	case "min:":
		return math.Min(x, y), nil
	}
	if y == 0 {
		return nil, in.Signalf(in.rt.ZeroDivide, "division by zero")
	}
	switch sel {
	case "/":
		return x / y, nil
	case "//":
		return int64(math.Floor(x / y)), nil
	case "\\\\":
		return x - math.Floor(x/y)*y, nil
	case "rem:":
		return math.Mod(x, y), nil
	case "quo:":
		return int64(math.Trunc(x / y)), nil
	}
	return nil, in.Signalf(in.rt.MessageNotUnderstood, "Float does not understand #%s", sel)
}

func (in *Interp) compare(sel string, a, b Value) (Value, error) {
	x, ok1 := toFloat(a)
	y, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return nil, in.Signalf(in.rt.TypeMismatch, "%s %s %s: operands must be numbers", PrintString(a), sel, PrintString(b))
	}
	if xi, ok := a.(int64); ok {
		if yi, ok := b.(int64); ok {
			switch sel {
			case "<":
				return xi < yi, nil
			case ">":
				return xi > yi, nil
			case "<=":
				return xi <= yi, nil
			}
			return xi >= yi, nil
		}
	}
	switch sel {
	case "<":
		return x < y, nil
	case ">":
		return x > y, nil
	case "<=":
		return x <= y, nil
	}
	return x >= y, nil
}

func (in *Interp) toDo(from, to, step, body Value) error {
	blk, err := in.block(body, "to:do:")
	if err != nil {
		return err
	}
	start, ok1 := from.(int64)
	stop, ok2 := to.(int64)
	by, ok3 := step.(int64)
	if !ok1 || !ok2 || !ok3 {
		return in.Signalf(in.rt.TypeMismatch, "to:do: expects Integer bounds")
	}
	if by == 0 {
		return in.Signalf(in.rt.Error, "to:by:do: step must not be zero")
	}
	for k := start; (by > 0 && k <= stop) || (by < 0 && k >= stop); k += by {
		if _, err := in.CallBlock(blk, k); err != nil {
			return err
		}
	}
	return nil
}
