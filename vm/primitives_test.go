package vm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPrimitives(t *testing.T) {
	rt := NewRuntime()
	tests := []struct {
		recv     Value
		selector string
		args     []Value
		want     Value
	}{
		{int64(7), "//", []Value{int64(-2)}, int64(-4)},
		{int64(7), "\\\\", []Value{int64(-2)}, int64(-1)},
		{int64(7), "rem:", []Value{int64(-2)}, int64(1)},
		{int64(7), "/", []Value{int64(2)}, 3.5},
		{int64(6), "/", []Value{int64(3)}, int64(2)},
		{2.0, "+", []Value{int64(1)}, 3.0},
		{int64(3), "max:", []Value{int64(9)}, int64(9)},
		{int64(3), "<", []Value{2.5}, false},
		{int64(3), "=", []Value{3.0}, true},
		{int64(5), "between:and:", []Value{int64(1), int64(5)}, true},
		{int64(5), "factorial", nil, int64(120)},
		{int64(5), "printString:", []Value{int64(2)}, "101"},
		{int64(-4), "abs", nil, int64(4)},
		{2.6, "rounded", nil, int64(3)},
		{int64(10), "bitAnd:", []Value{int64(6)}, int64(2)},
		{"abc", ",", []Value{"def"}, "abcdef"},
		{"abc", "size", nil, int64(3)},
		{"abc", "reversed", nil, "cba"},
		{"Kiln", "asUppercase", nil, "KILN"},
		{" 42 ", "asNumber", nil, int64(42)},
		{"abc", "=", []Value{"abc"}, true},
		{"abc", "printString", nil, "'abc'"},
		{true, "&", []Value{false}, false},
		{true, "not", nil, false},
		{nil, "isNil", nil, true},
		{NewArray(int64(1), int64(2)), "size", nil, int64(2)},
		{NewArray(int64(1), int64(2)), "last", nil, int64(2)},
		{NewArray(int64(1), int64(2)), "includes:", []Value{int64(2)}, true},
	}
	for _, tt := range tests {
		got, err := rt.SendTo(tt.recv, tt.selector, tt.args...)
		if err != nil {
			t.Errorf("%s %s: %v", PrintString(tt.recv), tt.selector, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s %s %v = %v, want %v", PrintString(tt.recv), tt.selector, tt.args, got, tt.want)
		}
	}
}

func TestPrimitiveFailures(t *testing.T) {
	rt := NewRuntime()
	tests := []struct {
		recv     Value
		selector string
		args     []Value
		want     *Class
	}{
		{int64(1), "/", []Value{int64(0)}, rt.ZeroDivide},
		{1.5, "//", []Value{0.0}, rt.ZeroDivide},
		{int64(1), "+", []Value{"one"}, rt.TypeMismatch},
		{"abc", ",", []Value{int64(3)}, rt.TypeMismatch},
		{NewArray(), "first", nil, rt.Error},
		{NewArray(int64(1)), "at:", []Value{int64(2)}, rt.Error},
		{int64(-1), "factorial", nil, rt.Error},
		{int64(1), "assert:", []Value{false}, rt.AssertionFailure},
		{rt.Array, "new:", []Value{int64(1) << 62}, rt.Error},
	}
	for _, tt := range tests {
		_, err := rt.SendTo(tt.recv, tt.selector, tt.args...)
		sig, ok := AsSignal(err)
		if !ok || sig.Class() != tt.want {
			t.Errorf("%s %s: error = %v, want %s", PrintString(tt.recv), tt.selector, err, tt.want.Name)
		}
	}
}

func TestClassProtocol(t *testing.T) {
	rt := NewRuntime()
	if v, _ := rt.SendTo(rt.ZeroDivide, "inheritsFrom:", rt.Error); v != true {
		t.Error("ZeroDivide should inherit from Error")
	}
	if v, _ := rt.SendTo(rt.Integer, "superclass"); v != rt.Number {
		t.Errorf("Integer superclass = %v", v)
	}
	if _, err := rt.SendTo(rt.Integer, "new"); err == nil {
		t.Error("Integer new should fail")
	}
	exc, err := rt.SendTo(rt.ZeroDivide, "new")
	if err != nil {
		t.Fatalf("ZeroDivide new: %v", err)
	}
	if _, err := rt.SendTo(exc, "messageText:", "boom"); err != nil {
		t.Fatal(err)
	}
	if got := DisplayString(exc); got != "ZeroDivide: boom" {
		t.Errorf("DisplayString = %q", got)
	}
}

// ---------------------------------------------------------------------------
// Printing and Go values
// ---------------------------------------------------------------------------

func TestPrintStrings(t *testing.T) {
	tests := []struct {
		v       Value
		print   string
		display string
	}{
		{nil, "nil", "nil"},
		{int64(-3), "-3", "-3"},
		{2.0, "2.0", "2.0"},
		{0.5, "0.5", "0.5"},
		{"it's", "'it''s'", "it's"},
		{Symbol("at:put:"), "#at:put:", "at:put:"},
		{Character('a'), "$a", "a"},
		{NewArray(int64(1), "x"), "#(1 'x')", "#(1 'x')"},
	}
	for _, tt := range tests {
		if got := PrintString(tt.v); got != tt.print {
			t.Errorf("PrintString(%v) = %q, want %q", tt.v, got, tt.print)
		}
		if got := DisplayString(tt.v); got != tt.display {
			t.Errorf("DisplayString(%v) = %q, want %q", tt.v, got, tt.display)
		}
	}
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		in   any
		want Value
	}{
		{7, int64(7)},
		{uint8(7), int64(7)},
		{float32(0.5), 0.5},
		{"s", "s"},
		{true, true},
		{nil, nil},
	}
	for _, tt := range tests {
		got, err := FromGo(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("FromGo(%#v) = %#v, %v", tt.in, got, err)
		}
	}

	arr, err := FromGo([]any{1, "two", []any{3.0}})
	if err != nil {
		t.Fatal(err)
	}
	want := []any{int64(1), "two", []any{3.0}}
	if diff := cmp.Diff(want, ToGo(arr)); diff != "" {
		t.Errorf("ToGo(FromGo(...)) mismatch (-want +got):\n%s", diff)
	}

	if _, err := FromGo(struct{}{}); err == nil {
		t.Error("expected an error for a struct")
	}
}
