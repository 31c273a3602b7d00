package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/kiln/vm"
)

// classSpec describes a class to compile method by method.
type classSpec struct {
	name         string
	ivars        []string
	classVars    string // "classVar: x := expr" lines, parsed as a unit body
	methods      []string
	classMethods []string
}

func defineClass(t *testing.T, rt *vm.Runtime, spec classSpec) *vm.Class {
	t.Helper()
	ctx := &ClassContext{InstVars: spec.ivars}
	img := &vm.ClassImage{Name: spec.name, Superclass: "Object", InstVars: spec.ivars}

	if spec.classVars != "" {
		sf := parseUnit(t, spec.name+" subclass: Object\n"+spec.classVars)
		vars := sf.Classes[0].ClassVariables
		for _, cv := range vars {
			ctx.ClassVars = append(ctx.ClassVars, cv.Name)
		}
		img.ClassVars = ctx.ClassVars
		img.Initializer = NewCompiler(&ClassContext{ClassVars: ctx.ClassVars, ClassSide: true}).CompileInitializer(vars)
	}

	for _, src := range spec.methods {
		m, err := CompileMethodSource(src, ctx)
		if err != nil {
			t.Fatalf("compile %q: %v", src, err)
		}
		img.Methods = append(img.Methods, *m)
	}
	classCtx := *ctx
	classCtx.ClassSide = true
	for _, src := range spec.classMethods {
		m, err := CompileMethodSource(src, &classCtx)
		if err != nil {
			t.Fatalf("compile %q: %v", src, err)
		}
		img.ClassMethods = append(img.ClassMethods, *m)
	}

	cls, err := rt.Define(img, rt.Object, rt.Resolve)
	if err != nil {
		t.Fatalf("Define %s: %v", spec.name, err)
	}
	return cls
}

// run compiles body as a class method "run" of a fresh class and calls it.
func run(t *testing.T, body string) (vm.Value, error) {
	t.Helper()
	rt := vm.NewRuntime()
	cls := defineClass(t, rt, classSpec{name: "Probe", classMethods: []string{"run " + body}})
	return rt.SendTo(cls, "run")
}

func mustRun(t *testing.T, body string) vm.Value {
	t.Helper()
	v, err := run(t, body)
	if err != nil {
		t.Fatalf("run %q: %v", body, err)
	}
	return v
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func TestCodegenExpressions(t *testing.T) {
	tests := []struct {
		body string
		want vm.Value
	}{
		{"^2 + 2", int64(4)},
		{"^3-2", int64(1)},
		{"^2 + 3 * 4", int64(20)},
		{"^2 + (3 * 4)", int64(14)},
		{"^1000 * 1000", int64(1000000)},
		{"^7 // 2", int64(3)},
		{"^1.5 + 1", 2.5},
		{"^'Hello, ' , 'world !'", "Hello, world !"},
		{"^#foo", vm.Symbol("foo")},
		{"^$a", vm.Character('a')},
		{"^3 > 2", true},
		{"^nil isNil", true},
		{"^(3 > 2) ifTrue: ['yes'] ifFalse: ['no']", "yes"},
		{"^#(1 2 3) size", int64(3)},
		{"^{1 + 1. 'b'} first", int64(2)},
		{"| x | x := 5. ^x * x", int64(25)},
		{"| a b | a := b := 3. ^a + b", int64(6)},
		{"^Object name", "Object"},
	}
	for _, tc := range tests {
		if got := mustRun(t, tc.body); got != tc.want {
			t.Errorf("%q = %#v, want %#v", tc.body, got, tc.want)
		}
	}
}

func TestCodegenMethodWithoutReturnAnswersSelf(t *testing.T) {
	rt := vm.NewRuntime()
	cls := defineClass(t, rt, classSpec{name: "Quiet", classMethods: []string{"run 1 + 1"}})
	got, err := rt.SendTo(cls, "run")
	if err != nil {
		t.Fatal(err)
	}
	if got != cls {
		t.Errorf("run = %v, want the class itself", got)
	}
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

func TestCodegenBlocks(t *testing.T) {
	tests := []struct {
		body string
		want vm.Value
	}{
		{"^[:x | x * 2] value: 21", int64(42)},
		{"^[] value", nil},
		{"| n | n := 10. ^[:x | x + n] value: 5", int64(15)},
		{"| sum | sum := 0. 1 to: 4 do: [:i | sum := sum + i]. ^sum", int64(10)},
		{"| i | i := 0. [i < 5] whileTrue: [i := i + 1]. ^i", int64(5)},
		{"^#(1 2 3) inject: 0 into: [:a :b | a + b]", int64(6)},
	}
	for _, tc := range tests {
		if got := mustRun(t, tc.body); got != tc.want {
			t.Errorf("%q = %#v, want %#v", tc.body, got, tc.want)
		}
	}

	// Nested closures capture through two scopes.
	if got := mustRun(t, "| adder | adder := [:x | [:y | x + y]]. ^(adder value: 1) value: 2"); got != int64(3) {
		t.Errorf("nested closure = %#v, want 3", got)
	}
}

func TestCodegenNonLocalReturn(t *testing.T) {
	body := "#(1 2 3 4) do: [:e | e > 2 ifTrue: [^e]]. ^0"
	if got := mustRun(t, body); got != int64(3) {
		t.Errorf("non-local return = %#v, want 3", got)
	}
}

func TestCodegenDeadBlockReturn(t *testing.T) {
	rt := vm.NewRuntime()
	cls := defineClass(t, rt, classSpec{
		name:         "Escape",
		classMethods: []string{"make ^[:x | ^x]", "run ^self make value: 1"},
	})
	_, err := rt.SendTo(cls, "run")
	sig, ok := vm.AsSignal(err)
	if !ok || sig.Class() != rt.BlockCannotReturn {
		t.Fatalf("err = %v, want BlockCannotReturn", err)
	}
}

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

func TestCodegenInstanceVariablesAndCascade(t *testing.T) {
	rt := vm.NewRuntime()
	cls := defineClass(t, rt, classSpec{
		name:  "Counter",
		ivars: []string{"count"},
		methods: []string{
			"initialize count := 0",
			"increment count := count + 1",
			"count ^count",
		},
		classMethods: []string{
			"three ^self new increment; increment; increment; count",
		},
	})
	got, err := rt.SendTo(cls, "three")
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(3) {
		t.Errorf("three = %#v, want 3", got)
	}
}

func TestCodegenClassVariableInitializer(t *testing.T) {
	rt := vm.NewRuntime()
	cls := defineClass(t, rt, classSpec{
		name:         "Holder",
		classVars:    "  classVar: data := 'Some data !'\n  classVar: n := 6 * 7\n  classVars: spare\n",
		classMethods: []string{"bump n := n + 1. ^n"},
	})
	if got, err := rt.SendTo(cls, "data"); err != nil || got != "Some data !" {
		t.Errorf("data = %#v, %v", got, err)
	}
	if got, err := rt.SendTo(cls, "bump"); err != nil || got != int64(43) {
		t.Errorf("bump = %#v, %v", got, err)
	}
	if v, ok := cls.ClassVar("spare"); !ok || v != nil {
		t.Errorf("spare = %#v, %v", v, ok)
	}
}

func TestCodegenSuperSend(t *testing.T) {
	rt := vm.NewRuntime()
	base := defineClass(t, rt, classSpec{name: "Base", methods: []string{"describe ^'base'"}})

	m, err := CompileMethodSource("describe ^super describe , '+derived'", nil)
	if err != nil {
		t.Fatal(err)
	}
	img := &vm.ClassImage{Name: "Derived", Superclass: "Base", Methods: []vm.MethodImage{*m}}
	derived, err := rt.Define(img, base, rt.Resolve)
	if err != nil {
		t.Fatal(err)
	}
	obj, err := rt.SendTo(derived, "new")
	if err != nil {
		t.Fatal(err)
	}
	got, err := rt.SendTo(obj, "describe")
	if err != nil {
		t.Fatal(err)
	}
	if got != "base+derived" {
		t.Errorf("describe = %#v", got)
	}
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

func TestCodegenExceptions(t *testing.T) {
	if got := mustRun(t, "^[1 / 0] on: ZeroDivide do: [:e | 'caught']"); got != "caught" {
		t.Errorf("on:do: = %#v", got)
	}
	if got := mustRun(t, "^[Error signal: 'boom'] on: Error do: [:e | e messageText]"); got != "boom" {
		t.Errorf("messageText = %#v", got)
	}

	_, err := run(t, "| x |\nx := 1.\nself assert: x = 2.\n^x")
	sig, ok := vm.AsSignal(err)
	if !ok {
		t.Fatalf("err = %v, want a signal", err)
	}
	if sig.Class().Name != "AssertionFailure" {
		t.Errorf("signal class = %s", sig.Class().Name)
	}
	if !strings.Contains(sig.Where(), "line 3") {
		t.Errorf("Where() = %q, want line 3", sig.Where())
	}
}

func TestCodegenTypedSignature(t *testing.T) {
	rt := vm.NewRuntime()
	cls := defineClass(t, rt, classSpec{
		name: "Typed",
		classMethods: []string{
			"eval: x b: b <returns: Float> <arg: x type: Float> <arg: b type: Float> ^3 * x + b",
		},
	})
	got, err := rt.SendTo(cls, "eval:b:", int64(2), 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8.0 {
		t.Errorf("eval:b: = %#v, want 8.0", got)
	}

	_, err = rt.SendTo(cls, "eval:b:", "two", 2.0)
	var sig *vm.Signal
	if !errors.As(err, &sig) || sig.Class() != rt.TypeMismatch {
		t.Errorf("err = %v, want TypeMismatch", err)
	}
}

func TestCompileMethodSourceErrors(t *testing.T) {
	if _, err := CompileMethodSource("foo ^(1 + ", nil); err == nil || !strings.Contains(err.Error(), "parse errors") {
		t.Errorf("err = %v, want parse errors", err)
	}
	if _, err := CompileMethodSource("foo ^missing", nil); err == nil || !strings.Contains(err.Error(), "semantic errors") {
		t.Errorf("err = %v, want semantic errors", err)
	}
}

func TestDisassembleCompiledMethod(t *testing.T) {
	m, err := CompileMethodSource("foo ^3 + 4", nil)
	if err != nil {
		t.Fatal(err)
	}
	dis := vm.Disassemble(m.Code)
	for _, want := range []string{"PUSH_INT8 3", "PUSH_INT8 4", "SEND", "RETURN_TOP"} {
		if !strings.Contains(dis, want) {
			t.Errorf("disassembly missing %q:\n%s", want, dis)
		}
	}
}
