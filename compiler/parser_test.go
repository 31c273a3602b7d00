package compiler

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func parseExpr(t *testing.T, input string) Expr {
	t.Helper()
	p := NewParser(input)
	expr := p.ParseExpression()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("ParseExpression(%q) errors: %v", input, errs)
	}
	return expr
}

func parseUnit(t *testing.T, input string) *SourceFile {
	t.Helper()
	sf, errs := ParseUnit(input)
	if len(errs) > 0 {
		t.Fatalf("ParseUnit errors: %v", errs)
	}
	return sf
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func TestParsePrecedence(t *testing.T) {
	// unary > binary > keyword
	expr := parseExpr(t, "a foo + b bar at: c")
	kw, ok := expr.(*KeywordMessage)
	if !ok {
		t.Fatalf("expected KeywordMessage, got %T", expr)
	}
	if kw.Selector != "at:" {
		t.Errorf("selector = %q, want at:", kw.Selector)
	}
	bin, ok := kw.Receiver.(*BinaryMessage)
	if !ok || bin.Selector != "+" {
		t.Fatalf("receiver = %#v, want binary +", kw.Receiver)
	}
	if u, ok := bin.Receiver.(*UnaryMessage); !ok || u.Selector != "foo" {
		t.Errorf("binary receiver = %#v, want unary foo", bin.Receiver)
	}
	if u, ok := bin.Argument.(*UnaryMessage); !ok || u.Selector != "bar" {
		t.Errorf("binary argument = %#v, want unary bar", bin.Argument)
	}
}

func TestParseBinaryLeftToRight(t *testing.T) {
	expr := parseExpr(t, "3 * x + b")
	add, ok := expr.(*BinaryMessage)
	if !ok || add.Selector != "+" {
		t.Fatalf("expected outer +, got %#v", expr)
	}
	if mul, ok := add.Receiver.(*BinaryMessage); !ok || mul.Selector != "*" {
		t.Errorf("expected inner *, got %#v", add.Receiver)
	}
}

func TestParseKeywordSelector(t *testing.T) {
	kw, ok := parseExpr(t, "d at: 1 put: 2").(*KeywordMessage)
	if !ok {
		t.Fatal("expected KeywordMessage")
	}
	if kw.Selector != "at:put:" {
		t.Errorf("selector = %q", kw.Selector)
	}
	if diff := cmp.Diff([]string{"at:", "put:"}, kw.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
	if len(kw.Arguments) != 2 {
		t.Errorf("got %d arguments", len(kw.Arguments))
	}
}

func TestParseCascade(t *testing.T) {
	c, ok := parseExpr(t, "s add: 1; add: 2; yourself").(*Cascade)
	if !ok {
		t.Fatal("expected Cascade")
	}
	if _, ok := c.Receiver.(*Variable); !ok {
		t.Errorf("cascade receiver = %T, want *Variable", c.Receiver)
	}
	var sels []string
	for _, m := range c.Messages {
		sels = append(sels, m.Selector)
	}
	if diff := cmp.Diff([]string{"add:", "add:", "yourself"}, sels); diff != "" {
		t.Errorf("cascade selectors (-want +got):\n%s", diff)
	}
}

func TestParseBlock(t *testing.T) {
	blk, ok := parseExpr(t, "[:a :b | | t | t := a + b. ^t]").(*Block)
	if !ok {
		t.Fatal("expected Block")
	}
	if diff := cmp.Diff([]string{"a", "b"}, blk.Parameters); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"t"}, blk.Temps); diff != "" {
		t.Errorf("temps (-want +got):\n%s", diff)
	}
	if len(blk.Statements) != 2 {
		t.Fatalf("got %d statements", len(blk.Statements))
	}
	if _, ok := blk.Statements[1].(*Return); !ok {
		t.Errorf("last statement = %T, want *Return", blk.Statements[1])
	}
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		input string
		check func(Expr) bool
	}{
		{"42", func(e Expr) bool { l, ok := e.(*IntLiteral); return ok && l.Value == 42 }},
		{"16rFF", func(e Expr) bool { l, ok := e.(*IntLiteral); return ok && l.Value == 255 }},
		{"-7", func(e Expr) bool { l, ok := e.(*IntLiteral); return ok && l.Value == -7 }},
		{"2.5", func(e Expr) bool { l, ok := e.(*FloatLiteral); return ok && l.Value == 2.5 }},
		{"'hi'", func(e Expr) bool { l, ok := e.(*StringLiteral); return ok && l.Value == "hi" }},
		{"#foo:", func(e Expr) bool { l, ok := e.(*SymbolLiteral); return ok && l.Value == "foo:" }},
		{"$z", func(e Expr) bool { l, ok := e.(*CharLiteral); return ok && l.Value == 'z' }},
		{"#(1 $a foo)", func(e Expr) bool { l, ok := e.(*ArrayLiteral); return ok && len(l.Elements) == 3 }},
		{"{1. 2}", func(e Expr) bool { l, ok := e.(*DynamicArray); return ok && len(l.Elements) == 2 }},
		{"nil", func(e Expr) bool { _, ok := e.(*NilLiteral); return ok }},
	}
	for _, tc := range tests {
		if e := parseExpr(t, tc.input); !tc.check(e) {
			t.Errorf("ParseExpression(%q) = %#v", tc.input, e)
		}
	}
}

func TestParseAssignment(t *testing.T) {
	a, ok := parseExpr(t, "x := y := 3").(*Assignment)
	if !ok || a.Variable != "x" {
		t.Fatalf("expected assignment to x, got %#v", a)
	}
	if inner, ok := a.Value.(*Assignment); !ok || inner.Variable != "y" {
		t.Errorf("expected chained assignment to y, got %#v", a.Value)
	}
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

const shapeUnit = `namespace: 'geometry.shapes'
import: 'geometry.Point'
import: util

Circle subclass: Object
  instanceVars: center radius
  classVar: unit := 2 * 3
  classVars: count
  method: area [
    <returns: Float>
    ^radius * radius * 3.14159
  ]
  method: scaleBy: k [
    <arg: k type: Number>
    | old |
    old := radius.
    radius := radius * k.
    ^old
  ]
  classMethod: unit [ ^unit ]
`

func TestParseUnitStructure(t *testing.T) {
	sf := parseUnit(t, shapeUnit)

	if sf.Namespace == nil || sf.Namespace.Name != "geometry.shapes" {
		t.Fatalf("namespace = %#v", sf.Namespace)
	}
	var imports []string
	for _, imp := range sf.Imports {
		imports = append(imports, imp.Path)
	}
	if diff := cmp.Diff([]string{"geometry.Point", "util"}, imports); diff != "" {
		t.Errorf("imports (-want +got):\n%s", diff)
	}
	if len(sf.Classes) != 1 {
		t.Fatalf("got %d classes", len(sf.Classes))
	}

	c := sf.Classes[0]
	if c.Name != "Circle" || c.Superclass != "Object" {
		t.Errorf("class = %s subclass: %s", c.Name, c.Superclass)
	}
	if diff := cmp.Diff([]string{"center", "radius"}, c.InstanceVariables); diff != "" {
		t.Errorf("ivars (-want +got):\n%s", diff)
	}
	if len(c.ClassVariables) != 2 {
		t.Fatalf("got %d class vars", len(c.ClassVariables))
	}
	if c.ClassVariables[0].Name != "unit" || c.ClassVariables[0].Initializer == nil {
		t.Errorf("classVar unit = %#v", c.ClassVariables[0])
	}
	if c.ClassVariables[1].Name != "count" || c.ClassVariables[1].Initializer != nil {
		t.Errorf("classVar count = %#v", c.ClassVariables[1])
	}
	if len(c.Methods) != 2 || len(c.ClassMethods) != 1 {
		t.Fatalf("got %d methods, %d class methods", len(c.Methods), len(c.ClassMethods))
	}

	scale := c.Methods[1]
	if scale.Selector != "scaleBy:" {
		t.Errorf("selector = %q", scale.Selector)
	}
	if diff := cmp.Diff([]string{"old"}, scale.Temps); diff != "" {
		t.Errorf("temps (-want +got):\n%s", diff)
	}
	if len(scale.Pragmas) != 1 || scale.Pragmas[0].Selector != "arg:type:" {
		t.Fatalf("pragmas = %#v", scale.Pragmas)
	}
	if diff := cmp.Diff([]string{"k", "Number"}, scale.Pragmas[0].Arguments); diff != "" {
		t.Errorf("pragma args (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(scale.SourceText, "method: scaleBy: k [") || !strings.HasSuffix(scale.SourceText, "]") {
		t.Errorf("source text = %q", scale.SourceText)
	}
}

func TestParseUnitQualifiedSuperclass(t *testing.T) {
	sf := parseUnit(t, "B subclass: pkg::A\n  method: x [ ^1 ]\n")
	if got := sf.Classes[0].Superclass; got != "pkg::A" {
		t.Errorf("superclass = %q", got)
	}
}

func TestParseUnitMultipleClasses(t *testing.T) {
	sf := parseUnit(t, "A subclass: Object\nB subclass: A\n  method: m [ ^self ]\n")
	if len(sf.Classes) != 2 {
		t.Fatalf("got %d classes, want 2", len(sf.Classes))
	}
	if sf.Classes[1].Superclass != "A" {
		t.Errorf("second superclass = %q", sf.Classes[1].Superclass)
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestParseMissingPeriodReportsOffendingLine(t *testing.T) {
	src := "T subclass: Object\n" +
		"  classMethod: run [\n" +
		"    | y z |\n" +
		"    y := 2\n" +
		"    z := 3.\n" +
		"    ^y\n" +
		"  ]\n"
	_, errs := ParseUnit(src)
	if len(errs) == 0 {
		t.Fatal("expected a syntax error")
	}
	if errs[0].Pos.Line != 4 {
		t.Errorf("error at line %d, want 4: %v", errs[0].Pos.Line, errs[0])
	}
	if !strings.Contains(errs[0].Msg, "expected '.'") {
		t.Errorf("message = %q", errs[0].Msg)
	}
}

func TestParseUnitErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"duplicate namespace", "namespace: a\nnamespace: b\nA subclass: Object\n", "duplicate namespace"},
		{"missing subclass", "A foo: Object\n", "expected 'subclass:'"},
		{"unknown element", "A subclass: Object\n  frobnicate: x\n", "unknown class body element"},
		{"missing bracket", "A subclass: Object\n  method: foo ^1\n", "expected '['"},
		{"bad pragma", "A subclass: Object\n  method: foo [ <returns: > ^1 ]\n", "expected pragma argument"},
		{"unterminated string", "A subclass: Object\n  method: foo [ ^'abc ]\n", "unterminated string"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, errs := ParseUnit(tc.input)
			for _, e := range errs {
				if strings.Contains(e.Msg, tc.want) {
					return
				}
			}
			t.Errorf("errors %v do not mention %q", errs, tc.want)
		})
	}
}

func TestParseRecoversAfterBadClass(t *testing.T) {
	sf, errs := ParseUnit("A subclass: Object\n  method: [ ]\nB subclass: Object\n  method: ok [ ^1 ]\n")
	if len(errs) == 0 {
		t.Fatal("expected errors")
	}
	var names []string
	for _, c := range sf.Classes {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"A", "B"}, names); diff != "" {
		t.Errorf("classes (-want +got):\n%s", diff)
	}
}

func FuzzParseUnit(f *testing.F) {
	f.Add(shapeUnit)
	f.Add("A subclass: Object\n  method: foo [ ^[:x | x] value: 3 ]\n")
	f.Add("namespace: x\n")
	f.Fuzz(func(t *testing.T, src string) {
		ParseUnit(src)
	})
}
