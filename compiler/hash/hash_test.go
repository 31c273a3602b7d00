package hash

import (
	"testing"

	"github.com/chazu/kiln/compiler"
)

func unitPrint(t *testing.T, src string) Fingerprint {
	t.Helper()
	f, err := UnitFingerprint(src)
	if err != nil {
		t.Fatalf("UnitFingerprint: %v", err)
	}
	return f
}

func firstMethod(t *testing.T, src string) *compiler.MethodDef {
	t.Helper()
	sf, errs := compiler.ParseUnit(src)
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}
	return sf.Classes[0].Methods[0]
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

func TestNormalizeParamResolution(t *testing.T) {
	hm := NormalizeMethod(firstMethod(t, "Foo subclass: Object\n  method: foo: x [ ^x ]\n"), nil, nil, nil)
	if hm.Selector != "foo:" || hm.Arity != 1 {
		t.Errorf("got %s/%d", hm.Selector, hm.Arity)
	}
	ret, ok := hm.Statements[0].(*HReturn)
	if !ok {
		t.Fatalf("statement[0] = %T, want *HReturn", hm.Statements[0])
	}
	ref, ok := ret.Value.(*HLocalVarRef)
	if !ok || ref.ScopeDepth != 0 || ref.SlotIndex != 0 {
		t.Errorf("return value = %#v", ret.Value)
	}
}

func TestNormalizeBlockCapture(t *testing.T) {
	hm := NormalizeMethod(firstMethod(t, "Foo subclass: Object\n  method: test: x [ ^[:y | x + y] ]\n"), nil, nil, nil)
	blk := hm.Statements[0].(*HReturn).Value.(*HBlock)
	add := blk.Statements[0].(*HExprStmt).Expr.(*HBinaryMessage)
	outer := add.Receiver.(*HLocalVarRef)
	inner := add.Argument.(*HLocalVarRef)
	if outer.ScopeDepth != 1 || outer.SlotIndex != 0 {
		t.Errorf("captured x = %+v, want depth 1 slot 0", outer)
	}
	if inner.ScopeDepth != 0 || inner.SlotIndex != 0 {
		t.Errorf("block arg y = %+v, want depth 0 slot 0", inner)
	}
}

func TestNormalizeVariableKinds(t *testing.T) {
	m := firstMethod(t, "Foo subclass: Object\n  method: foo [ ^{a. k. Bar} ]\n")
	hm := NormalizeMethod(m, map[string]int{"a": 2}, map[string]int{"k": 1}, func(n string) string { return "pkg." + n })
	elems := hm.Statements[0].(*HReturn).Value.(*HDynamicArray).Elements
	if iv, ok := elems[0].(*HInstanceVarRef); !ok || iv.Index != 2 {
		t.Errorf("a = %#v", elems[0])
	}
	if cv, ok := elems[1].(*HClassVarRef); !ok || cv.Index != 1 {
		t.Errorf("k = %#v", elems[1])
	}
	if g, ok := elems[2].(*HGlobalRef); !ok || g.Name != "pkg.Bar" {
		t.Errorf("Bar = %#v", elems[2])
	}
}

func TestHashMethodIgnoresLocalNames(t *testing.T) {
	a := firstMethod(t, "Foo subclass: Object\n  method: add: x to: y [ | t | t := x + y. ^t ]\n")
	b := firstMethod(t, "Foo subclass: Object\n  method: add: p to: q [\n  | s |\n  s := p + q.\n  ^s ]\n")
	if HashMethod(a, nil, nil, nil) != HashMethod(b, nil, nil, nil) {
		t.Error("renamed locals should not change the fingerprint")
	}
	c := firstMethod(t, "Foo subclass: Object\n  method: add: x to: y [ ^x - y ]\n")
	if HashMethod(a, nil, nil, nil) == HashMethod(c, nil, nil, nil) {
		t.Error("different bodies should hash differently")
	}
}

func TestHashMethodPragmas(t *testing.T) {
	a := firstMethod(t, "Foo subclass: Object\n  method: f: x [ <arg: x type: Float> ^x ]\n")
	b := firstMethod(t, "Foo subclass: Object\n  method: f: y [ <arg: y type: Float> ^y ]\n")
	c := firstMethod(t, "Foo subclass: Object\n  method: f: x [ <arg: x type: Integer> ^x ]\n")
	if HashMethod(a, nil, nil, nil) != HashMethod(b, nil, nil, nil) {
		t.Error("renaming a typed parameter should keep the fingerprint")
	}
	if HashMethod(a, nil, nil, nil) == HashMethod(c, nil, nil, nil) {
		t.Error("changing a declared type should change the fingerprint")
	}
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

func TestUnitFingerprintStableUnderFormatting(t *testing.T) {
	a := unitPrint(t, "namespace: app\nA subclass: Object\n  method: m [ ^1 + 2 ]\n  method: n [ ^3 ]\n")
	b := unitPrint(t, "namespace: app\n\"reordered and reformatted\"\nA subclass: Object\n  method: n [\n    ^3\n  ]\n  method: m [ ^1+2 ]\n")
	if a != b {
		t.Errorf("fingerprints differ: %s vs %s", a, b)
	}
}

func TestUnitFingerprintDetectsChanges(t *testing.T) {
	base := "namespace: app\nA subclass: Object\n  instanceVars: x\n  classVar: k := 1\n  method: m [ ^x ]\n"
	changes := map[string]string{
		"namespace":   "namespace: other\nA subclass: Object\n  instanceVars: x\n  classVar: k := 1\n  method: m [ ^x ]\n",
		"import":      "namespace: app\nimport: lib\nA subclass: Object\n  instanceVars: x\n  classVar: k := 1\n  method: m [ ^x ]\n",
		"superclass":  "namespace: app\nA subclass: Error\n  instanceVars: x\n  classVar: k := 1\n  method: m [ ^x ]\n",
		"ivar name":   "namespace: app\nA subclass: Object\n  instanceVars: y\n  classVar: k := 1\n  method: m [ ^y ]\n",
		"initializer": "namespace: app\nA subclass: Object\n  instanceVars: x\n  classVar: k := 2\n  method: m [ ^x ]\n",
		"class side":  "namespace: app\nA subclass: Object\n  instanceVars: x\n  classVar: k := 1\n  classMethod: m [ ^k ]\n",
	}
	want := unitPrint(t, base)
	for name, src := range changes {
		if unitPrint(t, src) == want {
			t.Errorf("%s change kept the fingerprint", name)
		}
	}
}

func TestNormalizeUnitQualifiedNames(t *testing.T) {
	sf, errs := compiler.ParseUnit("namespace: app\nB subclass: lib::A\n  method: m [ ^geo::Point ]\n")
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}
	hu := NormalizeUnit(sf)
	if got := hu.Classes[0].Superclass; got != "lib.A" {
		t.Errorf("superclass = %q, want lib.A", got)
	}
	ret := hu.Classes[0].Methods[0].Statements[0].(*HReturn)
	if g, ok := ret.Value.(*HGlobalRef); !ok || g.Name != "geo.Point" {
		t.Errorf("global = %#v, want geo.Point", ret.Value)
	}
}

func TestUnitFingerprintSyntaxError(t *testing.T) {
	if _, err := UnitFingerprint("A subclass: Object\n  method: m [ ^( ]\n"); err == nil {
		t.Error("expected an error for text that does not parse")
	}
}
