package hash

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

// One of every node, for checks that must cover the whole format.
var everyNode = []HNode{
	&HIntLiteral{}, &HFloatLiteral{}, &HStringLiteral{}, &HSymbolLiteral{},
	&HCharLiteral{}, &HBoolLiteral{}, &HNilLiteral{}, &HArrayLiteral{}, &HDynamicArray{},
	&HSelfRef{}, &HSuperRef{}, &HLocalVarRef{}, &HInstanceVarRef{}, &HClassVarRef{}, &HGlobalRef{},
	&HUnaryMessage{}, &HBinaryMessage{}, &HKeywordMessage{}, &HCascade{},
	&HAssignment{}, &HReturn{}, &HExprStmt{}, &HBlock{},
	&HPragma{}, &HMethodDef{}, &HClassVarDef{}, &HClassDef{}, &HUnit{},
}

func TestEveryNodeHasItsOwnTag(t *testing.T) {
	owner := make(map[byte]HNode)
	for _, n := range everyNode {
		tag, ok := n.parts()[0].(byte)
		if !ok {
			t.Errorf("%T: first part is %T, want a tag byte", n, n.parts()[0])
			continue
		}
		if prev, dup := owner[tag]; dup {
			t.Errorf("%T and %T share tag 0x%02X", prev, n, tag)
		}
		owner[tag] = n
	}
	for _, tag := range []byte{TagCascadeUnary, TagCascadeBinary, TagCascadeKeyword} {
		if n, dup := owner[tag]; dup {
			t.Errorf("cascade tag 0x%02X is also used by %T", tag, n)
		}
	}
}

func TestSerializeIsVersionedArray(t *testing.T) {
	var got []any
	if err := cbor.Unmarshal(Serialize(&HNilLiteral{}), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0] != uint64(HashVersion) {
		t.Fatalf("Serialize(nil literal) = %#v", got)
	}
	node, ok := got[1].([]any)
	if !ok || len(node) != 1 || node[0] != uint64(TagNilLiteral) {
		t.Errorf("node = %#v", got[1])
	}
}

func TestSerializeEmptyTrees(t *testing.T) {
	for _, n := range everyNode {
		if len(Serialize(n)) == 0 {
			t.Errorf("%T serialized to nothing", n)
		}
	}
}
