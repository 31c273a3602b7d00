package hash

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Trees are written as nested CBOR arrays in core deterministic encoding,
// [HashVersion, [tag, field...]], so equal trees always give equal bytes.
var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("hash: cbor encoding options: %v", err))
	}
	return em
}()

// Serialize encodes a fingerprint tree.
func Serialize(node HNode) []byte {
	data, err := encMode.Marshal([]any{HashVersion, flatten(node)})
	if err != nil {
		// Every value in a flattened tree is an integer, float, bool,
		// string, nil or an array of those.
		panic(fmt.Sprintf("hash: serialize: %v", err))
	}
	return data
}

// flatten replaces nodes by their parts, recursively.
func flatten(v any) any {
	switch x := v.(type) {
	case HNode:
		return flatten(x.parts())
	case []HNode:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = flatten(n)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = flatten(e)
		}
		return out
	}
	return v
}
