package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/chazu/kiln/compiler"
)

// Fingerprint is the SHA-256 of a normalized definition.
type Fingerprint [32]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// HashMethod fingerprints a method definition. Two methods that differ only
// in formatting, comments or local variable names hash the same.
func HashMethod(method *compiler.MethodDef, instVars, classVars map[string]int, resolveGlobal func(string) string) Fingerprint {
	return sha256.Sum256(Serialize(NormalizeMethod(method, instVars, classVars, resolveGlobal)))
}

// HashUnit fingerprints a parsed unit.
func HashUnit(sf *compiler.SourceFile) Fingerprint {
	return sha256.Sum256(Serialize(NormalizeUnit(sf)))
}

// UnitFingerprint parses source and fingerprints it. Text that does not
// parse has no fingerprint; callers treat it as changed.
func UnitFingerprint(source string) (Fingerprint, error) {
	sf, errs := compiler.ParseUnit(source)
	if len(errs) > 0 {
		return Fingerprint{}, fmt.Errorf("hash: %d syntax errors, first: %v", len(errs), errs[0])
	}
	return HashUnit(sf), nil
}
