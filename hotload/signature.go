package hotload

import (
	"fmt"
	"strings"
	"unicode"
)

// Param is one named, optionally typed, entry point parameter.
type Param struct {
	Name string
	Type string
}

// Signature describes a synthesized entry point. Methods return modified
// copies, so a base signature can be shared and extended:
//
//	sig := hotload.Sig().Returns("Float").Param("x", "Float").Param("b", "Float")
type Signature struct {
	Name    string
	Result  string
	Params  []Param
	Signals []string
	Imports []string
}

// Sig returns an empty signature using the default entry name.
func Sig() Signature { return Signature{} }

// Named sets the entry point's selector keyword.
func (s Signature) Named(name string) Signature {
	s.Name = name
	return s
}

// Returns sets the declared return type.
func (s Signature) Returns(typ string) Signature {
	s.Result = typ
	return s
}

// Param appends a parameter.
func (s Signature) Param(name, typ string) Signature {
	s.Params = append(append([]Param(nil), s.Params...), Param{Name: name, Type: typ})
	return s
}

// Throws appends declared exception types.
func (s Signature) Throws(types ...string) Signature {
	s.Signals = append(append([]string(nil), s.Signals...), types...)
	return s
}

// Import appends names made available unqualified in the body. A path
// names either a class or a namespace.
func (s Signature) Import(paths ...string) Signature {
	s.Imports = append(append([]string(nil), s.Imports...), paths...)
	return s
}

// Selector returns the entry point's selector. With no parameters it is
// the name itself; otherwise the name is the first keyword and each later
// parameter contributes a keyword of its own name.
func (s Signature) Selector(defaultName string) string {
	name := s.Name
	if name == "" {
		name = defaultName
	}
	if len(s.Params) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte(':')
	for _, p := range s.Params[1:] {
		b.WriteString(p.Name)
		b.WriteByte(':')
	}
	return b.String()
}

// header renders the method pattern, e.g. "eval: x b: b".
func (s Signature) header(defaultName string) string {
	name := s.Name
	if name == "" {
		name = defaultName
	}
	if len(s.Params) == 0 {
		return name
	}
	parts := make([]string, 0, 2*len(s.Params))
	for i, p := range s.Params {
		kw := p.Name
		if i == 0 {
			kw = name
		}
		parts = append(parts, kw+":", p.Name)
	}
	return strings.Join(parts, " ")
}

var reservedNames = map[string]bool{
	"self": true, "super": true, "nil": true, "true": true, "false": true,
}

// Validate checks every name in the signature.
func (s Signature) Validate() error {
	if s.Name != "" && !isIdentifier(s.Name) {
		return fmt.Errorf("%w: entry name %q is not an identifier", ErrInvalidSignature, s.Name)
	}
	seen := make(map[string]bool, len(s.Params))
	for _, p := range s.Params {
		if !isIdentifier(p.Name) || reservedNames[p.Name] {
			return fmt.Errorf("%w: parameter name %q", ErrInvalidSignature, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidSignature, p.Name)
		}
		seen[p.Name] = true
		if p.Type != "" && !isPath(p.Type) {
			return fmt.Errorf("%w: type %q of parameter %s", ErrInvalidSignature, p.Type, p.Name)
		}
	}
	if s.Result != "" && !isPath(s.Result) {
		return fmt.Errorf("%w: return type %q", ErrInvalidSignature, s.Result)
	}
	for _, t := range s.Signals {
		if !isPath(t) {
			return fmt.Errorf("%w: exception type %q", ErrInvalidSignature, t)
		}
	}
	for _, imp := range s.Imports {
		if !isPath(imp) {
			return fmt.Errorf("%w: import %q", ErrInvalidSignature, imp)
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// isPath accepts dotted names and their A::B spelling.
func isPath(s string) bool {
	for _, seg := range strings.Split(strings.ReplaceAll(s, "::", "."), ".") {
		if !isIdentifier(seg) {
			return false
		}
	}
	return true
}
