package hotload

import (
	"fmt"
	"strings"

	"github.com/chazu/kiln/vm"
)

// BodyKind says how a body becomes the entry point's method body.
type BodyKind int

const (
	// Expression bodies are returned: "2 + 2" becomes "^2 + 2".
	Expression BodyKind = iota
	// Script bodies are statements used verbatim; they return with ^.
	Script
	// Procedure bodies are used verbatim and return nothing.
	Procedure
)

// Synthesizer renders container units around caller-supplied bodies.
type Synthesizer struct {
	container QualifiedName
	entryName string
}

// NewSynthesizer creates a synthesizer producing classes called container
// whose entry points default to entryName.
func NewSynthesizer(container, entryName string) *Synthesizer {
	return &Synthesizer{container: ParseQualifiedName(container), entryName: entryName}
}

// Container returns the qualified name of the synthesized class.
func (s *Synthesizer) Container() string { return s.container.String() }

// Selector returns the entry point selector for sig.
func (s *Synthesizer) Selector(sig Signature) string { return sig.Selector(s.entryName) }

// Render builds the unit for body. The unit declares one class named after
// the container with a single class-side method whose pattern and pragmas
// follow sig.
func (s *Synthesizer) Render(body string, sig Signature, kind BodyKind) (SourceUnit, error) {
	if err := sig.Validate(); err != nil {
		return SourceUnit{}, err
	}
	if kind == Procedure {
		sig = sig.Returns(vm.TypeVoid)
	}

	var b strings.Builder
	if s.container.Package != "" {
		fmt.Fprintf(&b, "namespace: '%s'\n", s.container.Package)
	}
	for _, imp := range sig.Imports {
		fmt.Fprintf(&b, "import: '%s'\n", imp)
	}
	fmt.Fprintf(&b, "\n%s subclass: Object\n", s.container.Simple)
	fmt.Fprintf(&b, "  classMethod: %s [\n", sig.header(s.entryName))
	if sig.Result != "" {
		fmt.Fprintf(&b, "    <returns: %s>\n", sig.Result)
	}
	for _, p := range sig.Params {
		if p.Type != "" {
			fmt.Fprintf(&b, "    <arg: %s type: %s>\n", p.Name, p.Type)
		}
	}
	for _, t := range sig.Signals {
		fmt.Fprintf(&b, "    <signals: %s>\n", t)
	}
	switch kind {
	case Expression:
		expr := strings.TrimSuffix(strings.TrimSpace(body), ".")
		fmt.Fprintf(&b, "    ^%s\n", expr)
	default:
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString("  ]\n")

	return NewSourceUnit(s.container.String(), b.String()), nil
}
