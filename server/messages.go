package server

import (
	"github.com/chazu/kiln/hotload"
)

// Body kinds accepted by Evaluate and Prepare.
const (
	KindExpression = "expression"
	KindScript     = "script"
)

// ParamSpec is one entry point parameter on the wire.
type ParamSpec struct {
	Name string `cbor:"1,keyasint"`
	Type string `cbor:"2,keyasint,omitempty"`
}

// SignatureSpec is hotload.Signature on the wire.
type SignatureSpec struct {
	Name    string      `cbor:"1,keyasint,omitempty"`
	Returns string      `cbor:"2,keyasint,omitempty"`
	Params  []ParamSpec `cbor:"3,keyasint,omitempty"`
	Throws  []string    `cbor:"4,keyasint,omitempty"`
	Imports []string    `cbor:"5,keyasint,omitempty"`
}

// Signature converts the spec into an evaluation signature.
func (s SignatureSpec) Signature() hotload.Signature {
	sig := hotload.Sig().Named(s.Name).Returns(s.Returns).Throws(s.Throws...).Import(s.Imports...)
	for _, p := range s.Params {
		sig = sig.Param(p.Name, p.Type)
	}
	return sig
}

// DiagnosticMsg is one compiler diagnostic. Text is the diagnostic
// formatted in the server's locale.
type DiagnosticMsg struct {
	Severity string `cbor:"1,keyasint"`
	Unit     string `cbor:"2,keyasint"`
	Line     int    `cbor:"3,keyasint"`
	Column   int    `cbor:"4,keyasint"`
	Message  string `cbor:"5,keyasint"`
	Text     string `cbor:"6,keyasint,omitempty"`
}

type EvaluateRequest struct {
	Source    string        `cbor:"1,keyasint"`
	Kind      string        `cbor:"2,keyasint,omitempty"`
	Signature SignatureSpec `cbor:"3,keyasint"`
	Args      []any         `cbor:"4,keyasint,omitempty"`
}

// EvaluateResponse carries a result. Value holds nil, booleans, numbers,
// strings and arrays of those; Display is the printString of any result.
type EvaluateResponse struct {
	Value   any    `cbor:"1,keyasint,omitempty"`
	Display string `cbor:"2,keyasint"`
	Class   string `cbor:"3,keyasint"`
}

type RunRequest struct {
	Source string `cbor:"1,keyasint"`
}

type RunResponse struct{}

type CompileRequest struct {
	Sources map[string]string `cbor:"1,keyasint"`
	// Load defines the produced classes in the server's engine.
	Load bool `cbor:"2,keyasint,omitempty"`
}

type CompileResponse struct {
	// Units lists the names that produced an artifact.
	Units       []string        `cbor:"1,keyasint,omitempty"`
	Diagnostics []DiagnosticMsg `cbor:"2,keyasint,omitempty"`
}

type CheckRequest struct {
	Sources map[string]string `cbor:"1,keyasint"`
}

type CheckResponse struct {
	Valid       bool            `cbor:"1,keyasint"`
	Diagnostics []DiagnosticMsg `cbor:"2,keyasint,omitempty"`
	Summary     string          `cbor:"3,keyasint,omitempty"`
}

type PrepareRequest struct {
	Source    string        `cbor:"1,keyasint"`
	Kind      string        `cbor:"2,keyasint,omitempty"`
	Signature SignatureSpec `cbor:"3,keyasint"`
}

type PrepareResponse struct {
	Handle   string `cbor:"1,keyasint"`
	Selector string `cbor:"2,keyasint"`
	NumArgs  int    `cbor:"3,keyasint"`
}

type InvokeRequest struct {
	Handle string `cbor:"1,keyasint"`
	Args   []any  `cbor:"2,keyasint,omitempty"`
}

type ReleaseRequest struct {
	Handle string `cbor:"1,keyasint"`
}

type ReleaseResponse struct {
	Released bool `cbor:"1,keyasint"`
}
