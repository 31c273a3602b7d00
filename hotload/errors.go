package hotload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/kiln/vm"
)

var (
	// ErrBackendUnavailable is returned by New when no backend is supplied.
	ErrBackendUnavailable = errors.New("hotload: no compiler backend available")
	// ErrUnregisteredOutput marks a backend writing a unit nobody requested.
	ErrUnregisteredOutput = errors.New("hotload: output was never registered")
	// ErrAbandoned is returned by an Engine after a compile was abandoned.
	ErrAbandoned = errors.New("hotload: engine abandoned a compile and cannot be reused")
	// ErrClosed is returned by a compile still waiting when the Engine closes.
	ErrClosed = errors.New("hotload: engine closed")
	// ErrInvalidSignature reports a malformed evaluation signature.
	ErrInvalidSignature = errors.New("hotload: invalid signature")
)

// CompilationFailure carries every diagnostic of a failed round, warnings
// included.
type CompilationFailure struct {
	Round       string
	Diagnostics []Diagnostic
	// Stopped is set when a problem handler ended the round early.
	Stopped bool
}

func (e *CompilationFailure) Error() string {
	errs := Errors(e.Diagnostics)
	switch len(errs) {
	case 0:
		if e.Stopped {
			return "hotload: compilation stopped by problem handler"
		}
		return "hotload: compilation failed without error diagnostics"
	case 1:
		return "hotload: compilation failed: " + errs[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "hotload: compilation failed with %d errors:", len(errs))
	for _, d := range errs {
		b.WriteString("\n  ")
		b.WriteString(d.String())
	}
	return b.String()
}

// Errors returns the error-severity diagnostics.
func (e *CompilationFailure) Errors() []Diagnostic { return Errors(e.Diagnostics) }

// NameNotFoundError reports a name that neither the registry nor any parent
// could resolve.
type NameNotFoundError struct {
	Name string
}

func (e *NameNotFoundError) Error() string {
	return fmt.Sprintf("hotload: name not found: %s", e.Name)
}

// MissingArtifactError reports a requested unit that produced no artifact.
type MissingArtifactError struct {
	Name string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("hotload: compilation produced no artifact for %s", e.Name)
}

// DefineError wraps a failure to turn an artifact into a runtime class.
type DefineError struct {
	Name string
	Err  error
}

func (e *DefineError) Error() string {
	return fmt.Sprintf("hotload: defining %s: %v", e.Name, e.Err)
}

func (e *DefineError) Unwrap() error { return e.Err }

// InvocationFailure reports an entry point that signaled or failed while
// running. Declared is true when the cause is one of the entry point's
// declared exception types.
type InvocationFailure struct {
	Entry    string
	Cause    error
	Declared bool
}

func (e *InvocationFailure) Error() string {
	return fmt.Sprintf("hotload: invoking %s: %v", e.Entry, e.Cause)
}

func (e *InvocationFailure) Unwrap() error { return e.Cause }

// Signal returns the runtime exception behind the failure, if there is one.
func (e *InvocationFailure) Signal() (*vm.Signal, bool) {
	return vm.AsSignal(e.Cause)
}
