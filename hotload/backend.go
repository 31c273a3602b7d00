package hotload

import (
	"io"

	"github.com/chazu/kiln/vm"
)

// Backend compiles a set of units in one pass. It writes one artifact per
// produced class into out, reports diagnostics to diags and returns true on
// success. parent resolves names outside the unit set; it may be nil.
//
// A Backend is not expected to be reentrant: the Session never calls
// Compile concurrently on the same instance.
type Backend interface {
	Name() string
	Compile(units []SourceUnit, out OutputStore, diags DiagnosticSink, parent vm.Resolver) bool
}

// OutputStore is the backend's view of the virtual output store.
type OutputStore interface {
	// RegisterPending adds (or replaces) an empty output slot for name.
	RegisterPending(name string)
	// Pending reports whether name has a slot in this round.
	Pending(name string) bool
	// PendingNames lists the registered slots in sorted order.
	PendingNames() []string
	// OpenForWrite returns a sink appending to the slot for name. Names
	// with no slot yield ErrUnregisteredOutput.
	OpenForWrite(name string) (io.WriteCloser, error)
}
