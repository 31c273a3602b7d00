package hotload

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"
)

// CompiledArtifact is the finalized output for one unit.
type CompiledArtifact struct {
	Name     string
	Bytecode []byte
}

type pendingOutput struct {
	buf     bytes.Buffer
	written bool
}

// VirtualStore is an in-memory OutputStore. Each compile round uses its own
// store; nothing in it is shared between rounds.
type VirtualStore struct {
	mu        sync.Mutex
	pending   map[string]*pendingOutput
	violation error
	finalized bool
}

// NewVirtualStore creates an empty store.
func NewVirtualStore() *VirtualStore {
	return &VirtualStore{pending: make(map[string]*pendingOutput)}
}

// RegisterPending adds an empty slot for name, replacing any earlier slot
// registered under the same name.
func (s *VirtualStore) RegisterPending(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[name] = &pendingOutput{}
}

// Pending reports whether name has a slot.
func (s *VirtualStore) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[name]
	return ok
}

// PendingNames lists the registered slots.
func (s *VirtualStore) PendingNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.pending))
	for name := range s.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenForWrite returns a writer appending to the slot for name. Asking for
// a name nobody registered is a contract violation: the error is returned
// and also remembered so the session can fail the round.
func (s *VirtualStore) OpenForWrite(name string) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return nil, fmt.Errorf("hotload: output store already finalized, cannot open %s", name)
	}
	p, ok := s.pending[name]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnregisteredOutput, name)
		if s.violation == nil {
			s.violation = err
		}
		return nil, err
	}
	p.written = true
	return &outputWriter{store: s, out: p}, nil
}

// Violation returns the first contract violation seen, if any.
func (s *VirtualStore) Violation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.violation
}

// FinalizeAll converts every slot that was opened for writing into an
// artifact. Slots never opened are dropped. The store accepts no writes
// afterwards.
func (s *VirtualStore) FinalizeAll() map[string]*CompiledArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = true
	out := make(map[string]*CompiledArtifact, len(s.pending))
	for name, p := range s.pending {
		if !p.written {
			continue
		}
		out[name] = &CompiledArtifact{Name: name, Bytecode: bytes.Clone(p.buf.Bytes())}
	}
	s.pending = make(map[string]*pendingOutput)
	return out
}

// Discard drops every slot without producing artifacts.
func (s *VirtualStore) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = true
	s.pending = make(map[string]*pendingOutput)
}

type outputWriter struct {
	store  *VirtualStore
	out    *pendingOutput
	closed bool
}

func (w *outputWriter) Write(p []byte) (int, error) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	if w.closed || w.store.finalized {
		return 0, fmt.Errorf("hotload: write to closed output")
	}
	return w.out.buf.Write(p)
}

func (w *outputWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.closed = true
	return nil
}
