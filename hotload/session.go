package hotload

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/vm"
)

// Purger drops staged artifacts for names whose compilation failed.
type Purger interface {
	Purge(names ...string)
}

// Session drives compile rounds against one backend. Rounds are serialized:
// the backend never sees two rounds at once.
type Session struct {
	mu      sync.Mutex
	backend Backend
	parent  vm.Resolver
	purger  Purger
	handler ProblemHandler
	log     commonlog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithParent sets the resolver the backend uses for names outside a round.
func WithParent(parent vm.Resolver) SessionOption {
	return func(s *Session) { s.parent = parent }
}

// WithPurger sets where failed names are purged from besides the round's
// own output store.
func WithPurger(p Purger) SessionOption {
	return func(s *Session) { s.purger = p }
}

// WithProblemHandler installs a callback run for every diagnostic as it
// is reported.
func WithProblemHandler(h ProblemHandler) SessionOption {
	return func(s *Session) { s.handler = h }
}

// NewSession creates a session for backend.
func NewSession(backend Backend, opts ...SessionOption) *Session {
	s := &Session{
		backend: backend,
		log:     commonlog.GetLogger("kiln.session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend returns the backend rounds run against.
func (s *Session) Backend() Backend { return s.backend }

// Compile runs one atomic round over units. It returns an artifact for
// every unit that produced a class, or a *CompilationFailure carrying all
// diagnostics when the backend reports an error. A failed round leaves no
// artifacts behind.
func (s *Session) Compile(units []SourceUnit) (map[string]*CompiledArtifact, error) {
	arts, _, err := s.round(units)
	return arts, err
}

// Check runs a round for its diagnostics only. Nothing it produces is
// kept. The error is non-nil only when the round could not run at all.
func (s *Session) Check(units []SourceUnit) ([]Diagnostic, error) {
	arts, diags, err := s.round(units)
	var failure *CompilationFailure
	if errors.As(err, &failure) {
		return diags, nil
	}
	if err != nil {
		return diags, err
	}
	s.log.Debugf("check produced %d artifacts, discarding", len(arts))
	return diags, nil
}

func (s *Session) round(units []SourceUnit) (map[string]*CompiledArtifact, []Diagnostic, error) {
	round := uuid.NewString()
	units = dedupe(units)
	names := make([]string, len(units))

	store := NewVirtualStore()
	for i, u := range units {
		names[i] = u.Name
		store.RegisterPending(u.Name)
	}
	diags := newCollector(s.handler)

	s.log.Debugf("round %s: compiling %d units with %s", round, len(units), s.backend.Name())
	ok, err := s.invoke(units, store, diags)
	all := diags.snapshot()
	SortDiagnostics(all)

	if err == nil {
		err = store.Violation()
	}
	if err != nil {
		store.Discard()
		s.purge(names)
		s.log.Errorf("round %s: %s failed: %v", round, s.backend.Name(), err)
		return nil, all, fmt.Errorf("hotload: round %s: %w", round, err)
	}

	if !ok || len(Errors(all)) > 0 || diags.wasStopped() {
		store.Discard()
		s.purge(names)
		s.log.Infof("round %s: failed with %d diagnostics", round, len(all))
		return nil, all, &CompilationFailure{Round: round, Diagnostics: all, Stopped: diags.wasStopped()}
	}

	arts := store.FinalizeAll()
	s.log.Infof("round %s: produced %d artifacts from %d units", round, len(arts), len(units))
	return arts, all, nil
}

func (s *Session) invoke(units []SourceUnit, store *VirtualStore, diags *collector) (ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("backend %s panicked: %v", s.backend.Name(), r)
		}
	}()
	return s.backend.Compile(units, store, diags, s.parent), nil
}

func (s *Session) purge(names []string) {
	if s.purger != nil && len(names) > 0 {
		s.purger.Purge(names...)
	}
}

// dedupe keeps the last unit submitted under each name.
func dedupe(units []SourceUnit) []SourceUnit {
	last := make(map[string]int, len(units))
	for i, u := range units {
		last[u.Name] = i
	}
	if len(last) == len(units) {
		return units
	}
	out := make([]SourceUnit, 0, len(last))
	for i, u := range units {
		if last[u.Name] == i {
			out = append(out, u)
		}
	}
	return out
}
