package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/hotload"
)

// HandleStore holds prepared entry points under random IDs so a client
// compiles once and invokes many times. IDs that are not UUIDs never
// resolve.
type HandleStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*preparedEntry
	now     func() time.Time
	log     commonlog.Logger
}

type preparedEntry struct {
	entry *hotload.EntryPoint
	used  time.Time
}

func NewHandleStore() *HandleStore {
	return &HandleStore{
		entries: make(map[uuid.UUID]*preparedEntry),
		now:     time.Now,
		log:     commonlog.GetLogger("kiln.handles"),
	}
}

// Create stores entry and returns its handle.
func (s *HandleStore) Create(entry *hotload.EntryPoint) string {
	id := uuid.New()
	s.mu.Lock()
	s.entries[id] = &preparedEntry{entry: entry, used: s.now()}
	s.mu.Unlock()
	return id.String()
}

// Lookup returns the entry point behind handle and counts as a use.
func (s *HandleStore) Lookup(handle string) (*hotload.EntryPoint, bool) {
	id, err := uuid.Parse(handle)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	p.used = s.now()
	return p.entry, true
}

// Release forgets handle and reports whether it was live.
func (s *HandleStore) Release(handle string) bool {
	id, err := uuid.Parse(handle)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	delete(s.entries, id)
	return ok
}

func (s *HandleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops handles unused for longer than ttl and returns how many.
func (s *HandleStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	n := 0
	for id, p := range s.entries {
		if p.used.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	if n > 0 {
		s.log.Debugf("swept %d idle handles, %d left", n, len(s.entries))
	}
	return n
}

// StartSweeper sweeps every interval until the returned function is
// called. The function waits for the sweeper to exit and may be called
// more than once.
func (s *HandleStore) StartSweeper(interval, ttl time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ttl)
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
