package hotload

import (
	"bytes"
	"sort"
	"sync"
)

// ArtifactStore is a thread-safe in-memory map of artifact bytes by name.
// Unlike a Loader registry it keeps its entries after they are read, which
// makes it a source a ReloadingLoader can define from again after Reload.
type ArtifactStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewArtifactStore creates an empty store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{data: make(map[string][]byte)}
}

// Put stores a copy of data under name.
func (s *ArtifactStore) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = bytes.Clone(data)
}

// PutAll stores every artifact of a compile round.
func (s *ArtifactStore) PutAll(arts map[string]*CompiledArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, art := range arts {
		s.data[name] = bytes.Clone(art.Bytecode)
	}
}

// Remove deletes the entries for names.
func (s *ArtifactStore) Remove(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		delete(s.data, name)
	}
}

// Artifact implements ArtifactSource.
func (s *ArtifactStore) Artifact(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[name]
	return b, ok
}

// Names lists the stored artifacts.
func (s *ArtifactStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored artifacts.
func (s *ArtifactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
