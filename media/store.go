package media

import (
	"sync"

	"github.com/google/uuid"
)

type asset struct {
	data     []byte
	mimeType string
}

// Store holds generated images and videos in memory and serves them by ID.
// Nothing is ever written to disk; assets live as long as the process does.
type Store struct {
	mu     sync.RWMutex
	assets map[string]asset
}

// NewStore creates an empty asset store.
func NewStore() *Store {
	return &Store{assets: make(map[string]asset)}
}

// Put stores data under a fresh ID and returns the serving path for it.
func (s *Store) Put(data []byte, mimeType string) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.assets[id] = asset{data: data, mimeType: mimeType}
	s.mu.Unlock()
	return "/media/" + id
}

// Get returns the bytes and MIME type stored under id.
func (s *Store) Get(id string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	return a.data, a.mimeType, ok
}
