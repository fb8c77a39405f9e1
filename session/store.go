package session

import (
	"sync"

	"go.uber.org/zap"
)

// Store keeps at most one draft per session key. The map is guarded by a
// mutex; each key is logically single-writer, so callers that read-modify-write
// a draft do so without further coordination.
type Store struct {
	mu     sync.RWMutex
	drafts map[string]*Draft
	logger *zap.Logger
}

// NewStore creates an empty session store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		drafts: make(map[string]*Draft),
		logger: logger,
	}
}

// Create registers an empty draft under the key. Creating an existing key is
// a no-op so a retried /session/start does not wipe an in-progress draft.
func (s *Store) Create(key string) *Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	if draft, ok := s.drafts[key]; ok {
		return draft
	}
	draft := &Draft{}
	s.drafts[key] = draft
	s.logger.Info("session draft created", zap.String("session", key))
	return draft
}

// Get returns the draft for the key, or false when no draft exists.
func (s *Store) Get(key string) (*Draft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[key]
	return draft, ok
}

// Patch merges the patch document into the draft, creating the draft when the
// session is new, and returns the updated draft.
func (s *Store) Patch(key string, patch *Draft) *Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft, ok := s.drafts[key]
	if !ok {
		draft = &Draft{}
		s.drafts[key] = draft
	}
	draft.Merge(patch)
	return draft
}

// Put replaces the draft for the key outright. Used by the reset policy after
// a commit and by the roll recorder's draft side effects.
func (s *Store) Put(key string, draft *Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[key] = draft
}

// Clear resets the draft to empty. Durable records tagged with the key are
// untouched.
func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[key]; ok {
		s.drafts[key] = &Draft{}
		s.logger.Info("session draft cleared", zap.String("session", key))
	}
}
