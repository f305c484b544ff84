package state

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrContextNotFound = errors.New("user context not found")
	ErrVersionConflict = errors.New("user context modified concurrently")
)

// Store is the persistence contract for user contexts. Save is conditional:
// it only succeeds when the stored version matches the version the context
// was loaded with, and bumps it. A losing writer gets ErrVersionConflict and
// is expected to reload and retry once.
type Store interface {
	Load(ctx context.Context, userID string) (*UserContext, error)
	Save(ctx context.Context, uc *UserContext) error
	Delete(ctx context.Context, userID string) error
}

// MemoryStore is an in-process Store used in tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[string]*UserContext
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contexts: make(map[string]*UserContext)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (*UserContext, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	uc, ok := s.contexts[userID]
	if !ok {
		return nil, ErrContextNotFound
	}
	return uc.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, uc *UserContext) error {
	if uc == nil {
		return ErrNilContext
	}
	if uc.UserID == "" {
		return ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.contexts[uc.UserID]
	if ok && stored.Version != uc.Version {
		return ErrVersionConflict
	}
	if !ok && uc.Version != 0 {
		return ErrVersionConflict
	}

	saved := uc.Clone()
	saved.Version++
	saved.Touch(time.Now())
	s.contexts[uc.UserID] = saved

	// Caller's copy observes the committed version so a follow-up save wins.
	uc.Version = saved.Version
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, userID)
	return nil
}
