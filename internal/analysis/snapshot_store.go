package analysis

import (
	"context"
	"sync"

	"github.com/moleary1107/etownz-grants-sub007/internal/disclosure"
)

// SnapshotStore keeps the latest computed visibility per session. Each
// ReplaceSnapshot discards whatever was stored before for that session.
type SnapshotStore interface {
	ReplaceSnapshot(ctx context.Context, sessionID string, visibility disclosure.Visibility) error
	GetSnapshot(ctx context.Context, sessionID string) (disclosure.Visibility, error)
}

// InMemorySnapshotStore is a map-backed SnapshotStore for development and tests.
type InMemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]disclosure.Visibility
}

var _ SnapshotStore = (*InMemorySnapshotStore)(nil)

func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{snapshots: make(map[string]disclosure.Visibility)}
}

func (s *InMemorySnapshotStore) ReplaceSnapshot(ctx context.Context, sessionID string, visibility disclosure.Visibility) error {
	if sessionID == "" {
		return ErrMissingSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[sessionID] = cloneVisibility(visibility)
	return nil
}

func (s *InMemorySnapshotStore) GetSnapshot(ctx context.Context, sessionID string) (disclosure.Visibility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[sessionID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return cloneVisibility(snapshot), nil
}

func cloneVisibility(v disclosure.Visibility) disclosure.Visibility {
	out := make(disclosure.Visibility, len(v))
	for name, state := range v {
		out[name] = state
	}
	return out
}
