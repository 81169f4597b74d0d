package store

import (
	"context"
	"sync"
)

// LinkStore maps a local user to the Bunny collection holding their videos.
type LinkStore interface {
	// Get returns the collection ID for userID, or "" when none is stored.
	Get(ctx context.Context, userID string) (string, error)
	// Put stores or replaces the association.
	Put(ctx context.Context, userID, collectionID string) error
	// Delete removes any association for userID.
	Delete(ctx context.Context, userID string) error
}

// MemoryLinks is an in-process LinkStore.
type MemoryLinks struct {
	mu    sync.RWMutex
	links map[string]string
}

// NewMemoryLinks creates an empty link store
func NewMemoryLinks() *MemoryLinks {
	return &MemoryLinks{links: make(map[string]string)}
}

func (m *MemoryLinks) Get(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.links[userID], nil
}

func (m *MemoryLinks) Put(_ context.Context, userID, collectionID string) error {
	if userID == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[userID] = collectionID
	return nil
}

func (m *MemoryLinks) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, userID)
	return nil
}

// Len returns the number of stored links
func (m *MemoryLinks) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}
