package store

import (
	"context"
	"sync"
)

// SourceBunny marks attachments whose video lives on Bunny Stream.
const SourceBunny = "bunnycdn"

// VideoMetadata is what an attachment remembers about its offloaded video.
type VideoMetadata struct {
	Source       string `json:"source"`
	VideoGUID    string `json:"videoGuid"`
	CollectionID string `json:"collectionId,omitempty"`
	VideoURL     string `json:"videoUrl,omitempty"`
}

// Offloaded reports whether the attachment already has a remote video
func (m VideoMetadata) Offloaded() bool {
	return m.VideoGUID != ""
}

// MetadataStore keeps per-attachment video metadata keyed by post ID.
type MetadataStore interface {
	// Get returns the metadata and whether any was stored.
	Get(ctx context.Context, postID string) (VideoMetadata, bool, error)
	Put(ctx context.Context, postID string, meta VideoMetadata) error
	Delete(ctx context.Context, postID string) error
}

// MemoryMetadata is an in-process MetadataStore.
type MemoryMetadata struct {
	mu    sync.RWMutex
	items map[string]VideoMetadata
}

// NewMemoryMetadata creates an empty metadata store
func NewMemoryMetadata() *MemoryMetadata {
	return &MemoryMetadata{items: make(map[string]VideoMetadata)}
}

func (m *MemoryMetadata) Get(_ context.Context, postID string) (VideoMetadata, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.items[postID]
	return meta, ok, nil
}

func (m *MemoryMetadata) Put(_ context.Context, postID string, meta VideoMetadata) error {
	if postID == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[postID] = meta
	return nil
}

func (m *MemoryMetadata) Delete(_ context.Context, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, postID)
	return nil
}
