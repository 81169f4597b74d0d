package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const metadataKeyPrefix = "metadata:"

// BadgerMetadata stores attachment metadata as JSON in a Badger database.
type BadgerMetadata struct {
	db *badger.DB
}

// NewBadgerMetadata wraps an open database owned by the caller.
func NewBadgerMetadata(db *badger.DB) *BadgerMetadata {
	return &BadgerMetadata{db: db}
}

func (s *BadgerMetadata) Get(_ context.Context, postID string) (VideoMetadata, bool, error) {
	if s == nil || s.db == nil {
		return VideoMetadata{}, false, ErrNotConfigured
	}

	var meta VideoMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metadataKeyPrefix + postID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return VideoMetadata{}, false, nil
	}
	if err != nil {
		return VideoMetadata{}, false, fmt.Errorf("read metadata for post %s: %w", postID, err)
	}
	return meta, true, nil
}

func (s *BadgerMetadata) Put(_ context.Context, postID string, meta VideoMetadata) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	if postID == "" {
		return ErrEmptyKey
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metadataKeyPrefix+postID), data)
	})
	if err != nil {
		return fmt.Errorf("write metadata for post %s: %w", postID, err)
	}
	return nil
}

func (s *BadgerMetadata) Delete(_ context.Context, postID string) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(metadataKeyPrefix + postID))
	})
	if err != nil {
		return fmt.Errorf("delete metadata for post %s: %w", postID, err)
	}
	return nil
}
