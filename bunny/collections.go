package bunny

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/s0up4200/wpbs/metrics"
	"github.com/s0up4200/wpbs/store"
)

// Collection naming and locking defaults
const (
	DefaultCollectionPrefix = "wpbs_"
	DefaultLockTTL          = 10 * time.Second
	lockKeyPrefix           = "wpbs_collection_lock_"
	collectionsPageSize     = 100
)

// Collections manages per-user Stream collections.
type Collections struct {
	client  *Client
	links   store.LinkStore
	prefix  string
	lockTTL time.Duration
}

// CollectionsOption configures a Collections handler.
type CollectionsOption func(*Collections)

// WithCollectionPrefix sets the prefix of derived collection names.
func WithCollectionPrefix(prefix string) CollectionsOption {
	return func(c *Collections) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithLockTTL sets how long a creation lock is held before it self-clears.
func WithLockTTL(ttl time.Duration) CollectionsOption {
	return func(c *Collections) {
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

// NewCollections creates a collections handler. links may be nil when user
// associations are not persisted.
func NewCollections(client *Client, links store.LinkStore, opts ...CollectionsOption) *Collections {
	c := &Collections{
		client:  client,
		links:   links,
		prefix:  DefaultCollectionPrefix,
		lockTTL: DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectionName returns the deterministic collection name for a user
func (c *Collections) CollectionName(userID string) string {
	return c.prefix + userID
}

func (c *Collections) basePath() string {
	return "library/" + url.PathEscape(c.client.LibraryID()) + "/collections"
}

// CreateCollection returns the GUID of the user's collection, creating it
// when no collection with the derived name exists. Concurrent calls for the
// same user are guarded by a short-lived lock; the loser gets
// ErrCollectionCreationLocked.
func (c *Collections) CreateCollection(ctx context.Context, userID string, additional map[string]any) (string, error) {
	if c.client.LibraryID() == "" {
		return "", ErrMissingLibraryID
	}
	if userID == "" {
		return "", ErrMissingUserID
	}

	logger := c.client.logger.With().Str("user_id", userID).Logger()
	lockKey := lockKeyPrefix + userID
	token := uuid.NewString()
	acquired, err := c.client.store.SetNX(ctx, lockKey, token, c.lockTTL)
	if err != nil {
		return "", fmt.Errorf("acquire collection lock: %w", err)
	}
	if !acquired {
		metrics.CollectionLockContention.Inc()
		logger.Warn().Msg("Collection creation already in progress")
		return "", ErrCollectionCreationLocked
	}
	defer func() {
		released, err := c.client.store.DeleteIfValue(context.WithoutCancel(ctx), lockKey, token)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to release collection lock")
			return
		}
		if !released {
			logger.Warn().Dur("lock_ttl", c.lockTTL).Msg("Collection lock expired before release")
		}
	}()

	name := c.CollectionName(userID)
	existing, err := c.findByName(ctx, name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		logger.Debug().Str("collection_id", existing.GUID).Msg("Collection already exists")
		metrics.CollectionsCreated.WithLabelValues("existing").Inc()
		c.link(ctx, userID, existing.GUID)
		return existing.GUID, nil
	}

	payload := make(map[string]any, len(additional)+1)
	for k, v := range additional {
		payload[k] = v
	}
	payload["name"] = name

	resp, err := c.client.Send(ctx, c.basePath(), http.MethodPost, payload)
	if err != nil {
		metrics.CollectionsCreated.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("create collection %s: %w", name, err)
	}

	var created Collection
	if err := resp.Decode(&created); err != nil || created.GUID == "" {
		metrics.CollectionsCreated.WithLabelValues("failed").Inc()
		return "", newError(KindCollectionCreationFailed, "%s: response did not include a guid", ErrCollectionCreationFailed.Message)
	}

	metrics.CollectionsCreated.WithLabelValues("created").Inc()
	logger.Info().Str("collection_id", created.GUID).Str("name", name).Msg("Collection created")
	c.link(ctx, userID, created.GUID)
	return created.GUID, nil
}

// link records the user association; failures are logged only
func (c *Collections) link(ctx context.Context, userID, collectionID string) {
	if c.links == nil {
		return
	}
	if err := c.links.Put(ctx, userID, collectionID); err != nil {
		c.client.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to store user collection link")
	}
}

// GetCollection returns the collection with the given GUID, or nil when it
// does not exist.
func (c *Collections) GetCollection(ctx context.Context, collectionID string) (*Collection, error) {
	if c.client.LibraryID() == "" {
		return nil, ErrMissingLibraryID
	}
	if collectionID == "" {
		return nil, ErrMissingCollectionID
	}

	list, err := c.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list.Items {
		if list.Items[i].GUID == collectionID {
			return &list.Items[i], nil
		}
	}
	return nil, nil
}

// ListCollections fetches the first page of up to 100 collections.
func (c *Collections) ListCollections(ctx context.Context) (*CollectionList, error) {
	if c.client.LibraryID() == "" {
		return nil, ErrMissingLibraryID
	}

	params := url.Values{}
	params.Set("page", "1")
	params.Set("itemsPerPage", fmt.Sprint(collectionsPageSize))

	resp, err := c.client.Send(ctx, c.basePath()+"?"+params.Encode(), http.MethodGet, nil)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return decodeCollectionList(resp)
}

func decodeCollectionList(resp Response) (*CollectionList, error) {
	var raw struct {
		TotalItems   int64           `json:"totalItems"`
		CurrentPage  int64           `json:"currentPage"`
		ItemsPerPage int64           `json:"itemsPerPage"`
		Items        json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, ErrInvalidCollectionList
	}
	items := bytes.TrimSpace(raw.Items)
	if len(items) == 0 || items[0] != '[' {
		return nil, ErrInvalidCollectionList
	}

	list := &CollectionList{
		TotalItems:   raw.TotalItems,
		CurrentPage:  raw.CurrentPage,
		ItemsPerPage: raw.ItemsPerPage,
	}
	if err := json.Unmarshal(items, &list.Items); err != nil {
		return nil, ErrInvalidCollectionList
	}
	return list, nil
}

func (c *Collections) findByName(ctx context.Context, name string) (*Collection, error) {
	list, err := c.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list.Items {
		if list.Items[i].Name == name {
			return &list.Items[i], nil
		}
	}
	return nil, nil
}

// DeleteCollection removes a collection. When userID is given the stored
// association for that user is cleared too.
func (c *Collections) DeleteCollection(ctx context.Context, collectionID, userID string) error {
	if c.client.LibraryID() == "" {
		return ErrMissingLibraryID
	}
	if collectionID == "" {
		return ErrMissingCollectionID
	}

	if _, err := c.client.Send(ctx, c.basePath()+"/"+url.PathEscape(collectionID), http.MethodDelete, nil); err != nil {
		return fmt.Errorf("delete collection %s: %w", collectionID, err)
	}

	if userID != "" && c.links != nil {
		if err := c.links.Delete(ctx, userID); err != nil {
			return fmt.Errorf("clear collection link for user %s: %w", userID, err)
		}
	}
	c.client.logger.Info().Str("collection_id", collectionID).Msg("Collection deleted")
	return nil
}

// UpdateCollection sends the non-empty fields of data. Nil values and empty
// strings are dropped; if nothing remains ErrNoUpdateData is returned
// without calling the API.
func (c *Collections) UpdateCollection(ctx context.Context, collectionID string, data map[string]any) (Response, error) {
	if c.client.LibraryID() == "" {
		return nil, ErrMissingLibraryID
	}
	if collectionID == "" {
		return nil, ErrMissingCollectionID
	}

	filtered := stripEmpty(data)
	if len(filtered) == 0 {
		return nil, ErrNoUpdateData
	}

	resp, err := c.client.Send(ctx, c.basePath()+"/"+url.PathEscape(collectionID), http.MethodPut, filtered)
	if err != nil {
		return nil, fmt.Errorf("update collection %s: %w", collectionID, err)
	}
	return resp, nil
}

func stripEmpty(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}
