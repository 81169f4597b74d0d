package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/wpbs/config"
	"github.com/s0up4200/wpbs/store"
	"github.com/s0up4200/wpbs/transient"
)

func testConfig() *config.Config {
	return &config.Config{
		Bunny: config.BunnyConfig{
			AccessKey:  "key",
			LibraryID:  "1",
			Auth:       "access_key",
			StreamURL:  "https://video.bunnycdn.com/",
			AccountURL: "https://api.bunny.net/",
		},
		Retry:       config.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second},
		HTTP:        config.HTTPConfig{Timeout: 30 * time.Second, UploadTimeout: 20 * time.Second},
		Collections: config.CollectionsConfig{Prefix: "wpbs_", LockTTL: 10 * time.Second},
		Transient:   config.TransientConfig{Backend: "memory"},
		Links:       config.LinksConfig{Backend: "memory"},
		Metadata:    config.MetadataConfig{Backend: "memory"},
		Offload:     config.OffloadConfig{Concurrency: 2},
	}
}

func TestNewApplicationMemory(t *testing.T) {
	a, err := newApplication(context.Background(), testConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "1", a.client.LibraryID())
	assert.IsType(t, &transient.MemoryStore{}, a.client.Store())
	assert.IsType(t, &store.MemoryLinks{}, a.links)
	assert.IsType(t, &store.MemoryMetadata{}, a.metadata)
	assert.NotNil(t, a.collections)
	assert.NotNil(t, a.videos)
	assert.NotNil(t, a.libraries)
	assert.NotNil(t, a.zones)
	assert.NotNil(t, a.offloader)
	assert.NotNil(t, a.filters)
}

func TestNewApplicationSharedBadger(t *testing.T) {
	cfg := testConfig()
	dir := filepath.Join(t.TempDir(), "badger")
	cfg.Transient = config.TransientConfig{Backend: "badger", Badger: config.BadgerConfig{Path: dir}}
	cfg.Metadata = config.MetadataConfig{Backend: "badger", Badger: config.BadgerConfig{Path: dir}}

	a, err := newApplication(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.IsType(t, &transient.BadgerStore{}, a.client.Store())
	assert.IsType(t, &store.BadgerMetadata{}, a.metadata)
	assert.Len(t, a.badgers, 1, "one database per path")

	ctx := context.Background()
	require.NoError(t, a.metadata.Put(ctx, "1", store.VideoMetadata{VideoGUID: "v"}))
	require.NoError(t, a.Close())

	// reopening proves the database was closed and persisted
	b, err := newApplication(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer b.Close()
	meta, ok, err := b.metadata.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", meta.VideoGUID)
}

func TestNewApplicationRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Transient = config.TransientConfig{Backend: "redis", Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "wpbs:"}}

	a, err := newApplication(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	assert.IsType(t, &transient.RedisStore{}, a.client.Store())
}

func TestNewApplicationRedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Transient = config.TransientConfig{Backend: "redis", Redis: config.RedisConfig{Addr: "127.0.0.1:1"}}

	_, err := newApplication(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis")
}

func TestClientOptions(t *testing.T) {
	cfg := testConfig()
	assert.Len(t, clientOptions(cfg), 5)

	cfg.Bunny.Auth = "bearer"
	cfg.RateLimit = config.RateLimitConfig{RPS: 5, Burst: 2}
	cfg.Breaker = config.BreakerConfig{Enabled: true, FailureRatio: 0.5, MinRequests: 4, Timeout: time.Minute}
	assert.Len(t, clientOptions(cfg), 8)
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in       int64
		expected string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, humanBytes(tt.in))
	}
}
