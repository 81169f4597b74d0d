package bunny

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/wpbs/transient"
)

const (
	testAccessKey = "secret-access-key"
	testLibraryID = "lib1"
)

// fakeClock records sleeps and advances time instead of blocking
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// setCall is one recorded transient write
type setCall struct {
	key   string
	value string
	ttl   time.Duration
}

// recordingStore captures Set calls on top of a memory store
type recordingStore struct {
	*transient.MemoryStore
	mu   sync.Mutex
	sets []setCall
}

func (s *recordingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.sets = append(s.sets, setCall{key: key, value: value, ttl: ttl})
	s.mu.Unlock()
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func (s *recordingStore) Sets() []setCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]setCall(nil), s.sets...)
}

type testEnv struct {
	client *Client
	clock  *fakeClock
	store  *recordingStore
	server *httptest.Server
}

// newTestEnv starts handler as both the Stream and account API. Account
// requests arrive under /account/.
func newTestEnv(t *testing.T, handler http.Handler, opts ...Option) *testEnv {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	clock := newFakeClock()
	store := &recordingStore{MemoryStore: transient.NewMemoryStore(transient.WithNow(clock.Now))}

	base := []Option{
		WithEndpoints(Endpoints{Stream: server.URL, Account: server.URL + "/account/"}),
		WithClock(clock),
	}
	client, err := New(Credentials{AccessKey: testAccessKey, LibraryID: testLibraryID}, store, zerolog.Nop(), append(base, opts...)...)
	require.NoError(t, err)

	return &testEnv{client: client, clock: clock, store: store, server: server}
}

// newTestClientWithLibrary builds a client against an unused URL
func newTestClientWithLibrary(t *testing.T, libraryID string) *Client {
	t.Helper()
	client, err := New(Credentials{AccessKey: testAccessKey, LibraryID: libraryID}, nil, zerolog.Nop(),
		WithEndpoints(Endpoints{Stream: "http://127.0.0.1:1", Account: "http://127.0.0.1:1"}),
		WithClock(newFakeClock()),
	)
	require.NoError(t, err)
	return client
}
