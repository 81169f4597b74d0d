package bunny

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// API selects which Bunny API family a request targets.
type API int

const (
	// StreamAPI is the per-library video API
	StreamAPI API = iota
	// AccountAPI is the account-level API (libraries, storage zones)
	AccountAPI
)

func (a API) String() string {
	if a == AccountAPI {
		return "account"
	}
	return "stream"
}

// Default API base URLs
const (
	DefaultStreamURL  = "https://video.bunnycdn.com/"
	DefaultAccountURL = "https://api.bunny.net/"
)

// MaxRetryAfter caps the server-requested wait of a 429 response
const MaxRetryAfter = time.Hour

// Endpoints holds the base URL of each API family.
type Endpoints struct {
	Stream  string
	Account string
}

// DefaultEndpoints returns the production base URLs
func DefaultEndpoints() Endpoints {
	return Endpoints{Stream: DefaultStreamURL, Account: DefaultAccountURL}
}

func (e Endpoints) base(api API) string {
	base := e.Stream
	if api == AccountAPI {
		base = e.Account
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// Credentials are fixed for the lifetime of a Client.
type Credentials struct {
	AccessKey string
	LibraryID string
}

// Request is one logical call. Body holds a JSON payload; Open, when set,
// supplies a fresh binary body for every attempt and takes precedence.
type Request struct {
	API           API
	Endpoint      string
	Method        string
	Header        http.Header
	Body          []byte
	Open          func() (io.ReadCloser, error)
	ContentLength int64
	// Timeout bounds a single attempt; zero uses the HTTP client timeout
	Timeout time.Duration
}

// RequestBuilder turns a Request into an authenticated *http.Request.
type RequestBuilder interface {
	Build(ctx context.Context, req *Request) (*http.Request, error)
	// URL returns the absolute URL for the request, for logging
	URL(req *Request) string
}

// AccessKeyBuilder authenticates with the AccessKey header used by the
// Stream API.
type AccessKeyBuilder struct {
	key       string
	endpoints Endpoints
}

// NewAccessKeyBuilder creates the default builder
func NewAccessKeyBuilder(key string, endpoints Endpoints) *AccessKeyBuilder {
	return &AccessKeyBuilder{key: key, endpoints: endpoints}
}

func (b *AccessKeyBuilder) URL(req *Request) string {
	return b.endpoints.base(req.API) + strings.TrimLeft(req.Endpoint, "/")
}

func (b *AccessKeyBuilder) Build(ctx context.Context, req *Request) (*http.Request, error) {
	httpReq, err := newHTTPRequest(ctx, b.URL(req), req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("AccessKey", b.key)
	return httpReq, nil
}

// BearerBuilder authenticates with an Authorization: Bearer header.
type BearerBuilder struct {
	token     string
	endpoints Endpoints
}

// NewBearerBuilder creates a bearer-token builder
func NewBearerBuilder(token string, endpoints Endpoints) *BearerBuilder {
	return &BearerBuilder{token: token, endpoints: endpoints}
}

func (b *BearerBuilder) URL(req *Request) string {
	return b.endpoints.base(req.API) + strings.TrimLeft(req.Endpoint, "/")
}

func (b *BearerBuilder) Build(ctx context.Context, req *Request) (*http.Request, error) {
	httpReq, err := newHTTPRequest(ctx, b.URL(req), req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+b.token)
	return httpReq, nil
}

func newHTTPRequest(ctx context.Context, url string, req *Request) (*http.Request, error) {
	method, err := normalizeMethod(req.Method)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	contentLength := int64(-1)
	switch {
	case req.Open != nil:
		rc, err := req.Open()
		if err != nil {
			return nil, &RequestError{Op: "open request body", Err: err}
		}
		body = rc
		contentLength = req.ContentLength
	case len(req.Body) > 0:
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			rc.Close()
		}
		return nil, &RequestError{Op: "create request", Err: err}
	}
	if req.Open != nil && contentLength >= 0 {
		httpReq.ContentLength = contentLength
	}

	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 && req.Open == nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodDelete: {},
}

// normalizeMethod upper-cases method and rejects anything outside
// GET, POST, PUT and DELETE.
func normalizeMethod(method string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(method))
	if _, ok := allowedMethods[upper]; !ok {
		return "", newError(KindInvalidMethod, "invalid HTTP method: %s", method)
	}
	return upper, nil
}

var secretHeaders = map[string]struct{}{
	"Accesskey":     {},
	"Authorization": {},
}

// redactHeaders flattens h for logging with credentials masked
func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		if _, secret := secretHeaders[http.CanonicalHeaderKey(key)]; secret {
			out[key] = "[REDACTED]"
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

// parseRetryAfter reads a Retry-After value in whole seconds. Missing,
// malformed and non-positive values yield zero; larger values than
// MaxRetryAfter are capped.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if errors.Is(err, strconv.ErrRange) && value[0] != '-' {
		return MaxRetryAfter
	}
	if err != nil || seconds <= 0 {
		return 0
	}
	if seconds > int64(MaxRetryAfter/time.Second) {
		return MaxRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
