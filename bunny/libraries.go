package bunny

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Libraries wraps account-level video library management.
type Libraries struct {
	client *Client
}

// NewLibraries creates a libraries handler
func NewLibraries(client *Client) *Libraries {
	return &Libraries{client: client}
}

// CreateLibrary creates a Stream video library and returns its identifier.
func (l *Libraries) CreateLibrary(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrMissingName
	}

	payload := map[string]any{
		"name":               name,
		"readOnly":           false,
		"replicationRegions": []string{},
	}
	resp, err := l.client.SendAccount(ctx, "videolibrary", http.MethodPost, payload)
	if err != nil {
		return "", fmt.Errorf("create library %q: %w", name, err)
	}

	m, err := resp.Map()
	if err != nil {
		return "", newError(KindLibraryCreationFailed, "%s: %v", ErrLibraryCreationFailed.Message, err)
	}
	if id := identifier(m, "guid", "Guid", "Id", "id"); id != "" {
		l.client.logger.Info().Str("library_id", id).Str("name", name).Msg("Video library created")
		return id, nil
	}
	return "", newError(KindLibraryCreationFailed, "%s: response did not include a library ID", ErrLibraryCreationFailed.Message)
}

// identifier returns the first non-empty string or number under keys
func identifier(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			if v != 0 {
				return strconv.FormatInt(int64(v), 10)
			}
		}
	}
	return ""
}
