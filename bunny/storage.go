package bunny

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// MainStorageRegion is where every offload storage zone lives
const MainStorageRegion = "DE"

// ReplicationRegions lists the regions a storage zone may replicate to.
var ReplicationRegions = map[string]string{
	"UK":  "London (UK)",
	"SE":  "Stockholm (SE)",
	"NY":  "New York (US)",
	"LA":  "Los Angeles (US)",
	"SG":  "Singapore (SG)",
	"SYD": "Sydney (SYD)",
	"BR":  "Sao Paulo (BR)",
	"JH":  "Johannesburg (SA)",
}

const (
	storageZonePrefix   = "wp-offloader-"
	storageZoneAttempts = 5
	nameTakenMessage    = "The storage zone name is already taken."
)

// StorageZones creates storage zones for media offloading.
type StorageZones struct {
	client  *Client
	newName func() string
}

// NewStorageZones creates a storage zones handler
func NewStorageZones(client *Client) *StorageZones {
	return &StorageZones{client: client, newName: randomZoneName}
}

func randomZoneName() string {
	return storageZonePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// ValidateReplicationRegions rejects unknown regions and the main region.
func ValidateReplicationRegions(regions []string) error {
	for _, region := range regions {
		if region == MainStorageRegion {
			return newError(KindInvalidRegion, "do not repeat the main region in the replication regions")
		}
		if _, ok := ReplicationRegions[region]; !ok {
			return newError(KindInvalidRegion, "%s: %q", ErrInvalidRegion.Message, region)
		}
	}
	return nil
}

// CreateStorageZone creates an SSD storage zone in the main region with the
// given replicas. A generated name that is already taken is replaced with a
// fresh one, up to five names in total.
func (s *StorageZones) CreateStorageZone(ctx context.Context, replicationRegions []string) (*StorageZone, error) {
	if err := ValidateReplicationRegions(replicationRegions); err != nil {
		return nil, err
	}
	if replicationRegions == nil {
		replicationRegions = []string{}
	}

	for i := 0; i < storageZoneAttempts; i++ {
		name := s.newName()
		zone, err := s.create(ctx, name, replicationRegions)
		if err == nil {
			s.client.logger.Info().Str("name", zone.Name).Int64("id", zone.ID).Msg("Storage zone created")
			return zone, nil
		}
		if !isNameTaken(err) {
			return nil, err
		}
		s.client.logger.Debug().Str("name", name).Msg("Storage zone name taken, trying another")
	}
	return nil, newError(KindStorageZoneFailed, "%s: no free name after %d attempts", ErrStorageZoneCreationFailed.Message, storageZoneAttempts)
}

func (s *StorageZones) create(ctx context.Context, name string, replicationRegions []string) (*StorageZone, error) {
	body, err := json.Marshal(map[string]any{
		"Name":               name,
		"Region":             MainStorageRegion,
		"ReplicationRegions": replicationRegions,
		"ZoneTier":           1,
	})
	if err != nil {
		return nil, &RequestError{Op: "encode storage zone", Err: err}
	}
	req := &Request{API: AccountAPI, Endpoint: "storagezone", Method: http.MethodPost, Body: body}

	resp, err := s.client.ExecuteWithRetry(ctx, "POST storagezone", 0, func(ctx context.Context) (Response, error) {
		resp, err := s.client.attempt(ctx, req)
		if isNameTaken(err) {
			return nil, Permanent(err)
		}
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("create storage zone %s: %w", name, err)
	}

	var zone StorageZone
	if err := resp.Decode(&zone); err != nil {
		return nil, err
	}
	if zone.Name == "" {
		zone.Name = name
	}
	return &zone, nil
}

func isNameTaken(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Body, nameTakenMessage)
}
