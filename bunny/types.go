package bunny

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Response is the raw body of a successful call.
type Response []byte

// Decode unmarshals the body into v
func (r Response) Decode(v any) error {
	if err := json.Unmarshal(r, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// Empty reports whether the body carries no JSON value
func (r Response) Empty() bool {
	trimmed := bytes.TrimSpace(r)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Map decodes the body as a JSON object
func (r Response) Map() (map[string]any, error) {
	if r.Empty() {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := r.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// Collection is a Bunny Stream collection
type Collection struct {
	VideoLibraryID   int64    `json:"videoLibraryId"`
	GUID             string   `json:"guid"`
	Name             string   `json:"name"`
	VideoCount       int64    `json:"videoCount"`
	TotalSize        int64    `json:"totalSize"`
	PreviewVideoIDs  string   `json:"previewVideoIds,omitempty"`
	PreviewImageURLs []string `json:"previewImageUrls,omitempty"`
}

// CollectionList is one page of collections
type CollectionList struct {
	TotalItems   int64        `json:"totalItems"`
	CurrentPage  int64        `json:"currentPage"`
	ItemsPerPage int64        `json:"itemsPerPage"`
	Items        []Collection `json:"items"`
}

// VideoStatus is the processing state Bunny reports for a video
type VideoStatus int

const (
	VideoStatusCreated VideoStatus = iota
	VideoStatusUploaded
	VideoStatusProcessing
	VideoStatusTranscoding
	VideoStatusFinished
	VideoStatusError
	VideoStatusUploadFailed
)

// String returns the string representation of the status
func (s VideoStatus) String() string {
	switch s {
	case VideoStatusCreated:
		return "created"
	case VideoStatusUploaded:
		return "uploaded"
	case VideoStatusProcessing:
		return "processing"
	case VideoStatusTranscoding:
		return "transcoding"
	case VideoStatusFinished:
		return "finished"
	case VideoStatusError:
		return "error"
	case VideoStatusUploadFailed:
		return "upload_failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether encoding can make no further progress
func (s VideoStatus) Terminal() bool {
	return s == VideoStatusFinished || s == VideoStatusError || s == VideoStatusUploadFailed
}

// Video is a Bunny Stream video object
type Video struct {
	VideoLibraryID       int64       `json:"videoLibraryId"`
	GUID                 string      `json:"guid"`
	Title                string      `json:"title"`
	DateUploaded         string      `json:"dateUploaded,omitempty"`
	Views                int64       `json:"views"`
	IsPublic             bool        `json:"isPublic"`
	Length               int64       `json:"length"`
	Status               VideoStatus `json:"status"`
	Framerate            float64     `json:"framerate"`
	Width                int64       `json:"width"`
	Height               int64       `json:"height"`
	AvailableResolutions string      `json:"availableResolutions,omitempty"`
	ThumbnailCount       int64       `json:"thumbnailCount"`
	EncodeProgress       int64       `json:"encodeProgress"`
	StorageSize          int64       `json:"storageSize"`
	HasMP4Fallback       bool        `json:"hasMP4Fallback"`
	CollectionID         string      `json:"collectionId,omitempty"`
	ThumbnailFileName    string      `json:"thumbnailFileName,omitempty"`
}

// PlaybackInfo is returned by the video play endpoint
type PlaybackInfo struct {
	VideoPlaylistURL string `json:"videoPlaylistUrl"`
	FallbackURL      string `json:"fallbackUrl"`
	PreviewURL       string `json:"previewUrl,omitempty"`
	ThumbnailURL     string `json:"thumbnailUrl,omitempty"`
}

// StorageZone is the subset of the storage zone object we consume
type StorageZone struct {
	ID                 int64    `json:"Id"`
	Name               string   `json:"Name"`
	Password           string   `json:"Password,omitempty"`
	Region             string   `json:"Region"`
	ReplicationRegions []string `json:"ReplicationRegions"`
	StorageHostname    string   `json:"StorageHostname,omitempty"`
}
