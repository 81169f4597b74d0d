package bunny

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/google/uuid"

	"github.com/s0up4200/wpbs/metrics"
)

// Videos wraps the Stream video endpoints.
type Videos struct {
	client *Client
}

// NewVideos creates a videos handler
func NewVideos(client *Client) *Videos {
	return &Videos{client: client}
}

func (v *Videos) basePath() string {
	return "library/" + url.PathEscape(v.client.LibraryID()) + "/videos"
}

func (v *Videos) videoPath(guid string) string {
	return v.basePath() + "/" + url.PathEscape(guid)
}

// CreateVideoObject creates an empty video, optionally inside a collection.
func (v *Videos) CreateVideoObject(ctx context.Context, title, collectionID string) (*Video, error) {
	if v.client.LibraryID() == "" {
		return nil, ErrMissingLibraryID
	}
	if title == "" {
		return nil, ErrMissingTitle
	}

	payload := map[string]any{"title": title}
	if collectionID != "" {
		payload["collectionId"] = collectionID
	}

	resp, err := v.client.Send(ctx, v.basePath(), http.MethodPost, payload)
	if err != nil {
		return nil, fmt.Errorf("create video %q: %w", title, err)
	}

	var video Video
	if err := resp.Decode(&video); err != nil {
		return nil, err
	}
	if video.GUID == "" {
		return nil, newError(KindInvalidResponse, "%s: video object has no guid", ErrInvalidResponse.Message)
	}
	return &video, nil
}

// UploadVideo streams the file at filePath as the raw request body. When
// guidOrTitle parses as a GUID the bytes are uploaded into that existing
// video; otherwise a new video is created with guidOrTitle sent in the
// Title header.
func (v *Videos) UploadVideo(ctx context.Context, filePath, guidOrTitle string) (Response, error) {
	if v.client.LibraryID() == "" {
		return nil, ErrMissingLibraryID
	}
	if filePath == "" {
		return nil, ErrInvalidFile
	}
	info, err := os.Stat(filePath)
	if err != nil || !info.Mode().IsRegular() {
		return nil, newError(KindInvalidFile, "%s: %s", ErrInvalidFile.Message, filePath)
	}
	if guidOrTitle == "" {
		return nil, ErrMissingTitle
	}

	req := &Request{
		API:           StreamAPI,
		Header:        http.Header{},
		ContentLength: info.Size(),
		Timeout:       v.client.uploadTimeout,
		Open: func() (io.ReadCloser, error) {
			return os.Open(filePath)
		},
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	if _, err := uuid.Parse(guidOrTitle); err == nil {
		req.Method = http.MethodPut
		req.Endpoint = v.videoPath(guidOrTitle)
	} else {
		req.Method = http.MethodPost
		req.Endpoint = v.basePath()
		req.Header.Set("Title", guidOrTitle)
	}

	v.client.logger.Info().
		Str("library_id", v.client.LibraryID()).
		Str("file", filePath).
		Str("target", guidOrTitle).
		Int64("size", info.Size()).
		Msg("Uploading video")

	resp, err := v.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filePath, err)
	}
	metrics.UploadBytes.Add(float64(info.Size()))
	return resp, nil
}

// GetVideo fetches a video object
func (v *Videos) GetVideo(ctx context.Context, guid string) (*Video, error) {
	if v.client.LibraryID() == "" {
		return nil, ErrMissingLibraryID
	}
	if guid == "" {
		return nil, ErrMissingVideoID
	}

	resp, err := v.client.Send(ctx, v.videoPath(guid), http.MethodGet, nil)
	if err != nil {
		return nil, fmt.Errorf("get video %s: %w", guid, err)
	}

	var video Video
	if err := resp.Decode(&video); err != nil {
		return nil, err
	}
	return &video, nil
}

// GetVideoStatus returns the encoding status and progress of a video
func (v *Videos) GetVideoStatus(ctx context.Context, guid string) (VideoStatus, int64, error) {
	video, err := v.GetVideo(ctx, guid)
	if err != nil {
		return 0, 0, err
	}
	return video.Status, video.EncodeProgress, nil
}

// IsVideoCreated reports whether encoding has finished
func (v *Videos) IsVideoCreated(ctx context.Context, guid string) (bool, error) {
	status, _, err := v.GetVideoStatus(ctx, guid)
	if err != nil {
		return false, err
	}
	return status == VideoStatusFinished, nil
}

// GetPlaybackURL returns the HLS playlist URL, falling back to the MP4 URL.
func (v *Videos) GetPlaybackURL(ctx context.Context, guid string) (string, error) {
	if v.client.LibraryID() == "" {
		return "", ErrMissingLibraryID
	}
	if guid == "" {
		return "", ErrMissingVideoID
	}

	resp, err := v.client.Send(ctx, v.videoPath(guid)+"/play", http.MethodGet, nil)
	if err != nil {
		return "", fmt.Errorf("get playback url for %s: %w", guid, err)
	}

	var info PlaybackInfo
	if err := resp.Decode(&info); err != nil {
		return "", err
	}
	switch {
	case info.VideoPlaylistURL != "":
		return info.VideoPlaylistURL, nil
	case info.FallbackURL != "":
		return info.FallbackURL, nil
	}
	return "", newError(KindInvalidResponse, "%s: no playback url for video %s", ErrInvalidResponse.Message, guid)
}
