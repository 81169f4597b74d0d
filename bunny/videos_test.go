package bunny

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVideoGUID = "0b3c8a9e-2f44-4d3a-9a9e-7f1a2b3c4d5e"

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCreateVideoObject(t *testing.T) {
	var body map[string]any
	var path string
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body = nil
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"guid":"` + testVideoGUID + `","title":"Intro","status":0}`))
	}))
	videos := NewVideos(env.client)
	ctx := context.Background()

	video, err := videos.CreateVideoObject(ctx, "Intro", "col-1")
	require.NoError(t, err)
	assert.Equal(t, testVideoGUID, video.GUID)
	assert.Equal(t, VideoStatusCreated, video.Status)
	assert.Equal(t, "/library/lib1/videos", path)
	assert.Equal(t, map[string]any{"title": "Intro", "collectionId": "col-1"}, body)

	_, err = videos.CreateVideoObject(ctx, "Intro", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "Intro"}, body)

	_, err = videos.CreateVideoObject(ctx, "", "")
	assert.ErrorIs(t, err, ErrMissingTitle)
}

func TestCreateVideoObjectWithoutGUID(t *testing.T) {
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Intro"}`))
	}))
	_, err := NewVideos(env.client).CreateVideoObject(context.Background(), "Intro", "")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestUploadVideo(t *testing.T) {
	type seen struct {
		method      string
		path        string
		title       string
		contentType string
		body        string
	}

	tests := []struct {
		name   string
		target string
		want   seen
	}{
		{
			name:   "into existing video by guid",
			target: testVideoGUID,
			want: seen{
				method:      http.MethodPut,
				path:        "/library/lib1/videos/" + testVideoGUID,
				contentType: "application/octet-stream",
				body:        "video-bytes",
			},
		},
		{
			name:   "new video by title",
			target: "Holiday clip",
			want: seen{
				method:      http.MethodPost,
				path:        "/library/lib1/videos",
				title:       "Holiday clip",
				contentType: "application/octet-stream",
				body:        "video-bytes",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got seen
			env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, _ := io.ReadAll(r.Body)
				got = seen{
					method:      r.Method,
					path:        r.URL.Path,
					title:       r.Header.Get("Title"),
					contentType: r.Header.Get("Content-Type"),
					body:        string(b),
				}
				w.Write([]byte(`{"success":true}`))
			}))

			path := writeTempFile(t, "video-bytes")
			resp, err := NewVideos(env.client).UploadVideo(context.Background(), path, tt.target)
			require.NoError(t, err)
			assert.JSONEq(t, `{"success":true}`, string(resp))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUploadVideoRetriesWithFullBody(t *testing.T) {
	var hits atomic.Int32
	var bodies []string
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))

	path := writeTempFile(t, "0123456789")
	_, err := NewVideos(env.client).UploadVideo(context.Background(), path, testVideoGUID)
	require.NoError(t, err)
	assert.Equal(t, []string{"0123456789", "0123456789"}, bodies)
}

func TestUploadVideoValidation(t *testing.T) {
	var hits atomic.Int32
	env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	videos := NewVideos(env.client)
	ctx := context.Background()

	_, err := videos.UploadVideo(ctx, "", "title")
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = videos.UploadVideo(ctx, filepath.Join(t.TempDir(), "missing.mp4"), "title")
	assert.ErrorIs(t, err, ErrInvalidFile)
	assert.Equal(t, KindInvalidFile, KindOf(err))

	_, err = videos.UploadVideo(ctx, t.TempDir(), "title")
	assert.ErrorIs(t, err, ErrInvalidFile, "directories are rejected")

	_, err = videos.UploadVideo(ctx, writeTempFile(t, "x"), "")
	assert.ErrorIs(t, err, ErrMissingTitle)

	_, err = NewVideos(newTestClientWithLibrary(t, "")).UploadVideo(ctx, writeTempFile(t, "x"), "t")
	assert.ErrorIs(t, err, ErrMissingLibraryID)

	assert.Zero(t, hits.Load())
}

func TestGetVideoStatus(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantStatus   VideoStatus
		wantProgress int64
		wantCreated  bool
	}{
		{"processing", `{"guid":"g","status":2,"encodeProgress":40}`, VideoStatusProcessing, 40, false},
		{"finished", `{"guid":"g","status":4,"encodeProgress":100}`, VideoStatusFinished, 100, true},
		{"failed", `{"guid":"g","status":5}`, VideoStatusError, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				w.Write([]byte(tt.body))
			}))
			videos := NewVideos(env.client)

			status, progress, err := videos.GetVideoStatus(context.Background(), testVideoGUID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantProgress, progress)
			assert.Equal(t, "/library/lib1/videos/"+testVideoGUID, path)

			created, err := videos.IsVideoCreated(context.Background(), testVideoGUID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, created)
		})
	}
}

func TestGetVideoMissingID(t *testing.T) {
	videos := NewVideos(newTestClientWithLibrary(t, "lib"))
	_, err := videos.GetVideo(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingVideoID)
	_, err = videos.GetPlaybackURL(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingVideoID)
}

func TestGetPlaybackURL(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{
			name: "playlist",
			body: `{"videoPlaylistUrl":"https://vz.example/playlist.m3u8","fallbackUrl":"https://vz.example/play_720p.mp4"}`,
			want: "https://vz.example/playlist.m3u8",
		},
		{
			name: "fallback",
			body: `{"fallbackUrl":"https://vz.example/play_720p.mp4"}`,
			want: "https://vz.example/play_720p.mp4",
		},
		{
			name:    "neither",
			body:    `{}`,
			wantErr: ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			env := newTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				w.Write([]byte(tt.body))
			}))

			got, err := NewVideos(env.client).GetPlaybackURL(context.Background(), testVideoGUID)
			assert.Equal(t, "/library/lib1/videos/"+testVideoGUID+"/play", path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVideoStatus(t *testing.T) {
	tests := []struct {
		status   VideoStatus
		expected string
		terminal bool
	}{
		{VideoStatusCreated, "created", false},
		{VideoStatusUploaded, "uploaded", false},
		{VideoStatusProcessing, "processing", false},
		{VideoStatusTranscoding, "transcoding", false},
		{VideoStatusFinished, "finished", true},
		{VideoStatusError, "error", true},
		{VideoStatusUploadFailed, "upload_failed", true},
		{VideoStatus(42), "unknown(42)", false},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}
