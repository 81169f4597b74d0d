package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/wpbs/bunny"
	"github.com/s0up4200/wpbs/store"
)

// mp4Header is the start of an ISO base media file
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
	0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2',
}

type fakeCollections struct {
	mu      sync.Mutex
	links   store.LinkStore
	created []string
	err     error
}

func (f *fakeCollections) CreateCollection(ctx context.Context, userID string, _ map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, userID)
	id := "col-" + userID
	return id, f.links.Put(ctx, userID, id)
}

type fakeVideos struct {
	mu          sync.Mutex
	nextGUID    string
	uploaded    []string
	objects     []string
	playbackURL string
	playbackErr error
	uploadErr   error
	statuses    map[string][]bunny.VideoStatus
	statusErr   map[string]error
	polls       map[string]int
}

func (f *fakeVideos) CreateVideoObject(_ context.Context, title, collectionID string) (*bunny.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects = append(f.objects, title+"@"+collectionID)
	return &bunny.Video{GUID: f.nextGUID, Title: title, CollectionID: collectionID}, nil
}

func (f *fakeVideos) UploadVideo(_ context.Context, filePath, guid string) (bunny.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploaded = append(f.uploaded, filepath.Base(filePath)+"->"+guid)
	return bunny.Response(`{"success":true}`), nil
}

func (f *fakeVideos) GetPlaybackURL(context.Context, string) (string, error) {
	return f.playbackURL, f.playbackErr
}

func (f *fakeVideos) GetVideoStatus(ctx context.Context, guid string) (bunny.VideoStatus, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if err := f.statusErr[guid]; err != nil {
		return 0, 0, err
	}
	seq := f.statuses[guid]
	i := f.polls[guid]
	f.polls[guid]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	status := seq[i]
	return status, int64(status) * 25, nil
}

type fixture struct {
	offloader   *Offloader
	collections *fakeCollections
	videos      *fakeVideos
	links       *store.MemoryLinks
	metadata    *store.MemoryMetadata
}

func newFixture(opts ...Option) *fixture {
	links := store.NewMemoryLinks()
	f := &fixture{
		collections: &fakeCollections{links: links},
		videos: &fakeVideos{
			nextGUID:    "vid-1",
			playbackURL: "https://vz.example/vid-1/playlist.m3u8",
			statuses:    map[string][]bunny.VideoStatus{},
			statusErr:   map[string]error{},
			polls:       map[string]int{},
		},
		links:    links,
		metadata: store.NewMemoryMetadata(),
	}
	f.offloader = NewOffloader(f.collections, f.videos, f.links, f.metadata, zerolog.Nop(), opts...)
	return f
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestOffloadVideo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	path := writeFile(t, "lecture-01.mp4", mp4Header)

	res, err := f.offloader.OffloadVideo(ctx, Upload{File: path, Type: "video/mp4", PostID: "101"}, "7")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "vid-1", res.VideoGUID)
	assert.Equal(t, "col-7", res.CollectionID)
	assert.Equal(t, "https://vz.example/vid-1/playlist.m3u8", res.VideoURL)

	assert.Equal(t, []string{"7"}, f.collections.created)
	assert.Equal(t, []string{"lecture-01@col-7"}, f.videos.objects)
	assert.Equal(t, []string{"lecture-01.mp4->vid-1"}, f.videos.uploaded)

	meta, ok, err := f.metadata.Get(ctx, "101")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.VideoMetadata{
		Source:       store.SourceBunny,
		VideoGUID:    "vid-1",
		CollectionID: "col-7",
		VideoURL:     "https://vz.example/vid-1/playlist.m3u8",
	}, meta)

	assert.FileExists(t, path, "local file kept by default")
}

func TestOffloadVideoReusesLinkedCollection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.links.Put(ctx, "7", "existing"))

	_, err := f.offloader.OffloadVideo(ctx, Upload{File: writeFile(t, "a.mp4", mp4Header), Type: "video/mp4", PostID: "1"}, "7")
	require.NoError(t, err)
	assert.Empty(t, f.collections.created)
	assert.Equal(t, []string{"a@existing"}, f.videos.objects)
}

func TestOffloadVideoSkips(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		upload func(t *testing.T, f *fixture) Upload
		userID string
		reason string
	}{
		{
			name: "not a video",
			upload: func(t *testing.T, f *fixture) Upload {
				return Upload{File: writeFile(t, "a.jpg", []byte("x")), Type: "image/jpeg", PostID: "1"}
			},
			userID: "7",
			reason: "not a video",
		},
		{
			name: "already offloaded",
			upload: func(t *testing.T, f *fixture) Upload {
				require.NoError(t, f.metadata.Put(ctx, "1", store.VideoMetadata{Source: store.SourceBunny, VideoGUID: "old"}))
				return Upload{File: writeFile(t, "a.mp4", mp4Header), Type: "video/mp4", PostID: "1"}
			},
			userID: "7",
			reason: "already offloaded",
		},
		{
			name: "anonymous",
			upload: func(t *testing.T, f *fixture) Upload {
				return Upload{File: writeFile(t, "a.mp4", mp4Header), Type: "video/mp4", PostID: "1"}
			},
			reason: "anonymous upload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			res, err := f.offloader.OffloadVideo(ctx, tt.upload(t, f), tt.userID)
			require.NoError(t, err)
			assert.True(t, res.Skipped)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Empty(t, f.videos.uploaded)
		})
	}
}

func TestOffloadVideoValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		upload  func(t *testing.T) Upload
		wantErr error
	}{
		{
			name: "missing post id",
			upload: func(t *testing.T) Upload {
				return Upload{File: writeFile(t, "a.mp4", mp4Header), Type: "video/mp4"}
			},
			wantErr: ErrMissingPostID,
		},
		{
			name: "missing file",
			upload: func(t *testing.T) Upload {
				return Upload{File: filepath.Join(t.TempDir(), "gone.mp4"), Type: "video/mp4", PostID: "1"}
			},
			wantErr: bunny.ErrInvalidFile,
		},
		{
			name: "content is not video",
			upload: func(t *testing.T) Upload {
				return Upload{File: writeFile(t, "fake.mp4", []byte("just some text\n")), Type: "video/mp4", PostID: "1"}
			},
			wantErr: ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.offloader.OffloadVideo(ctx, tt.upload(t), "7")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.videos.objects)
		})
	}
}

func TestOffloadVideoFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("collection", func(t *testing.T) {
		f := newFixture()
		f.collections.err = bunny.ErrCollectionCreationLocked
		_, err := f.offloader.OffloadVideo(ctx, Upload{File: writeFile(t, "a.mp4", mp4Header), Type: "video/mp4", PostID: "1"}, "7")
		assert.ErrorIs(t, err, bunny.ErrCollectionCreationLocked)
	})

	t.Run("upload", func(t *testing.T) {
		f := newFixture()
		f.videos.uploadErr = bunny.ErrAPIFailure
		_, err := f.offloader.OffloadVideo(ctx, Upload{File: writeFile(t, "a.mp4", mp4Header), Type: "video/mp4", PostID: "1"}, "7")
		assert.ErrorIs(t, err, bunny.ErrAPIFailure)

		_, ok, _ := f.metadata.Get(ctx, "1")
		assert.False(t, ok, "no metadata after a failed upload")
	})

	t.Run("playback url is best effort", func(t *testing.T) {
		f := newFixture()
		f.videos.playbackErr = bunny.ErrInvalidResponse
		res, err := f.offloader.OffloadVideo(ctx, Upload{File: writeFile(t, "a.mp4", mp4Header), Type: "video/mp4", PostID: "1"}, "7")
		require.NoError(t, err)
		assert.Empty(t, res.VideoURL)

		meta, ok, _ := f.metadata.Get(ctx, "1")
		require.True(t, ok)
		assert.Equal(t, "vid-1", meta.VideoGUID)
		assert.Empty(t, meta.VideoURL)
	})
}

func TestOffloadVideoDeletesLocal(t *testing.T) {
	f := newFixture(WithDeleteLocal(true))
	path := writeFile(t, "a.mp4", mp4Header)

	_, err := f.offloader.OffloadVideo(context.Background(), Upload{File: path, Type: "video/mp4", PostID: "1"}, "7")
	require.NoError(t, err)
	assert.NoFileExists(t, path)
}

func TestHandleAttachmentMetadata(t *testing.T) {
	ctx := context.Background()

	t.Run("backfills missing url", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.metadata.Put(ctx, "5", store.VideoMetadata{VideoGUID: "vid-1", CollectionID: "c"}))

		updated, err := f.offloader.HandleAttachmentMetadata(ctx, "5")
		require.NoError(t, err)
		assert.True(t, updated)

		meta, _, _ := f.metadata.Get(ctx, "5")
		assert.Equal(t, store.VideoMetadata{
			Source:       store.SourceBunny,
			VideoGUID:    "vid-1",
			CollectionID: "c",
			VideoURL:     "https://vz.example/vid-1/playlist.m3u8",
		}, meta)
	})

	t.Run("nothing to do", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.metadata.Put(ctx, "6", store.VideoMetadata{VideoGUID: "v", VideoURL: "https://x"}))

		for _, postID := range []string{"6", "unknown"} {
			updated, err := f.offloader.HandleAttachmentMetadata(ctx, postID)
			require.NoError(t, err)
			assert.False(t, updated)
		}
	})

	t.Run("url unavailable", func(t *testing.T) {
		f := newFixture()
		f.videos.playbackErr = bunny.ErrInvalidResponse
		require.NoError(t, f.metadata.Put(ctx, "5", store.VideoMetadata{VideoGUID: "vid-1"}))

		updated, err := f.offloader.HandleAttachmentMetadata(ctx, "5")
		assert.ErrorIs(t, err, bunny.ErrInvalidResponse)
		assert.False(t, updated)
	})
}

func TestForgetAttachment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	path := writeFile(t, "clip.mp4", mp4Header)
	upload := Upload{File: path, Type: "video/mp4", PostID: "12"}

	_, err := f.offloader.OffloadVideo(ctx, upload, "7")
	require.NoError(t, err)

	forgotten, err := f.offloader.ForgetAttachment(ctx, "12")
	require.NoError(t, err)
	assert.True(t, forgotten)
	_, ok, err := f.metadata.Get(ctx, "12")
	require.NoError(t, err)
	assert.False(t, ok)

	// a forgotten attachment is offloaded again instead of skipped
	res, err := f.offloader.OffloadVideo(ctx, upload, "7")
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	forgotten, err = f.offloader.ForgetAttachment(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, forgotten)

	_, err = f.offloader.ForgetAttachment(ctx, "")
	assert.ErrorIs(t, err, ErrMissingPostID)
}

func TestWaitForEncoding(t *testing.T) {
	f := newFixture(WithConcurrency(2))
	errStatus := errors.New("status unavailable")
	f.videos.statuses["a"] = []bunny.VideoStatus{bunny.VideoStatusUploaded, bunny.VideoStatusTranscoding, bunny.VideoStatusFinished}
	f.videos.statuses["b"] = []bunny.VideoStatus{bunny.VideoStatusError}
	f.videos.statusErr["c"] = errStatus

	results, err := f.offloader.WaitForEncoding(context.Background(), []string{"a", "b", "c"}, time.Millisecond)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, bunny.VideoStatusFinished, results["a"].Status)
	assert.Equal(t, int64(100), results["a"].Progress)
	assert.True(t, results["a"].Done())
	assert.Equal(t, 3, f.videos.polls["a"])

	assert.Equal(t, bunny.VideoStatusError, results["b"].Status)
	assert.True(t, results["b"].Done())

	assert.ErrorIs(t, results["c"].Err, errStatus)
	assert.False(t, results["c"].Done())
}

func TestWaitForEncodingStopsOnContext(t *testing.T) {
	f := newFixture()
	f.videos.statuses["slow"] = []bunny.VideoStatus{bunny.VideoStatusProcessing}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	results, err := f.offloader.WaitForEncoding(ctx, []string{"slow"}, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, bunny.VideoStatusProcessing, results["slow"].Status)
	assert.ErrorIs(t, results["slow"].Err, context.DeadlineExceeded)
}

func TestWaitForEncodingEmpty(t *testing.T) {
	results, err := newFixture().offloader.WaitForEncoding(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
