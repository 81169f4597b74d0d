package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/wpbs/bunny"
	"github.com/s0up4200/wpbs/metrics"
	"github.com/s0up4200/wpbs/store"
)

// Polling defaults for WaitForEncoding
const (
	DefaultPollInterval = 5 * time.Second
	DefaultConcurrency  = 5
)

// Offloader moves uploaded videos from local disk to Bunny Stream and
// remembers where they went.
type Offloader struct {
	collections CollectionCreator
	videos      VideoService
	links       store.LinkStore
	metadata    store.MetadataStore
	deleteLocal bool
	concurrency int
	logger      zerolog.Logger
}

// Option configures an Offloader
type Option func(*Offloader)

// WithDeleteLocal removes the local file after a successful upload
func WithDeleteLocal(enabled bool) Option {
	return func(o *Offloader) {
		o.deleteLocal = enabled
	}
}

// WithConcurrency bounds the number of videos polled at once
func WithConcurrency(n int) Option {
	return func(o *Offloader) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// NewOffloader creates an offloader
func NewOffloader(
	collections CollectionCreator,
	videos VideoService,
	links store.LinkStore,
	metadata store.MetadataStore,
	logger zerolog.Logger,
	opts ...Option,
) *Offloader {
	o := &Offloader{
		collections: collections,
		videos:      videos,
		links:       links,
		metadata:    metadata,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OffloadVideo uploads a video attachment into the user's collection and
// stores its metadata. Non-video uploads, anonymous uploads and attachments
// that already have a remote video are skipped without error.
func (o *Offloader) OffloadVideo(ctx context.Context, up Upload, userID string) (*Result, error) {
	result, err := o.offload(ctx, up, userID)
	switch {
	case err != nil:
		metrics.VideosOffloaded.WithLabelValues("failed").Inc()
		o.logger.Error().Err(err).Str("post_id", up.PostID).Str("file", up.File).Msg("Video offload failed")
	case result.Skipped:
		metrics.VideosOffloaded.WithLabelValues("skipped").Inc()
		o.logger.Debug().Str("post_id", up.PostID).Str("reason", result.Reason).Msg("Skipping offload")
	default:
		metrics.VideosOffloaded.WithLabelValues("uploaded").Inc()
		o.logger.Info().
			Str("post_id", up.PostID).
			Str("video_guid", result.VideoGUID).
			Str("collection_id", result.CollectionID).
			Msg("Video offloaded")
	}
	return result, err
}

func (o *Offloader) offload(ctx context.Context, up Upload, userID string) (*Result, error) {
	result := &Result{PostID: up.PostID}
	skip := func(reason string) (*Result, error) {
		result.Skipped = true
		result.Reason = reason
		return result, nil
	}

	if !strings.HasPrefix(up.Type, "video/") {
		return skip("not a video")
	}
	if up.PostID == "" {
		return nil, ErrMissingPostID
	}

	meta, ok, err := o.metadata.Get(ctx, up.PostID)
	if err != nil {
		return nil, fmt.Errorf("read metadata for post %s: %w", up.PostID, err)
	}
	if ok && meta.Offloaded() {
		result.VideoGUID = meta.VideoGUID
		result.CollectionID = meta.CollectionID
		result.VideoURL = meta.VideoURL
		return skip("already offloaded")
	}
	if userID == "" {
		return skip("anonymous upload")
	}

	if err := validateVideoFile(up.File); err != nil {
		return nil, err
	}

	collectionID, err := o.resolveCollection(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.CollectionID = collectionID

	video, err := o.videos.CreateVideoObject(ctx, videoTitle(up.File), collectionID)
	if err != nil {
		return nil, err
	}
	result.VideoGUID = video.GUID

	if _, err := o.videos.UploadVideo(ctx, up.File, video.GUID); err != nil {
		return nil, err
	}

	// encoding may not have produced a playlist yet; the URL is backfilled later
	if url, err := o.videos.GetPlaybackURL(ctx, video.GUID); err != nil {
		o.logger.Warn().Err(err).Str("video_guid", video.GUID).Msg("Playback URL not available yet")
	} else {
		result.VideoURL = url
	}

	err = o.metadata.Put(ctx, up.PostID, store.VideoMetadata{
		Source:       store.SourceBunny,
		VideoGUID:    result.VideoGUID,
		CollectionID: collectionID,
		VideoURL:     result.VideoURL,
	})
	if err != nil {
		return nil, fmt.Errorf("store metadata for post %s: %w", up.PostID, err)
	}

	if o.deleteLocal {
		if err := os.Remove(up.File); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn().Err(err).Str("file", up.File).Msg("Failed to delete local copy")
		}
	}
	return result, nil
}

func (o *Offloader) resolveCollection(ctx context.Context, userID string) (string, error) {
	collectionID, err := o.links.Get(ctx, userID)
	if err != nil {
		o.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to read collection link, resolving remotely")
	}
	if collectionID != "" {
		return collectionID, nil
	}
	return o.collections.CreateCollection(ctx, userID, nil)
}

// validateVideoFile checks the file exists and sniffs a video MIME type
// from its content
func validateVideoFile(path string) error {
	if path == "" {
		return bunny.ErrInvalidFile
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", bunny.ErrInvalidFile, path)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", bunny.ErrInvalidFile, err)
	}
	if !strings.HasPrefix(mtype.String(), "video/") {
		return fmt.Errorf("%w: detected %s", ErrUnsupportedType, mtype.String())
	}
	return nil
}

func videoTitle(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HandleAttachmentMetadata fills in the playback URL of an attachment that
// was offloaded before encoding produced one. It reports whether the
// metadata changed.
func (o *Offloader) HandleAttachmentMetadata(ctx context.Context, postID string) (bool, error) {
	meta, ok, err := o.metadata.Get(ctx, postID)
	if err != nil {
		return false, fmt.Errorf("read metadata for post %s: %w", postID, err)
	}
	if !ok || !meta.Offloaded() || meta.VideoURL != "" {
		return false, nil
	}

	url, err := o.videos.GetPlaybackURL(ctx, meta.VideoGUID)
	if err != nil {
		o.logger.Warn().Err(err).Str("post_id", postID).Str("video_guid", meta.VideoGUID).Msg("Playback URL not found")
		return false, err
	}

	meta.Source = store.SourceBunny
	meta.VideoURL = url
	if err := o.metadata.Put(ctx, postID, meta); err != nil {
		return false, fmt.Errorf("store metadata for post %s: %w", postID, err)
	}
	o.logger.Debug().Str("post_id", postID).Str("video_url", url).Msg("Backfilled playback URL")
	return true, nil
}

// ForgetAttachment drops the stored video metadata of an attachment so it
// can be offloaded again. The Stream video itself is left untouched.
func (o *Offloader) ForgetAttachment(ctx context.Context, postID string) (bool, error) {
	if postID == "" {
		return false, ErrMissingPostID
	}
	meta, ok, err := o.metadata.Get(ctx, postID)
	if err != nil {
		return false, fmt.Errorf("read metadata for post %s: %w", postID, err)
	}
	if !ok {
		return false, nil
	}
	if err := o.metadata.Delete(ctx, postID); err != nil {
		return false, fmt.Errorf("delete metadata for post %s: %w", postID, err)
	}
	o.logger.Info().Str("post_id", postID).Str("video_guid", meta.VideoGUID).Msg("Forgot offloaded video")
	return true, nil
}

// WaitForEncoding polls every guid until it reaches a terminal status.
// Status errors end polling for that video only and are reported in its
// result. When ctx ends every unfinished video keeps its last status with
// ctx's error, and ctx's error is returned.
func (o *Offloader) WaitForEncoding(ctx context.Context, guids []string, interval time.Duration) (map[string]EncodeResult, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	results := make(map[string]EncodeResult, len(guids))
	if len(guids) == 0 {
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	var mu sync.Mutex
	record := func(r EncodeResult) {
		mu.Lock()
		results[r.GUID] = r
		mu.Unlock()
	}
	// interrupted keeps the last observed status
	interrupted := func(guid string, err error) error {
		mu.Lock()
		r := results[guid]
		r.GUID = guid
		r.Err = err
		results[guid] = r
		mu.Unlock()
		return err
	}

	for _, guid := range guids {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				status, progress, err := o.videos.GetVideoStatus(ctx, guid)
				if err != nil {
					if ctx.Err() != nil {
						return interrupted(guid, ctx.Err())
					}
					o.logger.Warn().Err(err).Str("video_guid", guid).Msg("Failed to get video status")
					record(EncodeResult{GUID: guid, Err: err})
					return nil
				}

				record(EncodeResult{GUID: guid, Status: status, Progress: progress})
				if status.Terminal() {
					o.logger.Info().Str("video_guid", guid).Stringer("status", status).Msg("Encoding finished")
					return nil
				}
				o.logger.Debug().Str("video_guid", guid).Stringer("status", status).Int64("progress", progress).Msg("Waiting for encoding")

				select {
				case <-ctx.Done():
					return interrupted(guid, ctx.Err())
				case <-ticker.C:
				}
			}
		})
	}

	err := g.Wait()
	return results, err
}
