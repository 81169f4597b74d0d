package media

import (
	"errors"

	"github.com/s0up4200/wpbs/bunny"
)

// Upload describes a file that has just been added to the media library.
type Upload struct {
	File   string
	Type   string // MIME type reported by the uploader
	PostID string
}

// Result reports what OffloadVideo did with an upload.
type Result struct {
	PostID       string
	VideoGUID    string
	CollectionID string
	VideoURL     string
	Skipped      bool
	Reason       string
}

// EncodeResult is the last observed state of one video.
type EncodeResult struct {
	GUID     string
	Status   bunny.VideoStatus
	Progress int64
	Err      error
}

// Done reports whether encoding reached a terminal status
func (r EncodeResult) Done() bool {
	return r.Err == nil && r.Status.Terminal()
}

var (
	ErrMissingPostID   = errors.New("missing post ID for video upload")
	ErrUnsupportedType = errors.New("file content is not a video")
)
