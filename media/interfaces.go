package media

import (
	"context"

	"github.com/s0up4200/wpbs/bunny"
)

// CollectionCreator resolves a user's collection on Bunny Stream.
// *bunny.Collections implements it.
type CollectionCreator interface {
	CreateCollection(ctx context.Context, userID string, additional map[string]any) (string, error)
}

// VideoService is the part of the Stream video API the offloader drives.
// *bunny.Videos implements it.
type VideoService interface {
	CreateVideoObject(ctx context.Context, title, collectionID string) (*bunny.Video, error)
	UploadVideo(ctx context.Context, filePath, guidOrTitle string) (bunny.Response, error)
	GetPlaybackURL(ctx context.Context, guid string) (string, error)
	GetVideoStatus(ctx context.Context, guid string) (bunny.VideoStatus, int64, error)
}

var (
	_ CollectionCreator = (*bunny.Collections)(nil)
	_ VideoService      = (*bunny.Videos)(nil)
)
