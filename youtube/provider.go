// Package youtube fetches channel, video and transcript data from YouTube.
//
// Two providers are included: DataAPIProvider talks to the YouTube Data API
// v3 and tracks its daily quota explicitly, TimedtextProvider downloads
// caption tracks from the public timedtext endpoint.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the providers.
var (
	ErrChannelNotFound = errors.New("youtube: channel not found")
	ErrQuotaExhausted  = errors.New("youtube: API quota exhausted")
	ErrRateLimited     = errors.New("youtube: rate limited")
	ErrNetworkTimeout  = errors.New("youtube: network timeout")
	ErrInvalidInput    = errors.New("youtube: invalid input")
)

// VideoRecord is a video as reported by the metadata provider.
type VideoRecord struct {
	ID              string
	Title           string
	Description     string
	ThumbnailURL    string
	PublishedAt     time.Time
	DurationSeconds int
	ViewCount       int64
	LikeCount       int64
	CommentCount    int64
}

// ChannelRecord is a channel as reported by the metadata provider.
type ChannelRecord struct {
	ID              string
	Title           string
	Handle          string
	Description     string
	ThumbnailURL    string
	SubscriberCount int64
	VideoCount      int64
}

// VideoProvider lists a channel's most recent uploads.
type VideoProvider interface {
	// FetchChannelVideos returns up to maxResults of the channel's newest videos.
	FetchChannelVideos(ctx context.Context, youtubeChannelID string, maxResults int) ([]VideoRecord, error)
}

// ChannelProvider looks up channel details by ID or @handle.
type ChannelProvider interface {
	FetchChannel(ctx context.Context, idOrHandle string) (*ChannelRecord, error)
}

// TranscriptProvider fetches a video's transcript. An empty string with a
// nil error means no transcript is available.
type TranscriptProvider interface {
	FetchTranscript(ctx context.Context, youtubeVideoID string) (string, error)
}

// ProviderError wraps a provider failure with the source and the ID that
// was being fetched. Use errors.As() to extract it:
//
//	var perr *youtube.ProviderError
//	if errors.As(err, &perr) {
//		fmt.Printf("%s failed for %s: %v\n", perr.Source, perr.Target, perr.Err)
//	}
type ProviderError struct {
	// Source is "data-api" or "timedtext".
	Source string
	// Target is the channel or video ID.
	Target string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("youtube: %s %s: %v", e.Source, e.Target, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
