// Package channelsync keeps tracked channels up to date: it reconciles
// fetched videos into the store, rescores every video against the channel
// baseline, backfills transcripts for outliers and schedules syncs in
// batches.
package channelsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ytoutlier/internal/metrics"
	"ytoutlier/storage"
	"ytoutlier/youtube"
)

// Defaults for Options fields left at zero.
const (
	DefaultMaxVideos       = 50
	DefaultTranscriptDelay = 500 * time.Millisecond
	DefaultBatchPause      = 2 * time.Second
	DefaultConcurrency     = 3
	DefaultStaleAfter      = 6 * time.Hour
)

var (
	// ErrChannelNotFound is returned when the channel ID is not in the store.
	ErrChannelNotFound = errors.New("channelsync: channel not found")
	// ErrNoVideosFound is returned when the provider lists no videos.
	ErrNoVideosFound = errors.New("channelsync: no videos found")
)

// ProviderError wraps a video provider failure. Its message is the
// provider's message unchanged.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return e.Err.Error() }

func (e *ProviderError) Unwrap() error { return e.Err }

// ItemFailure is one video that could not be processed.
type ItemFailure struct {
	// ID is the YouTube video ID.
	ID  string
	Err error
}

func (f ItemFailure) Error() string {
	return fmt.Sprintf("video %s: %v", f.ID, f.Err)
}

func (f ItemFailure) Unwrap() error { return f.Err }

// Options tunes a Syncer. Zero values take the package defaults.
type Options struct {
	// MaxVideos is how many recent uploads are fetched per sync.
	MaxVideos int
	// TranscriptDelay separates consecutive transcript requests. Negative
	// disables the delay.
	TranscriptDelay time.Duration
	// BatchPause separates consecutive chunks in SyncChannels. Negative
	// disables the pause.
	BatchPause time.Duration
	// Concurrency is the default chunk size for SyncChannels.
	Concurrency int
	// StaleAfter is how long a sync stays fresh.
	StaleAfter time.Duration
	// ChannelTimeout bounds one SyncChannel call. Zero means no limit.
	ChannelTimeout time.Duration

	Logger  zerolog.Logger
	Metrics *metrics.SyncMetrics

	// Now and Sleep replace the clock in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o *Options) setDefaults() {
	if o.MaxVideos <= 0 {
		o.MaxVideos = DefaultMaxVideos
	}
	if o.TranscriptDelay < 0 {
		o.TranscriptDelay = 0
	} else if o.TranscriptDelay == 0 {
		o.TranscriptDelay = DefaultTranscriptDelay
	}
	if o.BatchPause < 0 {
		o.BatchPause = 0
	} else if o.BatchPause == 0 {
		o.BatchPause = DefaultBatchPause
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleep
	}
}

// Syncer runs channel syncs against a store and the YouTube providers.
// It is safe for concurrent use.
type Syncer struct {
	store       storage.Store
	videos      youtube.VideoProvider
	transcripts youtube.TranscriptProvider
	opts        Options
	log         zerolog.Logger

	// syncOne is SyncChannel, swapped out in tests.
	syncOne func(ctx context.Context, channelID string) SyncResult
}

// New creates a Syncer.
func New(store storage.Store, videos youtube.VideoProvider, transcripts youtube.TranscriptProvider, opts Options) *Syncer {
	opts.setDefaults()
	s := &Syncer{
		store:       store,
		videos:      videos,
		transcripts: transcripts,
		opts:        opts,
		log:         opts.Logger.With().Str("component", "channelsync").Logger(),
	}
	s.syncOne = s.SyncChannel
	return s
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
