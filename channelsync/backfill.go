package channelsync

import (
	"context"
	"fmt"

	"ytoutlier/internal/metrics"
	"ytoutlier/storage"
)

// BackfillResult counts transcript outcomes for one channel.
type BackfillResult struct {
	Fetched int
	// Unavailable is the number of videos the provider had no transcript for.
	Unavailable int
	Failures    []ItemFailure
}

// Backfill fetches transcripts for the channel's outliers that have none,
// one video at a time with TranscriptDelay between requests. Provider
// errors are recorded and skipped; only store listing errors and context
// cancellation end the pass early.
func (s *Syncer) Backfill(ctx context.Context, channelID string) (BackfillResult, error) {
	var res BackfillResult

	videos, err := s.store.ListOutliersMissingTranscript(ctx, channelID)
	if err != nil {
		return res, fmt.Errorf("list outliers missing transcript: %w", err)
	}

	log := s.log.With().Str("channel_id", channelID).Logger()
	for i, v := range videos {
		if i > 0 {
			if err := s.opts.Sleep(ctx, s.opts.TranscriptDelay); err != nil {
				return res, err
			}
		}

		text, err := s.transcripts.FetchTranscript(ctx, v.YouTubeID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Warn().Err(err).Str("video_id", v.YouTubeID).Msg("fetch transcript failed")
			res.Failures = append(res.Failures, ItemFailure{ID: v.YouTubeID, Err: err})
		case text == "":
			res.Unavailable++
		default:
			if err := s.store.UpdateVideo(ctx, v.ID, storage.TranscriptPatch(text, s.opts.Now())); err != nil {
				log.Warn().Err(err).Str("video_id", v.YouTubeID).Msg("save transcript failed")
				res.Failures = append(res.Failures, ItemFailure{ID: v.YouTubeID, Err: err})
				continue
			}
			res.Fetched++
		}
	}

	s.opts.Metrics.Transcripts(metrics.TranscriptFetched, res.Fetched)
	s.opts.Metrics.Transcripts(metrics.TranscriptUnavailable, res.Unavailable)
	s.opts.Metrics.Transcripts(metrics.TranscriptFailed, len(res.Failures))
	return res, nil
}
