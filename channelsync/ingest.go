package channelsync

import (
	"context"
	"fmt"

	"ytoutlier/internal/metrics"
	"ytoutlier/outlier"
	"ytoutlier/storage"
	"ytoutlier/youtube"
)

// IngestResult counts the videos written by Ingest. Failures lists the
// videos that could not be written; they do not fail the ingest.
type IngestResult struct {
	Added    int
	Updated  int
	Failures []ItemFailure
}

// Ingest fetches the channel's recent uploads and reconciles them with the
// store. Known videos get fresh counts and engagement rate only; new videos
// are inserted unscored. If ctx ends part way, the counts so far are
// returned with ctx's error.
func (s *Syncer) Ingest(ctx context.Context, channelID string) (IngestResult, error) {
	var res IngestResult

	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		if storage.IsNotFound(err) {
			return res, fmt.Errorf("%w: %s: %w", ErrChannelNotFound, channelID, err)
		}
		return res, fmt.Errorf("load channel: %w", err)
	}

	records, err := s.videos.FetchChannelVideos(ctx, channel.YouTubeID, s.opts.MaxVideos)
	if err != nil {
		return res, &ProviderError{Err: err}
	}
	if len(records) == 0 {
		return res, ErrNoVideosFound
	}

	log := s.log.With().Str("channel_id", channelID).Logger()
	var aborted error
	for _, rec := range records {
		if aborted = ctx.Err(); aborted != nil {
			break
		}

		added, err := s.reconcile(ctx, channelID, rec)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("video_id", rec.ID).Msg("ingest video failed")
			res.Failures = append(res.Failures, ItemFailure{ID: rec.ID, Err: err})
		case added:
			res.Added++
		default:
			res.Updated++
		}
	}

	s.opts.Metrics.IngestedVideos(metrics.ActionInserted, res.Added)
	s.opts.Metrics.IngestedVideos(metrics.ActionUpdated, res.Updated)
	s.opts.Metrics.IngestedVideos(metrics.ActionFailed, len(res.Failures))

	if aborted != nil {
		return res, aborted
	}
	log.Debug().Int("added", res.Added).Int("updated", res.Updated).Int("failed", len(res.Failures)).Msg("ingest complete")
	return res, nil
}

// reconcile writes one provider record and reports whether it was new.
func (s *Syncer) reconcile(ctx context.Context, channelID string, rec youtube.VideoRecord) (bool, error) {
	m := outlier.VideoMetrics{Views: rec.ViewCount, Likes: rec.LikeCount, Comments: rec.CommentCount}

	existing, err := s.store.GetVideoByYouTubeID(ctx, channelID, rec.ID)
	if err == nil {
		return false, s.store.UpdateVideo(ctx, existing.ID, storage.MetricsPatch(m))
	}
	if !storage.IsNotFound(err) {
		return false, err
	}

	video := &storage.Video{
		ChannelID:       channelID,
		YouTubeID:       rec.ID,
		Title:           rec.Title,
		Description:     rec.Description,
		ThumbnailURL:    rec.ThumbnailURL,
		DurationSeconds: rec.DurationSeconds,
		PublishedAt:     rec.PublishedAt,
		ViewCount:       rec.ViewCount,
		LikeCount:       rec.LikeCount,
		CommentCount:    rec.CommentCount,
		EngagementRate:  outlier.EngagementRate(m),
	}
	if err := s.store.CreateVideo(ctx, video); err != nil {
		return false, err
	}
	return true, nil
}
