package channelsync

import (
	"context"
	"errors"
	"fmt"
	"math"

	"ytoutlier/outlier"
	"ytoutlier/storage"
)

// RescoreResult describes one rescoring pass.
type RescoreResult struct {
	Baseline outlier.ChannelAverage
	// Scored is the number of videos whose score was persisted.
	Scored   int
	Outliers int
	Failures []ItemFailure
}

// Rescore recomputes the channel baseline from all stored videos, saves it
// on the channel and scores every video against that one snapshot. All
// videos are attempted; persistence failures are returned joined after the
// pass.
func (s *Syncer) Rescore(ctx context.Context, channelID string) (RescoreResult, error) {
	var res RescoreResult

	videos, err := s.store.ListVideosByChannel(ctx, channelID)
	if err != nil {
		return res, fmt.Errorf("list videos: %w", err)
	}
	if len(videos) == 0 {
		return res, nil
	}

	ms := make([]outlier.VideoMetrics, len(videos))
	for i, v := range videos {
		ms[i] = v.Metrics()
	}
	res.Baseline = outlier.Average(ms)

	avgViews := int64(math.Round(res.Baseline.AvgViews))
	avgRate := res.Baseline.AvgEngagementRate
	if err := s.store.UpdateChannel(ctx, channelID, storage.ChannelPatch{
		AvgViewCount:      &avgViews,
		AvgEngagementRate: &avgRate,
	}); err != nil {
		return res, fmt.Errorf("save channel baseline: %w", err)
	}

	for i, v := range videos {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		result := outlier.Score(ms[i], res.Baseline)
		if err := s.store.UpdateVideo(ctx, v.ID, storage.ScorePatch(result)); err != nil {
			s.log.Warn().Err(err).Str("channel_id", channelID).Str("video_id", v.YouTubeID).Msg("save score failed")
			res.Failures = append(res.Failures, ItemFailure{ID: v.YouTubeID, Err: err})
			continue
		}
		res.Scored++
		if result.IsOutlier {
			res.Outliers++
		}
	}

	if len(res.Failures) > 0 {
		errs := make([]error, len(res.Failures))
		for i, f := range res.Failures {
			errs[i] = f
		}
		return res, fmt.Errorf("rescore: %d of %d videos not saved: %w", len(res.Failures), len(videos), errors.Join(errs...))
	}
	return res, nil
}
