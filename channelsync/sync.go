package channelsync

import (
	"context"
	"fmt"
	"time"

	"ytoutlier/storage"
)

// SyncResult is the outcome of one channel sync. Counts reflect the steps
// that completed before any failure.
type SyncResult struct {
	Success            bool          `json:"success"`
	ChannelID          string        `json:"channelId"`
	VideosAdded        int           `json:"videosAdded"`
	VideosUpdated      int           `json:"videosUpdated"`
	OutliersFound      int           `json:"outliersFound"`
	TranscriptsFetched int           `json:"transcriptsFetched"`
	Error              string        `json:"error,omitempty"`
	Duration           time.Duration `json:"duration"`
}

func failedResult(channelID string, err error) SyncResult {
	return SyncResult{ChannelID: channelID, Error: err.Error()}
}

// SyncChannel ingests, rescores and backfills one channel, then stamps its
// last sync time. It never returns an error or panics: failures, including
// recovered panics, are reported in the result.
func (s *Syncer) SyncChannel(ctx context.Context, channelID string) (res SyncResult) {
	start := time.Now()
	res.ChannelID = channelID
	log := s.log.With().Str("channel_id", channelID).Logger()

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Error().Str("panic", fmt.Sprint(r)).Msg("channel sync panicked")
		}
		res.Duration = time.Since(start)
		s.opts.Metrics.ObserveSync(res.Success, res.Duration)
	}()

	if s.opts.ChannelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ChannelTimeout)
		defer cancel()
	}

	if err := s.syncChannel(ctx, channelID, &res); err != nil {
		res.Error = err.Error()
		log.Error().Err(err).Msg("channel sync failed")
		return res
	}

	res.Success = true
	log.Info().
		Int("added", res.VideosAdded).
		Int("updated", res.VideosUpdated).
		Int("outliers", res.OutliersFound).
		Int("transcripts", res.TranscriptsFetched).
		Dur("duration", time.Since(start)).
		Msg("channel synced")
	return res
}

func (s *Syncer) syncChannel(ctx context.Context, channelID string, res *SyncResult) error {
	ingest, err := s.Ingest(ctx, channelID)
	res.VideosAdded = ingest.Added
	res.VideosUpdated = ingest.Updated
	if err != nil {
		return err
	}

	if _, err := s.Rescore(ctx, channelID); err != nil {
		return err
	}

	outliers, err := s.store.CountOutliers(ctx, channelID)
	if err != nil {
		return fmt.Errorf("count outliers: %w", err)
	}
	res.OutliersFound = outliers

	backfill, err := s.Backfill(ctx, channelID)
	res.TranscriptsFetched = backfill.Fetched
	if err != nil {
		return err
	}

	now := s.opts.Now()
	if err := s.store.UpdateChannel(ctx, channelID, storage.ChannelPatch{LastSyncedAt: &now}); err != nil {
		return fmt.Errorf("save last synced time: %w", err)
	}
	return nil
}
