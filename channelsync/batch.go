package channelsync

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// SyncChannels syncs ids in consecutive chunks of concurrency channels.
// Channels in a chunk run in parallel and the chunk waits for all of them,
// whatever their outcome, before pausing BatchPause and starting the next.
// Results are in input order. A non-positive concurrency uses the
// configured default. If ctx ends between chunks the channels not yet
// started get failed results carrying the context error.
func (s *Syncer) SyncChannels(ctx context.Context, ids []string, concurrency int) []SyncResult {
	if concurrency <= 0 {
		concurrency = s.opts.Concurrency
	}

	results := make([]SyncResult, len(ids))
	offset := 0
	for i, batch := range chunk(ids, concurrency) {
		if i > 0 {
			if err := s.opts.Sleep(ctx, s.opts.BatchPause); err != nil {
				for j := offset; j < len(ids); j++ {
					results[j] = failedResult(ids[j], err)
				}
				s.log.Warn().Err(err).Int("skipped", len(ids)-offset).Msg("batch sync interrupted")
				return results
			}
		}

		// No shared cancellation: one failed channel never stops its siblings.
		var g errgroup.Group
		for j, id := range batch {
			idx := offset + j
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						results[idx] = failedResult(id, fmt.Errorf("panic: %v", r))
					}
				}()
				results[idx] = s.syncOne(ctx, id)
				return nil
			})
		}
		_ = g.Wait()
		offset += len(batch)
	}
	return results
}

// ChannelsNeedingSync returns up to limit channel IDs that were never
// synced or last synced more than StaleAfter ago, never-synced first and
// then oldest first. A non-positive limit returns all of them.
func (s *Syncer) ChannelsNeedingSync(ctx context.Context, limit int) ([]string, error) {
	staleBefore := s.opts.Now().Add(-s.opts.StaleAfter)
	ids, err := s.store.ListChannelsDueForSync(ctx, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list channels due for sync: %w", err)
	}
	return ids, nil
}

// SyncDue syncs the channels returned by ChannelsNeedingSync.
func (s *Syncer) SyncDue(ctx context.Context, limit int) ([]SyncResult, error) {
	ids, err := s.ChannelsNeedingSync(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		s.log.Debug().Msg("no channels due for sync")
		return nil, nil
	}

	results := s.SyncChannels(ctx, ids, 0)
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.log.Info().Int("channels", len(results)).Int("failed", failed).Msg("due channels synced")
	return results, nil
}

// chunk splits ids into consecutive slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}
