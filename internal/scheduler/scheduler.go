// Package scheduler runs due-channel syncs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"ytoutlier/channelsync"
)

// DueSyncer syncs the channels that are due.
type DueSyncer interface {
	SyncDue(ctx context.Context, limit int) ([]channelsync.SyncResult, error)
}

// Service triggers SyncDue on a schedule. A run still in progress when
// the next one is due causes that tick to be skipped.
type Service struct {
	syncer DueSyncer
	limit  int
	cron   *cron.Cron
	log    zerolog.Logger

	// job is Run behind the recover and skip-if-running chain, shared by
	// scheduled ticks and RunNow.
	job cron.Job
	// wg tracks RunNow goroutines.
	wg sync.WaitGroup

	// ctx is cancelled by Stop to abort a run in progress.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates a scheduler for the given cron spec, e.g. "@every 30m"
// or "0 */2 * * *".
func NewService(syncer DueSyncer, schedule string, limit int, log zerolog.Logger) (*Service, error) {
	s := &Service{
		syncer: syncer,
		limit:  limit,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.job = cron.NewChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})).Then(cron.FuncJob(s.Run))
	s.cron = cron.New()
	if _, err := s.cron.AddJob(schedule, s.job); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing on the schedule.
func (s *Service) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// RunNow starts a due-channel sync in the background. It is skipped if a
// scheduled run is still in progress, and scheduled ticks are skipped
// while it runs.
func (s *Service) RunNow() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
}

// Run performs one due-channel sync in the caller's goroutine, outside
// the schedule's overlap protection.
func (s *Service) Run() {
	results, err := s.syncer.SyncDue(s.ctx, s.limit)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled sync failed")
		return
	}
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.log.Info().Int("channels", len(results)).Int("failed", failed).Msg("scheduled sync finished")
}

// Stop cancels a running sync and waits for scheduled and RunNow runs to
// return or for ctx to end.
func (s *Service) Stop(ctx context.Context) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	s.log.Info().Msg("scheduler stopped")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
