package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"ytoutlier/channelsync"
	"ytoutlier/config"
	httpclient "ytoutlier/http"
	"ytoutlier/internal/logging"
	"ytoutlier/internal/metrics"
	"ytoutlier/storage"
	"ytoutlier/storage/postgres"
	"ytoutlier/youtube"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store storage.Store

	quota       *youtube.QuotaTracker
	dataAPI     *youtube.DataAPIProvider
	transcripts *youtube.TimedtextProvider

	registry *prometheus.Registry
	metrics  *metrics.SyncMetrics
}

// newApp loads configuration and opens the store. YouTube providers are
// only created when withYouTube is set, since they need an API key.
func newApp(ctx context.Context, flags *rootFlags, service string, withYouTube bool) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}

	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	if service == "serve" {
		a.log = logging.New(level, "ytoutlier", os.Stderr)
	} else {
		a.log = logging.Console(level, os.Stderr)
	}

	a.store, err = openStore(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}

	if withYouTube {
		if err := a.initYouTube(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Debug().Str("path", cfg.StorePath).Msg("using JSON file store")
		return storage.NewJSONStore(cfg.StorePath)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	version, err := postgres.Migrate(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Debug().Uint("schema_version", version).Msg("using postgres store")
	return postgres.New(pool), nil
}

func (a *app) initYouTube(ctx context.Context) error {
	if a.cfg.YouTubeAPIKey == "" {
		return errors.New("youtube_api_key is required (set YTOUTLIER_YOUTUBE_API_KEY)")
	}

	httpCfg := a.cfg.HTTPConfig()
	a.transcripts = youtube.NewTimedtextProvider(youtube.TimedtextConfig{
		Language: a.cfg.TranscriptLanguage,
		HTTP:     httpCfg,
		Logger:   a.log,
	})

	a.quota = youtube.NewQuotaTracker(a.cfg.QuotaLimit, a.cfg.QuotaReserve)
	dataAPI, err := youtube.NewDataAPIProvider(ctx, youtube.DataAPIConfig{
		APIKey:      a.cfg.YouTubeAPIKey,
		Quota:       a.quota,
		Retry:       a.cfg.RetryConfig(),
		RateLimiter: httpclient.NewRateLimiter(httpCfg.RateLimiter),
		Logger:      a.log,
	})
	if err != nil {
		return err
	}
	a.dataAPI = dataAPI

	a.metrics, err = metrics.NewSyncMetrics(a.registry, func() float64 {
		return float64(a.quota.Remaining())
	})
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	return nil
}

func (a *app) syncer() *channelsync.Syncer {
	opts := a.cfg.SyncOptions()
	opts.Logger = a.log
	opts.Metrics = a.metrics
	return channelsync.New(a.store, a.dataAPI, a.transcripts, opts)
}

func (a *app) Close() {
	if a.transcripts != nil {
		a.transcripts.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close store")
		}
	}
}
