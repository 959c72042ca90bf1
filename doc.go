// Package ytoutlier tracks YouTube channels and flags their outlier videos:
// uploads whose views and engagement are far above the channel's own
// baseline.
//
// Overview
//
// A sync of one channel runs four steps:
//
//   - Ingest: fetch the channel's most recent uploads from the YouTube Data
//     API and reconcile them with the store
//   - Rescore: recompute the channel baseline (mean views and mean
//     engagement rate) and score every stored video against it
//   - Count the channel's outliers
//   - Backfill: fetch transcripts for outliers that have none
//
// A video's score is 0.6 times its view ratio plus 0.4 times its
// engagement ratio against the baseline; a score of 2.0 or more makes it an
// outlier.
//
// Quick Start
//
//	store, err := storage.NewJSONStore("ytoutlier-store.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	videos, err := youtube.NewDataAPIProvider(ctx, youtube.DataAPIConfig{
//		APIKey: os.Getenv("YTOUTLIER_YOUTUBE_API_KEY"),
//		Quota:  youtube.NewQuotaTracker(youtube.DefaultDailyQuota, 0),
//		Retry:  retry.DefaultConfig(),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	transcripts := youtube.NewTimedtextProvider(youtube.TimedtextConfig{})
//
//	syncer := channelsync.New(store, videos, transcripts, channelsync.Options{})
//	res := syncer.SyncChannel(ctx, channelID)
//	fmt.Printf("%d new videos, %d outliers\n", res.VideosAdded, res.OutliersFound)
//
// Scores can be rendered with outlier.FormatScore ("2.5x") and bucketed
// with outlier.TierFor.
//
// Configuration
//
// The ytoutlier command reads its settings from defaults, an optional
// ytoutlier.yaml (or .json/.toml) in the working directory or
// ~/.config/ytoutlier, and YTOUTLIER_* environment variables, e.g.:
//
//   - YTOUTLIER_YOUTUBE_API_KEY: Data API key
//   - YTOUTLIER_DATABASE_URL: Postgres URL; the JSON file store is used when empty
//   - YTOUTLIER_STORE_PATH: JSON file store location
//   - YTOUTLIER_CONCURRENCY: channels synced at once in a batch
//   - YTOUTLIER_STALE_AFTER: age after which a channel is due again
//
// Error Handling
//
// Sentinel errors from the sub-packages are re-exported here:
//
//	if errors.Is(err, ytoutlier.ErrQuotaExhausted) {
//		fmt.Println("out of Data API quota until midnight Pacific")
//	}
//
// Sub-packages
//
//   - outlier: scoring and tiers
//   - channelsync: ingestion, rescoring, transcript backfill and batch scheduling
//   - youtube: Data API and timedtext providers, quota tracking
//   - storage, storage/postgres: persistence
//   - config: configuration management
package ytoutlier
