package ytoutlier

import (
	"ytoutlier/channelsync"
	"ytoutlier/internal/retry"
	"ytoutlier/storage"
	"ytoutlier/youtube"
)

// Error handling types exported for library users.
//
// Using errors.Is() for sentinel errors:
//
//	if errors.Is(err, ytoutlier.ErrChannelNotFound) {
//		fmt.Println("Channel not tracked")
//	}
//
// Using errors.As() for wrapped errors:
//
//	var perr *ytoutlier.ProviderError
//	if errors.As(err, &perr) {
//		fmt.Printf("%s failed for %s: %v\n", perr.Source, perr.Target, perr.Err)
//	}

// Type aliases for convenient error handling.
type (
	// ProviderError wraps a YouTube provider failure with its source and target ID.
	ProviderError = youtube.ProviderError
	// SyncProviderError wraps the provider failure that ended an ingest.
	SyncProviderError = channelsync.ProviderError
	// RetryableError wraps errors that occurred after retries were exhausted.
	RetryableError = retry.RetryableError
	// StorageError wraps errors during storage operations.
	StorageError = storage.StorageError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrChannelNotFound indicates the channel is not tracked.
	ErrChannelNotFound = channelsync.ErrChannelNotFound
	// ErrNoVideosFound indicates the provider listed no videos for the channel.
	ErrNoVideosFound = channelsync.ErrNoVideosFound

	// ErrYouTubeChannelNotFound indicates YouTube has no such channel.
	ErrYouTubeChannelNotFound = youtube.ErrChannelNotFound
	// ErrQuotaExhausted indicates the daily Data API quota is spent.
	ErrQuotaExhausted = youtube.ErrQuotaExhausted
	// ErrRateLimited indicates the operation was rate limited.
	ErrRateLimited = youtube.ErrRateLimited
	// ErrNetworkTimeout indicates a network timeout occurred.
	ErrNetworkTimeout = youtube.ErrNetworkTimeout

	// Storage errors
	// ErrNotFound indicates an entity was not found in storage.
	ErrNotFound = storage.ErrNotFound
	// ErrAlreadyExists indicates an entity already exists in storage.
	ErrAlreadyExists = storage.ErrAlreadyExists
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = storage.ErrInvalidInput
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = storage.ErrStorageCorrupt
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = storage.ErrLockTimeout
)

// IsRetryable determines if an error should be retried.
// It returns false for permanent errors and context cancellation.
func IsRetryable(err error) bool {
	return retry.IsRetryable(err)
}
