// Package storage defines the persisted channel and video model and the
// store contracts the sync pipeline runs against.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists indicates the entity already exists in storage.
	ErrAlreadyExists = errors.New("storage: already exists")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StorageError wraps storage errors with operation and entity context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("create", "read", "update", "delete", "list").
	Op string
	// Entity is the entity type ("channel", "video", "store").
	Entity string
	// ID is the entity ID if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the persistence contract of the sync pipeline.
// Implementations must be safe for concurrent use.
type Store interface {
	ChannelStore
	VideoStore

	// Close releases any resources held by the store.
	Close() error
}

// ChannelStore handles channel operations.
type ChannelStore interface {
	// CreateChannel saves a new channel. An empty ID is assigned by the store.
	CreateChannel(ctx context.Context, channel *Channel) error
	// GetChannel retrieves a channel by its internal ID.
	GetChannel(ctx context.Context, id string) (*Channel, error)
	// GetChannelByYouTubeID retrieves a channel by its YouTube ID.
	GetChannelByYouTubeID(ctx context.Context, youtubeID string) (*Channel, error)
	// UpdateChannel applies a partial update and stamps UpdatedAt.
	UpdateChannel(ctx context.Context, id string, patch ChannelPatch) error
	// DeleteChannel removes a channel and all of its videos.
	DeleteChannel(ctx context.Context, id string) error
	// ListChannels retrieves all channels ordered by creation time.
	ListChannels(ctx context.Context) ([]*Channel, error)
	// ListChannelsDueForSync returns IDs of channels never synced or last
	// synced before staleBefore, never-synced first, then oldest first.
	ListChannelsDueForSync(ctx context.Context, staleBefore time.Time, limit int) ([]string, error)
}

// VideoStore handles video operations.
type VideoStore interface {
	// CreateVideo saves a new video. (ChannelID, YouTubeID) must be unique.
	CreateVideo(ctx context.Context, video *Video) error
	// GetVideo retrieves a video by its internal ID.
	GetVideo(ctx context.Context, id string) (*Video, error)
	// GetVideoByYouTubeID retrieves a video by its natural key.
	GetVideoByYouTubeID(ctx context.Context, channelID, youtubeID string) (*Video, error)
	// UpdateVideo applies a partial update and stamps UpdatedAt.
	// A transcript that is already set is never replaced.
	UpdateVideo(ctx context.Context, id string, patch VideoPatch) error
	// ListVideosByChannel retrieves all videos of a channel, newest first.
	ListVideosByChannel(ctx context.Context, channelID string) ([]*Video, error)
	// ListOutliersMissingTranscript returns outlier videos of a channel
	// that have no transcript yet.
	ListOutliersMissingTranscript(ctx context.Context, channelID string) ([]*Video, error)
	// CountOutliers returns the number of outlier videos of a channel.
	CountOutliers(ctx context.Context, channelID string) (int, error)
}
