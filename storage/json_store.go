package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	schemaVersion = "2.0"
	lockTimeout   = 5 * time.Second
)

// JSONStore implements Store using a single JSON file. It is meant for
// single-host deployments and tests; the file is held under an advisory
// lock for the lifetime of the store.
type JSONStore struct {
	path string
	lock *FileLock
	data *storeData
	mu   sync.RWMutex
	now  func() time.Time
}

type storeData struct {
	Version   string              `json:"version"`
	UpdatedAt time.Time           `json:"updated_at"`
	Channels  map[string]*Channel `json:"channels"`
	Videos    map[string]*Video   `json:"videos"`
	Indexes   *indexes            `json:"indexes"`
}

// indexes maintains lookup tables for efficient queries.
type indexes struct {
	YouTubeChannelID map[string]string   `json:"youtube_channel_id"` // youtube_id -> channel id
	VideoKey         map[string]string   `json:"video_key"`          // channel_id/youtube_id -> video id
	VideosByChannel  map[string][]string `json:"videos_by_channel"`  // channel_id -> []video id
}

// NewJSONStore opens the JSON file store at path, creating it if needed.
func NewJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		path: path,
		lock: NewFileLock(path),
		now:  time.Now,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &StorageError{Op: "open", Entity: "store", ID: path, Err: err}
	}
	if err := s.lock.Lock(lockTimeout); err != nil {
		return nil, err
	}

	if err := s.load(); err != nil {
		s.lock.Unlock()
		return nil, err
	}

	return s, nil
}

func (s *JSONStore) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = newStoreData()
			// Write immediately so permission problems surface at open.
			return s.save()
		}
		return &StorageError{Op: "read", Entity: "store", Err: err}
	}

	s.data = &storeData{}
	if err := json.Unmarshal(raw, s.data); err != nil {
		return &StorageError{Op: "read", Entity: "store", Err: ErrStorageCorrupt}
	}
	if s.data.Channels == nil {
		s.data.Channels = make(map[string]*Channel)
	}
	if s.data.Videos == nil {
		s.data.Videos = make(map[string]*Video)
	}
	if s.data.Indexes == nil {
		s.data.Indexes = s.rebuildIndexes()
	}
	return nil
}

// save persists the data to disk atomically.
func (s *JSONStore) save() error {
	s.data.UpdatedAt = s.now()

	writer, err := NewAtomicWriter(s.path)
	if err != nil {
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}

	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.data); err != nil {
		writer.Abort()
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}

	if err := writer.Commit(); err != nil {
		return &StorageError{Op: "write", Entity: "store", Err: err}
	}
	return nil
}

// Close releases the file lock.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Unlock()
}

func newStoreData() *storeData {
	return &storeData{
		Version:  schemaVersion,
		Channels: make(map[string]*Channel),
		Videos:   make(map[string]*Video),
		Indexes:  newIndexes(),
	}
}

func newIndexes() *indexes {
	return &indexes{
		YouTubeChannelID: make(map[string]string),
		VideoKey:         make(map[string]string),
		VideosByChannel:  make(map[string][]string),
	}
}

func (s *JSONStore) rebuildIndexes() *indexes {
	idx := newIndexes()
	for id, ch := range s.data.Channels {
		idx.YouTubeChannelID[ch.YouTubeID] = id
	}
	for id, v := range s.data.Videos {
		idx.VideoKey[videoKey(v.ChannelID, v.YouTubeID)] = id
		idx.VideosByChannel[v.ChannelID] = append(idx.VideosByChannel[v.ChannelID], id)
	}
	return idx
}

func videoKey(channelID, youtubeID string) string {
	return channelID + "/" + youtubeID
}

func cloneChannel(c *Channel) *Channel {
	out := *c
	if c.LastSyncedAt != nil {
		t := *c.LastSyncedAt
		out.LastSyncedAt = &t
	}
	return &out
}

func cloneVideo(v *Video) *Video {
	out := *v
	if v.Transcript != nil {
		s := *v.Transcript
		out.Transcript = &s
	}
	if v.TranscriptFetchedAt != nil {
		t := *v.TranscriptFetchedAt
		out.TranscriptFetchedAt = &t
	}
	return &out
}

// --- ChannelStore implementation ---

func (s *JSONStore) CreateChannel(ctx context.Context, channel *Channel) error {
	if channel == nil || channel.YouTubeID == "" {
		return &StorageError{Op: "create", Entity: "channel", Err: ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if channel.ID == "" {
		channel.ID = uuid.NewString()
	}
	if _, exists := s.data.Channels[channel.ID]; exists {
		return &StorageError{Op: "create", Entity: "channel", ID: channel.ID, Err: ErrAlreadyExists}
	}
	if _, exists := s.data.Indexes.YouTubeChannelID[channel.YouTubeID]; exists {
		return &StorageError{Op: "create", Entity: "channel", ID: channel.YouTubeID, Err: ErrAlreadyExists}
	}

	now := s.now()
	channel.CreatedAt = now
	channel.UpdatedAt = now

	s.data.Channels[channel.ID] = cloneChannel(channel)
	s.data.Indexes.YouTubeChannelID[channel.YouTubeID] = channel.ID

	return s.save()
}

func (s *JSONStore) GetChannel(ctx context.Context, id string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channel, exists := s.data.Channels[id]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "channel", ID: id, Err: ErrNotFound}
	}
	return cloneChannel(channel), nil
}

func (s *JSONStore) GetChannelByYouTubeID(ctx context.Context, youtubeID string) (*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.data.Indexes.YouTubeChannelID[youtubeID]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "channel", ID: youtubeID, Err: ErrNotFound}
	}
	channel, exists := s.data.Channels[id]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "channel", ID: id, Err: ErrStorageCorrupt}
	}
	return cloneChannel(channel), nil
}

func (s *JSONStore) UpdateChannel(ctx context.Context, id string, patch ChannelPatch) error {
	if patch.Empty() {
		return &StorageError{Op: "update", Entity: "channel", ID: id, Err: ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	channel, exists := s.data.Channels[id]
	if !exists {
		return &StorageError{Op: "update", Entity: "channel", ID: id, Err: ErrNotFound}
	}

	patch.Apply(channel)
	channel.UpdatedAt = s.now()
	return s.save()
}

func (s *JSONStore) DeleteChannel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, exists := s.data.Channels[id]
	if !exists {
		return &StorageError{Op: "delete", Entity: "channel", ID: id, Err: ErrNotFound}
	}

	for _, videoID := range s.data.Indexes.VideosByChannel[id] {
		if v, ok := s.data.Videos[videoID]; ok {
			delete(s.data.Indexes.VideoKey, videoKey(v.ChannelID, v.YouTubeID))
		}
		delete(s.data.Videos, videoID)
	}
	delete(s.data.Indexes.VideosByChannel, id)
	delete(s.data.Indexes.YouTubeChannelID, channel.YouTubeID)
	delete(s.data.Channels, id)

	return s.save()
}

func (s *JSONStore) ListChannels(ctx context.Context) ([]*Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make([]*Channel, 0, len(s.data.Channels))
	for _, ch := range s.data.Channels {
		channels = append(channels, cloneChannel(ch))
	}
	sort.Slice(channels, func(i, j int) bool {
		if channels[i].CreatedAt.Equal(channels[j].CreatedAt) {
			return channels[i].ID < channels[j].ID
		}
		return channels[i].CreatedAt.Before(channels[j].CreatedAt)
	})
	return channels, nil
}

func (s *JSONStore) ListChannelsDueForSync(ctx context.Context, staleBefore time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Channel
	for _, ch := range s.data.Channels {
		if ch.LastSyncedAt == nil || ch.LastSyncedAt.Before(staleBefore) {
			due = append(due, ch)
		}
	}
	SortBySyncAge(due)

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]string, len(due))
	for i, ch := range due {
		ids[i] = ch.ID
	}
	return ids, nil
}

// SortBySyncAge orders channels never-synced first, then by oldest
// LastSyncedAt. Ties fall back to creation order.
func SortBySyncAge(channels []*Channel) {
	sort.SliceStable(channels, func(i, j int) bool {
		a, b := channels[i], channels[j]
		switch {
		case a.LastSyncedAt == nil && b.LastSyncedAt != nil:
			return true
		case a.LastSyncedAt != nil && b.LastSyncedAt == nil:
			return false
		case a.LastSyncedAt != nil && !a.LastSyncedAt.Equal(*b.LastSyncedAt):
			return a.LastSyncedAt.Before(*b.LastSyncedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// --- VideoStore implementation ---

func (s *JSONStore) CreateVideo(ctx context.Context, video *Video) error {
	if video == nil || video.ChannelID == "" || video.YouTubeID == "" {
		return &StorageError{Op: "create", Entity: "video", Err: ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Channels[video.ChannelID]; !exists {
		return &StorageError{Op: "create", Entity: "video", ID: video.YouTubeID, Err: ErrNotFound}
	}
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	if _, exists := s.data.Videos[video.ID]; exists {
		return &StorageError{Op: "create", Entity: "video", ID: video.ID, Err: ErrAlreadyExists}
	}
	key := videoKey(video.ChannelID, video.YouTubeID)
	if _, exists := s.data.Indexes.VideoKey[key]; exists {
		return &StorageError{Op: "create", Entity: "video", ID: video.YouTubeID, Err: ErrAlreadyExists}
	}

	now := s.now()
	video.CreatedAt = now
	video.UpdatedAt = now

	s.data.Videos[video.ID] = cloneVideo(video)
	s.data.Indexes.VideoKey[key] = video.ID
	s.data.Indexes.VideosByChannel[video.ChannelID] = append(s.data.Indexes.VideosByChannel[video.ChannelID], video.ID)

	return s.save()
}

func (s *JSONStore) GetVideo(ctx context.Context, id string) (*Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	video, exists := s.data.Videos[id]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "video", ID: id, Err: ErrNotFound}
	}
	return cloneVideo(video), nil
}

func (s *JSONStore) GetVideoByYouTubeID(ctx context.Context, channelID, youtubeID string) (*Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.data.Indexes.VideoKey[videoKey(channelID, youtubeID)]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "video", ID: youtubeID, Err: ErrNotFound}
	}
	video, exists := s.data.Videos[id]
	if !exists {
		return nil, &StorageError{Op: "read", Entity: "video", ID: id, Err: ErrStorageCorrupt}
	}
	return cloneVideo(video), nil
}

func (s *JSONStore) UpdateVideo(ctx context.Context, id string, patch VideoPatch) error {
	if patch.Empty() {
		return &StorageError{Op: "update", Entity: "video", ID: id, Err: ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	video, exists := s.data.Videos[id]
	if !exists {
		return &StorageError{Op: "update", Entity: "video", ID: id, Err: ErrNotFound}
	}

	patch.Apply(video)
	video.UpdatedAt = s.now()
	return s.save()
}

func (s *JSONStore) ListVideosByChannel(ctx context.Context, channelID string) ([]*Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.videosWhere(channelID, func(*Video) bool { return true }), nil
}

func (s *JSONStore) ListOutliersMissingTranscript(ctx context.Context, channelID string) ([]*Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.videosWhere(channelID, func(v *Video) bool {
		return v.IsOutlier && v.Transcript == nil
	}), nil
}

func (s *JSONStore) CountOutliers(ctx context.Context, channelID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.videosWhere(channelID, func(v *Video) bool { return v.IsOutlier })), nil
}

// videosWhere returns copies of the channel's videos matching keep, newest first.
// Callers must hold s.mu.
func (s *JSONStore) videosWhere(channelID string, keep func(*Video) bool) []*Video {
	ids := s.data.Indexes.VideosByChannel[channelID]
	videos := make([]*Video, 0, len(ids))
	for _, id := range ids {
		v, ok := s.data.Videos[id]
		if !ok || !keep(v) {
			continue
		}
		videos = append(videos, cloneVideo(v))
	}
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].PublishedAt.After(videos[j].PublishedAt)
	})
	return videos
}
