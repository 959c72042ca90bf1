package channelsync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ytoutlier/storage"
	"ytoutlier/youtube"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeVideos struct {
	mu      sync.Mutex
	records map[string][]youtube.VideoRecord
	err     error
	calls   int
	fetch   func(ctx context.Context, youtubeChannelID string) ([]youtube.VideoRecord, error)
}

func (f *fakeVideos) FetchChannelVideos(ctx context.Context, youtubeChannelID string, maxResults int) ([]youtube.VideoRecord, error) {
	f.mu.Lock()
	f.calls++
	fetch := f.fetch
	records, err := f.records[youtubeChannelID], f.err
	f.mu.Unlock()

	if fetch != nil {
		return fetch(ctx, youtubeChannelID)
	}
	if err != nil {
		return nil, err
	}
	if len(records) > maxResults {
		records = records[:maxResults]
	}
	return append([]youtube.VideoRecord(nil), records...), nil
}

func (f *fakeVideos) set(youtubeChannelID string, records ...youtube.VideoRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = make(map[string][]youtube.VideoRecord)
	}
	f.records[youtubeChannelID] = records
}

type fakeTranscripts struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeTranscripts) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, videoID)
	if err := f.errs[videoID]; err != nil {
		return "", err
	}
	return f.texts[videoID], nil
}

func (f *fakeTranscripts) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// sleeper records requested pauses without waiting.
type sleeper struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (s *sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return s.err
}

func (s *sleeper) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == d {
			n++
		}
	}
	return n
}

// failingStore fails UpdateVideo for the listed video IDs when the patch
// matches. afterCreate runs after each successful CreateVideo.
type failingStore struct {
	storage.Store
	failUpdate  func(id string, patch storage.VideoPatch) bool
	afterCreate func()
}

var errInjected = errors.New("injected failure")

func (s *failingStore) UpdateVideo(ctx context.Context, id string, patch storage.VideoPatch) error {
	if s.failUpdate != nil && s.failUpdate(id, patch) {
		return errInjected
	}
	return s.Store.UpdateVideo(ctx, id, patch)
}

func (s *failingStore) CreateVideo(ctx context.Context, v *storage.Video) error {
	if err := s.Store.CreateVideo(ctx, v); err != nil {
		return err
	}
	if s.afterCreate != nil {
		s.afterCreate()
	}
	return nil
}

type fixture struct {
	store       *storage.JSONStore
	videos      *fakeVideos
	transcripts *fakeTranscripts
	sleep       *sleeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewJSONStore(filepath.Join(t.TempDir(), "store.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &fixture{
		store:       store,
		videos:      &fakeVideos{},
		transcripts: &fakeTranscripts{texts: map[string]string{}, errs: map[string]error{}},
		sleep:       &sleeper{},
	}
}

func (f *fixture) options() Options {
	return Options{
		Now:   func() time.Time { return testNow },
		Sleep: f.sleep.Sleep,
	}
}

func (f *fixture) syncer(store storage.Store, opts Options) *Syncer {
	if store == nil {
		store = f.store
	}
	return New(store, f.videos, f.transcripts, opts)
}

func (f *fixture) channel(t *testing.T, youtubeID string) *storage.Channel {
	t.Helper()
	ch := &storage.Channel{YouTubeID: youtubeID, Name: youtubeID}
	require.NoError(t, f.store.CreateChannel(context.Background(), ch))
	return ch
}

func record(id string, views, likes, comments int64) youtube.VideoRecord {
	return youtube.VideoRecord{
		ID:           id,
		Title:        "Video " + id,
		PublishedAt:  testNow.Add(-24 * time.Hour),
		ViewCount:    views,
		LikeCount:    likes,
		CommentCount: comments,
	}
}

// typicalUploads is three ordinary videos and one at three times the
// average views with the same engagement: score 0.6*3 + 0.4*1 = 2.2.
func typicalUploads() []youtube.VideoRecord {
	return []youtube.VideoRecord{
		record("hit", 9000, 450, 0),
		record("a", 1000, 50, 0),
		record("b", 1000, 50, 0),
		record("c", 1000, 50, 0),
	}
}

func (f *fixture) video(t *testing.T, channelID, youtubeID string) *storage.Video {
	t.Helper()
	v, err := f.store.GetVideoByYouTubeID(context.Background(), channelID, youtubeID)
	require.NoError(t, err)
	return v
}
