package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *JSONStore {
	t.Helper()
	store, err := NewJSONStore(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCreateChannel(t *testing.T, s *JSONStore, youtubeID string) *Channel {
	t.Helper()
	ch := &Channel{YouTubeID: youtubeID, Name: "Channel " + youtubeID}
	if err := s.CreateChannel(context.Background(), ch); err != nil {
		t.Fatalf("CreateChannel(%s) error = %v", youtubeID, err)
	}
	return ch
}

func mustCreateVideo(t *testing.T, s *JSONStore, channelID, youtubeID string, published time.Time) *Video {
	t.Helper()
	v := &Video{ChannelID: channelID, YouTubeID: youtubeID, Title: youtubeID, PublishedAt: published}
	if err := s.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("CreateVideo(%s) error = %v", youtubeID, err)
	}
	return v
}

func TestNewJSONStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")

	store, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("store file was not created")
	}
}

func TestJSONStore_LockedByAnotherStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	first, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	defer first.Close()

	// flock is per open file description, so a second open in-process conflicts too.
	if _, err := NewJSONStore(path); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second NewJSONStore() error = %v, want ErrLockTimeout", err)
	}
}

func TestJSONStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewJSONStore(path)
	if !errors.Is(err, ErrStorageCorrupt) {
		t.Fatalf("NewJSONStore() error = %v, want ErrStorageCorrupt", err)
	}
}

func TestJSONStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	store, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	ch := mustCreateChannel(t, store, "UC123")
	v := mustCreateVideo(t, store, ch.ID, "vid1", time.Now())
	store.Close()

	reopened, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore() reopen error = %v", err)
	}
	defer reopened.Close()

	loaded, err := reopened.GetChannelByYouTubeID(ctx, "UC123")
	if err != nil {
		t.Fatalf("GetChannelByYouTubeID() error = %v", err)
	}
	if loaded.ID != ch.ID {
		t.Errorf("loaded channel ID = %q, want %q", loaded.ID, ch.ID)
	}

	got, err := reopened.GetVideoByYouTubeID(ctx, ch.ID, "vid1")
	if err != nil {
		t.Fatalf("GetVideoByYouTubeID() error = %v", err)
	}
	if got.ID != v.ID {
		t.Errorf("loaded video ID = %q, want %q", got.ID, v.ID)
	}
}

func TestJSONStore_ChannelCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ch := mustCreateChannel(t, store, "UCabc")
	if ch.ID == "" {
		t.Fatal("CreateChannel() did not assign an ID")
	}

	dup := &Channel{YouTubeID: "UCabc"}
	if err := store.CreateChannel(ctx, dup); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate CreateChannel() error = %v, want ErrAlreadyExists", err)
	}

	avg := int64(1234)
	rate := 0.042
	synced := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := store.UpdateChannel(ctx, ch.ID, ChannelPatch{AvgViewCount: &avg, AvgEngagementRate: &rate, LastSyncedAt: &synced}); err != nil {
		t.Fatalf("UpdateChannel() error = %v", err)
	}

	got, err := store.GetChannel(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	if got.AvgViewCount != 1234 || got.AvgEngagementRate != 0.042 {
		t.Errorf("baseline = (%d, %v), want (1234, 0.042)", got.AvgViewCount, got.AvgEngagementRate)
	}
	if got.LastSyncedAt == nil || !got.LastSyncedAt.Equal(synced) {
		t.Errorf("LastSyncedAt = %v, want %v", got.LastSyncedAt, synced)
	}
	if got.Name != ch.Name {
		t.Errorf("UpdateChannel() touched Name: %q", got.Name)
	}

	if err := store.UpdateChannel(ctx, ch.ID, ChannelPatch{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty patch error = %v, want ErrInvalidInput", err)
	}
	if err := store.UpdateChannel(ctx, "missing", ChannelPatch{AvgViewCount: &avg}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateChannel(missing) error = %v, want ErrNotFound", err)
	}
}

func TestJSONStore_ReturnsCopies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ch := mustCreateChannel(t, store, "UCcopy")

	got, _ := store.GetChannel(ctx, ch.ID)
	got.Name = "mutated"

	again, _ := store.GetChannel(ctx, ch.ID)
	if again.Name == "mutated" {
		t.Error("GetChannel() returned a shared pointer")
	}
}

func TestJSONStore_DeleteChannelCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ch := mustCreateChannel(t, store, "UCdel")
	v := mustCreateVideo(t, store, ch.ID, "v1", time.Now())

	if err := store.DeleteChannel(ctx, ch.ID); err != nil {
		t.Fatalf("DeleteChannel() error = %v", err)
	}
	if _, err := store.GetVideo(ctx, v.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVideo() after cascade error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetVideoByYouTubeID(ctx, ch.ID, "v1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVideoByYouTubeID() after cascade error = %v, want ErrNotFound", err)
	}

	// The YouTube ID is free again.
	mustCreateChannel(t, store, "UCdel")
}

func TestJSONStore_VideoNaturalKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := mustCreateChannel(t, store, "UCa")
	b := mustCreateChannel(t, store, "UCb")
	mustCreateVideo(t, store, a.ID, "same", time.Now())

	if err := store.CreateVideo(ctx, &Video{ChannelID: a.ID, YouTubeID: "same"}); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate CreateVideo() error = %v, want ErrAlreadyExists", err)
	}
	// The key is scoped by channel.
	mustCreateVideo(t, store, b.ID, "same", time.Now())

	if err := store.CreateVideo(ctx, &Video{ChannelID: "nope", YouTubeID: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateVideo(unknown channel) error = %v, want ErrNotFound", err)
	}
}

func TestJSONStore_TranscriptIsWriteOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ch := mustCreateChannel(t, store, "UCt")
	v := mustCreateVideo(t, store, ch.ID, "v1", time.Now())

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.UpdateVideo(ctx, v.ID, TranscriptPatch("first", first)); err != nil {
		t.Fatalf("UpdateVideo() error = %v", err)
	}
	if err := store.UpdateVideo(ctx, v.ID, TranscriptPatch("second", first.Add(time.Hour))); err != nil {
		t.Fatalf("UpdateVideo() error = %v", err)
	}

	got, _ := store.GetVideo(ctx, v.ID)
	if got.Transcript == nil || *got.Transcript != "first" {
		t.Errorf("Transcript = %v, want first", got.Transcript)
	}
	if !got.TranscriptFetchedAt.Equal(first) {
		t.Errorf("TranscriptFetchedAt = %v, want %v", got.TranscriptFetchedAt, first)
	}
}

func TestJSONStore_OutlierQueries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ch := mustCreateChannel(t, store, "UCo")
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	older := mustCreateVideo(t, store, ch.ID, "older", base)
	newer := mustCreateVideo(t, store, ch.ID, "newer", base.Add(24*time.Hour))
	normal := mustCreateVideo(t, store, ch.ID, "normal", base.Add(48*time.Hour))
	withTranscript := mustCreateVideo(t, store, ch.ID, "done", base.Add(72*time.Hour))

	for _, id := range []string{older.ID, newer.ID, withTranscript.ID} {
		if err := store.UpdateVideo(ctx, id, ScorePatch(outlierResult(3.2))); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.UpdateVideo(ctx, normal.ID, ScorePatch(outlierResult(0.9))); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateVideo(ctx, withTranscript.ID, TranscriptPatch("text", base)); err != nil {
		t.Fatal(err)
	}

	n, err := store.CountOutliers(ctx, ch.ID)
	if err != nil {
		t.Fatalf("CountOutliers() error = %v", err)
	}
	if n != 3 {
		t.Errorf("CountOutliers() = %d, want 3", n)
	}

	missing, err := store.ListOutliersMissingTranscript(ctx, ch.ID)
	if err != nil {
		t.Fatalf("ListOutliersMissingTranscript() error = %v", err)
	}
	if len(missing) != 2 || missing[0].ID != newer.ID || missing[1].ID != older.ID {
		t.Errorf("ListOutliersMissingTranscript() = %v, want [newer older]", ids(missing))
	}

	all, _ := store.ListVideosByChannel(ctx, ch.ID)
	if len(all) != 4 || all[0].ID != withTranscript.ID {
		t.Errorf("ListVideosByChannel() = %v, want newest first", ids(all))
	}
}

func TestJSONStore_ListChannelsDueForSync(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	recent := mustCreateChannel(t, store, "UCrecent")
	stale := mustCreateChannel(t, store, "UCstale")
	staler := mustCreateChannel(t, store, "UCstaler")
	never := mustCreateChannel(t, store, "UCnever")

	for id, ago := range map[string]time.Duration{
		recent.ID: 2 * time.Hour,
		stale.ID:  7 * time.Hour,
		staler.ID: 30 * time.Hour,
	} {
		at := now.Add(-ago)
		if err := store.UpdateChannel(ctx, id, ChannelPatch{LastSyncedAt: &at}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListChannelsDueForSync(ctx, now.Add(-6*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListChannelsDueForSync() error = %v", err)
	}
	want := []string{never.ID, staler.ID, stale.ID}
	if len(got) != len(want) {
		t.Fatalf("ListChannelsDueForSync() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i], want[i])
		}
	}

	capped, _ := store.ListChannelsDueForSync(ctx, now.Add(-6*time.Hour), 1)
	if len(capped) != 1 || capped[0] != never.ID {
		t.Errorf("capped = %v, want [%s]", capped, never.ID)
	}
}

func TestJSONStore_ConcurrentUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ch := mustCreateChannel(t, store, "UCconc")
	v := mustCreateVideo(t, store, ch.ID, "v", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			views := int64(i)
			if err := store.UpdateVideo(ctx, v.ID, VideoPatch{ViewCount: &views}); err != nil {
				t.Errorf("UpdateVideo() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if _, err := store.GetVideo(ctx, v.ID); err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
}

func ids(vs []*Video) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.YouTubeID
	}
	return out
}
