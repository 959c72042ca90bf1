package channelsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytoutlier/storage"
	"ytoutlier/youtube"
)

func ingested(t *testing.T, f *fixture, records ...youtube.VideoRecord) (*Syncer, *storage.Channel) {
	t.Helper()
	ch := f.channel(t, "UCaaa")
	f.videos.set("UCaaa", records...)
	s := f.syncer(nil, f.options())
	_, err := s.Ingest(context.Background(), ch.ID)
	require.NoError(t, err)
	return s, ch
}

func TestRescore_ScoresAgainstBaseline(t *testing.T) {
	f := newFixture(t)
	s, ch := ingested(t, f, typicalUploads()...)
	ctx := context.Background()

	res, err := s.Rescore(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Scored)
	assert.Equal(t, 1, res.Outliers)
	assert.InDelta(t, 3000, res.Baseline.AvgViews, 1e-9)
	assert.InDelta(t, 0.05, res.Baseline.AvgEngagementRate, 1e-12)

	stored, err := f.store.GetChannel(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), stored.AvgViewCount)
	assert.InDelta(t, 0.05, stored.AvgEngagementRate, 1e-12)

	hit := f.video(t, ch.ID, "hit")
	assert.True(t, hit.IsOutlier)
	assert.InDelta(t, 2.2, hit.OutlierScore, 1e-9)

	a := f.video(t, ch.ID, "a")
	assert.False(t, a.IsOutlier)
	assert.InDelta(t, 0.6, a.OutlierScore, 1e-9)
}

func TestRescore_Idempotent(t *testing.T) {
	f := newFixture(t)
	s, ch := ingested(t, f, typicalUploads()...)
	ctx := context.Background()

	_, err := s.Rescore(ctx, ch.ID)
	require.NoError(t, err)
	first, err := f.store.ListVideosByChannel(ctx, ch.ID)
	require.NoError(t, err)
	firstChannel, err := f.store.GetChannel(ctx, ch.ID)
	require.NoError(t, err)

	_, err = s.Rescore(ctx, ch.ID)
	require.NoError(t, err)
	second, err := f.store.ListVideosByChannel(ctx, ch.ID)
	require.NoError(t, err)
	secondChannel, err := f.store.GetChannel(ctx, ch.ID)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].IsOutlier, second[i].IsOutlier, first[i].YouTubeID)
		assert.Equal(t, first[i].OutlierScore, second[i].OutlierScore, first[i].YouTubeID)
	}
	assert.Equal(t, firstChannel.AvgViewCount, secondChannel.AvgViewCount)
	assert.Equal(t, firstChannel.AvgEngagementRate, secondChannel.AvgEngagementRate)
}

func TestRescore_RoundsAverageViews(t *testing.T) {
	f := newFixture(t)
	s, ch := ingested(t, f, record("v1", 1, 1, 0), record("v2", 2, 1, 0))

	_, err := s.Rescore(context.Background(), ch.ID)
	require.NoError(t, err)

	stored, err := f.store.GetChannel(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.AvgViewCount)
	assert.InDelta(t, 0.75, stored.AvgEngagementRate, 1e-12)
}

func TestRescore_DegenerateBaselineScoresZero(t *testing.T) {
	f := newFixture(t)
	s, ch := ingested(t, f, record("v1", 100, 0, 0), record("v2", 300, 0, 0))

	res, err := s.Rescore(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Zero(t, res.Outliers)
	assert.Zero(t, f.video(t, ch.ID, "v2").OutlierScore)
}

func TestRescore_NoVideosIsNoop(t *testing.T) {
	f := newFixture(t)
	ch := f.channel(t, "UCaaa")
	s := f.syncer(nil, f.options())

	res, err := s.Rescore(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Zero(t, res.Scored)

	stored, err := f.store.GetChannel(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.UpdatedAt, stored.UpdatedAt)
}

func TestRescore_CollectsPersistenceFailures(t *testing.T) {
	f := newFixture(t)
	_, ch := ingested(t, f, typicalUploads()...)
	bad := f.video(t, ch.ID, "a").ID
	failing := &failingStore{Store: f.store, failUpdate: func(id string, p storage.VideoPatch) bool {
		return id == bad && p.OutlierScore != nil
	}}
	s := f.syncer(failing, f.options())

	res, err := s.Rescore(context.Background(), ch.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, 3, res.Scored)
	assert.Equal(t, 1, res.Outliers)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "a", res.Failures[0].ID)

	assert.True(t, f.video(t, ch.ID, "hit").IsOutlier, "remaining videos are still scored")
}

func TestItemFailure_UnwrapsStorageErrors(t *testing.T) {
	f := ItemFailure{ID: "a", Err: fmt.Errorf("update: %w", storage.ErrNotFound)}
	assert.ErrorIs(t, f, storage.ErrNotFound)

	joined := fmt.Errorf("rescore: %w", errors.Join(ItemFailure{ID: "b", Err: errInjected}, f))
	assert.ErrorIs(t, joined, storage.ErrNotFound)
	assert.ErrorIs(t, joined, errInjected)

	var item ItemFailure
	require.ErrorAs(t, joined, &item)
	assert.Equal(t, "b", item.ID)
}
