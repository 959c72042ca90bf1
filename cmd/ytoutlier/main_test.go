package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytoutlier/channelsync"
	"ytoutlier/outlier"
	"ytoutlier/storage"
)

// seedStore writes a channel with one outlier and one ordinary video and
// points the CLI at it.
func seedStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "store.json")
	t.Setenv("YTOUTLIER_STORE_PATH", path)

	store, err := storage.NewJSONStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	ch := &storage.Channel{YouTubeID: "UCaaa", Name: "Test Channel"}
	require.NoError(t, store.CreateChannel(ctx, ch))

	hit := &storage.Video{ChannelID: ch.ID, YouTubeID: "hit", Title: "Big one", ViewCount: 9000, PublishedAt: time.Now()}
	require.NoError(t, store.CreateVideo(ctx, hit))
	require.NoError(t, store.UpdateVideo(ctx, hit.ID, storage.ScorePatch(outlier.Result{IsOutlier: true, Score: 5.5})))
	plain := &storage.Video{ChannelID: ch.ID, YouTubeID: "plain", Title: "Small one", ViewCount: 1000}
	require.NoError(t, store.CreateVideo(ctx, plain))
	return ch.ID
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVideosCommand(t *testing.T) {
	channelID := seedStore(t)

	out, err := run(t, "videos", channelID)
	require.NoError(t, err)
	assert.Contains(t, out, "hit")
	assert.Contains(t, out, "5.5x")
	assert.Contains(t, out, "Viral")
	assert.Contains(t, out, "plain")
	assert.Contains(t, out, "Normal")

	out, err = run(t, "videos", channelID, "--outliers")
	require.NoError(t, err)
	assert.Contains(t, out, "hit")
	assert.NotContains(t, out, "plain")
}

func TestVideosCommand_UnknownChannel(t *testing.T) {
	seedStore(t)

	_, err := run(t, "videos", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChannelListAndRemove(t *testing.T) {
	channelID := seedStore(t)

	out, err := run(t, "channel", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "UCaaa")
	assert.Contains(t, out, "never")

	_, err = run(t, "channel", "rm", channelID)
	require.NoError(t, err)

	out, err = run(t, "--json", "channel", "ls")
	require.NoError(t, err)
	var channels []storage.Channel
	require.NoError(t, json.Unmarshal([]byte(out), &channels))
	assert.Empty(t, channels)
}

func TestDueDryRun(t *testing.T) {
	channelID := seedStore(t)

	out, err := run(t, "due", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, channelID+"\n", out)
}

func TestSyncRequiresAPIKey(t *testing.T) {
	seedStore(t)
	t.Setenv("YTOUTLIER_YOUTUBE_API_KEY", "")

	_, err := run(t, "sync", "whatever")
	assert.ErrorContains(t, err, "youtube_api_key")
}

func TestPrintResults(t *testing.T) {
	results := []channelsync.SyncResult{
		{Success: true, ChannelID: "c1", VideosAdded: 3, OutliersFound: 1},
		{ChannelID: "c2", Error: "no videos found"},
	}

	var table bytes.Buffer
	err := printResults(&table, &rootFlags{}, results)
	assert.ErrorContains(t, err, "1 of 2")
	assert.Contains(t, table.String(), "c1")
	assert.Contains(t, table.String(), "failed")
	assert.Contains(t, table.String(), "no videos found")

	var js bytes.Buffer
	require.NoError(t, printResults(&js, &rootFlags{jsonOutput: true}, results[:1]))
	var decoded []channelsync.SyncResult
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, results[:1][0].ChannelID, decoded[0].ChannelID)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmno", 10))
	assert.Equal(t, "ééééééé...", truncate("éééééééééééé", 10))
}
