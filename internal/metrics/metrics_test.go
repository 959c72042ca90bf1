package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewSyncMetrics(reg, func() float64 { return 9000 })
	require.NoError(t, err)

	m.ObserveSync(true, 2*time.Second)
	m.ObserveSync(false, time.Second)
	m.ObserveSync(true, time.Second)
	m.IngestedVideos(ActionInserted, 5)
	m.IngestedVideos(ActionUpdated, 0)
	m.Transcripts(TranscriptFetched, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.syncs.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncs.WithLabelValues(StatusFailure)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ingested.WithLabelValues(ActionInserted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transcripts.WithLabelValues(TranscriptFetched)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	families, err := reg.Gather()
	require.NoError(t, err)
	var quota float64
	for _, f := range families {
		if f.GetName() == "ytoutlier_youtube_quota_remaining" {
			quota = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 9000.0, quota)
}

func TestSyncMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewSyncMetrics(reg, nil)
	require.NoError(t, err)
	_, err = NewSyncMetrics(reg, nil)
	assert.Error(t, err)
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	var m *SyncMetrics
	m.ObserveSync(true, time.Second)
	m.IngestedVideos(ActionInserted, 1)
	m.Transcripts(TranscriptFailed, 1)
}
