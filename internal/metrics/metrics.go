// Package metrics holds the Prometheus collectors for channel syncs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	ActionInserted = "inserted"
	ActionUpdated  = "updated"
	ActionFailed   = "failed"

	TranscriptFetched     = "fetched"
	TranscriptUnavailable = "unavailable"
	TranscriptFailed      = "failed"
)

// SyncMetrics records sync outcomes. A nil *SyncMetrics is a no-op.
type SyncMetrics struct {
	syncs       *prometheus.CounterVec
	ingested    *prometheus.CounterVec
	transcripts *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewSyncMetrics registers the sync collectors with reg. When quota is
// non-nil it is exported as the remaining Data API quota gauge.
func NewSyncMetrics(reg prometheus.Registerer, quota func() float64) (*SyncMetrics, error) {
	m := &SyncMetrics{
		syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytoutlier_channel_syncs_total",
				Help: "Channel syncs completed, by status.",
			},
			[]string{"status"},
		),
		ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytoutlier_videos_ingested_total",
				Help: "Videos ingested, by action.",
			},
			[]string{"action"},
		),
		transcripts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ytoutlier_transcripts_total",
				Help: "Transcript fetch attempts, by status.",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ytoutlier_channel_sync_duration_seconds",
				Help:    "Duration of a full channel sync.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
	}

	collectors := []prometheus.Collector{m.syncs, m.ingested, m.transcripts, m.duration}
	if quota != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "ytoutlier_youtube_quota_remaining",
				Help: "YouTube Data API quota units left today.",
			},
			quota,
		))
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveSync records one finished channel sync.
func (m *SyncMetrics) ObserveSync(success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if !success {
		status = StatusFailure
	}
	m.syncs.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
}

// IngestedVideos counts n videos ingested with the given action.
func (m *SyncMetrics) IngestedVideos(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingested.WithLabelValues(action).Add(float64(n))
}

// Transcripts counts n transcript attempts with the given status.
func (m *SyncMetrics) Transcripts(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.transcripts.WithLabelValues(status).Add(float64(n))
}
