// Package outlier scores videos against their channel's own baseline.
//
// Every function in this package is pure: no I/O, no clocks, no shared state.
package outlier

// Scoring policy constants.
const (
	// ViewWeight is the share of the score contributed by the view ratio.
	ViewWeight = 0.6
	// EngagementWeight is the share of the score contributed by the engagement ratio.
	EngagementWeight = 0.4
	// Threshold is the minimum score for a video to count as an outlier.
	Threshold = 2.0
)

// VideoMetrics holds the raw counters of a single video.
type VideoMetrics struct {
	Views    int64
	Likes    int64
	Comments int64
}

// ChannelAverage is a channel's baseline computed from its videos.
type ChannelAverage struct {
	AvgViews          float64
	AvgEngagementRate float64
}

// Degenerate reports whether the baseline cannot produce a verdict.
func (b ChannelAverage) Degenerate() bool {
	return b.AvgViews == 0 || b.AvgEngagementRate == 0
}

// Result is the outcome of scoring one video against a baseline.
type Result struct {
	IsOutlier       bool
	Score           float64
	ViewRatio       float64
	EngagementRatio float64
	EngagementRate  float64
}

// EngagementRate returns (likes+comments)/views, or 0 when the video has no views.
func EngagementRate(m VideoMetrics) float64 {
	if m.Views == 0 {
		return 0
	}
	return float64(m.Likes+m.Comments) / float64(m.Views)
}

// Average computes the baseline over a list of videos. The engagement
// component is the mean of per-video rates, not the aggregate ratio.
func Average(ms []VideoMetrics) ChannelAverage {
	if len(ms) == 0 {
		return ChannelAverage{}
	}

	var views, rates float64
	for _, m := range ms {
		views += float64(m.Views)
		rates += EngagementRate(m)
	}

	n := float64(len(ms))
	return ChannelAverage{
		AvgViews:          views / n,
		AvgEngagementRate: rates / n,
	}
}

// Score classifies a video against a channel baseline.
func Score(v VideoMetrics, b ChannelAverage) Result {
	rate := EngagementRate(v)
	if b.Degenerate() {
		return Result{EngagementRate: rate}
	}

	viewRatio := float64(v.Views) / b.AvgViews
	engagementRatio := rate / b.AvgEngagementRate
	score := ViewWeight*viewRatio + EngagementWeight*engagementRatio

	return Result{
		IsOutlier:       score >= Threshold,
		Score:           score,
		ViewRatio:       viewRatio,
		EngagementRatio: engagementRatio,
		EngagementRate:  rate,
	}
}
