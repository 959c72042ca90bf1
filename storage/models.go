package storage

import (
	"time"

	"ytoutlier/outlier"
)

// Channel represents a tracked YouTube channel and its cached baseline.
type Channel struct {
	// ID is the internal unique identifier (UUID).
	ID string `json:"id"`
	// YouTubeID is the YouTube channel ID (e.g., "UCxxxxxxxxxxxxxxx").
	YouTubeID string `json:"youtube_id"`
	// Name is the display name of the channel.
	Name string `json:"name"`
	// Handle is the channel's @handle, if it has one.
	Handle string `json:"handle,omitempty"`
	// ThumbnailURL is the channel avatar.
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	// Description is the channel's description from YouTube.
	Description string `json:"description,omitempty"`
	// SubscriberCount is informational, as reported by YouTube.
	SubscriberCount int64 `json:"subscriber_count"`
	// VideoCount is the total number of uploads reported by YouTube.
	VideoCount int64 `json:"video_count"`
	// AvgViewCount is the rounded average view count from the last sync.
	AvgViewCount int64 `json:"avg_view_count"`
	// AvgEngagementRate is the average engagement rate from the last sync.
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
	// LastSyncedAt is nil until the first completed sync.
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	// CreatedAt is when this channel was first added.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when this channel record was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Video represents a YouTube video of a tracked channel.
type Video struct {
	// ID is the internal unique identifier (UUID).
	ID string `json:"id"`
	// ChannelID is a foreign key reference to Channel.ID.
	ChannelID string `json:"channel_id"`
	// YouTubeID is the YouTube video ID (e.g., "dQw4w9WgXcQ").
	YouTubeID string `json:"youtube_id"`
	Title     string `json:"title"`
	// Description is the video description from YouTube.
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	// DurationSeconds is the video length.
	DurationSeconds int       `json:"duration_seconds"`
	PublishedAt     time.Time `json:"published_at"`

	ViewCount    int64 `json:"view_count"`
	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	// EngagementRate is recomputed from the counts on every sync.
	EngagementRate float64 `json:"engagement_rate"`
	// IsOutlier and OutlierScore reflect the most recent re-scoring pass.
	IsOutlier    bool    `json:"is_outlier"`
	OutlierScore float64 `json:"outlier_score"`

	// Transcript is written at most once.
	Transcript          *string    `json:"transcript,omitempty"`
	TranscriptFetchedAt *time.Time `json:"transcript_fetched_at,omitempty"`

	// CreatedAt is when this video was first seen.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when this video record was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Metrics projects the video's counters for scoring.
func (v *Video) Metrics() outlier.VideoMetrics {
	return outlier.VideoMetrics{
		Views:    v.ViewCount,
		Likes:    v.LikeCount,
		Comments: v.CommentCount,
	}
}

// ChannelPatch is a partial update of the fields the sync pipeline owns.
// Nil fields are left untouched.
type ChannelPatch struct {
	AvgViewCount      *int64
	AvgEngagementRate *float64
	LastSyncedAt      *time.Time
}

// Empty reports whether the patch changes nothing.
func (p ChannelPatch) Empty() bool {
	return p.AvgViewCount == nil && p.AvgEngagementRate == nil && p.LastSyncedAt == nil
}

// Apply copies the set fields onto c.
func (p ChannelPatch) Apply(c *Channel) {
	if p.AvgViewCount != nil {
		c.AvgViewCount = *p.AvgViewCount
	}
	if p.AvgEngagementRate != nil {
		c.AvgEngagementRate = *p.AvgEngagementRate
	}
	if p.LastSyncedAt != nil {
		t := *p.LastSyncedAt
		c.LastSyncedAt = &t
	}
}

// VideoPatch is a partial update of a video's mutable fields.
// Nil fields are left untouched.
type VideoPatch struct {
	ViewCount      *int64
	LikeCount      *int64
	CommentCount   *int64
	EngagementRate *float64

	IsOutlier    *bool
	OutlierScore *float64

	Transcript          *string
	TranscriptFetchedAt *time.Time
}

// Empty reports whether the patch changes nothing.
func (p VideoPatch) Empty() bool {
	return p.ViewCount == nil && p.LikeCount == nil && p.CommentCount == nil &&
		p.EngagementRate == nil && p.IsOutlier == nil && p.OutlierScore == nil &&
		p.Transcript == nil && p.TranscriptFetchedAt == nil
}

// Apply copies the set fields onto v. Transcript fields are only written
// while v has no transcript.
func (p VideoPatch) Apply(v *Video) {
	if p.ViewCount != nil {
		v.ViewCount = *p.ViewCount
	}
	if p.LikeCount != nil {
		v.LikeCount = *p.LikeCount
	}
	if p.CommentCount != nil {
		v.CommentCount = *p.CommentCount
	}
	if p.EngagementRate != nil {
		v.EngagementRate = *p.EngagementRate
	}
	if p.IsOutlier != nil {
		v.IsOutlier = *p.IsOutlier
	}
	if p.OutlierScore != nil {
		v.OutlierScore = *p.OutlierScore
	}
	if v.Transcript == nil && p.Transcript != nil {
		s := *p.Transcript
		v.Transcript = &s
		if p.TranscriptFetchedAt != nil {
			t := *p.TranscriptFetchedAt
			v.TranscriptFetchedAt = &t
		}
	}
}

// MetricsPatch builds the patch ingestion applies to a known video: fresh
// counters and the engagement rate derived from them.
func MetricsPatch(m outlier.VideoMetrics) VideoPatch {
	rate := outlier.EngagementRate(m)
	return VideoPatch{
		ViewCount:      &m.Views,
		LikeCount:      &m.Likes,
		CommentCount:   &m.Comments,
		EngagementRate: &rate,
	}
}

// ScorePatch builds the patch a re-scoring pass applies.
func ScorePatch(r outlier.Result) VideoPatch {
	return VideoPatch{
		IsOutlier:    &r.IsOutlier,
		OutlierScore: &r.Score,
	}
}

// TranscriptPatch builds the patch a transcript backfill applies.
func TranscriptPatch(text string, fetchedAt time.Time) VideoPatch {
	return VideoPatch{
		Transcript:          &text,
		TranscriptFetchedAt: &fetchedAt,
	}
}
