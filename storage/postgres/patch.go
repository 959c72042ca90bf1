package postgres

import (
	"fmt"
	"strings"
	"time"

	"ytoutlier/storage"
)

// updateBuilder accumulates SET clauses with positional arguments.
type updateBuilder struct {
	table string
	sets  []string
	args  []any
}

func (b *updateBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *updateBuilder) set(col string, v any) {
	b.sets = append(b.sets, col+" = "+b.arg(v))
}

func (b *updateBuilder) setExpr(expr string) {
	b.sets = append(b.sets, expr)
}

func (b *updateBuilder) build(id string) (string, []any) {
	where := b.arg(id)
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = %s", b.table, strings.Join(b.sets, ", "), where), b.args
}

// channelUpdate renders a ChannelPatch as an UPDATE statement.
func channelUpdate(id string, p storage.ChannelPatch, now time.Time) (string, []any) {
	b := &updateBuilder{table: "channels"}
	if p.AvgViewCount != nil {
		b.set("avg_view_count", *p.AvgViewCount)
	}
	if p.AvgEngagementRate != nil {
		b.set("avg_engagement_rate", *p.AvgEngagementRate)
	}
	if p.LastSyncedAt != nil {
		b.set("last_synced_at", *p.LastSyncedAt)
	}
	b.set("updated_at", now)
	return b.build(id)
}

// videoUpdate renders a VideoPatch as an UPDATE statement. Transcript
// columns are guarded so an existing transcript survives.
func videoUpdate(id string, p storage.VideoPatch, now time.Time) (string, []any) {
	b := &updateBuilder{table: "videos"}
	if p.ViewCount != nil {
		b.set("view_count", *p.ViewCount)
	}
	if p.LikeCount != nil {
		b.set("like_count", *p.LikeCount)
	}
	if p.CommentCount != nil {
		b.set("comment_count", *p.CommentCount)
	}
	if p.EngagementRate != nil {
		b.set("engagement_rate", *p.EngagementRate)
	}
	if p.IsOutlier != nil {
		b.set("is_outlier", *p.IsOutlier)
	}
	if p.OutlierScore != nil {
		b.set("outlier_score", *p.OutlierScore)
	}
	if p.Transcript != nil {
		b.setExpr("transcript = COALESCE(transcript, " + b.arg(*p.Transcript) + ")")
		if p.TranscriptFetchedAt != nil {
			b.setExpr("transcript_fetched_at = CASE WHEN transcript IS NULL THEN " +
				b.arg(*p.TranscriptFetchedAt) + " ELSE transcript_fetched_at END")
		}
	}
	b.set("updated_at", now)
	return b.build(id)
}
