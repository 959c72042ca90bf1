package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ytoutlier/storage"
)

// Postgres error codes the store translates into storage sentinels.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

const channelColumns = `id, youtube_id, name, handle, thumbnail_url, description,
	subscriber_count, video_count, avg_view_count, avg_engagement_rate,
	last_synced_at, created_at, updated_at`

const videoColumns = `id, channel_id, youtube_id, title, description, thumbnail_url,
	duration_seconds, published_at, view_count, like_count, comment_count,
	engagement_rate, is_outlier, outlier_score, transcript, transcript_fetched_at,
	created_at, updated_at`

// Store implements storage.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New wraps pool. The schema must already be migrated (see Migrate).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// wrapErr maps driver errors onto storage sentinels.
func wrapErr(op, entity, id string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = storage.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation:
		err = storage.ErrAlreadyExists
	case errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation:
		err = storage.ErrNotFound
	}
	return &storage.StorageError{Op: op, Entity: entity, ID: id, Err: err}
}

func scanChannel(row pgx.Row) (*storage.Channel, error) {
	var c storage.Channel
	err := row.Scan(
		&c.ID, &c.YouTubeID, &c.Name, &c.Handle, &c.ThumbnailURL, &c.Description,
		&c.SubscriberCount, &c.VideoCount, &c.AvgViewCount, &c.AvgEngagementRate,
		&c.LastSyncedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanVideo(row pgx.Row) (*storage.Video, error) {
	var v storage.Video
	err := row.Scan(
		&v.ID, &v.ChannelID, &v.YouTubeID, &v.Title, &v.Description, &v.ThumbnailURL,
		&v.DurationSeconds, &v.PublishedAt, &v.ViewCount, &v.LikeCount, &v.CommentCount,
		&v.EngagementRate, &v.IsOutlier, &v.OutlierScore, &v.Transcript, &v.TranscriptFetchedAt,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) queryVideos(ctx context.Context, op, channelID, query string, args ...any) ([]*storage.Video, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, "video", channelID, err)
	}
	defer rows.Close()

	var videos []*storage.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, wrapErr(op, "video", channelID, err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, "video", channelID, err)
	}
	return videos, nil
}

// --- ChannelStore ---

func (s *Store) CreateChannel(ctx context.Context, c *storage.Channel) error {
	if c == nil || c.YouTubeID == "" {
		return &storage.StorageError{Op: "create", Entity: "channel", Err: storage.ErrInvalidInput}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO channels (`+channelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.YouTubeID, c.Name, c.Handle, c.ThumbnailURL, c.Description,
		c.SubscriberCount, c.VideoCount, c.AvgViewCount, c.AvgEngagementRate,
		c.LastSyncedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return wrapErr("create", "channel", c.YouTubeID, err)
	}
	return nil
}

func (s *Store) GetChannel(ctx context.Context, id string) (*storage.Channel, error) {
	c, err := scanChannel(s.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("read", "channel", id, err)
	}
	return c, nil
}

func (s *Store) GetChannelByYouTubeID(ctx context.Context, youtubeID string) (*storage.Channel, error) {
	c, err := scanChannel(s.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels WHERE youtube_id = $1`, youtubeID))
	if err != nil {
		return nil, wrapErr("read", "channel", youtubeID, err)
	}
	return c, nil
}

func (s *Store) UpdateChannel(ctx context.Context, id string, patch storage.ChannelPatch) error {
	if patch.Empty() {
		return &storage.StorageError{Op: "update", Entity: "channel", ID: id, Err: storage.ErrInvalidInput}
	}
	query, args := channelUpdate(id, patch, s.now())
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return wrapErr("update", "channel", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &storage.StorageError{Op: "update", Entity: "channel", ID: id, Err: storage.ErrNotFound}
	}
	return nil
}

func (s *Store) DeleteChannel(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete", "channel", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &storage.StorageError{Op: "delete", Entity: "channel", ID: id, Err: storage.ErrNotFound}
	}
	return nil
}

func (s *Store) ListChannels(ctx context.Context) ([]*storage.Channel, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY created_at, id`)
	if err != nil {
		return nil, wrapErr("list", "channel", "", err)
	}
	defer rows.Close()

	var channels []*storage.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, wrapErr("list", "channel", "", err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list", "channel", "", err)
	}
	return channels, nil
}

func (s *Store) ListChannelsDueForSync(ctx context.Context, staleBefore time.Time, limit int) ([]string, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id FROM channels
		WHERE last_synced_at IS NULL OR last_synced_at < $1
		ORDER BY last_synced_at ASC NULLS FIRST, created_at ASC, id ASC
		LIMIT $2`, staleBefore, lim)
	if err != nil {
		return nil, wrapErr("list", "channel", "", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrapErr("list", "channel", "", err)
	}
	return ids, nil
}

// --- VideoStore ---

func (s *Store) CreateVideo(ctx context.Context, v *storage.Video) error {
	if v == nil || v.ChannelID == "" || v.YouTubeID == "" {
		return &storage.StorageError{Op: "create", Entity: "video", Err: storage.ErrInvalidInput}
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := s.now()
	v.CreatedAt, v.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		v.ID, v.ChannelID, v.YouTubeID, v.Title, v.Description, v.ThumbnailURL,
		v.DurationSeconds, v.PublishedAt, v.ViewCount, v.LikeCount, v.CommentCount,
		v.EngagementRate, v.IsOutlier, v.OutlierScore, v.Transcript, v.TranscriptFetchedAt,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return wrapErr("create", "video", v.YouTubeID, err)
	}
	return nil
}

func (s *Store) GetVideo(ctx context.Context, id string) (*storage.Video, error) {
	v, err := scanVideo(s.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("read", "video", id, err)
	}
	return v, nil
}

func (s *Store) GetVideoByYouTubeID(ctx context.Context, channelID, youtubeID string) (*storage.Video, error) {
	v, err := scanVideo(s.pool.QueryRow(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE channel_id = $1 AND youtube_id = $2`,
		channelID, youtubeID))
	if err != nil {
		return nil, wrapErr("read", "video", youtubeID, err)
	}
	return v, nil
}

func (s *Store) UpdateVideo(ctx context.Context, id string, patch storage.VideoPatch) error {
	if patch.Empty() {
		return &storage.StorageError{Op: "update", Entity: "video", ID: id, Err: storage.ErrInvalidInput}
	}
	query, args := videoUpdate(id, patch, s.now())
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return wrapErr("update", "video", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &storage.StorageError{Op: "update", Entity: "video", ID: id, Err: storage.ErrNotFound}
	}
	return nil
}

func (s *Store) ListVideosByChannel(ctx context.Context, channelID string) ([]*storage.Video, error) {
	return s.queryVideos(ctx, "list", channelID,
		`SELECT `+videoColumns+` FROM videos WHERE channel_id = $1 ORDER BY published_at DESC, id`,
		channelID)
}

func (s *Store) ListOutliersMissingTranscript(ctx context.Context, channelID string) ([]*storage.Video, error) {
	return s.queryVideos(ctx, "list", channelID,
		`SELECT `+videoColumns+` FROM videos
		WHERE channel_id = $1 AND is_outlier AND transcript IS NULL
		ORDER BY published_at DESC, id`,
		channelID)
}

func (s *Store) CountOutliers(ctx context.Context, channelID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM videos WHERE channel_id = $1 AND is_outlier`, channelID).Scan(&n)
	if err != nil {
		return 0, wrapErr("count", "video", channelID, err)
	}
	return n, nil
}
