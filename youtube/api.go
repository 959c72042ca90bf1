package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	httpclient "ytoutlier/http"
	"ytoutlier/internal/retry"
)

const (
	sourceDataAPI = "data-api"
	// dataAPIURL keys the rate limiter bucket for Data API calls.
	dataAPIURL = "https://" + httpclient.HostDataAPI + "/youtube/v3"
	// pageSize is the Data API's maximum page and batch size.
	pageSize = 50
)

// DataAPIConfig configures a DataAPIProvider.
type DataAPIConfig struct {
	APIKey string
	// Quota is charged for every call. Nil disables quota accounting.
	Quota *QuotaTracker
	Retry retry.Config
	// RateLimiter spaces out calls. Nil disables rate limiting.
	RateLimiter *httpclient.RateLimiter
	Logger      zerolog.Logger
	// ClientOptions are appended to the service options, e.g. a test endpoint.
	ClientOptions []option.ClientOption
}

// DataAPIProvider implements VideoProvider and ChannelProvider on the
// YouTube Data API v3.
type DataAPIProvider struct {
	service *youtube.Service
	quota   *QuotaTracker
	retry   retry.Config
	limiter *httpclient.RateLimiter
	log     zerolog.Logger
}

var (
	_ VideoProvider   = (*DataAPIProvider)(nil)
	_ ChannelProvider = (*DataAPIProvider)(nil)
)

// NewDataAPIProvider creates a Data API client authenticated with cfg.APIKey.
func NewDataAPIProvider(ctx context.Context, cfg DataAPIConfig) (*DataAPIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key required", ErrInvalidInput)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &DataAPIProvider{
		service: service,
		quota:   cfg.Quota,
		retry:   cfg.Retry,
		limiter: cfg.RateLimiter,
		log:     cfg.Logger,
	}, nil
}

// Quota returns the provider's quota tracker, which may be nil.
func (p *DataAPIProvider) Quota() *QuotaTracker {
	return p.quota
}

// call runs fn with retries. Every attempt is charged against the quota
// and waits for the rate limiter, which backs off after rate limit errors.
func (p *DataAPIProvider) call(ctx context.Context, cost int, fn func(context.Context) error) error {
	return retry.Do(ctx, p.retry, apiErrorClassifier, func(ctx context.Context) error {
		if err := p.quota.Consume(cost); err != nil {
			p.log.Warn().Int("remaining", p.quota.Remaining()).Msg("youtube quota exhausted")
			return retry.Permanent(err)
		}
		if err := p.limiter.WaitForBackoff(ctx, dataAPIURL); err != nil {
			return retry.Permanent(err)
		}
		if err := p.limiter.Wait(ctx, dataAPIURL); err != nil {
			return retry.Permanent(err)
		}
		err := translateAPIError(ctx, fn(ctx))
		switch {
		case errors.Is(err, ErrRateLimited):
			backoff := p.limiter.RecordRateLimitError(dataAPIURL, 0)
			p.log.Debug().Dur("backoff", backoff).Msg("data api rate limited")
		case err == nil:
			p.limiter.RecordSuccess(dataAPIURL)
		}
		return err
	})
}

// FetchChannelVideos lists the channel's uploads playlist newest first and
// hydrates the entries with statistics and durations.
func (p *DataAPIProvider) FetchChannelVideos(ctx context.Context, channelID string, maxResults int) ([]VideoRecord, error) {
	if channelID == "" || maxResults <= 0 {
		return nil, &ProviderError{Source: sourceDataAPI, Target: channelID, Err: ErrInvalidInput}
	}

	uploads, err := p.uploadsPlaylist(ctx, channelID)
	if err != nil {
		return nil, &ProviderError{Source: sourceDataAPI, Target: channelID, Err: err}
	}

	ids, err := p.playlistVideoIDs(ctx, uploads, maxResults)
	if err != nil {
		return nil, &ProviderError{Source: sourceDataAPI, Target: channelID, Err: err}
	}

	records, err := p.videoDetails(ctx, ids)
	if err != nil {
		return nil, &ProviderError{Source: sourceDataAPI, Target: channelID, Err: err}
	}

	p.log.Debug().Str("channel", channelID).Int("videos", len(records)).Int("quota_remaining", p.quota.Remaining()).Msg("fetched channel videos")
	return records, nil
}

func (p *DataAPIProvider) uploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	var playlistID string
	err := p.call(ctx, CostChannelsList, func(ctx context.Context) error {
		resp, err := p.service.Channels.List([]string{"contentDetails"}).Id(channelID).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil || resp.Items[0].ContentDetails.RelatedPlaylists == nil {
			return retry.Permanent(ErrChannelNotFound)
		}
		playlistID = resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
		return nil
	})
	return playlistID, err
}

func (p *DataAPIProvider) playlistVideoIDs(ctx context.Context, playlistID string, maxResults int) ([]string, error) {
	var ids []string
	pageToken := ""
	for len(ids) < maxResults {
		size := min(maxResults-len(ids), pageSize)

		var next string
		err := p.call(ctx, CostPlaylistItemsList, func(ctx context.Context) error {
			resp, err := p.service.PlaylistItems.List([]string{"contentDetails"}).
				PlaylistId(playlistID).
				MaxResults(int64(size)).
				PageToken(pageToken).
				Context(ctx).
				Do()
			if err != nil {
				return err
			}
			for _, item := range resp.Items {
				if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
					ids = append(ids, item.ContentDetails.VideoId)
				}
			}
			next = resp.NextPageToken
			return nil
		})
		if err != nil {
			// An empty channel has no uploads playlist to list.
			if errors.Is(err, ErrChannelNotFound) && len(ids) == 0 {
				return nil, nil
			}
			return nil, err
		}
		if next == "" {
			break
		}
		pageToken = next
	}

	if len(ids) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

func (p *DataAPIProvider) videoDetails(ctx context.Context, ids []string) ([]VideoRecord, error) {
	byID := make(map[string]VideoRecord, len(ids))
	for start := 0; start < len(ids); start += pageSize {
		batch := ids[start:min(start+pageSize, len(ids))]
		err := p.call(ctx, CostVideosList, func(ctx context.Context) error {
			resp, err := p.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
				Id(batch...).
				MaxResults(int64(len(batch))).
				Context(ctx).
				Do()
			if err != nil {
				return err
			}
			for _, v := range resp.Items {
				byID[v.Id] = videoRecord(v)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// Keep playlist order; videos that vanished between calls are dropped.
	records := make([]VideoRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func videoRecord(v *youtube.Video) VideoRecord {
	rec := VideoRecord{ID: v.Id}
	if v.Snippet != nil {
		rec.Title = v.Snippet.Title
		rec.Description = v.Snippet.Description
		rec.ThumbnailURL = bestThumbnail(v.Snippet.Thumbnails)
		if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
			rec.PublishedAt = t
		}
	}
	if v.ContentDetails != nil {
		if d, err := ParseDuration(v.ContentDetails.Duration); err == nil {
			rec.DurationSeconds = int(d / time.Second)
		}
	}
	if v.Statistics != nil {
		rec.ViewCount = int64(v.Statistics.ViewCount)
		rec.LikeCount = int64(v.Statistics.LikeCount)
		rec.CommentCount = int64(v.Statistics.CommentCount)
	}
	return rec
}

// bestThumbnail prefers maxres, then high, medium and default.
func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// FetchChannel looks up a channel by ID (UC...) or @handle.
func (p *DataAPIProvider) FetchChannel(ctx context.Context, idOrHandle string) (*ChannelRecord, error) {
	idOrHandle = strings.TrimSpace(idOrHandle)
	if idOrHandle == "" {
		return nil, &ProviderError{Source: sourceDataAPI, Err: ErrInvalidInput}
	}

	var rec *ChannelRecord
	err := p.call(ctx, CostChannelsList, func(ctx context.Context) error {
		call := p.service.Channels.List([]string{"snippet", "statistics"})
		if strings.HasPrefix(idOrHandle, "@") {
			call = call.ForHandle(idOrHandle)
		} else {
			call = call.Id(idOrHandle)
		}
		resp, err := call.Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return retry.Permanent(ErrChannelNotFound)
		}

		ch := resp.Items[0]
		rec = &ChannelRecord{ID: ch.Id}
		if ch.Snippet != nil {
			rec.Title = ch.Snippet.Title
			rec.Handle = ch.Snippet.CustomUrl
			rec.Description = ch.Snippet.Description
			rec.ThumbnailURL = bestThumbnail(ch.Snippet.Thumbnails)
		}
		if ch.Statistics != nil {
			rec.SubscriberCount = int64(ch.Statistics.SubscriberCount)
			rec.VideoCount = int64(ch.Statistics.VideoCount)
		}
		return nil
	})
	if err != nil {
		return nil, &ProviderError{Source: sourceDataAPI, Target: idOrHandle, Err: err}
	}
	return rec, nil
}

// translateAPIError maps googleapi errors onto package sentinels and marks
// the ones that retrying cannot fix.
func translateAPIError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrNetworkTimeout, ctx.Err())
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded":
			return retry.Permanent(fmt.Errorf("%w: %s", ErrQuotaExhausted, gerr.Message))
		case "rateLimitExceeded", "userRateLimitExceeded":
			return fmt.Errorf("%w: %s", ErrRateLimited, gerr.Message)
		case "channelNotFound", "playlistNotFound":
			return retry.Permanent(fmt.Errorf("%w: %s", ErrChannelNotFound, gerr.Message))
		}
	}

	switch {
	case gerr.Code == http.StatusNotFound:
		return retry.Permanent(fmt.Errorf("%w: %s", ErrChannelNotFound, gerr.Message))
	case gerr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, gerr.Message)
	case gerr.Code >= 400 && gerr.Code < 500:
		return retry.Permanent(err)
	}
	return err
}

// apiErrorClassifier retries everything except permanent errors and
// context expiry.
func apiErrorClassifier(err error) bool {
	if errors.Is(err, ErrNetworkTimeout) {
		return false
	}
	return retry.IsRetryable(err)
}
