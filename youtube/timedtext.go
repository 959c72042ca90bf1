package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	httpclient "ytoutlier/http"
)

const (
	sourceTimedtext = "timedtext"
	// DefaultTimedtextURL is YouTube's public caption track endpoint.
	DefaultTimedtextURL = "https://www.youtube.com/api/timedtext"
)

// TimedtextConfig configures a TimedtextProvider.
type TimedtextConfig struct {
	// BaseURL defaults to DefaultTimedtextURL.
	BaseURL string
	// Language is the caption language requested, "en" by default.
	Language string
	// HTTP configures the underlying client. Nil means httpclient.DefaultConfig().
	HTTP   *httpclient.Config
	Logger zerolog.Logger
}

// TimedtextProvider implements TranscriptProvider on the timedtext endpoint.
type TimedtextProvider struct {
	client   *httpclient.Client
	baseURL  string
	language string
	log      zerolog.Logger
}

var _ TranscriptProvider = (*TimedtextProvider)(nil)

// NewTimedtextProvider creates a transcript provider.
func NewTimedtextProvider(cfg TimedtextConfig) *TimedtextProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTimedtextURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &TimedtextProvider{
		client:   httpclient.New(cfg.HTTP),
		baseURL:  cfg.BaseURL,
		language: cfg.Language,
		log:      cfg.Logger,
	}
}

type timedtextResponse struct {
	Events []timedtextEvent `json:"events"`
}

type timedtextEvent struct {
	Segs []struct {
		UTF8 string `json:"utf8"`
	} `json:"segs"`
}

// FetchTranscript downloads the video's caption track and flattens it to
// plain text. A missing or empty track yields "" and no error.
func (p *TimedtextProvider) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	if videoID == "" {
		return "", &ProviderError{Source: sourceTimedtext, Err: ErrInvalidInput}
	}

	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", p.language)
	params.Set("fmt", "json3")

	resp, err := p.client.Get(ctx, p.baseURL+"?"+params.Encode())
	if err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			p.log.Debug().Str("video", videoID).Msg("no caption track")
			return "", nil
		}
		return "", &ProviderError{Source: sourceTimedtext, Target: videoID, Err: classifyHTTPError(err)}
	}

	text, err := parseTimedtext(resp.Body)
	if err != nil {
		return "", &ProviderError{Source: sourceTimedtext, Target: videoID, Err: err}
	}
	return text, nil
}

func parseTimedtext(body []byte) (string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}

	var resp timedtextResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal timedtext JSON: %w", err)
	}

	var b strings.Builder
	for _, event := range resp.Events {
		for _, seg := range event.Segs {
			b.WriteString(seg.UTF8)
		}
		b.WriteByte(' ')
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func classifyHTTPError(err error) error {
	var rlErr *httpclient.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrNetworkTimeout, err)
	}
	return err
}

// Close releases idle connections.
func (p *TimedtextProvider) Close() error {
	return p.client.Close()
}
