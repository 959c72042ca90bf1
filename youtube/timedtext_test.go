package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "ytoutlier/http"
)

func newTestTimedtext(t *testing.T, handler http.HandlerFunc) *TimedtextProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := httpclient.DefaultConfig()
	cfg.Retry.MaxRetries = 1
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 5 * time.Millisecond
	cfg.RateLimiter.EnableDynamicBackoff = false
	cfg.RateLimiter.DefaultRPS = 0

	p := NewTimedtextProvider(TimedtextConfig{BaseURL: srv.URL + "/api/timedtext", HTTP: cfg})
	t.Cleanup(func() { p.Close() })
	return p
}

func TestTimedtext_FetchTranscript(t *testing.T) {
	p := newTestTimedtext(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc123", r.URL.Query().Get("v"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		assert.Equal(t, "json3", r.URL.Query().Get("fmt"))
		w.Write([]byte(`{"events":[
			{"tStartMs":0,"segs":[{"utf8":"hello"},{"utf8":" world"}]},
			{"tStartMs":1200},
			{"tStartMs":2000,"segs":[{"utf8":"\n"}]},
			{"tStartMs":3000,"segs":[{"utf8":"again  "}]}
		]}`))
	})

	text, err := p.FetchTranscript(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "hello world again", text)
}

func TestTimedtext_NotFoundIsUnavailable(t *testing.T) {
	p := newTestTimedtext(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	text, err := p.FetchTranscript(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTimedtext_EmptyBodyIsUnavailable(t *testing.T) {
	p := newTestTimedtext(t, func(w http.ResponseWriter, r *http.Request) {})

	text, err := p.FetchTranscript(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTimedtext_ServerErrorIsProviderError(t *testing.T) {
	p := newTestTimedtext(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.FetchTranscript(context.Background(), "abc123")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "timedtext", perr.Source)
	assert.Equal(t, "abc123", perr.Target)
}

func TestTimedtext_RateLimited(t *testing.T) {
	p := newTestTimedtext(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.FetchTranscript(context.Background(), "abc123")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestTimedtext_MalformedJSON(t *testing.T) {
	p := newTestTimedtext(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"events":`))
	})

	_, err := p.FetchTranscript(context.Background(), "abc123")
	assert.Error(t, err)
}

func TestTimedtext_EmptyVideoID(t *testing.T) {
	p := newTestTimedtext(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	_, err := p.FetchTranscript(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
