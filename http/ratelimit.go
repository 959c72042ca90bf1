package http

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Backoff tuning for domains that answer 429/503.
const (
	InitialBackoff        = 1 * time.Second
	MaxBackoff            = 60 * time.Second
	BackoffMultiplier     = 2.0
	BackoffCooldownPeriod = 5 * time.Minute
	// MinRPSMultiplier is the floor of the dynamic rate reduction.
	MinRPSMultiplier = 0.25
)

// Well-known hosts.
const (
	HostYouTube = "www.youtube.com"
	HostDataAPI = "www.googleapis.com"
)

// RateLimiter keeps one token bucket per host and slows a host down
// after it reports rate limiting.
type RateLimiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	backoffState map[string]*BackoffState
	config       RateLimiterConfig
}

// BackoffState tracks rate limit backoff for a host.
type BackoffState struct {
	CurrentBackoff    time.Duration
	LastError         time.Time
	ConsecutiveErrors int
	// OriginalRPS is restored after the cooldown period.
	OriginalRPS float64
	// ReducedRPS is the current reduced rate (0 means using original).
	ReducedRPS float64
}

// RateLimiterConfig defines rate limiting behavior.
type RateLimiterConfig struct {
	// TimedtextRPS applies to www.youtube.com (transcripts).
	TimedtextRPS float64
	// DataAPIRPS applies to www.googleapis.com (Data API v3).
	DataAPIRPS float64
	// DefaultRPS applies to any other host. 0 means unlimited.
	DefaultRPS float64
	// CustomRates maps hosts to RPS values and wins over the fields above.
	CustomRates map[string]float64
	// EnableDynamicBackoff reduces a host's rate after rate limit errors.
	EnableDynamicBackoff bool
}

// DefaultRateLimiterConfig returns conservative defaults for YouTube hosts.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		TimedtextRPS:         2.0,
		DataAPIRPS:           1.0,
		CustomRates:          make(map[string]float64),
		EnableDynamicBackoff: true,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.CustomRates == nil {
		cfg.CustomRates = make(map[string]float64)
	}
	return &RateLimiter{
		limiters:     make(map[string]*rate.Limiter),
		backoffState: make(map[string]*BackoffState),
		config:       cfg,
	}
}

// Wait blocks until the host of urlStr may receive another request.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}
	limiter := rl.limiterFor(hostOf(urlStr))
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.New("rate limit: " + err.Error())
	}
	return nil
}

func (rl *RateLimiter) limiterFor(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters[host]; ok {
		return limiter
	}
	rps := rl.rpsFor(host)
	if rps <= 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	rl.limiters[host] = limiter
	return limiter
}

// rpsFor must be called with rl.mu held.
func (rl *RateLimiter) rpsFor(host string) float64 {
	if rps, ok := rl.config.CustomRates[host]; ok {
		return rps
	}
	switch host {
	case HostYouTube, "youtube.com":
		return rl.config.TimedtextRPS
	case HostDataAPI, "youtube.googleapis.com":
		return rl.config.DataAPIRPS
	default:
		return rl.config.DefaultRPS
	}
}

func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Hostname()
}

// SetCustomRate overrides the rate for one host.
func (rl *RateLimiter) SetCustomRate(host string, rps float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.config.CustomRates[host] = rps
	delete(rl.limiters, host)
}

// RecordRateLimitError registers a 429/503 from the host of urlStr and
// returns how long callers should back off.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		if retryAfter > 0 {
			return retryAfter
		}
		return InitialBackoff
	}

	host := hostOf(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoffState[host]
	if !ok {
		state = &BackoffState{CurrentBackoff: InitialBackoff, OriginalRPS: rl.rpsFor(host)}
		rl.backoffState[host] = state
	}
	state.LastError = time.Now()
	state.ConsecutiveErrors++

	// 1s -> 2s -> 4s ... capped at MaxBackoff.
	if state.ConsecutiveErrors > 1 {
		state.CurrentBackoff = time.Duration(float64(state.CurrentBackoff) * BackoffMultiplier)
		if state.CurrentBackoff > MaxBackoff {
			state.CurrentBackoff = MaxBackoff
		}
	}
	if retryAfter > state.CurrentBackoff {
		state.CurrentBackoff = retryAfter
	}

	rl.reduceRate(host, state)
	return state.CurrentBackoff
}

// reduceRate must be called with rl.mu held.
func (rl *RateLimiter) reduceRate(host string, state *BackoffState) {
	factor := 0.75
	switch {
	case state.ConsecutiveErrors >= 3:
		factor = MinRPSMultiplier
	case state.ConsecutiveErrors == 2:
		factor = 0.5
	}

	state.ReducedRPS = state.OriginalRPS * factor
	if limiter, ok := rl.limiters[host]; ok && state.ReducedRPS > 0 {
		limiter.SetLimit(rate.Limit(state.ReducedRPS))
	}
}

// RecordSuccess lets a host recover from backoff.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		return
	}

	host := hostOf(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.backoffState[host]
	if !ok {
		return
	}

	if time.Since(state.LastError) > BackoffCooldownPeriod {
		if limiter, ok := rl.limiters[host]; ok && state.ReducedRPS > 0 {
			limiter.SetLimit(rate.Limit(state.OriginalRPS))
		}
		delete(rl.backoffState, host)
		return
	}

	if state.ConsecutiveErrors > 0 {
		state.ConsecutiveErrors--
		// Recover to half speed now, full speed after the cooldown.
		if state.ConsecutiveErrors == 0 && state.ReducedRPS > 0 {
			if half := state.OriginalRPS * 0.5; half > state.ReducedRPS {
				state.ReducedRPS = half
				if limiter, ok := rl.limiters[host]; ok {
					limiter.SetLimit(rate.Limit(half))
				}
			}
		}
	}
}

// BackoffState returns a copy of the backoff state for the host of urlStr,
// or nil if the host is not backed off.
func (rl *RateLimiter) BackoffState(urlStr string) *BackoffState {
	if rl == nil {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if state, ok := rl.backoffState[hostOf(urlStr)]; ok {
		cp := *state
		return &cp
	}
	return nil
}

// WaitForBackoff waits out any backoff period of the host of urlStr.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	state := rl.BackoffState(urlStr)
	if state == nil {
		return nil
	}

	remaining := state.CurrentBackoff - time.Since(state.LastError)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
