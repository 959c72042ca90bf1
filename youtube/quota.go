package youtube

import (
	"sync"
	"time"
)

// DefaultDailyQuota is the Data API's default daily allowance in units.
const DefaultDailyQuota = 10000

// Data API costs, in quota units, of the calls the provider makes.
const (
	CostChannelsList      = 1
	CostPlaylistItemsList = 1
	CostVideosList        = 1
)

// quotaZone is where the Data API resets its daily quota (midnight Pacific).
var quotaZone = loadQuotaZone()

func loadQuotaZone() *time.Location {
	if loc, err := time.LoadLocation("America/Los_Angeles"); err == nil {
		return loc
	}
	return time.FixedZone("PST", -8*60*60)
}

// QuotaTracker accounts for Data API quota units spent by one API key.
// A tracker is owned by the provider using that key; a nil tracker
// never refuses.
type QuotaTracker struct {
	mu      sync.Mutex
	limit   int
	reserve int
	used    int
	day     string
	now     func() time.Time
}

// NewQuotaTracker creates a tracker that refuses calls which would leave
// fewer than reserve of limit units. A non-positive limit means DefaultDailyQuota.
func NewQuotaTracker(limit, reserve int) *QuotaTracker {
	if limit <= 0 {
		limit = DefaultDailyQuota
	}
	if reserve < 0 {
		reserve = 0
	}
	return &QuotaTracker{limit: limit, reserve: reserve, now: time.Now}
}

// rollover must be called with q.mu held.
func (q *QuotaTracker) rollover() {
	day := q.now().In(quotaZone).Format(time.DateOnly)
	if day != q.day {
		q.day = day
		q.used = 0
	}
}

// Consume reserves units for a call, or returns ErrQuotaExhausted without
// consuming anything.
func (q *QuotaTracker) Consume(units int) error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	if q.limit-q.used-units < q.reserve {
		return ErrQuotaExhausted
	}
	q.used += units
	return nil
}

// Remaining returns the units left today, reserve included.
func (q *QuotaTracker) Remaining() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	return q.limit - q.used
}

// Exhausted reports whether no further call of cost 1 would be allowed.
func (q *QuotaTracker) Exhausted() bool {
	if q == nil {
		return false
	}
	return q.Remaining()-1 < q.reserve
}
