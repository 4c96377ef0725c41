// Package throttle enforces a minimum interval between requests per client
// identity on the AI analysis routes.
package throttle

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the throttle.
type Config struct {
	// MinInterval is the minimum time between two requests from the same client.
	MinInterval time.Duration
	// Retention is how long idle client entries are kept before being swept.
	Retention time.Duration
	// SweepInterval bounds how often the opportunistic sweep runs.
	SweepInterval time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		MinInterval:   500 * time.Millisecond,
		Retention:     time.Hour,
		SweepInterval: time.Minute,
	}
}

var throttleRejections = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "credinsight",
	Subsystem: "throttle",
	Name:      "rejections_total",
	Help:      "Requests rejected by the per-client minimum-interval gate.",
})

func init() {
	prometheus.MustRegister(throttleRejections)
}

// Throttle tracks the last request time per client identity. Allow performs
// an atomic check-and-set under the mutex so two concurrent requests from
// the same client cannot both pass within one interval.
type Throttle struct {
	cfg Config

	mu        sync.Mutex
	last      map[string]time.Time
	lastSweep time.Time

	now func() time.Time
}

// New creates a throttle with the given config, applying defaults for
// non-positive fields.
func New(cfg Config) *Throttle {
	def := DefaultConfig()
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	return &Throttle{
		cfg:  cfg,
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Allow reports whether a request from clientID may proceed. When rejected,
// wait is how long the client must hold off. The stored timestamp is only
// updated on allow, so a rejected burst does not push the window forward.
func (t *Throttle) Allow(clientID string) (ok bool, wait time.Duration) {
	if clientID == "" {
		clientID = "unknown"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if prior, exists := t.last[clientID]; exists {
		if since := now.Sub(prior); since < t.cfg.MinInterval {
			throttleRejections.Inc()
			return false, t.cfg.MinInterval - since
		}
	}

	t.last[clientID] = now
	t.sweepLocked(now)
	return true, 0
}

// Len returns the number of tracked clients.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

// sweepLocked drops entries older than the retention window. It runs at
// most once per SweepInterval so the map stays bounded without a background
// goroutine. Caller must hold t.mu.
func (t *Throttle) sweepLocked(now time.Time) {
	if now.Sub(t.lastSweep) < t.cfg.SweepInterval {
		return
	}
	t.lastSweep = now

	cutoff := now.Add(-t.cfg.Retention)
	for id, ts := range t.last {
		if ts.Before(cutoff) {
			delete(t.last, id)
		}
	}
}

// Middleware returns a Gin middleware that throttles by client IP. Apply it
// only to the AI message routes; everything else bypasses the throttle.
func (t *Throttle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := t.Allow(c.ClientIP())
		if !ok {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too_many_requests",
				"message":     "Too many KYC requests. Please slow down.",
				"waitSeconds": wait.Seconds(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
