// Package circuitbreaker guards the external AI backend behind a
// consecutive-failure circuit that opens for a cooldown window.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Defaults applied when New is called with non-positive values.
const (
	DefaultThreshold = 3
	DefaultCooldown  = 5 * time.Minute
)

var (
	cbOpenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "credinsight",
		Subsystem: "circuitbreaker",
		Name:      "open",
		Help:      "1 when the AI circuit breaker is open, 0 when closed.",
	})

	cbTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credinsight",
		Subsystem: "circuitbreaker",
		Name:      "transitions_total",
		Help:      "Circuit breaker transitions by direction (opened/closed).",
	}, []string{"direction"})
)

func init() {
	prometheus.MustRegister(cbOpenGauge, cbTransitions)
}

// Breaker tracks consecutive failures of the AI backend. It opens once
// threshold consecutive failures have been recorded and stays open until
// cooldown has elapsed since the last failure. The open state is evaluated
// lazily on every check, so the breaker self-closes with no explicit
// transition. One instance is shared by all request paths; every operation
// takes the single mutex so the failure counter and last-failure time are
// always observed together.
type Breaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	threshold   int
	cooldown    time.Duration

	wasOpen bool // last observed open state, for transition accounting
	onOpen  func(retryAfter time.Duration)
	now     func() time.Time
}

// New creates a breaker that opens after threshold consecutive failures
// and rejects calls for cooldown after the most recent failure.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// OnOpen sets a callback fired once each time the breaker transitions to
// open, with the remaining cooldown at that moment.
func (b *Breaker) OnOpen(fn func(retryAfter time.Duration)) {
	b.mu.Lock()
	b.onOpen = fn
	b.mu.Unlock()
}

// IsOpen reports whether calls should currently be rejected.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openLocked()
}

// RecordSuccess resets the consecutive-failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.observeLocked()
}

// RecordFailure increments the consecutive-failure counter and stamps the
// failure time. Only rate-limit failures should be recorded here; callers
// classify before recording.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	b.observeLocked()
}

// TimeUntilReset returns how long until the breaker self-closes, or zero
// if it is not open.
func (b *Breaker) TimeUntilReset() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.openLocked() {
		return 0
	}
	remaining := b.cooldown - b.now().Sub(b.lastFailure)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// openLocked evaluates the open condition. Caller must hold b.mu.
func (b *Breaker) openLocked() bool {
	return b.failures >= b.threshold && b.now().Sub(b.lastFailure) < b.cooldown
}

// observeLocked updates metrics and fires the open callback on a
// closed→open edge. Caller must hold b.mu.
func (b *Breaker) observeLocked() {
	open := b.openLocked()
	if open == b.wasOpen {
		return
	}
	b.wasOpen = open
	if open {
		cbOpenGauge.Set(1)
		cbTransitions.WithLabelValues("opened").Inc()
		if b.onOpen != nil {
			retryAfter := b.cooldown - b.now().Sub(b.lastFailure)
			fn := b.onOpen
			go fn(retryAfter)
		}
	} else {
		cbOpenGauge.Set(0)
		cbTransitions.WithLabelValues("closed").Inc()
	}
}
