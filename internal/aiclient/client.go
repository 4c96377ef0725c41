// Package aiclient is the rate-limited, circuit-broken gateway to the
// external AI reasoning backend.
//
// A Client wraps a single-shot Sender with exponential backoff plus jitter
// and consults the shared circuit breaker before every call. Only
// rate-limit-classified failures count toward opening the breaker;
// everything else propagates immediately.
package aiclient

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mistagar/credinsight/internal/circuitbreaker"
)

// DefaultMaxRetries is the retry budget used when callers pass a negative value.
const DefaultMaxRetries = 3

// maxBackoff caps the computed backoff delay.
const maxBackoff = 60 * time.Second

var (
	aiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credinsight",
		Subsystem: "ai",
		Name:      "requests_total",
		Help:      "AI backend requests by result.",
	}, []string{"result"})

	aiRetryAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "credinsight",
		Subsystem: "ai",
		Name:      "attempts_per_request",
		Help:      "Send attempts made per AI request.",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})
)

func init() {
	prometheus.MustRegister(aiRequestsTotal, aiRetryAttempts)
}

// Sender is the single-shot outbound boundary to the AI backend.
type Sender interface {
	Send(ctx context.Context, input string) (string, error)
}

// MessageSender is optionally implemented by senders that accept a full
// chat transcript. Senders that only implement Sender receive the
// transcript flattened into role-prefixed text.
type MessageSender interface {
	SendMessages(ctx context.Context, msgs []Message) (string, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, input string) (string, error)

func (f SenderFunc) Send(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}

// Client invokes the AI backend with resilience.
type Client struct {
	sender  Sender
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger

	// injectable for tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// New creates a retrying client around sender, guarded by breaker.
func New(sender Sender, breaker *circuitbreaker.Breaker, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
		sleep:   ctxSleep,
		jitter:  cryptoJitter,
	}
}

// SendWithRetry sends input, retrying rate-limited failures up to
// maxRetries times (so maxRetries+1 attempts in total). The backoff sleep
// holds no locks and aborts between attempts when ctx is done.
func (c *Client) SendWithRetry(ctx context.Context, input string, maxRetries int) (string, error) {
	return c.sendWithRetry(ctx, maxRetries, func(ctx context.Context) (string, error) {
		return c.sender.Send(ctx, input)
	})
}

// SendTranscriptWithRetry sends a whole chat transcript with the same
// retry and breaker behavior as SendWithRetry. Transcript-aware senders
// get the messages as-is; plain senders get them flattened to text.
func (c *Client) SendTranscriptWithRetry(ctx context.Context, msgs []Message, maxRetries int) (string, error) {
	if ms, ok := c.sender.(MessageSender); ok {
		return c.sendWithRetry(ctx, maxRetries, func(ctx context.Context) (string, error) {
			return ms.SendMessages(ctx, msgs)
		})
	}
	flat := FlattenTranscript(msgs)
	return c.sendWithRetry(ctx, maxRetries, func(ctx context.Context) (string, error) {
		return c.sender.Send(ctx, flat)
	})
}

func (c *Client) sendWithRetry(ctx context.Context, maxRetries int, send func(context.Context) (string, error)) (string, error) {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	// The open check itself never counts as a failure.
	if c.breaker.IsOpen() {
		retryAfter := c.breaker.TimeUntilReset()
		c.logger.Warn("circuit breaker open, rejecting AI request",
			"retry_after", retryAfter)
		aiRequestsTotal.WithLabelValues("unavailable").Inc()
		return "", &ServiceUnavailableError{RetryAfter: retryAfter}
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		reply, err := send(ctx)
		if err == nil {
			c.breaker.RecordSuccess()
			aiRequestsTotal.WithLabelValues("ok").Inc()
			aiRetryAttempts.Observe(float64(attempt + 1))
			return reply, nil
		}

		if !isRateLimitError(err) {
			// Non-retryable: propagate without recording a breaker failure.
			c.logger.Error("non-retryable AI backend error", "error", err)
			aiRequestsTotal.WithLabelValues("error").Inc()
			aiRetryAttempts.Observe(float64(attempt + 1))
			return "", err
		}

		c.logger.Warn("rate limit hit on AI request",
			"attempt", attempt+1, "error", err)
		c.breaker.RecordFailure()

		if attempt == maxRetries {
			c.logger.Error("retries exhausted for AI request", "max_retries", maxRetries)
			aiRequestsTotal.WithLabelValues("rate_limited").Inc()
			aiRetryAttempts.Observe(float64(attempt + 1))
			return "", &RateLimitedError{Err: err}
		}

		delay := backoffDelay(attempt, c.jitter())
		c.logger.Info("backing off before retry", "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			aiRequestsTotal.WithLabelValues("canceled").Inc()
			return "", err
		}
	}

	// Unreachable: the loop always returns.
	return "", &RateLimitedError{}
}

// IsAvailable is a cheap non-invoking probe for health reporting.
func (c *Client) IsAvailable() bool {
	return !c.breaker.IsOpen()
}

// Breaker exposes the underlying breaker for status endpoints.
func (c *Client) Breaker() *circuitbreaker.Breaker {
	return c.breaker
}

// backoffDelay computes min(2^attempt * (1 + jitter), 60s) seconds, with
// jitter in [0, 0.5). Attempt is 0-indexed: the first retry waits between
// 1s and 1.5s.
func backoffDelay(attempt int, jitter float64) time.Duration {
	seconds := math.Pow(2, float64(attempt)) * (1 + jitter)
	if seconds > maxBackoff.Seconds() {
		return maxBackoff
	}
	return time.Duration(seconds * float64(time.Second))
}

// cryptoJitter returns a uniform value in [0, 0.5) using crypto/rand.
func cryptoJitter() float64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	v := binary.LittleEndian.Uint64(b[:]) >> 1
	return float64(v%5000) / 10000
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
