package throttle

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

// fakeClock advances manually so interval math is deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestThrottle(cfg Config) (*Throttle, *fakeClock) {
	th := New(cfg)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	th.now = clock.now
	return th, clock
}

func TestAllow_SecondRequestWithinIntervalRejected(t *testing.T) {
	th, clock := newTestThrottle(DefaultConfig())

	if ok, _ := th.Allow("10.0.0.1"); !ok {
		t.Fatal("first request should pass")
	}

	clock.advance(300 * time.Millisecond)
	ok, wait := th.Allow("10.0.0.1")
	if ok {
		t.Fatal("second request within 500ms should be rejected")
	}
	if wait != 200*time.Millisecond {
		t.Fatalf("expected 200ms wait, got %v", wait)
	}
}

func TestAllow_SpacedRequestsBothPass(t *testing.T) {
	th, clock := newTestThrottle(DefaultConfig())

	if ok, _ := th.Allow("10.0.0.1"); !ok {
		t.Fatal("first request should pass")
	}
	clock.advance(600 * time.Millisecond)
	if ok, _ := th.Allow("10.0.0.1"); !ok {
		t.Fatal("request 600ms later should pass")
	}
}

func TestAllow_RejectionDoesNotAdvanceWindow(t *testing.T) {
	th, clock := newTestThrottle(DefaultConfig())

	th.Allow("10.0.0.1")
	clock.advance(300 * time.Millisecond)
	th.Allow("10.0.0.1") // rejected; stored timestamp unchanged
	clock.advance(300 * time.Millisecond)

	// 600ms since the allowed request, so this passes even though a
	// rejected request happened in between.
	if ok, _ := th.Allow("10.0.0.1"); !ok {
		t.Fatal("rejection must not update the stored timestamp")
	}
}

func TestAllow_ClientsAreIndependent(t *testing.T) {
	th, _ := newTestThrottle(DefaultConfig())

	th.Allow("10.0.0.1")
	if ok, _ := th.Allow("10.0.0.2"); !ok {
		t.Fatal("different client should not be throttled")
	}
}

func TestAllow_EmptyClientUsesSentinel(t *testing.T) {
	th, _ := newTestThrottle(DefaultConfig())

	th.Allow("")
	if ok, _ := th.Allow("unknown"); ok {
		t.Fatal("empty client identity should map to the unknown sentinel")
	}
}

func TestSweep_DropsStaleEntries(t *testing.T) {
	th, clock := newTestThrottle(Config{
		MinInterval:   500 * time.Millisecond,
		Retention:     time.Hour,
		SweepInterval: time.Minute,
	})

	th.Allow("10.0.0.1")
	th.Allow("10.0.0.2")
	if th.Len() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", th.Len())
	}

	clock.advance(2 * time.Hour)
	th.Allow("10.0.0.3") // triggers the sweep

	if th.Len() != 1 {
		t.Fatalf("expected stale entries swept, got %d tracked clients", th.Len())
	}
}

func TestAllow_ConcurrentSameClientSingleWinner(t *testing.T) {
	th := New(DefaultConfig())

	const n = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := th.Allow("10.0.0.1"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 1 {
		t.Fatalf("exactly one concurrent request should pass, got %d", allowed)
	}
}

func TestMiddleware_Rejects429WithWait(t *testing.T) {
	gin.SetMode(gin.TestMode)

	th, _ := newTestThrottle(DefaultConfig())
	r := gin.New()
	r.POST("/api/ai/send-message", th.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/ai/send-message", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w.Code)
	}
	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "too_many_requests") || !strings.Contains(body, "waitSeconds") {
		t.Fatalf("expected machine-readable wait in body, got %s", body)
	}
}
