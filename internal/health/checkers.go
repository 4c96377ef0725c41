package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AvailabilityReporter is satisfied by the AI client: a cheap probe that
// reflects circuit breaker state without making a backend call.
type AvailabilityReporter interface {
	IsAvailable() bool
}

// DatabaseChecker pings the database with a short timeout.
func DatabaseChecker(db *sql.DB) Checker {
	return func(ctx context.Context) Status {
		if db == nil {
			return Status{Name: "database", Healthy: true, Detail: "in-memory store"}
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return Status{Name: "database", Healthy: false, Detail: fmt.Sprintf("ping failed: %v", err)}
		}
		return Status{Name: "database", Healthy: true}
	}
}

// AIChecker reports whether the AI boundary is accepting requests. An open
// circuit breaker reports unhealthy without touching the backend.
func AIChecker(client AvailabilityReporter) Checker {
	return func(ctx context.Context) Status {
		if client == nil {
			return Status{Name: "ai", Healthy: true, Detail: "ai disabled"}
		}
		if !client.IsAvailable() {
			return Status{Name: "ai", Healthy: false, Detail: "circuit breaker open"}
		}
		return Status{Name: "ai", Healthy: true}
	}
}
