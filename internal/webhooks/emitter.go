package webhooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mistagar/credinsight/internal/idgen"
)

var (
	webhookEmitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credinsight",
		Subsystem: "webhook",
		Name:      "emit_total",
		Help:      "Total webhook emit attempts by event type.",
	}, []string{"event_type"})

	webhookEmitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "credinsight",
		Subsystem: "webhook",
		Name:      "emit_errors_total",
		Help:      "Total webhook emit failures by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(webhookEmitTotal, webhookEmitErrors)
}

// Emitter wraps a Dispatcher to emit lifecycle events across subsystems.
// All methods are fire-and-forget: errors are logged but never returned.
type Emitter struct {
	d      *Dispatcher
	logger *slog.Logger
}

// NewEmitter creates a new webhook emitter.
func NewEmitter(d *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{d: d, logger: logger}
}

func (e *Emitter) emit(eventType EventType, data map[string]interface{}) {
	if e == nil || e.d == nil {
		return
	}
	webhookEmitTotal.WithLabelValues(string(eventType)).Inc()
	event := &Event{
		ID:        idgen.WithPrefix("evt_"),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.d.Dispatch(ctx, event); err != nil {
		webhookEmitErrors.WithLabelValues(string(eventType)).Inc()
		e.logger.Warn("webhook emit failed", "event", eventType, "error", err)
	}
}

// EmitAssessmentCreated emits an assessment.created event.
func (e *Emitter) EmitAssessmentCreated(customerID, assessmentID string, score int, level string) {
	e.emit(EventAssessmentCreated, map[string]interface{}{
		"customerId":   customerID,
		"assessmentId": assessmentID,
		"score":        score,
		"level":        level,
	})
}

// EmitAssessmentHighRisk emits an assessment.high_risk event.
func (e *Emitter) EmitAssessmentHighRisk(customerID, assessmentID string, score int) {
	e.emit(EventAssessmentHighRisk, map[string]interface{}{
		"customerId":   customerID,
		"assessmentId": assessmentID,
		"score":        score,
	})
}

// EmitAnalysisCompleted emits an analysis.completed event.
func (e *Emitter) EmitAnalysisCompleted(customerID, analysisID, suspicionLevel string) {
	e.emit(EventAnalysisCompleted, map[string]interface{}{
		"customerId":     customerID,
		"analysisId":     analysisID,
		"suspicionLevel": suspicionLevel,
	})
}

// EmitCircuitOpened emits an ai.circuit_opened event.
func (e *Emitter) EmitCircuitOpened(retryAfter time.Duration) {
	e.emit(EventCircuitOpened, map[string]interface{}{
		"retryAfterSeconds": int(retryAfter.Seconds()),
	})
}
