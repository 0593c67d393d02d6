package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName          = "github.com/lokeshjavvadi/Smart-taskhub-React/api"
	mutationSpanName    = "taskhub.tasks.mutation"
	mutationEventName   = "taskhub.tasks.mutation.completed"
	mutationEventDomain = "taskhub.api"
	observabilityEvent  = "observability.event"
	attrPrefix          = "taskhub.tasks."
)

// mutationMetrics records one task mutation request as a span plus a
// structured log entry carrying the same attributes.
type mutationMetrics struct {
	logger    *log.Logger
	span      trace.Span
	start     time.Time
	route     string
	operation string

	projectID  string
	taskID     string
	score      int
	scored     bool
	errorStage string
}

func newMutationMetrics(ctx context.Context, logger *log.Logger, route, operation string) (*mutationMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, mutationSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &mutationMetrics{
		logger:    logger,
		span:      span,
		start:     time.Now(),
		route:     route,
		operation: operation,
	}, spanCtx
}

func (m *mutationMetrics) SetProject(id string) { m.projectID = id }

func (m *mutationMetrics) SetTask(t string) { m.taskID = t }

func (m *mutationMetrics) SetScore(score int) {
	m.score = score
	m.scored = true
}

func (m *mutationMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *mutationMetrics) attributes(status int, err error) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.String(attrPrefix+"operation", m.operation),
		attribute.Float64(attrPrefix+"total_ms", durationToMillis(time.Since(m.start))),
	}
	if m.projectID != "" {
		attrs = append(attrs, attribute.String(attrPrefix+"project_id", m.projectID))
	}
	if m.taskID != "" {
		attrs = append(attrs, attribute.String(attrPrefix+"task_id", m.taskID))
	}
	if m.scored {
		attrs = append(attrs, attribute.Int(attrPrefix+"priority_score", m.score))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String(attrPrefix+"error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	return attrs
}

// Log ends the span and emits the observability event.
func (m *mutationMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	attrs := m.attributes(status, err)
	severityText, severityNumber := severityForStatus(status, err)

	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", mutationEventName),
		attribute.String("event.domain", mutationEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)

	m.span.SetAttributes(attrs...)
	m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
	switch {
	case err != nil:
		m.span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusInternalServerError:
		m.span.SetStatus(codes.Error, http.StatusText(status))
	default:
		m.span.SetStatus(codes.Ok, "")
	}
	sc := m.span.SpanContext()
	m.span.End()

	if m.logger == nil {
		return
	}
	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	entry := m.logger.WithFields(log.Fields{
		"event.name":      mutationEventName,
		"event.domain":    mutationEventDomain,
		"attributes":      attrMap,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	})
	if sc.HasTraceID() {
		entry = entry.WithField("trace_id", sc.TraceID().String())
	}
	if sc.HasSpanID() {
		entry = entry.WithField("span_id", sc.SpanID().String())
	}
	switch severityNumber {
	case severityError:
		entry.Error(observabilityEvent)
	case severityWarn:
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

const (
	severityInfo  = 9
	severityWarn  = 13
	severityError = 17
)

// severityForStatus maps a response to OpenTelemetry log severity.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", severityError
	case status >= http.StatusBadRequest:
		return "WARN", severityWarn
	default:
		return "INFO", severityInfo
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
