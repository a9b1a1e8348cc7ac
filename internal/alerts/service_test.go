package alerts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/startinsight/signal-pipeline/internal/models"
)

type capturingHandler struct {
	name   string
	alerts []models.Alert
	err    error
	panics bool
}

func (h *capturingHandler) Name() string { return h.name }

func (h *capturingHandler) Handle(alert models.Alert) error {
	if h.panics {
		panic("handler exploded")
	}
	h.alerts = append(h.alerts, alert)
	return h.err
}

func healthyMetrics() models.QualityMetrics {
	return models.QualityMetrics{
		ValidationPassRate: 0.95,
		DuplicateRate:      0.05,
		LLMErrorRate:       0.01,
	}
}

func TestCheckAndAlert_HealthyMetricsFireNothing(t *testing.T) {
	handler := &capturingHandler{name: "capture"}
	service := NewService(handler)

	fired := service.CheckAndAlert(healthyMetrics())

	assert.Empty(t, fired)
	assert.Empty(t, handler.alerts)
	assert.Empty(t, service.History())
}

func TestCheckAndAlert_StrictComparisonAtBoundary(t *testing.T) {
	service := NewService()

	m := healthyMetrics()
	m.ValidationPassRate = 0.80
	m.DuplicateRate = 0.30
	m.LLMErrorRate = 0.10

	fired := service.CheckAndAlert(m)
	assert.Empty(t, fired, "metrics exactly at threshold values must not breach")
}

func TestCheckAndAlert_BothSeveritiesFireInOneCall(t *testing.T) {
	handler := &capturingHandler{name: "capture"}
	service := NewService(handler)

	m := healthyMetrics()
	m.ValidationPassRate = 0.55

	fired := service.CheckAndAlert(m)

	assert.Len(t, fired, 2)
	severities := []models.Severity{fired[0].Severity, fired[1].Severity}
	assert.Contains(t, severities, models.SeverityWarning)
	assert.Contains(t, severities, models.SeverityCritical)

	for _, alert := range fired {
		assert.Equal(t, "validation_pass_rate", alert.MetricName)
		assert.Equal(t, 0.55, alert.ActualValue)
		assert.NotEmpty(t, alert.ID)
		assert.Contains(t, alert.Message, "0.55")
	}
}

func TestCheckAndAlert_DedupWithinOneHour(t *testing.T) {
	service := NewService()
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	m := healthyMetrics()
	m.DuplicateRate = 0.40

	first := service.CheckAndAlert(m)
	assert.Len(t, first, 1)

	// Same breach 30 minutes later is suppressed.
	now = now.Add(30 * time.Minute)
	second := service.CheckAndAlert(m)
	assert.Empty(t, second)

	// After the dedup window it fires again.
	now = now.Add(45 * time.Minute)
	third := service.CheckAndAlert(m)
	assert.Len(t, third, 1)
}

func TestCheckAndAlert_DifferentSeverityNotDeduped(t *testing.T) {
	service := NewService()
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	m := healthyMetrics()
	m.DuplicateRate = 0.40

	assert.Len(t, service.CheckAndAlert(m), 1)

	// The error-severity breach for the same metric is new.
	m.DuplicateRate = 0.60
	now = now.Add(time.Minute)
	fired := service.CheckAndAlert(m)
	assert.Len(t, fired, 1)
	assert.Equal(t, models.SeverityError, fired[0].Severity)
}

func TestCheckAndAlert_HistoryPrunedAfter24Hours(t *testing.T) {
	service := NewService()
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	m := healthyMetrics()
	m.DuplicateRate = 0.40
	service.CheckAndAlert(m)
	assert.Len(t, service.History(), 1)

	now = now.Add(25 * time.Hour)
	service.CheckAndAlert(healthyMetrics())
	assert.Empty(t, service.History())
}

func TestCheckAndAlert_HandlerFailuresIsolated(t *testing.T) {
	failing := &capturingHandler{name: "failing", err: errors.New("smtp down")}
	panicking := &capturingHandler{name: "panicking", panics: true}
	working := &capturingHandler{name: "working"}

	service := NewService(failing, panicking, working)

	m := healthyMetrics()
	m.LLMErrorRate = 0.30

	fired := service.CheckAndAlert(m)

	assert.Len(t, fired, 2)
	assert.Len(t, working.alerts, 2, "working handler still receives alerts")
}

func TestCheckAndAlert_CustomThreshold(t *testing.T) {
	service := NewService()
	service.AddThreshold(models.Threshold{
		MetricName: "total_signals_collected",
		Operator:   models.OpLessThan,
		Value:      10,
		Severity:   models.SeverityWarning,
		Title:      "Signal volume low",
		Message:    "Collected %.0f signals, below %.0f",
	})

	m := healthyMetrics()
	m.TotalSignalsCollected = 3

	fired := service.CheckAndAlert(m)
	assert.Len(t, fired, 1)
	assert.Equal(t, "Collected 3 signals, below 10", fired[0].Message)
}

func TestCheckAndAlert_UnknownMetricSkipped(t *testing.T) {
	service := NewService()
	service.AddThreshold(models.Threshold{
		MetricName: "no_such_metric",
		Operator:   models.OpGreaterThan,
		Value:      1,
		Severity:   models.SeverityWarning,
	})

	fired := service.CheckAndAlert(healthyMetrics())
	assert.Empty(t, fired)
}
