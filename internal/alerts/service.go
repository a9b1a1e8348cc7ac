package alerts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/metrics"
	"github.com/startinsight/signal-pipeline/internal/models"
)

const (
	dedupWindow = time.Hour
	historyTTL  = 24 * time.Hour
)

// Handler dispatches one alert to a channel. Handlers must be safe for
// concurrent use; a failing handler never blocks the others.
type Handler interface {
	Name() string
	Handle(alert models.Alert) error
}

// Service evaluates quality metrics against configured thresholds and fans
// breaches out to the registered handlers.
type Service struct {
	now func() time.Time

	mu         sync.Mutex
	thresholds []models.Threshold
	handlers   []Handler
	history    []models.Alert
}

// NewService creates an alert service with the default threshold catalog.
func NewService(handlers ...Handler) *Service {
	return &Service{
		now:        time.Now,
		thresholds: DefaultThresholds(),
		handlers:   handlers,
	}
}

// AddThreshold registers an extra threshold alongside the built-in set.
func (s *Service) AddThreshold(t models.Threshold) {
	s.mu.Lock()
	s.thresholds = append(s.thresholds, t)
	s.mu.Unlock()
}

// AddHandler registers an extra dispatch channel.
func (s *Service) AddHandler(h Handler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// History returns a copy of the rolling alert history.
func (s *Service) History() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Alert, len(s.history))
	copy(out, s.history)
	return out
}

// CheckAndAlert evaluates every threshold against the snapshot. Breaches
// construct alerts, which are suppressed when the same (metric, severity)
// fired within the last hour, otherwise recorded and dispatched. The
// dispatched alerts are returned.
func (s *Service) CheckAndAlert(m models.QualityMetrics) []models.Alert {
	now := s.now()

	s.mu.Lock()
	s.pruneHistory(now)
	thresholds := make([]models.Threshold, len(s.thresholds))
	copy(thresholds, s.thresholds)
	s.mu.Unlock()

	var dispatched []models.Alert

	for _, t := range thresholds {
		value, ok := metricValue(m, t.MetricName)
		if !ok {
			logrus.Warnf("Unknown metric in threshold: %s", t.MetricName)
			continue
		}

		if !breaches(t, value) {
			continue
		}

		alert := models.Alert{
			ID:          uuid.NewString(),
			Severity:    t.Severity,
			MetricName:  t.MetricName,
			Threshold:   t.Value,
			ActualValue: value,
			Message:     fmt.Sprintf(t.Message, value, t.Value),
			Timestamp:   now,
		}

		s.mu.Lock()
		if s.firedRecently(t.MetricName, t.Severity, now) {
			s.mu.Unlock()
			logrus.Debugf("Suppressing duplicate alert for %s (%s)", t.MetricName, t.Severity)
			continue
		}
		s.history = append(s.history, alert)
		handlers := make([]Handler, len(s.handlers))
		copy(handlers, s.handlers)
		s.mu.Unlock()

		metrics.AlertsFired.WithLabelValues(t.Severity.String()).Inc()
		s.dispatch(alert, handlers)
		dispatched = append(dispatched, alert)
	}

	return dispatched
}

// dispatch is best-effort: a handler failure or panic is logged and the
// remaining handlers still run.
func (s *Service) dispatch(alert models.Alert, handlers []Handler) {
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.Errorf("Alert handler %s panicked: %v", h.Name(), r)
				}
			}()

			if err := h.Handle(alert); err != nil {
				logrus.Errorf("Alert handler %s failed: %v", h.Name(), err)
			}
		}()
	}
}

func (s *Service) firedRecently(metric string, severity models.Severity, now time.Time) bool {
	cutoff := now.Add(-dedupWindow)
	for _, a := range s.history {
		if a.MetricName == metric && a.Severity == severity && a.Timestamp.After(cutoff) {
			return true
		}
	}
	return false
}

func (s *Service) pruneHistory(now time.Time) {
	cutoff := now.Add(-historyTTL)
	kept := s.history[:0]
	for _, a := range s.history {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	s.history = kept
}

// breaches applies strict comparison: equality never breaches.
func breaches(t models.Threshold, value float64) bool {
	switch t.Operator {
	case models.OpLessThan:
		return value < t.Value
	case models.OpGreaterThan:
		return value > t.Value
	}
	return false
}

func metricValue(m models.QualityMetrics, name string) (float64, bool) {
	switch name {
	case "validation_pass_rate":
		return m.ValidationPassRate, true
	case "duplicate_rate":
		return m.DuplicateRate, true
	case "llm_error_rate":
		return m.LLMErrorRate, true
	case "total_signals_collected":
		return float64(m.TotalSignalsCollected), true
	case "total_insights_generated":
		return float64(m.TotalInsightsGenerated), true
	case "validation_fail_count":
		return float64(m.ValidationFailCount), true
	}
	return 0, false
}
