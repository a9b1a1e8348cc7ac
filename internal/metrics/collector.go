package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/models"
)

// maxValidationHistory bounds the process-local validation history; the
// oldest entries are dropped first.
const maxValidationHistory = 1000

// StatsStore is the read side of the persisted signal/insight store the
// collector aggregates over.
type StatsStore interface {
	SignalStats(ctx context.Context, start, end time.Time) (total int, bySource map[string]int, duplicates int, pending int, err error)
	InsightStats(ctx context.Context, start, end time.Time) (total int, dimAverages map[string]float64, scoreDist map[string]map[string]int, err error)
}

// ScoreWeights configures the composite quality score blend. Weights should
// sum to 1.
type ScoreWeights struct {
	ValidationPass   float64
	InverseDuplicate float64
	Relevance        float64
	InverseError     float64
	InverseBacklog   float64
}

// DefaultScoreWeights is the standard blend.
var DefaultScoreWeights = ScoreWeights{
	ValidationPass:   0.30,
	InverseDuplicate: 0.20,
	Relevance:        0.20,
	InverseError:     0.20,
	InverseBacklog:   0.10,
}

type validationRecord struct {
	kind   string
	passed bool
	at     time.Time
}

// Collector computes point-in-time quality snapshots by combining store
// aggregates with process-local validation and error history.
type Collector struct {
	store   StatsStore
	weights ScoreWeights
	now     func() time.Time

	mu          sync.Mutex
	validations []validationRecord
	errorCounts map[string]map[string]int
}

// NewCollector creates a collector over the given store with the default
// score weights.
func NewCollector(store StatsStore) *Collector {
	return NewCollectorWithWeights(store, DefaultScoreWeights)
}

// NewCollectorWithWeights creates a collector with custom score weights.
func NewCollectorWithWeights(store StatsStore, weights ScoreWeights) *Collector {
	return &Collector{
		store:       store,
		weights:     weights,
		now:         time.Now,
		errorCounts: make(map[string]map[string]int),
	}
}

// RecordValidationResult appends one validation outcome to the rolling
// history.
func (c *Collector) RecordValidationResult(kind string, passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	ValidationResults.WithLabelValues(kind, result).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.validations = append(c.validations, validationRecord{kind: kind, passed: passed, at: c.now()})
	if len(c.validations) > maxValidationHistory {
		c.validations = c.validations[len(c.validations)-maxValidationHistory:]
	}
}

// RecordError counts one component error.
func (c *Collector) RecordError(component, errType string) {
	PipelineErrors.WithLabelValues(component, errType).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorCounts[component] == nil {
		c.errorCounts[component] = make(map[string]int)
	}
	c.errorCounts[component][errType]++
}

// Collect computes a QualityMetrics snapshot for [start, end). Zero-value
// times default to the last 24 hours ending now. A window with no signals
// or insights yields all-zero rates, never an error.
func (c *Collector) Collect(ctx context.Context, start, end time.Time) (models.QualityMetrics, error) {
	if end.IsZero() {
		end = c.now()
	}
	if start.IsZero() {
		start = end.Add(-24 * time.Hour)
	}

	m := models.QualityMetrics{
		PeriodStart:       start,
		PeriodEnd:         end,
		SignalsBySource:   map[string]int{},
		DimensionAverages: map[string]float64{},
		ScoreDistribution: map[string]map[string]int{},
	}

	total, bySource, duplicates, pending, err := c.store.SignalStats(ctx, start, end)
	if err != nil {
		return m, fmt.Errorf("signal stats: %w", err)
	}
	m.TotalSignalsCollected = total
	m.DuplicateCount = duplicates
	m.PendingSignals = pending
	if bySource != nil {
		m.SignalsBySource = bySource
	}

	insights, dimAverages, scoreDist, err := c.store.InsightStats(ctx, start, end)
	if err != nil {
		return m, fmt.Errorf("insight stats: %w", err)
	}
	m.TotalInsightsGenerated = insights
	if dimAverages != nil {
		m.DimensionAverages = dimAverages
	}
	if scoreDist != nil {
		m.ScoreDistribution = scoreDist
	}

	pass, fail := c.validationCounts(start, end)
	m.ValidationPassCount = pass
	m.ValidationFailCount = fail

	llmErrors := c.errorCount("llm")

	m.DuplicateRate = safeRate(duplicates, total)
	m.ValidationPassRate = safeRate(pass, pass+fail)
	m.LLMErrorRate = safeRate(llmErrors, insights+llmErrors)

	rateGauges.WithLabelValues("duplicate_rate").Set(m.DuplicateRate)
	rateGauges.WithLabelValues("validation_pass_rate").Set(m.ValidationPassRate)
	rateGauges.WithLabelValues("llm_error_rate").Set(m.LLMErrorRate)

	logrus.Debugf("Collected quality metrics: %d signals, %d insights, pass rate %.2f",
		total, insights, m.ValidationPassRate)

	return m, nil
}

// QualityScore blends a snapshot into a single 0-100 composite.
func (c *Collector) QualityScore(m models.QualityMetrics) float64 {
	relevance := clamp01(m.DimensionAverages["relevance"] / 10)

	backlogRatio := safeRate(m.PendingSignals, m.TotalSignalsCollected)

	score := 100 * (c.weights.ValidationPass*m.ValidationPassRate +
		c.weights.InverseDuplicate*(1-m.DuplicateRate) +
		c.weights.Relevance*relevance +
		c.weights.InverseError*(1-m.LLMErrorRate) +
		c.weights.InverseBacklog*(1-backlogRatio))

	qualityScoreGauge.Set(score)
	return score
}

func (c *Collector) validationCounts(start, end time.Time) (pass, fail int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range c.validations {
		if rec.at.Before(start) || !rec.at.Before(end) {
			continue
		}
		if rec.passed {
			pass++
		} else {
			fail++
		}
	}
	return pass, fail
}

func (c *Collector) errorCount(component string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, n := range c.errorCounts[component] {
		total += n
	}
	return total
}

func safeRate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
