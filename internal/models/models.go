package models

import (
	"fmt"
	"time"
)

// ScrapeResult is the uniform output of every scraper. Content has already
// been cleaned and formatted into a markdown block before it leaves the
// scraper; the struct is immutable once handed to the store.
type ScrapeResult struct {
	URL       string            `json:"url" bson:"url"`
	Title     string            `json:"title" bson:"title"`
	Content   string            `json:"content" bson:"content"`
	Source    string            `json:"source" bson:"source"`
	Metadata  map[string]string `json:"metadata" bson:"metadata"`
	ScrapedAt time.Time         `json:"scraped_at" bson:"scraped_at"`
}

// CommunityValidation is the outcome of checking an LLM-claimed community
// against the live source.
type CommunityValidation struct {
	Subject       string `json:"subject"`
	Verified      bool   `json:"verified"`
	Subscribers   int64  `json:"subscribers"`
	ClaimedSize   string `json:"claimed_size,omitempty"`
	FormattedSize string `json:"formatted_size,omitempty"`
	Error         string `json:"error,omitempty"`
}

// TrendVerification is the outcome of cross-checking a trend keyword.
type TrendVerification struct {
	Keyword             string  `json:"keyword"`
	Verified            bool    `json:"verified"`
	ActualVolume        float64 `json:"actual_volume"`
	ActualGrowthPercent float64 `json:"actual_growth_percent"`
	ClaimedVolume       string  `json:"claimed_volume,omitempty"`
	ClaimedGrowth       string  `json:"claimed_growth,omitempty"`
	Error               string  `json:"error,omitempty"`
}

// URLValidation is the outcome of a reachability check on a competitor URL.
type URLValidation struct {
	URL           string        `json:"url"`
	NormalizedURL string        `json:"normalized_url"`
	Valid         bool          `json:"valid"`
	FinalURL      string        `json:"final_url,omitempty"`
	StatusCode    int           `json:"status_code,omitempty"`
	RedirectCount int           `json:"redirect_count"`
	Latency       time.Duration `json:"latency"`
	Error         string        `json:"error,omitempty"`
}

// QualityMetrics is a point-in-time snapshot over [PeriodStart, PeriodEnd).
// Every rate is computed from counts in the same snapshot and defaults to 0
// when its denominator is 0.
type QualityMetrics struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	TotalSignalsCollected  int            `json:"total_signals_collected"`
	SignalsBySource        map[string]int `json:"signals_by_source"`
	DuplicateCount         int            `json:"duplicate_count"`
	TotalInsightsGenerated int            `json:"total_insights_generated"`
	ValidationPassCount    int            `json:"validation_pass_count"`
	ValidationFailCount    int            `json:"validation_fail_count"`
	PendingSignals         int            `json:"pending_signals"`

	DuplicateRate      float64 `json:"duplicate_rate"`
	ValidationPassRate float64 `json:"validation_pass_rate"`
	LLMErrorRate       float64 `json:"llm_error_rate"`

	DimensionAverages map[string]float64        `json:"dimension_averages"`
	ScoreDistribution map[string]map[string]int `json:"score_distribution"`
}

// Severity orders alert severities from least to most severe.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity maps a severity name to its ordered value, defaulting to info.
func ParseSeverity(s string) Severity {
	switch s {
	case "warning":
		return SeverityWarning
	case "error":
		return SeverityError
	case "critical":
		return SeverityCritical
	}
	return SeverityInfo
}

// Alert is constructed only when a threshold is breached and is never
// mutated after creation.
type Alert struct {
	ID          string    `json:"id"`
	Severity    Severity  `json:"severity"`
	MetricName  string    `json:"metric_name"`
	Threshold   float64   `json:"threshold"`
	ActualValue float64   `json:"actual_value"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Threshold operators. Comparison is strict: a metric exactly equal to the
// threshold value does not breach.
const (
	OpLessThan    = "lt"
	OpGreaterThan = "gt"
)

// Threshold is a configured breach rule for one metric.
type Threshold struct {
	MetricName string   `json:"metric_name"`
	Operator   string   `json:"operator"`
	Value      float64  `json:"value"`
	Severity   Severity `json:"severity"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
}

// Insight is the minimal view of a persisted LLM-derived record that the
// orchestrator and store need; the full shape is owned elsewhere.
type Insight struct {
	ID           string             `json:"id" bson:"_id"`
	Title        string             `json:"title" bson:"title"`
	OverallScore float64            `json:"overall_score" bson:"overall_score"`
	Status       string             `json:"status" bson:"status"`
	Dimensions   map[string]float64 `json:"dimensions" bson:"dimensions"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
}

// Content item statuses.
const (
	ContentStatusDraft    = "draft"
	ContentStatusApproved = "approved"
	ContentStatusRejected = "rejected"
	ContentStatusNotified = "notified"
)

// ContentItem is one generated content artifact derived from an insight.
type ContentItem struct {
	ID        string    `json:"id" bson:"_id"`
	InsightID string    `json:"insight_id" bson:"insight_id"`
	Title     string    `json:"title" bson:"title"`
	Body      string    `json:"body" bson:"body"`
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Pipeline run statuses.
const (
	RunStatusSkipped   = "skipped"
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
)

// StageResult records one orchestrator stage outcome.
type StageResult struct {
	Stage   string         `json:"stage" bson:"stage"`
	OK      bool           `json:"ok" bson:"ok"`
	Error   string         `json:"error,omitempty" bson:"error,omitempty"`
	Details map[string]int `json:"details,omitempty" bson:"details,omitempty"`
}

// PipelineRun is the durable record of one end-to-end content cycle.
type PipelineRun struct {
	Status         string        `json:"status" bson:"status"`
	StartedAt      time.Time     `json:"started_at" bson:"started_at"`
	FinishedAt     time.Time     `json:"finished_at" bson:"finished_at"`
	ItemsProcessed int           `json:"items_processed" bson:"items_processed"`
	StagesRun      int           `json:"stages_run" bson:"stages_run"`
	Stages         []StageResult `json:"stages" bson:"stages"`
}
