package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignalsScraped counts results returned per source per run.
	SignalsScraped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "startinsight_signals_scraped_total",
		Help: "Signals returned by scrapers, by source.",
	}, []string{"source"})

	// ValidationResults counts validation outcomes by kind and result.
	ValidationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "startinsight_validation_results_total",
		Help: "Validation outcomes, by kind and result.",
	}, []string{"kind", "result"})

	// PipelineErrors counts recorded component errors.
	PipelineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "startinsight_pipeline_errors_total",
		Help: "Errors recorded by pipeline components.",
	}, []string{"component", "type"})

	// AlertsFired counts dispatched quality alerts by severity.
	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "startinsight_alerts_fired_total",
		Help: "Quality alerts dispatched, by severity.",
	}, []string{"severity"})

	qualityScoreGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "startinsight_quality_score",
		Help: "Latest composite quality score (0-100).",
	})

	rateGauges = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "startinsight_quality_rate",
		Help: "Latest quality rates (0-1), by name.",
	}, []string{"rate"})
)
