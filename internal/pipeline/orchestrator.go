package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/models"
)

// Downstream collaborators of the content cycle. Their internals are owned
// elsewhere; the orchestrator only sequences them and records outcomes.
type (
	// InsightFinder returns insights that qualify for content generation.
	InsightFinder interface {
		FindQualifying(ctx context.Context, minScore float64) ([]models.Insight, error)
	}

	// ContentGenerator produces content artifacts for the given insights.
	ContentGenerator interface {
		Generate(ctx context.Context, insights []models.Insight) (int, error)
	}

	// QualityReviewer reviews pending content and returns how many passed.
	QualityReviewer interface {
		Review(ctx context.Context) (int, error)
	}

	// Notifier notifies subscribers and returns how many were notified.
	Notifier interface {
		Notify(ctx context.Context) (int, error)
	}

	// RunRecorder persists the run record, the orchestrator's only durable
	// side effect.
	RunRecorder interface {
		RecordRun(ctx context.Context, run models.PipelineRun) error
	}
)

// Orchestrator drives one end-to-end content cycle: find qualifying
// insights, generate content, review quality, notify subscribers.
type Orchestrator struct {
	enabled   bool
	minScore  float64
	finder    InsightFinder
	generator ContentGenerator
	reviewer  QualityReviewer
	notifier  Notifier
	recorder  RunRecorder
	now       func() time.Time
}

// NewOrchestrator wires a content cycle.
func NewOrchestrator(enabled bool, minScore float64, finder InsightFinder, generator ContentGenerator, reviewer QualityReviewer, notifier Notifier, recorder RunRecorder) *Orchestrator {
	return &Orchestrator{
		enabled:   enabled,
		minScore:  minScore,
		finder:    finder,
		generator: generator,
		reviewer:  reviewer,
		notifier:  notifier,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Run executes one cycle. A stage failure is caught and logged with the
// stage name; later stages still run. Every run, including failures, is
// recorded.
func (o *Orchestrator) Run(ctx context.Context) models.PipelineRun {
	run := models.PipelineRun{StartedAt: o.now()}

	if !o.enabled {
		run.Status = models.RunStatusSkipped
		run.FinishedAt = o.now()
		logrus.Info("Content pipeline disabled, skipping run")
		o.record(ctx, run)
		return run
	}

	logrus.Info("Starting content pipeline run")

	insights, err := o.finder.FindQualifying(ctx, o.minScore)
	if err != nil {
		logrus.Errorf("Stage find_insights failed: %v", err)
		run.Stages = append(run.Stages, models.StageResult{Stage: "find_insights", Error: err.Error()})
		run.Status = models.RunStatusFailed
		run.FinishedAt = o.now()
		o.record(ctx, run)
		return run
	}

	run.Stages = append(run.Stages, models.StageResult{
		Stage:   "find_insights",
		OK:      true,
		Details: map[string]int{"qualifying": len(insights)},
	})

	if len(insights) == 0 {
		logrus.Info("No qualifying insights, completing early")
		run.Status = models.RunStatusCompleted
		run.StagesRun = 1
		run.FinishedAt = o.now()
		o.record(ctx, run)
		return run
	}

	run.ItemsProcessed = len(insights)
	failures := 0

	stages := []struct {
		name      string
		detailKey string
		call      func(context.Context) (int, error)
	}{
		{"generate_content", "generated", func(ctx context.Context) (int, error) {
			return o.generator.Generate(ctx, insights)
		}},
		{"review_quality", "approved", o.reviewer.Review},
		{"notify_subscribers", "notifications_sent", o.notifier.Notify},
	}

	for _, stage := range stages {
		count, err := stage.call(ctx)
		if err != nil {
			logrus.Errorf("Stage %s failed: %v", stage.name, err)
			run.Stages = append(run.Stages, models.StageResult{Stage: stage.name, Error: err.Error()})
			failures++
			continue
		}

		run.Stages = append(run.Stages, models.StageResult{
			Stage:   stage.name,
			OK:      true,
			Details: map[string]int{stage.detailKey: count},
		})
	}

	run.StagesRun = len(run.Stages)
	run.FinishedAt = o.now()

	switch {
	case failures == 0:
		run.Status = models.RunStatusCompleted
	case failures == len(stages):
		run.Status = models.RunStatusFailed
	default:
		run.Status = models.RunStatusPartial
	}

	logrus.Infof("Content pipeline run %s: %d insights, %d stage failures",
		run.Status, run.ItemsProcessed, failures)

	o.record(ctx, run)
	return run
}

func (o *Orchestrator) record(ctx context.Context, run models.PipelineRun) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordRun(ctx, run); err != nil {
		logrus.Errorf("Failed to record pipeline run: %v", err)
	}
}
