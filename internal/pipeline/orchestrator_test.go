package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/startinsight/signal-pipeline/internal/models"
)

type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) FindQualifying(ctx context.Context, minScore float64) ([]models.Insight, error) {
	args := m.Called(ctx, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Insight), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, insights []models.Insight) (int, error) {
	args := m.Called(ctx, insights)
	return args.Int(0), args.Error(1)
}

type MockReviewer struct {
	mock.Mock
}

func (m *MockReviewer) Review(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordRun(ctx context.Context, run models.PipelineRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func insightBatch() []models.Insight {
	return []models.Insight{
		{ID: "a", Title: "First", OverallScore: 8.2},
		{ID: "b", Title: "Second", OverallScore: 7.5},
	}
}

func TestOrchestrator_DisabledSkipsRun(t *testing.T) {
	recorder := &MockRecorder{}
	recorder.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	o := NewOrchestrator(false, 7.0, &MockFinder{}, &MockGenerator{}, &MockReviewer{}, &MockNotifier{}, recorder)

	run := o.Run(context.Background())

	assert.Equal(t, models.RunStatusSkipped, run.Status)
	assert.Zero(t, run.ItemsProcessed)
	recorder.AssertCalled(t, "RecordRun", mock.Anything, mock.Anything)
}

func TestOrchestrator_NoQualifyingInsightsCompletesEarly(t *testing.T) {
	finder := &MockFinder{}
	finder.On("FindQualifying", mock.Anything, 7.0).Return([]models.Insight{}, nil)

	generator := &MockGenerator{}
	recorder := &MockRecorder{}
	recorder.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	o := NewOrchestrator(true, 7.0, finder, generator, &MockReviewer{}, &MockNotifier{}, recorder)

	run := o.Run(context.Background())

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.StagesRun)
	assert.Zero(t, run.ItemsProcessed)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestOrchestrator_FinderFailureFailsRun(t *testing.T) {
	finder := &MockFinder{}
	finder.On("FindQualifying", mock.Anything, 7.0).Return(nil, errors.New("store unreachable"))

	recorder := &MockRecorder{}
	recorder.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	o := NewOrchestrator(true, 7.0, finder, &MockGenerator{}, &MockReviewer{}, &MockNotifier{}, recorder)

	run := o.Run(context.Background())

	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Len(t, run.Stages, 1)
	assert.Equal(t, "store unreachable", run.Stages[0].Error)
}

func TestOrchestrator_AllStagesSucceed(t *testing.T) {
	insights := insightBatch()

	finder := &MockFinder{}
	finder.On("FindQualifying", mock.Anything, 7.0).Return(insights, nil)
	generator := &MockGenerator{}
	generator.On("Generate", mock.Anything, insights).Return(2, nil)
	reviewer := &MockReviewer{}
	reviewer.On("Review", mock.Anything).Return(2, nil)
	notifier := &MockNotifier{}
	notifier.On("Notify", mock.Anything).Return(5, nil)
	recorder := &MockRecorder{}
	recorder.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	o := NewOrchestrator(true, 7.0, finder, generator, reviewer, notifier, recorder)

	run := o.Run(context.Background())

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.ItemsProcessed)
	assert.Equal(t, 4, run.StagesRun)
	assert.Equal(t, map[string]int{"notifications_sent": 5}, run.Stages[3].Details)
}

func TestOrchestrator_StageFailureYieldsPartial(t *testing.T) {
	insights := insightBatch()

	finder := &MockFinder{}
	finder.On("FindQualifying", mock.Anything, 7.0).Return(insights, nil)
	generator := &MockGenerator{}
	generator.On("Generate", mock.Anything, insights).Return(0, errors.New("llm quota exceeded"))
	reviewer := &MockReviewer{}
	reviewer.On("Review", mock.Anything).Return(1, nil)
	notifier := &MockNotifier{}
	notifier.On("Notify", mock.Anything).Return(3, nil)
	recorder := &MockRecorder{}
	recorder.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	o := NewOrchestrator(true, 7.0, finder, generator, reviewer, notifier, recorder)

	run := o.Run(context.Background())

	assert.Equal(t, models.RunStatusPartial, run.Status)
	// Later stages still ran despite the generation failure.
	reviewer.AssertCalled(t, "Review", mock.Anything)
	notifier.AssertCalled(t, "Notify", mock.Anything)
}

func TestOrchestrator_AllStagesFailingFailsRun(t *testing.T) {
	insights := insightBatch()
	stageErr := errors.New("boom")

	finder := &MockFinder{}
	finder.On("FindQualifying", mock.Anything, 7.0).Return(insights, nil)
	generator := &MockGenerator{}
	generator.On("Generate", mock.Anything, insights).Return(0, stageErr)
	reviewer := &MockReviewer{}
	reviewer.On("Review", mock.Anything).Return(0, stageErr)
	notifier := &MockNotifier{}
	notifier.On("Notify", mock.Anything).Return(0, stageErr)
	recorder := &MockRecorder{}
	recorder.On("RecordRun", mock.Anything, mock.Anything).Return(nil)

	o := NewOrchestrator(true, 7.0, finder, generator, reviewer, notifier, recorder)

	run := o.Run(context.Background())
	assert.Equal(t, models.RunStatusFailed, run.Status)
}
