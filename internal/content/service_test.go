package content

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/startinsight/signal-pipeline/internal/models"
)

type fakeContentStore struct {
	items map[string]models.ContentItem
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{items: make(map[string]models.ContentItem)}
}

func (f *fakeContentStore) InsertContent(ctx context.Context, items []models.ContentItem) (int, error) {
	inserted := 0
	for _, item := range items {
		exists := false
		for _, existing := range f.items {
			if existing.InsightID == item.InsightID {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		f.items[item.ID] = item
		inserted++
	}
	return inserted, nil
}

func (f *fakeContentStore) ContentByStatus(ctx context.Context, status string) ([]models.ContentItem, error) {
	var out []models.ContentItem
	for _, item := range f.items {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeContentStore) SetContentStatus(ctx context.Context, id, status string) error {
	item := f.items[id]
	item.Status = status
	f.items[id] = item
	return nil
}

type fakeContentPublisher struct {
	published []models.ContentItem
}

func (f *fakeContentPublisher) PublishContent(ctx context.Context, item models.ContentItem) error {
	f.published = append(f.published, item)
	return nil
}

func sampleInsights() []models.Insight {
	return []models.Insight{
		{
			ID:           "ins-1",
			Title:        "Niche CRM for dog groomers",
			OverallScore: 8.1,
			Dimensions:   map[string]float64{"relevance": 9, "opportunity": 8},
		},
		{
			ID:           "ins-2",
			Title:        "AI meeting summarizer",
			OverallScore: 7.4,
			Dimensions:   map[string]float64{"relevance": 7},
		},
	}
}

func TestGenerate_CreatesDraftPerInsight(t *testing.T) {
	store := newFakeContentStore()
	svc := NewService(store, nil)

	count, err := svc.Generate(context.Background(), sampleInsights())
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	drafts, _ := store.ContentByStatus(context.Background(), models.ContentStatusDraft)
	assert.Len(t, drafts, 2)

	for _, draft := range drafts {
		assert.NotEmpty(t, draft.ID)
		assert.Contains(t, draft.Body, "## "+draft.Title)
		assert.Contains(t, draft.Body, "Overall score")
	}
}

func TestGenerate_SkipsAlreadyCoveredInsights(t *testing.T) {
	store := newFakeContentStore()
	svc := NewService(store, nil)

	svc.Generate(context.Background(), sampleInsights())
	count, err := svc.Generate(context.Background(), sampleInsights())

	assert.NoError(t, err)
	assert.Zero(t, count)
}

func TestReview_ApprovesSubstantialDrafts(t *testing.T) {
	store := newFakeContentStore()
	store.items["thin"] = models.ContentItem{
		ID:        "thin",
		InsightID: "x",
		Title:     "Thin",
		Body:      "too short",
		Status:    models.ContentStatusDraft,
	}

	svc := NewService(store, nil)
	svc.Generate(context.Background(), sampleInsights())

	approved, err := svc.Review(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, approved)

	rejected, _ := store.ContentByStatus(context.Background(), models.ContentStatusRejected)
	assert.Len(t, rejected, 1)
	assert.Equal(t, "thin", rejected[0].ID)
}

func TestNotify_PublishesAndMarksApprovedContent(t *testing.T) {
	store := newFakeContentStore()
	publisher := &fakeContentPublisher{}
	svc := NewService(store, publisher)

	svc.Generate(context.Background(), sampleInsights())
	svc.Review(context.Background())

	notified, err := svc.Notify(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, notified)
	assert.Len(t, publisher.published, 2)

	remaining, _ := store.ContentByStatus(context.Background(), models.ContentStatusApproved)
	assert.Empty(t, remaining)

	done, _ := store.ContentByStatus(context.Background(), models.ContentStatusNotified)
	assert.Len(t, done, 2)
}

func TestNotify_NilPublisherStillMarksNotified(t *testing.T) {
	store := newFakeContentStore()
	svc := NewService(store, nil)

	svc.Generate(context.Background(), sampleInsights())
	svc.Review(context.Background())

	notified, err := svc.Notify(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, notified)
}

func TestRenderBody_IncludesDimensions(t *testing.T) {
	body := renderBody(sampleInsights()[0])

	assert.True(t, strings.HasPrefix(body, "## Niche CRM for dog groomers"))
	assert.Contains(t, body, "**Overall score:** 8.1/10")
	assert.Contains(t, body, "**Relevance:** 9.0")
	assert.Contains(t, body, "**Opportunity:** 8.0")
}
