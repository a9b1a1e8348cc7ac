package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/models"
)

// minBodyLength is the editorial floor for approving a draft.
const minBodyLength = 40

// Store is the content persistence the service needs.
type Store interface {
	InsertContent(ctx context.Context, items []models.ContentItem) (int, error)
	ContentByStatus(ctx context.Context, status string) ([]models.ContentItem, error)
	SetContentStatus(ctx context.Context, id, status string) error
}

// Publisher announces published content downstream. Optional.
type Publisher interface {
	PublishContent(ctx context.Context, item models.ContentItem) error
}

// Service owns the content lifecycle: draft generation from qualifying
// insights, editorial review, and subscriber notification.
type Service struct {
	store     Store
	publisher Publisher
}

// NewService wires a content service. publisher may be nil.
func NewService(store Store, publisher Publisher) *Service {
	return &Service{store: store, publisher: publisher}
}

// Generate drafts one content item per insight. Insights that already have
// content are skipped by the store. Returns how many drafts were created.
func (s *Service) Generate(ctx context.Context, insights []models.Insight) (int, error) {
	items := make([]models.ContentItem, 0, len(insights))
	for _, insight := range insights {
		items = append(items, models.ContentItem{
			ID:        uuid.NewString(),
			InsightID: insight.ID,
			Title:     insight.Title,
			Body:      renderBody(insight),
			Status:    models.ContentStatusDraft,
			CreatedAt: time.Now().UTC(),
		})
	}

	if len(items) == 0 {
		return 0, nil
	}

	inserted, err := s.store.InsertContent(ctx, items)
	if err != nil {
		return 0, fmt.Errorf("failed to store content drafts: %w", err)
	}

	logrus.Infof("Generated %d content drafts (%d insights already covered)", inserted, len(items)-inserted)
	return inserted, nil
}

// Review moves drafts to approved or rejected. Returns the approved count.
func (s *Service) Review(ctx context.Context) (int, error) {
	drafts, err := s.store.ContentByStatus(ctx, models.ContentStatusDraft)
	if err != nil {
		return 0, fmt.Errorf("failed to load drafts: %w", err)
	}

	approved := 0
	for _, draft := range drafts {
		status := models.ContentStatusApproved
		if draft.Title == "" || len(draft.Body) < minBodyLength {
			status = models.ContentStatusRejected
		}

		if err := s.store.SetContentStatus(ctx, draft.ID, status); err != nil {
			return approved, fmt.Errorf("failed to update content %s: %w", draft.ID, err)
		}

		if status == models.ContentStatusApproved {
			approved++
		} else {
			logrus.Debugf("Rejected content draft %s (%s)", draft.ID, draft.Title)
		}
	}

	return approved, nil
}

// Notify publishes approved content and marks it notified. Returns how many
// items went out.
func (s *Service) Notify(ctx context.Context) (int, error) {
	items, err := s.store.ContentByStatus(ctx, models.ContentStatusApproved)
	if err != nil {
		return 0, fmt.Errorf("failed to load approved content: %w", err)
	}

	notified := 0
	for _, item := range items {
		if s.publisher != nil {
			if err := s.publisher.PublishContent(ctx, item); err != nil {
				logrus.Errorf("Failed to publish content %s: %v", item.ID, err)
				continue
			}
		}

		if err := s.store.SetContentStatus(ctx, item.ID, models.ContentStatusNotified); err != nil {
			return notified, fmt.Errorf("failed to mark content %s notified: %w", item.ID, err)
		}
		notified++
	}

	return notified, nil
}

// renderBody builds the markdown draft body from the insight's scores.
func renderBody(insight models.Insight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", insight.Title)
	fmt.Fprintf(&b, "**Overall score:** %.1f/10\n", insight.OverallScore)

	for _, dim := range []string{"relevance", "opportunity", "problem", "feasibility", "urgency"} {
		if score, ok := insight.Dimensions[dim]; ok {
			fmt.Fprintf(&b, "**%s:** %.1f\n", strings.ToUpper(dim[:1])+dim[1:], score)
		}
	}

	return b.String()
}
