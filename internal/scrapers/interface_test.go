package scrapers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/startinsight/signal-pipeline/internal/models"
)

func TestDedupeSortCap(t *testing.T) {
	item := func(id string, score int) ranked {
		return ranked{ID: id, Score: score, Result: models.ScrapeResult{Title: id}}
	}

	tests := []struct {
		name     string
		items    []ranked
		max      int
		expected []string
	}{
		{
			name:     "Sorts by score descending",
			items:    []ranked{item("a", 10), item("b", 50), item("c", 30)},
			max:      10,
			expected: []string{"b", "c", "a"},
		},
		{
			name:     "Keeps first occurrence of duplicate IDs",
			items:    []ranked{item("a", 10), item("a", 99), item("b", 5)},
			max:      10,
			expected: []string{"a", "b"},
		},
		{
			name:     "Caps at max after sorting",
			items:    []ranked{item("a", 1), item("b", 3), item("c", 2)},
			max:      2,
			expected: []string{"b", "c"},
		},
		{
			name:     "Equal scores keep input order",
			items:    []ranked{item("a", 5), item("b", 5), item("c", 5)},
			max:      10,
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "Empty input",
			items:    nil,
			max:      10,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := dedupeSortCap(tt.items, tt.max)

			var titles []string
			for _, r := range results {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tt.expected, titles)
		})
	}
}
