package scrapers

import (
	"context"
	"sort"

	"github.com/startinsight/signal-pipeline/internal/models"
)

// userAgent identifies the pipeline to every upstream source.
const userAgent = "StartInsight-Pipeline/1.0"

// Scraper is the contract for all signal sources. Scrape re-fetches on every
// call and returns a finite batch of normalized results.
type Scraper interface {
	Name() string
	Enabled() bool
	Scrape(ctx context.Context) ([]models.ScrapeResult, error)
}

// ranked pairs a result with the source-native ID and ranking signal used
// for deduplication and ordering.
type ranked struct {
	ID     string
	Score  int
	Result models.ScrapeResult
}

// dedupeSortCap removes duplicate IDs keeping the first occurrence, orders
// the union by score descending, and caps the list at max.
func dedupeSortCap(items []ranked, max int) []models.ScrapeResult {
	seen := make(map[string]bool)
	var unique []ranked

	for _, item := range items {
		if !seen[item.ID] {
			seen[item.ID] = true
			unique = append(unique, item)
		}
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Score > unique[j].Score
	})

	if max > 0 && len(unique) > max {
		unique = unique[:max]
	}

	results := make([]models.ScrapeResult, 0, len(unique))
	for _, item := range unique {
		results = append(results, item.Result)
	}

	return results
}
