package scrapers

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/models"
	"github.com/startinsight/signal-pipeline/internal/retry"
)

// InterestLookup fetches a relative-interest time series (0-100 scale) for a
// keyword over a timeframe and region.
type InterestLookup interface {
	Series(ctx context.Context, keyword, timeframe, geo string) ([]float64, error)
}

// TrendsScraper samples search interest for configured keywords. The
// upstream API is rate-limited per caller, so keywords are processed in
// batches of five with a fixed delay between batches, and rate-limit
// responses back off exponentially.
type TrendsScraper struct {
	lookup     InterestLookup
	keywords   []string
	timeframe  string
	geo        string
	batchSize  int
	batchDelay time.Duration
}

// NewTrendsScraper creates a trends scraper over the given lookup.
func NewTrendsScraper(lookup InterestLookup, keywords []string, batchDelay time.Duration) *TrendsScraper {
	return &TrendsScraper{
		lookup:     lookup,
		keywords:   keywords,
		timeframe:  "today 3-m",
		geo:        "",
		batchSize:  5,
		batchDelay: batchDelay,
	}
}

func (t *TrendsScraper) Name() string {
	return "google_trends"
}

func (t *TrendsScraper) Enabled() bool {
	return t.lookup != nil && len(t.keywords) > 0
}

// Scrape emits one result per keyword with mean interest and growth in the
// metadata. A failure on one keyword is logged and skipped.
func (t *TrendsScraper) Scrape(ctx context.Context) ([]models.ScrapeResult, error) {
	if !t.Enabled() {
		logrus.Debug("Trends scraper disabled - no lookup or keywords")
		return nil, nil
	}

	var results []models.ScrapeResult

	for start := 0; start < len(t.keywords); start += t.batchSize {
		end := start + t.batchSize
		if end > len(t.keywords) {
			end = len(t.keywords)
		}

		if start > 0 {
			select {
			case <-time.After(t.batchDelay):
			case <-ctx.Done():
				return results, ctx.Err()
			}
		}

		for _, keyword := range t.keywords[start:end] {
			result, err := t.scrapeKeyword(ctx, keyword)
			if err != nil {
				logrus.Errorf("Failed to fetch trends for %q: %v", keyword, err)
				continue
			}
			results = append(results, result)
		}
	}

	return results, nil
}

func (t *TrendsScraper) scrapeKeyword(ctx context.Context, keyword string) (models.ScrapeResult, error) {
	var series []float64

	err := retry.Do(ctx, 3, 2*time.Second, func() error {
		var err error
		series, err = t.lookup.Series(ctx, keyword, t.timeframe, t.geo)
		return err
	})
	if err != nil {
		return models.ScrapeResult{}, err
	}

	if len(series) == 0 {
		return models.ScrapeResult{}, fmt.Errorf("empty interest series for %q", keyword)
	}

	volume := SeriesMean(series)
	growth := SeriesGrowthPercent(series)

	content := FormatContent(keyword, [][2]string{
		{"Average interest", fmt.Sprintf("%.1f", volume)},
		{"Growth", fmt.Sprintf("%+.0f%%", growth)},
		{"Timeframe", t.timeframe},
	}, "")

	return models.ScrapeResult{
		URL:     "https://trends.google.com/trends/explore?q=" + keyword,
		Title:   keyword,
		Content: content,
		Source:  "google_trends",
		Metadata: map[string]string{
			"source":         "google_trends",
			"keyword":        keyword,
			"avg_interest":   strconv.FormatFloat(volume, 'f', 1, 64),
			"growth_percent": strconv.FormatFloat(growth, 'f', 1, 64),
			"timeframe":      t.timeframe,
		},
		ScrapedAt: time.Now().UTC(),
	}, nil
}

// SeriesMean returns the mean of an interest series, 0 for an empty series.
func SeriesMean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}

	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// SeriesGrowthPercent compares the first-half mean against the second-half
// mean of a series. Series shorter than four points compare the first and
// last values directly. A zero baseline yields +Inf when interest appeared
// from nothing, 0 when the series is flat at zero.
func SeriesGrowthPercent(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}

	var before, after float64
	if len(series) < 4 {
		before = series[0]
		after = series[len(series)-1]
	} else {
		half := len(series) / 2
		before = SeriesMean(series[:half])
		after = SeriesMean(series[half:])
	}

	if before == 0 {
		if after == 0 {
			return 0
		}
		return math.Inf(1)
	}

	return (after - before) / before * 100
}
