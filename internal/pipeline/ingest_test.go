package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/startinsight/signal-pipeline/internal/metrics"
	"github.com/startinsight/signal-pipeline/internal/models"
	"github.com/startinsight/signal-pipeline/internal/scrapers"
)

type fakeScraper struct {
	name    string
	enabled bool
	results []models.ScrapeResult
	err     error
	called  bool
}

func (f *fakeScraper) Name() string  { return f.name }
func (f *fakeScraper) Enabled() bool { return f.enabled }

func (f *fakeScraper) Scrape(ctx context.Context) ([]models.ScrapeResult, error) {
	f.called = true
	return f.results, f.err
}

type fakeSignalStore struct {
	received []models.ScrapeResult
	err      error
}

func (f *fakeSignalStore) InsertSignals(ctx context.Context, signals []models.ScrapeResult) (int, int, error) {
	f.received = signals
	return len(signals), 0, f.err
}

type fakeArchiver struct {
	filenames []string
}

func (f *fakeArchiver) Store(filename string, data []byte) error {
	f.filenames = append(f.filenames, filename)
	return nil
}

func signal(url, source, title string) models.ScrapeResult {
	return models.ScrapeResult{URL: url, Source: source, Title: title}
}

func TestIngest_SkipsDisabledScrapers(t *testing.T) {
	enabled := &fakeScraper{name: "reddit", enabled: true, results: []models.ScrapeResult{
		signal("https://a", "reddit", "startup idea"),
	}}
	disabled := &fakeScraper{name: "web", enabled: false}
	store := &fakeSignalStore{}

	svc := NewIngestService([]scrapers.Scraper{enabled, disabled}, store, nil, nil,
		metrics.NewCollector(nil), false, nil)

	err := svc.Run(context.Background())
	assert.NoError(t, err)
	assert.True(t, enabled.called)
	assert.False(t, disabled.called)
	assert.Len(t, store.received, 1)
}

func TestIngest_ScraperFailureDoesNotAbortRun(t *testing.T) {
	failing := &fakeScraper{name: "reddit", enabled: true, err: errors.New("auth failed")}
	working := &fakeScraper{name: "hacker_news", enabled: true, results: []models.ScrapeResult{
		signal("https://b", "hacker_news", "show hn"),
	}}
	store := &fakeSignalStore{}

	svc := NewIngestService([]scrapers.Scraper{failing, working}, store, nil, nil,
		metrics.NewCollector(nil), false, nil)

	err := svc.Run(context.Background())
	assert.NoError(t, err)
	assert.Len(t, store.received, 1)
}

func TestIngest_DedupesAcrossSources(t *testing.T) {
	first := &fakeScraper{name: "reddit", enabled: true, results: []models.ScrapeResult{
		signal("https://same", "reddit", "one"),
		signal("https://other", "reddit", "two"),
	}}
	second := &fakeScraper{name: "web", enabled: true, results: []models.ScrapeResult{
		signal("https://same", "web", "one again"),
	}}
	store := &fakeSignalStore{}

	svc := NewIngestService([]scrapers.Scraper{first, second}, store, nil, nil,
		metrics.NewCollector(nil), false, nil)

	err := svc.Run(context.Background())
	assert.NoError(t, err)
	assert.Len(t, store.received, 2)
}

func TestIngest_RelevanceFilter(t *testing.T) {
	scraper := &fakeScraper{name: "reddit", enabled: true, results: []models.ScrapeResult{
		signal("https://1", "reddit", "My SaaS startup journey"),
		signal("https://2", "reddit", "Cute cat pictures"),
		signal("https://3", "google_trends", "anything"),
	}}
	store := &fakeSignalStore{}

	svc := NewIngestService([]scrapers.Scraper{scraper}, store, nil, nil,
		metrics.NewCollector(nil), true, []string{"startup", "saas"})

	err := svc.Run(context.Background())
	assert.NoError(t, err)

	var urls []string
	for _, s := range store.received {
		urls = append(urls, s.URL)
	}
	assert.ElementsMatch(t, []string{"https://1", "https://3"}, urls)
}

func TestIngest_ArchivesBatch(t *testing.T) {
	scraper := &fakeScraper{name: "reddit", enabled: true, results: []models.ScrapeResult{
		signal("https://a", "reddit", "one"),
	}}
	store := &fakeSignalStore{}
	archiver := &fakeArchiver{}

	svc := NewIngestService([]scrapers.Scraper{scraper}, store, archiver, nil,
		metrics.NewCollector(nil), false, nil)

	err := svc.Run(context.Background())
	assert.NoError(t, err)
	assert.Len(t, archiver.filenames, 1)
	assert.Regexp(t, `^signals-.*\.json$`, archiver.filenames[0])
}

func TestIngest_StoreFailurePropagates(t *testing.T) {
	scraper := &fakeScraper{name: "reddit", enabled: true, results: []models.ScrapeResult{
		signal("https://a", "reddit", "one"),
	}}
	store := &fakeSignalStore{err: errors.New("mongo down")}

	svc := NewIngestService([]scrapers.Scraper{scraper}, store, nil, nil,
		metrics.NewCollector(nil), false, nil)

	err := svc.Run(context.Background())
	assert.ErrorContains(t, err, "mongo down")
}

func TestIngest_EmptyRunSkipsStore(t *testing.T) {
	scraper := &fakeScraper{name: "reddit", enabled: true}
	store := &fakeSignalStore{err: errors.New("should not be called")}

	svc := NewIngestService([]scrapers.Scraper{scraper}, store, nil, nil,
		metrics.NewCollector(nil), false, nil)

	err := svc.Run(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, store.received)
}
