package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/metrics"
	"github.com/startinsight/signal-pipeline/internal/models"
	"github.com/startinsight/signal-pipeline/internal/scrapers"
)

// SignalStore persists scraped signals and reports how many were new vs
// already known.
type SignalStore interface {
	InsertSignals(ctx context.Context, signals []models.ScrapeResult) (inserted, duplicates int, err error)
}

// Archiver stores a raw scrape batch for replay/debugging.
type Archiver interface {
	Store(filename string, data []byte) error
}

// Publisher announces newly ingested signals.
type Publisher interface {
	PublishSignals(ctx context.Context, signals []models.ScrapeResult) error
}

// IngestService runs every enabled scraper, filters and dedupes the union,
// and hands the batch to the store, archive, and event bus.
type IngestService struct {
	scrapers  []scrapers.Scraper
	store     SignalStore
	archiver  Archiver
	publisher Publisher
	collector *metrics.Collector

	filterEnabled bool
	keywords      []string
}

// NewIngestService wires an ingest run. archiver and publisher may be nil.
func NewIngestService(scr []scrapers.Scraper, store SignalStore, archiver Archiver, publisher Publisher, collector *metrics.Collector, filterEnabled bool, keywords []string) *IngestService {
	return &IngestService{
		scrapers:      scr,
		store:         store,
		archiver:      archiver,
		publisher:     publisher,
		collector:     collector,
		filterEnabled: filterEnabled,
		keywords:      keywords,
	}
}

// Run executes one ingest cycle. Individual scraper failures are recorded
// and do not abort the run.
func (s *IngestService) Run(ctx context.Context) error {
	start := time.Now()
	logrus.Info("Starting ingest run")

	var wg sync.WaitGroup
	resultsChan := make(chan []models.ScrapeResult, len(s.scrapers))

	for _, scraper := range s.scrapers {
		if !scraper.Enabled() {
			logrus.Debugf("Skipping disabled scraper %s", scraper.Name())
			continue
		}

		wg.Add(1)
		go func(scr scrapers.Scraper) {
			defer wg.Done()

			logrus.Infof("Scraping %s", scr.Name())
			results, err := scr.Scrape(ctx)
			if err != nil {
				logrus.Errorf("Scraper %s failed: %v", scr.Name(), err)
				s.collector.RecordError("scraper_"+scr.Name(), "scrape")
			}

			metrics.SignalsScraped.WithLabelValues(scr.Name()).Add(float64(len(results)))
			logrus.Infof("Scraper %s returned %d results", scr.Name(), len(results))
			resultsChan <- results
		}(scraper)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	var all []models.ScrapeResult
	for results := range resultsChan {
		all = append(all, results...)
	}

	logrus.Infof("Collected %d signals from all sources", len(all))

	if s.filterEnabled {
		all = s.filterRelevant(all)
		logrus.Infof("After relevance filtering: %d signals", len(all))
	}

	all = dedupeByURL(all)

	if len(all) == 0 {
		logrus.Info("Ingest run produced no signals")
		return nil
	}

	inserted, duplicates, err := s.store.InsertSignals(ctx, all)
	if err != nil {
		s.collector.RecordError("ingest", "store")
		return fmt.Errorf("failed to store signals: %w", err)
	}
	logrus.Infof("Stored %d new signals (%d duplicates)", inserted, duplicates)

	s.archive(all)
	s.publish(ctx, all)

	logrus.Infof("Ingest run completed in %v", time.Since(start))
	return nil
}

func (s *IngestService) archive(signals []models.ScrapeResult) {
	if s.archiver == nil {
		return
	}

	data, err := json.Marshal(signals)
	if err != nil {
		logrus.Errorf("Failed to marshal signal batch: %v", err)
		return
	}

	filename := fmt.Sprintf("signals-%s.json", time.Now().UTC().Format("2006-01-02-15-04-05"))
	if err := s.archiver.Store(filename, data); err != nil {
		logrus.Errorf("Failed to archive signal batch: %v", err)
		s.collector.RecordError("ingest", "archive")
	}
}

func (s *IngestService) publish(ctx context.Context, signals []models.ScrapeResult) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.PublishSignals(ctx, signals); err != nil {
		logrus.Errorf("Failed to publish signal events: %v", err)
		s.collector.RecordError("ingest", "publish")
	}
}

func (s *IngestService) filterRelevant(signals []models.ScrapeResult) []models.ScrapeResult {
	var filtered []models.ScrapeResult
	for _, signal := range signals {
		if s.isRelevant(signal) {
			filtered = append(filtered, signal)
		}
	}
	return filtered
}

// isRelevant keeps signals whose text matches at least one configured
// keyword. Trend and web signals are always relevant: they were fetched
// from explicitly configured keywords and URLs.
func (s *IngestService) isRelevant(signal models.ScrapeResult) bool {
	if signal.Source == "google_trends" || signal.Source == "web" {
		return true
	}

	content := strings.ToLower(signal.Title + " " + signal.Content)
	for _, keyword := range s.keywords {
		if strings.Contains(content, strings.ToLower(keyword)) {
			return true
		}
	}

	return false
}

func dedupeByURL(signals []models.ScrapeResult) []models.ScrapeResult {
	seen := make(map[string]bool)
	var unique []models.ScrapeResult

	for _, signal := range signals {
		if !seen[signal.URL] {
			seen[signal.URL] = true
			unique = append(unique, signal)
		}
	}

	return unique
}
