package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/alerts"
	"github.com/startinsight/signal-pipeline/internal/config"
	"github.com/startinsight/signal-pipeline/internal/content"
	"github.com/startinsight/signal-pipeline/internal/events"
	"github.com/startinsight/signal-pipeline/internal/metrics"
	"github.com/startinsight/signal-pipeline/internal/models"
	"github.com/startinsight/signal-pipeline/internal/pipeline"
	"github.com/startinsight/signal-pipeline/internal/scheduler"
	"github.com/startinsight/signal-pipeline/internal/scrapers"
	"github.com/startinsight/signal-pipeline/internal/storage"
	"github.com/startinsight/signal-pipeline/internal/validation"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting signal pipeline daemon")

	connectCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := storage.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	cancel()
	if err != nil {
		logrus.Fatalf("Failed to initialize store: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			logrus.Errorf("Failed to close store: %v", err)
		}
	}()

	// Optional blob archive for raw scrape batches
	var archiver pipeline.Archiver
	var browser archiveBrowser
	if cfg.StorageAccount != "" {
		blob, err := storage.NewBlobArchiver(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Errorf("Failed to initialize blob archive, continuing without it: %v", err)
		} else {
			archiver = blob
			browser = blob
		}
	}

	// Optional NATS event bus
	var bus *events.NATSPublisher
	if cfg.NATSURL != "" {
		bus, err = events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logrus.Errorf("Failed to connect to NATS, continuing without events: %v", err)
			bus = nil
		} else {
			defer bus.Close()
		}
	}

	collector := metrics.NewCollector(store)
	alertService := buildAlertService(cfg, bus)

	trendsClient := validation.NewGoogleTrendsClient(cfg.RequestTimeout)

	var communityLookup validation.CommunityLookup
	if redditClient := validation.NewRedditCommunityClient(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RequestTimeout); redditClient != nil {
		communityLookup = redditClient
	}
	communityValidator := validation.NewCommunityValidator(communityLookup)
	trendVerifier := validation.NewTrendVerifier(trendsClient, time.Second)
	urlValidator := validation.NewURLValidator(cfg.RequestTimeout)

	scraperList := []scrapers.Scraper{
		scrapers.NewRedditScraper(cfg.RedditClientID, cfg.RedditClientSecret, cfg.Subreddits, cfg.MinPostScore, cfg.MaxResults, cfg.ScrapeWindow, cfg.RequestTimeout),
		scrapers.NewHackerNewsScraper(cfg.MinPostScore, cfg.MaxResults, cfg.RequestTimeout),
		scrapers.NewTrendsScraper(trendsClient, cfg.TrendKeywords, cfg.TrendBatchDelay),
		scrapers.NewWebScraper(cfg.CompetitorURLs, cfg.RequestTimeout),
	}

	var publisher pipeline.Publisher
	if bus != nil {
		publisher = bus
	}

	ingest := pipeline.NewIngestService(scraperList, store, archiver, publisher, collector,
		cfg.EnableRelevanceFilter, cfg.RelevanceKeywords)

	var contentPublisher content.Publisher
	if bus != nil {
		contentPublisher = bus
	}
	contentService := content.NewService(store, contentPublisher)

	orchestrator := pipeline.NewOrchestrator(cfg.PipelineEnabled, cfg.MinInsightScore,
		store, contentService, contentService, contentService, store)

	qualityCheck := func(ctx context.Context) error {
		m, err := collector.Collect(ctx, time.Time{}, time.Time{})
		if err != nil {
			return fmt.Errorf("failed to collect quality metrics: %w", err)
		}

		score := collector.QualityScore(m)
		logrus.Infof("Quality score: %.1f (pass rate %.2f, duplicate rate %.2f)",
			score, m.ValidationPassRate, m.DuplicateRate)

		fired := alertService.CheckAndAlert(m)
		if len(fired) > 0 {
			logrus.Warnf("Fired %d quality alerts", len(fired))
		}
		return nil
	}

	sched := scheduler.NewService(cfg, scheduler.Jobs{
		Ingest:       ingest.Run,
		QualityCheck: qualityCheck,
		ContentCycle: func(ctx context.Context) error {
			run := orchestrator.Run(ctx)
			logrus.Infof("Content cycle finished with status %s", run.Status)
			return nil
		},
	})

	if err := sched.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/quality", qualityHandler(collector)).Methods("GET")
	router.HandleFunc("/alerts", alertsHandler(alertService)).Methods("GET")
	router.HandleFunc("/validate/communities", validateCommunitiesHandler(communityValidator, collector)).Methods("POST")
	router.HandleFunc("/validate/trends", validateTrendsHandler(trendVerifier, collector)).Methods("POST")
	router.HandleFunc("/validate/urls", validateURLsHandler(urlValidator, collector)).Methods("POST")
	if browser != nil {
		router.HandleFunc("/archive", archiveListHandler(browser)).Methods("GET")
		router.HandleFunc("/archive/{name}", archiveGetHandler(browser)).Methods("GET")
		router.HandleFunc("/archive/{name}", archiveDeleteHandler(browser)).Methods("DELETE")
	}
	router.HandleFunc("/trigger/ingest", triggerHandler("ingest", ingest.Run)).Methods("POST")
	router.HandleFunc("/trigger/content", triggerHandler("content", func(ctx context.Context) error {
		orchestrator.Run(ctx)
		return nil
	})).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// buildAlertService registers the log handler plus whichever optional
// channels are configured.
func buildAlertService(cfg *config.Config, bus *events.NATSPublisher) *alerts.Service {
	handlers := []alerts.Handler{alerts.LogHandler{}}

	if cfg.AlertWebhookURL != "" {
		handlers = append(handlers, alerts.NewWebhookHandler(cfg.AlertWebhookURL, cfg.RequestTimeout))
	}

	if cfg.AlertEmail != "" {
		handlers = append(handlers, alerts.NewEmailHandler(alerts.EmailConfig{
			To:       cfg.AlertEmail,
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}))
	}

	if bus != nil {
		handlers = append(handlers, bus)
	}

	return alerts.NewService(handlers...)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func qualityHandler(collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		m, err := collector.Collect(ctx, time.Time{}, time.Time{})
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to collect metrics: %v", err), http.StatusInternalServerError)
			return
		}

		response := struct {
			Score float64 `json:"quality_score"`
			// Embedded snapshot fields
			Metrics interface{} `json:"metrics"`
		}{
			Score:   collector.QualityScore(m),
			Metrics: m,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logrus.Errorf("Failed to encode quality response: %v", err)
		}
	}
}

func alertsHandler(service *alerts.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history := service.History()

		if min := r.URL.Query().Get("min_severity"); min != "" {
			floor := models.ParseSeverity(min)
			filtered := make([]models.Alert, 0, len(history))
			for _, alert := range history {
				if alert.Severity >= floor {
					filtered = append(filtered, alert)
				}
			}
			history = filtered
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(history); err != nil {
			logrus.Errorf("Failed to encode alert history: %v", err)
		}
	}
}

// archiveBrowser is the read/maintenance side of the blob archive exposed
// over HTTP for replay and debugging.
type archiveBrowser interface {
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(filename string) error
}

func archiveListHandler(archive archiveBrowser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := archive.List(r.URL.Query().Get("prefix"))
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to list archive: %v", err), http.StatusInternalServerError)
			return
		}
		if names == nil {
			names = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"blobs": names})
	}
}

func archiveGetHandler(archive archiveBrowser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		data, err := archive.Retrieve(name)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to retrieve %s: %v", name, err), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func archiveDeleteHandler(archive archiveBrowser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		if err := archive.Delete(name); err != nil {
			http.Error(w, fmt.Sprintf("failed to delete %s: %v", name, err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"message":"%s deleted"}`, name)
	}
}

func validateCommunitiesHandler(v *validation.CommunityValidator, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Signals          []validation.CommunitySignal `json:"signals"`
			MinValidRequired int                          `json:"min_valid_required"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		verified, validations, valid, invalid := v.ValidateAll(r.Context(), req.Signals, req.MinValidRequired)
		recordResults(collector, "community", valid, invalid)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"verified":      verified,
			"validations":   validations,
			"valid_count":   valid,
			"invalid_count": invalid,
		})
	}
}

func validateTrendsHandler(v *validation.TrendVerifier, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Keywords []validation.TrendKeyword `json:"keywords"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		verified, verifications, ok, failed := v.VerifyAll(r.Context(), req.Keywords)
		recordResults(collector, "trend", ok, failed)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keywords":       verified,
			"verifications":  verifications,
			"verified_count": ok,
			"failed_count":   failed,
		})
	}
}

func validateURLsHandler(v *validation.URLValidator, collector *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URLs []string `json:"urls"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		results := v.ValidateAll(r.Context(), req.URLs)
		for _, res := range results {
			collector.RecordValidationResult("url", res.Valid)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": results,
			"cache":   v.CacheStats(),
		})
	}
}

func recordResults(collector *metrics.Collector, kind string, passed, failed int) {
	for i := 0; i < passed; i++ {
		collector.RecordValidationResult(kind, true)
	}
	for i := 0; i < failed; i++ {
		collector.RecordValidationResult(kind, false)
	}
}

func triggerHandler(name string, run func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			if err := run(ctx); err != nil {
				logrus.Errorf("Manual %s trigger failed: %v", name, err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"message":"%s triggered successfully"}`, name)
	}
}
