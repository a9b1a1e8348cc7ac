package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/startinsight/signal-pipeline/internal/config"
)

// Jobs are the scheduled entry points. Each job owns its own error
// handling; the scheduler only logs failures.
type Jobs struct {
	Ingest       func(ctx context.Context) error
	QualityCheck func(ctx context.Context) error
	ContentCycle func(ctx context.Context) error
}

// Service runs the recurring pipeline jobs on their configured schedules.
type Service struct {
	config *config.Config
	jobs   Jobs
	cron   *cron.Cron
}

// NewService creates a scheduler for the given jobs.
func NewService(cfg *config.Config, jobs Jobs) *Service {
	return &Service{
		config: cfg,
		jobs:   jobs,
		cron:   cron.New(cron.WithSeconds()),
	}
}

// Start registers the cron entries and begins scheduling.
func (s *Service) Start() error {
	entries := []struct {
		name     string
		schedule string
		job      func(ctx context.Context) error
	}{
		{"ingest", s.config.IngestSchedule, s.jobs.Ingest},
		{"quality_check", s.config.QualitySchedule, s.jobs.QualityCheck},
		{"content_cycle", s.config.ContentSchedule, s.jobs.ContentCycle},
	}

	for _, entry := range entries {
		if entry.job == nil {
			continue
		}

		name, job := entry.name, entry.job
		_, err := s.cron.AddFunc(entry.schedule, func() {
			logrus.Infof("Starting scheduled %s run", name)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			if err := job(ctx); err != nil {
				logrus.Errorf("Scheduled %s run failed: %v", name, err)
			}
		})
		if err != nil {
			return err
		}

		logrus.Infof("Scheduled %s with cron expression %q", name, entry.schedule)
	}

	s.cron.Start()
	logrus.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
