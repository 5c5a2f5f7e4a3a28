package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/config"
	"github.com/stocknews/newsbot/internal/enrichment"
	"github.com/stocknews/newsbot/internal/pipeline"
)

// Jobs is the part of the pipeline service the scheduler drives
type Jobs interface {
	ScheduledParams() pipeline.JobParams
	RunScrape(ctx context.Context, params pipeline.JobParams) (pipeline.ScrapeSummary, error)
	RunEnrichment(ctx context.Context) (enrichment.Summary, error)
}

// Service handles scheduling of the scrape and enrichment jobs
type Service struct {
	config *config.Config
	jobs   Jobs
	cron   *cron.Cron
}

// NewService creates a new scheduler service. Schedules are evaluated in the configured time zone.
func NewService(cfg *config.Config, jobs Jobs) *Service {
	return &Service{
		config: cfg,
		jobs:   jobs,
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
	}
}

// Start registers both jobs and starts the cron runner
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.ScrapeSchedule, s.runScrape)
	if err != nil {
		return fmt.Errorf("invalid scrape schedule %q: %w", s.config.ScrapeSchedule, err)
	}

	_, err = s.cron.AddFunc(s.config.EnrichSchedule, s.runEnrichment)
	if err != nil {
		return fmt.Errorf("invalid enrichment schedule %q: %w", s.config.EnrichSchedule, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (scrape %q, enrichment %q, zone %s)",
		s.config.ScrapeSchedule, s.config.EnrichSchedule, s.config.TimeZone)
	return nil
}

func (s *Service) runScrape() {
	logrus.Info("Starting scheduled scrape run")
	if _, err := s.jobs.RunScrape(context.Background(), s.jobs.ScheduledParams()); err != nil {
		if errors.Is(err, pipeline.ErrJobRunning) {
			logrus.Warn("Previous scrape run still in progress, skipping")
			return
		}
		logrus.Errorf("Scheduled scrape run failed: %v", err)
	}
}

func (s *Service) runEnrichment() {
	logrus.Info("Starting scheduled enrichment run")
	if _, err := s.jobs.RunEnrichment(context.Background()); err != nil {
		if errors.Is(err, pipeline.ErrJobRunning) {
			logrus.Warn("Previous enrichment run still in progress, skipping")
			return
		}
		logrus.Errorf("Scheduled enrichment run failed: %v", err)
	}
}

// Stop stops the scheduler and waits for running jobs
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
