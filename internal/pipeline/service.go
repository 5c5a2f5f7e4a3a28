package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/ai"
	"github.com/stocknews/newsbot/internal/cache"
	"github.com/stocknews/newsbot/internal/config"
	"github.com/stocknews/newsbot/internal/enrichment"
	"github.com/stocknews/newsbot/internal/metrics"
	"github.com/stocknews/newsbot/internal/models"
	"github.com/stocknews/newsbot/internal/normalizer"
	"github.com/stocknews/newsbot/internal/scraper"
	"github.com/stocknews/newsbot/internal/sentiment"
	"github.com/stocknews/newsbot/internal/sources"
	"github.com/stocknews/newsbot/internal/storage"
	"github.com/stocknews/newsbot/internal/timeutil"
)

// DefaultLimit is the per-provider item limit when the job parameter is missing or invalid
const DefaultLimit = 3

// jobTimeout bounds a single scheduled or triggered run
const jobTimeout = 30 * time.Minute

// ErrJobRunning is returned when a job of the same kind is still in progress
var ErrJobRunning = errors.New("job already running")

// JobParams are the raw scrape job parameters as received from a trigger
type JobParams struct {
	PublishTimeAfter string
	Limit            string
}

// Resolve turns the raw parameters into a publish time threshold and a limit
func (p JobParams) Resolve(now time.Time) (time.Time, int) {
	publishedAfter := timeutil.ParseJobTimestamp(p.PublishTimeAfter, now)

	limit, err := strconv.Atoi(strings.TrimSpace(p.Limit))
	if err != nil || limit <= 0 {
		limit = DefaultLimit
	}
	return publishedAfter, limit
}

// ScrapeSummary holds the terminal counts of one scrape run
type ScrapeSummary struct {
	PublishedAfter time.Time     `json:"published_after"`
	Limit          int           `json:"limit"`
	Scraped        int           `json:"scraped"`
	Malformed      int           `json:"malformed"`
	Duplicates     int           `json:"duplicates"`
	Seen           int           `json:"seen"`
	Saved          int           `json:"saved"`
	ProviderErrors int64         `json:"provider_errors"`
	Duration       time.Duration `json:"duration"`
}

// Metrics is the document served on the metrics endpoint
type Metrics struct {
	Providers       []models.Provider   `json:"providers"`
	EnrichmentMode  enrichment.Mode     `json:"enrichment_mode"`
	LastScrape      *ScrapeSummary      `json:"last_scrape,omitempty"`
	LastScrapeAt    time.Time           `json:"last_scrape_at"`
	LastEnrichment  *enrichment.Summary `json:"last_enrichment,omitempty"`
	LastEnrichAt    time.Time           `json:"last_enrichment_at"`
	ErrorCount      int                 `json:"error_count"`
	ScrapeCounts    metrics.Snapshot    `json:"scrape"`
	EnrichmentStats metrics.Snapshot    `json:"enrichment"`
}

// Service runs the scrape and enrichment jobs
type Service struct {
	config       *config.Config
	store        storage.NewsStore
	seen         cache.SeenCache
	registry     *sources.Registry
	orchestrator *scraper.Orchestrator
	normalizer   *normalizer.Normalizer
	driver       *enrichment.Driver

	scrapeMetrics *metrics.Collector
	enrichMetrics *metrics.Collector

	scrapeMu sync.Mutex
	enrichMu sync.Mutex

	mu         sync.RWMutex
	lastScrape *ScrapeSummary
	scrapeAt   time.Time
	lastEnrich *enrichment.Summary
	enrichAt   time.Time
	errorCount int

	now func() time.Time
}

// NewService builds the providers and enrichment engines described by cfg.
// seen may be nil to disable cross-run dedup.
func NewService(cfg *config.Config, store storage.NewsStore, seen cache.SeenCache) (*Service, error) {
	s := newService(cfg, store, seen)

	registry, err := sources.NewRegistry(Sources(cfg, s.scrapeMetrics)...)
	if err != nil {
		return nil, err
	}

	// A nil *ai.Requester must not reach the driver as a non-nil interface
	var enricher enrichment.Enricher
	if cfg.AIEnabled() {
		enricher = ai.NewRequester(ai.Config{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.AIAPIKey,
			Model:   cfg.AIModel,
			Timeout: cfg.AITimeout,
		})
	}

	if err := s.wire(registry, sentiment.NewEngine(cfg.LocalSentimentEnabled), enricher); err != nil {
		return nil, err
	}
	return s, nil
}

func newService(cfg *config.Config, store storage.NewsStore, seen cache.SeenCache) *Service {
	return &Service{
		config:        cfg,
		store:         store,
		seen:          seen,
		normalizer:    normalizer.New(),
		scrapeMetrics: metrics.New(),
		enrichMetrics: metrics.New(),
		now:           time.Now,
	}
}

// Sources builds every provider adapter described by cfg. Adapters without credentials
// are returned too and report themselves disabled.
func Sources(cfg *config.Config, sink metrics.Sink) []sources.Source {
	return []sources.Source{
		sources.NewMarketAuxSource(sources.MarketAuxConfig{
			APIToken:  cfg.MarketAuxAPIToken,
			Countries: cfg.MarketAuxCountries,
			Language:  cfg.MarketAuxLanguage,
			Timeout:   cfg.ProviderTimeout,
		}, sink),
		sources.NewFinnhubSource(sources.FinnhubConfig{
			APIKey:  cfg.FinnhubAPIKey,
			Timeout: cfg.ProviderTimeout,
		}, sink),
		sources.NewRSSSource(sources.RSSConfig{
			Feeds:    cfg.RSSFeeds,
			Location: cfg.Location(),
			Timeout:  cfg.ProviderTimeout,
		}, sink),
	}
}

func (s *Service) wire(registry *sources.Registry, analyzer enrichment.Analyzer, enricher enrichment.Enricher) error {
	driver, err := enrichment.NewDriver(s.store, analyzer, enricher, s.enrichMetrics, enrichment.Options{
		Mode:        enrichment.Mode(s.config.EnrichMode),
		PageSize:    s.config.EnrichPageSize,
		AIBatchSize: s.config.AIBatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to build enrichment driver: %w", err)
	}

	s.registry = registry
	s.orchestrator = scraper.NewOrchestrator(registry, s.scrapeMetrics)
	s.driver = driver
	return nil
}

// ScheduledParams are the parameters of a cron-triggered scrape: the configured lookback
// window and default limit
func (s *Service) ScheduledParams() JobParams {
	after := s.now().Add(-s.config.ScrapeLookback).In(timeutil.KST)
	return JobParams{
		PublishTimeAfter: after.Format("2006-01-02T15:04:05"),
		Limit:            strconv.Itoa(s.config.ScrapeLimit),
	}
}

// RunScrape fetches, normalizes and deduplicates news, then saves what has not been seen before
func (s *Service) RunScrape(ctx context.Context, params JobParams) (ScrapeSummary, error) {
	if !s.scrapeMu.TryLock() {
		return ScrapeSummary{}, ErrJobRunning
	}
	defer s.scrapeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := s.now()
	publishedAfter, limit := params.Resolve(start)
	summary := ScrapeSummary{PublishedAfter: publishedAfter, Limit: limit}
	s.scrapeMetrics.Reset()

	scraped := s.orchestrator.Scrape(ctx, publishedAfter, limit)
	summary.Scraped = len(scraped)

	unique, errs := s.normalizer.NormalizeAndDeduplicate(scraped)
	for _, err := range errs {
		logrus.Warnf("Skipping malformed news item: %v", err)
	}
	summary.Malformed = len(errs)
	summary.Duplicates = len(scraped) - len(errs) - len(unique)

	fresh, keys := s.filterSeen(ctx, unique)
	summary.Seen = len(unique) - len(fresh)

	saved, err := s.store.SaveAll(ctx, fresh)
	summary.Saved = len(saved)
	if err != nil {
		summary.Duration = time.Since(start)
		s.recordScrape(summary, true)
		logrus.Errorf("Failed to store scraped news: %v", err)
		return summary, fmt.Errorf("failed to store scraped news: %w", err)
	}

	// SaveAll keeps input order, so keys[i] belongs to saved[i]
	s.markSeen(ctx, keys[:len(saved)])

	for _, count := range s.scrapeMetrics.Snapshot().ProviderErrors {
		summary.ProviderErrors += count
	}
	summary.Duration = time.Since(start)
	s.recordScrape(summary, false)

	logrus.WithFields(logrus.Fields{
		"scraped":    summary.Scraped,
		"malformed":  summary.Malformed,
		"duplicates": summary.Duplicates,
		"seen":       summary.Seen,
		"saved":      summary.Saved,
	}).Infof("Scrape run completed in %v", summary.Duration)
	return summary, nil
}

// filterSeen drops items seen by a previous run, either through the seen cache or because
// an item with the same ID is already stored. Items without a provider ID get one derived
// from their DedupKey, so the store check holds after the seen cache forgets them.
// Lookup errors keep the item.
func (s *Service) filterSeen(ctx context.Context, items []models.NewsItem) ([]models.NewsItem, []models.DedupKey) {
	fresh := make([]models.NewsItem, 0, len(items))
	keys := make([]models.DedupKey, 0, len(items))

	for _, item := range items {
		key := normalizer.Key(item)
		if item.ID == "" {
			item.ID = StableID(key)
		}
		if s.isSeen(ctx, key) || s.isStored(ctx, item.ID) {
			continue
		}
		fresh = append(fresh, item)
		keys = append(keys, key)
	}
	return fresh, keys
}

// StableID derives a store ID from a DedupKey. Equal keys give equal IDs.
func StableID(key models.DedupKey) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func (s *Service) isSeen(ctx context.Context, key models.DedupKey) bool {
	if s.seen == nil {
		return false
	}
	seen, err := s.seen.IsSeen(ctx, key)
	if err != nil {
		logrus.Warnf("Seen cache lookup failed, keeping item: %v", err)
		return false
	}
	return seen
}

// isStored keeps a re-scraped item from overwriting a stored, possibly enriched, copy
func (s *Service) isStored(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		logrus.Warnf("Store lookup for news %s failed, keeping item: %v", id, err)
		return false
	}
	return existing != nil
}

func (s *Service) markSeen(ctx context.Context, keys []models.DedupKey) {
	if s.seen == nil {
		return
	}
	for _, key := range keys {
		if err := s.seen.MarkSeen(ctx, key, s.config.SeenTTL); err != nil {
			logrus.Warnf("Failed to mark news as seen: %v", err)
		}
	}
}

// RunEnrichment enriches every pending item once
func (s *Service) RunEnrichment(ctx context.Context) (enrichment.Summary, error) {
	if !s.enrichMu.TryLock() {
		return enrichment.Summary{}, ErrJobRunning
	}
	defer s.enrichMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	s.enrichMetrics.Reset()
	summary, err := s.driver.Run(ctx)

	s.mu.Lock()
	s.lastEnrich = &summary
	s.enrichAt = s.now()
	if err != nil {
		s.errorCount++
	}
	s.mu.Unlock()

	if err != nil {
		logrus.Errorf("Enrichment run failed: %v", err)
		return summary, err
	}
	return summary, nil
}

func (s *Service) recordScrape(summary ScrapeSummary, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastScrape = &summary
	s.scrapeAt = s.now()
	if failed {
		s.errorCount++
	}
}

// Snapshot returns the current metrics document
func (s *Service) Snapshot() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var providers []models.Provider
	for _, src := range s.registry.Enabled() {
		providers = append(providers, src.Supports())
	}

	return Metrics{
		Providers:       providers,
		EnrichmentMode:  s.driver.Mode(),
		LastScrape:      s.lastScrape,
		LastScrapeAt:    s.scrapeAt,
		LastEnrichment:  s.lastEnrich,
		LastEnrichAt:    s.enrichAt,
		ErrorCount:      s.errorCount,
		ScrapeCounts:    s.scrapeMetrics.Snapshot(),
		EnrichmentStats: s.enrichMetrics.Snapshot(),
	}
}

// GetMetrics returns the metrics document as indented JSON
func (s *Service) GetMetrics() string {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
