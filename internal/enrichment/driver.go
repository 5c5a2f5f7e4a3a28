package enrichment

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/ai"
	"github.com/stocknews/newsbot/internal/metrics"
	"github.com/stocknews/newsbot/internal/models"
	"github.com/stocknews/newsbot/internal/storage"
)

// Mode selects the enrichment engine
type Mode string

const (
	ModeLocal Mode = "local"
	ModeAI    Mode = "ai"
	// ModeAuto uses the AI backend when one is configured, the local engine otherwise
	ModeAuto Mode = "auto"
)

const (
	DefaultPageSize    = 20
	DefaultAIBatchSize = 5
)

// Analyzer is the local sentiment engine as seen by the driver
type Analyzer interface {
	Analyze(text string) models.SentimentAnalysisResult
	IsModelAvailable() bool
}

// Enricher is the batched AI backend as seen by the driver
type Enricher interface {
	Request(ctx context.Context, inputs []ai.Input) ([]ai.Analysis, error)
}

// Options tune a driver
type Options struct {
	Mode        Mode
	PageSize    int
	AIBatchSize int
}

// Summary holds the terminal counts of one run
type Summary struct {
	Mode      Mode          `json:"mode"`
	Pages     int           `json:"pages"`
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Latency   time.Duration `json:"latency"`
	Duration  time.Duration `json:"duration"`
}

// Driver pages through pending news and enriches it item by item
type Driver struct {
	store    storage.NewsStore
	analyzer Analyzer
	enricher Enricher
	sink     metrics.Sink
	opts     Options
}

// NewDriver resolves the mode and validates that the chosen engine is present.
// enricher may be nil unless the mode is ai.
func NewDriver(store storage.NewsStore, analyzer Analyzer, enricher Enricher, sink metrics.Sink, opts Options) (*Driver, error) {
	if store == nil {
		return nil, fmt.Errorf("news store is required")
	}
	if sink == nil {
		sink = metrics.New()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.AIBatchSize <= 0 {
		opts.AIBatchSize = DefaultAIBatchSize
	}

	switch opts.Mode {
	case ModeAuto, "":
		if enricher != nil {
			opts.Mode = ModeAI
		} else {
			opts.Mode = ModeLocal
		}
	case ModeAI, ModeLocal:
	default:
		return nil, fmt.Errorf("unknown enrichment mode %q", opts.Mode)
	}

	if opts.Mode == ModeAI && enricher == nil {
		return nil, fmt.Errorf("ai mode requires an AI requester")
	}
	if opts.Mode == ModeLocal && analyzer == nil {
		return nil, fmt.Errorf("local mode requires a sentiment analyzer")
	}

	return &Driver{
		store:    store,
		analyzer: analyzer,
		enricher: enricher,
		sink:     sink,
		opts:     opts,
	}, nil
}

func (d *Driver) Mode() Mode {
	return d.opts.Mode
}

// Run processes pending items until none are left that this run has not attempted.
// Enriched items drop out of the pending set, so the same page number is fetched again
// after processing. The page number only advances past pages made entirely of items that
// already failed or were skipped in this run. Only store errors abort the run.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{Mode: d.opts.Mode}
	attempted := make(map[string]bool)
	pageNumber := 0

	logrus.Infof("Starting enrichment run (mode %s, page size %d)", d.opts.Mode, d.opts.PageSize)

	for {
		if err := ctx.Err(); err != nil {
			return d.finish(summary, start), err
		}

		page, err := d.store.FindPendingEnrichment(ctx, d.opts.PageSize, pageNumber)
		if err != nil {
			return d.finish(summary, start), fmt.Errorf("failed to fetch pending page %d: %w", pageNumber, err)
		}
		if len(page.Items) == 0 {
			break
		}

		var fresh []models.NewsItem
		for _, item := range page.Items {
			if !attempted[item.ID] {
				fresh = append(fresh, item)
				attempted[item.ID] = true
			}
		}

		if len(fresh) == 0 {
			if !page.HasNext() {
				break
			}
			pageNumber++
			continue
		}

		summary.Pages++
		if err := d.processPage(ctx, fresh, &summary); err != nil {
			return d.finish(summary, start), err
		}
	}

	return d.finish(summary, start), nil
}

func (d *Driver) finish(summary Summary, start time.Time) Summary {
	summary.Duration = time.Since(start)
	logrus.WithFields(logrus.Fields{
		"mode":      summary.Mode,
		"pages":     summary.Pages,
		"processed": summary.Processed,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Infof("Enrichment run completed in %v", summary.Duration)
	return summary
}

func (d *Driver) processPage(ctx context.Context, items []models.NewsItem, summary *Summary) error {
	if d.opts.Mode == ModeAI {
		for start := 0; start < len(items); start += d.opts.AIBatchSize {
			end := start + d.opts.AIBatchSize
			if end > len(items) {
				end = len(items)
			}
			if err := d.enrichWithAI(ctx, items[start:end], summary); err != nil {
				return err
			}
		}
		return nil
	}

	for _, item := range items {
		if err := d.enrichLocally(ctx, item, summary); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) enrichLocally(ctx context.Context, item models.NewsItem, summary *Summary) error {
	summary.Processed++
	d.sink.IncProcessed()

	if !d.analyzer.IsModelAvailable() {
		summary.Skipped++
		d.sink.IncSkipped()
		logrus.Debugf("Sentiment engine unavailable, skipping news %s", item.ID)
		return nil
	}

	start := time.Now()
	result := d.analyzer.Analyze(item.Text())
	d.observeLatency(summary, time.Since(start))
	result = withProviderHint(result, item.ProviderSentiment)

	if !result.Success {
		summary.Failed++
		d.sink.IncFailed()
		logrus.Warnf("Local sentiment failed for news %s: %s", item.ID, result.ErrorMessage)
		return nil
	}

	item.Enrichment = models.Enriched(models.AiOverview{
		Summary:        result.Description,
		SentimentType:  result.SentimentType,
		SentimentScore: result.Score,
		Categories:     models.CategoriesFromSymbols(item.Symbols),
		Source:         models.OverviewSourceLocal,
	})

	return d.persist(ctx, item, summary)
}

// providerHintThreshold is the provider score magnitude read as a polarity. Hint scores
// share the local engine's shape and [0.1, 0.9] bounds.
const (
	providerHintThreshold = 0.15
	hintNeutralScore      = 0.5
	hintScoreSpread       = 0.4
	hintMinScore          = 0.1
	hintMaxScore          = 0.9
)

// withProviderHint lets the provider's own score in [-1, 1] decide a neutral keyword result
func withProviderHint(result models.SentimentAnalysisResult, hint *float64) models.SentimentAnalysisResult {
	if hint == nil || !result.Success || result.SentimentType != models.SentimentNeutral {
		return result
	}

	sentimentType := models.SentimentNeutral
	switch {
	case *hint >= providerHintThreshold:
		sentimentType = models.SentimentPositive
	case *hint <= -providerHintThreshold:
		sentimentType = models.SentimentNegative
	default:
		return result
	}

	score := hintNeutralScore + hintScoreSpread*math.Min(1, math.Abs(*hint))
	if sentimentType == models.SentimentNegative {
		score = hintNeutralScore - hintScoreSpread*math.Min(1, math.Abs(*hint))
	}
	score = math.Max(hintMinScore, math.Min(hintMaxScore, score))
	return models.SuccessResult(sentimentType, score, fmt.Sprintf("%s (제공자 점수: %.2f)", result.Description, *hint))
}

// enrichWithAI sends one request for the group. A failed request fails every item in it.
func (d *Driver) enrichWithAI(ctx context.Context, group []models.NewsItem, summary *Summary) error {
	summary.Processed += len(group)
	for range group {
		d.sink.IncProcessed()
	}

	start := time.Now()
	analyses, err := d.enricher.Request(ctx, ai.InputsFor(group))
	d.observeLatency(summary, time.Since(start))

	var updated []models.NewsItem
	if err == nil {
		updated, err = ai.ApplyAnalyses(group, analyses)
	}
	if err != nil {
		summary.Failed += len(group)
		for range group {
			d.sink.IncFailed()
		}
		logrus.Errorf("AI enrichment failed for %d items starting at %s: %v", len(group), group[0].ID, err)
		return nil
	}

	for _, item := range updated {
		if err := d.persist(ctx, item, summary); err != nil {
			return err
		}
	}
	return nil
}

// persist writes one item through to the store before the next one is processed
func (d *Driver) persist(ctx context.Context, item models.NewsItem, summary *Summary) error {
	if _, err := d.store.SaveAll(ctx, []models.NewsItem{item}); err != nil {
		return fmt.Errorf("failed to persist news %s: %w", item.ID, err)
	}

	summary.Succeeded++
	d.sink.IncSucceeded()
	if overview, ok := item.Enrichment.Overview(); ok {
		d.sink.ObserveSentiment(overview.SentimentType)
	}
	return nil
}

func (d *Driver) observeLatency(summary *Summary, elapsed time.Duration) {
	summary.Latency += elapsed
	d.sink.ObserveLatency(elapsed)
}
