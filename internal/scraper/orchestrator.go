package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/metrics"
	"github.com/stocknews/newsbot/internal/models"
	"github.com/stocknews/newsbot/internal/sources"
	"golang.org/x/sync/errgroup"
)

// Orchestrator fans a scrape out to every enabled provider adapter
type Orchestrator struct {
	registry *sources.Registry
	sink     metrics.Sink
}

func NewOrchestrator(registry *sources.Registry, sink metrics.Sink) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		sink:     sink,
	}
}

// Scrape runs every enabled adapter concurrently and waits for all of them. A panicking
// adapter contributes no items. Results are concatenated in registry order.
func (o *Orchestrator) Scrape(ctx context.Context, publishedAfter time.Time, limit int) []models.NewsItem {
	start := time.Now()
	enabled := o.registry.Enabled()
	logrus.Infof("Scraping %d providers for news published after %s (limit %d)",
		len(enabled), publishedAfter.Format(time.RFC3339), limit)

	results := make([]scrapResult, len(enabled))

	var g errgroup.Group
	for i, src := range enabled {
		i, src := i, src
		g.Go(func() error {
			results[i] = o.scrapOne(ctx, src, publishedAfter, limit)
			return nil
		})
	}
	_ = g.Wait()

	var all []models.NewsItem
	for _, result := range results {
		logrus.WithField("provider", result.provider).Infof("Fetched %d items", len(result.items))
		all = append(all, result.items...)
	}

	logrus.Infof("Scrape finished in %v: %d items", time.Since(start), len(all))
	return all
}

// unknownProvider labels a panic raised before the adapter reported its provider
const unknownProvider models.Provider = "UNKNOWN"

type scrapResult struct {
	provider models.Provider
	items    []models.NewsItem
}

func (o *Orchestrator) scrapOne(ctx context.Context, src sources.Source, publishedAfter time.Time, limit int) (result scrapResult) {
	defer func() {
		if r := recover(); r != nil {
			if result.provider == "" {
				result.provider = unknownProvider
			}
			err := fmt.Errorf("adapter panicked: %v", r)
			if o.sink != nil {
				o.sink.RecordProviderError(result.provider, err)
			} else {
				logrus.WithField("provider", result.provider).Error(err)
			}
			result.items = nil
		}
	}()

	result.provider = src.Supports()
	result.items = src.Scrap(ctx, publishedAfter, limit)
	return result
}
