package sources

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/metrics"
	"github.com/stocknews/newsbot/internal/models"
)

// Source is a provider adapter. Scrap blocks until the remote call finishes and never
// returns an error: failures are recorded on the metrics sink and yield no items.
type Source interface {
	Supports() models.Provider
	Scrap(ctx context.Context, publishedAfter time.Time, limit int) []models.NewsItem
	IsEnabled() bool
}

const defaultTimeout = 30 * time.Second

const userAgent = "StockNews-Bot/1.0"

// failure records err against provider and returns the empty result adapters hand back
func failure(sink metrics.Sink, provider models.Provider, err error) []models.NewsItem {
	if sink != nil {
		sink.RecordProviderError(provider, err)
	} else {
		logrus.WithField("provider", provider).Errorf("Provider fetch failed: %v", err)
	}
	return []models.NewsItem{}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}
