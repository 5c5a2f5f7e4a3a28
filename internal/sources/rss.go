package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/metrics"
	"github.com/stocknews/newsbot/internal/models"
	"github.com/stocknews/newsbot/internal/timeutil"
)

// zonelessLayouts are timestamp shapes some Korean feeds emit without an offset
var zonelessLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006.01.02 15:04:05",
	"2006-01-02 15:04",
}

// RSSConfig holds the settings of the RSS adapter
type RSSConfig struct {
	Feeds    []string
	Location *time.Location
	Timeout  time.Duration
}

// RSSSource reads a fixed list of RSS/Atom feeds
type RSSSource struct {
	parser   *gofeed.Parser
	feeds    []string
	location *time.Location
	sink     metrics.Sink
	now      func() time.Time
}

// NewRSSSource creates a new RSS source. Feed timestamps without a zone are read in
// cfg.Location, KST by default.
func NewRSSSource(cfg RSSConfig, sink metrics.Sink) *RSSSource {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}
	parser.UserAgent = userAgent

	loc := cfg.Location
	if loc == nil {
		loc = timeutil.KST
	}

	return &RSSSource{
		parser:   parser,
		feeds:    cfg.Feeds,
		location: loc,
		sink:     sink,
		now:      time.Now,
	}
}

func (r *RSSSource) Supports() models.Provider {
	return models.ProviderRSS
}

func (r *RSSSource) IsEnabled() bool {
	return len(r.feeds) > 0
}

// Scrap reads every feed in order. A failing feed is recorded and skipped.
func (r *RSSSource) Scrap(ctx context.Context, publishedAfter time.Time, limit int) []models.NewsItem {
	if !r.IsEnabled() {
		logrus.Debug("No RSS feeds configured, skipping")
		return []models.NewsItem{}
	}

	scrapedAt := r.now()
	items := []models.NewsItem{}

	for _, feedURL := range r.feeds {
		if limit > 0 && len(items) >= limit {
			break
		}

		feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			failure(r.sink, models.ProviderRSS, fmt.Errorf("parse feed %s: %w", feedURL, err))
			continue
		}

		for _, entry := range feed.Items {
			if limit > 0 && len(items) >= limit {
				break
			}

			published, ok := r.publishedTime(entry)
			if !ok {
				published = scrapedAt
			} else if published.Before(publishedAfter) {
				continue
			}

			body := entry.Description
			if body == "" {
				body = entry.Content
			}

			items = append(items, models.NewsItem{
				Provider:      models.ProviderRSS,
				PublishedTime: published,
				ScrapedTime:   scrapedAt,
				SourceURL:     entry.Link,
				Original:      models.Content{Title: entry.Title, Body: body},
			})
		}
	}

	logrus.Debugf("RSS returned %d items from %d feeds", len(items), len(r.feeds))
	return items
}

func (r *RSSSource) publishedTime(entry *gofeed.Item) (time.Time, bool) {
	if t, ok := timeutil.ParseInLocation(entry.Published, r.location, zonelessLayouts...); ok {
		return t, true
	}
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed, true
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed, true
	}
	return time.Time{}, false
}
