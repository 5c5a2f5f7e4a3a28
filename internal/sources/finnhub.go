package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/metrics"
	"github.com/stocknews/newsbot/internal/models"
)

const finnhubBaseURL = "https://finnhub.io"

// FinnhubConfig holds the settings of the Finnhub adapter
type FinnhubConfig struct {
	BaseURL  string
	APIKey   string
	Category string
	Timeout  time.Duration
}

// FinnhubSource implements the Finnhub market news API
type FinnhubSource struct {
	client   *resty.Client
	apiKey   string
	category string
	sink     metrics.Sink
	now      func() time.Time
}

type finnhubArticle struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

// NewFinnhubSource creates a new Finnhub source
func NewFinnhubSource(cfg FinnhubConfig, sink metrics.Sink) *FinnhubSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = finnhubBaseURL
	}
	category := cfg.Category
	if category == "" {
		category = "general"
	}
	return &FinnhubSource{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeoutOrDefault(cfg.Timeout)).
			SetHeader("User-Agent", userAgent),
		apiKey:   cfg.APIKey,
		category: category,
		sink:     sink,
		now:      time.Now,
	}
}

func (f *FinnhubSource) Supports() models.Provider {
	return models.ProviderFinnhub
}

func (f *FinnhubSource) IsEnabled() bool {
	return f.apiKey != ""
}

// Scrap fetches the category feed. Finnhub has no server-side time filter, so
// articles older than publishedAfter are dropped here.
func (f *FinnhubSource) Scrap(ctx context.Context, publishedAfter time.Time, limit int) []models.NewsItem {
	if !f.IsEnabled() {
		logrus.Debug("Finnhub API key not configured, skipping")
		return []models.NewsItem{}
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"category": f.category,
			"token":    f.apiKey,
		}).
		Get("/api/v1/news")
	if err != nil {
		return failure(f.sink, models.ProviderFinnhub, fmt.Errorf("request failed: %w", err))
	}

	if resp.StatusCode() != 200 {
		return failure(f.sink, models.ProviderFinnhub,
			fmt.Errorf("finnhub API returned status %d", resp.StatusCode()))
	}

	var articles []finnhubArticle
	if err := json.Unmarshal(resp.Body(), &articles); err != nil {
		return failure(f.sink, models.ProviderFinnhub, fmt.Errorf("failed to parse response: %w", err))
	}

	scrapedAt := f.now()
	cutoff := publishedAfter.Unix()
	items := make([]models.NewsItem, 0, len(articles))
	for _, article := range articles {
		if limit > 0 && len(items) >= limit {
			break
		}
		if article.Datetime < cutoff {
			continue
		}

		item := models.NewsItem{
			ID:            fmt.Sprintf("finnhub-%d", article.ID),
			Provider:      models.ProviderFinnhub,
			PublishedTime: time.Unix(article.Datetime, 0).UTC(),
			ScrapedTime:   scrapedAt,
			SourceURL:     article.URL,
			Original:      models.Content{Title: article.Headline, Body: article.Summary},
		}
		for _, symbol := range strings.Split(article.Related, ",") {
			if symbol = strings.TrimSpace(symbol); symbol != "" {
				item.Symbols = append(item.Symbols, symbol)
			}
		}
		items = append(items, item)
	}

	logrus.Debugf("Finnhub returned %d articles after %s", len(items), publishedAfter.Format(time.RFC3339))
	return items
}
