package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/metrics"
	"github.com/stocknews/newsbot/internal/models"
	"github.com/stocknews/newsbot/internal/timeutil"
)

const marketAuxBaseURL = "https://api.marketaux.com"

// MarketAuxConfig holds the settings of the MarketAux adapter
type MarketAuxConfig struct {
	BaseURL   string
	APIToken  string
	Countries []string
	Language  string
	Timeout   time.Duration
}

// MarketAuxSource implements the MarketAux news API
type MarketAuxSource struct {
	client    *resty.Client
	apiToken  string
	countries []string
	language  string
	sink      metrics.Sink
	now       func() time.Time
}

type marketAuxResponse struct {
	Data  []marketAuxArticle `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type marketAuxArticle struct {
	UUID        string            `json:"uuid"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Snippet     string            `json:"snippet"`
	URL         string            `json:"url"`
	PublishedAt string            `json:"published_at"`
	Entities    []marketAuxEntity `json:"entities"`
}

type marketAuxEntity struct {
	Symbol         string   `json:"symbol"`
	SentimentScore *float64 `json:"sentiment_score"`
}

// NewMarketAuxSource creates a new MarketAux source
func NewMarketAuxSource(cfg MarketAuxConfig, sink metrics.Sink) *MarketAuxSource {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = marketAuxBaseURL
	}
	return &MarketAuxSource{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeoutOrDefault(cfg.Timeout)).
			SetHeader("User-Agent", userAgent),
		apiToken:  cfg.APIToken,
		countries: cfg.Countries,
		language:  cfg.Language,
		sink:      sink,
		now:       time.Now,
	}
}

func (m *MarketAuxSource) Supports() models.Provider {
	return models.ProviderMarketAux
}

func (m *MarketAuxSource) IsEnabled() bool {
	return m.apiToken != ""
}

func (m *MarketAuxSource) Scrap(ctx context.Context, publishedAfter time.Time, limit int) []models.NewsItem {
	if !m.IsEnabled() {
		logrus.Debug("MarketAux API token not configured, skipping")
		return []models.NewsItem{}
	}

	params := map[string]string{
		"limit":           strconv.Itoa(limit),
		"published_after": timeutil.FormatUTCMinute(publishedAfter),
		"api_token":       m.apiToken,
	}
	if len(m.countries) > 0 {
		params["countries"] = strings.Join(m.countries, ",")
	}
	if m.language != "" {
		params["language"] = m.language
	}

	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/v1/news/all")
	if err != nil {
		return failure(m.sink, models.ProviderMarketAux, fmt.Errorf("request failed: %w", err))
	}

	var body marketAuxResponse
	if resp.StatusCode() != 200 {
		if json.Unmarshal(resp.Body(), &body) == nil && body.Error != nil {
			return failure(m.sink, models.ProviderMarketAux,
				fmt.Errorf("marketaux API returned status %d: %s", resp.StatusCode(), body.Error.Message))
		}
		return failure(m.sink, models.ProviderMarketAux,
			fmt.Errorf("marketaux API returned status %d", resp.StatusCode()))
	}

	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return failure(m.sink, models.ProviderMarketAux, fmt.Errorf("failed to parse response: %w", err))
	}

	scrapedAt := m.now()
	items := make([]models.NewsItem, 0, len(body.Data))
	for _, article := range body.Data {
		if limit > 0 && len(items) >= limit {
			break
		}
		items = append(items, m.toNewsItem(article, scrapedAt))
	}

	logrus.Debugf("MarketAux returned %d articles", len(items))
	return items
}

func (m *MarketAuxSource) toNewsItem(article marketAuxArticle, scrapedAt time.Time) models.NewsItem {
	published, ok := timeutil.ParseInLocation(article.PublishedAt, time.UTC, time.RFC3339, "2006-01-02T15:04:05")
	if !ok {
		published = scrapedAt
	}

	body := article.Description
	if body == "" {
		body = article.Snippet
	}

	item := models.NewsItem{
		ID:            article.UUID,
		Provider:      models.ProviderMarketAux,
		PublishedTime: published,
		ScrapedTime:   scrapedAt,
		SourceURL:     article.URL,
		Original:      models.Content{Title: article.Title, Body: body},
	}

	var sum float64
	var scored int
	for _, entity := range article.Entities {
		if entity.Symbol != "" {
			item.Symbols = append(item.Symbols, entity.Symbol)
		}
		if entity.SentimentScore != nil {
			sum += *entity.SentimentScore
			scored++
		}
	}
	if scored > 0 {
		mean := sum / float64(scored)
		item.ProviderSentiment = &mean
	}

	return item
}
