package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second
)

// Input is one (title, content) pair sent for enrichment
type Input struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Analysis is the enrichment of the input at the same position
type Analysis struct {
	Overview          string
	TranslatedTitle   string
	TranslatedContent string
	Categories        []models.Category
	SentimentType     models.SentimentType
	SentimentRatio    float64
}

// Config holds the settings of an OpenAI-compatible chat completion backend
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Requester enriches a batch of news in a single chat completion call
type Requester struct {
	client *resty.Client
	model  string
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type wireAnalysis struct {
	OverView          string   `json:"overView"`
	TranslatedTitle   string   `json:"translatedTitle"`
	TranslatedContent string   `json:"translatedContent"`
	Categories        []string `json:"categories"`
	SentimentType     string   `json:"sentimentType"`
	SentimentRatio    float64  `json:"sentimentRatio"`
}

// NewRequester creates a requester. Empty fields fall back to OpenAI defaults.
func NewRequester(cfg Config) *Requester {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Requester{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetAuthToken(cfg.APIKey).
			SetHeader("Content-Type", "application/json"),
		model: model,
	}
}

// Request sends every input in one call. analyses[i] belongs to inputs[i]. Any failure,
// including a count mismatch, is returned as a single *EnrichmentError.
func (r *Requester) Request(ctx context.Context, inputs []Input) ([]Analysis, error) {
	if len(inputs) == 0 {
		return []Analysis{}, nil
	}

	prompt, err := buildPrompt(inputs)
	if err != nil {
		return nil, batchError(len(inputs), err)
	}

	start := time.Now()
	content, err := r.complete(ctx, prompt)
	if err != nil {
		return nil, batchError(len(inputs), err)
	}
	logrus.Debugf("AI backend answered %d items in %v", len(inputs), time.Since(start))

	analyses, err := parseAnalyses(content)
	if err != nil {
		return nil, batchError(len(inputs), err)
	}
	if len(analyses) != len(inputs) {
		return nil, batchError(len(inputs),
			fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(analyses), len(inputs)))
	}

	return analyses, nil
}

func (r *Requester) complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	var body chatResponse
	if resp.StatusCode() != 200 {
		if json.Unmarshal(resp.Body(), &body) == nil && body.Error != nil {
			return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode(), body.Error.Message)
		}
		return "", fmt.Errorf("API returned status %d", resp.StatusCode())
	}

	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if body.Error != nil {
		return "", fmt.Errorf("API error: %s", body.Error.Message)
	}
	if len(body.Choices) == 0 || strings.TrimSpace(body.Choices[0].Message.Content) == "" {
		return "", ErrEmptyPayload
	}

	return body.Choices[0].Message.Content, nil
}

// parseAnalyses extracts the JSON array from the model output and validates every entry
func parseAnalyses(content string) ([]Analysis, error) {
	raw, ok := extractJSONArray(content)
	if !ok {
		return nil, ErrNoJSONArray
	}

	var wire []wireAnalysis
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("failed to parse analyses: %w", err)
	}

	analyses := make([]Analysis, 0, len(wire))
	for i, w := range wire {
		a, err := w.toAnalysis()
		if err != nil {
			return nil, fmt.Errorf("analysis %d: %w", i, err)
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

func (w wireAnalysis) toAnalysis() (Analysis, error) {
	sentimentType, err := models.ParseSentimentType(w.SentimentType)
	if err != nil {
		return Analysis{}, err
	}
	if w.SentimentRatio < 0 || w.SentimentRatio > 1 {
		return Analysis{}, fmt.Errorf("sentimentRatio %v out of range [0, 1]", w.SentimentRatio)
	}

	categories := make([]models.Category, 0, len(w.Categories))
	for _, s := range w.Categories {
		c, err := models.ParseCategory(s)
		if err != nil {
			return Analysis{}, err
		}
		categories = append(categories, c)
	}

	return Analysis{
		Overview:          strings.TrimSpace(w.OverView),
		TranslatedTitle:   strings.TrimSpace(w.TranslatedTitle),
		TranslatedContent: strings.TrimSpace(w.TranslatedContent),
		Categories:        models.NormalizeCategories(categories),
		SentimentType:     sentimentType,
		SentimentRatio:    w.SentimentRatio,
	}, nil
}
