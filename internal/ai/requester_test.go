package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stocknews/newsbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Zero(t, req.Temperature)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestRequester(url string) *Requester {
	return NewRequester(Config{BaseURL: url, APIKey: "test-key", Model: "test-model", Timeout: time.Second})
}

var threeInputs = []Input{
	{Title: "Apple beats", Content: "iPhone sales up"},
	{Title: "Tesla recalls", Content: "Model Y issue"},
	{Title: "Markets flat", Content: "Nothing new"},
}

const threeAnalyses = `Here you go:
[
 {"overView":"애플 실적 호조","translatedTitle":"애플 예상 상회","translatedContent":"아이폰 판매 증가","categories":["AAPL"],"sentimentType":"POSITIVE","sentimentRatio":0.9},
 {"overView":"테슬라 리콜","translatedTitle":"테슬라 리콜","translatedContent":"모델 Y 문제","categories":["tsla"],"sentimentType":"NEGATIVE","sentimentRatio":0.7},
 {"overView":"시장 보합","translatedTitle":"시장 보합","translatedContent":"새 소식 없음","categories":[],"sentimentType":"","sentimentRatio":0.5}
]
Hope this helps.`

func TestRequester_RequestMapsPositionally(t *testing.T) {
	server := chatServer(t, http.StatusOK, threeAnalyses)
	defer server.Close()

	analyses, err := newTestRequester(server.URL).Request(context.Background(), threeInputs)
	require.NoError(t, err)
	require.Len(t, analyses, 3)

	assert.Equal(t, models.SentimentPositive, analyses[0].SentimentType)
	assert.Equal(t, []models.Category{"AAPL"}, analyses[0].Categories)
	assert.Equal(t, models.SentimentNegative, analyses[1].SentimentType)
	assert.Equal(t, []models.Category{"TSLA"}, analyses[1].Categories)
	assert.Equal(t, models.SentimentNeutral, analyses[2].SentimentType)
	assert.Equal(t, []models.Category{models.CategoryNone}, analyses[2].Categories)

	items := []models.NewsItem{
		{ID: "1", Original: models.Content{Title: "Apple beats"}},
		{ID: "2", Original: models.Content{Title: "Tesla recalls"}},
		{ID: "3", Original: models.Content{Title: "Markets flat"}},
	}
	updated, err := ApplyAnalyses(items, analyses)
	require.NoError(t, err)

	for i := range items {
		overview, ok := updated[i].Enrichment.Overview()
		require.True(t, ok)
		assert.Equal(t, items[i].ID, updated[i].ID)
		assert.Equal(t, analyses[i].Overview, overview.Summary)
		assert.Equal(t, analyses[i].SentimentType, overview.SentimentType)
		assert.Equal(t, models.OverviewSourceAI, overview.Source)
		assert.Equal(t, analyses[i].TranslatedTitle, updated[i].Translated.Title)
		assert.True(t, items[i].Enrichment.IsPending())
	}
}

func TestRequester_PromptCarriesInputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Messages[1].Content
		assert.Contains(t, prompt, `"title":"Apple beats"`)
		assert.Contains(t, prompt, `"content":"Model Y issue"`)
		assert.Contains(t, prompt, "NONE")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": threeAnalyses}}},
		})
	}))
	defer server.Close()

	_, err := newTestRequester(server.URL).Request(context.Background(), threeInputs)
	require.NoError(t, err)
}

func TestRequester_BatchFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		target  error
	}{
		{name: "No JSON array", status: http.StatusOK, content: "I cannot help with that.", target: ErrNoJSONArray},
		{name: "Empty payload", status: http.StatusOK, content: "  ", target: ErrEmptyPayload},
		{name: "Length mismatch", status: http.StatusOK, content: `[{"overView":"a","categories":["NONE"],"sentimentType":"NEUTRAL","sentimentRatio":0.5}]`, target: ErrLengthMismatch},
		{name: "Malformed JSON", status: http.StatusOK, content: `[{"overView": "a",]`},
		{name: "Unknown category", status: http.StatusOK, content: strings.Replace(threeAnalyses, `["AAPL"]`, `["FOO"]`, 1)},
		{name: "Unknown sentiment", status: http.StatusOK, content: strings.Replace(threeAnalyses, `"POSITIVE"`, `"BULLISH"`, 1)},
		{name: "Ratio out of range", status: http.StatusOK, content: strings.Replace(threeAnalyses, `0.9}`, `1.5}`, 1)},
		{name: "Server error", status: http.StatusInternalServerError, content: threeAnalyses},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.status, tt.content)
			defer server.Close()

			analyses, err := newTestRequester(server.URL).Request(context.Background(), threeInputs)

			assert.Nil(t, analyses)
			var enrichErr *EnrichmentError
			require.True(t, errors.As(err, &enrichErr))
			assert.Equal(t, 3, enrichErr.BatchSize)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestRequester_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	requester := NewRequester(Config{BaseURL: server.URL, APIKey: "k", Timeout: 20 * time.Millisecond})
	_, err := requester.Request(context.Background(), threeInputs)

	var enrichErr *EnrichmentError
	assert.True(t, errors.As(err, &enrichErr))
}

func TestRequester_EmptyBatch(t *testing.T) {
	analyses, err := NewRequester(Config{BaseURL: "http://127.0.0.1:1"}).Request(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, analyses)
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "Bare array", input: `[1,2]`, expected: `[1,2]`, ok: true},
		{name: "Fenced array", input: "```json\n[{\"a\":[1]}]\n```", expected: `[{"a":[1]}]`, ok: true},
		{name: "No brackets", input: `{"a":1}`, ok: false},
		{name: "Reversed brackets", input: `] nothing [`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONArray(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestApplyAnalyses_LengthMismatch(t *testing.T) {
	_, err := ApplyAnalyses([]models.NewsItem{{ID: "1"}}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestInputsFor(t *testing.T) {
	items := []models.NewsItem{{Original: models.Content{Title: "t", Body: "b"}}}
	assert.Equal(t, []Input{{Title: "t", Content: "b"}}, InputsFor(items))
}
