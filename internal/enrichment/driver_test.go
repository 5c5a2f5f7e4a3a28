package enrichment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stocknews/newsbot/internal/ai"
	"github.com/stocknews/newsbot/internal/metrics"
	"github.com/stocknews/newsbot/internal/models"
	"github.com/stocknews/newsbot/internal/sentiment"
	"github.com/stocknews/newsbot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEnricher is a mock implementation of the AI requester
type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) Request(ctx context.Context, inputs []ai.Input) ([]ai.Analysis, error) {
	args := m.Called(ctx, inputs)
	analyses, _ := args.Get(0).([]ai.Analysis)
	return analyses, args.Error(1)
}

// MockNewsStore is a mock implementation of the news store
type MockNewsStore struct {
	mock.Mock
}

func (m *MockNewsStore) SaveAll(ctx context.Context, items []models.NewsItem) ([]models.NewsItem, error) {
	args := m.Called(ctx, items)
	saved, _ := args.Get(0).([]models.NewsItem)
	return saved, args.Error(1)
}

func (m *MockNewsStore) FindPendingEnrichment(ctx context.Context, pageSize, pageNumber int) (models.Page, error) {
	args := m.Called(ctx, pageSize, pageNumber)
	return args.Get(0).(models.Page), args.Error(1)
}

func (m *MockNewsStore) FindByID(ctx context.Context, id string) (*models.NewsItem, error) {
	args := m.Called(ctx, id)
	item, _ := args.Get(0).(*models.NewsItem)
	return item, args.Error(1)
}

type stubAnalyzer struct {
	available bool
	fail      map[string]bool
}

func (s *stubAnalyzer) IsModelAvailable() bool { return s.available }

func (s *stubAnalyzer) Analyze(text string) models.SentimentAnalysisResult {
	if s.fail[text] {
		return models.FailureResult("forced failure")
	}
	return models.SuccessResult(models.SentimentPositive, 0.7, "긍정적인 내용입니다.")
}

func seedStore(t *testing.T, n int) *storage.BlobNewsStore {
	t.Helper()
	store := storage.NewBlobNewsStore(storage.NewMemoryStorage())
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	var items []models.NewsItem
	for i := 0; i < n; i++ {
		items = append(items, models.NewsItem{
			ID:          fmt.Sprintf("n%02d", i),
			Provider:    models.ProviderMarketAux,
			ScrapedTime: base.Add(time.Duration(i) * time.Minute),
			SourceURL:   fmt.Sprintf("https://example.com/%d", i),
			Original:    models.Content{Title: fmt.Sprintf("title %d", i), Body: "상승"},
			Symbols:     []string{"AAPL"},
		})
	}
	_, err := store.SaveAll(context.Background(), items)
	require.NoError(t, err)
	return store
}

func pendingCount(t *testing.T, store storage.NewsStore) int {
	t.Helper()
	page, err := store.FindPendingEnrichment(context.Background(), 100, 0)
	require.NoError(t, err)
	return page.Total
}

func analysesFor(inputs []ai.Input) []ai.Analysis {
	out := make([]ai.Analysis, len(inputs))
	for i, in := range inputs {
		out[i] = ai.Analysis{
			Overview:       "요약: " + in.Title,
			Categories:     []models.Category{"AAPL"},
			SentimentType:  models.SentimentNegative,
			SentimentRatio: 0.8,
		}
	}
	return out
}

func withLen(n int) any {
	return mock.MatchedBy(func(inputs []ai.Input) bool { return len(inputs) == n })
}

func TestDriver_LocalModeEnrichesEverything(t *testing.T) {
	store := seedStore(t, 3)
	collector := metrics.New()

	driver, err := NewDriver(store, sentiment.NewEngine(true), nil, collector, Options{Mode: ModeLocal, PageSize: 2})
	require.NoError(t, err)

	summary, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 0, pendingCount(t, store))

	item, err := store.FindByID(context.Background(), "n01")
	require.NoError(t, err)
	overview, ok := item.Enrichment.Overview()
	require.True(t, ok)
	assert.Equal(t, models.OverviewSourceLocal, overview.Source)
	assert.Equal(t, models.SentimentPositive, overview.SentimentType)
	assert.Equal(t, []models.Category{"AAPL"}, overview.Categories)

	snap := collector.Snapshot()
	assert.Equal(t, int64(3), snap.Succeeded)
	assert.Equal(t, int64(3), snap.SentimentCounts[models.SentimentPositive])
}

func TestDriver_LocalFailuresDoNotAbort(t *testing.T) {
	store := seedStore(t, 3)
	analyzer := &stubAnalyzer{available: true, fail: map[string]bool{"title 1 상승": true}}

	driver, err := NewDriver(store, analyzer, nil, metrics.New(), Options{Mode: ModeLocal, PageSize: 2})
	require.NoError(t, err)

	summary, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	failed, err := store.FindByID(context.Background(), "n01")
	require.NoError(t, err)
	assert.True(t, failed.Enrichment.IsPending())
}

func TestDriver_UnavailableEngineSkipsAndTerminates(t *testing.T) {
	store := seedStore(t, 5)

	driver, err := NewDriver(store, sentiment.NewEngine(false), nil, metrics.New(), Options{Mode: ModeLocal, PageSize: 2})
	require.NoError(t, err)

	summary, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Processed)
	assert.Equal(t, 5, summary.Skipped)
	assert.Zero(t, summary.Succeeded)
	assert.Equal(t, 5, pendingCount(t, store))
}

func TestDriver_AIModeGroupsAndIsolatesBatchFailures(t *testing.T) {
	store := seedStore(t, 7)
	enricher := &MockEnricher{}
	enricher.On("Request", mock.Anything, withLen(5)).
		Return(analysesFor(make([]ai.Input, 5)), nil).Once()
	enricher.On("Request", mock.Anything, withLen(2)).
		Return(nil, &ai.EnrichmentError{BatchSize: 2, Err: errors.New("timeout")}).Once()

	driver, err := NewDriver(store, nil, enricher, metrics.New(), Options{Mode: ModeAI, PageSize: 10, AIBatchSize: 5})
	require.NoError(t, err)

	summary, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, summary.Processed)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2, pendingCount(t, store))
	enricher.AssertExpectations(t)

	item, err := store.FindByID(context.Background(), "n00")
	require.NoError(t, err)
	overview, ok := item.Enrichment.Overview()
	require.True(t, ok)
	assert.Equal(t, models.OverviewSourceAI, overview.Source)
	assert.Equal(t, models.SentimentNegative, overview.SentimentType)
}

func TestDriver_AIModeMapsPositionally(t *testing.T) {
	store := seedStore(t, 3)
	enricher := &MockEnricher{}
	enricher.On("Request", mock.Anything, withLen(3)).Return(analysesFor([]ai.Input{
		{Title: "title 0"}, {Title: "title 1"}, {Title: "title 2"},
	}), nil).Once()

	driver, err := NewDriver(store, nil, enricher, metrics.New(), Options{Mode: ModeAI, PageSize: 10})
	require.NoError(t, err)

	_, err = driver.Run(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		item, err := store.FindByID(context.Background(), fmt.Sprintf("n%02d", i))
		require.NoError(t, err)
		overview, ok := item.Enrichment.Overview()
		require.True(t, ok)
		assert.Equal(t, "요약: "+item.Original.Title, overview.Summary)
	}
}

func TestDriver_AILengthMismatchFailsGroup(t *testing.T) {
	store := seedStore(t, 3)
	enricher := &MockEnricher{}
	enricher.On("Request", mock.Anything, withLen(3)).Return(analysesFor(make([]ai.Input, 2)), nil).Once()

	driver, err := NewDriver(store, nil, enricher, metrics.New(), Options{Mode: ModeAI})
	require.NoError(t, err)

	summary, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, 3, pendingCount(t, store))
}

func TestDriver_StoreErrorIsFatal(t *testing.T) {
	item := models.NewsItem{ID: "x", Provider: models.ProviderRSS, Original: models.Content{Title: "상승"}}
	store := &MockNewsStore{}
	store.On("FindPendingEnrichment", mock.Anything, 20, 0).
		Return(models.Page{Items: []models.NewsItem{item}, Number: 0, Size: 20, Total: 1}, nil)
	store.On("SaveAll", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	driver, err := NewDriver(store, sentiment.NewEngine(true), nil, metrics.New(), Options{Mode: ModeLocal})
	require.NoError(t, err)

	summary, err := driver.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.Succeeded)
}

func TestDriver_FetchErrorIsFatal(t *testing.T) {
	store := &MockNewsStore{}
	store.On("FindPendingEnrichment", mock.Anything, 20, 0).Return(models.Page{}, errors.New("unavailable"))

	driver, err := NewDriver(store, sentiment.NewEngine(true), nil, metrics.New(), Options{})
	require.NoError(t, err)

	_, err = driver.Run(context.Background())
	assert.Error(t, err)
}

func TestDriver_RerunIsIdempotent(t *testing.T) {
	store := seedStore(t, 4)

	driver, err := NewDriver(store, sentiment.NewEngine(true), nil, metrics.New(), Options{Mode: ModeLocal})
	require.NoError(t, err)

	first, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, first.Succeeded)

	second, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Processed)
}

func TestNewDriver_ModeResolution(t *testing.T) {
	store := storage.NewBlobNewsStore(storage.NewMemoryStorage())
	engine := sentiment.NewEngine(true)

	auto, err := NewDriver(store, engine, nil, nil, Options{Mode: ModeAuto})
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, auto.Mode())

	autoAI, err := NewDriver(store, engine, &MockEnricher{}, nil, Options{Mode: ModeAuto})
	require.NoError(t, err)
	assert.Equal(t, ModeAI, autoAI.Mode())

	_, err = NewDriver(store, engine, nil, nil, Options{Mode: ModeAI})
	assert.Error(t, err)

	_, err = NewDriver(store, engine, nil, nil, Options{Mode: "remote"})
	assert.Error(t, err)

	_, err = NewDriver(store, nil, nil, nil, Options{Mode: ModeLocal})
	assert.Error(t, err)
}

func TestWithProviderHint(t *testing.T) {
	neutral := models.SuccessResult(models.SentimentNeutral, 0.5, "중립적인 내용입니다.")
	positive := models.SuccessResult(models.SentimentPositive, 0.7, "긍정적인 내용입니다.")
	hint := func(v float64) *float64 { return &v }

	tests := []struct {
		name          string
		result        models.SentimentAnalysisResult
		hint          *float64
		expectedType  models.SentimentType
		expectedScore float64
	}{
		{name: "No hint keeps result", result: neutral, hint: nil, expectedType: models.SentimentNeutral, expectedScore: 0.5},
		{name: "Keyword polarity wins", result: positive, hint: hint(-0.9), expectedType: models.SentimentPositive, expectedScore: 0.7},
		{name: "Positive hint on neutral", result: neutral, hint: hint(0.6), expectedType: models.SentimentPositive, expectedScore: 0.74},
		{name: "Negative hint on neutral", result: neutral, hint: hint(-0.5), expectedType: models.SentimentNegative, expectedScore: 0.3},
		{name: "Maximal positive hint", result: neutral, hint: hint(1.0), expectedType: models.SentimentPositive, expectedScore: 0.9},
		{name: "Strong positive hint", result: neutral, hint: hint(0.95), expectedType: models.SentimentPositive, expectedScore: 0.88},
		{name: "Maximal negative hint", result: neutral, hint: hint(-1.0), expectedType: models.SentimentNegative, expectedScore: 0.1},
		{name: "Strong negative hint", result: neutral, hint: hint(-0.95), expectedType: models.SentimentNegative, expectedScore: 0.12},
		{name: "Out of range hint is bounded", result: neutral, hint: hint(1.7), expectedType: models.SentimentPositive, expectedScore: 0.9},
		{name: "Weak hint stays neutral", result: neutral, hint: hint(0.1), expectedType: models.SentimentNeutral, expectedScore: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := withProviderHint(tt.result, tt.hint)
			assert.True(t, got.Success)
			assert.Equal(t, tt.expectedType, got.SentimentType)
			assert.InDelta(t, tt.expectedScore, got.Score, 1e-9)
			assert.GreaterOrEqual(t, got.Score, 0.1)
			assert.LessOrEqual(t, got.Score, 0.9)
		})
	}
}

func TestDriver_LocalModeUsesProviderHint(t *testing.T) {
	store := storage.NewBlobNewsStore(storage.NewMemoryStorage())
	score := -0.6
	_, err := store.SaveAll(context.Background(), []models.NewsItem{{
		ID:                "hinted",
		Provider:          models.ProviderMarketAux,
		SourceURL:         "https://example.com/hinted",
		Original:          models.Content{Title: "Quarterly report", Body: "The company published results."},
		ProviderSentiment: &score,
	}})
	require.NoError(t, err)

	driver, err := NewDriver(store, sentiment.NewEngine(true), nil, nil, Options{Mode: ModeLocal})
	require.NoError(t, err)
	_, err = driver.Run(context.Background())
	require.NoError(t, err)

	item, err := store.FindByID(context.Background(), "hinted")
	require.NoError(t, err)
	overview, ok := item.Enrichment.Overview()
	require.True(t, ok)
	assert.Equal(t, models.SentimentNegative, overview.SentimentType)
	assert.InDelta(t, 0.26, overview.SentimentScore, 1e-9)
}
