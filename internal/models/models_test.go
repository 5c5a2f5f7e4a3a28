package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichment_ZeroValueIsPending(t *testing.T) {
	var item NewsItem
	assert.True(t, item.Enrichment.IsPending())

	_, ok := item.Enrichment.Overview()
	assert.False(t, ok)
}

func TestEnrichment_JSON(t *testing.T) {
	item := NewsItem{
		ID:       "n-1",
		Provider: ProviderMarketAux,
		Original: Content{Title: "Apple beats estimates"},
		Enrichment: Enriched(AiOverview{
			Summary:        "애플이 예상을 상회했습니다.",
			SentimentType:  SentimentPositive,
			SentimentScore: 0.8,
			Categories:     []Category{"AAPL"},
			Source:         OverviewSourceAI,
		}),
	}

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"ENRICHED"`)

	var decoded NewsItem
	require.NoError(t, json.Unmarshal(data, &decoded))

	overview, ok := decoded.Enrichment.Overview()
	require.True(t, ok)
	assert.Equal(t, SentimentPositive, overview.SentimentType)
	assert.Equal(t, []Category{"AAPL"}, overview.Categories)
}

func TestEnrichment_UnmarshalRejectsEnrichedWithoutOverview(t *testing.T) {
	var e Enrichment
	err := json.Unmarshal([]byte(`{"state":"ENRICHED"}`), &e)
	assert.Error(t, err)
}

func TestParseSentimentType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected SentimentType
		wantErr  bool
	}{
		{name: "Positive", input: "POSITIVE", expected: SentimentPositive},
		{name: "Lower case negative", input: "negative", expected: SentimentNegative},
		{name: "Empty defaults to neutral", input: "", expected: SentimentNeutral},
		{name: "Unknown value", input: "BULLISH", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseSentimentType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNormalizeCategories(t *testing.T) {
	assert.Equal(t, []Category{CategoryNone}, NormalizeCategories(nil))
	assert.Equal(t, []Category{"AAPL", "TSLA"}, NormalizeCategories([]Category{"AAPL", CategoryNone, "TSLA", "AAPL"}))
}

func TestCategoriesFromSymbols(t *testing.T) {
	assert.Equal(t, []Category{"NVDA"}, CategoriesFromSymbols([]string{"nvda", "UNKNOWN"}))
	assert.Equal(t, []Category{CategoryNone}, CategoriesFromSymbols([]string{"XYZ"}))
}

func TestPage_HasNext(t *testing.T) {
	assert.True(t, Page{Number: 0, Size: 10, Total: 11}.HasNext())
	assert.False(t, Page{Number: 1, Size: 10, Total: 20}.HasNext())
	assert.False(t, Page{Number: 0, Size: 10, Total: 0}.HasNext())
}
