package ai

import (
	"fmt"

	"github.com/stocknews/newsbot/internal/models"
)

// InputsFor builds the request payload for items, preserving order
func InputsFor(items []models.NewsItem) []Input {
	inputs := make([]Input, len(items))
	for i, item := range items {
		inputs[i] = Input{Title: item.Original.Title, Content: item.Original.Body}
	}
	return inputs
}

// ApplyAnalyses merges analyses[i] into items[i]. The input slice is not modified.
func ApplyAnalyses(items []models.NewsItem, analyses []Analysis) ([]models.NewsItem, error) {
	if len(items) != len(analyses) {
		return nil, fmt.Errorf("%w: %d items, %d analyses", ErrLengthMismatch, len(items), len(analyses))
	}

	updated := make([]models.NewsItem, len(items))
	for i, item := range items {
		a := analyses[i]
		if a.TranslatedTitle != "" || a.TranslatedContent != "" {
			item.Translated = &models.Content{Title: a.TranslatedTitle, Body: a.TranslatedContent}
		}
		item.Enrichment = models.Enriched(models.AiOverview{
			Summary:        a.Overview,
			SentimentType:  a.SentimentType,
			SentimentScore: a.SentimentRatio,
			Categories:     models.NormalizeCategories(a.Categories),
			Source:         models.OverviewSourceAI,
		})
		updated[i] = item
	}
	return updated, nil
}
