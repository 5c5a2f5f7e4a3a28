package sentiment

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/stocknews/newsbot/internal/models"
)

const (
	neutralScore = 0.5
	scoreSpread  = 0.4
	minScore     = 0.1
	maxScore     = 0.9
)

// EmptyTextMessage is the failure message for blank input
const EmptyTextMessage = "텍스트가 비어있습니다."

// Keyword lists are matched as lower-case substrings. No entry may contain an entry of
// another list, otherwise a single phrase would be counted on both sides.
var (
	positiveWords = []string{
		"상승", "급등", "강세", "호재", "반등", "흑자", "성장", "최고치", "돌파", "개선", "호실적",
		"surge", "rally", "gains", "soar", "bullish", "upgrade", "outperform", "record high", "beats",
	}
	negativeWords = []string{
		"하락", "급락", "약세", "악재", "폭락", "적자", "손실", "부진", "감소", "우려", "리스크",
		"plunge", "slump", "tumble", "bearish", "downgrade", "underperform", "losses", "misses", "selloff",
	}
	neutralWords = []string{
		"보합", "횡보", "관망", "혼조", "유지",
		"unchanged", "steady", "sideways", "mixed",
	}
)

// Engine classifies text by keyword frequency without any external calls
type Engine struct {
	available atomic.Bool
}

// NewEngine returns an engine whose availability flag starts as given
func NewEngine(available bool) *Engine {
	e := &Engine{}
	e.available.Store(available)
	return e
}

// IsModelAvailable is advisory. Callers skip analysis when it reports false.
func (e *Engine) IsModelAvailable() bool {
	return e.available.Load()
}

func (e *Engine) SetModelAvailable(available bool) {
	e.available.Store(available)
}

// Analyze returns a fresh result for text. Blank text yields a failure result.
func (e *Engine) Analyze(text string) models.SentimentAnalysisResult {
	if strings.TrimSpace(text) == "" {
		return models.FailureResult(EmptyTextMessage)
	}

	content := strings.ToLower(text)
	positiveCount := countKeywords(content, positiveWords)
	negativeCount := countKeywords(content, negativeWords)
	neutralCount := countKeywords(content, neutralWords)

	sentimentType := models.SentimentNeutral
	switch {
	case positiveCount > negativeCount && positiveCount > neutralCount:
		sentimentType = models.SentimentPositive
	case negativeCount > positiveCount && negativeCount > neutralCount:
		sentimentType = models.SentimentNegative
	}

	score := confidence(sentimentType, positiveCount, negativeCount, neutralCount)
	desc := fmt.Sprintf("%s (긍정: %d, 부정: %d, 중립: %d)",
		describe(sentimentType, score), positiveCount, negativeCount, neutralCount)

	return models.SuccessResult(sentimentType, score, desc)
}

func countKeywords(content string, words []string) int {
	count := 0
	for _, word := range words {
		count += strings.Count(content, word)
	}
	return count
}

func confidence(sentimentType models.SentimentType, positive, negative, neutral int) float64 {
	total := positive + negative + neutral
	if total == 0 {
		return neutralScore
	}

	score := neutralScore
	switch sentimentType {
	case models.SentimentPositive:
		score = neutralScore + scoreSpread*float64(positive)/float64(total)
	case models.SentimentNegative:
		score = neutralScore - scoreSpread*float64(negative)/float64(total)
	}
	return math.Max(minScore, math.Min(maxScore, score))
}

func describe(sentimentType models.SentimentType, score float64) string {
	switch sentimentType {
	case models.SentimentPositive:
		switch {
		case score >= 0.8:
			return "매우 긍정적인 내용입니다."
		case score >= 0.6:
			return "긍정적인 내용입니다."
		default:
			return "약간 긍정적인 내용입니다."
		}
	case models.SentimentNegative:
		switch {
		case score <= 0.2:
			return "매우 부정적인 내용입니다."
		case score <= 0.4:
			return "부정적인 내용입니다."
		default:
			return "약간 부정적인 내용입니다."
		}
	default:
		return "중립적인 내용입니다."
	}
}
