package models

import (
	"fmt"
	"strings"
)

// SentimentType is the polarity of a piece of text
type SentimentType string

const (
	SentimentPositive SentimentType = "POSITIVE"
	SentimentNeutral  SentimentType = "NEUTRAL"
	SentimentNegative SentimentType = "NEGATIVE"
)

// ParseSentimentType accepts the three known values case-insensitively.
// An empty string means the model was unsure and maps to NEUTRAL.
func ParseSentimentType(s string) (SentimentType, error) {
	switch SentimentType(strings.ToUpper(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive, nil
	case SentimentNegative:
		return SentimentNegative, nil
	case SentimentNeutral, "":
		return SentimentNeutral, nil
	}
	return "", fmt.Errorf("unknown sentiment type %q", s)
}

// SentimentAnalysisResult is the outcome of analysing a single text.
// Values are built by the constructors below and never mutated afterwards.
type SentimentAnalysisResult struct {
	Success       bool          `json:"success"`
	SentimentType SentimentType `json:"sentiment_type,omitempty"`
	Score         float64       `json:"score"`
	Description   string        `json:"description,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// SuccessResult builds a successful analysis result
func SuccessResult(sentimentType SentimentType, score float64, description string) SentimentAnalysisResult {
	return SentimentAnalysisResult{
		Success:       true,
		SentimentType: sentimentType,
		Score:         score,
		Description:   description,
	}
}

// FailureResult builds a failed analysis result
func FailureResult(message string) SentimentAnalysisResult {
	return SentimentAnalysisResult{
		Success:      false,
		ErrorMessage: message,
	}
}
