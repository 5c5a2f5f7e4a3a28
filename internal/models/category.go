package models

import (
	"fmt"
	"strings"
)

// Category is a ticker tag from a closed vocabulary
type Category string

// CategoryNone marks an item that matches no ticker
const CategoryNone Category = "NONE"

var knownCategories = []Category{
	"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "AVGO", "AMD", "INTC",
	"NFLX", "ORCL", "CRM", "ADBE", "QCOM", "TSM", "ASML", "JPM", "BAC", "GS",
	"V", "MA", "BRK.B", "XOM", "CVX", "WMT", "KO", "PFE", "LLY", "UNH",
	"SPY", "QQQ", "BTC", "ETH",
	CategoryNone,
}

var categorySet = func() map[Category]struct{} {
	set := make(map[Category]struct{}, len(knownCategories))
	for _, c := range knownCategories {
		set[c] = struct{}{}
	}
	return set
}()

// KnownCategories returns the vocabulary in declaration order
func KnownCategories() []Category {
	out := make([]Category, len(knownCategories))
	copy(out, knownCategories)
	return out
}

// ParseCategory returns the vocabulary entry for s or an error
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := categorySet[c]; !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// NormalizeCategories removes duplicates and returns [NONE] for an empty set.
// NONE is dropped when any real ticker is present.
func NormalizeCategories(categories []Category) []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, c := range categories {
		if c == CategoryNone || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return []Category{CategoryNone}
	}
	return out
}

// CategoriesFromSymbols keeps the provider symbols that are part of the vocabulary
func CategoriesFromSymbols(symbols []string) []Category {
	var out []Category
	for _, s := range symbols {
		if c, err := ParseCategory(s); err == nil {
			out = append(out, c)
		}
	}
	return NormalizeCategories(out)
}
