package normalizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/stocknews/newsbot/internal/models"
)

// ErrMalformedItem is wrapped by every NormalizationError
var ErrMalformedItem = errors.New("malformed news item")

// NormalizationError reports a required field missing from one item of a batch
type NormalizationError struct {
	Index  int
	ItemID string
	Field  string
}

func (e *NormalizationError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("item %d (%s): missing required field %s", e.Index, e.ItemID, e.Field)
	}
	return fmt.Sprintf("item %d: missing required field %s", e.Index, e.Field)
}

func (e *NormalizationError) Unwrap() error {
	return ErrMalformedItem
}

// maxPasses bounds the fixed-point loop for pathologically nested entity encodings
const maxPasses = 8

// blockElements get a trailing space so adjacent blocks don't glue their words together
const blockElements = "p, div, br, li, tr, td, th, h1, h2, h3, h4, h5, h6, blockquote, section, article"

// Normalizer turns scraped text into canonical plain text. It does no I/O.
type Normalizer struct{}

func New() *Normalizer {
	return &Normalizer{}
}

// CleanText strips markup and script/style blocks, decodes entities and collapses
// whitespace. The result is a fixed point: CleanText(CleanText(s)) == CleanText(s).
func (n *Normalizer) CleanText(s string) string {
	current := collapseWhitespace(s)
	for i := 0; i < maxPasses; i++ {
		next := stripMarkup(current)
		if next == current {
			break
		}
		current = next
	}
	return current
}

func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseWhitespace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return collapseWhitespace(s)
	}

	doc.Find("script, style, noscript, template").Remove()
	doc.Find(blockElements).Each(func(_ int, sel *goquery.Selection) {
		sel.AfterHtml(" ")
	})

	return collapseWhitespace(doc.Find("body").Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Normalize cleans a single item and validates its required fields
func (n *Normalizer) Normalize(item models.NewsItem) (models.NewsItem, error) {
	out := item
	out.Original = models.Content{
		Title: n.CleanText(item.Original.Title),
		Body:  n.CleanText(item.Original.Body),
	}
	if item.Translated != nil {
		out.Translated = &models.Content{
			Title: n.CleanText(item.Translated.Title),
			Body:  n.CleanText(item.Translated.Body),
		}
	}
	out.SourceURL = strings.TrimSpace(item.SourceURL)

	if len(item.Symbols) > 0 {
		out.Symbols = make([]string, 0, len(item.Symbols))
		for _, s := range item.Symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				out.Symbols = append(out.Symbols, s)
			}
		}
	}

	switch {
	case out.Provider == "":
		return models.NewsItem{}, &NormalizationError{ItemID: item.ID, Field: "provider"}
	case out.Original.Title == "":
		return models.NewsItem{}, &NormalizationError{ItemID: item.ID, Field: "original_content.title"}
	case out.SourceURL == "":
		return models.NewsItem{}, &NormalizationError{ItemID: item.ID, Field: "source_url"}
	}

	return out, nil
}

// NormalizeAndDeduplicate normalizes every item and keeps the first occurrence of each
// DedupKey in input order. Malformed items are skipped and reported in the error slice.
func (n *Normalizer) NormalizeAndDeduplicate(items []models.NewsItem) ([]models.NewsItem, []error) {
	seen := make(map[models.DedupKey]bool, len(items))
	unique := make([]models.NewsItem, 0, len(items))
	var errs []error

	for i, item := range items {
		normalized, err := n.Normalize(item)
		if err != nil {
			var nerr *NormalizationError
			if errors.As(err, &nerr) {
				nerr.Index = i
			}
			errs = append(errs, err)
			continue
		}

		key := Key(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, normalized)
	}

	return unique, errs
}
