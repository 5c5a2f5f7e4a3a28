package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Provider identifies the external source a news item was scraped from
type Provider string

const (
	ProviderMarketAux Provider = "MARKETAUX"
	ProviderFinnhub   Provider = "FINNHUB"
	ProviderRSS       Provider = "RSS"
)

// Content is a title/body pair in a single language
type Content struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewsItem represents a news article fetched from a provider
type NewsItem struct {
	ID                string     `json:"id"`
	Provider          Provider   `json:"provider"`
	PublishedTime     time.Time  `json:"published_time"`
	ScrapedTime       time.Time  `json:"scraped_time"`
	SourceURL         string     `json:"source_url"`
	Original          Content    `json:"original_content"`
	Translated        *Content   `json:"translated_content,omitempty"`
	Symbols           []string   `json:"symbols,omitempty"`            // ticker hints reported by the provider
	ProviderSentiment *float64   `json:"provider_sentiment,omitempty"` // provider's own score, if any
	Enrichment        Enrichment `json:"enrichment"`
}

// Text returns the original title and body joined for analysis
func (n NewsItem) Text() string {
	return strings.TrimSpace(n.Original.Title + " " + n.Original.Body)
}

// OverviewSource records which engine produced an overview
type OverviewSource string

const (
	OverviewSourceAI    OverviewSource = "AI"
	OverviewSourceLocal OverviewSource = "LOCAL"
)

// AiOverview is the enrichment attached to a news item
type AiOverview struct {
	Summary        string         `json:"summary"`
	SentimentType  SentimentType  `json:"sentiment_type"`
	SentimentScore float64        `json:"sentiment_score"`
	Categories     []Category     `json:"categories"`
	Source         OverviewSource `json:"source"`
}

// EnrichmentState is the tag of the Enrichment variant
type EnrichmentState string

const (
	StatePending  EnrichmentState = "PENDING"
	StateEnriched EnrichmentState = "ENRICHED"
)

// Enrichment is either Pending or Enriched(AiOverview). The zero value is Pending.
type Enrichment struct {
	overview *AiOverview
}

// Pending returns the not-yet-enriched state
func Pending() Enrichment {
	return Enrichment{}
}

// Enriched returns the enriched state carrying the given overview
func Enriched(overview AiOverview) Enrichment {
	return Enrichment{overview: &overview}
}

// State returns the variant tag
func (e Enrichment) State() EnrichmentState {
	if e.overview == nil {
		return StatePending
	}
	return StateEnriched
}

func (e Enrichment) IsPending() bool {
	return e.State() == StatePending
}

// Overview returns a copy of the overview and whether the item is enriched
func (e Enrichment) Overview() (AiOverview, bool) {
	if e.overview == nil {
		return AiOverview{}, false
	}
	return *e.overview, true
}

type enrichmentJSON struct {
	State    EnrichmentState `json:"state"`
	Overview *AiOverview     `json:"overview,omitempty"`
}

func (e Enrichment) MarshalJSON() ([]byte, error) {
	return json.Marshal(enrichmentJSON{State: e.State(), Overview: e.overview})
}

func (e *Enrichment) UnmarshalJSON(data []byte) error {
	var raw enrichmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.State {
	case StateEnriched:
		if raw.Overview == nil {
			return fmt.Errorf("enriched state without overview")
		}
		*e = Enriched(*raw.Overview)
	case StatePending, "":
		*e = Pending()
	default:
		return fmt.Errorf("unknown enrichment state %q", raw.State)
	}
	return nil
}

// DedupKey identifies the same news across requests. Derived, never stored.
type DedupKey string

// Page is one page of a store query
type Page struct {
	Items  []NewsItem `json:"items"`
	Number int        `json:"number"`
	Size   int        `json:"size"`
	Total  int        `json:"total"`
}

// HasNext reports whether another page follows this one
func (p Page) HasNext() bool {
	return (p.Number+1)*p.Size < p.Total
}
