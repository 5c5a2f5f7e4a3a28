package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/models"
)

// Sink receives pipeline outcome events
type Sink interface {
	IncProcessed()
	IncSucceeded()
	IncFailed()
	IncSkipped()
	ObserveLatency(d time.Duration)
	ObserveSentiment(sentimentType models.SentimentType)
	RecordProviderError(provider models.Provider, err error)
}

// Collector is an in-process Sink. Counters are atomic, maps are guarded by mu.
type Collector struct {
	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	latencyNs atomic.Int64

	mu             sync.RWMutex
	sentiment      map[models.SentimentType]int64
	providerErrors map[models.Provider]int64
	lastErrors     map[models.Provider]string
	startedAt      time.Time
}

// Snapshot is a read-only copy of the collector state
type Snapshot struct {
	Processed        int64                          `json:"processed"`
	Succeeded        int64                          `json:"succeeded"`
	Failed           int64                          `json:"failed"`
	Skipped          int64                          `json:"skipped"`
	TotalLatency     string                         `json:"total_latency"`
	TotalLatencyNs   int64                          `json:"total_latency_ns"`
	SentimentCounts  map[models.SentimentType]int64 `json:"sentiment_breakdown"`
	ProviderErrors   map[models.Provider]int64      `json:"provider_errors"`
	LastProviderErrs map[models.Provider]string     `json:"last_provider_errors,omitempty"`
	Since            time.Time                      `json:"since"`
}

// Ensure Collector implements Sink
var _ Sink = (*Collector)(nil)

// New creates an empty collector
func New() *Collector {
	c := &Collector{}
	c.Reset()
	return c
}

func (c *Collector) IncProcessed() { c.processed.Add(1) }
func (c *Collector) IncSucceeded() { c.succeeded.Add(1) }
func (c *Collector) IncFailed()    { c.failed.Add(1) }
func (c *Collector) IncSkipped()   { c.skipped.Add(1) }

func (c *Collector) ObserveLatency(d time.Duration) {
	c.latencyNs.Add(int64(d))
}

func (c *Collector) ObserveSentiment(sentimentType models.SentimentType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentiment[sentimentType]++
}

// RecordProviderError counts and logs a contained provider failure
func (c *Collector) RecordProviderError(provider models.Provider, err error) {
	logrus.WithField("provider", provider).Errorf("Provider fetch failed: %v", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.providerErrors[provider]++
	if err != nil {
		c.lastErrors[provider] = err.Error()
	}
}

// Reset zeroes every counter. Call between independent runs.
func (c *Collector) Reset() {
	c.processed.Store(0)
	c.succeeded.Store(0)
	c.failed.Store(0)
	c.skipped.Store(0)
	c.latencyNs.Store(0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentiment = make(map[models.SentimentType]int64)
	c.providerErrors = make(map[models.Provider]int64)
	c.lastErrors = make(map[models.Provider]string)
	c.startedAt = time.Now()
}

// Snapshot returns a copy of the current state
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	latency := time.Duration(c.latencyNs.Load())
	s := Snapshot{
		Processed:        c.processed.Load(),
		Succeeded:        c.succeeded.Load(),
		Failed:           c.failed.Load(),
		Skipped:          c.skipped.Load(),
		TotalLatency:     latency.String(),
		TotalLatencyNs:   int64(latency),
		SentimentCounts:  make(map[models.SentimentType]int64, len(c.sentiment)),
		ProviderErrors:   make(map[models.Provider]int64, len(c.providerErrors)),
		LastProviderErrs: make(map[models.Provider]string, len(c.lastErrors)),
		Since:            c.startedAt,
	}
	for k, v := range c.sentiment {
		s.SentimentCounts[k] = v
	}
	for k, v := range c.providerErrors {
		s.ProviderErrors[k] = v
	}
	for k, v := range c.lastErrors {
		s.LastProviderErrs[k] = v
	}
	return s
}
