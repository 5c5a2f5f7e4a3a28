package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/models"
)

const (
	newsPrefix    = "news/"
	pendingPrefix = "pending/"

	// markerTimeLayout sorts lexically in time order
	markerTimeLayout = "20060102T150405.000000000Z"
)

// BlobNewsStore stores one JSON document per item under news/<id>.json and an empty
// marker under pending/<scraped time>_<id> while the item waits for enrichment
type BlobNewsStore struct {
	blobs BlobStorage
	mu    sync.Mutex
	newID func() string
}

var _ NewsStore = (*BlobNewsStore)(nil)

func NewBlobNewsStore(blobs BlobStorage) *BlobNewsStore {
	return &BlobNewsStore{
		blobs: blobs,
		newID: uuid.NewString,
	}
}

func newsKey(id string) string {
	return newsPrefix + id + ".json"
}

func pendingKey(item models.NewsItem) string {
	return pendingPrefix + item.ScrapedTime.UTC().Format(markerTimeLayout) + "_" + item.ID
}

func markerID(marker string) (string, bool) {
	_, id, ok := strings.Cut(strings.TrimPrefix(marker, pendingPrefix), "_")
	return id, ok && id != ""
}

// SaveAll writes every item and returns them with their IDs set
func (s *BlobNewsStore) SaveAll(ctx context.Context, items []models.NewsItem) ([]models.NewsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			item.ID = s.newID()
		}
		if strings.ContainsAny(item.ID, "/\\") {
			return saved, fmt.Errorf("invalid news id %q", item.ID)
		}

		data, err := json.Marshal(item)
		if err != nil {
			return saved, fmt.Errorf("failed to marshal news %s: %w", item.ID, err)
		}
		if err := s.blobs.Store(ctx, newsKey(item.ID), data); err != nil {
			return saved, err
		}

		if item.Enrichment.IsPending() {
			err = s.blobs.Store(ctx, pendingKey(item), []byte{})
		} else {
			err = s.blobs.Delete(ctx, pendingKey(item))
		}
		if err != nil {
			return saved, err
		}

		saved = append(saved, item)
	}

	logrus.Debugf("Saved %d news items", len(saved))
	return saved, nil
}

// FindPendingEnrichment orders pending items by scraped time, then ID. Marker names carry
// that order, so a page costs one List plus a read per returned item. Stale markers met
// on the way are removed and not counted.
func (s *BlobNewsStore) FindPendingEnrichment(ctx context.Context, pageSize, pageNumber int) (models.Page, error) {
	if pageSize <= 0 {
		return models.Page{}, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	if pageNumber < 0 {
		return models.Page{}, fmt.Errorf("page number must not be negative, got %d", pageNumber)
	}

	markers, err := s.blobs.List(ctx, pendingPrefix)
	if err != nil {
		return models.Page{}, err
	}
	sort.Strings(markers)

	page := models.Page{Number: pageNumber, Size: pageSize, Total: len(markers), Items: []models.NewsItem{}}
	start := min(pageNumber*pageSize, len(markers))
	for _, marker := range markers[start:] {
		if len(page.Items) == pageSize {
			break
		}
		item, err := s.resolveMarker(ctx, marker)
		if err != nil {
			return models.Page{}, err
		}
		if item == nil {
			page.Total--
			continue
		}
		page.Items = append(page.Items, *item)
	}
	return page, nil
}

// resolveMarker returns the pending item behind a marker, or nil after removing a marker
// whose item is gone, enriched or rescheduled under another scraped time
func (s *BlobNewsStore) resolveMarker(ctx context.Context, marker string) (*models.NewsItem, error) {
	if item, err := s.markedItem(ctx, marker); item != nil || err != nil {
		return item, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// SaveAll may have rewritten the item since the read above
	if item, err := s.markedItem(ctx, marker); item != nil || err != nil {
		return item, err
	}

	logrus.Warnf("Removing stale pending marker %s", marker)
	if err := s.blobs.Delete(ctx, marker); err != nil {
		logrus.Warnf("Failed to remove stale pending marker %s: %v", marker, err)
	}
	return nil, nil
}

func (s *BlobNewsStore) markedItem(ctx context.Context, marker string) (*models.NewsItem, error) {
	id, ok := markerID(marker)
	if !ok {
		return nil, nil
	}
	item, err := s.FindByID(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	if !item.Enrichment.IsPending() || pendingKey(*item) != marker {
		return nil, nil
	}
	return item, nil
}

func (s *BlobNewsStore) FindByID(ctx context.Context, id string) (*models.NewsItem, error) {
	data, err := s.blobs.Retrieve(ctx, newsKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var item models.NewsItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal news %s: %w", id, err)
	}
	return &item, nil
}
