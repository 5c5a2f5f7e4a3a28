package storage

import (
	"context"
	"errors"

	"github.com/stocknews/newsbot/internal/models"
)

// ErrNotFound is returned by BlobStorage.Retrieve for a missing object
var ErrNotFound = errors.New("object not found")

// BlobStorage is a flat object store keyed by name
type BlobStorage interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// NewsStore persists news items between the scrape and enrichment jobs
type NewsStore interface {
	// SaveAll upserts items by ID, assigning an ID to items that have none
	SaveAll(ctx context.Context, items []models.NewsItem) ([]models.NewsItem, error)
	// FindPendingEnrichment pages through items that have no overview yet
	FindPendingEnrichment(ctx context.Context, pageSize, pageNumber int) (models.Page, error)
	// FindByID returns nil without error when the item does not exist
	FindByID(ctx context.Context, id string) (*models.NewsItem, error)
}
