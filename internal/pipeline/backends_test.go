package pipeline

import (
	"context"
	"testing"

	"github.com/stocknews/newsbot/internal/cache"
	"github.com/stocknews/newsbot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackends_Memory(t *testing.T) {
	b, err := OpenBackends(context.Background(), &config.Config{StorageBackend: "memory"})
	require.NoError(t, err)
	defer b.Close()

	assert.NotNil(t, b.Store)
	assert.IsType(t, &cache.MemorySeenCache{}, b.Seen)
}

func TestOpenBackends_File(t *testing.T) {
	b, err := OpenBackends(context.Background(), &config.Config{StorageBackend: "file", StorageDir: t.TempDir()})
	require.NoError(t, err)
	defer b.Close()

	page, err := b.Store.FindPendingEnrichment(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestOpenBackends_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{name: "Unknown backend", cfg: &config.Config{StorageBackend: "tape"}},
		{name: "File without directory", cfg: &config.Config{StorageBackend: "file"}},
		{name: "Azure without account", cfg: &config.Config{StorageBackend: "azure", StorageContainer: "news"}},
		{name: "Bad Redis URL", cfg: &config.Config{StorageBackend: "memory", RedisURL: "not-a-url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenBackends(context.Background(), tt.cfg)
			assert.Error(t, err)
		})
	}
}
