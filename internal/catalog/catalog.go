// Package catalog resolves content references into display metadata for guide
// programs. The scheduling engine only needs batched lookup-by-ID; ingest and
// richer catalog features live outside this service.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/db"
	"github.com/stwalsh4118/airwave/internal/models"
)

// Lookup resolves media IDs into catalog entries in a single batch.
// IDs with no entry are absent from the result map.
type Lookup interface {
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Media, error)
}

// DBLookup is the database-backed catalog lookup
type DBLookup struct {
	media *db.MediaRepository
}

// NewDBLookup creates a catalog lookup over the media repository
func NewDBLookup(media *db.MediaRepository) *DBLookup {
	return &DBLookup{media: media}
}

// GetByIDs implements Lookup
func (l *DBLookup) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Media, error) {
	return l.media.GetByIDs(ctx, ids)
}
