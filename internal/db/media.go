package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/airwave/internal/models"
)

// MediaRepository handles database operations for the media catalog
type MediaRepository struct {
	db *DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts a new media item into the database
func (r *MediaRepository) Create(ctx context.Context, media *models.Media) error {
	result := r.db.WithContext(ctx).Create(media)
	if result.Error != nil {
		return fmt.Errorf("failed to create media: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a media item by its UUID
func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	var media models.Media
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&media)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &media, nil
}

// GetByIDs retrieves multiple media items in a single batched query.
// IDs with no matching row are simply absent from the result map.
func (r *MediaRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Media, error) {
	out := make(map[uuid.UUID]*models.Media, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	strIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id.String())
	}

	var mediaList []*models.Media
	result := r.db.WithContext(ctx).Where("id IN ?", strIDs).Find(&mediaList)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to batch get media: %w", MapGormError(result.Error))
	}

	for _, m := range mediaList {
		out[m.ID] = m
	}
	return out, nil
}

// List retrieves all media items with pagination
func (r *MediaRepository) List(ctx context.Context, limit, offset int) ([]*models.Media, error) {
	var mediaList []*models.Media
	query := r.db.WithContext(ctx).Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	result := query.Find(&mediaList)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list media: %w", MapGormError(result.Error))
	}
	return mediaList, nil
}

// Delete deletes a media item by its UUID
func (r *MediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Media{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete media: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
