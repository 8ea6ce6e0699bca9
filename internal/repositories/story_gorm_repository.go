package repositories

import (
	"context"
	"errors"
	"fmt"

	"storycraft/internal/common"
	"storycraft/internal/models"

	"gorm.io/gorm"
)

// GORMStoryRepository is a GORM implementation of StoryRepository.
type GORMStoryRepository struct {
	db *gorm.DB
}

// NewGORMStoryRepository creates a new instance of GORMStoryRepository.
func NewGORMStoryRepository(db *gorm.DB) *GORMStoryRepository {
	return &GORMStoryRepository{
		db: db,
	}
}

// Create inserts a new story; the database assigns its ID.
func (r *GORMStoryRepository) Create(ctx context.Context, story *models.Story) error {
	if err := r.db.WithContext(ctx).Create(story).Error; err != nil {
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// ListByOwner returns at most limit stories of ownerID in insertion order, skipping the first skip.
func (r *GORMStoryRepository) ListByOwner(ctx context.Context, ownerID uint, skip, limit int) ([]models.Story, error) {
	stories := make([]models.Story, 0)
	if limit <= 0 {
		return stories, nil
	}
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Offset(skip).
		Limit(limit).
		Find(&stories).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stories for owner %d: %w", ownerID, err)
	}
	return stories, nil
}

// GetOwned retrieves a story by ID only if it belongs to ownerID.
func (r *GORMStoryRepository) GetOwned(ctx context.Context, id, ownerID uint) (*models.Story, error) {
	return getOwned(r.db.WithContext(ctx), id, ownerID)
}

// UpdateOwned overwrites title and content of a story owned by ownerID.
func (r *GORMStoryRepository) UpdateOwned(ctx context.Context, id, ownerID uint, title, content string) (*models.Story, error) {
	var updated *models.Story
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		story, err := getOwned(tx, id, ownerID)
		if err != nil {
			return err
		}
		story.Title = title
		story.Content = content
		if err := tx.Save(story).Error; err != nil {
			return fmt.Errorf("failed to update story %d: %w", id, err)
		}
		updated = story
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func getOwned(db *gorm.DB, id, ownerID uint) (*models.Story, error) {
	var story models.Story
	if err := db.First(&story, "id = ? AND owner_id = ?", id, ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("story with ID %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get story by ID %d: %w", id, err)
	}
	return &story, nil
}
