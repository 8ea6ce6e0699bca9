package repositories

import (
	"context"

	"storycraft/internal/models"
)

// StoryRepository defines the interface for story data access.
//
// Every lookup takes the owner's ID and folds it into the query, so a story
// owned by someone else is reported as common.ErrNotFound, exactly like a
// missing one.
type StoryRepository interface {
	Create(ctx context.Context, story *models.Story) error
	ListByOwner(ctx context.Context, ownerID uint, skip, limit int) ([]models.Story, error)
	GetOwned(ctx context.Context, id, ownerID uint) (*models.Story, error)
	UpdateOwned(ctx context.Context, id, ownerID uint, title, content string) (*models.Story, error)
}
