package services

import (
	"context"
	"fmt"

	"storycraft/internal/models"
	"storycraft/internal/repositories"
)

// StoryService handles business logic related to stories.
type StoryService struct {
	repo      repositories.StoryRepository
	publisher EventPublisher
}

// NewStoryService creates a new StoryService. publisher may be nil.
func NewStoryService(repo repositories.StoryRepository, publisher EventPublisher) *StoryService {
	return &StoryService{
		repo:      repo,
		publisher: publisher,
	}
}

// CreateStory stores a new story owned by ownerID.
func (s *StoryService) CreateStory(ctx context.Context, ownerID uint, title, content string) (*models.Story, error) {
	story := &models.Story{
		Title:   title,
		Content: content,
		OwnerID: ownerID,
	}
	if err := s.repo.Create(ctx, story); err != nil {
		return nil, err
	}

	publishStoryEvent(s.publisher, models.EventStoryCreated, story.ID, ownerID, story.Title)
	return story, nil
}

// ListStories returns a page of ownerID's stories.
func (s *StoryService) ListStories(ctx context.Context, ownerID uint, skip, limit int) ([]models.Story, error) {
	if skip < 0 || limit < 0 {
		return nil, fmt.Errorf("skip and limit must not be negative (skip=%d, limit=%d)", skip, limit)
	}
	if limit == 0 {
		return []models.Story{}, nil
	}
	return s.repo.ListByOwner(ctx, ownerID, skip, limit)
}

// GetStory returns the story only if ownerID owns it; otherwise common.ErrNotFound.
func (s *StoryService) GetStory(ctx context.Context, id, ownerID uint) (*models.Story, error) {
	return s.repo.GetOwned(ctx, id, ownerID)
}

// UpdateStory overwrites title and content of a story owned by ownerID.
func (s *StoryService) UpdateStory(ctx context.Context, id, ownerID uint, title, content string) (*models.Story, error) {
	story, err := s.repo.UpdateOwned(ctx, id, ownerID, title, content)
	if err != nil {
		return nil, err
	}

	publishStoryEvent(s.publisher, models.EventStoryUpdated, story.ID, ownerID, story.Title)
	return story, nil
}
