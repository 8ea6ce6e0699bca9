package services

import (
	"log"
	"time"

	"storycraft/internal/models"

	"github.com/google/uuid"
)

// EventPublisher publishes a JSON-encodable payload under a routing key.
// *rabbitmq.Client satisfies it.
type EventPublisher interface {
	Publish(routingKey string, payload interface{}) error
}

// publishStoryEvent is best effort: failures are logged and never reach the caller.
func publishStoryEvent(publisher EventPublisher, eventType string, storyID, ownerID uint, detail string) {
	if publisher == nil {
		log.Printf("Event publisher is not configured. Skipping %s event for story %d.", eventType, storyID)
		return
	}

	event := models.StoryEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		StoryID:    storyID,
		OwnerID:    ownerID,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
	if err := publisher.Publish(eventType, event); err != nil {
		log.Printf("Warning: Failed to publish %s event for story %d: %v", eventType, storyID, err)
	}
}
