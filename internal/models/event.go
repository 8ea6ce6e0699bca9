package models

import "time"

// Routing keys for StoryEvent.
const (
	EventStoryCreated     = "story.created"
	EventStoryUpdated     = "story.updated"
	EventContentGenerated = "story.content.generated"
)

// StoryEvent is published to the event bus after a story changes or content is generated for it.
type StoryEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	StoryID    uint      `json:"story_id,omitempty"`
	OwnerID    uint      `json:"owner_id"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
