package models

// Story is a children's story authored by a single owner.
type Story struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Title   string `json:"title" gorm:"type:text;not null"`
	Content string `json:"content" gorm:"type:text;not null"`
	OwnerID uint   `json:"owner_id" gorm:"index;not null"`
}

// StoryPrompt carries the inputs for a title/draft suggestion.
type StoryPrompt struct {
	Topic    string `json:"topic" validate:"required,max=200"`
	HeroName string `json:"hero_name" validate:"required,max=100"`
	AgeGroup string `json:"age_group" validate:"required,max=50"`
}

// StorySuggestion is the generated title and draft for a StoryPrompt.
type StorySuggestion struct {
	SuggestedTitle string `json:"suggested_title"`
	SuggestedDraft string `json:"suggested_draft"`
}
