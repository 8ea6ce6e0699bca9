package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"storycraft/internal/models"
	"storycraft/pkg/gemini"
)

// Placeholder content returned when no text generator is configured.
const (
	PlaceholderTitle            = "AI Title (Gemini not configured)"
	PlaceholderDraft            = "This is a placeholder draft because the Gemini API is not configured. Please set your API key."
	PlaceholderImageURL         = "https://via.placeholder.com/600x400.png?text=Generated+Story+Image"
	PlaceholderColoringImageURL = "https://via.placeholder.com/600x400.png?text=Coloring+Page+Image"
	placeholderActivityFormat   = "Placeholder %s activity: this text stands in for a generated activity because the Gemini API is not configured. Please set your API key."
)

// GenerationCause classifies why content generation failed.
type GenerationCause string

const (
	CauseProviderUnconfigured GenerationCause = "provider_unconfigured"
	CauseProviderError        GenerationCause = "provider_error"
	CauseMalformedResponse    GenerationCause = "malformed_response"
)

// GenerationError is returned by GenerationService when the provider fails.
type GenerationError struct {
	Op    string
	Cause GenerationCause
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Cause, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// TextGenerator turns a prompt into generated text. *gemini.Client satisfies it.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GenerationService produces titles, drafts, images and activities for stories.
type GenerationService struct {
	generator TextGenerator
	publisher EventPublisher
}

// NewGenerationService creates a new GenerationService. A nil generator makes
// every operation return placeholder content; publisher may be nil.
func NewGenerationService(generator TextGenerator, publisher EventPublisher) *GenerationService {
	if generator == nil {
		log.Println("Text generator not configured. AI suggestions will return placeholders.")
	}
	return &GenerationService{
		generator: generator,
		publisher: publisher,
	}
}

// Configured reports whether a real text generator is wired.
func (s *GenerationService) Configured() bool {
	return s.generator != nil
}

// SuggestStory generates a title and a short draft from a prompt.
func (s *GenerationService) SuggestStory(ctx context.Context, prompt models.StoryPrompt) (*models.StorySuggestion, error) {
	if s.generator == nil {
		return &models.StorySuggestion{
			SuggestedTitle: PlaceholderTitle,
			SuggestedDraft: PlaceholderDraft,
		}, nil
	}

	titlePrompt := fmt.Sprintf(
		"Suggest a compelling and short story title for a children's story aimed at %s year olds. "+
			"The story is about: %s, and the main character is named %s.",
		prompt.AgeGroup, prompt.Topic, prompt.HeroName)
	title, err := s.generate(ctx, "suggest title", titlePrompt)
	if err != nil {
		return nil, err
	}

	draftPrompt := fmt.Sprintf(
		"Write a short children's story (approx. 200-300 words) suitable for %s year olds. "+
			"The story's main topic is '%s' and the hero is named '%s'. "+
			"The story should be engaging and simple to understand.",
		prompt.AgeGroup, prompt.Topic, prompt.HeroName)
	draft, err := s.generate(ctx, "suggest draft", draftPrompt)
	if err != nil {
		return nil, err
	}

	return &models.StorySuggestion{
		SuggestedTitle: title,
		SuggestedDraft: draft,
	}, nil
}

// GenerateImage returns an illustration URL for story.
func (s *GenerationService) GenerateImage(ctx context.Context, story *models.Story) (string, error) {
	publishStoryEvent(s.publisher, models.EventContentGenerated, story.ID, story.OwnerID, "image")
	return PlaceholderImageURL, nil
}

// GenerateColoringPage returns a line-art coloring page URL for story.
func (s *GenerationService) GenerateColoringPage(ctx context.Context, story *models.Story) (string, error) {
	publishStoryEvent(s.publisher, models.EventContentGenerated, story.ID, story.OwnerID, "coloring_page")
	return PlaceholderColoringImageURL, nil
}

// GenerateActivity generates a pedagogical activity of activityType (quiz, discussion questions, ...) for story.
func (s *GenerationService) GenerateActivity(ctx context.Context, story *models.Story, activityType string) (string, error) {
	activityType = strings.TrimSpace(activityType)

	var text string
	if s.generator == nil {
		text = fmt.Sprintf(placeholderActivityFormat, activityType)
	} else {
		prompt := fmt.Sprintf(
			"Create a %s activity for young children based on the following story. "+
				"Keep the instructions simple, age-appropriate and directly tied to the story.\n\nStory:\n%s",
			activityType, story.Content)
		generated, err := s.generate(ctx, "generate activity", prompt)
		if err != nil {
			return "", err
		}
		text = generated
	}

	publishStoryEvent(s.publisher, models.EventContentGenerated, story.ID, story.OwnerID, "activity:"+activityType)
	return text, nil
}

func (s *GenerationService) generate(ctx context.Context, op, prompt string) (string, error) {
	text, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		genErr := &GenerationError{Op: op, Cause: classifyGenerationError(err), Err: err}
		log.Printf("Error generating content: %v", genErr)
		return "", genErr
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &GenerationError{Op: op, Cause: CauseMalformedResponse, Err: errors.New("empty text")}
	}
	return text, nil
}

func classifyGenerationError(err error) GenerationCause {
	switch {
	case errors.Is(err, gemini.ErrNotConfigured):
		return CauseProviderUnconfigured
	case errors.Is(err, gemini.ErrMalformedResponse):
		return CauseMalformedResponse
	default:
		return CauseProviderError
	}
}
