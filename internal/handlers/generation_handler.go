package handlers

import (
	"errors"
	"log"

	"storycraft/internal/middleware"
	"storycraft/internal/models"
	"storycraft/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// GenerationHandler exposes the generative content operations.
type GenerationHandler struct {
	stories    *services.StoryService
	generation *services.GenerationService
	validate   *validator.Validate
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(stories *services.StoryService, generation *services.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		stories:    stories,
		generation: generation,
		validate:   newValidator(),
	}
}

// RegisterRoutes registers the generation routes on an authenticated router.
func (h *GenerationHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/suggest-story", h.HandleSuggestStory)
	router.Post("/:id/generate-image", h.HandleGenerateImage)
	router.Post("/:id/generate-coloring-page", h.HandleGenerateColoringPage)
	router.Post("/:id/generate-activity", h.HandleGenerateActivity)
}

// ActivityRequest is the body of a generate-activity request.
type ActivityRequest struct {
	ActivityType string `json:"activity_type" validate:"required,max=50"`
}

// HandleSuggestStory suggests a title and a draft for a topic, hero and age group.
func (h *GenerationHandler) HandleSuggestStory(c *fiber.Ctx) error {
	var req models.StoryPrompt
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	suggestion, err := h.generation.SuggestStory(c.UserContext(), req)
	if err != nil {
		return generationError(c, "Failed to get story suggestions", err)
	}
	return c.JSON(suggestion)
}

// HandleGenerateImage returns an illustration URL for one of the current user's stories.
func (h *GenerationHandler) HandleGenerateImage(c *fiber.Ctx) error {
	story, ok, err := h.ownedStory(c)
	if !ok {
		return err
	}

	imageURL, err := h.generation.GenerateImage(c.UserContext(), story)
	if err != nil {
		return generationError(c, "Failed to generate image", err)
	}
	return c.JSON(fiber.Map{"image_url": imageURL})
}

// HandleGenerateColoringPage returns a coloring page URL for one of the current user's stories.
func (h *GenerationHandler) HandleGenerateColoringPage(c *fiber.Ctx) error {
	story, ok, err := h.ownedStory(c)
	if !ok {
		return err
	}

	coloringURL, err := h.generation.GenerateColoringPage(c.UserContext(), story)
	if err != nil {
		return generationError(c, "Failed to generate coloring page", err)
	}
	return c.JSON(fiber.Map{"coloring_image_url": coloringURL})
}

// HandleGenerateActivity generates a pedagogical activity for one of the current user's stories.
func (h *GenerationHandler) HandleGenerateActivity(c *fiber.Ctx) error {
	story, ok, err := h.ownedStory(c)
	if !ok {
		return err
	}

	var req ActivityRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	text, err := h.generation.GenerateActivity(c.UserContext(), story, req.ActivityType)
	if err != nil {
		return generationError(c, "Failed to generate pedagogical activity", err)
	}
	return c.JSON(fiber.Map{"activity_text": text})
}

func (h *GenerationHandler) ownedStory(c *fiber.Ctx) (*models.Story, bool, error) {
	id, ok, err := storyIDParam(c)
	if !ok {
		return nil, false, err
	}

	user := middleware.CurrentUser(c)
	story, err := h.stories.GetStory(c.UserContext(), id, user.ID)
	if err != nil {
		return nil, false, storyLookupError(c, id, err)
	}
	return story, true, nil
}

func generationError(c *fiber.Ctx, message string, err error) error {
	log.Printf("%s: %v", message, err)

	var genErr *services.GenerationError
	if !errors.As(err, &genErr) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": message,
		})
	}

	status := fiber.StatusBadGateway
	if genErr.Cause == services.CauseProviderUnconfigured {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"cause":   genErr.Cause,
		"error":   genErr.Err.Error(),
	})
}
