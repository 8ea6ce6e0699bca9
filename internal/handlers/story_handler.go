package handlers

import (
	"errors"
	"log"
	"strconv"

	"storycraft/internal/common"
	"storycraft/internal/middleware"
	"storycraft/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const defaultListLimit = 100

// StoryHandler handles HTTP requests for stories. All routes expect
// middleware.AuthRequired to have run.
type StoryHandler struct {
	service  *services.StoryService
	validate *validator.Validate
}

// NewStoryHandler creates a new StoryHandler.
func NewStoryHandler(service *services.StoryService) *StoryHandler {
	return &StoryHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes registers the story routes on an authenticated router.
func (h *StoryHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/", h.HandleCreateStory)
	router.Get("/", h.HandleListStories)
	router.Get("/:id", h.HandleGetStory)
	router.Put("/:id", h.HandleUpdateStory)
}

// StoryRequest is the body of create and update requests. Both fields must
// be present but may be empty.
type StoryRequest struct {
	Title   *string `json:"title" validate:"required"`
	Content *string `json:"content" validate:"required"`
}

type listStoriesQuery struct {
	Skip  int `query:"skip" validate:"gte=0"`
	Limit int `query:"limit" validate:"gte=0"`
}

// HandleCreateStory creates a story owned by the current user.
func (h *StoryHandler) HandleCreateStory(c *fiber.Ctx) error {
	var req StoryRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	user := middleware.CurrentUser(c)
	story, err := h.service.CreateStory(c.UserContext(), user.ID, *req.Title, *req.Content)
	if err != nil {
		log.Printf("Error creating story for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not create story",
		})
	}
	return c.JSON(story)
}

// HandleListStories lists the current user's stories with skip/limit pagination.
func (h *StoryHandler) HandleListStories(c *fiber.Ctx) error {
	q := listStoriesQuery{Skip: 0, Limit: defaultListLimit}
	if err := c.QueryParser(&q); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Invalid query parameters",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(q); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Invalid query parameters",
			"errors":  validationErrors(err),
		})
	}

	user := middleware.CurrentUser(c)
	stories, err := h.service.ListStories(c.UserContext(), user.ID, q.Skip, q.Limit)
	if err != nil {
		log.Printf("Error listing stories for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve stories",
		})
	}
	return c.JSON(stories)
}

// HandleGetStory returns one of the current user's stories.
func (h *StoryHandler) HandleGetStory(c *fiber.Ctx) error {
	id, ok, err := storyIDParam(c)
	if !ok {
		return err
	}

	user := middleware.CurrentUser(c)
	story, err := h.service.GetStory(c.UserContext(), id, user.ID)
	if err != nil {
		return storyLookupError(c, id, err)
	}
	return c.JSON(story)
}

// HandleUpdateStory overwrites title and content of one of the current user's stories.
func (h *StoryHandler) HandleUpdateStory(c *fiber.Ctx) error {
	id, ok, err := storyIDParam(c)
	if !ok {
		return err
	}

	var req StoryRequest
	if ok, err := parseAndValidate(c, h.validate, &req); !ok {
		return err
	}

	user := middleware.CurrentUser(c)
	story, err := h.service.UpdateStory(c.UserContext(), id, user.ID, *req.Title, *req.Content)
	if err != nil {
		return storyLookupError(c, id, err)
	}
	return c.JSON(story)
}

// storyIDParam parses the :id route parameter. On failure it writes a 422 response.
func storyIDParam(c *fiber.Ctx) (uint, bool, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, false, c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Story id must be a positive integer",
		})
	}
	return uint(id), true, nil
}

// storyLookupError renders a failed owned-story lookup. Stories owned by
// someone else come back as common.ErrNotFound and get the same 404.
func storyLookupError(c *fiber.Ctx, id uint, err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Story not found",
		})
	}
	log.Printf("Error loading story %d: %v", id, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Could not retrieve story",
	})
}
