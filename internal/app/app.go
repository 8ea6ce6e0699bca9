// Package app wires configuration, storage, services and HTTP routes into a Fiber application.
package app

import (
	"errors"
	"log"
	"time"

	"storycraft/internal/config"
	"storycraft/internal/database"
	"storycraft/internal/handlers"
	"storycraft/internal/middleware"
	"storycraft/internal/repositories"
	"storycraft/internal/services"
	"storycraft/pkg/gemini"
	"storycraft/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"gorm.io/gorm"
)

// App is the assembled service.
type App struct {
	Fiber       *fiber.App
	DB          *gorm.DB
	MQ          *rabbitmq.Client // nil when events are disabled
	AuthService *services.AuthService
}

// Options overrides collaborators that New would otherwise build from cfg.
type Options struct {
	// Generator replaces the Gemini client. Leave nil to derive it from cfg.Gemini.
	Generator services.TextGenerator
	// Publisher replaces the RabbitMQ client. Leave nil to derive it from cfg.RabbitMQURL.
	Publisher services.EventPublisher
}

// New opens the database, connects to optional collaborators and builds the routes.
func New(cfg *config.Config, opts Options) (*App, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{DB: db}

	publisher := opts.Publisher
	if publisher == nil && cfg.EventsEnabled() {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			// Events are best effort; the API keeps working without a broker.
			log.Printf("Warning: story events disabled: %v", err)
		} else {
			a.MQ = mqClient
			publisher = mqClient
		}
	}

	generator := opts.Generator
	if generator == nil && cfg.Gemini.Configured() {
		generator = gemini.NewClient(gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			Model:      cfg.Gemini.Model,
			BaseURL:    cfg.Gemini.BaseURL,
			Timeout:    cfg.Gemini.Timeout,
			MaxRetries: cfg.Gemini.MaxRetries,
		})
	}

	userRepo := repositories.NewGORMUserRepository(db)
	storyRepo := repositories.NewGORMStoryRepository(db)

	authService, err := services.NewAuthService(userRepo, cfg.JWT)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.AuthService = authService
	storyService := services.NewStoryService(storyRepo, publisher)
	generationService := services.NewGenerationService(generator, publisher)

	authHandler := handlers.NewAuthHandler(authService)
	storyHandler := handlers.NewStoryHandler(storyService)
	generationHandler := handlers.NewGenerationHandler(storyService, generationService)

	app := fiber.New(fiber.Config{
		AppName:      "storycraft",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,OPTIONS",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Welcome to the Educational Platform API"})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		dbStatus := "connected"
		if err := database.Ping(db); err != nil {
			dbStatus = "unreachable"
		}
		eventsStatus := "disabled"
		if publisher != nil {
			eventsStatus = "enabled"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"time":      time.Now().Format(time.RFC3339),
			"database":  dbStatus,
			"events":    eventsStatus,
			"generator": generationService.Configured(),
		})
	})

	authHandler.RegisterRoutes(app)

	stories := app.Group("/stories_api", middleware.AuthRequired(authService))
	generationHandler.RegisterRoutes(stories)
	storyHandler.RegisterRoutes(stories)

	a.Fiber = app
	return a, nil
}

// Close releases the broker connection and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.MQ != nil {
		if err := a.MQ.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// errorHandler renders errors that escaped a handler, including Fiber's own 404/405.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else {
		log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{
		"message": message,
	})
}
