package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"storycraft/internal/app"
	"storycraft/internal/config"
	"storycraft/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.JWT.Secret == config.DefaultSecretKey {
		log.Println("Warning: SECRET_KEY is not set, using the development default")
	}

	// --- Application ---
	a, err := app.New(cfg, app.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("Error releasing resources: %v", err)
		}
	}()

	// --- Story event consumer ---
	if a.MQ != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for story events...")
			if err := a.MQ.ConsumeStoryEvents(rabbitmq.LogStoryEvent); err != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", err)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := a.Fiber.Listen(cfg.AppPort); err != nil {
			log.Printf("Server stopped: %v", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := a.Fiber.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
