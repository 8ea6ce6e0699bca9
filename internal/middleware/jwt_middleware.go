package middleware

import (
	"errors"
	"log"
	"strings"

	"storycraft/internal/common"
	"storycraft/internal/models"
	"storycraft/internal/services"

	"github.com/gofiber/fiber/v2"
)

const currentUserKey = "current_user"

// AuthRequired is a Fiber middleware that resolves the bearer token to an
// active user and stores it in the request locals. Any failure ends the request.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Not authenticated")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "") {
			return unauthorized(c, "Authorization header format must be 'Bearer <token>'")
		}

		user, err := authService.Authorize(c.UserContext(), strings.TrimSpace(parts[1]))
		switch {
		case err == nil:
		case errors.Is(err, common.ErrInactiveUser):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Inactive user",
			})
		case errors.Is(err, common.ErrInvalidCredentials):
			log.Printf("JWT validation failed: %v", err)
			return unauthorized(c, "Could not validate credentials")
		default:
			log.Printf("Authorization error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Could not validate credentials",
			})
		}

		c.Locals(currentUserKey, user)
		return c.Next()
	}
}

// CurrentUser returns the user stored by AuthRequired, or nil outside a protected route.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(currentUserKey).(*models.User)
	return user
}

func unauthorized(c *fiber.Ctx, message string) error {
	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": message,
	})
}
