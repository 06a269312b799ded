package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/crumb/internal/models"
	"github.com/example/crumb/internal/services"
	"github.com/example/crumb/internal/utils"
)

const userContextKey = "currentUser"

// AuthMiddleware validates JWT tokens and loads the authenticated user into context.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		user, err := parseBearer(secret, authHeader)
		if err != nil {
			return err
		}

		c.Locals(userContextKey, user)
		return c.Next()
	}
}

// OptionalAuth loads the user when a valid token is present and lets guests
// through otherwise. A malformed or expired token is still rejected.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}

		user, err := parseBearer(secret, authHeader)
		if err != nil {
			return err
		}

		c.Locals(userContextKey, user)
		return c.Next()
	}
}

// AdminOnly must run after AuthMiddleware. It re-reads the user so revoked
// admins lose access before their token expires.
func AdminOnly(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		current := CurrentUser(c)
		if current == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).Select("id", "is_admin").First(&user, "id = ?", current.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
			}
			return err
		}
		if !user.IsAdmin {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for guests.
func CurrentUser(c *fiber.Ctx) *services.CurrentUser {
	if user, ok := c.Locals(userContextKey).(*services.CurrentUser); ok {
		return user
	}
	return nil
}

func parseBearer(secret, header string) (*services.CurrentUser, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
	}

	userID, email, err := utils.ParseToken(secret, strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	return &services.CurrentUser{ID: userID, Email: email}, nil
}
