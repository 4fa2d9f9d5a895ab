package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"photokiosk/internal/auth"
	"photokiosk/internal/settings"
)

// TokenVerifier checks an admin bearer token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// SettingsReader returns the current app settings.
type SettingsReader interface {
	Get(ctx context.Context) settings.AppSettings
}

const claimsKey = "admin_claims"

// AdminAuth validates the admin token.
// Expects: Authorization: Bearer <token>
func AdminAuth(tokens TokenVerifier, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Missing Authorization header",
			})
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Invalid Authorization header format. Expected: Bearer <token>",
			})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Token is empty",
			})
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			logger.Debug("Rejected admin token", slog.String("path", c.Path()), slog.Any("error", err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":    false,
				"error": "Invalid or expired token",
			})
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// AdminClaims returns the claims AdminAuth stored on the request, if any.
func AdminClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(claimsKey).(*auth.Claims)
	return claims, ok
}

// AppEnabled answers 503 while the booth app is switched off.
func AppEnabled(store SettingsReader, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !store.Get(c.UserContext()).AppEnabled {
			logger.Debug("Booth request while app disabled", slog.String("path", c.Path()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"ok":    false,
				"error": "app disabled",
			})
		}
		return c.Next()
	}
}
