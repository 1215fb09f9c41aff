package middleware

import (
	"log"
	"strings"

	"rishe/internal/services"

	"github.com/gofiber/fiber/v2"
)

// PrincipalKey is the Fiber locals key under which the authenticated
// principal is stored.
const PrincipalKey = "principal"

// AuthRequired is a Fiber middleware that checks for a valid JWT token and
// resolves the purchasing principal behind it. Handlers downstream read the
// principal via middleware.PrincipalFromCtx.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		principal, err := authService.PrincipalFromToken(parts[1])
		if err != nil {
			log.Printf("JWT validation failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		// Store the principal in Fiber context for subsequent handlers
		c.Locals(PrincipalKey, *principal)

		// Continue to the next handler
		return c.Next()
	}
}

// PrincipalFromCtx returns the authenticated principal stored by
// AuthRequired.
func PrincipalFromCtx(c *fiber.Ctx) (services.Principal, bool) {
	principal, ok := c.Locals(PrincipalKey).(services.Principal)
	return principal, ok
}
