package middleware

import (
	"context"

	"toolhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RoleResolver returns the role for a user ID. Wired to the user repository
// at server construction so this package stays free of database imports.
type RoleResolver func(ctx context.Context, userID uint) (models.Role, error)

// RequireLibrarian restricts a route group to librarians. It must run after
// AuthRequired so c.Locals("userID") is populated. The resolved role is
// stored in c.Locals("role") for downstream handlers.
func RequireLibrarian(resolve RoleResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, ok := c.Locals("userID").(uint)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		role, err := resolve(c.UserContext(), uid)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}

		if role != models.RoleLibrarian {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewPermissionError("librarian role required"))
		}

		c.Locals("role", role)
		return c.Next()
	}
}

// ResolveRole loads the caller's role into c.Locals("role") without gating the
// request. Used on routes where handlers branch on patron versus librarian,
// such as catalog listings.
func ResolveRole(resolve RoleResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, ok := c.Locals("userID").(uint)
		if !ok {
			return c.Next()
		}

		role, err := resolve(c.UserContext(), uid)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}

		c.Locals("role", role)
		return c.Next()
	}
}
