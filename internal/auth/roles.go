package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-board/internal/domain"
	apperrors "github.com/spec-kit/task-board/pkg/util/errorutil"
)

// RequireManager ensures the caller holds the manager role.
func RequireManager() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.User.Role != domain.RoleManager {
			return apperrors.NewForbidden("only managers can perform this action")
		}
		return c.Next()
	}
}
