package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/aulaworks/aula-go-api/internal/service"
	"github.com/aulaworks/aula-go-api/internal/utils"
)

// RequireRole ensures that the authenticated user possesses one of the
// allowed roles. Fine-grained ownership checks stay in the service layer.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := normalizeRole(c.Locals("user_role"))
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// CallerFromCtx builds the Caller value the workflow engine operates under
// from the locals the JWT middleware populated.
func CallerFromCtx(c *fiber.Ctx) (service.Caller, bool) {
	userID, ok := userIDFromLocals(c.Locals("user_id"))
	if !ok {
		return service.Caller{}, false
	}

	return service.Caller{
		ID:   userID,
		Role: normalizeRole(c.Locals("user_role")),
	}, true
}

func userIDFromLocals(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
