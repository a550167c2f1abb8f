package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Avijadhav01/E-commerce/internal/models"
	"github.com/Avijadhav01/E-commerce/internal/service"
	appErrors "github.com/Avijadhav01/E-commerce/pkg/errors"
	"github.com/Avijadhav01/E-commerce/pkg/response"
)

// RequireRoles enforces role-based access control for routes. It runs
// strictly after Auth; the downstream handler is never invoked when the
// authenticated user's role is outside the allowed set.
func RequireRoles(allowed ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFromContext(c)
		if user == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if err := service.Authorize(user.Role, allowed...); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}

// UserFromContext returns the authenticated user stored by Auth, or nil.
func UserFromContext(c *gin.Context) *models.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
