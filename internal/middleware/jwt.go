package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Avijadhav01/E-commerce/internal/service"
	appErrors "github.com/Avijadhav01/E-commerce/pkg/errors"
	"github.com/Avijadhav01/E-commerce/pkg/response"
)

// ContextUserKey is the gin context key storing the authenticated user.
const ContextUserKey = "currentUser"

// AccessTokenCookie is the cookie carrying the access token.
const AccessTokenCookie = "accessToken"

// credentialSources lists where a bearer credential may come from, in
// precedence order: the access-token cookie wins over the Authorization
// header. The first source that yields a value is used.
var credentialSources = []func(*gin.Context) string{
	fromCookie,
	fromAuthorizationHeader,
}

// Auth protects routes by requiring a valid access token. The resolved
// user is stored on the request context; every failure aborts the chain.
func Auth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := extractCredential(c)
		if credential == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := authService.Authenticate(c.Request.Context(), credential)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

func extractCredential(c *gin.Context) string {
	for _, source := range credentialSources {
		if credential := source(c); credential != "" {
			return credential
		}
	}
	return ""
}

func fromCookie(c *gin.Context) string {
	cookie, err := c.Request.Cookie(AccessTokenCookie)
	if err != nil || cookie == nil {
		return ""
	}
	return cookie.Value
}

func fromAuthorizationHeader(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
