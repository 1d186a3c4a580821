package auth

import (
	"chatwire/contract"
	"chatwire/errors"
	"strings"

	"github.com/gin-gonic/gin"
)

// IdentityKey is the gin context key holding the caller's domain.Identity.
const IdentityKey = "identity"

// Middleware validates the Authorization header for incoming API calls
// and injects the resolved identity into the request context.
func Middleware(authenticator contract.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))

		// Expecting the standard "Bearer <token>" format.
		token := ""
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			token = strings.TrimSpace(header[len("bearer "):])
		}

		identity, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(errors.MapToHTTPStatus(errors.ErrUnauthenticated),
				gin.H{"error": errors.ErrUnauthenticated.Error()})
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}
