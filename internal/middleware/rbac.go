package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/izin-asrama-api/internal/leave"
	"github.com/noah-isme/izin-asrama-api/internal/models"
	appErrors "github.com/noah-isme/izin-asrama-api/pkg/errors"
	"github.com/noah-isme/izin-asrama-api/pkg/response"
)

// RequireRoles rejects requests whose token role is not in roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOperation admits roles the resolver grants op to. Variant checks
// happen later in the service once the application is loaded.
func RequireOperation(resolver *leave.Resolver, op leave.Operation) gin.HandlerFunc {
	return RequireRoles(resolver.Roles(op)...)
}
