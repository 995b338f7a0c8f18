package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/pkg/auth"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID = "user_id"
	ContextName   = "name"
	ContextRole   = "role"
)

// BlacklistKey is the Redis key marking a revoked token
func BlacklistKey(token string) string {
	return "blacklist:" + token
}

// AuthMiddleware validates JWT tokens and injects user claims into context.
// rdb may be nil, in which case revoked tokens are not checked.
func AuthMiddleware(jwtManager *auth.JWTManager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		tokenString, err := auth.BearerToken(authHeader)
		if err != nil {
			abortUnauthorized(c, "Invalid authorization format. Use: Bearer <token>")
			return
		}

		// Check blacklist
		if rdb != nil {
			exists, err := rdb.Exists(c.Request.Context(), BlacklistKey(tokenString)).Result()
			if err != nil {
				// Fail closed
				logger.Error().Err(err).Msg("token blacklist lookup failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{
					Error:   string(apperror.KindInternal),
					Message: "Auth server error",
				})
				return
			}
			if exists > 0 {
				abortUnauthorized(c, "Token has been revoked")
				return
			}
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// Store user info in context for downstream handlers
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextName, claims.Name)
		c.Set(ContextRole, model.Role(claims.Role))

		c.Next()
	}
}

// RequireRole rejects requests whose token role is not one of roles
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse{
			Error:   string(apperror.KindAuthorization),
			Message: "insufficient role",
		})
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized", Message: msg})
}
