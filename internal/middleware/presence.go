package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Toucher records activity for a user
type Toucher interface {
	Touch(ctx context.Context, userID uuid.UUID)
}

// PresenceTouch marks the authenticated user as active on every request.
// Must run after AuthMiddleware.
func PresenceTouch(tracker Toucher) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v, ok := c.Get(ContextUserID); ok {
			if userID, ok := v.(uuid.UUID); ok {
				tracker.Touch(c.Request.Context(), userID)
			}
		}
		c.Next()
	}
}
