package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/middleware"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/service"
	"github.com/quocanhngo/delivertalk/pkg/logger"
)

// respondError renders err as {"error": kind, "message": ...}.
// Internal errors are logged and rendered without detail.
func respondError(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	if kind == apperror.KindInternal {
		logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(apperror.HTTPStatus(kind), model.ErrorResponse{
		Error:   string(kind),
		Message: apperror.PublicMessage(err),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: string(apperror.KindValidation), Message: msg})
}

// paramID parses a UUID path parameter, writing a 400 when it is malformed
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func currentUserID(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.ContextUserID).(uuid.UUID)
}

func currentViewer(c *gin.Context) service.Viewer {
	role, _ := c.Get(middleware.ContextRole)
	r, _ := role.(model.Role)
	return service.Viewer{UserID: currentUserID(c), Role: r}
}
