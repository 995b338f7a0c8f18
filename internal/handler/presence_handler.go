package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/repository"
	"github.com/quocanhngo/delivertalk/internal/service"
)

// PresenceHandler exposes presence reads and device registration
type PresenceHandler struct {
	presence *service.PresenceTracker
	userRepo *repository.UserRepository
}

func NewPresenceHandler(presence *service.PresenceTracker, userRepo *repository.UserRepository) *PresenceHandler {
	return &PresenceHandler{presence: presence, userRepo: userRepo}
}

// Ping godoc
// @Summary Heartbeat keeping the caller online
// @Tags Presence
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.PresenceResponse
// @Router /presence/ping [post]
func (h *PresenceHandler) Ping(c *gin.Context) {
	userID := currentUserID(c)
	h.presence.Touch(c.Request.Context(), userID)

	status, err := h.presence.Status(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetPresence godoc
// @Summary Get a user's online status
// @Tags Presence
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} model.PresenceResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /users/{id}/presence [get]
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		return
	}

	status, err := h.presence.Status(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// RegisterDevice godoc
// @Summary Register a push notification token
// @Tags Presence
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.RegisterDeviceRequest true "Device"
// @Success 200 {object} model.SuccessResponse
// @Router /devices [post]
func (h *PresenceHandler) RegisterDevice(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.userRepo.AddDevice(currentUserID(c), req.FCMToken, req.DeviceType); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Device registered"})
}
