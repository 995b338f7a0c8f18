package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/service"
)

// DeliveryHandler handles agent location, delivery chat and tracking endpoints
type DeliveryHandler struct {
	deliveries *service.DeliveryService
}

func NewDeliveryHandler(deliveries *service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries}
}

// UpdateLocation godoc
// @Summary Report the agent's position for one delivery
// @Description Persists the position and broadcasts it to the delivery, its customer and the fleet view.
// @Tags Deliveries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Delivery ID"
// @Param body body model.LocationRequest true "Coordinates"
// @Success 200 {object} model.LocationPayload
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /deliveries/{id}/location [post]
func (h *DeliveryHandler) UpdateLocation(c *gin.Context) {
	deliveryID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	payload, err := h.deliveries.UpdateAgentLocation(c.Request.Context(), deliveryID, currentUserID(c), *req.Lat, *req.Lng)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, payload)
}

// InitializeLocations godoc
// @Summary Push the agent's position to every active delivery
// @Description Used when the agent app starts. Each delivery is updated independently.
// @Tags Deliveries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.LocationRequest true "Coordinates"
// @Success 200 {object} model.BulkLocationResponse
// @Router /deliveries/locations/initialize [post]
func (h *DeliveryHandler) InitializeLocations(c *gin.Context) {
	var req model.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.deliveries.InitializeAllActiveLocations(c.Request.Context(), currentUserID(c), *req.Lat, *req.Lng)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// StartConversation godoc
// @Summary Open the customer and agent chat for a delivery
// @Tags Deliveries
// @Produce json
// @Security BearerAuth
// @Param id path string true "Delivery ID"
// @Success 200 {object} model.Conversation
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /deliveries/{id}/conversation [post]
func (h *DeliveryHandler) StartConversation(c *gin.Context) {
	deliveryID, ok := paramID(c, "id")
	if !ok {
		return
	}

	conv, err := h.deliveries.StartDeliveryConversation(c.Request.Context(), deliveryID, currentViewer(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// UpdateStatus godoc
// @Summary Record a delivery status change
// @Tags Deliveries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Delivery ID"
// @Param body body model.DeliveryStatusRequest true "Status"
// @Success 201 {object} model.DeliveryTracking
// @Router /deliveries/{id}/status [post]
func (h *DeliveryHandler) UpdateStatus(c *gin.Context) {
	deliveryID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.DeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	tracking, err := h.deliveries.RecordStatus(c.Request.Context(), deliveryID, req.Status, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tracking)
}

// Tracking godoc
// @Summary Get the tracking history of a delivery
// @Tags Deliveries
// @Produce json
// @Security BearerAuth
// @Param id path string true "Delivery ID"
// @Success 200 {array} model.DeliveryTracking
// @Router /deliveries/{id}/tracking [get]
func (h *DeliveryHandler) Tracking(c *gin.Context) {
	deliveryID, ok := paramID(c, "id")
	if !ok {
		return
	}

	rows, err := h.deliveries.TrackingHistory(c.Request.Context(), deliveryID, currentViewer(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}
