package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/service"
)

// CallHandler handles call signaling endpoints. Media negotiation stays peer to peer.
type CallHandler struct {
	calls *service.CallService
}

func NewCallHandler(calls *service.CallService) *CallHandler {
	return &CallHandler{calls: calls}
}

// Initiate godoc
// @Summary Start a call
// @Description Rings the other participant. Retrying with the same call_id returns the existing call.
// @Tags Calls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.InitiateCallRequest true "Call"
// @Success 201 {object} model.CallResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /conversations/{id}/calls [post]
func (h *CallHandler) Initiate(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.InitiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.calls.Initiate(c.Request.Context(), convID, currentUserID(c), req.Type, req.CallID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Accept godoc
// @Summary Accept a ringing call
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param call_id path string true "Call ID"
// @Success 200 {object} model.CallResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id}/calls/{call_id}/accept [post]
func (h *CallHandler) Accept(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	resp, err := h.calls.Accept(c.Request.Context(), convID, c.Param("call_id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Reject godoc
// @Summary Reject a ringing call
// @Tags Calls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param call_id path string true "Call ID"
// @Param body body model.RejectCallRequest false "Reason"
// @Success 200 {object} model.CallResponse
// @Router /conversations/{id}/calls/{call_id}/reject [post]
func (h *CallHandler) Reject(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.RejectCallRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	resp, err := h.calls.Reject(c.Request.Context(), convID, c.Param("call_id"), currentUserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// End godoc
// @Summary Hang up a call
// @Tags Calls
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param call_id path string true "Call ID"
// @Param body body model.EndCallRequest true "Duration in seconds"
// @Success 200 {object} model.CallResponse
// @Router /conversations/{id}/calls/{call_id}/end [post]
func (h *CallHandler) End(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.EndCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.calls.End(c.Request.Context(), convID, c.Param("call_id"), currentUserID(c), req.Duration, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary List calls of a conversation
// @Tags Calls
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param limit query int false "Max rows (default: 50)"
// @Success 200 {array} model.CallHistory
// @Router /conversations/{id}/calls [get]
func (h *CallHandler) History(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	calls, err := h.calls.History(c.Request.Context(), convID, currentUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, calls)
}
