package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/service"
)

// Max upload size: 50MB
const maxUploadSize = 50 << 20

// ChatHandler handles conversation and message endpoints
type ChatHandler struct {
	convs *service.ConversationService
	msgs  *service.MessageService
}

func NewChatHandler(convs *service.ConversationService, msgs *service.MessageService) *ChatHandler {
	return &ChatHandler{convs: convs, msgs: msgs}
}

// GetOrCreateDirect godoc
// @Summary Get or create direct conversation
// @Description Find the existing two-party conversation with a user, or create it.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.DirectConversationRequest true "Partner ID"
// @Success 200 {object} model.DirectConversationResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/direct [post]
func (h *ChatHandler) GetOrCreateDirect(c *gin.Context) {
	var req model.DirectConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.convs.GetOrCreateDirect(c.Request.Context(), currentUserID(c), req.ReceiverID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetConversations godoc
// @Summary Get all conversations for the current user
// @Description Latest activity first, each with its last message and unread count.
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.ConversationResponse
// @Router /conversations [get]
func (h *ChatHandler) GetConversations(c *gin.Context) {
	conversations, err := h.convs.ListForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// GetConversation godoc
// @Summary Get a specific conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.ConversationResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id} [get]
func (h *ChatHandler) GetConversation(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	conv, err := h.convs.Get(c.Request.Context(), convID, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// SendMessage godoc
// @Summary Send a message to a conversation
// @Description JSON body for text messages; multipart/form-data with a "file" part for image, video and voice.
// @Tags Messages
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.SendMessageRequest false "Text message"
// @Param file formData file false "Attachment"
// @Success 201 {object} model.MessagePayload
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 502 {object} model.ErrorResponse
// @Router /conversations/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.SendMessageRequest
	in := service.SendInput{}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		// Limit request body size
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		file, header, err := c.Request.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: string(apperror.KindValidation), Message: "File too large (max 50MB)"})
				return
			}
			badRequest(c, err.Error())
			return
		default:
			defer file.Close()
			in.Attachment = &service.Attachment{
				Reader:      file,
				Size:        header.Size,
				FileName:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	in.Body = req.Body
	in.Type = req.Type
	in.Duration = req.Duration

	msg, err := h.msgs.SendMessage(c.Request.Context(), convID, currentUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// GetMessages godoc
// @Summary Get messages for a conversation
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param before query string false "Cursor: message ID to get messages before"
// @Param limit query int false "Number of messages to return (default: 50, max: 100)"
// @Success 200 {array} model.MessagePayload
// @Router /conversations/{id}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.MessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var before *uuid.UUID
	if req.Before != "" {
		parsed, err := uuid.Parse(req.Before)
		if err != nil {
			badRequest(c, "invalid before cursor")
			return
		}
		before = &parsed
	}

	messages, err := h.msgs.ListMessages(c.Request.Context(), convID, currentUserID(c), before, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// UpdateMessage godoc
// @Summary Edit the body of a text message
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Param body body model.UpdateMessageRequest true "New body"
// @Success 200 {object} model.MessagePayload
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id} [patch]
func (h *ChatHandler) UpdateMessage(c *gin.Context) {
	msgID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.msgs.UpdateMessage(c.Request.Context(), msgID, currentUserID(c), req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// DeleteMessage godoc
// @Summary Delete one of your messages
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /messages/{id} [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	msgID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.msgs.DeleteMessage(c.Request.Context(), msgID, currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Message deleted"})
}

// MarkAsRead godoc
// @Summary Mark all messages in a conversation as read
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Router /conversations/{id}/read [post]
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.convs.MarkRead(c.Request.Context(), convID, currentUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Messages marked as read"})
}

// Typing godoc
// @Summary Broadcast a typing indicator
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param body body model.TypingRequest true "Typing state"
// @Success 204
// @Router /conversations/{id}/typing [post]
func (h *ChatHandler) Typing(c *gin.Context) {
	convID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.convs.Typing(c.Request.Context(), convID, currentUserID(c), req.Typing); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
