package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/service"
	"github.com/quocanhngo/delivertalk/internal/ws"
	"github.com/quocanhngo/delivertalk/pkg/auth"
	"github.com/quocanhngo/delivertalk/pkg/logger"
)

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub        *ws.Hub
	policy     *service.SubscriptionPolicy
	convs      *service.ConversationService
	presence   *service.PresenceTracker
	jwtManager *auth.JWTManager
	upgrader   websocket.Upgrader
}

func NewWSHandler(
	hub *ws.Hub,
	policy *service.SubscriptionPolicy,
	convs *service.ConversationService,
	presence *service.PresenceTracker,
	jwtManager *auth.JWTManager,
	allowedOrigins []string,
) *WSHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[strings.TrimSpace(o)] = true
	}
	return &WSHandler{
		hub:        hub,
		policy:     policy,
		convs:      convs,
		presence:   presence,
		jwtManager: jwtManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Native apps send no Origin
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// HandleWebSocket upgrades HTTP to WebSocket and manages the connection
// Client connects with: ws://host/ws?token=<jwt_token>
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	// Browsers can't set headers on the upgrade request, so the query parameter comes first
	tokenString := c.Query("token")
	if tokenString == "" {
		if bearer, err := auth.BearerToken(c.GetHeader("Authorization")); err == nil {
			tokenString = bearer
		}
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized", Message: "Token required"})
		return
	}

	claims, err := h.jwtManager.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized", Message: "Invalid token"})
		return
	}

	// Upgrade HTTP to WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, claims.UserID, claims.Name, model.Role(claims.Role))
	h.hub.Register(client)

	// Start read/write pumps in goroutines
	go client.WritePump()
	go client.ReadPump(h.handleWSMessage)
}

// handleWSMessage processes incoming WebSocket messages from clients
func (h *WSHandler) handleWSMessage(client *ws.Client, msg ws.ClientMessage) {
	ctx := context.Background()

	switch msg.Action {
	case ws.ActionSubscribe:
		h.handleSubscribe(client, msg.Channel)

	case ws.ActionUnsubscribe:
		h.hub.Unsubscribe(client, msg.Channel)
		client.Reply(msg.Channel, ws.EventUnsubscribed, struct{}{})

	case ws.ActionTyping, ws.ActionStopTyping:
		if err := h.convs.Typing(ctx, msg.ConversationID, client.UserID, msg.Action == ws.ActionTyping); err != nil {
			client.Reply(event.ChatChannel(msg.ConversationID), ws.EventError, errorBody(err))
		}

	case ws.ActionPing:
		h.presence.Touch(ctx, client.UserID)
		client.Reply("", ws.EventPong, struct{}{})

	default:
		client.Reply("", ws.EventError, model.ErrorResponse{
			Error:   string(apperror.KindValidation),
			Message: "unknown action: " + msg.Action,
		})
	}
}

func (h *WSHandler) handleSubscribe(client *ws.Client, channel string) {
	err := h.policy.Authorize(channel, service.Viewer{UserID: client.UserID, Role: client.Role})
	if err != nil {
		logger.Debug().
			Err(err).
			Str("user_id", client.UserID.String()).
			Str("channel", channel).
			Msg("subscription refused")
		client.Reply(channel, ws.EventSubscriptionError, errorBody(err))
		return
	}

	h.hub.Subscribe(client, channel)
	client.Reply(channel, ws.EventSubscribed, struct{}{})
}

func errorBody(err error) model.ErrorResponse {
	kind := apperror.KindOf(err)
	if kind == apperror.KindInternal {
		logger.Error().Err(err).Msg("websocket action failed")
	}
	return model.ErrorResponse{Error: string(kind), Message: apperror.PublicMessage(err)}
}
