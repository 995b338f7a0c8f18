package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"google.golang.org/api/option"
)

// DeviceStore lists and prunes push tokens
type DeviceStore interface {
	GetUserDevices(userID uuid.UUID) ([]model.UserDevice, error)
	RemoveDevice(userID uuid.UUID, token string) error
}

// multicastSender is the part of *messaging.Client we use
type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// isStaleToken reports whether FCM rejected a token for good
var isStaleToken = messaging.IsUnregistered

// NotificationService sends call pushes through FCM
type NotificationService struct {
	sender  multicastSender
	devices DeviceStore
}

// NewNotificationService creates a new FCM notification service.
// A nil service is returned when FCM is not configured; all methods are nil-safe.
func NewNotificationService(credentialsFile string, devices DeviceStore) (*NotificationService, error) {
	if credentialsFile == "" {
		logger.Warn().Msg("firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	app, err := firebase.NewApp(context.Background(), nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		// Don't block server startup
		logger.Warn().Err(err).Msg("failed to initialize firebase app, push notifications disabled")
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		logger.Warn().Err(err).Msg("failed to get messaging client")
		return nil, nil
	}

	logger.Info().Msg("firebase FCM initialized")
	return &NotificationService{sender: client, devices: devices}, nil
}

// SendCallNotification pushes a call to the receiver's devices. Ringing calls
// produce an incoming-call push, missed calls a missed-call notice.
func (s *NotificationService) SendCallNotification(ctx context.Context, receiverID uuid.UUID, caller model.UserSummary, call *model.CallHistory) error {
	if s == nil || s.sender == nil {
		return nil
	}

	devices, err := s.devices.GetUserDevices(receiverID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.FCMToken)
	}

	br, err := s.sender.SendEachForMulticast(ctx, callMessage(tokens, caller, call))
	if err != nil {
		return fmt.Errorf("send call push: %w", err)
	}

	for idx, resp := range br.Responses {
		if resp.Success {
			continue
		}
		if isStaleToken(resp.Error) {
			if err := s.devices.RemoveDevice(receiverID, tokens[idx]); err != nil {
				logger.Warn().Err(err).Msg("failed to prune push token")
			}
			continue
		}
		logger.Warn().Err(resp.Error).Str("user_id", receiverID.String()).Msg("FCM delivery failed")
	}
	return nil
}

func callMessage(tokens []string, caller model.UserSummary, call *model.CallHistory) *messaging.MulticastMessage {
	kind, body, priority := "incoming_call", "Incoming "+string(call.Type)+" call", "high"
	if call.Status == model.CallStatusMissed {
		kind, body, priority = "missed_call", "Missed "+string(call.Type)+" call", "normal"
	}

	// Data fields let the app render its own call screen
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: caller.Name,
			Body:  body,
		},
		Data: map[string]string{
			"type":            kind,
			"call_id":         call.CallID,
			"call_type":       string(call.Type),
			"conversation_id": call.ConversationID.String(),
			"caller_id":       caller.ID.String(),
			"caller_name":     caller.Name,
			"caller_avatar":   caller.Avatar,
		},
		Android: &messaging.AndroidConfig{
			Priority: priority,
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": map[string]string{"high": "10", "normal": "5"}[priority]},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}
