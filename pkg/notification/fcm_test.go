package notification

import (
	"context"
	"errors"
	"io"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnregistered = errors.New("registration-token-not-registered")

func init() {
	logger.InitWithWriter("test", "disabled", io.Discard)
	isStaleToken = func(err error) bool { return errors.Is(err, errUnregistered) }
}

type fakeDevices struct {
	devices []model.UserDevice
	removed []string
}

func (f *fakeDevices) GetUserDevices(uuid.UUID) ([]model.UserDevice, error) {
	return f.devices, nil
}

func (f *fakeDevices) RemoveDevice(_ uuid.UUID, token string) error {
	f.removed = append(f.removed, token)
	return nil
}

type fakeSender struct {
	sent     []*messaging.MulticastMessage
	response *messaging.BatchResponse
}

func (f *fakeSender) SendEachForMulticast(_ context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.sent = append(f.sent, m)
	return f.response, nil
}

func TestSendCallNotification_PrunesStaleTokens(t *testing.T) {
	devices := &fakeDevices{devices: []model.UserDevice{{FCMToken: "good"}, {FCMToken: "gone"}, {FCMToken: "flaky"}}}
	sender := &fakeSender{response: &messaging.BatchResponse{Responses: []*messaging.SendResponse{
		{Success: true},
		{Error: errUnregistered},
		{Error: errors.New("unavailable")},
	}}}
	s := &NotificationService{sender: sender, devices: devices}

	caller := model.UserSummary{ID: uuid.New(), Name: "Lan"}
	call := &model.CallHistory{CallID: "c-1", ConversationID: uuid.New(), Type: model.CallTypeVideo, Status: model.CallStatusInitiated}

	require.NoError(t, s.SendCallNotification(context.Background(), uuid.New(), caller, call))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"good", "gone", "flaky"}, msg.Tokens)
	assert.Equal(t, "incoming_call", msg.Data["type"])
	assert.Equal(t, "Incoming video call", msg.Notification.Body)
	assert.Equal(t, "Lan", msg.Notification.Title)
	assert.Equal(t, []string{"gone"}, devices.removed)
}

func TestSendCallNotification_Missed(t *testing.T) {
	sender := &fakeSender{response: &messaging.BatchResponse{Responses: []*messaging.SendResponse{{Success: true}}}}
	s := &NotificationService{sender: sender, devices: &fakeDevices{devices: []model.UserDevice{{FCMToken: "t"}}}}

	call := &model.CallHistory{CallID: "c-2", Type: model.CallTypeAudio, Status: model.CallStatusMissed}
	require.NoError(t, s.SendCallNotification(context.Background(), uuid.New(), model.UserSummary{Name: "Minh"}, call))

	assert.Equal(t, "missed_call", sender.sent[0].Data["type"])
	assert.Equal(t, "Missed audio call", sender.sent[0].Notification.Body)
	assert.Equal(t, "5", sender.sent[0].APNS.Headers["apns-priority"])
}

func TestSendCallNotification_NoDevicesOrDisabled(t *testing.T) {
	sender := &fakeSender{}
	s := &NotificationService{sender: sender, devices: &fakeDevices{}}
	require.NoError(t, s.SendCallNotification(context.Background(), uuid.New(), model.UserSummary{}, &model.CallHistory{}))
	assert.Empty(t, sender.sent)

	var disabled *NotificationService
	assert.NoError(t, disabled.SendCallNotification(context.Background(), uuid.New(), model.UserSummary{}, &model.CallHistory{}))
}
