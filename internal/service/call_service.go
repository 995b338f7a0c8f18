package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/metrics"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/repository"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"github.com/quocanhngo/delivertalk/pkg/storage"
	"gorm.io/gorm"
)

// ReasonNoAnswer is recorded on calls that rang out
const ReasonNoAnswer = "no_answer"

// CallNotifier pushes incoming and missed calls to the receiver's devices
type CallNotifier interface {
	SendCallNotification(ctx context.Context, receiverID uuid.UUID, caller model.UserSummary, call *model.CallHistory) error
}

// CallService drives the call lifecycle:
//
//	initiated -> accepted | rejected | ended | missed
//	accepted  -> ended
//
// Every transition is a compare-and-set on the current status, so retries and
// racing requests apply at most once. Terminal transitions write a call message
// in the same transaction.
type CallService struct {
	db          *gorm.DB
	convRepo    *repository.ConversationRepository
	msgRepo     *repository.MessageRepository
	callRepo    *repository.CallRepository
	storage     storage.Storage
	events      *event.Dispatcher
	notifier    CallNotifier
	ringTimeout time.Duration
	now         Clock
}

func NewCallService(
	db *gorm.DB,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	callRepo *repository.CallRepository,
	store storage.Storage,
	events *event.Dispatcher,
	notifier CallNotifier,
	ringTimeout time.Duration,
) *CallService {
	return &CallService{
		db:          db,
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		callRepo:    callRepo,
		storage:     store,
		events:      events,
		notifier:    notifier,
		ringTimeout: ringTimeout,
		now:         utcNow,
	}
}

// Initiate starts ringing the other participant. Retrying with the same call id returns the existing call.
func (s *CallService) Initiate(ctx context.Context, convID, callerID uuid.UUID, callType model.CallType, callID string) (*model.CallResponse, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, apperror.Validation("call_id is required")
	}
	if callType != model.CallTypeAudio && callType != model.CallTypeVideo {
		return nil, apperror.Validation("type must be audio or video")
	}

	conv, err := loadForParticipant(s.convRepo, convID, callerID)
	if err != nil {
		return nil, err
	}
	receiverID, ok := conv.OtherParticipant(callerID)
	if !ok {
		return nil, apperror.Validation("conversation has no one to call")
	}

	if existing, err := s.callRepo.Find(convID, callID); err == nil {
		return s.response(existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.now()
	call := &model.CallHistory{
		CallID:         callID,
		ConversationID: convID,
		CallerID:       callerID,
		ReceiverID:     receiverID,
		Type:           callType,
		Status:         model.CallStatusInitiated,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.callRepo.CreateIfAbsent(call)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.callRepo.Find(convID, callID)
		if err != nil {
			return nil, err
		}
		return s.response(existing)
	}
	metrics.CallTransitions.WithLabelValues(string(model.CallStatusInitiated)).Inc()

	caller := participantSummary(conv, callerID)
	s.events.Dispatch(ctx, event.Event{
		Name:     event.CallInitiated,
		Payload:  model.CallEventPayload{Call: call, Caller: &caller},
		Audience: event.Audience{Conversations: []uuid.UUID{convID}},
	})

	if s.notifier != nil {
		go func(ctx context.Context) {
			if err := s.notifier.SendCallNotification(ctx, receiverID, caller, call); err != nil {
				logger.Warn().Err(err).Str("call_id", callID).Msg("incoming call push failed")
			}
		}(context.WithoutCancel(ctx))
	}

	return &model.CallResponse{Call: call}, nil
}

// Accept answers a ringing call. Only the receiver may accept; the call timer restarts now.
func (s *CallService) Accept(ctx context.Context, convID uuid.UUID, callID string, userID uuid.UUID) (*model.CallResponse, error) {
	if _, err := loadForParticipant(s.convRepo, convID, userID); err != nil {
		return nil, err
	}
	call, err := s.callRepo.Find(convID, callID)
	if err != nil {
		return nil, notFound(err, "call")
	}
	if call.ReceiverID != userID {
		return nil, apperror.Authorization("only the receiver can accept this call")
	}
	if call.Status != model.CallStatusInitiated {
		return s.response(call)
	}

	now := s.now()
	applied, err := s.callRepo.Transition(call.ID, []model.CallStatus{model.CallStatusInitiated}, map[string]interface{}{
		"status":     model.CallStatusAccepted,
		"started_at": now,
		"updated_at": now,
	})
	if err != nil {
		return nil, err
	}
	call, err = s.callRepo.Find(convID, callID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return s.response(call)
	}
	metrics.CallTransitions.WithLabelValues(string(model.CallStatusAccepted)).Inc()

	s.events.Dispatch(ctx, event.Event{
		Name:     event.CallAccepted,
		Payload:  model.CallEventPayload{Call: call},
		Audience: event.Audience{Conversations: []uuid.UUID{convID}},
	})
	return &model.CallResponse{Call: call}, nil
}

// Reject declines a ringing call and records it in the chat history
func (s *CallService) Reject(ctx context.Context, convID uuid.UUID, callID string, userID uuid.UUID, reason *string) (*model.CallResponse, error) {
	if _, err := loadForParticipant(s.convRepo, convID, userID); err != nil {
		return nil, err
	}
	call, err := s.callRepo.Find(convID, callID)
	if err != nil {
		return nil, notFound(err, "call")
	}

	for attempt := 0; attempt < 3; attempt++ {
		switch {
		case call.Status.IsTerminal():
			return s.response(call)
		case call.Status == model.CallStatusAccepted:
			return nil, apperror.Validation("invalid_transition: an accepted call must be ended")
		}

		applied, err := s.finish(call, []model.CallStatus{model.CallStatusInitiated}, model.CallStatusRejected, &userID, 0, reason)
		if err != nil {
			return nil, err
		}
		if applied {
			return s.publishTerminal(ctx, call, event.CallRejected)
		}
		if call, err = s.callRepo.Find(convID, callID); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("call %s: transition kept losing races", callID)
}

// End hangs up a call. A call that was never accepted ends with zero duration.
func (s *CallService) End(ctx context.Context, convID uuid.UUID, callID string, userID uuid.UUID, duration float64, reason *string) (*model.CallResponse, error) {
	if duration < 0 {
		return nil, apperror.Validation("duration must not be negative")
	}
	if _, err := loadForParticipant(s.convRepo, convID, userID); err != nil {
		return nil, err
	}
	call, err := s.callRepo.Find(convID, callID)
	if err != nil {
		return nil, notFound(err, "call")
	}

	// Each lost race means the status moved forward, so this settles quickly
	for attempt := 0; attempt < 3; attempt++ {
		if call.Status.IsTerminal() {
			return s.response(call)
		}

		final := 0.0
		if call.Status == model.CallStatusAccepted {
			final = duration
		}
		applied, err := s.finish(call, []model.CallStatus{call.Status}, model.CallStatusEnded, &userID, final, reason)
		if err != nil {
			return nil, err
		}
		if applied {
			return s.publishTerminal(ctx, call, event.CallEnded)
		}
		if call, err = s.callRepo.Find(convID, callID); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("call %s: transition kept losing races", callID)
}

// ExpireRinging marks calls that rang longer than the ring timeout as missed
func (s *CallService) ExpireRinging(ctx context.Context) int {
	calls, err := s.callRepo.FindRingingSince(s.now().Add(-s.ringTimeout))
	if err != nil {
		logger.Error().Err(err).Msg("ringing call sweep query failed")
		return 0
	}

	reason := ReasonNoAnswer
	expired := 0
	for i := range calls {
		call := &calls[i]
		applied, err := s.finish(call, []model.CallStatus{model.CallStatusInitiated}, model.CallStatusMissed, nil, 0, &reason)
		if err != nil {
			logger.Warn().Err(err).Str("call_id", call.CallID).Msg("failed to expire ringing call")
			continue
		}
		if !applied {
			continue
		}
		expired++
		resp, err := s.publishTerminal(ctx, call, event.CallMissed)
		if err != nil {
			logger.Warn().Err(err).Str("call_id", call.CallID).Msg("failed to publish missed call")
			continue
		}
		if s.notifier != nil && resp.Message != nil {
			if err := s.notifier.SendCallNotification(ctx, call.ReceiverID, resp.Message.User, resp.Call); err != nil {
				logger.Warn().Err(err).Str("call_id", call.CallID).Msg("missed call push failed")
			}
		}
	}
	return expired
}

// Run expires ringing calls every interval until ctx is done
func (s *CallService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ExpireRinging(ctx); n > 0 {
				logger.Info().Int("count", n).Msg("ringing calls marked missed")
			}
		}
	}
}

// History lists the calls of a conversation, newest first
func (s *CallService) History(ctx context.Context, convID, userID uuid.UUID, limit int) ([]model.CallHistory, error) {
	if _, err := loadForParticipant(s.convRepo, convID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.callRepo.ListByConversation(convID, limit)
}

// finish applies a terminal transition and writes the call message in one transaction.
// applied is false when the call had already left from.
func (s *CallService) finish(call *model.CallHistory, from []model.CallStatus, status model.CallStatus, endedBy *uuid.UUID, duration float64, reason *string) (bool, error) {
	now := s.now()
	applied := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := s.callRepo.WithTx(tx).Transition(call.ID, from, map[string]interface{}{
			"status":     status,
			"ended_at":   now,
			"ended_by":   endedBy,
			"duration":   duration,
			"reason":     reason,
			"updated_at": now,
		})
		if err != nil || !ok {
			return err
		}

		msg := &model.Message{
			ConversationID: call.ConversationID,
			UserID:         call.CallerID,
			Type:           model.MessageTypeCall,
			Duration:       &duration,
			CallType:       &call.Type,
			CallStatus:     &status,
			CallID:         &call.CallID,
			CallReason:     reason,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.msgRepo.WithTx(tx).Create(msg); err != nil {
			return err
		}
		if err := s.convRepo.WithTx(tx).TouchLastMessage(call.ConversationID, now); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		metrics.CallTransitions.WithLabelValues(string(status)).Inc()
	}
	return applied, nil
}

// publishTerminal reloads a call after a terminal transition and announces it with its message
func (s *CallService) publishTerminal(ctx context.Context, call *model.CallHistory, name string) (*model.CallResponse, error) {
	resp, err := s.response(call)
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, event.Event{
		Name:     name,
		Payload:  model.CallEventPayload{Call: resp.Call, Message: resp.Message},
		Audience: event.Audience{Conversations: []uuid.UUID{call.ConversationID}},
	})
	publishUnread(ctx, s.events, s.msgRepo, call.ConversationID, []uuid.UUID{call.ReceiverID})
	return resp, nil
}

// response returns the stored call and, once terminal, the message it produced
func (s *CallService) response(call *model.CallHistory) (*model.CallResponse, error) {
	current, err := s.callRepo.Find(call.ConversationID, call.CallID)
	if err != nil {
		return nil, err
	}
	resp := &model.CallResponse{Call: current}
	if !current.Status.IsTerminal() {
		return resp, nil
	}

	msg, err := s.msgRepo.FindCallMessage(current.ConversationID, current.CallID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		return nil, err
	}
	payload := messagePayload(s.storage, msg)
	resp.Message = &payload
	return resp, nil
}

func participantSummary(conv *model.Conversation, userID uuid.UUID) model.UserSummary {
	for _, p := range conv.Participants {
		if p.UserID == userID {
			return p.User.Summary()
		}
	}
	return model.UserSummary{ID: userID}
}
