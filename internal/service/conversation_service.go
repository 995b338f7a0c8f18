package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/repository"
	"gorm.io/gorm"
)

// ConversationService handles conversations, membership and read cursors
type ConversationService struct {
	db       *gorm.DB
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
	userRepo *repository.UserRepository
	events   *event.Dispatcher
	now      Clock
}

func NewConversationService(
	db *gorm.DB,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	events *event.Dispatcher,
) *ConversationService {
	return &ConversationService{
		db:       db,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		events:   events,
		now:      utcNow,
	}
}

// FindOrCreate returns the single conversation between two users, creating it on first contact.
// The second return value is true when this call created it.
func (s *ConversationService) FindOrCreate(ctx context.Context, initiatorID, otherID uuid.UUID) (*model.Conversation, bool, error) {
	if initiatorID == otherID {
		return nil, false, apperror.Validation("cannot start a conversation with yourself")
	}

	key := model.ParticipantsKey(initiatorID, otherID)
	conv, err := s.convRepo.FindByKey(key)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	initiator, err := s.userRepo.FindByID(initiatorID)
	if err != nil {
		return nil, false, notFound(err, "user")
	}
	other, err := s.userRepo.FindByID(otherID)
	if err != nil {
		return nil, false, notFound(err, "user")
	}

	now := s.now()
	conv = &model.Conversation{
		Title:           initiator.Name + " & " + other.Name,
		Type:            conversationType(initiator.Role, other.Role),
		ParticipantsKey: key,
		CreatedAt:       now,
		UpdatedAt:       now,
		Participants: []model.ConversationParticipant{
			{UserID: initiatorID, JoinedAt: now},
			{UserID: otherID, JoinedAt: now},
		},
	}

	// A concurrent caller may insert the same key first; then we return its row
	var created bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.convRepo.WithTx(tx).CreateIfAbsent(conv)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	conv, err = s.convRepo.FindByKey(key)
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

// conversationType derives the type from the roles of the initiator and the other user
func conversationType(initiator, other model.Role) model.ConversationType {
	switch {
	case initiator == model.RoleCustomer && other == model.RoleDelivery:
		return model.ConversationCustomerToDelivery
	case initiator == model.RoleDelivery && other == model.RoleCustomer:
		return model.ConversationDeliveryToCustomer
	default:
		return model.ConversationCustomerToCustomer
	}
}

// GetOrCreateDirect finds or creates the conversation with partnerID and annotates it for myID
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, myID, partnerID uuid.UUID) (*model.DirectConversationResponse, error) {
	conv, created, err := s.FindOrCreate(ctx, myID, partnerID)
	if err != nil {
		return nil, err
	}

	resp, err := s.annotate(*conv, myID)
	if err != nil {
		return nil, err
	}
	return &model.DirectConversationResponse{
		Conversation: resp,
		IsNew:        created,
	}, nil
}

// Get returns a conversation the user participates in
func (s *ConversationService) Get(ctx context.Context, convID, userID uuid.UUID) (*model.ConversationResponse, error) {
	conv, err := s.loadForParticipant(convID, userID)
	if err != nil {
		return nil, err
	}
	resp, err := s.annotate(*conv, userID)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListForUser returns the user's conversations, latest activity first, with unread counts
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]model.ConversationResponse, error) {
	conversations, err := s.convRepo.GetUserConversations(userID)
	if err != nil {
		return nil, err
	}

	result := []model.ConversationResponse{}
	for i := range conversations {
		resp, err := s.annotate(conversations[i], userID)
		if err != nil {
			return nil, err
		}
		result = append(result, resp)
	}
	return result, nil
}

func (s *ConversationService) annotate(conv model.Conversation, userID uuid.UUID) (model.ConversationResponse, error) {
	lastMsg, err := s.msgRepo.GetLastMessage(conv.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ConversationResponse{}, err
	}
	conv.LastMessage = lastMsg

	unread, err := s.msgRepo.CountUnread(conv.ID, userID)
	if err != nil {
		return model.ConversationResponse{}, err
	}

	return model.ConversationResponse{
		Conversation: conv,
		UnreadCount:  unread,
	}, nil
}

// MarkRead moves the user's read cursor to now and stamps read_at on what they received.
// Other participants are told about the read and get their refreshed unread count.
func (s *ConversationService) MarkRead(ctx context.Context, convID, userID uuid.UUID) error {
	conv, err := s.loadForParticipant(convID, userID)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.convRepo.WithTx(tx).UpdateLastRead(convID, userID, now); err != nil {
			return err
		}
		return s.msgRepo.WithTx(tx).MarkReadFor(convID, userID, now)
	})
	if err != nil {
		return err
	}

	s.events.Dispatch(ctx, event.Event{
		Name: event.MessageRead,
		Payload: model.MessageReadPayload{
			ConversationID: convID,
			UserID:         userID,
			ReadAt:         now,
		},
		Audience: event.Audience{Conversations: []uuid.UUID{convID}},
	})
	s.publishUnread(ctx, convID, others(conv.ParticipantIDs(), userID))
	return nil
}

// publishUnread sends each user their current unread count for convID
func (s *ConversationService) publishUnread(ctx context.Context, convID uuid.UUID, userIDs []uuid.UUID) {
	publishUnread(ctx, s.events, s.msgRepo, convID, userIDs)
}

// Typing relays a typing indicator to the conversation channel
func (s *ConversationService) Typing(ctx context.Context, convID, userID uuid.UUID, typing bool) error {
	conv, err := s.loadForParticipant(convID, userID)
	if err != nil {
		return err
	}

	name := event.StopTyping
	if typing {
		name = event.Typing
	}

	var summary model.UserSummary
	for _, p := range conv.Participants {
		if p.UserID == userID {
			summary = p.User.Summary()
		}
	}

	s.events.Dispatch(ctx, event.Event{
		Name: name,
		Payload: model.TypingPayload{
			ConversationID: convID,
			User:           summary,
		},
		Audience: event.Audience{Conversations: []uuid.UUID{convID}},
	})
	return nil
}

// IsParticipant reports whether userID belongs to convID
func (s *ConversationService) IsParticipant(convID, userID uuid.UUID) (bool, error) {
	return s.convRepo.IsParticipant(convID, userID)
}

// ConversationIDsForUser returns every conversation the user participates in
func (s *ConversationService) ConversationIDsForUser(userID uuid.UUID) ([]uuid.UUID, error) {
	return s.convRepo.GetConversationIDsForUser(userID)
}

// loadForParticipant loads a conversation and rejects callers who are not in it
func (s *ConversationService) loadForParticipant(convID, userID uuid.UUID) (*model.Conversation, error) {
	return loadForParticipant(s.convRepo, convID, userID)
}

func loadForParticipant(convRepo *repository.ConversationRepository, convID, userID uuid.UUID) (*model.Conversation, error) {
	conv, err := convRepo.FindByID(convID)
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	if !conv.HasParticipant(userID) {
		return nil, apperror.Authorization("you are not a participant of this conversation")
	}
	return conv, nil
}

func publishUnread(ctx context.Context, events *event.Dispatcher, msgRepo *repository.MessageRepository, convID uuid.UUID, userIDs []uuid.UUID) {
	for _, uid := range userIDs {
		count, err := msgRepo.CountUnread(convID, uid)
		if err != nil {
			continue
		}
		events.Dispatch(ctx, event.Event{
			Name: event.UnreadUpdated,
			Payload: model.UnreadUpdatedPayload{
				ConversationID: convID,
				UserID:         uid,
				UnreadCount:    count,
			},
			Audience: event.Audience{Conversations: []uuid.UUID{convID}},
		})
	}
}

// others returns ids without self
func others(ids []uuid.UUID, self uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}
