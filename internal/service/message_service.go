package service

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/repository"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"github.com/quocanhngo/delivertalk/pkg/storage"
	"gorm.io/gorm"
)

const attachmentFolder = "messages"

// Attachment is an uploaded file waiting to be stored
type Attachment struct {
	Reader      io.Reader
	Size        int64
	FileName    string
	ContentType string
}

// SendInput is a message as submitted by a client
type SendInput struct {
	Body       *string
	Type       model.MessageType
	Attachment *Attachment
	Duration   *float64
}

// MessageService creates, edits and deletes chat messages
type MessageService struct {
	db       *gorm.DB
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
	storage  storage.Storage
	events   *event.Dispatcher
	now      Clock
}

func NewMessageService(
	db *gorm.DB,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	store storage.Storage,
	events *event.Dispatcher,
) *MessageService {
	return &MessageService{
		db:       db,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		storage:  store,
		events:   events,
		now:      utcNow,
	}
}

// SendMessage validates, stores and publishes a message.
// Nothing is written when validation fails; a stored blob is removed if the row cannot be saved.
func (s *MessageService) SendMessage(ctx context.Context, convID, senderID uuid.UUID, in SendInput) (*model.MessagePayload, error) {
	conv, err := loadForParticipant(s.convRepo, convID, senderID)
	if err != nil {
		return nil, err
	}

	msg, err := s.validate(convID, senderID, in)
	if err != nil {
		return nil, err
	}

	if in.Attachment != nil {
		res, err := s.storage.Upload(ctx, in.Attachment.Reader, in.Attachment.Size, attachmentFolder, in.Attachment.FileName, in.Attachment.ContentType)
		if err != nil {
			logger.Error().Err(err).Str("conversation_id", convID.String()).Msg("attachment upload failed")
			return nil, apperror.AttachmentStorage(err)
		}
		msg.Attachment = &res.Key
	}

	now := s.now()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.msgRepo.WithTx(tx).Create(msg); err != nil {
			return err
		}
		return s.convRepo.WithTx(tx).TouchLastMessage(convID, now)
	})
	if err != nil {
		if msg.Attachment != nil {
			if delErr := s.storage.Delete(context.WithoutCancel(ctx), *msg.Attachment); delErr != nil {
				logger.Warn().Err(delErr).Str("key", *msg.Attachment).Msg("failed to remove orphaned attachment")
			}
		}
		return nil, err
	}

	// Reload with sender info
	saved, err := s.msgRepo.FindByID(msg.ID)
	if err != nil {
		return nil, err
	}
	payload := messagePayload(s.storage, saved)

	s.events.Dispatch(ctx, event.Event{
		Name:     event.MessageSent,
		Payload:  model.MessageSentPayload{Message: payload},
		Audience: event.Audience{Conversations: []uuid.UUID{convID}},
	})
	publishUnread(ctx, s.events, s.msgRepo, convID, others(conv.ParticipantIDs(), senderID))

	return &payload, nil
}

// validate builds the unsaved message or returns a ValidationError
func (s *MessageService) validate(convID, senderID uuid.UUID, in SendInput) (*model.Message, error) {
	if in.Type == model.MessageTypeCall {
		return nil, apperror.Validation("call messages are created by call signaling")
	}

	hasBody := in.Body != nil && strings.TrimSpace(*in.Body) != ""
	hasAttachment := in.Attachment != nil
	if hasBody == hasAttachment {
		return nil, apperror.Validation("exactly one of body or attachment is required")
	}

	msg := &model.Message{
		ConversationID: convID,
		UserID:         senderID,
	}

	if hasBody {
		if in.Type != "" && in.Type != model.MessageTypeText {
			return nil, apperror.Validation("a text body requires type text")
		}
		msg.Type = model.MessageTypeText
		msg.Body = in.Body
		return msg, nil
	}

	kind := ClassifyAttachment(in.Attachment.ContentType, in.Attachment.FileName)
	if kind == "" {
		return nil, apperror.Validation("unsupported attachment type")
	}
	// Recorded audio often arrives in a video container; trust the client's voice flag then
	if in.Type == model.MessageTypeVoice && kind == model.MessageTypeVideo {
		kind = model.MessageTypeVoice
	}
	if kind == model.MessageTypeVoice && (in.Duration == nil || *in.Duration <= 0) {
		return nil, apperror.Validation("duration required")
	}

	msg.Type = kind
	msg.Duration = in.Duration
	return msg, nil
}

// ClassifyAttachment maps a MIME type (or the file extension when the MIME type
// is missing or generic) to image, video or voice. Unsupported files yield "".
func ClassifyAttachment(contentType, fileName string) model.MessageType {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = storage.DetectContentType(filepath.Ext(fileName))
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return model.MessageTypeImage
	case strings.HasPrefix(mediaType, "video/"):
		return model.MessageTypeVideo
	case strings.HasPrefix(mediaType, "audio/"):
		return model.MessageTypeVoice
	default:
		return ""
	}
}

// ListMessages returns a page of messages, newest first
func (s *MessageService) ListMessages(ctx context.Context, convID, userID uuid.UUID, before *uuid.UUID, limit int) ([]model.MessagePayload, error) {
	if _, err := loadForParticipant(s.convRepo, convID, userID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	msgs, err := s.msgRepo.GetConversationMessages(convID, before, limit)
	if err != nil {
		return nil, notFound(err, "message")
	}

	out := make([]model.MessagePayload, 0, len(msgs))
	for i := range msgs {
		out = append(out, messagePayload(s.storage, &msgs[i]))
	}
	return out, nil
}

// UpdateMessage replaces the body of a text message. Only the sender may edit.
func (s *MessageService) UpdateMessage(ctx context.Context, msgID, userID uuid.UUID, body string) (*model.MessagePayload, error) {
	msg, err := s.msgRepo.FindByID(msgID)
	if err != nil {
		return nil, notFound(err, "message")
	}
	if msg.UserID != userID {
		return nil, apperror.Authorization("only the sender can edit this message")
	}
	if msg.Type != model.MessageTypeText {
		return nil, apperror.Validation("only text messages can be edited")
	}
	if strings.TrimSpace(body) == "" {
		return nil, apperror.Validation("body is required")
	}

	if err := s.msgRepo.UpdateBody(msgID, body, s.now()); err != nil {
		return nil, err
	}

	updated, err := s.msgRepo.FindByID(msgID)
	if err != nil {
		return nil, err
	}
	payload := messagePayload(s.storage, updated)

	s.events.Dispatch(ctx, event.Event{
		Name:     event.MessageUpdated,
		Payload:  model.MessageSentPayload{Message: payload},
		Audience: event.Audience{Conversations: []uuid.UUID{updated.ConversationID}},
	})
	return &payload, nil
}

// DeleteMessage soft-deletes a message. Only the sender may delete.
func (s *MessageService) DeleteMessage(ctx context.Context, msgID, userID uuid.UUID) error {
	msg, err := s.msgRepo.FindByID(msgID)
	if err != nil {
		return notFound(err, "message")
	}
	if msg.UserID != userID {
		return apperror.Authorization("only the sender can delete this message")
	}

	if err := s.msgRepo.Delete(msgID); err != nil {
		return err
	}

	s.events.Dispatch(ctx, event.Event{
		Name: event.MessageDeleted,
		Payload: model.MessageDeletedPayload{
			MessageID:      msg.ID,
			ConversationID: msg.ConversationID,
		},
		Audience: event.Audience{Conversations: []uuid.UUID{msg.ConversationID}},
	})
	return nil
}

// messagePayload resolves the attachment URL and joins the sender
func messagePayload(store storage.Storage, msg *model.Message) model.MessagePayload {
	url := ""
	if msg.Attachment != nil && store != nil {
		url = store.GetPublicURL(*msg.Attachment)
	}
	return model.NewMessagePayload(msg, url)
}
