package service

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/metrics"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/repository"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"gorm.io/gorm"
)

// Viewer is the authenticated caller of a delivery operation
type Viewer struct {
	UserID uuid.UUID
	Role   model.Role
}

// DeliveryService broadcasts agent locations and links deliveries to conversations.
// Persistence is the source of truth; broadcasts never fail a committed write.
type DeliveryService struct {
	db           *gorm.DB
	deliveryRepo *repository.DeliveryRepository
	userRepo     *repository.UserRepository
	convRepo     *repository.ConversationRepository
	convs        *ConversationService
	events       *event.Dispatcher
	now          Clock
}

func NewDeliveryService(
	db *gorm.DB,
	deliveryRepo *repository.DeliveryRepository,
	userRepo *repository.UserRepository,
	convRepo *repository.ConversationRepository,
	convs *ConversationService,
	events *event.Dispatcher,
) *DeliveryService {
	return &DeliveryService{
		db:           db,
		deliveryRepo: deliveryRepo,
		userRepo:     userRepo,
		convRepo:     convRepo,
		convs:        convs,
		events:       events,
		now:          utcNow,
	}
}

// UpdateAgentLocation stores a GPS fix from the assigned agent and fans it out
func (s *DeliveryService) UpdateAgentLocation(ctx context.Context, deliveryID, agentID uuid.UUID, lat, lng float64) (*model.LocationPayload, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	d, err := s.deliveryRepo.FindByID(deliveryID)
	if err != nil {
		return nil, notFound(err, "delivery")
	}
	if d.DeliveryAgentID == nil || *d.DeliveryAgentID != agentID {
		return nil, apperror.Authorization("only the assigned agent can update this delivery")
	}
	if !d.IsActive() {
		return nil, apperror.Validation("delivery is not active")
	}

	if err := s.applyLocation(d, agentID, lat, lng); err != nil {
		return nil, err
	}
	return s.broadcastLocation(ctx, d, lat, lng), nil
}

// InitializeAllActiveLocations applies one fix to every active delivery of the agent.
// Each delivery commits and broadcasts on its own; a failure is recorded and the rest continue.
func (s *DeliveryService) InitializeAllActiveLocations(ctx context.Context, agentID uuid.UUID, lat, lng float64) (*model.BulkLocationResponse, error) {
	if err := validateCoordinates(lat, lng); err != nil {
		return nil, err
	}

	deliveries, err := s.deliveryRepo.FindActiveByAgent(agentID)
	if err != nil {
		return nil, err
	}

	resp := &model.BulkLocationResponse{
		Updated: []uuid.UUID{},
		Failed:  map[string]string{},
	}
	for i := range deliveries {
		d := &deliveries[i]
		if err := s.applyLocation(d, agentID, lat, lng); err != nil {
			logger.Error().Err(err).
				Str("delivery_id", d.ID.String()).
				Str("agent_id", agentID.String()).
				Msg("failed to initialize delivery location")
			resp.Failed[d.ID.String()] = "failed to save location"
			continue
		}
		s.broadcastLocation(ctx, d, lat, lng)
		resp.Updated = append(resp.Updated, d.ID)
	}
	return resp, nil
}

// applyLocation writes the delivery position, a tracking row and the agent's last position together
func (s *DeliveryService) applyLocation(d *model.Delivery, agentID uuid.UUID, lat, lng float64) error {
	now := s.now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.deliveryRepo.WithTx(tx).UpdateAgentLocation(d.ID, lat, lng, now); err != nil {
			return err
		}
		if err := s.deliveryRepo.WithTx(tx).AppendTracking(&model.DeliveryTracking{
			DeliveryID: d.ID,
			Status:     d.Status,
			Notes:      "agent location update",
			Lat:        &lat,
			Lng:        &lng,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		return s.userRepo.WithTx(tx).UpdateLocation(agentID, lat, lng, now)
	})
	if err != nil {
		metrics.LocationUpdates.WithLabelValues("failed").Inc()
		return err
	}
	metrics.LocationUpdates.WithLabelValues("ok").Inc()

	d.AgentLat = &lat
	d.AgentLng = &lng
	return nil
}

func (s *DeliveryService) broadcastLocation(ctx context.Context, d *model.Delivery, lat, lng float64) *model.LocationPayload {
	payload := model.LocationPayload{
		DeliveryID: d.ID,
		Delivery:   d.Payload(),
		Lat:        lat,
		Lng:        lng,
	}
	s.events.Dispatch(ctx, event.Event{
		Name:    event.DeliveryAgentLocationUpdated,
		Payload: payload,
		Audience: event.Audience{
			Deliveries: []uuid.UUID{d.ID},
			Users:      []uuid.UUID{d.Order.UserID},
			Fleet:      true,
		},
	})
	return &payload
}

// StartDeliveryConversation links the delivery to the customer/agent conversation,
// creating it if the pair has never talked.
func (s *DeliveryService) StartDeliveryConversation(ctx context.Context, deliveryID uuid.UUID, v Viewer) (*model.Conversation, error) {
	d, err := s.deliveryRepo.FindByID(deliveryID)
	if err != nil {
		return nil, notFound(err, "delivery")
	}
	if !canView(d, v) {
		return nil, apperror.Authorization("you cannot access this delivery")
	}
	if d.DeliveryAgentID == nil {
		return nil, apperror.Validation("delivery has no assigned agent")
	}
	customerID, agentID := d.Order.UserID, *d.DeliveryAgentID

	conv, _, err := s.convs.FindOrCreate(ctx, customerID, agentID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.convRepo.WithTx(tx).SetDeliveryIfEmpty(conv.ID, d.ID); err != nil {
			return err
		}
		return s.deliveryRepo.WithTx(tx).SetConversation(d.ID, conv.ID)
	})
	if err != nil {
		return nil, err
	}

	if conv, err = s.convRepo.FindByID(conv.ID); err != nil {
		return nil, err
	}
	d.ConversationID = &conv.ID

	s.events.Dispatch(ctx, event.Event{
		Name: event.DeliveryAssigned,
		Payload: model.DeliveryAssignedPayload{
			Delivery:     d.Payload(),
			Conversation: conv,
		},
		Audience: event.Audience{Users: []uuid.UUID{customerID, agentID}},
	})
	return conv, nil
}

// RecordStatus is the fulfillment trigger for a status change: it stores the status,
// appends a tracking row and notifies the people following the delivery.
func (s *DeliveryService) RecordStatus(ctx context.Context, deliveryID uuid.UUID, status model.DeliveryStatus, notes string) (*model.DeliveryTracking, error) {
	if !validStatus(status) {
		return nil, apperror.Validation("unknown delivery status")
	}
	d, err := s.deliveryRepo.FindByID(deliveryID)
	if err != nil {
		return nil, notFound(err, "delivery")
	}

	tracking := &model.DeliveryTracking{
		DeliveryID: d.ID,
		Status:     status,
		Notes:      notes,
		Lat:        d.AgentLat,
		Lng:        d.AgentLng,
		CreatedAt:  s.now(),
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.deliveryRepo.WithTx(tx).UpdateStatus(d.ID, status); err != nil {
			return err
		}
		return s.deliveryRepo.WithTx(tx).AppendTracking(tracking)
	})
	if err != nil {
		return nil, err
	}
	d.Status = status

	users := []uuid.UUID{d.Order.UserID}
	if d.DeliveryAgentID != nil {
		users = append(users, *d.DeliveryAgentID)
	}
	s.events.Dispatch(ctx, event.Event{
		Name: event.DeliveryStatusUpdated,
		Payload: model.DeliveryStatusPayload{
			Delivery: d.Payload(),
			Tracking: *tracking,
		},
		Audience: event.Audience{
			Users:      users,
			Deliveries: []uuid.UUID{d.ID},
			Fleet:      true,
		},
	})
	return tracking, nil
}

// TrackingHistory returns the audit trail to the owner, the agent or an admin
func (s *DeliveryService) TrackingHistory(ctx context.Context, deliveryID uuid.UUID, v Viewer) ([]model.DeliveryTracking, error) {
	d, err := s.deliveryRepo.FindByID(deliveryID)
	if err != nil {
		return nil, notFound(err, "delivery")
	}
	if !canView(d, v) {
		return nil, apperror.Authorization("you cannot access this delivery")
	}
	return s.deliveryRepo.GetTracking(deliveryID)
}

// CanView reports whether v may follow the delivery
func (s *DeliveryService) CanView(deliveryID uuid.UUID, v Viewer) (bool, error) {
	d, err := s.deliveryRepo.FindByID(deliveryID)
	if err != nil {
		return false, notFound(err, "delivery")
	}
	return canView(d, v), nil
}

func canView(d *model.Delivery, v Viewer) bool {
	if v.Role == model.RoleAdmin || d.Order.UserID == v.UserID {
		return true
	}
	return d.DeliveryAgentID != nil && *d.DeliveryAgentID == v.UserID
}

func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return apperror.Validation("coordinates out of range")
	}
	return nil
}

func validStatus(status model.DeliveryStatus) bool {
	switch status {
	case model.DeliveryStatusPending,
		model.DeliveryStatusAssigned,
		model.DeliveryStatusPickedUp,
		model.DeliveryStatusOutForDelivery,
		model.DeliveryStatusInTransit,
		model.DeliveryStatusDelivered,
		model.DeliveryStatusCancelled:
		return true
	}
	return false
}
