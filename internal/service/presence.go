package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/metrics"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/repository"
	"github.com/quocanhngo/delivertalk/pkg/logger"
)

// PresenceTracker derives online status from last activity.
// A user is online while now - last_seen_at <= window.
type PresenceTracker struct {
	userRepo *repository.UserRepository
	convRepo *repository.ConversationRepository
	events   *event.Dispatcher
	window   time.Duration
	now      Clock
}

func NewPresenceTracker(
	userRepo *repository.UserRepository,
	convRepo *repository.ConversationRepository,
	events *event.Dispatcher,
	window time.Duration,
) *PresenceTracker {
	return &PresenceTracker{
		userRepo: userRepo,
		convRepo: convRepo,
		events:   events,
		window:   window,
		now:      utcNow,
	}
}

// IsOnline reports whether user was active within the online window
func (t *PresenceTracker) IsOnline(user *model.User) bool {
	if user.LastSeenAt == nil {
		return false
	}
	return t.now().Sub(*user.LastSeenAt) <= t.window
}

// Status returns the presence read model for a user
func (t *PresenceTracker) Status(userID uuid.UUID) (*model.PresenceResponse, error) {
	user, err := t.userRepo.FindByID(userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &model.PresenceResponse{
		UserID:   user.ID,
		IsOnline: t.IsOnline(user),
		LastSeen: user.LastSeenAt,
	}, nil
}

// Touch records activity for userID. Failures are logged, never returned.
func (t *PresenceTracker) Touch(ctx context.Context, userID uuid.UUID) {
	now := t.now()
	flipped, err := t.userRepo.MarkOnline(userID, now, now.Add(-t.window))
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID.String()).Msg("presence touch failed")
		return
	}
	if flipped {
		t.emit(ctx, userID, true, &now)
	}
}

// SetOffline marks userID offline, stamping last seen as now
func (t *PresenceTracker) SetOffline(ctx context.Context, userID uuid.UUID) {
	now := t.now()
	flipped, err := t.userRepo.MarkOffline(userID, &now)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID.String()).Msg("presence offline failed")
		return
	}
	if flipped {
		t.emit(ctx, userID, false, &now)
	}
}

// SweepStale flips users whose activity fell out of the window and returns how many flipped
func (t *PresenceTracker) SweepStale(ctx context.Context) int {
	ids, err := t.userRepo.FindStaleOnline(t.now().Add(-t.window))
	if err != nil {
		logger.Error().Err(err).Msg("presence sweep query failed")
		return 0
	}

	flippedCount := 0
	for _, id := range ids {
		flipped, err := t.userRepo.MarkOffline(id, nil)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", id.String()).Msg("presence sweep update failed")
			continue
		}
		if !flipped {
			continue
		}
		flippedCount++

		var lastSeen *time.Time
		if user, err := t.userRepo.FindByID(id); err == nil {
			lastSeen = user.LastSeenAt
		}
		t.emit(ctx, id, false, lastSeen)
	}
	return flippedCount
}

// Run sweeps stale users every interval until ctx is done
func (t *PresenceTracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.SweepStale(ctx); n > 0 {
				logger.Debug().Int("count", n).Msg("presence sweep flipped users offline")
			}
		}
	}
}

// emit publishes a flip to the user's presence channel and every conversation they are in
func (t *PresenceTracker) emit(ctx context.Context, userID uuid.UUID, online bool, lastSeen *time.Time) {
	status := model.StatusOffline
	if online {
		status = model.StatusOnline
	}
	metrics.PresenceFlips.WithLabelValues(string(status)).Inc()

	convIDs, err := t.convRepo.GetConversationIDsForUser(userID)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to load conversations for presence fan-out")
	}

	t.events.Dispatch(ctx, event.Event{
		Name: event.UserPresence,
		Payload: model.PresenceResponse{
			UserID:   userID,
			IsOnline: online,
			LastSeen: lastSeen,
		},
		Audience: event.Audience{
			PresenceOf:    []uuid.UUID{userID},
			Conversations: convIDs,
		},
	})
}
