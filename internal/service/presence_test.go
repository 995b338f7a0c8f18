package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/event/eventtest"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOnline_Window(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Peek()

	seen := now.Add(-5 * time.Minute)
	assert.True(t, f.presence.IsOnline(&model.User{LastSeenAt: &seen}))

	stale := now.Add(-5*time.Minute - time.Second)
	assert.False(t, f.presence.IsOnline(&model.User{LastSeenAt: &stale}))

	assert.False(t, f.presence.IsOnline(&model.User{}))
}

func TestTouch_EmitsOnlyOnFlip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "a", model.RoleCustomer)
	b := testutil.CreateUser(t, f.db, "b", model.RoleDelivery)
	conv, _, err := f.convs.FindOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)

	f.presence.Touch(ctx, a.ID)
	f.presence.Touch(ctx, a.ID)

	flips := f.rec.Named(event.UserPresence)
	channels := []string{}
	for _, env := range flips {
		channels = append(channels, env.Channel)
	}
	assert.ElementsMatch(t, []string{event.PresenceChannel(a.ID), event.ChatChannel(conv.ID)}, channels)

	var payload model.PresenceResponse
	require.NoError(t, eventtest.Decode(flips[0], &payload))
	assert.Equal(t, a.ID, payload.UserID)
	assert.True(t, payload.IsOnline)
	require.NotNil(t, payload.LastSeen)

	status, err := f.presence.Status(a.ID)
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
}

func TestTouch_AfterLongIdleFlipsAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "a", model.RoleCustomer)

	f.presence.Touch(ctx, a.ID)
	f.clock.Advance(10 * time.Minute)
	f.presence.Touch(ctx, a.ID)

	assert.Len(t, f.rec.Named(event.UserPresence), 2)
}

func TestSetOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "a", model.RoleCustomer)

	f.presence.Touch(ctx, a.ID)
	f.rec.Reset()

	f.presence.SetOffline(ctx, a.ID)
	f.presence.SetOffline(ctx, a.ID)

	flips := f.rec.Named(event.UserPresence)
	require.Len(t, flips, 1)
	var payload model.PresenceResponse
	require.NoError(t, eventtest.Decode(flips[0], &payload))
	assert.False(t, payload.IsOnline)

	user, err := f.userRepo.FindByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOffline, user.OnlineStatus)
}

func TestSweepStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	idle := testutil.CreateUser(t, f.db, "idle", model.RoleCustomer)
	active := testutil.CreateUser(t, f.db, "active", model.RoleCustomer)

	f.presence.Touch(ctx, idle.ID)
	f.clock.Advance(4 * time.Minute)
	f.presence.Touch(ctx, active.ID)
	f.clock.Advance(2 * time.Minute)
	f.rec.Reset()

	assert.Equal(t, 1, f.presence.SweepStale(ctx))
	assert.Equal(t, 0, f.presence.SweepStale(ctx))

	flips := f.rec.OnChannel(event.PresenceChannel(idle.ID))
	require.Len(t, flips, 1)
	assert.Empty(t, f.rec.OnChannel(event.PresenceChannel(active.ID)))

	user, err := f.userRepo.FindByID(active.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnline, user.OnlineStatus)
}

func TestStatus_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.presence.Status(uuid.New())
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
