package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionPolicy(t *testing.T) {
	f := newFixture(t)
	policy := NewSubscriptionPolicy(f.convs, f.deliveries)

	customer := testutil.CreateUser(t, f.db, "lan", model.RoleCustomer)
	agent := testutil.CreateUser(t, f.db, "minh", model.RoleDelivery)
	stranger := testutil.CreateUser(t, f.db, "hoa", model.RoleCustomer)
	admin := testutil.CreateUser(t, f.db, "root", model.RoleAdmin)
	d := testutil.CreateDelivery(t, f.db, customer.ID, &agent.ID, model.DeliveryStatusInTransit)
	conv, _, err := f.convs.FindOrCreate(context.Background(), customer.ID, agent.ID)
	require.NoError(t, err)

	as := func(u *model.User) Viewer { return Viewer{UserID: u.ID, Role: u.Role} }

	tests := []struct {
		name    string
		channel string
		viewer  Viewer
		kind    apperror.Kind // empty means allowed
	}{
		{"participant joins chat", event.ChatChannel(conv.ID), as(customer), ""},
		{"stranger joins chat", event.ChatChannel(conv.ID), as(stranger), apperror.KindAuthorization},
		{"own private channel", event.UserChannel(stranger.ID), as(stranger), ""},
		{"someone else's private channel", event.UserChannel(customer.ID), as(stranger), apperror.KindAuthorization},
		{"presence is open", event.PresenceChannel(agent.ID), as(stranger), ""},
		{"owner follows delivery", event.DeliveryChannel(d.ID), as(customer), ""},
		{"agent follows delivery", event.DeliveryChannel(d.ID), as(agent), ""},
		{"admin follows delivery", event.DeliveryChannel(d.ID), as(admin), ""},
		{"stranger follows delivery", event.DeliveryChannel(d.ID), as(stranger), apperror.KindAuthorization},
		{"unknown delivery", event.DeliveryChannel(uuid.New()), as(admin), apperror.KindNotFound},
		{"admin fleet", event.FleetChannel, as(admin), ""},
		{"agent fleet", event.FleetChannel, as(agent), apperror.KindAuthorization},
		{"garbage", "orders.42", as(admin), apperror.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Authorize(tt.channel, tt.viewer)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.Is(err, tt.kind), "got %v", err)
		})
	}
}
