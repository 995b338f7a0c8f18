package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/apperror"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/event/eventtest"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreate_TypeFromRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := testutil.CreateUser(t, f.db, "lan", model.RoleCustomer)
	agent := testutil.CreateUser(t, f.db, "minh", model.RoleDelivery)
	other := testutil.CreateUser(t, f.db, "hoa", model.RoleCustomer)

	conv, created, err := f.convs.FindOrCreate(ctx, customer.ID, agent.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.ConversationCustomerToDelivery, conv.Type)
	assert.ElementsMatch(t, []uuid.UUID{customer.ID, agent.ID}, conv.ParticipantIDs())

	// Reverse order hits the same key
	again, created, err := f.convs.FindOrCreate(ctx, agent.ID, customer.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, again.ID)

	fromAgent, _, err := f.convs.FindOrCreate(ctx, testutil.CreateUser(t, f.db, "tuan", model.RoleDelivery).ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationDeliveryToCustomer, fromAgent.Type)

	c2c, _, err := f.convs.FindOrCreate(ctx, customer.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationCustomerToCustomer, c2c.Type)
}

func TestFindOrCreate_RejectsSelf(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "lan", model.RoleCustomer)

	_, _, err := f.convs.FindOrCreate(context.Background(), u.ID, u.ID)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestFindOrCreate_UnknownUser(t *testing.T) {
	f := newFixture(t)
	u := testutil.CreateUser(t, f.db, "lan", model.RoleCustomer)

	_, _, err := f.convs.FindOrCreate(context.Background(), u.ID, uuid.New())
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestFindOrCreate_ConcurrentCallersShareOneConversation(t *testing.T) {
	f := newFixture(t)
	a := testutil.CreateUser(t, f.db, "a", model.RoleCustomer)
	b := testutil.CreateUser(t, f.db, "b", model.RoleDelivery)

	const callers = 8
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			initiator, other := a.ID, b.ID
			if i%2 == 1 {
				initiator, other = other, initiator
			}
			conv, _, err := f.convs.FindOrCreate(context.Background(), initiator, other)
			errs[i] = err
			if conv != nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var convCount, participantCount int64
	f.db.Model(&model.Conversation{}).Count(&convCount)
	f.db.Model(&model.ConversationParticipant{}).Count(&participantCount)
	assert.Equal(t, int64(1), convCount)
	assert.Equal(t, int64(2), participantCount)
}

func TestUnreadCount_ListAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "a", model.RoleCustomer)
	b := testutil.CreateUser(t, f.db, "b", model.RoleDelivery)
	conv, _, err := f.convs.FindOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)

	// A reads the empty conversation, then B sends three messages
	require.NoError(t, f.convs.MarkRead(ctx, conv.ID, a.ID))
	for _, body := range []string{"on my way", "at the gate", "here"} {
		_, err := f.msgs.SendMessage(ctx, conv.ID, b.ID, SendInput{Body: strPtr(body)})
		require.NoError(t, err)
	}

	list, err := f.convs.ListForUser(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "here", *list[0].LastMessage.Body)

	// Own messages never count
	bList, err := f.convs.ListForUser(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bList[0].UnreadCount)

	f.rec.Reset()
	require.NoError(t, f.convs.MarkRead(ctx, conv.ID, a.ID))

	list, err = f.convs.ListForUser(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), list[0].UnreadCount)

	var readCount int64
	f.db.Model(&model.Message{}).Where("read_at IS NOT NULL").Count(&readCount)
	assert.Equal(t, int64(3), readCount)

	read := f.rec.Named(event.MessageRead)
	require.Len(t, read, 1)
	assert.Equal(t, event.ChatChannel(conv.ID), read[0].Channel)

	unread := f.rec.Named(event.UnreadUpdated)
	require.Len(t, unread, 1)
	var payload model.UnreadUpdatedPayload
	require.NoError(t, eventtest.Decode(unread[0], &payload))
	assert.Equal(t, b.ID, payload.UserID)
}

func TestListForUser_OrdersByLatestMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	me := testutil.CreateUser(t, f.db, "me", model.RoleCustomer)
	x := testutil.CreateUser(t, f.db, "x", model.RoleCustomer)
	y := testutil.CreateUser(t, f.db, "y", model.RoleCustomer)

	withX, _, err := f.convs.FindOrCreate(ctx, me.ID, x.ID)
	require.NoError(t, err)
	withY, _, err := f.convs.FindOrCreate(ctx, me.ID, y.ID)
	require.NoError(t, err)

	_, err = f.msgs.SendMessage(ctx, withY.ID, y.ID, SendInput{Body: strPtr("first")})
	require.NoError(t, err)
	_, err = f.msgs.SendMessage(ctx, withX.ID, x.ID, SendInput{Body: strPtr("second")})
	require.NoError(t, err)

	list, err := f.convs.ListForUser(ctx, me.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, withX.ID, list[0].ID)
	assert.Equal(t, withY.ID, list[1].ID)
}

func TestConversationAccessRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "a", model.RoleCustomer)
	b := testutil.CreateUser(t, f.db, "b", model.RoleCustomer)
	outsider := testutil.CreateUser(t, f.db, "c", model.RoleCustomer)
	conv, _, err := f.convs.FindOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = f.convs.Get(ctx, conv.ID, outsider.ID)
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	err = f.convs.MarkRead(ctx, conv.ID, outsider.ID)
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	_, err = f.convs.Get(ctx, uuid.New(), a.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestTyping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "a", model.RoleCustomer)
	b := testutil.CreateUser(t, f.db, "b", model.RoleCustomer)
	conv, _, err := f.convs.FindOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, f.convs.Typing(ctx, conv.ID, a.ID, true))
	require.NoError(t, f.convs.Typing(ctx, conv.ID, a.ID, false))

	typing := f.rec.Named(event.Typing)
	require.Len(t, typing, 1)
	var payload model.TypingPayload
	require.NoError(t, eventtest.Decode(typing[0], &payload))
	assert.Equal(t, "a", payload.User.Name)
	assert.Len(t, f.rec.Named(event.StopTyping), 1)
}

func TestGetOrCreateDirect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "a", model.RoleCustomer)
	b := testutil.CreateUser(t, f.db, "b", model.RoleDelivery)

	first, err := f.convs.GetOrCreateDirect(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	second, err := f.convs.GetOrCreateDirect(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
}
