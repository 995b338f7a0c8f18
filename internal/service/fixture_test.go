package service

import (
	"testing"
	"time"

	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/event/eventtest"
	"github.com/quocanhngo/delivertalk/internal/repository"
	"github.com/quocanhngo/delivertalk/internal/testutil"
	"github.com/quocanhngo/delivertalk/pkg/storage"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	rec   *eventtest.Recorder
	store *storage.MemoryStorage
	clock *testutil.Clock

	userRepo     *repository.UserRepository
	convRepo     *repository.ConversationRepository
	msgRepo      *repository.MessageRepository
	callRepo     *repository.CallRepository
	deliveryRepo *repository.DeliveryRepository

	presence   *PresenceTracker
	convs      *ConversationService
	msgs       *MessageService
	calls      *CallService
	deliveries *DeliveryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:    testutil.SetupTestDB(t),
		rec:   &eventtest.Recorder{},
		store: storage.NewMemoryStorage("http://cdn.test"),
		clock: testutil.NewClock(),
	}
	events := event.NewDispatcher(f.rec, event.BreakerConfig{
		FailureThreshold: 1000,
		OpenTimeout:      time.Second,
		PublishTimeout:   time.Second,
	})

	f.userRepo = repository.NewUserRepository(f.db)
	f.convRepo = repository.NewConversationRepository(f.db)
	f.msgRepo = repository.NewMessageRepository(f.db)
	f.callRepo = repository.NewCallRepository(f.db)
	f.deliveryRepo = repository.NewDeliveryRepository(f.db)

	f.presence = NewPresenceTracker(f.userRepo, f.convRepo, events, 5*time.Minute)
	f.convs = NewConversationService(f.db, f.convRepo, f.msgRepo, f.userRepo, events)
	f.msgs = NewMessageService(f.db, f.convRepo, f.msgRepo, f.store, events)
	f.calls = NewCallService(f.db, f.convRepo, f.msgRepo, f.callRepo, f.store, events, nil, 60*time.Second)
	f.deliveries = NewDeliveryService(f.db, f.deliveryRepo, f.userRepo, f.convRepo, f.convs, events)

	f.presence.now = f.clock.Now
	f.convs.now = f.clock.Now
	f.msgs.now = f.clock.Now
	f.calls.now = f.clock.Now
	f.deliveries.now = f.clock.Now
	return f
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }
