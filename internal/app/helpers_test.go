package app

import (
	"context"
	"database/sql"
	"io"
	"sync"
	"testing"
	"time"

	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/notification"
	"shift_attendance_bot/internal/domain/roster"
	"shift_attendance_bot/internal/infra/memory"

	"github.com/sirupsen/logrus"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func sqlTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

type sentNotification struct {
	channel escalation.Channel
	to      notification.Recipient
	msg     notification.Message
}

// fakeGateway records every attempt. failOn makes a channel fail; panicOn
// panics for a matching message.
type fakeGateway struct {
	mu      sync.Mutex
	sent    []sentNotification
	failOn  map[escalation.Channel]error
	panicOn func(notification.Message) bool
}

func (g *fakeGateway) Send(_ context.Context, channel escalation.Channel, to notification.Recipient, msg notification.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.panicOn != nil && g.panicOn(msg) {
		panic("gateway exploded")
	}
	g.sent = append(g.sent, sentNotification{channel: channel, to: to, msg: msg})
	if err := g.failOn[channel]; err != nil {
		return err
	}
	return nil
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func (g *fakeGateway) last() sentNotification {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sent[len(g.sent)-1]
}

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// flakyChains fails the next failCreate CreateChain calls.
type flakyChains struct {
	*memory.Store
	failCreate int
}

func (c *flakyChains) CreateChain(ctx context.Context, chain *escalation.Chain) error {
	if c.failCreate > 0 {
		c.failCreate--
		return context.DeadlineExceeded
	}
	return c.Store.CreateChain(ctx, chain)
}

// hookedRecords runs a callback once around the next MarkEscalating call.
type hookedRecords struct {
	*memory.Store
	beforeMark func()
	afterMark  func()
}

func (r *hookedRecords) MarkEscalating(ctx context.Context, recordID string) error {
	if hook := r.beforeMark; hook != nil {
		r.beforeMark = nil
		hook()
	}
	err := r.Store.MarkEscalating(ctx, recordID)
	if hook := r.afterMark; hook != nil {
		r.afterMark = nil
		hook()
	}
	return err
}

type fixture struct {
	store      *memory.Store
	gateway    *fakeGateway
	trigger    *TriggerService
	escalation *EscalationService
	response   *ResponseService
	admin      *AdminService
}

const adminTelegramID = int64(9000)

// newFixture seeds one organisation: worker w-1 on shift s-1 starting at t0,
// staff sup-1 on the fixed roster, and w-2 on the next shift of the slot.
// The default policy waits 5, 10 and 15 minutes across chat, sms and call.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := discardLog()

	store := memory.NewStore()
	store.PutPolicy(&escalation.Policy{
		ID:             "default",
		OrganizationID: "org-1",
		Name:           "Standard",
		StaffIDs:       []string{"sup-1"},
		Stages: []escalation.Stage{
			{StageNumber: 0, WaitMinutes: 5, Channel: escalation.ChannelChat, RecipientRule: escalation.RecipientWorkerSelf},
			{StageNumber: 1, WaitMinutes: 10, Channel: escalation.ChannelSMS, RecipientRule: escalation.RecipientFixedRoster},
			{StageNumber: 2, WaitMinutes: 15, Channel: escalation.ChannelCall, RecipientRule: escalation.RecipientNextShiftOccupant},
		},
	})
	store.PutWorker(&roster.Worker{
		ID: "w-1", OrganizationID: "org-1", FullName: "Ann Lee", IsActive: true,
		TelegramID: sql.NullInt64{Int64: 101, Valid: true},
		Phone:      sql.NullString{String: "+15550101", Valid: true},
	})
	store.PutWorker(&roster.Worker{
		ID: "w-2", OrganizationID: "org-1", FullName: "Bob Ray", IsActive: true,
		TelegramID: sql.NullInt64{Int64: 102, Valid: true},
		Phone:      sql.NullString{String: "+15550102", Valid: true},
	})
	store.PutWorker(&roster.Worker{
		ID: "sup-1", OrganizationID: "org-1", FullName: "Sam Boss", IsActive: true,
		TelegramID: sql.NullInt64{Int64: 201, Valid: true},
		Phone:      sql.NullString{String: "+15550201", Valid: true},
	})
	store.PutShift(&roster.Shift{
		ID: "s-1", OrganizationID: "org-1", SlotID: "slot-A", WorkerIDs: []string{"w-1"},
		ShiftDate: t0, StartTime: t0, EndTime: t0.Add(8 * time.Hour),
		Status: roster.ShiftScheduled, EscalationPolicyID: "default",
	})
	store.PutShift(&roster.Shift{
		ID: "s-2", OrganizationID: "org-1", SlotID: "slot-A", WorkerIDs: []string{"w-2"},
		ShiftDate: t0, StartTime: t0.Add(8 * time.Hour), EndTime: t0.Add(16 * time.Hour),
		Status: roster.ShiftScheduled, EscalationPolicyID: "default",
	})

	gw := &fakeGateway{failOn: map[escalation.Channel]error{}}
	resolver := NewRecipientResolver(store, log)
	dispatcher := NewDispatcher(gw, store, log)

	return &fixture{
		store:      store,
		gateway:    gw,
		trigger:    NewTriggerService(store, store, store, store, resolver, dispatcher, 5*time.Minute, "", log),
		escalation: NewEscalationService(store, store, store, store, resolver, dispatcher, log),
		response:   NewResponseService(store, store, store, 5*time.Minute, log),
		admin:      NewAdminService(store, store, store, adminTelegramID, log),
	}
}

// triggered runs the trigger sweep at t0 and returns the single chain.
func (f *fixture) triggered(t *testing.T) *escalation.Chain {
	t.Helper()
	if _, err := f.trigger.RunSweep(context.Background(), t0); err != nil {
		t.Fatalf("trigger sweep: %v", err)
	}
	chains := f.store.Chains()
	if len(chains) != 1 {
		t.Fatalf("expected 1 chain, got %d", len(chains))
	}
	return chains[0]
}

func (f *fixture) chain(t *testing.T, id string) *escalation.Chain {
	t.Helper()
	c, err := f.store.GetChainByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get chain %s: %v", id, err)
	}
	return c
}
