package app

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"shift_attendance_bot/internal/domain/attendance"
	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/roster"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageContextFor(t *testing.T, f *fixture, workerID, shiftID string) *stageContext {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	policy, err := f.store.GetPolicy(context.Background(), "default")
	require.NoError(t, err)
	rec := &attendance.Record{ID: "rec-x", WorkerID: workerID, ShiftID: shiftID, ShiftDate: attendance.DateOf(t0)}
	return loadStageContext(context.Background(), f.store, rec, policy, nil, logrus.NewEntry(l))
}

func TestResolve_FixedRosterSkipsUnavailableStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutWorker(&roster.Worker{ID: "sup-2", FullName: "Off Duty", IsActive: false})
	f.store.PutPolicy(&escalation.Policy{
		ID:       "default",
		StaffIDs: []string{"sup-1", "sup-2", "sup-missing"},
		Stages:   []escalation.Stage{{Channel: escalation.ChannelChat, RecipientRule: escalation.RecipientFixedRoster}},
	})
	sc := stageContextFor(t, f, "w-1", "s-1")

	targets, err := f.escalation.resolver.resolve(ctx, escalation.RecipientFixedRoster, sc)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "sup-1", targets[0].recipient.WorkerID)
	assert.Equal(t, roleStaff, targets[0].role)

	sc.policy.StaffIDs = []string{"sup-2"}
	_, err = f.escalation.resolver.resolve(ctx, escalation.RecipientFixedRoster, sc)
	assert.ErrorIs(t, err, ErrRecipientUnresolved)
}

func TestResolve_NextShiftOccupant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sc := stageContextFor(t, f, "w-1", "s-1")

	targets, err := f.escalation.resolver.resolve(ctx, escalation.RecipientNextShiftOccupant, sc)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "w-2", targets[0].recipient.WorkerID)
	assert.Equal(t, "+15550102", targets[0].recipient.Phone)
	assert.Equal(t, roleCover, targets[0].role)

	// The worker on the last shift of the slot has nobody to hand over to.
	sc = stageContextFor(t, f, "w-2", "s-2")
	_, err = f.escalation.resolver.resolve(ctx, escalation.RecipientNextShiftOccupant, sc)
	assert.ErrorIs(t, err, ErrRecipientUnresolved)
	assert.ErrorIs(t, err, roster.ErrNoOccupant)
}

func TestResolve_NextShiftOccupantExcludesSameWorker(t *testing.T) {
	f := newFixture(t)
	f.store.PutShift(&roster.Shift{
		ID: "s-2", OrganizationID: "org-1", SlotID: "slot-A", WorkerIDs: []string{"w-1"},
		ShiftDate: t0, StartTime: at(480), Status: roster.ShiftScheduled,
	})
	sc := stageContextFor(t, f, "w-1", "s-1")

	_, err := f.escalation.resolver.resolve(context.Background(), escalation.RecipientNextShiftOccupant, sc)
	assert.ErrorIs(t, err, roster.ErrNoOccupant)
}

func TestResolve_WorkerSelfAndUnknownRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sc := stageContextFor(t, f, "w-1", "s-1")
	targets, err := f.escalation.resolver.resolve(ctx, escalation.RecipientWorkerSelf, sc)
	require.NoError(t, err)
	assert.Equal(t, int64(101), targets[0].recipient.TelegramID)
	assert.Equal(t, roleWorker, targets[0].role)

	_, err = f.escalation.resolver.resolve(ctx, escalation.RecipientRule("everyone"), sc)
	assert.ErrorIs(t, err, ErrRecipientUnresolved)

	sc = stageContextFor(t, f, "ghost", "s-1")
	_, err = f.escalation.resolver.resolve(ctx, escalation.RecipientWorkerSelf, sc)
	assert.ErrorIs(t, err, ErrRecipientUnresolved)
}

func TestComposeMessage(t *testing.T) {
	f := newFixture(t)
	sc := stageContextFor(t, f, "w-1", "s-1")
	worker := target{recipient: recipientFromWorker(sc.worker), role: roleWorker}
	staff := target{recipient: recipientFromWorker(&roster.Worker{ID: "sup-1", FullName: "Sam Boss", Phone: sql.NullString{String: "+1", Valid: true}}), role: roleStaff}

	initial := composeMessage(sc, 0, worker)
	assert.True(t, initial.Confirmable)
	assert.Equal(t, "rec-x", initial.RecordID)
	assert.Contains(t, initial.Text, "Hi Ann Lee!")
	assert.Contains(t, initial.Text, "at Mon 02 Mar 08:00")

	reminder := composeMessage(sc, 1, worker)
	assert.Contains(t, reminder.Text, "Reminder for Ann Lee")

	toStaff := composeMessage(sc, 2, staff)
	assert.False(t, toStaff.Confirmable)
	assert.Contains(t, toStaff.Text, "Ann Lee has not confirmed")
	assert.Contains(t, toStaff.Text, "escalation stage 2")

	sc.shift, sc.worker = nil, nil
	fallback := composeMessage(sc, 2, staff)
	assert.Contains(t, fallback.Text, "Worker w-1 has not confirmed presence for the shift starting on 2026-03-02")
}
