package app

import (
	"context"
	"testing"
	"time"

	"shift_attendance_bot/internal/domain/attendance"
	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/roster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmPresence_StopsEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chain := f.triggered(t)

	_, err := f.escalation.RunSweep(ctx, at(5))
	require.NoError(t, err)
	sent := f.gateway.count()

	res, err := f.response.ConfirmPresence(ctx, "w-1", "s-1", at(12))
	require.NoError(t, err)
	assert.False(t, res.AlreadyConfirmed)
	assert.True(t, res.ChainCompleted)
	assert.Equal(t, at(12), res.Record.ResponseTime.Time)

	c := f.chain(t, chain.ID)
	assert.Equal(t, escalation.ChainCompleted, c.Status)
	assert.Equal(t, escalation.OutcomeResolvedByResponse, c.Outcome)

	rec, err := f.store.GetRecordByID(ctx, chain.RecordID)
	require.NoError(t, err)
	assert.Equal(t, attendance.ConfirmationConfirmed, rec.ConfirmationStatus)
	assert.Equal(t, attendance.EscalationResolved, rec.EscalationStatus)

	// No stage-2 notification at t=15.
	report, err := f.escalation.RunSweep(ctx, at(15))
	require.NoError(t, err)
	assert.Zero(t, report.Due)
	assert.Equal(t, sent, f.gateway.count())
}

func TestConfirmPresence_BeforeAnyEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chain := f.triggered(t)

	_, err := f.response.ConfirmPresence(ctx, "w-1", "s-1", at(2))
	require.NoError(t, err)

	rec, err := f.store.GetRecordByID(ctx, chain.RecordID)
	require.NoError(t, err)
	assert.Equal(t, attendance.EscalationNone, rec.EscalationStatus)
	assert.Equal(t, escalation.OutcomeResolvedByResponse, f.chain(t, chain.ID).Outcome)
}

func TestConfirmPresence_SetsResponseTimeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.triggered(t)

	_, err := f.response.ConfirmPresence(ctx, "w-1", "s-1", at(2))
	require.NoError(t, err)

	res, err := f.response.ConfirmPresence(ctx, "w-1", "s-1", at(9))
	require.NoError(t, err)
	assert.True(t, res.AlreadyConfirmed)
	assert.False(t, res.ChainCompleted)

	rec := f.store.Records()[0]
	assert.Equal(t, at(2), rec.ResponseTime.Time)
}

func TestConfirmPresence_NoRecord(t *testing.T) {
	f := newFixture(t)
	_, err := f.response.ConfirmPresence(context.Background(), "w-1", "s-1", t0)
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
}

func TestConfirmRecord_ChecksSender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chain := f.triggered(t)

	_, err := f.response.ConfirmRecord(ctx, chain.RecordID, 555, at(1))
	assert.ErrorIs(t, err, ErrUnknownWorker)

	_, err = f.response.ConfirmRecord(ctx, chain.RecordID, 102, at(1))
	assert.ErrorIs(t, err, ErrNotRecordOwner)

	_, err = f.response.ConfirmRecord(ctx, "missing", 101, at(1))
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)

	res, err := f.response.ConfirmRecord(ctx, chain.RecordID, 101, at(1))
	require.NoError(t, err)
	assert.True(t, res.ChainCompleted)
}

func TestConfirmToday_ConfirmsEveryShiftOfTheDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutShift(&roster.Shift{
		ID: "s-early", OrganizationID: "org-1", SlotID: "slot-B", WorkerIDs: []string{"w-1"},
		ShiftDate: t0, StartTime: t0, Status: roster.ShiftScheduled, EscalationPolicyID: "default",
	})
	_, err := f.trigger.RunSweep(ctx, t0)
	require.NoError(t, err)

	results, err := f.response.ConfirmToday(ctx, 101, at(3))
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, rec := range f.store.Records() {
		assert.True(t, rec.IsConfirmed())
	}

	_, err = f.response.ConfirmToday(ctx, 102, at(3))
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
}

func TestConfirmPresence_ShiftJustAfterMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	midnight := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	f.store.PutShift(&roster.Shift{
		ID: "s-night", OrganizationID: "org-1", SlotID: "slot-N", WorkerIDs: []string{"w-2"},
		ShiftDate: midnight, StartTime: midnight.Add(2 * time.Minute), Status: roster.ShiftScheduled, EscalationPolicyID: "default",
	})

	report, err := f.trigger.RunSweep(ctx, midnight.Add(-2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, report.RecordsCreated)

	res, err := f.response.ConfirmPresence(ctx, "w-2", "s-night", midnight.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, res.ChainCompleted)
	assert.True(t, attendance.SameDay(midnight, res.Record.ShiftDate))
}

func TestConfirmToday_ShiftJustAfterMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	midnight := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	f.store.PutShift(&roster.Shift{
		ID: "s-night", OrganizationID: "org-1", SlotID: "slot-N", WorkerIDs: []string{"w-2"},
		ShiftDate: midnight, StartTime: midnight.Add(2 * time.Minute), Status: roster.ShiftScheduled, EscalationPolicyID: "default",
	})
	_, err := f.trigger.RunSweep(ctx, midnight.Add(-2*time.Minute))
	require.NoError(t, err)

	results, err := f.response.ConfirmToday(ctx, 102, midnight.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s-night", results[0].Record.ShiftID)
}

func TestConfirmPresence_OvernightEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 23, 50, 0, 0, time.UTC)
	f.store.PutShift(&roster.Shift{
		ID: "s-late", OrganizationID: "org-1", SlotID: "slot-L", WorkerIDs: []string{"w-2"},
		ShiftDate: start, StartTime: start, Status: roster.ShiftScheduled, EscalationPolicyID: "default",
	})
	_, err := f.trigger.RunSweep(ctx, start)
	require.NoError(t, err)

	// Past midnight with the chain still running.
	res, err := f.response.ConfirmPresence(ctx, "w-2", "s-late", start.Add(20*time.Minute))
	require.NoError(t, err)
	assert.True(t, res.ChainCompleted)
}

func TestConfirmPresence_IgnoresFinishedRecordFromYesterday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.triggered(t)
	for _, m := range []int{5, 15, 30} {
		_, err := f.escalation.RunSweep(ctx, at(m))
		require.NoError(t, err)
	}

	_, err := f.response.ConfirmPresence(ctx, "w-1", "s-1", t0.Add(23*time.Hour))
	assert.ErrorIs(t, err, ErrNoPendingConfirmation)
	assert.False(t, f.store.Records()[0].IsConfirmed())
}
