// internal/app/messages.go
package app

import (
	"fmt"

	"shift_attendance_bot/internal/domain/notification"
)

const shiftTimeLayout = "Mon 02 Jan 15:04"

// composeMessage builds the payload for one recipient of a stage.
func composeMessage(sc *stageContext, stageIndex int, t target) notification.Message {
	workerName := sc.workerName()
	start := sc.shiftStart()

	var text string
	switch t.role {
	case roleWorker:
		if stageIndex == 0 {
			text = fmt.Sprintf("Hi %s! Your shift starts %s. Please confirm that you are on site.", t.recipient.Name, start)
		} else {
			text = fmt.Sprintf("Reminder for %s: we have not received your presence confirmation for the shift starting %s.", t.recipient.Name, start)
		}
	case roleStaff:
		text = fmt.Sprintf("%s has not confirmed presence for the shift starting %s (escalation stage %d).", workerName, start, stageIndex)
	case roleCover:
		text = fmt.Sprintf("Hi %s, %s has not confirmed presence for the shift starting %s. You are on the next shift of this slot, please be ready to cover.", t.recipient.Name, workerName, start)
	}

	return notification.Message{
		Text:        text,
		RecordID:    sc.record.ID,
		Confirmable: t.role == roleWorker,
	}
}

func (sc *stageContext) workerName() string {
	if sc.worker != nil && sc.worker.FullName != "" {
		return sc.worker.FullName
	}
	return "Worker " + sc.record.WorkerID
}

func (sc *stageContext) shiftStart() string {
	if sc.shift != nil && !sc.shift.StartTime.IsZero() {
		return "at " + sc.shift.StartTime.Format(shiftTimeLayout)
	}
	return "on " + sc.record.ShiftDate.Format("2006-01-02")
}
