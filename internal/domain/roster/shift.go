package roster

import "time"

type ShiftStatus string

const (
	ShiftScheduled ShiftStatus = "SCHEDULED"
	ShiftCancelled ShiftStatus = "CANCELLED"
	ShiftCompleted ShiftStatus = "COMPLETED"
)

// Shift is one occurrence of a work slot on a given date.
type Shift struct {
	ID                 string
	OrganizationID     string
	SlotID             string // the recurring work slot this occurrence belongs to
	WorkerIDs          []string
	ShiftDate          time.Time
	StartTime          time.Time
	EndTime            time.Time
	Status             ShiftStatus
	EscalationPolicyID string // empty means the organisation default
}

// Window is a closed time interval used to match shift start times.
type Window struct {
	From time.Time
	To   time.Time
}

// WindowAround returns [t-tolerance, t+tolerance].
func WindowAround(t time.Time, tolerance time.Duration) Window {
	return Window{From: t.Add(-tolerance), To: t.Add(tolerance)}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// Dates lists the calendar days the window touches, in order. A window
// straddling midnight yields two days.
func (w Window) Dates() []time.Time {
	from := time.Date(w.From.Year(), w.From.Month(), w.From.Day(), 0, 0, 0, 0, w.From.Location())
	to := time.Date(w.To.Year(), w.To.Month(), w.To.Day(), 0, 0, 0, 0, w.From.Location())
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
