// Package memory is a mutex-guarded in-process implementation of every
// repository interface. It backs the service tests.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"shift_attendance_bot/internal/domain/attendance"
	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/notification"
	"shift_attendance_bot/internal/domain/roster"
)

type Store struct {
	mu       sync.Mutex
	records  map[string]*attendance.Record
	chains   map[string]*escalation.Chain
	policies map[string]*escalation.Policy
	shifts   map[string]*roster.Shift
	workers  map[string]*roster.Worker
	logs     []*notification.LogEntry
}

func NewStore() *Store {
	return &Store{
		records:  make(map[string]*attendance.Record),
		chains:   make(map[string]*escalation.Chain),
		policies: make(map[string]*escalation.Policy),
		shifts:   make(map[string]*roster.Shift),
		workers:  make(map[string]*roster.Worker),
	}
}

// --- Seeding ---

func (s *Store) PutPolicy(p *escalation.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	cp.Stages = append([]escalation.Stage(nil), p.Stages...)
	cp.StaffIDs = append([]string(nil), p.StaffIDs...)
	s.policies[p.ID] = &cp
}

func (s *Store) DeletePolicy(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, id)
}

func (s *Store) PutShift(sh *roster.Shift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[sh.ID] = copyShift(sh)
}

func (s *Store) PutWorker(w *roster.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.workers[w.ID] = &cp
}

// --- attendance.Repository ---

func (s *Store) FindRecord(ctx context.Context, workerID, shiftID string, date time.Time) (*attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.WorkerID == workerID && r.ShiftID == shiftID && attendance.SameDay(r.ShiftDate, date) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, attendance.ErrRecordNotFound
}

func (s *Store) GetRecordByID(ctx context.Context, id string) (*attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, attendance.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListRecordsForWorkerOnDate(ctx context.Context, workerID string, date time.Time) ([]*attendance.Record, error) {
	return s.listRecords(func(r *attendance.Record) bool {
		return r.WorkerID == workerID && attendance.SameDay(r.ShiftDate, date)
	}), nil
}

func (s *Store) ListRecordsByDate(ctx context.Context, date time.Time) ([]*attendance.Record, error) {
	return s.listRecords(func(r *attendance.Record) bool {
		return attendance.SameDay(r.ShiftDate, date)
	}), nil
}

func (s *Store) listRecords(match func(*attendance.Record) bool) []*attendance.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*attendance.Record, 0)
	for _, r := range s.records {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) CreateRecord(ctx context.Context, rec *attendance.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := attendance.DateOf(rec.ShiftDate)
	for _, r := range s.records {
		if r.WorkerID == rec.WorkerID && r.ShiftID == rec.ShiftID && attendance.SameDay(r.ShiftDate, day) {
			return attendance.ErrDuplicateRecord
		}
	}
	now := time.Now()
	rec.ShiftDate = day
	rec.CreatedAt, rec.UpdatedAt = now, now
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *Store) SetConfirmed(ctx context.Context, recordID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordID]
	if !ok {
		return attendance.ErrRecordNotFound
	}
	if r.ResponseTime.Valid {
		return attendance.ErrAlreadyConfirmed
	}
	r.ResponseTime = sql.NullTime{Time: at, Valid: true}
	r.ConfirmationStatus = attendance.ConfirmationConfirmed
	r.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetEscalationStatus(ctx context.Context, recordID string, status attendance.EscalationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordID]
	if !ok {
		return attendance.ErrRecordNotFound
	}
	r.EscalationStatus = status
	r.UpdatedAt = time.Now()
	return nil
}

func (s *Store) MarkEscalating(ctx context.Context, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[recordID]
	if !ok {
		return attendance.ErrRecordNotFound
	}
	if r.ResponseTime.Valid {
		return attendance.ErrAlreadyConfirmed
	}
	r.EscalationStatus = attendance.EscalationEscalating
	r.UpdatedAt = time.Now()
	return nil
}

// --- escalation.PolicyRepository ---

func (s *Store) GetPolicy(ctx context.Context, id string) (*escalation.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, escalation.ErrPolicyNotFound
	}
	cp := *p
	cp.Stages = append([]escalation.Stage(nil), p.Stages...)
	cp.StaffIDs = append([]string(nil), p.StaffIDs...)
	return &cp, nil
}

// --- escalation.ChainRepository ---

func (s *Store) CreateChain(ctx context.Context, chain *escalation.Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chains {
		if c.RecordID == chain.RecordID {
			return escalation.ErrDuplicateChain
		}
	}
	now := time.Now()
	chain.CreatedAt, chain.UpdatedAt = now, now
	s.chains[chain.ID] = copyChain(chain)
	return nil
}

func (s *Store) GetChainByID(ctx context.Context, id string) (*escalation.Chain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chains[id]
	if !ok {
		return nil, escalation.ErrChainNotFound
	}
	return copyChain(c), nil
}

func (s *Store) GetChainByRecordID(ctx context.Context, recordID string) (*escalation.Chain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chains {
		if c.RecordID == recordID {
			return copyChain(c), nil
		}
	}
	return nil, escalation.ErrChainNotFound
}

func (s *Store) FindDueChains(ctx context.Context, now time.Time) ([]*escalation.Chain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*escalation.Chain, 0)
	for _, c := range s.chains {
		if c.IsDue(now) {
			out = append(out, copyChain(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextActionTime.Time.Before(out[j].NextActionTime.Time)
	})
	return out, nil
}

func (s *Store) AdvanceChain(ctx context.Context, chainID string, newStageIndex int, nextActionTime sql.NullTime, entry escalation.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chains[chainID]
	if !ok {
		return escalation.ErrChainNotFound
	}
	if !c.IsRunning() || c.CurrentStageIndex != newStageIndex-1 {
		return escalation.ErrStaleAdvance
	}
	c.CurrentStageIndex = newStageIndex
	c.NextActionTime = nextActionTime
	c.History = append(c.History, entry)
	c.UpdatedAt = time.Now()
	return nil
}

func (s *Store) SetStageOutcome(ctx context.Context, chainID string, stageIndex int, outcome escalation.StageOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chains[chainID]
	if !ok {
		return escalation.ErrChainNotFound
	}
	for i := range c.History {
		if c.History[i].StageIndex == stageIndex {
			c.History[i].Outcome = outcome
			c.UpdatedAt = time.Now()
			return nil
		}
	}
	return escalation.ErrChainNotFound
}

func (s *Store) CompleteChain(ctx context.Context, chainID string, outcome escalation.CompletionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chains[chainID]
	if !ok {
		return escalation.ErrChainNotFound
	}
	if !c.IsRunning() {
		return escalation.ErrChainNotRunning
	}
	c.Status = escalation.ChainCompleted
	c.Outcome = outcome
	c.NextActionTime = sql.NullTime{}
	c.UpdatedAt = time.Now()
	return nil
}

// --- roster.Repository ---

func (s *Store) ListShiftsDueForConfirmation(ctx context.Context, date time.Time, window roster.Window) ([]*roster.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*roster.Shift, 0)
	for _, sh := range s.shifts {
		if sh.Status != roster.ShiftScheduled || !attendance.SameDay(sh.ShiftDate, date) {
			continue
		}
		if window.Contains(sh.StartTime) {
			out = append(out, copyShift(sh))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Store) GetShift(ctx context.Context, id string) (*roster.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shifts[id]
	if !ok {
		return nil, roster.ErrShiftNotFound
	}
	return copyShift(sh), nil
}

func (s *Store) NextShiftOccupants(ctx context.Context, shift *roster.Shift) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *roster.Shift
	for _, sh := range s.shifts {
		if sh.ID == shift.ID || sh.SlotID != shift.SlotID || sh.OrganizationID != shift.OrganizationID {
			continue
		}
		if sh.Status != roster.ShiftScheduled || !sh.StartTime.After(shift.StartTime) {
			continue
		}
		if next == nil || sh.StartTime.Before(next.StartTime) {
			next = sh
		}
	}
	if next == nil || len(next.WorkerIDs) == 0 {
		return nil, roster.ErrNoOccupant
	}
	return append([]string(nil), next.WorkerIDs...), nil
}

func (s *Store) GetWorker(ctx context.Context, id string) (*roster.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[id]
	if !ok {
		return nil, roster.ErrWorkerNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *Store) GetWorkerByTelegramID(ctx context.Context, telegramID int64) (*roster.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		if w.TelegramID.Valid && w.TelegramID.Int64 == telegramID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, roster.ErrWorkerNotFound
}

func (s *Store) LinkTelegram(ctx context.Context, workerID string, telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[workerID]
	if !ok {
		return roster.ErrWorkerNotFound
	}
	for _, other := range s.workers {
		if other.ID != workerID && other.TelegramID.Valid && other.TelegramID.Int64 == telegramID {
			return roster.ErrTelegramInUse
		}
	}
	w.TelegramID = sql.NullInt64{Int64: telegramID, Valid: true}
	w.UpdatedAt = time.Now()
	return nil
}

// --- notification.LogRepository ---

func (s *Store) AppendLogEntry(ctx context.Context, entry *notification.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.CreatedAt = time.Now()
	cp := *entry
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *Store) ListLogEntriesByRecord(ctx context.Context, recordID string) ([]*notification.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*notification.LogEntry, 0)
	for _, e := range s.logs {
		if e.RecordID == recordID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Records returns every record, ordered by ID. Test helper.
func (s *Store) Records() []*attendance.Record {
	return s.listRecords(func(*attendance.Record) bool { return true })
}

// Chains returns every chain, ordered by ID. Test helper.
func (s *Store) Chains() []*escalation.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*escalation.Chain, 0, len(s.chains))
	for _, c := range s.chains {
		out = append(out, copyChain(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyChain(c *escalation.Chain) *escalation.Chain {
	cp := *c
	cp.History = append([]escalation.HistoryEntry(nil), c.History...)
	return &cp
}

func copyShift(sh *roster.Shift) *roster.Shift {
	cp := *sh
	cp.WorkerIDs = append([]string(nil), sh.WorkerIDs...)
	return &cp
}
