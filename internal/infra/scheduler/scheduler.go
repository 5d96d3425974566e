package scheduler

import (
	"context"
	"fmt"
	"time"

	"shift_attendance_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TriggerRunner is the roster-scan sweep.
type TriggerRunner interface {
	RunSweep(ctx context.Context, now time.Time) (app.TriggerReport, error)
}

// EscalationRunner is the stage-advance sweep.
type EscalationRunner interface {
	RunSweep(ctx context.Context, now time.Time) (app.EscalationReport, error)
}

// EscalationScheduler drives both sweeps from cron. Each job is wrapped in
// SkipIfStillRunning so a sweep never overlaps itself.
type EscalationScheduler struct {
	cronEngine         *cron.Cron
	trigger            TriggerRunner
	escalation         EscalationRunner
	logger             *logrus.Entry
	cronSpecTrigger    string
	cronSpecEscalation string
	sweepTimeout       time.Duration
	now                func() time.Time
}

func NewEscalationScheduler(
	trigger TriggerRunner,
	escalation EscalationRunner,
	logger *logrus.Entry,
	location *time.Location,
	cronSpecTrigger string, // e.g., "*/5 * * * *"
	cronSpecEscalation string, // e.g., "*/5 * * * *"
	sweepTimeout time.Duration,
) *EscalationScheduler {
	if location == nil {
		location = time.Local
	}
	cronLogger := cron.PrintfLogger(logger)
	return &EscalationScheduler{
		cronEngine: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		trigger:            trigger,
		escalation:         escalation,
		logger:             logger,
		cronSpecTrigger:    cronSpecTrigger,
		cronSpecEscalation: cronSpecEscalation,
		sweepTimeout:       sweepTimeout,
		now:                func() time.Time { return time.Now().In(location) },
	}
}

func (s *EscalationScheduler) Start() error {
	s.logger.Info("Starting escalation scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecTrigger, s.runTrigger); err != nil {
		return fmt.Errorf("could not add trigger sweep cron job %q: %w", s.cronSpecTrigger, err)
	}
	if _, err := s.cronEngine.AddFunc(s.cronSpecEscalation, s.runEscalation); err != nil {
		return fmt.Errorf("could not add escalation sweep cron job %q: %w", s.cronSpecEscalation, err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"trigger_spec":    s.cronSpecTrigger,
		"escalation_spec": s.cronSpecEscalation,
	}).Info("Escalation scheduler started with jobs.")
	return nil
}

func (s *EscalationScheduler) runTrigger() {
	ctx, cancel := context.WithTimeout(context.Background(), s.sweepTimeout)
	defer cancel()
	s.logger.Debug("Cron job triggered for roster scan.")
	if _, err := s.trigger.RunSweep(ctx, s.now()); err != nil {
		s.logger.WithError(err).Error("Error during trigger sweep")
	}
}

func (s *EscalationScheduler) runEscalation() {
	ctx, cancel := context.WithTimeout(context.Background(), s.sweepTimeout)
	defer cancel()
	s.logger.Debug("Cron job triggered for escalation sweep.")
	if _, err := s.escalation.RunSweep(ctx, s.now()); err != nil {
		s.logger.WithError(err).Error("Error during escalation sweep")
	}
}

func (s *EscalationScheduler) Stop() {
	s.logger.Info("Stopping escalation scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Escalation scheduler gracefully stopped.")
}
