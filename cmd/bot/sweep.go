package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"shift_attendance_bot/internal/app"
	"shift_attendance_bot/internal/infra/config"
	"shift_attendance_bot/internal/infra/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one trigger sweep and one escalation sweep, then exit",
		Long: `Runs the sweeps once against the database. Use this when an external
scheduler (system cron, Kubernetes CronJob) drives the bot instead of the
built-in cron.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch only {
			case "", "trigger", "escalation":
			default:
				return fmt.Errorf("--only must be trigger or escalation, got %q", only)
			}
			return runSweep(cmd.Context(), cmd.OutOrStdout(), only)
		},
	}
	cmd.Flags().StringVar(&only, "only", "", "run a single sweep: trigger or escalation")
	return cmd
}

func runSweep(ctx context.Context, out io.Writer, only string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	if err := cfg.ValidateForSweep(); err != nil {
		return err
	}
	mainLogger := logger.Component("sweep")

	var svc *services
	if cfg.TelegramToken != "" {
		bot, err := newBot(cfg, true, logger.Component("telebot"))
		if err != nil {
			return err
		}
		svc, err = wireServices(cfg, bot, mainLogger)
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintln(os.Stderr, color.New(color.FgYellow).Sprint("TELEGRAM_TOKEN not set: chat stages will be logged as failed"))
		svc, err = wireServices(cfg, nil, mainLogger)
		if err != nil {
			return err
		}
	}
	defer svc.Close()

	sweepCtx, cancel := context.WithTimeout(ctx, cfg.SweepTimeout)
	defer cancel()
	now := clockIn(cfg.Location)()

	if only == "" || only == "trigger" {
		report, err := svc.trigger.RunSweep(sweepCtx, now)
		if err != nil {
			return fmt.Errorf("trigger sweep: %w", err)
		}
		printTriggerReport(out, report)
	}
	if only == "" || only == "escalation" {
		report, err := svc.escalation.RunSweep(sweepCtx, now)
		if err != nil {
			return fmt.Errorf("escalation sweep: %w", err)
		}
		printEscalationReport(out, report)
	}
	return nil
}

func printTriggerReport(out io.Writer, r app.TriggerReport) {
	fmt.Fprintf(out, "%s shifts due %d, records created %d, chains reopened %d, already triggered %d, skipped %d, failed %s\n",
		color.New(color.FgCyan).Sprint("trigger   "),
		r.ShiftsDue, r.RecordsCreated, r.ChainsReopened, r.AlreadyTriggered, r.Skipped, countColor(r.Failed))
}

func printEscalationReport(out io.Writer, r app.EscalationReport) {
	fmt.Fprintf(out, "%s due %d, advanced %d, resolved %d, exhausted %s, skipped %d, failed %s\n",
		color.New(color.FgCyan).Sprint("escalation"),
		r.Due, r.Advanced, r.Resolved, countColor(r.Exhausted), r.Skipped, countColor(r.Failed))
}

func countColor(n int) string {
	if n == 0 {
		return color.New(color.FgGreen).Sprint(n)
	}
	return color.New(color.FgRed).Sprint(n)
}
