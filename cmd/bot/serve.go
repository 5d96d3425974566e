package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shift_attendance_bot/internal/infra/config"
	"shift_attendance_bot/internal/infra/httpapi"
	"shift_attendance_bot/internal/infra/logger"
	"shift_attendance_bot/internal/infra/scheduler"
	"shift_attendance_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
)

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"timezone":    cfg.Location.String(),
	}).Info("Configuration loaded.")

	bot, err := newBot(cfg, false, logger.Component("telebot"))
	if err != nil {
		return err
	}

	svc, err := wireServices(cfg, bot, mainLogger)
	if err != nil {
		return err
	}
	defer svc.Close()
	mainLogger.WithField("channels", svc.channels).Info("Services initialized.")

	clock := clockIn(cfg.Location)
	telegramLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(ctx, bot, cfg.AdminTelegramID, svc.roster, telegramLogger)
	telegram.RegisterWorkerResponseHandlers(ctx, bot, svc.response, clock, telegramLogger)
	telegram.RegisterAdminHandlers(ctx, bot, svc.admin, clock, telegramLogger)
	mainLogger.Info("Telegram handlers registered.")

	sched := scheduler.NewEscalationScheduler(
		svc.trigger,
		svc.escalation,
		logger.Component("scheduler"),
		cfg.Location,
		cfg.CronSpecTrigger,
		cfg.CronSpecEscalation,
		cfg.SweepTimeout,
	)
	if err := sched.Start(); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Confirmer:  svc.response,
			Trigger:    svc.trigger,
			Escalation: svc.escalation,
			Admin:      svc.admin,
			Clock:      clock,
			Token:      cfg.AdminAPIToken,
			Logger:     logger.Component("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP API listening.")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	mainLogger.Info("Application setup complete. Bot and scheduler are running.")
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
	case runErr = <-httpErr:
		mainLogger.WithError(runErr).Error("HTTP API stopped unexpectedly")
	}

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SweepTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP API shutdown incomplete")
	}
	bot.Stop()
	sched.Stop()
	mainLogger.Info("Application shut down gracefully.")
	return runErr
}
