package main

import (
	"database/sql"
	"fmt"
	"time"

	"shift_attendance_bot/internal/app"
	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/roster"
	"shift_attendance_bot/internal/infra/config"
	idb "shift_attendance_bot/internal/infra/database"
	"shift_attendance_bot/internal/infra/gateway"
	"shift_attendance_bot/internal/infra/logger"
	"shift_attendance_bot/internal/infra/policyfile"
	"shift_attendance_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// services holds the wired application layer.
type services struct {
	db         *sql.DB
	roster     roster.Repository
	trigger    *app.TriggerService
	escalation *app.EscalationService
	response   *app.ResponseService
	admin      *app.AdminService
	channels   []escalation.Channel
}

func (s *services) Close() error {
	return s.db.Close()
}

// wireServices connects to Postgres and builds the services. bot may be nil,
// in which case the chat channel is not configured.
func wireServices(cfg *config.AppConfig, bot *telebot.Bot, log *logrus.Entry) (*services, error) {
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	log.Info("Database connection established successfully.")

	rosterRepo := idb.NewPostgresRosterRepository(db)
	recordRepo := idb.NewPostgresConfirmationRepository(db)
	chainRepo := idb.NewPostgresChainRepository(db)
	logRepo := idb.NewPostgresNotificationLogRepository(db)

	var policyRepo escalation.PolicyRepository = idb.NewPostgresPolicyRepository(db)
	if cfg.PolicyFile != "" {
		fileRepo, err := policyfile.OpenFileRepository(cfg.PolicyFile)
		if err != nil {
			db.Close()
			return nil, err
		}
		log.WithFields(logrus.Fields{"file": cfg.PolicyFile, "policies": fileRepo.IDs()}).Info("Escalation policies loaded from file.")
		policyRepo = fileRepo
	}

	router := buildGateway(cfg, bot)
	resolver := app.NewRecipientResolver(rosterRepo, logger.Component("recipients"))
	dispatcher := app.NewDispatcher(router, logRepo, logger.Component("dispatcher"))

	return &services{
		db:     db,
		roster: rosterRepo,
		trigger: app.NewTriggerService(rosterRepo, recordRepo, chainRepo, policyRepo, resolver, dispatcher,
			cfg.TriggerTolerance, cfg.DefaultPolicyID, logger.Component("trigger")),
		escalation: app.NewEscalationService(recordRepo, chainRepo, policyRepo, rosterRepo, resolver, dispatcher,
			logger.Component("escalation")),
		response: app.NewResponseService(recordRepo, chainRepo, rosterRepo, cfg.TriggerTolerance, logger.Component("response")),
		admin:    app.NewAdminService(recordRepo, chainRepo, rosterRepo, cfg.AdminTelegramID, logger.Component("admin")),
		channels: router.Channels(),
	}, nil
}

func buildGateway(cfg *config.AppConfig, bot *telebot.Bot) *gateway.Router {
	router := gateway.NewRouter()
	if bot != nil {
		router.Register(escalation.ChannelChat, gateway.NewChatSender(telegram.NewTelebotAdapter(bot)))
	}
	if cfg.SMSWebhookURL != "" {
		router.Register(escalation.ChannelSMS,
			gateway.NewWebhookSender(escalation.ChannelSMS, cfg.SMSWebhookURL, cfg.GatewayToken, cfg.GatewayTimeout))
	}
	if cfg.CallWebhookURL != "" {
		router.Register(escalation.ChannelCall,
			gateway.NewWebhookSender(escalation.ChannelCall, cfg.CallWebhookURL, cfg.GatewayToken, cfg.GatewayTimeout))
	}
	return router
}

func newBot(cfg *config.AppConfig, offline bool, log *logrus.Entry) (*telebot.Bot, error) {
	pref := telebot.Settings{
		Token:   cfg.TelegramToken,
		Poller:  &telebot.LongPoller{Timeout: 10 * time.Second},
		Offline: offline,
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"text": c.Text(), "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler error")
		},
	}
	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return b, nil
}

func clockIn(loc *time.Location) func() time.Time {
	return func() time.Time { return time.Now().In(loc) }
}
