package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket_dispatcher/internal/app"
	"ticket_dispatcher/internal/domain/ticket"
	"ticket_dispatcher/internal/infra/clock"
	"ticket_dispatcher/internal/infra/config"
	"ticket_dispatcher/internal/infra/httpapi"
	"ticket_dispatcher/internal/infra/logger"
	"ticket_dispatcher/internal/infra/mailer"
	"ticket_dispatcher/internal/infra/qrcode"
	"ticket_dispatcher/internal/infra/scheduler"
	"ticket_dispatcher/internal/infra/sheets"
	"ticket_dispatcher/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

func newRunCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the poll loop, the stats report and the optional operator surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireService(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg, once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single poll cycle and exit")
	return cmd
}

func run(ctx context.Context, cfg *config.AppConfig, once bool) error {
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"ledger":      cfg.LedgerBackend,
	}).Info("Ticket dispatcher starting...")

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not open ledger: %w", err)
	}
	defer ledger.Close()

	source, err := sheets.NewSheetReader(ctx, cfg.GoogleCredentialsFile, cfg.SpreadsheetID, cfg.SheetName)
	if err != nil {
		return err
	}
	mainLogger.Info("Sheet reader initialized.")

	clk := clock.Real()
	issuer := app.NewTicketIssuer(qrcode.NewRenderer(qrcode.DefaultSize), ledger, app.EventInfo{
		Name:      cfg.EventName,
		Date:      cfg.EventDate,
		Venue:     cfg.EventVenue,
		Organizer: cfg.OrganizerName,
	}, clk, logger.Component("issuer"))

	notifier := mailer.NewSMTPNotifier(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.EmailUser,
		Password: cfg.EmailPass,
		FromName: cfg.OrganizerName,
	}, logger.Component("mailer"))

	registrations := app.NewRegistrationService(source, ledger, issuer, notifier, clk, app.RegistrationOptions{
		SendDelay:       cfg.SendDelay,
		MaxSendAttempts: cfg.MaxSendAttempts,
	}, logger.Component("registrations"))

	if once {
		res, err := registrations.RunCycle(ctx)
		if err != nil {
			return err
		}
		mainLogger.WithField("sent", res.Sent).WithField("failed", res.Failed).WithField("cursor", res.Cursor).Info("Single cycle finished.")
		return nil
	}

	adminService := app.NewAdminService(ledger, registrations, cfg.AdminTelegramID)

	var bot *telebot.Bot
	var chat *telegram.TelebotAdapter
	if cfg.TelegramEnabled() {
		bot, err = newBot(ctx, cfg, adminService)
		if err != nil {
			return err
		}
		chat = telegram.NewTelebotAdapter(bot)
		go bot.Start()
		defer bot.Stop()
		mainLogger.Info("Telegram bot started.")
	}

	reports := newReportService(ledger, chat, cfg.AdminTelegramID)
	if err := reports.Report(ctx); err != nil {
		mainLogger.WithError(err).Warn("Initial stats report failed")
	}

	httpErr := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		srv := httpapi.NewServer(ctx, adminService, cfg.CycleTimeout, logger.Component("http"))
		go func() { httpErr <- httpapi.Serve(ctx, srv, cfg.HTTPAddr, logger.Component("http")) }()
	}

	sched := scheduler.NewTicketScheduler(registrations, reports, logger.Component("scheduler"),
		cfg.PollInterval, cfg.StatsInterval, cfg.CycleTimeout)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	mainLogger.Info("Application setup complete. Watching for new registrations...")

	httpRunning := cfg.HTTPAddr != ""
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		httpRunning = false
		if err != nil {
			mainLogger.WithError(err).Error("HTTP status API stopped")
		}
	}

	mainLogger.Info("Shutting down application...")
	sched.Stop()
	if httpRunning {
		if err := <-httpErr; err != nil {
			mainLogger.WithError(err).Warn("HTTP status API shutdown")
		}
	}
	mainLogger.Info("Application shut down gracefully.")
	return nil
}

// newReportService keeps a nil adapter from becoming a non-nil interface.
func newReportService(l ticket.Ledger, chat *telegram.TelebotAdapter, adminID int64) *app.ReportService {
	if chat == nil {
		return app.NewReportService(l, nil, 0, logger.Component("report"))
	}
	return app.NewReportService(l, chat, adminID, logger.Component("report"))
}

func newBot(ctx context.Context, cfg *config.AppConfig, adminService *app.AdminService) (*telebot.Bot, error) {
	botLogger := logger.Component("telegram")
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			entry.Error("telebot error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}

	telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, botLogger)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, cfg.CycleTimeout, botLogger)
	telegram.RegisterPollNowHandler(ctx, bot, adminService, cfg.CycleTimeout, botLogger)
	return bot, nil
}
