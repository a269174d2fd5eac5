package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/antispam"
	"github.com/tg-guard-bot-go/internal/config"
	"github.com/tg-guard-bot-go/internal/handlers"
	"github.com/tg-guard-bot-go/internal/i18n"
	"github.com/tg-guard-bot-go/internal/middleware"
	"github.com/tg-guard-bot-go/internal/resolver"
	"github.com/tg-guard-bot-go/internal/services/filecache"
	"github.com/tg-guard-bot-go/internal/services/session"
	"github.com/tg-guard-bot-go/internal/store"
	"github.com/tg-guard-bot-go/pkg/logger"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting moderation bot...")

	// Initialize bot
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}

	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize persistent store
	db, err := store.NewDB(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	groupRepo := store.NewGroupRepository(db)
	keywordRepo := store.NewKeywordRepository(db)

	// Initialize session storage
	sessions, err := session.NewManager(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize session storage")
	}

	// Initialize caches and throttle
	fileCache := filecache.New(&cfg.FileCache, log)
	throttle := middleware.NewSendThrottle(cfg, log)

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Initialize the anti-spam engine
	moderator := handlers.NewTelegramModerator(bot, throttle, localizer, cfg.I18n.DefaultLanguage, log)
	guard := antispam.NewGuard(moderator, moderator, log)
	guard.OnBan(func(level int) {
		metrics.RecordBanIssued(strconv.Itoa(level))
	})

	// Initialize the keyword resolver
	keywordResolver := resolver.New(
		cfg.Resolver.Budget,
		cfg.Resolver.FuzzyThreshold,
		log,
		resolver.WithTimeoutHook(metrics.RecordResolverTimeout),
	)

	// Start metrics server if enabled
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Initialize handlers
	commandHandler := handlers.NewCommandHandler(
		cfg,
		bot,
		guard,
		groupRepo,
		keywordRepo,
		sessions,
		throttle,
		localizer,
		metrics,
		log,
	)

	groupEventHandler := handlers.NewGroupEventHandler(groupRepo, bot.Self.ID, log)

	messageHandler := handlers.NewMessageHandler(
		cfg,
		bot,
		guard,
		groupRepo,
		keywordRepo,
		keywordResolver,
		fileCache,
		sessions,
		throttle,
		localizer,
		metrics,
		log,
	)

	// Setup update channel
	var updates tgbotapi.UpdatesChannel

	if cfg.Bot.Webhook.Enabled {
		webhookURL := fmt.Sprintf("%s/%s", cfg.Bot.Webhook.URL, bot.Token)
		webhook, err := tgbotapi.NewWebhook(webhookURL)
		if err != nil {
			log.WithError(err).Fatal("Failed to create webhook")
		}

		if _, err := bot.Request(webhook); err != nil {
			log.WithError(err).Fatal("Failed to set webhook")
		}

		updates = bot.ListenForWebhook("/" + bot.Token)
		log.WithField("url", webhookURL).Info("Webhook set")
	} else {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = cfg.Bot.UpdateTimeout

		updates = bot.GetUpdatesChan(u)
		log.Info("Using long polling")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Main bot loop
	go func() {
		for update := range updates {
			if update.MyChatMember != nil {
				if err := groupEventHandler.HandleMyChatMember(ctx, update.MyChatMember); err != nil {
					log.WithError(err).Error("Failed to handle membership update")
				}
				continue
			}

			if update.CallbackQuery != nil {
				if err := commandHandler.HandleCallbackQuery(ctx, update.CallbackQuery); err != nil {
					log.WithError(err).Error("Failed to handle callback query")
				}
				continue
			}

			if update.Message == nil {
				continue
			}

			chatType := "private"
			if update.Message.Chat.IsGroup() || update.Message.Chat.IsSuperGroup() {
				chatType = "group"
			}
			metrics.RecordMessageScreened(chatType)

			if update.Message.IsCommand() {
				metrics.RecordCommandExecuted(update.Message.Command())

				if err := commandHandler.HandleCommand(ctx, update.Message); err != nil {
					log.WithError(err).Error("Failed to handle command")
					metrics.RecordMessageProcessed("error")
				} else {
					metrics.RecordMessageProcessed("success")
				}
				continue
			}

			if err := messageHandler.HandleMessage(ctx, &update); err != nil {
				log.WithError(err).Error("Failed to handle message")
				metrics.RecordMessageProcessed("error")
			} else {
				metrics.RecordMessageProcessed("success")
			}
		}
	}()

	// Start periodic tasks
	go startPeriodicTasks(ctx, guard, metrics, log)

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received")

	if cfg.Bot.Webhook.Enabled {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.WithError(err).Error("Failed to delete webhook")
		}
	}

	cancel()

	// Give goroutines time to finish
	time.Sleep(2 * time.Second)

	log.Info("Bot stopped")
}

// startPeriodicTasks refreshes gauges from the anti-spam engine
func startPeriodicTasks(ctx context.Context, guard *antispam.Guard, metrics *middleware.Metrics, log *logrus.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := guard.ListActiveBans(nil)
			metrics.SetActiveBans(len(active))
		}
	}
}
