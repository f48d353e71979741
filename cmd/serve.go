package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	config "operator-dispatch.com/operator-dispatch/internal/configs"
	httpapi "operator-dispatch.com/operator-dispatch/internal/http"
	"operator-dispatch.com/operator-dispatch/internal/lookup"
	"operator-dispatch.com/operator-dispatch/internal/metrics"
	repository "operator-dispatch.com/operator-dispatch/internal/repositories"
	"operator-dispatch.com/operator-dispatch/internal/services"
	"operator-dispatch.com/operator-dispatch/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and chat bot",
	Long:  "Starts the dispatch HTTP API, the Telegram update receiver and the dispatch worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println(".env file not found, using environment variables")
		}

		cfg := config.Load()
		database := config.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN)

		locker, closeLocker := config.NewLocker(cfg)
		defer closeLocker()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		taskRepo := repository.NewTaskRepository(database)
		operatorRepo := repository.NewOperatorRepository(database)
		eventRepo := repository.NewEventRepository(database)

		var (
			notifier  services.Notifier  = telegram.LogNotifier{}
			messenger services.Messenger = telegram.LogMessenger{}
			api       *tgbotapi.BotAPI
			client    *telegram.Client
		)
		if cfg.BotToken != "" {
			var err error
			api, err = tgbotapi.NewBotAPI(cfg.BotToken)
			if err != nil {
				return err
			}
			client = telegram.NewClient(api)
			notifier = telegram.NewNotifier(client, cfg.OperatorChannels)
			messenger = telegram.NewMessenger(client)
		} else {
			log.Println("BOT_TOKEN not set, chat notifications are only logged")
		}

		registry := services.NewRegistryService(operatorRepo, taskRepo, locker)
		scheduler := services.NewSchedulerService(
			registry,
			taskRepo,
			eventRepo,
			notifier,
			metrics.New(reg),
			services.SchedulerOptions{
				PublicURL:       cfg.PublicURL,
				NotifyTimeout:   time.Duration(cfg.NotifyTimeoutSeconds) * time.Second,
				PromotionPolicy: cfg.PromotionPolicy,
			},
		)

		directory := lookup.NewClient(cfg.ExternalAPIURL, time.Duration(cfg.LookupTimeoutSeconds)*time.Second)
		transactions := services.NewTransactionService(
			scheduler,
			messenger,
			directory,
			cfg.CityGroups,
			time.Duration(cfg.LookupTimeoutSeconds)*time.Second,
		)

		dispatch := services.NewDispatchService(
			scheduler,
			cfg.DispatchWorkers,
			cfg.DispatchQueueSize,
			time.Duration(cfg.NotifyTimeoutSeconds+cfg.LockWaitSeconds)*time.Second,
		)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		botDone := make(chan struct{})
		if api != nil {
			bot := telegram.NewBot(api, client, dispatch, cfg.OperatorChannels)
			go func() {
				defer close(botDone)
				bot.Run(ctx)
			}()
		} else {
			close(botDone)
		}

		e := echo.New()
		handler := httpapi.NewHandler(scheduler, transactions)
		httpapi.Register(e, handler, cfg.RateLimit, reg)

		go func() {
			log.Printf("HTTP server listening on %s", cfg.AppURL)
			if err := e.Start(cfg.AppURL); err != nil {
				log.Printf("server stopped: %v", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
		)
		defer cancel()

		_ = e.Shutdown(shutdownCtx)
		<-botDone
		dispatch.Shutdown(shutdownCtx)

		log.Println("HTTP server, bot and dispatch pool shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
