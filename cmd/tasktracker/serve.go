package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"task-tracker/internal/bot"
	"task-tracker/internal/config"
	"task-tracker/internal/httpapi"
	"task-tracker/internal/notify"
	"task-tracker/internal/service"
)

func serveCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, notification dispatcher and optional Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := notify.NewHub(32)
	sinks := notify.MultiSink{notify.LogSink{}, hub}
	var api *tgbotapi.BotAPI
	if cfg.BotEnabled() {
		if api, err = bot.Connect(cfg.TelegramToken); err != nil {
			return err
		}
		sinks = append(sinks, notify.NewTelegramSink(api, a.userRepo))
	}

	dispatcher := notify.NewDispatcher(sinks, cfg.NotifyQueueSize)
	dispatcher.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dispatcher.Close(closeCtx); err != nil {
			log.Printf("dispatcher close: %v", err)
		}
		log.Printf("[info] dispatcher stopped dropped=%d failed=%d", dispatcher.Dropped(), dispatcher.Failed())
	}()

	users, tasks := a.services(dispatcher)

	if cfg.SeedAdmin() {
		if _, _, err := users.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	if api != nil {
		telegramBot := bot.New(api, users, tasks, service.NewReportService(tasks))
		scheduler := service.NewSchedulerService(time.Local)
		if cfg.ReportTime != "" {
			if _, err := scheduler.Daily("daily report", cfg.ReportTime, telegramBot.SendReports); err != nil {
				return fmt.Errorf("schedule daily report: %w", err)
			}
		}
		if cfg.ReportInterval > 0 {
			if _, err := scheduler.Every("report", cfg.ReportInterval, telegramBot.SendReports); err != nil {
				return fmt.Errorf("schedule reports: %w", err)
			}
		}
		if scheduler.Entries() > 0 {
			scheduler.Start()
			defer scheduler.Stop()
		}

		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("bot stopped with error: %v", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(users, tasks, hub).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[info] http listening on %s", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	log.Println("Shutdown complete.")
	return nil
}
