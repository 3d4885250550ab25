package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanamilabs/game-telegram-relay/internal/app"
	"github.com/hanamilabs/game-telegram-relay/internal/config"
	"github.com/hanamilabs/game-telegram-relay/internal/logging"
	"github.com/hanamilabs/game-telegram-relay/internal/service"
	"github.com/hanamilabs/game-telegram-relay/internal/storage"
	"github.com/hanamilabs/game-telegram-relay/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	telegramAPI := telegram.NewAPI(cfg.BotToken, cfg.TelegramTimeout, time.Duration(cfg.BotPollingIntervalS)*time.Second)
	links := service.NewLinkService(store)
	sessions := service.NewReplySessionService(store, cfg.ReplyWindow)
	outbox := service.NewOutboxService(store, cfg.PendingTTL)
	botService := service.NewBotService(logger, telegramAPI, links, sessions, outbox)
	notifyService := service.NewNotifyService(logger, telegramAPI, links, sessions)

	server := app.NewNotifyServer(cfg, logger, notifyService, store)
	var webhookServer *http.Server

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	if cfg.BotTransport == "polling" {
		if err := telegramAPI.DeleteWebhook(ctx); err != nil {
			logger.Warn("delete webhook failed before polling", "error", err)
		}
		go func() {
			errCh <- telegramAPI.PollUpdates(ctx, botService.HandleUpdate)
		}()
	} else {
		if err := telegramAPI.SetupWebhook(ctx, cfg.WebhookURL); err != nil {
			return err
		}
		webhookPath := telegramAPI.WebhookPath(cfg.WebhookURL)
		mux := http.NewServeMux()
		mux.HandleFunc(webhookPath, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "invalid body", http.StatusBadRequest)
				return
			}
			update, err := telegramAPI.ParseWebhookUpdate(body)
			if err != nil {
				http.Error(w, "invalid update", http.StatusBadRequest)
				return
			}
			// always 200 back to the platform, even on handler failure,
			// so Telegram does not start its own retry storm
			botService.HandleUpdate(r.Context(), update)
			w.WriteHeader(http.StatusOK)
		})
		webhookServer = &http.Server{Addr: cfg.WebhookListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			errCh <- webhookServer.ListenAndServe()
		}()
	}

	logger.Info("relay serving", "notify_port", cfg.NotifyPort, "transport", cfg.BotTransport, "redis_addr", cfg.RedisAddr)

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		logger.Info("shutting down relay")
		if webhookServer != nil {
			if err := webhookServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil && !app.IsServerClosed(err) {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) || app.IsServerClosed(err) {
			return nil
		}
		return err
	}
}

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}
