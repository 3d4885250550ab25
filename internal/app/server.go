package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hanamilabs/game-telegram-relay/internal/config"
	"github.com/hanamilabs/game-telegram-relay/internal/domain"
	"github.com/hanamilabs/game-telegram-relay/internal/service"
	"github.com/hanamilabs/game-telegram-relay/internal/telegram"
)

var ErrServerClosed = http.ErrServerClosed

type Pinger interface {
	Ping(ctx context.Context) error
}

// NotifyServer is the game server's entrypoint into the relay: one POST
// endpoint for notifications plus a health probe.
type NotifyServer struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	startedAt  time.Time
	notify     *service.NotifyService
	store      Pinger
}

type notifyPayload struct {
	UserID string `json:"userId"`
	ChatID int64  `json:"chatId,omitempty"`
	Text   string `json:"text"`
	Kind   string `json:"kind,omitempty"`
	Sender string `json:"sender,omitempty"`
}

type serviceCheck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type healthResponse struct {
	UptimeSeconds int64        `json:"uptimeSeconds"`
	Telegram      serviceCheck `json:"telegram"`
	Store         serviceCheck `json:"store"`
}

func NewNotifyServer(cfg config.Config, logger *slog.Logger, notify *service.NotifyService, store Pinger) *NotifyServer {
	server := &NotifyServer{cfg: cfg, logger: logger, startedAt: time.Now(), notify: notify, store: store}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", server.healthHandler)
	mux.HandleFunc("/notify", server.notifyHandler)

	server.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.NotifyPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server
}

func (s *NotifyServer) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *NotifyServer) notifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload notifyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if strings.TrimSpace(payload.UserID) == "" && payload.ChatID == 0 {
		s.writeError(w, http.StatusBadRequest, "userId or chatId is required")
		return
	}

	err := s.notify.Dispatch(r.Context(), service.NotifyRequest{
		UserID: strings.TrimSpace(payload.UserID),
		ChatID: payload.ChatID,
		Text:   payload.Text,
		Kind:   payload.Kind,
		Sender: payload.Sender,
	})
	if errors.Is(err, domain.ErrNotLinked) {
		s.writeError(w, http.StatusNotFound, "user not linked")
		return
	}
	if err != nil {
		s.logger.Error("notify dispatch failed", "error", err, "user_id", payload.UserID)
		s.writeError(w, http.StatusInternalServerError, "delivery failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *NotifyServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res := healthResponse{UptimeSeconds: int64(time.Since(s.startedAt).Seconds())}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := telegram.CheckConnectivity(ctx, s.cfg.BotToken, s.cfg.TelegramTimeout)
		res.Telegram = checkFromErr(err)
	}()

	go func() {
		defer wg.Done()
		res.Store = checkFromErr(s.store.Ping(ctx))
	}()

	wg.Wait()

	s.writeJSON(w, http.StatusOK, res)
}

func (s *NotifyServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func (s *NotifyServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode json response failed", "error", err)
	}
}

func checkFromErr(err error) serviceCheck {
	if err == nil {
		return serviceCheck{OK: true}
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "unknown error"
	}
	return serviceCheck{OK: false, Error: msg}
}

func (s *NotifyServer) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *NotifyServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func IsServerClosed(err error) bool {
	return errors.Is(err, ErrServerClosed)
}
