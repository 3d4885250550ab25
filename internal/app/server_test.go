package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hanamilabs/game-telegram-relay/internal/config"
	"github.com/hanamilabs/game-telegram-relay/internal/service"
	"github.com/hanamilabs/game-telegram-relay/internal/telegram"
)

type stubStore struct {
	values map[string]string
}

func (s *stubStore) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *stubStore) GetDel(_ context.Context, key string) (string, bool, error) {
	value, ok := s.values[key]
	delete(s.values, key)
	return value, ok, nil
}

func (s *stubStore) Set(_ context.Context, key string, value string, _ time.Duration) error {
	s.values[key] = value
	return nil
}

func (s *stubStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *stubStore) RPush(context.Context, string, string) error { return nil }

func (s *stubStore) Expire(context.Context, string, time.Duration) error { return nil }

func (s *stubStore) HSet(context.Context, string, string, string) error { return nil }

func (s *stubStore) Ping(context.Context) error { return nil }

type stubChat struct {
	sendErr error
	sent    int
}

func (c *stubChat) SendMessage(context.Context, int64, string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent++
	return nil
}

func (c *stubChat) SendMessageWithInlineKeyboard(context.Context, int64, string, [][]telegram.InlineKeyboardButton) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent++
	return nil
}

func (c *stubChat) AnswerCallbackQuery(context.Context, string, string) error { return nil }

func (c *stubChat) EditMessageReplyMarkup(context.Context, int64, int64, [][]telegram.InlineKeyboardButton) error {
	return nil
}

func newTestServer(store *stubStore, chat *stubChat) *NotifyServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	links := service.NewLinkService(store)
	sessions := service.NewReplySessionService(store, 300*time.Second)
	notify := service.NewNotifyService(logger, chat, links, sessions)
	cfg := config.Config{NotifyPort: 8091, BotToken: "t"}
	return NewNotifyServer(cfg, logger, notify, store)
}

func postNotify(t *testing.T, server *NotifyServer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNotifyMissingText(t *testing.T) {
	server := newTestServer(&stubStore{values: map[string]string{}}, &stubChat{})
	rec := postNotify(t, server, `{"userId":"p42"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status mismatch: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestNotifyMissingDestination(t *testing.T) {
	server := newTestServer(&stubStore{values: map[string]string{}}, &stubChat{})
	rec := postNotify(t, server, `{"text":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status mismatch: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestNotifyUnlinkedUser(t *testing.T) {
	server := newTestServer(&stubStore{values: map[string]string{}}, &stubChat{})
	rec := postNotify(t, server, `{"userId":"ghost","text":"hi"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status mismatch: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestNotifyDelivers(t *testing.T) {
	store := &stubStore{values: map[string]string{"account:p42": "10"}}
	chat := &stubChat{}
	server := newTestServer(store, chat)

	rec := postNotify(t, server, `{"userId":"p42","text":"Server maintenance"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: got %d want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var payload struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payload.Success {
		t.Fatal("expected success=true")
	}
	if chat.sent != 1 {
		t.Fatalf("expected 1 delivery, got %d", chat.sent)
	}
}

func TestNotifyDeliveryFailure(t *testing.T) {
	store := &stubStore{values: map[string]string{"account:p42": "10"}}
	chat := &stubChat{sendErr: context.DeadlineExceeded}
	server := newTestServer(store, chat)

	rec := postNotify(t, server, `{"userId":"p42","text":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status mismatch: got %d want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestNotifyRejectsGet(t *testing.T) {
	server := newTestServer(&stubStore{values: map[string]string{}}, &stubChat{})
	req := httptest.NewRequest(http.MethodGet, "/notify", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status mismatch: got %d want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
