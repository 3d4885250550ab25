package service

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/hanamilabs/game-telegram-relay/internal/domain"
	"github.com/hanamilabs/game-telegram-relay/internal/ports"
	"github.com/hanamilabs/game-telegram-relay/internal/telegram"
)

const (
	notificationHeader  = "🔔 *Game Notification*\n"
	replyCallbackPrefix = "reply:"
)

var (
	boldMarkerPattern = regexp.MustCompile(`\*[^*\n]+\*`)
	fromLinePattern   = regexp.MustCompile(`(?m)^From:\s*(.+)\s*$`)
)

type NotifyRequest struct {
	UserID string
	ChatID int64
	Text   string
	Kind   string
	Sender string
}

// NotifyService delivers game-server notifications to linked chats, issuing
// a reply permit and attaching a Reply button when the notification is a
// private or guild message.
type NotifyService struct {
	logger   *slog.Logger
	chat     ports.ChatClient
	links    *LinkService
	sessions *ReplySessionService
}

func NewNotifyService(logger *slog.Logger, chat ports.ChatClient, links *LinkService, sessions *ReplySessionService) *NotifyService {
	return &NotifyService{logger: logger, chat: chat, links: links, sessions: sessions}
}

func (s *NotifyService) Dispatch(ctx context.Context, req NotifyRequest) error {
	chatID := req.ChatID
	if chatID == 0 {
		resolved, found, err := s.links.ChatForAccount(ctx, req.UserID)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrNotLinked
		}
		chatID = resolved
	}

	text := req.Text
	if !boldMarkerPattern.MatchString(text) {
		text = notificationHeader + text
	}

	kind, sender, ok := classify(req)
	if !ok {
		if err := s.chat.SendMessage(ctx, chatID, text); err != nil {
			s.logger.Error("notification delivery failed", "error", err, "chat_id", chatID)
			return err
		}
		return nil
	}

	contextID, err := s.sessions.IssuePermit(ctx, chatID, sender, kind)
	if err != nil {
		return err
	}
	keyboard := [][]telegram.InlineKeyboardButton{{
		{Text: "↩️ Reply", CallbackData: replyCallbackPrefix + contextID},
	}}
	if err := s.chat.SendMessageWithInlineKeyboard(ctx, chatID, text, keyboard); err != nil {
		s.logger.Error("notification delivery failed", "error", err, "chat_id", chatID)
		return err
	}
	return nil
}

// classify prefers the producer's explicit kind/sender fields; rendered-text
// sniffing remains as the fallback for producers that only send text.
func classify(req NotifyRequest) (domain.ReplyKind, string, bool) {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	sender := strings.TrimSpace(req.Sender)
	if sender != "" && (kind == string(domain.ReplyKindPM) || kind == string(domain.ReplyKindGuild)) {
		return domain.ReplyKind(kind), sender, true
	}

	var sniffed domain.ReplyKind
	switch {
	case strings.Contains(req.Text, "Private Message"):
		sniffed = domain.ReplyKindPM
	case strings.Contains(req.Text, "Guild Message"):
		sniffed = domain.ReplyKindGuild
	default:
		return "", "", false
	}

	match := fromLinePattern.FindStringSubmatch(req.Text)
	if match == nil {
		return "", "", false
	}
	sender = strings.TrimSpace(match[1])
	if sender == "" {
		return "", "", false
	}
	return sniffed, sender, true
}
