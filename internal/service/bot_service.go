package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hanamilabs/game-telegram-relay/internal/domain"
	"github.com/hanamilabs/game-telegram-relay/internal/ports"
	"github.com/hanamilabs/game-telegram-relay/internal/telegram"
)

const helpText = "Commands:\n" +
	"/start <token> — link your game account\n" +
	"/link <token> — link your game account\n" +
	"/status — show linked account\n" +
	"/disconnect — remove the link\n" +
	"/reply <message> — answer the last private message\n" +
	"/guild <message> — answer in guild chat\n" +
	"Press the Reply button under a notification to answer it directly."

// BotService routes inbound Telegram updates: button presses first, then
// slash commands, then free text against the active reply session. Anything
// else is ignored.
type BotService struct {
	logger   *slog.Logger
	chat     ports.ChatClient
	links    *LinkService
	sessions *ReplySessionService
	outbox   *OutboxService
}

func NewBotService(
	logger *slog.Logger,
	chat ports.ChatClient,
	links *LinkService,
	sessions *ReplySessionService,
	outbox *OutboxService,
) *BotService {
	return &BotService{logger: logger, chat: chat, links: links, sessions: sessions, outbox: outbox}
}

func (s *BotService) HandleUpdate(ctx context.Context, update telegram.Update) {
	if update.CallbackQuery != nil {
		s.handleCallback(ctx, *update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.Chat.ID == 0 {
		return
	}

	message := *update.Message
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		s.handleCommand(ctx, message)
		return
	}
	s.handleFreeText(ctx, message, text)
}

func (s *BotService) handleCallback(ctx context.Context, callback telegram.CallbackQuery) {
	_ = s.chat.AnswerCallbackQuery(ctx, callback.ID, "")
	if callback.Message == nil || callback.Message.Chat.ID == 0 {
		return
	}
	chatID := callback.Message.Chat.ID

	if contextID, isReply := strings.CutPrefix(callback.Data, replyCallbackPrefix); isReply {
		session, err := s.sessions.Activate(ctx, chatID, contextID, callback.Message.MessageID)
		if errors.Is(err, domain.ErrPermitExpired) {
			_ = s.chat.SendMessage(ctx, chatID, "This reply window has expired.")
			return
		}
		if err != nil {
			s.logger.Error("activate reply session failed", "error", err, "chat_id", chatID)
			return
		}
		_ = s.chat.SendMessage(ctx, chatID, "Replying to *"+session.Target+"* — type your message now.")
		return
	}

	switch callback.Data {
	case "help":
		_ = s.chat.SendMessage(ctx, chatID, helpText)
	case "status":
		_ = s.chat.SendMessage(ctx, chatID, s.statusText(ctx, chatID))
	case "disconnect":
		s.handleDisconnect(ctx, chatID)
	default:
		// unrecognized payloads are acknowledged and dropped
	}
}

func (s *BotService) handleCommand(ctx context.Context, message telegram.Message) {
	fields := strings.Fields(strings.TrimSpace(message.Text))
	if len(fields) == 0 {
		return
	}
	name := strings.TrimPrefix(fields[0], "/")
	args := fields[1:]
	chatID := message.Chat.ID

	switch name {
	case "start":
		s.handleStart(ctx, chatID, args)
	case "link":
		if len(args) != 1 {
			_ = s.chat.SendMessage(ctx, chatID, "Usage: /link <token>")
			return
		}
		s.redeemToken(ctx, chatID, args[0])
	case "disconnect":
		s.handleDisconnect(ctx, chatID)
	case "status":
		_ = s.chat.SendMessage(ctx, chatID, s.statusText(ctx, chatID))
	case "reply":
		s.handleDirectReply(ctx, chatID, args, domain.ReplyKindPM)
	case "guild":
		s.handleDirectReply(ctx, chatID, args, domain.ReplyKindGuild)
	case "help":
		_ = s.chat.SendMessage(ctx, chatID, helpText)
	default:
		_ = s.chat.SendMessage(ctx, chatID, "Unknown command. Use /help to see what I understand.")
	}
}

func (s *BotService) handleStart(ctx context.Context, chatID int64, args []string) {
	accountID, linked, err := s.links.AccountForChat(ctx, chatID)
	if err != nil {
		s.logger.Error("link lookup failed", "error", err, "chat_id", chatID)
		return
	}
	if linked {
		_ = s.chat.SendMessage(ctx, chatID, "Already linked to *"+accountID+"*. Use /disconnect to unlink.")
		return
	}
	if len(args) > 0 {
		s.redeemToken(ctx, chatID, args[0])
		return
	}
	keyboard := [][]telegram.InlineKeyboardButton{{
		{Text: "Help", CallbackData: "help"},
		{Text: "Status", CallbackData: "status"},
	}}
	_ = s.chat.SendMessageWithInlineKeyboard(ctx, chatID, "Welcome! Link your game account with /link <token>. Get a token from the game's settings screen.", keyboard)
}

func (s *BotService) redeemToken(ctx context.Context, chatID int64, token string) {
	account, err := s.links.Resolve(ctx, chatID, token)
	if errors.Is(err, domain.ErrTokenInvalidOrExpired) {
		_ = s.chat.SendMessage(ctx, chatID, "That token is invalid or has expired. Request a new one in the game.")
		return
	}
	if err != nil {
		s.logger.Error("token redemption failed", "error", err, "chat_id", chatID)
		_ = s.chat.SendMessage(ctx, chatID, "Linking failed, please try again.")
		return
	}
	text := "Linked to account *" + account.AccountID + "*."
	if account.ServerID != "" {
		text = "Linked to account *" + account.AccountID + "* on server *" + account.ServerID + "*."
	}
	_ = s.chat.SendMessage(ctx, chatID, text)
}

func (s *BotService) handleDisconnect(ctx context.Context, chatID int64) {
	removed, err := s.links.Disconnect(ctx, chatID)
	if err != nil {
		s.logger.Error("disconnect failed", "error", err, "chat_id", chatID)
		_ = s.chat.SendMessage(ctx, chatID, "Could not disconnect, please try again.")
		return
	}
	if removed {
		_ = s.chat.SendMessage(ctx, chatID, "Disconnected. You will no longer receive game notifications here.")
		return
	}
	_ = s.chat.SendMessage(ctx, chatID, "This chat is not linked to any game account.")
}

func (s *BotService) statusText(ctx context.Context, chatID int64) string {
	accountID, linked, err := s.links.AccountForChat(ctx, chatID)
	if err != nil {
		s.logger.Error("status lookup failed", "error", err, "chat_id", chatID)
		return "Could not look up your link status."
	}
	if !linked {
		return "Not linked. Use /link <token> to connect your game account."
	}
	return "Linked to account *" + accountID + "*."
}

func (s *BotService) handleDirectReply(ctx context.Context, chatID int64, args []string, kind domain.ReplyKind) {
	if len(args) == 0 {
		usage := "Usage: /reply <message>"
		if kind == domain.ReplyKindGuild {
			usage = "Usage: /guild <message>"
		}
		_ = s.chat.SendMessage(ctx, chatID, usage)
		return
	}

	accountID, linked, err := s.links.AccountForChat(ctx, chatID)
	if err != nil {
		s.logger.Error("link lookup failed", "error", err, "chat_id", chatID)
		return
	}
	if !linked {
		_ = s.chat.SendMessage(ctx, chatID, "Not linked. Use /link <token> first.")
		return
	}

	sender, found, err := s.sessions.LastSender(ctx, chatID, kind)
	if err != nil {
		s.logger.Error("last sender lookup failed", "error", err, "chat_id", chatID)
		return
	}
	if !found {
		_ = s.chat.SendMessage(ctx, chatID, "No recent message to reply to.")
		return
	}

	content := strings.Join(args, " ")
	if err := s.queueReply(ctx, accountID, sender, kind, content); err != nil {
		s.logger.Error("queue reply failed", "error", err, "chat_id", chatID)
		_ = s.chat.SendMessage(ctx, chatID, "Could not queue your reply, please try again.")
		return
	}
	if kind == domain.ReplyKindGuild {
		_ = s.chat.SendMessage(ctx, chatID, "Guild reply queued.")
		return
	}
	_ = s.chat.SendMessage(ctx, chatID, "Reply to *"+sender+"* queued.")
}

func (s *BotService) handleFreeText(ctx context.Context, message telegram.Message, text string) {
	chatID := message.Chat.ID
	session, active, err := s.sessions.Consume(ctx, chatID)
	if err != nil {
		s.logger.Error("consume reply session failed", "error", err, "chat_id", chatID)
		return
	}
	if !active {
		// free text outside a reply session carries no meaning here
		return
	}

	accountID, linked, err := s.links.AccountForChat(ctx, chatID)
	if err != nil || !linked {
		s.logger.Error("reply session for unlinked chat", "error", err, "chat_id", chatID)
		return
	}

	if err := s.queueReply(ctx, accountID, session.Target, session.Kind, text); err != nil {
		s.logger.Error("queue reply failed", "error", err, "chat_id", chatID)
		_ = s.chat.SendMessage(ctx, chatID, "Could not queue your reply, please try again.")
		return
	}

	// cosmetic: strip the Reply button from the original notification
	if session.AnchorMessageID != 0 {
		if err := s.chat.EditMessageReplyMarkup(ctx, chatID, session.AnchorMessageID, [][]telegram.InlineKeyboardButton{}); err != nil {
			s.logger.Debug("clear reply button failed", "error", err, "chat_id", chatID)
		}
	}

	if session.Kind == domain.ReplyKindGuild {
		_ = s.chat.SendMessage(ctx, chatID, "Guild reply sent.")
		return
	}
	_ = s.chat.SendMessage(ctx, chatID, "Reply sent to *"+session.Target+"*.")
}

func (s *BotService) queueReply(ctx context.Context, accountID string, target string, kind domain.ReplyKind, content string) error {
	if kind == domain.ReplyKindGuild {
		// guild replies address the guild channel, not an individual
		return s.outbox.PushReply(ctx, accountID, "", content)
	}
	return s.outbox.PushReply(ctx, accountID, target, content)
}
