package ports

import (
	"context"
	"time"

	"github.com/hanamilabs/game-telegram-relay/internal/telegram"
)

// KeyValueStore is the slice of Redis the relay depends on. Values are
// opaque strings; structured values are JSON-encoded by the caller. A TTL
// of zero means no expiry. Lookups report absence as found=false, not as an
// error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	GetDel(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	RPush(ctx context.Context, key string, value string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	HSet(ctx context.Context, key string, field string, value string) error
}

type ChatClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageWithInlineKeyboard(ctx context.Context, chatID int64, text string, rows [][]telegram.InlineKeyboardButton) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error
	EditMessageReplyMarkup(ctx context.Context, chatID int64, messageID int64, rows [][]telegram.InlineKeyboardButton) error
}
