package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hanamilabs/game-telegram-relay/internal/ports"
)

// OutboxService queues player replies for the game server's poller. The list
// shape is a compatibility contract: entries are JSON {to, content} in FIFO
// order, with `to` omitted for guild messages, and the list TTL is refreshed
// to the full window on every push.
type OutboxService struct {
	store ports.KeyValueStore
	ttl   time.Duration
}

type outboxEntry struct {
	To      string `json:"to,omitempty"`
	Content string `json:"content"`
}

func NewOutboxService(store ports.KeyValueStore, ttl time.Duration) *OutboxService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &OutboxService{store: store, ttl: ttl}
}

func pendingKey(accountID string) string { return "pending:" + accountID }

func (s *OutboxService) PushReply(ctx context.Context, accountID string, to string, content string) error {
	raw, err := json.Marshal(outboxEntry{To: to, Content: content})
	if err != nil {
		return err
	}
	if err := s.store.RPush(ctx, pendingKey(accountID), string(raw)); err != nil {
		return err
	}
	return s.store.Expire(ctx, pendingKey(accountID), s.ttl)
}
