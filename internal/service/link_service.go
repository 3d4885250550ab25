package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hanamilabs/game-telegram-relay/internal/domain"
	"github.com/hanamilabs/game-telegram-relay/internal/ports"
)

// LinkService redeems one-time link tokens and maintains the bidirectional
// chat<->account association.
type LinkService struct {
	store ports.KeyValueStore
}

func NewLinkService(store ports.KeyValueStore) *LinkService {
	return &LinkService{store: store}
}

func tokenKey(token string) string { return "token:" + token }

func chatKey(chatID int64) string { return "chat:" + strconv.FormatInt(chatID, 10) }

func accountKey(accountID string) string { return "account:" + accountID }

func metaKey(accountID string) string { return "meta:" + accountID }

// Resolve consumes the token and links the chat. The GETDEL makes redemption
// one-shot: of two concurrent redeemers exactly one sees the value, the other
// gets domain.ErrTokenInvalidOrExpired.
func (s *LinkService) Resolve(ctx context.Context, chatID int64, token string) (domain.LinkedAccount, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.LinkedAccount{}, domain.ErrTokenInvalidOrExpired
	}

	value, found, err := s.store.GetDel(ctx, tokenKey(token))
	if err != nil {
		return domain.LinkedAccount{}, err
	}
	if !found {
		return domain.LinkedAccount{}, domain.ErrTokenInvalidOrExpired
	}

	account := parseTokenValue(value)
	if account.AccountID == "" {
		return domain.LinkedAccount{}, domain.ErrTokenInvalidOrExpired
	}

	chatValue := strconv.FormatInt(chatID, 10)
	if err := s.store.Set(ctx, chatKey(chatID), account.AccountID, 0); err != nil {
		return domain.LinkedAccount{}, err
	}
	if err := s.store.Set(ctx, accountKey(account.AccountID), chatValue, 0); err != nil {
		return domain.LinkedAccount{}, err
	}
	if account.ServerID != "" {
		if err := s.store.HSet(ctx, metaKey(account.AccountID), "server", account.ServerID); err != nil {
			return domain.LinkedAccount{}, err
		}
	}

	return account, nil
}

// parseTokenValue accepts the structured {accountId, serverId} form and falls
// back to treating the whole value as a bare account id (legacy token shape).
func parseTokenValue(value string) domain.LinkedAccount {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") {
		var structured struct {
			AccountID string `json:"accountId"`
			ServerID  string `json:"serverId"`
		}
		if err := json.Unmarshal([]byte(trimmed), &structured); err == nil && structured.AccountID != "" {
			return domain.LinkedAccount{AccountID: structured.AccountID, ServerID: structured.ServerID}
		}
	}
	return domain.LinkedAccount{AccountID: trimmed}
}

// Disconnect removes both directions of the link. A chat that was never
// linked is a no-op returning false.
func (s *LinkService) Disconnect(ctx context.Context, chatID int64) (bool, error) {
	accountID, found, err := s.store.Get(ctx, chatKey(chatID))
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := s.store.Delete(ctx, chatKey(chatID), accountKey(accountID)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *LinkService) AccountForChat(ctx context.Context, chatID int64) (string, bool, error) {
	return s.store.Get(ctx, chatKey(chatID))
}

func (s *LinkService) ChatForAccount(ctx context.Context, accountID string) (int64, bool, error) {
	value, found, err := s.store.Get(ctx, accountKey(accountID))
	if err != nil || !found {
		return 0, false, err
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return chatID, true, nil
}
