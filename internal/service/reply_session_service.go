package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hanamilabs/game-telegram-relay/internal/domain"
	"github.com/hanamilabs/game-telegram-relay/internal/ports"
)

// ReplySessionService tracks the per-chat reply state machine:
// Idle -> PermitIssued -> SessionActive -> Idle. Expiry is delegated to the
// store's per-key TTL; an expired permit or session simply stops resolving.
type ReplySessionService struct {
	store  ports.KeyValueStore
	window time.Duration
	seq    atomic.Uint64
}

func NewReplySessionService(store ports.KeyValueStore, window time.Duration) *ReplySessionService {
	if window <= 0 {
		window = 300 * time.Second
	}
	return &ReplySessionService{store: store, window: window}
}

func permitKey(chatID int64, contextID string) string {
	return "reply_permit:" + strconv.FormatInt(chatID, 10) + ":" + contextID
}

func sessionKey(chatID int64) string {
	return "active_reply:" + strconv.FormatInt(chatID, 10)
}

func lastSenderKey(chatID int64, kind domain.ReplyKind) string {
	if kind == domain.ReplyKindGuild {
		return "last_guild_sender:" + strconv.FormatInt(chatID, 10)
	}
	return "last_pm_sender:" + strconv.FormatInt(chatID, 10)
}

// nextContextID returns an id unique within a chat's reply window: unix
// nanos in base36 plus a per-process counter, short enough for Telegram's
// 64-byte callback-data budget.
func (s *ReplySessionService) nextContextID() string {
	nanos := strconv.FormatInt(time.Now().UnixNano(), 36)
	seq := strconv.FormatUint(s.seq.Add(1)%4096, 36)
	return nanos + "-" + seq
}

func (s *ReplySessionService) IssuePermit(ctx context.Context, chatID int64, target string, kind domain.ReplyKind) (string, error) {
	contextID := s.nextContextID()
	raw, err := json.Marshal(domain.ReplyPermit{Target: target, Kind: kind})
	if err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, permitKey(chatID, contextID), string(raw), s.window); err != nil {
		return "", err
	}
	if err := s.store.Set(ctx, lastSenderKey(chatID, kind), target, s.window); err != nil {
		return "", err
	}
	return contextID, nil
}

// Activate consumes the permit and opens the chat's reply session. The GETDEL
// on the permit makes a second activation of the same context fail with
// domain.ErrPermitExpired. A prior session for the chat is overwritten,
// last-writer-wins.
func (s *ReplySessionService) Activate(ctx context.Context, chatID int64, contextID string, anchorMessageID int64) (domain.ReplySession, error) {
	raw, found, err := s.store.GetDel(ctx, permitKey(chatID, contextID))
	if err != nil {
		return domain.ReplySession{}, err
	}
	if !found {
		return domain.ReplySession{}, domain.ErrPermitExpired
	}

	var permit domain.ReplyPermit
	if err := json.Unmarshal([]byte(raw), &permit); err != nil {
		return domain.ReplySession{}, domain.ErrPermitExpired
	}

	session := domain.ReplySession{
		Target:          permit.Target,
		Kind:            permit.Kind,
		ContextID:       contextID,
		AnchorMessageID: anchorMessageID,
	}
	encoded, err := json.Marshal(session)
	if err != nil {
		return domain.ReplySession{}, err
	}
	if err := s.store.Set(ctx, sessionKey(chatID), string(encoded), s.window); err != nil {
		return domain.ReplySession{}, err
	}
	return session, nil
}

// Consume reads and deletes the active session in one step. Of two texts
// racing on the same chat, one consumes the session and the other sees none.
// The permit key is deleted again in case Activate crashed between writing
// the session and removing it.
func (s *ReplySessionService) Consume(ctx context.Context, chatID int64) (domain.ReplySession, bool, error) {
	raw, found, err := s.store.GetDel(ctx, sessionKey(chatID))
	if err != nil {
		return domain.ReplySession{}, false, err
	}
	if !found {
		return domain.ReplySession{}, false, nil
	}

	var session domain.ReplySession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return domain.ReplySession{}, false, nil
	}
	if session.ContextID != "" {
		if err := s.store.Delete(ctx, permitKey(chatID, session.ContextID)); err != nil {
			return domain.ReplySession{}, false, err
		}
	}
	return session, true, nil
}

func (s *ReplySessionService) LastSender(ctx context.Context, chatID int64, kind domain.ReplyKind) (string, bool, error) {
	return s.store.Get(ctx, lastSenderKey(chatID, kind))
}
