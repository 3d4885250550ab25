package service

import (
	"context"
	"errors"
	"time"

	"github.com/hanamilabs/game-telegram-relay/internal/telegram"
)

type fakeStore struct {
	values  map[string]string
	ttls    map[string]time.Duration
	lists   map[string][]string
	hashes  map[string]map[string]string
	failAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		values: map[string]string{},
		ttls:   map[string]time.Duration{},
		lists:  map[string][]string{},
		hashes: map[string]map[string]string{},
	}
}

var errStoreDown = errors.New("store unavailable")

func (f *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	if f.failAll {
		return "", false, errStoreDown
	}
	value, ok := f.values[key]
	return value, ok, nil
}

func (f *fakeStore) GetDel(_ context.Context, key string) (string, bool, error) {
	if f.failAll {
		return "", false, errStoreDown
	}
	value, ok := f.values[key]
	if ok {
		delete(f.values, key)
		delete(f.ttls, key)
	}
	return value, ok, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if f.failAll {
		return errStoreDown
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	if f.failAll {
		return errStoreDown
	}
	for _, key := range keys {
		delete(f.values, key)
		delete(f.ttls, key)
	}
	return nil
}

func (f *fakeStore) RPush(_ context.Context, key string, value string) error {
	if f.failAll {
		return errStoreDown
	}
	f.lists[key] = append(f.lists[key], value)
	return nil
}

func (f *fakeStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	if f.failAll {
		return errStoreDown
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) HSet(_ context.Context, key string, field string, value string) error {
	if f.failAll {
		return errStoreDown
	}
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	f.hashes[key][field] = value
	return nil
}

type sentMessage struct {
	chatID int64
	text   string
	rows   [][]telegram.InlineKeyboardButton
}

type markupEdit struct {
	chatID    int64
	messageID int64
	rows      [][]telegram.InlineKeyboardButton
}

type fakeChat struct {
	sent     []sentMessage
	answered []string
	edits    []markupEdit
	sendErr  error
}

func (f *fakeChat) SendMessage(_ context.Context, chatID int64, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeChat) SendMessageWithInlineKeyboard(_ context.Context, chatID int64, text string, rows [][]telegram.InlineKeyboardButton) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, rows: rows})
	return nil
}

func (f *fakeChat) AnswerCallbackQuery(_ context.Context, callbackQueryID string, _ string) error {
	f.answered = append(f.answered, callbackQueryID)
	return nil
}

func (f *fakeChat) EditMessageReplyMarkup(_ context.Context, chatID int64, messageID int64, rows [][]telegram.InlineKeyboardButton) error {
	f.edits = append(f.edits, markupEdit{chatID: chatID, messageID: messageID, rows: rows})
	return nil
}
