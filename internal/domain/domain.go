package domain

import "errors"

type ReplyKind string

const (
	ReplyKindPM    ReplyKind = "pm"
	ReplyKindGuild ReplyKind = "guild"
)

type LinkedAccount struct {
	AccountID string
	ServerID  string
}

type ReplyPermit struct {
	Target string    `json:"target"`
	Kind   ReplyKind `json:"type"`
}

type ReplySession struct {
	Target          string    `json:"target"`
	Kind            ReplyKind `json:"type"`
	ContextID       string    `json:"contextId"`
	AnchorMessageID int64     `json:"originalMessageId"`
}

var (
	ErrTokenInvalidOrExpired = errors.New("link token invalid or expired")
	ErrNotLinked             = errors.New("chat not linked to a game account")
	ErrPermitExpired         = errors.New("reply window expired")
)
