// Package transport defines the outbound messaging boundary.
//
// Components never talk to Telegram directly; they hold a Sender. The only
// production implementation lives in transport/telegram.
package transport

import "context"

// ChatTarget identifies a destination chat.
//
// ChatID is kept as a string: Telegram accepts numeric ids as well as
// "@channelname" handles.
type ChatTarget struct {
	ChatID   string
	ThreadID int // forum topic thread id (0 if none)
}

func (t ChatTarget) IsZero() bool { return t.ChatID == "" }

type MessageRef struct {
	ChatID    string
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers a single text message.
// Implementations return an error for transport failures and for any
// non-success response from the messaging API.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)

func (f SenderFunc) SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error) {
	return f(ctx, to, text, opt)
}
