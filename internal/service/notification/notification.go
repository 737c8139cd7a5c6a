// Package notification delivers run reports to the operator. Telegram is
// the production channel; NopSender serves setups that do not want any.
package notification

import "context"

const component = "notification"

// Sender delivers a plain-text message to the configured channel.
type Sender interface {
	Send(ctx context.Context, message string) error
}

// NopSender discards every message.
type NopSender struct{}

func (NopSender) Send(ctx context.Context, message string) error { return nil }
