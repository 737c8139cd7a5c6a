package notification

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	applog "github.com/quimera/catalog-ingest/pkg/log"
)

const (
	// messageMaxLength is the Telegram Bot API limit per message.
	messageMaxLength = 4096

	sendAttempts   = 3
	sendRetryDelay = 2 * time.Second
)

// TelegramConfig holds the bot credentials and target chat.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// TelegramSender delivers messages to a Telegram chat. Long messages are
// split on line boundaries to stay under the API limit, and sends are rate
// limited to keep the bot inside Telegram's per-chat quota.
type TelegramSender struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter
}

// NewTelegramSender authorizes the bot and returns the sender.
func NewTelegramSender(cfg TelegramConfig) (*TelegramSender, error) {
	return newTelegramSender(cfg, tgbotapi.APIEndpoint)
}

func newTelegramSender(cfg TelegramConfig, endpoint string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unauthorized, "failed to authorize telegram bot")
	}

	applog.WithComponentAndFields(component, applog.Fields{
		"bot": bot.Self.UserName,
	}).Info("telegram bot authorized")

	return &TelegramSender{
		bot:     bot,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// Send delivers the message, splitting it into chunks when it exceeds the
// API limit. Chunks are sent in order; a failed chunk aborts the rest.
func (s *TelegramSender) Send(ctx context.Context, message string) error {
	if len(message) <= messageMaxLength {
		return s.sendChunk(ctx, message)
	}

	var sb strings.Builder
	sb.Grow(messageMaxLength)

	for line := range strings.SplitSeq(message, "\n") {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		needed := len(line)
		if sb.Len() > 0 {
			needed++
		}

		if sb.Len()+needed > messageMaxLength {
			if sb.Len() > 0 {
				if err := s.sendChunk(ctx, sb.String()); err != nil {
					return err
				}
				sb.Reset()
			}

			// a single line can itself exceed the limit
			for len(line) > messageMaxLength {
				chunk, rest := safeSplit(line, messageMaxLength)
				if err := s.sendChunk(ctx, chunk); err != nil {
					return err
				}
				line = rest
			}
			sb.WriteString(line)
			continue
		}

		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
	}

	if sb.Len() > 0 {
		return s.sendChunk(ctx, sb.String())
	}
	return nil
}

// sendChunk sends one message within the length limit, retrying transient
// failures and honoring the API's retry-after on 429.
func (s *TelegramSender) sendChunk(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		_, err := s.bot.Send(tgbotapi.NewMessage(s.chatID, message))
		if err == nil {
			return nil
		}
		lastErr = err

		delay, retriable := sendRetryPolicy(err)
		if !retriable || attempt == sendAttempts {
			break
		}

		applog.WithComponentAndFields(component, applog.Fields{
			"attempt": attempt,
		}).WithError(err).Warn("telegram send failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return apperrors.Wrap(lastErr, apperrors.ExecutionFailed, "failed to send telegram message")
}

// sendRetryPolicy decides whether a failed send is worth retrying and how
// long to wait. Client-side errors other than 429 are permanent.
func sendRetryPolicy(err error) (time.Duration, bool) {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		// transport-level failure
		return sendRetryDelay, true
	}

	switch {
	case apiErr.Code == 429:
		if retryAfter := apiErr.ResponseParameters.RetryAfter; retryAfter > 0 {
			return time.Duration(retryAfter) * time.Second, true
		}
		return sendRetryDelay, true
	case apiErr.Code >= 500:
		return sendRetryDelay, true
	default:
		return 0, false
	}
}

// safeSplit cuts s at or just before limit bytes without breaking a UTF-8
// sequence.
func safeSplit(s string, limit int) (chunk, rest string) {
	if len(s) <= limit {
		return s, ""
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], s[cut:]
}
