// Package notify delivers formatted article messages to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageRunes is Telegram's hard message size limit.
const MaxMessageRunes = 4096

// Telegram sends messages to one chat via the Bot API. It performs no
// retries; a failed send is reported to the caller and that is the end of it.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authenticates against the Bot API. An invalid token fails here,
// before any run starts.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Send delivers one message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// FormatMessage lays out one article as a chat message:
// title, published time, body excerpt, and the article link, bounded to
// Telegram's message size.
func FormatMessage(title, published, excerpt, url string) string {
	if published == "" {
		published = "Unknown"
	}
	msg := fmt.Sprintf("%s\n\nPublished: %s\n\n%s\n\nRead more: %s", title, published, excerpt, url)

	runes := []rune(msg)
	if len(runes) <= MaxMessageRunes {
		return msg
	}

	// Trim the excerpt, never the link.
	overflow := len(runes) - MaxMessageRunes + 3
	trimmed := []rune(excerpt)
	if overflow >= len(trimmed) {
		trimmed = nil
	} else {
		trimmed = trimmed[:len(trimmed)-overflow]
	}
	body := strings.TrimSpace(string(trimmed)) + "..."
	return fmt.Sprintf("%s\n\nPublished: %s\n\n%s\n\nRead more: %s", title, published, body, url)
}
