// Package notify reports finished pipeline runs.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"lemoncrawl/internal/domain"
)

// Notifier delivers a run summary somewhere a human will see it.
type Notifier interface {
	Notify(ctx context.Context, summary domain.RunSummary) error
}

// Nop drops every summary.
type Nop struct{}

func (Nop) Notify(context.Context, domain.RunSummary) error { return nil }

// sender is the part of *tgbot.Bot the notifier uses.
type sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// Telegram sends run summaries to one chat.
type Telegram struct {
	bot    sender
	chatID int64
	log    logrus.FieldLogger
}

// NewTelegram creates the bot client. Polling is never started; the bot only sends.
func NewTelegram(token string, chatID int64, logger logrus.FieldLogger) (*Telegram, error) {
	log := logger.WithField("component", "telegram_notifier")

	b, err := tgbot.New(token)
	if err != nil {
		log.WithError(err).Error("Failed to create Telegram bot instance")
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.WithField("chat_id", chatID).Info("Telegram notifier initialized")
	return &Telegram{bot: b, chatID: chatID, log: log}, nil
}

func (t *Telegram) Notify(ctx context.Context, summary domain.RunSummary) error {
	_, err := t.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: t.chatID,
		Text:   FormatSummary(summary),
	})
	if err != nil {
		t.log.WithError(err).WithField("run_id", summary.RunID).Error("Failed to send run summary")
		return fmt.Errorf("failed to send run summary: %w", err)
	}
	return nil
}

// FormatSummary renders a summary as a short plain-text message.
func FormatSummary(s domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "lemoncrawl %s finished", s.Command)
	if d := s.Duration(); d > 0 {
		fmt.Fprintf(&b, " in %s", d.Round(time.Second))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "total: %d\nsaved: %d\n", s.Total, s.Saved)
	if s.Partial > 0 {
		fmt.Fprintf(&b, "partial: %d\n", s.Partial)
	}
	fmt.Fprintf(&b, "skipped: %d\nfailed: %d\n", s.Skipped, s.Failed)
	if s.RunID != "" {
		fmt.Fprintf(&b, "run: %s", s.RunID)
	}
	return strings.TrimRight(b.String(), "\n")
}
