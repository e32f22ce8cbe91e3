// Package telegram is the conversational front door: one target per message,
// answered with a rendered report.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"vanguard/internal/services/audit"
)

const (
	pollTimeout = 30 // seconds, server side long poll

	greeting     = "🛡 VANGUARD SAI-838 ONLINE.\nReady for target acquisition."
	slowDown     = "⏳ Slow down. One target at a time."
	analyzingFmt = "🛰 ANALYZING: %s"
	capturedFmt  = "✅ INTEL CAPTURED\nCost to fix: $%d"
	failedFmt    = "❌ AUDIT FAILED: %v"
)

// API is the subset of the Bot API client the bot uses.
type API interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Auditor interface {
	Audit(ctx context.Context, target string) (audit.Outcome, error)
}

type Bot struct {
	api     API
	auditor Auditor
	log     *slog.Logger

	perChat    rate.Limit
	limitersMu sync.Mutex
	limiters   map[int64]*rate.Limiter

	newBackOff func() backoff.BackOff
}

// New builds a bot. perChatRate is messages per second per chat; 0 disables limiting.
func New(api API, auditor Auditor, perChatRate float64, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		auditor:  auditor,
		log:      log,
		perChat:  rate.Limit(perChatRate),
		limiters: make(map[int64]*rate.Limiter),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Run is the single receive loop. Poll errors back off and retry until ctx
// is done; handling of each message is synchronous.
func (b *Bot) Run(ctx context.Context) error {
	offset := b.skipPending()
	bo := b.newBackOff()
	for {
		if ctx.Err() != nil {
			return nil
		}
		u := tgbotapi.NewUpdate(offset)
		u.Timeout = pollTimeout
		updates, err := b.api.GetUpdates(u)
		if err != nil {
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				return fmt.Errorf("telegram poll: %w", err)
			}
			b.log.Warn("telegram poll failed", "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.handle(ctx, upd)
		}
	}
}

// skipPending drops messages queued while the bot was offline.
func (b *Bot) skipPending() int {
	u := tgbotapi.NewUpdate(-1)
	u.Timeout = 0
	updates, err := b.api.GetUpdates(u)
	if err != nil || len(updates) == 0 {
		return 0
	}
	return updates[len(updates)-1].UpdateID + 1
}

func (b *Bot) handle(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		if msg.Command() == "start" {
			b.reply(chatID, greeting)
		}
		return
	}

	target := strings.TrimSpace(msg.Text)
	if target == "" {
		return
	}
	if !b.allow(chatID) {
		b.reply(chatID, slowDown)
		return
	}

	b.reply(chatID, fmt.Sprintf(analyzingFmt, target))
	out, err := b.auditor.Audit(ctx, target)
	if err != nil {
		b.log.Error("bot audit failed", "chat_id", chatID, "target", target, "err", err)
		b.reply(chatID, fmt.Sprintf(failedFmt, err))
		return
	}
	if out.PersistErr != nil {
		b.log.Warn("job store not updated", "chat_id", chatID, "target", target, "err", out.PersistErr)
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: out.Document.Name, Bytes: out.Document.Content})
	doc.Caption = fmt.Sprintf(capturedFmt, out.Finding.Cost)
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("send report", "chat_id", chatID, "pdf", out.Document.Name, "err", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn("send message", "chat_id", chatID, "err", err)
	}
}

func (b *Bot) allow(chatID int64) bool {
	if b.perChat <= 0 {
		return true
	}
	b.limitersMu.Lock()
	l, ok := b.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(b.perChat, 1)
		b.limiters[chatID] = l
	}
	b.limitersMu.Unlock()
	return l.Allow()
}
