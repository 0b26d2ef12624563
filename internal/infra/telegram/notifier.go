package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*Notifier)(nil)

// Notifier posts job outcomes to an ops chat. All sends are best-effort;
// the pipeline never blocks on a failed delivery.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewNotifier(token string, chatID int64, log *zerolog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID, log: log}, nil
}

func (n *Notifier) NotifyJobCompleted(ctx context.Context, job *model.Job) error {
	scraped, analyzed, inserted := job.Progress.Scraped, job.Progress.Analyzed, job.Progress.Inserted
	if job.Result != nil {
		scraped, analyzed, inserted = job.Result.Scraped, job.Result.Analyzed, job.Result.Inserted
	}
	text := fmt.Sprintf("✅ Scrape job %s completed\nURL: %s\nScraped: %d, analyzed: %d, inserted: %d",
		job.ID, job.URL, scraped, analyzed, inserted)
	return n.send(ctx, text)
}

func (n *Notifier) NotifyJobFailed(ctx context.Context, job *model.Job) error {
	text := fmt.Sprintf("❌ Scrape job %s failed\nURL: %s\nError: %s", job.ID, job.URL, job.Error)
	return n.send(ctx, text)
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Msg("telegram notify failed")
		return err
	}
	return nil
}
