package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/relay-bot/internal/delivery"
	"github.com/xaenox/relay-bot/internal/models"
	"github.com/xaenox/relay-bot/internal/storage"
	"go.uber.org/zap"
)

type Config struct {
	// OperatorID is the single chat identity allowed to receive forwarded
	// messages and issue administrative commands.
	OperatorID int64
}

// Bot routes inbound webhook updates between end users and the operator and
// drives the pending-action state machine for operator prompts.
type Bot struct {
	sender     delivery.Sender
	storage    storage.Storage
	logger     *zap.Logger
	operatorID int64
}

func New(cfg Config, sender delivery.Sender, store storage.Storage, logger *zap.Logger) *Bot {
	return &Bot{
		sender:     sender,
		storage:    store,
		logger:     logger,
		operatorID: cfg.OperatorID,
	}
}

// HandleUpdate classifies one inbound update and dispatches it. It never
// returns an error: every internal failure is absorbed and at most reported
// to the operator, so the webhook acknowledgement cannot fail.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	default:
		b.logger.Debug("Ignoring update without message or callback",
			zap.Int("update_id", update.UpdateID))
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil {
		b.logger.Debug("Dropping message without sender or chat")
		return
	}

	// Counted before routing, whatever happens next.
	if err := b.storage.AddStats(ctx, models.Stats{MessagesReceived: 1}); err != nil {
		b.logger.Error("Failed to count inbound message", zap.Error(err))
	}

	if message.From.ID == b.operatorID {
		b.handleOperatorMessage(ctx, message)
		return
	}
	b.handleUserMessage(ctx, message)
}

// notifyOperator sends a status line to the operator chat; failures are
// logged and swallowed.
func (b *Bot) notifyOperator(ctx context.Context, chatID int64, text string) {
	if _, err := b.sender.SendText(ctx, chatID, text); err != nil {
		b.logger.Error("Failed to notify operator", zap.Error(err))
	}
}

func displayName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	return "anonymous"
}
