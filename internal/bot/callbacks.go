package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

// Callback payloads carried by inline buttons.
const (
	callbackReplyPrefix = "reply:"
	callbackBlockPrefix = "block:"
	callbackDeleteEgg   = "delete_egg"
	callbackDeletePrize = "delete_prize"
)

const (
	promptDeleteEgg   = "Answer this message with the number of the egg to delete."
	promptDeletePrize = "Answer this message with the number of the prize to delete."
)

// handleCallback turns a button press into a pending action plus a
// forced-reply prompt, keyed by the prompt's own message id.
func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.From == nil || query.Message == nil {
		b.logger.Debug("Dropping malformed callback query")
		return
	}
	if query.From.ID != b.operatorID {
		b.logger.Warn("Ignoring callback from non-operator",
			zap.Int64("user_id", query.From.ID))
		return
	}

	if err := b.sender.AnswerCallback(ctx, query.ID); err != nil {
		b.logger.Warn("Failed to answer callback", zap.Error(err))
	}

	data := query.Data
	switch {
	case strings.HasPrefix(data, callbackReplyPrefix):
		target, err := strconv.ParseInt(strings.TrimPrefix(data, callbackReplyPrefix), 10, 64)
		if err != nil {
			b.logger.Warn("Malformed callback payload", zap.String("data", data))
			return
		}
		b.createPrompt(ctx, query.Message.Chat.ID, query.Message, models.PendingAction{
			Type:     models.ActionReplyToUser,
			TargetID: target,
		}, fmt.Sprintf("✏️ Reply to user %d — answer this message with the text to send.", target))

	case strings.HasPrefix(data, callbackBlockPrefix):
		target, err := strconv.ParseInt(strings.TrimPrefix(data, callbackBlockPrefix), 10, 64)
		if err != nil {
			b.logger.Warn("Malformed callback payload", zap.String("data", data))
			return
		}
		b.createPrompt(ctx, query.Message.Chat.ID, query.Message, models.PendingAction{
			Type:     models.ActionBlockWithReason,
			TargetID: target,
		}, fmt.Sprintf("🚫 Blocking user %d — answer this message with the reason.", target))

	case data == callbackDeleteEgg:
		b.createPrompt(ctx, query.Message.Chat.ID, query.Message, models.PendingAction{
			Type: models.ActionDeleteEgg,
		}, promptDeleteEgg)

	case data == callbackDeletePrize:
		b.createPrompt(ctx, query.Message.Chat.ID, query.Message, models.PendingAction{
			Type: models.ActionDeletePrize,
		}, promptDeletePrize)

	default:
		b.logger.Warn("Unknown callback payload", zap.String("data", data))
	}
}

// createPrompt sends the forced-reply prompt and stores the pending action
// under the prompt's message id. origin is the message carrying the pressed
// button, recorded as the message to edit on terminal resolution; it is nil
// for prompts started by a command.
func (b *Bot) createPrompt(ctx context.Context, chatID int64, origin *tgbotapi.Message, action models.PendingAction, text string) {
	promptID, err := b.sender.SendWithMarkup(ctx, chatID, text,
		tgbotapi.ForceReply{ForceReply: true, Selective: true})
	if err != nil {
		b.logger.Error("Failed to send forced-reply prompt", zap.Error(err))
		return
	}

	if origin != nil {
		action.PromptChatID = origin.Chat.ID
		action.PromptMessageID = origin.MessageID
	}
	action.CreatedAt = time.Now()

	if err := b.storage.PutPendingAction(ctx, promptID, action); err != nil {
		b.logger.Error("Failed to store pending action",
			zap.Error(err),
			zap.Int("prompt_id", promptID))
	}
}
