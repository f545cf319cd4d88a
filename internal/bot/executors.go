package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/relay-bot/internal/delivery"
	"github.com/xaenox/relay-bot/internal/models"
	"github.com/xaenox/relay-bot/internal/storage"
	"go.uber.org/zap"
)

func (b *Bot) handleOperatorMessage(ctx context.Context, message *tgbotapi.Message) {
	if res, ok := b.resolvePendingAction(ctx, message); ok {
		b.executeAction(ctx, message, res)
		return
	}

	if message.IsCommand() {
		b.handleOperatorCommand(ctx, message)
		return
	}

	b.notifyOperator(ctx, message.Chat.ID,
		"Nothing to correlate this with. Reply to a prompt, or use /help for commands.")
}

func (b *Bot) executeAction(ctx context.Context, message *tgbotapi.Message, res resolvedAction) {
	switch res.action.Type {
	case models.ActionReplyToUser:
		b.executeReply(ctx, message, res)
	case models.ActionBlockWithReason:
		b.executeBlock(ctx, message, res)
	case models.ActionDeleteEgg:
		b.executeDeleteEgg(ctx, message, res)
	case models.ActionDeletePrize:
		b.executeDeletePrize(ctx, message, res)
	default:
		b.logger.Error("Unknown pending action type",
			zap.String("type", string(res.action.Type)),
			zap.Int("message_id", res.key))
	}
}

func (b *Bot) executeReply(ctx context.Context, message *tgbotapi.Message, res resolvedAction) {
	text := strings.TrimSpace(replyText(message))
	if text == "" {
		b.restorePendingAction(ctx, res)
		b.notifyOperator(ctx, message.Chat.ID,
			"Reply text cannot be empty. Answer the prompt again.")
		return
	}

	target := res.action.TargetID
	if _, err := b.sender.SendText(ctx, target, text); err != nil {
		b.reportDeliveryFailure(ctx, message.Chat.ID, target, err)
		return
	}

	if err := b.storage.AddStats(ctx, models.Stats{RepliesSent: 1}); err != nil {
		b.logger.Error("Failed to count reply", zap.Error(err))
	}
	b.notifyOperator(ctx, message.Chat.ID, fmt.Sprintf("✅ Reply delivered to user %d.", target))
}

func (b *Bot) executeBlock(ctx context.Context, message *tgbotapi.Message, res resolvedAction) {
	reason := strings.TrimSpace(replyText(message))
	if reason == "" {
		b.restorePendingAction(ctx, res)
		b.notifyOperator(ctx, message.Chat.ID,
			"Block reason cannot be empty. Answer the prompt again.")
		return
	}

	b.blockUser(ctx, message.Chat.ID, res.action.TargetID, reason, &res.action)
}

// blockUser applies a blacklist entry. Shared by the forced-reply flow and
// the /block command; prompt may be nil when there is no message to edit.
func (b *Bot) blockUser(ctx context.Context, operatorChatID, target int64, reason string, prompt *models.PendingAction) {
	existing, blacklisted, err := b.storage.BlacklistReason(ctx, target)
	if err != nil {
		b.logger.Error("Blacklist lookup failed", zap.Error(err), zap.Int64("user_id", target))
		b.notifyOperator(ctx, operatorChatID, "Could not check the blacklist, try again.")
		return
	}
	if blacklisted {
		b.notifyOperator(ctx, operatorChatID,
			fmt.Sprintf("User %d is already blacklisted: %s", target, existing))
		return
	}

	if err := b.storage.SetBlacklisted(ctx, target, reason); err != nil {
		b.logger.Error("Failed to blacklist user", zap.Error(err), zap.Int64("user_id", target))
		b.notifyOperator(ctx, operatorChatID, "Could not save the blacklist entry, try again.")
		return
	}
	if err := b.storage.AddStats(ctx, models.Stats{UsersBlocked: 1}); err != nil {
		b.logger.Error("Failed to count block", zap.Error(err))
	}

	// Best effort; the user may well have blocked the bot already.
	if _, err := b.sender.SendText(ctx, target,
		"You have been blocked by the operator. Reason: "+reason); err != nil {
		b.logger.Warn("Could not notify blocked user",
			zap.Error(err),
			zap.Int64("user_id", target))
	}

	if prompt != nil && prompt.PromptChatID != 0 {
		terminal := fmt.Sprintf("🚫 Blocked user %d — %s", target, reason)
		if err := b.sender.EditText(ctx, prompt.PromptChatID, prompt.PromptMessageID, terminal); err != nil {
			b.logger.Warn("Could not edit prompt message", zap.Error(err))
		}
	}

	b.notifyOperator(ctx, operatorChatID, fmt.Sprintf("🚫 User %d blocked.", target))
}

func (b *Bot) executeDeleteEgg(ctx context.Context, message *tgbotapi.Message, res resolvedAction) {
	index, ok := b.parseIndex(ctx, message)
	if !ok {
		return
	}

	egg, err := b.storage.RemoveEgg(ctx, index)
	if errors.Is(err, storage.ErrNotFound) {
		b.notifyOperator(ctx, message.Chat.ID,
			fmt.Sprintf("There is no egg number %d.", index))
		return
	}
	if err != nil {
		b.logger.Error("Failed to remove egg", zap.Error(err), zap.Int("index", index))
		b.notifyOperator(ctx, message.Chat.ID, "Could not delete the egg, try again.")
		return
	}

	b.markPromptDone(ctx, res, fmt.Sprintf("🗑 Egg %d (%s) deleted.", index, egg.Keyword))
	b.notifyOperator(ctx, message.Chat.ID,
		fmt.Sprintf("🗑 Deleted egg %d: %s", index, egg.Keyword))
}

func (b *Bot) executeDeletePrize(ctx context.Context, message *tgbotapi.Message, res resolvedAction) {
	index, ok := b.parseIndex(ctx, message)
	if !ok {
		return
	}

	prize, err := b.storage.RemovePrize(ctx, index)
	if errors.Is(err, storage.ErrNotFound) {
		b.notifyOperator(ctx, message.Chat.ID,
			fmt.Sprintf("There is no prize number %d.", index))
		return
	}
	if err != nil {
		b.logger.Error("Failed to remove prize", zap.Error(err), zap.Int("index", index))
		b.notifyOperator(ctx, message.Chat.ID, "Could not delete the prize, try again.")
		return
	}

	b.markPromptDone(ctx, res, fmt.Sprintf("🗑 Prize %d deleted.", index))
	b.notifyOperator(ctx, message.Chat.ID,
		fmt.Sprintf("🗑 Deleted prize %d: %s", index, prize.Content))
}

// parseIndex reads a 1-based index from a deletion reply. Bad input reports
// a format error and leaves the action consumed; there is no retry loop for
// this class.
func (b *Bot) parseIndex(ctx context.Context, message *tgbotapi.Message) (int, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(replyText(message)))
	if err != nil {
		b.notifyOperator(ctx, message.Chat.ID,
			"That doesn't look like a number. Nothing was deleted.")
		return 0, false
	}
	return index, true
}

// markPromptDone edits the soliciting message to its terminal state, which
// also removes its controls.
func (b *Bot) markPromptDone(ctx context.Context, res resolvedAction, text string) {
	if res.action.PromptChatID == 0 {
		return
	}
	if err := b.sender.EditText(ctx, res.action.PromptChatID, res.action.PromptMessageID, text); err != nil {
		b.logger.Warn("Could not edit prompt message", zap.Error(err))
	}
}

// reportDeliveryFailure tells the operator why a delivery failed, using the
// classified cause rather than raw provider text.
func (b *Bot) reportDeliveryFailure(ctx context.Context, operatorChatID, target int64, err error) {
	cause := "an unexpected error occurred"
	var derr *delivery.Error
	if errors.As(err, &derr) {
		cause = derr.Cause()
	}
	b.notifyOperator(ctx, operatorChatID,
		fmt.Sprintf("⚠️ Could not deliver to user %d: %s.", target, cause))
}
