package bot

import (
	"context"
	"regexp"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

// targetIDPattern matches the (ID:n) marker embedded in forwarded messages.
var targetIDPattern = regexp.MustCompile(`\(ID:(\d+)\)`)

// resolvedAction is the outcome of correlating an operator reply with a
// pending action. consumed is true when the entry was taken from the store
// and must be put back if the reply turns out to be invalid.
type resolvedAction struct {
	key      int
	action   models.PendingAction
	consumed bool
}

// resolvePendingAction matches an operator message against outstanding
// prompts. Strategies run in strict priority order; the first hit wins:
//
//  1. reply-chain: the replied-to message id keys a stored pending action
//  2. content-pattern: the replied-to text carries the (ID:n) marker of a
//     forwarded user message, covering prompts that never got a store entry
//  3. direct-id: the operator message's own id keys a stored entry, for
//     clients that strip reply metadata
//
// A miss is not an error; the caller falls through to command parsing.
func (b *Bot) resolvePendingAction(ctx context.Context, message *tgbotapi.Message) (resolvedAction, bool) {
	if reply := message.ReplyToMessage; reply != nil {
		action, found, err := b.storage.TakePendingAction(ctx, reply.MessageID)
		if err != nil {
			b.logger.Error("Pending action lookup failed",
				zap.Error(err),
				zap.Int("message_id", reply.MessageID))
		} else if found {
			return resolvedAction{key: reply.MessageID, action: action, consumed: true}, true
		}

		if targetID, ok := extractTargetID(replyText(reply)); ok {
			return resolvedAction{
				action: models.PendingAction{
					Type:            models.ActionReplyToUser,
					TargetID:        targetID,
					PromptChatID:    reply.Chat.ID,
					PromptMessageID: reply.MessageID,
				},
			}, true
		}
	}

	action, found, err := b.storage.TakePendingAction(ctx, message.MessageID)
	if err != nil {
		b.logger.Error("Pending action lookup failed",
			zap.Error(err),
			zap.Int("message_id", message.MessageID))
		return resolvedAction{}, false
	}
	if found {
		return resolvedAction{key: message.MessageID, action: action, consumed: true}, true
	}

	return resolvedAction{}, false
}

// restorePendingAction puts a consumed entry back so the operator can answer
// the same prompt again after an invalid reply.
func (b *Bot) restorePendingAction(ctx context.Context, res resolvedAction) {
	if !res.consumed {
		return
	}
	if err := b.storage.PutPendingAction(ctx, res.key, res.action); err != nil {
		b.logger.Error("Failed to restore pending action",
			zap.Error(err),
			zap.Int("message_id", res.key))
	}
}

func extractTargetID(text string) (int64, bool) {
	match := targetIDPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func replyText(message *tgbotapi.Message) string {
	if message.Text != "" {
		return message.Text
	}
	return message.Caption
}
