package bot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const userWelcome = `Hi! Write me a message and I'll pass it on to the operator.
You'll get an answer here as soon as they reply.`

const userHelp = `Just send any text and the operator will see it.
/prize - try your luck
/help - this message`

func (b *Bot) handleUserMessage(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	if _, blacklisted, err := b.storage.BlacklistReason(ctx, userID); err != nil {
		b.logger.Error("Blacklist check failed", zap.Error(err), zap.Int64("user_id", userID))
		return
	} else if blacklisted {
		b.logger.Debug("Dropping message from blacklisted user", zap.Int64("user_id", userID))
		return
	}

	user, err := b.storage.TouchUser(ctx, userID, displayName(message.From))
	if err != nil {
		b.logger.Error("Failed to record user", zap.Error(err), zap.Int64("user_id", userID))
		return
	}

	if message.IsCommand() {
		b.handleUserCommand(ctx, message)
		return
	}

	text := message.Text
	if text == "" {
		text = message.Caption
	}
	if strings.TrimSpace(text) == "" {
		b.logger.Debug("Dropping message without text", zap.Int64("user_id", userID))
		return
	}

	if b.replyWithEgg(ctx, message.Chat.ID, text) {
		return
	}

	b.forwardToOperator(ctx, user.ID, user.Name, text)
}

func (b *Bot) handleUserCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.sendToUser(ctx, message.Chat.ID, userWelcome)
	case "help":
		b.sendToUser(ctx, message.Chat.ID, userHelp)
	case "prize":
		b.handlePrizeDraw(ctx, message.Chat.ID)
	default:
		b.sendToUser(ctx, message.Chat.ID, "Unknown command. Use /help to see what I can do.")
	}
}

// replyWithEgg answers keyword-triggered content locally, without involving
// the operator. Returns true when an egg matched.
func (b *Bot) replyWithEgg(ctx context.Context, chatID int64, text string) bool {
	eggs, err := b.storage.ListEggs(ctx)
	if err != nil {
		b.logger.Error("Failed to list eggs", zap.Error(err))
		return false
	}

	lowered := strings.ToLower(text)
	for _, egg := range eggs {
		if egg.Keyword != "" && strings.Contains(lowered, strings.ToLower(egg.Keyword)) {
			b.sendToUser(ctx, chatID, egg.Content)
			return true
		}
	}
	return false
}

func (b *Bot) handlePrizeDraw(ctx context.Context, chatID int64) {
	prizes, err := b.storage.ListPrizes(ctx)
	if err != nil {
		b.logger.Error("Failed to list prizes", zap.Error(err))
		return
	}
	if len(prizes) == 0 {
		b.sendToUser(ctx, chatID, "No prizes available right now, check back later!")
		return
	}
	prize := prizes[rand.Intn(len(prizes))]
	b.sendToUser(ctx, chatID, "🎁 "+prize.Content)
}

// forwardToOperator relays a user message to the operator chat with the
// quick-action controls attached. The (ID:n) marker in the text doubles as
// the correlation fallback for replies to prompts that lost their store
// entry.
func (b *Bot) forwardToOperator(ctx context.Context, userID int64, name, text string) {
	forward := fmt.Sprintf("📨 @%s (ID:%d):\n%s", name, userID, text)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✉️ Reply", fmt.Sprintf("reply:%d", userID)),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Block", fmt.Sprintf("block:%d", userID)),
		),
	)

	if _, err := b.sender.SendWithMarkup(ctx, b.operatorID, forward, markup); err != nil {
		b.logger.Error("Failed to forward message to operator",
			zap.Error(err),
			zap.Int64("user_id", userID))
	}
}

func (b *Bot) sendToUser(ctx context.Context, chatID int64, text string) {
	if _, err := b.sender.SendText(ctx, chatID, text); err != nil {
		b.logger.Error("Failed to send message to user",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
