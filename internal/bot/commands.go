package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

const operatorHelp = `Operator commands:
/broadcast <text> - send text to every non-blacklisted user
/block <id> <reason> - blacklist a user
/unblock <id> - remove a user from the blacklist
/blacklist - list blacklisted users
/stats - show counters
/eggs - list keyword eggs
/addegg <keyword> <content> - add a keyword egg
/delegg - delete an egg by number
/prizes - list prizes
/addprize <content> - add a prize
/delprize - delete a prize by number
/help - this message

Forwarded user messages carry Reply and Block buttons; egg and prize lists
carry a Delete button that asks for the entry number.`

func (b *Bot) handleOperatorCommand(ctx context.Context, message *tgbotapi.Message) {
	args := strings.TrimSpace(message.CommandArguments())

	switch message.Command() {
	case "broadcast":
		b.handleBroadcast(ctx, message.Chat.ID, args)
	case "block":
		b.handleBlockCommand(ctx, message.Chat.ID, args)
	case "unblock":
		b.handleUnblockCommand(ctx, message.Chat.ID, args)
	case "blacklist":
		b.handleBlacklistList(ctx, message.Chat.ID)
	case "stats":
		b.handleStats(ctx, message.Chat.ID)
	case "eggs":
		b.handleEggList(ctx, message.Chat.ID)
	case "addegg":
		b.handleAddEgg(ctx, message.Chat.ID, args)
	case "delegg":
		b.createPrompt(ctx, message.Chat.ID, nil,
			models.PendingAction{Type: models.ActionDeleteEgg}, promptDeleteEgg)
	case "prizes":
		b.handlePrizeList(ctx, message.Chat.ID)
	case "addprize":
		b.handleAddPrize(ctx, message.Chat.ID, args)
	case "delprize":
		b.createPrompt(ctx, message.Chat.ID, nil,
			models.PendingAction{Type: models.ActionDeletePrize}, promptDeletePrize)
	case "help", "start":
		b.notifyOperator(ctx, message.Chat.ID, operatorHelp)
	default:
		b.notifyOperator(ctx, message.Chat.ID, "Unknown command. Use /help.")
	}
}

func (b *Bot) handleBroadcast(ctx context.Context, operatorChatID int64, args string) {
	if args == "" {
		b.notifyOperator(ctx, operatorChatID, "Usage: /broadcast <text>")
		return
	}

	users, err := b.storage.ListUsers(ctx)
	if err != nil {
		b.logger.Error("Failed to list users for broadcast", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not load the user list, try again.")
		return
	}
	blacklist, err := b.storage.ListBlacklisted(ctx)
	if err != nil {
		b.logger.Error("Failed to list blacklist for broadcast", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not load the blacklist, try again.")
		return
	}

	recipients := make([]*models.User, 0, len(users))
	for _, user := range users {
		if _, blocked := blacklist[user.ID]; blocked {
			continue
		}
		recipients = append(recipients, user)
	}

	if len(recipients) == 0 {
		b.notifyOperator(ctx, operatorChatID, "Nobody to broadcast to yet.")
		return
	}

	result := b.sender.Broadcast(ctx, recipients, args)
	if err := b.storage.AddStats(ctx, models.Stats{BroadcastsSent: 1}); err != nil {
		b.logger.Error("Failed to count broadcast", zap.Error(err))
	}
	b.notifyOperator(ctx, operatorChatID,
		fmt.Sprintf("📣 Broadcast finished: %d delivered, %d failed.", result.Sent, result.Failed))
}

func (b *Bot) handleBlockCommand(ctx context.Context, operatorChatID int64, args string) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		b.notifyOperator(ctx, operatorChatID, "Usage: /block <id> <reason>")
		return
	}
	target, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		b.notifyOperator(ctx, operatorChatID, "Usage: /block <id> <reason> — id must be numeric.")
		return
	}

	b.blockUser(ctx, operatorChatID, target, strings.TrimSpace(parts[1]), nil)
}

func (b *Bot) handleUnblockCommand(ctx context.Context, operatorChatID int64, args string) {
	target, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.notifyOperator(ctx, operatorChatID, "Usage: /unblock <id>")
		return
	}

	removed, err := b.storage.RemoveBlacklisted(ctx, target)
	if err != nil {
		b.logger.Error("Failed to unblock user", zap.Error(err), zap.Int64("user_id", target))
		b.notifyOperator(ctx, operatorChatID, "Could not update the blacklist, try again.")
		return
	}
	if !removed {
		b.notifyOperator(ctx, operatorChatID, fmt.Sprintf("User %d is not blacklisted.", target))
		return
	}
	b.notifyOperator(ctx, operatorChatID, fmt.Sprintf("✅ User %d unblocked.", target))
}

func (b *Bot) handleBlacklistList(ctx context.Context, operatorChatID int64) {
	entries, err := b.storage.ListBlacklisted(ctx)
	if err != nil {
		b.logger.Error("Failed to list blacklist", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not load the blacklist, try again.")
		return
	}
	if len(entries) == 0 {
		b.notifyOperator(ctx, operatorChatID, "The blacklist is empty.")
		return
	}

	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	sb.WriteString("Blacklisted users:\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, "%d — %s\n", id, entries[id])
	}
	b.notifyOperator(ctx, operatorChatID, sb.String())
}

func (b *Bot) handleStats(ctx context.Context, operatorChatID int64) {
	stats, err := b.storage.GetStats(ctx)
	if err != nil {
		b.logger.Error("Failed to load stats", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not load stats, try again.")
		return
	}
	users, err := b.storage.ListUsers(ctx)
	if err != nil {
		b.logger.Error("Failed to list users", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not load stats, try again.")
		return
	}
	blacklist, err := b.storage.ListBlacklisted(ctx)
	if err != nil {
		b.logger.Error("Failed to list blacklist", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not load stats, try again.")
		return
	}

	b.notifyOperator(ctx, operatorChatID, fmt.Sprintf(
		"📊 Stats\nUsers: %d\nBlacklisted: %d\nMessages received: %d\nReplies sent: %d\nUsers blocked: %d\nBroadcasts: %d",
		len(users), len(blacklist),
		stats.MessagesReceived, stats.RepliesSent, stats.UsersBlocked, stats.BroadcastsSent))
}

func (b *Bot) handleEggList(ctx context.Context, operatorChatID int64) {
	eggs, err := b.storage.ListEggs(ctx)
	if err != nil {
		b.logger.Error("Failed to list eggs", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not load the eggs, try again.")
		return
	}
	if len(eggs) == 0 {
		b.notifyOperator(ctx, operatorChatID, "No eggs yet. Add one with /addegg <keyword> <content>.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Eggs:\n")
	for i, egg := range eggs {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, egg.Keyword, egg.Content)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete an egg", callbackDeleteEgg),
		),
	)
	if _, err := b.sender.SendWithMarkup(ctx, operatorChatID, sb.String(), markup); err != nil {
		b.logger.Error("Failed to send egg list", zap.Error(err))
	}
}

func (b *Bot) handleAddEgg(ctx context.Context, operatorChatID int64, args string) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		b.notifyOperator(ctx, operatorChatID, "Usage: /addegg <keyword> <content>")
		return
	}

	egg := models.EggEntry{Keyword: parts[0], Content: strings.TrimSpace(parts[1])}
	if err := b.storage.AddEgg(ctx, egg); err != nil {
		b.logger.Error("Failed to add egg", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not save the egg, try again.")
		return
	}
	b.notifyOperator(ctx, operatorChatID, fmt.Sprintf("🥚 Egg added for keyword %q.", egg.Keyword))
}

func (b *Bot) handlePrizeList(ctx context.Context, operatorChatID int64) {
	prizes, err := b.storage.ListPrizes(ctx)
	if err != nil {
		b.logger.Error("Failed to list prizes", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not load the prizes, try again.")
		return
	}
	if len(prizes) == 0 {
		b.notifyOperator(ctx, operatorChatID, "No prizes yet. Add one with /addprize <content>.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Prizes:\n")
	for i, prize := range prizes {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, prize.Content)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete a prize", callbackDeletePrize),
		),
	)
	if _, err := b.sender.SendWithMarkup(ctx, operatorChatID, sb.String(), markup); err != nil {
		b.logger.Error("Failed to send prize list", zap.Error(err))
	}
}

func (b *Bot) handleAddPrize(ctx context.Context, operatorChatID int64, args string) {
	if args == "" {
		b.notifyOperator(ctx, operatorChatID, "Usage: /addprize <content>")
		return
	}

	if err := b.storage.AddPrize(ctx, models.PrizeEntry{Content: args}); err != nil {
		b.logger.Error("Failed to add prize", zap.Error(err))
		b.notifyOperator(ctx, operatorChatID, "Could not save the prize, try again.")
		return
	}
	b.notifyOperator(ctx, operatorChatID, "🎁 Prize added.")
}
