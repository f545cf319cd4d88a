package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/relay-bot/internal/delivery"
	"github.com/xaenox/relay-bot/internal/models"
)

func TestBlockEmptyReasonRestoresPendingAction(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type:     models.ActionBlockWithReason,
		TargetID: 777,
	}))

	empty := operatorMsg(50, "   ")
	empty.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(empty))

	assert.True(t, containsText(sender.sentTo(operatorID), "cannot be empty"))

	// The entry is back and resolvable by a subsequent valid reply.
	valid := operatorMsg(51, "spamming")
	valid.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(valid))

	reason, blacklisted, err := store.BlacklistReason(ctx, 777)
	require.NoError(t, err)
	assert.True(t, blacklisted)
	assert.Equal(t, "spamming", reason)
}

func TestBlockAlreadyBlacklistedKeepsReason(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.SetBlacklisted(ctx, 777, "old reason"))
	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type:     models.ActionBlockWithReason,
		TargetID: 777,
	}))

	reply := operatorMsg(50, "new reason")
	reply.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(reply))

	reason, _, err := store.BlacklistReason(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, "old reason", reason, "existing reason must not be overwritten")
	assert.True(t, containsText(sender.sentTo(operatorID), "old reason"))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.UsersBlocked)
}

func TestBlockSuccessEditsPromptAndNotifiesTarget(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type:            models.ActionBlockWithReason,
		TargetID:        777,
		PromptChatID:    operatorID,
		PromptMessageID: 30,
	}))

	reply := operatorMsg(50, "spamming links")
	reply.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(reply))

	_, blacklisted, err := store.BlacklistReason(ctx, 777)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	require.Len(t, sender.edits, 1)
	assert.Equal(t, operatorID, sender.edits[0].chatID)
	assert.Equal(t, 30, sender.edits[0].messageID)
	assert.Contains(t, sender.edits[0].text, "Blocked user 777")

	assert.True(t, containsText(sender.sentTo(777), "blocked"), "target gets a best-effort notice")

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UsersBlocked)
}

func TestReplyEmptyTextRestoresPendingAction(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type:     models.ActionReplyToUser,
		TargetID: 555,
	}))

	empty := operatorMsg(50, "")
	empty.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(empty))

	assert.True(t, containsText(sender.sentTo(operatorID), "cannot be empty"))

	_, found, err := store.TakePendingAction(ctx, 42)
	require.NoError(t, err)
	assert.True(t, found, "entry must be restored after an empty reply")
}

func TestReplySentAsMediaCaptionIsDelivered(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type:     models.ActionReplyToUser,
		TargetID: 555,
	}))

	// The operator answered with a photo; the text lives in the caption.
	reply := operatorMsg(50, "")
	reply.Caption = "see the attached screenshot"
	reply.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(reply))

	assert.True(t, containsText(sender.sentTo(555), "see the attached screenshot"))
	assert.False(t, containsText(sender.sentTo(operatorID), "cannot be empty"),
		"a captioned reply is not an empty reply")
}

func TestBlockReasonSentAsMediaCaption(t *testing.T) {
	b, _, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type:     models.ActionBlockWithReason,
		TargetID: 777,
	}))

	reply := operatorMsg(50, "")
	reply.Caption = "spamming"
	reply.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(reply))

	reason, blacklisted, err := store.BlacklistReason(ctx, 777)
	require.NoError(t, err)
	assert.True(t, blacklisted)
	assert.Equal(t, "spamming", reason)
}

func TestReplyDeliveryFailureReportsClassifiedCause(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	sender.failFor[555] = &delivery.Error{Kind: delivery.KindUserBlocked}
	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type:     models.ActionReplyToUser,
		TargetID: 555,
	}))

	reply := operatorMsg(50, "hello")
	reply.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(reply))

	assert.True(t, containsText(sender.sentTo(operatorID), "blocked the bot"),
		"operator must see the specific cause")

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.RepliesSent)

	// The correlation itself is not retried.
	_, found, err := store.TakePendingAction(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteEggByIndex(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	for _, kw := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, store.AddEgg(ctx, models.EggEntry{Keyword: kw, Content: kw + " content"}))
	}
	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type: models.ActionDeleteEgg,
	}))

	reply := operatorMsg(50, "2")
	reply.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(reply))

	eggs, err := store.ListEggs(ctx)
	require.NoError(t, err)
	require.Len(t, eggs, 2)
	assert.Equal(t, "alpha", eggs[0].Keyword)
	assert.Equal(t, "gamma", eggs[1].Keyword)
	assert.True(t, containsText(sender.sentTo(operatorID), "beta"))
}

func TestDeleteEggOutOfRange(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.AddEgg(ctx, models.EggEntry{Keyword: "alpha", Content: "a"}))
	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type: models.ActionDeleteEgg,
	}))

	reply := operatorMsg(50, "9")
	reply.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(reply))

	assert.True(t, containsText(sender.sentTo(operatorID), "no egg number 9"))

	// No retry loop for this class: the entry stays consumed.
	_, found, err := store.TakePendingAction(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)

	eggs, err := store.ListEggs(ctx)
	require.NoError(t, err)
	assert.Len(t, eggs, 1)
}

func TestDeleteEggNonNumericInput(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type: models.ActionDeleteEgg,
	}))

	reply := operatorMsg(50, "the second one")
	reply.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(reply))

	assert.True(t, containsText(sender.sentTo(operatorID), "doesn't look like a number"))
}

func TestDeletePrizeByIndex(t *testing.T) {
	b, _, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.AddPrize(ctx, models.PrizeEntry{Content: "sticker pack"}))
	require.NoError(t, store.PutPendingAction(ctx, 42, models.PendingAction{
		Type: models.ActionDeletePrize,
	}))

	reply := operatorMsg(50, "1")
	reply.ReplyToMessage = operatorMsg(42, "prompt")
	b.HandleUpdate(ctx, messageUpdate(reply))

	prizes, err := store.ListPrizes(ctx)
	require.NoError(t, err)
	assert.Empty(t, prizes)
}
