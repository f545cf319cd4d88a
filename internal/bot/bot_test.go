package bot

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/relay-bot/internal/models"
)

func TestEveryInboundMessageIsCounted(t *testing.T) {
	b, _, store := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, messageUpdate(userMsg(555, 1, "hi")))
	b.HandleUpdate(ctx, messageUpdate(operatorMsg(2, "plain note")))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.MessagesReceived)
}

func TestBlacklistedUserIsSuppressed(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.SetBlacklisted(ctx, 555, "spam"))
	b.HandleUpdate(ctx, messageUpdate(userMsg(555, 1, "let me back in")))

	assert.Empty(t, sender.sentTo(operatorID), "nothing is forwarded for blacklisted users")
	assert.Empty(t, sender.sentTo(555))

	// The inbound counter still ticks; suppression happens after counting.
	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MessagesReceived)
}

func TestUserMessageForwardedWithControls(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, messageUpdate(userMsg(555, 1, "help me please")))

	forwarded := sender.sentTo(operatorID)
	require.Len(t, forwarded, 1)
	assert.Contains(t, forwarded[0], "(ID:555)")
	assert.Contains(t, forwarded[0], "help me please")

	require.Len(t, sender.sent, 1)
	markup, ok := sender.sent[0].markup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok, "forwarded message must carry inline controls")
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "reply:555", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "block:555", *markup.InlineKeyboard[0][1].CallbackData)

	user, err := store.GetUser(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, 1, user.MessageCount)
	assert.False(t, user.FirstSeen.IsZero())
}

func TestEggKeywordAnsweredLocally(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.AddEgg(ctx, models.EggEntry{Keyword: "secret", Content: "🥚 you found it"}))
	b.HandleUpdate(ctx, messageUpdate(userMsg(555, 1, "tell me the SECRET word")))

	assert.True(t, containsText(sender.sentTo(555), "you found it"))
	assert.Empty(t, sender.sentTo(operatorID), "egg hits are not forwarded")
}

func TestMalformedUpdatesAreDropped(t *testing.T) {
	b, sender, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, tgbotapi.Update{})
	b.HandleUpdate(ctx, messageUpdate(&tgbotapi.Message{MessageID: 1, Text: "no sender"}))
	b.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "x"}})

	assert.Empty(t, sender.sent)
}

func TestUserStartCommand(t *testing.T) {
	b, sender, _ := newTestBot(t)

	b.HandleUpdate(context.Background(), messageUpdate(asCommand(userMsg(555, 1, "/start"))))

	assert.True(t, containsText(sender.sentTo(555), "pass it on to the operator"))
}

func TestPrizeDraw(t *testing.T) {
	b, sender, store := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, store.AddPrize(ctx, models.PrizeEntry{Content: "a shiny badge"}))
	b.HandleUpdate(ctx, messageUpdate(asCommand(userMsg(555, 1, "/prize"))))

	assert.True(t, containsText(sender.sentTo(555), "a shiny badge"))
}

func TestPrizeDrawWithoutPrizes(t *testing.T) {
	b, sender, _ := newTestBot(t)

	b.HandleUpdate(context.Background(), messageUpdate(asCommand(userMsg(555, 1, "/prize"))))

	assert.True(t, containsText(sender.sentTo(555), "No prizes available"))
}
