package bot

import (
	"context"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/relay-bot/internal/delivery"
	"github.com/xaenox/relay-bot/internal/models"
	"github.com/xaenox/relay-bot/internal/storage"
	"go.uber.org/zap"
)

const operatorID int64 = 9000

type sentMessage struct {
	chatID int64
	text   string
	markup interface{}
}

type editedMessage struct {
	chatID    int64
	messageID int
	text      string
}

// fakeSender records outbound traffic and can be scripted to fail per chat.
type fakeSender struct {
	mu         sync.Mutex
	sent       []sentMessage
	edits      []editedMessage
	answered   []string
	broadcasts [][]*models.User

	nextID          int
	failFor         map[int64]error
	broadcastResult delivery.BroadcastResult
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		nextID:  100,
		failFor: make(map[int64]error),
	}
}

func (f *fakeSender) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	return f.SendWithMarkup(ctx, chatID, text, nil)
}

func (f *fakeSender) SendWithMarkup(ctx context.Context, chatID int64, text string, markup interface{}) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failFor[chatID]; err != nil {
		return 0, err
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, markup: markup})
	return f.nextID, nil
}

func (f *fakeSender) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits = append(f.edits, editedMessage{chatID: chatID, messageID: messageID, text: text})
	return nil
}

func (f *fakeSender) AnswerCallback(ctx context.Context, callbackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeSender) Broadcast(ctx context.Context, recipients []*models.User, text string) delivery.BroadcastResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.broadcasts = append(f.broadcasts, recipients)
	return f.broadcastResult
}

// sentTo returns every text sent to a chat, in order.
func (f *fakeSender) sentTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var texts []string
	for _, m := range f.sent {
		if m.chatID == chatID {
			texts = append(texts, m.text)
		}
	}
	return texts
}

func newTestBot(t *testing.T) (*Bot, *fakeSender, storage.Storage) {
	t.Helper()
	sender := newFakeSender()
	store := storage.NewMemoryStorage(zap.NewNop())
	b := New(Config{OperatorID: operatorID}, sender, store, zap.NewNop())
	return b, sender, store
}

func userMsg(userID int64, messageID int, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: messageID,
		From:      &tgbotapi.User{ID: userID, UserName: "user"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
}

func operatorMsg(messageID int, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: messageID,
		From:      &tgbotapi.User{ID: operatorID, UserName: "operator"},
		Chat:      &tgbotapi.Chat{ID: operatorID},
		Text:      text,
	}
}

// asCommand attaches the bot_command entity Telegram puts on command
// messages, so IsCommand and CommandArguments behave as in production.
func asCommand(m *tgbotapi.Message) *tgbotapi.Message {
	length := len(m.Text)
	if i := strings.Index(m.Text, " "); i != -1 {
		length = i
	}
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}}
	return m
}

func messageUpdate(m *tgbotapi.Message) tgbotapi.Update {
	return tgbotapi.Update{Message: m}
}

func containsText(texts []string, substr string) bool {
	for _, t := range texts {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}
