package delivery

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

const logTextLimit = 64

// Sender is the outbound side of the relay: plain sends, sends with
// interactive controls, edits of earlier messages and bulk broadcast.
type Sender interface {
	// SendText delivers text to a chat and returns the platform message id
	// for use in later edits.
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	// SendWithMarkup is SendText with an inline keyboard or force-reply
	// directive attached.
	SendWithMarkup(ctx context.Context, chatID int64, text string, markup interface{}) (int, error)
	// EditText rewrites an earlier message; any previous inline keyboard
	// is dropped.
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	// AnswerCallback acknowledges a button press so the client stops its
	// progress indicator.
	AnswerCallback(ctx context.Context, callbackID string) error
	// Broadcast sends text to every recipient with a fixed inter-message
	// delay, tallying outcomes instead of failing on the first error.
	Broadcast(ctx context.Context, recipients []*models.User, text string) BroadcastResult
}

// BroadcastResult tallies per-recipient outcomes of one broadcast run.
type BroadcastResult struct {
	Sent   int
	Failed int
}

// botAPI is the slice of *tgbotapi.BotAPI the client needs; tests substitute
// a scripted fake.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Config struct {
	// MaxAttempts bounds retries of a single delivery, including the
	// first attempt.
	MaxAttempts int
	// RetryBackoff is the base wait between attempts; it doubles each
	// retry.
	RetryBackoff time.Duration
	// BroadcastDelay is the fixed pause between broadcast recipients.
	BroadcastDelay time.Duration
	// AttemptTimeout bounds a single delivery attempt end to end, so a
	// hung connection cannot stall the webhook handler behind it.
	AttemptTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.BroadcastDelay <= 0 {
		c.BroadcastDelay = 100 * time.Millisecond
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
}

// NewHTTPClient builds the HTTP client the Telegram API wrapper should use.
// The per-attempt timeout lives here because the API wrapper offers no
// per-request deadline.
func NewHTTPClient(cfg Config) *http.Client {
	cfg.applyDefaults()
	return &http.Client{Timeout: cfg.AttemptTimeout}
}

// Client delivers messages through the Telegram Bot API with bounded
// retries and classified failures.
type Client struct {
	api    botAPI
	cfg    Config
	logger *zap.Logger
	sleep  func(time.Duration)
}

func NewClient(api botAPI, cfg Config, logger *zap.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		api:    api,
		cfg:    cfg,
		logger: logger,
		sleep:  time.Sleep,
	}
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	return c.send(ctx, chatID, text, nil)
}

func (c *Client) SendWithMarkup(ctx context.Context, chatID int64, text string, markup interface{}) (int, error) {
	return c.send(ctx, chatID, text, markup)
}

func (c *Client) send(ctx context.Context, chatID int64, text string, markup interface{}) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	var lastErr *Error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, &Error{Kind: KindTransport, Err: err}
		}

		sent, err := c.api.Send(msg)
		if err == nil {
			c.logger.Info("Message delivered",
				zap.Int64("chat_id", chatID),
				zap.Int("message_id", sent.MessageID),
				zap.String("text", truncate(text)))
			return sent.MessageID, nil
		}

		lastErr = classify(err)
		c.logger.Warn("Delivery attempt failed",
			zap.Int64("chat_id", chatID),
			zap.String("kind", string(lastErr.Kind)),
			zap.Int("attempt", attempt),
			zap.String("text", truncate(text)),
			zap.Error(err))

		if !lastErr.retryable() || attempt == c.cfg.MaxAttempts {
			break
		}
		c.sleep(c.backoff(lastErr, attempt))
	}
	return 0, lastErr
}

// backoff doubles the base wait each attempt; a rate-limited failure honors
// the provider's retry-after hint instead.
func (c *Client) backoff(derr *Error, attempt int) time.Duration {
	if derr.Kind == KindRateLimited && derr.RetryAfter > 0 {
		return time.Duration(derr.RetryAfter) * time.Second
	}
	return c.cfg.RetryBackoff << (attempt - 1)
}

func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindTransport, Err: err}
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := c.api.Send(edit); err != nil {
		derr := classify(err)
		c.logger.Warn("Edit failed",
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
			zap.String("kind", string(derr.Kind)),
			zap.Error(err))
		return derr
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindTransport, Err: err}
	}

	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) Broadcast(ctx context.Context, recipients []*models.User, text string) BroadcastResult {
	runID := uuid.NewString()
	c.logger.Info("Broadcast started",
		zap.String("run_id", runID),
		zap.Int("recipients", len(recipients)),
		zap.String("text", truncate(text)))

	var result BroadcastResult
	for i, user := range recipients {
		if i > 0 {
			c.sleep(c.cfg.BroadcastDelay)
		}
		if _, err := c.SendText(ctx, user.ID, text); err != nil {
			result.Failed++
			c.logger.Warn("Broadcast delivery failed",
				zap.String("run_id", runID),
				zap.Int64("user_id", user.ID),
				zap.Error(err))
			continue
		}
		result.Sent++
	}

	c.logger.Info("Broadcast finished",
		zap.String("run_id", runID),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed))
	return result
}

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= logTextLimit {
		return text
	}
	return string(runes[:logTextLimit]) + "…"
}
