package delivery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Kind classifies a failed delivery attempt. Callers branch on Kind instead
// of inspecting provider error text.
type Kind string

const (
	KindUserBlocked  Kind = "user_blocked"
	KindChatNotFound Kind = "chat_not_found"
	KindRateLimited  Kind = "rate_limited"
	KindTransport    Kind = "transport"
	KindUnparseable  Kind = "unparseable"
)

// Error is a classified delivery failure.
type Error struct {
	Kind Kind
	// RetryAfter is the provider-suggested wait in seconds; only set for
	// KindRateLimited.
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause returns a short operator-facing description of the failure.
func (e *Error) Cause() string {
	switch e.Kind {
	case KindUserBlocked:
		return "the user has blocked the bot"
	case KindChatNotFound:
		return "the chat was not found"
	case KindRateLimited:
		return "the platform is rate-limiting the bot"
	case KindUnparseable:
		return "the platform returned an unreadable response"
	default:
		return "a transport error occurred"
	}
}

// retryable reports whether another attempt can possibly succeed.
func (e *Error) retryable() bool {
	switch e.Kind {
	case KindUserBlocked, KindChatNotFound:
		return false
	default:
		return true
	}
}

// classify maps an error from the Telegram client onto the delivery taxonomy.
// Provider error text is inspected here and nowhere else.
func classify(err error) *Error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return &Error{Kind: KindRateLimited, RetryAfter: apiErr.RetryAfter, Err: err}
		case apiErr.Code == 403:
			return &Error{Kind: KindUserBlocked, Err: err}
		case apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "chat not found"):
			return &Error{Kind: KindChatNotFound, Err: err}
		default:
			return &Error{Kind: KindTransport, Err: err}
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Kind: KindUnparseable, Err: err}
	}

	return &Error{Kind: KindTransport, Err: err}
}
