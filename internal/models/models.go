package models

import "time"

// ActionType discriminates what an outstanding operator prompt is waiting for.
type ActionType string

const (
	ActionReplyToUser     ActionType = "reply_to_user"
	ActionBlockWithReason ActionType = "block_with_reason"
	ActionDeleteEgg       ActionType = "delete_egg"
	ActionDeletePrize     ActionType = "delete_prize"
)

// User represents an end user known to the relay
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	FirstSeen    time.Time `json:"first_seen"`
	MessageCount int       `json:"message_count"`
}

// PendingAction is an in-flight operator task awaiting a follow-up reply.
// It is keyed in storage by the message id of the prompt that solicited it.
type PendingAction struct {
	Type     ActionType `json:"type"`
	TargetID int64      `json:"target_id,omitempty"`
	// The message whose controls solicited this action; edited to a
	// terminal state once the action resolves.
	PromptChatID    int64     `json:"prompt_chat_id"`
	PromptMessageID int       `json:"prompt_message_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Stats holds the bot-wide counters reported by /stats.
type Stats struct {
	MessagesReceived int `json:"messages_received"`
	RepliesSent      int `json:"replies_sent"`
	UsersBlocked     int `json:"users_blocked"`
	BroadcastsSent   int `json:"broadcasts_sent"`
}

// EggEntry is a keyword-triggered canned reply sent to users directly,
// without forwarding to the operator.
type EggEntry struct {
	Keyword string `json:"keyword"`
	Content string `json:"content"`
}

// PrizeEntry is a reward text drawn by the /prize command.
type PrizeEntry struct {
	Content string `json:"content"`
}
