package storage

import (
	"context"
	"errors"

	"github.com/xaenox/relay-bot/internal/models"
)

// ErrNotFound is returned when a requested record or index does not exist.
var ErrNotFound = errors.New("storage: not found")

// Storage is the persistence boundary for users, the blacklist, counters,
// pending operator actions and egg/prize content. Every method is an atomic
// read-modify-write; implementations must be safe for concurrent use.
type Storage interface {
	// Users
	GetUser(ctx context.Context, id int64) (*models.User, error)
	// TouchUser creates the user on first contact and increments the
	// message count on every subsequent call.
	TouchUser(ctx context.Context, id int64, name string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)

	// Blacklist. A user is blacklisted iff a reason is present.
	BlacklistReason(ctx context.Context, id int64) (string, bool, error)
	SetBlacklisted(ctx context.Context, id int64, reason string) error
	RemoveBlacklisted(ctx context.Context, id int64) (bool, error)
	ListBlacklisted(ctx context.Context) (map[int64]string, error)

	// Stats
	AddStats(ctx context.Context, delta models.Stats) error
	GetStats(ctx context.Context) (models.Stats, error)

	// Pending actions, keyed by the soliciting prompt's message id.
	// TakePendingAction atomically removes and returns the entry, so a
	// given prompt can be resolved at most once; restoring an entry after
	// an invalid reply is a PutPendingAction with the same key.
	PutPendingAction(ctx context.Context, messageID int, action models.PendingAction) error
	TakePendingAction(ctx context.Context, messageID int) (models.PendingAction, bool, error)

	// Egg and prize content, addressed by 1-based display index.
	ListEggs(ctx context.Context) ([]models.EggEntry, error)
	AddEgg(ctx context.Context, egg models.EggEntry) error
	RemoveEgg(ctx context.Context, index int) (models.EggEntry, error)
	ListPrizes(ctx context.Context) ([]models.PrizeEntry, error)
	AddPrize(ctx context.Context, prize models.PrizeEntry) error
	RemovePrize(ctx context.Context, index int) (models.PrizeEntry, error)

	Close() error
}
