package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/xaenox/relay-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStorage backs the relay state with PostgreSQL. Per-key atomicity
// comes from single-statement upserts, so no extra locking is needed.
type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &PostgresStorage{db: db}
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("failed to read migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, first_seen, message_count FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &user.FirstSeen, &user.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func (s *PostgresStorage) TouchUser(ctx context.Context, id int64, name string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, message_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (id) DO UPDATE
		SET message_count = users.message_count + 1,
		    name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END
		RETURNING id, name, first_seen, message_count`, id, name).
		Scan(&user.ID, &user.Name, &user.FirstSeen, &user.MessageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to touch user: %w", err)
	}
	return user, nil
}

func (s *PostgresStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, first_seen, message_count FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Name, &user.FirstSeen, &user.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PostgresStorage) BlacklistReason(ctx context.Context, id int64) (string, bool, error) {
	var reason string
	err := s.db.QueryRowContext(ctx,
		`SELECT reason FROM blacklist WHERE user_id = $1`, id).Scan(&reason)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query blacklist: %w", err)
	}
	return reason, true, nil
}

func (s *PostgresStorage) SetBlacklisted(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blacklist (user_id, reason) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET reason = EXCLUDED.reason`, id, reason)
	if err != nil {
		return fmt.Errorf("failed to insert blacklist entry: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RemoveBlacklisted(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE user_id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete blacklist entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStorage) ListBlacklisted(ctx context.Context) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, reason FROM blacklist`)
	if err != nil {
		return nil, fmt.Errorf("failed to query blacklist: %w", err)
	}
	defer rows.Close()

	entries := make(map[int64]string)
	for rows.Next() {
		var id int64
		var reason string
		if err := rows.Scan(&id, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan blacklist entry: %w", err)
		}
		entries[id] = reason
	}
	return entries, rows.Err()
}

func (s *PostgresStorage) AddStats(ctx context.Context, delta models.Stats) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE stats SET
			messages_received = messages_received + $1,
			replies_sent      = replies_sent + $2,
			users_blocked     = users_blocked + $3,
			broadcasts_sent   = broadcasts_sent + $4
		WHERE id = 1`,
		delta.MessagesReceived, delta.RepliesSent, delta.UsersBlocked, delta.BroadcastsSent)
	if err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetStats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT messages_received, replies_sent, users_blocked, broadcasts_sent
		FROM stats WHERE id = 1`).
		Scan(&stats.MessagesReceived, &stats.RepliesSent, &stats.UsersBlocked, &stats.BroadcastsSent)
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStorage) PutPendingAction(ctx context.Context, messageID int, action models.PendingAction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_actions (message_id, action_type, target_id, prompt_chat_id, prompt_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id) DO UPDATE SET
			action_type       = EXCLUDED.action_type,
			target_id         = EXCLUDED.target_id,
			prompt_chat_id    = EXCLUDED.prompt_chat_id,
			prompt_message_id = EXCLUDED.prompt_message_id,
			created_at        = EXCLUDED.created_at`,
		messageID, string(action.Type), action.TargetID,
		action.PromptChatID, action.PromptMessageID, action.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store pending action: %w", err)
	}
	return nil
}

func (s *PostgresStorage) TakePendingAction(ctx context.Context, messageID int) (models.PendingAction, bool, error) {
	var action models.PendingAction
	var actionType string
	// DELETE RETURNING makes the take atomic: two concurrent resolutions of
	// the same prompt cannot both succeed.
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM pending_actions WHERE message_id = $1
		RETURNING action_type, target_id, prompt_chat_id, prompt_message_id, created_at`, messageID).
		Scan(&actionType, &action.TargetID, &action.PromptChatID, &action.PromptMessageID, &action.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingAction{}, false, nil
	}
	if err != nil {
		return models.PendingAction{}, false, fmt.Errorf("failed to take pending action: %w", err)
	}
	action.Type = models.ActionType(actionType)
	return action, true, nil
}

func (s *PostgresStorage) ListEggs(ctx context.Context) ([]models.EggEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT keyword, content FROM eggs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query eggs: %w", err)
	}
	defer rows.Close()

	var eggs []models.EggEntry
	for rows.Next() {
		var egg models.EggEntry
		if err := rows.Scan(&egg.Keyword, &egg.Content); err != nil {
			return nil, fmt.Errorf("failed to scan egg: %w", err)
		}
		eggs = append(eggs, egg)
	}
	return eggs, rows.Err()
}

func (s *PostgresStorage) AddEgg(ctx context.Context, egg models.EggEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO eggs (keyword, content) VALUES ($1, $2)`, egg.Keyword, egg.Content)
	if err != nil {
		return fmt.Errorf("failed to insert egg: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RemoveEgg(ctx context.Context, index int) (models.EggEntry, error) {
	if index < 1 {
		return models.EggEntry{}, ErrNotFound
	}
	var egg models.EggEntry
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM eggs WHERE id = (
			SELECT id FROM eggs ORDER BY id OFFSET $1 LIMIT 1
		)
		RETURNING keyword, content`, index-1).
		Scan(&egg.Keyword, &egg.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EggEntry{}, ErrNotFound
	}
	if err != nil {
		return models.EggEntry{}, fmt.Errorf("failed to delete egg: %w", err)
	}
	return egg, nil
}

func (s *PostgresStorage) ListPrizes(ctx context.Context) ([]models.PrizeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT content FROM prizes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prizes: %w", err)
	}
	defer rows.Close()

	var prizes []models.PrizeEntry
	for rows.Next() {
		var prize models.PrizeEntry
		if err := rows.Scan(&prize.Content); err != nil {
			return nil, fmt.Errorf("failed to scan prize: %w", err)
		}
		prizes = append(prizes, prize)
	}
	return prizes, rows.Err()
}

func (s *PostgresStorage) AddPrize(ctx context.Context, prize models.PrizeEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prizes (content) VALUES ($1)`, prize.Content)
	if err != nil {
		return fmt.Errorf("failed to insert prize: %w", err)
	}
	return nil
}

func (s *PostgresStorage) RemovePrize(ctx context.Context, index int) (models.PrizeEntry, error) {
	if index < 1 {
		return models.PrizeEntry{}, ErrNotFound
	}
	var prize models.PrizeEntry
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM prizes WHERE id = (
			SELECT id FROM prizes ORDER BY id OFFSET $1 LIMIT 1
		)
		RETURNING content`, index-1).
		Scan(&prize.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrizeEntry{}, ErrNotFound
	}
	if err != nil {
		return models.PrizeEntry{}, fmt.Errorf("failed to delete prize: %w", err)
	}
	return prize, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
