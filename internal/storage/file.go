package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

// fileState is the on-disk document. Map keys are strings because JSON
// object keys always are; ids are converted at the boundary.
type fileState struct {
	Users          map[string]*models.User         `json:"users"`
	Blacklist      map[string]string               `json:"blacklist"`
	Stats          models.Stats                    `json:"stats"`
	PendingActions map[string]models.PendingAction `json:"pending_actions"`
	Eggs           []models.EggEntry               `json:"eggs"`
	Prizes         []models.PrizeEntry             `json:"prizes"`
}

// FileStorage keeps the whole state in one JSON document. A single mutex
// serializes every load-mutate-save cycle so concurrent webhook handlers
// cannot lose updates.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	state  fileState
	logger *zap.Logger
}

func NewFileStorage(path string, logger *zap.Logger) (*FileStorage, error) {
	s := &FileStorage{
		path:   path,
		logger: logger,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the state file, substituting empty defaults when the file is
// missing or corrupt. Corruption is logged, never surfaced to callers.
func (s *FileStorage) load() error {
	s.state = emptyState()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Info("State file missing, starting empty", zap.String("path", s.path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var loaded fileState
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.logger.Warn("State file corrupt, starting empty",
			zap.Error(err),
			zap.String("path", s.path))
		return nil
	}

	s.state = loaded
	if s.state.Users == nil {
		s.state.Users = make(map[string]*models.User)
	}
	if s.state.Blacklist == nil {
		s.state.Blacklist = make(map[string]string)
	}
	if s.state.PendingActions == nil {
		s.state.PendingActions = make(map[string]models.PendingAction)
	}
	return nil
}

func emptyState() fileState {
	return fileState{
		Users:          make(map[string]*models.User),
		Blacklist:      make(map[string]string),
		PendingActions: make(map[string]models.PendingAction),
	}
}

// save writes the state atomically via a temp file and rename.
// Must be called with s.mu held.
func (s *FileStorage) save() error {
	if s.path == "" {
		// Memory-backed instance, nothing to persist.
		return nil
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (s *FileStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.state.Users[userKey(id)]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *FileStorage) TouchUser(ctx context.Context, id int64, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(id)
	user, exists := s.state.Users[key]
	if !exists {
		user = &models.User{
			ID:        id,
			Name:      name,
			FirstSeen: time.Now(),
		}
		s.state.Users[key] = user
	}
	user.MessageCount++
	if name != "" {
		user.Name = name
	}

	if err := s.save(); err != nil {
		return nil, err
	}
	copied := *user
	return &copied, nil
}

func (s *FileStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*models.User, 0, len(s.state.Users))
	for _, user := range s.state.Users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *FileStorage) BlacklistReason(ctx context.Context, id int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reason, exists := s.state.Blacklist[userKey(id)]
	return reason, exists, nil
}

func (s *FileStorage) SetBlacklisted(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Blacklist[userKey(id)] = reason
	return s.save()
}

func (s *FileStorage) RemoveBlacklisted(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(id)
	if _, exists := s.state.Blacklist[key]; !exists {
		return false, nil
	}
	delete(s.state.Blacklist, key)
	return true, s.save()
}

func (s *FileStorage) ListBlacklisted(ctx context.Context) (map[int64]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(map[int64]string, len(s.state.Blacklist))
	for key, reason := range s.state.Blacklist {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			s.logger.Warn("Skipping malformed blacklist key", zap.String("key", key))
			continue
		}
		entries[id] = reason
	}
	return entries, nil
}

func (s *FileStorage) AddStats(ctx context.Context, delta models.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Stats.MessagesReceived += delta.MessagesReceived
	s.state.Stats.RepliesSent += delta.RepliesSent
	s.state.Stats.UsersBlocked += delta.UsersBlocked
	s.state.Stats.BroadcastsSent += delta.BroadcastsSent
	return s.save()
}

func (s *FileStorage) GetStats(ctx context.Context) (models.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.Stats, nil
}

func (s *FileStorage) PutPendingAction(ctx context.Context, messageID int, action models.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.PendingActions[strconv.Itoa(messageID)] = action
	return s.save()
}

func (s *FileStorage) TakePendingAction(ctx context.Context, messageID int) (models.PendingAction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strconv.Itoa(messageID)
	action, exists := s.state.PendingActions[key]
	if !exists {
		return models.PendingAction{}, false, nil
	}
	delete(s.state.PendingActions, key)
	if err := s.save(); err != nil {
		// Keep the entry so the prompt stays answerable.
		s.state.PendingActions[key] = action
		return models.PendingAction{}, false, err
	}
	return action, true, nil
}

func (s *FileStorage) ListEggs(ctx context.Context) ([]models.EggEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eggs := make([]models.EggEntry, len(s.state.Eggs))
	copy(eggs, s.state.Eggs)
	return eggs, nil
}

func (s *FileStorage) AddEgg(ctx context.Context, egg models.EggEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Eggs = append(s.state.Eggs, egg)
	return s.save()
}

func (s *FileStorage) RemoveEgg(ctx context.Context, index int) (models.EggEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 1 || index > len(s.state.Eggs) {
		return models.EggEntry{}, ErrNotFound
	}
	removed := s.state.Eggs[index-1]
	s.state.Eggs = append(s.state.Eggs[:index-1], s.state.Eggs[index:]...)
	if err := s.save(); err != nil {
		return models.EggEntry{}, err
	}
	return removed, nil
}

func (s *FileStorage) ListPrizes(ctx context.Context) ([]models.PrizeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prizes := make([]models.PrizeEntry, len(s.state.Prizes))
	copy(prizes, s.state.Prizes)
	return prizes, nil
}

func (s *FileStorage) AddPrize(ctx context.Context, prize models.PrizeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Prizes = append(s.state.Prizes, prize)
	return s.save()
}

func (s *FileStorage) RemovePrize(ctx context.Context, index int) (models.PrizeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 1 || index > len(s.state.Prizes) {
		return models.PrizeEntry{}, ErrNotFound
	}
	removed := s.state.Prizes[index-1]
	s.state.Prizes = append(s.state.Prizes[:index-1], s.state.Prizes[index:]...)
	if err := s.save(); err != nil {
		return models.PrizeEntry{}, err
	}
	return removed, nil
}

func (s *FileStorage) Close() error {
	return nil
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
