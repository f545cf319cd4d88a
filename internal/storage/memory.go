package storage

import "go.uber.org/zap"

// NewMemoryStorage returns a Storage that keeps everything in memory and
// never touches disk. Used by tests and the "memory" backend.
func NewMemoryStorage(logger *zap.Logger) *FileStorage {
	return &FileStorage{
		state:  emptyState(),
		logger: logger,
	}
}
