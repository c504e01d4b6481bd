package storage

import (
	"context"
	"errors"
	"fmt"

	"interview-engine/internal/config"
)

var (
	ErrSessionNotFound  = errors.New("сессия не найдена")
	ErrSessionExists    = errors.New("сессия с таким ID уже существует")
	ErrVersionConflict  = errors.New("конфликт версий сессии")
	ErrInvalidSessionID = errors.New("пустой ID сессии")
)

// Store долговременное хранилище сессий по ключу.
// Каждая запись атомарна: либо сохраняется целиком, либо не сохраняется вовсе.
type Store interface {
	// Create сохраняет новую сессию с версией 1, повтор ID отклоняется.
	Create(ctx context.Context, s *Session) error
	// Load возвращает независимую копию сохраненной сессии.
	Load(ctx context.Context, id string) (*Session, error)
	// CompareAndSwap перезаписывает сессию, только если сохраненная версия равна expected.
	// При успехе s.Version становится expected+1.
	CompareAndSwap(ctx context.Context, expected int64, s *Session) error
	Close() error
}

// Open создает хранилище, выбранное в настройках
func Open(ctx context.Context, settings *config.Settings) (Store, error) {
	switch settings.StorageMode {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageSQLite:
		return OpenSQLite(ctx, settings.DatabaseURI)
	case config.StoragePostgres:
		return OpenPostgres(ctx, settings.DatabaseURI)
	case config.StorageMongo:
		return OpenMongo(ctx, settings.DatabaseURI)
	default:
		return nil, fmt.Errorf("неизвестный storage_mode %q", settings.StorageMode)
	}
}

func conflictError(id string, expected, actual int64) error {
	return fmt.Errorf("%w: сессия %s, ожидалась версия %d, текущая %d", ErrVersionConflict, id, expected, actual)
}
