package storage

import (
	"context"
	"sync"
)

// MemoryStore хранит сессии в памяти процесса с оптимистичной проверкой версий
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	if s.ID == "" {
		return ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return ErrSessionExists
	}

	s.Version = 1
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) CompareAndSwap(_ context.Context, expected int64, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.sessions[s.ID]
	if !ok {
		return ErrSessionNotFound
	}
	if current.Version != expected {
		return conflictError(s.ID, expected, current.Version)
	}

	s.Version = expected + 1
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
