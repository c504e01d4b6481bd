// Package timer ведет дедлайны ответов на вопросы.
//
// Дедлайны хранятся как абсолютные моменты времени, поэтому их можно
// сохранить вместе с сессией и восстановить после перезапуска процесса.
// Своих горутин нет: истечение проверяется сравнением при запросе,
// а давно истекшие записи убирает Prune.
package timer

import (
	"sync"
	"time"
)

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock возвращает часы на основе time.Now в UTC
func SystemClock() Clock { return systemClock{} }

// Manager хранит по одному дедлайну на сессию
type Manager struct {
	mu        sync.RWMutex
	clock     Clock
	grace     time.Duration
	deadlines map[string]time.Time
}

// New создает менеджер. grace добавляется к дедлайну при проверке истечения.
func New(clock Clock, grace time.Duration) *Manager {
	if clock == nil {
		clock = SystemClock()
	}
	if grace < 0 {
		grace = 0
	}
	return &Manager{
		clock:     clock,
		grace:     grace,
		deadlines: make(map[string]time.Time),
	}
}

// Arm ставит дедлайн текущего вопроса, заменяя предыдущий, и возвращает его
func (m *Manager) Arm(sessionID string, d time.Duration) time.Time {
	deadline := m.clock.Now().Add(d)

	m.mu.Lock()
	m.deadlines[sessionID] = deadline
	m.mu.Unlock()

	return deadline
}

// Restore устанавливает дедлайн, прочитанный из хранилища
func (m *Manager) Restore(sessionID string, deadline time.Time) {
	m.mu.Lock()
	m.deadlines[sessionID] = deadline
	m.mu.Unlock()
}

// Disarm снимает дедлайн после принятия ответа
func (m *Manager) Disarm(sessionID string) {
	m.mu.Lock()
	delete(m.deadlines, sessionID)
	m.mu.Unlock()
}

// Deadline возвращает установленный дедлайн сессии
func (m *Manager) Deadline(sessionID string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deadlines[sessionID]
	return d, ok
}

// HasExpired сообщает, прошел ли дедлайн с учетом допуска. Состояние не меняет.
// Для сессии без дедлайна возвращает false.
func (m *Manager) HasExpired(sessionID string) bool {
	m.mu.RLock()
	deadline, ok := m.deadlines[sessionID]
	m.mu.RUnlock()

	if !ok {
		return false
	}
	return m.Expired(deadline)
}

// Expired проверяет произвольный дедлайн с тем же допуском, без обращения к таблице
func (m *Manager) Expired(deadline time.Time) bool {
	return m.clock.Now().After(m.AcceptUntil(deadline))
}

// AcceptUntil последний момент, когда ответ на вопрос с этим дедлайном еще засчитывается
func (m *Manager) AcceptUntil(deadline time.Time) time.Time {
	return deadline.Add(m.grace)
}

// Prune удаляет дедлайны, истекшие с учетом допуска раньше чем retention назад.
// Брошенные сессии иначе остаются в таблице до Disarm. Возвращает число удаленных.
func (m *Manager) Prune(retention time.Duration) int {
	cutoff := m.clock.Now().Add(-retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, deadline := range m.deadlines {
		if m.AcceptUntil(deadline).Before(cutoff) {
			delete(m.deadlines, id)
			pruned++
		}
	}
	return pruned
}

// Now текущее время по часам менеджера
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

// Armed количество сессий с активным дедлайном
func (m *Manager) Armed() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.deadlines)
}
