package assessment

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	mu      sync.Mutex
	session *Session
	removed bool
}

// MemorySessionStore хранит сессии в памяти процесса.
// Порядок блокировок: мьютекс записи, затем мьютекс карты, но не наоборот.
type MemorySessionStore struct {
	mu           sync.Mutex
	sessions     map[SessionKey]*memoryEntry
	byAssessment map[uint]SessionKey
}

// NewMemorySessionStore создаёт пустое хранилище
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions:     make(map[SessionKey]*memoryEntry),
		byAssessment: make(map[uint]SessionKey),
	}
}

func (m *MemorySessionStore) Create(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[session.Key]; ok {
		return fmt.Errorf("%w: key %s is held by another session", ErrSessionConflict, session.Key)
	}
	m.sessions[session.Key] = &memoryEntry{session: session.Clone()}
	m.byAssessment[session.AssessmentID] = session.Key
	return nil
}

func (m *MemorySessionStore) Get(ctx context.Context, key SessionKey) (*Session, error) {
	e := m.entry(key)
	if e == nil {
		return nil, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

func (m *MemorySessionStore) KeyOf(ctx context.Context, assessmentID uint) (SessionKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.byAssessment[assessmentID]
	if !ok {
		return SessionKey{}, ErrSessionNotFound
	}
	return key, nil
}

func (m *MemorySessionStore) Mutate(ctx context.Context, key SessionKey, fn func(*Session) error) error {
	e := m.entry(key)
	if e == nil {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrSessionNotFound
	}

	work := e.session.Clone()
	err := fn(work)
	if work.Completed {
		m.remove(key, e)
		return err
	}
	e.session = work
	return err
}

func (m *MemorySessionStore) Delete(ctx context.Context, key SessionKey) error {
	e := m.entry(key)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.removed {
		m.remove(key, e)
	}
	return nil
}

func (m *MemorySessionStore) ExpireIdle(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	m.mu.Lock()
	entries := make(map[SessionKey]*memoryEntry, len(m.sessions))
	for k, e := range m.sessions {
		entries[k] = e
	}
	m.mu.Unlock()

	var expired []*Session
	for k, e := range entries {
		e.mu.Lock()
		if !e.removed && e.session.LastActivityAt.Before(cutoff) {
			expired = append(expired, e.session.Clone())
			m.remove(k, e)
		}
		e.mu.Unlock()
	}
	return expired, nil
}

// Len возвращает число активных сессий
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemorySessionStore) entry(key SessionKey) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[key]
}

// remove вызывается под e.mu
func (m *MemorySessionStore) remove(key SessionKey, e *memoryEntry) {
	e.removed = true
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[key] == e {
		delete(m.sessions, key)
	}
	if k, ok := m.byAssessment[e.session.AssessmentID]; ok && k == key {
		delete(m.byAssessment, e.session.AssessmentID)
	}
}
