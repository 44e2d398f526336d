package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/caption-sync/backend/internal/transcript"
)

// Manager is the uuid-keyed registry of live sessions. Each session is
// fully independent; the manager only hands them out.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	translator Translator
}

func NewManager(translator Translator) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		translator: translator,
	}
}

// Create registers a new session for a finished transcription.
func (m *Manager) Create(remoteName, videoName, originalLang string, segments []transcript.Segment) *Session {
	s := New(uuid.New().String(), remoteName, videoName, originalLang, segments, m.translator)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove resets a session and drops it from the registry.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Reset()
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
