package workflow

import (
	"context"
	"sync"
	"time"
)

type sessionKey struct {
	owner  string
	handle string
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. It suits single-instance
// deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[sessionKey]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[sessionKey]memoryEntry),
	}
}

func (s *MemoryStore) Load(_ context.Context, owner, handle string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lookup(sessionKey{owner, handle})
	if !ok {
		return nil, ErrSessionNotFound
	}
	session := entry.session
	return &session, nil
}

func (s *MemoryStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionKey{session.Owner, session.Handle}] = memoryEntry{
		session:   *session,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, owner, handle string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{owner, handle}
	entry, ok := s.lookup(key)
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(s.sessions, key)
	session := entry.session
	return &session, nil
}

func (s *MemoryStore) Delete(_ context.Context, owner, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionKey{owner, handle})
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.sessions {
		if key.owner == owner {
			delete(s.sessions, key)
		}
	}
	return nil
}

// lookup returns a live entry, evicting it when expired. Callers hold mu.
func (s *MemoryStore) lookup(key sessionKey) (memoryEntry, bool) {
	entry, ok := s.sessions[key]
	if !ok {
		return memoryEntry{}, false
	}
	if s.ttl > 0 && !s.now().Before(entry.expiresAt) {
		delete(s.sessions, key)
		return memoryEntry{}, false
	}
	return entry, true
}
