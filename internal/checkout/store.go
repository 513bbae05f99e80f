package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jcmexdev/gameshop/internal/pkg/cache"
)

// sessionTTL bounds how long an abandoned checkout survives in Redis.
// Long enough to cover a slow 3-D Secure round trip and a login detour.
const sessionTTL = 24 * time.Hour

// Store persists checkout sessions between HTTP requests. Injected into the
// orchestrator rather than reached for as ambient state so tests can fake it.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context, id string) error
}

// RedisStore keeps sessions in Redis via the shared cache wrapper, which is
// what lets the flow survive a full-page redirect.
type RedisStore struct {
	cache cache.Cache
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(c cache.Cache) *RedisStore {
	return &RedisStore{cache: c}
}

func (s *RedisStore) key(id string) string {
	return s.cache.GenerateKey("checkout", id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.cache.Get(ctx, s.key(id))
	if err != nil {
		return nil, fmt.Errorf("checkout: load session %q: %w", id, err)
	}
	if raw == "" {
		return nil, ErrSessionNotFound
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("checkout: corrupt session %q: %w", id, err)
	}
	return &session, nil
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("checkout: encode session %q: %w", session.ID, err)
	}
	if err := s.cache.Set(ctx, s.key(session.ID), string(raw), sessionTTL); err != nil {
		return fmt.Errorf("checkout: save session %q: %w", session.ID, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if err := s.cache.Del(ctx, s.key(id)); err != nil {
		return fmt.Errorf("checkout: clear session %q: %w", id, err)
	}
	return nil
}

// MemoryStore is the in-process Store for tests and broker-less development.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("checkout: corrupt session %q: %w", id, err)
	}
	return &session, nil
}

func (s *MemoryStore) Save(_ context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("checkout: encode session %q: %w", session.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = string(raw)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
