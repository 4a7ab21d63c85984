package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/urpt/student-rotation-service/internal/cache"
)

// RedisStore keeps sessions in Redis through the cache service, one JSON
// value per session with the session TTL as key expiry.
type RedisStore struct {
	cache  cache.CacheService
	prefix string
	ttl    time.Duration
}

// globEscaper quotes the characters Redis treats as glob syntax in SCAN patterns.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// NewRedisStore keys sessions as "<prefix>:<owner>:<handle>".
func NewRedisStore(c cache.CacheService, prefix string, ttl time.Duration) *RedisStore {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisStore{cache: c, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(owner, handle string) string {
	return s.prefix + owner + ":" + handle
}

func (s *RedisStore) Load(ctx context.Context, owner, handle string) (*Session, error) {
	var session Session
	if err := s.cache.Get(ctx, s.key(owner, handle), &session); err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	return s.cache.Set(ctx, s.key(session.Owner, session.Handle), session, s.ttl)
}

func (s *RedisStore) Take(ctx context.Context, owner, handle string) (*Session, error) {
	var session Session
	if err := s.cache.Take(ctx, s.key(owner, handle), &session); err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (s *RedisStore) Delete(ctx context.Context, owner, handle string) error {
	return s.cache.Delete(ctx, s.key(owner, handle))
}

func (s *RedisStore) Clear(ctx context.Context, owner string) error {
	return s.cache.DeletePattern(ctx, globEscaper.Replace(s.prefix+owner+":")+"*")
}

func translate(err error) error {
	if errors.Is(err, cache.ErrCacheMiss) {
		return ErrSessionNotFound
	}
	return err
}
