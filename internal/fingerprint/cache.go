package fingerprint

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ist-dresden/composum-platform-sub002/internal/typesys"
)

// DefaultCacheSize bounds the number of type names cached per session.
const DefaultCacheSize = 256

// ProtectedCache holds one protected property cache per accessor session.
// A session's entries live until Release is called with its id, so the
// cache never outlives the session that filled it.
type ProtectedCache struct {
	mu       sync.Mutex
	size     int
	sessions map[string]*Session
}

// NewProtectedCache returns an empty cache that keeps up to size type
// names per session. A size below one uses DefaultCacheSize.
func NewProtectedCache(size int) *ProtectedCache {
	if size < 1 {
		size = DefaultCacheSize
	}
	return &ProtectedCache{size: size, sessions: make(map[string]*Session)}
}

// Session returns the cache of session id, creating it over types on
// first use. Later calls return the same session regardless of types.
func (c *ProtectedCache) Session(id string, types *typesys.Registry) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[id]; ok {
		return s, nil
	}
	entries, err := lru.New[string, []string](c.size)
	if err != nil {
		return nil, fmt.Errorf("protected cache for session %s: %w", id, err)
	}
	s := &Session{id: id, types: types, entries: entries}
	c.sessions[id] = s
	return s, nil
}

// Release drops the cache of session id.
func (c *ProtectedCache) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[id]; ok {
		slog.Debug("releasing protected property cache", "session", id, "types", s.entries.Len())
		s.entries.Purge()
		delete(c.sessions, id)
	}
}

// Sessions returns the number of live sessions.
func (c *ProtectedCache) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Session caches protected property names per type name. It is safe for
// concurrent use; two goroutines missing the same type both compute it
// and store equal results.
type Session struct {
	id      string
	types   *typesys.Registry
	entries *lru.Cache[string, []string]
}

// Protected returns the protected property names of typeName.
func (s *Session) Protected(typeName string) ([]string, error) {
	if names, ok := s.entries.Get(typeName); ok {
		return names, nil
	}
	names, err := s.types.ProtectedProperties(typeName)
	if err != nil {
		return nil, err
	}
	s.entries.Add(typeName, names)
	return names, nil
}

// Len returns the number of cached type names.
func (s *Session) Len() int {
	return s.entries.Len()
}
