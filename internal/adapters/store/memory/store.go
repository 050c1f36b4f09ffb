// Package memory implements ports.SessionStore in process memory.
//
// Entries expire after TTL without access. Expired entries are invisible to
// Get immediately and are physically removed by Sweep, which Run calls on an
// interval. Widget sessions are cheap to rebuild, so nothing is persisted.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// DefaultTTL applies when Config.TTL is zero.
const DefaultTTL = 24 * time.Hour

// Config configures a Store.
type Config[T any] struct {
	// TTL is how long an entry lives without being read or written.
	TTL time.Duration

	// OnEvict runs for every entry removed by expiry or Delete, outside the
	// store lock. Optional.
	OnEvict func(id string, value T)

	// Now overrides the clock in tests.
	Now func() time.Time

	Logger *slog.Logger
}

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Store is a TTL map safe for concurrent use.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]

	ttl     time.Duration
	onEvict func(string, T)
	now     func() time.Time
	logger  *slog.Logger
}

// New creates an empty store.
func New[T any](cfg Config[T]) *Store[T] {
	s := &Store[T]{
		entries: make(map[string]*entry[T]),
		ttl:     cfg.TTL,
		onEvict: cfg.OnEvict,
		now:     cfg.Now,
		logger:  cfg.Logger,
	}

	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Get returns the value for id and slides its expiry forward.
func (s *Store[T]) Get(_ context.Context, id string) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expiresAt) {
		var zero T
		return zero, domain.NewNotFoundError("session")
	}

	e.expiresAt = s.now().Add(s.ttl)

	return e.value, nil
}

// Put stores or replaces the value for id. A replaced value is not passed
// to OnEvict; the caller already holds it.
func (s *Store[T]) Put(_ context.Context, id string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = &entry[T]{value: value, expiresAt: s.now().Add(s.ttl)}

	return nil
}

// Delete removes id and runs OnEvict if it was present.
func (s *Store[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if ok && s.onEvict != nil {
		s.onEvict(id, e.value)
	}

	return nil
}

// Len returns the number of entries that have not expired.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, e := range s.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}

	return n
}

// Sweep removes expired entries and returns how many it removed.
func (s *Store[T]) Sweep() int {
	type evicted struct {
		id    string
		value T
	}

	s.mu.Lock()
	now := s.now()
	var gone []evicted
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			gone = append(gone, evicted{id, e.value})
			delete(s.entries, id)
		}
	}
	s.mu.Unlock()

	if s.onEvict != nil {
		for _, g := range gone {
			s.onEvict(g.id, g.value)
		}
	}

	return len(gone)
}

// Run sweeps every interval until ctx is done.
func (s *Store[T]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("swept expired sessions",
					slog.Int("evicted", n),
					slog.Int("remaining", s.Len()),
				)
			}
		}
	}
}

// Close evicts every entry, running OnEvict for each.
func (s *Store[T]) Close() {
	s.mu.Lock()
	all := s.entries
	s.entries = make(map[string]*entry[T])
	s.mu.Unlock()

	if s.onEvict != nil {
		for id, e := range all {
			s.onEvict(id, e.value)
		}
	}
}
