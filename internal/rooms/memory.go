package rooms

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/cosmic/internal/models"
)

type record struct {
	raw     []byte
	expires time.Time
}

// MemoryStore keeps rooms in process. Expired records are dropped lazily on access and by
// [MemoryStore.Sweep].
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]record
	ttl   time.Duration
	now   Clock
}

// NewMemoryStore creates a store with the given TTL. A nil clock uses [time.Now].
func NewMemoryStore(ttl time.Duration, now Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{rooms: make(map[string]record), ttl: ttl, now: now}
}

// live returns the record at key if it has not expired, deleting it otherwise. Callers hold mu.
func (s *MemoryStore) live(key string) (record, bool) {
	r, ok := s.rooms[key]
	if !ok {
		return record{}, false
	}
	if !s.now().Before(r.expires) {
		delete(s.rooms, key)
		return record{}, false
	}
	return r, true
}

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(code)
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.rooms[key] = record{raw: []byte("[]"), expires: s.now().Add(s.ttl)}
	return true, nil
}

func (s *MemoryStore) UpsertMember(ctx context.Context, code string, member models.Member) ([]models.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(code)
	r, _ := s.live(key)
	members := ReplaceMember(DecodeMembers(r.raw), member)
	raw, err := EncodeMembers(members)
	if err != nil {
		return nil, err
	}
	s.rooms[key] = record{raw: raw, expires: s.now().Add(s.ttl)}
	return members, nil
}

func (s *MemoryStore) ReadMembers(ctx context.Context, code string, touch bool) ([]models.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(code)
	r, ok := s.live(key)
	if !ok {
		return []models.Member{}, nil
	}
	members := DecodeMembers(r.raw)
	if touch && len(members) > 0 {
		r.expires = s.now().Add(s.ttl)
		s.rooms[key] = r
	}
	return members, nil
}

// Sweep deletes every expired room and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for key, r := range s.rooms {
		if !now.Before(r.expires) {
			delete(s.rooms, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored rooms, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// put stores a raw record, bypassing encoding.
func (s *MemoryStore) put(code string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[Key(code)] = record{raw: raw, expires: s.now().Add(s.ttl)}
}
