// Package restrict keeps track of users the bot has banned or muted in a
// channel, so their messages can be removed while the restriction lasts.
package restrict

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	Ban  Kind = "ban"
	Mute Kind = "mute"
)

// Restriction applies to one user in one channel. A nil ExpiresAt never expires.
type Restriction struct {
	ID        uint       `gorm:"primaryKey"`
	ChannelID string     `gorm:"size:64;index:idx_restriction_member"`
	UserID    string     `gorm:"size:64;index:idx_restriction_member"`
	Kind      Kind       `gorm:"size:16"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
}

func (r Restriction) ActiveAt(now time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

type Store interface {
	Save(ctx context.Context, r Restriction) error
	// Active returns the restriction in force for the user, or nil.
	Active(ctx context.Context, channelID, userID string, now time.Time) (*Restriction, error)
	Purge(ctx context.Context, now time.Time) (int64, error)
}

type member struct {
	channelID string
	userID    string
}

// MemoryStore keeps the latest restriction of each kind per member, so a
// later mute never replaces a ban.
type MemoryStore struct {
	sync.RWMutex
	restrictions map[member]map[Kind]Restriction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{restrictions: make(map[member]map[Kind]Restriction)}
}

func (s *MemoryStore) Save(_ context.Context, r Restriction) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	key := member{r.ChannelID, r.UserID}
	s.Lock()
	defer s.Unlock()
	kinds, ok := s.restrictions[key]
	if !ok {
		kinds = make(map[Kind]Restriction)
		s.restrictions[key] = kinds
	}
	kinds[r.Kind] = r
	return nil
}

// Active prefers a ban over a mute when both are in force.
func (s *MemoryStore) Active(_ context.Context, channelID, userID string, now time.Time) (*Restriction, error) {
	s.RLock()
	defer s.RUnlock()
	kinds := s.restrictions[member{channelID, userID}]
	for _, kind := range []Kind{Ban, Mute} {
		if r, ok := kinds[kind]; ok && r.ActiveAt(now) {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Purge(_ context.Context, now time.Time) (int64, error) {
	s.Lock()
	defer s.Unlock()
	var n int64
	for key, kinds := range s.restrictions {
		for kind, r := range kinds {
			if !r.ActiveAt(now) {
				delete(kinds, kind)
				n++
			}
		}
		if len(kinds) == 0 {
			delete(s.restrictions, key)
		}
	}
	return n, nil
}
