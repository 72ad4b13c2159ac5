package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Store keeps sessions in memory and evicts the ones idle longer than ttl.
type Store struct {
	d   Deps
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(d Deps, ttl time.Duration) *Store {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Store{d: d, ttl: ttl, sessions: map[string]*Session{}}
}

func (st *Store) Create() (*Session, error) {
	s, err := New(uuid.NewString(), st.d)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions[s.ID()] = s
	st.mu.Unlock()
	return s, nil
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(st.sessions, id)
	return nil
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops idle sessions and returns how many were removed.
// A zero ttl keeps sessions forever.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.d.Now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if s.IdleSince().Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || st.ttl <= 0 {
		return
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if n := st.Sweep(); n > 0 && st.d.Logf != nil {
				st.d.Logf("evicted %d idle session(s)", n)
			}
		}
	}
}
