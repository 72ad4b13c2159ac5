package events

import (
	"sync"
	"time"
)

type Type string

const (
	TypeAudio     Type = "audio"
	TypeSelection Type = "selection"
	TypeStyle     Type = "style"
	TypeExport    Type = "export"
	TypeProcessor Type = "processor"
	TypeSnapshot  Type = "snapshot"
)

type Event struct {
	Session string    `json:"session,omitempty"`
	Type    Type      `json:"type"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// Broadcaster fans out events to N subscribers. Processor events (empty
// Session) reach everyone; session events reach subscribers of that session.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
	now  func() time.Time
}

type Subscriber struct {
	C       chan Event
	session string
	done    chan struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscriber]struct{}), now: time.Now}
}

// Subscribe registers a subscriber for one session's events.
func (b *Broadcaster) Subscribe(session string) *Subscriber {
	s := &Subscriber{
		C:       make(chan Event, 32),
		session: session,
		done:    make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Broadcaster) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	b.mu.Unlock()
	if ok {
		close(s.done)
	}
}

// UnsubscribeSession removes every subscriber of session and returns how many
// there were.
func (b *Broadcaster) UnsubscribeSession(session string) int {
	b.mu.Lock()
	var gone []*Subscriber
	for s := range b.subs {
		if s.session == session {
			gone = append(gone, s)
			delete(b.subs, s)
		}
	}
	b.mu.Unlock()
	for _, s := range gone {
		close(s.done)
	}
	return len(gone)
}

// Done is closed once the subscriber is removed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish never blocks: a subscriber with a full buffer misses the event.
func (b *Broadcaster) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if ev.Session != "" && s.session != ev.Session {
			continue
		}
		select {
		case s.C <- ev:
		default:
		}
	}
}
