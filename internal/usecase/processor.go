package usecase

import (
	"context"
	"sync"

	"github.com/forPelevin/stickercut/internal/ports"
)

type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateUnavailable State = "unavailable"
	StateExporting   State = "exporting"
	StateFailed      State = "failed"
)

// Processor tracks whether the transcoder can be used:
// Idle → Loading → Ready, or Loading → Unavailable when loading fails.
type Processor struct {
	t ports.Transcoder

	mu      sync.RWMutex
	state   State
	lastErr error
	onState func(State)
}

func NewProcessor(t ports.Transcoder) *Processor {
	return &Processor{t: t, state: StateIdle}
}

// OnState registers a hook called after every transition.
func (p *Processor) OnState(fn func(State)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

// Load is a no-op once Ready. A failed load may be retried.
func (p *Processor) Load(ctx context.Context) error {
	p.mu.Lock()
	switch p.state {
	case StateReady:
		p.mu.Unlock()
		return nil
	case StateLoading:
		p.mu.Unlock()
		return ErrProcessorUnavailable
	}
	p.state = StateLoading
	hook := p.onState
	p.mu.Unlock()
	notify(hook, StateLoading)

	err := p.t.Load(ctx)

	p.mu.Lock()
	if err != nil {
		p.state, p.lastErr = StateUnavailable, err
	} else {
		p.state, p.lastErr = StateReady, nil
	}
	st := p.state
	hook = p.onState
	p.mu.Unlock()
	notify(hook, st)
	return err
}

func (p *Processor) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Processor) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

func (p *Processor) Ready() bool { return p.State() == StateReady }

func (p *Processor) Transcoder() ports.Transcoder { return p.t }

func notify(fn func(State), s State) {
	if fn != nil {
		fn(s)
	}
}
