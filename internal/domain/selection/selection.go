// Package selection holds the single active time range over the loaded audio.
//
// The slot is a two-state machine: NoSelection and HasSelection. Create
// replaces whatever is held, Update only edits an existing range and Clear
// returns to NoSelection, so the slot can never hold more than one range.
package selection

import (
	"errors"
	"fmt"
	"math"

	"github.com/forPelevin/stickercut/internal/types"
)

// DefaultSpan is the length of the range created when new audio loads.
const DefaultSpan = 10.0

var (
	ErrNoDuration   = errors.New("no audio loaded")
	ErrNoSelection  = errors.New("no selection to update")
	ErrInvalidRange = errors.New("selection is empty after clamping")
)

type State int

const (
	NoSelection State = iota
	HasSelection
)

func (s State) String() string {
	if s == HasSelection {
		return "has_selection"
	}
	return "no_selection"
}

// Slot is not safe for concurrent use; the owning session serialises access.
type Slot struct {
	duration float64
	cur      types.Selection
	state    State
}

// Reset binds the slot to a new audio duration and drops any selection.
func (s *Slot) Reset(duration float64) {
	s.duration = math.Max(duration, 0)
	s.Clear()
}

func (s *Slot) Duration() float64 { return s.duration }

func (s *Slot) State() State { return s.state }

func (s *Slot) Current() (types.Selection, bool) {
	return s.cur, s.state == HasSelection
}

func (s *Slot) CreateOrReplace(c types.Selection) (types.Selection, error) {
	sel, err := s.clamp(c)
	if err != nil {
		return types.Selection{}, err
	}
	s.cur, s.state = sel, HasSelection
	return sel, nil
}

func (s *Slot) Update(c types.Selection) (types.Selection, error) {
	if s.state != HasSelection {
		return types.Selection{}, ErrNoSelection
	}
	sel, err := s.clamp(c)
	if err != nil {
		return types.Selection{}, err
	}
	s.cur = sel
	return sel, nil
}

func (s *Slot) Clear() {
	s.cur, s.state = types.Selection{}, NoSelection
}

// CreateDefault selects [0, min(duration, DefaultSpan)].
func (s *Slot) CreateDefault() (types.Selection, error) {
	return s.CreateOrReplace(Default(s.duration))
}

func Default(duration float64) types.Selection {
	return types.Selection{Start: 0, End: math.Min(duration, DefaultSpan)}
}

func (s *Slot) clamp(c types.Selection) (types.Selection, error) {
	if s.duration <= 0 {
		return types.Selection{}, ErrNoDuration
	}
	if math.IsNaN(c.Start) || math.IsNaN(c.End) {
		return types.Selection{}, fmt.Errorf("%w: NaN bound", ErrInvalidRange)
	}
	// Drag gestures may report bounds right-to-left.
	if c.End < c.Start {
		c.Start, c.End = c.End, c.Start
	}
	c.Start = clamp(c.Start, 0, s.duration)
	c.End = clamp(c.End, 0, s.duration)
	if c.End <= c.Start {
		return types.Selection{}, fmt.Errorf("%w: [%.3f, %.3f] within %.3fs", ErrInvalidRange, c.Start, c.End, s.duration)
	}
	return c, nil
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
