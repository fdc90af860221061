// Package vote implements the per-user vote state machine on a post.
//
// A user holds at most one vote per post. Casting the same vote again
// withdraws it; casting the opposite vote switches it. Next returns both
// the new state and the change to apply to the aggregate counters, so the
// web tier (optimistically) and the API (authoritatively) apply the very
// same transition.
package vote

import (
	"errors"
	"fmt"
)

// State is a user's current vote on a post.
type State string

const (
	None State = ""
	Up   State = "up"
	Down State = "down"
)

// Action is what the user clicked.
type Action string

const (
	ActionUp   Action = "up"
	ActionDown Action = "down"
)

var ErrUnknownAction = errors.New("vote: unknown action")

func (a Action) Valid() bool {
	return a == ActionUp || a == ActionDown
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// ParseState decodes the wire form, where nil means no vote.
func ParseState(s *string) (State, error) {
	if s == nil || *s == "" {
		return None, nil
	}
	switch State(*s) {
	case Up, Down:
		return State(*s), nil
	}
	return None, fmt.Errorf("vote: unknown state %q", *s)
}

// Wire returns the JSON form of the state: "up", "down" or nil.
func (s State) Wire() *string {
	if s == None {
		return nil
	}
	v := string(s)
	return &v
}

func (s State) String() string {
	if s == None {
		return "none"
	}
	return string(s)
}

// Delta is the change to apply to a post's counters.
type Delta struct {
	Upvotes   int
	Downvotes int
}

// Next computes the transition for action taken from current.
func Next(current State, action Action) (State, Delta, error) {
	switch action {
	case ActionUp:
		switch current {
		case Up:
			return None, Delta{Upvotes: -1}, nil
		case Down:
			return Up, Delta{Upvotes: 1, Downvotes: -1}, nil
		default:
			return Up, Delta{Upvotes: 1}, nil
		}
	case ActionDown:
		switch current {
		case Down:
			return None, Delta{Downvotes: -1}, nil
		case Up:
			return Down, Delta{Upvotes: -1, Downvotes: 1}, nil
		default:
			return Down, Delta{Downvotes: 1}, nil
		}
	}
	return current, Delta{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// Counters are a post's aggregate vote totals.
type Counters struct {
	Upvotes   int
	Downvotes int
}

// Apply returns c shifted by d. Totals never drop below zero.
func (c Counters) Apply(d Delta) Counters {
	c.Upvotes = max(c.Upvotes+d.Upvotes, 0)
	c.Downvotes = max(c.Downvotes+d.Downvotes, 0)
	return c
}

// Fold replays actions from (state, counters) and returns the final pair.
func Fold(state State, counters Counters, actions ...Action) (State, Counters, error) {
	for _, a := range actions {
		next, d, err := Next(state, a)
		if err != nil {
			return state, counters, err
		}
		state, counters = next, counters.Apply(d)
	}
	return state, counters, nil
}
