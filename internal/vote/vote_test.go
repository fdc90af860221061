package vote

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTable(t *testing.T) {
	tests := []struct {
		name      string
		current   State
		action    Action
		wantState State
		wantDelta Delta
	}{
		{"none up", None, ActionUp, Up, Delta{Upvotes: 1}},
		{"none down", None, ActionDown, Down, Delta{Downvotes: 1}},
		{"up up withdraws", Up, ActionUp, None, Delta{Upvotes: -1}},
		{"up down switches", Up, ActionDown, Down, Delta{Upvotes: -1, Downvotes: 1}},
		{"down up switches", Down, ActionUp, Up, Delta{Upvotes: 1, Downvotes: -1}},
		{"down down withdraws", Down, ActionDown, None, Delta{Downvotes: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, delta, err := Next(tt.current, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantDelta, delta)
		})
	}
}

func TestNextUnknownAction(t *testing.T) {
	state, delta, err := Next(Up, Action("sideways"))
	require.ErrorIs(t, err, ErrUnknownAction)
	assert.Equal(t, Up, state)
	assert.Equal(t, Delta{}, delta)
}

func TestCountersNeverNegative(t *testing.T) {
	c := Counters{}.Apply(Delta{Upvotes: -1, Downvotes: -3})
	assert.Equal(t, Counters{}, c)
}

// A user's own votes contribute at most one to one counter, so replaying any
// sequence from zero must leave the counters equal to the final state.
func TestFoldMatchesFinalState(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := rng.Intn(12)
		actions := make([]Action, n)
		for j := range actions {
			if rng.Intn(2) == 0 {
				actions[j] = ActionUp
			} else {
				actions[j] = ActionDown
			}
		}

		state, counters, err := Fold(None, Counters{}, actions...)
		require.NoError(t, err)

		want := Counters{}
		switch state {
		case Up:
			want.Upvotes = 1
		case Down:
			want.Downvotes = 1
		}
		assert.Equal(t, want, counters, "actions %v", actions)
	}
}

func TestFoldFromExistingTotals(t *testing.T) {
	state, counters, err := Fold(Up, Counters{Upvotes: 5, Downvotes: 2}, ActionDown, ActionDown, ActionUp)
	require.NoError(t, err)
	assert.Equal(t, Up, state)
	assert.Equal(t, Counters{Upvotes: 5, Downvotes: 2}, counters)
}

func TestWireRoundTrip(t *testing.T) {
	assert.Nil(t, None.Wire())

	for _, s := range []State{None, Up, Down} {
		got, err := ParseState(s.Wire())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	bad := "meh"
	_, err := ParseState(&bad)
	assert.Error(t, err)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("down")
	require.NoError(t, err)
	assert.Equal(t, ActionDown, a)

	_, err = ParseAction("")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
