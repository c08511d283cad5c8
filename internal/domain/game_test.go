package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGameStatusCanTransition(t *testing.T) {
	tests := []struct {
		from, to GameStatus
		want     bool
	}{
		{GameStatusScheduled, GameStatusLive, true},
		{GameStatusScheduled, GameStatusCompleted, true},
		{GameStatusLive, GameStatusCompleted, true},
		{GameStatusLive, GameStatusScheduled, false},
		{GameStatusCompleted, GameStatusLive, false},
		{GameStatusCompleted, GameStatusScheduled, false},
		{GameStatusScheduled, GameStatusScheduled, false},
		{GameStatus("bogus"), GameStatusLive, false},
		{GameStatusLive, GameStatus("bogus"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestConfidenceRank(t *testing.T) {
	assert.Equal(t, 0, ConfidenceLow.Rank())
	assert.Equal(t, 1, ConfidenceMedium.Rank())
	assert.Equal(t, 2, ConfidenceHigh.Rank())
	assert.Equal(t, -1, Confidence("huge").Rank())
}

func TestGameEventIdentifier(t *testing.T) {
	assert.Equal(t, "ev-1", GameEvent{EventID: "ev-1", ID: "row-1"}.Identifier())
	assert.Equal(t, "row-1", GameEvent{ID: "row-1"}.Identifier())
	assert.Empty(t, GameEvent{}.Identifier())
}
