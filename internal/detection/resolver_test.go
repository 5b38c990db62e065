package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		p1, p2     string
		winner     string
		confidence int
		pattern    string
	}{
		{"winner action", "Misty wins!", "Ash", "Misty", "Misty", 90, PatternWinnerAction},
		{"explicit winner", "Ash vs Misty - Winner: Ash", "Ash", "Misty", "Ash", 95, PatternExplicitWinner},
		{"explicit winner is canonicalised", "winner: misty", "Ash", "Misty", "Misty", 95, PatternExplicitWinner},
		{"p1 beats p2", "Ash beats Misty", "Ash", "Misty", "Ash", 90, PatternP1BeatsP2},
		{"p2 beats p1", "Misty beats Ash", "Ash", "Misty", "Misty", 90, PatternP2BeatsP1},
		{"victory word", "ASH victory royale", "Ash", "Misty", "Ash", 90, PatternWinnerAction},
		{"single player fallback", "Ash is on a winning streak", "Ash", "Misty", "Ash", 70, PatternSinglePlayerWithWin},
		{"names with metacharacters", "Mr. Mime wins", "Mr. Mime", "Ash", "Mr. Mime", 90, PatternWinnerAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.title, tt.p1, tt.p2)
			require.True(t, ok)
			assert.Equal(t, tt.winner, got.Winner)
			assert.Equal(t, tt.confidence, got.Confidence)
			assert.Equal(t, tt.pattern, got.Pattern)
			assert.Equal(t, tt.p1, got.PlayerOne)
			assert.Equal(t, tt.p2, got.PlayerTwo)
		})
	}
}

func TestResolveNoDetection(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		p1, p2 string
	}{
		{"neither name", "Great battle today", "Ash", "Misty"},
		{"both names without anchor", "Ash and Misty both want the win", "Ash", "Misty"},
		{"one name without cue", "Ash is battling", "Ash", "Misty"},
		{"blank participant", "Ash wins", "Ash", ""},
		{"quoted name is literal", "MrX Mime wins", "Mr. Mime", "Ash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Resolve(tt.title, tt.p1, tt.p2)
			assert.False(t, ok)
		})
	}
}

func TestResolveRulesAreCompiledOncePerPair(t *testing.T) {
	first := rulesFor("Ash", "Gary")
	second := rulesFor("Ash", "Gary")
	require.Len(t, first, len(anchoredRules))
	assert.Same(t, first[0].re, second[0].re)

	swapped := rulesFor("Gary", "Ash")
	assert.NotSame(t, first[0].re, swapped[0].re, "player order is part of the key")
}

func TestResolveNamesThatLookLikeRegex(t *testing.T) {
	got, ok := Resolve("Winner: Red (Kanto)", "Red (Kanto)", "Blue[2]")
	require.True(t, ok)
	assert.Equal(t, "Red (Kanto)", got.Winner)

	got, ok = Resolve("Blue[2] beats Red (Kanto)", "Red (Kanto)", "Blue[2]")
	require.True(t, ok)
	assert.Equal(t, "Blue[2]", got.Winner)
	assert.Equal(t, PatternP2BeatsP1, got.Pattern)
}
