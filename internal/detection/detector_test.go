package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternsOrder(t *testing.T) {
	var names []string
	for _, p := range Patterns() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		PatternVsWithWinner,
		PatternVs,
		PatternBeats,
		PatternWinnerDeclared,
		PatternVictory,
	}, names)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  Result
	}{
		{
			name:  "vs with winner",
			title: "Ash vs Misty - Winner: Misty",
			want:  Result{PlayerOne: "Ash", PlayerTwo: "Misty", Winner: "Misty", Confidence: 95, Pattern: PatternVsWithWinner},
		},
		{
			name:  "vs with pipe and lowercase winner",
			title: "Red vs Blue | winner Red",
			want:  Result{PlayerOne: "Red", PlayerTwo: "Blue", Winner: "Red", Confidence: 95, Pattern: PatternVsWithWinner},
		},
		{
			name:  "plain vs",
			title: "Ash vs Misty",
			want:  Result{PlayerOne: "Ash", PlayerTwo: "Misty", Confidence: 85, Pattern: PatternVs},
		},
		{
			name:  "vs with prefix",
			title: "Pokemon Showdown: Ash vs. Misty",
			want:  Result{PlayerOne: "Ash", PlayerTwo: "Misty", Confidence: 85, Pattern: PatternVs},
		},
		{
			name:  "uppercase VS skips the case sensitive winner form",
			title: "Ash VS Misty - Winner: Ash",
			want:  Result{PlayerOne: "Ash", PlayerTwo: "Misty", Confidence: 85, Pattern: PatternVs},
		},
		{
			name:  "beats",
			title: "Ash beats Misty",
			want:  Result{PlayerOne: "Ash", PlayerTwo: "Misty", Winner: "Ash", Confidence: 90, Pattern: PatternBeats},
		},
		{
			name:  "wins against",
			title: "Gary wins against Brock",
			want:  Result{PlayerOne: "Gary", PlayerTwo: "Brock", Winner: "Gary", Confidence: 90, Pattern: PatternBeats},
		},
		{
			name:  "victory",
			title: "Misty wins!",
			want:  Result{PlayerOne: "Misty", Winner: "Misty", Confidence: 75, Pattern: PatternVictory},
		},
		{
			name:  "surrounding whitespace",
			title: "   Ash vs Misty   ",
			want:  Result{PlayerOne: "Ash", PlayerTwo: "Misty", Confidence: 85, Pattern: PatternVs},
		},
		{
			name:  "long first name is penalised",
			title: "Supercalifragilisticexpialidocious vs Brock",
			want:  Result{PlayerOne: "Supercalifragilisticexpialidocious", PlayerTwo: "Brock", Confidence: 65, Pattern: PatternVs},
		},
		{
			name:  "both names long",
			title: "Supercalifragilisticexpialidocious vs Antidisestablishmentarianism",
			want:  Result{PlayerOne: "Supercalifragilisticexpialidocious", PlayerTwo: "Antidisestablishmentarianism", Confidence: 45, Pattern: PatternVs},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Detect(tt.title)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectNoDetection(t *testing.T) {
	for _, title := range []string{
		"",
		"   ",
		"Great battle today",
		"Winner: Ash",
	} {
		t.Run(title, func(t *testing.T) {
			_, ok := Detect(title)
			assert.False(t, ok)
		})
	}
}

func TestDetectIsPure(t *testing.T) {
	title := "Ash vs Misty - Winner: Ash"
	first, ok1 := Detect(title)
	second, ok2 := Detect(title)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
}

func TestDetectVsWithWinnerEitherSide(t *testing.T) {
	for _, winner := range []string{"Ash", "Misty"} {
		got, ok := Detect("Ash vs Misty - Winner: " + winner)
		require.True(t, ok)
		assert.Equal(t, 95, got.Confidence)
		assert.Equal(t, PatternVsWithWinner, got.Pattern)
		assert.Equal(t, "Ash", got.PlayerOne)
		assert.Equal(t, "Misty", got.PlayerTwo)
		assert.Equal(t, winner, got.Winner)
	}
}
