package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/battleoracle/internal/domain"
)

func TestShouldCreateMarket(t *testing.T) {
	tests := []struct {
		name string
		r    Result
		want bool
	}{
		{"threshold", Result{Confidence: 75, PlayerOne: "Ash", PlayerTwo: "Misty"}, true},
		{"identical names", Result{Confidence: 75, PlayerOne: "Ash", PlayerTwo: "Ash"}, false},
		{"below threshold", Result{Confidence: 74, PlayerOne: "Ash", PlayerTwo: "Misty"}, false},
		{"missing opponent", Result{Confidence: 95, PlayerOne: "Ash"}, false},
		{"penalised", Result{Confidence: 65, PlayerOne: "Supercalifragilisticexpialidocious", PlayerTwo: "Brock"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldCreateMarket(tt.r))
		})
	}
}

func TestShouldAutoSettle(t *testing.T) {
	base := Result{Winner: "Ash", PlayerOne: "Ash", PlayerTwo: "Misty"}
	tests := []struct {
		name string
		mut  func(r *Result)
		want bool
	}{
		{"threshold", func(r *Result) { r.Confidence = 90 }, true},
		{"just below", func(r *Result) { r.Confidence = 89 }, false},
		{"no winner", func(r *Result) { r.Confidence = 95; r.Winner = "" }, false},
		{"winner not a participant", func(r *Result) { r.Confidence = 95; r.Winner = "Brock" }, false},
		{"substring is not equality", func(r *Result) { r.Confidence = 95; r.Winner = "As" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mut(&r)
			assert.Equal(t, tt.want, ShouldAutoSettle(r))
		})
	}
}

func TestNeedsAdminReview(t *testing.T) {
	tests := []struct {
		confidence int
		winner     string
		want       bool
	}{
		{70, "Ash", true},
		{89, "Ash", true},
		{69, "Ash", false},
		{90, "Ash", false},
		{80, "", false},
	}
	for _, tt := range tests {
		r := Result{Confidence: tt.confidence, Winner: tt.winner, PlayerOne: "Ash", PlayerTwo: "Misty"}
		assert.Equal(t, tt.want, NeedsAdminReview(r), "confidence %d winner %q", tt.confidence, tt.winner)
	}
}

func TestProposalStatus(t *testing.T) {
	status, ok := ProposalStatus(Result{Confidence: 95, Winner: "Ash", PlayerOne: "Ash", PlayerTwo: "Misty"})
	assert.True(t, ok)
	assert.Equal(t, domain.SettlementAutoSettle, status)

	status, ok = ProposalStatus(Result{Confidence: 70, Winner: "Ash", PlayerOne: "Ash", PlayerTwo: "Misty"})
	assert.True(t, ok)
	assert.Equal(t, domain.SettlementNeedsReview, status)

	_, ok = ProposalStatus(Result{Confidence: 60, Winner: "Ash", PlayerOne: "Ash", PlayerTwo: "Misty"})
	assert.False(t, ok)

	_, ok = ProposalStatus(Result{Confidence: 95, PlayerOne: "Ash", PlayerTwo: "Misty"})
	assert.False(t, ok)

	assert.True(t, status.IsProposalTag())
}
