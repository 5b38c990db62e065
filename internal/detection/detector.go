package detection

import (
	"strings"
	"unicode/utf8"
)

const (
	// maxNameLength is the longest participant name that is not penalised.
	maxNameLength = 20
	// longNamePenalty is subtracted once per over-long participant name.
	longNamePenalty = 20
)

// Result is one detection over a title. Empty strings mean the role was not
// extracted. Confidence is not clamped and may be negative.
type Result struct {
	PlayerOne  string `json:"player_one,omitempty"`
	PlayerTwo  string `json:"player_two,omitempty"`
	Winner     string `json:"winner,omitempty"`
	Confidence int    `json:"confidence"`
	Pattern    string `json:"pattern"`
}

// HasPlayers reports whether both participants were extracted.
func (r Result) HasPlayers() bool {
	return r.PlayerOne != "" && r.PlayerTwo != ""
}

// HasWinner reports whether a winner was extracted.
func (r Result) HasWinner() bool {
	return r.Winner != ""
}

// Detect runs the ordered patterns against title and returns the first
// extraction that names at least one participant. The boolean is false when
// nothing usable was found.
func Detect(title string) (Result, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Result{}, false
	}
	for _, p := range patterns {
		r, ok := p.extract(title)
		if !ok {
			continue
		}
		if r.PlayerOne == "" && r.PlayerTwo == "" {
			continue
		}
		r.Confidence -= namePenalty(r.PlayerOne) + namePenalty(r.PlayerTwo)
		return r, true
	}
	return Result{}, false
}

func namePenalty(name string) int {
	if utf8.RuneCountInString(name) > maxNameLength {
		return longNamePenalty
	}
	return 0
}
