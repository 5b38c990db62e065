// Package detection parses stream titles for head-to-head battles and decides
// what a detection should lead to. Everything in it is pure and safe for
// concurrent use.
package detection

import (
	"regexp"
	"strings"
)

// Pattern names, as recorded in detection logs.
const (
	PatternVsWithWinner   = "vs_format_with_winner"
	PatternVs             = "vs_format"
	PatternBeats          = "beats_format"
	PatternWinnerDeclared = "winner_declared"
	PatternVictory        = "victory_format"
)

// Pattern is one entry of the ordered title matcher list. The group fields
// hold the capture-group index for each role; 0 means the pattern does not
// extract that role.
type Pattern struct {
	Name        string
	Confidence  int
	Expr        *regexp.Regexp
	PlayerOneAt int
	PlayerTwoAt int
	WinnerAt    int
}

// name matches one or two word tokens.
const name = `(\w+(?:\s+\w+)?)`

var patterns = []Pattern{
	{
		Name:        PatternVsWithWinner,
		Confidence:  95,
		Expr:        regexp.MustCompile(name + `\s+vs\.?\s+` + name + `\s*[-–|]\s*[Ww]inner:?\s*` + name),
		PlayerOneAt: 1, PlayerTwoAt: 2, WinnerAt: 3,
	},
	{
		Name:        PatternVs,
		Confidence:  85,
		Expr:        regexp.MustCompile(`(?i)` + name + `\s+vs\.?\s+` + name),
		PlayerOneAt: 1, PlayerTwoAt: 2,
	},
	{
		Name:        PatternBeats,
		Confidence:  90,
		Expr:        regexp.MustCompile(`(?i)` + name + `\s+(?:beats?|defeats?|wins?\s+(?:against|over))\s+` + name),
		PlayerOneAt: 1, PlayerTwoAt: 2, WinnerAt: 1,
	},
	{
		Name:       PatternWinnerDeclared,
		Confidence: 70,
		Expr:       regexp.MustCompile(`[Ww]inner:?\s*[-–]?\s*` + name),
		WinnerAt:   1,
	},
	{
		Name:        PatternVictory,
		Confidence:  75,
		Expr:        regexp.MustCompile(`(?i)` + name + `\s+(?:victory|wins?!?)`),
		PlayerOneAt: 1, WinnerAt: 1,
	},
}

// Patterns returns the matcher list in evaluation order. The returned slice is
// a copy; the compiled expressions are shared and safe for concurrent use.
func Patterns() []Pattern {
	out := make([]Pattern, len(patterns))
	copy(out, patterns)
	return out
}

// extract applies the pattern to title and returns the raw extraction with
// the base confidence. ok is false when the expression does not match.
func (p Pattern) extract(title string) (Result, bool) {
	m := p.Expr.FindStringSubmatch(title)
	if m == nil {
		return Result{}, false
	}
	group := func(i int) string {
		if i <= 0 || i >= len(m) {
			return ""
		}
		return strings.TrimSpace(m[i])
	}
	return Result{
		PlayerOne:  group(p.PlayerOneAt),
		PlayerTwo:  group(p.PlayerTwoAt),
		Winner:     group(p.WinnerAt),
		Confidence: p.Confidence,
		Pattern:    p.Name,
	}, true
}
