package detection

import (
	"regexp"
	"strings"
	"sync"
)

// Winner resolver pattern names.
const (
	PatternExplicitWinner      = "explicit_winner"
	PatternWinnerAction        = "winner_action"
	PatternP1BeatsP2           = "p1_beats_p2"
	PatternP2BeatsP1           = "p2_beats_p1"
	PatternSinglePlayerWithWin = "single_player_with_win"
)

const singlePlayerWithWinConfidence = 70

type anchoredRule struct {
	name       string
	confidence int
	expr       string
}

// anchoredRules are templates over the quoted names: P1 stands for playerOne
// and P2 for playerTwo. Group 1 always captures the winner.
var anchoredRules = []anchoredRule{
	{PatternExplicitWinner, 95, `[Ww]inner:?\s*[-–]?\s*(P1|P2)`},
	{PatternWinnerAction, 90, `(P1|P2)\s+(?:wins?!?|victory|defeats)`},
	{PatternP1BeatsP2, 90, `(P1)\s+(?:beats?|defeats?)\s+P2`},
	{PatternP2BeatsP1, 90, `(P2)\s+(?:beats?|defeats?)\s+P1`},
}

type compiledRule struct {
	name       string
	confidence int
	re         *regexp.Regexp
}

// maxCachedPairs bounds the compiled rule cache; it is cleared when full.
const maxCachedPairs = 1024

type pairKey struct{ one, two string }

// ruleCache holds the anchored rules compiled for each player pair. The
// monitor resolves the same pair on every title change of a market.
var ruleCache = struct {
	sync.Mutex
	rules map[pairKey][]compiledRule
}{rules: make(map[pairKey][]compiledRule)}

func rulesFor(playerOne, playerTwo string) []compiledRule {
	key := pairKey{playerOne, playerTwo}
	ruleCache.Lock()
	defer ruleCache.Unlock()
	if rules, ok := ruleCache.rules[key]; ok {
		return rules
	}

	replacer := strings.NewReplacer("P1", regexp.QuoteMeta(playerOne), "P2", regexp.QuoteMeta(playerTwo))
	rules := make([]compiledRule, len(anchoredRules))
	for i, rule := range anchoredRules {
		rules[i] = compiledRule{
			name:       rule.name,
			confidence: rule.confidence,
			re:         regexp.MustCompile(`(?i)` + replacer.Replace(rule.expr)),
		}
	}
	if len(ruleCache.rules) >= maxCachedPairs {
		clear(ruleCache.rules)
	}
	ruleCache.rules[key] = rules
	return rules
}

// Resolve decides whether title declares a winner between two known
// participants. The returned winner is always spelled exactly as playerOne or
// playerTwo. The boolean is false when no winner can be determined.
func Resolve(title, playerOne, playerTwo string) (Result, bool) {
	playerOne = strings.TrimSpace(playerOne)
	playerTwo = strings.TrimSpace(playerTwo)
	if playerOne == "" || playerTwo == "" {
		return Result{}, false
	}
	title = strings.TrimSpace(title)

	base := Result{PlayerOne: playerOne, PlayerTwo: playerTwo}
	for _, rule := range rulesFor(playerOne, playerTwo) {
		m := rule.re.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		winner, ok := canonical(m[1], playerOne, playerTwo)
		if !ok {
			continue
		}
		r := base
		r.Winner = winner
		r.Confidence = rule.confidence
		r.Pattern = rule.name
		return r, true
	}

	lower := strings.ToLower(title)
	has1 := strings.Contains(lower, strings.ToLower(playerOne))
	has2 := strings.Contains(lower, strings.ToLower(playerTwo))
	if has1 == has2 {
		return Result{}, false
	}
	if !strings.Contains(lower, "win") && !strings.Contains(lower, "victory") {
		return Result{}, false
	}
	r := base
	r.Winner = playerOne
	if has2 {
		r.Winner = playerTwo
	}
	r.Confidence = singlePlayerWithWinConfidence
	r.Pattern = PatternSinglePlayerWithWin
	return r, true
}

func canonical(matched, playerOne, playerTwo string) (string, bool) {
	switch {
	case strings.EqualFold(matched, playerOne):
		return playerOne, true
	case strings.EqualFold(matched, playerTwo):
		return playerTwo, true
	}
	return "", false
}
