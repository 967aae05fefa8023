// Package carousel picks which pool number is presented as caller ID.
package carousel

import "strings"

// Strategy is the closed set of selection policies.
type Strategy string

const (
	StrategyRandom         Strategy = "random"
	StrategyHealthWeighted Strategy = "health_weighted"
	StrategyLeastRecent    Strategy = "least_recent"
	StrategyGeographic     Strategy = "geographic"

	// StrategyDefault runs for names outside the set: first candidate wins.
	StrategyDefault Strategy = "default"
)

// DefaultStrategy applies when a request names no strategy.
const DefaultStrategy = StrategyHealthWeighted

// ParseStrategy resolves a request value, accepting the legacy aliases
// "health" and "least_used". Unknown names map to StrategyDefault.
func ParseStrategy(name string) Strategy {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return DefaultStrategy
	case "random":
		return StrategyRandom
	case "health_weighted", "health":
		return StrategyHealthWeighted
	case "least_recent", "least_used":
		return StrategyLeastRecent
	case "geographic":
		return StrategyGeographic
	default:
		return StrategyDefault
	}
}

func (s Strategy) String() string { return string(s) }

// Known reports whether s is one of the named policies.
func (s Strategy) Known() bool {
	switch s {
	case StrategyRandom, StrategyHealthWeighted, StrategyLeastRecent, StrategyGeographic:
		return true
	}
	return false
}
