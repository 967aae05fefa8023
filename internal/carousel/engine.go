package carousel

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

const (
	ReasonRandom    = "Random selection for load distribution"
	ReasonNoArea    = "No area match, default used"
	ReasonDefault   = "Default selection (first available)"
	subscriberTail  = 6
	areaDigitsCount = 3
)

// Selection is the outcome of one strategy run.
type Selection struct {
	Number   domain.PhoneNumber
	Reason   string
	Strategy Strategy
}

// Engine runs strategies over a snapshot of candidates. It holds no state
// besides the random source.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine uses rng for the random strategy; nil falls back to the global source.
func NewEngine(rng *rand.Rand) *Engine {
	return &Engine{rng: rng}
}

var defaultEngine = NewEngine(nil)

// Select runs strategy with the package default engine.
func Select(strategy Strategy, destination string, candidates []domain.PhoneNumber, usageToday map[string]int64) (Selection, error) {
	return defaultEngine.Select(strategy, destination, candidates, usageToday)
}

// Select picks one candidate. An empty candidate set is always
// ErrNoAvailableNumbers; every other outcome is a selection.
func (e *Engine) Select(strategy Strategy, destination string, candidates []domain.PhoneNumber, usageToday map[string]int64) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, domain.ErrNoAvailableNumbers
	}

	switch strategy {
	case StrategyRandom:
		return Selection{Number: candidates[e.intn(len(candidates))], Reason: ReasonRandom, Strategy: strategy}, nil

	case StrategyHealthWeighted:
		best := byHealth(candidates)[0]
		return Selection{
			Number:   best,
			Reason:   fmt.Sprintf("Highest health score (%d%%)", best.HealthPercent()),
			Strategy: strategy,
		}, nil

	case StrategyLeastRecent:
		best := leastUsed(candidates, usageToday)
		return Selection{
			Number:   best,
			Reason:   fmt.Sprintf("Least used today (%d calls)", usageToday[best.ID]),
			Strategy: strategy,
		}, nil

	case StrategyGeographic:
		if area := AreaDigits(destination); area != "" {
			for _, c := range candidates {
				if containsDigits(c.PhoneNumber, area) {
					return Selection{Number: c, Reason: fmt.Sprintf("Area match (%s)", area), Strategy: strategy}, nil
				}
			}
		}
		return Selection{Number: candidates[0], Reason: ReasonNoArea, Strategy: strategy}, nil

	default:
		return Selection{Number: candidates[0], Reason: ReasonDefault, Strategy: StrategyDefault}, nil
	}
}

func (e *Engine) intn(n int) int {
	if e.rng == nil {
		return rand.Intn(n)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

// byHealth orders a copy of candidates by health desc, success rate desc,
// then last use asc with never-used first.
func byHealth(candidates []domain.PhoneNumber) []domain.PhoneNumber {
	out := append([]domain.PhoneNumber(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HealthScore != b.HealthScore {
			return a.HealthScore > b.HealthScore
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		switch {
		case a.LastUsedAt == nil && b.LastUsedAt == nil:
			return false
		case a.LastUsedAt == nil:
			return true
		case b.LastUsedAt == nil:
			return false
		default:
			return a.LastUsedAt.Before(*b.LastUsedAt)
		}
	})
	return out
}

func leastUsed(candidates []domain.PhoneNumber, usageToday map[string]int64) domain.PhoneNumber {
	best := candidates[0]
	for _, c := range candidates[1:] {
		cu, bu := usageToday[c.ID], usageToday[best.ID]
		if cu < bu || (cu == bu && c.UsageCount < best.UsageCount) {
			best = c
		}
	}
	return best
}

// AreaDigits takes the digits just before the subscriber tail of a
// destination, e.g. "298" from "+61 2 9876 5432". Short inputs yield "".
// The offset is fixed and does not adapt to every number shape.
func AreaDigits(destination string) string {
	digits := digitsOf(destination)
	end := len(digits) - subscriberTail
	start := end - areaDigitsCount
	if start < 0 {
		return ""
	}
	return digits[start:end]
}

func containsDigits(number, area string) bool {
	return area != "" && strings.Contains(digitsOf(number), area)
}

func digitsOf(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
