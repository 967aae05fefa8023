package phone

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

const StrategyAnswerRate = "answer_rate_optimized"

type AnswerRate struct {
	Score          int      `json:"score"`
	Factors        []string `json:"factors"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// AnalyzeAnswerRate scores how likely a call to number is to be answered.
func AnalyzeAnswerRate(number string) AnswerRate {
	info := Validate(number)
	if !info.Valid {
		return AnswerRate{Score: 0, Factors: []string{"Invalid number"}}
	}

	score := 50
	factors := []string{}
	if info.Type == TypeMobile {
		score += 20
		factors = append(factors, "Mobile number (+20)")
	}
	if info.Region == RegionNSW {
		score += 15
		factors = append(factors, "NSW region match (+15)")
	}
	if info.Carrier == CarrierTelstra {
		score += 10
		factors = append(factors, "Telstra network (+10)")
	}
	if !strings.Contains(info.Formatted, "13") && !strings.Contains(info.Formatted, "18") {
		score += 5
		factors = append(factors, "Standard format (+5)")
	}

	rec := "low_priority"
	switch {
	case score >= 70:
		rec = "high_priority"
	case score >= 50:
		rec = "normal"
	}
	if score > 100 {
		score = 100
	}
	return AnswerRate{Score: score, Factors: factors, Recommendation: rec}
}

type ScoredCallerID struct {
	Number  domain.PhoneNumber `json:"number"`
	Score   int                `json:"score"`
	Reasons []string           `json:"reasons"`
}

type Suggestion struct {
	Recommended ScoredCallerID   `json:"recommended"`
	AllOptions  []ScoredCallerID `json:"allOptions"`
	Strategy    string           `json:"strategy"`
}

var (
	ErrInvalidDestination = errors.New("invalid destination number")
	ErrNoCallerIDs        = errors.New("no caller ids to score")
)

// SuggestCallerID ranks candidates for dialing destination, favouring a
// shared region and carrier and numbers that have rested for a few hours.
// Never-used numbers count as rested for 24h.
func SuggestCallerID(destination string, candidates []domain.PhoneNumber, now time.Time) (Suggestion, error) {
	dest := Validate(destination)
	if !dest.Valid {
		return Suggestion{}, ErrInvalidDestination
	}
	if len(candidates) == 0 {
		return Suggestion{}, ErrNoCallerIDs
	}

	scored := make([]ScoredCallerID, 0, len(candidates))
	for _, n := range candidates {
		caller := Validate(n.PhoneNumber)
		score := 50
		if caller.Region == dest.Region {
			score += 30
		}
		if caller.Carrier == dest.Carrier {
			score += 20
		}
		if dest.Type == TypeMobile && caller.Type == TypeMobile {
			score += 15
		}

		rested := 24 * time.Hour
		if n.LastUsedAt != nil {
			rested = now.Sub(*n.LastUsedAt)
		}
		switch {
		case rested < time.Hour:
			score -= 20
		case rested < 4*time.Hour:
			score -= 10
		}

		scored = append(scored, ScoredCallerID{Number: n, Score: score, Reasons: reasons(caller, dest, rested)})
	}

	best := scored[0]
	for _, s := range scored[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	return Suggestion{Recommended: best, AllOptions: scored, Strategy: StrategyAnswerRate}, nil
}

func reasons(caller, dest Info, rested time.Duration) []string {
	out := []string{}
	if caller.Region == dest.Region {
		out = append(out, "Same region ("+caller.Region+")")
	}
	if caller.Carrier == dest.Carrier {
		out = append(out, "Same carrier ("+caller.Carrier+")")
	}
	if rested >= 4*time.Hour {
		out = append(out, "Well-rested number")
	}
	return out
}
