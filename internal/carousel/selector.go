package carousel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oakmontrealty/voicrm-sydney/internal/assignment"
	"github.com/oakmontrealty/voicrm-sydney/internal/collision"
	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/metrics"
	"github.com/oakmontrealty/voicrm-sydney/internal/numbers"
	"github.com/oakmontrealty/voicrm-sydney/internal/phone"
	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
)

// Selection outcomes reported to metrics.
const (
	OutcomeSelected    = "selected"
	OutcomeNoNumbers   = "no_numbers"
	OutcomeRateLimited = "rate_limited"
	OutcomeBlocked     = "blocked"
	OutcomeError       = "error"
)

type NumberSource interface {
	ListActive(ctx context.Context, f numbers.Filter) ([]domain.PhoneNumber, error)
	UsageCountsSince(ctx context.Context, since time.Time) (map[string]int64, error)
}

type CollisionChecker interface {
	Detect(ctx context.Context, contactID, agentID string, lookback time.Duration) (*collision.Record, error)
}

type AssignmentRecorder interface {
	Record(ctx context.Context, in assignment.RecordInput) (domain.Assignment, error)
}

type QualitySource interface {
	ByNumberSince(ctx context.Context, since time.Time) (map[string]quality.NumberQuality, error)
}

// Limiter throttles selections per agent.
type Limiter interface {
	Allow(ctx context.Context, subject string) (bool, error)
}

type ChooseRequest struct {
	AgentID           string `json:"agentId"`
	ContactID         string `json:"contactId,omitempty"`
	DestinationNumber string `json:"destinationNumber"`
	Strategy          string `json:"strategy,omitempty"`
	Region            string `json:"region,omitempty"`
	BlockOnCollision  bool   `json:"blockOnCollision,omitempty"`
}

type SelectedNumber struct {
	ID          string   `json:"id"`
	PhoneNumber string   `json:"phoneNumber"`
	E164        string   `json:"e164"`
	Region      string   `json:"region"`
	HealthScore float64  `json:"healthScore"`
	Strategy    Strategy `json:"strategy"`
}

type ChooseMetadata struct {
	TotalAvailable int        `json:"totalAvailable"`
	UsageCount     int64      `json:"usageCount"`
	LastUsed       *time.Time `json:"lastUsed"`
}

type ChooseResult struct {
	SelectedNumber   SelectedNumber    `json:"selectedNumber"`
	Reason           string            `json:"reason"`
	AssignmentID     string            `json:"assignmentId"`
	CollisionWarning *collision.Record `json:"collisionWarning"`
	Metadata         ChooseMetadata    `json:"metadata"`
}

// CollisionError stops a selection when the caller asked to block on a
// high-severity collision.
type CollisionError struct {
	Record *collision.Record
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("contact worked by %s %dh ago", e.Record.AgentName, e.Record.HoursAgo)
}

func (e *CollisionError) Unwrap() error { return domain.ErrConflict }

type Deps struct {
	Numbers    NumberSource
	Recorder   AssignmentRecorder
	Collisions CollisionChecker
	Quality    QualitySource
	Limiter    Limiter
	Engine     *Engine
	Metrics    *metrics.Metrics
	Log        *zap.Logger

	DefaultStrategy Strategy
	Lookback        time.Duration
	// Location decides where "today" starts for usage tallies.
	Location *time.Location
}

// Selector runs the full call-placement flow around the strategy engine.
type Selector struct {
	numbers    NumberSource
	recorder   AssignmentRecorder
	collisions CollisionChecker
	quality    QualitySource
	limiter    Limiter
	engine     *Engine
	metrics    *metrics.Metrics
	log        *zap.Logger

	defaultStrategy Strategy
	lookback        time.Duration
	loc             *time.Location
	now             func() time.Time
}

func NewSelector(d Deps) *Selector {
	s := &Selector{
		numbers:         d.Numbers,
		recorder:        d.Recorder,
		collisions:      d.Collisions,
		quality:         d.Quality,
		limiter:         d.Limiter,
		engine:          d.Engine,
		metrics:         d.Metrics,
		log:             d.Log,
		defaultStrategy: d.DefaultStrategy,
		lookback:        d.Lookback,
		loc:             d.Location,
		now:             time.Now,
	}
	if s.engine == nil {
		s.engine = defaultEngine
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if !s.defaultStrategy.Known() {
		s.defaultStrategy = DefaultStrategy
	}
	if s.lookback <= 0 {
		s.lookback = collision.DefaultLookback
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// Choose picks a caller ID for one outbound call and records it.
// Collisions are advisory unless BlockOnCollision is set and the
// collision is high severity.
func (s *Selector) Choose(ctx context.Context, req ChooseRequest) (ChooseResult, error) {
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.ContactID = strings.TrimSpace(req.ContactID)
	req.DestinationNumber = strings.TrimSpace(req.DestinationNumber)

	var missing []string
	if req.AgentID == "" {
		missing = append(missing, "agentId")
	}
	if req.DestinationNumber == "" {
		missing = append(missing, "destinationNumber")
	}
	if len(missing) > 0 {
		return ChooseResult{}, domain.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	strategy := s.defaultStrategy
	if req.Strategy != "" {
		strategy = ParseStrategy(req.Strategy)
	}
	log := s.log.With(zap.String("agent_id", req.AgentID), zap.String("strategy", strategy.String()))

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, req.AgentID)
		switch {
		case err != nil:
			log.Warn("selection rate limit unavailable", zap.Error(err))
		case !ok:
			s.metrics.IncSelection(strategy.String(), OutcomeRateLimited)
			return ChooseResult{}, domain.Classify(domain.ErrRateLimited,
				fmt.Errorf("agent %s exceeded selection rate", req.AgentID))
		}
	}

	var (
		candidates []domain.PhoneNumber
		usage      map[string]int64
		warning    *collision.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candidates, err = s.numbers.ListActive(gctx, numbers.Filter{Region: req.Region})
		return err
	})
	g.Go(func() error {
		var err error
		usage, err = s.numbers.UsageCountsSince(gctx, s.startOfDay())
		return err
	})
	if s.collisions != nil && req.ContactID != "" {
		g.Go(func() error {
			rec, err := s.collisions.Detect(gctx, req.ContactID, req.AgentID, s.lookback)
			if err != nil {
				if gctx.Err() == nil {
					log.Warn("collision check failed", zap.String("contact_id", req.ContactID), zap.Error(err))
				}
				return nil
			}
			warning = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.metrics.IncSelection(strategy.String(), OutcomeError)
		return ChooseResult{}, err
	}

	sel, err := s.engine.Select(strategy, req.DestinationNumber, candidates, usage)
	if err != nil {
		if errors.Is(err, domain.ErrNoAvailableNumbers) {
			s.metrics.IncSelection(strategy.String(), OutcomeNoNumbers)
			log.Warn("no available numbers", zap.String("region", req.Region))
		}
		return ChooseResult{}, err
	}

	if warning != nil && req.BlockOnCollision && warning.Severity == collision.SeverityHigh {
		s.metrics.IncSelection(strategy.String(), OutcomeBlocked)
		return ChooseResult{}, &CollisionError{Record: warning}
	}

	a, err := s.recorder.Record(ctx, assignment.RecordInput{
		AgentID:     req.AgentID,
		ContactID:   req.ContactID,
		Number:      sel.Number,
		Destination: req.DestinationNumber,
		Strategy:    sel.Strategy.String(),
		Reason:      sel.Reason,
	})
	if err != nil {
		s.metrics.IncSelection(strategy.String(), OutcomeError)
		return ChooseResult{}, err
	}

	s.metrics.IncSelection(sel.Strategy.String(), OutcomeSelected)
	log.Info("caller id selected",
		zap.String("phone_number_id", sel.Number.ID),
		zap.String("assignment_id", a.ID),
		zap.Bool("collision", warning != nil),
	)

	n := sel.Number
	return ChooseResult{
		SelectedNumber: SelectedNumber{
			ID:          n.ID,
			PhoneNumber: phone.Format(n.PhoneNumber),
			E164:        phone.ToInternational(n.PhoneNumber),
			Region:      n.Region,
			HealthScore: n.HealthScore,
			Strategy:    sel.Strategy,
		},
		Reason:           sel.Reason,
		AssignmentID:     a.ID,
		CollisionWarning: warning,
		Metadata: ChooseMetadata{
			TotalAvailable: len(candidates),
			UsageCount:     n.UsageCount + 1,
			LastUsed:       n.LastUsedAt,
		},
	}, nil
}

func (s *Selector) startOfDay() time.Time {
	now := s.now().In(s.loc)
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}
