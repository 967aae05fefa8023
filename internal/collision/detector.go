// Package collision warns an agent when a teammate recently worked the same contact.
package collision

import (
	"context"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/metrics"
)

const DefaultLookback = 24 * time.Hour

type Kind string

const (
	KindCall        Kind = "call"
	KindInteraction Kind = "interaction"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Store reads contact history. Both Recent* methods return events strictly
// from agents other than excludeAgent at or after since.
type Store interface {
	RecentInteractions(ctx context.Context, contactID, excludeAgent string, since time.Time) ([]domain.Interaction, error)
	RecentCalls(ctx context.Context, contactID, excludeAgent string, since time.Time) ([]domain.CallLog, error)
	GetContact(ctx context.Context, contactID string) (*domain.Contact, error)
}

// Record describes the most recent event by another agent.
type Record struct {
	Type            Kind      `json:"type"`
	AgentID         string    `json:"agentId"`
	AgentName       string    `json:"agentName"`
	AgentEmail      string    `json:"agentEmail"`
	HoursAgo        int       `json:"hoursAgo"`
	InteractionType string    `json:"interactionType,omitempty"`
	CallDuration    int       `json:"callDuration,omitempty"`
	CallOutcome     string    `json:"callOutcome,omitempty"`
	Details         string    `json:"details"`
	Timestamp       time.Time `json:"timestamp"`
	Severity        Severity  `json:"severity"`
}

// ContactSummary is the contact context returned with a check.
type ContactSummary struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PhonePrimary string `json:"phonePrimary"`
	LeadScore    int    `json:"leadScore"`
	Status       string `json:"status"`
}

type CheckResult struct {
	Collision       *Record         `json:"collision"`
	Contact         *ContactSummary `json:"contact"`
	Recommendations []string        `json:"recommendations"`
}

type Detector struct {
	store    Store
	lookback time.Duration
	metrics  *metrics.Metrics
	clock    func() time.Time
}

func NewDetector(store Store, lookback time.Duration, m *metrics.Metrics) *Detector {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Detector{store: store, lookback: lookback, metrics: m, clock: time.Now}
}

// Detect returns the most recent interaction or call with contactID by an
// agent other than agentID inside lookback, or nil when there is none.
// Only storage failures are errors.
func (d *Detector) Detect(ctx context.Context, contactID, agentID string, lookback time.Duration) (*Record, error) {
	if lookback <= 0 {
		lookback = d.lookback
	}
	now := d.clock()
	since := now.Add(-lookback)

	var (
		interactions []domain.Interaction
		calls        []domain.CallLog
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		interactions, err = d.store.RecentInteractions(gctx, contactID, agentID, since)
		return err
	})
	g.Go(func() error {
		var err error
		calls, err = d.store.RecentCalls(gctx, contactID, agentID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rec *Record
	if it, ok := latestInteraction(interactions, agentID, since); ok {
		elapsed := now.Sub(it.CreatedAt)
		rec = &Record{
			Type:            KindInteraction,
			AgentID:         it.CreatedBy,
			AgentName:       it.Agent.FullName(),
			AgentEmail:      it.Agent.Email,
			HoursAgo:        roundHours(elapsed),
			InteractionType: it.InteractionType,
			Details:         it.Notes,
			Timestamp:       it.CreatedAt,
			Severity:        interactionSeverity(elapsed),
		}
	}
	if call, ok := latestCall(calls, agentID, since); ok && (rec == nil || call.StartedAt.After(rec.Timestamp)) {
		elapsed := now.Sub(call.StartedAt)
		rec = &Record{
			Type:         KindCall,
			AgentID:      call.AgentID,
			AgentName:    call.Agent.FullName(),
			AgentEmail:   call.Agent.Email,
			HoursAgo:     roundHours(elapsed),
			CallDuration: call.DurationSeconds,
			CallOutcome:  call.Disposition,
			Details:      call.Notes,
			Timestamp:    call.StartedAt,
			Severity:     callSeverity(elapsed),
		}
	}
	if rec != nil {
		d.metrics.IncCollision(string(rec.Type), string(rec.Severity))
	}
	return rec, nil
}

// Check runs Detect with the default lookback and attaches contact context
// and advice.
func (d *Detector) Check(ctx context.Context, contactID, agentID string) (CheckResult, error) {
	contactID = strings.TrimSpace(contactID)
	agentID = strings.TrimSpace(agentID)
	if contactID == "" {
		return CheckResult{}, domain.Validation("Contact ID required")
	}
	if agentID == "" {
		return CheckResult{}, domain.Validation("Agent ID required")
	}

	var (
		rec     *Record
		contact *domain.Contact
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = d.Detect(gctx, contactID, agentID, 0)
		return err
	})
	g.Go(func() error {
		var err error
		contact, err = d.store.GetContact(gctx, contactID)
		return err
	})
	if err := g.Wait(); err != nil {
		return CheckResult{}, err
	}

	out := CheckResult{Collision: rec}
	if contact != nil {
		out.Contact = &ContactSummary{
			FirstName:    contact.FirstName,
			LastName:     contact.LastName,
			PhonePrimary: contact.PhonePrimary,
			LeadScore:    contact.LeadScore,
			Status:       contact.Status,
		}
	}
	if rec != nil {
		out.Recommendations = Recommendations(*rec)
	}
	return out, nil
}

// Recommendations is advisory text keyed off severity.
func Recommendations(r Record) []string {
	switch r.Severity {
	case SeverityHigh:
		out := []string{
			"Consider coordinating with team member before calling",
			"Review previous interaction notes carefully",
		}
		if r.Type == KindCall && r.CallDuration > 0 {
			out = append(out, "Previous call was substantial - check if follow-up was scheduled")
		}
		return out
	case SeverityMedium:
		return []string{
			"Brief coordination may be helpful",
			"Consider mentioning previous team interaction",
		}
	default:
		return []string{"Previous interaction is not recent - proceed with caution"}
	}
}

func callSeverity(elapsed time.Duration) Severity {
	switch {
	case elapsed < time.Hour:
		return SeverityHigh
	case elapsed < 4*time.Hour:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func interactionSeverity(elapsed time.Duration) Severity {
	switch {
	case elapsed < 2*time.Hour:
		return SeverityHigh
	case elapsed < 8*time.Hour:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func roundHours(d time.Duration) int {
	return int(math.Round(d.Hours()))
}

// latestInteraction applies the window and agent filter again on top of the store.
func latestInteraction(items []domain.Interaction, agentID string, since time.Time) (domain.Interaction, bool) {
	var best domain.Interaction
	found := false
	for _, it := range items {
		if it.CreatedBy == agentID || it.CreatedAt.Before(since) {
			continue
		}
		if !found || it.CreatedAt.After(best.CreatedAt) {
			best, found = it, true
		}
	}
	return best, found
}

func latestCall(items []domain.CallLog, agentID string, since time.Time) (domain.CallLog, bool) {
	var best domain.CallLog
	found := false
	for _, c := range items {
		if c.AgentID == agentID || c.StartedAt.Before(since) {
			continue
		}
		if !found || c.StartedAt.After(best.StartedAt) {
			best, found = c, true
		}
	}
	return best, found
}
