// Package assignment records caller-ID selections in an append-only ledger.
package assignment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

// Ledger is the persistence contract for assignments.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Ledger interface {
	Append(ctx context.Context, a domain.Assignment) error
	CountsSince(ctx context.Context, since time.Time) (map[string]int64, error)
}

type UsageIncrementer interface {
	IncrementUsage(ctx context.Context, id string) error
}

type ContactToucher interface {
	TouchContact(ctx context.Context, contactID, agentID string, at time.Time) error
}

type RecordInput struct {
	AgentID     string
	ContactID   string
	Number      domain.PhoneNumber
	Destination string
	Strategy    string
	Reason      string
}

type Recorder struct {
	ledger   Ledger
	usage    UsageIncrementer
	contacts ContactToucher
	log      *zap.Logger
	clock    func() time.Time
}

func NewRecorder(ledger Ledger, usage UsageIncrementer, contacts ContactToucher, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{ledger: ledger, usage: usage, contacts: contacts, log: log, clock: time.Now}
}

// Record writes the assignment, then bumps the number's counters and the
// contact's last-contacted fields. Only the ledger write can fail the call;
// the follow-up updates are logged and reconciled from the ledger.
func (r *Recorder) Record(ctx context.Context, in RecordInput) (domain.Assignment, error) {
	if r.ledger == nil {
		return domain.Assignment{}, errors.New("assignment: ledger not configured")
	}
	in.AgentID = strings.TrimSpace(in.AgentID)
	if in.AgentID == "" || in.Number.ID == "" {
		return domain.Assignment{}, domain.Validation("assignment requires agent and phone number")
	}

	now := r.clock().UTC()
	a := domain.Assignment{
		ID:            uuid.NewString(),
		AgentID:       in.AgentID,
		PhoneNumberID: in.Number.ID,
		ContactID:     strings.TrimSpace(in.ContactID),
		FromNumber:    in.Number.PhoneNumber,
		ToNumber:      in.Destination,
		Strategy:      in.Strategy,
		Reason:        in.Reason,
		CreatedAt:     now,
	}
	if err := r.ledger.Append(ctx, a); err != nil {
		return domain.Assignment{}, domain.Classify(domain.ErrAssignmentPersist, err)
	}

	log := r.log.With(zap.String("assignment_id", a.ID), zap.String("phone_number_id", a.PhoneNumberID))
	if r.usage != nil {
		if err := r.usage.IncrementUsage(ctx, a.PhoneNumberID); err != nil {
			log.Warn("usage increment failed", zap.Error(err))
		}
	}
	if a.ContactID != "" && r.contacts != nil {
		if err := r.contacts.TouchContact(ctx, a.ContactID, a.AgentID, now); err != nil {
			log.Warn("contact update failed", zap.String("contact_id", a.ContactID), zap.Error(err))
		}
	}
	return a, nil
}
