// Package numbers owns the pool of outbound caller-ID numbers.
package numbers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/phone"
)

const (
	DefaultRegion  = "NSW"
	DefaultCarrier = "unknown"
)

type Filter struct {
	Region string
}

type ProvisionInput struct {
	PhoneNumber string
	Carrier     string
	Region      string
}

// Repository is the storage port for phone numbers.
type Repository interface {
	ListActive(ctx context.Context, f Filter) ([]domain.PhoneNumber, error)
	Get(ctx context.Context, id string) (domain.PhoneNumber, error)
	Insert(ctx context.Context, n domain.PhoneNumber) error
	IncrementUsage(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id string, at time.Time) error
}

// UsageSource aggregates the assignment ledger.
type UsageSource interface {
	CountsSince(ctx context.Context, since time.Time) (map[string]int64, error)
}

type Directory struct {
	repo  Repository
	usage UsageSource
	clock func() time.Time
}

func NewDirectory(repo Repository, usage UsageSource) *Directory {
	return &Directory{repo: repo, usage: usage, clock: time.Now}
}

// ListActive returns every selectable number ordered by phone number.
func (d *Directory) ListActive(ctx context.Context, f Filter) ([]domain.PhoneNumber, error) {
	f.Region = strings.TrimSpace(f.Region)
	return d.repo.ListActive(ctx, f)
}

func (d *Directory) Get(ctx context.Context, id string) (domain.PhoneNumber, error) {
	if strings.TrimSpace(id) == "" {
		return domain.PhoneNumber{}, domain.Validation("phone number id is required")
	}
	return d.repo.Get(ctx, id)
}

// IncrementUsage bumps usage_count and stamps last_used_at in one storage
// operation.
func (d *Directory) IncrementUsage(ctx context.Context, id string) error {
	return d.repo.IncrementUsage(ctx, id, d.clock().UTC())
}

// UsageCountsSince counts assignments per number created at or after since.
func (d *Directory) UsageCountsSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	if d.usage == nil {
		return map[string]int64{}, nil
	}
	return d.usage.CountsSince(ctx, since)
}

// Provision validates an Australian number and adds it to the pool with
// full health and zero usage. Numbers are stored in +61 form.
func (d *Directory) Provision(ctx context.Context, in ProvisionInput) (domain.PhoneNumber, error) {
	raw := strings.TrimSpace(in.PhoneNumber)
	if raw == "" {
		return domain.PhoneNumber{}, domain.Validation("Phone number required")
	}
	info := phone.Validate(raw)
	if !info.Valid {
		return domain.PhoneNumber{}, domain.Validation("%s: %s", info.Error, raw)
	}

	carrier := strings.TrimSpace(in.Carrier)
	if carrier == "" {
		carrier = DefaultCarrier
		if info.Carrier != phone.CarrierUnknown {
			carrier = info.Carrier
		}
	}
	region := strings.TrimSpace(in.Region)
	if region == "" {
		region = DefaultRegion
	}

	now := d.clock().UTC()
	n := domain.PhoneNumber{
		ID:          uuid.NewString(),
		PhoneNumber: info.International,
		IsActive:    true,
		Region:      region,
		AreaCode:    areaCode(info.International),
		Carrier:     carrier,
		HealthScore: 1.0,
		SuccessRate: 1.0,
		UsageCount:  0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := d.repo.Insert(ctx, n); err != nil {
		return domain.PhoneNumber{}, err
	}
	return n, nil
}

// Deactivate takes a number out of rotation. Rows are never deleted.
func (d *Directory) Deactivate(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Validation("phone number id is required")
	}
	return d.repo.Deactivate(ctx, id, d.clock().UTC())
}

// areaCode is the trunk prefix of an E.164 AU number, e.g. "02" or "04".
func areaCode(international string) string {
	local := "0" + strings.TrimPrefix(international, "+61")
	if len(local) < 2 {
		return ""
	}
	return local[:2]
}

func notFound(id string) error {
	return fmt.Errorf("phone number %s: %w", id, domain.ErrNotFound)
}
