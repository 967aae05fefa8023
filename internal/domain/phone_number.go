package domain

import (
	"math"
	"time"
)

// PhoneNumber is a leasable outbound caller identity (DID).
//
// Invariants:
// - UsageCount only increases.
// - HealthScore and SuccessRate stay in [0,1].
// - An inactive number is never selectable.
// - Rows are never hard-deleted, only deactivated.
type PhoneNumber struct {
	ID          string `json:"id" db:"id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`
	IsActive    bool   `json:"is_active" db:"is_active"`

	Region   string `json:"region" db:"region"`
	AreaCode string `json:"area_code,omitempty" db:"area_code"`
	Carrier  string `json:"carrier" db:"carrier"`

	HealthScore float64 `json:"health_score" db:"health_score"`
	SuccessRate float64 `json:"success_rate" db:"success_rate"`

	UsageCount int64      `json:"usage_count" db:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at" db:"last_used_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HealthPercent is the health score as a whole percentage.
func (n PhoneNumber) HealthPercent() int {
	return int(math.Round(n.HealthScore * 100))
}

// ClampUnit keeps a ratio inside [0,1].
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
