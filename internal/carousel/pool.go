package carousel

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/numbers"
	"github.com/oakmontrealty/voicrm-sydney/internal/phone"
	"github.com/oakmontrealty/voicrm-sydney/internal/quality"
)

const qualityWindow = 24 * time.Hour

type PoolEntry struct {
	domain.PhoneNumber
	Formatted     string         `json:"formatted"`
	TodayUsage    int64          `json:"today_usage"`
	AverageMOS    *float64       `json:"avg_mos"`
	SLOCompliance float64        `json:"slo_compliance"`
	Status        quality.Status `json:"status"`
}

type PoolOverview struct {
	Numbers     []PoolEntry `json:"numbers"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// PoolOverview reports every active number with today's usage and its
// rolling 24h quality. Numbers without samples count as fully compliant.
func (s *Selector) PoolOverview(ctx context.Context) (PoolOverview, error) {
	now := s.now()

	var (
		active []domain.PhoneNumber
		usage  map[string]int64
		qual   map[string]quality.NumberQuality
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		active, err = s.numbers.ListActive(gctx, numbers.Filter{})
		return err
	})
	g.Go(func() error {
		var err error
		usage, err = s.numbers.UsageCountsSince(gctx, s.startOfDay())
		return err
	})
	if s.quality != nil {
		g.Go(func() error {
			var err error
			qual, err = s.quality.ByNumberSince(gctx, now.Add(-qualityWindow))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return PoolOverview{}, err
	}

	out := PoolOverview{Numbers: make([]PoolEntry, 0, len(active)), LastUpdated: now.UTC()}
	for _, n := range active {
		e := PoolEntry{
			PhoneNumber:   n,
			Formatted:     phone.Format(n.PhoneNumber),
			TodayUsage:    usage[n.ID],
			SLOCompliance: 100,
		}
		if q, ok := qual[n.ID]; ok {
			e.AverageMOS = q.AverageMOS
			e.SLOCompliance = q.SLOCompliance
		}
		e.Status = quality.DetermineStatus(e.AverageMOS, e.SLOCompliance, e.TodayUsage)
		out.Numbers = append(out.Numbers, e)
	}
	return out, nil
}
