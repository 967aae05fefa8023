package quality

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

const sampleColumns = `id, call_sid, COALESCE(phone_number_id::text, ''), mos_score, latency, jitter, packet_loss,
	COALESCE(slo_violations, '{}'), meets_slo, created_at`

type PostgresRepo struct {
	db utils.DB
}

func NewPostgresRepo(db utils.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Insert(ctx context.Context, s domain.QualitySample) error {
	var numberID *string
	if s.PhoneNumberID != "" {
		numberID = &s.PhoneNumberID
	}
	// an empty violation list is stored as NULL
	var violations []string
	if len(s.Violations) > 0 {
		violations = s.Violations
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO call_quality_metrics
		 (id, call_sid, phone_number_id, mos_score, latency, jitter, packet_loss, slo_violations, meets_slo, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.CallSid, numberID, s.MOS, s.LatencyMs, s.JitterMs, s.PacketLossPct, violations, s.MeetsSLO, s.CreatedAt,
	)
	if err != nil {
		return domain.StorageError(err, "insert quality sample")
	}
	return nil
}

func (r *PostgresRepo) ListSince(ctx context.Context, since time.Time) ([]domain.QualitySample, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sampleColumns+`
		 FROM call_quality_metrics
		 WHERE created_at >= $1
		 ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, domain.StorageError(err, "list quality samples")
	}
	return collect(rows)
}

func (r *PostgresRepo) ListByCall(ctx context.Context, callSid string) ([]domain.QualitySample, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sampleColumns+`
		 FROM call_quality_metrics
		 WHERE call_sid = $1
		 ORDER BY created_at DESC`,
		callSid,
	)
	if err != nil {
		return nil, domain.StorageError(err, "list call quality samples")
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]domain.QualitySample, error) {
	defer rows.Close()

	var out []domain.QualitySample
	for rows.Next() {
		var s domain.QualitySample
		if err := rows.Scan(
			&s.ID, &s.CallSid, &s.PhoneNumberID, &s.MOS, &s.LatencyMs, &s.JitterMs, &s.PacketLossPct,
			&s.Violations, &s.MeetsSLO, &s.CreatedAt,
		); err != nil {
			return nil, domain.StorageError(err, "scan quality sample")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError(err, "iterate quality samples")
	}
	return out, nil
}
