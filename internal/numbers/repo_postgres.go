package numbers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

const selectColumns = `id, phone_number, is_active, COALESCE(region, ''), COALESCE(area_code, ''),
	COALESCE(carrier, ''), health_score, success_rate, usage_count, last_used_at, created_at, updated_at`

const pgUniqueViolation = "23505"

type PostgresRepo struct {
	db utils.DB
}

func NewPostgresRepo(db utils.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ListActive(ctx context.Context, f Filter) ([]domain.PhoneNumber, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+selectColumns+`
		 FROM phone_numbers
		 WHERE is_active = true AND ($1 = '' OR region = $1)
		 ORDER BY phone_number ASC`,
		f.Region,
	)
	if err != nil {
		return nil, domain.StorageError(err, "list active numbers")
	}
	defer rows.Close()

	var out []domain.PhoneNumber
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, domain.StorageError(err, "scan phone number")
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError(err, "iterate phone numbers")
	}
	return out, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (domain.PhoneNumber, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM phone_numbers WHERE id = $1`, id)
	n, err := scanNumber(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PhoneNumber{}, notFound(id)
	}
	if err != nil {
		return domain.PhoneNumber{}, domain.StorageError(err, "get phone number")
	}
	return n, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, n domain.PhoneNumber) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO phone_numbers
		 (id, phone_number, is_active, region, area_code, carrier, health_score, success_rate, usage_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.PhoneNumber, n.IsActive, n.Region, n.AreaCode, n.Carrier,
		n.HealthScore, n.SuccessRate, n.UsageCount, n.CreatedAt, n.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("phone number %s already in pool: %w", n.PhoneNumber, domain.ErrConflict)
	}
	if err != nil {
		return domain.StorageError(err, "insert phone number")
	}
	return nil
}

// IncrementUsage is a single UPDATE so concurrent selections never lose a count.
func (r *PostgresRepo) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE phone_numbers
		 SET usage_count = usage_count + 1, last_used_at = $2, updated_at = $2
		 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return domain.StorageError(err, "increment usage")
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (r *PostgresRepo) Deactivate(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE phone_numbers SET is_active = false, updated_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return domain.StorageError(err, "deactivate phone number")
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func scanNumber(row pgx.Row) (domain.PhoneNumber, error) {
	var n domain.PhoneNumber
	err := row.Scan(
		&n.ID, &n.PhoneNumber, &n.IsActive, &n.Region, &n.AreaCode,
		&n.Carrier, &n.HealthScore, &n.SuccessRate, &n.UsageCount, &n.LastUsedAt,
		&n.CreatedAt, &n.UpdatedAt,
	)
	return n, err
}
