package assignment

import (
	"context"
	"time"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

type PostgresLedger struct {
	db utils.DB
}

func NewPostgresLedger(db utils.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Append(ctx context.Context, a domain.Assignment) error {
	var contactID *string
	if a.ContactID != "" {
		contactID = &a.ContactID
	}
	_, err := l.db.Exec(ctx,
		`INSERT INTO caller_id_assignments
		 (id, agent_id, phone_number_id, contact_id, from_number, to_number, strategy, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.AgentID, a.PhoneNumberID, contactID, a.FromNumber, a.ToNumber, a.Strategy, a.Reason, a.CreatedAt,
	)
	if err != nil {
		return domain.StorageError(err, "insert assignment")
	}
	return nil
}

func (l *PostgresLedger) CountsSince(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := l.db.Query(ctx,
		`SELECT phone_number_id, COUNT(*)
		 FROM caller_id_assignments
		 WHERE created_at >= $1
		 GROUP BY phone_number_id`,
		since,
	)
	if err != nil {
		return nil, domain.StorageError(err, "count assignments")
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, domain.StorageError(err, "scan assignment count")
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError(err, "iterate assignment counts")
	}
	return out, nil
}
