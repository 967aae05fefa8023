package collision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

type PostgresStore struct {
	db utils.DB
}

func NewPostgresStore(db utils.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RecentInteractions(ctx context.Context, contactID, excludeAgent string, since time.Time) ([]domain.Interaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT i.id, i.contact_id, i.created_by, COALESCE(i.interaction_type, ''), COALESCE(i.notes, ''), i.created_at,
		        COALESCE(p.first_name, ''), COALESCE(p.last_name, ''), COALESCE(p.email, '')
		 FROM interactions i
		 LEFT JOIN profiles p ON p.id = i.created_by
		 WHERE i.contact_id = $1 AND i.created_at >= $2 AND i.created_by <> $3
		 ORDER BY i.created_at DESC`,
		contactID, since, excludeAgent,
	)
	if err != nil {
		return nil, domain.StorageError(err, "query recent interactions")
	}
	defer rows.Close()

	var out []domain.Interaction
	for rows.Next() {
		var i domain.Interaction
		if err := rows.Scan(&i.ID, &i.ContactID, &i.CreatedBy, &i.InteractionType, &i.Notes, &i.CreatedAt,
			&i.Agent.FirstName, &i.Agent.LastName, &i.Agent.Email); err != nil {
			return nil, domain.StorageError(err, "scan interaction")
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError(err, "iterate interactions")
	}
	return out, nil
}

func (s *PostgresStore) RecentCalls(ctx context.Context, contactID, excludeAgent string, since time.Time) ([]domain.CallLog, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, COALESCE(c.call_sid, ''), c.contact_id, c.agent_id, c.started_at, COALESCE(c.duration, 0),
		        COALESCE(c.disposition, ''), COALESCE(c.notes, ''),
		        COALESCE(p.first_name, ''), COALESCE(p.last_name, ''), COALESCE(p.email, '')
		 FROM call_logs c
		 LEFT JOIN profiles p ON p.id = c.agent_id
		 WHERE c.contact_id = $1 AND c.started_at >= $2 AND c.agent_id <> $3
		 ORDER BY c.started_at DESC`,
		contactID, since, excludeAgent,
	)
	if err != nil {
		return nil, domain.StorageError(err, "query recent calls")
	}
	defer rows.Close()

	var out []domain.CallLog
	for rows.Next() {
		var c domain.CallLog
		if err := rows.Scan(&c.ID, &c.CallSid, &c.ContactID, &c.AgentID, &c.StartedAt, &c.DurationSeconds,
			&c.Disposition, &c.Notes, &c.Agent.FirstName, &c.Agent.LastName, &c.Agent.Email); err != nil {
			return nil, domain.StorageError(err, "scan call log")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError(err, "iterate call logs")
	}
	return out, nil
}

// GetContact returns nil, nil for an unknown contact.
func (s *PostgresStore) GetContact(ctx context.Context, contactID string) (*domain.Contact, error) {
	var c domain.Contact
	err := s.db.QueryRow(ctx,
		`SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(phone_primary, ''),
		        COALESCE(lead_score, 0), COALESCE(status, ''), COALESCE(last_contacted_by::text, ''), last_contact_date
		 FROM contacts WHERE id = $1`,
		contactID,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.PhonePrimary, &c.LeadScore, &c.Status, &c.LastContactedBy, &c.LastContactDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StorageError(err, "get contact")
	}
	return &c, nil
}

func (s *PostgresStore) TouchContact(ctx context.Context, contactID, agentID string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE contacts SET last_contacted_by = $2, last_contact_date = $3, updated_at = $3 WHERE id = $1`,
		contactID, agentID, at,
	)
	if err != nil {
		return domain.StorageError(err, "update contact last contacted")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %s: %w", contactID, domain.ErrNotFound)
	}
	return nil
}
