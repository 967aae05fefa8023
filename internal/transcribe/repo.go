package transcribe

import (
	"context"
	"sort"
	"sync"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

// Repository stores transcript rows. ListByCall is oldest first,
// Recent is newest first.
type Repository interface {
	Insert(ctx context.Context, t domain.Transcript) error
	ListByCall(ctx context.Context, callSid string) ([]domain.Transcript, error)
	Recent(ctx context.Context, callSid string, limit int) ([]domain.Transcript, error)
}

type MemoryRepo struct {
	mu   sync.RWMutex
	rows []domain.Transcript
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(_ context.Context, t domain.Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, t)
	return nil
}

func (r *MemoryRepo) ListByCall(_ context.Context, callSid string) ([]domain.Transcript, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Transcript{}
	for _, t := range r.rows {
		if t.CallSid == callSid {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) Recent(ctx context.Context, callSid string, limit int) ([]domain.Transcript, error) {
	all, _ := r.ListByCall(ctx, callSid)
	out := make([]domain.Transcript, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

const transcriptColumns = `id, call_sid, speaker, transcript_text, confidence, start_time, duration, created_at`

type PostgresRepo struct {
	db utils.DB
}

func NewPostgresRepo(db utils.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, t domain.Transcript) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transcripts (`+transcriptColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.CallSid, t.Speaker, t.Text, t.Confidence, t.StartTime, t.Duration, t.CreatedAt,
	)
	if err != nil {
		return domain.StorageError(err, "insert transcript")
	}
	return nil
}

func (r *PostgresRepo) ListByCall(ctx context.Context, callSid string) ([]domain.Transcript, error) {
	return r.list(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE call_sid = $1 ORDER BY created_at ASC`,
		callSid)
}

func (r *PostgresRepo) Recent(ctx context.Context, callSid string, limit int) ([]domain.Transcript, error) {
	return r.list(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE call_sid = $1 ORDER BY created_at DESC LIMIT $2`,
		callSid, limit)
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]domain.Transcript, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, domain.StorageError(err, "list transcripts")
	}
	defer rows.Close()

	out := []domain.Transcript{}
	for rows.Next() {
		var t domain.Transcript
		if err := rows.Scan(&t.ID, &t.CallSid, &t.Speaker, &t.Text, &t.Confidence, &t.StartTime, &t.Duration, &t.CreatedAt); err != nil {
			return nil, domain.StorageError(err, "scan transcript")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError(err, "iterate transcripts")
	}
	return out, nil
}
