package coaching

import (
	"context"
	"sync"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

type MemoryAnalysisStore struct {
	mu    sync.Mutex
	items []domain.Analysis
}

func NewMemoryAnalysisStore() *MemoryAnalysisStore { return &MemoryAnalysisStore{} }

func (s *MemoryAnalysisStore) SaveAnalysis(_ context.Context, a domain.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, a)
	return nil
}

func (s *MemoryAnalysisStore) All() []domain.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Analysis(nil), s.items...)
}

type PostgresAnalysisStore struct {
	db utils.DB
}

func NewPostgresAnalysisStore(db utils.DB) *PostgresAnalysisStore {
	return &PostgresAnalysisStore{db: db}
}

func (s *PostgresAnalysisStore) SaveAnalysis(ctx context.Context, a domain.Analysis) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO ai_analysis
		 (id, call_sid, contact_id, analysis_type, analysis_result, processing_time_ms, confidence, created_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8)`,
		a.ID, a.CallSid, a.ContactID, a.AnalysisType, []byte(a.Result), a.ProcessingTimeMs, a.Confidence, a.CreatedAt,
	)
	if err != nil {
		return domain.StorageError(err, "insert analysis")
	}
	return nil
}
