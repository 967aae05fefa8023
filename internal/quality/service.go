package quality

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/metrics"
)

// MaxReportSamples caps the raw samples returned by Query.
const MaxReportSamples = 100

// Repository stores samples. List methods return newest first.
type Repository interface {
	Insert(ctx context.Context, s domain.QualitySample) error
	ListSince(ctx context.Context, since time.Time) ([]domain.QualitySample, error)
	ListByCall(ctx context.Context, callSid string) ([]domain.QualitySample, error)
}

type RecordInput struct {
	CallSid       string     `json:"call_sid"`
	PhoneNumberID string     `json:"phone_number_id,omitempty"`
	MOS           *float64   `json:"mos_score"`
	LatencyMs     *float64   `json:"latency"`
	JitterMs      *float64   `json:"jitter"`
	PacketLossPct *float64   `json:"packet_loss"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

type Recorded struct {
	Sample     domain.QualitySample
	Evaluation Evaluation
}

type QueryInput struct {
	Timeframe string
	CallSid   string
}

type Report struct {
	Timeframe  string                 `json:"timeframe"`
	Statistics Statistics             `json:"statistics"`
	Samples    []domain.QualitySample `json:"metrics"`
	Targets    Targets                `json:"sloTargets"`
}

type Service struct {
	repo    Repository
	targets Targets
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, log *zap.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, targets: DefaultTargets, log: log, metrics: m, now: time.Now}
}

func (s *Service) Targets() Targets { return s.targets }

// Record evaluates and stores one sample. The stored verdict is final.
func (s *Service) Record(ctx context.Context, in RecordInput) (Recorded, error) {
	callSid := strings.TrimSpace(in.CallSid)
	if callSid == "" {
		return Recorded{}, domain.Validation("call_sid required")
	}
	numberID := strings.TrimSpace(in.PhoneNumberID)
	if numberID != "" {
		id, err := uuid.Parse(numberID)
		if err != nil {
			return Recorded{}, domain.Validation("phone_number_id must be a uuid")
		}
		numberID = id.String()
	}

	at := s.now().UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		at = in.Timestamp.UTC()
	}

	sample := domain.QualitySample{
		ID:            uuid.NewString(),
		CallSid:       callSid,
		PhoneNumberID: numberID,
		MOS:           in.MOS,
		LatencyMs:     in.LatencyMs,
		JitterMs:      in.JitterMs,
		PacketLossPct: in.PacketLossPct,
		CreatedAt:     at,
	}
	ev := s.targets.Evaluate(sample)
	sample.Violations = ev.Violations
	sample.MeetsSLO = ev.MeetsSLO

	if err := s.repo.Insert(ctx, sample); err != nil {
		return Recorded{}, err
	}

	s.metrics.ObserveQualitySample(ev.MeetsSLO, ev.Breached)
	if !ev.MeetsSLO {
		s.log.Warn("slo violation",
			zap.String("call_sid", callSid),
			zap.String("phone_number_id", numberID),
			zap.Strings("violations", ev.Violations),
		)
	}
	return Recorded{Sample: sample, Evaluation: ev}, nil
}

// Query aggregates samples for one call, or for a trailing window.
// A call sid takes precedence over the timeframe.
func (s *Service) Query(ctx context.Context, in QueryInput) (Report, error) {
	label, window := ParseTimeframe(in.Timeframe)

	var (
		samples []domain.QualitySample
		err     error
	)
	if sid := strings.TrimSpace(in.CallSid); sid != "" {
		samples, err = s.repo.ListByCall(ctx, sid)
	} else {
		samples, err = s.repo.ListSince(ctx, s.now().Add(-window))
	}
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Timeframe:  label,
		Statistics: Aggregate(samples),
		Samples:    samples,
		Targets:    s.targets,
	}
	if len(rep.Samples) > MaxReportSamples {
		rep.Samples = rep.Samples[:MaxReportSamples]
	}
	if rep.Samples == nil {
		rep.Samples = []domain.QualitySample{}
	}
	return rep, nil
}

// NumberQuality is the rolling quality of one pool number.
type NumberQuality struct {
	AverageMOS    *float64
	SLOCompliance float64
	Samples       int
}

// ByNumberSince groups samples attributed to a pool number. Numbers
// without samples are absent from the map.
func (s *Service) ByNumberSince(ctx context.Context, since time.Time) (map[string]NumberQuality, error) {
	samples, err := s.repo.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]domain.QualitySample)
	for _, smp := range samples {
		if smp.PhoneNumberID == "" {
			continue
		}
		grouped[smp.PhoneNumberID] = append(grouped[smp.PhoneNumberID], smp)
	}

	out := make(map[string]NumberQuality, len(grouped))
	for id, list := range grouped {
		st := Aggregate(list)
		nq := NumberQuality{SLOCompliance: st.SLOCompliance, Samples: st.TotalCalls}
		if st.HasMOS() {
			avg := st.AverageMOS
			nq.AverageMOS = &avg
		}
		out[id] = nq
	}
	return out, nil
}

// ParseTimeframe maps the query label to a window. Unknown labels mean
// one week.
func ParseTimeframe(tf string) (string, time.Duration) {
	switch tf {
	case "1h":
		return "1h", time.Hour
	case "", "24h":
		return "24h", 24 * time.Hour
	default:
		return "168h", 7 * 24 * time.Hour
	}
}
