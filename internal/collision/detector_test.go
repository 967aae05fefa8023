package collision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
	"github.com/oakmontrealty/voicrm-sydney/internal/metrics"
)

var now = time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

var sam = domain.AgentProfile{FirstName: "Sam", LastName: "Nguyen", Email: "sam@oakmont.com.au"}

func newDetector(store Store) *Detector {
	d := NewDetector(store, 0, nil)
	d.clock = func() time.Time { return now }
	return d
}

func TestDetect_CallSeverityBoundaries(t *testing.T) {
	cases := []struct {
		ago  time.Duration
		want Severity
	}{
		{59 * time.Minute, SeverityHigh},
		{61 * time.Minute, SeverityMedium},
		{3*time.Hour + 59*time.Minute, SeverityMedium},
		{4*time.Hour + time.Minute, SeverityLow},
	}
	for _, tc := range cases {
		store := NewMemoryStore()
		store.AddCall(domain.CallLog{ID: "c", ContactID: "contact-1", AgentID: "agent-2", StartedAt: now.Add(-tc.ago)})

		rec, err := newDetector(store).Detect(context.Background(), "contact-1", "agent-1", 0)
		require.NoError(t, err)
		require.NotNil(t, rec, tc.ago.String())
		assert.Equal(t, KindCall, rec.Type)
		assert.Equal(t, tc.want, rec.Severity, tc.ago.String())
	}
}

func TestDetect_InteractionSeverityBoundaries(t *testing.T) {
	cases := []struct {
		ago  time.Duration
		want Severity
	}{
		{time.Hour + 59*time.Minute, SeverityHigh},
		{2*time.Hour + time.Minute, SeverityMedium},
		{7*time.Hour + 59*time.Minute, SeverityMedium},
		{8*time.Hour + time.Minute, SeverityLow},
	}
	for _, tc := range cases {
		store := NewMemoryStore()
		store.AddInteraction(domain.Interaction{ID: "i", ContactID: "contact-1", CreatedBy: "agent-2", CreatedAt: now.Add(-tc.ago)})

		rec, err := newDetector(store).Detect(context.Background(), "contact-1", "agent-1", 0)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, KindInteraction, rec.Type)
		assert.Equal(t, tc.want, rec.Severity, tc.ago.String())
	}
}

func TestDetect_MostRecentEventWins(t *testing.T) {
	store := NewMemoryStore()
	store.AddInteraction(domain.Interaction{
		ID: "i1", ContactID: "contact-1", CreatedBy: "agent-2", InteractionType: "email",
		Notes: "Sent appraisal", CreatedAt: now.Add(-90 * time.Minute), Agent: sam,
	})
	store.AddCall(domain.CallLog{
		ID: "c1", ContactID: "contact-1", AgentID: "agent-3", StartedAt: now.Add(-3 * time.Hour),
		DurationSeconds: 240, Disposition: "callback",
	})

	rec, err := newDetector(store).Detect(context.Background(), "contact-1", "agent-1", 0)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, KindInteraction, rec.Type)
	assert.Equal(t, "Sam Nguyen", rec.AgentName)
	assert.Equal(t, "sam@oakmont.com.au", rec.AgentEmail)
	assert.Equal(t, 2, rec.HoursAgo)
	assert.Equal(t, "email", rec.InteractionType)
	assert.Equal(t, "Sent appraisal", rec.Details)
	assert.Equal(t, SeverityHigh, rec.Severity)

	// a newer call replaces the interaction
	store.AddCall(domain.CallLog{
		ID: "c2", ContactID: "contact-1", AgentID: "agent-3", StartedAt: now.Add(-30 * time.Minute),
		DurationSeconds: 180, Disposition: "interested", Agent: sam,
	})
	rec, err = newDetector(store).Detect(context.Background(), "contact-1", "agent-1", 0)
	require.NoError(t, err)
	assert.Equal(t, KindCall, rec.Type)
	assert.Equal(t, "agent-3", rec.AgentID)
	assert.Equal(t, 180, rec.CallDuration)
	assert.Equal(t, "interested", rec.CallOutcome)
	assert.Equal(t, 1, rec.HoursAgo)
	assert.Equal(t, SeverityHigh, rec.Severity)
}

func TestDetect_IgnoresOwnAndStaleEvents(t *testing.T) {
	store := NewMemoryStore()
	store.AddCall(domain.CallLog{ContactID: "contact-1", AgentID: "agent-1", StartedAt: now.Add(-time.Minute)})
	store.AddInteraction(domain.Interaction{ContactID: "contact-1", CreatedBy: "agent-2", CreatedAt: now.Add(-25 * time.Hour)})
	store.AddCall(domain.CallLog{ContactID: "contact-2", AgentID: "agent-2", StartedAt: now.Add(-time.Minute)})

	rec, err := newDetector(store).Detect(context.Background(), "contact-1", "agent-1", 0)
	require.NoError(t, err)
	assert.Nil(t, rec)

	// a wider window picks up the older interaction
	rec, err = newDetector(store).Detect(context.Background(), "contact-1", "agent-1", 48*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, SeverityLow, rec.Severity)
}

type brokenStore struct{ *MemoryStore }

func (brokenStore) RecentCalls(context.Context, string, string, time.Time) ([]domain.CallLog, error) {
	return nil, domain.StorageError(errors.New("connection refused"), "query recent calls")
}

func TestDetect_StorageErrorSurfaces(t *testing.T) {
	_, err := newDetector(brokenStore{NewMemoryStore()}).Detect(context.Background(), "contact-1", "agent-1", 0)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestRecommendations(t *testing.T) {
	assert.Equal(t, []string{
		"Consider coordinating with team member before calling",
		"Review previous interaction notes carefully",
		"Previous call was substantial - check if follow-up was scheduled",
	}, Recommendations(Record{Type: KindCall, Severity: SeverityHigh, CallDuration: 95}))

	assert.Len(t, Recommendations(Record{Type: KindCall, Severity: SeverityHigh}), 2)
	assert.Len(t, Recommendations(Record{Type: KindInteraction, Severity: SeverityHigh}), 2)

	assert.Equal(t, []string{
		"Brief coordination may be helpful",
		"Consider mentioning previous team interaction",
	}, Recommendations(Record{Severity: SeverityMedium}))

	assert.Equal(t, []string{"Previous interaction is not recent - proceed with caution"},
		Recommendations(Record{Severity: SeverityLow}))
}

func TestCheck(t *testing.T) {
	store := NewMemoryStore()
	store.PutContact(domain.Contact{ID: "contact-1", FirstName: "Priya", LastName: "Shah", PhonePrimary: "0412345678", LeadScore: 82, Status: "hot"})
	store.AddCall(domain.CallLog{ContactID: "contact-1", AgentID: "agent-2", StartedAt: now.Add(-2 * time.Hour), Agent: sam})

	m := metrics.New()
	d := NewDetector(store, 0, m)
	d.clock = func() time.Time { return now }

	res, err := d.Check(context.Background(), "contact-1", "agent-1")
	require.NoError(t, err)
	require.NotNil(t, res.Collision)
	assert.Equal(t, SeverityMedium, res.Collision.Severity)
	assert.Equal(t, &ContactSummary{FirstName: "Priya", LastName: "Shah", PhonePrimary: "0412345678", LeadScore: 82, Status: "hot"}, res.Contact)
	assert.Equal(t, Recommendations(*res.Collision), res.Recommendations)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `voicrm_collisions_total{severity="medium",type="call"} 1`)

	res, err = d.Check(context.Background(), "unknown", "agent-1")
	require.NoError(t, err)
	assert.Nil(t, res.Collision)
	assert.Nil(t, res.Contact)
	assert.Nil(t, res.Recommendations)

	_, err = d.Check(context.Background(), " ", "agent-1")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorContains(t, err, "Contact ID required")
}

func TestTouchContact(t *testing.T) {
	store := NewMemoryStore()
	store.PutContact(domain.Contact{ID: "contact-1"})

	require.NoError(t, store.TouchContact(context.Background(), "contact-1", "agent-7", now))
	c, err := store.GetContact(context.Background(), "contact-1")
	require.NoError(t, err)
	assert.Equal(t, "agent-7", c.LastContactedBy)
	assert.Equal(t, now, *c.LastContactDate)

	assert.ErrorIs(t, store.TouchContact(context.Background(), "nope", "agent-7", now), domain.ErrNotFound)
}
