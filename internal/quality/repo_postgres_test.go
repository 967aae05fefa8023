package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakmontrealty/voicrm-sydney/internal/domain"
)

var sampleCols = []string{"id", "call_sid", "phone_number_id", "mos_score", "latency", "jitter", "packet_loss", "slo_violations", "meets_slo", "created_at"}

func TestPostgresRepo_InsertStoresNullForNoViolations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	mos := f(4.5)
	mock.ExpectExec("INSERT INTO call_quality_metrics").
		WithArgs("q1", "CA1", (*string)(nil), mos, (*float64)(nil), (*float64)(nil), (*float64)(nil), []string(nil), true, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPostgresRepo(mock).Insert(context.Background(), domain.QualitySample{
		ID: "q1", CallSid: "CA1", MOS: mos, Violations: []string{}, MeetsSLO: true, CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_InsertFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO call_quality_metrics").
		WithArgs("q1", "CA1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("relation does not exist"))

	err = NewPostgresRepo(mock).Insert(context.Background(), domain.QualitySample{ID: "q1", CallSid: "CA1"})
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorContains(t, err, "relation does not exist")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListByCall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM call_quality_metrics").
		WithArgs("CA1").
		WillReturnRows(pgxmock.NewRows(sampleCols).
			AddRow("q2", "CA1", "n1", f(4.0), f(100.0), (*float64)(nil), (*float64)(nil),
				[]string{"MOS below target: 4 < 4.2"}, false, at.Add(time.Minute)).
			AddRow("q1", "CA1", "", f(4.5), (*float64)(nil), (*float64)(nil), (*float64)(nil),
				[]string{}, true, at))

	got, err := NewPostgresRepo(mock).ListByCall(context.Background(), "CA1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].PhoneNumberID)
	assert.Equal(t, 4.0, *got[0].MOS)
	assert.Nil(t, got[0].JitterMs)
	assert.False(t, got[0].MeetsSLO)
	assert.Equal(t, []string{"MOS below target: 4 < 4.2"}, got[0].Violations)
	assert.True(t, got[1].MeetsSLO)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListSinceError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM call_quality_metrics").WithArgs(since).WillReturnError(errors.New("timeout"))

	_, err = NewPostgresRepo(mock).ListSince(context.Background(), since)
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorContains(t, err, "timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}
