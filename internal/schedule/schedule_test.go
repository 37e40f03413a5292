package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyarc/platform/internal/access"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testSchedule() *Schedule {
	return &Schedule{
		ID:            "sch_test",
		AccountID:     "acc_1",
		AgencyID:      "agc_1",
		Description:   "Tuition installment",
		Amount:        decimal.NewFromInt(3000),
		Currency:      "USD",
		Cadence:       CadenceMonthly,
		IntervalCount: 1,
		StartDate:     date(2026, time.January, 15),
		Active:        true,
		CreatedAt:     date(2026, time.January, 1),
		UpdatedAt:     date(2026, time.January, 1),
	}
}

func TestValidateRejectsMalformedCadence(t *testing.T) {
	good := testSchedule()
	require.NoError(t, good.Validate())

	tests := []struct {
		name   string
		mutate func(*Schedule)
	}{
		{"zero interval", func(s *Schedule) { s.IntervalCount = 0 }},
		{"negative interval", func(s *Schedule) { s.IntervalCount = -2 }},
		{"unknown cadence", func(s *Schedule) { s.Cadence = "fortnightly" }},
		{"start after end", func(s *Schedule) {
			end := s.StartDate.AddDate(0, -1, 0)
			s.EndDate = &end
		}},
		{"zero start", func(s *Schedule) { s.StartDate = time.Time{} }},
		{"zero amount", func(s *Schedule) { s.Amount = decimal.Zero }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSchedule()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSchedule)
		})
	}

	noAccount := testSchedule()
	noAccount.AccountID = ""
	assert.ErrorIs(t, noAccount.Validate(), access.ErrInvalidHierarchy)
}

func TestDuePeriodsMonthly(t *testing.T) {
	s := testSchedule()

	periods := s.DuePeriods(date(2026, time.April, 1))
	require.Len(t, periods, 3)
	assert.Equal(t, 0, periods[0].Index)
	assert.Equal(t, date(2026, time.January, 15), periods[0].Boundary)
	assert.Equal(t, date(2026, time.February, 15), periods[1].Boundary)
	assert.Equal(t, date(2026, time.March, 15), periods[2].Boundary)
}

func TestDuePeriodsBeforeStart(t *testing.T) {
	s := testSchedule()
	assert.Empty(t, s.DuePeriods(date(2026, time.January, 14)))

	// The start date itself is the first boundary.
	assert.Len(t, s.DuePeriods(date(2026, time.January, 15)), 1)
}

func TestDuePeriodsEndDateCap(t *testing.T) {
	s := testSchedule()
	end := date(2026, time.March, 1)
	s.EndDate = &end

	periods := s.DuePeriods(date(2026, time.December, 31))
	require.Len(t, periods, 2, "no boundaries past endDate")
	assert.Equal(t, date(2026, time.February, 15), periods[1].Boundary)
}

func TestDuePeriodsWeeklyWithInterval(t *testing.T) {
	s := testSchedule()
	s.Cadence = CadenceWeekly
	s.IntervalCount = 2
	s.StartDate = date(2026, time.January, 5)

	periods := s.DuePeriods(date(2026, time.February, 2))
	require.Len(t, periods, 3)
	assert.Equal(t, date(2026, time.January, 19), periods[1].Boundary)
	assert.Equal(t, date(2026, time.February, 2), periods[2].Boundary)
}

func TestDuePeriodsQuarterlyAndYearly(t *testing.T) {
	q := testSchedule()
	q.Cadence = CadenceQuarterly
	periods := q.DuePeriods(date(2026, time.December, 31))
	require.Len(t, periods, 4)
	assert.Equal(t, date(2026, time.October, 15), periods[3].Boundary)

	y := testSchedule()
	y.Cadence = CadenceYearly
	periods = y.DuePeriods(date(2028, time.June, 1))
	require.Len(t, periods, 3)
	assert.Equal(t, date(2028, time.January, 15), periods[2].Boundary)
}

func TestDuePeriodsMonthEndAnchors(t *testing.T) {
	// AddDate normalizes Jan 31 + 1 month to Mar 2/3; boundaries are derived
	// from the start date by whole steps so the drift never compounds.
	s := testSchedule()
	s.StartDate = date(2026, time.January, 31)

	periods := s.DuePeriods(date(2026, time.May, 1))
	require.Len(t, periods, 4)
	assert.Equal(t, date(2026, time.January, 31), periods[0].Boundary)
	assert.Equal(t, date(2026, time.March, 3), periods[1].Boundary)
	assert.Equal(t, date(2026, time.March, 31), periods[2].Boundary)
	assert.Equal(t, date(2026, time.May, 1), periods[3].Boundary)
}
