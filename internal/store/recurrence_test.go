package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}

func TestExpandRecurrenceNonRecurringInsideWindow(t *testing.T) {
	ev := Event{ID: 1, Title: "standup", StartTime: "2026-03-10T09:00:00Z"}
	w0 := mustParse(t, "2026-03-01T00:00:00Z")
	w1 := mustParse(t, "2026-03-31T00:00:00Z")

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, mustParse(t, "2026-03-10T09:00:00Z"), occs[0].StartTime)
}

func TestExpandRecurrenceNonRecurringOutsideWindow(t *testing.T) {
	ev := Event{ID: 1, Title: "standup", StartTime: "2026-04-10T09:00:00Z"}
	w0 := mustParse(t, "2026-03-01T00:00:00Z")
	w1 := mustParse(t, "2026-03-31T00:00:00Z")

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	assert.Empty(t, occs)
}

func TestExpandRecurrenceDaily(t *testing.T) {
	ev := Event{
		ID: 2, Title: "standup", StartTime: "2026-03-01T09:00:00Z",
		Rule: &RecurrenceRule{Frequency: FrequencyDaily, Interval: 1},
	}
	w0 := mustParse(t, "2026-03-03T00:00:00Z")
	w1 := mustParse(t, "2026-03-05T09:00:00Z")

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	require.Len(t, occs, 3)
	assert.Equal(t, mustParse(t, "2026-03-03T09:00:00Z"), occs[0].StartTime)
	assert.Equal(t, mustParse(t, "2026-03-04T09:00:00Z"), occs[1].StartTime)
	assert.Equal(t, mustParse(t, "2026-03-05T09:00:00Z"), occs[2].StartTime)
}

func TestExpandRecurrenceWeeklyInterval(t *testing.T) {
	ev := Event{
		ID: 3, Title: "biweekly sync", StartTime: "2026-01-05T10:00:00Z",
		Rule: &RecurrenceRule{Frequency: FrequencyWeekly, Interval: 2},
	}
	w0 := mustParse(t, "2026-01-01T00:00:00Z")
	w1 := mustParse(t, "2026-03-01T00:00:00Z")

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(occs), 2)
	assert.Equal(t, 14*24*time.Hour, occs[1].StartTime.Sub(occs[0].StartTime))
}

func TestExpandRecurrenceMonthlyClampsToLastDay(t *testing.T) {
	ev := Event{
		ID: 4, Title: "month-end review", StartTime: "2026-01-31T12:00:00Z",
		Rule: &RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1},
	}
	w0 := mustParse(t, "2026-01-01T00:00:00Z")
	w1 := mustParse(t, "2026-04-30T00:00:00Z")

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	require.Len(t, occs, 4)
	// Each step clamps from the PREVIOUS occurrence, so a clamp carries
	// forward: Jan 31 -> Feb 28 -> Mar 28 -> Apr 28, not back to 31/30.
	assert.Equal(t, 31, occs[0].StartTime.Day())
	assert.Equal(t, 28, occs[1].StartTime.Day()) // Feb 2026 is not a leap year
	assert.Equal(t, 28, occs[2].StartTime.Day())
	assert.Equal(t, 28, occs[3].StartTime.Day())
}

func TestExpandRecurrenceYearly(t *testing.T) {
	ev := Event{
		ID: 5, Title: "anniversary", StartTime: "2024-02-29T00:00:00Z",
		Rule: &RecurrenceRule{Frequency: FrequencyYearly, Interval: 1},
	}
	w0 := mustParse(t, "2024-01-01T00:00:00Z")
	w1 := mustParse(t, "2027-01-01T00:00:00Z")

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	require.Len(t, occs, 3)
	assert.Equal(t, 29, occs[0].StartTime.Day())
	assert.Equal(t, 28, occs[1].StartTime.Day()) // 2025 is not a leap year
	assert.Equal(t, 28, occs[2].StartTime.Day()) // 2026 is not a leap year either
}

func TestExpandRecurrenceStopsAtRuleEndDate(t *testing.T) {
	endDate := "2026-03-10T00:00:00Z"
	ev := Event{
		ID: 6, Title: "sprint check-in", StartTime: "2026-03-01T09:00:00Z",
		Rule: &RecurrenceRule{Frequency: FrequencyDaily, Interval: 1, EndDate: &endDate},
	}
	w0 := mustParse(t, "2026-01-01T00:00:00Z")
	w1 := mustParse(t, "2026-12-31T00:00:00Z")

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	for _, occ := range occs {
		assert.False(t, occ.StartTime.After(mustParse(t, endDate)))
	}
}

func TestExpandRecurrenceRespectsDuration(t *testing.T) {
	endTime := "2026-03-01T10:30:00Z"
	ev := Event{
		ID: 7, Title: "block", StartTime: "2026-03-01T09:00:00Z", EndTime: &endTime,
		Rule: &RecurrenceRule{Frequency: FrequencyDaily, Interval: 1},
	}
	w0 := mustParse(t, "2026-03-01T00:00:00Z")
	w1 := mustParse(t, "2026-03-03T00:00:00Z")

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	require.Len(t, occs, 2)
	for _, occ := range occs {
		require.NotNil(t, occ.EndTime)
		assert.Equal(t, 90*time.Minute, occ.EndTime.Sub(occ.StartTime))
	}
}

func TestExpandRecurrenceHardCapOnIterations(t *testing.T) {
	ev := Event{
		ID: 8, Title: "forever", StartTime: "2000-01-01T00:00:00Z",
		Rule: &RecurrenceRule{Frequency: FrequencyDaily, Interval: 1},
	}
	w0 := mustParse(t, "2000-01-01T00:00:00Z")
	w1 := mustParse(t, "2100-01-01T00:00:00Z") // far beyond 1000 days

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(occs), maxRecurrenceIterations)
}

func TestExpandRecurrenceResultsSorted(t *testing.T) {
	ev := Event{
		ID: 9, Title: "x", StartTime: "2026-03-01T09:00:00Z",
		Rule: &RecurrenceRule{Frequency: FrequencyDaily, Interval: 1},
	}
	w0 := mustParse(t, "2026-03-01T00:00:00Z")
	w1 := mustParse(t, "2026-03-10T00:00:00Z")

	occs, err := ExpandRecurrence(ev, w0, w1)
	require.NoError(t, err)
	for i := 1; i < len(occs); i++ {
		assert.True(t, occs[i-1].StartTime.Before(occs[i].StartTime))
	}
}
