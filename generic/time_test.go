package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/routine-engine/generic"
)

func TestISOWeekKey(t *testing.T) {
	tests := []struct {
		day  generic.TimePoint
		want string
	}{
		{generic.NewTimePoint(2025, time.February, 14), "2025-W07"},
		{generic.NewTimePoint(2025, time.January, 1), "2025-W01"},
		// Monday 2024-12-30 already belongs to week 1 of 2025.
		{generic.NewTimePoint(2024, time.December, 30), "2025-W01"},
		{generic.NewTimePoint(2021, time.January, 3), "2020-W53"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, generic.ISOWeekKey(tt.day), tt.day.String())
	}
}

func TestWeekOf_StartsOnMonday(t *testing.T) {
	// Friday
	week := generic.WeekOf(generic.NewTimePoint(2025, time.February, 14))
	assert.Equal(t, "2025-02-10", week.Start.String())
	assert.Equal(t, "2025-02-16", week.End.String())
	assert.Equal(t, 7, week.Len())

	// Sunday stays in the week that started the previous Monday.
	sunday := generic.WeekOf(generic.NewTimePoint(2025, time.February, 16))
	assert.Equal(t, week, sunday)
}

func TestDayOf_UsesLocation(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// 2025-02-14 20:00 UTC is already the 15th in Seoul.
	instant := time.Date(2025, time.February, 14, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-02-14", generic.DayOf(instant, time.UTC).String())
	assert.Equal(t, "2025-02-15", generic.DayOf(instant, seoul).String())
}

func TestFixedClock(t *testing.T) {
	day := generic.NewTimePoint(2025, time.March, 1)
	clock := generic.NewFixedClock(day)

	assert.Equal(t, day, clock.Today())
	assert.Equal(t, time.UTC, clock.Location())
	assert.Equal(t, 12, clock.Now().Hour())
}

func TestParseDay(t *testing.T) {
	day, err := generic.ParseDay("2025-02-14")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, day.Weekday())

	_, err = generic.ParseDay("14/02/2025")
	assert.Error(t, err)
}

func TestPeriod(t *testing.T) {
	start := generic.NewTimePoint(2025, time.February, 10)
	end := start.AddDays(2)

	p, err := generic.NewPeriod(start, end)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())
	assert.Len(t, p.Days(), 3)
	assert.True(t, p.Contains(start))
	assert.True(t, p.Contains(end))
	assert.False(t, p.Contains(end.AddDays(1)))
	assert.Equal(t, end.AddDays(1), p.ExclusiveEnd())

	_, err = generic.NewPeriod(end, start)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}
