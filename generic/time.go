package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - A calendar day in the configured zone
// =============================================================================

// TimePoint is a local calendar day. The underlying time is always midnight
// UTC of that date, so two TimePoints for the same day compare equal no
// matter which zone produced them.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar day t falls on in loc.
func DayOf(t time.Time, loc *time.Location) TimePoint {
	if loc != nil {
		t = t.In(loc)
	}
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (TimePoint, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return TimePoint{Time: t}, nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.Time.Format("2006-01-02")
}

// Start returns the first instant of the day in loc.
func (tp TimePoint) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(tp.Year(), tp.Month(), tp.Day(), 0, 0, 0, 0, loc)
}

// =============================================================================
// CLOCK - Source of "today"
// =============================================================================

// Clock tells the engine what day it is. Every "today" in the engine comes
// from here so tests can pin the calendar.
type Clock interface {
	Now() time.Time
	Today() TimePoint
	Location() *time.Location
}

// SystemClock reads the wall clock in a fixed zone.
type SystemClock struct {
	Loc *time.Location
}

func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SystemClock{Loc: loc}
}

func (c *SystemClock) Now() time.Time           { return time.Now().In(c.Loc) }
func (c *SystemClock) Today() TimePoint         { return DayOf(time.Now(), c.Loc) }
func (c *SystemClock) Location() *time.Location { return c.Loc }

// FixedClock always reports the same instant.
type FixedClock struct {
	At  time.Time
	Loc *time.Location
}

// NewFixedClock returns a clock pinned to noon of the given day.
func NewFixedClock(day TimePoint) *FixedClock {
	return &FixedClock{At: day.Time.Add(12 * time.Hour), Loc: time.UTC}
}

func (c *FixedClock) Now() time.Time   { return c.At }
func (c *FixedClock) Today() TimePoint { return DayOf(c.At, c.Location()) }
func (c *FixedClock) Location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// =============================================================================
// CALENDAR UTILITIES
// =============================================================================

// ISOWeekKey returns the ISO-8601 week of a day, e.g. "2025-W07".
// Days in the last days of December can belong to week 1 of the next year.
func ISOWeekKey(day TimePoint) string {
	year, week := day.Time.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// DayKey returns the day formatted as YYYY-MM-DD.
func DayKey(day TimePoint) string {
	return day.String()
}

// StartOfWeek returns the Monday of the ISO week containing day.
func StartOfWeek(day TimePoint) TimePoint {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDays(-offset)
}

// WeekOf returns the Monday..Sunday period containing day.
func WeekOf(day TimePoint) Period {
	start := StartOfWeek(day)
	return Period{Start: start, End: start.AddDays(6)}
}

// MondayFirst lists weekdays in ISO order.
var MondayFirst = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func DaysBetween(from, to TimePoint) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}
