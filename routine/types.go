/*
Package routine implements completion tracking for scheduled routines.

PURPOSE:
  A routine is a list of sub-routines (small tasks) scheduled on a set of
  weekdays. Users mark sub-routines done per day; a routine is complete for
  a day once every sub-routine is done. Routines are either personal (one
  owner) or group (owner plus members sharing the same sub-routines).

KEY CONCEPTS IN THIS FILE (types.go):
  - Routine: Definition with weekday schedule and time window
  - SubRoutine: One task inside a routine
  - Fact: (user, routine, sub-routine?, day) -> done
  - Membership: (group routine, user, owner flag)
  - WeekdaySet: Bitset of scheduled weekdays

FACT LEVELS:
  Sub-routine facts have SubRoutineID set. Routine-level facts (the whole
  list done for the day) have SubRoutineID empty. Streaks and weekly
  summaries read routine-level facts only.

SEE ALSO:
  - store.go: Persistence interface consumed by this package
  - streak.go: Backward streak walk
  - weekly.go: Weekly completion matrix
  - group.go: Group consensus rules
*/
package routine

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/routine-engine/generic"
)

// =============================================================================
// IDENTIFIERS & ENUMS
// =============================================================================

type RoutineID string
type SubRoutineID string

// Type classifies routines for the weekly summary.
type Type string

const (
	TypeDailyLife Type = "daily_life"
	TypeFinance   Type = "finance"
)

func (t Type) Valid() bool {
	return t == TypeDailyLife || t == TypeFinance
}

// Cardinality tells personal routines from group routines.
type Cardinality string

const (
	Personal Cardinality = "personal"
	Group    Cardinality = "group"
)

func (c Cardinality) Valid() bool {
	return c == Personal || c == Group
}

// =============================================================================
// WEEKDAY SET
// =============================================================================

// WeekdaySet is a bitset indexed by time.Weekday.
type WeekdaySet uint8

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }
func (s WeekdaySet) IsEmpty() bool           { return s == 0 }

// Days lists the set in Monday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for _, d := range generic.MondayFirst {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// Codes returns the three-letter codes, e.g. ["MON", "WED"].
func (s WeekdaySet) Codes() []string {
	days := s.Days()
	codes := make([]string, len(days))
	for i, d := range days {
		codes[i] = WeekdayCode(d)
	}
	return codes
}

func (s WeekdaySet) String() string {
	return strings.Join(s.Codes(), ",")
}

// WeekdayCode returns "MON".."SUN".
func WeekdayCode(d time.Weekday) string {
	return strings.ToUpper(d.String()[:3])
}

// ParseWeekday accepts "MON", "monday", "Mon" and similar.
func ParseWeekday(s string) (time.Weekday, error) {
	in := strings.ToUpper(strings.TrimSpace(s))
	for _, d := range generic.MondayFirst {
		if in == WeekdayCode(d) || in == strings.ToUpper(d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", generic.ErrInvalidInput, s)
}

func ParseWeekdaySet(codes []string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, c := range codes {
		d, err := ParseWeekday(c)
		if err != nil {
			return 0, err
		}
		s |= NewWeekdaySet(d)
	}
	return s, nil
}

// =============================================================================
// ROUTINE & SUB-ROUTINE
// =============================================================================

type Routine struct {
	ID          RoutineID
	OwnerID     generic.UserID
	Title       string
	Description string
	Type        Type
	Cardinality Cardinality
	Days        WeekdaySet
	StartTime   string // "HH:MM", local
	EndTime     string
	MemberCount int // group routines only, maintained by join/leave
	CreatedAt   time.Time
}

// ScheduledOn reports whether the routine is due on weekday d.
func (r Routine) ScheduledOn(d time.Weekday) bool {
	return r.Days.Has(d)
}

func (r Routine) IsGroup() bool { return r.Cardinality == Group }

// Validate checks the fields a caller controls.
func (r Routine) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", generic.ErrInvalidInput)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown routine type %q", generic.ErrInvalidInput, r.Type)
	}
	if !r.Cardinality.Valid() {
		return fmt.Errorf("%w: unknown cardinality %q", generic.ErrInvalidInput, r.Cardinality)
	}
	if r.Days.IsEmpty() {
		return fmt.Errorf("%w: at least one weekday is required", generic.ErrInvalidInput)
	}
	if err := validateWindow(r.StartTime, r.EndTime); err != nil {
		return err
	}
	return nil
}

func validateWindow(start, end string) error {
	if start == "" && end == "" {
		return nil
	}
	s, err := time.Parse("15:04", start)
	if err != nil {
		return fmt.Errorf("%w: start time %q", generic.ErrInvalidInput, start)
	}
	e, err := time.Parse("15:04", end)
	if err != nil {
		return fmt.Errorf("%w: end time %q", generic.ErrInvalidInput, end)
	}
	if !e.After(s) {
		return fmt.Errorf("%w: end time must be after start time", generic.ErrInvalidInput)
	}
	return nil
}

type SubRoutine struct {
	ID              SubRoutineID
	RoutineID       RoutineID
	Name            string
	Emoji           string
	DurationMinutes int
	Position        int
}

// =============================================================================
// COMPLETION FACT
// =============================================================================

// Fact records whether a user completed a routine or one of its
// sub-routines on a day. At most one Fact exists per
// (UserID, RoutineID, SubRoutineID, Day).
type Fact struct {
	UserID       generic.UserID
	RoutineID    RoutineID
	SubRoutineID SubRoutineID // empty for routine-level facts
	Day          generic.TimePoint
	Done         bool
	UpdatedAt    time.Time
}

func (f Fact) IsRoutineLevel() bool { return f.SubRoutineID == "" }

// Level selects which facts a query returns.
type Level int

const (
	AnyLevel Level = iota
	RoutineLevel
	SubRoutineLevel
)

// FactQuery is a batch filter. Empty slices mean "no filter" for that
// field. The day range is half-open: [From, To).
type FactQuery struct {
	Users         []generic.UserID
	RoutineIDs    []RoutineID
	SubRoutineIDs []SubRoutineID
	Level         Level
	From          generic.TimePoint
	To            generic.TimePoint
	DoneOnly      bool
}

// OnDay restricts the query to a single day.
func (q FactQuery) OnDay(day generic.TimePoint) FactQuery {
	q.From = day
	q.To = day.AddDays(1)
	return q
}

// =============================================================================
// MEMBERSHIP & PROFILE
// =============================================================================

type Membership struct {
	RoutineID RoutineID
	UserID    generic.UserID
	Owner     bool
	JoinedAt  time.Time
}

// Profile is the display information for a user.
type Profile struct {
	UserID    generic.UserID
	Nickname  string
	ImageURL  string
	CreatedAt time.Time
}
