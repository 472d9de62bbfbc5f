/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  domain types in routine/ and rewards/.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES & WEEKDAYS:
  Days are "YYYY-MM-DD". Weekdays are three-letter codes (MON..SUN).

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/rewards"
	"github.com/warp/routine-engine/routine"
)

// =============================================================================
// USERS
// =============================================================================

type CreateUserRequest struct {
	Nickname string `json:"nickname"`
	ImageURL string `json:"image_url,omitempty"`
}

type ProfileDTO struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	ImageURL string `json:"image_url,omitempty"`
}

// =============================================================================
// ROUTINES
// =============================================================================

type SubRoutineInput struct {
	Name            string `json:"name"`
	Emoji           string `json:"emoji,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

type CreateRoutineRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Type        string            `json:"type"`        // daily_life | finance
	Cardinality string            `json:"cardinality"` // personal | group
	Days        []string          `json:"days"`        // ["MON", "WED"]
	StartTime   string            `json:"start_time,omitempty"`
	EndTime     string            `json:"end_time,omitempty"`
	SubRoutines []SubRoutineInput `json:"sub_routines,omitempty"`
}

type AddSubRoutinesRequest struct {
	SubRoutines []SubRoutineInput `json:"sub_routines"`
}

type RoutineDTO struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type"`
	Cardinality string          `json:"cardinality"`
	Days        []string        `json:"days"`
	StartTime   string          `json:"start_time,omitempty"`
	EndTime     string          `json:"end_time,omitempty"`
	MemberCount int             `json:"member_count,omitempty"`
	SubRoutines []SubRoutineDTO `json:"sub_routines,omitempty"`
}

type SubRoutineDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Emoji           string `json:"emoji,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Position        int    `json:"position"`
	Done            *bool  `json:"done,omitempty"`
}

// =============================================================================
// COMPLETION
// =============================================================================

// DayRequest carries an optional day; empty means today.
type DayRequest struct {
	Day string `json:"day,omitempty"`
}

type CompletionDTO struct {
	RoutineID        string `json:"routine_id"`
	Day              string `json:"day"`
	RoutineCompleted bool   `json:"routine_completed"`
}

type DayProgressDTO struct {
	RoutineID   string          `json:"routine_id"`
	Title       string          `json:"title"`
	Day         string          `json:"day"`
	Completed   bool            `json:"completed"`
	Percent     int             `json:"percent"`
	SubRoutines []SubRoutineDTO `json:"sub_routines"`
}

type StreakDTO struct {
	UserID   string `json:"user_id"`
	Streak   int    `json:"streak"`
	AsOf     string `json:"as_of"`
	Lookback int    `json:"lookback_days"`
}

type DayStatusDTO struct {
	Weekday string `json:"weekday"`
	Done    bool   `json:"done"`
}

type RoutineSummaryDTO struct {
	RoutineID   string         `json:"routine_id"`
	Title       string         `json:"title"`
	Cardinality string         `json:"cardinality"`
	Days        []DayStatusDTO `json:"days"`
}

type WeeklySummaryDTO struct {
	UserID   string              `json:"user_id"`
	From     string              `json:"from"`
	To       string              `json:"to"`
	Type     string              `json:"type"`
	Routines []RoutineSummaryDTO `json:"routines"`
}

// =============================================================================
// GROUPS
// =============================================================================

type MarkStatusRequest struct {
	Done bool `json:"done"`
}

type RecordGroupRequest struct {
	Success bool `json:"success"`
}

type BucketDTO struct {
	Count    int          `json:"count"`
	Profiles []ProfileDTO `json:"profiles"`
}

type SnapshotDTO struct {
	RoutineID string    `json:"routine_id"`
	Day       string    `json:"day"`
	Total     int       `json:"total"`
	Succeeded BucketDTO `json:"succeeded"`
	Failed    BucketDTO `json:"failed"`
}

type GroupDetailDTO struct {
	Routine       RoutineDTO      `json:"routine"`
	IsOwner       bool            `json:"is_owner"`
	IsJoined      bool            `json:"is_joined"`
	SubRoutines   []SubRoutineDTO `json:"sub_routines"`
	Snapshot      *SnapshotDTO    `json:"snapshot,omitempty"`
	MemberPreview []ProfileDTO    `json:"member_preview,omitempty"`
}

// =============================================================================
// REWARDS & SHOP
// =============================================================================

type BalanceDTO struct {
	UserID    string  `json:"user_id"`
	Earned    float64 `json:"earned"`
	Spent     float64 `json:"spent"`
	Adjusted  float64 `json:"adjusted"`
	Available float64 `json:"available"`
}

type TransactionDTO struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Delta       float64 `json:"delta"`
	EffectiveAt string  `json:"effective_at"`
	ReferenceID string  `json:"reference_id,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

type GrantDTO struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Period    string    `json:"period"`
	Amount    float64   `json:"amount"`
	GrantedAt time.Time `json:"granted_at"`
}

type AwardDTO struct {
	Outcome string    `json:"outcome"` // granted | already_granted | not_eligible
	Grant   *GrantDTO `json:"grant,omitempty"`
}

type AdjustmentRequest struct {
	UserID         string  `json:"user_id"`
	Amount         float64 `json:"amount"`
	Reason         string  `json:"reason"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

type CreateItemRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type ItemDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type PurchaseDTO struct {
	TransactionID  string     `json:"transaction_id"`
	Item           ItemDTO    `json:"item"`
	Price          float64    `json:"price"`
	RemainingStock int        `json:"remaining_stock"`
	Balance        BalanceDTO `json:"balance"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toProfileDTO(p routine.Profile) ProfileDTO {
	return ProfileDTO{ID: string(p.UserID), Nickname: p.Nickname, ImageURL: p.ImageURL}
}

func toProfileDTOs(ps []routine.Profile) []ProfileDTO {
	out := make([]ProfileDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProfileDTO(p))
	}
	return out
}

func toRoutineDTO(r routine.Routine, subs []routine.SubRoutine) RoutineDTO {
	dto := RoutineDTO{
		ID:          string(r.ID),
		OwnerID:     string(r.OwnerID),
		Title:       r.Title,
		Description: r.Description,
		Type:        string(r.Type),
		Cardinality: string(r.Cardinality),
		Days:        r.Days.Codes(),
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		MemberCount: r.MemberCount,
	}
	for _, s := range subs {
		dto.SubRoutines = append(dto.SubRoutines, toSubRoutineDTO(s, nil))
	}
	return dto
}

func toSubRoutineDTO(s routine.SubRoutine, done *bool) SubRoutineDTO {
	return SubRoutineDTO{
		ID:              string(s.ID),
		Name:            s.Name,
		Emoji:           s.Emoji,
		DurationMinutes: s.DurationMinutes,
		Position:        s.Position,
		Done:            done,
	}
}

func toDayProgressDTO(p *routine.DayProgress) DayProgressDTO {
	dto := DayProgressDTO{
		RoutineID:   string(p.Routine.ID),
		Title:       p.Routine.Title,
		Day:         p.Day.String(),
		Completed:   p.Completed,
		Percent:     p.Percent(),
		SubRoutines: make([]SubRoutineDTO, 0, len(p.SubRoutines)),
	}
	for _, s := range p.SubRoutines {
		done := s.Done
		dto.SubRoutines = append(dto.SubRoutines, toSubRoutineDTO(s.SubRoutine, &done))
	}
	return dto
}

func toRoutineSummaryDTOs(rows []routine.RoutineSummary) []RoutineSummaryDTO {
	out := make([]RoutineSummaryDTO, 0, len(rows))
	for _, row := range rows {
		days := make([]DayStatusDTO, 0, len(row.Days))
		for _, d := range row.Days {
			days = append(days, DayStatusDTO{Weekday: routine.WeekdayCode(d.Weekday), Done: d.Done})
		}
		out = append(out, RoutineSummaryDTO{
			RoutineID:   string(row.RoutineID),
			Title:       row.Title,
			Cardinality: string(row.Cardinality),
			Days:        days,
		})
	}
	return out
}

func toSnapshotDTO(s *routine.Snapshot) *SnapshotDTO {
	if s == nil {
		return nil
	}
	return &SnapshotDTO{
		RoutineID: string(s.RoutineID),
		Day:       s.Day.String(),
		Total:     s.Total,
		Succeeded: BucketDTO{Count: s.Succeeded.Count, Profiles: toProfileDTOs(s.Succeeded.Profiles)},
		Failed:    BucketDTO{Count: s.Failed.Count, Profiles: toProfileDTOs(s.Failed.Profiles)},
	}
}

func toGroupDetailDTO(d *routine.GroupDetail) GroupDetailDTO {
	dto := GroupDetailDTO{
		Routine:     toRoutineDTO(d.Routine, nil),
		IsOwner:     d.IsOwner,
		IsJoined:    d.IsJoined,
		SubRoutines: make([]SubRoutineDTO, 0, len(d.SubRoutines)),
		Snapshot:    toSnapshotDTO(d.Snapshot),
	}
	for _, s := range d.SubRoutines {
		dto.SubRoutines = append(dto.SubRoutines, toSubRoutineDTO(s.SubRoutine, s.Done))
	}
	if len(d.MemberPreview) > 0 {
		dto.MemberPreview = toProfileDTOs(d.MemberPreview)
	}
	return dto
}

func toFloat(a generic.Amount) float64 {
	f, _ := a.Value.Float64()
	return f
}

func toBalanceDTO(b generic.Balance) BalanceDTO {
	return BalanceDTO{
		UserID:    string(b.UserID),
		Earned:    toFloat(b.Earned),
		Spent:     toFloat(b.Spent),
		Adjusted:  toFloat(b.Adjusted),
		Available: toFloat(b.Available()),
	}
}

func toTransactionDTO(tx generic.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          string(tx.ID),
		Type:        string(tx.Type),
		Delta:       toFloat(tx.Delta),
		EffectiveAt: tx.EffectiveAt.String(),
		ReferenceID: tx.ReferenceID,
		Reason:      tx.Reason,
	}
}

func toGrantDTO(g rewards.Grant) GrantDTO {
	return GrantDTO{
		ID:        string(g.ID),
		Kind:      string(g.Reason.Kind),
		Period:    string(g.Reason.Period),
		Amount:    toFloat(g.Amount),
		GrantedAt: g.GrantedAt,
	}
}

func toAwardDTO(res rewards.AwardResult) AwardDTO {
	dto := AwardDTO{Outcome: res.Outcome.String()}
	if res.Grant != nil {
		g := toGrantDTO(*res.Grant)
		dto.Grant = &g
	}
	return dto
}

func toItemDTO(item rewards.Item) ItemDTO {
	return ItemDTO{
		ID:    string(item.ID),
		Name:  item.Name,
		Price: toFloat(item.Price),
		Stock: item.Stock,
	}
}

func toPurchaseDTO(p *rewards.Purchase) PurchaseDTO {
	return PurchaseDTO{
		TransactionID:  string(p.TransactionID),
		Item:           toItemDTO(p.Item),
		Price:          toFloat(p.Price),
		RemainingStock: p.RemainingStock,
		Balance:        toBalanceDTO(p.Balance),
	}
}
