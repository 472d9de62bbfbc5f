/*
handlers.go - HTTP API handlers for the routine engine

PURPOSE:
  Exposes routines, streaks, group consensus, rewards and the shop via
  REST. Handles HTTP request/response, JSON serialization, and delegates
  to the services in factory.Engine.

IDENTITY:
  The caller is identified by the X-User-ID header. There is no
  authentication layer; a gateway in front is expected to set it.

ENDPOINTS:
  Users:
    POST   /api/users                                Register user
  Routines:
    GET    /api/routines                             Caller's routines (?type=)
    POST   /api/routines                             Create routine
    GET    /api/routines/{id}                        Routine with sub-routines
    DELETE /api/routines/{id}                        Delete (owner)
    POST   /api/routines/{id}/subroutines            Add sub-routines (owner)
    DELETE /api/routines/{id}/subroutines/{subID}    Delete sub-routine (owner)
    GET    /api/routines/{id}/progress               Day progress (?day=)
    POST   /api/routines/{id}/complete               Mark whole routine done
    POST   /api/subroutines/{id}/complete            Mark sub-routine done
    POST   /api/subroutines/{id}/uncomplete          Clear sub-routine mark
  Stats:
    GET    /api/me/streak                            Current streak
    GET    /api/me/weekly                            Weekly matrix (?type=&from=&to=)
  Groups:
    GET    /api/groups                               List groups (?type=)
    GET    /api/groups/{id}                          Detail
    POST   /api/groups/{id}/join | /leave
    PUT    /api/groups/{id}/subroutines/{subID}      Mark status {done}
    POST   /api/groups/{id}/record                   Record result {success}
    GET    /api/groups/{id}/snapshot                 Today's snapshot
    POST   /api/groups/{id}/reward                   Claim group completion bonus
  Rewards:
    GET    /api/me/balance | /transactions | /grants
    POST   /api/rewards/weekly                       Claim weekly streak bonus
    POST   /api/routines/{id}/reward                 Claim personal completion bonus
    POST   /api/admin/adjustments                    Manual adjustment
  Shop:
    GET    /api/items, POST /api/items, GET /api/items/{id}
    POST   /api/items/{id}/purchase

ERROR HANDLING:
  writeDomainError maps the generic error taxonomy to HTTP status:
  - 400: invalid input / period
  - 401: missing X-User-ID
  - 403: not owner / not member
  - 404: resource not found
  - 409: already joined / granted, invalid state, out of stock
  - 422: insufficient points, not eligible
  - 503: lock timeout (retryable, Retry-After set)
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/routine-engine/factory"
	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/logger"
	"github.com/warp/routine-engine/rewards"
	"github.com/warp/routine-engine/routine"
)

// UserHeader carries the caller's user ID.
const UserHeader = "X-User-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *factory.Engine
	log    *logger.Logger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler over a wired engine.
func NewHandler(eng *factory.Engine) *Handler {
	return &Handler{
		Engine: eng,
		log:    logger.OrNop(eng.Log).With("component", "api"),
	}
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// CreateUser registers a profile.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Engine.Catalog.RegisterUser(r.Context(), routine.Profile{
		Nickname: req.Nickname,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(*p))
}

// =============================================================================
// ROUTINE HANDLERS
// =============================================================================

// ListRoutines returns the caller's personal and joined group routines.
func (h *Handler) ListRoutines(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	filter := routine.RoutineFilter{Type: routine.Type(r.URL.Query().Get("type"))}
	if wd := r.URL.Query().Get("weekday"); wd != "" {
		day, err := routine.ParseWeekday(wd)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		filter.Weekday = &day
	}

	routines, err := h.Engine.Catalog.RoutinesForUser(r.Context(), userID, filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result := make([]RoutineDTO, 0, len(routines))
	for _, rt := range routines {
		result = append(result, toRoutineDTO(rt, nil))
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateRoutine creates a routine and its initial sub-routines.
func (h *Handler) CreateRoutine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req CreateRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	days, err := routine.ParseWeekdaySet(req.Days)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	ctx := r.Context()
	created, err := h.Engine.Catalog.CreateRoutine(ctx, userID, routine.Routine{
		Title:       req.Title,
		Description: req.Description,
		Type:        routine.Type(req.Type),
		Cardinality: routine.Cardinality(req.Cardinality),
		Days:        days,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var subs []routine.SubRoutine
	if len(req.SubRoutines) > 0 {
		subs, err = h.Engine.Catalog.AddSubRoutines(ctx, userID, created.ID, toSubRoutines(req.SubRoutines))
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
	}

	h.log.Info("routine created", "routine", created.ID, "owner", userID, "cardinality", created.Cardinality)
	writeJSON(w, http.StatusCreated, toRoutineDTO(*created, subs))
}

// GetRoutine returns a routine with its sub-routines.
func (h *Handler) GetRoutine(w http.ResponseWriter, r *http.Request) {
	id := routine.RoutineID(chi.URLParam(r, "id"))
	ctx := r.Context()

	rt, err := h.Engine.Catalog.GetRoutine(ctx, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	subs, err := h.Engine.Catalog.SubRoutines(ctx, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoutineDTO(*rt, subs))
}

// DeleteRoutine removes a routine the caller owns.
func (h *Handler) DeleteRoutine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.Engine.Catalog.DeleteRoutine(r.Context(), userID, routine.RoutineID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSubRoutines appends sub-routines to a routine the caller owns.
func (h *Handler) AddSubRoutines(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req AddSubRoutinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	subs, err := h.Engine.Catalog.AddSubRoutines(r.Context(), userID,
		routine.RoutineID(chi.URLParam(r, "id")), toSubRoutines(req.SubRoutines))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	result := make([]SubRoutineDTO, 0, len(subs))
	for _, s := range subs {
		result = append(result, toSubRoutineDTO(s, nil))
	}
	writeJSON(w, http.StatusCreated, result)
}

// DeleteSubRoutine removes one sub-routine and its facts.
func (h *Handler) DeleteSubRoutine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	err := h.Engine.Catalog.DeleteSubRoutine(r.Context(), userID,
		routine.RoutineID(chi.URLParam(r, "id")), routine.SubRoutineID(chi.URLParam(r, "subID")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PERSONAL COMPLETION HANDLERS
// =============================================================================

// GetProgress returns per-sub-routine status for a day.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	day, err := h.dayParam(r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day format (use YYYY-MM-DD)", err)
		return
	}

	progress, err := h.Engine.Personal.DayProgress(r.Context(), userID, routine.RoutineID(chi.URLParam(r, "id")), day)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDayProgressDTO(progress))
}

// CompleteRoutine marks a personal routine done for the day.
func (h *Handler) CompleteRoutine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	day, ok := h.decodeDay(w, r)
	if !ok {
		return
	}
	id := routine.RoutineID(chi.URLParam(r, "id"))

	if _, err := h.Engine.Personal.CompleteRoutine(r.Context(), userID, id, day); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompletionDTO{RoutineID: string(id), Day: day.String(), RoutineCompleted: true})
}

// CompleteSubRoutine marks a sub-routine done; completes the routine when
// it was the last one.
func (h *Handler) CompleteSubRoutine(w http.ResponseWriter, r *http.Request) {
	h.markSubRoutine(w, r, true)
}

// UncompleteSubRoutine clears a sub-routine mark.
func (h *Handler) UncompleteSubRoutine(w http.ResponseWriter, r *http.Request) {
	h.markSubRoutine(w, r, false)
}

func (h *Handler) markSubRoutine(w http.ResponseWriter, r *http.Request, done bool) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	day, ok := h.decodeDay(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	subID := routine.SubRoutineID(chi.URLParam(r, "id"))

	completed := false
	var err error
	if done {
		completed, err = h.Engine.Personal.CompleteSubRoutine(ctx, userID, subID, day)
	} else {
		err = h.Engine.Personal.UncompleteSubRoutine(ctx, userID, subID, day)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	sub, err := h.Engine.Store.GetSubRoutine(ctx, subID)
	if err != nil || sub == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load sub-routine", err)
		return
	}
	writeJSON(w, http.StatusOK, CompletionDTO{RoutineID: string(sub.RoutineID), Day: day.String(), RoutineCompleted: completed})
}

// =============================================================================
// STATS HANDLERS
// =============================================================================

// GetStreak returns the caller's current streak.
func (h *Handler) GetStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	streak, err := h.Engine.Streaks.CurrentStreak(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StreakDTO{
		UserID:   string(userID),
		Streak:   streak,
		AsOf:     h.Engine.Clock.Today().String(),
		Lookback: h.Engine.Streaks.Lookback(),
	})
}

// GetWeeklySummary returns the routine x weekday matrix. Without from/to
// the current Monday..Sunday week is used.
func (h *Handler) GetWeeklySummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	routineType := routine.Type(q.Get("type"))
	if routineType == "" {
		routineType = routine.TypeDailyLife
	}

	period := generic.WeekOf(h.Engine.Clock.Today())
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := generic.ParseDay(q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		to, err := generic.ParseDay(q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		period = generic.Period{Start: from, End: to}
	}

	rows, err := h.Engine.Weekly.Summarize(r.Context(), userID, period, routineType)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WeeklySummaryDTO{
		UserID:   string(userID),
		From:     period.Start.String(),
		To:       period.End.String(),
		Type:     string(routineType),
		Routines: toRoutineSummaryDTOs(rows),
	})
}

// =============================================================================
// GROUP HANDLERS
// =============================================================================

// ListGroups returns all group routines, optionally of one type.
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Engine.Groups.ListGroups(r.Context(), routine.Type(r.URL.Query().Get("type")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	result := make([]RoutineDTO, 0, len(groups))
	for _, g := range groups {
		result = append(result, toRoutineDTO(g, nil))
	}
	writeJSON(w, http.StatusOK, result)
}

// GetGroup returns the group detail as seen by the caller.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	detail, err := h.Engine.Groups.Detail(r.Context(), userID, routine.RoutineID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupDetailDTO(detail))
}

// JoinGroup adds the caller to a group.
func (h *Handler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.Engine.Groups.Join(r.Context(), userID, routine.RoutineID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LeaveGroup removes the caller and their facts from a group.
func (h *Handler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.Engine.Groups.Leave(r.Context(), userID, routine.RoutineID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkGroupSubRoutine sets the caller's status of one sub-routine today.
func (h *Handler) MarkGroupSubRoutine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req MarkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	err := h.Engine.Groups.MarkSubRoutineStatus(r.Context(), userID,
		routine.RoutineID(chi.URLParam(r, "id")), routine.SubRoutineID(chi.URLParam(r, "subID")), req.Done)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordGroupCompletion records today's success or failure for the caller.
func (h *Handler) RecordGroupCompletion(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req RecordGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	groupID := routine.RoutineID(chi.URLParam(r, "id"))
	if err := h.Engine.Groups.RecordGroupCompletion(r.Context(), userID, groupID, req.Success); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGroupSnapshot returns today's succeeded/failed buckets.
func (h *Handler) GetGroupSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Engine.Groups.MemberSnapshot(r.Context(), routine.RoutineID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// ClaimGroupReward claims today's group completion bonus.
func (h *Handler) ClaimGroupReward(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.Programs.ClaimGroupCompletion(r.Context(), userID, routine.RoutineID(chi.URLParam(r, "id")))
	h.writeAward(w, res, err)
}

// =============================================================================
// REWARD HANDLERS
// =============================================================================

// ClaimWeeklyBonus claims the weekly streak bonus for the current ISO week.
func (h *Handler) ClaimWeeklyBonus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.Programs.ClaimWeeklyBonus(r.Context(), userID)
	h.writeAward(w, res, err)
}

// ClaimPersonalReward claims today's personal completion bonus.
func (h *Handler) ClaimPersonalReward(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.Programs.ClaimPersonalCompletion(r.Context(), userID, routine.RoutineID(chi.URLParam(r, "id")))
	h.writeAward(w, res, err)
}

// writeAward returns 201 for a new grant and 200 with the outcome otherwise.
func (h *Handler) writeAward(w http.ResponseWriter, res rewards.AwardResult, err error) {
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == rewards.Granted {
		status = http.StatusCreated
	}
	writeJSON(w, status, toAwardDTO(res))
}

// GetBalance returns the caller's point balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	balance, err := h.Engine.Rewards.Balance(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(balance))
}

// GetTransactions returns the caller's point ledger.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	txs, err := h.Engine.Rewards.History(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	result := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		result = append(result, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, result)
}

// GetGrants returns the caller's grants, newest first.
func (h *Handler) GetGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	grants, err := h.Engine.Rewards.Grants(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	result := make([]GrantDTO, 0, len(grants))
	for _, g := range grants {
		result = append(result, toGrantDTO(g))
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateAdjustment appends a manual correction to a user's ledger.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	txID, err := h.Engine.Rewards.Adjust(r.Context(), generic.UserID(req.UserID),
		generic.NewAmount(req.Amount, generic.UnitPoints), req.Reason, req.IdempotencyKey)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"transaction_id": string(txID)})
}

// =============================================================================
// SHOP HANDLERS
// =============================================================================

// ListItems returns all shop items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Engine.Shop.ListItems(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	result := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		result = append(result, toItemDTO(item))
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateItem adds a stock-limited item.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	item, err := h.Engine.Shop.CreateItem(r.Context(), rewards.Item{
		Name:  req.Name,
		Price: generic.NewAmount(req.Price, generic.UnitPoints),
		Stock: req.Stock,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(*item))
}

// GetItem returns one item.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Engine.Shop.GetItem(r.Context(), rewards.ItemID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(*item))
}

// PurchaseItem buys one unit for the caller.
func (h *Handler) PurchaseItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	purchase, err := h.Engine.Shop.Purchase(r.Context(), userID, rewards.ItemID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(purchase))
}

// =============================================================================
// HELPERS
// =============================================================================

func requireUserID(w http.ResponseWriter, r *http.Request) (generic.UserID, bool) {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	if id == "" {
		writeError(w, http.StatusUnauthorized, "Missing "+UserHeader+" header", nil)
		return "", false
	}
	return generic.UserID(id), true
}

// dayParam parses an optional day; empty means today.
func (h *Handler) dayParam(s string) (generic.TimePoint, error) {
	if s == "" {
		return h.Engine.Clock.Today(), nil
	}
	return generic.ParseDay(s)
}

// decodeDay reads an optional DayRequest body.
func (h *Handler) decodeDay(w http.ResponseWriter, r *http.Request) (generic.TimePoint, bool) {
	var req DayRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return generic.TimePoint{}, false
		}
	}
	day, err := h.dayParam(req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day format (use YYYY-MM-DD)", err)
		return generic.TimePoint{}, false
	}
	return day, true
}

func toSubRoutines(in []SubRoutineInput) []routine.SubRoutine {
	out := make([]routine.SubRoutine, 0, len(in))
	for _, s := range in {
		out = append(out, routine.SubRoutine{
			Name:            s.Name,
			Emoji:           s.Emoji,
			DurationMinutes: s.DurationMinutes,
		})
	}
	return out
}

// writeDomainError maps the error taxonomy to an HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var ipe *generic.InsufficientPointsError

	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsForbidden(err):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case errors.As(err, &ipe):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Insufficient points",
			Code:  "insufficient_points",
			Details: map[string]float64{
				"available": toFloat(ipe.Available),
				"required":  toFloat(ipe.Required),
				"shortfall": toFloat(ipe.Shortfall()),
			},
		})
	case errors.Is(err, generic.ErrNotEligible):
		writeError(w, http.StatusUnprocessableEntity, "Not eligible", err)
	case errors.Is(err, generic.ErrOutOfStock):
		writeCodedError(w, http.StatusConflict, "out_of_stock", "Out of stock", err)
	case errors.Is(err, generic.ErrInvalidState):
		writeCodedError(w, http.StatusConflict, "invalid_state", "Invalid state", err)
	case errors.Is(err, generic.ErrConflict),
		errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		writeCodedError(w, http.StatusConflict, "conflict", "Conflict", err)
	case errors.Is(err, generic.ErrInvalidInput), errors.Is(err, generic.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case generic.IsRetryable(err):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "Busy, retry later", err)
	default:
		h.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeCodedError(w, status, "", message, err)
}

// writeCodedError only echoes err to the client for 4xx responses; server
// errors carry driver and SQL text and stay in the log.
func writeCodedError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil && status < http.StatusInternalServerError {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
