/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario registers users, creates routines and
	items, and records completions relative to today.

AVAILABLE SCENARIOS:

	streak-week:     One user, a daily routine done for the last 9 days
	                 (eligible for the weekly streak bonus)
	group-challenge: A group routine with four members in mixed states
	shop-rush:       Two funded users and a one-unit item

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Register users with fixed IDs (user-alice, user-bob, ...)
 3. Create routines and sub-routines through the catalog
 4. Record completions through the personal/group engines
 5. Fund balances with ledger adjustments where needed

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "streak-week"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handlers the demo data is meant to be explored with
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/rewards"
	"github.com/warp/routine-engine/routine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "streak-week",
		Name:        "Streak Week",
		Description: "Daily routine completed for the last 9 days, weekly bonus claimable",
	},
	{
		ID:          "group-challenge",
		Name:        "Group Challenge",
		Description: "Group routine with succeeded and failed members today",
	},
	{
		ID:          "shop-rush",
		Name:        "Shop Rush",
		Description: "Two funded users racing for an item with a single unit of stock",
	},
}

var allWeekdays = routine.NewWeekdaySet(
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: h.currentScenario, Name: h.currentScenario})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(ctx context.Context) error
	switch req.ScenarioID {
	case "streak-week":
		load = h.loadStreakWeekScenario
	case "group-challenge":
		load = h.loadGroupChallengeScenario
	case "shop-rush":
		load = h.loadShopRushScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.Engine.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		h.log.Error("scenario load failed", "scenario", req.ScenarioID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}
	h.currentScenario = req.ScenarioID

	h.log.Info("scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStreakWeekScenario(ctx context.Context) error {
	if err := h.registerUsers(ctx, "user-alice", "Alice"); err != nil {
		return err
	}

	rt, err := h.createRoutine(ctx, "user-alice", routine.Routine{
		Title:       "Morning stretch",
		Type:        routine.TypeDailyLife,
		Cardinality: routine.Personal,
		Days:        allWeekdays,
		StartTime:   "07:00",
		EndTime:     "07:30",
	}, "Neck", "Shoulders", "Back")
	if err != nil {
		return err
	}

	if _, err := h.createRoutine(ctx, "user-alice", routine.Routine{
		Title:       "Log expenses",
		Type:        routine.TypeFinance,
		Cardinality: routine.Personal,
		Days:        routine.NewWeekdaySet(time.Monday, time.Thursday),
	}, "Receipts"); err != nil {
		return err
	}

	today := h.Engine.Clock.Today()
	for i := 0; i < 9; i++ {
		if _, err := h.Engine.Personal.CompleteRoutine(ctx, "user-alice", rt.ID, today.AddDays(-i)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadGroupChallengeScenario(ctx context.Context) error {
	if err := h.registerUsers(ctx,
		"user-alice", "Alice",
		"user-bob", "Bob",
		"user-carol", "Carol",
		"user-dave", "Dave",
	); err != nil {
		return err
	}

	group, err := h.createRoutine(ctx, "user-alice", routine.Routine{
		Title:       "No-spend challenge",
		Type:        routine.TypeFinance,
		Cardinality: routine.Group,
		Days:        allWeekdays,
	}, "Skip coffee", "Cook lunch", "Walk home")
	if err != nil {
		return err
	}
	for _, u := range []generic.UserID{"user-bob", "user-carol", "user-dave"} {
		if err := h.Engine.Groups.Join(ctx, u, group.ID); err != nil {
			return err
		}
	}

	subs, err := h.Engine.Catalog.SubRoutines(ctx, group.ID)
	if err != nil {
		return err
	}

	// Alice and Bob finish everything, Carol is halfway, Dave has not started.
	for _, u := range []generic.UserID{"user-alice", "user-bob"} {
		for _, s := range subs {
			if err := h.Engine.Groups.MarkSubRoutineStatus(ctx, u, group.ID, s.ID, true); err != nil {
				return err
			}
		}
		if err := h.Engine.Groups.RecordGroupCompletion(ctx, u, group.ID, true); err != nil {
			return err
		}
	}
	return h.Engine.Groups.MarkSubRoutineStatus(ctx, "user-carol", group.ID, subs[0].ID, true)
}

func (h *Handler) loadShopRushScenario(ctx context.Context) error {
	if err := h.registerUsers(ctx, "user-alice", "Alice", "user-bob", "Bob"); err != nil {
		return err
	}
	for _, u := range []generic.UserID{"user-alice", "user-bob"} {
		if _, err := h.Engine.Rewards.Adjust(ctx, u, generic.Points(500), "scenario funding", "scenario:shop-rush:"+string(u)); err != nil {
			return err
		}
	}

	items := []rewards.Item{
		{ID: "item-coffee", Name: "Coffee voucher", Price: generic.Points(300), Stock: 1},
		{ID: "item-sticker", Name: "Sticker pack", Price: generic.Points(100), Stock: 20},
		{ID: "item-headphones", Name: "Headphones", Price: generic.Points(5000), Stock: 3},
	}
	for _, item := range items {
		if _, err := h.Engine.Shop.CreateItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// registerUsers takes alternating id, nickname pairs.
func (h *Handler) registerUsers(ctx context.Context, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if _, err := h.Engine.Catalog.RegisterUser(ctx, routine.Profile{
			UserID:   generic.UserID(pairs[i]),
			Nickname: pairs[i+1],
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) createRoutine(ctx context.Context, owner generic.UserID, r routine.Routine, subNames ...string) (*routine.Routine, error) {
	created, err := h.Engine.Catalog.CreateRoutine(ctx, owner, r)
	if err != nil {
		return nil, err
	}
	subs := make([]routine.SubRoutine, 0, len(subNames))
	for _, name := range subNames {
		subs = append(subs, routine.SubRoutine{Name: name, DurationMinutes: 10})
	}
	if _, err := h.Engine.Catalog.AddSubRoutines(ctx, owner, created.ID, subs); err != nil {
		return nil, err
	}
	return created, nil
}
