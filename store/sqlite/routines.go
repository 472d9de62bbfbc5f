package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/routine-engine/generic"
	"github.com/warp/routine-engine/routine"
)

var _ routine.Store = (*Store)(nil)

// =============================================================================
// PROFILES
// =============================================================================

func (s *Store) SaveProfile(ctx context.Context, p routine.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, nickname, image_url, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			nickname = excluded.nickname,
			image_url = excluded.image_url
	`, p.UserID, p.Nickname, nullString(p.ImageURL), formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id generic.UserID) (*routine.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, nickname, image_url, created_at FROM users WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) Profiles(ctx context.Context, ids []generic.UserID) ([]routine.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, nickname, image_url, created_at FROM users
		 WHERE id IN (`+placeholders(len(ids))+`) ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []routine.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(row scanner) (routine.Profile, error) {
	var (
		p         routine.Profile
		imageURL  sql.NullString
		createdAt string
	)
	if err := row.Scan(&p.UserID, &p.Nickname, &imageURL, &createdAt); err != nil {
		return p, err
	}
	p.ImageURL = imageURL.String
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

// =============================================================================
// ROUTINES
// =============================================================================

const routineColumns = `r.id, r.owner_id, r.title, r.description, r.routine_type, r.cardinality,
	r.days, r.start_time, r.end_time, r.member_count, r.created_at`

// SaveRoutine inserts or updates a routine. member_count is owned by
// AddMember/RemoveMember and only set on insert.
func (s *Store) SaveRoutine(ctx context.Context, r routine.Routine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO routines (id, owner_id, title, description, routine_type, cardinality,
			days, start_time, end_time, member_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			routine_type = excluded.routine_type,
			days = excluded.days,
			start_time = excluded.start_time,
			end_time = excluded.end_time
	`,
		r.ID, r.OwnerID, r.Title, nullString(r.Description), r.Type, r.Cardinality,
		int(r.Days), nullString(r.StartTime), nullString(r.EndTime), r.MemberCount, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save routine: %w", err)
	}
	return nil
}

func (s *Store) GetRoutine(ctx context.Context, id routine.RoutineID) (*routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+routineColumns+` FROM routines r WHERE r.id = ?`, id)
	r, err := scanRoutine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRoutine removes the routine with its sub-routines, memberships and
// facts.
func (s *Store) DeleteRoutine(ctx context.Context, id routine.RoutineID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM completion_facts WHERE routine_id = ?`,
		`DELETE FROM memberships WHERE routine_id = ?`,
		`DELETE FROM sub_routines WHERE routine_id = ?`,
		`DELETE FROM routines WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete routine: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListRoutines(ctx context.Context, filter routine.RoutineFilter) ([]routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := routineFilterClause(filter)
	query := `SELECT ` + routineColumns + ` FROM routines r WHERE 1 = 1` + where +
		` ORDER BY r.created_at, r.id`
	return s.queryRoutines(ctx, query, args...)
}

func (s *Store) RoutinesForUser(ctx context.Context, userID generic.UserID, filter routine.RoutineFilter) ([]routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.routinesForUser(ctx, userID, filter)
}

func (s *Store) FindDueRoutines(ctx context.Context, userID generic.UserID, weekday time.Weekday) ([]routine.Routine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.routinesForUser(ctx, userID, routine.RoutineFilter{Weekday: &weekday})
}

func (s *Store) routinesForUser(ctx context.Context, userID generic.UserID, filter routine.RoutineFilter) ([]routine.Routine, error) {
	where, args := routineFilterClause(filter)
	query := `
		SELECT ` + routineColumns + `
		FROM routines r
		WHERE ((r.cardinality = ? AND r.owner_id = ?)
		    OR (r.cardinality = ? AND EXISTS (
		          SELECT 1 FROM memberships m WHERE m.routine_id = r.id AND m.user_id = ?)))` +
		where + `
		ORDER BY CASE r.cardinality WHEN ? THEN 0 ELSE 1 END, r.created_at, r.id`

	all := append([]any{routine.Personal, userID, routine.Group, userID}, args...)
	all = append(all, routine.Personal)
	return s.queryRoutines(ctx, query, all...)
}

func routineFilterClause(f routine.RoutineFilter) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	if f.Type != "" {
		sb.WriteString(" AND r.routine_type = ?")
		args = append(args, f.Type)
	}
	if f.Cardinality != "" {
		sb.WriteString(" AND r.cardinality = ?")
		args = append(args, f.Cardinality)
	}
	if f.Weekday != nil {
		sb.WriteString(" AND (r.days & ?) != 0")
		args = append(args, int(routine.NewWeekdaySet(*f.Weekday)))
	}
	return sb.String(), args
}

func (s *Store) queryRoutines(ctx context.Context, query string, args ...any) ([]routine.Routine, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routines: %w", err)
	}
	defer rows.Close()

	var routines []routine.Routine
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, err
		}
		routines = append(routines, r)
	}
	return routines, rows.Err()
}

func scanRoutine(row scanner) (routine.Routine, error) {
	var (
		r           routine.Routine
		description sql.NullString
		days        int
		startTime   sql.NullString
		endTime     sql.NullString
		createdAt   string
	)
	err := row.Scan(&r.ID, &r.OwnerID, &r.Title, &description, &r.Type, &r.Cardinality,
		&days, &startTime, &endTime, &r.MemberCount, &createdAt)
	if err != nil {
		return r, err
	}
	r.Description = description.String
	r.Days = routine.WeekdaySet(days)
	r.StartTime = startTime.String
	r.EndTime = endTime.String
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

// =============================================================================
// SUB-ROUTINES
// =============================================================================

const subRoutineColumns = `id, routine_id, name, emoji, duration_minutes, position`

func (s *Store) SaveSubRoutine(ctx context.Context, sub routine.SubRoutine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sub_routines (`+subRoutineColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			emoji = excluded.emoji,
			duration_minutes = excluded.duration_minutes,
			position = excluded.position
	`, sub.ID, sub.RoutineID, sub.Name, nullString(sub.Emoji), sub.DurationMinutes, sub.Position)
	if err != nil {
		return fmt.Errorf("failed to save sub-routine: %w", err)
	}
	return nil
}

func (s *Store) GetSubRoutine(ctx context.Context, id routine.SubRoutineID) (*routine.SubRoutine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+subRoutineColumns+` FROM sub_routines WHERE id = ?`, id)
	sub, err := scanSubRoutine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// SubRoutines returns the sub-routines of the given routines ordered by
// routine, then position.
func (s *Store) SubRoutines(ctx context.Context, routineIDs ...routine.RoutineID) ([]routine.SubRoutine, error) {
	if len(routineIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	args := make([]any, len(routineIDs))
	for i, id := range routineIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subRoutineColumns+` FROM sub_routines
		 WHERE routine_id IN (`+placeholders(len(routineIDs))+`)
		 ORDER BY routine_id, position, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sub-routines: %w", err)
	}
	defer rows.Close()

	var subs []routine.SubRoutine
	for rows.Next() {
		sub, err := scanSubRoutine(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) DeleteSubRoutine(ctx context.Context, id routine.SubRoutineID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM sub_routines WHERE id = ?`, id)
	return err
}

func scanSubRoutine(row scanner) (routine.SubRoutine, error) {
	var (
		sub   routine.SubRoutine
		emoji sql.NullString
	)
	if err := row.Scan(&sub.ID, &sub.RoutineID, &sub.Name, &emoji, &sub.DurationMinutes, &sub.Position); err != nil {
		return sub, err
	}
	sub.Emoji = emoji.String
	return sub, nil
}

// =============================================================================
// COMPLETION FACTS
// =============================================================================

func (s *Store) FindFacts(ctx context.Context, q routine.FactQuery) ([]routine.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := factWhere(q)
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, routine_id, sub_routine_id, day, done, updated_at
		FROM completion_facts
		WHERE 1 = 1`+where+`
		ORDER BY day, user_id, routine_id, sub_routine_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	var facts []routine.Fact
	for rows.Next() {
		var (
			f         routine.Fact
			day       string
			updatedAt string
		)
		if err := rows.Scan(&f.UserID, &f.RoutineID, &f.SubRoutineID, &day, &f.Done, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		f.Day = parseDay(day)
		f.UpdatedAt = parseTime(updatedAt)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (s *Store) UpsertFact(ctx context.Context, f routine.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completion_facts (user_id, routine_id, sub_routine_id, day, done, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, routine_id, sub_routine_id, day) DO UPDATE SET
			done = excluded.done,
			updated_at = excluded.updated_at
	`, f.UserID, f.RoutineID, string(f.SubRoutineID), f.Day.String(), f.Done, formatTime(f.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert fact: %w", err)
	}
	return nil
}

func (s *Store) InsertFactIfAbsent(ctx context.Context, f routine.Fact) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO completion_facts (user_id, routine_id, sub_routine_id, day, done, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.UserID, f.RoutineID, string(f.SubRoutineID), f.Day.String(), f.Done, formatTime(f.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to insert fact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) DeleteFacts(ctx context.Context, q routine.FactQuery) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, args := factWhere(q)
	res, err := s.db.ExecContext(ctx, `DELETE FROM completion_facts WHERE 1 = 1`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete facts: %w", err)
	}
	return res.RowsAffected()
}

func factWhere(q routine.FactQuery) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	if len(q.Users) > 0 {
		sb.WriteString(" AND user_id IN (" + placeholders(len(q.Users)) + ")")
		for _, u := range q.Users {
			args = append(args, u)
		}
	}
	if len(q.RoutineIDs) > 0 {
		sb.WriteString(" AND routine_id IN (" + placeholders(len(q.RoutineIDs)) + ")")
		for _, id := range q.RoutineIDs {
			args = append(args, id)
		}
	}
	if len(q.SubRoutineIDs) > 0 {
		sb.WriteString(" AND sub_routine_id IN (" + placeholders(len(q.SubRoutineIDs)) + ")")
		for _, id := range q.SubRoutineIDs {
			args = append(args, string(id))
		}
	}
	switch q.Level {
	case routine.RoutineLevel:
		sb.WriteString(" AND sub_routine_id = ''")
	case routine.SubRoutineLevel:
		sb.WriteString(" AND sub_routine_id != ''")
	}
	if !q.From.IsZero() {
		sb.WriteString(" AND day >= ?")
		args = append(args, q.From.String())
	}
	if !q.To.IsZero() {
		sb.WriteString(" AND day < ?")
		args = append(args, q.To.String())
	}
	if q.DoneOnly {
		sb.WriteString(" AND done = 1")
	}
	return sb.String(), args
}

// =============================================================================
// MEMBERSHIPS
// =============================================================================

func (s *Store) GetMembership(ctx context.Context, routineID routine.RoutineID, userID generic.UserID) (*routine.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT routine_id, user_id, owner, joined_at FROM memberships
		 WHERE routine_id = ? AND user_id = ?`, routineID, userID)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Members lists memberships of a routine, owner first, then by join time.
func (s *Store) Members(ctx context.Context, routineID routine.RoutineID) ([]routine.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT routine_id, user_id, owner, joined_at FROM memberships
		 WHERE routine_id = ? ORDER BY owner DESC, joined_at, user_id`, routineID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []routine.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember inserts the membership and increments member_count atomically.
func (s *Store) AddMember(ctx context.Context, m routine.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO memberships (routine_id, user_id, owner, joined_at) VALUES (?, ?, ?, ?)`,
		m.RoutineID, m.UserID, m.Owner, formatTime(m.JoinedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrAlreadyJoined
		}
		return fmt.Errorf("failed to add member: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE routines SET member_count = member_count + 1 WHERE id = ?`, m.RoutineID)
	if err != nil {
		return fmt.Errorf("failed to update member count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.NotFound("routine", string(m.RoutineID))
	}

	return tx.Commit()
}

// RemoveMember deletes the membership and the member's facts for the
// routine, and decrements member_count, never below zero. Removing a
// non-member is a no-op.
func (s *Store) RemoveMember(ctx context.Context, routineID routine.RoutineID, userID generic.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM memberships WHERE routine_id = ? AND user_id = ?`, routineID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE routines SET member_count = MAX(member_count - 1, 0) WHERE id = ?`, routineID)
	if err != nil {
		return fmt.Errorf("failed to update member count: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM completion_facts WHERE routine_id = ? AND user_id = ?`, routineID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete member facts: %w", err)
	}

	return tx.Commit()
}

func scanMembership(row scanner) (routine.Membership, error) {
	var (
		m        routine.Membership
		joinedAt string
	)
	if err := row.Scan(&m.RoutineID, &m.UserID, &m.Owner, &joinedAt); err != nil {
		return m, err
	}
	m.JoinedAt = parseTime(joinedAt)
	return m, nil
}
