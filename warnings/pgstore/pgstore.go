// Package pgstore keeps the warning catalog and infraction ledger in
// Postgres. The schema lives in the migrations package.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/warnbot/warnings"
)

const uniqueViolation = "23505"

// Store implements warnings.Catalog and warnings.Ledger over sqlx.
type Store struct {
	db *sqlx.DB
}

var (
	_ warnings.Catalog = (*Store)(nil)
	_ warnings.Ledger  = (*Store)(nil)
)

// New wraps an open database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type groupRow struct {
	Name       string                     `db:"name"`
	MaxPoints  int64                      `db:"max_points"`
	Punishment jsonb[warnings.Punishment] `db:"punishment"`
}

func (r groupRow) model() warnings.WarningGroup {
	return warnings.WarningGroup{Name: r.Name, MaxPoints: uint64(r.MaxPoints), Punishment: r.Punishment.V}
}

type typeRow struct {
	Trigger       string                       `db:"trigger_name"`
	Points        int64                        `db:"points"`
	GroupSnapshot jsonb[warnings.WarningGroup] `db:"group_snapshot"`
	OnWarn        string                       `db:"on_warn"`
}

func (r typeRow) model() warnings.WarningInfo {
	return warnings.WarningInfo{
		Trigger: r.Trigger,
		Points:  uint64(r.Points),
		Group:   r.GroupSnapshot.V,
		OnWarn:  warnings.OnWarnAction(r.OnWarn),
	}
}

type warningRow struct {
	ID       string                      `db:"id"`
	UserID   int64                       `db:"user_id"`
	ChatID   int64                       `db:"chat_id"`
	Info     jsonb[warnings.WarningInfo] `db:"info"`
	IssuedAt time.Time                   `db:"issued_at"`
}

func toInt64(v uint64, field string) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("pgstore: %s %d out of range", field, v)
	}
	return int64(v), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *Store) FindWarningType(ctx context.Context, trigger string) (warnings.WarningInfo, bool, error) {
	var row typeRow
	err := s.db.GetContext(ctx, &row,
		`SELECT trigger_name, points, group_snapshot, on_warn FROM warning_types WHERE trigger_name = $1`, trigger)
	if errors.Is(err, sql.ErrNoRows) {
		return warnings.WarningInfo{}, false, nil
	}
	if err != nil {
		return warnings.WarningInfo{}, false, fmt.Errorf("pgstore: find warning type: %w", err)
	}
	return row.model(), true, nil
}

func (s *Store) FindGroup(ctx context.Context, name string) (warnings.WarningGroup, bool, error) {
	var row groupRow
	err := s.db.GetContext(ctx, &row,
		`SELECT name, max_points, punishment FROM warning_groups WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return warnings.WarningGroup{}, false, nil
	}
	if err != nil {
		return warnings.WarningGroup{}, false, fmt.Errorf("pgstore: find group: %w", err)
	}
	return row.model(), true, nil
}

func (s *Store) CreateWarningType(ctx context.Context, info warnings.WarningInfo) error {
	points, err := toInt64(info.Points, "points")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO warning_types (trigger_name, points, group_name, group_snapshot, on_warn)
		 VALUES ($1, $2, $3, $4, $5)`,
		info.Trigger, points, info.Group.Name, jsonb[warnings.WarningGroup]{V: info.Group}, string(info.OnWarn))
	if isUniqueViolation(err) {
		return warnings.ErrTriggerExists
	}
	if err != nil {
		return fmt.Errorf("pgstore: create warning type: %w", err)
	}
	return nil
}

func (s *Store) UpsertGroup(ctx context.Context, group warnings.WarningGroup) error {
	maxPoints, err := toInt64(group.MaxPoints, "max_points")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO warning_groups (name, max_points, punishment) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET max_points = EXCLUDED.max_points, punishment = EXCLUDED.punishment`,
		group.Name, maxPoints, jsonb[warnings.Punishment]{V: group.Punishment})
	if err != nil {
		return fmt.Errorf("pgstore: upsert group: %w", err)
	}
	return nil
}

func (s *Store) UpsertWarningType(ctx context.Context, info warnings.WarningInfo) error {
	points, err := toInt64(info.Points, "points")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO warning_types (trigger_name, points, group_name, group_snapshot, on_warn)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (trigger_name) DO UPDATE SET
		     points = EXCLUDED.points,
		     group_name = EXCLUDED.group_name,
		     group_snapshot = EXCLUDED.group_snapshot,
		     on_warn = EXCLUDED.on_warn`,
		info.Trigger, points, info.Group.Name, jsonb[warnings.WarningGroup]{V: info.Group}, string(info.OnWarn))
	if err != nil {
		return fmt.Errorf("pgstore: upsert warning type: %w", err)
	}
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]warnings.WarningGroup, error) {
	var rows []groupRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT name, max_points, punishment FROM warning_groups ORDER BY name`); err != nil {
		return nil, fmt.Errorf("pgstore: list groups: %w", err)
	}
	out := make([]warnings.WarningGroup, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *Store) SumActivePoints(ctx context.Context, userID int64, group string) (uint64, error) {
	var sum int64
	if err := s.db.GetContext(ctx, &sum,
		`SELECT COALESCE(SUM(points), 0)::BIGINT FROM active_warnings WHERE user_id = $1 AND group_name = $2`,
		userID, group); err != nil {
		return 0, fmt.Errorf("pgstore: sum active points: %w", err)
	}
	return uint64(sum), nil
}

func (s *Store) InsertActive(ctx context.Context, w warnings.UserWarning) error {
	points, err := toInt64(w.Info.Points, "points")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO active_warnings (id, user_id, chat_id, group_name, points, info, issued_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		w.ID, w.UserID, w.ChatID, w.Info.Group.Name, points, jsonb[warnings.WarningInfo]{V: w.Info}, w.IssuedAt)
	if err != nil {
		return fmt.Errorf("pgstore: insert active: %w", err)
	}
	return nil
}

// ArchiveActive moves the rows in a single statement, so no reader ever sees
// a record both active and archived or in neither table.
func (s *Store) ArchiveActive(ctx context.Context, userID int64, group string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`WITH moved AS (
		     DELETE FROM active_warnings WHERE user_id = $1 AND group_name = $2
		     RETURNING id, user_id, chat_id, group_name, points, info, issued_at
		 )
		 INSERT INTO archived_warnings (id, user_id, chat_id, group_name, points, info, issued_at)
		 SELECT id, user_id, chat_id, group_name, points, info, issued_at FROM moved`,
		userID, group)
	if err != nil {
		return 0, fmt.Errorf("pgstore: archive active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pgstore: archive active: %w", err)
	}
	return int(n), nil
}

func (s *Store) ActiveWarnings(ctx context.Context, userID int64) ([]warnings.UserWarning, error) {
	var rows []warningRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, chat_id, info, issued_at FROM active_warnings
		 WHERE user_id = $1 ORDER BY issued_at, id`, userID); err != nil {
		return nil, fmt.Errorf("pgstore: active warnings: %w", err)
	}
	out := make([]warnings.UserWarning, 0, len(rows))
	for _, r := range rows {
		out = append(out, warnings.UserWarning{
			ID:       r.ID,
			UserID:   r.UserID,
			ChatID:   r.ChatID,
			Info:     r.Info.V,
			IssuedAt: r.IssuedAt,
		})
	}
	return out, nil
}
