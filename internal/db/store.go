package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/taskflow/internal/model"
)

var ErrViewNotFound = errors.New("view not found")

const defaultActivityLimit = 50

// Store keeps client-side state that the backend does not own: saved list
// views and a trail of mutations made from this machine.
type Store struct {
	DB  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, now: time.Now}
}

// SaveView creates the view or, when one with the same name exists, replaces
// its filter and sort.
func (s *Store) SaveView(ctx context.Context, view model.View) (model.View, error) {
	name := strings.TrimSpace(view.Name)
	if name == "" {
		return model.View{}, fmt.Errorf("%w: view name is required", model.ErrInvalid)
	}
	filter := view.Filter
	if filter == nil {
		filter = model.Filter{}
	}
	payload, err := json.Marshal(filter)
	if err != nil {
		return model.View{}, err
	}
	directive := view.Sort
	if directive.Field == "" {
		directive = model.DefaultSort
	}

	stamp := formatTime(s.now())
	if _, err := s.DB.ExecContext(ctx, `
INSERT INTO views (name, filter_json, sort, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
    filter_json = excluded.filter_json,
    sort = excluded.sort,
    updated_at = excluded.updated_at`,
		name, string(payload), directive.String(), stamp, stamp,
	); err != nil {
		return model.View{}, fmt.Errorf("save view %q: %w", name, err)
	}

	return s.GetViewByName(ctx, name)
}

func (s *Store) ListViews(ctx context.Context) ([]model.View, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, filter_json, sort, created_at, updated_at FROM views ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]model.View, 0)
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

func (s *Store) GetViewByName(ctx context.Context, name string) (model.View, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, name, filter_json, sort, created_at, updated_at FROM views WHERE name = ?`, strings.TrimSpace(name))
	view, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.View{}, fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	return view, err
}

func (s *Store) DeleteView(ctx context.Context, name string) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM views WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	return nil
}

func (s *Store) AddActivity(ctx context.Context, entry model.ActivityEntry) (model.ActivityEntry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	result, err := s.DB.ExecContext(ctx, `
INSERT INTO activity (action, task_id, task_name, outcome, message, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Action, entry.TaskID, entry.TaskName, entry.Outcome, entry.Message, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return model.ActivityEntry{}, fmt.Errorf("add activity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.ActivityEntry{}, err
	}
	entry.ID = id
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

// ListActivity returns the newest entries first.
func (s *Store) ListActivity(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, action, task_id, task_name, outcome, message, created_at
FROM activity
ORDER BY id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.ActivityEntry, 0)
	for rows.Next() {
		var entry model.ActivityEntry
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.TaskID, &entry.TaskName, &entry.Outcome, &entry.Message, &createdAt); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanView(row scanner) (model.View, error) {
	var view model.View
	var filterJSON, sortValue, createdAt, updatedAt string
	if err := row.Scan(&view.ID, &view.Name, &filterJSON, &sortValue, &createdAt, &updatedAt); err != nil {
		return model.View{}, err
	}
	if err := json.Unmarshal([]byte(filterJSON), &view.Filter); err != nil {
		return model.View{}, fmt.Errorf("view %q: decode filter: %w", view.Name, err)
	}
	if view.Filter == nil {
		view.Filter = model.Filter{}
	}
	directive, err := model.ParseSort(sortValue)
	if err != nil {
		directive = model.DefaultSort
	}
	view.Sort = directive

	if view.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.View{}, err
	}
	if view.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.View{}, err
	}
	return view, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}
