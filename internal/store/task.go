package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hbkim/iljeong/internal/model"
	"github.com/hbkim/iljeong/internal/recurrence"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var recurrenceID sql.NullString
	err := scanner.Scan(
		&t.ID, &t.Title, &t.StartTime, &t.EndTime, &t.Status, &t.UserID,
		&t.Description, &recurrenceID, &t.RecurrenceRule, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if recurrenceID.Valid {
		t.RecurrenceID = &recurrenceID.String
	}
	return &t, nil
}

const taskCols = `id, title, start_time, end_time, status, user_id, description, recurrence_id, recurrence_rule, created_at, updated_at`

// ListByRange returns tasks whose start time falls within [start, end],
// ascending by start time. The filter matches the UI's fetch window:
// start_time >= start AND start_time <= end.
func (s *TaskStore) ListByRange(start, end time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM schedule_items
		 WHERE start_time >= ? AND start_time <= ?
		 ORDER BY start_time ASC`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query schedule items: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule item: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM schedule_items WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule item: %w", err)
	}
	return t, nil
}

// InsertInstances stores all instances of one expansion in a single
// transaction and returns the created tasks in insertion order.
func (s *TaskStore) InsertInstances(instances []recurrence.Instance) ([]model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO schedule_items (title, start_time, end_time, status, user_id, description, recurrence_id, recurrence_rule)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(instances))
	for _, inst := range instances {
		var recurrenceID sql.NullString
		if inst.RecurrenceID != nil {
			recurrenceID = sql.NullString{String: *inst.RecurrenceID, Valid: true}
		}
		result, err := stmt.Exec(
			inst.Title, inst.StartTime.UTC(), inst.EndTime.UTC(), model.StatusPending,
			inst.OwnerID, inst.Description, recurrenceID, string(inst.RecurrenceRule),
		)
		if err != nil {
			return nil, fmt.Errorf("insert schedule item: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}

	tasks := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetByID(id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

// UpdateFields holds a partial update; nil fields are left unchanged.
type UpdateFields struct {
	Title       *string
	StartTime   *time.Time
	EndTime     *time.Time
	Status      *string
	Description *string
	// Detach, when true, removes the instance from its recurrence group:
	// recurrence_id is cleared and the rule reset to none.
	Detach bool
}

func (s *TaskStore) Update(id int64, f UpdateFields) (*model.Task, error) {
	set := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if f.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *f.Title)
	}
	if f.StartTime != nil {
		set = append(set, "start_time = ?")
		args = append(args, f.StartTime.UTC())
	}
	if f.EndTime != nil {
		set = append(set, "end_time = ?")
		args = append(args, f.EndTime.UTC())
	}
	if f.Status != nil {
		set = append(set, "status = ?")
		args = append(args, *f.Status)
	}
	if f.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *f.Description)
	}
	if f.Detach {
		set = append(set, "recurrence_id = NULL", "recurrence_rule = 'none'")
	}
	if len(set) == 0 {
		return s.GetByID(id)
	}

	query := "UPDATE schedule_items SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE id = ?"
	args = append(args, id)

	if _, err := s.db.Exec(query, args...); err != nil {
		return nil, fmt.Errorf("update schedule item: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM schedule_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule item: %w", err)
	}
	return nil
}

// DeleteByRecurrenceID removes every instance of a recurrence group and
// returns the number of rows removed.
func (s *TaskStore) DeleteByRecurrenceID(groupID string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM schedule_items WHERE recurrence_id = ?`, groupID)
	if err != nil {
		return 0, fmt.Errorf("delete recurrence group: %w", err)
	}
	return result.RowsAffected()
}

// ListByRecurrenceID returns all instances of a group, ascending by start
// time.
func (s *TaskStore) ListByRecurrenceID(groupID string) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM schedule_items WHERE recurrence_id = ? ORDER BY start_time ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query recurrence group: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule item: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ListUpcoming returns pending tasks starting within [from, to], used by
// the reminder scheduler.
func (s *TaskStore) ListUpcoming(from, to time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM schedule_items
		 WHERE status = ? AND start_time >= ? AND start_time <= ?
		 ORDER BY start_time ASC`,
		model.StatusPending, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query upcoming items: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule item: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
