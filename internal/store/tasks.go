package store

import (
	"database/sql"
	"fmt"
	"time"
)

// TaskStatus enumerates the valid values of Task.Status.
type TaskStatus string

const (
	TaskStatusTodo      TaskStatus = "todo"
	TaskStatusDone      TaskStatus = "done"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task mirrors the Task record in §3: id is the lowest positive
// integer not currently assigned to an active (todo) task.
type Task struct {
	ID        int64
	Title     string
	Status    TaskStatus
	DueDate   *string
	CreatedAt string
	UpdatedAt string
}

// Tasks is the typed view over the shared DB for task operations.
type Tasks struct {
	db *DB
}

// NewTasks returns a Tasks store bound to db.
func NewTasks(db *DB) *Tasks { return &Tasks{db: db} }

// Create inserts a new task with status "todo", assigning the lowest
// id not currently held by an active task.
func (t *Tasks) Create(title string, dueDate *string) (Task, error) {
	tx, err := t.db.conn.Begin()
	if err != nil {
		return Task{}, fmt.Errorf("tasks: create: %w", err)
	}
	defer tx.Rollback()

	id, err := lowestFreeID(tx, "tasks", "status = 'todo'")
	if err != nil {
		return Task{}, fmt.Errorf("tasks: create: assign id: %w", err)
	}

	// id is only guaranteed free of active (todo) tasks; a done or
	// cancelled task may still hold the row, so clear it before the
	// insert below or the primary-key constraint rejects the reuse.
	if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return Task{}, fmt.Errorf("tasks: create: clear stale id: %w", err)
	}

	now := nowISO()
	_, err = tx.Exec(
		`INSERT INTO tasks (id, title, status, due_date, created_at, updated_at)
		 VALUES (?, ?, 'todo', ?, ?, ?)`,
		id, title, dueDate, now, now,
	)
	if err != nil {
		return Task{}, fmt.Errorf("tasks: create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("tasks: create: %w", err)
	}

	return Task{ID: id, Title: title, Status: TaskStatusTodo, DueDate: dueDate, CreatedAt: now, UpdatedAt: now}, nil
}

// Get fetches one task by id.
func (t *Tasks) Get(id int64) (Task, error) {
	return scanTask(t.db.conn.QueryRow(
		`SELECT id, title, status, due_date, created_at, updated_at FROM tasks WHERE id = ?`, id,
	))
}

// List returns all tasks, optionally including done/cancelled ones.
func (t *Tasks) List(includeDone bool) ([]Task, error) {
	query := `SELECT id, title, status, due_date, created_at, updated_at FROM tasks`
	if !includeDone {
		query += ` WHERE status = 'todo'`
	}
	query += ` ORDER BY id ASC`

	rows, err := t.db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("tasks: list: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Upcoming returns todo tasks with a due_date within the next `days`
// days, ordered by due date, truncated to limit (0 means unlimited).
func (t *Tasks) Upcoming(days, limit int) ([]Task, error) {
	cutoff := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
	query := `SELECT id, title, status, due_date, created_at, updated_at FROM tasks
	          WHERE status = 'todo' AND due_date IS NOT NULL AND due_date <= ?
	          ORDER BY due_date ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := t.db.conn.Query(query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("tasks: upcoming: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, fmt.Errorf("tasks: upcoming: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Update applies non-nil fields to the task with the given id.
func (t *Tasks) Update(id int64, title *string, status *TaskStatus, dueDate *string, clearDueDate bool) (Task, error) {
	existing, err := t.Get(id)
	if err != nil {
		return Task{}, err
	}
	if title != nil {
		existing.Title = *title
	}
	if status != nil {
		existing.Status = *status
	}
	if clearDueDate {
		existing.DueDate = nil
	} else if dueDate != nil {
		existing.DueDate = dueDate
	}
	existing.UpdatedAt = nowISO()

	_, err = t.db.conn.Exec(
		`UPDATE tasks SET title = ?, status = ?, due_date = ?, updated_at = ? WHERE id = ?`,
		existing.Title, existing.Status, existing.DueDate, existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		return Task{}, fmt.Errorf("tasks: update %d: %w", id, err)
	}
	return existing, nil
}

// Delete removes a task by id.
func (t *Tasks) Delete(id int64) error {
	_, err := t.db.conn.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("tasks: delete %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	return scanTaskRow(row)
}

func scanTaskRow(row rowScanner) (Task, error) {
	var task Task
	var dueDate sql.NullString
	if err := row.Scan(&task.ID, &task.Title, &task.Status, &dueDate, &task.CreatedAt, &task.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Task{}, fmt.Errorf("tasks: not found")
		}
		return Task{}, err
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.String
	}
	return task, nil
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
