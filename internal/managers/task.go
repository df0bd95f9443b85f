package managers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const taskSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	priority   TEXT NOT NULL DEFAULT '',
	done       INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Task is a single to-do entry.
type Task struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Priority  string    `json:"priority,omitempty"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskManager persists to-do items in tasks.db. Every mutation commits
// before returning.
type TaskManager struct {
	db *sql.DB
}

// NewTaskManager opens the task store under dataDir.
func NewTaskManager(dataDir string) (*TaskManager, error) {
	db, err := openStore(dataDir, "tasks.db", taskSchema)
	if err != nil {
		return nil, err
	}
	return &TaskManager{db: db}, nil
}

// ID implements Manager.
func (m *TaskManager) ID() string { return TaskManagerID }

// Create adds a task and returns it with a fresh unique id.
func (m *TaskManager) Create(ctx context.Context, text, priority string) (*Task, error) {
	if text == "" {
		return nil, fmt.Errorf("task text must not be empty")
	}
	task := &Task{
		ID:        uuid.NewString(),
		Text:      text,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
	_, err := m.db.ExecContext(ctx,
		"INSERT INTO tasks (id, text, priority, done, created_at) VALUES (?, ?, ?, 0, ?)",
		task.ID, task.Text, task.Priority, task.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// List returns tasks ordered by creation time. With pendingOnly set,
// completed tasks are filtered out.
func (m *TaskManager) List(ctx context.Context, pendingOnly bool) ([]Task, error) {
	query := "SELECT id, text, priority, done, created_at FROM tasks ORDER BY created_at ASC"
	if pendingOnly {
		query = "SELECT id, text, priority, done, created_at FROM tasks WHERE done = 0 ORDER BY created_at ASC"
	}
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Text, &t.Priority, &t.Done, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SetDone marks a task complete or pending.
func (m *TaskManager) SetDone(ctx context.Context, id string, done bool) error {
	res, err := m.db.ExecContext(ctx, "UPDATE tasks SET done = ? WHERE id = ?", done, id)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireOneRow(res)
}

// Update replaces a task's text.
func (m *TaskManager) Update(ctx context.Context, id, text string) error {
	if text == "" {
		return fmt.Errorf("task text must not be empty")
	}
	res, err := m.db.ExecContext(ctx, "UPDATE tasks SET text = ? WHERE id = ?", text, id)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireOneRow(res)
}

// Delete removes a task by id.
func (m *TaskManager) Delete(ctx context.Context, id string) error {
	res, err := m.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireOneRow(res)
}

// Status implements Manager: pending task texts, oldest first.
func (m *TaskManager) Status(ctx context.Context) ([]string, error) {
	tasks, err := m.List(ctx, true)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, t.Text)
	}
	return lines, nil
}

// Close implements Manager.
func (m *TaskManager) Close() error { return closeStore(m.db) }

// requireOneRow converts a zero-row mutation into ErrNotFound.
func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
