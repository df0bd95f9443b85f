package managers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const calendarSchema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	start_time TIMESTAMP NOT NULL,
	end_time   TIMESTAMP,
	notes      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time);
`

// CalendarEvent is a scheduled event. Events persist across restarts.
type CalendarEvent struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// CalendarManager persists events in calendar.db.
type CalendarManager struct {
	db  *sql.DB
	now func() time.Time
}

// NewCalendarManager opens the calendar store under dataDir.
func NewCalendarManager(dataDir string) (*CalendarManager, error) {
	db, err := openStore(dataDir, "calendar.db", calendarSchema)
	if err != nil {
		return nil, err
	}
	return &CalendarManager{db: db, now: time.Now}, nil
}

// ID implements Manager.
func (m *CalendarManager) ID() string { return CalendarManagerID }

// Create adds an event. A zero end time stores NULL.
func (m *CalendarManager) Create(ctx context.Context, title string, start time.Time, end *time.Time, notes string) (*CalendarEvent, error) {
	if title == "" {
		return nil, fmt.Errorf("event title must not be empty")
	}
	ev := &CalendarEvent{
		ID:        uuid.NewString(),
		Title:     title,
		StartTime: start,
		EndTime:   end,
		Notes:     notes,
	}
	_, err := m.db.ExecContext(ctx,
		"INSERT INTO events (id, title, start_time, end_time, notes) VALUES (?, ?, ?, ?, ?)",
		ev.ID, ev.Title, ev.StartTime, ev.EndTime, ev.Notes)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

// ListDay returns events starting on the given day, earliest first.
func (m *CalendarManager) ListDay(ctx context.Context, day time.Time) ([]CalendarEvent, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	rows, err := m.db.QueryContext(ctx,
		"SELECT id, title, start_time, end_time, notes FROM events WHERE start_time >= ? AND start_time < ? ORDER BY start_time ASC",
		start, end)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListUpcoming returns events starting at or after now, earliest first.
func (m *CalendarManager) ListUpcoming(ctx context.Context, limit int) ([]CalendarEvent, error) {
	rows, err := m.db.QueryContext(ctx,
		"SELECT id, title, start_time, end_time, notes FROM events WHERE start_time >= ? ORDER BY start_time ASC LIMIT ?",
		m.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Update replaces an event's title and notes.
func (m *CalendarManager) Update(ctx context.Context, id, title, notes string) error {
	if title == "" {
		return fmt.Errorf("event title must not be empty")
	}
	res, err := m.db.ExecContext(ctx, "UPDATE events SET title = ?, notes = ? WHERE id = ?", title, notes, id)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return requireOneRow(res)
}

// Delete removes an event by id.
func (m *CalendarManager) Delete(ctx context.Context, id string) error {
	res, err := m.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return requireOneRow(res)
}

// Status implements Manager: today's events as "<title> at <time>".
func (m *CalendarManager) Status(ctx context.Context) ([]string, error) {
	events, err := m.ListDay(ctx, m.now())
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("%s at %s", ev.Title, ev.StartTime.Format("3:04 PM")))
	}
	return lines, nil
}

// Close implements Manager.
func (m *CalendarManager) Close() error { return closeStore(m.db) }

func scanEvents(rows *sql.Rows) ([]CalendarEvent, error) {
	var events []CalendarEvent
	for rows.Next() {
		var ev CalendarEvent
		var end sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.StartTime, &end, &ev.Notes); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if end.Valid {
			t := end.Time
			ev.EndTime = &t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ParseEventDate resolves spoken dates ("today", "tomorrow", "next monday",
// "2026-03-14") relative to now.
func ParseEventDate(s string, now time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch s {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	weekdays := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	for i, day := range weekdays {
		if !strings.Contains(s, day) {
			continue
		}
		ahead := (i - int(now.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		if strings.Contains(s, "next") {
			ahead += 7
		}
		return today.AddDate(0, 0, ahead), nil
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
