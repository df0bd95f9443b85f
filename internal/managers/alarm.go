package managers

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const alarmSchema = `
CREATE TABLE IF NOT EXISTS alarms (
	id       TEXT PRIMARY KEY,
	time     TEXT NOT NULL,
	label    TEXT NOT NULL DEFAULT 'Alarm',
	enabled  INTEGER NOT NULL DEFAULT 1,
	notified INTEGER NOT NULL DEFAULT 0
);
`

// Alarm is a daily wall-clock alarm. Alarms persist across restarts.
type Alarm struct {
	ID      string `json:"id"`
	Time    string `json:"time"` // HH:MM
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

// AlarmManager persists alarms in alarms.db.
type AlarmManager struct {
	db *sql.DB
}

// NewAlarmManager opens the alarm store under dataDir.
func NewAlarmManager(dataDir string) (*AlarmManager, error) {
	db, err := openStore(dataDir, "alarms.db", alarmSchema)
	if err != nil {
		return nil, err
	}
	return &AlarmManager{db: db}, nil
}

// ID implements Manager.
func (m *AlarmManager) ID() string { return AlarmManagerID }

// Create adds an alarm. The time is normalized to HH:MM; "7am", "14:30",
// and "6:30 pm" are all accepted.
func (m *AlarmManager) Create(ctx context.Context, timeStr, label string) (*Alarm, error) {
	normalized, err := NormalizeClockTime(timeStr)
	if err != nil {
		return nil, err
	}
	if label == "" {
		label = "Alarm"
	}
	alarm := &Alarm{
		ID:      uuid.NewString(),
		Time:    normalized,
		Label:   label,
		Enabled: true,
	}
	_, err = m.db.ExecContext(ctx,
		"INSERT INTO alarms (id, time, label, enabled) VALUES (?, ?, ?, 1)",
		alarm.ID, alarm.Time, alarm.Label)
	if err != nil {
		return nil, fmt.Errorf("insert alarm: %w", err)
	}
	return alarm, nil
}

// List returns alarms ordered by trigger time. With activeOnly set, disabled
// alarms are filtered out.
func (m *AlarmManager) List(ctx context.Context, activeOnly bool) ([]Alarm, error) {
	query := "SELECT id, time, label, enabled FROM alarms ORDER BY time ASC"
	if activeOnly {
		query = "SELECT id, time, label, enabled FROM alarms WHERE enabled = 1 ORDER BY time ASC"
	}
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query alarms: %w", err)
	}
	defer rows.Close()

	var alarms []Alarm
	for rows.Next() {
		var a Alarm
		if err := rows.Scan(&a.ID, &a.Time, &a.Label, &a.Enabled); err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		alarms = append(alarms, a)
	}
	return alarms, rows.Err()
}

// SetEnabled enables or disables an alarm.
func (m *AlarmManager) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := m.db.ExecContext(ctx, "UPDATE alarms SET enabled = ? WHERE id = ?", enabled, id)
	if err != nil {
		return fmt.Errorf("update alarm: %w", err)
	}
	return requireOneRow(res)
}

// Delete removes an alarm by id.
func (m *AlarmManager) Delete(ctx context.Context, id string) error {
	res, err := m.db.ExecContext(ctx, "DELETE FROM alarms WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alarm: %w", err)
	}
	return requireOneRow(res)
}

// Status implements Manager: "<label> at <time>" for active alarms.
func (m *AlarmManager) Status(ctx context.Context) ([]string, error) {
	alarms, err := m.List(ctx, true)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(alarms))
	for _, a := range alarms {
		lines = append(lines, fmt.Sprintf("%s at %s", a.Label, a.Time))
	}
	return lines, nil
}

// Close implements Manager.
func (m *AlarmManager) Close() error { return closeStore(m.db) }

var clockTimeRe = regexp.MustCompile(`^(\d{1,2}):?(\d{2})?\s*(am|pm)?$`)

// NormalizeClockTime converts spoken time forms ("7am", "6:30 pm", "14:30")
// to canonical HH:MM.
func NormalizeClockTime(s string) (string, error) {
	match := clockTimeRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if match == nil {
		return "", fmt.Errorf("invalid time %q", s)
	}

	hour, _ := strconv.Atoi(match[1])
	minute := 0
	if match[2] != "" {
		minute, _ = strconv.Atoi(match[2])
	}
	switch match[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return "", fmt.Errorf("invalid time %q", s)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}
