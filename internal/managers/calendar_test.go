package managers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseEventDate(t *testing.T) {
	// 2025-01-06 is a Monday.
	now := time.Date(2025, 1, 6, 15, 30, 0, 0, time.UTC)
	today := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		input   string
		want    time.Time
		wantErr bool
	}{
		{"today", today, false},
		{"", today, false},
		{"tomorrow", today.AddDate(0, 0, 1), false},
		{"tuesday", today.AddDate(0, 0, 1), false},
		{"monday", today.AddDate(0, 0, 7), false}, // same weekday rolls a week forward
		{"friday", today.AddDate(0, 0, 4), false},
		{"next friday", today.AddDate(0, 0, 11), false},
		{"2025-02-14", time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), false},
		{"someday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEventDate(tt.input, now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestCalendarManager_CreateAndListDay(t *testing.T) {
	ctx := context.Background()
	m, err := NewCalendarManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	day := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	start := day.Add(15 * time.Hour)
	end := start.Add(30 * time.Minute)

	ev, err := m.Create(ctx, "dentist", start, &end, "bring card")
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)

	_, err = m.Create(ctx, "next week thing", day.AddDate(0, 0, 7), nil, "")
	require.NoError(t, err)

	events, err := m.ListDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "dentist", events[0].Title)
	require.NotNil(t, events[0].EndTime)
}

func TestCalendarManager_NilEndTime(t *testing.T) {
	ctx := context.Background()
	m, err := NewCalendarManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	start := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	_, err = m.Create(ctx, "standup", start, nil, "")
	require.NoError(t, err)

	events, err := m.ListDay(ctx, start)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Nil(t, events[0].EndTime)
}

func TestCalendarManager_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	m, err := NewCalendarManager(dataDir)
	require.NoError(t, err)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	created, err := m.Create(ctx, "review", start, nil, "")
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := NewCalendarManager(dataDir)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.ListDay(ctx, start)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, created.ID, events[0].ID)
}

func TestCalendarManager_UpdateDeleteMissing(t *testing.T) {
	ctx := context.Background()
	m, err := NewCalendarManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	require.ErrorIs(t, m.Update(ctx, "nope", "title", ""), ErrNotFound)
	require.ErrorIs(t, m.Delete(ctx, "nope"), ErrNotFound)
}
