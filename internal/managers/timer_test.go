package managers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"10 minutes", 10 * time.Minute, false},
		{"1 hour", time.Hour, false},
		{"1 hour 30 minutes", 90 * time.Minute, false},
		{"30s", 30 * time.Second, false},
		{"45 sec", 45 * time.Second, false},
		{"2h", 2 * time.Hour, false},
		{"90", 90 * time.Minute, false}, // bare number reads as minutes
		{"1h 2m 3s", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"soon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTimerManager_CreateAndExpire(t *testing.T) {
	m, err := NewTimerManager()
	require.NoError(t, err)
	defer m.Close()

	timer, err := m.Create(20*time.Millisecond, "tea")
	require.NoError(t, err)
	require.Equal(t, "tea", timer.Label)
	require.NotEmpty(t, timer.ID)

	select {
	case fired := <-m.Events():
		require.Equal(t, timer.ID, fired.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	require.Empty(t, m.List())
}

func TestTimerManager_SameLabelReplaces(t *testing.T) {
	m, err := NewTimerManager()
	require.NoError(t, err)
	defer m.Close()

	first, err := m.Create(time.Hour, "tea")
	require.NoError(t, err)
	second, err := m.Create(time.Hour, "tea")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	timers := m.List()
	require.Len(t, timers, 1)
	require.Equal(t, second.ID, timers[0].ID)
}

func TestTimerManager_Cancel(t *testing.T) {
	m, err := NewTimerManager()
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Create(time.Hour, "laundry")
	require.NoError(t, err)

	require.NoError(t, m.Cancel("laundry"))
	require.ErrorIs(t, m.Cancel("laundry"), ErrNotFound)
	require.Empty(t, m.List())
}

func TestTimerManager_Status(t *testing.T) {
	m, err := NewTimerManager()
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Create(90*time.Minute, "roast")
	require.NoError(t, err)

	lines, err := m.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "roast")
	require.Contains(t, lines[0], "remaining")
}

func TestTimer_FormatRemaining(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timer := Timer{Duration: time.Hour + 2*time.Minute + 3*time.Second, StartedAt: started}

	require.Equal(t, "1h 2m 3s", timer.FormatRemaining(started))
	require.Equal(t, "2m 3s", timer.FormatRemaining(started.Add(time.Hour)))
	require.Equal(t, "3s", timer.FormatRemaining(started.Add(time.Hour+2*time.Minute)))
	require.Equal(t, "0s", timer.FormatRemaining(started.Add(2*time.Hour)))
}
