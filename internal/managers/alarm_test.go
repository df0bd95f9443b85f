package managers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeClockTime(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"7am", "07:00", false},
		{"7 am", "07:00", false},
		{"6:30 pm", "18:30", false},
		{"14:30", "14:30", false},
		{"12am", "00:00", false},
		{"12pm", "12:00", false},
		{"12:15 am", "00:15", false},
		{"0:00", "00:00", false},
		{"25:00", "", true},
		{"7:75", "", true},
		{"noon", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeClockTime(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestAlarmManager_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()

	m, err := NewAlarmManager(dataDir)
	require.NoError(t, err)

	created, err := m.Create(ctx, "7am", "wake up")
	require.NoError(t, err)
	require.Equal(t, "07:00", created.Time)
	require.NoError(t, m.Close())

	reopened, err := NewAlarmManager(dataDir)
	require.NoError(t, err)
	defer reopened.Close()

	alarms, err := reopened.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	require.Equal(t, created.ID, alarms[0].ID)
	require.Equal(t, "wake up", alarms[0].Label)
	require.True(t, alarms[0].Enabled)
}

func TestAlarmManager_SetEnabledFiltersActive(t *testing.T) {
	ctx := context.Background()
	m, err := NewAlarmManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	a, err := m.Create(ctx, "6:30 pm", "")
	require.NoError(t, err)
	require.Equal(t, "Alarm", a.Label)

	require.NoError(t, m.SetEnabled(ctx, a.ID, false))

	active, err := m.List(ctx, true)
	require.NoError(t, err)
	require.Empty(t, active)

	all, err := m.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestAlarmManager_DeleteMissing(t *testing.T) {
	m, err := NewAlarmManager(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	require.ErrorIs(t, m.Delete(context.Background(), "no-such-id"), ErrNotFound)
}
