package managers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Timer is an in-memory countdown. Timers are ephemeral: they are lost on
// restart by design, unlike alarms.
type Timer struct {
	ID        string        `json:"id"`
	Label     string        `json:"label"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// Remaining returns the time left on the countdown, clamped at zero.
func (t Timer) Remaining(now time.Time) time.Duration {
	left := t.Duration - now.Sub(t.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the countdown has finished.
func (t Timer) Expired(now time.Time) bool { return t.Remaining(now) == 0 }

// FormatRemaining renders the remaining time as "1h 2m 3s".
func (t Timer) FormatRemaining(now time.Time) string {
	secs := int(t.Remaining(now).Round(time.Second).Seconds())
	hours, secs := secs/3600, secs%3600
	mins, secs := secs/60, secs%60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// TimerManager tracks countdowns in memory and emits an event when one
// expires. The events channel is buffered and never blocks the firing
// goroutine; the session loop drains it between turns.
type TimerManager struct {
	mu     sync.Mutex
	timers map[string]*activeTimer
	events chan Timer
	now    func() time.Time
}

type activeTimer struct {
	timer Timer
	stop  *time.Timer
}

// NewTimerManager creates an empty timer manager.
func NewTimerManager() (*TimerManager, error) {
	return &TimerManager{
		timers: make(map[string]*activeTimer),
		events: make(chan Timer, 16),
		now:    time.Now,
	}, nil
}

// ID implements Manager.
func (m *TimerManager) ID() string { return TimerManagerID }

// Events delivers expired timers. Events are dropped if the channel is full.
func (m *TimerManager) Events() <-chan Timer { return m.events }

// Create starts a countdown. A timer with the same label replaces the old one.
func (m *TimerManager) Create(duration time.Duration, label string) (*Timer, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}
	if label == "" {
		label = "Timer"
	}

	t := Timer{
		ID:        uuid.NewString(),
		Label:     label,
		Duration:  duration,
		StartedAt: m.now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.timers[label]; ok {
		prev.stop.Stop()
	}
	m.timers[label] = &activeTimer{
		timer: t,
		stop:  time.AfterFunc(duration, func() { m.fire(label, t.ID) }),
	}
	return &t, nil
}

// fire publishes the expiry event and removes the timer.
func (m *TimerManager) fire(label, id string) {
	m.mu.Lock()
	at, ok := m.timers[label]
	if !ok || at.timer.ID != id {
		m.mu.Unlock()
		return
	}
	delete(m.timers, label)
	t := at.timer
	m.mu.Unlock()

	select {
	case m.events <- t:
	default:
	}
}

// List returns all running timers, pruning any that expired without firing yet.
func (m *TimerManager) List() []Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	timers := make([]Timer, 0, len(m.timers))
	for label, at := range m.timers {
		if at.timer.Expired(now) {
			at.stop.Stop()
			delete(m.timers, label)
			continue
		}
		timers = append(timers, at.timer)
	}
	return timers
}

// Cancel stops a timer by label.
func (m *TimerManager) Cancel(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.timers[label]
	if !ok {
		return ErrNotFound
	}
	at.stop.Stop()
	delete(m.timers, label)
	return nil
}

// Status implements Manager: "<label> with <remaining> remaining".
func (m *TimerManager) Status(ctx context.Context) ([]string, error) {
	now := m.now()
	timers := m.List()
	lines := make([]string, 0, len(timers))
	for _, t := range timers {
		lines = append(lines, fmt.Sprintf("%s with %s remaining", t.Label, t.FormatRemaining(now)))
	}
	return lines, nil
}

// Close implements Manager: stops all countdowns.
func (m *TimerManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for label, at := range m.timers {
		at.stop.Stop()
		delete(m.timers, label)
	}
	return nil
}

var durationPatterns = []struct {
	re   *regexp.Regexp
	unit time.Duration
}{
	{regexp.MustCompile(`(\d+)\s*h(?:our)?s?`), time.Hour},
	{regexp.MustCompile(`(\d+)\s*m(?:in(?:ute)?s?)?`), time.Minute},
	{regexp.MustCompile(`(\d+)\s*s(?:ec(?:ond)?s?)?`), time.Second},
}

var bareNumberRe = regexp.MustCompile(`\d+`)

// ParseDuration converts spoken durations ("10 minutes", "1 hour 30 minutes",
// "30s") to a time.Duration. A bare number is read as minutes.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	var total time.Duration
	rest := s
	for _, p := range durationPatterns {
		if match := p.re.FindStringSubmatch(rest); match != nil {
			n, _ := strconv.Atoi(match[1])
			total += time.Duration(n) * p.unit
			rest = strings.Replace(rest, match[0], "", 1)
		}
	}

	if total == 0 {
		if num := bareNumberRe.FindString(s); num != "" {
			n, _ := strconv.Atoi(num)
			total = time.Duration(n) * time.Minute
		}
	}

	if total <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return total, nil
}
