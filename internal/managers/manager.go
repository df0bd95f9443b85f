// Package managers contains the assistant's capability units: isolated,
// independently-failing subsystems (tasks, alarms, timers, calendar,
// weather, news, apps) and the registry that lazily constructs them.
package managers

import (
	"context"
	"errors"
	"fmt"
)

// Manager identifiers used by the registry and the executor's dispatch table.
const (
	TaskManagerID     = "tasks"
	AlarmManagerID    = "alarms"
	TimerManagerID    = "timers"
	CalendarManagerID = "calendar"
	WeatherManagerID  = "weather"
	NewsManagerID     = "news"
	AppsManagerID     = "apps"
)

// Manager is a single capability unit. Each manager owns its own state and
// optional persistent store; none depends on another.
type Manager interface {
	// ID returns the registry identifier.
	ID() string

	// Status reports the manager's current state as speech-ready lines for
	// aggregate system queries. A manager with nothing to report returns an
	// empty slice.
	Status(ctx context.Context) ([]string, error)

	// Close releases any resources held by the manager.
	Close() error
}

// ErrNotFound reports that a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// TransientError wraps a network or backend failure that may succeed on
// retry. The executor and session loop treat it as retryable.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
