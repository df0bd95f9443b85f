package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tsuzi/internal/logging"
	"tsuzi/internal/managers"
)

// ResultKind tags an ExecutionResult variant.
type ResultKind int

const (
	// ResultSuccess carries a speech-ready confirmation.
	ResultSuccess ResultKind = iota
	// ResultDeclined means the call was understood but could not be served.
	ResultDeclined
	// ResultManagerUnavailable means the owning manager failed to initialize
	// or its backend is down.
	ResultManagerUnavailable
	// ResultValidationError means the arguments violated the declared schema.
	ResultValidationError
)

// ExecutionResult is the uniform outcome of a dispatched function call.
// Exactly one variant applies; the session loop turns it into user-facing
// language, never the executor.
type ExecutionResult struct {
	Kind    ResultKind
	Speech  string // Success: confirmation text
	Reason  string // Declined / ValidationError
	Field   string // ValidationError: offending argument
	Manager string // ManagerUnavailable: owning manager id
	Cause   error  // ManagerUnavailable: cached init or backend error
}

func success(format string, args ...any) ExecutionResult {
	return ExecutionResult{Kind: ResultSuccess, Speech: fmt.Sprintf(format, args...)}
}

func declined(format string, args ...any) ExecutionResult {
	return ExecutionResult{Kind: ResultDeclined, Reason: fmt.Sprintf(format, args...)}
}

func unavailable(managerID string, cause error) ExecutionResult {
	return ExecutionResult{Kind: ResultManagerUnavailable, Manager: managerID, Cause: cause}
}

// Executor resolves function calls to manager operations through the
// registry. Mutating operations run exactly once; a failure is surfaced to
// the caller, never retried here.
type Executor struct {
	registry *managers.Registry
	log      zerolog.Logger
	now      func() time.Time
}

// New creates an executor over the given registry.
func New(registry *managers.Registry) *Executor {
	return &Executor{
		registry: registry,
		log:      logging.Component("executor"),
		now:      time.Now,
	}
}

// Execute dispatches a call. The call must already be validated; an invalid
// call still comes back as a typed result rather than a fault.
func (e *Executor) Execute(ctx context.Context, call FunctionCall) ExecutionResult {
	spec, ok := functionTable[call.Name]
	if !ok {
		return declined("I don't know how to do that")
	}
	if err := Validate(call); err != nil {
		var argErr *ArgumentError
		if errors.As(err, &argErr) {
			return ExecutionResult{Kind: ResultValidationError, Field: argErr.Field, Reason: argErr.Reason}
		}
		return ExecutionResult{Kind: ResultValidationError, Reason: err.Error()}
	}

	e.log.Debug().Str("function", call.Name).Msg("executing")

	if call.Name == "get_system_info" {
		return e.systemInfo(ctx)
	}

	mgr, err := e.registry.Get(spec.Manager)
	if err != nil {
		return unavailable(spec.Manager, err)
	}

	switch call.Name {
	case "set_timer":
		return e.setTimer(mgr, call.Args)
	case "cancel_timer":
		return e.cancelTimer(mgr, call.Args)
	case "set_alarm":
		return e.setAlarm(ctx, mgr, call.Args)
	case "create_calendar_event":
		return e.createEvent(ctx, mgr, call.Args)
	case "add_task":
		return e.addTask(ctx, mgr, call.Args)
	case "web_search":
		return e.webSearch(ctx, mgr, call.Args)
	case "open_app":
		return e.openApp(ctx, mgr, call.Args)
	case "play_music":
		return e.playMusic(ctx, mgr, call.Args)
	}
	return declined("I don't know how to do that")
}

func (e *Executor) setTimer(mgr managers.Manager, args map[string]string) ExecutionResult {
	tm, ok := mgr.(*managers.TimerManager)
	if !ok {
		return unavailable(managers.TimerManagerID, fmt.Errorf("unexpected manager type %T", mgr))
	}
	duration, err := managers.ParseDuration(args["duration"])
	if err != nil {
		return ExecutionResult{Kind: ResultValidationError, Field: "duration", Reason: err.Error()}
	}
	timer, err := tm.Create(duration, args["label"])
	if err != nil {
		return declined("I couldn't start that timer")
	}
	return success("%s set for %s", timer.Label, speakDuration(duration))
}

func (e *Executor) cancelTimer(mgr managers.Manager, args map[string]string) ExecutionResult {
	tm, ok := mgr.(*managers.TimerManager)
	if !ok {
		return unavailable(managers.TimerManagerID, fmt.Errorf("unexpected manager type %T", mgr))
	}
	label := args["label"]
	if err := tm.Cancel(label); err != nil {
		if errors.Is(err, managers.ErrNotFound) {
			return declined("there's no timer called %s", label)
		}
		return declined("I couldn't cancel that timer")
	}
	return success("cancelled the %s timer", label)
}

func (e *Executor) setAlarm(ctx context.Context, mgr managers.Manager, args map[string]string) ExecutionResult {
	am, ok := mgr.(*managers.AlarmManager)
	if !ok {
		return unavailable(managers.AlarmManagerID, fmt.Errorf("unexpected manager type %T", mgr))
	}
	alarm, err := am.Create(ctx, args["time"], args["label"])
	if err != nil {
		return declined("I couldn't set that alarm")
	}
	return success("%s set for %s", alarm.Label, alarm.Time)
}

func (e *Executor) createEvent(ctx context.Context, mgr managers.Manager, args map[string]string) ExecutionResult {
	cm, ok := mgr.(*managers.CalendarManager)
	if !ok {
		return unavailable(managers.CalendarManagerID, fmt.Errorf("unexpected manager type %T", mgr))
	}

	day, err := managers.ParseEventDate(args["date"], e.now())
	if err != nil {
		return ExecutionResult{Kind: ResultValidationError, Field: "date", Reason: err.Error()}
	}
	start := day.Add(9 * time.Hour) // default to 9 AM when no time given
	if clock := args["time"]; clock != "" {
		normalized, err := managers.NormalizeClockTime(clock)
		if err != nil {
			return ExecutionResult{Kind: ResultValidationError, Field: "time", Reason: err.Error()}
		}
		hour, _ := strconv.Atoi(normalized[:2])
		minute, _ := strconv.Atoi(normalized[3:])
		start = day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	}

	var end *time.Time
	if mins := args["duration"]; mins != "" {
		n, _ := strconv.Atoi(mins)
		if n > 0 {
			t := start.Add(time.Duration(n) * time.Minute)
			end = &t
		}
	}

	ev, err := cm.Create(ctx, args["title"], start, end, "")
	if err != nil {
		return declined("I couldn't add that to your calendar")
	}
	return success("added %s to your calendar for %s", ev.Title, start.Format("Monday at 3:04 PM"))
}

func (e *Executor) addTask(ctx context.Context, mgr managers.Manager, args map[string]string) ExecutionResult {
	tm, ok := mgr.(*managers.TaskManager)
	if !ok {
		return unavailable(managers.TaskManagerID, fmt.Errorf("unexpected manager type %T", mgr))
	}
	task, err := tm.Create(ctx, args["text"], args["priority"])
	if err != nil {
		return declined("I couldn't save that task")
	}
	return success("added task: %s", task.Text)
}

func (e *Executor) webSearch(ctx context.Context, mgr managers.Manager, args map[string]string) ExecutionResult {
	nm, ok := mgr.(*managers.NewsManager)
	if !ok {
		return unavailable(managers.NewsManagerID, fmt.Errorf("unexpected manager type %T", mgr))
	}
	results, err := nm.Search(ctx, args["query"])
	if err != nil {
		return unavailable(managers.NewsManagerID, err)
	}
	if len(results) == 0 {
		return declined("I didn't find anything for %s", args["query"])
	}
	titles := make([]string, len(results))
	for i, r := range results {
		titles[i] = r.Title
	}
	return success("here's what I found. %s", strings.Join(titles, ". "))
}

func (e *Executor) openApp(ctx context.Context, mgr managers.Manager, args map[string]string) ExecutionResult {
	am, ok := mgr.(*managers.AppsManager)
	if !ok {
		return unavailable(managers.AppsManagerID, fmt.Errorf("unexpected manager type %T", mgr))
	}
	name := args["name"]
	if err := am.OpenApp(ctx, name); err != nil {
		return declined("I couldn't open %s", name)
	}
	return success("opened %s for you", name)
}

func (e *Executor) playMusic(ctx context.Context, mgr managers.Manager, args map[string]string) ExecutionResult {
	am, ok := mgr.(*managers.AppsManager)
	if !ok {
		return unavailable(managers.AppsManagerID, fmt.Errorf("unexpected manager type %T", mgr))
	}
	query := args["query"]
	if err := am.PlayMusic(ctx, query); err != nil {
		return declined("I couldn't open Spotify")
	}
	return success("opening Spotify for %s", query)
}

// systemInfo aggregates status across every manager. A failed manager
// contributes an unavailable line without hiding the rest.
func (e *Executor) systemInfo(ctx context.Context) ExecutionResult {
	entries := e.registry.SnapshotAll(ctx)
	var parts []string
	for _, entry := range entries {
		switch {
		case !entry.Available:
			parts = append(parts, fmt.Sprintf("%s are unavailable", entry.Manager))
		case len(entry.Lines) == 0:
			continue
		default:
			parts = append(parts, fmt.Sprintf("%s: %s", entry.Manager, strings.Join(entry.Lines, ", ")))
		}
	}
	if len(parts) == 0 {
		return success("nothing on your plate right now")
	}
	return success("%s", strings.Join(parts, ". "))
}

// speakDuration renders a duration the way it would be said aloud.
func speakDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	hours, secs := secs/3600, secs%3600
	mins, secs := secs/60, secs%60

	var parts []string
	if hours == 1 {
		parts = append(parts, "1 hour")
	} else if hours > 1 {
		parts = append(parts, fmt.Sprintf("%d hours", hours))
	}
	if mins == 1 {
		parts = append(parts, "1 minute")
	} else if mins > 1 {
		parts = append(parts, fmt.Sprintf("%d minutes", mins))
	}
	if secs == 1 {
		parts = append(parts, "1 second")
	} else if secs > 1 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d seconds", secs))
	}
	return strings.Join(parts, " ")
}
