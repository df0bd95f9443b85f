// Package executor dispatches validated function calls to the managers
// layer and normalizes their outcomes into a uniform result type.
package executor

import (
	"fmt"
	"strconv"
	"time"

	"tsuzi/internal/managers"
)

// FunctionCall is a structured request produced by the router or the
// fast-path matcher and consumed exactly once by the executor.
type FunctionCall struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

// ArgKind constrains how an argument value is parsed during validation.
type ArgKind int

const (
	// KindString accepts any non-empty string.
	KindString ArgKind = iota
	// KindDuration accepts spoken durations ("10 minutes", "1h 30m").
	KindDuration
	// KindClock accepts wall-clock times ("7am", "14:30").
	KindClock
	// KindDate accepts spoken dates ("today", "next monday", "2026-03-14").
	KindDate
	// KindInt accepts a decimal integer.
	KindInt
)

// ArgSpec declares one argument of a registered function.
type ArgSpec struct {
	Name     string
	Kind     ArgKind
	Required bool
}

// FunctionSpec binds a function name to its owning manager and argument
// schema. The table is static; it is built once and never mutated.
type FunctionSpec struct {
	Name    string
	Manager string
	Args    []ArgSpec
}

var functionTable = map[string]FunctionSpec{
	"set_timer": {
		Name:    "set_timer",
		Manager: managers.TimerManagerID,
		Args: []ArgSpec{
			{Name: "duration", Kind: KindDuration, Required: true},
			{Name: "label", Kind: KindString},
		},
	},
	"cancel_timer": {
		Name:    "cancel_timer",
		Manager: managers.TimerManagerID,
		Args: []ArgSpec{
			{Name: "label", Kind: KindString, Required: true},
		},
	},
	"set_alarm": {
		Name:    "set_alarm",
		Manager: managers.AlarmManagerID,
		Args: []ArgSpec{
			{Name: "time", Kind: KindClock, Required: true},
			{Name: "label", Kind: KindString},
		},
	},
	"create_calendar_event": {
		Name:    "create_calendar_event",
		Manager: managers.CalendarManagerID,
		Args: []ArgSpec{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "date", Kind: KindDate},
			{Name: "time", Kind: KindClock},
			{Name: "duration", Kind: KindInt},
		},
	},
	"add_task": {
		Name:    "add_task",
		Manager: managers.TaskManagerID,
		Args: []ArgSpec{
			{Name: "text", Kind: KindString, Required: true},
			{Name: "priority", Kind: KindString},
		},
	},
	"web_search": {
		Name:    "web_search",
		Manager: managers.NewsManagerID,
		Args: []ArgSpec{
			{Name: "query", Kind: KindString, Required: true},
		},
	},
	"open_app": {
		Name:    "open_app",
		Manager: managers.AppsManagerID,
		Args: []ArgSpec{
			{Name: "name", Kind: KindString, Required: true},
		},
	},
	"play_music": {
		Name:    "play_music",
		Manager: managers.AppsManagerID,
		Args: []ArgSpec{
			{Name: "query", Kind: KindString, Required: true},
		},
	},
	"get_system_info": {
		Name: "get_system_info",
	},
}

// Registered reports whether name is a known function. The router uses this
// to downgrade unknown classifier output before it ever reaches Execute.
func Registered(name string) bool {
	_, ok := functionTable[name]
	return ok
}

// ArgumentError describes a schema violation in a function call.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Field, e.Reason)
}

// Validate checks a call against its declared schema. A nil return means the
// call is safe to execute.
func Validate(call FunctionCall) error {
	spec, ok := functionTable[call.Name]
	if !ok {
		return fmt.Errorf("unknown function %q", call.Name)
	}
	for _, arg := range spec.Args {
		value, present := call.Args[arg.Name]
		if !present || value == "" {
			if arg.Required {
				return &ArgumentError{Field: arg.Name, Reason: "required"}
			}
			continue
		}
		if err := checkKind(arg.Kind, value); err != nil {
			return &ArgumentError{Field: arg.Name, Reason: err.Error()}
		}
	}
	return nil
}

func checkKind(kind ArgKind, value string) error {
	switch kind {
	case KindDuration:
		_, err := managers.ParseDuration(value)
		return err
	case KindClock:
		_, err := managers.NormalizeClockTime(value)
		return err
	case KindDate:
		_, err := managers.ParseEventDate(value, time.Now())
		return err
	case KindInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("not a number")
		}
	}
	return nil
}
