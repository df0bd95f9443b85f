// Package session orchestrates the per-turn lifecycle: capture, routing,
// action or generation, and speech. The session loop is the only writer of
// session state; interruption is the single transition allowed from
// anywhere.
package session

// State is the session lifecycle position.
type State int32

const (
	// StateIdle means no turn is in progress.
	StateIdle State = iota
	// StateListening means input capture is running.
	StateListening
	// StateThinking means routing or generation is in progress.
	StateThinking
	// StateActing means a function call or aggregate query is executing.
	StateActing
	// StateSpeaking means synthesized output is playing.
	StateSpeaking
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateActing:
		return "acting"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}
