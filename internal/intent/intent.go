// Package intent turns raw utterances into validated routing decisions.
// The fast-path matcher handles unambiguous latency-critical commands before
// classification; the router validates classifier output so nothing
// downstream ever sees an unchecked function call.
package intent

import (
	"strings"

	"tsuzi/internal/executor"
	"tsuzi/internal/llm"
)

// Category is the routing outcome for an utterance.
type Category int

const (
	// CategoryPassthrough treats the utterance as open-ended conversation.
	CategoryPassthrough Category = iota
	// CategoryAction carries a validated function call.
	CategoryAction
	// CategorySystemQuery requests an aggregate read across all managers.
	CategorySystemQuery
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryAction:
		return "action"
	case CategorySystemQuery:
		return "system_query"
	case CategoryPassthrough:
		return "passthrough"
	default:
		return "unknown"
	}
}

// Intent is a classified utterance. Call is non-nil exactly when Category is
// CategoryAction; Mode is meaningful only for CategoryPassthrough.
type Intent struct {
	Category   Category
	Call       *executor.FunctionCall
	Mode       llm.GenerationMode
	Confidence float64
	RawText    string
}

// thinkingCues mark utterances that benefit from the slower reasoning mode.
var thinkingCues = []string{
	"explain", "why", "how does", "how do", "write", "code", "implement",
	"calculate", "solve", "analyze", "compare", "prove", "step by step",
	"math", "algorithm", "debug",
}

// ModeFor picks the generation mode for a passthrough utterance. Reasoning
// and coding cues select thinking mode; short conversational text does not.
func ModeFor(text string) llm.GenerationMode {
	lower := strings.ToLower(text)
	for _, cue := range thinkingCues {
		if strings.Contains(lower, cue) {
			return llm.ModeThinking
		}
	}
	return llm.ModeNonThinking
}
