// Package llm wraps the OpenAI-compatible inference backend (Ollama by
// default) behind the three collaborator roles the assistant needs:
// response generation, intent classification, and history summarization.
package llm

import (
	"context"
	"time"
)

// GenerationMode tunes how a passthrough response is generated.
type GenerationMode int

const (
	// ModeNonThinking is for short conversational utterances.
	ModeNonThinking GenerationMode = iota
	// ModeThinking is for queries needing reasoning, math, or multi-step analysis.
	ModeThinking
)

// String returns the mode name.
func (m GenerationMode) String() string {
	if m == ModeThinking {
		return "thinking"
	}
	return "nonthinking"
}

// Message is a single conversation turn sent to the backend.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Generator produces conversational responses.
type Generator interface {
	// Generate streams a response, invoking onToken for each chunk in
	// generation order. It returns the full response text. onToken may be
	// nil when streaming output is not needed.
	Generate(ctx context.Context, system string, history []Message, mode GenerationMode, onToken func(token string)) (string, error)
}

// Classifier maps an utterance to a raw intent payload. The payload is the
// model's loosely-typed output; the router validates it before anything
// downstream sees it.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Summarizer compresses older conversation turns into a rolling summary.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, turns []Message) (string, error)
}

// Completer runs a one-shot prompt and returns the text response. Used by
// the news manager for headline curation.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config configures the backend client.
type Config struct {
	// Endpoint is the OpenAI-compatible base URL.
	Endpoint string
	// APIKey authenticates against the endpoint. Ollama accepts any value.
	APIKey string
	// ChatModel generates conversational responses.
	ChatModel string
	// ClassifierModel routes utterances to functions.
	ClassifierModel string
	// SummaryModel compresses conversation history.
	SummaryModel string
	// Timeout bounds each request.
	Timeout time.Duration
}
