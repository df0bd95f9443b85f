package intent

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"tsuzi/internal/executor"
	"tsuzi/internal/llm"
	"tsuzi/internal/logging"
)

// DefaultConfidenceThreshold is the minimum confidence for forwarding an
// ACTION. Below it the router downgrades to passthrough. The right value is
// a tunable, not a constant of nature; both sides of the boundary are
// exercised in tests.
const DefaultConfidenceThreshold = 0.5

// Parse confidence tiers. The classifier does not report its own confidence,
// so the router scores how cleanly the payload parsed instead.
const (
	confidenceParsed   = 0.9 // function name and arguments both extracted
	confidenceFallback = 0.6 // function name matched, arguments guessed from the utterance
)

// classifierFunctions is the scan order for payload parsing. Deterministic
// order keeps "thinking" from ever being confused with "nonthinking".
var classifierFunctions = []string{
	"cancel_timer", "set_timer", "set_alarm", "create_calendar_event",
	"add_task", "web_search", "get_system_info", "thinking", "nonthinking",
}

// Stats tracks routing outcomes. All counters are guarded by the router's
// mutex; Stats() returns a copy.
type Stats struct {
	TotalRequests     int64
	ActionCount       int64
	SystemQueryCount  int64
	PassthroughCount  int64
	DowngradeCount    int64
	ClassifierErrors  int64
	AverageConfidence float64
}

// Router validates classifier output into strict Intents. Classifier errors
// and malformed payloads always fail open to conversation, never to action
// execution.
type Router struct {
	classifier llm.Classifier
	threshold  float64
	debug      bool
	log        zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// Option configures a Router.
type Option func(*Router)

// WithConfidenceThreshold overrides the ACTION forwarding threshold.
func WithConfidenceThreshold(threshold float64) Option {
	return func(r *Router) { r.threshold = threshold }
}

// WithDebugLogging logs raw classifier payloads at debug level.
func WithDebugLogging(enabled bool) Option {
	return func(r *Router) { r.debug = enabled }
}

// NewRouter creates a router over the given classifier.
func NewRouter(classifier llm.Classifier, opts ...Option) *Router {
	r := &Router{
		classifier: classifier,
		threshold:  DefaultConfidenceThreshold,
		log:        logging.Component("router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify routes an utterance. The returned Intent always satisfies the
// category invariants: only ACTION carries a call, and that call has already
// passed schema validation.
func (r *Router) Classify(ctx context.Context, text string) Intent {
	payload, err := r.classifier.Classify(ctx, text)
	if err != nil {
		r.log.Warn().Err(err).Msg("classifier unavailable, falling back to conversation")
		r.record(Intent{}, true, false)
		return r.passthrough(text, llm.ModeNonThinking, 0)
	}
	if r.debug {
		r.log.Debug().Str("payload", payload).Str("text", text).Msg("classifier raw payload")
	}

	name, args, confidence := parsePayload(payload, text)

	intent := r.resolve(name, args, confidence, text)
	r.record(intent, false, intent.Category == CategoryPassthrough && name != "" && name != "thinking" && name != "nonthinking")
	return intent
}

// resolve maps a parsed payload onto the intent taxonomy, downgrading
// anything the executor would reject.
func (r *Router) resolve(name string, args map[string]string, confidence float64, text string) Intent {
	switch name {
	case "", "nonthinking":
		return r.passthrough(text, llm.ModeNonThinking, confidence)
	case "thinking":
		return r.passthrough(text, llm.ModeThinking, confidence)
	case "get_system_info":
		return Intent{Category: CategorySystemQuery, Confidence: confidence, RawText: text}
	}

	if !executor.Registered(name) {
		r.log.Warn().Str("function", name).Msg("unknown function from classifier, downgrading")
		return r.passthrough(text, ModeFor(text), confidence)
	}

	call := executor.FunctionCall{Name: name, Args: args}
	if err := executor.Validate(call); err != nil {
		r.log.Warn().Err(err).Str("function", name).Msg("invalid arguments from classifier, downgrading")
		return r.passthrough(text, ModeFor(text), confidence)
	}

	if confidence < r.threshold {
		r.log.Debug().Str("function", name).Float64("confidence", confidence).Msg("below threshold, downgrading")
		return r.passthrough(text, ModeFor(text), confidence)
	}

	return Intent{Category: CategoryAction, Call: &call, Confidence: confidence, RawText: text}
}

func (r *Router) passthrough(text string, mode llm.GenerationMode, confidence float64) Intent {
	return Intent{Category: CategoryPassthrough, Mode: mode, Confidence: confidence, RawText: text}
}

func (r *Router) record(intent Intent, classifierErr, downgraded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.TotalRequests++
	switch intent.Category {
	case CategoryAction:
		r.stats.ActionCount++
	case CategorySystemQuery:
		r.stats.SystemQueryCount++
	default:
		r.stats.PassthroughCount++
	}
	if classifierErr {
		r.stats.ClassifierErrors++
	}
	if downgraded {
		r.stats.DowngradeCount++
	}
	total := float64(r.stats.TotalRequests)
	r.stats.AverageConfidence = (r.stats.AverageConfidence*(total-1) + intent.Confidence) / total
}

// Stats returns a copy of the routing statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

var argRe = regexp.MustCompile(`(\w+):(?:<escape>([^<]*)<escape>|([^,]+))`)

// parsePayload extracts a function name and string arguments from the
// classifier's wire format:
//
//	call:func_name{key:<escape>value<escape>,count:3}
//
// An unrecognized payload resolves to nonthinking over the raw utterance.
func parsePayload(payload, userText string) (string, map[string]string, float64) {
	for _, name := range classifierFunctions {
		if !strings.Contains(payload, "call:"+name) {
			continue
		}
		switch name {
		case "thinking", "nonthinking":
			return name, map[string]string{"prompt": userText}, confidenceParsed
		case "get_system_info":
			return name, map[string]string{}, confidenceParsed
		}

		blockRe := regexp.MustCompile(`call:` + name + `\{([^}]+)\}`)
		if match := blockRe.FindStringSubmatch(payload); match != nil {
			args := make(map[string]string)
			for _, m := range argRe.FindAllStringSubmatch(match[1], -1) {
				value := m[3]
				if m[2] != "" || strings.Contains(m[0], "<escape>") {
					value = m[2]
				}
				args[m[1]] = strings.TrimSpace(value)
			}
			if len(args) > 0 {
				return name, args, confidenceParsed
			}
		}

		// Name matched but arguments did not parse; guess the single most
		// likely argument from the utterance.
		return name, fallbackArgs(name, userText), confidenceFallback
	}
	return "", nil, 0
}

func fallbackArgs(name, userText string) map[string]string {
	switch name {
	case "set_timer":
		return map[string]string{"duration": userText}
	case "cancel_timer":
		return map[string]string{"label": userText}
	case "set_alarm":
		return map[string]string{"time": userText}
	case "create_calendar_event":
		return map[string]string{"title": userText}
	case "add_task":
		return map[string]string{"text": userText}
	case "web_search":
		return map[string]string{"query": userText}
	}
	return map[string]string{}
}
