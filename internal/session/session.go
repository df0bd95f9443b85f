package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"tsuzi/internal/executor"
	"tsuzi/internal/intent"
	"tsuzi/internal/llm"
	"tsuzi/internal/logging"
	"tsuzi/internal/managers"
)

const apology = "Sorry, I'm having trouble right now."

// Config tunes the session loop.
type Config struct {
	// RecentTurns is the verbatim history window before compression.
	RecentTurns int
	// SystemPrompt is prepended to every generation.
	SystemPrompt string
	// Streaming pipes tokens to speech concurrently with generation.
	Streaming bool
}

// Session drives the per-turn lifecycle. It is the sole writer of State;
// Interrupt is the only entry point other goroutines may call.
type Session struct {
	cfg       Config
	router    *intent.Router
	exec      *executor.Executor
	generator llm.Generator
	sink      SpeechSink
	conv      *Conversation
	summaries *SummaryWorker
	log       zerolog.Logger

	timerEvents <-chan managers.Timer

	state atomic.Int32

	turnMu     sync.Mutex
	turnCancel context.CancelFunc
}

// New wires a session. summaries may be nil to disable history compression.
func New(cfg Config, router *intent.Router, exec *executor.Executor, generator llm.Generator, sink SpeechSink, conv *Conversation, summaries *SummaryWorker) *Session {
	if cfg.RecentTurns <= 0 {
		cfg.RecentTurns = DefaultRecentTurns
	}
	return &Session{
		cfg:       cfg,
		router:    router,
		exec:      exec,
		generator: generator,
		sink:      sink,
		conv:      conv,
		summaries: summaries,
		log:       logging.Component("session"),
	}
}

// SetTimerEvents subscribes the session to timer expirations, announced
// between turns by AnnounceTimers.
func (s *Session) SetTimerEvents(events <-chan managers.Timer) {
	s.timerEvents = events
}

// State returns the current lifecycle position.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Interrupt aborts the turn in flight from any state: generation is
// cancelled, playback stops, and the machine returns to idle. Safe to call
// concurrently with HandleTurn.
func (s *Session) Interrupt() {
	s.turnMu.Lock()
	cancel := s.turnCancel
	s.turnMu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.sink.Stop()
	s.setState(StateIdle)
	s.log.Debug().Msg("interrupted")
}

// beginTurn installs a cancellable context for the turn so Interrupt can
// reach it.
func (s *Session) beginTurn(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	s.turnMu.Lock()
	s.turnCancel = cancel
	s.turnMu.Unlock()

	return ctx, func() {
		s.turnMu.Lock()
		s.turnCancel = nil
		s.turnMu.Unlock()
		cancel()
		s.setState(StateIdle)
	}
}

// Listen captures one utterance through the supplied capture function. The
// machine sits in LISTENING for the duration; Interrupt cancels the capture
// context, so a context-aware capture returns early on barge-in.
func (s *Session) Listen(ctx context.Context, capture func(context.Context) (string, error)) (string, error) {
	ctx, endTurn := s.beginTurn(ctx)
	defer endTurn()

	s.setState(StateListening)
	text, err := capture(ctx)
	if err != nil && ctx.Err() != nil {
		return "", context.Canceled
	}
	return text, err
}

// HandleTurn processes one utterance end to end and returns the spoken
// reply. An interrupted turn returns context.Canceled.
func (s *Session) HandleTurn(ctx context.Context, text string) (string, error) {
	ctx, endTurn := s.beginTurn(ctx)
	defer endTurn()

	s.sink.Reset()
	s.setState(StateThinking)

	if call := intent.MatchFastPath(text); call != nil {
		s.log.Debug().Str("function", call.Name).Msg("fast path hit")
		return s.act(ctx, *call)
	}

	in := s.router.Classify(ctx, text)
	switch in.Category {
	case intent.CategoryAction:
		return s.act(ctx, *in.Call)
	case intent.CategorySystemQuery:
		return s.act(ctx, executor.FunctionCall{Name: "get_system_info"})
	default:
		return s.converse(ctx, text, in.Mode)
	}
}

// act runs a validated call and speaks the outcome.
func (s *Session) act(ctx context.Context, call executor.FunctionCall) (string, error) {
	s.setState(StateActing)
	result := s.exec.Execute(ctx, call)
	speech := SpeakResult(result)
	if err := s.speak(ctx, speech); err != nil {
		return speech, err
	}
	return speech, nil
}

// converse appends the user turn, generates a reply, and streams or speaks
// it. A failed generation rolls the user turn back so history never holds
// an unanswered message.
func (s *Session) converse(ctx context.Context, text string, mode llm.GenerationMode) (string, error) {
	s.conv.Append("user", text)

	if s.summaries != nil {
		if older := s.conv.CompressIfNeeded(); len(older) > 0 {
			if !s.summaries.TryEnqueue(older) {
				s.log.Debug().Msg("summary job pending, skipping compression")
			}
		}
	}

	system := s.cfg.SystemPrompt
	if summary := s.conv.Summary(); summary != "" {
		system += "\n\nConversation so far (summary):\n" + summary
	}
	history := s.conv.Recent()

	s.setState(StateSpeaking)

	var reply string
	var err error
	if s.cfg.Streaming {
		stream := startStream(ctx, s.sink)
		reply, err = s.generator.Generate(ctx, system, history, mode, stream.Push)
		if serr := stream.Close(); err == nil {
			err = serr
		}
	} else {
		reply, err = s.generator.Generate(ctx, system, history, mode, nil)
		if err == nil {
			err = s.speak(ctx, reply)
		}
	}

	if err != nil {
		s.conv.RollbackUser()
		if ctx.Err() != nil {
			return "", context.Canceled
		}
		s.log.Error().Err(err).Msg("generation failed")
		s.speak(ctx, apology)
		return apology, err
	}

	s.conv.Append("assistant", reply)
	return reply, nil
}

func (s *Session) speak(ctx context.Context, text string) error {
	s.setState(StateSpeaking)
	return s.sink.Speak(ctx, text)
}

// AnnounceTimers drains expired timers and speaks an announcement for each.
// Called by the outer loop between turns.
func (s *Session) AnnounceTimers(ctx context.Context) []string {
	if s.timerEvents == nil {
		return nil
	}
	var spoken []string
	for {
		select {
		case t := <-s.timerEvents:
			line := fmt.Sprintf("Your %s is done.", t.Label)
			s.speak(ctx, line)
			s.setState(StateIdle)
			spoken = append(spoken, line)
		default:
			return spoken
		}
	}
}

// Close stops background work owned by the session.
func (s *Session) Close() {
	if s.summaries != nil {
		s.summaries.Close()
	}
}

// SpeakResult renders an execution outcome as user-facing speech. The
// executor reports structured results; the wording lives here.
func SpeakResult(result executor.ExecutionResult) string {
	switch result.Kind {
	case executor.ResultSuccess:
		return result.Speech
	case executor.ResultDeclined:
		return fmt.Sprintf("Sorry, %s.", result.Reason)
	case executor.ResultManagerUnavailable:
		return fmt.Sprintf("Sorry, %s aren't available right now.", result.Manager)
	case executor.ResultValidationError:
		return fmt.Sprintf("I didn't catch the %s. Could you say that again?", result.Field)
	default:
		return apology
	}
}
