package session

import (
	"context"
	"strings"
	"unicode/utf8"
)

// sentenceFlushLen forces a flush once the buffer grows past this many
// runes even without a sentence terminator, keeping speech latency bounded
// on long unpunctuated output.
const sentenceFlushLen = 100

// SpeechSink is what the session speaks through. voice.Speaker satisfies it;
// tests and text-only mode use stubs.
type SpeechSink interface {
	// Speak plays one chunk and returns when playback finishes.
	Speak(ctx context.Context, text string) error
	// Stop interrupts playback and drops queued chunks (barge-in).
	Stop()
	// Reset re-arms the sink after a barge-in.
	Reset()
}

// streamCoordinator pipes generation tokens to the sink concurrently with
// generation. Single producer (the generation callback), single consumer
// (the goroutine started here); chunks reach the sink in token order. The
// channel is bounded so a stalled sink applies backpressure instead of
// buffering unboundedly.
type streamCoordinator struct {
	tokens chan string
	done   chan error
	ctx    context.Context
}

func startStream(ctx context.Context, sink SpeechSink) *streamCoordinator {
	c := &streamCoordinator{
		tokens: make(chan string, 64),
		done:   make(chan error, 1),
		ctx:    ctx,
	}
	go c.consume(sink)
	return c
}

// Push hands one token to the consumer. It stops accepting after
// cancellation so generation unwinds promptly.
func (c *streamCoordinator) Push(token string) {
	select {
	case c.tokens <- token:
	case <-c.ctx.Done():
	}
}

// Close signals end of generation and waits for the consumer to finish
// speaking buffered text. Returns the first sink error, if any.
func (c *streamCoordinator) Close() error {
	close(c.tokens)
	return <-c.done
}

func (c *streamCoordinator) consume(sink SpeechSink) {
	var buffer strings.Builder
	var firstErr error

	speak := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if err := sink.Speak(c.ctx, text); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for token := range c.tokens {
		if c.ctx.Err() != nil {
			// Cancelled mid-turn: drain remaining tokens without speaking.
			continue
		}
		buffer.WriteString(token)

		text := buffer.String()
		if i := lastSentenceEnd(text); i >= 0 {
			speak(text[:i+1])
			buffer.Reset()
			buffer.WriteString(text[i+1:])
		} else if utf8.RuneCountInString(text) > sentenceFlushLen {
			speak(text)
			buffer.Reset()
		}
	}

	if c.ctx.Err() == nil {
		speak(buffer.String())
	}
	c.done <- firstErr
}

// lastSentenceEnd returns the byte index of the final sentence terminator,
// or -1 if none.
func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}
