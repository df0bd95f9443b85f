package session

import (
	"sync"
	"time"

	"tsuzi/internal/llm"
)

// DefaultRecentTurns is how many turns stay verbatim in the context window
// before older ones are compressed into the rolling summary.
const DefaultRecentTurns = 6

// Turn is one conversation entry.
type Turn struct {
	Role      string
	Text      string
	Timestamp time.Time
}

// Conversation is the shared history state. The session loop appends and the
// summarizer publishes replacement summaries; the mutex is the only
// synchronization between them. The summarizer only ever receives a snapshot
// of older turns, never the turn currently being produced.
type Conversation struct {
	mu          sync.Mutex
	turns       []Turn
	summary     string
	recentTurns int
}

// NewConversation creates an empty history keeping recentTurns verbatim.
func NewConversation(recentTurns int) *Conversation {
	if recentTurns <= 0 {
		recentTurns = DefaultRecentTurns
	}
	return &Conversation{recentTurns: recentTurns}
}

// Append adds a turn.
func (c *Conversation) Append(role, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, Turn{Role: role, Text: text, Timestamp: time.Now()})
}

// RollbackUser removes the most recent turn if it is a user turn. Called
// when generation fails after the user turn was already appended.
func (c *Conversation) RollbackUser() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.turns); n > 0 && c.turns[n-1].Role == "user" {
		c.turns = c.turns[:n-1]
	}
}

// CompressIfNeeded snapshots turns beyond the recent window out of the live
// history and returns them for summarization. An empty return means nothing
// to compress.
func (c *Conversation) CompressIfNeeded() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.turns) <= c.recentTurns {
		return nil
	}
	cut := len(c.turns) - c.recentTurns
	older := make([]Turn, cut)
	copy(older, c.turns[:cut])
	c.turns = append(c.turns[:0:0], c.turns[cut:]...)
	return older
}

// Summary returns the current rolling summary.
func (c *Conversation) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// SetSummary publishes a replacement rolling summary.
func (c *Conversation) SetSummary(summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = summary
}

// Recent returns the live window as generation messages.
func (c *Conversation) Recent() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]llm.Message, len(c.turns))
	for i, t := range c.turns {
		msgs[i] = llm.Message{Role: t.Role, Content: t.Text}
	}
	return msgs
}

// Len returns the number of live turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}
