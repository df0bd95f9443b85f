package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversation_AppendAndRecent(t *testing.T) {
	c := NewConversation(6)
	c.Append("user", "hello")
	c.Append("assistant", "hi there")

	msgs := c.Recent()
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "hello", msgs[0].Content)
}

func TestConversation_RollbackUser(t *testing.T) {
	c := NewConversation(6)
	c.Append("user", "hello")
	c.Append("assistant", "hi")
	c.Append("user", "unanswered")

	c.RollbackUser()
	require.Equal(t, 2, c.Len())

	// Rollback is a no-op when the last turn is the assistant's.
	c.RollbackUser()
	require.Equal(t, 2, c.Len())
}

func TestConversation_CompressIfNeeded(t *testing.T) {
	c := NewConversation(2)
	for i := 0; i < 5; i++ {
		c.Append("user", fmt.Sprintf("turn %d", i))
	}

	older := c.CompressIfNeeded()
	require.Len(t, older, 3)
	require.Equal(t, "turn 0", older[0].Text)
	require.Equal(t, "turn 2", older[2].Text)

	require.Equal(t, 2, c.Len())
	msgs := c.Recent()
	require.Equal(t, "turn 3", msgs[0].Content)
	require.Equal(t, "turn 4", msgs[1].Content)

	require.Nil(t, c.CompressIfNeeded(), "nothing further to compress")
}

func TestConversation_SummaryRoundTrip(t *testing.T) {
	c := NewConversation(6)
	require.Empty(t, c.Summary())
	c.SetSummary("user prefers short answers")
	require.Equal(t, "user prefers short answers", c.Summary())
}
