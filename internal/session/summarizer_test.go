package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tsuzi/internal/llm"
)

type fakeSummarizer struct {
	mu       sync.Mutex
	summary  string
	err      error
	calls    int
	previous string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, previous string, turns []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.previous = previous
	return f.summary, f.err
}

func TestSummaryWorker_PublishesSummary(t *testing.T) {
	conv := NewConversation(2)
	summarizer := &fakeSummarizer{summary: "they talked about gardening"}
	w := NewSummaryWorker(summarizer, conv)
	w.Start()
	defer w.Close()

	require.True(t, w.TryEnqueue([]Turn{{Role: "user", Text: "how do I grow tomatoes"}}))

	require.Eventually(t, func() bool {
		return conv.Summary() == "they talked about gardening"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSummaryWorker_EnqueueNeverBlocks(t *testing.T) {
	conv := NewConversation(2)
	// Worker not started: the queue fills and further offers are refused
	// instead of blocking the caller.
	w := NewSummaryWorker(&fakeSummarizer{}, conv)

	require.True(t, w.TryEnqueue([]Turn{{Role: "user", Text: "one"}}))
	require.False(t, w.TryEnqueue([]Turn{{Role: "user", Text: "two"}}))
	require.False(t, w.TryEnqueue(nil), "empty snapshots are never queued")
}

func TestSummaryWorker_FailureKeepsPreviousSummary(t *testing.T) {
	conv := NewConversation(2)
	conv.SetSummary("earlier summary")
	summarizer := &fakeSummarizer{err: errors.New("backend down")}
	w := NewSummaryWorker(summarizer, conv)
	w.Start()
	defer w.Close()

	require.True(t, w.TryEnqueue([]Turn{{Role: "user", Text: "hello"}}))

	require.Eventually(t, func() bool {
		summarizer.mu.Lock()
		defer summarizer.mu.Unlock()
		return summarizer.calls > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "earlier summary", conv.Summary())
}

func TestSummaryWorker_PassesPreviousSummary(t *testing.T) {
	conv := NewConversation(2)
	conv.SetSummary("chapter one")
	summarizer := &fakeSummarizer{summary: "chapter two"}
	w := NewSummaryWorker(summarizer, conv)
	w.Start()
	defer w.Close()

	require.True(t, w.TryEnqueue([]Turn{{Role: "user", Text: "more"}}))

	require.Eventually(t, func() bool {
		return conv.Summary() == "chapter two"
	}, 2*time.Second, 10*time.Millisecond)

	summarizer.mu.Lock()
	defer summarizer.mu.Unlock()
	require.Equal(t, "chapter one", summarizer.previous)
}
