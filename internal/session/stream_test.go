package session

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu      sync.Mutex
	chunks  []string
	stopped bool
	err     error
}

func (s *fakeSink) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, text)
	return nil
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
}

func (s *fakeSink) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.chunks...)
}

func TestStream_FlushesAtSentenceBoundaries(t *testing.T) {
	sink := &fakeSink{}
	c := startStream(context.Background(), sink)

	for _, token := range []string{"Hello ", "world. ", "How are ", "you?"} {
		c.Push(token)
	}
	require.NoError(t, c.Close())

	require.Equal(t, []string{"Hello world.", "How are you?"}, sink.spoken())
}

func TestStream_FlushesLongUnpunctuatedText(t *testing.T) {
	sink := &fakeSink{}
	c := startStream(context.Background(), sink)

	// 30 tokens of 5 runes crosses the flush length without punctuation.
	for i := 0; i < 30; i++ {
		c.Push("word ")
	}
	require.NoError(t, c.Close())

	chunks := sink.spoken()
	require.NotEmpty(t, chunks)
	total := strings.Join(chunks, " ")
	require.Equal(t, 30, strings.Count(total, "word"))
}

func TestStream_PreservesTokenOrder(t *testing.T) {
	sink := &fakeSink{}
	c := startStream(context.Background(), sink)

	c.Push("One. ")
	c.Push("Two. ")
	c.Push("Three.")
	require.NoError(t, c.Close())

	joined := strings.Join(sink.spoken(), " ")
	one := strings.Index(joined, "One")
	two := strings.Index(joined, "Two")
	three := strings.Index(joined, "Three")
	require.True(t, one < two && two < three, "chunks out of order: %q", joined)
}

func TestStream_CancellationStopsSpeaking(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &fakeSink{}
	c := startStream(ctx, sink)

	c.Push("First sentence. ")
	cancel()
	c.Push("Never spoken. ")
	require.NoError(t, c.Close())

	for _, chunk := range sink.spoken() {
		require.NotContains(t, chunk, "Never spoken")
	}
}

func TestStream_TrailingTextSpokenOnClose(t *testing.T) {
	sink := &fakeSink{}
	c := startStream(context.Background(), sink)

	c.Push("no punctuation here")
	require.NoError(t, c.Close())

	require.Equal(t, []string{"no punctuation here"}, sink.spoken())
}
