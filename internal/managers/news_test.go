package managers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"tsuzi/internal/llm"
)

const ddgFixture = `<html><body>
<a rel="nofollow" class="result__a" href="https://example.com/one">First <b>Story</b></a>
<a rel="nofollow" class="result__a" href="https://example.com/two">Second Story</a>
<a rel="nofollow" class="result__a" href="https://example.com/one-dup">First Story</a>
</body></html>`

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func newNewsTestManager(t *testing.T, curator llm.Completer, handler http.HandlerFunc) *NewsManager {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := NewNewsManager([]string{"top news"}, curator)
	require.NoError(t, err)
	m.baseURL = srv.URL
	return m
}

func TestNewsManager_BriefingRaw(t *testing.T) {
	m := newNewsTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ddgFixture))
	})

	digest, err := m.Briefing(context.Background(), false)
	require.NoError(t, err)
	require.False(t, digest.Curated)
	require.Len(t, digest.Headlines, 2, "duplicate titles are collapsed")
	require.Equal(t, "First Story", digest.Headlines[0].Title)
	require.Equal(t, "https://example.com/one", digest.Headlines[0].URL)
}

func TestNewsManager_CurationRewritesTitles(t *testing.T) {
	curator := &fakeCompleter{response: "```json\n[{\"id\": 1, \"title\": \"Punchy Second\", \"category\": \"tech\"}]\n```"}
	m := newNewsTestManager(t, curator, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ddgFixture))
	})

	digest, err := m.Briefing(context.Background(), true)
	require.NoError(t, err)
	require.True(t, digest.Curated)
	require.Len(t, digest.Headlines, 1)
	require.Equal(t, "Punchy Second", digest.Headlines[0].Title)
	require.Equal(t, "tech", digest.Headlines[0].Category)
	require.Equal(t, "https://example.com/two", digest.Headlines[0].URL)
}

func TestNewsManager_CurationFailureDegradesToRaw(t *testing.T) {
	curator := &fakeCompleter{err: errors.New("backend down")}
	m := newNewsTestManager(t, curator, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ddgFixture))
	})

	digest, err := m.Briefing(context.Background(), true)
	require.NoError(t, err)
	require.False(t, digest.Curated)
	require.Len(t, digest.Headlines, 2)
}

func TestNewsManager_CacheAvoidsRefetch(t *testing.T) {
	var hits atomic.Int32
	m := newNewsTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(ddgFixture))
	})

	ctx := context.Background()
	_, err := m.Briefing(ctx, false)
	require.NoError(t, err)
	_, err = m.Briefing(ctx, false)
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())
}

func TestNewsManager_AllTopicsFailing(t *testing.T) {
	m := newNewsTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := m.Briefing(context.Background(), false)
	require.Error(t, err)
	require.True(t, IsTransient(err))
}

func TestNewsManager_Search(t *testing.T) {
	m := newNewsTestManager(t, nil, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "go concurrency", r.URL.Query().Get("q"))
		w.Write([]byte(ddgFixture))
	})

	results, err := m.Search(context.Background(), "go concurrency")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.LessOrEqual(t, len(results), 3)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"```json\n[1]\n```", "[1]"},
		{"```\n[1]\n```", "[1]"},
		{"[1]", "[1]"},
		{"  [1]  ", "[1]"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, stripCodeFence(tt.input))
	}
}
