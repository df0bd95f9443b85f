package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tsuzi/internal/llm"
	"tsuzi/internal/logging"
)

const (
	ddgNewsURL = "https://duckduckgo.com/html/"

	// newsCacheWindow is how long a fetched digest stays valid.
	newsCacheWindow = 15 * time.Minute

	newsFetchTimeout = 10 * time.Second
)

// Headline is one news item.
type Headline struct {
	Title    string `json:"title"`
	Source   string `json:"source,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Category string `json:"category,omitempty"`
	URL      string `json:"url,omitempty"`
}

// NewsDigest is a fetched, optionally AI-curated briefing. Digests are never
// persisted.
type NewsDigest struct {
	Topic     string     `json:"topic,omitempty"`
	FetchedAt time.Time  `json:"fetched_at"`
	Headlines []Headline `json:"headlines"`
	Curated   bool       `json:"curated"`
}

// curationPrompt asks the model to pick and rewrite the best stories.
const curationPrompt = `You are an expert news editor.
Here is a list of raw news articles:
%s

Task:
1. Select the 6 most important and diverse stories.
2. Rewrite the titles to be punchy and short (under 10 words).
3. Return ONLY a JSON array of objects.
   Format: [{"id": <original_id>, "title": "<new_title>", "category": "<category>"}]

Do NOT add any markdown or text. Just the JSON array.`

// NewsManager fetches headlines from DuckDuckGo and optionally curates them
// through the generation backend. Curation degrades gracefully: if the
// backend errors, the raw headlines are returned instead.
type NewsManager struct {
	client  *http.Client
	baseURL string
	topics  []string
	curator llm.Completer // nil disables curation
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[string]*NewsDigest
	now   func() time.Time
}

// NewNewsManager creates a manager for the configured topics. curator may be
// nil to disable AI curation.
func NewNewsManager(topics []string, curator llm.Completer) (*NewsManager, error) {
	if len(topics) == 0 {
		topics = []string{"top news"}
	}
	return &NewsManager{
		client:  &http.Client{Timeout: newsFetchTimeout},
		baseURL: ddgNewsURL,
		topics:  topics,
		curator: curator,
		log:     logging.Component("news"),
		cache:   make(map[string]*NewsDigest),
		now:     time.Now,
	}, nil
}

// ID implements Manager.
func (m *NewsManager) ID() string { return NewsManagerID }

// Briefing returns a digest across the configured topics, cached for the
// validity window. With curate set and a curator available, headlines are
// selected and rewritten by the backend.
func (m *NewsManager) Briefing(ctx context.Context, curate bool) (*NewsDigest, error) {
	key := "briefing_raw"
	if curate && m.curator != nil {
		key = "briefing_ai"
	}

	m.mu.Lock()
	if cached, ok := m.cache[key]; ok && m.now().Sub(cached.FetchedAt) < newsCacheWindow {
		digest := *cached
		m.mu.Unlock()
		return &digest, nil
	}
	m.mu.Unlock()

	var raw []Headline
	for _, topic := range m.topics {
		headlines, err := fetchWithRetry(ctx, func(ctx context.Context) ([]Headline, error) {
			return m.fetchTopic(ctx, topic)
		})
		if err != nil {
			m.log.Warn().Err(err).Str("topic", topic).Msg("topic fetch failed")
			continue
		}
		raw = append(raw, headlines...)
	}
	if len(raw) == 0 {
		return nil, &TransientError{Op: "fetch news", Err: fmt.Errorf("no topics reachable")}
	}

	digest := &NewsDigest{FetchedAt: m.now(), Headlines: dedupe(raw), Curated: false}

	if curate && m.curator != nil {
		if curated, err := m.curate(ctx, digest.Headlines); err == nil {
			digest.Headlines = curated
			digest.Curated = true
		} else {
			m.log.Warn().Err(err).Msg("curation failed, returning raw headlines")
		}
	}

	m.mu.Lock()
	m.cache[key] = digest
	m.mu.Unlock()

	out := *digest
	return &out, nil
}

// Search runs a one-off DuckDuckGo query and returns the top results. No
// caching: searches are assumed to differ every time.
func (m *NewsManager) Search(ctx context.Context, query string) ([]Headline, error) {
	results, err := fetchWithRetry(ctx, func(ctx context.Context) ([]Headline, error) {
		return m.fetchTopic(ctx, query)
	})
	if err != nil {
		return nil, &TransientError{Op: "web search", Err: err}
	}
	if len(results) > 3 {
		results = results[:3]
	}
	return results, nil
}

var ddgResultRe = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
var tagRe = regexp.MustCompile(`<[^>]+>`)

// fetchTopic scrapes the HTML results page for one topic.
func (m *NewsManager) fetchTopic(ctx context.Context, topic string) ([]Headline, error) {
	params := url.Values{}
	params.Set("q", topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "tsuzi/0.1")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var headlines []Headline
	for _, match := range ddgResultRe.FindAllStringSubmatch(string(body), 5) {
		title := strings.TrimSpace(tagRe.ReplaceAllString(match[2], ""))
		if title == "" {
			continue
		}
		headlines = append(headlines, Headline{
			Title:    title,
			Category: topic,
			URL:      match[1],
		})
	}
	return headlines, nil
}

// curate asks the backend to select and rewrite headlines.
func (m *NewsManager) curate(ctx context.Context, raw []Headline) ([]Headline, error) {
	type item struct {
		ID       int    `json:"id"`
		Title    string `json:"title"`
		Source   string `json:"source,omitempty"`
		Category string `json:"category,omitempty"`
	}
	items := make([]item, len(raw))
	for i, h := range raw {
		items[i] = item{ID: i, Title: h.Title, Source: h.Source, Category: h.Category}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}

	response, err := m.curator.Complete(ctx, fmt.Sprintf(curationPrompt, encoded))
	if err != nil {
		return nil, err
	}

	var selected []struct {
		ID       int    `json:"id"`
		Title    string `json:"title"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &selected); err != nil {
		return nil, fmt.Errorf("parse curation response: %w", err)
	}

	var curated []Headline
	for _, s := range selected {
		if s.ID < 0 || s.ID >= len(raw) {
			continue
		}
		h := raw[s.ID]
		h.Title = s.Title
		h.Category = s.Category
		curated = append(curated, h)
	}
	if len(curated) == 0 {
		return nil, fmt.Errorf("curation selected nothing")
	}
	return curated, nil
}

// stripCodeFence removes a ```json fence the model may wrap its answer in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func dedupe(headlines []Headline) []Headline {
	seen := make(map[string]bool, len(headlines))
	out := headlines[:0]
	for _, h := range headlines {
		if seen[h.Title] {
			continue
		}
		seen[h.Title] = true
		out = append(out, h)
	}
	if len(out) > 8 {
		out = out[:8]
	}
	return out
}

// Status implements Manager: headline count plus the top titles.
func (m *NewsManager) Status(ctx context.Context) ([]string, error) {
	digest, err := m.Briefing(ctx, false)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, 4)
	lines = append(lines, fmt.Sprintf("%d news headlines available", len(digest.Headlines)))
	for i, h := range digest.Headlines {
		if i == 3 {
			break
		}
		lines = append(lines, h.Title)
	}
	return lines, nil
}

// Close implements Manager.
func (m *NewsManager) Close() error { return nil }
