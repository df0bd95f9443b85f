package managers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	openMeteoURL = "https://api.open-meteo.com/v1/forecast"

	// weatherCacheWindow is how long a fetched snapshot stays valid.
	weatherCacheWindow = 5 * time.Minute

	weatherFetchTimeout = 5 * time.Second
)

// ForecastEntry is one step of the short-range forecast.
type ForecastEntry struct {
	Time        string  `json:"time"`
	Temperature float64 `json:"temperature"`
	Code        int     `json:"code"`
}

// WeatherSnapshot is a live fetch result. Snapshots are never persisted;
// validity is bounded by the cache window.
type WeatherSnapshot struct {
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	ObservedAt  time.Time       `json:"observed_at"`
	Temperature float64         `json:"temperature"`
	Code        int             `json:"code"`
	IsDay       bool            `json:"is_day"`
	High        float64         `json:"high"`
	Low         float64         `json:"low"`
	Forecast    []ForecastEntry `json:"forecast"`
}

// WeatherManager fetches conditions from Open-Meteo (no API key required)
// with a short-lived cache keyed by coordinates.
type WeatherManager struct {
	client  *http.Client
	baseURL string
	lat     float64
	lon     float64

	mu     sync.Mutex
	cached *WeatherSnapshot
	now    func() time.Time
}

// NewWeatherManager creates a manager for the configured location.
func NewWeatherManager(lat, lon float64) (*WeatherManager, error) {
	return &WeatherManager{
		client:  &http.Client{Timeout: weatherFetchTimeout},
		baseURL: openMeteoURL,
		lat:     lat,
		lon:     lon,
		now:     time.Now,
	}, nil
}

// ID implements Manager.
func (m *WeatherManager) ID() string { return WeatherManagerID }

// Fetch returns current conditions, reusing the cached snapshot inside the
// validity window. Network failures are retried once, then surfaced as a
// TransientError.
func (m *WeatherManager) Fetch(ctx context.Context) (*WeatherSnapshot, error) {
	m.mu.Lock()
	if m.cached != nil && m.now().Sub(m.cached.ObservedAt) < weatherCacheWindow {
		snap := *m.cached
		m.mu.Unlock()
		return &snap, nil
	}
	m.mu.Unlock()

	snap, err := fetchWithRetry(ctx, func(ctx context.Context) (*WeatherSnapshot, error) {
		return m.fetch(ctx)
	})
	if err != nil {
		// Degrade to a stale snapshot if one exists.
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.cached != nil {
			snap := *m.cached
			return &snap, nil
		}
		return nil, &TransientError{Op: "fetch weather", Err: err}
	}

	m.mu.Lock()
	m.cached = snap
	m.mu.Unlock()
	return snap, nil
}

type openMeteoResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
		IsDay       int     `json:"is_day"`
	} `json:"current"`
	Hourly struct {
		Time        []string  `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
		WeatherCode []int     `json:"weather_code"`
	} `json:"hourly"`
}

func (m *WeatherManager) fetch(ctx context.Context) (*WeatherSnapshot, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", m.lat))
	params.Set("longitude", fmt.Sprintf("%.4f", m.lon))
	params.Set("current", "temperature_2m,weather_code,is_day")
	params.Set("hourly", "temperature_2m,weather_code")
	params.Set("temperature_unit", "celsius")
	params.Set("timezone", "auto")
	params.Set("forecast_days", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	snap := &WeatherSnapshot{
		Latitude:    m.lat,
		Longitude:   m.lon,
		ObservedAt:  m.now(),
		Temperature: body.Current.Temperature,
		Code:        body.Current.WeatherCode,
		IsDay:       body.Current.IsDay == 1,
	}

	temps := body.Hourly.Temperature
	if len(temps) > 0 {
		snap.High, snap.Low = temps[0], temps[0]
		for _, t := range temps {
			if t > snap.High {
				snap.High = t
			}
			if t < snap.Low {
				snap.Low = t
			}
		}
	}

	// Two-hour steps from the current hour, four entries.
	hour := m.now().Hour()
	for i := hour; i < len(body.Hourly.Time) && len(snap.Forecast) < 4; i += 2 {
		label := body.Hourly.Time[i]
		if t, err := time.Parse("2006-01-02T15:04", label); err == nil {
			label = t.Format("3PM")
		}
		entry := ForecastEntry{Time: label}
		if i < len(temps) {
			entry.Temperature = temps[i]
		}
		if i < len(body.Hourly.WeatherCode) {
			entry.Code = body.Hourly.WeatherCode[i]
		}
		snap.Forecast = append(snap.Forecast, entry)
	}

	return snap, nil
}

// Status implements Manager: a single line with current temperature and range.
func (m *WeatherManager) Status(ctx context.Context) ([]string, error) {
	snap, err := m.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("%.0f degrees, high %.0f, low %.0f", snap.Temperature, snap.High, snap.Low)}, nil
}

// Close implements Manager.
func (m *WeatherManager) Close() error { return nil }

// fetchWithRetry runs fn, retrying once after a short backoff on failure.
// Mutating operations never go through this path.
func fetchWithRetry[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}
	return fn(ctx)
}
