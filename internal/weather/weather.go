// Package weather proxies current conditions from Open-Meteo for the sidebar
// widget. Responses are cached briefly because every page load asks for them.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fitted/fitted/internal/apperror"
	"github.com/fitted/fitted/internal/metrics"
)

// DefaultCacheTTL matches how long the browser keeps its own copy.
const DefaultCacheTTL = 60 * time.Second

// Client fetches and caches Open-Meteo forecasts.
type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient builds a client against baseURL (the Open-Meteo forecast
// endpoint). A nil cache disables caching.
func NewClient(baseURL string, cache Cache, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Client {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

// ParseCoordinates validates the raw query values. Both are required and must
// be numbers within the valid latitude/longitude ranges.
func ParseCoordinates(latRaw, lonRaw string) (float64, float64, error) {
	if latRaw == "" || lonRaw == "" {
		return 0, 0, apperror.ValidationFailed("latitude", "Latitude and Longitude are required")
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return 0, 0, apperror.ValidationFailed("latitude", "Latitude must be a number between -90 and 90")
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return 0, 0, apperror.ValidationFailed("longitude", "Longitude must be a number between -180 and 180")
	}
	return lat, lon, nil
}

// Current returns the upstream JSON document unchanged; the frontend reads
// its current_weather object.
func (c *Client) Current(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	key := cacheKey(lat, lon)

	if c.cache != nil {
		if data, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Warn("weather cache read failed", slog.String("error", err.Error()))
		} else if ok {
			c.metrics.WeatherLookup(true)
			return data, nil
		}
	}
	c.metrics.WeatherLookup(false)

	data, err := c.fetch(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("weather cache write failed", slog.String("error", err.Error()))
		}
	}
	return data, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current_weather", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("weather upstream unreachable", slog.String("error", err.Error()))
		return nil, apperror.Upstream("Failed to fetch weather data from Open-Meteo")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("weather upstream error", slog.Int("status", resp.StatusCode))
		return nil, apperror.Upstream("Failed to fetch weather data from Open-Meteo")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperror.Upstream("Failed to fetch weather data from Open-Meteo")
	}

	var probe struct {
		Current json.RawMessage `json:"current_weather"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || len(probe.Current) == 0 || string(probe.Current) == "null" {
		return nil, apperror.Upstream("Invalid weather data received from Open-Meteo")
	}

	return body, nil
}

// cacheKey rounds to 2 decimals (about 1 km) so nearby visitors share entries.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("fitted:weather:%.2f:%.2f", lat, lon)
}
