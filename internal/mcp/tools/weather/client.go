package weather

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultBaseURL is the National Weather Service API root.
const DefaultBaseURL = "https://api.weather.gov"

// userAgent identifies Stratus to the NWS API, which rejects requests
// without one.
const userAgent = "stratus-weather/1.0"

// Client is a thin HTTP client for the National Weather Service API.
//
// The zero value is not usable; create instances with [NewClient].
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client talking to the given API root. An empty baseURL
// selects [DefaultBaseURL]. When httpClient is nil a default client with a
// 30 second timeout is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Alerts fetches the active alert feed for a two-letter US state code and
// returns the raw GeoJSON body.
func (c *Client) Alerts(ctx context.Context, state string) (string, error) {
	return c.get(ctx, c.baseURL+"/alerts/active/area/"+state)
}

// Forecast fetches the period forecast for a coordinate pair and returns the
// raw GeoJSON body. The NWS API requires two round-trips: the /points
// endpoint maps coordinates to a gridpoint, whose response carries the actual
// forecast URL.
func (c *Client) Forecast(ctx context.Context, latitude, longitude float64) (string, error) {
	pointsURL := fmt.Sprintf("%s/points/%g,%g", c.baseURL, latitude, longitude)
	points, err := c.get(ctx, pointsURL)
	if err != nil {
		return "", err
	}

	forecastURL := gjson.Get(points, "properties.forecast").String()
	if forecastURL == "" {
		return "", fmt.Errorf("weather: points response for %g,%g has no forecast URL", latitude, longitude)
	}

	return c.get(ctx, forecastURL)
}

// get performs a single GET request and returns the response body as a string.
func (c *Client) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("weather: failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather: request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather: %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("weather: failed to read response from %s: %w", url, err)
	}
	return string(body), nil
}
