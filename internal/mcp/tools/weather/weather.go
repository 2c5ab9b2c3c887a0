// Package weather provides built-in MCP tools backed by the US National
// Weather Service (NWS) API.
//
// Two tools are exported via [Tools]:
//   - "get_alerts"   — active weather alerts for a two-letter US state code.
//   - "get_forecast" — the next five forecast periods for a coordinate pair.
//
// One resource is exported via [Resources]:
//   - "weather://regions" — the list of US state codes the alert feed covers.
//
// Both tools degrade to a human-readable "Unable to fetch …" message instead
// of a hard error when the upstream API is unreachable, so the model can
// relay the problem to the user. All handlers are safe for concurrent use.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/stratus-ai/stratus/internal/mcp/tools"
	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

// forecastPeriods bounds how many forecast periods are rendered. The NWS feed
// returns 14 half-day periods; five is enough for "today and the next two
// days" style questions without flooding the context window.
const forecastPeriods = 5

// alertsArgs is the JSON-decoded input for the "get_alerts" tool.
type alertsArgs struct {
	// State is the two-letter US state code (e.g. "CA", "NY").
	State string `json:"state"`
}

// forecastArgs is the JSON-decoded input for the "get_forecast" tool.
type forecastArgs struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// formatAlert renders one alert feature from the NWS feed.
func formatAlert(feature gjson.Result) string {
	props := feature.Get("properties")

	field := func(path, fallback string) string {
		if v := props.Get(path); v.Exists() && v.String() != "" {
			return v.String()
		}
		return fallback
	}

	return fmt.Sprintf(`
Event: %s
Area: %s
Severity: %s
Description: %s
Instructions: %s
`,
		field("event", "Unknown"),
		field("areaDesc", "Unknown"),
		field("severity", "Unknown"),
		field("description", "No description available"),
		field("instruction", "No specific instructions provided"),
	)
}

// formatAlerts renders the full alert feed body into the model-facing text.
func formatAlerts(body string) string {
	features := gjson.Get(body, "features")
	if !features.Exists() {
		return "Unable to fetch alerts or no alerts found."
	}
	if len(features.Array()) == 0 {
		return "No active alerts for this state."
	}

	parts := make([]string, 0, len(features.Array()))
	for _, feature := range features.Array() {
		parts = append(parts, formatAlert(feature))
	}
	return strings.Join(parts, "\n---\n")
}

// formatForecast renders the forecast feed body into the model-facing text,
// limited to the first [forecastPeriods] periods.
func formatForecast(body string) string {
	periods := gjson.Get(body, "properties.periods")
	if !periods.Exists() {
		return "Unable to parse forecast data."
	}

	var parts []string
	for i, period := range periods.Array() {
		if i >= forecastPeriods {
			break
		}
		parts = append(parts, fmt.Sprintf(`
%s:
Temperature: %s°%s
Wind: %s %s
Forecast: %s
`,
			period.Get("name").String(),
			period.Get("temperature").Raw,
			period.Get("temperatureUnit").String(),
			period.Get("windSpeed").String(),
			period.Get("windDirection").String(),
			period.Get("detailedForecast").String(),
		))
	}
	return strings.Join(parts, "\n---\n")
}

// alertsHandler implements the "get_alerts" tool.
func alertsHandler(client *Client) func(ctx context.Context, args string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a alertsArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("weather: failed to parse arguments: %w", err)
		}
		state := strings.ToUpper(strings.TrimSpace(a.State))
		if len(state) != 2 {
			return "", fmt.Errorf("weather: state must be a two-letter US state code, got %q", a.State)
		}

		body, err := client.Alerts(ctx, state)
		if err != nil {
			return "Unable to fetch alerts or no alerts found.", nil
		}
		return formatAlerts(body), nil
	}
}

// forecastHandler implements the "get_forecast" tool.
func forecastHandler(client *Client) func(ctx context.Context, args string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a forecastArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("weather: failed to parse arguments: %w", err)
		}
		if a.Latitude < -90 || a.Latitude > 90 {
			return "", fmt.Errorf("weather: latitude must be within [-90, 90], got %g", a.Latitude)
		}
		if a.Longitude < -180 || a.Longitude > 180 {
			return "", fmt.Errorf("weather: longitude must be within [-180, 180], got %g", a.Longitude)
		}

		body, err := client.Forecast(ctx, a.Latitude, a.Longitude)
		if err != nil {
			return "Unable to fetch forecast data for this location.", nil
		}
		return formatForecast(body), nil
	}
}

// stateCodes lists every region the NWS alert feed covers: the 50 states
// plus DC and the territories.
var stateCodes = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
	"DC", "PR", "VI", "GU", "AS", "MP",
}

// Tools returns the weather toolset ready for registration with the MCP
// Host. client may be nil, in which case a default [Client] against the
// public NWS API is used.
func Tools(client *Client) []tools.Tool {
	if client == nil {
		client = NewClient("", nil)
	}

	return []tools.Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        "get_alerts",
				Description: "Get active weather alerts for a US state. Returns event, affected area, severity, description, and safety instructions for each alert.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"state": map[string]any{
							"type":        "string",
							"description": "Two-letter US state code, e.g. CA, NY",
						},
					},
					"required": []string{"state"},
				},
			},
			Handler: alertsHandler(client),
		},
		{
			Definition: llm.ToolDefinition{
				Name:        "get_forecast",
				Description: "Get the weather forecast for a location by coordinates. Returns the next few forecast periods with temperature, wind, and a detailed outlook.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"latitude": map[string]any{
							"type":        "number",
							"description": "Latitude of the location",
						},
						"longitude": map[string]any{
							"type":        "number",
							"description": "Longitude of the location",
						},
					},
					"required": []string{"latitude", "longitude"},
				},
			},
			Handler: forecastHandler(client),
		},
	}
}

// Resources returns the weather resources ready for registration with the
// MCP Host.
func Resources() []tools.Resource {
	return []tools.Resource{
		{
			URI:         "weather://regions",
			Name:        "Covered regions",
			Description: "US state and territory codes accepted by the get_alerts tool.",
			MIMEType:    "text/plain",
			Reader: func(_ context.Context) (string, error) {
				return strings.Join(stateCodes, " "), nil
			},
		},
	}
}
