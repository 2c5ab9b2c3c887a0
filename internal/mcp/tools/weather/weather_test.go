package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stratus-ai/stratus/internal/mcp/tools"
)

const alertsBody = `{
  "features": [
    {
      "properties": {
        "event": "Flood Warning",
        "areaDesc": "Sacramento County",
        "severity": "Severe",
        "description": "River levels rising.",
        "instruction": "Move to higher ground."
      }
    },
    {
      "properties": {
        "event": "Wind Advisory",
        "areaDesc": "San Francisco Bay",
        "severity": "Moderate",
        "description": "Gusts up to 45 mph."
      }
    }
  ]
}`

const forecastBody = `{
  "properties": {
    "periods": [
      {"name": "Tonight", "temperature": 58, "temperatureUnit": "F", "windSpeed": "5 mph", "windDirection": "SW", "detailedForecast": "Partly cloudy."},
      {"name": "Saturday", "temperature": 72, "temperatureUnit": "F", "windSpeed": "10 mph", "windDirection": "W", "detailedForecast": "Sunny."},
      {"name": "Saturday Night", "temperature": 55, "temperatureUnit": "F", "windSpeed": "5 mph", "windDirection": "W", "detailedForecast": "Clear."},
      {"name": "Sunday", "temperature": 75, "temperatureUnit": "F", "windSpeed": "10 mph", "windDirection": "NW", "detailedForecast": "Sunny."},
      {"name": "Sunday Night", "temperature": 57, "temperatureUnit": "F", "windSpeed": "5 mph", "windDirection": "N", "detailedForecast": "Clear."},
      {"name": "Monday", "temperature": 78, "temperatureUnit": "F", "windSpeed": "10 mph", "windDirection": "N", "detailedForecast": "Hot."}
    ]
  }
}`

// newNWSServer returns an httptest server mimicking the NWS endpoints used by
// the toolset.
func newNWSServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/alerts/active/area/CA", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, alertsBody)
	})
	mux.HandleFunc("/alerts/active/area/WY", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"features": []}`)
	})
	mux.HandleFunc("/points/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"properties": {"forecast": "%s/gridpoints/MTR/85,105/forecast"}}`, srv.URL)
	})
	mux.HandleFunc("/gridpoints/MTR/85,105/forecast", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, forecastBody)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func toolByName(t *testing.T, ts []tools.Tool, name string) tools.Tool {
	t.Helper()
	for _, tool := range ts {
		if tool.Definition.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not found", name)
	panic("unreachable")
}

func TestGetAlerts(t *testing.T) {
	srv := newNWSServer(t)
	client := NewClient(srv.URL, srv.Client())

	tool := toolByName(t, Tools(client), "get_alerts")
	out, err := tool.Handler(context.Background(), `{"state":"ca"}`)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	for _, want := range []string{
		"Event: Flood Warning",
		"Area: Sacramento County",
		"Severity: Severe",
		"Instructions: Move to higher ground.",
		"Event: Wind Advisory",
		"Instructions: No specific instructions provided",
		"\n---\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestGetAlertsNoActiveAlerts(t *testing.T) {
	srv := newNWSServer(t)
	client := NewClient(srv.URL, srv.Client())

	tool := toolByName(t, Tools(client), "get_alerts")
	out, err := tool.Handler(context.Background(), `{"state":"WY"}`)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if out != "No active alerts for this state." {
		t.Errorf("out = %q", out)
	}
}

func TestGetAlertsUpstreamDownDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	client := NewClient(srv.URL, srv.Client())

	tool := toolByName(t, Tools(client), "get_alerts")
	out, err := tool.Handler(context.Background(), `{"state":"CA"}`)
	if err != nil {
		t.Fatalf("upstream failure must degrade, not error: %v", err)
	}
	if out != "Unable to fetch alerts or no alerts found." {
		t.Errorf("out = %q", out)
	}
}

func TestGetAlertsInvalidState(t *testing.T) {
	tool := toolByName(t, Tools(NewClient("http://invalid.test", nil)), "get_alerts")

	for _, args := range []string{`{"state":""}`, `{"state":"California"}`, `{}`} {
		if _, err := tool.Handler(context.Background(), args); err == nil {
			t.Errorf("args %s: expected validation error", args)
		}
	}
}

func TestGetForecast(t *testing.T) {
	srv := newNWSServer(t)
	client := NewClient(srv.URL, srv.Client())

	tool := toolByName(t, Tools(client), "get_forecast")
	out, err := tool.Handler(context.Background(), `{"latitude":37.77,"longitude":-122.42}`)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	for _, want := range []string{
		"Tonight:",
		"Temperature: 58°F",
		"Wind: 5 mph SW",
		"Forecast: Partly cloudy.",
		"Sunday Night:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// Only the first five periods are rendered.
	if strings.Contains(out, "Monday:") {
		t.Errorf("output should be capped at %d periods:\n%s", forecastPeriods, out)
	}
}

func TestGetForecastUpstreamDownDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	client := NewClient(srv.URL, srv.Client())

	tool := toolByName(t, Tools(client), "get_forecast")
	out, err := tool.Handler(context.Background(), `{"latitude":37.77,"longitude":-122.42}`)
	if err != nil {
		t.Fatalf("upstream failure must degrade, not error: %v", err)
	}
	if out != "Unable to fetch forecast data for this location." {
		t.Errorf("out = %q", out)
	}
}

func TestGetForecastCoordinateValidation(t *testing.T) {
	tool := toolByName(t, Tools(NewClient("http://invalid.test", nil)), "get_forecast")

	for _, args := range []string{
		`{"latitude":91,"longitude":0}`,
		`{"latitude":-91,"longitude":0}`,
		`{"latitude":0,"longitude":181}`,
		`{"latitude":0,"longitude":-181}`,
	} {
		if _, err := tool.Handler(context.Background(), args); err == nil {
			t.Errorf("args %s: expected validation error", args)
		}
	}
}

func TestFormatForecastUnparseable(t *testing.T) {
	if got := formatForecast(`{"properties":{}}`); got != "Unable to parse forecast data." {
		t.Errorf("got %q", got)
	}
	if got := formatForecast(`not json`); got != "Unable to parse forecast data." {
		t.Errorf("got %q", got)
	}
}

func TestRegionsResource(t *testing.T) {
	resources := Resources()
	if len(resources) != 1 {
		t.Fatalf("got %d resources, want 1", len(resources))
	}
	res := resources[0]
	if res.URI != "weather://regions" {
		t.Errorf("URI = %q", res.URI)
	}

	content, err := res.Reader(context.Background())
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	for _, code := range []string{"CA", "NY", "DC", "PR"} {
		if !strings.Contains(content, code) {
			t.Errorf("regions content missing %q", code)
		}
	}
}
