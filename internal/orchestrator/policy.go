package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stratus-ai/stratus/internal/config"
)

// Cache categories used for tool results.
const (
	CategoryAlerts   = "alerts"
	CategoryForecast = "forecast"
)

// ToolPolicy describes how the loop treats one tool: whether its results are
// cached and under which key, and whether the caller's IP address is injected
// into the arguments. Adding a new tool to the loop is a data change here,
// not a control-flow change.
type ToolPolicy struct {
	// Category tags cache entries produced by this tool. Empty means the
	// tool's results are never cached and every call goes to the invoker.
	Category string

	// MaxAge is the freshness window consulted on cache reads. Ignored when
	// Category is empty.
	MaxAge time.Duration

	// Key builds the cache key from the tool's JSON-encoded arguments.
	// A returned error skips the cache for that call. Ignored when Category
	// is empty.
	Key func(args string) (string, error)

	// NeedsClientIP injects the caller's IP address into the "ip_address"
	// argument when the model did not supply one.
	NeedsClientIP bool
}

// alertsKey builds cache keys of the form "alerts_CA".
func alertsKey(args string) (string, error) {
	state := gjson.Get(args, "state")
	if !state.Exists() || state.String() == "" {
		return "", fmt.Errorf("orchestrator: alerts call has no state argument")
	}
	return "alerts_" + strings.ToUpper(state.String()), nil
}

// forecastKey builds cache keys of the form "forecast_37.77_-122.42", with
// coordinates rounded to precision decimal digits so nearby lookups share an
// entry.
func forecastKey(precision int) func(args string) (string, error) {
	return func(args string) (string, error) {
		lat := gjson.Get(args, "latitude")
		lon := gjson.Get(args, "longitude")
		if !lat.Exists() || !lon.Exists() {
			return "", fmt.Errorf("orchestrator: forecast call is missing coordinates")
		}
		return fmt.Sprintf("forecast_%.*f_%.*f", precision, lat.Float(), precision, lon.Float()), nil
	}
}

// DefaultPolicies returns the per-tool descriptor table for the built-in
// toolset, parameterised by the cache tuning in cfg.
func DefaultPolicies(cfg config.CacheConfig) map[string]ToolPolicy {
	return map[string]ToolPolicy{
		"get_alerts": {
			Category: CategoryAlerts,
			MaxAge:   cfg.AlertsMaxAge,
			Key:      alertsKey,
		},
		"get_forecast": {
			Category: CategoryForecast,
			MaxAge:   cfg.ForecastMaxAge,
			Key:      forecastKey(cfg.CoordPrecision),
		},
		"get_current_time": {
			NeedsClientIP: true,
		},
	}
}
