// Package localtime provides the built-in "get_current_time" MCP tool.
//
// The tool geolocates the caller's IP address to find their timezone and
// returns the current local time there, together with the estimated city and
// coordinates so the model can chain into a weather forecast lookup.
//
// Geolocation tries ip-api.com first and falls back to ipinfo.io; when both
// fail the tool reports UTC. Loopback and private-range addresses are blanked
// before lookup so the geolocation services detect the real public IP.
package localtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/stratus-ai/stratus/internal/mcp/tools"
	"github.com/stratus-ai/stratus/pkg/provider/llm"
)

// Default geolocation service endpoints.
const (
	DefaultIPAPIBaseURL  = "http://ip-api.com/json"
	DefaultIPInfoBaseURL = "https://ipinfo.io"
)

// location holds the geolocation result for one IP lookup.
type location struct {
	Timezone string
	City     string
	Region   string
	Country  string

	// HasCoords reports whether Lat / Lon carry a real fix.
	HasCoords bool
	Lat       float64
	Lon       float64
}

// unknownLocation is returned when every geolocation service fails.
var unknownLocation = location{
	Timezone: "UTC",
	City:     "Unknown",
	Region:   "Unknown",
	Country:  "Unknown",
}

// Resolver geolocates IP addresses and renders the current-time report.
//
// The zero value is not usable; create instances with [NewResolver].
type Resolver struct {
	ipapiBaseURL  string
	ipinfoBaseURL string
	http          *http.Client

	// now is the clock source, overridable in tests.
	now func() time.Time
}

// NewResolver creates a Resolver using the given service endpoints. Empty
// URLs select the public defaults. When httpClient is nil a default client
// with a 5 second timeout is used.
func NewResolver(ipapiBaseURL, ipinfoBaseURL string, httpClient *http.Client) *Resolver {
	if ipapiBaseURL == "" {
		ipapiBaseURL = DefaultIPAPIBaseURL
	}
	if ipinfoBaseURL == "" {
		ipinfoBaseURL = DefaultIPInfoBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Resolver{
		ipapiBaseURL:  ipapiBaseURL,
		ipinfoBaseURL: ipinfoBaseURL,
		http:          httpClient,
		now:           time.Now,
	}
}

// isPrivateIP reports whether ip is a loopback or private-range address that
// geolocation services cannot resolve.
func isPrivateIP(ip string) bool {
	return strings.HasPrefix(ip, "127.") ||
		strings.HasPrefix(ip, "192.168.") ||
		strings.HasPrefix(ip, "10.") ||
		strings.HasPrefix(ip, "172.") ||
		ip == "::1"
}

// Locate resolves ip to a location. An empty ip asks the services to detect
// the caller's public address. Locate never returns an error: when every
// service fails it returns [unknownLocation] (UTC, no coordinates).
func (r *Resolver) Locate(ctx context.Context, ip string) location {
	if ip != "" && isPrivateIP(ip) {
		ip = ""
	}

	if loc, ok := r.locateIPAPI(ctx, ip); ok {
		return loc
	}
	if loc, ok := r.locateIPInfo(ctx, ip); ok {
		return loc
	}
	return unknownLocation
}

// locateIPAPI queries ip-api.com. Responses carry a "status" field; anything
// but "success" (or missing coordinates) counts as a miss.
func (r *Resolver) locateIPAPI(ctx context.Context, ip string) (location, bool) {
	url := r.ipapiBaseURL
	if ip != "" {
		url += "/" + ip
	}

	body, err := r.get(ctx, url)
	if err != nil {
		return location{}, false
	}

	if gjson.Get(body, "status").String() != "success" {
		return location{}, false
	}
	lat := gjson.Get(body, "lat")
	lon := gjson.Get(body, "lon")
	if !lat.Exists() || !lon.Exists() {
		return location{}, false
	}

	return location{
		Timezone:  stringOr(body, "timezone", "UTC"),
		City:      stringOr(body, "city", "Unknown"),
		Region:    stringOr(body, "regionName", "Unknown"),
		Country:   stringOr(body, "country", "Unknown"),
		HasCoords: true,
		Lat:       lat.Float(),
		Lon:       lon.Float(),
	}, true
}

// locateIPInfo queries ipinfo.io, which encodes coordinates as "lat,lon" in
// a single "loc" field.
func (r *Resolver) locateIPInfo(ctx context.Context, ip string) (location, bool) {
	url := r.ipinfoBaseURL + "/json"
	if ip != "" {
		url = r.ipinfoBaseURL + "/" + ip + "/json"
	}

	body, err := r.get(ctx, url)
	if err != nil {
		return location{}, false
	}

	loc := gjson.Get(body, "loc").String()
	latStr, lonStr, found := strings.Cut(loc, ",")
	if !found {
		return location{}, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return location{}, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return location{}, false
	}

	return location{
		Timezone:  stringOr(body, "timezone", "UTC"),
		City:      stringOr(body, "city", "Unknown"),
		Region:    stringOr(body, "region", "Unknown"),
		Country:   stringOr(body, "country", "Unknown"),
		HasCoords: true,
		Lat:       lat,
		Lon:       lon,
	}, true
}

// stringOr extracts a string field from a JSON body with a fallback.
func stringOr(body, path, fallback string) string {
	if v := gjson.Get(body, path); v.Exists() && v.String() != "" {
		return v.String()
	}
	return fallback
}

// get performs a single GET request and returns the response body.
func (r *Resolver) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("localtime: failed to build request for %s: %w", url, err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("localtime: request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("localtime: %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("localtime: failed to read response from %s: %w", url, err)
	}
	return string(body), nil
}

// CurrentTime renders the current-time report for the given IP address.
// An empty ip lets the geolocation services detect the caller's public
// address.
func (r *Resolver) CurrentTime(ctx context.Context, ip string) string {
	loc := r.Locate(ctx, ip)

	tz, err := time.LoadLocation(loc.Timezone)
	if err != nil {
		now := r.now().UTC()
		return fmt.Sprintf(`Current Time (UTC):
Time: %s UTC
ISO Format: %s
Note: Could not determine timezone from IP, showing UTC time.
Error: %v`,
			now.Format("Monday, January 02, 2006 at 03:04:05 PM"),
			now.Format(time.RFC3339),
			err,
		)
	}

	now := r.now().In(tz)

	var sb strings.Builder
	fmt.Fprintf(&sb, `Current Time Information:
Time: %s
Timezone: %s
UTC Offset: %s
ISO Format: %s
Day of Week: %s
Date: %s

Location (estimated from IP):
City: %s, %s, %s`,
		now.Format("Monday, January 02, 2006 at 03:04:05 PM"),
		loc.Timezone,
		now.Format("-0700"),
		now.Format(time.RFC3339),
		now.Format("Monday"),
		now.Format("January 02, 2006"),
		loc.City, loc.Region, loc.Country,
	)

	if loc.HasCoords {
		fmt.Fprintf(&sb, "\nCoordinates: %g, %g", loc.Lat, loc.Lon)
		sb.WriteString("\n\nLocation detected successfully! Use these coordinates for weather lookups.")
	} else {
		sb.WriteString("\n\nCould not determine precise location from IP address.")
		sb.WriteString("\nFor weather forecasts, please provide your city/state or coordinates manually.")
	}

	if ip != "" {
		fmt.Fprintf(&sb, "\n(IP: %s)", ip)
	}

	return sb.String()
}

// timeArgs is the JSON-decoded input for the "get_current_time" tool.
type timeArgs struct {
	// IPAddress optionally pins the lookup to a specific address. When
	// empty the services detect the caller's public IP.
	IPAddress string `json:"ip_address"`
}

// Tools returns the time toolset ready for registration with the MCP Host.
// resolver may be nil, in which case a default [Resolver] against the public
// geolocation services is used.
func Tools(resolver *Resolver) []tools.Tool {
	if resolver == nil {
		resolver = NewResolver("", "", nil)
	}

	return []tools.Tool{
		{
			Definition: llm.ToolDefinition{
				Name:        "get_current_time",
				Description: "Get the current local time for the user, determined from their IP address. Also returns the estimated city and coordinates, which can be used for weather lookups.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"ip_address": map[string]any{
							"type":        "string",
							"description": "Optional IP address to determine the timezone. When omitted the caller's public IP is detected automatically.",
						},
					},
				},
			},
			Handler: func(ctx context.Context, args string) (string, error) {
				var a timeArgs
				if args != "" {
					if err := json.Unmarshal([]byte(args), &a); err != nil {
						return "", fmt.Errorf("localtime: failed to parse arguments: %w", err)
					}
				}
				return resolver.CurrentTime(ctx, a.IPAddress), nil
			},
		},
	}
}

// Resources returns the time resources ready for registration with the MCP
// Host.
func Resources() []tools.Resource {
	return []tools.Resource{
		{
			URI:         "time://usage",
			Name:        "Time tool usage",
			Description: "How to use the get_current_time tool and chain its output into weather lookups.",
			MIMEType:    "text/plain",
			Reader: func(_ context.Context) (string, error) {
				return `The get_current_time tool reports the user's current local time based on
their IP address. Pass ip_address to pin the lookup to a specific address;
omit it to auto-detect the caller's public IP.

The report includes estimated coordinates when geolocation succeeds. Feed
those coordinates into get_forecast to answer "what's the weather like
here?" style questions without asking the user for their location.`, nil
			},
		},
	}
}
