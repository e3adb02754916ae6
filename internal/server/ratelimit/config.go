package ratelimit

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Endpoint paths with their own limits.
const (
	AnalyzePath      = "/analyze-website"
	ConversationPath = "/conversations"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
}

// String renders the limit the way it is configured, e.g. "5 per 1 minute".
func (e EndpointConfig) String() string {
	return fmt.Sprintf("%d per %s", e.Limit, describeWindow(e.Window))
}

var windowUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRate parses a rate such as "5/minute", "100/hour" or "10 per second".
func ParseRate(rate string) (int, time.Duration, error) {
	normalized := strings.ToLower(strings.TrimSpace(rate))
	normalized = strings.Replace(normalized, " per ", "/", 1)

	countStr, unit, ok := strings.Cut(normalized, "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid rate %q: expected <count>/<unit>", rate)
	}

	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count <= 0 {
		return 0, 0, fmt.Errorf("invalid rate %q: count must be a positive integer", rate)
	}

	unit = strings.TrimSuffix(strings.TrimSpace(unit), "s")
	window, ok := windowUnits[unit]
	if !ok {
		return 0, 0, fmt.Errorf("invalid rate %q: unknown unit %q", rate, unit)
	}

	return count, window, nil
}

// EndpointConfigs returns the per-endpoint limits for the analysis and conversation routes.
func EndpointConfigs(analyzeRate, conversationRate string) ([]EndpointConfig, error) {
	routes := []struct {
		path string
		rate string
	}{
		{AnalyzePath, analyzeRate},
		{ConversationPath, conversationRate},
	}

	configs := make([]EndpointConfig, 0, len(routes))
	for _, route := range routes {
		limit, window, err := ParseRate(route.rate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", route.path, err)
		}
		configs = append(configs, EndpointConfig{
			Path:   route.path,
			Method: http.MethodPost,
			Limit:  limit,
			Window: window,
		})
	}
	return configs, nil
}

// LoadConfig builds the limiter configuration from the endpoint rates and the
// RATE_LIMIT_* tuning variables.
func LoadConfig(analyzeRate, conversationRate string) (*Config, error) {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}, nil
	}

	endpoints, err := EndpointConfigs(analyzeRate, conversationRate)
	if err != nil {
		return nil, err
	}

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", 1000),
		DefaultWindow:   getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute),
		CleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		Whitelist:       parseIPList(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: endpoints,
	}, nil
}

func describeWindow(window time.Duration) string {
	for _, unit := range []string{"day", "hour", "minute", "second"} {
		size := windowUnits[unit]
		if window >= size && window%size == 0 {
			return fmt.Sprintf("%d %s", window/size, unit)
		}
	}
	return window.String()
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a set.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
