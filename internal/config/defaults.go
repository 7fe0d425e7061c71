package config

import "time"

// Default constants for application configuration, per the external
// interfaces table.
const (
	DefaultPort          = 3001
	DefaultMetricsPort   = 9090
	DefaultMaxConcurrent = 2

	DefaultBrowserIdleTimeout   = 60 * time.Second
	DefaultBrowserMaxAge        = 120 * time.Minute
	DefaultShutdownTimeout      = 30 * time.Second
	DefaultCircuitExitThreshold = 120 * time.Second

	// Internal constants (not environment-configurable).
	WatchdogInterval  = 10 * time.Second
	CircuitThreshold  = 3
	CircuitResetDelay = 30 * time.Second

	PriorityNormal = 0
	PriorityHigh   = 10

	DefaultLogLevel = "error"
	DefaultJSONLog  = false

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// DefaultExtractTimeout is used when a request's "timeout" is omitted or
	// not positive.
	DefaultExtractTimeout = 30 * time.Second

	// DefaultClientRateLimitRPS/Burst throttle POST /extract per remote IP.
	DefaultClientRateLimitRPS   = 2.0
	DefaultClientRateLimitBurst = 4

	// DefaultNavigationTimeout bounds chromedp's page.goto wait.
	DefaultNavigationTimeout = 15 * time.Second
)
