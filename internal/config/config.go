package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values, per the external
// interfaces table (environment, with defaults).
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// HTTP front door
	Port        int
	MetricsPort int
	Secret      string

	// Browser pool / pipeline
	MaxConcurrent        int
	BrowserIdleTimeout   time.Duration
	BrowserMaxAge        time.Duration
	ShutdownTimeout      time.Duration
	CircuitExitThreshold time.Duration
	ChromePath           string
	UserAgent            string

	// Front-door rate limiting (ambient, beyond spec.md)
	ClientRateLimitRPS   float64
	ClientRateLimitBurst int
}

// Load builds a Config by combining defaults, environment variables, and CLI
// flags. Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:             DefaultLogLevel,
		JSONLog:              DefaultJSONLog,
		Port:                 DefaultPort,
		MetricsPort:          DefaultMetricsPort,
		MaxConcurrent:        DefaultMaxConcurrent,
		BrowserIdleTimeout:   DefaultBrowserIdleTimeout,
		BrowserMaxAge:        DefaultBrowserMaxAge,
		ShutdownTimeout:      DefaultShutdownTimeout,
		CircuitExitThreshold: DefaultCircuitExitThreshold,
		UserAgent:            DefaultUserAgent,
		ClientRateLimitRPS:   DefaultClientRateLimitRPS,
		ClientRateLimitBurst: DefaultClientRateLimitBurst,
	}

	// Override from environment variables (§6 table).
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MetricsPort = n
		}
	}
	if v := os.Getenv("EXTRACTION_SECRET"); v != "" {
		cfg.Secret = v
	}
	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrent = n
		}
	}
	if v := os.Getenv("BROWSER_IDLE_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BrowserIdleTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("BROWSER_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BrowserMaxAge = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ShutdownTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("CIRCUIT_BREAKER_EXIT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CircuitExitThreshold = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		cfg.ChromePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v == "json" {
		cfg.JSONLog = true
	}

	// CLI flags take precedence over the environment, mirroring the
	// teacher's flag-then-env layering.
	if cmd != nil {
		if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
			if n, err := strconv.Atoi(f.Value.String()); err == nil {
				cfg.Port = n
			}
		}
		if f := cmd.Flags().Lookup("metrics-port"); f != nil && f.Changed {
			if n, err := strconv.Atoi(f.Value.String()); err == nil {
				cfg.MetricsPort = n
			}
		}
		if f := cmd.Flags().Lookup("max-concurrent"); f != nil && f.Changed {
			if n, err := strconv.Atoi(f.Value.String()); err == nil {
				cfg.MaxConcurrent = n
			}
		}
		if f := cmd.Flags().Lookup("chrome-path"); f != nil && f.Changed {
			cfg.ChromePath = f.Value.String()
		}
		if f := cmd.Flags().Lookup("verbose"); f != nil && f.Value.String() == "true" {
			cfg.LogLevel = "debug"
		}
		if f := cmd.Flags().Lookup("json"); f != nil && f.Value.String() == "true" {
			cfg.JSONLog = true
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
