package config

import "fmt"

func validate(c *Config) error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be a valid TCP port")
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be a valid TCP port")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be > 0")
	}
	if c.BrowserIdleTimeout <= 0 {
		return fmt.Errorf("browser idle timeout must be > 0")
	}
	if c.BrowserMaxAge <= 0 {
		return fmt.Errorf("browser max age must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be > 0")
	}
	if c.CircuitExitThreshold <= 0 {
		return fmt.Errorf("circuit breaker exit threshold must be > 0")
	}
	return nil
}
