package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command.
// Each flag overrides its corresponding environment variable when set.
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("json", false, "Log in JSON format")
	cmd.PersistentFlags().Int("port", DefaultPort, "HTTP listen port (PORT)")
	cmd.PersistentFlags().Int("metrics-port", DefaultMetricsPort, "Metrics listen port (METRICS_PORT)")
	cmd.PersistentFlags().Int("max-concurrent", DefaultMaxConcurrent, "Admission bound (MAX_CONCURRENT)")
	cmd.PersistentFlags().String("chrome-path", "", "Browser binary path (CHROME_PATH)")
}
