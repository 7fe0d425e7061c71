// internal/cli/root.go
package cli

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/hlsextract/internal/config"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "hlsextract",
	Short:   "Headless-browser HLS manifest extraction service",
	Long:    `hlsextract runs a small HTTP service that drives a headless browser to sight the HLS manifest request an embed player issues.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	config.RegisterFlags(rootCmd)
	cobra.OnInitialize(initConfig)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd)
}

// initConfig sets the global log level/format ahead of any command running,
// so the command's own logging is formatted consistently. A failed
// config.Load here is logged before the format is set, then defaults apply.
func initConfig() {
	cfg, err := config.Load(rootCmd)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load configuration, using defaults")
		cfg = &config.Config{LogLevel: config.DefaultLogLevel}
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}

	if cfg.JSONLog {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
