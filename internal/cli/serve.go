package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/hlsextract/internal/app"
	"github.com/law-makers/hlsextract/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction HTTP service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Root())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	SetApp(application)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- application.ListenAndServe()
	}()

	select {
	case sig := <-sigCh:
		log.Warn().Str("signal", sig.String()).Msg("shutdown signal received, draining in-flight extractions")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("serve: listener failed")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	return application.Close(shutdownCtx)
}
