package cli

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-admin-console/internal/observability"
)

func newServeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the console HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown, err := observability.Setup(ctx, e.cfg.OTEL, e.version)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(cmd.Context()); err != nil {
					log.Warn().Err(err).Msg("tracer shutdown")
				}
			}()

			log.Info().Str("version", e.version).Str("gin_mode", e.cfg.GinMode).Msg("starting console")
			return e.app.Serve(ctx)
		},
	}
}
