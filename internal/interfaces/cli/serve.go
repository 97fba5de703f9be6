package cli

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/turtacn/molscore/internal/config"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	molhttp "github.com/turtacn/molscore/internal/interfaces/http"
	"github.com/turtacn/molscore/internal/interfaces/http/handlers"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scoring API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if addr == "" {
				addr = cfg.Server.Addr()
			}

			comps, err := buildComponents(cmd.Context(), cfg, cliCtx.Logger, true)
			if err != nil {
				return err
			}
			defer comps.Close()

			auth, err := comps.buildAuth(cmd.Context(), cfg, cliCtx.Logger)
			if err != nil {
				return err
			}
			routerCfg := molhttp.RouterConfig{
				ScoringHandler:   handlers.NewScoringHandler(comps.Service, cfg.Server.MaxBodySize, cliCtx.Logger),
				HealthHandler:    handlers.NewHealthHandler(Version, comps.Checkers...),
				Auth:             auth,
				Logger:           cliCtx.Logger.Named("http"),
				Metrics:          comps.Metrics,
				MetricsCollector: comps.Collector,
				MetricsPath:      cfg.Metrics.Path,
			}
			if comps.Runs != nil {
				routerCfg.RunsHandler = handlers.NewRunsHandler(comps.Runs, cliCtx.Logger)
			}
			return runServer(cmd, cfg, addr, molhttp.NewRouter(routerCfg), cliCtx.Logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.host:server.port)")
	return cmd
}

// runServer serves handler until the command context is cancelled.
func runServer(cmd *cobra.Command, cfg *config.Config, addr string, handler http.Handler, logger logging.Logger) error {
	srv := molhttp.NewServer(molhttp.ServerConfig{
		Addr:            addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, logger)
	return srv.ListenAndServe(cmd.Context())
}
