package main

import (
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goregime/adapters/postgres"
	"goregime/internal/api"
	"goregime/internal/errors"
	"goregime/internal/telemetry"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored runs and metrics over HTTP",
	Long:  "Starts a read-only JSON API over the result store at /api/runs and Prometheus metrics at /metrics.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		if cfg.Store.DSN == "" {
			return errors.ConfigInvalid("serve needs a result store: set REGIME_STORE_DSN")
		}

		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := telemetry.Register(prometheus.DefaultRegisterer); err != nil {
			return eris.Wrap(err, "register metrics")
		}

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           api.NewServer(postgres.NewResultRepository(db, logger), prometheus.DefaultGatherer, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		logger.Info("starting api server", zap.String("addr", srv.Addr), zap.String("driver", cfg.Store.Driver))

		go func() {
			<-ctx.Done()
			logger.Info("shutting down api server")
			_ = srv.Close()
		}()

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "api server")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "HTTP port (overrides REGIME_SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}
