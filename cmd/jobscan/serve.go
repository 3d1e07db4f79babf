package main

import (
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jobscan/internal/api/middleware"
	"github.com/GriffinCanCode/jobscan/internal/backend"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jobscan/internal/server"
	"github.com/GriffinCanCode/jobscan/internal/tabs"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port      string
		noBackend bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API used by the browser extension",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if port != "" {
				cfg.Server.Port = port
			}

			store, closeStore, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeStore()

			reg := prometheus.NewRegistry()
			metrics := monitoring.NewMetrics(reg)

			s, err := a.newScanner(metrics)
			if err != nil {
				return err
			}
			policy, err := a.newPolicy()
			if err != nil {
				return err
			}
			hist := a.newHistory(store)

			var client *backend.Client
			if !noBackend && cfg.Backend.URL != "" {
				client = backend.New(cfg.BackendClientConfig(), a.logger, metrics, backend.WithHistory(hist))
			}

			cors := middleware.DefaultCORSConfig()
			if len(cfg.Server.AllowedOrigins) > 0 {
				cors.AllowOrigins = append(cors.AllowOrigins, cfg.Server.AllowedOrigins...)
			}
			var rate *middleware.RateLimitConfig
			if cfg.RateLimit.Enabled {
				rl := middleware.DefaultRateLimitConfig()
				rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
				rl.Burst = cfg.RateLimit.Burst
				rate = &rl
			}

			srv := server.New(server.Config{
				Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
				CORS:         cors,
				RateLimit:    rate,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
				Development:  cfg.Logging.Development,
			}, server.Deps{
				Scanner:  s,
				Sessions: a.newSessions(store, policy, metrics),
				Policy:   policy,
				Tabs:     tabs.NewRegistry(a.logger),
				History:  hist,
				Backend:  client,
				Metrics:  metrics,
				Gatherer: reg,
				Logger:   a.logger,
			})

			a.logger.Info("jobscan API",
				zap.String("host", cfg.Server.Host),
				zap.String("port", cfg.Server.Port),
				zap.String("store", storeName(cfg.Storage.Path)),
				zap.Bool("backend", client != nil))
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (default: JOBSCAN_PORT)")
	cmd.Flags().BoolVar(&noBackend, "no-backend", false, "Disable the matching backend endpoints")
	return cmd
}

func storeName(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}
