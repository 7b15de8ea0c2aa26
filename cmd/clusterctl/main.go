package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/clusterctl/internal/cluster"
	"github.com/oriys/clusterctl/internal/config"
	"github.com/oriys/clusterctl/internal/api/controlplane"
	"github.com/oriys/clusterctl/internal/logging"
	"github.com/oriys/clusterctl/internal/metrics"
	"github.com/oriys/clusterctl/internal/store"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "clusterctl",
		Short: "clusterctl - cluster control plane for a distributed log engine",
		Long:  "clusterctl runs the liveness, broadcast, dispatch, and metrics-aggregation control plane that sits alongside a fleet of log-engine nodes.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to JSON config file (optional, env overrides apply on top)")

	rootCmd.AddCommand(daemonCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func daemonCmd() *cobra.Command {
	var (
		httpAddr string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the control plane daemon",
		Long:  "Starts the periodic scheduler, the admin HTTP surface, and the operational metrics exporter.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			if configFile != "" {
				var err error
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			} else {
				cfg = config.DefaultConfig()
			}
			config.LoadFromEnv(cfg)

			if cmd.Flags().Changed("http") {
				cfg.Daemon.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
				cfg.Logging.Level = logLevel
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

			if cfg.Metrics.Enabled {
				metrics.Init(cfg.Metrics.Namespace)
			}

			ctx := context.Background()

			pg, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			registry := store.NewClusterRegistryGateway(pg)

			sink, err := store.NewRedisSink(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer sink.Close()

			httpClient := &http.Client{Timeout: 30 * time.Second}

			exec := cluster.NewExecutor(httpClient)
			broadcaster := cluster.NewBroadcaster(registry, exec)
			collector := cluster.NewCollector(registry, httpClient)
			dispatcher := cluster.NewQuerierDispatcher(registry, httpClient)

			scheduler := cluster.NewScheduler(collector, sink)
			scheduler.TickInterval = cfg.Scheduler.TickInterval
			scheduler.PollInterval = cfg.Scheduler.PollInterval
			go scheduler.Start(ctx)
			defer scheduler.Stop()

			handler := &controlplane.Handler{
				Registry:    registry,
				Collector:   collector,
				Dispatcher:  dispatcher,
				Broadcaster: broadcaster,
				HTTPClient:  httpClient,
			}

			mux := http.NewServeMux()
			handler.RegisterRoutes(mux)
			mux.Handle("GET /metrics", metrics.Handler())
			mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
			})

			httpServer := &http.Server{
				Addr:    cfg.Daemon.HTTPAddr,
				Handler: mux,
			}

			go func() {
				logging.Op().Info("admin HTTP surface started", "addr", cfg.Daemon.HTTPAddr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logging.Op().Error("http server error", "error", err)
				}
			}()

			logging.Op().Info("clusterctl daemon started",
				"postgres", cfg.Postgres.DSN,
				"redis", cfg.Redis.Addr,
				"tick_interval", cfg.Scheduler.TickInterval.String())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			logging.Op().Info("shutdown signal received")
			scheduler.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)

			return nil
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Admin HTTP surface address (e.g. :8000)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	return cmd
}
