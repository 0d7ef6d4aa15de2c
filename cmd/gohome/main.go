package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/joshp123/gohome-sengled/internal/announce"
	"github.com/joshp123/gohome-sengled/internal/config"
	"github.com/joshp123/gohome-sengled/internal/core"
	"github.com/joshp123/gohome-sengled/internal/plugins"
	"github.com/joshp123/gohome-sengled/internal/router"
	"github.com/joshp123/gohome-sengled/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "gohome",
		Short:        "GoHome daemon with the Sengled accessory platform",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to gohome.yaml (default: search /etc/gohome, user config dir, .)")
	root.Flags().String("grpc-addr", "", "gRPC listen address")
	root.Flags().String("http-addr", "", "HTTP listen address")
	root.Flags().String("log-level", "", "debug, info, warn, or error")

	root.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Validate the config and list the plugins it enables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, nil)
			if err != nil {
				return err
			}
			active := core.FilterPlugins(plugins.Compiled(cfg), config.EnabledPlugins(cfg), false)
			if err := core.ValidatePlugins(active); err != nil {
				return err
			}
			for _, p := range active {
				manifest := p.Manifest()
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", manifest.PluginID, manifest.DisplayName, p.Health())
			}
			return nil
		},
	})

	return root
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "gohome",
	})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		parsed = log.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Core.LogLevel)

	store, err := core.NewCacheStore(cfg.Cache)
	if err != nil {
		return fmt.Errorf("accessory cache: %w", err)
	}
	cache := core.NewAccessoryCache(store)
	if err := cache.Load(ctx); err != nil {
		logger.Warn("starting with an empty accessory cache", "err", err)
	}

	var listeners []core.AccessoryListener
	if cfg.MQTT != nil {
		pub, err := announce.Dial(*cfg.MQTT)
		if err != nil {
			logger.Warn("mqtt announcer disabled", "err", err)
		} else {
			announcer := announce.New(pub, cfg.MQTT.TopicPrefix)
			defer announcer.Close()
			listeners = append(listeners, announcer)
		}
	}

	host := core.NewHost(logger, cache, listeners...)

	compiled := plugins.Compiled(cfg)
	enabled := config.EnabledPlugins(cfg)
	if err := core.ValidateEnabledPlugins(compiled, enabled, false); err != nil {
		return err
	}
	active := core.FilterPlugins(compiled, enabled, false)
	if err := core.ValidatePlugins(active); err != nil {
		return err
	}
	if err := core.WriteDashboards(cfg.Core.DashboardDir, active); err != nil {
		logger.Warn("dashboards not provisioned", "err", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	healthServer := router.RegisterPlugins(grpcServer.Server, active)
	go router.WatchHealth(ctx, healthServer, active, 15*time.Second)

	metricsRegistry := core.MetricsRegistry(active)
	metricsRegistry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gohome_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))

	registry := core.NewRegistryService(active)
	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/health", server.HealthHandler)
	httpMux.Handle("/metrics", server.MetricsHandler(metricsRegistry))
	httpMux.Handle("/dashboards/", server.DashboardsHandler(core.DashboardsMap(active)))
	httpMux.Handle("/status", server.StatusHandler(registry, host))
	httpMux.Handle("/status/", server.StatusHandler(registry, host))
	for _, p := range active {
		if registrant, ok := p.(core.HTTPRegistrant); ok {
			registrant.RegisterHTTP(httpMux)
		}
	}
	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, httpMux)

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	logger.Info("serving", "grpc", cfg.Core.GRPCAddr, "http", cfg.Core.HTTPAddr, "plugins", len(active))

	host.Start(ctx, active)
	host.RestoreCached(active)
	host.FinishLaunching()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server stopped", "err", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	grpcServer.Stop()

	return serveErr
}
