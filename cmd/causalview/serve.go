package main

import (
	"context"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-causalview/pkg/api"
	"github.com/dd0wney/cluso-causalview/pkg/api/middleware"
	"github.com/dd0wney/cluso-causalview/pkg/config"
	"github.com/dd0wney/cluso-causalview/pkg/logging"
	"github.com/dd0wney/cluso-causalview/pkg/metrics"
	"github.com/dd0wney/cluso-causalview/pkg/server"
	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

const metricsInterval = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr, graphFile string
	var engine engineFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API over one shared engine",
		Long: "Serve the virtualize, viewport, config, cache, stats, cluster and GraphQL endpoints.\n" +
			"SIGHUP reloads the config file and the scene graph; SIGINT/SIGTERM drain and exit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("graph") {
				cfg.GraphFile = graphFile
			}

			logger := newLogger(os.Stderr, cfg)
			registry := metrics.NewRegistry()
			virtualizer := engine.newEngine(cmd.Flags(), cfg,
				visualization.WithLogger(logger),
				visualization.WithMetrics(registry))

			srv, err := api.NewServer(virtualizer, logger, registry)
			if err != nil {
				return err
			}
			srv.SetCORSConfig(corsConfig(cfg.CORSOrigins))
			srv.SetMaxBodyBytes(int64(cfg.MaxBodyMB) << 20)

			if err := loadSceneFile(srv, registry, cfg.GraphFile); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			srv.StartMetricsCollector(ctx, metricsInterval)

			gs := server.NewGracefulServer(cfg.Addr, srv.Handler(), logger)
			gs.SetShutdownTimeout(cfg.ShutdownTimeout)
			gs.SetConfigReloadFunc(func() error {
				next, err := loadConfig()
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("graph") {
					next.GraphFile = graphFile
				}
				logger.SetLevel(logging.ParseLevel(next.LogLevel))
				virtualizer.UpdateConfig(engine.partial(cmd.Flags(), next.Engine))
				return loadSceneFile(srv, registry, next.GraphFile)
			})

			return gs.Start()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "Listen address")
	cmd.Flags().StringVar(&graphFile, "graph", "", "Scene graph file to load at startup (.json, .yaml)")
	engine.bind(cmd.Flags())
	return cmd
}

// loadSceneFile loads path into the server's scene; an empty path is a no-op
func loadSceneFile(srv *api.Server, registry *metrics.Registry, path string) error {
	if path == "" {
		return nil
	}
	g, err := visualization.LoadGraph(path)
	if err != nil {
		registry.RecordGraphLoad("file", err, 0, 0)
		return err
	}
	srv.LoadScene(g, "file")
	return nil
}

// corsConfig allows the configured viewer origins with the default methods and headers
func corsConfig(origins []string) *middleware.CORSConfig {
	cfg := middleware.DefaultCORSConfig()
	cfg.AllowedOrigins = slices.Clone(origins)
	return cfg
}
