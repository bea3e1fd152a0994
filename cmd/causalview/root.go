package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dd0wney/cluso-causalview/pkg/config"
	"github.com/dd0wney/cluso-causalview/pkg/logging"
	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

var version = "1.0.0"

var (
	configPath string
	logLevel   string
)

// newRootCmd builds the command tree. Flags bind to package state, so each
// call resets them to their defaults.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "causalview",
		Short: "causalview — viewport virtualization for large causal graphs",
		Long: Brand.Sprint("causalview") + " — decide what a renderer should draw for a viewport\n" +
			Subtle.Sprint("Culling, level of detail and spatial clustering over causal event graphs"),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate("causalview {{ .Version }}\n")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Service config file (.yaml, .yml or .toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		serveCmd(),
		virtualizeCmd(),
		generateCmd(),
		benchCmd(),
		viewCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// loadConfig reads --config (or defaults plus environment) and applies --log-level
func loadConfig() (*config.ServerConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger writes JSON logs to w at the configured level
func newLogger(w io.Writer, cfg *config.ServerConfig) logging.Logger {
	return logging.NewJSONLogger(w, logging.ParseLevel(cfg.LogLevel))
}

// engineFlags are the engine options shared by the offline commands.
// Only flags the user sets override the config file.
type engineFlags struct {
	maxNodes            int
	viewportBuffer      float64
	clusteringThreshold float64
	noCulling           bool
	noClustering        bool
	seed                int64
}

func (f *engineFlags) bind(fs *pflag.FlagSet) {
	fs.IntVar(&f.maxNodes, "max-nodes", visualization.DefaultMaxNodes, "Bypass threshold: graphs this small are returned unchanged")
	fs.Float64Var(&f.viewportBuffer, "buffer", visualization.DefaultViewportBuffer, "Culling margin around the viewport, in canvas units")
	fs.Float64Var(&f.clusteringThreshold, "clustering-threshold", visualization.DefaultClusteringThreshold, "Zoom below which clustering may activate")
	fs.BoolVar(&f.noCulling, "no-culling", false, "Disable viewport culling")
	fs.BoolVar(&f.noClustering, "no-clustering", false, "Disable spatial clustering")
	fs.Int64Var(&f.seed, "seed", 0, "Seed for cluster center selection (0 uses the config seed or the clock)")
}

// partial merges set flags over the config file's engine section
func (f *engineFlags) partial(fs *pflag.FlagSet, base visualization.PartialConfig) visualization.PartialConfig {
	p := base
	if fs.Changed("max-nodes") {
		p.MaxNodes = visualization.Ptr(f.maxNodes)
	}
	if fs.Changed("buffer") {
		p.ViewportBuffer = visualization.Ptr(f.viewportBuffer)
	}
	if fs.Changed("clustering-threshold") {
		p.ClusteringThreshold = visualization.Ptr(f.clusteringThreshold)
	}
	if f.noCulling {
		p.EnableCulling = visualization.Ptr(false)
	}
	if f.noClustering {
		p.EnableClustering = visualization.Ptr(false)
	}
	return p
}

// newEngine builds a virtualizer from config plus flags
func (f *engineFlags) newEngine(fs *pflag.FlagSet, cfg *config.ServerConfig, opts ...visualization.Option) *visualization.Virtualizer {
	seed := cfg.Seed
	if f.seed != 0 {
		seed = f.seed
	}
	opts = append(opts, visualization.WithConfig(f.partial(fs, cfg.Engine)))
	if seed != 0 {
		opts = append(opts, visualization.WithSeed(seed))
	}
	return visualization.NewVirtualizer(opts...)
}

// viewportFlags describe the viewport for offline commands
type viewportFlags struct {
	x, y, width, height, zoom float64
}

func (f *viewportFlags) bind(fs *pflag.FlagSet) {
	fs.Float64Var(&f.x, "x", 0, "Viewport left edge")
	fs.Float64Var(&f.y, "y", 0, "Viewport top edge")
	fs.Float64Var(&f.width, "width", 1920, "Viewport width")
	fs.Float64Var(&f.height, "height", 1080, "Viewport height")
	fs.Float64Var(&f.zoom, "zoom", 1, "Zoom factor (1.0 = native)")
}

func (f *viewportFlags) viewport() (visualization.Viewport, error) {
	if f.zoom <= 0 {
		return visualization.Viewport{}, fmt.Errorf("zoom must be greater than 0, got %g", f.zoom)
	}
	if f.width < 0 || f.height < 0 {
		return visualization.Viewport{}, fmt.Errorf("viewport size must not be negative, got %gx%g", f.width, f.height)
	}
	return visualization.Viewport{X: f.x, Y: f.y, Width: f.width, Height: f.height, Zoom: f.zoom}, nil
}
