package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

// benchRun is the timing of one zoom level
type benchRun struct {
	zoom        float64
	lod         string
	visible     int
	culled      int
	clustered   int
	avg         time.Duration
	fastest     time.Duration
	cacheHits   uint64
	cacheMisses uint64
}

func benchCmd() *cobra.Command {
	var engine engineFlags
	var vp viewportFlags
	var zooms []float64
	var iterations int
	source := newGraphSource()

	cmd := &cobra.Command{
		Use:   "bench [graph.json|graph.yaml]",
		Short: "Time virtualization across zoom levels",
		Long: "Run repeated virtualizations of one graph at each zoom level and report\n" +
			"the level of detail chosen, the reduction achieved and the time taken.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations <= 0 {
				return fmt.Errorf("iterations must be positive, got %d", iterations)
			}
			if len(zooms) == 0 {
				return errors.New("at least one zoom level is required")
			}
			base, err := vp.viewport()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			g, err := source.load(args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			banner(out, "bench")
			fmt.Fprintf(out, "  %d nodes, %d connections, %d iterations per zoom\n\n",
				len(g.Nodes), len(g.Connections), iterations)

			runs := make([]benchRun, 0, len(zooms))
			for _, z := range zooms {
				if z <= 0 {
					return fmt.Errorf("zoom must be greater than 0, got %g", z)
				}
				viewport := base
				viewport.Zoom = z
				// A fresh engine per zoom keeps cache counts per level
				virtualizer := engine.newEngine(cmd.Flags(), cfg)
				runs = append(runs, benchZoom(virtualizer, g, viewport, iterations))
			}

			printBench(out, runs)
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&zooms, "zooms", []float64{0.1, 0.25, 0.5, 1, 2, 4}, "Zoom levels to measure")
	cmd.Flags().IntVarP(&iterations, "iterations", "i", 20, "Virtualizations per zoom level")
	engine.bind(cmd.Flags())
	vp.bind(cmd.Flags())
	source.bind(cmd.Flags())
	return cmd
}

// benchZoom runs iterations virtualizations of g at vp
func benchZoom(v *visualization.Virtualizer, g visualization.Graph, vp visualization.Viewport, iterations int) benchRun {
	run := benchRun{zoom: vp.Zoom}
	var total time.Duration

	for i := 0; i < iterations; i++ {
		start := time.Now()
		result := v.Virtualize(g.Nodes, g.Connections, vp)
		elapsed := time.Since(start)

		total += elapsed
		if i == 0 || elapsed < run.fastest {
			run.fastest = elapsed
		}
		run.lod = result.LODLevel
		run.visible = result.VisibleNodeCount
		run.culled = result.CulledNodeCount
		run.clustered = result.ClusteredNodeCount
	}

	run.avg = total / time.Duration(iterations)
	stats := v.Stats()
	run.cacheHits = stats.CacheHits
	run.cacheMisses = stats.CacheMisses
	return run
}

func printBench(w io.Writer, runs []benchRun) {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			strconv.FormatFloat(r.zoom, 'g', -1, 64),
			r.lod,
			strconv.Itoa(r.visible),
			strconv.Itoa(r.culled),
			strconv.Itoa(r.clustered),
			formatDuration(r.avg),
			formatDuration(r.fastest),
			fmt.Sprintf("%d/%d", r.cacheHits, r.cacheHits+r.cacheMisses),
		}
	}
	table(w, []string{"ZOOM", "LOD", "VISIBLE", "CULLED", "CLUSTERED", "AVG", "MIN", "CACHE HITS"}, rows)
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.1fµs", float64(d.Nanoseconds())/1e3)
	}
	return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
}
