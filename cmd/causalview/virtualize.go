package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-causalview/pkg/logging"
	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

const (
	outputSummary = "summary"
	outputJSON    = "json"
	outputRender  = "render"
)

func virtualizeCmd() *cobra.Command {
	var engine engineFlags
	var vp viewportFlags
	var output string
	var top int
	source := newGraphSource()

	cmd := &cobra.Command{
		Use:   "virtualize [graph.json|graph.yaml]",
		Short: "Reduce a graph to what a viewport should draw",
		Long: "Run one virtualization over a graph file, or over a generated scene when no file is given.\n" +
			"Output is a summary table, the engine result as JSON, or the renderer payload.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputSummary && output != outputJSON && output != outputRender {
				return fmt.Errorf("unknown output %q (summary, json, render)", output)
			}
			viewport, err := vp.viewport()
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

			logger := newLogger(cmd.ErrOrStderr(), cfg)
			virtualizer := engine.newEngine(cmd.Flags(), cfg, visualization.WithLogger(logger))
			result := virtualizer.Virtualize(g.Nodes, g.Connections, viewport)

			out := cmd.OutOrStdout()
			switch output {
			case outputJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			case outputRender:
				data, err := result.ExportJSON()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			logger.Debug("virtualize finished", logging.Zoom(viewport.Zoom), logging.Count(result.VisibleNodeCount))
			printSummary(out, result, viewport, top)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputSummary, "Output format: summary, json or render")
	cmd.Flags().IntVar(&top, "top", 10, "Visible nodes listed in the summary")
	engine.bind(cmd.Flags())
	vp.bind(cmd.Flags())
	source.bind(cmd.Flags())
	return cmd
}

// printSummary writes result statistics and the highest impact visible nodes
func printSummary(w io.Writer, r visualization.Result, vp visualization.Viewport, top int) {
	banner(w, "virtualize")
	fmt.Fprintf(w, "  Viewport  %s at zoom %s\n",
		Info.Sprintf("%gx%g+%g+%g", vp.Width, vp.Height, vp.X, vp.Y), Info.Sprintf("%g", vp.Zoom))
	fmt.Fprintf(w, "  LOD       %s\n", Brand.Sprint(r.LODLevel))
	fmt.Fprintf(w, "  Virtual   %s\n\n", statusIcon(r.IsVirtualized))

	table(w, []string{"TOTAL", "VISIBLE", "CULLED", "CLUSTERED", "CONNECTIONS"}, [][]string{{
		strconv.Itoa(r.TotalNodes),
		strconv.Itoa(r.VisibleNodeCount),
		strconv.Itoa(r.CulledNodeCount),
		strconv.Itoa(r.ClusteredNodeCount),
		strconv.Itoa(len(r.VisibleConnections)),
	}})

	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w)
		Warn.Fprintf(w, "  %d malformed nodes, %d dropped\n", len(r.Diagnostics), r.DroppedNodeCount)
		for i, d := range r.Diagnostics {
			if i == 5 {
				Subtle.Fprintf(w, "    ... %d more\n", len(r.Diagnostics)-5)
				break
			}
			Subtle.Fprintf(w, "    %s\n", d)
		}
	}

	if top <= 0 || len(r.VisibleNodes) == 0 {
		return
	}
	fmt.Fprintln(w)
	ranked := slices.Clone(r.VisibleNodes)
	slices.SortStableFunc(ranked, func(a, b visualization.Node) int {
		return cmp.Compare(b.Impact, a.Impact)
	})
	table(w, []string{"ID", "TYPE", "SYSTEM", "IMPACT", "X", "Y", "MEMBERS"}, nodeRows(ranked, top))
}

// nodeRows renders up to limit nodes in input order
func nodeRows(nodes []visualization.Node, limit int) [][]string {
	if len(nodes) > limit {
		nodes = nodes[:limit]
	}
	rows := make([][]string, len(nodes))
	for i, n := range nodes {
		typ := string(n.Type)
		if typ == "" {
			typ = string(visualization.NodeTypeNormal)
		}
		members := ""
		if n.IsCluster() {
			members = strconv.Itoa(n.NodeCount)
		}
		rows[i] = []string{
			n.ID,
			typ,
			n.System,
			strconv.FormatFloat(n.Impact, 'f', 3, 64),
			n.X.String(),
			n.Y.String(),
			members,
		}
	}
	return rows
}
