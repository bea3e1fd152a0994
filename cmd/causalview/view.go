package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	btable "github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-causalview/pkg/visualization"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF")).
			MarginLeft(2).
			MarginTop(1)

	contentStyle = lipgloss.NewStyle().
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	mapBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#FFFF00")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

const (
	zoomStep  = 1.25
	panFactor = 0.1
	minZoom   = 0.01
	maxZoom   = 64
	mapCols   = 48
	mapRows   = 14
)

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Left       key.Binding
	Right      key.Binding
	ZoomIn     key.Binding
	ZoomOut    key.Binding
	Reset      key.Binding
	Cluster    key.Binding
	Cull       key.Binding
	ClearCache key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "pan up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "pan down"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "pan left"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "pan right"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-", "_"),
		key.WithHelp("-", "zoom out"),
	),
	Reset: key.NewBinding(
		key.WithKeys("0"),
		key.WithHelp("0", "reset view"),
	),
	Cluster: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "toggle clustering"),
	),
	Cull: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "toggle culling"),
	),
	ClearCache: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "clear cache"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more keys"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.ZoomIn, k.ZoomOut, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.ZoomIn, k.ZoomOut, k.Reset},
		{k.Cluster, k.Cull, k.ClearCache},
		{k.Help, k.Quit},
	}
}

// model re-virtualizes the scene whenever the viewport or engine config changes
type model struct {
	engine *visualization.Virtualizer
	graph  visualization.Graph
	extent visualization.Bounds

	// screen is the viewport size at zoom 1; the canvas region shrinks as zoom grows
	screen visualization.Viewport
	start  visualization.Viewport
	vp     visualization.Viewport
	result visualization.Result

	nodeTable btable.Model
	help      help.Model
	keys      keyMap
	width     int
	height    int
	message   string
}

func newViewModel(engine *visualization.Virtualizer, g visualization.Graph, start visualization.Viewport) model {
	columns := []btable.Column{
		{Title: "ID", Width: 14},
		{Title: "Type", Width: 8},
		{Title: "System", Width: 12},
		{Title: "Impact", Width: 7},
		{Title: "X", Width: 9},
		{Title: "Y", Width: 9},
		{Title: "Members", Width: 7},
	}

	t := btable.New(
		btable.WithColumns(columns),
		btable.WithFocused(false),
		btable.WithHeight(10),
	)

	s := btable.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#00FFFF")).
		BorderBottom(true).
		Bold(true)
	t.SetStyles(s)

	screen := start
	screen.Width = start.Width * start.Zoom
	screen.Height = start.Height * start.Zoom
	screen.Zoom = 1

	m := model{
		engine:    engine,
		graph:     g,
		extent:    graphExtent(g.Nodes),
		screen:    screen,
		start:     start,
		vp:        start,
		nodeTable: t,
		help:      help.New(),
		keys:      keys,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Up):
			m.vp.Y -= m.vp.Height * panFactor
		case key.Matches(msg, m.keys.Down):
			m.vp.Y += m.vp.Height * panFactor
		case key.Matches(msg, m.keys.Left):
			m.vp.X -= m.vp.Width * panFactor
		case key.Matches(msg, m.keys.Right):
			m.vp.X += m.vp.Width * panFactor
		case key.Matches(msg, m.keys.ZoomIn):
			m.setZoom(m.vp.Zoom * zoomStep)
		case key.Matches(msg, m.keys.ZoomOut):
			m.setZoom(m.vp.Zoom / zoomStep)
		case key.Matches(msg, m.keys.Reset):
			m.vp = m.start
			m.message = "view reset"
		case key.Matches(msg, m.keys.Cluster):
			enabled := !m.engine.Config().EnableClustering
			m.engine.UpdateConfig(visualization.PartialConfig{EnableClustering: visualization.Ptr(enabled)})
			m.message = "clustering " + onOff(enabled)
		case key.Matches(msg, m.keys.Cull):
			enabled := !m.engine.Config().EnableCulling
			m.engine.UpdateConfig(visualization.PartialConfig{EnableCulling: visualization.Ptr(enabled)})
			m.message = "culling " + onOff(enabled)
		case key.Matches(msg, m.keys.ClearCache):
			m.message = fmt.Sprintf("cleared %d cached clusters", m.engine.Stats().CacheSize)
			m.engine.ClearCache()
		default:
			return m, nil
		}
		m.refresh()
	}

	return m, nil
}

// setZoom keeps the viewport centered while its canvas size follows zoom
func (m *model) setZoom(z float64) {
	z = math.Max(minZoom, math.Min(maxZoom, z))
	cx := m.vp.X + m.vp.Width/2
	cy := m.vp.Y + m.vp.Height/2
	m.vp.Zoom = z
	m.vp.Width = m.screen.Width / z
	m.vp.Height = m.screen.Height / z
	m.vp.X = cx - m.vp.Width/2
	m.vp.Y = cy - m.vp.Height/2
	m.message = fmt.Sprintf("zoom %.2f", z)
}

func (m *model) refresh() {
	m.result = m.engine.Virtualize(m.graph.Nodes, m.graph.Connections, m.vp)
	rows := make([]btable.Row, 0, m.nodeTable.Height())
	for _, r := range nodeRows(m.result.VisibleNodes, 200) {
		rows = append(rows, btable.Row(r))
	}
	m.nodeTable.SetRows(rows)
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("causalview - viewport explorer"))
	s.WriteString("\n")

	statsBox := statsBoxStyle.Render(m.renderStats())
	mapBox := mapBoxStyle.Render(renderMinimap(m.extent, m.vp, m.result.VisibleNodes, mapCols, mapRows))
	s.WriteString(contentStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, statsBox, mapBox)))
	s.WriteString("\n")
	s.WriteString(contentStyle.Render(m.nodeTable.View()))

	if m.message != "" {
		s.WriteString("\n\n")
		s.WriteString(contentStyle.Render(statusStyle.Render("✓ " + m.message)))
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render(m.help.View(m.keys)))
	return s.String()
}

func (m model) renderStats() string {
	cfg := m.engine.Config()
	stats := m.engine.Stats()
	r := m.result

	return fmt.Sprintf(`Viewport
━━━━━━━━━━━━━━━
Origin:     %.0f, %.0f
Size:       %.0f x %.0f
Zoom:       %.2f
LOD:        %s

Result
━━━━━━━━━━━━━━━
Total:      %d
Visible:    %d
Culled:     %d
Clustered:  %d
Links:      %d

Engine
━━━━━━━━━━━━━━━
Culling:    %s
Clustering: %s
Cache:      %d (%d hits)`,
		m.vp.X, m.vp.Y,
		m.vp.Width, m.vp.Height,
		m.vp.Zoom,
		r.LODLevel,
		r.TotalNodes,
		r.VisibleNodeCount,
		r.CulledNodeCount,
		r.ClusteredNodeCount,
		len(r.VisibleConnections),
		onOff(cfg.EnableCulling),
		onOff(cfg.EnableClustering),
		stats.CacheSize, stats.CacheHits,
	)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// graphExtent is the bounding box of every positioned node
func graphExtent(nodes []visualization.Node) visualization.Bounds {
	b := visualization.Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, n := range nodes {
		if !n.X.Valid() || !n.Y.Valid() {
			continue
		}
		p := n.Position()
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	if math.IsInf(b.MinX, 1) {
		return visualization.Bounds{}
	}
	return b
}

// renderMinimap draws the graph extent and the viewport as a character grid.
// Visible nodes are dots, clusters are rings and the viewport outline is drawn
// where it falls inside the map.
func renderMinimap(extent visualization.Bounds, vp visualization.Viewport, visible []visualization.Node, cols, rows int) string {
	// The map always covers the viewport so the outline stays on screen
	view := vp.Bounds(0)
	area := visualization.Bounds{
		MinX: math.Min(extent.MinX, view.MinX),
		MinY: math.Min(extent.MinY, view.MinY),
		MaxX: math.Max(extent.MaxX, view.MaxX),
		MaxY: math.Max(extent.MaxY, view.MaxY),
	}
	spanX := math.Max(area.MaxX-area.MinX, 1)
	spanY := math.Max(area.MaxY-area.MinY, 1)

	cell := func(x, y float64) (int, int) {
		c := int((x - area.MinX) / spanX * float64(cols-1))
		r := int((y - area.MinY) / spanY * float64(rows-1))
		return min(max(c, 0), cols-1), min(max(r, 0), rows-1)
	}

	grid := make([][]rune, rows)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", cols))
	}

	c0, r0 := cell(view.MinX, view.MinY)
	c1, r1 := cell(view.MaxX, view.MaxY)
	for c := c0; c <= c1; c++ {
		grid[r0][c] = '─'
		grid[r1][c] = '─'
	}
	for r := r0; r <= r1; r++ {
		grid[r][c0] = '│'
		grid[r][c1] = '│'
	}
	grid[r0][c0], grid[r0][c1], grid[r1][c0], grid[r1][c1] = '┌', '┐', '└', '┘'

	for _, n := range visible {
		c, r := cell(n.Position().X, n.Position().Y)
		switch {
		case n.IsCluster():
			grid[r][c] = '◉'
		case grid[r][c] != '◉':
			grid[r][c] = '•'
		}
	}

	lines := make([]string, rows)
	for i, row := range grid {
		lines[i] = string(row)
	}
	return strings.Join(lines, "\n")
}

func viewCmd() *cobra.Command {
	var engine engineFlags
	var vp viewportFlags
	source := newGraphSource()

	cmd := &cobra.Command{
		Use:   "view [graph.json|graph.yaml]",
		Short: "Explore a graph interactively in the terminal",
		Long:  "Pan and zoom over a graph and watch culling, level of detail and clustering respond.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := vp.viewport()
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

			virtualizer := engine.newEngine(cmd.Flags(), cfg)
			p := tea.NewProgram(newViewModel(virtualizer, g, start),
				tea.WithAltScreen(),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("running viewer: %w", err)
			}
			return nil
		},
	}

	engine.bind(cmd.Flags())
	vp.bind(cmd.Flags())
	source.bind(cmd.Flags())
	return cmd
}
