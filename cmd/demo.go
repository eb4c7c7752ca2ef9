package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1F47E/geo-region-index/pkg/engine"
	"github.com/1F47E/geo-region-index/pkg/index"
	"github.com/1F47E/geo-region-index/pkg/models"
)

var (
	demoQueries int
	demoSeed    int64
)

var (
	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BE9FD"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1FA8C"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Interactive walkthrough comparing the grid and R-tree indexes",
	Long: `Loads the configured boundaries, resolves the same random points with
each index implementation and shows throughput and agreement in the terminal.`,
	RunE: runDemoCmd,
}

func init() {
	demoCmd.Flags().IntVarP(&demoQueries, "queries", "q", 20000, "Number of points to resolve per index")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 0, "Random seed (0 uses the current time)")
	rootCmd.AddCommand(demoCmd)
}

func runDemoCmd(cmd *cobra.Command, args []string) error {
	if demoQueries < 1 {
		return eris.New("demo: queries must be positive")
	}
	seed := demoSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	events := make(chan tea.Msg, 16)
	go runDemo(ctx, events, demoQueries, seed)

	p := tea.NewProgram(newDemoModel(events, demoQueries), tea.WithOutput(cmd.OutOrStdout()))
	final, err := p.Run()
	if err != nil {
		return eris.Wrap(err, "demo")
	}
	if m, ok := final.(demoModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

type demoLoadedMsg struct {
	regions int
	counts  map[models.Level]int
	finest  models.Level
	elapsed time.Duration
}

type demoProgressMsg struct {
	kind    index.Kind
	percent float64
}

type demoKindResult struct {
	kind       index.Kind
	queries    int
	resolved   int
	mismatches int
	elapsed    time.Duration
	samples    []string
}

func (r demoKindResult) perSecond() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.queries) / r.elapsed.Seconds()
}

type demoKindDoneMsg demoKindResult

type demoErrMsg struct{ err error }

type demoDoneMsg struct{}

// runDemo does the work behind the TUI and reports through events, which it
// closes on return. Every kind resolves the same points; adcodes that differ
// from the first kind are counted as mismatches.
func runDemo(ctx context.Context, events chan<- tea.Msg, n int, seed int64) {
	defer close(events)
	send := func(msg tea.Msg) bool {
		select {
		case events <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	start := time.Now()
	e, err := loadEngine(ctx, engine.WithLogger(zap.NewNop()))
	if err != nil {
		send(demoErrMsg{err})
		return
	}
	h := e.Hierarchy()
	if !send(demoLoadedMsg{regions: h.Len(), counts: h.Counts(), finest: e.Finest(), elapsed: time.Since(start)}) {
		return
	}

	extent, err := loadedExtent(h)
	if err != nil {
		send(demoErrMsg{eris.Wrap(err, "demo")})
		return
	}
	points := randomPoints(rand.New(rand.NewSource(seed)), extent, n)
	step := max(n/50, 1)

	var baseline []string
	for _, kind := range []index.Kind{index.KindGrid, index.KindRTree} {
		ek, err := engine.FromHierarchy(h,
			engine.WithLogger(zap.NewNop()),
			engine.WithIndexKind(kind),
			engine.WithMaxLevel(e.Finest()),
		)
		if err != nil {
			send(demoErrMsg{err})
			return
		}

		res := demoKindResult{kind: kind, queries: n}
		adcodes := make([]string, n)
		began := time.Now()
		for i, p := range points {
			info, err := ek.Resolve(p.Lat, p.Lon)
			if err != nil {
				send(demoErrMsg{err})
				return
			}
			adcodes[i] = info.Adcode()
			if !info.Empty() {
				res.resolved++
				if len(res.samples) < 3 {
					res.samples = append(res.samples, fmt.Sprintf("(%.4f, %.4f) %s", p.Lat, p.Lon, info.FormatAddress()))
				}
			}
			if baseline != nil && baseline[i] != adcodes[i] {
				res.mismatches++
			}
			if (i+1)%step == 0 && !send(demoProgressMsg{kind: kind, percent: float64(i+1) / float64(n)}) {
				return
			}
		}
		res.elapsed = time.Since(began)
		if baseline == nil {
			baseline = adcodes
		}
		if !send(demoKindDoneMsg(res)) {
			return
		}
	}
	send(demoDoneMsg{})
}

type demoModel struct {
	events   <-chan tea.Msg
	queries  int
	spinner  spinner.Model
	progress progress.Model
	percent  float64
	current  index.Kind
	loaded   *demoLoadedMsg
	results  []demoKindResult
	done     bool
	err      error
}

func newDemoModel(events <-chan tea.Msg, queries int) demoModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return demoModel{
		events:   events,
		queries:  queries,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		current:  index.KindGrid,
	}
}

// waitForDemo reads the next event; a closed channel ends the demo.
func waitForDemo(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return demoDoneMsg{}
		}
		return msg
	}
}

func (m demoModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForDemo(m.events))
}

func (m demoModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = max(msg.Width-10, 20)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case demoLoadedMsg:
		m.loaded = &msg
		return m, waitForDemo(m.events)

	case demoProgressMsg:
		m.current = msg.kind
		m.percent = msg.percent
		return m, waitForDemo(m.events)

	case demoKindDoneMsg:
		m.results = append(m.results, demoKindResult(msg))
		m.percent = 0
		if len(m.results) == 1 {
			m.current = index.KindRTree
		}
		return m, waitForDemo(m.events)

	case demoErrMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case demoDoneMsg:
		m.done = true
		return m, nil
	}

	return m, nil
}

func (m demoModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Reverse Geocoding Demo"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
		return b.String()
	}

	if m.loaded == nil {
		b.WriteString(subtitleStyle.Render("Loading Boundaries"))
		b.WriteString("\n\n")
		b.WriteString(m.spinner.View() + " Building hierarchy and indexes...\n")
	} else {
		b.WriteString(renderDemoLoaded(*m.loaded))
	}

	for _, r := range m.results {
		b.WriteString(renderDemoResult(r))
	}

	switch {
	case m.done:
		b.WriteString(renderDemoSummary(m.results))
	case m.loaded != nil:
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("Resolving with the %s index", m.current)))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("%s Resolving %d random points...\n\n", m.spinner.View(), m.queries))
		b.WriteString(m.progress.ViewAs(m.percent))
	}

	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Press 'q' to quit"))

	return b.String()
}

func renderDemoLoaded(l demoLoadedMsg) string {
	stats := fmt.Sprintf(
		"✓ Loaded %s regions in %s\n"+
			"✓ Provinces: %s  Cities: %s  Districts: %s\n"+
			"✓ Finest level: %s",
		statStyle.Render(fmt.Sprintf("%d", l.regions)),
		statStyle.Render(l.elapsed.Round(time.Millisecond).String()),
		statStyle.Render(fmt.Sprintf("%d", l.counts[models.Province])),
		statStyle.Render(fmt.Sprintf("%d", l.counts[models.City])),
		statStyle.Render(fmt.Sprintf("%d", l.counts[models.District])),
		statStyle.Render(l.finest.String()),
	)
	return boxStyle.Render(successStyle.Render("Loading Complete!\n\n") + stats)
}

func renderDemoResult(r demoKindResult) string {
	content := fmt.Sprintf(
		"✓ Queries: %s\n"+
			"✓ Total time: %s\n"+
			"✓ Queries per second: %s\n"+
			"✓ Resolved: %s",
		statStyle.Render(fmt.Sprintf("%d", r.queries)),
		statStyle.Render(r.elapsed.Round(time.Microsecond).String()),
		statStyle.Render(fmt.Sprintf("%.0f", r.perSecond())),
		statStyle.Render(fmt.Sprintf("%d", r.resolved)),
	)
	for _, s := range r.samples {
		content += "\n" + dimStyle.Render("• "+s)
	}
	return boxStyle.Render(successStyle.Render(fmt.Sprintf("%s index complete!\n\n", r.kind)) + content)
}

func renderDemoSummary(results []demoKindResult) string {
	summary := infoStyle.Render("Summary:")
	summary += "\n\n"
	mismatches := 0
	for _, r := range results {
		summary += fmt.Sprintf("• %-6s %s queries/sec\n", r.kind, statStyle.Render(fmt.Sprintf("%.0f", r.perSecond())))
		mismatches += r.mismatches
	}
	summary += "\n"
	if mismatches == 0 {
		summary += successStyle.Render("Both indexes resolved every point to the same region.")
	} else {
		summary += errorStyle.Render(fmt.Sprintf("Indexes disagreed on %d points.", mismatches))
	}
	return summary
}
