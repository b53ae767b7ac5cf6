// Package historyui provides the Bubble Tea snapshot history browser.
package historyui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/moadil/internal/grades"
	"github.com/verte-zerg/moadil/internal/model"
	"github.com/verte-zerg/moadil/internal/stats"
)

const (
	tabOverview = iota
	tabSnapshots
)

const plotHeight = 10

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// Options configures the history browser.
type Options struct {
	MaxGrade float64
	Decimals int
}

// Model implements the Bubble Tea history UI.
type Model struct {
	lister stats.SnapshotLister
	cfg    model.HistoryConfig
	opts   Options

	history stats.History
	errMsg  string

	tabs      []string
	activeTab int
	overview  viewport.Model
	table     table.Model

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a history UI model.
func NewModel(lister stats.SnapshotLister, cfg model.HistoryConfig, opts Options) *Model {
	if opts.MaxGrade <= 0 {
		opts.MaxGrade = grades.DefaultMax
	}
	m := &Model{
		lister:   lister,
		cfg:      cfg,
		opts:     opts,
		tabs:     []string{"Overview", "Snapshots"},
		overview: viewport.New(0, 0),
		table:    newSnapshotTable(),
	}
	m.filterInputs = []textinput.Model{
		newFilterInput("Level: "),
		newFilterInput("Last: "),
		newFilterInput("Curve window: "),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h", "right", "l", "tab":
			m.activeTab = (m.activeTab + 1) % len(m.tabs)
			if m.activeTab == tabSnapshots {
				m.table.Focus()
			} else {
				m.table.Blur()
			}
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
			m.refresh()
			return m, nil
		case "-":
			m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
			m.refresh()
			return m, nil
		case "/":
			return m.startFilter()
		}
		var cmd tea.Cmd
		if m.activeTab == tabSnapshots {
			m.table, cmd = m.table.Update(msg)
		} else {
			m.overview, cmd = m.overview.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderTabs()+"\n"+headerStyle.Render(m.summary()), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 32
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func newSnapshotTable() table.Model {
	t := table.New(table.WithColumns([]table.Column{
		{Title: "Taken", Width: 16},
		{Title: "Level", Width: 12},
		{Title: "Branch", Width: 18},
		{Title: "Average", Width: 8},
		{Title: "Progress", Width: 8},
		{Title: "Note", Width: 24},
	}))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	t.SetStyles(styles)
	return t
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = lipgloss.Height(activeNavStyle.Render("X")) + 1
	footerHeight = 1
	if m.errMsg != "" || m.filterError != "" {
		footerHeight++
	}
	bodyHeight = max(m.height-headerHeight-footerHeight, 1)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.table.SetWidth(m.width)
	m.table.SetHeight(max(bodyHeight-1, 1))
}

func (m *Model) refresh() {
	h, err := stats.BuildHistory(context.Background(), m.lister, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.history = stats.History{}
	} else {
		m.errMsg = ""
		m.history = h
	}
	m.table.SetRows(snapshotRows(m.history.Snapshots, m.opts.Decimals))
	m.renderOverview()
}

func snapshotRows(snapshots []model.Snapshot, decimals int) []table.Row {
	rows := make([]table.Row, 0, len(snapshots))
	// Newest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		s := snapshots[i]
		rows = append(rows, table.Row{
			s.TakenAt.Local().Format("2006-01-02 15:04"),
			string(s.Level),
			s.BranchID,
			stats.FormatAverage(s.Average, decimals),
			fmt.Sprintf("%.0f%%", s.Progress),
			s.Note,
		})
	}
	return rows
}

func (m *Model) renderOverview() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.history, m.opts, width))
}

func renderOverview(h stats.History, opts Options, width int) string {
	if len(h.Snapshots) == 0 {
		return "No snapshots yet. Press s in the calculator to save one."
	}
	cards := []string{
		metricCard("Snapshots", strconv.Itoa(len(h.Snapshots))),
		metricCard("Latest", stats.FormatAverage(h.Latest, opts.Decimals)),
		metricCard("Best", stats.FormatAverage(h.Best, opts.Decimals)),
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	if width < 60 {
		summary = strings.Join(cards, "\n")
	}
	averages := make([]float64, len(h.Snapshots))
	for i, s := range h.Snapshots {
		averages[i] = s.Average
	}
	var buf bytes.Buffer
	err := stats.PlotGrades(&buf, "", []stats.Series{
		{Name: "Average", Values: averages},
		{Name: "Trend", Values: h.Trend},
	}, stats.PlotOptions{MaxGrade: opts.MaxGrade, Width: stats.PlotWidthFor(width, 3), Height: plotHeight, Color: true})
	if err != nil {
		return summary + "\n\n" + fmt.Sprintf("Failed to render chart: %v", err)
	}
	return strings.TrimRight(summary+"\n\n"+buf.String(), "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) summary() string {
	level := string(m.cfg.Level)
	if level == "" {
		level = "any"
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	return truncateLine(fmt.Sprintf("Filters: level=%s  last=%s  window=%d", level, last, m.cfg.CurveWindow), m.width)
}

func (m *Model) renderBody() string {
	if m.filterMode {
		lines := []string{"Filters (enter to apply, esc to cancel)"}
		for _, input := range m.filterInputs {
			lines = append(lines, input.View())
		}
		return strings.Join(lines, "\n")
	}
	if m.activeTab == tabSnapshots {
		if len(m.history.Snapshots) == 0 {
			return "No snapshots found."
		}
		return m.table.View()
	}
	return m.overview.View()
}

func (m *Model) renderFooter() string {
	help := "Tabs: left/right  Scroll: up/down  Window: -/=  Filters: /  Quit: q"
	if m.filterMode {
		help = "tab/shift+tab: next field  enter: apply  esc: cancel"
	}
	lines := []string{headerStyle.Render(help)}
	switch {
	case m.filterMode && m.filterError != "":
		lines = append(lines, errorStyle.Render(m.filterError))
	case !m.filterMode && m.errMsg != "":
		lines = append(lines, errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.filterInputs[0].SetValue(string(m.cfg.Level))
	m.filterInputs[1].SetValue("")
	if m.cfg.Last > 0 {
		m.filterInputs[1].SetValue(strconv.Itoa(m.cfg.Last))
	}
	m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.CurveWindow))
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		cfg, err := parseFilters(m.filterInputs[0].Value(), m.filterInputs[1].Value(), m.filterInputs[2].Value())
		if err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.cfg = cfg
		m.filterMode = false
		m.filterError = ""
		m.refresh()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	m.filterIndex = (idx%count + count) % count
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func parseFilters(level, last, window string) (model.HistoryConfig, error) {
	cfg := model.HistoryConfig{Level: model.Level(strings.TrimSpace(level)), CurveWindow: 1}
	if v := strings.TrimSpace(last); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return model.HistoryConfig{}, fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		cfg.Last = n
	}
	if v := strings.TrimSpace(window); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return model.HistoryConfig{}, fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		cfg.CurveWindow = n
	}
	return cfg, nil
}

func nextCurveWindow(n int) int {
	if n < 5 {
		return 5
	}
	return (n/5 + 1) * 5
}

func prevCurveWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		if w := lipgloss.Width(line); w < width {
			lines[i] = line + strings.Repeat(" ", width-w)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
