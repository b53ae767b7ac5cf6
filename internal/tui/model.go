// Package tui provides the Bubble Tea grade calculator interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/verte-zerg/moadil/internal/grades"
	"github.com/verte-zerg/moadil/internal/model"
	"github.com/verte-zerg/moadil/internal/selection"
	"github.com/verte-zerg/moadil/internal/stats"
)

type screen int

const (
	screenStage screen = iota
	screenLevel
	screenBranch
	screenGrid
)

const (
	nameWidth = 22
	cellWidth = 6
)

// Saver persists the state after every change and records snapshots.
type Saver interface {
	SaveState(ctx context.Context, state model.AppState) error
	InsertSnapshot(ctx context.Context, snap model.Snapshot) (model.Snapshot, error)
}

// Options configures the calculator UI.
type Options struct {
	Decimals int
	Logger   *zap.Logger
}

type choice struct {
	id    string
	label string
}

// Model implements the Bubble Tea grade calculator.
type Model struct {
	machine *selection.Machine
	saver   Saver
	logger  *zap.Logger
	opts    Options

	screen screen
	cursor int

	row int
	col int

	editing bool
	input   textinput.Model

	status string
	errMsg string

	width  int
	height int
}

// NewModel constructs the calculator UI and opens the screen matching the
// current selection.
func NewModel(machine *selection.Machine, saver Saver, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 8
	input.Width = cellWidth
	m := &Model{
		machine: machine,
		saver:   saver,
		logger:  opts.Logger,
		opts:    opts,
		input:   input,
	}
	switch machine.Phase() {
	case selection.PhaseBranch:
		m.screen = screenGrid
	case selection.PhaseLevel:
		m.screen = screenBranch
	case selection.PhaseStage:
		m.screen = screenLevel
	default:
		m.screen = screenStage
	}
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
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.editing {
			return m.updateEditor(msg)
		}
		m.errMsg = ""
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "d":
			m.machine.ToggleDarkMode()
			m.persist()
			return m, nil
		case "esc":
			m.back()
			return m, nil
		}
		if m.screen == screenGrid {
			return m.updateGrid(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	p := paletteFor(m.machine.State().IsDarkMode)
	var body string
	switch m.screen {
	case screenGrid:
		body = m.renderGrid(p)
	default:
		body = m.renderList(p)
	}
	lines := []string{p.title.Render(m.breadcrumb()), "", body, ""}
	if footer := m.renderFooter(); footer != "" {
		lines = append(lines, footer)
	}
	lines = append(lines, p.muted.Render(m.help()))
	if m.errMsg != "" {
		lines = append(lines, p.bad.Render(m.errMsg))
	} else if m.status != "" {
		lines = append(lines, p.good.Render(m.status))
	}
	content := strings.Join(lines, "\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, p.base.Render(content))
}

func (m *Model) choices() []choice {
	cat := m.machine.Catalog()
	state := m.machine.State()
	var out []choice
	switch m.screen {
	case screenStage:
		for _, s := range cat.ListStages() {
			out = append(out, choice{id: string(s.ID), label: s.Name})
		}
	case screenLevel:
		for _, l := range cat.ListLevels(state.Stage) {
			out = append(out, choice{id: string(l.ID), label: l.Name})
		}
	case screenBranch:
		for _, b := range cat.ListBranches(state.Level) {
			out = append(out, choice{id: b.ID, label: b.Name})
		}
	}
	return out
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.choices()
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(items)-1 {
			m.cursor++
		}
	case "enter", "right", "l":
		if len(items) == 0 {
			return m, nil
		}
		m.choose(items[min(m.cursor, len(items)-1)].id)
	}
	return m, nil
}

func (m *Model) choose(id string) {
	var err error
	switch m.screen {
	case screenStage:
		err = m.machine.SelectStage(model.Stage(id))
		if err == nil {
			m.screen = screenLevel
		}
	case screenLevel:
		err = m.machine.SelectLevel(model.Level(id))
		if err == nil {
			m.screen = screenBranch
			if m.machine.Phase() == selection.PhaseBranch && len(m.choices()) == 1 {
				m.screen = screenGrid
			}
		}
	case screenBranch:
		err = m.machine.SelectBranch(id)
		if err == nil {
			m.screen = screenGrid
		}
	}
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.cursor, m.row, m.col = 0, 0, 0
	m.status = ""
	m.persist()
}

func (m *Model) back() {
	switch m.screen {
	case screenGrid:
		m.screen = screenBranch
		if len(m.machine.Catalog().ListBranches(m.machine.State().Level)) <= 1 {
			m.screen = screenLevel
		}
	case screenBranch:
		m.screen = screenLevel
	case screenLevel:
		m.screen = screenStage
	}
	m.cursor = 0
}

func (m *Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	subjects := m.machine.EffectiveSubjects()
	if len(subjects) == 0 {
		return m, nil
	}
	m.row = min(m.row, len(subjects)-1)
	current := subjects[m.row]
	m.col = min(m.col, current.ExpectedEntries()-1)

	switch msg.String() {
	case "up", "k":
		if m.row > 0 {
			m.row--
		}
	case "down", "j":
		if m.row < len(subjects)-1 {
			m.row++
		}
	case "left", "h":
		if m.col > 0 {
			m.col--
		}
	case "right", "l":
		if m.col < current.ExpectedEntries()-1 {
			m.col++
		}
	case "+", "=":
		m.apply(m.machine.NudgeGrade(current.ID, m.col, grades.Step))
	case "-":
		m.apply(m.machine.NudgeGrade(current.ID, m.col, -grades.Step))
	case "x", "backspace", "delete":
		m.apply(m.machine.UpdateGrade(current.ID, m.col, ""))
	case "r":
		m.machine.ResetGrades()
		m.status = "Grades cleared."
		m.persist()
	case "s":
		m.saveSnapshot()
	case "b":
		m.back()
	case "enter":
		return m, m.startEditing(m.machine.Grade(current.ID, m.col))
	default:
		if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && strings.ContainsRune("0123456789.,", msg.Runes[0]) {
			return m, m.startEditing(string(msg.Runes))
		}
	}
	return m, nil
}

func (m *Model) apply(err error) {
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.status = ""
	m.persist()
}

func (m *Model) startEditing(value string) tea.Cmd {
	m.editing = true
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.errMsg = ""
		m.input.Blur()
		return m, nil
	case tea.KeyEnter, tea.KeyTab:
		subjects := m.machine.EffectiveSubjects()
		if m.row >= len(subjects) {
			m.editing = false
			return m, nil
		}
		current := subjects[m.row]
		if err := m.machine.UpdateGrade(current.ID, m.col, m.input.Value()); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.editing = false
		m.errMsg = ""
		m.input.Blur()
		m.persist()
		if msg.Type == tea.KeyTab && m.col < current.ExpectedEntries()-1 {
			m.col++
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) persist() {
	if m.saver == nil {
		return
	}
	if err := m.saver.SaveState(context.Background(), m.machine.State()); err != nil {
		m.logger.Error("failed to save state", zap.Error(err))
		m.errMsg = "Could not save: " + err.Error()
	}
}

func (m *Model) saveSnapshot() {
	res := m.machine.Result()
	if !res.HasData() {
		m.errMsg = "Nothing to save yet."
		return
	}
	if m.saver == nil {
		return
	}
	state := m.machine.State()
	snap, err := m.saver.InsertSnapshot(context.Background(), model.Snapshot{
		Level:    state.Level,
		BranchID: state.BranchID,
		Average:  res.Average,
		Progress: res.Progress,
	})
	if err != nil {
		m.logger.Error("failed to save snapshot", zap.Error(err))
		m.errMsg = "Could not save snapshot: " + err.Error()
		return
	}
	m.logger.Debug("snapshot saved", zap.String("id", snap.ID), zap.Float64("average", snap.Average))
	m.status = "Snapshot saved (" + stats.FormatAverage(snap.Average, m.opts.Decimals) + ")."
}

func (m *Model) breadcrumb() string {
	cat := m.machine.Catalog()
	state := m.machine.State()
	parts := []string{"Moadil"}
	for _, s := range cat.ListStages() {
		if s.ID == state.Stage {
			parts = append(parts, s.Name)
		}
	}
	if l, ok := cat.Level(state.Level); ok {
		parts = append(parts, l.Name)
	}
	if b, ok := m.machine.Branch(); ok {
		parts = append(parts, b.Name)
	}
	return strings.Join(parts, " › ")
}

func (m *Model) renderList(p palette) string {
	items := m.choices()
	if len(items) == 0 {
		if m.screen == screenBranch {
			return p.muted.Render("This level has no branches yet. Press esc to pick another level.")
		}
		return p.muted.Render("Nothing to choose from.")
	}
	titles := map[screen]string{
		screenStage:  "Choose a stage",
		screenLevel:  "Choose a level",
		screenBranch: "Choose a branch",
	}
	lines := []string{p.accent.Render(titles[m.screen])}
	for i, item := range items {
		if i == m.cursor {
			lines = append(lines, p.cursor.Render("› "+item.label))
			continue
		}
		lines = append(lines, p.text.Render("  "+item.label))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderGrid(p palette) string {
	res := m.machine.Result()
	if len(res.Rows) == 0 {
		return p.muted.Render("No subjects in this branch.")
	}
	maxGrade := m.machine.MaxGrade()
	lines := make([]string, 0, len(res.Rows)+1)
	header := runewidth.FillRight("Subject", nameWidth) + " " + runewidth.FillLeft("Coef", 4) + "  Grades"
	lines = append(lines, p.muted.Render(header))
	for r, row := range res.Rows {
		var b strings.Builder
		b.WriteString(p.text.Render(runewidth.FillRight(runewidth.Truncate(row.Subject.Name, nameWidth, "…"), nameWidth)))
		b.WriteString(" ")
		b.WriteString(p.muted.Render(runewidth.FillLeft(grades.FormatGrade(row.Subject.Coefficient), 4)))
		b.WriteString("  ")
		for c := 0; c < row.Expected; c++ {
			value := m.machine.Grade(row.Subject.ID, c)
			if m.editing && r == m.row && c == m.col {
				b.WriteString(p.cursor.Render("[" + runewidth.FillRight(m.input.View(), cellWidth) + "]"))
				continue
			}
			cell := "[" + runewidth.FillLeft(value, cellWidth) + "]"
			switch {
			case r == m.row && c == m.col:
				b.WriteString(p.cursor.Render(cell))
			case value == "":
				b.WriteString(p.muted.Render(cell))
			default:
				b.WriteString(p.text.Render(cell))
			}
		}
		if row.Average != nil {
			avg := stats.FormatAverage(*row.Average, m.opts.Decimals)
			style := p.bad
			if *row.Average >= stats.PassMark(maxGrade) {
				style = p.good
			}
			b.WriteString("  " + style.Render(avg))
		}
		lines = append(lines, b.String())
	}
	if res.HasData() {
		lines = append(lines, "", p.muted.Render(stats.Advice(res.Average, maxGrade)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	if m.screen != screenGrid {
		return ""
	}
	res := m.machine.Result()
	avg := stats.FormatAverage(res.Average, m.opts.Decimals) + "/" + grades.FormatGrade(m.machine.MaxGrade())
	footer := fmt.Sprintf("Progress %.0f%% · Average %s", res.Progress, avg)
	return paletteFor(m.machine.State().IsDarkMode).footer.Render(footer)
}

func (m *Model) help() string {
	if m.editing {
		return "enter: save  tab: save and next  esc: cancel"
	}
	if m.screen == screenGrid {
		return "arrows: move  0-9/enter: edit  +/-: ±0.25  x: clear  r: reset  s: snapshot  b: branches  d: theme  q: quit"
	}
	return "up/down: move  enter: choose  esc: back  d: theme  q: quit"
}
