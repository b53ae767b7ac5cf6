package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/moadil/internal/backup"
	"github.com/verte-zerg/moadil/internal/catalog"
	"github.com/verte-zerg/moadil/internal/config"
	"github.com/verte-zerg/moadil/internal/grades"
	"github.com/verte-zerg/moadil/internal/historyui"
	"github.com/verte-zerg/moadil/internal/model"
	"github.com/verte-zerg/moadil/internal/selection"
	"github.com/verte-zerg/moadil/internal/sheet"
	"github.com/verte-zerg/moadil/internal/stats"
)

var (
	catalogStage string
	catalogLevel string

	calcLevel  string
	calcBranch string
	calcGrades []string
	calcSheet  string
	calcFocus  int

	showFocus int

	wipeYes bool

	subjectID    string
	subjectName  string
	subjectCoef  float64
	subjectNotes int

	historyLast        int
	historyLevel       string
	historyCurveWindow int
	historyTUI         bool

	snapshotNote string
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List stages, levels, branches and subjects",
		Args:  cobra.NoArgs,
		RunE:  runCatalogCmd,
	}
	cmd.Flags().StringVar(&catalogStage, "stage", "", "list the levels of a stage")
	cmd.Flags().StringVar(&catalogLevel, "level", "", "list the branches and subjects of a level")
	return cmd
}

func runCatalogCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(s.catalogPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch {
	case catalogLevel != "":
		return writeLevel(out, cat, model.Level(catalogLevel))
	case catalogStage != "":
		stage := model.Stage(catalogStage)
		if !cat.HasStage(stage) {
			return fmt.Errorf("%w: %q", selection.ErrUnknownStage, catalogStage)
		}
		levels := cat.ListLevels(stage)
		rows := make([][]string, 0, len(levels))
		for _, l := range levels {
			rows = append(rows, []string{string(l.ID), l.Name, strconv.Itoa(len(l.Branches))})
		}
		return stats.WriteTable(out, []string{"ID", "Level", "Branches"}, rows, map[int]bool{2: true})
	default:
		stages := cat.ListStages()
		rows := make([][]string, 0, len(stages))
		for _, st := range stages {
			rows = append(rows, []string{string(st.ID), st.Name, strconv.Itoa(len(st.Levels))})
		}
		return stats.WriteTable(out, []string{"ID", "Stage", "Levels"}, rows, map[int]bool{2: true})
	}
}

func writeLevel(w io.Writer, cat *catalog.Catalog, level model.Level) error {
	l, ok := cat.Level(level)
	if !ok {
		return fmt.Errorf("%w: %q", selection.ErrUnknownLevel, level)
	}
	if _, err := fmt.Fprintf(w, "%s (%s)\n", l.Name, l.ID); err != nil {
		return err
	}
	for _, b := range l.Branches {
		if _, err := fmt.Fprintf(w, "\n%s (%s)\n", b.Name, b.ID); err != nil {
			return err
		}
		rows := make([][]string, 0, len(b.Subjects))
		for _, s := range b.Subjects {
			rows = append(rows, []string{s.ID, s.Name, grades.FormatGrade(s.Coefficient), strconv.Itoa(s.ExpectedEntries())})
		}
		if err := stats.WriteTable(w, []string{"ID", "Subject", "Coef", "Cells"}, rows, map[int]bool{2: true, 3: true}); err != nil {
			return err
		}
	}
	return nil
}

func newCalcCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute an average without touching the saved state",
		Args:  cobra.NoArgs,
		RunE:  runCalcCmd,
	}
	cmd.Flags().StringVar(&calcLevel, "level", "", "level id, as listed by the catalog command")
	cmd.Flags().StringVar(&calcBranch, "branch", "", "branch id (default: first branch of the level)")
	cmd.Flags().StringArrayVarP(&calcGrades, "grade", "g", nil, "grades as subject=v,v,v (repeatable, empty cells allowed)")
	cmd.Flags().StringVar(&calcSheet, "sheet", "", "grade sheet file (\"subject: v v v\" per line)")
	cmd.Flags().IntVar(&calcFocus, "focus", defaultFocus, "number of subjects to suggest working on (0 disables)")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

func runCalcCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if calcFocus < 0 {
		return fmt.Errorf("--focus must be >= 0")
	}
	logger, err := newLogger(verbose, "")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	cat, err := loadCatalog(s.catalogPath)
	if err != nil {
		return err
	}

	machine := selection.New(cat, model.NewState(false), s.scale)
	if err := machine.SelectLevel(model.Level(calcLevel)); err != nil {
		return err
	}
	if calcBranch != "" {
		if err := machine.SelectBranch(calcBranch); err != nil {
			return err
		}
	}
	if machine.Phase() != selection.PhaseBranch {
		return fmt.Errorf("level %s has no branch to grade", calcLevel)
	}

	input := grades.New()
	if calcSheet != "" {
		loaded, err := sheet.Load(calcSheet, machine.MaxGrade())
		if err != nil {
			return fmt.Errorf("failed to load sheet: %w", err)
		}
		input = loaded
	}
	for _, raw := range calcGrades {
		id, cells, err := parseGradeFlag(raw)
		if err != nil {
			return err
		}
		input[id] = cells
	}
	if unknown := sheet.Unknown(input, machine.EffectiveSubjects()); len(unknown) > 0 {
		logger.Warn("ignoring grades for unknown subjects", zap.Strings("subjects", unknown))
		for _, id := range unknown {
			input.RemoveSubject(id)
		}
	}
	for _, subject := range machine.EffectiveSubjects() {
		cells := input[subject.ID]
		for i, cell := range cells {
			if i >= subject.ExpectedEntries() {
				logger.Warn("ignoring extra grades",
					zap.String("subject", subject.ID),
					zap.Int("expected", subject.ExpectedEntries()),
					zap.Int("given", len(cells)),
				)
				break
			}
			if err := machine.UpdateGrade(subject.ID, i, cell); err != nil {
				return err
			}
		}
	}

	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintln(out, breadcrumb(machine)); err != nil {
		return err
	}
	return stats.RenderResult(out, machine.Result(), stats.RenderOptions{
		MaxGrade: machine.MaxGrade(),
		Decimals: s.decimals,
		Color:    useColor(out),
		Focus:    calcFocus,
	})
}

// parseGradeFlag splits "math=12,,14.5" into the subject id and its cells.
// Commas separate cells, so a decimal comma cannot be used here.
func parseGradeFlag(raw string) (string, []string, error) {
	id, values, ok := strings.Cut(raw, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", nil, fmt.Errorf("invalid --grade %q: expected subject=v,v,v", raw)
	}
	if strings.TrimSpace(values) == "" {
		return id, []string{}, nil
	}
	cells := strings.Split(values, ",")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return id, cells, nil
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved selection and its result",
		Args:  cobra.NoArgs,
		RunE:  runShowCmd,
	}
	cmd.Flags().IntVar(&showFocus, "focus", defaultFocus, "number of subjects to suggest working on (0 disables)")
	return cmd
}

func runShowCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.Close()
	machine, err := e.machine(cmd.Context())
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), machine, e.settings.decimals, showFocus)
}

func writeResult(w io.Writer, machine *selection.Machine, decimals, focus int) error {
	if _, err := fmt.Fprintln(w, breadcrumb(machine)); err != nil {
		return err
	}
	if machine.Phase() != selection.PhaseBranch {
		_, err := fmt.Fprintf(w, "No branch selected (%s). Use `moadil select` or run `moadil`.\n", machine.Phase())
		return err
	}
	return stats.RenderResult(w, machine.Result(), stats.RenderOptions{
		MaxGrade: machine.MaxGrade(),
		Decimals: decimals,
		Color:    useColor(w),
		Focus:    focus,
	})
}

func breadcrumb(machine *selection.Machine) string {
	cat := machine.Catalog()
	state := machine.State()
	parts := []string{}
	for _, s := range cat.ListStages() {
		if s.ID == state.Stage {
			parts = append(parts, s.Name)
		}
	}
	if l, ok := cat.Level(state.Level); ok {
		parts = append(parts, l.Name)
	}
	if b, ok := machine.Branch(); ok {
		parts = append(parts, b.Name)
	}
	if len(parts) == 0 {
		return "Nothing selected"
	}
	return strings.Join(parts, " > ")
}

func newSelectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Change the saved selection",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stage <id>",
		Short: "Select a stage (clears level, branch and grades)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(m *selection.Machine) error {
				return m.SelectStage(model.Stage(args[0]))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "level <id>",
		Short: "Select a level (clears grades, picks the first branch)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(m *selection.Machine) error {
				return m.SelectLevel(model.Level(args[0]))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "branch <id>",
		Short: "Select a branch of the current level (clears grades)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(m *selection.Machine) error {
				return m.SelectBranch(args[0])
			})
		},
	})
	return cmd
}

// mutate loads the saved state, applies fn, saves and prints the breadcrumb.
func mutate(cmd *cobra.Command, fn func(*selection.Machine) error) error {
	e, err := openEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.Close()
	machine, err := e.machine(cmd.Context())
	if err != nil {
		return err
	}
	if err := fn(machine); err != nil {
		return err
	}
	if err := e.save(cmd.Context(), machine); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), breadcrumb(machine))
	return err
}

func newGradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grade <subject> <cell> [value]",
		Short: "Set one grade cell (1-based); omit the value to clear it",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runGradeCmd,
	}
}

func runGradeCmd(cmd *cobra.Command, args []string) error {
	cell, err := strconv.Atoi(args[1])
	if err != nil || cell < 1 {
		return fmt.Errorf("cell must be a positive number, got %q", args[1])
	}
	value := ""
	if len(args) == 3 {
		value = args[2]
	}
	e, err := openEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.Close()
	machine, err := e.machine(cmd.Context())
	if err != nil {
		return err
	}
	if err := machine.UpdateGrade(args[0], cell-1, value); err != nil {
		return err
	}
	if err := e.save(cmd.Context(), machine); err != nil {
		return err
	}
	res := machine.Result()
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Average %s/%s · Progress %.0f%%\n",
		stats.FormatAverage(res.Average, e.settings.decimals),
		grades.FormatGrade(machine.MaxGrade()),
		res.Progress,
	)
	return err
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear every grade and keep the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, func(m *selection.Machine) error {
				m.ResetGrades()
				return nil
			})
		},
	}
}

func newWipeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete the saved state and snapshots",
		Args:  cobra.NoArgs,
		RunE:  runWipeCmd,
	}
	cmd.Flags().BoolVar(&wipeYes, "yes", false, "confirm deletion")
	return cmd
}

func runWipeCmd(cmd *cobra.Command, _ []string) error {
	if !wipeYes {
		return errors.New("refusing to wipe without --yes")
	}
	e, err := openEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.store.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to wipe: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), "All saved data removed.")
	return err
}

func newSubjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subject",
		Short: "Customize the subjects of the selected branch",
	}
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := strings.TrimSpace(subjectID)
			if id == "" {
				id = "custom-" + uuid.NewString()[:8]
			}
			subject := model.Subject{
				ID:          id,
				Name:        strings.TrimSpace(subjectName),
				Coefficient: subjectCoef,
				NotesCount:  subjectNotes,
			}
			if err := model.ValidateSubject(subject); err != nil {
				return fmt.Errorf("invalid subject: %w", err)
			}
			return mutate(cmd, func(m *selection.Machine) error {
				return m.AddCustomSubject(subject)
			})
		},
	}
	add.Flags().StringVar(&subjectID, "id", "", "subject id (default: generated)")
	add.Flags().StringVar(&subjectName, "name", "", "subject name")
	add.Flags().Float64Var(&subjectCoef, "coef", 1, "coefficient")
	add.Flags().IntVar(&subjectNotes, "notes", 0, fmt.Sprintf("number of grade cells, at most %d (0 uses the default)", model.MaxExpectedEntries))
	_ = add.MarkFlagRequired("name")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a subject and its grades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutate(cmd, func(m *selection.Machine) error {
				return m.RemoveCustomSubject(args[0])
			})
		},
	}
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Go back to the catalog subjects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mutate(cmd, func(m *selection.Machine) error {
				return m.ResetCustomSubjects()
			})
		},
	}
	cmd.AddCommand(add, rm, reset)
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the saved state to a JSON file (\"-\" for stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExportCmd,
	}
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	path := config.DefaultExportPath()
	if len(args) == 1 {
		path = args[0]
	}
	e, err := openEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.Close()
	state, err := e.store.LoadState(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if path == "-" {
		return backup.Export(cmd.OutOrStdout(), state)
	}
	if err := backup.ExportFile(path, state); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return err
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the saved state with a JSON backup (\"-\" for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.Close()

	var state model.AppState
	if args[0] == "-" {
		state, err = backup.Import(cmd.InOrStdin(), e.settings.defaultDark)
	} else {
		state, err = backup.ImportFile(args[0], e.settings.defaultDark)
	}
	if err != nil {
		return fmt.Errorf("failed to import: %w", err)
	}
	if state.Level != "" {
		if _, ok := e.catalog.Level(state.Level); !ok {
			e.logger.Warn("imported level is not in the catalog", zap.String("level", string(state.Level)))
		}
	}
	if err := e.store.SaveState(cmd.Context(), state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return writeResult(cmd.OutOrStdout(), selection.New(e.catalog, state, e.settings.scale), e.settings.decimals, 0)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved snapshots",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLast, "last", 0, "only the last N snapshots (0 for all)")
	cmd.Flags().StringVar(&historyLevel, "level", "", "only snapshots of this level")
	cmd.Flags().IntVar(&historyCurveWindow, "curve-window", defaultCurveWindow, "moving average window for the trend")
	cmd.Flags().BoolVar(&historyTUI, "tui", false, "browse interactively")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if historyCurveWindow <= 0 {
		return fmt.Errorf("--curve-window must be > 0")
	}
	logPath := ""
	if historyTUI {
		logPath = config.DefaultLogPath()
	}
	e, err := openEnv(cmd, logPath)
	if err != nil {
		return err
	}
	defer e.Close()

	cfg := model.HistoryConfig{
		Level:       model.Level(historyLevel),
		Last:        historyLast,
		CurveWindow: historyCurveWindow,
	}
	maxGrade := e.settings.scale.Default
	if stage, ok := e.catalog.StageOf(cfg.Level); ok {
		maxGrade = e.settings.scale.For(stage)
	}

	if historyTUI {
		m := historyui.NewModel(e.store, cfg, historyui.Options{MaxGrade: maxGrade, Decimals: e.settings.decimals})
		if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	}

	h, err := stats.BuildHistory(cmd.Context(), e.store, cfg)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	out := cmd.OutOrStdout()
	if err := stats.RenderHistory(out, h, e.settings.decimals); err != nil {
		return err
	}
	if len(h.Snapshots) < 2 {
		return nil
	}
	averages := make([]float64, len(h.Snapshots))
	for i, s := range h.Snapshots {
		averages[i] = s.Average
	}
	if _, err := fmt.Fprintln(out, ""); err != nil {
		return err
	}
	return stats.PlotGrades(out, "Averages", []stats.Series{
		{Name: "Average", Values: averages},
		{Name: "Trend", Values: h.Trend},
	}, stats.PlotOptions{
		MaxGrade: maxGrade,
		Width:    stats.PlotWidthFor(stats.TerminalWidth(), len(grades.FormatGrade(maxGrade))),
		Color:    useColor(out),
	})
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record the current result in the history",
		Args:  cobra.NoArgs,
		RunE:  runSnapshotCmd,
	}
	cmd.Flags().StringVar(&snapshotNote, "note", "", "note stored with the snapshot")
	return cmd
}

func runSnapshotCmd(cmd *cobra.Command, _ []string) error {
	e, err := openEnv(cmd, "")
	if err != nil {
		return err
	}
	defer e.Close()
	machine, err := e.machine(cmd.Context())
	if err != nil {
		return err
	}
	if machine.Phase() != selection.PhaseBranch {
		return selection.ErrNoBranch
	}
	res := machine.Result()
	if !res.HasData() {
		return errors.New("nothing to snapshot: no valid grade yet")
	}
	state := machine.State()
	snap, err := e.store.InsertSnapshot(cmd.Context(), model.Snapshot{
		Level:    state.Level,
		BranchID: state.BranchID,
		Average:  res.Average,
		Progress: res.Progress,
		Note:     strings.TrimSpace(snapshotNote),
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s saved: %s/%s\n",
		snap.ID[:8],
		stats.FormatAverage(snap.Average, e.settings.decimals),
		grades.FormatGrade(machine.MaxGrade()),
	)
	return err
}
