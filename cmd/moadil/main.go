// Package main provides the CLI entrypoint for moadil.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/verte-zerg/moadil/internal/catalog"
	"github.com/verte-zerg/moadil/internal/config"
	"github.com/verte-zerg/moadil/internal/grades"
	"github.com/verte-zerg/moadil/internal/model"
	"github.com/verte-zerg/moadil/internal/selection"
	"github.com/verte-zerg/moadil/internal/stats"
	"github.com/verte-zerg/moadil/internal/store"
	"github.com/verte-zerg/moadil/internal/tui"
)

const (
	defaultDecimals    = 2
	defaultCurveWindow = 3
	defaultFocus       = 3
)

var (
	verbose     bool
	dbPath      string
	catalogPath string
	colorMode   string

	gradingMaxGrade        float64
	gradingPrimaryMaxGrade float64
	gradingDecimals        int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "moadil",
		Short:         "Moroccan school grade calculator",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runCalculatorCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&dbPath, "db", config.DefaultDBPath(), "path to the SQLite database")
	flags.StringVar(&catalogPath, "catalog", "", "catalog YAML file (default: built-in)")
	flags.StringVar(&colorMode, "color", "auto", "colorize output: auto, always or never")
	flags.Float64Var(&gradingMaxGrade, "max-grade", grades.DefaultMax, "maximum grade")
	flags.Float64Var(&gradingPrimaryMaxGrade, "primary-max-grade", grades.DefaultMax, "maximum grade for the primary stage")
	flags.IntVar(&gradingDecimals, "decimals", defaultDecimals, "decimals shown for averages")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newCalcCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newSelectCmd())
	rootCmd.AddCommand(newGradeCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newWipeCmd())
	rootCmd.AddCommand(newSubjectCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newSnapshotCmd())

	return rootCmd
}

// settings are the effective options after merging the config file and flags.
type settings struct {
	scale       model.Scale
	decimals    int
	defaultDark bool
	catalogPath string
}

func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyFloatConfig(cmd, "max-grade", &gradingMaxGrade, fileCfg.Grading.MaxGrade)
	applyFloatConfig(cmd, "primary-max-grade", &gradingPrimaryMaxGrade, fileCfg.Grading.PrimaryMaxGrade)
	applyIntConfig(cmd, "decimals", &gradingDecimals, fileCfg.Grading.Decimals)
	applyStringConfig(cmd, "catalog", &catalogPath, fileCfg.Catalog.Path)

	s := settings{
		scale:       model.Scale{Default: gradingMaxGrade, Primary: gradingPrimaryMaxGrade},
		decimals:    gradingDecimals,
		catalogPath: catalogPath,
	}
	if fileCfg.Display.DarkMode != nil {
		s.defaultDark = *fileCfg.Display.DarkMode
	}
	if err := validateSettings(s); err != nil {
		return settings{}, err
	}
	return s, nil
}

func validateSettings(s settings) error {
	if s.scale.Default <= 0 {
		return fmt.Errorf("--max-grade must be > 0")
	}
	if s.scale.Primary <= 0 {
		return fmt.Errorf("--primary-max-grade must be > 0")
	}
	if s.decimals < 0 || s.decimals > 4 {
		return fmt.Errorf("--decimals must be between 0 and 4")
	}
	switch colorMode {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("--color must be auto, always or never")
	}
	return nil
}

// env bundles what most commands need. Close releases the store.
type env struct {
	settings settings
	logger   *zap.Logger
	catalog  *catalog.Catalog
	store    *store.Store
}

func openEnv(cmd *cobra.Command, logPath string) (*env, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(verbose, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	cat, err := loadCatalog(s.catalogPath)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	st, err := store.Open(dbPath, store.WithLogger(logger), store.WithDefaultDarkMode(s.defaultDark))
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	logger.Debug("environment ready",
		zap.String("db", dbPath),
		zap.Int("catalog_version", cat.Version()),
		zap.Float64("max_grade", s.scale.Default),
	)
	return &env{settings: s, logger: logger, catalog: cat, store: st}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close db", zap.Error(err))
	}
	// Sync fails on terminals; nothing useful to do about it.
	_ = e.logger.Sync()
}

// machine loads the persisted state into a selection machine.
func (e *env) machine(ctx context.Context) (*selection.Machine, error) {
	state, err := e.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return selection.New(e.catalog, state, e.settings.scale), nil
}

func (e *env) save(ctx context.Context, m *selection.Machine) error {
	if err := e.store.SaveState(ctx, m.State()); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return cat, nil
}

// newLogger builds a console logger. Warnings and errors are always shown;
// verbose adds debug output. An empty path logs to stderr.
func newLogger(verbose bool, path string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	cfg.DisableCaller = !verbose
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	out := "stderr"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		out = path
	}
	cfg.OutputPaths = []string{out}
	cfg.ErrorOutputPaths = []string{out}
	return cfg.Build()
}

func useColor(w io.Writer) bool {
	switch colorMode {
	case "never":
		return false
	case "always":
		return stats.UseColor(w, true)
	default:
		return stats.UseColor(w, false)
	}
}

func runCalculatorCmd(cmd *cobra.Command, _ []string) error {
	// The UI owns the terminal, so logs go to a file.
	e, err := openEnv(cmd, config.DefaultLogPath())
	if err != nil {
		return err
	}
	defer e.Close()

	machine, err := e.machine(cmd.Context())
	if err != nil {
		return err
	}
	calculator := tui.NewModel(machine, e.store, tui.Options{Decimals: e.settings.decimals, Logger: e.logger})
	program := tea.NewProgram(calculator, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# moadil configuration
# Uncomment a value to enable it. CLI flags override config values.

[grading]
# max-grade = %g            # Maximum grade
# primary-max-grade = %g    # Maximum grade for the primary stage (set 10 for /10)
# decimals = %d              # Decimals shown for averages

[display]
# dark-mode = false         # Theme used until toggled in the calculator

[catalog]
# path = ""                 # Alternative catalog YAML file
`,
		grades.DefaultMax,
		grades.DefaultMax,
		defaultDecimals,
	)
}
