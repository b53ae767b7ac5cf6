package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/moadil/internal/config"
	"github.com/verte-zerg/moadil/internal/selection"
)

func TestParseGradeFlag(t *testing.T) {
	id, cells, err := parseGradeFlag("math= 12,,14.5 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id != "math" || len(cells) != 3 || cells[0] != "12" || cells[1] != "" || cells[2] != "14.5" {
		t.Fatalf("unexpected result %q %q", id, cells)
	}
	if _, cells, err := parseGradeFlag("philo="); err != nil || len(cells) != 0 {
		t.Fatalf("expected no cells, got %q %v", cells, err)
	}
	for _, raw := range []string{"math", "=12", ""} {
		if _, _, err := parseGradeFlag(raw); err == nil {
			t.Fatalf("expected %q rejected", raw)
		}
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	var cfg config.FileConfig
	if _, err := toml.Decode(defaultConfigTemplate(), &cfg); err != nil {
		t.Fatalf("template does not decode: %v", err)
	}
	if cfg.Grading.MaxGrade != nil || cfg.Display.DarkMode != nil {
		t.Fatalf("expected every value commented out, got %+v", cfg)
	}
	for _, section := range []string{"[grading]", "[display]", "[catalog]", "max-grade", "primary-max-grade", "dark-mode"} {
		if !strings.Contains(defaultConfigTemplate(), section) {
			t.Fatalf("expected %q in template", section)
		}
	}
}

func runCLI(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	return runCLIWithInput(t, dbPath, "", args...)
}

func runCLIWithInput(t *testing.T, dbPath, input string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--db", dbPath, "--color", "never"))
	err := cmd.Execute()
	return out.String(), err
}

func TestCalcCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "moadil.db")
	out, err := runCLI(t, db, "calc", "--level", "bac-2", "--branch", "2bac-pc", "-g", "math=12,14", "-g", "physic=16")
	if err != nil {
		t.Fatalf("calc: %v\n%s", err, out)
	}
	for _, want := range []string{"2", "Average:", "Progress:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSelectGradeShow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "moadil.db")
	if out, err := runCLI(t, db, "select", "level", "bac-2"); err != nil {
		t.Fatalf("select level: %v\n%s", err, out)
	}
	if out, err := runCLI(t, db, "grade", "math", "1", "15"); err != nil {
		t.Fatalf("grade: %v\n%s", err, out)
	}
	out, err := runCLI(t, db, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "15.00/20") {
		t.Fatalf("expected saved grade in result:\n%s", out)
	}
	if _, err := runCLI(t, db, "grade", "math", "1", "21"); err == nil {
		t.Fatalf("expected out of range grade rejected")
	}
	if _, err := runCLI(t, db, "select", "stage", "nowhere"); err == nil {
		t.Fatalf("expected unknown stage rejected")
	}
}

func TestSnapshotNeedsBranch(t *testing.T) {
	db := filepath.Join(t.TempDir(), "moadil.db")
	_, err := runCLI(t, db, "snapshot")
	if err == nil || !strings.Contains(err.Error(), selection.ErrNoBranch.Error()) {
		t.Fatalf("expected no branch error, got %v", err)
	}
}

func TestWipeNeedsConfirmation(t *testing.T) {
	db := filepath.Join(t.TempDir(), "moadil.db")
	if _, err := runCLI(t, db, "wipe"); err == nil {
		t.Fatalf("expected wipe without --yes rejected")
	}
}

func TestImportFromStdin(t *testing.T) {
	db := filepath.Join(t.TempDir(), "moadil.db")
	doc := `{"stage":"high","level":"bac-2","branchId":"2bac-pc","grades":{"math":["16"]},"customSubjects":{},"isDarkMode":false}`
	if out, err := runCLIWithInput(t, db, doc, "import", "-"); err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	out, err := runCLI(t, db, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "16.00/20") {
		t.Fatalf("expected imported grade in result:\n%s", out)
	}
}
