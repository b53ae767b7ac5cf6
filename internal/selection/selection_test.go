package selection

import (
	"errors"
	"testing"

	"github.com/verte-zerg/moadil/internal/catalog"
	"github.com/verte-zerg/moadil/internal/grades"
	"github.com/verte-zerg/moadil/internal/model"
)

func newMachine(t *testing.T) *Machine {
	t.Helper()
	return New(catalog.Default(), model.NewState(false), model.DefaultScale())
}

func selectBac2(t *testing.T, m *Machine) {
	t.Helper()
	if err := m.SelectStage(model.StageHigh); err != nil {
		t.Fatalf("select stage: %v", err)
	}
	if err := m.SelectLevel("bac-2"); err != nil {
		t.Fatalf("select level: %v", err)
	}
}

func TestPhases(t *testing.T) {
	m := newMachine(t)
	if m.Phase() != PhaseNoStage {
		t.Fatalf("expected no stage, got %s", m.Phase())
	}
	if err := m.SelectStage(model.StageTools); err != nil {
		t.Fatalf("select stage: %v", err)
	}
	if m.Phase() != PhaseStage {
		t.Fatalf("expected stage phase, got %s", m.Phase())
	}
	if err := m.SelectLevel("special"); err != nil {
		t.Fatalf("select level: %v", err)
	}
	if m.Phase() != PhaseLevel {
		t.Fatalf("expected level phase for a level without branches, got %s", m.Phase())
	}
	if len(m.EffectiveSubjects()) != 0 {
		t.Fatalf("expected no subjects without a branch")
	}
	if err := m.SelectLevel("general"); err != nil {
		t.Fatalf("select level: %v", err)
	}
	if m.Phase() != PhaseBranch || m.State().BranchID != "bac-final" {
		t.Fatalf("expected first branch auto-selected, got %+v", m.State())
	}
}

func TestSelectLevelPicksFirstBranch(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	state := m.State()
	if state.Level != "bac-2" || state.BranchID != "2bac-pc" {
		t.Fatalf("unexpected selection %+v", state)
	}
}

func TestSelectLevelAdoptsStage(t *testing.T) {
	m := newMachine(t)
	if err := m.SelectLevel("middle-3"); err != nil {
		t.Fatalf("select level: %v", err)
	}
	if m.State().Stage != model.StageMiddle {
		t.Fatalf("expected middle stage adopted, got %q", m.State().Stage)
	}
	if err := m.SelectLevel("bac-2"); !errors.Is(err, ErrLevelNotInStage) {
		t.Fatalf("expected ErrLevelNotInStage, got %v", err)
	}
}

func TestSelectUnknown(t *testing.T) {
	m := newMachine(t)
	if err := m.SelectStage("university"); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
	if err := m.SelectLevel("bac-9"); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}
	if err := m.SelectBranch("2bac-pc"); !errors.Is(err, ErrUnknownBranch) {
		t.Fatalf("expected ErrUnknownBranch without a level, got %v", err)
	}
	selectBac2(t, m)
	if err := m.SelectBranch("cc-sc"); !errors.Is(err, ErrUnknownBranch) {
		t.Fatalf("expected ErrUnknownBranch for a branch of another level, got %v", err)
	}
	if m.State().BranchID != "2bac-pc" {
		t.Fatalf("expected selection unchanged after a failed transition")
	}
}

func TestSelectionClearsGrades(t *testing.T) {
	transitions := map[string]func(*Machine) error{
		"stage":  func(m *Machine) error { return m.SelectStage(model.StageHigh) },
		"level":  func(m *Machine) error { return m.SelectLevel("bac-2") },
		"branch": func(m *Machine) error { return m.SelectBranch("2bac-svt") },
	}
	for name, transition := range transitions {
		t.Run(name, func(t *testing.T) {
			m := newMachine(t)
			selectBac2(t, m)
			if err := m.UpdateGrade("math", 0, "15"); err != nil {
				t.Fatalf("update grade: %v", err)
			}
			if err := transition(m); err != nil {
				t.Fatalf("transition: %v", err)
			}
			if len(m.State().Grades) != 0 {
				t.Fatalf("expected grades cleared, got %v", m.State().Grades)
			}
		})
	}
}

func TestStaleGradesIgnoredAfterLevelChange(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	for _, id := range []string{"math", "physic", "svt"} {
		if err := m.UpdateGrade(id, 0, "17"); err != nil {
			t.Fatalf("update %s: %v", id, err)
		}
	}
	if err := m.SelectLevel("bac-1"); err != nil {
		t.Fatalf("select level: %v", err)
	}
	// Put the old branch's grades back as if an older store kept them.
	m.state.Grades.Set("physic", 0, "17")
	m.state.Grades.Set("svt", 0, "17")
	m.state.Grades.Set("math", 3, "19")
	for _, s := range m.EffectiveSubjects() {
		if s.ID == "physic" || s.ID == "svt" {
			t.Fatalf("test needs a branch without %s, got %+v", s.ID, m.EffectiveSubjects())
		}
	}
	res := m.Result()
	if res.Average != 0 || res.Progress != 0 {
		t.Fatalf("expected no-data baseline, got %v / %v", res.Average, res.Progress)
	}
}

func TestUpdateGrade(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	if err := m.UpdateGrade("math", 0, " 16,5 "); err != nil {
		t.Fatalf("update grade: %v", err)
	}
	if got := m.Grade("math", 0); got != "16.5" {
		t.Fatalf("expected normalized 16.5, got %q", got)
	}
	if err := m.UpdateGrade("math", 0, "21"); !errors.Is(err, grades.ErrInvalidGrade) {
		t.Fatalf("expected ErrInvalidGrade, got %v", err)
	}
	if got := m.Grade("math", 0); got != "16.5" {
		t.Fatalf("expected rejected input to keep the previous value, got %q", got)
	}
	if err := m.UpdateGrade("math", 1, "10"); !errors.Is(err, ErrCellOutOfRange) {
		t.Fatalf("expected ErrCellOutOfRange, got %v", err)
	}
	if err := m.UpdateGrade("history_geo", 0, "10"); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("expected ErrUnknownSubject, got %v", err)
	}
	if err := m.UpdateGrade("math", 0, ""); err != nil {
		t.Fatalf("clearing a cell: %v", err)
	}
	if m.Result().HasData() {
		t.Fatalf("expected no data after clearing the only grade")
	}
	if m.State().BranchID != "2bac-pc" {
		t.Fatalf("grade edits must not change the selection")
	}
}

func TestUpdateGradeWithoutBranch(t *testing.T) {
	m := newMachine(t)
	if err := m.UpdateGrade("math", 0, "10"); !errors.Is(err, ErrNoBranch) {
		t.Fatalf("expected ErrNoBranch, got %v", err)
	}
}

func TestPrimaryScale(t *testing.T) {
	m := New(catalog.Default(), model.NewState(false), model.Scale{Default: 20, Primary: 10})
	if err := m.SelectLevel("primary-3"); err != nil {
		t.Fatalf("select level: %v", err)
	}
	if m.MaxGrade() != 10 {
		t.Fatalf("expected primary scale 10, got %v", m.MaxGrade())
	}
	if err := m.UpdateGrade("math", 0, "12"); !errors.Is(err, grades.ErrInvalidGrade) {
		t.Fatalf("expected 12 rejected on a 10-point scale, got %v", err)
	}
}

func TestNudgeGrade(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	if err := m.NudgeGrade("math", 0, grades.Step); err != nil {
		t.Fatalf("nudge: %v", err)
	}
	if got := m.Grade("math", 0); got != "0.25" {
		t.Fatalf("expected 0.25, got %q", got)
	}
	if err := m.UpdateGrade("math", 0, "19.9"); err != nil {
		t.Fatalf("update grade: %v", err)
	}
	if err := m.NudgeGrade("math", 0, 1); err != nil {
		t.Fatalf("nudge: %v", err)
	}
	if got := m.Grade("math", 0); got != "20.00" {
		t.Fatalf("expected clamp to 20.00, got %q", got)
	}
}

func TestResult(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	for id, v := range map[string]string{"physic": "10", "math": "20"} {
		if err := m.UpdateGrade(id, 0, v); err != nil {
			t.Fatalf("update %s: %v", id, err)
		}
	}
	res := m.Result()
	if res.Average != 15 {
		t.Fatalf("expected 15, got %v", res.Average)
	}
	if res.Filled != 2 || res.Needed != 5 {
		t.Fatalf("expected 2/5 filled, got %d/%d", res.Filled, res.Needed)
	}
	m.ResetGrades()
	if m.Result().HasData() || m.State().BranchID != "2bac-pc" {
		t.Fatalf("expected grades reset and selection kept")
	}
}

func TestCustomSubjectsOverrideCatalog(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	custom := []model.Subject{{ID: "x", Name: "X", Coefficient: 1, NotesCount: 1}}
	if err := m.SetCustomSubjects(custom); err != nil {
		t.Fatalf("set custom subjects: %v", err)
	}
	subjects := m.EffectiveSubjects()
	if len(subjects) != 1 || subjects[0].ID != "x" {
		t.Fatalf("expected override to replace the catalog list, got %+v", subjects)
	}
	if err := m.UpdateGrade("math", 0, "12"); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("expected catalog subject hidden by the override, got %v", err)
	}
	if !m.HasCustomSubjects() {
		t.Fatalf("expected override reported")
	}

	if err := m.SelectBranch("2bac-svt"); err != nil {
		t.Fatalf("select branch: %v", err)
	}
	if len(m.EffectiveSubjects()) != 5 {
		t.Fatalf("expected override scoped to its branch")
	}
}

func TestEmptyOverrideIsHonored(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	if err := m.SetCustomSubjects([]model.Subject{}); err != nil {
		t.Fatalf("set custom subjects: %v", err)
	}
	if len(m.EffectiveSubjects()) != 0 {
		t.Fatalf("expected an empty override to hide every subject")
	}
}

func TestAddRemoveCustomSubject(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	if err := m.AddCustomSubject(model.Subject{ID: "arabic", Name: "Arabic", Coefficient: 2, NotesCount: 1}); err != nil {
		t.Fatalf("add subject: %v", err)
	}
	if len(m.EffectiveSubjects()) != 6 {
		t.Fatalf("expected catalog list plus one, got %d", len(m.EffectiveSubjects()))
	}
	if err := m.AddCustomSubject(model.Subject{ID: "math", Name: "Math", Coefficient: 1}); !errors.Is(err, ErrDuplicateSubject) {
		t.Fatalf("expected ErrDuplicateSubject, got %v", err)
	}
	if err := m.AddCustomSubject(model.Subject{ID: "bad", Name: "Bad", Coefficient: -1}); err == nil {
		t.Fatalf("expected negative coefficient rejected")
	}

	if err := m.UpdateGrade("math", 0, "14"); err != nil {
		t.Fatalf("update grade: %v", err)
	}
	if err := m.RemoveCustomSubject("math"); err != nil {
		t.Fatalf("remove subject: %v", err)
	}
	if _, ok := m.State().Grades["math"]; ok {
		t.Fatalf("expected grades of the removed subject dropped")
	}
	if err := m.RemoveCustomSubject("math"); !errors.Is(err, ErrUnknownSubject) {
		t.Fatalf("expected ErrUnknownSubject, got %v", err)
	}
}

func TestResetCustomSubjects(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	if err := m.AddCustomSubject(model.Subject{ID: "extra", Name: "Extra", Coefficient: 1, NotesCount: 1}); err != nil {
		t.Fatalf("add subject: %v", err)
	}
	if err := m.UpdateGrade("extra", 0, "9"); err != nil {
		t.Fatalf("update grade: %v", err)
	}
	if err := m.UpdateGrade("math", 0, "17"); err != nil {
		t.Fatalf("update grade: %v", err)
	}
	if err := m.ResetCustomSubjects(); err != nil {
		t.Fatalf("reset custom subjects: %v", err)
	}
	if m.HasCustomSubjects() || len(m.EffectiveSubjects()) != 5 {
		t.Fatalf("expected catalog list restored")
	}
	if _, ok := m.State().Grades["extra"]; ok {
		t.Fatalf("expected grades of dropped subjects pruned")
	}
	if m.Grade("math", 0) != "17" {
		t.Fatalf("expected catalog subject grades kept")
	}
}

func TestStateIsACopy(t *testing.T) {
	m := newMachine(t)
	selectBac2(t, m)
	if err := m.UpdateGrade("math", 0, "12"); err != nil {
		t.Fatalf("update grade: %v", err)
	}
	snapshot := m.State()
	snapshot.Grades.Set("math", 0, "1")
	if m.Grade("math", 0) != "12" {
		t.Fatalf("expected State to return an independent copy")
	}
}

func TestToggleDarkMode(t *testing.T) {
	m := newMachine(t)
	if !m.ToggleDarkMode() || !m.State().IsDarkMode {
		t.Fatalf("expected dark mode on")
	}
	if m.ToggleDarkMode() {
		t.Fatalf("expected dark mode off")
	}
}
