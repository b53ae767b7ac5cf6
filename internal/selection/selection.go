// Package selection tracks the stage, level and branch choice and the grade
// edits made against it.
package selection

import (
	"errors"
	"fmt"
	"slices"

	"github.com/verte-zerg/moadil/internal/catalog"
	"github.com/verte-zerg/moadil/internal/grades"
	"github.com/verte-zerg/moadil/internal/model"
	"github.com/verte-zerg/moadil/internal/stats"
)

// Phase is how far the selection has progressed.
type Phase int

// Selection phases, in order.
const (
	PhaseNoStage Phase = iota
	PhaseStage
	PhaseLevel
	PhaseBranch
)

func (p Phase) String() string {
	switch p {
	case PhaseStage:
		return "stage selected"
	case PhaseLevel:
		return "level selected"
	case PhaseBranch:
		return "branch selected"
	default:
		return "no stage"
	}
}

var (
	ErrUnknownStage     = errors.New("unknown stage")
	ErrUnknownLevel     = errors.New("unknown level")
	ErrLevelNotInStage  = errors.New("level does not belong to the selected stage")
	ErrUnknownBranch    = errors.New("unknown branch")
	ErrNoBranch         = errors.New("no branch selected")
	ErrUnknownSubject   = errors.New("subject is not part of the active branch")
	ErrCellOutOfRange   = errors.New("grade cell out of range")
	ErrDuplicateSubject = errors.New("subject already exists")
)

// Machine applies selection transitions and grade edits to an AppState.
// It never caches results: Result recomputes from the current state.
type Machine struct {
	catalog *catalog.Catalog
	scale   model.Scale
	state   model.AppState
}

// New wraps state. The state is used as is; callers keep no other reference
// to its maps.
func New(cat *catalog.Catalog, state model.AppState, scale model.Scale) *Machine {
	state.Normalize()
	return &Machine{catalog: cat, scale: scale, state: state}
}

// State returns a copy of the current state for persistence.
func (m *Machine) State() model.AppState {
	out := m.state
	out.Grades = m.state.Grades.Clone()
	out.CustomSubjects = make(map[string][]model.Subject, len(m.state.CustomSubjects))
	for id, subjects := range m.state.CustomSubjects {
		out.CustomSubjects[id] = slices.Clone(subjects)
	}
	return out
}

// Catalog returns the catalog the machine reads from.
func (m *Machine) Catalog() *catalog.Catalog {
	return m.catalog
}

// Phase reports the current selection phase.
func (m *Machine) Phase() Phase {
	switch {
	case m.state.Stage == "":
		return PhaseNoStage
	case m.state.Level == "":
		return PhaseStage
	case m.state.BranchID == "":
		return PhaseLevel
	default:
		return PhaseBranch
	}
}

// SelectStage sets the stage and clears the level, branch and all grades.
func (m *Machine) SelectStage(stage model.Stage) error {
	if !m.catalog.HasStage(stage) {
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	m.state.Stage = stage
	m.state.Level = ""
	m.state.BranchID = ""
	m.state.Grades.ClearAll()
	return nil
}

// SelectLevel sets the level, picks its first branch when it has any and
// clears all grades. With no stage selected, the level's own stage is
// adopted.
func (m *Machine) SelectLevel(level model.Level) error {
	stage, ok := m.catalog.StageOf(level)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	if m.state.Stage != "" && m.state.Stage != stage {
		return fmt.Errorf("%w: %q is in %q, not %q", ErrLevelNotInStage, level, stage, m.state.Stage)
	}
	m.state.Stage = stage
	m.state.Level = level
	m.state.BranchID = ""
	if branches := m.catalog.ListBranches(level); len(branches) > 0 {
		m.state.BranchID = branches[0].ID
	}
	m.state.Grades.ClearAll()
	return nil
}

// SelectBranch sets the branch within the current level and clears all grades.
func (m *Machine) SelectBranch(branchID string) error {
	if m.state.Level == "" {
		return fmt.Errorf("%w: select a level first", ErrUnknownBranch)
	}
	if _, ok := m.catalog.Branch(m.state.Level, branchID); !ok {
		return fmt.Errorf("%w: %q in level %q", ErrUnknownBranch, branchID, m.state.Level)
	}
	m.state.BranchID = branchID
	m.state.Grades.ClearAll()
	return nil
}

// Branch returns the active catalog branch.
func (m *Machine) Branch() (model.Branch, bool) {
	if m.state.BranchID == "" {
		return model.Branch{}, false
	}
	return m.catalog.Branch(m.state.Level, m.state.BranchID)
}

// EffectiveSubjects returns the subjects graded in the active branch.
func (m *Machine) EffectiveSubjects() []model.Subject {
	if m.state.BranchID == "" {
		return nil
	}
	return m.catalog.EffectiveSubjects(m.state.Level, m.state.BranchID, m.state.CustomSubjects)
}

// MaxGrade is the grading scale for the selected stage.
func (m *Machine) MaxGrade() float64 {
	return m.scale.For(m.state.Stage)
}

// Result computes the current result.
func (m *Machine) Result() stats.Result {
	return stats.Compute(m.EffectiveSubjects(), m.state.Grades, m.MaxGrade())
}

func (m *Machine) subject(subjectID string) (model.Subject, error) {
	if m.state.BranchID == "" {
		return model.Subject{}, ErrNoBranch
	}
	for _, s := range m.EffectiveSubjects() {
		if s.ID == subjectID {
			return s, nil
		}
	}
	return model.Subject{}, fmt.Errorf("%w: %q", ErrUnknownSubject, subjectID)
}

func (m *Machine) checkCell(subjectID string, index int) error {
	s, err := m.subject(subjectID)
	if err != nil {
		return err
	}
	if index < 0 || index >= s.ExpectedEntries() {
		return fmt.Errorf("%w: %s has %d cells, got index %d", ErrCellOutOfRange, subjectID, s.ExpectedEntries(), index)
	}
	return nil
}

// UpdateGrade validates raw against the active scale and stores it. Invalid
// input leaves the state untouched. The selection never changes.
func (m *Machine) UpdateGrade(subjectID string, index int, raw string) error {
	if err := m.checkCell(subjectID, index); err != nil {
		return err
	}
	value, err := grades.ParseEntry(raw, m.MaxGrade())
	if err != nil {
		return err
	}
	m.state.Grades.Set(subjectID, index, value)
	return nil
}

// NudgeGrade moves a cell by delta, clamped to the active scale.
func (m *Machine) NudgeGrade(subjectID string, index int, delta float64) error {
	if err := m.checkCell(subjectID, index); err != nil {
		return err
	}
	current := m.state.Grades.Get(subjectID, index)
	m.state.Grades.Set(subjectID, index, grades.Nudge(current, delta, m.MaxGrade()))
	return nil
}

// Grade returns the stored cell.
func (m *Machine) Grade(subjectID string, index int) string {
	return m.state.Grades.Get(subjectID, index)
}

// ClearSubject empties one subject's cells.
func (m *Machine) ClearSubject(subjectID string) {
	m.state.Grades.ClearSubject(subjectID)
}

// ResetGrades clears every grade and keeps the selection.
func (m *Machine) ResetGrades() {
	m.state.Grades.ClearAll()
}

// ToggleDarkMode flips the persisted theme flag.
func (m *Machine) ToggleDarkMode() bool {
	m.state.IsDarkMode = !m.state.IsDarkMode
	return m.state.IsDarkMode
}

// SetCustomSubjects replaces the subject list of the active branch.
func (m *Machine) SetCustomSubjects(subjects []model.Subject) error {
	if m.state.BranchID == "" {
		return ErrNoBranch
	}
	if err := model.ValidateSubjectList(subjects); err != nil {
		return err
	}
	m.state.CustomSubjects[m.state.BranchID] = slices.Clone(subjects)
	return nil
}

// AddCustomSubject appends a subject to the active branch, starting from the
// catalog list when the branch has no override yet.
func (m *Machine) AddCustomSubject(subject model.Subject) error {
	if m.state.BranchID == "" {
		return ErrNoBranch
	}
	subjects := m.EffectiveSubjects()
	if slices.ContainsFunc(subjects, func(s model.Subject) bool { return s.ID == subject.ID }) {
		return fmt.Errorf("%w: %q", ErrDuplicateSubject, subject.ID)
	}
	return m.SetCustomSubjects(append(subjects, subject))
}

// RemoveCustomSubject drops a subject from the active branch together with its
// grades.
func (m *Machine) RemoveCustomSubject(subjectID string) error {
	if _, err := m.subject(subjectID); err != nil {
		return err
	}
	subjects := slices.DeleteFunc(m.EffectiveSubjects(), func(s model.Subject) bool { return s.ID == subjectID })
	if err := m.SetCustomSubjects(subjects); err != nil {
		return err
	}
	m.state.Grades.RemoveSubject(subjectID)
	return nil
}

// ResetCustomSubjects removes the override for the active branch, reverting
// to the catalog list, and drops grades of subjects the catalog lacks.
func (m *Machine) ResetCustomSubjects() error {
	if m.state.BranchID == "" {
		return ErrNoBranch
	}
	delete(m.state.CustomSubjects, m.state.BranchID)
	keep := make([]string, 0)
	for _, s := range m.EffectiveSubjects() {
		keep = append(keep, s.ID)
	}
	m.state.Grades.Prune(keep)
	return nil
}

// HasCustomSubjects reports whether the active branch uses an override.
func (m *Machine) HasCustomSubjects() bool {
	_, ok := m.state.CustomSubjects[m.state.BranchID]
	return ok && m.state.BranchID != ""
}
