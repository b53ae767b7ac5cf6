// Package model defines shared data structures.
package model

import (
	"time"

	"github.com/verte-zerg/moadil/internal/grades"
)

// DefaultExpectedEntries is the number of grade cells shown for a subject that
// does not declare its own count.
const DefaultExpectedEntries = 5

// MaxExpectedEntries bounds NotesCount. Keep in sync with the validate tag.
const MaxExpectedEntries = 50

// Stage identifies a schooling phase.
type Stage string

// Stages shipped with the catalog.
const (
	StagePrimary Stage = "primary"
	StageMiddle  Stage = "middle"
	StageHigh    Stage = "high"
	StageTools   Stage = "tools"
)

// Level identifies a grade-year (or a tool) within a stage.
type Level string

// Subject is a gradable course.
type Subject struct {
	ID          string  `json:"id" yaml:"id" validate:"required"`
	Name        string  `json:"name" yaml:"name" validate:"required"`
	Coefficient float64 `json:"coefficient" yaml:"coef" validate:"gte=0"`
	NotesCount  int     `json:"notesCount,omitempty" yaml:"notes" validate:"gte=0,lte=50"`
}

// ExpectedEntries returns how many grade cells the subject expects.
func (s Subject) ExpectedEntries() int {
	if s.NotesCount <= 0 {
		return DefaultExpectedEntries
	}
	return s.NotesCount
}

// Branch is a track or assessment type within a level.
type Branch struct {
	ID       string    `json:"id" yaml:"id" validate:"required"`
	Name     string    `json:"name" yaml:"name" validate:"required"`
	Subjects []Subject `json:"subjects" yaml:"subjects" validate:"dive"`
}

// AppState is everything persisted between sessions. Empty Stage, Level and
// BranchID mean nothing is selected.
type AppState struct {
	Stage          Stage                `json:"stage"`
	Level          Level                `json:"level"`
	BranchID       string               `json:"branchId"`
	Grades         grades.Store         `json:"grades"`
	CustomSubjects map[string][]Subject `json:"customSubjects" validate:"dive,dive"`
	IsDarkMode     bool                 `json:"isDarkMode"`
}

// NewState returns an empty state.
func NewState(darkMode bool) AppState {
	return AppState{
		Grades:         grades.New(),
		CustomSubjects: map[string][]Subject{},
		IsDarkMode:     darkMode,
	}
}

// Normalize replaces nil maps so the state can be mutated safely.
func (s *AppState) Normalize() {
	if s.Grades == nil {
		s.Grades = grades.New()
	}
	if s.CustomSubjects == nil {
		s.CustomSubjects = map[string][]Subject{}
	}
}

// Scale holds the maximum grade per stage.
type Scale struct {
	Default float64
	Primary float64
}

// DefaultScale grades everything out of 20.
func DefaultScale() Scale {
	return Scale{Default: grades.DefaultMax, Primary: grades.DefaultMax}
}

// For returns the maximum grade used when stage is active.
func (s Scale) For(stage Stage) float64 {
	if stage == StagePrimary && s.Primary > 0 {
		return s.Primary
	}
	if s.Default > 0 {
		return s.Default
	}
	return grades.DefaultMax
}

// Snapshot records a computed result at a point in time.
type Snapshot struct {
	ID       string
	TakenAt  time.Time
	Level    Level
	BranchID string
	Average  float64
	Progress float64
	Note     string
}

// HistoryConfig defines filters for the snapshot history.
type HistoryConfig struct {
	Level       Level
	Last        int
	CurveWindow int
}
