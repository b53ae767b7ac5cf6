// Package catalog provides the curriculum catalog: stages, levels, branches
// and subject coefficients.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/moadil/internal/model"
)

// SupportedVersion is the newest catalog file version this build understands.
const SupportedVersion = 1

//go:embed catalog.yaml
var embedded []byte

// ErrUnsupportedVersion is returned for catalog files newer than SupportedVersion.
var ErrUnsupportedVersion = errors.New("unsupported catalog version")

// Stage is a schooling phase and its levels in display order.
type Stage struct {
	ID     model.Stage `yaml:"id"`
	Name   string      `yaml:"name"`
	Levels []Level     `yaml:"levels"`
}

// Level is a grade-year and its branches in display order.
type Level struct {
	ID       model.Level    `yaml:"id"`
	Name     string         `yaml:"name"`
	Branches []model.Branch `yaml:"branches"`
}

type file struct {
	Version     int                        `yaml:"version"`
	SubjectSets map[string][]model.Subject `yaml:"subject-sets"`
	Stages      []Stage                    `yaml:"stages"`
}

// Catalog is a read-only view over a parsed catalog file.
type Catalog struct {
	version int
	stages  []Stage
	levels  map[model.Level]*Level
	stageOf map[model.Level]model.Stage
}

var loadDefault = sync.OnceValue(func() *Catalog {
	c, err := Parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
})

// Default returns the catalog shipped with the binary.
func Default() *Catalog {
	return loadDefault()
}

// Load reads a catalog file from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if f.Version <= 0 {
		return nil, fmt.Errorf("catalog version is missing")
	}
	if f.Version > SupportedVersion {
		return nil, fmt.Errorf("%w: %d (supported up to %d)", ErrUnsupportedVersion, f.Version, SupportedVersion)
	}

	c := &Catalog{
		version: f.Version,
		stages:  f.Stages,
		levels:  map[model.Level]*Level{},
		stageOf: map[model.Level]model.Stage{},
	}
	seenStages := map[model.Stage]struct{}{}
	for si := range c.stages {
		stage := &c.stages[si]
		if stage.ID == "" {
			return nil, fmt.Errorf("stage %d has no id", si)
		}
		if _, ok := seenStages[stage.ID]; ok {
			return nil, fmt.Errorf("duplicate stage %q", stage.ID)
		}
		seenStages[stage.ID] = struct{}{}
		for li := range stage.Levels {
			level := &stage.Levels[li]
			if level.ID == "" {
				return nil, fmt.Errorf("stage %q: level %d has no id", stage.ID, li)
			}
			if _, ok := c.levels[level.ID]; ok {
				return nil, fmt.Errorf("duplicate level %q", level.ID)
			}
			seenBranches := map[string]struct{}{}
			for _, b := range level.Branches {
				if err := model.ValidateBranch(b); err != nil {
					return nil, fmt.Errorf("level %q: %w", level.ID, err)
				}
				if _, ok := seenBranches[b.ID]; ok {
					return nil, fmt.Errorf("level %q: duplicate branch %q", level.ID, b.ID)
				}
				seenBranches[b.ID] = struct{}{}
			}
			c.levels[level.ID] = level
			c.stageOf[level.ID] = stage.ID
		}
	}
	return c, nil
}

// Version reports the catalog file version.
func (c *Catalog) Version() int {
	return c.version
}

// ListStages returns every stage in declaration order.
func (c *Catalog) ListStages() []Stage {
	return slices.Clone(c.stages)
}

// HasStage reports whether the stage exists.
func (c *Catalog) HasStage(stage model.Stage) bool {
	return slices.ContainsFunc(c.stages, func(s Stage) bool { return s.ID == stage })
}

// ListLevels returns the levels of a stage in declaration order.
func (c *Catalog) ListLevels(stage model.Stage) []Level {
	for _, s := range c.stages {
		if s.ID == stage {
			return slices.Clone(s.Levels)
		}
	}
	return nil
}

// Level looks up a level by id.
func (c *Catalog) Level(level model.Level) (Level, bool) {
	l, ok := c.levels[level]
	if !ok {
		return Level{}, false
	}
	return *l, true
}

// StageOf returns the stage a level belongs to.
func (c *Catalog) StageOf(level model.Level) (model.Stage, bool) {
	stage, ok := c.stageOf[level]
	return stage, ok
}

// ListBranches returns the branches of a level. A level without branches
// yields an empty list.
func (c *Catalog) ListBranches(level model.Level) []model.Branch {
	l, ok := c.levels[level]
	if !ok {
		return nil
	}
	out := make([]model.Branch, len(l.Branches))
	for i, b := range l.Branches {
		out[i] = cloneBranch(b)
	}
	return out
}

// Branch looks up a branch within a level.
func (c *Catalog) Branch(level model.Level, branchID string) (model.Branch, bool) {
	l, ok := c.levels[level]
	if !ok {
		return model.Branch{}, false
	}
	for _, b := range l.Branches {
		if b.ID == branchID {
			return cloneBranch(b), true
		}
	}
	return model.Branch{}, false
}

// Subjects returns the catalog subjects of a branch.
func (c *Catalog) Subjects(level model.Level, branchID string) []model.Subject {
	b, ok := c.Branch(level, branchID)
	if !ok {
		return nil
	}
	return b.Subjects
}

// EffectiveSubjects returns the custom override for branchID when one exists,
// otherwise the catalog subjects.
func (c *Catalog) EffectiveSubjects(level model.Level, branchID string, overrides map[string][]model.Subject) []model.Subject {
	if custom, ok := overrides[branchID]; ok && branchID != "" {
		return slices.Clone(custom)
	}
	return c.Subjects(level, branchID)
}

func cloneBranch(b model.Branch) model.Branch {
	b.Subjects = slices.Clone(b.Subjects)
	return b
}
