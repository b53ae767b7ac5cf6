package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/verte-zerg/moadil/internal/grades"
)

// ErrNotObject is returned when a state document is not a JSON object.
var ErrNotObject = errors.New("state document is not a JSON object")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names in errors instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateSubject checks the structural rules for a subject.
func ValidateSubject(s Subject) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid subject %q: %w", s.ID, err)
	}
	return nil
}

// ValidateBranch checks a branch and all its subjects, including id uniqueness.
func ValidateBranch(b Branch) error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("invalid branch %q: %w", b.ID, err)
	}
	return ValidateSubjectList(b.Subjects)
}

// ValidateSubjectList checks every subject and rejects duplicate ids.
func ValidateSubjectList(subjects []Subject) error {
	seen := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		if err := ValidateSubject(s); err != nil {
			return err
		}
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("duplicate subject id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Validate checks the structure of a state document.
func (s AppState) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}
	for branchID, subjects := range s.CustomSubjects {
		if err := ValidateSubjectList(subjects); err != nil {
			return fmt.Errorf("custom subjects for %q: %w", branchID, err)
		}
	}
	return nil
}

type stateDocument struct {
	Stage          Stage                `json:"stage"`
	Level          Level                `json:"level"`
	BranchID       string               `json:"branchId"`
	Grades         grades.Store         `json:"grades"`
	CustomSubjects map[string][]Subject `json:"customSubjects"`
	IsDarkMode     *bool                `json:"isDarkMode"`
}

// DecodeState parses a persisted state document. Missing customSubjects
// default to none and a missing isDarkMode defaults to defaultDark. The
// document must be a JSON object and structurally valid.
func DecodeState(data []byte, defaultDark bool) (AppState, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return AppState{}, ErrNotObject
	}
	var doc stateDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return AppState{}, fmt.Errorf("failed to decode state: %w", err)
	}
	state := AppState{
		Stage:          doc.Stage,
		Level:          doc.Level,
		BranchID:       doc.BranchID,
		Grades:         doc.Grades,
		CustomSubjects: doc.CustomSubjects,
		IsDarkMode:     defaultDark,
	}
	if doc.IsDarkMode != nil {
		state.IsDarkMode = *doc.IsDarkMode
	}
	state.Normalize()
	if err := state.Validate(); err != nil {
		return AppState{}, err
	}
	return state, nil
}

// EncodeState serializes the state as an indented JSON document.
func EncodeState(state AppState) ([]byte, error) {
	state.Normalize()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}
