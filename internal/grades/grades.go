// Package grades holds raw grade entries keyed by subject.
package grades

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

const (
	// DefaultMax is the standard Moroccan grading scale.
	DefaultMax = 20.0
	// Step is the increment used by the +/- controls.
	Step = 0.25
)

// plainDecimal accepts digits with an optional fraction. Exponents, hex floats,
// underscores and words such as "Inf" are not grades.
var plainDecimal = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)$`)

// ErrInvalidGrade is returned by ParseEntry for values that must not be stored.
var ErrInvalidGrade = errors.New("invalid grade")

// Store maps a subject id to its ordered grade cells. A cell is either empty
// or a numeric string. Lists shorter than a subject's expected entry count
// are read as if padded with empty cells.
type Store map[string][]string

// New returns an empty store.
func New() Store {
	return Store{}
}

// Set writes value at index, padding the subject's list with empty cells when
// index lies past its end. Negative indexes are ignored.
func (s Store) Set(subjectID string, index int, value string) {
	if index < 0 {
		return
	}
	entries := slices.Clone(s[subjectID])
	for len(entries) <= index {
		entries = append(entries, "")
	}
	entries[index] = value
	s[subjectID] = entries
}

// Get returns the cell at index, or "" when it was never written.
func (s Store) Get(subjectID string, index int) string {
	entries := s[subjectID]
	if index < 0 || index >= len(entries) {
		return ""
	}
	return entries[index]
}

// Entries returns the first n stored cells of the subject, or fewer when less
// were written. Missing cells read as empty, so nothing is padded. The result
// shares the store's backing array and must not be modified.
func (s Store) Entries(subjectID string, n int) []string {
	entries := s[subjectID]
	if n <= 0 {
		return nil
	}
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// ClearSubject empties the subject's cells but keeps its key.
func (s Store) ClearSubject(subjectID string) {
	if _, ok := s[subjectID]; !ok {
		return
	}
	s[subjectID] = []string{}
}

// ClearAll removes every subject and its cells.
func (s Store) ClearAll() {
	clear(s)
}

// RemoveSubject drops the subject and its cells entirely.
func (s Store) RemoveSubject(subjectID string) {
	delete(s, subjectID)
}

// Prune removes every subject whose id is not in keep and reports how many
// were dropped.
func (s Store) Prune(keep []string) int {
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	removed := 0
	for id := range s {
		if _, ok := keepSet[id]; !ok {
			delete(s, id)
			removed++
		}
	}
	return removed
}

// Clone returns a deep copy.
func (s Store) Clone() Store {
	out := make(Store, len(s))
	for id, entries := range s {
		out[id] = slices.Clone(entries)
	}
	return out
}

// Value parses a stored cell. It reports false for empty, non-numeric,
// non-finite or out-of-range cells. A maxGrade <= 0 disables the upper bound.
func Value(raw string, maxGrade float64) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if !plainDecimal.MatchString(raw) {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < 0 || (maxGrade > 0 && v > maxGrade) {
		return 0, false
	}
	return v, true
}

// ParseEntry validates user input before it reaches a Store. The empty string
// clears a cell. A decimal comma is accepted and normalized to a dot.
func ParseEntry(raw string, maxGrade float64) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	normalized := strings.Replace(raw, ",", ".", 1)
	if _, ok := Value(normalized, maxGrade); !ok {
		if maxGrade > 0 {
			return "", fmt.Errorf("%w: %q is not a number between 0 and %s", ErrInvalidGrade, raw, FormatGrade(maxGrade))
		}
		return "", fmt.Errorf("%w: %q is not a non-negative number", ErrInvalidGrade, raw)
	}
	return normalized, nil
}

// Nudge adds delta to the cell value, treating an invalid or empty cell as 0,
// and clamps the result to [0, maxGrade]. The result has two decimals.
func Nudge(raw string, delta, maxGrade float64) string {
	current, _ := Value(raw, 0)
	next := current + delta
	if next < 0 {
		next = 0
	}
	if maxGrade > 0 && next > maxGrade {
		next = maxGrade
	}
	return strconv.FormatFloat(next, 'f', 2, 64)
}

// FormatGrade renders a grade without trailing zeros.
func FormatGrade(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
