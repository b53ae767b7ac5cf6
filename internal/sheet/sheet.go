// Package sheet loads grade sheets from files.
//
// A sheet lists one subject per line as "id: v v v". A "-" keeps a cell
// empty, blank lines and lines starting with "#" are skipped.
package sheet

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/verte-zerg/moadil/internal/grades"
)

// EmptyCell marks a cell that has no grade yet.
const EmptyCell = "-"

// Load reads a grade sheet from the provided file path.
func Load(path string, maxGrade float64) (grades.Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only sheet.
			_ = cerr
		}
	}()
	return Parse(file, maxGrade)
}

// Parse reads a grade sheet. Every value goes through grades.ParseEntry, so
// a decimal comma is accepted and out-of-range values are rejected with the
// line they appear on.
func Parse(r io.Reader, maxGrade float64) (grades.Store, error) {
	store := grades.New()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, values, ok := strings.Cut(line, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("line %d: expected \"subject: grades\"", lineNo)
		}
		if _, dup := store[id]; dup {
			return nil, fmt.Errorf("line %d: subject %q listed twice", lineNo, id)
		}
		cells := []string{}
		for _, field := range strings.Fields(values) {
			if field == EmptyCell {
				cells = append(cells, "")
				continue
			}
			value, err := grades.ParseEntry(field, maxGrade)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			cells = append(cells, value)
		}
		store[id] = cells
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(store) == 0 {
		return nil, fmt.Errorf("grade sheet is empty")
	}
	return store, nil
}

// Format renders store in sheet syntax, subjects in the given order. Subjects
// missing from the store are written with no cells.
func Format(w io.Writer, ids []string, store grades.Store) error {
	for _, id := range ids {
		cells := make([]string, 0, len(store[id]))
		for _, cell := range store[id] {
			if strings.TrimSpace(cell) == "" {
				cell = EmptyCell
			}
			cells = append(cells, cell)
		}
		line := id + ":"
		if len(cells) > 0 {
			line += " " + strings.Join(cells, " ")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
