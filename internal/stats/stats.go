// Package stats computes weighted averages and renders results.
package stats

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/verte-zerg/moadil/internal/grades"
	"github.com/verte-zerg/moadil/internal/model"
)

const sparkChars = " .:-=+*#%@"

// SubjectRow is the per-subject part of a Result, in subject order.
type SubjectRow struct {
	Subject model.Subject
	// Average is nil when the subject has no valid grade.
	Average  *float64
	Filled   int
	Expected int
}

// Result is the outcome of Compute.
type Result struct {
	Average     float64
	Progress    float64
	Filled      int
	Needed      int
	WeightTotal float64
	Rows        []SubjectRow
	PerSubject  map[string]*float64
}

// Compute turns the effective subjects and their grade cells into a weighted
// average and a completion percentage. Only the first ExpectedEntries cells of
// each subject are read. Cells that are empty, not numeric or outside
// [0, maxGrade] are ignored. Subjects without a valid grade are left out of
// both the weighted sum and the coefficient total.
func Compute(subjects []model.Subject, store grades.Store, maxGrade float64) Result {
	res := Result{
		Rows:       make([]SubjectRow, 0, len(subjects)),
		PerSubject: make(map[string]*float64, len(subjects)),
	}
	var weighted float64
	for _, subject := range subjects {
		expected := subject.ExpectedEntries()
		values := validGrades(store.Entries(subject.ID, expected), maxGrade)
		row := SubjectRow{
			Subject:  subject,
			Filled:   len(values),
			Expected: expected,
		}
		res.Needed += expected
		res.Filled += len(values)
		if len(values) > 0 {
			avg := mean(values)
			row.Average = &avg
			weighted += avg * subject.Coefficient
			res.WeightTotal += subject.Coefficient
		}
		res.Rows = append(res.Rows, row)
		res.PerSubject[subject.ID] = row.Average
	}
	if res.WeightTotal > 0 {
		res.Average = weighted / res.WeightTotal
	}
	if res.Needed > 0 {
		res.Progress = float64(res.Filled) * 100 / float64(res.Needed)
	}
	return res
}

// SubjectAverage returns the simple mean of the subject's valid cells, read
// the same way Compute reads them.
func SubjectAverage(subject model.Subject, store grades.Store, maxGrade float64) (float64, bool) {
	values := validGrades(store.Entries(subject.ID, subject.ExpectedEntries()), maxGrade)
	if len(values) == 0 {
		return 0, false
	}
	return mean(values), true
}

func validGrades(entries []string, maxGrade float64) []float64 {
	values := make([]float64, 0, len(entries))
	for _, raw := range entries {
		if v, ok := grades.Value(raw, maxGrade); ok {
			values = append(values, v)
		}
	}
	return values
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// HasData reports whether any subject contributed to the average.
func (r Result) HasData() bool {
	return r.WeightTotal > 0
}

// FormatAverage rounds an average for display.
func FormatAverage(avg float64, decimals int) string {
	if decimals < 0 {
		decimals = 2
	}
	return strconv.FormatFloat(avg, 'f', decimals, 64)
}

// PassMark is half the scale: 10 out of 20, 5 out of 10.
func PassMark(maxGrade float64) float64 {
	if maxGrade <= 0 {
		maxGrade = grades.DefaultMax
	}
	return maxGrade / 2
}

// Advice returns a short hint for the given average.
func Advice(avg, maxGrade float64) string {
	if avg >= PassMark(maxGrade) {
		return "Good work! Keep focusing on high-coefficient subjects to push your average further."
	}
	return "There is still time: prepare the next tests and work on the core subjects."
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderOptions controls RenderResult output.
type RenderOptions struct {
	MaxGrade float64
	Decimals int
	Color    bool
	// Focus lists up to this many subjects worth working on; 0 disables it.
	Focus int
}

// RenderResult prints the per-subject table followed by the overall average.
func RenderResult(w io.Writer, res Result, opts RenderOptions) error {
	if len(res.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No subjects to grade.")
		return err
	}
	headers := []string{"Subject", "Coef", "Grades", "Average"}
	rows := make([][]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		avg := "-"
		if r.Average != nil {
			avg = FormatAverage(*r.Average, opts.Decimals)
		}
		rows = append(rows, []string{
			r.Subject.Name,
			grades.FormatGrade(r.Subject.Coefficient),
			fmt.Sprintf("%d/%d", r.Filled, r.Expected),
			avg,
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}

	average := FormatAverage(res.Average, opts.Decimals) + "/" + grades.FormatGrade(opts.MaxGrade)
	if opts.Color && res.HasData() {
		average = colorize(average, res.Average, opts.MaxGrade)
	}
	if _, err := fmt.Fprintf(w, "Average: %s\n", average); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Progress: %.0f%% (%d/%d grades)\n", res.Progress, res.Filled, res.Needed); err != nil {
		return err
	}
	if !res.HasData() {
		return nil
	}
	if _, err := fmt.Fprintln(w, Advice(res.Average, opts.MaxGrade)); err != nil {
		return err
	}
	if opts.Focus > 0 {
		focus := FocusSubjects(res, opts.MaxGrade, opts.Focus)
		if len(focus) > 0 {
			names := make([]string, len(focus))
			for i, f := range focus {
				names[i] = f.Subject.Name
			}
			if _, err := fmt.Fprintf(w, "Focus: %s\n", strings.Join(names, ", ")); err != nil {
				return err
			}
		}
	}
	return nil
}

const (
	colorReset = "\x1b[0m"
	colorGreen = "\x1b[32m"
	colorRed   = "\x1b[31m"
)

func colorize(text string, avg, maxGrade float64) string {
	if avg >= PassMark(maxGrade) {
		return colorGreen + text + colorReset
	}
	return colorRed + text + colorReset
}
