package stats

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/verte-zerg/moadil/internal/grades"
	"github.com/verte-zerg/moadil/internal/model"
)

func subject(id string, coef float64, notes int) model.Subject {
	return model.Subject{ID: id, Name: strings.ToUpper(id), Coefficient: coef, NotesCount: notes}
}

func TestComputeNoData(t *testing.T) {
	res := Compute(nil, grades.New(), 20)
	if res.Average != 0 || res.Progress != 0 {
		t.Fatalf("expected zero baseline for no subjects, got %+v", res)
	}
	subjects := []model.Subject{subject("a", 2, 5), subject("b", 3, 1)}
	res = Compute(subjects, grades.New(), 20)
	if res.Average != 0 || res.Progress != 0 {
		t.Fatalf("expected zero baseline without grades, got %v / %v", res.Average, res.Progress)
	}
	if res.Needed != 6 || res.Filled != 0 {
		t.Fatalf("expected 0/6 inputs, got %d/%d", res.Filled, res.Needed)
	}
	if res.PerSubject["a"] != nil || res.PerSubject["b"] != nil {
		t.Fatalf("expected nil subject averages")
	}
}

func TestComputeSingleSubjectFull(t *testing.T) {
	store := grades.Store{"m": {"10", "12", "14", "16", "18"}}
	res := Compute([]model.Subject{subject("m", 1, 5)}, store, 20)
	if got := res.PerSubject["m"]; got == nil || *got != 14 {
		t.Fatalf("expected subject average 14, got %v", got)
	}
	if res.Average != 14 || res.Progress != 100 {
		t.Fatalf("expected 14 / 100%%, got %v / %v", res.Average, res.Progress)
	}
}

func TestComputeWeighted(t *testing.T) {
	store := grades.Store{"a": {"10"}, "b": {"20"}}
	res := Compute([]model.Subject{subject("a", 7, 1), subject("b", 3, 1)}, store, 20)
	if res.Average != 13 {
		t.Fatalf("expected 13, got %v", res.Average)
	}
	if res.WeightTotal != 10 {
		t.Fatalf("expected coefficient total 10, got %v", res.WeightTotal)
	}
}

func TestComputeExcludesSubjectsWithoutGrades(t *testing.T) {
	store := grades.Store{"b": {"16"}}
	res := Compute([]model.Subject{subject("a", 5, 5), subject("b", 5, 5)}, store, 20)
	if res.Average != 16 {
		t.Fatalf("expected 16, got %v", res.Average)
	}
	if res.Progress != 10 {
		t.Fatalf("expected 10%% progress, got %v", res.Progress)
	}
}

func TestComputeIgnoresInvalidEntries(t *testing.T) {
	store := grades.Store{"a": {"abc", "", "15"}}
	res := Compute([]model.Subject{subject("a", 1, 5)}, store, 20)
	if got := res.PerSubject["a"]; got == nil || *got != 15 {
		t.Fatalf("expected 15, got %v", got)
	}
	if res.Filled != 1 || res.Needed != 5 {
		t.Fatalf("expected 1/5 filled, got %d/%d", res.Filled, res.Needed)
	}
	if res.Progress != 20 {
		t.Fatalf("expected 20%% progress, got %v", res.Progress)
	}
}

func TestComputeRejectsOutOfRange(t *testing.T) {
	store := grades.Store{"a": {"8", "15", "NaN", "-2"}}
	res := Compute([]model.Subject{subject("a", 1, 4)}, store, 10)
	if got := res.PerSubject["a"]; got == nil || *got != 8 {
		t.Fatalf("expected only 8 to count on a 10-point scale, got %v", got)
	}
}

func TestComputeZeroCoefficient(t *testing.T) {
	store := grades.Store{"a": {"4"}, "b": {"18"}}
	res := Compute([]model.Subject{subject("a", 0, 1), subject("b", 2, 1)}, store, 20)
	if res.Average != 18 {
		t.Fatalf("expected zero-coefficient subject left out of the average, got %v", res.Average)
	}
	if res.Filled != 2 || res.Needed != 2 || res.Progress != 100 {
		t.Fatalf("expected zero-coefficient subject counted for progress, got %d/%d", res.Filled, res.Needed)
	}

	only := Compute([]model.Subject{subject("a", 0, 2)}, store, 20)
	if only.Average != 0 || only.HasData() {
		t.Fatalf("expected 0 average when every graded subject has coefficient 0, got %v", only.Average)
	}
	if only.Progress != 50 {
		t.Fatalf("expected 50%% progress, got %v", only.Progress)
	}
}

func TestComputeReadsOnlyExpectedCells(t *testing.T) {
	store := grades.Store{"a": {"10", "10", "20"}}
	res := Compute([]model.Subject{subject("a", 1, 2)}, store, 20)
	if res.Average != 10 || res.Progress != 100 {
		t.Fatalf("expected extra cells ignored, got %v / %v", res.Average, res.Progress)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	store := grades.Store{"a": {"10.25", "13.5", "7.75"}, "b": {"", "19"}}
	subjects := []model.Subject{subject("a", 3, 4), subject("b", 2, 2)}
	before := store.Clone()
	first := Compute(subjects, store, 20)
	second := Compute(subjects, store, 20)
	if math.Float64bits(first.Average) != math.Float64bits(second.Average) {
		t.Fatalf("averages differ: %v vs %v", first.Average, second.Average)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ between calls")
	}
	if !reflect.DeepEqual(before, store) {
		t.Fatalf("Compute mutated the store")
	}
}

func TestComputeKeepsFullPrecision(t *testing.T) {
	store := grades.Store{"a": {"10"}, "b": {"11"}, "c": {"11"}}
	res := Compute([]model.Subject{subject("a", 1, 1), subject("b", 1, 1), subject("c", 1, 1)}, store, 20)
	want := 32.0 / 3.0
	if res.Average != want {
		t.Fatalf("expected unrounded %v, got %v", want, res.Average)
	}
	if got := FormatAverage(res.Average, 2); got != "10.67" {
		t.Fatalf("expected 10.67 for display, got %s", got)
	}
}

func TestSubjectAverage(t *testing.T) {
	store := grades.Store{"a": {"", "x", "12", "14"}}
	avg, ok := SubjectAverage(subject("a", 1, 5), store, 20)
	if !ok || avg != 13 {
		t.Fatalf("expected 13, got %v, %v", avg, ok)
	}
	if _, ok := SubjectAverage(subject("missing", 1, 5), store, 20); ok {
		t.Fatalf("expected no average for missing subject")
	}
}

func TestSubjectAverageMatchesCompute(t *testing.T) {
	store := grades.Store{"a": {"10", "10", "20"}}
	a := subject("a", 1, 2)
	avg, ok := SubjectAverage(a, store, 20)
	res := Compute([]model.Subject{a}, store, 20)
	if !ok || avg != 10 || *res.PerSubject["a"] != avg {
		t.Fatalf("expected both to read 2 cells and give 10, got %v and %v", avg, *res.PerSubject["a"])
	}
}

func TestComputeIgnoresSubjectsOutsideList(t *testing.T) {
	store := grades.Store{"old-math": {"18", "19"}, "old-physic": {"17"}}
	res := Compute([]model.Subject{subject("a", 2, 5), subject("b", 3, 1)}, store, 20)
	if res.Average != 0 || res.Progress != 0 || res.Filled != 0 {
		t.Fatalf("expected stale ids ignored, got %+v", res)
	}
}

func TestComputeHugeExpectedCount(t *testing.T) {
	store := grades.Store{"x": {"12", "14"}}
	res := Compute([]model.Subject{subject("x", 1, 1<<62)}, store, 20)
	if res.Average != 13 || res.Filled != 2 {
		t.Fatalf("expected 13 from the stored cells, got %+v", res)
	}
}

func TestAdvice(t *testing.T) {
	if Advice(10, 20) == Advice(9.99, 20) {
		t.Fatalf("expected different advice around the pass mark")
	}
	if Advice(5, 10) != Advice(12, 20) {
		t.Fatalf("expected pass mark to scale with the maximum grade")
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{1, 1, 1}); got != "+++" {
		t.Fatalf("expected flat sparkline, got %q", got)
	}
	got := Sparkline([]float64{0, 10})
	if len(got) != 2 || got[0] != ' ' || got[1] != '@' {
		t.Fatalf("unexpected sparkline %q", got)
	}
}

func TestRenderResult(t *testing.T) {
	store := grades.Store{"a": {"10"}, "b": {"20"}}
	res := Compute([]model.Subject{subject("a", 7, 1), subject("b", 3, 2)}, store, 20)
	var buf bytes.Buffer
	if err := RenderResult(&buf, res, RenderOptions{MaxGrade: 20, Decimals: 2, Focus: 1}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Subject", "1/2", "Average: 13.00/20", "Progress: 67% (2/3 grades)", "Focus: A"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no color codes when color is off")
	}
}

func TestRenderResultEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderResult(&buf, Compute(nil, grades.New(), 20), RenderOptions{MaxGrade: 20}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No subjects") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}
