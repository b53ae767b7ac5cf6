package stats

import (
	"bytes"
	"testing"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Subject", "Coef", "Average"}
	rows := [][]string{
		{"math", "7", "12.50"},
		{"philosophy", "2", "8.00"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Subject    Coef Average" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "math          7   12.50" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "philosophy    2    8.00" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableUsesDisplayWidth(t *testing.T) {
	lines := formatTable([]string{"Subject", "Coef"}, [][]string{{"الرياضيات", "7"}}, map[int]bool{1: true})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if got := displayWidth(lines[0]); got != displayWidth(lines[1]) {
		t.Fatalf("expected aligned rows, got widths %d and %d", got, displayWidth(lines[1]))
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, []string{"ID", "Name"}, [][]string{{"bac-2", "x"}}, nil); err != nil {
		t.Fatalf("write table: %v", err)
	}
	if buf.String() != "ID    Name\nbac-2 x   \n" {
		t.Fatalf("unexpected table %q", buf.String())
	}
}
